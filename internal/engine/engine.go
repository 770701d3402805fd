// Package engine owns the merged authoritative+optimistic view of one open
// conversation. It drives the poll loop against the gateway and reconciles
// local mutations with polled server state.
package engine

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/abhishekshukla9956/chatclient/internal/errs"
	"github.com/abhishekshukla9956/chatclient/internal/metrics"
	"github.com/abhishekshukla9956/chatclient/internal/model"
)

// Gateway is the slice of the API client the engine depends on.
type Gateway interface {
	ListMessages(ctx context.Context, peerID int64) ([]model.Message, error)
	CreateMessage(ctx context.Context, receiverID int64, text string, file *model.Upload) (model.Message, error)
	EditMessage(ctx context.Context, id int64, text string) (model.Message, error)
	DeleteMessage(ctx context.Context, id int64) error
}

// editIntent tracks the single open edit. Compared by pointer identity so a
// response for a superseded edit is discarded.
type editIntent struct {
	msgID int64
}

// Engine maintains the thread for the currently selected peer.
//
// The visible thread is always merge(server, pending, shadow): the last
// successfully polled list, minus locally deleted IDs still in their shadow
// window, plus unconfirmed sends appended in creation order.
type Engine struct {
	gw      Gateway
	log     *zap.Logger
	cadence time.Duration

	// OnChange receives a snapshot after every visible state change.
	// Set before Start; called without the engine lock held.
	OnChange func(model.Thread)
	// OnFailure surfaces a mutation or poll failure for one operation;
	// other in-flight operations are unaffected.
	OnFailure func(op string, err error)

	mu       sync.Mutex
	gen      uint64
	cancel   context.CancelFunc
	peerID   int64
	active   bool
	server   []model.Message
	pending  []*model.PendingMessage
	shadow   *shadowSet
	editing  *editIntent
	lastSync time.Time
}

// New constructs an engine polling at the given cadence. The shadow window
// for local deletes spans two cadence intervals, enough to outlive any poll
// response issued before the delete.
func New(gw Gateway, cadence time.Duration, log *zap.Logger) *Engine {
	return &Engine{
		gw:      gw,
		log:     log,
		cadence: cadence,
		shadow:  newShadowSet(2*cadence, nil),
	}
}

// Start resets the thread to peerID and begins polling. Any previous loop is
// cancelled first; a completion belonging to it can no longer apply.
func (e *Engine) Start(peerID int64) {
	e.mu.Lock()
	if e.cancel != nil {
		e.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.gen++
	gen := e.gen
	e.peerID = peerID
	e.active = true
	e.server = nil
	e.pending = nil
	e.editing = nil
	e.shadow.reset()
	e.lastSync = time.Time{}
	e.mu.Unlock()

	e.notify()
	go e.loop(ctx, gen, peerID)
}

// Stop cancels the poll loop. Idempotent.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.gen++
	e.active = false
	e.mu.Unlock()
}

// Snapshot returns a defensive copy of the merged thread.
func (e *Engine) Snapshot() model.Thread {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() model.Thread {
	return model.Thread{
		PeerID:       e.peerID,
		Entries:      merge(e.server, e.pending, e.shadow.contains),
		LastSyncedAt: e.lastSync,
	}
}

// loop refreshes immediately, then re-arms the timer only after each fetch
// completes, so a slow network cannot pile up overlapping refreshes.
func (e *Engine) loop(ctx context.Context, gen uint64, peerID int64) {
	for {
		e.refresh(ctx, gen, peerID)
		timer := time.NewTimer(e.cadence)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// refresh fetches the authoritative list and reconciles. On failure the
// previous view is retained and the loop carries on.
func (e *Engine) refresh(ctx context.Context, gen uint64, peerID int64) {
	msgs, err := e.gw.ListMessages(ctx, peerID)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		metrics.Polls.WithLabelValues("error").Inc()
		e.log.Warn("poll failed", zap.Int64("peer", peerID), zap.Error(err))
		return
	}
	metrics.Polls.WithLabelValues("ok").Inc()

	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		return
	}
	e.server = msgs
	e.lastSync = time.Now()
	e.mu.Unlock()

	e.notify()
}

// Send appends an optimistic pending message and issues the create call.
// Empty payloads are rejected locally. On success the pending entry is
// replaced in place by the confirmed message, matched by local key; on
// failure it is removed and the failure reported.
func (e *Engine) Send(text string, file *model.Upload) error {
	if strings.TrimSpace(text) == "" && file == nil {
		return errs.ErrValidation
	}

	e.mu.Lock()
	if !e.active {
		e.mu.Unlock()
		return errs.ErrValidation
	}
	key, err := uuid.NewV4()
	if err != nil {
		e.mu.Unlock()
		return err
	}
	p := &model.PendingMessage{
		LocalKey: key,
		PeerID:   e.peerID,
		Text:     text,
		File:     file,
		SentAt:   time.Now(),
	}
	e.pending = append(e.pending, p)
	gen := e.gen
	e.mu.Unlock()

	e.notify()

	go func() {
		msg, err := e.gw.CreateMessage(context.Background(), p.PeerID, p.Text, p.File)

		e.mu.Lock()
		if gen != e.gen {
			// peer switched while in flight; this thread is gone
			e.mu.Unlock()
			e.log.Info("send confirmed after peer switch, dropped",
				zap.Int64("peer", p.PeerID), zap.Error(err))
			return
		}
		e.removePending(p.LocalKey)
		if err == nil {
			e.server = append(e.server, msg)
		}
		e.mu.Unlock()

		if err != nil {
			metrics.Mutations.WithLabelValues("send", "error").Inc()
			e.log.Error("send failed", zap.Int64("peer", p.PeerID), zap.Error(err))
			e.fail("send", err)
		} else {
			metrics.Mutations.WithLabelValues("send", "ok").Inc()
		}
		e.notify()
	}()
	return nil
}

// Edit replaces the text of an owned message. A whitespace-only draft is a
// no-op before any network call. Opening a new edit supersedes an
// unconfirmed prior one; the stale response is discarded when it lands.
// Until the server confirms, the original text stays visible, so a failed
// edit needs no rollback.
func (e *Engine) Edit(msgID int64, text string) error {
	if strings.TrimSpace(text) == "" {
		return errs.ErrValidation
	}

	e.mu.Lock()
	if !e.active {
		e.mu.Unlock()
		return errs.ErrValidation
	}
	intent := &editIntent{msgID: msgID}
	e.editing = intent
	gen := e.gen
	e.mu.Unlock()

	go func() {
		msg, err := e.gw.EditMessage(context.Background(), msgID, text)

		e.mu.Lock()
		if gen != e.gen || e.editing != intent {
			e.mu.Unlock()
			return
		}
		e.editing = nil
		if err == nil {
			for i := range e.server {
				if e.server[i].ID == msgID {
					e.server[i] = msg
					break
				}
			}
		}
		e.mu.Unlock()

		if err != nil {
			metrics.Mutations.WithLabelValues("edit", "error").Inc()
			e.log.Error("edit failed", zap.Int64("id", msgID), zap.Error(err))
			e.fail("edit", err)
		} else {
			metrics.Mutations.WithLabelValues("edit", "ok").Inc()
		}
		e.notify()
	}()
	return nil
}

// Delete removes the message immediately and records its ID in the shadow
// set so a stale poll cannot bring it back. The message is not restored on
// failure; the failure is only reported.
func (e *Engine) Delete(msgID int64) {
	e.mu.Lock()
	if !e.active {
		e.mu.Unlock()
		return
	}
	for i := range e.server {
		if e.server[i].ID == msgID {
			e.server = append(e.server[:i], e.server[i+1:]...)
			break
		}
	}
	e.shadow.add(msgID)
	gen := e.gen
	e.mu.Unlock()

	e.notify()

	go func() {
		err := e.gw.DeleteMessage(context.Background(), msgID)
		if err != nil {
			metrics.Mutations.WithLabelValues("delete", "error").Inc()
			e.log.Error("delete failed", zap.Int64("id", msgID), zap.Error(err))
			e.mu.Lock()
			stale := gen != e.gen
			e.mu.Unlock()
			if !stale {
				e.fail("delete", err)
			}
			return
		}
		metrics.Mutations.WithLabelValues("delete", "ok").Inc()
	}()
}

func (e *Engine) removePending(key uuid.UUID) {
	for i, p := range e.pending {
		if p.LocalKey == key {
			e.pending = append(e.pending[:i], e.pending[i+1:]...)
			return
		}
	}
}

func (e *Engine) notify() {
	cb := e.OnChange
	if cb == nil {
		return
	}
	e.mu.Lock()
	snap := e.snapshotLocked()
	e.mu.Unlock()
	cb(snap)
}

func (e *Engine) fail(op string, err error) {
	if e.OnFailure != nil {
		e.OnFailure(op, err)
	}
}
