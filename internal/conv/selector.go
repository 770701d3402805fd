// Package conv maintains the candidate peer list and the selected
// conversation partner.
package conv

import (
	"context"
	"sync"

	"github.com/abhishekshukla9956/chatclient/internal/errs"
	"github.com/abhishekshukla9956/chatclient/internal/model"
)

// UserLister is the gateway dependency.
type UserLister interface {
	ListUsers(ctx context.Context) ([]model.User, error)
}

// ThreadOpener is what selecting a peer drives; the sync engine satisfies it.
type ThreadOpener interface {
	Start(peerID int64)
	Stop()
}

// Selector holds the user list and the currently open conversation. Selecting
// a peer restarts the thread engine against it.
type Selector struct {
	gw     UserLister
	opener ThreadOpener
	selfID int64

	mu       sync.RWMutex
	users    []model.User
	selected *model.User
}

// New constructs a selector for the logged-in user selfID.
func New(gw UserLister, opener ThreadOpener, selfID int64) *Selector {
	return &Selector{gw: gw, opener: opener, selfID: selfID}
}

// Refresh re-fetches the candidate list. The backend already excludes the
// current user; the filter here guards against older deployments that don't.
func (s *Selector) Refresh(ctx context.Context) ([]model.User, error) {
	users, err := s.gw.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	filtered := users[:0]
	for _, u := range users {
		if u.ID != s.selfID {
			filtered = append(filtered, u)
		}
	}
	s.mu.Lock()
	s.users = append([]model.User(nil), filtered...)
	s.mu.Unlock()
	return filtered, nil
}

// Users returns the last fetched list.
func (s *Selector) Users() []model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.User(nil), s.users...)
}

// Select opens the conversation with peerID. Selecting the already-open peer
// is a no-op; selecting a new one replaces the thread.
func (s *Selector) Select(peerID int64) error {
	s.mu.Lock()
	var peer *model.User
	for i := range s.users {
		if s.users[i].ID == peerID {
			peer = &s.users[i]
			break
		}
	}
	if peer == nil {
		s.mu.Unlock()
		return errs.ErrNotFound
	}
	if s.selected != nil && s.selected.ID == peerID {
		s.mu.Unlock()
		return nil
	}
	sel := *peer
	s.selected = &sel
	s.mu.Unlock()

	s.opener.Start(peerID)
	return nil
}

// Selected returns the open peer, if any.
func (s *Selector) Selected() (model.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selected == nil {
		return model.User{}, false
	}
	return *s.selected, true
}

// Close stops the open thread, if any.
func (s *Selector) Close() {
	s.mu.Lock()
	s.selected = nil
	s.mu.Unlock()
	s.opener.Stop()
}
