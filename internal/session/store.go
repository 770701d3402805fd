// Package session persists the active Session in a local key-value store and
// notifies dependents when it changes.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/abhishekshukla9956/chatclient/internal/model"
)

// Well-known keys. Cleared together on logout.
const (
	keyToken = "auth:token"
	keyUser  = "auth:user"
)

// Listener is invoked after the session changes. active is false on logout.
type Listener func(s model.Session, active bool)

// Store holds the process-wide Session, backed by a pebble database so the
// credential survives restarts.
type Store struct {
	db  *pebble.DB
	log *zap.Logger

	mu        sync.RWMutex
	cur       model.Session
	active    bool
	listeners []Listener
}

// Open opens (or creates) the store at dir and restores any persisted
// session. A persisted token whose exp claim has passed is discarded.
func Open(dir string, log *zap.Logger) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}
	s := &Store{db: db, log: log}
	s.restore()
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) restore() {
	tok, ok := s.get(keyToken)
	if !ok {
		return
	}
	if exp, found := tokenExpiry(string(tok)); found && time.Now().After(exp) {
		s.log.Info("persisted token expired, login required")
		_ = s.wipe()
		return
	}
	ub, ok := s.get(keyUser)
	if !ok {
		_ = s.wipe()
		return
	}
	var u model.User
	if err := json.Unmarshal(ub, &u); err != nil {
		s.log.Warn("corrupt persisted identity", zap.Error(err))
		_ = s.wipe()
		return
	}
	s.cur = model.Session{Token: string(tok), User: u}
	s.active = true
}

// Current returns the active session, if any.
func (s *Store) Current() (model.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur, s.active
}

// Save persists the session and notifies listeners.
func (s *Store) Save(sess model.Session) error {
	ub, err := json.Marshal(sess.User)
	if err != nil {
		return err
	}
	if err := s.db.Set([]byte(keyToken), []byte(sess.Token), pebble.Sync); err != nil {
		return fmt.Errorf("persist token: %w", err)
	}
	if err := s.db.Set([]byte(keyUser), ub, pebble.Sync); err != nil {
		return fmt.Errorf("persist identity: %w", err)
	}

	s.mu.Lock()
	s.cur, s.active = sess, true
	ls := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()

	for _, l := range ls {
		l(sess, true)
	}
	return nil
}

// Clear wipes the persisted session and notifies listeners. Idempotent.
func (s *Store) Clear() error {
	err := s.wipe()

	s.mu.Lock()
	was := s.active
	s.cur, s.active = model.Session{}, false
	ls := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()

	if was {
		for _, l := range ls {
			l(model.Session{}, false)
		}
	}
	return err
}

func (s *Store) wipe() error {
	if err := s.db.Delete([]byte(keyToken), pebble.Sync); err != nil {
		return err
	}
	return s.db.Delete([]byte(keyUser), pebble.Sync)
}

// Subscribe registers a listener for login/logout events. Listeners are
// called synchronously in registration order.
func (s *Store) Subscribe(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

func (s *Store) get(key string) ([]byte, bool) {
	v, closer, err := s.db.Get([]byte(key))
	if err != nil {
		if !errors.Is(err, pebble.ErrNotFound) {
			s.log.Warn("state store read", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	out := append([]byte(nil), v...)
	_ = closer.Close()
	return out, true
}

// tokenExpiry extracts the exp claim without validating the signature; the
// client has no signing key and only uses exp to skip a doomed request.
func tokenExpiry(token string) (time.Time, bool) {
	var claims jwt.RegisteredClaims
	_, _ = jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return nil, nil },
		jwt.WithoutClaimsValidation(),
	)
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
