package engine

import "time"

// shadowSet records locally deleted message IDs for a bounded window so a
// poll response issued before the delete cannot resurrect them. Entries
// expire after ttl; expired entries are pruned lazily on access.
type shadowSet struct {
	ttl     time.Duration
	now     func() time.Time
	entries map[int64]time.Time
}

func newShadowSet(ttl time.Duration, now func() time.Time) *shadowSet {
	if now == nil {
		now = time.Now
	}
	return &shadowSet{ttl: ttl, now: now, entries: make(map[int64]time.Time)}
}

func (s *shadowSet) add(id int64) {
	s.entries[id] = s.now().Add(s.ttl)
}

func (s *shadowSet) contains(id int64) bool {
	exp, ok := s.entries[id]
	if !ok {
		return false
	}
	if s.now().After(exp) {
		delete(s.entries, id)
		return false
	}
	return true
}

func (s *shadowSet) reset() {
	s.entries = make(map[int64]time.Time)
}
