// Package dedup keeps the set of plaintext values seen during one run.
package dedup

import (
	"sync"

	"xdao.co/sealsweep/cidutil"
	"xdao.co/sealsweep/model"
)

// Set is an insertion-ordered set keyed by value fingerprint.
// It is safe for concurrent use; order reflects the first Add of each value.
type Set struct {
	mu     sync.Mutex
	seen   map[string]struct{}
	values []model.Plaintext
}

func New() *Set {
	return &Set{seen: make(map[string]struct{})}
}

// Add reports whether v was newly added.
func (s *Set) Add(v model.Plaintext) bool {
	fp := cidutil.Fingerprint([]byte(v))
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen == nil {
		s.seen = make(map[string]struct{})
	}
	if _, ok := s.seen[fp]; ok {
		return false
	}
	s.seen[fp] = struct{}{}
	s.values = append(s.values, v)
	return true
}

func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.values)
}

// Values returns a copy in insertion order.
func (s *Set) Values() []model.Plaintext {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Plaintext, len(s.values))
	copy(out, s.values)
	return out
}
