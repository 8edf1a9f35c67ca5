// Package session keeps the current classification for each console session.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"mri-console/internal/classify"
)

// Entry is the result currently shown to a session.
type Entry struct {
	ClassificationID string          `json:"classification_id,omitempty"`
	Filename         string          `json:"filename"`
	Result           classify.Result `json:"result"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Store holds one entry per session. Concurrent uploads are not ordered
// against each other: whichever Put runs last is what Get returns.
type Store struct {
	mu      sync.RWMutex
	entries map[string]Entry
	now     func() time.Time
}

func NewStore() *Store {
	return &Store{entries: make(map[string]Entry), now: time.Now}
}

// NewID issues a session id.
func NewID() string { return uuid.NewString() }

// ValidID reports whether id looks like one NewID would issue.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (s *Store) Put(id string, e Entry) {
	e.UpdatedAt = s.now()
	s.mu.Lock()
	s.entries[id] = e
	s.mu.Unlock()
}

func (s *Store) Get(id string) (Entry, bool) {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	return e, ok
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Sweep drops sessions idle for longer than ttl and returns how many went.
func (s *Store) Sweep(ttl time.Duration) int {
	cutoff := s.now().Add(-ttl)
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, e := range s.entries {
		if e.UpdatedAt.Before(cutoff) {
			delete(s.entries, id)
			n++
		}
	}
	return n
}

// Janitor sweeps every interval until ctx is done.
func (s *Store) Janitor(ctx context.Context, ttl, every time.Duration, onSweep func(n int)) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := s.Sweep(ttl); n > 0 && onSweep != nil {
				onSweep(n)
			}
		}
	}
}
