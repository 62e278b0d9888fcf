// Package challenge provides ChallengeStore backends for short-lived
// flow secrets.
package challenge

import (
	"context"
	"sync"
	"time"

	"archer/internal/domain/repository"

	"github.com/pkg/errors"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// sweepInterval bounds how often Put scans for expired entries.
const sweepInterval = time.Minute

// MemoryStore keeps challenges in process. Expired entries are dropped on
// access, and Put sweeps the rest at most once per sweepInterval.
type MemoryStore struct {
	mu        sync.Mutex
	entries   map[string]memoryEntry
	lastSweep time.Time
	now       func() time.Time
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry), now: time.Now}
}

var _ repository.ChallengeStore = (*MemoryStore)(nil)

// Put stores value under key for ttl.
func (s *MemoryStore) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.Errorf("challenge ttl must be positive, got %s", ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastSweep) >= sweepInterval {
		for k, entry := range s.entries {
			if !now.Before(entry.expiresAt) {
				delete(s.entries, k)
			}
		}
		s.lastSweep = now
	}
	s.entries[key] = memoryEntry{value: append([]byte(nil), value...), expiresAt: now.Add(ttl)}

	return nil
}

// Get returns the value without consuming it.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.live(key)
	if !ok {
		return nil, errors.WithStack(repository.ErrChallengeNotFound)
	}

	return append([]byte(nil), entry.value...), nil
}

// Take returns the value and deletes it.
func (s *MemoryStore) Take(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.live(key)
	if !ok {
		return nil, errors.WithStack(repository.ErrChallengeNotFound)
	}
	delete(s.entries, key)

	return entry.value, nil
}

// Delete removes keys.
func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		delete(s.entries, key)
	}

	return nil
}

// Len reports how many live entries remain.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for key := range s.entries {
		if _, ok := s.live(key); ok {
			n++
		}
	}

	return n
}

func (s *MemoryStore) live(key string) (memoryEntry, bool) {
	entry, ok := s.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !s.now().Before(entry.expiresAt) {
		delete(s.entries, key)

		return memoryEntry{}, false
	}

	return entry, true
}
