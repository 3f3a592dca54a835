// Package oauthstate holds short-lived OAuth authorization-flow state
// tokens. Entries expire after a TTL and the store is capacity-bounded,
// so an abandoned flow can neither grow the map forever nor be replayed
// later.
package oauthstate

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// FlowState is the pending-authorization context keyed by a state token.
type FlowState struct {
	AccountID   int64
	Provider    string
	RedirectURI string
	Verifier    string
	CreatedAt   time.Time
}

type entry struct {
	state     FlowState
	expiresAt time.Time
}

// Store is a bounded, TTL-evicting state-token store.
type Store struct {
	mu       sync.Mutex
	entries  map[string]entry
	capacity int
	ttl      time.Duration
	now      func() time.Time

	quit chan struct{}
	wg   sync.WaitGroup
}

// New creates a store holding at most capacity entries, each valid
// for ttl.
func New(capacity int, ttl time.Duration) *Store {
	return &Store{
		entries:  make(map[string]entry),
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
		quit:     make(chan struct{}),
	}
}

// Put stores flow state and returns a fresh random state token. When the
// store is full, the oldest entry is evicted first.
func (s *Store) Put(fs FlowState) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweepLocked(now)

	if len(s.entries) >= s.capacity {
		s.evictOldestLocked()
	}

	token := uuid.NewString()
	fs.CreatedAt = now
	s.entries[token] = entry{state: fs, expiresAt: now.Add(s.ttl)}
	return token
}

// Take consumes the state for token exactly once. A second Take with the
// same token, or a Take after expiry, returns false.
func (s *Store) Take(token string) (FlowState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[token]
	if !ok {
		return FlowState{}, false
	}
	delete(s.entries, token)

	if s.now().After(e.expiresAt) {
		return FlowState{}, false
	}
	return e.state, true
}

// Len returns the number of live entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked(s.now())
	return len(s.entries)
}

// StartSweeper runs a background sweep every interval until Stop.
func (s *Store) StartSweeper(interval time.Duration) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.mu.Lock()
				s.sweepLocked(s.now())
				s.mu.Unlock()
			case <-s.quit:
				return
			}
		}
	}()
}

// Stop halts the background sweeper.
func (s *Store) Stop() {
	close(s.quit)
	s.wg.Wait()
}

func (s *Store) sweepLocked(now time.Time) {
	for token, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, token)
		}
	}
}

func (s *Store) evictOldestLocked() {
	var oldestToken string
	var oldest time.Time
	for token, e := range s.entries {
		if oldestToken == "" || e.state.CreatedAt.Before(oldest) {
			oldestToken = token
			oldest = e.state.CreatedAt
		}
	}
	if oldestToken != "" {
		delete(s.entries, oldestToken)
	}
}
