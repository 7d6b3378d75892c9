package utils

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

type stateEntry struct {
	expiresAt time.Time
}

// StateStore keeps single-use OAuth state tokens to mitigate CSRF.
type StateStore struct {
	rc *redis.Client

	mu      sync.Mutex
	entries map[string]stateEntry
}

// NewStateStore creates a store; rc may be nil.
func NewStateStore(rc *redis.Client) *StateStore {
	return &StateStore{rc: rc, entries: map[string]stateEntry{}}
}

// Save stores an OAuth state token with TTL.
func (s *StateStore) Save(state string, ttl time.Duration) {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	// Prefer Redis for distributed consistency
	if s.rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.rc.Set(ctx, "oauth:state:"+state, "1", ttl).Err(); err == nil {
			return
		}
	}
	s.mu.Lock()
	s.entries[state] = stateEntry{expiresAt: time.Now().Add(ttl)}
	s.mu.Unlock()
}

// Consume validates and removes a state token.
func (s *StateStore) Consume(state string) bool {
	if s.rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if v, err := s.rc.GetDel(ctx, "oauth:state:"+state).Result(); err == nil {
			return v != ""
		}
	}
	s.mu.Lock()
	entry, ok := s.entries[state]
	if ok {
		delete(s.entries, state)
	}
	s.mu.Unlock()
	if !ok {
		return false
	}
	return time.Now().Before(entry.expiresAt)
}
