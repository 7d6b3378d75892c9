package utils

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// blacklistEntry keeps expiration metadata for a JWT token.
type blacklistEntry struct {
	expiresAt time.Time
}

// TokenBlacklist remembers revoked tokens until they expire. It prefers Redis
// and falls back to process memory when no client is configured.
type TokenBlacklist struct {
	rc *redis.Client

	mu      sync.RWMutex
	entries map[string]blacklistEntry
}

// NewTokenBlacklist creates a blacklist; rc may be nil.
func NewTokenBlacklist(rc *redis.Client) *TokenBlacklist {
	return &TokenBlacklist{rc: rc, entries: map[string]blacklistEntry{}}
}

// Add stores a token until expiration to support logout semantics.
func (b *TokenBlacklist) Add(token string, expiresAt time.Time) {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return
	}
	if b.rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := b.rc.Set(ctx, "jwt:blacklist:"+token, "1", ttl).Err(); err == nil {
			return
		}
	}
	b.mu.Lock()
	b.entries[token] = blacklistEntry{expiresAt: expiresAt}
	b.mu.Unlock()
}

// Contains checks if a token was revoked before natural expiration.
func (b *TokenBlacklist) Contains(token string) bool {
	if b.rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		n, err := b.rc.Exists(ctx, "jwt:blacklist:"+token).Result()
		if err == nil && n > 0 {
			return true
		}
		// fail-open on Redis errors, then consult the local fallback
	}
	b.mu.RLock()
	entry, ok := b.entries[token]
	b.mu.RUnlock()
	if !ok {
		return false
	}

	if time.Now().After(entry.expiresAt) {
		b.mu.Lock()
		delete(b.entries, token)
		b.mu.Unlock()
		return false
	}
	return true
}
