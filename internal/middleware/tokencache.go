package middleware

import (
	"sync"
	"time"

	"github.com/Guimenn/Zelos-Senai-sub003/internal/model"
	"github.com/Guimenn/Zelos-Senai-sub003/prometheus"
	"github.com/dgraph-io/ristretto/v2"
)

// Identity is what the auth middleware learns from a verified token
type Identity struct {
	UserID    uint
	Email     string
	Role      model.Role
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenCache keeps verified tokens for a short TTL so that repeated requests
// skip signature checks and the user lookup.
type TokenCache struct {
	cache *ristretto.Cache[string, Identity]
	ttl   time.Duration

	mu           sync.RWMutex
	revokedAfter map[uint]time.Time
	now          func() time.Time
}

// NewTokenCache creates a cache holding at most maxEntries tokens for ttl each
func NewTokenCache(ttl time.Duration, maxEntries int64) (*TokenCache, error) {
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	cache, err := ristretto.NewCache(&ristretto.Config[string, Identity]{
		NumCounters:        maxEntries * 10,
		MaxCost:            maxEntries,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}
	return &TokenCache{
		cache:        cache,
		ttl:          ttl,
		revokedAfter: make(map[uint]time.Time),
		now:          time.Now,
	}, nil
}

// Get returns the cached identity for token
func (t *TokenCache) Get(token string) (Identity, bool) {
	identity, ok := t.cache.Get(token)
	if ok && t.isRevoked(identity) {
		t.cache.Del(token)
		ok = false
	}
	prometheus.RecordTokenCache(ok)
	return identity, ok
}

// Set caches identity for the configured TTL, never beyond the token expiry
func (t *TokenCache) Set(token string, identity Identity) {
	ttl := t.ttl
	if remaining := identity.ExpiresAt.Sub(t.now()); remaining < ttl {
		ttl = remaining
	}
	if ttl <= 0 {
		return
	}
	t.cache.SetWithTTL(token, identity, 1, ttl)
}

// Delete drops a single token, e.g. on logout
func (t *TokenCache) Delete(token string) {
	t.cache.Del(token)
}

// RevokeUser makes every cached token of the user issued before at a miss
func (t *TokenCache) RevokeUser(userID uint, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.revokedAfter[userID] = at
	// Entries older than the TTL can no longer match a cached token
	cutoff := t.now().Add(-t.ttl)
	for id, revokedAt := range t.revokedAfter {
		if revokedAt.Before(cutoff) {
			delete(t.revokedAfter, id)
		}
	}
}

// Wait blocks until pending writes are visible to Get
func (t *TokenCache) Wait() {
	t.cache.Wait()
}

// Close stops the cache goroutines
func (t *TokenCache) Close() {
	t.cache.Close()
}

func (t *TokenCache) isRevoked(identity Identity) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	revokedAt, ok := t.revokedAfter[identity.UserID]
	return ok && identity.IssuedAt.Before(revokedAt)
}
