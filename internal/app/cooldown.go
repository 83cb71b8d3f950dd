/**
 * @description
 * This file implements the staff-call cooldown. Each (role, caller) pair may
 * page staff at most once per cooldown window, and the window starts only
 * once a page has actually been delivered. Two backends are provided: an
 * in-process store for single-instance deployments, and a Redis-backed store
 * for multi-instance deployments where the window must hold across replicas.
 *
 * @dependencies
 * - github.com/redis/go-redis/v9: Distributed backend.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// CooldownStore gates repeated staff calls. Remaining reports the time left
// in an active window for key, or zero when no window is active. Mark starts
// a fresh window.
type CooldownStore interface {
	Remaining(ctx context.Context, key string) (time.Duration, error)
	Mark(ctx context.Context, key string, window time.Duration) error
}

// MemoryCooldownStore keeps cooldown windows in process memory.
type MemoryCooldownStore struct {
	mu      sync.Mutex
	expires map[string]time.Time

	// Injectable for tests.
	now func() time.Time
}

func NewMemoryCooldownStore() *MemoryCooldownStore {
	return &MemoryCooldownStore{
		expires: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (m *MemoryCooldownStore) Remaining(_ context.Context, key string) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if expiry, held := m.expires[key]; held && expiry.After(now) {
		return expiry.Sub(now), nil
	}
	return 0, nil
}

func (m *MemoryCooldownStore) Mark(_ context.Context, key string, window time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.expires[key] = now.Add(window)

	// Expired entries are dropped opportunistically to keep the map bounded.
	for k, expiry := range m.expires {
		if !expiry.After(now) {
			delete(m.expires, k)
		}
	}
	return nil
}

// RedisCooldownStore holds cooldown windows in Redis so the gate applies
// across service replicas.
type RedisCooldownStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisCooldownStore(client redis.UniversalClient, prefix string) *RedisCooldownStore {
	trimmedPrefix := strings.TrimSpace(prefix)
	if trimmedPrefix == "" {
		trimmedPrefix = "economy:cooldown"
	}
	trimmedPrefix = strings.TrimSuffix(trimmedPrefix, ":")

	return &RedisCooldownStore{
		client: client,
		prefix: trimmedPrefix,
	}
}

func (r *RedisCooldownStore) key(key string) string {
	return fmt.Sprintf("%s:%s", r.prefix, key)
}

func (r *RedisCooldownStore) Remaining(ctx context.Context, key string) (time.Duration, error) {
	if r == nil || r.client == nil {
		return 0, nil
	}
	ttl, err := r.client.PTTL(ctx, r.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, err
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

func (r *RedisCooldownStore) Mark(ctx context.Context, key string, window time.Duration) error {
	if r == nil || r.client == nil || window <= 0 {
		return nil
	}
	return r.client.Set(ctx, r.key(key), "1", window).Err()
}
