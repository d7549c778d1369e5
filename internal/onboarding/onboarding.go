// Package onboarding tracks whether a user has completed first-run setup.
//
// There is exactly one authoritative StatusStore (the database); the Redis
// layer only caches its answers and is always written through.
package onboarding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	appLog "nyumbacal/internal/log"
	"nyumbacal/internal/model"
)

// StatusStore reads and writes onboarding completion per user.
type StatusStore interface {
	Completed(ctx context.Context, user string) (bool, error)
	MarkCompleted(ctx context.Context, user string) error
	Reset(ctx context.Context, user string) error
}

// DefaultTTL bounds how long a cached answer may lag the remote store.
const DefaultTTL = 10 * time.Minute

func checkUser(user string) error {
	if strings.TrimSpace(user) == "" {
		return &model.MissingFieldError{Record: "onboarding", Field: "user"}
	}
	return nil
}

// CachedStore fronts a remote StatusStore with Redis.
type CachedStore struct {
	remote StatusStore
	rdb    *redis.Client
	ttl    time.Duration
}

// NewCachedStore wraps remote. A nil client disables caching.
func NewCachedStore(remote StatusStore, rdb *redis.Client, ttl time.Duration) *CachedStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &CachedStore{remote: remote, rdb: rdb, ttl: ttl}
}

func cacheKey(user string) string { return "onboarding:" + user }

func encode(done bool) string {
	if done {
		return "1"
	}
	return "0"
}

func (s *CachedStore) Completed(ctx context.Context, user string) (bool, error) {
	if err := checkUser(user); err != nil {
		return false, err
	}
	if s.rdb == nil {
		return s.remote.Completed(ctx, user)
	}

	val, err := s.rdb.Get(ctx, cacheKey(user)).Result()
	switch {
	case err == nil:
		return val == "1", nil
	case errors.Is(err, redis.Nil):
	default:
		appLog.Warn("onboarding cache read failed, using database", "user", user, "err", err)
		return s.remote.Completed(ctx, user)
	}

	done, err := s.remote.Completed(ctx, user)
	if err != nil {
		return false, err
	}
	// Fill only when absent; a concurrent MarkCompleted must win.
	if err := s.rdb.SetNX(ctx, cacheKey(user), encode(done), s.ttl).Err(); err != nil {
		appLog.Warn("onboarding cache fill failed", "user", user, "err", err)
	}
	return done, nil
}

func (s *CachedStore) MarkCompleted(ctx context.Context, user string) error {
	if err := checkUser(user); err != nil {
		return err
	}
	if err := s.remote.MarkCompleted(ctx, user); err != nil {
		return err
	}
	if s.rdb == nil {
		return nil
	}
	if err := s.rdb.Set(ctx, cacheKey(user), "1", s.ttl).Err(); err != nil {
		// A stale "0" must not outlive the write; drop it instead.
		if derr := s.rdb.Del(ctx, cacheKey(user)).Err(); derr != nil {
			return fmt.Errorf("onboarding cache invalidate: %w", derr)
		}
	}
	return nil
}

func (s *CachedStore) Reset(ctx context.Context, user string) error {
	if err := checkUser(user); err != nil {
		return err
	}
	if err := s.remote.Reset(ctx, user); err != nil {
		return err
	}
	if s.rdb == nil {
		return nil
	}
	if err := s.rdb.Del(ctx, cacheKey(user)).Err(); err != nil {
		return fmt.Errorf("onboarding cache invalidate: %w", err)
	}
	return nil
}

// MemoryStore is a process-local StatusStore.
type MemoryStore struct {
	mu   sync.RWMutex
	done map[string]bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{done: make(map[string]bool)}
}

func (m *MemoryStore) Completed(_ context.Context, user string) (bool, error) {
	if err := checkUser(user); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.done[user], nil
}

func (m *MemoryStore) MarkCompleted(_ context.Context, user string) error {
	if err := checkUser(user); err != nil {
		return err
	}
	m.mu.Lock()
	m.done[user] = true
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Reset(_ context.Context, user string) error {
	if err := checkUser(user); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.done, user)
	m.mu.Unlock()
	return nil
}
