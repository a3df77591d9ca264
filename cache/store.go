// api/cache/store.go
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	proxy_errors "github.com/cloudscope/armproxy/api/errors"
	logger "github.com/cloudscope/armproxy/api/logging"
)

// Loader fetches the authoritative value for a key from upstream.
type Loader func(ctx context.Context) (interface{}, error)

// Entry is one cached value. Entries are immutable once stored; a refresh
// replaces the whole entry.
type Entry struct {
	Key       ResourceKey
	Value     interface{}
	FetchedAt time.Time
	ExpiresAt time.Time
}

// Fresh reports whether the entry is within its TTL window.
func (e Entry) Fresh(now time.Time) bool {
	return now.Before(e.ExpiresAt)
}

// Store is a thread-safe keyed TTL cache with single-flight fetch
// coalescing. Concurrent callers for the same key share one upstream
// fetch; a failed fetch is never cached and leaves any prior entry
// untouched.
type Store struct {
	mu      sync.RWMutex
	entries map[string]Entry
	flight  singleflight.Group

	defaultTTL   time.Duration
	ttls         map[Kind]time.Duration
	fetchTimeout time.Duration
}

// NewStore creates a Store. ttls overrides the default TTL per resource
// kind; fetchTimeout bounds each upstream fetch.
func NewStore(defaultTTL, fetchTimeout time.Duration, ttls map[Kind]time.Duration) *Store {
	if ttls == nil {
		ttls = make(map[Kind]time.Duration)
	}
	return &Store{
		entries:      make(map[string]Entry),
		defaultTTL:   defaultTTL,
		ttls:         ttls,
		fetchTimeout: fetchTimeout,
	}
}

// TTL returns the configured TTL for a resource kind.
func (s *Store) TTL(kind Kind) time.Duration {
	if ttl, ok := s.ttls[kind]; ok {
		return ttl
	}
	return s.defaultTTL
}

// Get returns the cached value for key, fetching through load on miss,
// expiry, or forced refresh. When a fetch for the key is already in
// flight the caller attaches to it instead of issuing a second upstream
// call; every attached caller receives the same outcome.
//
// If the caller's context ends while attached, the shared fetch keeps
// running to completion for the benefit of other waiters and to populate
// the cache.
func (s *Store) Get(ctx context.Context, key ResourceKey, refresh bool, load Loader) (interface{}, error) {
	keyStr := key.String()

	if !refresh {
		s.mu.RLock()
		entry, ok := s.entries[keyStr]
		s.mu.RUnlock()
		if ok && entry.Fresh(time.Now()) {
			logger.Debug("Cache hit", zap.String("key", keyStr))
			return entry.Value, nil
		}
	}

	ch := s.flight.DoChan(keyStr, func() (interface{}, error) {
		return s.fetch(ctx, key, keyStr, load)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			logger.Debug("Attached to in-flight fetch", zap.String("key", keyStr))
		}
		return res.Val, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// fetch runs one upstream load on a context detached from the caller so
// an abandoned request cannot cancel a shared fetch.
func (s *Store) fetch(ctx context.Context, key ResourceKey, keyStr string, load Loader) (interface{}, error) {
	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.fetchTimeout)
	defer cancel()

	start := time.Now()
	value, err := load(fetchCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || fetchCtx.Err() == context.DeadlineExceeded {
			err = fmt.Errorf("%w: %s", proxy_errors.ErrFetchTimeout, keyStr)
		}
		logger.Warn("Upstream fetch failed",
			zap.String("key", keyStr),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, err
	}

	now := time.Now()
	entry := Entry{
		Key:       key,
		Value:     value,
		FetchedAt: now,
		ExpiresAt: now.Add(s.TTL(key.Kind)),
	}

	s.mu.Lock()
	s.entries[keyStr] = entry
	s.mu.Unlock()

	logger.Debug("Cache entry refreshed",
		zap.String("key", keyStr),
		zap.Duration("elapsed", time.Since(start)),
		zap.Time("expiresAt", entry.ExpiresAt))
	return value, nil
}

// Peek returns the current entry for key without fetching. Stale entries
// are returned as-is; callers check Fresh themselves.
func (s *Store) Peek(key ResourceKey) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[key.String()]
	return entry, ok
}

// Invalidate drops the entry for key, if any. In-flight fetches are
// unaffected.
func (s *Store) Invalidate(key ResourceKey) {
	s.mu.Lock()
	delete(s.entries, key.String())
	s.mu.Unlock()
}

// Len returns the number of stored entries, fresh or stale.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Sweep removes entries that expired before now. Staleness is harmless
// for correctness, so sweeping is purely a memory bound.
func (s *Store) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for keyStr, entry := range s.entries {
		if !entry.Fresh(now) {
			delete(s.entries, keyStr)
			removed++
		}
	}
	return removed
}

// StartSweeper runs Sweep on the given interval until ctx ends.
func (s *Store) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if removed := s.Sweep(time.Now()); removed > 0 {
					logger.Debug("Swept expired cache entries", zap.Int("removed", removed))
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Fetch is a typed wrapper around Store.Get.
func Fetch[T any](ctx context.Context, s *Store, key ResourceKey, refresh bool, load func(ctx context.Context) (T, error)) (T, error) {
	value, err := s.Get(ctx, key, refresh, func(ctx context.Context) (interface{}, error) {
		return load(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	typed, ok := value.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: unexpected cached type %T for key %s", proxy_errors.ErrInternalServer, value, key.String())
	}
	return typed, nil
}
