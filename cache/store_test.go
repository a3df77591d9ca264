// api/cache/store_test.go
package cache_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudscope/armproxy/api/cache"
	proxy_errors "github.com/cloudscope/armproxy/api/errors"
	logger "github.com/cloudscope/armproxy/api/logging"
)

func initTestLogger(t *testing.T) {
	t.Helper()
	logger.InitLogger(t.TempDir())
}

func vmKey(name string) cache.ResourceKey {
	return cache.ResourceKey{
		Kind:           cache.KindVirtualMachine,
		SubscriptionID: "sub-1",
		ResourceGroup:  "rg-1",
		Resource:       name,
	}
}

func TestSingleFlightCoalescesConcurrentCallers(t *testing.T) {
	initTestLogger(t)
	store := cache.NewStore(time.Minute, 5*time.Second, nil)
	key := vmKey("vm-1")

	var calls int32
	gate := make(chan struct{})
	load := func(ctx context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		<-gate
		return "value", nil
	}

	const waiters = 10
	results := make([]string, waiters)
	errs := make([]error, waiters)
	var wg sync.WaitGroup
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = cache.Fetch(context.Background(), store, key, false, load)
		}(i)
	}

	// Let every caller reach the in-flight fetch before it completes.
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for i := 0; i < waiters; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "value", results[i])
	}
}

func TestCacheHitIssuesNoUpstreamCall(t *testing.T) {
	initTestLogger(t)
	store := cache.NewStore(time.Minute, 5*time.Second, nil)
	key := vmKey("vm-1")

	var calls int32
	load := func(ctx context.Context) ([]string, error) {
		atomic.AddInt32(&calls, 1)
		return []string{"a", "b"}, nil
	}

	first, err := cache.Fetch(context.Background(), store, key, false, load)
	require.NoError(t, err)
	second, err := cache.Fetch(context.Background(), store, key, false, load)
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, first, second)
}

func TestForcedRefreshAdvancesFetchedAt(t *testing.T) {
	initTestLogger(t)
	store := cache.NewStore(time.Minute, 5*time.Second, nil)
	key := vmKey("vm-1")

	var calls int32
	load := func(ctx context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "value", nil
	}

	_, err := cache.Fetch(context.Background(), store, key, false, load)
	require.NoError(t, err)
	before, ok := store.Peek(key)
	require.True(t, ok)

	time.Sleep(10 * time.Millisecond)

	_, err = cache.Fetch(context.Background(), store, key, true, load)
	require.NoError(t, err)
	after, ok := store.Peek(key)
	require.True(t, ok)

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.True(t, after.FetchedAt.After(before.FetchedAt))
}

func TestTTLExpiryTriggersRefetch(t *testing.T) {
	initTestLogger(t)
	ttls := map[cache.Kind]time.Duration{cache.KindVirtualMachine: 30 * time.Millisecond}
	store := cache.NewStore(time.Minute, 5*time.Second, ttls)
	key := vmKey("vm-1")

	var calls int32
	load := func(ctx context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "value", nil
	}

	_, err := cache.Fetch(context.Background(), store, key, false, load)
	require.NoError(t, err)

	time.Sleep(60 * time.Millisecond)

	_, err = cache.Fetch(context.Background(), store, key, false, load)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFailedRefreshKeepsPriorEntry(t *testing.T) {
	initTestLogger(t)
	store := cache.NewStore(time.Minute, 5*time.Second, nil)
	key := vmKey("vm-1")

	_, err := cache.Fetch(context.Background(), store, key, false, func(ctx context.Context) (string, error) {
		return "original", nil
	})
	require.NoError(t, err)

	_, err = cache.Fetch(context.Background(), store, key, true, func(ctx context.Context) (string, error) {
		return "", proxy_errors.ErrUpstreamUnavailable
	})
	require.ErrorIs(t, err, proxy_errors.ErrUpstreamUnavailable)

	entry, ok := store.Peek(key)
	require.True(t, ok)
	assert.Equal(t, "original", entry.Value)
}

func TestFetchTimeoutIsClassified(t *testing.T) {
	initTestLogger(t)
	store := cache.NewStore(time.Minute, 20*time.Millisecond, nil)
	key := vmKey("vm-slow")

	_, err := cache.Fetch(context.Background(), store, key, false, func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, proxy_errors.ErrFetchTimeout)
	assert.Equal(t, proxy_errors.KindTimeout, proxy_errors.Classify(err))

	_, ok := store.Peek(key)
	assert.False(t, ok, "a failed fetch must not be cached")
}

func TestAllWaitersReceiveSameErrorThenNextCallRetries(t *testing.T) {
	initTestLogger(t)
	store := cache.NewStore(time.Minute, 5*time.Second, nil)
	key := vmKey("vm-1")

	var calls int32
	gate := make(chan struct{})
	failing := func(ctx context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		<-gate
		return "", proxy_errors.ErrUpstreamUnavailable
	}

	const waiters = 5
	errs := make([]error, waiters)
	var wg sync.WaitGroup
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = cache.Fetch(context.Background(), store, key, false, failing)
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for i := 0; i < waiters; i++ {
		assert.ErrorIs(t, errs[i], proxy_errors.ErrUpstreamUnavailable)
	}

	// The in-flight marker is cleared with the failure, so the very next
	// call goes back to upstream.
	value, err := cache.Fetch(context.Background(), store, key, false, func(ctx context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "recovered", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "recovered", value)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestAbandonedCallerDoesNotCancelSharedFetch(t *testing.T) {
	initTestLogger(t)
	store := cache.NewStore(time.Minute, 5*time.Second, nil)
	key := vmKey("vm-1")

	gate := make(chan struct{})
	done := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		defer close(done)
		_, _ = cache.Fetch(ctx, store, key, false, func(ctx context.Context) (string, error) {
			<-gate
			return "value", nil
		})
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	// The detached fetch still completes and populates the cache.
	close(gate)
	assert.Eventually(t, func() bool {
		entry, ok := store.Peek(key)
		return ok && entry.Value == "value"
	}, time.Second, 10*time.Millisecond)
}

func TestSweepRemovesOnlyExpiredEntries(t *testing.T) {
	initTestLogger(t)
	ttls := map[cache.Kind]time.Duration{cache.KindVirtualMachine: 10 * time.Millisecond}
	store := cache.NewStore(time.Minute, 5*time.Second, ttls)

	_, err := cache.Fetch(context.Background(), store, vmKey("vm-short"), false, func(ctx context.Context) (string, error) {
		return "short", nil
	})
	require.NoError(t, err)
	longKey := cache.ResourceKey{Kind: cache.KindSubscriptions}
	_, err = cache.Fetch(context.Background(), store, longKey, false, func(ctx context.Context) (string, error) {
		return "long", nil
	})
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)
	removed := store.Sweep(time.Now())

	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, store.Len())
	_, ok := store.Peek(longKey)
	assert.True(t, ok)
}

func TestTTLTableMatchesKindsCaseInsensitively(t *testing.T) {
	table := cache.TTLTable(map[string]time.Duration{
		"virtualmachines": 5 * time.Minute,
		"resourcegroups":  30 * time.Minute,
		"unknownkind":     time.Hour,
	})

	assert.Equal(t, 5*time.Minute, table[cache.KindVirtualMachines])
	assert.Equal(t, 30*time.Minute, table[cache.KindResourceGroups])
	assert.Len(t, table, 2)
}
