package graph

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caseflow/caseflow/internal/types"
)

func TestSessionPool_NeverExceedsSize(t *testing.T) {
	const size = 4
	const callers = 32

	pool := newSessionPool(size, time.Second)

	var live, maxLive int64
	var wg sync.WaitGroup

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			release, err := pool.acquire(context.Background())
			require.NoError(t, err)
			defer release()

			current := atomic.AddInt64(&live, 1)
			for {
				prev := atomic.LoadInt64(&maxLive)
				if current <= prev || atomic.CompareAndSwapInt64(&maxLive, prev, current) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt64(&live, -1)
		}()
	}

	wg.Wait()
	assert.LessOrEqual(t, atomic.LoadInt64(&maxLive), int64(size))
}

func TestSessionPool_ExhaustionTimesOut(t *testing.T) {
	pool := newSessionPool(1, 30*time.Millisecond)

	release, err := pool.acquire(context.Background())
	require.NoError(t, err)

	start := time.Now()
	_, err = pool.acquire(context.Background())
	require.Error(t, err)
	assert.Equal(t, types.GRAPH_POOL_EXHAUSTED, types.CodeOf(err))
	assert.True(t, types.IsRetryable(err), "exhaustion should be retryable")
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)

	release()
}

func TestSessionPool_BlockedCallerGetsSlotOnRelease(t *testing.T) {
	pool := newSessionPool(1, time.Second)

	release, err := pool.acquire(context.Background())
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		release2, err := pool.acquire(context.Background())
		assert.NoError(t, err)
		release2()
		close(acquired)
	}()

	// The second caller must be parked, not failed.
	select {
	case <-acquired:
		t.Fatal("second caller acquired while slot was held")
	case <-time.After(20 * time.Millisecond):
	}

	release()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second caller never acquired after release")
	}
}

func TestSessionPool_CancelledCheckoutIsNotRetryable(t *testing.T) {
	pool := newSessionPool(1, time.Second)

	release, err := pool.acquire(context.Background())
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = pool.acquire(ctx)
	require.Error(t, err)
	assert.Equal(t, types.GRAPH_POOL_EXHAUSTED, types.CodeOf(err))
	assert.False(t, types.IsRetryable(err), "caller cancellation must not be retried")
}

func TestSessionPool_ReleaseIsIdempotent(t *testing.T) {
	pool := newSessionPool(1, 50*time.Millisecond)

	release, err := pool.acquire(context.Background())
	require.NoError(t, err)

	release()
	release() // double release must not free a second slot

	release2, err := pool.acquire(context.Background())
	require.NoError(t, err)

	_, err = pool.acquire(context.Background())
	require.Error(t, err, "pool of one must be exhausted after a single checkout")

	release2()
}

func TestSessionPool_DrainWaitsForInFlight(t *testing.T) {
	pool := newSessionPool(2, time.Second)

	release, err := pool.acquire(context.Background())
	require.NoError(t, err)

	drained := make(chan error, 1)
	go func() {
		drained <- pool.drain(context.Background())
	}()

	select {
	case <-drained:
		t.Fatal("drain completed while a session was in flight")
	case <-time.After(20 * time.Millisecond):
	}

	release()

	select {
	case err := <-drained:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("drain never completed after release")
	}
}
