package graph

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/caseflow/caseflow/internal/types"
)

// sessionPool bounds concurrent session checkouts with a weighted semaphore.
// Checkout hands out at most size slots; the caller beyond that waits up to
// acquireTimeout and then fails with a pool-exhausted error. A slot is never
// handed to two callers: release returns exactly the slot that was acquired.
type sessionPool struct {
	sem            *semaphore.Weighted
	size           int64
	acquireTimeout time.Duration
}

func newSessionPool(size int, acquireTimeout time.Duration) *sessionPool {
	return &sessionPool{
		sem:            semaphore.NewWeighted(int64(size)),
		size:           int64(size),
		acquireTimeout: acquireTimeout,
	}
}

// acquire claims one slot, blocking up to the configured timeout.
// The returned release function is idempotent.
func (p *sessionPool) acquire(ctx context.Context) (release func(), err error) {
	waitCtx, cancel := context.WithTimeout(ctx, p.acquireTimeout)
	defer cancel()

	if err := p.sem.Acquire(waitCtx, 1); err != nil {
		// Caller cancellation propagates as-is; only a full pool for the
		// whole wait window is classified as exhaustion.
		if ctx.Err() != nil {
			return nil, types.WrapError(types.GRAPH_POOL_EXHAUSTED,
				"session checkout cancelled", ctx.Err())
		}
		return nil, types.WrapRetryableError(types.GRAPH_POOL_EXHAUSTED,
			fmt.Sprintf("no session available within %s", p.acquireTimeout), err)
	}

	var once sync.Once
	return func() {
		once.Do(func() { p.sem.Release(1) })
	}, nil
}

// drain claims every slot, waiting for in-flight sessions to be released.
// Used during shutdown; respects ctx for bounded teardown.
func (p *sessionPool) drain(ctx context.Context) error {
	return p.sem.Acquire(ctx, p.size)
}
