// Package txn wraps units of work in transaction boundaries with bounded
// retry of transient failures.
//
// A unit of work is retried as a whole: a failed attempt is rolled back and
// a fresh transaction is opened for the next attempt, never resumed. Work
// functions must therefore be safe to invoke more than once and must not
// perform non-idempotent external side effects.
package txn

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/caseflow/caseflow/internal/graph"
	"github.com/caseflow/caseflow/internal/types"
)

// Work is a unit of work executed inside one transaction attempt.
// The transaction is committed when Work returns nil and rolled back
// otherwise; Work must not call Commit or Rollback itself.
type Work func(tx graph.Tx) (any, error)

// Policy bounds the retry loop.
type Policy struct {
	// MaxAttempts is the total attempt budget, first try included.
	MaxAttempts int

	// BaseDelay is the backoff before the first retry; it doubles per
	// retry up to MaxDelay, with up to 50% random jitter added.
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// DefaultPolicy returns the retry policy used when none is supplied.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 4,
		BaseDelay:   50 * time.Millisecond,
		MaxDelay:    2 * time.Second,
	}
}

// Manager runs units of work inside transactions on pooled sessions.
// Safe for concurrent use.
type Manager struct {
	client graph.Client
	policy Policy
	logger *slog.Logger

	// sleep is swapped in tests to avoid real backoff waits.
	sleep func(ctx context.Context, d time.Duration) error
}

// Option configures a Manager.
type Option func(*Manager)

// WithPolicy overrides the retry policy.
func WithPolicy(policy Policy) Option {
	return func(m *Manager) {
		m.policy = policy
	}
}

// WithLogger sets the structured logger for retry events.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a transaction manager over the given client.
func NewManager(client graph.Client, opts ...Option) *Manager {
	m := &Manager{
		client: client,
		policy: DefaultPolicy(),
		logger: slog.Default(),
		sleep:  sleepCtx,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ExecuteRead runs work inside a read transaction with transient retries.
func (m *Manager) ExecuteRead(ctx context.Context, work Work) (any, error) {
	return m.execute(ctx, graph.ModeRead, work)
}

// ExecuteWrite runs work inside a write transaction with transient retries.
func (m *Manager) ExecuteWrite(ctx context.Context, work Work) (any, error) {
	return m.execute(ctx, graph.ModeWrite, work)
}

// execute is the bounded retry loop. Each attempt checks out a fresh session
// and opens a fresh transaction; permanent failures propagate immediately,
// transient ones back off and re-run the whole unit of work.
func (m *Manager) execute(ctx context.Context, mode graph.AccessMode, work Work) (any, error) {
	var lastErr error

	for attempt := 1; attempt <= m.policy.MaxAttempts; attempt++ {
		result, err := m.attempt(ctx, mode, work)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !graph.IsTransient(err) {
			return nil, err
		}
		if attempt == m.policy.MaxAttempts {
			break
		}

		delay := m.backoff(attempt)
		m.logger.Warn("transient transaction failure, retrying",
			"attempt", attempt,
			"max_attempts", m.policy.MaxAttempts,
			"retry_in", delay,
			"error", err)

		if err := m.sleep(ctx, delay); err != nil {
			return nil, types.WrapError(types.TX_FAILED,
				"retry wait cancelled", err)
		}
	}

	return nil, types.WrapError(types.TX_RETRIES_EXHAUSTED,
		"transaction retry budget exhausted", lastErr)
}

// attempt runs exactly one transaction: checkout, begin, work, commit.
// Rollback is attempted on every failure path; the session always goes back
// to the pool.
func (m *Manager) attempt(ctx context.Context, mode graph.AccessMode, work Work) (result any, err error) {
	session, err := m.client.Session(ctx, mode)
	if err != nil {
		return nil, err
	}
	defer session.Close(ctx)

	tx, err := session.BeginTx(ctx)
	if err != nil {
		return nil, err
	}

	result, err = work(tx)
	if err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			m.logger.Warn("rollback failed after work error", "error", rbErr)
		}
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		// Commit failures are not rolled back here; the driver has already
		// terminated the transaction. Whether the error is retried depends
		// on its classification: a deadline during commit stays permanent
		// because the commit may have landed.
		return nil, err
	}

	return result, nil
}

// backoff computes the delay before the given retry with exponential growth
// and up to 50% jitter.
func (m *Manager) backoff(attempt int) time.Duration {
	delay := m.policy.BaseDelay << (attempt - 1)
	if delay > m.policy.MaxDelay || delay <= 0 {
		delay = m.policy.MaxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(delay)/2 + 1))
	return delay + jitter
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
