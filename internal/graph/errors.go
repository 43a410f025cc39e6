package graph

import (
	"context"
	"errors"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/caseflow/caseflow/internal/types"
)

// IsTransient classifies err as transient: retrying the same unit of work
// may succeed. Three sources feed the classification:
//
//   - caseflow errors explicitly marked retryable (pool exhaustion, timeouts
//     observed before any write was sent),
//   - driver errors the Neo4j driver itself marks retryable (serialization
//     conflicts, leader switches, transient cluster errors),
//   - connectivity usage errors raised when a broken connection is detected.
//
// Everything else is permanent: constraint violations, malformed queries,
// builder and validation errors must never be retried.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if types.IsRetryable(err) {
		return true
	}
	if neo4j.IsRetryable(err) {
		return true
	}
	var usageErr *neo4j.UsageError
	if errors.As(err, &usageErr) {
		return false
	}
	var connErr *neo4j.ConnectivityError
	return errors.As(err, &connErr)
}

// IsDeadline reports whether err stems from context deadline expiry or
// cancellation anywhere in its chain.
func IsDeadline(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
