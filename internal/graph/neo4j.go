package graph

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/caseflow/caseflow/internal/types"
)

// Neo4jClient implements Client for Neo4j graph databases.
// It owns the driver handle and a bounded session pool.
type Neo4jClient struct {
	config Config
	logger *slog.Logger

	mu     sync.Mutex
	driver neo4j.DriverWithContext
	pool   *sessionPool
	closed bool

	// newDriver is swapped in tests to observe driver lifecycle.
	newDriver func(auth neo4j.AuthToken, configurer func(*neo4j.Config)) (neo4j.DriverWithContext, error)
}

// Neo4jOption configures a Neo4jClient.
type Neo4jOption func(*Neo4jClient)

// WithLogger sets the structured logger used for lifecycle events.
func WithLogger(logger *slog.Logger) Neo4jOption {
	return func(c *Neo4jClient) {
		c.logger = logger
	}
}

// NewNeo4jClient creates a new Neo4j client with the given configuration.
// The client must be connected via Connect() before use.
func NewNeo4jClient(config Config, opts ...Neo4jOption) (*Neo4jClient, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	c := &Neo4jClient{
		config: config,
		logger: slog.Default(),
	}
	c.newDriver = func(auth neo4j.AuthToken, configurer func(*neo4j.Config)) (neo4j.DriverWithContext, error) {
		return neo4j.NewDriverWithContext(c.config.URI, auth, configurer)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Connect establishes a connection to the Neo4j database.
// Uses exponential backoff for connection retries; authentication failures
// and unreachable endpoints surface as GRAPH_CONNECTION_FAILED once the
// handshake budget is spent.
func (c *Neo4jClient) Connect(ctx context.Context) error {
	auth := neo4j.BasicAuth(c.config.Username, c.config.Password, "")

	driverConfig := func(config *neo4j.Config) {
		config.MaxConnectionPoolSize = c.config.MaxSessions
		config.ConnectionAcquisitionTimeout = c.config.SessionAcquireTimeout
		// Encryption is controlled by the URI scheme (bolt:// vs bolt+s://).
	}

	var driver neo4j.DriverWithContext
	var lastErr error
	maxRetries := 5
	baseDelay := 100 * time.Millisecond

	for attempt := 0; attempt < maxRetries; attempt++ {
		var err error
		driver, err = c.newDriver(auth, driverConfig)
		if err == nil {
			verifyCtx, cancel := context.WithTimeout(ctx, c.config.ConnectionTimeout)
			err = driver.VerifyConnectivity(verifyCtx)
			cancel()
			if err == nil {
				c.mu.Lock()
				c.driver = driver
				c.pool = newSessionPool(c.config.MaxSessions, c.config.SessionAcquireTimeout)
				c.closed = false
				c.mu.Unlock()

				c.logger.Info("graph connection established",
					"uri", c.config.URI,
					"database", c.config.Database,
					"max_sessions", c.config.MaxSessions)
				return nil
			}

			// The driver allocated a connection pool even though the
			// handshake failed; release it before the next attempt.
			if closeErr := driver.Close(ctx); closeErr != nil {
				c.logger.Warn("failed to close driver after failed handshake", "error", closeErr)
			}
		}

		lastErr = err

		if ctx.Err() != nil {
			return types.WrapError(types.GRAPH_CONNECTION_FAILED,
				"connection attempt cancelled", ctx.Err())
		}

		// Backoff delay: baseDelay * 2^attempt, capped by the connect timeout.
		delay := baseDelay * time.Duration(math.Pow(2, float64(attempt)))
		if delay > c.config.ConnectionTimeout {
			delay = c.config.ConnectionTimeout
		}

		c.logger.Warn("graph connection attempt failed",
			"attempt", attempt+1,
			"retry_in", delay,
			"error", err)

		select {
		case <-time.After(delay):
			continue
		case <-ctx.Done():
			return types.WrapError(types.GRAPH_CONNECTION_FAILED,
				"connection attempt cancelled", ctx.Err())
		}
	}

	return types.WrapError(types.GRAPH_CONNECTION_FAILED,
		fmt.Sprintf("failed to connect after %d attempts", maxRetries), lastErr)
}

// Close drains in-flight sessions, then releases the driver. Idempotent.
func (c *Neo4jClient) Close(ctx context.Context) error {
	c.mu.Lock()
	driver := c.driver
	pool := c.pool
	c.driver = nil
	c.pool = nil
	c.closed = true
	c.mu.Unlock()

	if driver == nil {
		return nil
	}

	// Wait for borrowed sessions to come back before pulling the driver out
	// from under them. A dead caller holding a session is bounded by ctx.
	if pool != nil {
		if err := pool.drain(ctx); err != nil {
			c.logger.Warn("teardown proceeding with sessions still in flight", "error", err)
		}
	}

	if err := driver.Close(ctx); err != nil {
		return types.WrapError(types.GRAPH_CONNECTION_CLOSED,
			"failed to close driver", err)
	}

	c.logger.Info("graph connection closed", "uri", c.config.URI)
	return nil
}

// Health returns the current health status of the Neo4j connection.
func (c *Neo4jClient) Health(ctx context.Context) types.HealthStatus {
	c.mu.Lock()
	driver := c.driver
	c.mu.Unlock()

	if driver == nil {
		return types.Unhealthy("driver not initialized")
	}

	healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := driver.VerifyConnectivity(healthCtx); err != nil {
		return types.Unhealthy(fmt.Sprintf("connectivity check failed: %v", err))
	}

	return types.Healthy("connected to Neo4j")
}

// Session checks out an exclusive session. The checkout blocks up to the
// configured acquisition timeout, then fails with GRAPH_POOL_EXHAUSTED.
func (c *Neo4jClient) Session(ctx context.Context, mode AccessMode) (Session, error) {
	c.mu.Lock()
	driver := c.driver
	pool := c.pool
	c.mu.Unlock()

	if driver == nil {
		return nil, types.NewError(types.GRAPH_CONNECTION_CLOSED, "driver not connected")
	}

	release, err := pool.acquire(ctx)
	if err != nil {
		return nil, err
	}

	accessMode := neo4j.AccessModeRead
	if mode == ModeWrite {
		accessMode = neo4j.AccessModeWrite
	}

	sess := driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: c.config.Database,
		AccessMode:   accessMode,
	})

	return &neo4jSession{
		sess:    sess,
		release: release,
		logger:  c.logger,
	}, nil
}

// neo4jSession adapts a driver session and ties its lifetime to a pool slot.
type neo4jSession struct {
	sess    neo4j.SessionWithContext
	release func()
	logger  *slog.Logger

	mu     sync.Mutex
	closed bool
}

// Run executes a single auto-commit query on this session.
func (s *neo4jSession) Run(ctx context.Context, cypher string, params map[string]any) (Result, error) {
	start := time.Now()

	result, err := s.sess.Run(ctx, cypher, params)
	if err != nil {
		return Result{}, wrapQueryError(ctx, err)
	}

	records, err := result.Collect(ctx)
	if err != nil {
		return Result{}, wrapQueryError(ctx, err)
	}

	summary, err := result.Consume(ctx)
	if err != nil {
		return Result{}, wrapQueryError(ctx, err)
	}

	converted := convertResult(records, summary)
	converted.Summary.ExecutionTime = time.Since(start)
	return converted, nil
}

// BeginTx opens an explicit transaction scoped to this session.
func (s *neo4jSession) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.sess.BeginTransaction(ctx)
	if err != nil {
		return nil, wrapQueryError(ctx, err)
	}
	return &neo4jTx{tx: tx}, nil
}

// Close releases the session back to the pool. Idempotent.
func (s *neo4jSession) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	err := s.sess.Close(ctx)
	s.release()
	if err != nil {
		return types.WrapError(types.GRAPH_CONNECTION_CLOSED, "failed to close session", err)
	}
	return nil
}

// neo4jTx adapts a driver explicit transaction. Terminal state is tracked so
// a committed or rolled-back transaction is never reused.
type neo4jTx struct {
	tx neo4j.ExplicitTransaction

	mu       sync.Mutex
	terminal bool
}

func (t *neo4jTx) Run(ctx context.Context, cypher string, params map[string]any) (Result, error) {
	t.mu.Lock()
	terminal := t.terminal
	t.mu.Unlock()
	if terminal {
		return Result{}, types.NewError(types.TX_FAILED, "transaction already terminated")
	}

	start := time.Now()

	result, err := t.tx.Run(ctx, cypher, params)
	if err != nil {
		return Result{}, wrapQueryError(ctx, err)
	}

	records, err := result.Collect(ctx)
	if err != nil {
		return Result{}, wrapQueryError(ctx, err)
	}

	summary, err := result.Consume(ctx)
	if err != nil {
		return Result{}, wrapQueryError(ctx, err)
	}

	converted := convertResult(records, summary)
	converted.Summary.ExecutionTime = time.Since(start)
	return converted, nil
}

func (t *neo4jTx) Commit(ctx context.Context) error {
	t.mu.Lock()
	if t.terminal {
		t.mu.Unlock()
		return types.NewError(types.TX_FAILED, "transaction already terminated")
	}
	t.terminal = true
	t.mu.Unlock()

	if err := t.tx.Commit(ctx); err != nil {
		return wrapQueryError(ctx, err)
	}
	return nil
}

func (t *neo4jTx) Rollback(ctx context.Context) error {
	t.mu.Lock()
	if t.terminal {
		t.mu.Unlock()
		return nil
	}
	t.terminal = true
	t.mu.Unlock()

	if err := t.tx.Rollback(ctx); err != nil {
		return wrapQueryError(ctx, err)
	}
	return nil
}

// wrapQueryError classifies a driver failure. Deadline expiry is reported as
// a query timeout; the transient bit is decided by the driver's own
// retryability signal so serialization conflicts and leader changes retry
// while constraint violations do not.
func wrapQueryError(ctx context.Context, err error) error {
	if IsDeadline(err) || ctx.Err() != nil {
		return types.WrapError(types.GRAPH_QUERY_TIMEOUT, "query deadline exceeded", err)
	}
	if neo4j.IsRetryable(err) {
		return types.WrapRetryableError(types.GRAPH_QUERY_FAILED, "query execution failed", err)
	}
	return types.WrapError(types.GRAPH_QUERY_FAILED, "query execution failed", err)
}

// convertResult converts driver records and summary to the Result format.
func convertResult(records []*neo4j.Record, summary neo4j.ResultSummary) Result {
	result := Result{
		Records: make([]map[string]any, 0, len(records)),
		Columns: []string{},
	}

	if len(records) > 0 {
		result.Columns = records[0].Keys
	}

	for _, record := range records {
		result.Records = append(result.Records, record.AsMap())
	}

	if summary != nil && summary.Counters() != nil {
		counters := summary.Counters()
		result.Summary = Summary{
			NodesCreated:         counters.NodesCreated(),
			NodesDeleted:         counters.NodesDeleted(),
			RelationshipsCreated: counters.RelationshipsCreated(),
			RelationshipsDeleted: counters.RelationshipsDeleted(),
			PropertiesSet:        counters.PropertiesSet(),
		}
	}

	return result
}
