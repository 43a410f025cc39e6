// Package graph provides the connection layer over the Neo4j driver:
// a pooled, session-oriented client with explicit transaction control.
//
// Sessions are single-owner. A checked-out Session must never be shared by
// concurrent units of work; the pool guarantees a session is handed to at
// most one caller at a time. Transaction retry policy lives one level up in
// the txn package; this layer performs no implicit retries beyond the
// initial connect handshake.
package graph

import (
	"context"
	"time"

	"github.com/caseflow/caseflow/internal/types"
)

// AccessMode selects the routing mode for a session.
type AccessMode int

const (
	// ModeRead routes the session to a read replica when available.
	ModeRead AccessMode = iota
	// ModeWrite routes the session to the cluster leader.
	ModeWrite
)

// String returns the mode name for logging.
func (m AccessMode) String() string {
	if m == ModeWrite {
		return "write"
	}
	return "read"
}

// Client provides access to a graph database. Implementations must be
// thread-safe for concurrent access.
type Client interface {
	// Connect establishes a connection to the graph database.
	// Returns an error if connection fails.
	Connect(ctx context.Context) error

	// Close drains in-flight sessions and releases the underlying
	// connection. Idempotent; safe to call on a never-connected client.
	Close(ctx context.Context) error

	// Health returns the current health status of the database connection.
	Health(ctx context.Context) types.HealthStatus

	// Session checks out an exclusive session from the pool. Blocks up to
	// the configured acquisition timeout, then fails with a pool-exhausted
	// error. The caller owns the session until Close is called on it.
	Session(ctx context.Context, mode AccessMode) (Session, error)
}

// Session is a borrowed, single-owner conversational handle. Close returns
// the session to the pool; a session must not be used after Close.
type Session interface {
	// Run executes a single auto-commit query.
	Run(ctx context.Context, cypher string, params map[string]any) (Result, error)

	// BeginTx opens an explicit transaction scoped to this session.
	BeginTx(ctx context.Context) (Tx, error)

	// Close releases the session back to the pool. Idempotent.
	Close(ctx context.Context) error
}

// Tx is a bounded unit of work. After Commit or Rollback the transaction is
// terminal and every further call fails; it is never reused.
type Tx interface {
	Run(ctx context.Context, cypher string, params map[string]any) (Result, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Result represents the collected result of a Cypher query execution.
type Result struct {
	// Records contains the result rows as maps of column name to value.
	Records []map[string]any

	// Columns contains the names of the columns in the result set.
	Columns []string

	// Summary contains metadata about the query execution.
	Summary Summary
}

// Summary provides metadata about query execution.
type Summary struct {
	// ExecutionTime is the duration of query execution.
	ExecutionTime time.Duration

	// NodesCreated is the number of nodes created by the query.
	NodesCreated int

	// NodesDeleted is the number of nodes deleted by the query.
	NodesDeleted int

	// RelationshipsCreated is the number of relationships created.
	RelationshipsCreated int

	// RelationshipsDeleted is the number of relationships deleted.
	RelationshipsDeleted int

	// PropertiesSet is the number of properties set.
	PropertiesSet int
}

// Config contains configuration options for graph database clients.
type Config struct {
	// URI is the connection URI for the graph database.
	// For Neo4j, use:
	//   - "bolt://host:port" for unencrypted connections
	//   - "bolt+s://host:port" for TLS encrypted connections
	//   - "neo4j://" or "neo4j+s://" for routing
	URI string

	// Username for authentication.
	Username string

	// Password for authentication.
	Password string

	// Database name to connect to.
	// Empty string uses the default database.
	Database string

	// MaxSessions bounds concurrently checked-out sessions.
	MaxSessions int

	// SessionAcquireTimeout is the maximum time a checkout waits for a
	// free session before failing.
	SessionAcquireTimeout time.Duration

	// ConnectionTimeout is the maximum time to wait for the initial
	// connection and connectivity verification.
	ConnectionTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults for a local server.
func DefaultConfig() Config {
	return Config{
		URI:                   "bolt://localhost:7687",
		Username:              "neo4j",
		Password:              "password",
		Database:              "",
		MaxSessions:           25,
		SessionAcquireTimeout: 5 * time.Second,
		ConnectionTimeout:     30 * time.Second,
	}
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if c.URI == "" {
		return types.NewError(types.GRAPH_INVALID_CONFIG, "URI cannot be empty")
	}
	if c.Username == "" {
		return types.NewError(types.GRAPH_INVALID_CONFIG, "Username cannot be empty")
	}
	if c.Password == "" {
		return types.NewError(types.GRAPH_INVALID_CONFIG, "Password cannot be empty")
	}
	if c.MaxSessions <= 0 {
		return types.NewError(types.GRAPH_INVALID_CONFIG, "MaxSessions must be positive")
	}
	if c.SessionAcquireTimeout <= 0 {
		return types.NewError(types.GRAPH_INVALID_CONFIG, "SessionAcquireTimeout must be positive")
	}
	if c.ConnectionTimeout <= 0 {
		return types.NewError(types.GRAPH_INVALID_CONFIG, "ConnectionTimeout must be positive")
	}
	return nil
}
