// Package config loads and validates the caseflow configuration surface.
//
// Configuration is an explicit value constructed at process startup and
// passed down by reference; nothing in the persistence core reads it from
// global state.
package config

import "time"

// Config is the root configuration for the caseflow persistence core.
type Config struct {
	Graph GraphConfig `mapstructure:"graph"`
	Retry RetryConfig `mapstructure:"retry"`
}

// GraphConfig carries the graph database connection settings.
type GraphConfig struct {
	// URI is the bolt/neo4j connection URI, e.g. "bolt://localhost:7687"
	// or "neo4j+s://cluster.example.com" for routed TLS connections.
	URI      string `mapstructure:"uri" validate:"required"`
	Username string `mapstructure:"username" validate:"required"`
	Password string `mapstructure:"password" validate:"required"`

	// Database selects the target database; empty uses the server default.
	Database string `mapstructure:"database"`

	// MaxSessions bounds the number of concurrently checked-out sessions.
	MaxSessions int `mapstructure:"max_sessions" validate:"gt=0"`

	// SessionAcquireTimeout is how long a caller waits for a free session
	// before checkout fails with a pool-exhausted error.
	SessionAcquireTimeout time.Duration `mapstructure:"session_acquire_timeout" validate:"gt=0"`

	// ConnectionTimeout bounds the initial connect and connectivity checks.
	ConnectionTimeout time.Duration `mapstructure:"connection_timeout" validate:"gt=0"`
}

// RetryConfig controls transient-failure retries in the transaction manager.
type RetryConfig struct {
	// MaxAttempts is the total attempt budget, first try included.
	MaxAttempts int `mapstructure:"max_attempts" validate:"gte=1"`

	// BaseDelay is the backoff for the first retry; subsequent retries
	// double it up to MaxDelay, with jitter applied on top.
	BaseDelay time.Duration `mapstructure:"base_delay" validate:"gt=0"`
	MaxDelay  time.Duration `mapstructure:"max_delay" validate:"gt=0,gtefield=BaseDelay"`
}
