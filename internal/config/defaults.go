package config

import "time"

// DefaultConfig returns the configuration used when no config file exists.
// The graph credentials intentionally match a stock local Neo4j so a fresh
// checkout works against `docker run neo4j` without a config file.
func DefaultConfig() *Config {
	return &Config{
		Graph: GraphConfig{
			URI:                   "bolt://localhost:7687",
			Username:              "neo4j",
			Password:              "password",
			Database:              "",
			MaxSessions:           25,
			SessionAcquireTimeout: 5 * time.Second,
			ConnectionTimeout:     30 * time.Second,
		},
		Retry: RetryConfig{
			MaxAttempts: 4,
			BaseDelay:   50 * time.Millisecond,
			MaxDelay:    2 * time.Second,
		},
	}
}
