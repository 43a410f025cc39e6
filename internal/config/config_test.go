package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caseflow/caseflow/internal/types"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	v := NewValidator()
	require.NoError(t, v.Validate(DefaultConfig()))
}

func TestValidator_Validate(t *testing.T) {
	valid := func() *Config {
		return DefaultConfig()
	}

	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(cfg *Config) {},
			wantErr: false,
		},
		{
			name:    "missing uri",
			mutate:  func(cfg *Config) { cfg.Graph.URI = "" },
			wantErr: true,
		},
		{
			name:    "missing username",
			mutate:  func(cfg *Config) { cfg.Graph.Username = "" },
			wantErr: true,
		},
		{
			name:    "missing password",
			mutate:  func(cfg *Config) { cfg.Graph.Password = "" },
			wantErr: true,
		},
		{
			name:    "unsupported uri scheme",
			mutate:  func(cfg *Config) { cfg.Graph.URI = "postgres://localhost:5432" },
			wantErr: true,
		},
		{
			name:    "zero max sessions",
			mutate:  func(cfg *Config) { cfg.Graph.MaxSessions = 0 },
			wantErr: true,
		},
		{
			name:    "negative acquire timeout",
			mutate:  func(cfg *Config) { cfg.Graph.SessionAcquireTimeout = -time.Second },
			wantErr: true,
		},
		{
			name:    "zero retry attempts",
			mutate:  func(cfg *Config) { cfg.Retry.MaxAttempts = 0 },
			wantErr: true,
		},
		{
			name: "max delay below base delay",
			mutate: func(cfg *Config) {
				cfg.Retry.BaseDelay = time.Second
				cfg.Retry.MaxDelay = 100 * time.Millisecond
			},
			wantErr: true,
		},
	}

	v := NewValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := v.Validate(cfg)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, types.CONFIG_VALIDATION_FAILED, types.CodeOf(err))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestValidator_Validate_Nil(t *testing.T) {
	err := NewValidator().Validate(nil)
	require.Error(t, err)
}

func TestLoader_Load(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "caseflow.yaml")

	content := `graph:
  uri: bolt://graph.internal:7687
  username: caseflow
  password: ${CASEFLOW_TEST_GRAPH_PASSWORD}
  database: workflow
  max_sessions: 10
  session_acquire_timeout: 2s
  connection_timeout: 15s
retry:
  max_attempts: 6
  base_delay: 25ms
  max_delay: 1s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("CASEFLOW_TEST_GRAPH_PASSWORD", "s3cret")

	cfg, err := NewLoader(NewValidator()).Load(path)
	require.NoError(t, err)

	assert.Equal(t, "bolt://graph.internal:7687", cfg.Graph.URI)
	assert.Equal(t, "caseflow", cfg.Graph.Username)
	assert.Equal(t, "s3cret", cfg.Graph.Password)
	assert.Equal(t, "workflow", cfg.Graph.Database)
	assert.Equal(t, 10, cfg.Graph.MaxSessions)
	assert.Equal(t, 2*time.Second, cfg.Graph.SessionAcquireTimeout)
	assert.Equal(t, 15*time.Second, cfg.Graph.ConnectionTimeout)
	assert.Equal(t, 6, cfg.Retry.MaxAttempts)
	assert.Equal(t, 25*time.Millisecond, cfg.Retry.BaseDelay)
	assert.Equal(t, time.Second, cfg.Retry.MaxDelay)
}

func TestLoader_Load_AppliesDefaultsForTunables(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "caseflow.yaml")

	content := `graph:
  uri: bolt://localhost:7687
  username: neo4j
  password: password
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := NewLoader(NewValidator()).Load(path)
	require.NoError(t, err)

	defaults := DefaultConfig()
	assert.Equal(t, defaults.Graph.MaxSessions, cfg.Graph.MaxSessions)
	assert.Equal(t, defaults.Graph.SessionAcquireTimeout, cfg.Graph.SessionAcquireTimeout)
	assert.Equal(t, defaults.Retry.MaxAttempts, cfg.Retry.MaxAttempts)
}

func TestLoader_Load_MissingFile(t *testing.T) {
	_, err := NewLoader(NewValidator()).Load("/nonexistent/caseflow.yaml")
	require.Error(t, err)
	assert.Equal(t, types.CONFIG_LOAD_FAILED, types.CodeOf(err))
}

func TestLoader_LoadWithDefaults_MissingFile(t *testing.T) {
	cfg, err := NewLoader(NewValidator()).LoadWithDefaults("/nonexistent/caseflow.yaml")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}
