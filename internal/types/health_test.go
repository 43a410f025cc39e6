package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHealthStatus(t *testing.T) {
	tests := []struct {
		name        string
		status      HealthStatus
		wantState   HealthState
		isHealthy   bool
		isDegraded  bool
		isUnhealthy bool
	}{
		{
			name:      "healthy",
			status:    Healthy("connected to Neo4j"),
			wantState: HealthStateHealthy,
			isHealthy: true,
		},
		{
			name:       "degraded",
			status:     Degraded("sessions draining"),
			wantState:  HealthStateDegraded,
			isDegraded: true,
		},
		{
			name:        "unhealthy",
			status:      Unhealthy("driver not initialized"),
			wantState:   HealthStateUnhealthy,
			isUnhealthy: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantState, tt.status.State)
			assert.NotEmpty(t, tt.status.Message)
			assert.Equal(t, tt.isHealthy, tt.status.IsHealthy())
			assert.Equal(t, tt.isDegraded, tt.status.IsDegraded())
			assert.Equal(t, tt.isUnhealthy, tt.status.IsUnhealthy())
			assert.False(t, tt.status.CheckedAt.IsZero())
			assert.Equal(t, string(tt.wantState), tt.status.State.String())
		})
	}
}
