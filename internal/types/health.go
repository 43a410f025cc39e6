package types

import "time"

// HealthState classifies the outcome of a connectivity probe.
type HealthState string

const (
	HealthStateHealthy   HealthState = "healthy"
	HealthStateDegraded  HealthState = "degraded"
	HealthStateUnhealthy HealthState = "unhealthy"
)

// String returns the state name.
func (s HealthState) String() string {
	return string(s)
}

// HealthStatus is the result of probing the graph connection: the state, an
// operator-facing message, and when the probe ran.
type HealthStatus struct {
	State     HealthState `json:"state"`
	Message   string      `json:"message,omitempty"`
	CheckedAt time.Time   `json:"checked_at"`
}

func newStatus(state HealthState, message string) HealthStatus {
	return HealthStatus{State: state, Message: message, CheckedAt: time.Now()}
}

// Healthy reports a passing probe.
func Healthy(message string) HealthStatus {
	return newStatus(HealthStateHealthy, message)
}

// Degraded reports a probe that succeeded but observed impaired service,
// such as sessions draining during shutdown.
func Degraded(message string) HealthStatus {
	return newStatus(HealthStateDegraded, message)
}

// Unhealthy reports a failed probe.
func Unhealthy(message string) HealthStatus {
	return newStatus(HealthStateUnhealthy, message)
}

// IsHealthy reports whether the probe passed.
func (h HealthStatus) IsHealthy() bool {
	return h.State == HealthStateHealthy
}

// IsDegraded reports whether service was impaired.
func (h HealthStatus) IsDegraded() bool {
	return h.State == HealthStateDegraded
}

// IsUnhealthy reports whether the probe failed.
func (h HealthStatus) IsUnhealthy() bool {
	return h.State == HealthStateUnhealthy
}
