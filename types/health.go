package types

// Status is the operational state of a component.
type Status string

// Health states, from best to worst.
const (
	// StatusHealthy indicates the component is fully operational.
	StatusHealthy Status = "healthy"

	// StatusDegraded indicates the component serves requests but some data
	// or dependency is missing.
	StatusDegraded Status = "degraded"

	// StatusUnhealthy indicates the component cannot serve requests.
	StatusUnhealthy Status = "unhealthy"
)

func (s Status) severity() int {
	switch s {
	case StatusHealthy:
		return 0
	case StatusDegraded:
		return 1
	default:
		return 2
	}
}

// Worse reports whether s is a worse state than other. Unknown states count
// as unhealthy.
func (s Status) Worse(other Status) bool {
	return s.severity() > other.severity()
}

// HealthStatus is the result of a health check.
type HealthStatus struct {
	// Status is the current health state.
	Status Status `json:"status"`

	// Message is a human-readable description of the state.
	Message string `json:"message,omitempty"`

	// Details carries diagnostic values such as counters or error text.
	Details map[string]any `json:"details,omitempty"`
}

// IsHealthy returns true if the status is StatusHealthy.
func (h HealthStatus) IsHealthy() bool {
	return h.Status == StatusHealthy
}

// IsDegraded returns true if the status is StatusDegraded.
func (h HealthStatus) IsDegraded() bool {
	return h.Status == StatusDegraded
}

// IsUnhealthy returns true if the status is StatusUnhealthy.
func (h HealthStatus) IsUnhealthy() bool {
	return h.Status == StatusUnhealthy
}

// Serving reports whether the component can answer requests, i.e. it is
// healthy or degraded.
func (h HealthStatus) Serving() bool {
	return h.Status == StatusHealthy || h.Status == StatusDegraded
}

// NewHealthyStatus creates a healthy status.
func NewHealthyStatus(message string) HealthStatus {
	return HealthStatus{Status: StatusHealthy, Message: message}
}

// NewDegradedStatus creates a degraded status.
func NewDegradedStatus(message string, details map[string]any) HealthStatus {
	return HealthStatus{Status: StatusDegraded, Message: message, Details: details}
}

// NewUnhealthyStatus creates an unhealthy status.
func NewUnhealthyStatus(message string, details map[string]any) HealthStatus {
	return HealthStatus{Status: StatusUnhealthy, Message: message, Details: details}
}
