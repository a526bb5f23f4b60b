package component

import "context"

// HealthStatus represents the health state of a component.
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusUnhealthy HealthStatus = "unhealthy"
	StatusDegraded  HealthStatus = "degraded"
)

// Health holds health information for a component.
type Health struct {
	Name    string       `json:"name"`
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
}

// Component is a lifecycle-managed piece of the client: an HTTP adapter or a
// stream engine.
type Component interface {
	// Name returns the unique registration name.
	Name() string
	Start(ctx context.Context) error
	// Stop releases resources. It must be safe after a failed Start.
	Stop(ctx context.Context) error
	Health(ctx context.Context) Health
}

// Description holds summary information printed at startup.
type Description struct {
	Name string
	// Type is "http-adapter", "stream", etc.
	Type    string
	Details string
}

// Describable is optionally implemented by components to self-report.
type Describable interface {
	Describe() Description
}
