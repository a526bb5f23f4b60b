package stream

import (
	"context"
	"fmt"

	"github.com/kbukum/querykit/component"
)

// Component runs an Engine under a component.Registry. Start opens the
// session; Stop tears the engine down.
type Component[T any] struct {
	engine *Engine[T]
}

var (
	_ component.Component   = (*Component[any])(nil)
	_ component.Describable = (*Component[any])(nil)
)

// NewComponent wraps e.
func NewComponent[T any](e *Engine[T]) *Component[T] {
	return &Component[T]{engine: e}
}

// Name returns the engine name.
func (c *Component[T]) Name() string { return c.engine.Name() }

// Engine returns the wrapped engine.
func (c *Component[T]) Engine() *Engine[T] { return c.engine }

// Start begins a session. The session outlives ctx, which usually only
// bounds startup.
func (c *Component[T]) Start(ctx context.Context) error {
	return c.engine.Execute(context.WithoutCancel(ctx))
}

// Stop closes the engine.
func (c *Component[T]) Stop(_ context.Context) error {
	return c.engine.Close()
}

// Health maps the connection status to a health report.
func (c *Component[T]) Health(_ context.Context) component.Health {
	h := component.Health{Name: c.Name()}
	switch st := c.engine.Status(); st {
	case StatusOpen:
		h.Status = component.StatusHealthy
	case StatusConnecting, StatusReconnecting, StatusError:
		h.Status = component.StatusDegraded
		h.Message = st.String()
	default:
		h.Status = component.StatusUnhealthy
		h.Message = st.String()
		if p := c.engine.State().Problem; p != nil {
			h.Message = fmt.Sprintf("%s: %s", st, p.Error())
		}
	}
	return h
}

// Describe returns the component description.
func (c *Component[T]) Describe() component.Description {
	return component.Description{
		Name:    c.Name(),
		Type:    "stream",
		Details: c.engine.static.URL(),
	}
}
