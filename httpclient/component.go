package httpclient

import (
	"context"

	"github.com/kbukum/querykit/component"
)

// Component wraps an Adapter with lifecycle management.
type Component struct {
	adapter *Adapter
	config  Config
	opts    []Option
}

var (
	_ component.Component   = (*Component)(nil)
	_ component.Describable = (*Component)(nil)
)

// NewComponent creates a component whose adapter is built in Start.
func NewComponent(cfg Config, opts ...Option) *Component {
	cfg.ApplyDefaults()
	return &Component{config: cfg, opts: opts}
}

// Name returns the component name.
func (c *Component) Name() string {
	return c.config.Name
}

// Start builds the adapter.
func (c *Component) Start(_ context.Context) error {
	a, err := New(c.config, c.opts...)
	if err != nil {
		return err
	}
	c.adapter = a
	return nil
}

// Stop releases idle connections.
func (c *Component) Stop(ctx context.Context) error {
	if c.adapter != nil {
		return c.adapter.Close(ctx)
	}
	return nil
}

// Health reports unhealthy before Start and while the circuit is open.
func (c *Component) Health(_ context.Context) component.Health {
	h := component.Health{Name: c.Name(), Status: component.StatusHealthy}
	switch {
	case c.adapter == nil:
		h.Status = component.StatusUnhealthy
		h.Message = "not started"
	case !c.adapter.Available():
		h.Status = component.StatusDegraded
		h.Message = "circuit open"
	}
	return h
}

// Describe returns the component description.
func (c *Component) Describe() component.Description {
	return component.Description{
		Name:    c.Name(),
		Type:    "http-adapter",
		Details: c.config.BaseURL,
	}
}

// Adapter returns the adapter built by Start.
func (c *Component) Adapter() *Adapter {
	return c.adapter
}
