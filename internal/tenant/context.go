package tenant

import (
	"context"
	"fmt"

	"github.com/vk/tenantscope/internal/ctxlog"
)

// State describes the tenant context lifecycle. The only legal transitions
// are Unset -> Active (Activate) and Active -> Unset (End).
type State int

const (
	Unset State = iota
	Active
)

// String returns the state name for logging.
func (s State) String() string {
	if s == Active {
		return "active"
	}
	return "unset"
}

// TeardownFunc releases tenant-scoped resources when a context ends. Hooks
// run in registration order; a hook error is reported but never blocks the
// remaining hooks or the transition to Unset.
type TeardownFunc func(ctx context.Context, t *Tenant) error

// Context holds the active tenant for the duration of one request. A worker
// owns exactly one Context and processes requests sequentially, so no locking
// is needed; the Context must never be shared across workers.
type Context struct {
	state    State
	current  *Tenant
	teardown []TeardownFunc
}

// NewContext returns an unset tenant context.
func NewContext() *Context {
	return &Context{}
}

// OnEnd registers a teardown hook invoked every time the context ends while
// a tenant is active.
func (c *Context) OnEnd(fn TeardownFunc) {
	c.teardown = append(c.teardown, fn)
}

// State reports whether a tenant is currently active.
func (c *Context) State() State {
	return c.state
}

// Current returns the active tenant, or nil when the context is unset.
func (c *Context) Current() *Tenant {
	return c.current
}

// Activate makes t the active tenant. If a tenant is already active the
// previous context is ended first; a context is never silently overwritten,
// since that is exactly how state bleeds between requests.
func (c *Context) Activate(ctx context.Context, t *Tenant) error {
	if t == nil {
		return fmt.Errorf("cannot activate a nil tenant")
	}
	logger := ctxlog.FromContext(ctx)

	if c.state == Active {
		logger.Warn("Activating tenant over a live context; ending previous tenant first.",
			"previous", c.current.Key, "next", t.Key)
		if err := c.End(ctx); err != nil {
			return fmt.Errorf("ending previous tenant context: %w", err)
		}
	}

	c.current = t
	c.state = Active
	logger.Debug("Tenant context activated.", "tenant", t.Key)
	return nil
}

// End detaches the active tenant and runs teardown hooks. Ending an already
// unset context is a no-op. The context always reaches Unset, even when a
// teardown hook fails; hook errors are joined and returned for logging.
func (c *Context) End(ctx context.Context) error {
	if c.state == Unset {
		return nil
	}
	logger := ctxlog.FromContext(ctx)

	ended := c.current
	c.current = nil
	c.state = Unset

	var firstErr error
	for _, fn := range c.teardown {
		if err := fn(ctx, ended); err != nil {
			logger.Error("Tenant teardown hook failed.", "tenant", ended.Key, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("tenant %q teardown: %w", ended.Key, err)
			}
		}
	}

	logger.Debug("Tenant context ended.", "tenant", ended.Key)
	return firstErr
}
