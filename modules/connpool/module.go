// Package connpool provides the per-tenant connection handle as a
// request-scoped singleton: memoized for the duration of one request,
// evicted and closed by the coordinator before the next request begins.
package connpool

import (
	"context"
	"fmt"

	"github.com/vk/tenantscope/internal/registry"
	"github.com/vk/tenantscope/internal/scope"
	"github.com/vk/tenantscope/internal/tenant"
)

// Key is the singleton key this module declares.
const Key = "db"

// Module implements the subsystem.Module interface for this package.
type Module struct{}

// New creates the connpool subsystem.
func New() *Module {
	return &Module{}
}

// Register declares the connection singleton with request lifetime.
func (m *Module) Register(_ *registry.Registry, scopes *scope.Cache) {
	scopes.Declare(Key, scope.RequestLifetime)
}

// Conn is a tenant-bound connection handle. Close releases it; the scope
// cache calls Close on eviction.
type Conn struct {
	TenantKey string
	closed    bool
}

// Close implements io.Closer.
func (c *Conn) Close() error {
	if c.closed {
		return fmt.Errorf("connection for tenant %q already closed", c.TenantKey)
	}
	c.closed = true
	return nil
}

// Closed reports whether the handle was released.
func (c *Conn) Closed() bool {
	return c.closed
}

// Acquire returns the request's connection, constructing one bound to the
// active tenant on first use. Central requests get a connection with an
// empty tenant key.
func (m *Module) Acquire(ctx context.Context, scopes *scope.Cache, t *tenant.Tenant) (*Conn, error) {
	inst, err := scopes.Get(ctx, Key, func(context.Context) (any, error) {
		key := ""
		if t != nil {
			key = t.Key
		}
		return &Conn{TenantKey: key}, nil
	})
	if err != nil {
		return nil, err
	}
	conn, ok := inst.(*Conn)
	if !ok {
		return nil, fmt.Errorf("singleton '%s' holds %T, expected *connpool.Conn", Key, inst)
	}
	return conn, nil
}
