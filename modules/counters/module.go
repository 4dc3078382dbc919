// Package counters owns the worker's request bookkeeping state. Both values
// are process-global and mutable, which is exactly why they are registered as
// resettable entries: a long-lived worker must not let one request observe
// another's counts.
package counters

import (
	"github.com/vk/tenantscope/internal/registry"
	"github.com/vk/tenantscope/internal/scope"
)

// Module implements the subsystem.Module interface for this package.
type Module struct {
	served     int64
	lastTenant string
}

// New creates the counters subsystem.
func New() *Module {
	return &Module{}
}

// Register declares this package's mutable state with the registry.
func (m *Module) Register(reg *registry.Registry, _ *scope.Cache) {
	reg.Register("counters.served", int64(0), registry.Var(&m.served))
	reg.Register("counters.last_tenant", "", registry.Var(&m.lastTenant))
}

// Hit records a handled request for the given tenant key.
func (m *Module) Hit(tenantKey string) {
	m.served++
	m.lastTenant = tenantKey
}

// Served returns the requests counted since the last reset.
func (m *Module) Served() int64 {
	return m.served
}

// LastTenant returns the tenant key of the most recent hit since the last
// reset, or empty when none.
func (m *Module) LastTenant() string {
	return m.lastTenant
}
