// Package flags owns the worker's runtime feature toggles. A request may
// flip a flag for its own duration (for example a tenant forcing maintenance
// mode); the declared defaults come back before the next request starts.
package flags

import (
	"github.com/vk/tenantscope/internal/registry"
	"github.com/vk/tenantscope/internal/scope"
)

// Module implements the subsystem.Module interface for this package.
type Module struct {
	maintenance bool
	verbose     bool
}

// New creates the flags subsystem.
func New() *Module {
	return &Module{}
}

// Register declares the flag defaults with the registry.
func (m *Module) Register(reg *registry.Registry, _ *scope.Cache) {
	reg.Register("flags.maintenance", false, registry.Var(&m.maintenance))
	reg.Register("flags.verbose", false, registry.Var(&m.verbose))
}

// SetMaintenance flips the maintenance flag for the current request.
func (m *Module) SetMaintenance(on bool) {
	m.maintenance = on
}

// Maintenance reports the maintenance flag.
func (m *Module) Maintenance() bool {
	return m.maintenance
}

// SetVerbose flips the verbose flag for the current request.
func (m *Module) SetVerbose(on bool) {
	m.verbose = on
}

// Verbose reports the verbose flag.
func (m *Module) Verbose() bool {
	return m.verbose
}
