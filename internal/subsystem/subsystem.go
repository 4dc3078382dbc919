// Package subsystem defines the contract every pluggable subsystem module
// implements to hook its resettable state and singleton declarations into a
// worker during startup.
package subsystem

import (
	"github.com/vk/tenantscope/internal/registry"
	"github.com/vk/tenantscope/internal/scope"
)

// Module is implemented by each package that owns process-global mutable
// state or scoped singletons. Register is called exactly once, before the
// registry and cache are sealed.
type Module interface {
	Register(reg *registry.Registry, scopes *scope.Cache)
}
