package config

import (
	"github.com/zclconf/go-cty/cty"
)

// Model is the unified, format-agnostic representation of a worker's
// configuration.
type Model struct {
	Worker      Worker
	Resettables map[string]cty.Value
	Singletons  map[string]string
	Tenants     []*TenantDef
	CodeCache   CodeCache
}

// Worker holds the per-worker runtime settings.
type Worker struct {
	// ForceGC enables the forced memory reclamation pass after cleanup.
	ForceGC bool
}

// TenantDef is the declared mapping from request hosts to a tenant.
type TenantDef struct {
	Key        string
	Hosts      []string
	Attributes map[string]string
}

// CodeCache declares the compiled-code invalidation policy.
type CodeCache struct {
	Enabled bool
	// Paths lists the tenant-specific source locations whose compiled units
	// are invalidated after every request.
	Paths []string
}

// NewModel returns an empty model with initialized collections.
func NewModel() *Model {
	return &Model{
		Resettables: make(map[string]cty.Value),
		Singletons:  make(map[string]string),
	}
}
