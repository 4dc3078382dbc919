// Package config defines the format-agnostic configuration model for a
// worker: its settings, the declared resettable entries, singleton scopes,
// tenant host mappings, and the compiled-code cache policy.
//
// The config.Model is the published contract between operators and the Go
// subsystems: startup validation guarantees the two never drift. A concrete
// HCL implementation of the Loader interface lives in the hcl package.
package config
