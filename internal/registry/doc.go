// Package registry tracks every process-global mutable value a worker is
// allowed to carry, together with its declared default.
//
// Each subsystem that owns resettable state registers it here during startup
// (name, default value, bind function). After the registry is sealed, no new
// entries can appear; the cleanup coordinator replays every default after
// each request so that no request can observe state mutated by a previous
// one.
//
// During application startup the registry is validated against the entries
// declared in the worker configuration, so the Go code and the published
// config are guaranteed to be in sync before the first request is served.
package registry
