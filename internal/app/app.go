package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/vk/tenantscope/internal/codecache"
	"github.com/vk/tenantscope/internal/config"
	"github.com/vk/tenantscope/internal/coordinator"
	"github.com/vk/tenantscope/internal/ctxlog"
	"github.com/vk/tenantscope/internal/metrics"
	"github.com/vk/tenantscope/internal/reclaim"
	"github.com/vk/tenantscope/internal/registry"
	"github.com/vk/tenantscope/internal/scope"
	"github.com/vk/tenantscope/internal/subsystem"
	"github.com/vk/tenantscope/internal/tenant"
	"github.com/vk/tenantscope/internal/worker"
	"github.com/vk/tenantscope/modules/connpool"
	"github.com/vk/tenantscope/modules/counters"
	"github.com/vk/tenantscope/modules/events"
	"github.com/vk/tenantscope/modules/flags"
)

// App encapsulates one worker instance: its configuration, subsystems,
// cleanup coordinator, and the demo HTTP runtime that drives them.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	config *Config
	model  *config.Model

	registry  *registry.Registry
	scopes    *scope.Cache
	tenants   *tenant.Context
	resolver  tenant.Resolver
	codeStore *codecache.MemoryStore
	reclaimer *reclaim.Reclaimer
	coord     *coordinator.Coordinator
	worker    *worker.Worker
	metrics   *metrics.Metrics

	counters *counters.Module
	flags    *flags.Module
	connpool *connpool.Module
	events   *events.Module

	httpServer   *http.Server
	healthServer *http.Server

	// mu serializes request processing: the worker model is strictly one
	// request at a time, even though net/http accepts concurrently.
	mu  sync.Mutex
	seq int64
}

// NewApp is the constructor for a worker instance. It loads the declarative
// configuration, registers every subsystem, seals and validates the registry
// and singleton cache, and wires the cleanup coordinator. Startup errors are
// programmer or deployment errors and panic; the CLI entrypoint recovers.
func NewApp(outW io.Writer, appConfig *Config, loader config.Loader, extra ...subsystem.Module) *App {
	logger := newLogger(appConfig.LogLevel, appConfig.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	model, err := loader.Load(ctx, appConfig.ConfigPath)
	if err != nil {
		// A failure to load config is a fatal startup error.
		panic(fmt.Errorf("failed to load configuration: %w", err))
	}
	logger.Debug("Configuration loaded and translated into unified model.")

	a := &App{
		outW:     outW,
		logger:   logger,
		config:   appConfig,
		model:    model,
		registry: registry.New(),
		scopes:   scope.NewCache(),
		tenants:  tenant.NewContext(),
		metrics:  metrics.New(),
		counters: counters.New(),
		flags:    flags.New(),
		connpool: connpool.New(),
		events:   events.New(),
	}

	// Register all subsystems that own resettable state or singletons, then
	// close the registration window for the rest of the process lifetime.
	for _, mod := range append(a.coreModules(), extra...) {
		mod.Register(a.registry, a.scopes)
	}
	a.registry.Seal()
	a.scopes.Seal()
	logger.Debug("All subsystem modules registered.", "resettables", a.registry.Len(), "singletons", len(a.scopes.Keys()))

	// Validate the Go registrations against the declared configuration.
	// A mismatch is a programmer error (code and config out of sync).
	if err := a.registry.Validate(ctx, model.Resettables); err != nil {
		panic(err)
	}
	declaredScopes := make(map[string]scope.Scope, len(model.Singletons))
	for key, raw := range model.Singletons {
		s, err := scope.ParseScope(raw)
		if err != nil {
			panic(fmt.Errorf("singleton '%s': %w", key, err))
		}
		declaredScopes[key] = s
	}
	if err := a.scopes.Validate(declaredScopes); err != nil {
		panic(err)
	}
	logger.Debug("Registry and singleton cache validation passed.")

	a.resolver = tenant.NewMapResolver(hostMapping(model.Tenants))

	var invalidator *codecache.Invalidator
	if model.CodeCache.Enabled {
		a.codeStore = codecache.NewMemoryStore()
		invalidator = codecache.New(a.codeStore, model.CodeCache.Paths)
		logger.Debug("Compiled-code invalidation enabled.", "paths", model.CodeCache.Paths)
	}

	a.reclaimer = reclaim.New(model.Worker.ForceGC)
	a.coord = coordinator.New(a.tenants, a.registry, a.scopes, invalidator, a.reclaimer, a.metrics)
	a.worker = worker.New(a.resolver, a.tenants, a.coord)

	return a
}

// coreModules is the definitive list of subsystems compiled into the worker.
func (a *App) coreModules() []subsystem.Module {
	return []subsystem.Module{
		a.counters,
		a.flags,
		a.connpool,
		a.events,
	}
}

// hostMapping flattens the declared tenant blocks into the host index the
// resolver uses.
func hostMapping(defs []*config.TenantDef) map[string]*tenant.Tenant {
	byHost := make(map[string]*tenant.Tenant)
	for _, def := range defs {
		t := &tenant.Tenant{Key: def.Key, Attributes: def.Attributes}
		for _, host := range def.Hosts {
			byHost[host] = t
		}
	}
	return byHost
}

// Registry returns the worker's resettable registry. Primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Scopes returns the worker's singleton cache. Primarily for testing.
func (a *App) Scopes() *scope.Cache {
	return a.scopes
}

// Coordinator returns the worker's cleanup coordinator.
func (a *App) Coordinator() *coordinator.Coordinator {
	return a.coord
}

// Worker returns the request loop.
func (a *App) Worker() *worker.Worker {
	return a.worker
}

// Tenants returns the worker's tenant context.
func (a *App) Tenants() *tenant.Context {
	return a.tenants
}

// Counters returns the counters subsystem.
func (a *App) Counters() *counters.Module {
	return a.counters
}

// Flags returns the flags subsystem.
func (a *App) Flags() *flags.Module {
	return a.flags
}
