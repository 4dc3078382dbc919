// Package worker implements the sequential request loop of one long-lived
// worker instance. It is the integration point a host runtime drives: one
// Process call per unit of work, with cleanup guaranteed to run between any
// two of them.
package worker

import (
	"context"
	"fmt"

	"github.com/vk/tenantscope/internal/coordinator"
	"github.com/vk/tenantscope/internal/ctxlog"
	"github.com/vk/tenantscope/internal/tenant"
)

// Request is one inbound unit of work. Host is whatever request datum the
// tenant resolver keys on (the demo runtime uses the HTTP Host header).
type Request struct {
	ID   string
	Host string
}

// Handler runs the application logic for one request. The tenant is nil for
// central (tenant-less) requests.
type Handler func(ctx context.Context, req *Request, t *tenant.Tenant) error

// Worker processes requests strictly one at a time. It owns the tenant
// context for its lifetime and never shares it with another worker.
type Worker struct {
	resolver tenant.Resolver
	tenants  *tenant.Context
	coord    *coordinator.Coordinator
}

// New wires a worker over its collaborators.
func New(resolver tenant.Resolver, tc *tenant.Context, coord *coordinator.Coordinator) *Worker {
	return &Worker{
		resolver: resolver,
		tenants:  tc,
		coord:    coord,
	}
}

// Process handles one request to completion with the given application
// handler. The cleanup coordinator runs unconditionally when the request
// finishes, fails, or panics; early termination of the handler can never
// skip it.
func (w *Worker) Process(ctx context.Context, req *Request, handler Handler) (err error) {
	logger := ctxlog.FromContext(ctx).With("request", req.ID)
	ctx = ctxlog.WithLogger(ctx, logger)

	outcome := coordinator.Success
	defer func() {
		if rec := recover(); rec != nil {
			outcome = coordinator.Aborted
			err = fmt.Errorf("request handler panicked: %v", rec)
			logger.Error("Request aborted by panic.", "panic", rec)
		}
		w.coord.OnRequestEnd(ctx, outcome)
	}()

	t, resolveErr := w.resolver.Resolve(ctx, req.Host)
	if resolveErr != nil {
		outcome = coordinator.Failure
		return fmt.Errorf("resolving tenant for host %q: %w", req.Host, resolveErr)
	}

	if t != nil {
		if actErr := w.tenants.Activate(ctx, t); actErr != nil {
			outcome = coordinator.Failure
			return fmt.Errorf("activating tenant %q: %w", t.Key, actErr)
		}
		ctx = ctxlog.WithTenant(ctx, t.Key)
	} else {
		ctx = ctxlog.WithTenant(ctx, "")
		ctxlog.FromContext(ctx).Debug("No tenant resolved; running as central request.", "host", req.Host)
	}

	if handlerErr := handler(ctx, req, t); handlerErr != nil {
		outcome = coordinator.Failure
		return handlerErr
	}
	return nil
}

// Tick runs the cleanup sequence without a request, for host runtimes that
// recycle state on idle.
func (w *Worker) Tick(ctx context.Context) {
	w.coord.OnRequestEnd(ctx, coordinator.Tick)
}
