// Package coordinator orchestrates end-of-request cleanup for a worker. It is
// the single place that knows the teardown order, and its one correctness
// property is that every step runs after every request, no matter what the
// request or an earlier step did.
package coordinator

import (
	"context"
	"fmt"

	"github.com/vk/tenantscope/internal/codecache"
	"github.com/vk/tenantscope/internal/ctxlog"
	"github.com/vk/tenantscope/internal/metrics"
	"github.com/vk/tenantscope/internal/reclaim"
	"github.com/vk/tenantscope/internal/registry"
	"github.com/vk/tenantscope/internal/scope"
	"github.com/vk/tenantscope/internal/tenant"
)

// Outcome classifies the unit of work that just finished.
type Outcome int

const (
	Success Outcome = iota
	Failure
	Aborted
	Tick
)

// String returns the outcome label used in logs and metrics.
func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Failure:
		return "failure"
	case Aborted:
		return "aborted"
	default:
		return "tick"
	}
}

// Coordinator runs the fixed cleanup sequence after every request, task, or
// idle tick. Later steps assume earlier ones completed, so the order is not
// configurable.
type Coordinator struct {
	tenants     *tenant.Context
	registry    *registry.Registry
	scopes      *scope.Cache
	invalidator *codecache.Invalidator
	reclaimer   *reclaim.Reclaimer
	metrics     *metrics.Metrics

	unsafe bool
}

// New wires a Coordinator over the worker's subsystems. The invalidator may
// be nil when compiled-code invalidation is disabled.
func New(
	tc *tenant.Context,
	reg *registry.Registry,
	scopes *scope.Cache,
	invalidator *codecache.Invalidator,
	reclaimer *reclaim.Reclaimer,
	m *metrics.Metrics,
) *Coordinator {
	return &Coordinator{
		tenants:     tc,
		registry:    reg,
		scopes:      scopes,
		invalidator: invalidator,
		reclaimer:   reclaimer,
		metrics:     m,
	}
}

// Unsafe reports whether a cleanup step could not restore its subsystem to
// the default state. An unsafe worker should be drained and recycled; the
// readiness probe keys off this flag.
func (c *Coordinator) Unsafe() bool {
	return c.unsafe
}

// OnRequestEnd runs the cleanup sequence. It is invoked exactly once per
// completed unit of work, for every outcome, and never returns an error:
// each step is individually fault-isolated, because partial cleanup is
// strictly worse than best-effort full cleanup.
func (c *Coordinator) OnRequestEnd(ctx context.Context, outcome Outcome) {
	logger := ctxlog.FromContext(ctx)
	tenantActive := c.tenants.State() == tenant.Active
	logger.Debug("Cleanup starting.", "outcome", outcome.String(), "tenant_active", tenantActive)

	c.metrics.CleanupRuns.WithLabelValues(outcome.String()).Inc()

	c.step(ctx, "end_tenant_context", tenantActive, true, func(ctx context.Context) error {
		return c.tenants.End(ctx)
	})

	c.step(ctx, "reset_registry", tenantActive, true, func(ctx context.Context) error {
		err := c.registry.ResetAll(ctx)
		c.metrics.RegistryResets.Add(float64(c.registry.Len()))
		return err
	})

	c.step(ctx, "evict_singletons", tenantActive, true, func(ctx context.Context) error {
		before := c.scopes.Live()
		err := c.scopes.EvictAllRequestScoped(ctx)
		if evicted := before - c.scopes.Live(); evicted > 0 {
			c.metrics.SingletonEvictions.Add(float64(evicted))
		}
		return err
	})

	if c.invalidator != nil {
		// Cache coherence, not correctness: a failure here never marks the
		// worker unsafe.
		c.step(ctx, "invalidate_code_cache", tenantActive, false, func(ctx context.Context) error {
			return c.invalidator.InvalidateAll(ctx)
		})
	}

	c.step(ctx, "reclaim_memory", tenantActive, false, func(ctx context.Context) error {
		c.reclaimer.Run(ctx)
		return nil
	})

	logger.Debug("Cleanup finished.", "outcome", outcome.String())
}

// step executes one cleanup step with full fault isolation: errors and
// panics are logged with the step name and whether a tenant context was
// active when cleanup began, and never prevent subsequent steps from running.
// Critical steps that fail additionally mark the worker unsafe, since their
// subsystem may no longer be in the as-if-default state.
func (c *Coordinator) step(ctx context.Context, name string, tenantActive, critical bool, fn func(context.Context) error) {
	err := runIsolated(ctx, fn)
	if err == nil {
		return
	}

	ctxlog.FromContext(ctx).Error("Cleanup step failed; continuing with remaining steps.",
		"step", name, "error", err, "tenant_active", tenantActive)
	c.metrics.StepFailures.WithLabelValues(name).Inc()

	if critical {
		c.unsafe = true
		ctxlog.FromContext(ctx).Error("Worker can no longer guarantee default state; schedule a recycle.",
			"step", name)
	}
}

// runIsolated converts a panic inside a step into an error.
func runIsolated(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("step panicked: %v", rec)
		}
	}()
	return fn(ctx)
}
