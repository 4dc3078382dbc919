// Package codecache invalidates precompiled representations of
// tenant-specific source locations so a long-lived worker never executes a
// previous tenant's stale compiled code. The whole package is best-effort: a
// failed invalidation is logged, never fatal.
package codecache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/vk/tenantscope/internal/ctxlog"
)

// Backend is the process-wide compiled-code cache being invalidated.
// Implementations may talk to an external cache daemon; transient errors are
// retried by the Invalidator.
type Backend interface {
	// Invalidate marks the compiled unit for path stale so the next
	// execution recompiles from source.
	Invalidate(path string) error
	// Reset drops every compiled unit.
	Reset() error
}

// Invalidator sweeps a fixed set of tenant-specific source locations after
// each request.
type Invalidator struct {
	backend Backend
	paths   []string
	// retryInterval caps how long a single best-effort sweep may stall cleanup.
	retryInterval time.Duration
}

// New creates an Invalidator over the configured tenant source locations.
func New(backend Backend, paths []string) *Invalidator {
	return &Invalidator{
		backend:       backend,
		paths:         paths,
		retryInterval: 50 * time.Millisecond,
	}
}

// Paths returns the configured tenant source locations.
func (i *Invalidator) Paths() []string {
	return i.paths
}

// InvalidateAll marks every configured location stale. Each path gets a
// short constant-backoff retry for transient backend errors; a path that
// still fails is reported but never aborts the sweep.
func (i *Invalidator) InvalidateAll(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	var errs []error
	for _, path := range i.paths {
		policy := backoff.WithContext(i.newPolicy(), ctx)
		err := backoff.Retry(func() error {
			return i.backend.Invalidate(path)
		}, policy)
		if err != nil {
			logger.Warn("Compiled-code invalidation failed; worker may serve stale code until recompile.",
				"path", path, "error", err)
			errs = append(errs, fmt.Errorf("invalidating %q: %w", path, err))
			continue
		}
		logger.Debug("Compiled units invalidated.", "path", path)
	}
	return errors.Join(errs...)
}

func (i *Invalidator) newPolicy() backoff.BackOff {
	policy := backoff.NewConstantBackOff(i.retryInterval)
	return backoff.WithMaxRetries(policy, 3)
}
