package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/heptiolabs/healthcheck"
)

// startHealthServer exposes liveness, readiness, and metrics endpoints on
// the configured port. Readiness fails permanently once the coordinator
// marks the worker unsafe, so an orchestrator drains and recycles it instead
// of routing more tenants into a dirty process.
func (a *App) startHealthServer() {
	health := healthcheck.NewHandler()
	health.AddLivenessCheck("goroutine-count", healthcheck.GoroutineCountCheck(200))
	health.AddReadinessCheck("cleanup-guaranteed", func() error {
		if a.coord.Unsafe() {
			return errors.New("worker could not restore default state; recycle required")
		}
		return nil
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/live", health.LiveEndpoint)
	mux.HandleFunc("/ready", health.ReadyEndpoint)
	mux.Handle("/metrics", a.metrics.Handler())

	addr := fmt.Sprintf(":%d", a.config.HealthcheckPort)
	a.healthServer = &http.Server{Addr: addr, Handler: mux}

	go func() {
		a.logger.Info("🩺 Health server starting.", "address", fmt.Sprintf("http://localhost%s/ready", addr))
		if err := a.healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("Health server failed unexpectedly.", "error", err)
		}
	}()
}

// closeHealthServer shuts the health server down gracefully.
func (a *App) closeHealthServer(ctx context.Context) {
	if a.healthServer == nil {
		return
	}
	if err := a.healthServer.Shutdown(ctx); err != nil {
		a.logger.Error("Health server shutdown failed.", "error", err)
	}
}
