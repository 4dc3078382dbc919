package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/vk/tenantscope/internal/ctxlog"
	"github.com/vk/tenantscope/internal/tenant"
	"github.com/vk/tenantscope/internal/worker"
)

// Run starts the demo worker runtime and blocks until ctx is cancelled. Each
// inbound HTTP request becomes one unit of work for the worker, with the
// Host header feeding tenant resolution.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if a.config.HealthcheckPort > 0 {
		a.startHealthServer()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		a.handleHTTP(ctx, w, r)
	})
	a.httpServer = &http.Server{Addr: a.config.ListenAddr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("🚀 Worker accepting requests.", "address", a.config.ListenAddr)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("worker server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("🏁 Worker shutting down.")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("Worker server shutdown failed.", "error", err)
	}
	a.closeHealthServer(shutdownCtx)
	a.reclaimer.Close()
	a.logger.Debug("App.Run method finished.")
	return nil
}

// handleHTTP adapts one HTTP request into the worker's sequential loop. The
// mutex is the single-worker discipline: requests queue behind it exactly as
// they queue behind a busy worker process.
func (a *App) handleHTTP(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.seq++
	req := &worker.Request{
		ID:   fmt.Sprintf("req-%d", a.seq),
		Host: stripPort(r.Host),
	}

	err := a.worker.Process(ctx, req, func(ctx context.Context, req *worker.Request, t *tenant.Tenant) error {
		return a.demoHandler(ctx, w, req, t)
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// demoHandler is the stand-in application: it mutates every kind of managed
// state so a running worker demonstrates that none of it survives the
// request.
func (a *App) demoHandler(ctx context.Context, w http.ResponseWriter, req *worker.Request, t *tenant.Tenant) error {
	key := ""
	if t != nil {
		key = t.Key
	}
	a.counters.Hit(key)

	conn, err := a.connpool.Acquire(ctx, a.scopes, t)
	if err != nil {
		return err
	}

	bus, err := a.events.Acquire(ctx, a.scopes)
	if err != nil {
		return err
	}
	bus.Publish("request.handled", req.ID)

	fmt.Fprintf(w, "request=%s tenant=%s served=%d conn_tenant=%s\n",
		req.ID, displayKey(key), a.counters.Served(), displayKey(conn.TenantKey))
	return nil
}

func displayKey(key string) string {
	if key == "" {
		return "central"
	}
	return key
}

// stripPort removes the port from a Host header value.
func stripPort(hostport string) string {
	if !strings.Contains(hostport, ":") {
		return hostport
	}
	host, _, err := net.SplitHostPort(hostport)
	if err != nil {
		return hostport
	}
	return host
}
