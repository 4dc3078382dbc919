package app_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/tenantscope/internal/tenant"
	"github.com/vk/tenantscope/internal/testutil"
	"github.com/vk/tenantscope/internal/worker"
)

func TestStartup(t *testing.T) {
	t.Run("builds a worker from the default config", func(t *testing.T) {
		result := testutil.SetupWorker(t, testutil.DefaultConfig)
		require.NoError(t, result.Err)
		require.NotNil(t, result.App)
		assert.True(t, result.App.Registry().Sealed())
		assert.False(t, result.App.Coordinator().Unsafe())
	})

	t.Run("fails when config declares an unknown resettable", func(t *testing.T) {
		config := testutil.DefaultConfig + `
resettable "ghost" {
  default = 1
}
`
		result := testutil.SetupWorker(t, config)
		require.Error(t, result.Err)
		assert.Contains(t, result.Err.Error(), "registry validation failed")
	})

	t.Run("fails when a declared default drifts from the code", func(t *testing.T) {
		config := `
resettable "counters.served" {
  default = 100
}

resettable "counters.last_tenant" {
  default = ""
}

resettable "flags.maintenance" {
  default = false
}

resettable "flags.verbose" {
  default = false
}

singleton "db" {
  scope = "request"
}

singleton "events" {
  scope = "process"
}
`
		result := testutil.SetupWorker(t, config)
		require.Error(t, result.Err)
		assert.Contains(t, result.Err.Error(), "does not match registered default")
	})

	t.Run("fails when a singleton scope disagrees", func(t *testing.T) {
		config := `
resettable "counters.served" {
  default = 0
}

resettable "counters.last_tenant" {
  default = ""
}

resettable "flags.maintenance" {
  default = false
}

resettable "flags.verbose" {
  default = false
}

singleton "db" {
  scope = "process"
}

singleton "events" {
  scope = "process"
}
`
		result := testutil.SetupWorker(t, config)
		require.Error(t, result.Err)
		assert.Contains(t, result.Err.Error(), "singleton cache validation failed")
	})
}

func TestRequestIsolation(t *testing.T) {
	result := testutil.SetupWorker(t, testutil.DefaultConfig)
	require.NoError(t, result.Err)
	a := result.App

	process := func(host string, mutate func(ctx context.Context, tn *tenant.Tenant)) {
		t.Helper()
		err := a.Worker().Process(context.Background(), &worker.Request{ID: "r", Host: host},
			func(ctx context.Context, _ *worker.Request, tn *tenant.Tenant) error {
				mutate(ctx, tn)
				return nil
			})
		require.NoError(t, err)
	}

	t.Run("counters and flags reset between requests", func(t *testing.T) {
		process("acme.test", func(_ context.Context, tn *tenant.Tenant) {
			a.Counters().Hit(tn.Key)
			a.Flags().SetMaintenance(true)
			require.Equal(t, int64(1), a.Counters().Served())
		})

		assert.Equal(t, int64(0), a.Counters().Served())
		assert.Empty(t, a.Counters().LastTenant())
		assert.False(t, a.Flags().Maintenance())
	})

	t.Run("tenant context never bleeds", func(t *testing.T) {
		process("acme.test", func(_ context.Context, tn *tenant.Tenant) {
			require.Equal(t, "acme", tn.Key)
		})
		require.Equal(t, tenant.Unset, a.Tenants().State())
		process("globex.test", func(_ context.Context, tn *tenant.Tenant) {
			require.Equal(t, "globex", tn.Key)
		})
	})

	t.Run("tenant attributes flow from config", func(t *testing.T) {
		process("acme.test", func(_ context.Context, tn *tenant.Tenant) {
			require.Equal(t, "pro", tn.Attributes["plan"])
		})
	})
}
