package hcl

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/tenantscope/internal/config"
	"github.com/zclconf/go-cty/cty"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("parses a full worker config", func(t *testing.T) {
		path := writeConfig(t, "worker.hcl", `
worker {
  force_gc = true
}

resettable "counters.served" {
  default = 0
}

resettable "flags.maintenance" {
  default = false
}

singleton "db" {
  scope = "request"
}

tenant "acme" {
  hosts      = ["acme.test", "www.acme.test"]
  attributes = { plan = "pro" }
}

code_cache {
  enabled = true
  paths   = ["tenants/views"]
}
`)
		model, err := NewLoader().Load(context.Background(), path)
		require.NoError(t, err)

		assert.True(t, model.Worker.ForceGC)
		require.Contains(t, model.Resettables, "counters.served")
		assert.True(t, model.Resettables["counters.served"].RawEquals(cty.NumberIntVal(0)))
		require.Contains(t, model.Resettables, "flags.maintenance")
		assert.True(t, model.Resettables["flags.maintenance"].RawEquals(cty.False))
		assert.Equal(t, "request", model.Singletons["db"])

		wantTenants := []*config.TenantDef{
			{
				Key:        "acme",
				Hosts:      []string{"acme.test", "www.acme.test"},
				Attributes: map[string]string{"plan": "pro"},
			},
		}
		if diff := cmp.Diff(wantTenants, model.Tenants); diff != "" {
			t.Errorf("tenant definitions mismatch (-want +got):\n%s", diff)
		}

		assert.True(t, model.CodeCache.Enabled)
		assert.Equal(t, []string{"tenants/views"}, model.CodeCache.Paths)
	})

	t.Run("merges multiple files from a directory", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "a.hcl"), []byte(`
resettable "counter" {
  default = 0
}
`), 0644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "b.hcl"), []byte(`
singleton "db" {
  scope = "request"
}
`), 0644))

		model, err := NewLoader().Load(context.Background(), dir)
		require.NoError(t, err)
		assert.Contains(t, model.Resettables, "counter")
		assert.Contains(t, model.Singletons, "db")
	})

	t.Run("rejects duplicate resettable declarations", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "a.hcl"), []byte(`
resettable "counter" {
  default = 0
}
`), 0644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "b.hcl"), []byte(`
resettable "counter" {
  default = 1
}
`), 0644))

		_, err := NewLoader().Load(context.Background(), dir)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "declared more than once")
	})

	t.Run("rejects invalid HCL", func(t *testing.T) {
		path := writeConfig(t, "worker.hcl", `resettable "x" {`)
		_, err := NewLoader().Load(context.Background(), path)
		require.Error(t, err)
	})

	t.Run("errors when no config files exist", func(t *testing.T) {
		_, err := NewLoader().Load(context.Background(), t.TempDir())
		require.Error(t, err)
	})

	t.Run("errors on a missing path", func(t *testing.T) {
		_, err := NewLoader().Load(context.Background(), "/does/not/exist")
		require.Error(t, err)
	})
}
