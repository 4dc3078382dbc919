package counters

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/tenantscope/internal/registry"
)

func TestCountersResetToDefaults(t *testing.T) {
	reg := registry.New()
	mod := New()
	mod.Register(reg, nil)
	reg.Seal()

	mod.Hit("acme")
	mod.Hit("globex")
	require.Equal(t, int64(2), mod.Served())
	require.Equal(t, "globex", mod.LastTenant())

	require.NoError(t, reg.ResetAll(context.Background()))
	assert.Equal(t, int64(0), mod.Served())
	assert.Empty(t, mod.LastTenant())
}
