package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func TestValidate(t *testing.T) {
	newRegistry := func() *Registry {
		r := New()
		var counter int64
		var name string
		r.Register("counter", int64(0), Var(&counter))
		r.Register("name", "central", Var(&name))
		return r
	}

	t.Run("passes when config and code agree", func(t *testing.T) {
		r := newRegistry()
		err := r.Validate(context.Background(), map[string]cty.Value{
			"counter": cty.NumberIntVal(0),
			"name":    cty.StringVal("central"),
		})
		require.NoError(t, err)
	})

	t.Run("rejects an entry missing from config", func(t *testing.T) {
		r := newRegistry()
		err := r.Validate(context.Background(), map[string]cty.Value{
			"counter": cty.NumberIntVal(0),
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "'name' which is not declared in config")
	})

	t.Run("rejects a config entry with no registered binder", func(t *testing.T) {
		r := newRegistry()
		err := r.Validate(context.Background(), map[string]cty.Value{
			"counter": cty.NumberIntVal(0),
			"name":    cty.StringVal("central"),
			"ghost":   cty.BoolVal(true),
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "config declares resettable 'ghost'")
	})

	t.Run("rejects a drifted default", func(t *testing.T) {
		r := newRegistry()
		err := r.Validate(context.Background(), map[string]cty.Value{
			"counter": cty.NumberIntVal(10),
			"name":    cty.StringVal("central"),
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "declared default")
	})

	t.Run("rejects a type mismatch", func(t *testing.T) {
		r := newRegistry()
		err := r.Validate(context.Background(), map[string]cty.Value{
			"counter": cty.StringVal("zero"),
			"name":    cty.StringVal("central"),
		})
		require.Error(t, err)
	})
}
