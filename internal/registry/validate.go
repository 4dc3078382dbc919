package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/vk/tenantscope/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

// Validate performs a strict parity check between the resettable entries
// declared in the worker configuration and the entries registered by Go
// subsystems. Both the presence of every entry and the equality of its
// declared default are checked, so a drifted config file fails at startup
// rather than silently resetting to the wrong value at request time.
func (r *Registry) Validate(ctx context.Context, declared map[string]cty.Value) error {
	var errs []string
	logger := ctxlog.FromContext(ctx)

	for name := range declared {
		if _, ok := r.byName[name]; !ok {
			errs = append(errs, fmt.Sprintf("config declares resettable '%s' but no Go subsystem registered it", name))
		}
	}

	for _, e := range r.entries {
		declaredDefault, ok := declared[e.Name]
		if !ok {
			errs = append(errs, fmt.Sprintf("Go subsystem registered resettable '%s' which is not declared in config", e.Name))
			continue
		}

		impliedType, err := gocty.ImpliedType(e.Default)
		if err != nil {
			errs = append(errs, fmt.Sprintf("resettable '%s': cannot imply config type for Go default %T: %v", e.Name, e.Default, err))
			continue
		}
		goDefault, err := gocty.ToCtyValue(e.Default, impliedType)
		if err != nil {
			errs = append(errs, fmt.Sprintf("resettable '%s': cannot convert Go default to config value: %v", e.Name, err))
			continue
		}

		converted, err := coerce(declaredDefault, impliedType)
		if err != nil {
			errs = append(errs, fmt.Sprintf("resettable '%s': declared default type mismatch: %v", e.Name, err))
			continue
		}
		if !converted.RawEquals(goDefault) {
			errs = append(errs, fmt.Sprintf("resettable '%s': declared default %v does not match registered default %v",
				e.Name, declaredDefault.GoString(), goDefault.GoString()))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("registry validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	logger.Debug("Registry validation passed.", "entries", len(r.entries))
	return nil
}

// coerce converts a declared config value to the type implied by the Go
// default, so `counter = 0` in HCL matches an int64 default in Go.
func coerce(v cty.Value, want cty.Type) (cty.Value, error) {
	if v.Type().Equals(want) {
		return v, nil
	}
	converted, err := convert.Convert(v, want)
	if err != nil {
		return cty.NilVal, fmt.Errorf("config default has type %s, Go default expects %s", v.Type().FriendlyName(), want.FriendlyName())
	}
	return converted, nil
}
