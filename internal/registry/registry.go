package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vk/tenantscope/internal/ctxlog"
)

// BindFunc writes a value into the subsystem state that owns an entry. It is
// the only way the registry touches external state; there is no reflection
// over private fields.
type BindFunc func(v any) error

// Entry pairs a registered name with its immutable default value. The
// default is applied verbatim on every reset.
type Entry struct {
	Name    string
	Default any
	bind    BindFunc
}

// Registry holds all resettable entries for a single worker instance.
type Registry struct {
	entries []*Entry
	byName  map[string]*Entry
	sealed  bool
}

// New creates an empty, unsealed registry.
func New() *Registry {
	return &Registry{byName: make(map[string]*Entry)}
}

// Register declares a resettable value during startup. Registering a
// duplicate name, a nil bind function, or registering after the registry was
// sealed is a programmer error and panics.
func (r *Registry) Register(name string, defaultValue any, bind BindFunc) {
	if r.sealed {
		panic(fmt.Sprintf("registry is sealed; cannot register entry '%s' after startup", name))
	}
	if bind == nil {
		panic(fmt.Sprintf("entry '%s' registered with a nil bind function", name))
	}
	if _, exists := r.byName[name]; exists {
		panic(fmt.Sprintf("resettable entry with name '%s' already registered", name))
	}
	slog.Debug("Registering resettable entry.", "name", name, "default", defaultValue)
	e := &Entry{Name: name, Default: defaultValue, bind: bind}
	r.entries = append(r.entries, e)
	r.byName[name] = e
}

// Var adapts a plain variable into a BindFunc for subsystems whose
// resettable state is a single typed value.
func Var[T any](target *T) BindFunc {
	return func(v any) error {
		tv, ok := v.(T)
		if !ok {
			return fmt.Errorf("default value %v (%T) does not match bound variable type %T", v, v, *target)
		}
		*target = tv
		return nil
	}
}

// Seal freezes the entry set. Called once by the app after all subsystem
// modules have registered, before the first request is accepted.
func (r *Registry) Seal() {
	r.sealed = true
}

// Sealed reports whether the registration window has closed.
func (r *Registry) Sealed() bool {
	return r.sealed
}

// Len returns the number of registered entries.
func (r *Registry) Len() int {
	return len(r.entries)
}

// Names returns the registered entry names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		names = append(names, e.Name)
	}
	return names
}

// ResetAll applies every entry's default value, in registration order. The
// pass is total: a failing or panicking entry is logged and the remaining
// entries are still applied. The joined error is returned so the caller can
// flag a worker that could not be restored to its default state.
func (r *Registry) ResetAll(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	var errs []error
	for _, e := range r.entries {
		if err := r.resetOne(e); err != nil {
			logger.Error("Failed to reset entry to its default.", "entry", e.Name, "error", err)
			errs = append(errs, fmt.Errorf("entry %q: %w", e.Name, err))
		}
	}
	logger.Debug("Registry reset complete.", "entries", len(r.entries), "failures", len(errs))
	return errors.Join(errs...)
}

// resetOne applies a single default, converting a panic inside the bind
// function into an error so one entry can never abort the rest of the pass.
func (r *Registry) resetOne(e *Entry) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("bind panicked: %v", rec)
		}
	}()
	return e.bind(e.Default)
}
