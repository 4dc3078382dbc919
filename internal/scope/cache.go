// Package scope provides the scoped singleton cache: lazily constructed
// service instances whose lifetime is an explicitly declared property, either
// the whole worker process or a single request.
package scope

import (
	"context"
	"errors"
	"fmt"
	"io"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/vk/tenantscope/internal/ctxlog"
)

// Scope bounds a singleton's lifetime.
type Scope int

const (
	// ProcessLifetime instances persist for the worker's entire uptime and
	// are excluded from per-request cleanup.
	ProcessLifetime Scope = iota
	// RequestLifetime instances must be absent before a new request begins;
	// the coordinator evicts them after every request.
	RequestLifetime
)

// String returns the scope name used in config files and logs.
func (s Scope) String() string {
	if s == RequestLifetime {
		return "request"
	}
	return "process"
}

// ParseScope converts the config spelling of a scope into its enum value.
func ParseScope(s string) (Scope, error) {
	switch s {
	case "process":
		return ProcessLifetime, nil
	case "request":
		return RequestLifetime, nil
	default:
		return 0, fmt.Errorf("unknown singleton scope '%s': must be 'process' or 'request'", s)
	}
}

// Factory lazily constructs a singleton instance.
type Factory func(ctx context.Context) (any, error)

// Cache memoizes singleton instances per declared key. Keys and their scopes
// are declared once at startup; instances come and go with their scope.
type Cache struct {
	scopes    map[string]Scope
	instances cmap.ConcurrentMap[string, any]
	sealed    bool
}

// NewCache creates an empty cache with no declared keys.
func NewCache() *Cache {
	return &Cache{
		scopes:    make(map[string]Scope),
		instances: cmap.New[any](),
	}
}

// Declare registers a singleton key with its lifetime scope. Duplicate keys
// and post-seal declarations are programmer errors and panic, matching the
// registry's registration policy.
func (c *Cache) Declare(key string, scope Scope) {
	if c.sealed {
		panic(fmt.Sprintf("singleton cache is sealed; cannot declare key '%s' after startup", key))
	}
	if _, exists := c.scopes[key]; exists {
		panic(fmt.Sprintf("singleton key '%s' already declared", key))
	}
	c.scopes[key] = scope
}

// Seal freezes the declared key set.
func (c *Cache) Seal() {
	c.sealed = true
}

// ScopeOf returns the declared scope for a key.
func (c *Cache) ScopeOf(key string) (Scope, bool) {
	s, ok := c.scopes[key]
	return s, ok
}

// Keys returns every declared key, in no particular order.
func (c *Cache) Keys() []string {
	keys := make([]string, 0, len(c.scopes))
	for k := range c.scopes {
		keys = append(keys, k)
	}
	return keys
}

// Get returns the memoized instance for key, constructing it with factory on
// first use. Using an undeclared key is an error: lifetime must be a declared
// property, never implied by the call site.
func (c *Cache) Get(ctx context.Context, key string, factory Factory) (any, error) {
	if _, ok := c.scopes[key]; !ok {
		return nil, fmt.Errorf("singleton key '%s' was never declared", key)
	}
	if inst, ok := c.instances.Get(key); ok {
		return inst, nil
	}

	inst, err := factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("constructing singleton '%s': %w", key, err)
	}
	c.instances.Set(key, inst)
	ctxlog.FromContext(ctx).Debug("Singleton constructed.", "key", key, "scope", c.scopes[key].String())
	return inst, nil
}

// Evict drops the instance stored under key, closing it when it owns
// closable resources. Evicting an absent key is a no-op.
func (c *Cache) Evict(ctx context.Context, key string) error {
	inst, ok := c.instances.Pop(key)
	if !ok {
		return nil
	}
	ctxlog.FromContext(ctx).Debug("Singleton evicted.", "key", key)
	if closer, ok := inst.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			return fmt.Errorf("closing singleton '%s': %w", key, err)
		}
	}
	return nil
}

// EvictAllRequestScoped evicts every instance whose declared scope is
// RequestLifetime, leaving process-lifetime instances untouched. Eviction
// failures are isolated per key and joined for the caller to log.
func (c *Cache) EvictAllRequestScoped(ctx context.Context) error {
	var errs []error
	for key, scope := range c.scopes {
		if scope != RequestLifetime {
			continue
		}
		if err := c.evictIsolated(ctx, key); err != nil {
			ctxlog.FromContext(ctx).Error("Failed to evict request-scoped singleton.", "key", key, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// evictIsolated converts a panic inside a Close implementation into an error
// so one misbehaving singleton cannot block the rest of the sweep.
func (c *Cache) evictIsolated(ctx context.Context, key string) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("evicting singleton '%s' panicked: %v", key, rec)
		}
	}()
	return c.Evict(ctx, key)
}

// Live reports how many instances are currently memoized.
func (c *Cache) Live() int {
	return c.instances.Count()
}
