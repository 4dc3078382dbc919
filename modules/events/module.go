// Package events provides the worker's in-process event bus as a
// process-lifetime singleton: constructed once, shared by every request, and
// deliberately excluded from per-request cleanup.
package events

import (
	"context"
	"fmt"

	"github.com/vk/tenantscope/internal/registry"
	"github.com/vk/tenantscope/internal/scope"
)

// Key is the singleton key this module declares.
const Key = "events"

// Module implements the subsystem.Module interface for this package.
type Module struct{}

// New creates the events subsystem.
func New() *Module {
	return &Module{}
}

// Register declares the bus singleton with process lifetime.
func (m *Module) Register(_ *registry.Registry, scopes *scope.Cache) {
	scopes.Declare(Key, scope.ProcessLifetime)
}

// Bus is a minimal synchronous publish/subscribe hub. Handlers run inline on
// the worker goroutine, in subscription order.
type Bus struct {
	handlers map[string][]func(payload any)
}

// Subscribe registers a handler for an event name.
func (b *Bus) Subscribe(name string, fn func(payload any)) {
	b.handlers[name] = append(b.handlers[name], fn)
}

// Publish delivers payload to every handler subscribed to name.
func (b *Bus) Publish(name string, payload any) {
	for _, fn := range b.handlers[name] {
		fn(payload)
	}
}

// Acquire returns the shared bus, constructing it on first use.
func (m *Module) Acquire(ctx context.Context, scopes *scope.Cache) (*Bus, error) {
	inst, err := scopes.Get(ctx, Key, func(context.Context) (any, error) {
		return &Bus{handlers: make(map[string][]func(payload any))}, nil
	})
	if err != nil {
		return nil, err
	}
	bus, ok := inst.(*Bus)
	if !ok {
		return nil, fmt.Errorf("singleton '%s' holds %T, expected *events.Bus", Key, inst)
	}
	return bus, nil
}
