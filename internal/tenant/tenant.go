// Package tenant defines the tenant identity model and the per-worker tenant
// context whose lifetime is bounded by a single request.
package tenant

import "context"

// Tenant identifies a logical customer namespace. The surrounding application
// owns the value; this package only references it by key and never mutates it.
type Tenant struct {
	Key        string
	Attributes map[string]string
}

// Resolver supplies the tenant for an inbound unit of work, keyed by whatever
// request data the deployment uses (the demo runtime passes the Host header).
// A nil tenant with a nil error means the request is central (tenant-less).
type Resolver interface {
	Resolve(ctx context.Context, host string) (*Tenant, error)
}

// MapResolver resolves tenants from a static host-to-tenant mapping, as
// declared by `tenant` blocks in the worker configuration.
type MapResolver struct {
	byHost map[string]*Tenant
}

// NewMapResolver builds a resolver over the given host mapping.
func NewMapResolver(byHost map[string]*Tenant) *MapResolver {
	if byHost == nil {
		byHost = make(map[string]*Tenant)
	}
	return &MapResolver{byHost: byHost}
}

// Resolve implements Resolver. Unknown hosts resolve to no tenant rather than
// an error; the worker treats those requests as central.
func (r *MapResolver) Resolve(_ context.Context, host string) (*Tenant, error) {
	return r.byHost[host], nil
}
