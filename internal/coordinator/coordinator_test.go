package coordinator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"
	"github.com/vk/tenantscope/internal/codecache"
	"github.com/vk/tenantscope/internal/metrics"
	"github.com/vk/tenantscope/internal/reclaim"
	"github.com/vk/tenantscope/internal/registry"
	"github.com/vk/tenantscope/internal/scope"
	"github.com/vk/tenantscope/internal/tenant"
)

// recordingBackend captures code-cache invalidations so the suite can assert
// steps after a failure still ran.
type recordingBackend struct {
	invalidated []string
	err         error
}

func (b *recordingBackend) Invalidate(path string) error {
	if b.err != nil {
		return b.err
	}
	b.invalidated = append(b.invalidated, path)
	return nil
}

func (b *recordingBackend) Reset() error {
	b.invalidated = nil
	return nil
}

type CoordinatorSuite struct {
	suite.Suite

	tenants *tenant.Context
	reg     *registry.Registry
	scopes  *scope.Cache
	backend *recordingBackend
	coord   *Coordinator

	counter int64
	flag    bool
}

func (s *CoordinatorSuite) SetupTest() {
	s.tenants = tenant.NewContext()

	s.counter = 0
	s.flag = false
	s.reg = registry.New()
	s.reg.Register("counter", int64(0), registry.Var(&s.counter))
	s.reg.Register("flag", false, registry.Var(&s.flag))
	s.reg.Seal()

	s.scopes = scope.NewCache()
	s.scopes.Declare("db", scope.RequestLifetime)
	s.scopes.Declare("events", scope.ProcessLifetime)
	s.scopes.Seal()

	s.backend = &recordingBackend{}
	invalidator := codecache.New(s.backend, []string{"tenants/views"})

	s.coord = New(s.tenants, s.reg, s.scopes, invalidator, reclaim.New(false), metrics.New())
}

// simulateRequest activates a tenant and dirties every kind of managed state.
func (s *CoordinatorSuite) simulateRequest(tenantKey string) {
	ctx := context.Background()
	s.Require().NoError(s.tenants.Activate(ctx, &tenant.Tenant{Key: tenantKey}))
	s.counter = 42
	s.flag = true
	_, err := s.scopes.Get(ctx, "db", func(context.Context) (any, error) { return "conn-" + tenantKey, nil })
	s.Require().NoError(err)
	_, err = s.scopes.Get(ctx, "events", func(context.Context) (any, error) { return "bus", nil })
	s.Require().NoError(err)
}

func (s *CoordinatorSuite) TestCleanupRestoresAllDefaults() {
	s.simulateRequest("acme")
	s.coord.OnRequestEnd(context.Background(), Success)

	s.Equal(tenant.Unset, s.tenants.State())
	s.Equal(int64(0), s.counter)
	s.Equal(false, s.flag)
	s.Equal(1, s.scopes.Live(), "only the process-lifetime singleton survives")
	s.Equal([]string{"tenants/views"}, s.backend.invalidated)
	s.False(s.coord.Unsafe())
}

func (s *CoordinatorSuite) TestCleanupRunsForEveryOutcome() {
	for _, outcome := range []Outcome{Success, Failure, Aborted, Tick} {
		s.simulateRequest("acme")
		s.coord.OnRequestEnd(context.Background(), outcome)
		s.Equal(tenant.Unset, s.tenants.State(), "outcome %s must still clean up", outcome)
		s.Equal(int64(0), s.counter)
	}
}

func (s *CoordinatorSuite) TestCleanupIsIdempotent() {
	s.simulateRequest("acme")
	s.coord.OnRequestEnd(context.Background(), Success)
	s.coord.OnRequestEnd(context.Background(), Tick)

	s.Equal(tenant.Unset, s.tenants.State())
	s.Equal(int64(0), s.counter)
	s.Equal(1, s.scopes.Live())
	s.False(s.coord.Unsafe())
}

func (s *CoordinatorSuite) TestNoBleedBetweenTenants() {
	s.simulateRequest("acme")
	s.coord.OnRequestEnd(context.Background(), Success)

	ctx := context.Background()
	s.Require().NoError(s.tenants.Activate(ctx, &tenant.Tenant{Key: "globex"}))
	s.Equal("globex", s.tenants.Current().Key, "tenant B must never observe tenant A")

	calls := 0
	inst, err := s.scopes.Get(ctx, "db", func(context.Context) (any, error) {
		calls++
		return "conn-globex", nil
	})
	s.Require().NoError(err)
	s.Equal(1, calls, "request 2 constructs a fresh request-scoped singleton")
	s.Equal("conn-globex", inst)
}

func (s *CoordinatorSuite) TestProcessSingletonSurvivesManyRuns() {
	ctx := context.Background()
	constructions := 0
	first, err := s.scopes.Get(ctx, "events", func(context.Context) (any, error) {
		constructions++
		return &recordingBackend{}, nil
	})
	s.Require().NoError(err)

	for i := 0; i < 100; i++ {
		s.coord.OnRequestEnd(ctx, Success)
	}

	again, err := s.scopes.Get(ctx, "events", func(context.Context) (any, error) {
		constructions++
		return &recordingBackend{}, nil
	})
	s.Require().NoError(err)
	s.Same(first, again)
	s.Equal(1, constructions)
}

func (s *CoordinatorSuite) TestRegistryFailureDoesNotStopLaterSteps() {
	// Rebuild with an instrumented registry entry that always fails.
	reg := registry.New()
	reg.Register("broken", 1, func(any) error { return errors.New("target gone") })
	var after int64
	reg.Register("after", int64(0), registry.Var(&after))
	reg.Seal()

	invalidator := codecache.New(s.backend, []string{"tenants/views"})
	coord := New(s.tenants, reg, s.scopes, invalidator, reclaim.New(false), metrics.New())

	ctx := context.Background()
	s.Require().NoError(s.tenants.Activate(ctx, &tenant.Tenant{Key: "acme"}))
	after = 99
	_, err := s.scopes.Get(ctx, "db", func(context.Context) (any, error) { return "conn", nil })
	s.Require().NoError(err)

	coord.OnRequestEnd(ctx, Success)

	s.Equal(int64(0), after, "entries after the broken one are still reset")
	s.Equal(1, s.scopes.Live(), "eviction still ran after the registry failure")
	s.Equal([]string{"tenants/views"}, s.backend.invalidated, "invalidation still ran")
	s.True(coord.Unsafe(), "a failed critical step marks the worker unsafe")
}

func (s *CoordinatorSuite) TestTeardownFailureStillEndsContextAndContinues() {
	s.tenants.OnEnd(func(context.Context, *tenant.Tenant) error {
		return errors.New("release failed")
	})
	s.simulateRequest("acme")

	s.coord.OnRequestEnd(context.Background(), Success)

	s.Equal(tenant.Unset, s.tenants.State(), "context reaches Unset despite the hook failure")
	s.Equal(int64(0), s.counter, "registry reset still ran")
	s.True(s.coord.Unsafe(), "tenant teardown failure is surfaced as an unsafe worker")
}

func (s *CoordinatorSuite) TestInvalidatorFailureIsNonFatal() {
	s.backend.err = errors.New("cache daemon unavailable")
	s.simulateRequest("acme")

	s.coord.OnRequestEnd(context.Background(), Success)

	s.Equal(tenant.Unset, s.tenants.State())
	s.Equal(int64(0), s.counter)
	s.False(s.coord.Unsafe(), "code-cache invalidation is best-effort, never unsafe")
}

func (s *CoordinatorSuite) TestNilInvalidatorSkipsInvalidationStep() {
	coord := New(s.tenants, s.reg, s.scopes, nil, reclaim.New(false), metrics.New())
	s.simulateRequest("acme")
	coord.OnRequestEnd(context.Background(), Success)
	s.Empty(s.backend.invalidated)
	s.Equal(tenant.Unset, s.tenants.State())
}

func TestCoordinatorSuite(t *testing.T) {
	suite.Run(t, new(CoordinatorSuite))
}
