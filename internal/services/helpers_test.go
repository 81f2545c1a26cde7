package services

import (
	"context"
	"sync"

	"servicecrm/internal/metrics"
	"servicecrm/internal/models"
	"servicecrm/internal/repositories"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

type MockActiveTenantStore struct {
	mock.Mock
}

func (m *MockActiveTenantStore) SetActiveTenant(ctx context.Context, userID, centerID uuid.UUID) error {
	args := m.Called(ctx, userID, centerID)
	return args.Error(0)
}

func (m *MockActiveTenantStore) ReleaseTenant(ctx context.Context, userID, centerID uuid.UUID) error {
	args := m.Called(ctx, userID, centerID)
	return args.Error(0)
}

type MockAnalyticsCache struct {
	mock.Mock
}

func (m *MockAnalyticsCache) InvalidateAnalytics(ctx context.Context, centerID uuid.UUID) error {
	args := m.Called(ctx, centerID)
	return args.Error(0)
}

// recordingActions keeps every logged event for assertions.
type recordingActions struct {
	mu     sync.Mutex
	events []models.ActionEvent
}

func (r *recordingActions) LogAction(_ context.Context, event models.ActionEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingActions) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.events))
	for _, e := range r.events {
		names = append(names, e.Action)
	}
	return names
}

// testEnv wires services over an in-memory store.
type testEnv struct {
	store    *repositories.MemoryStore
	sessions *MockActiveTenantStore
	cache    *MockAnalyticsCache
	actions  *recordingActions
	metrics  *metrics.Metrics
	access   *AccessChecker
	tenants  TenantService
	orders   OrderService
}

func newTestEnv() *testEnv {
	env := &testEnv{
		store:    repositories.NewMemoryStore(repositories.SequenceConfig{Prefix: "ORD-"}),
		sessions: &MockActiveTenantStore{},
		cache:    &MockAnalyticsCache{},
		actions:  &recordingActions{},
		metrics:  metrics.New(nil),
	}
	log := zap.NewNop()
	env.access = NewAccessChecker(env.store.Tenants(), env.store.Memberships(), env.actions, env.metrics)
	env.tenants = NewTenantService(env.store.Tenants(), env.store.Memberships(), env.access, env.sessions, env.cache, env.actions, env.metrics, log)
	env.orders = NewOrderService(env.store.Orders(), env.access, env.cache, env.actions, env.metrics, log)
	return env
}

// seedCenter creates a service center owned by admin with the given extra members.
func (e *testEnv) seedCenter(admin uuid.UUID, members ...uuid.UUID) *models.ServiceCenter {
	ctx := context.Background()
	center := &models.ServiceCenter{Name: "Bench", AdminID: admin}
	if err := e.store.Tenants().Create(ctx, center); err != nil {
		panic(err)
	}
	for _, m := range members {
		if err := e.store.Memberships().Add(ctx, &models.Membership{UserID: m, ServiceCenterID: center.ID}); err != nil {
			panic(err)
		}
	}
	return center
}
