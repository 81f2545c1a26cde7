package services

import (
	"context"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"servicecrm/internal/common"
	"servicecrm/internal/metrics"
	"servicecrm/internal/models"
	"servicecrm/internal/repositories"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	MaxDemoOrders    = 1000
	demoWindowMonths = 6
	demoMinAmount    = 500
	demoMaxAmount    = 20000
)

var (
	demoDeviceTypes = []string{
		"Smartphone", "Laptop", "Tablet", "Desktop", "Monitor",
		"Printer", "TV", "Camera", "Game console", "Smartwatch",
	}
	demoBrands = []string{
		"Apple", "Samsung", "Xiaomi", "Huawei", "Lenovo",
		"Asus", "Dell", "HP", "Sony", "LG", "Canon", "Nikon",
	}
	demoModels = []string{
		"iPhone 13", "Galaxy S21", "Redmi Note 10", "MateBook", "ThinkPad",
		"ZenBook", "XPS 13", "Pavilion", "Bravia", "Gram", "EOS R5", "Z7",
	}
	demoIssues = []string{
		"Does not turn on", "Cracked screen", "Power button broken",
		"Battery problems", "Does not charge", "Wi-Fi not working",
		"Water damage", "System freezes", "Speaker not working",
		"Cracked case", "Overheating", "Runs slowly",
	}
	demoCounterparties = []string{
		"John Smith", "Peter Brown", "Anna Taylor", "Alex Carter",
		"Maria Lopez", "Dmitry Popov", "Kate Wilson",
		"TechnoService LLC", "Sidorov Repairs", "ComputerWorld Inc",
	}
)

// DemoDataService fills a service center with random orders.
type DemoDataService interface {
	// Generate creates count orders dated within the last six months and
	// returns the ones created.
	Generate(ctx context.Context, actorID, centerID uuid.UUID, count int) ([]*models.Order, error)
	// Clear deletes every order of the service center and returns how many
	// were removed. Order numbers keep counting from where they were.
	Clear(ctx context.Context, actorID, centerID uuid.UUID) (int, error)
}

type demoDataService struct {
	orders  repositories.OrderRepository
	access  *AccessChecker
	cache   AnalyticsCache
	actions ActionLogger
	metrics *metrics.Metrics
	log     *zap.Logger
	now     func() time.Time

	// rnd only seeds the per-call generators; guarded by mu.
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewDemoDataService(
	orders repositories.OrderRepository,
	access *AccessChecker,
	cache AnalyticsCache,
	actions ActionLogger,
	m *metrics.Metrics,
	log *zap.Logger,
) DemoDataService {
	return &demoDataService{
		orders:  orders,
		access:  access,
		cache:   cache,
		actions: actions,
		metrics: m,
		log:     log,
		rnd:     rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
		now:     time.Now,
	}
}

func (s *demoDataService) newRand() *rand.Rand {
	s.mu.Lock()
	defer s.mu.Unlock()
	return rand.New(rand.NewPCG(s.rnd.Uint64(), s.rnd.Uint64()))
}

func pick(rnd *rand.Rand, items []string) string {
	return items[rnd.IntN(len(items))]
}

func (s *demoDataService) Generate(ctx context.Context, actorID, centerID uuid.UUID, count int) ([]*models.Order, error) {
	if count < 1 || count > MaxDemoOrders {
		verr := &common.ValidationError{}
		verr.Add("count", "count must be between 1 and 1000")
		return nil, verr
	}
	if _, err := s.access.RequireAdmin(ctx, actorID, centerID); err != nil {
		return nil, err
	}

	rnd := s.newRand()
	now := s.now().UTC()
	start := now.AddDate(0, -demoWindowMonths, 0)
	span := now.Sub(start)

	// Dates are sorted first so order numbers follow creation dates.
	dates := make([]time.Time, count)
	for i := range dates {
		dates[i] = start.Add(time.Duration(rnd.Int64N(int64(span)))).Truncate(time.Minute)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	created := make([]*models.Order, 0, count)
	for _, createdAt := range dates {
		order := &models.Order{
			ID:              uuid.New(),
			ServiceCenterID: centerID,
			CreatedAt:       createdAt,
			Status:          models.AllOrderStatuses[rnd.IntN(len(models.AllOrderStatuses))],
			DeviceType:      pick(rnd, demoDeviceTypes),
			Brand:           pick(rnd, demoBrands),
			Model:           pick(rnd, demoModels),
			Issue:           pick(rnd, demoIssues),
			Counterparty:    pick(rnd, demoCounterparties),
			Amount:          decimal.NewFromInt(int64(demoMinAmount + rnd.IntN(demoMaxAmount-demoMinAmount+1))),
		}
		if err := s.orders.Create(ctx, order); err != nil {
			s.log.Error("Demo data generation stopped",
				zap.Stringer("service_center_id", centerID), zap.Int("created", len(created)), zap.Error(err))
			if len(created) > 0 {
				s.invalidate(ctx, centerID)
			}
			return created, err
		}
		s.metrics.OrdersCreated.Inc()
		created = append(created, order)
	}

	s.invalidate(ctx, centerID)
	s.actions.LogAction(ctx, models.ActionEvent{
		Action:          models.ActionDemoDataGenerated,
		ServiceCenterID: centerID,
		ActorID:         actorID,
		Details:         map[string]any{"count": len(created)},
	})
	return created, nil
}

func (s *demoDataService) Clear(ctx context.Context, actorID, centerID uuid.UUID) (int, error) {
	if _, err := s.access.RequireAdmin(ctx, actorID, centerID); err != nil {
		return 0, err
	}

	deleted, err := s.orders.DeleteAll(ctx, centerID)
	if err != nil {
		return 0, err
	}

	s.invalidate(ctx, centerID)
	s.actions.LogAction(ctx, models.ActionEvent{
		Action:          models.ActionOrdersCleared,
		ServiceCenterID: centerID,
		ActorID:         actorID,
		Details:         map[string]any{"deleted": deleted},
	})
	return deleted, nil
}

func (s *demoDataService) invalidate(ctx context.Context, centerID uuid.UUID) {
	if err := s.cache.InvalidateAnalytics(ctx, centerID); err != nil {
		s.log.Warn("Failed to invalidate analytics cache",
			zap.Stringer("service_center_id", centerID), zap.Error(err))
	}
}
