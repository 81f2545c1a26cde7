package jobs

import (
	"context"
	"sync"
	"time"

	"servicecrm/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// refreshConcurrency bounds how many service centers are refreshed at once.
const refreshConcurrency = 5

// AnalyticsRefresher recomputes and caches one service center's analytics.
type AnalyticsRefresher interface {
	Refresh(ctx context.Context, centerID uuid.UUID, period string) (*models.AnalyticsResult, error)
}

// TenantLister lists every service center id.
type TenantLister interface {
	ListIDs(ctx context.Context) ([]uuid.UUID, error)
}

type AnalyticsRefreshService struct {
	refresher AnalyticsRefresher
	tenants   TenantLister
	log       *zap.Logger
}

type AnalyticsRefreshResult struct {
	TenantsProcessed int
	Failures         int
	LastRefreshAt    time.Time
}

func NewAnalyticsRefreshService(refresher AnalyticsRefresher, tenants TenantLister, log *zap.Logger) *AnalyticsRefreshService {
	return &AnalyticsRefreshService{
		refresher: refresher,
		tenants:   tenants,
		log:       log.Named("analytics_refresh"),
	}
}

// RefreshAnalyticsForTenant warms both periods of one service center.
func (a *AnalyticsRefreshService) RefreshAnalyticsForTenant(ctx context.Context, centerID uuid.UUID) error {
	for _, period := range []string{models.PeriodMonth, models.PeriodYear} {
		if _, err := a.refresher.Refresh(ctx, centerID, period); err != nil {
			return err
		}
	}
	return nil
}

// RefreshAllTenantsAnalytics warms every service center. A failing center is
// logged and counted, it does not stop the others.
func (a *AnalyticsRefreshService) RefreshAllTenantsAnalytics(ctx context.Context) (*AnalyticsRefreshResult, error) {
	ids, err := a.tenants.ListIDs(ctx)
	if err != nil {
		a.log.Error("Failed to list service centers for analytics refresh", zap.Error(err))
		return nil, err
	}

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		failures int
	)
	semaphore := make(chan struct{}, refreshConcurrency)

	for _, id := range ids {
		wg.Add(1)
		go func(centerID uuid.UUID) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			if err := a.RefreshAnalyticsForTenant(ctx, centerID); err != nil {
				a.log.Warn("Failed to refresh analytics", zap.Stringer("service_center_id", centerID), zap.Error(err))
				mu.Lock()
				failures++
				mu.Unlock()
			}
		}(id)
	}
	wg.Wait()

	return &AnalyticsRefreshResult{
		TenantsProcessed: len(ids),
		Failures:         failures,
		LastRefreshAt:    time.Now(),
	}, nil
}

// ScheduledAnalyticsRefresh is the body of the periodic job.
func (a *AnalyticsRefreshService) ScheduledAnalyticsRefresh(ctx context.Context) error {
	start := time.Now()
	result, err := a.RefreshAllTenantsAnalytics(ctx)
	if err != nil {
		return err
	}
	a.log.Info("Scheduled analytics refresh completed",
		zap.Int("service_centers", result.TenantsProcessed),
		zap.Int("failures", result.Failures),
		zap.Duration("took", time.Since(start)))
	return nil
}
