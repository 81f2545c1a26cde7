package analytics

import (
	"context"
	"time"

	"servicecrm/internal/common"
	"servicecrm/internal/metrics"
	"servicecrm/internal/models"
	"servicecrm/internal/repositories"
	"servicecrm/internal/services"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Cache stores computed results per service center and period.
// GetAnalytics returns nil, nil on a miss. SetAnalytics stores nothing and
// returns false once the generation has moved past the one given.
type Cache interface {
	GetAnalytics(ctx context.Context, centerID uuid.UUID, period string) (*models.AnalyticsResult, error)
	AnalyticsGeneration(ctx context.Context, centerID uuid.UUID) (int64, error)
	SetAnalytics(ctx context.Context, centerID uuid.UUID, period string, result *models.AnalyticsResult, ttl time.Duration, generation int64) (bool, error)
}

// AnalyticsService handles calculation and caching of analytics data
type AnalyticsService struct {
	orders  repositories.OrderRepository
	access  *services.AccessChecker
	cache   Cache
	ttl     time.Duration
	metrics *metrics.Metrics
	log     *zap.Logger
	now     func() time.Time
}

// NewAnalyticsService creates the service. cache may be nil, in which case
// every call recomputes.
func NewAnalyticsService(
	orders repositories.OrderRepository,
	access *services.AccessChecker,
	cache Cache,
	ttl time.Duration,
	m *metrics.Metrics,
	log *zap.Logger,
) *AnalyticsService {
	return &AnalyticsService{
		orders:  orders,
		access:  access,
		cache:   cache,
		ttl:     ttl,
		metrics: m,
		log:     log.Named("analytics"),
		now:     time.Now,
	}
}

// Get returns the analytics of centerID for actorID. Unknown periods are
// treated as "month".
func (a *AnalyticsService) Get(ctx context.Context, actorID, centerID uuid.UUID, period string) (*models.AnalyticsResult, error) {
	if _, err := a.access.RequireAccess(ctx, actorID, centerID); err != nil {
		return nil, err
	}
	period = NormalizePeriod(period)

	if a.cache != nil {
		cached, err := a.cache.GetAnalytics(ctx, centerID, period)
		if err != nil {
			a.log.Warn("analytics cache read failed", zap.String("service_center_id", centerID.String()), zap.Error(err))
		} else if cached != nil {
			a.metrics.AnalyticsCacheHits.Inc()
			return cached, nil
		}
		a.metrics.AnalyticsCacheMisses.Inc()
	}

	return a.Refresh(ctx, centerID, period)
}

// Refresh recomputes the analytics of centerID and stores them in the cache.
// It does not check access; callers are the guarded Get and background jobs.
func (a *AnalyticsService) Refresh(ctx context.Context, centerID uuid.UUID, period string) (*models.AnalyticsResult, error) {
	period = NormalizePeriod(period)
	start := time.Now()
	defer func() {
		a.metrics.AnalyticsDuration.WithLabelValues(period).Observe(time.Since(start).Seconds())
	}()

	// The generation is read before the orders so that an invalidation racing
	// with the computation keeps the result out of the cache.
	cacheable := a.cache != nil
	var gen int64
	if cacheable {
		var err error
		if gen, err = a.cache.AnalyticsGeneration(ctx, centerID); err != nil {
			a.log.Warn("analytics cache generation unavailable, result not cached",
				zap.String("service_center_id", centerID.String()), zap.Error(err))
			cacheable = false
		}
	}

	w := WindowFor(period, a.now())
	orders, err := a.orders.ListCreatedBetween(ctx, centerID, w.Start, w.End)
	if err != nil {
		return nil, common.StoreError("load orders for analytics", err)
	}
	result := AggregateWindow(orders, w)

	if cacheable {
		stored, err := a.cache.SetAnalytics(ctx, centerID, period, result, a.ttl, gen)
		switch {
		case err != nil:
			a.log.Warn("analytics cache write failed", zap.String("service_center_id", centerID.String()), zap.Error(err))
		case !stored:
			a.log.Debug("analytics invalidated during refresh, result not cached",
				zap.String("service_center_id", centerID.String()), zap.String("period", period))
		}
	}
	return result, nil
}
