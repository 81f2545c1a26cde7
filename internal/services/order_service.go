package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"servicecrm/internal/common"
	"servicecrm/internal/metrics"
	"servicecrm/internal/models"
	"servicecrm/internal/repositories"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	maxOrderFieldLength = 200
	maxIssueLength      = 2000
)

// OrderService runs order operations on behalf of a user. Every call checks
// that the user may access the service center first.
type OrderService interface {
	List(ctx context.Context, actorID, centerID uuid.UUID, filter models.OrderSearchFilter) (*models.OrderPage, error)
	Get(ctx context.Context, actorID, centerID, orderID uuid.UUID) (*models.Order, error)
	Create(ctx context.Context, actorID, centerID uuid.UUID, draft *models.OrderDraft) (*models.Order, error)
	Update(ctx context.Context, actorID, centerID, orderID uuid.UUID, patch *models.OrderPatch) (*models.Order, error)
	Delete(ctx context.Context, actorID, centerID, orderID uuid.UUID) error
}

type orderService struct {
	orders  repositories.OrderRepository
	access  *AccessChecker
	cache   AnalyticsCache
	actions ActionLogger
	metrics *metrics.Metrics
	log     *zap.Logger
}

// NewOrderService creates a new order service instance
func NewOrderService(
	orders repositories.OrderRepository,
	access *AccessChecker,
	cache AnalyticsCache,
	actions ActionLogger,
	m *metrics.Metrics,
	log *zap.Logger,
) OrderService {
	return &orderService{
		orders:  orders,
		access:  access,
		cache:   cache,
		actions: actions,
		metrics: m,
		log:     log,
	}
}

// validateOrderFields trims text fields in place and collects every violation.
func validateOrderFields(o *models.Order) error {
	verr := &common.ValidationError{}
	verr.Check("device_type", common.ValidateRequiredString(&o.DeviceType, "device_type", maxOrderFieldLength))
	verr.Check("brand", common.ValidateRequiredString(&o.Brand, "brand", maxOrderFieldLength))
	verr.Check("model", common.ValidateRequiredString(&o.Model, "model", maxOrderFieldLength))
	verr.Check("issue", common.ValidateRequiredString(&o.Issue, "issue", maxIssueLength))
	verr.Check("counterparty", common.ValidateRequiredString(&o.Counterparty, "counterparty", maxOrderFieldLength))
	if o.Amount.LessThan(models.MinOrderAmount) || o.Amount.GreaterThan(models.MaxOrderAmount) {
		verr.Add("amount", fmt.Sprintf("amount must be between %s and %s", models.MinOrderAmount, models.MaxOrderAmount))
	} else if !o.Amount.Equal(o.Amount.Truncate(models.OrderAmountScale)) {
		verr.Add("amount", fmt.Sprintf("amount cannot have more than %d decimal places", models.OrderAmountScale))
	}
	if !o.Status.Valid() {
		verr.Add("status", fmt.Sprintf("unknown status %d", int16(o.Status)))
	}
	if o.CreatedAt.IsZero() {
		verr.Add("created_at", "created_at is required")
	}
	return verr.OrNil()
}

func (s *orderService) List(ctx context.Context, actorID, centerID uuid.UUID, filter models.OrderSearchFilter) (*models.OrderPage, error) {
	if _, err := s.access.RequireAccess(ctx, actorID, centerID); err != nil {
		return nil, err
	}

	filter.Page, filter.PageSize = common.ValidatePaginationParams(filter.Page, filter.PageSize)
	filter.Query = common.NormalizeSearchQuery(filter.Query)
	if filter.Status != nil && !filter.Status.Valid() {
		verr := &common.ValidationError{}
		verr.Add("status", fmt.Sprintf("unknown status %d", int16(*filter.Status)))
		return nil, verr
	}

	items, total, err := s.orders.Search(ctx, centerID, &filter)
	if err != nil {
		return nil, err
	}
	return &models.OrderPage{Items: items, TotalCount: total, Page: filter.Page, PageSize: filter.PageSize}, nil
}

func (s *orderService) Get(ctx context.Context, actorID, centerID, orderID uuid.UUID) (*models.Order, error) {
	if _, err := s.access.RequireAccess(ctx, actorID, centerID); err != nil {
		return nil, err
	}
	return s.orders.GetByID(ctx, centerID, orderID)
}

func (s *orderService) Create(ctx context.Context, actorID, centerID uuid.UUID, draft *models.OrderDraft) (*models.Order, error) {
	if _, err := s.access.RequireAccess(ctx, actorID, centerID); err != nil {
		return nil, err
	}

	order := &models.Order{
		ID:              uuid.New(),
		ServiceCenterID: centerID,
		CreatedAt:       time.Now().UTC(),
		Status:          models.StatusNew,
		DeviceType:      draft.DeviceType,
		Brand:           draft.Brand,
		Model:           draft.Model,
		Issue:           draft.Issue,
		Counterparty:    draft.Counterparty,
		Amount:          draft.Amount,
	}
	if draft.CreatedAt != nil {
		order.CreatedAt = draft.CreatedAt.UTC()
	}
	if draft.Status != nil {
		order.Status = *draft.Status
	}
	if err := validateOrderFields(order); err != nil {
		return nil, err
	}

	if err := s.orders.Create(ctx, order); err != nil {
		return nil, err
	}

	s.metrics.OrdersCreated.Inc()
	s.invalidate(ctx, centerID)
	s.actions.LogAction(ctx, models.ActionEvent{
		Action:          models.ActionOrderCreated,
		ServiceCenterID: centerID,
		ActorID:         actorID,
		Details:         map[string]any{"order_id": order.ID.String(), "order_number": order.OrderNumber},
	})
	return order, nil
}

func (s *orderService) Update(ctx context.Context, actorID, centerID, orderID uuid.UUID, patch *models.OrderPatch) (*models.Order, error) {
	if _, err := s.access.RequireAccess(ctx, actorID, centerID); err != nil {
		return nil, err
	}

	order, err := s.orders.GetByID(ctx, centerID, orderID)
	if err != nil {
		return nil, err
	}
	previousStatus := order.Status
	patch.Apply(order)
	order.CreatedAt = order.CreatedAt.UTC()
	if err := validateOrderFields(order); err != nil {
		return nil, err
	}

	if err := s.orders.Update(ctx, order); err != nil {
		return nil, err
	}

	s.invalidate(ctx, centerID)
	details := map[string]any{"order_id": order.ID.String(), "order_number": order.OrderNumber}
	if previousStatus != order.Status {
		details["status"] = strings.Join([]string{previousStatus.String(), order.Status.String()}, " -> ")
	}
	s.actions.LogAction(ctx, models.ActionEvent{
		Action:          models.ActionOrderUpdated,
		ServiceCenterID: centerID,
		ActorID:         actorID,
		Details:         details,
	})
	return order, nil
}

func (s *orderService) Delete(ctx context.Context, actorID, centerID, orderID uuid.UUID) error {
	if _, err := s.access.RequireAccess(ctx, actorID, centerID); err != nil {
		return err
	}
	if err := s.orders.Delete(ctx, centerID, orderID); err != nil {
		return err
	}

	s.invalidate(ctx, centerID)
	s.actions.LogAction(ctx, models.ActionEvent{
		Action:          models.ActionOrderDeleted,
		ServiceCenterID: centerID,
		ActorID:         actorID,
		Details:         map[string]any{"order_id": orderID.String()},
	})
	return nil
}

func (s *orderService) invalidate(ctx context.Context, centerID uuid.UUID) {
	if err := s.cache.InvalidateAnalytics(ctx, centerID); err != nil {
		s.log.Warn("Failed to invalidate analytics cache",
			zap.Stringer("service_center_id", centerID), zap.Error(err))
	}
}
