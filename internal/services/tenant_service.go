package services

import (
	"context"
	"errors"

	"servicecrm/internal/common"
	"servicecrm/internal/metrics"
	"servicecrm/internal/models"
	"servicecrm/internal/repositories"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxServiceCenterNameLength = 200

// ActiveTenantStore is the write side of the session's active service center.
type ActiveTenantStore interface {
	SetActiveTenant(ctx context.Context, userID, centerID uuid.UUID) error
	// ReleaseTenant moves userID to another accessible service center (or
	// none) when its active one is centerID.
	ReleaseTenant(ctx context.Context, userID, centerID uuid.UUID) error
}

// AnalyticsCache drops cached analytics of a service center.
type AnalyticsCache interface {
	InvalidateAnalytics(ctx context.Context, centerID uuid.UUID) error
}

type TenantService interface {
	CreateTenant(ctx context.Context, actorID uuid.UUID, name string) (*models.ServiceCenter, error)
	ListForUser(ctx context.Context, actorID uuid.UUID) ([]*models.ServiceCenter, error)
	Get(ctx context.Context, actorID, centerID uuid.UUID) (*models.ServiceCenter, error)
	Rename(ctx context.Context, actorID, centerID uuid.UUID, name string) (*models.ServiceCenter, error)
	Delete(ctx context.Context, actorID, centerID uuid.UUID) error
	Select(ctx context.Context, actorID, centerID uuid.UUID) (*models.ServiceCenter, error)
	ListMembers(ctx context.Context, actorID, centerID uuid.UUID) ([]models.Member, error)
	AddMember(ctx context.Context, actorID, centerID, userID uuid.UUID) (*models.Member, error)
	RemoveMember(ctx context.Context, actorID, centerID, targetID uuid.UUID) error
	Leave(ctx context.Context, actorID, centerID uuid.UUID) error
}

type tenantService struct {
	tenants     repositories.TenantRepository
	memberships repositories.MembershipRepository
	access      *AccessChecker
	sessions    ActiveTenantStore
	cache       AnalyticsCache
	actions     ActionLogger
	metrics     *metrics.Metrics
	log         *zap.Logger
}

func NewTenantService(
	tenants repositories.TenantRepository,
	memberships repositories.MembershipRepository,
	access *AccessChecker,
	sessions ActiveTenantStore,
	cache AnalyticsCache,
	actions ActionLogger,
	m *metrics.Metrics,
	log *zap.Logger,
) TenantService {
	return &tenantService{
		tenants:     tenants,
		memberships: memberships,
		access:      access,
		sessions:    sessions,
		cache:       cache,
		actions:     actions,
		metrics:     m,
		log:         log,
	}
}

func validateCenterName(name *string) error {
	verr := &common.ValidationError{}
	verr.Check("name", common.ValidateRequiredString(name, "name", maxServiceCenterNameLength))
	return verr.OrNil()
}

func (s *tenantService) CreateTenant(ctx context.Context, actorID uuid.UUID, name string) (*models.ServiceCenter, error) {
	if actorID == uuid.Nil {
		return nil, common.ErrForbidden
	}
	if err := validateCenterName(&name); err != nil {
		return nil, err
	}

	center := &models.ServiceCenter{
		ID:      uuid.New(),
		Name:    name,
		AdminID: actorID,
	}
	if err := s.tenants.Create(ctx, center); err != nil {
		return nil, err
	}

	s.setActive(ctx, actorID, center.ID)
	s.actions.LogAction(ctx, models.ActionEvent{
		Action:          models.ActionServiceCenterCreated,
		ServiceCenterID: center.ID,
		ActorID:         actorID,
		Details:         map[string]any{"name": center.Name},
	})
	return center, nil
}

func (s *tenantService) ListForUser(ctx context.Context, actorID uuid.UUID) ([]*models.ServiceCenter, error) {
	return s.tenants.ListForUser(ctx, actorID)
}

func (s *tenantService) Get(ctx context.Context, actorID, centerID uuid.UUID) (*models.ServiceCenter, error) {
	return s.access.RequireAccess(ctx, actorID, centerID)
}

func (s *tenantService) Rename(ctx context.Context, actorID, centerID uuid.UUID, name string) (*models.ServiceCenter, error) {
	if err := validateCenterName(&name); err != nil {
		return nil, err
	}
	center, err := s.access.RequireAdmin(ctx, actorID, centerID)
	if err != nil {
		return nil, err
	}
	if err := s.tenants.UpdateName(ctx, centerID, name); err != nil {
		return nil, err
	}

	s.actions.LogAction(ctx, models.ActionEvent{
		Action:          models.ActionServiceCenterRenamed,
		ServiceCenterID: centerID,
		ActorID:         actorID,
		Details:         map[string]any{"old_name": center.Name, "new_name": name},
	})
	center.Name = name
	return center, nil
}

func (s *tenantService) Delete(ctx context.Context, actorID, centerID uuid.UUID) error {
	center, err := s.access.RequireAdmin(ctx, actorID, centerID)
	if err != nil {
		return err
	}
	members, err := s.memberships.ListByCenter(ctx, centerID)
	if err != nil {
		return err
	}
	if err := s.tenants.Delete(ctx, centerID); err != nil {
		return err
	}

	s.invalidateAnalytics(ctx, centerID)
	s.release(ctx, center.AdminID, centerID)
	for _, m := range members {
		if m.UserID != center.AdminID {
			s.release(ctx, m.UserID, centerID)
		}
	}
	s.actions.LogAction(ctx, models.ActionEvent{
		Action:          models.ActionServiceCenterDeleted,
		ServiceCenterID: centerID,
		ActorID:         actorID,
		Details:         map[string]any{"name": center.Name, "members": len(members)},
	})
	return nil
}

func (s *tenantService) Select(ctx context.Context, actorID, centerID uuid.UUID) (*models.ServiceCenter, error) {
	center, err := s.access.RequireAccess(ctx, actorID, centerID)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.SetActiveTenant(ctx, actorID, centerID); err != nil {
		return nil, err
	}
	s.actions.LogAction(ctx, models.ActionEvent{
		Action:          models.ActionServiceCenterSelected,
		ServiceCenterID: centerID,
		ActorID:         actorID,
	})
	return center, nil
}

func (s *tenantService) ListMembers(ctx context.Context, actorID, centerID uuid.UUID) ([]models.Member, error) {
	center, err := s.access.RequireAccess(ctx, actorID, centerID)
	if err != nil {
		return nil, err
	}
	rows, err := s.memberships.ListByCenter(ctx, centerID)
	if err != nil {
		return nil, err
	}

	members := make([]models.Member, 0, len(rows)+1)
	adminListed := false
	for _, row := range rows {
		if row.UserID == center.AdminID {
			adminListed = true
		}
		members = append(members, models.Member{UserID: row.UserID, Role: center.Role(row.UserID), JoinedAt: row.CreatedAt})
	}
	if !adminListed {
		admin := models.Member{UserID: center.AdminID, Role: models.RoleAdmin, JoinedAt: center.CreatedAt}
		members = append([]models.Member{admin}, members...)
	}
	return members, nil
}

func (s *tenantService) AddMember(ctx context.Context, actorID, centerID, userID uuid.UUID) (*models.Member, error) {
	if userID == uuid.Nil {
		verr := &common.ValidationError{}
		verr.Add("user_id", "user_id is required")
		return nil, verr
	}
	center, err := s.access.RequireAdmin(ctx, actorID, centerID)
	if err != nil {
		return nil, err
	}

	row := &models.Membership{ID: uuid.New(), UserID: userID, ServiceCenterID: centerID}
	if err := s.memberships.Add(ctx, row); err != nil {
		if errors.Is(err, common.ErrAlreadyMember) {
			return nil, s.access.reject(ctx, models.ActionMembershipRejected, actorID, centerID, err, map[string]any{"target_id": userID.String()})
		}
		return nil, err
	}

	s.actions.LogAction(ctx, models.ActionEvent{
		Action:          models.ActionMemberAdded,
		ServiceCenterID: centerID,
		ActorID:         actorID,
		Details:         map[string]any{"target_id": userID.String()},
	})
	return &models.Member{UserID: userID, Role: center.Role(userID), JoinedAt: row.CreatedAt}, nil
}

func (s *tenantService) RemoveMember(ctx context.Context, actorID, centerID, targetID uuid.UUID) error {
	center, err := s.tenants.GetByID(ctx, centerID)
	if err != nil {
		return err
	}
	target, err := s.memberships.Find(ctx, centerID, targetID)
	if err != nil {
		return err
	}
	if err := CanRemoveMember(actorID, center, targetID, target); err != nil {
		return s.access.reject(ctx, models.ActionMembershipRejected, actorID, centerID, err, map[string]any{"target_id": targetID.String()})
	}

	if err := s.memberships.Remove(ctx, centerID, targetID); err != nil {
		return err
	}

	s.release(ctx, targetID, centerID)
	s.actions.LogAction(ctx, models.ActionEvent{
		Action:          models.ActionMemberRemoved,
		ServiceCenterID: centerID,
		ActorID:         actorID,
		Details:         map[string]any{"target_id": targetID.String()},
	})
	return nil
}

func (s *tenantService) Leave(ctx context.Context, actorID, centerID uuid.UUID) error {
	center, membership, err := s.access.Load(ctx, actorID, centerID)
	if err != nil {
		return err
	}
	if err := CanLeave(actorID, center, membership); err != nil {
		return s.access.reject(ctx, models.ActionMembershipRejected, actorID, centerID, err, nil)
	}

	if err := s.memberships.Remove(ctx, centerID, actorID); err != nil {
		return err
	}

	s.release(ctx, actorID, centerID)
	s.actions.LogAction(ctx, models.ActionEvent{
		Action:          models.ActionMemberLeft,
		ServiceCenterID: centerID,
		ActorID:         actorID,
	})
	return nil
}

// Session and cache updates are best effort; the store change already happened.

func (s *tenantService) setActive(ctx context.Context, userID, centerID uuid.UUID) {
	if err := s.sessions.SetActiveTenant(ctx, userID, centerID); err != nil {
		s.log.Warn("Failed to set active service center",
			zap.Stringer("user_id", userID), zap.Stringer("service_center_id", centerID), zap.Error(err))
	}
}

func (s *tenantService) release(ctx context.Context, userID, centerID uuid.UUID) {
	if err := s.sessions.ReleaseTenant(ctx, userID, centerID); err != nil {
		s.log.Warn("Failed to release active service center",
			zap.Stringer("user_id", userID), zap.Stringer("service_center_id", centerID), zap.Error(err))
	}
}

func (s *tenantService) invalidateAnalytics(ctx context.Context, centerID uuid.UUID) {
	if err := s.cache.InvalidateAnalytics(ctx, centerID); err != nil {
		s.log.Warn("Failed to invalidate analytics cache",
			zap.Stringer("service_center_id", centerID), zap.Error(err))
	}
}
