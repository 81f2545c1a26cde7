package services

import (
	"context"
	"errors"

	"servicecrm/internal/common"
	"servicecrm/internal/metrics"
	"servicecrm/internal/models"
	"servicecrm/internal/repositories"

	"github.com/google/uuid"
)

// AccessChecker loads a service center and the caller's membership, then
// applies the access guard predicates.
type AccessChecker struct {
	tenants     repositories.TenantRepository
	memberships repositories.MembershipRepository
	actions     ActionLogger
	metrics     *metrics.Metrics
}

func NewAccessChecker(tenants repositories.TenantRepository, memberships repositories.MembershipRepository, actions ActionLogger, m *metrics.Metrics) *AccessChecker {
	return &AccessChecker{tenants: tenants, memberships: memberships, actions: actions, metrics: m}
}

// Load returns the service center and userID's membership row in it (nil when absent).
func (c *AccessChecker) Load(ctx context.Context, userID, centerID uuid.UUID) (*models.ServiceCenter, *models.Membership, error) {
	center, err := c.tenants.GetByID(ctx, centerID)
	if err != nil {
		return nil, nil, err
	}
	membership, err := c.memberships.Find(ctx, centerID, userID)
	if err != nil {
		return nil, nil, err
	}
	return center, membership, nil
}

// RequireAccess fails with ErrForbidden unless userID is the admin or a member.
func (c *AccessChecker) RequireAccess(ctx context.Context, userID, centerID uuid.UUID) (*models.ServiceCenter, error) {
	center, membership, err := c.Load(ctx, userID, centerID)
	if err != nil {
		return nil, err
	}
	if !CanAccess(userID, center, membership) {
		return nil, c.reject(ctx, models.ActionAccessDenied, userID, centerID, common.ErrForbidden, nil)
	}
	return center, nil
}

// RequireAdmin fails with ErrForbidden unless userID is the admin.
func (c *AccessChecker) RequireAdmin(ctx context.Context, userID, centerID uuid.UUID) (*models.ServiceCenter, error) {
	center, err := c.tenants.GetByID(ctx, centerID)
	if err != nil {
		return nil, err
	}
	if !CanManageMembers(userID, center) {
		return nil, c.reject(ctx, models.ActionAccessDenied, userID, centerID, common.ErrForbidden, map[string]any{"required_role": models.RoleAdmin})
	}
	return center, nil
}

// reject records a refused operation and returns err unchanged.
func (c *AccessChecker) reject(ctx context.Context, action string, userID, centerID uuid.UUID, err error, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	details["reason"] = err.Error()
	c.actions.LogAction(ctx, models.ActionEvent{
		Action:          action,
		ServiceCenterID: centerID,
		ActorID:         userID,
		Details:         details,
	})
	c.metrics.MembershipRejections.WithLabelValues(rejectionReason(err)).Inc()
	return err
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, common.ErrAdminCannotLeave):
		return "admin_cannot_leave"
	case errors.Is(err, common.ErrCannotRemoveSelf):
		return "cannot_remove_self"
	case errors.Is(err, common.ErrMemberNotFound):
		return "member_not_found"
	case errors.Is(err, common.ErrNotAMember):
		return "not_a_member"
	default:
		return "forbidden"
	}
}
