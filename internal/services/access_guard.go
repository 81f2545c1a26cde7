package services

import (
	"servicecrm/internal/common"
	"servicecrm/internal/models"

	"github.com/google/uuid"
)

// The access guard predicates below are pure: they only look at the service
// center and membership rows the caller already loaded. membership is the
// user's own row in center, or nil when there is none.

func isMembershipOf(m *models.Membership, userID uuid.UUID, center *models.ServiceCenter) bool {
	return m != nil && center != nil && m.UserID == userID && m.ServiceCenterID == center.ID
}

// CanAccess reports whether userID may read and write center's data.
func CanAccess(userID uuid.UUID, center *models.ServiceCenter, membership *models.Membership) bool {
	if center == nil || userID == uuid.Nil {
		return false
	}
	return center.IsAdmin(userID) || isMembershipOf(membership, userID, center)
}

// CanManageMembers reports whether userID may rename, delete or change the
// member list of center.
func CanManageMembers(userID uuid.UUID, center *models.ServiceCenter) bool {
	return center.IsAdmin(userID)
}

// CanLeave returns nil when userID may drop its membership in center.
func CanLeave(userID uuid.UUID, center *models.ServiceCenter, membership *models.Membership) error {
	if center.IsAdmin(userID) {
		return common.ErrAdminCannotLeave
	}
	if !isMembershipOf(membership, userID, center) {
		return common.ErrNotAMember
	}
	return nil
}

// CanRemoveMember returns nil when actorID may remove targetID from center.
// targetMembership is the target's row in center, or nil.
func CanRemoveMember(actorID uuid.UUID, center *models.ServiceCenter, targetID uuid.UUID, targetMembership *models.Membership) error {
	if !CanManageMembers(actorID, center) {
		return common.ErrForbidden
	}
	if actorID == targetID {
		return common.ErrCannotRemoveSelf
	}
	if !isMembershipOf(targetMembership, targetID, center) {
		return common.ErrMemberNotFound
	}
	return nil
}
