package models

import (
	"time"

	"github.com/google/uuid"
)

// ServiceCenter is a tenant. Its admin is fixed at creation.
type ServiceCenter struct {
	ID            uuid.UUID `json:"id" db:"id"`
	Name          string    `json:"name" db:"name"`
	AdminID       uuid.UUID `json:"admin_id" db:"admin_id"`
	OrderSequence int64     `json:"order_sequence" db:"order_sequence"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// IsAdmin reports whether userID owns the service center.
func (s *ServiceCenter) IsAdmin(userID uuid.UUID) bool {
	return s != nil && userID != uuid.Nil && s.AdminID == userID
}

// Role returns "admin" or "member" for a user known to have access.
func (s *ServiceCenter) Role(userID uuid.UUID) string {
	if s.IsAdmin(userID) {
		return RoleAdmin
	}
	return RoleMember
}

const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)
