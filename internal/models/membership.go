package models

import (
	"time"

	"github.com/google/uuid"
)

// Membership links a user to a service center. Role is derived from the
// service center's admin id, never stored here.
type Membership struct {
	ID              uuid.UUID `json:"id" db:"id"`
	UserID          uuid.UUID `json:"user_id" db:"user_id"`
	ServiceCenterID uuid.UUID `json:"service_center_id" db:"service_center_id"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// Member is a membership row as presented to callers, with the computed role.
type Member struct {
	UserID   uuid.UUID `json:"user_id"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}
