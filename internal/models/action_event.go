package models

import (
	"time"

	"github.com/google/uuid"
)

// ActionEvent is a user-visible action worth recording in the action log.
type ActionEvent struct {
	Action          string         `json:"action"`
	ServiceCenterID uuid.UUID      `json:"service_center_id"`
	ActorID         uuid.UUID      `json:"actor_id"`
	Details         map[string]any `json:"details,omitempty"`
	OccurredAt      time.Time      `json:"occurred_at"`
}

// Action names for the action log
const (
	ActionServiceCenterCreated  = "service_center.created"
	ActionServiceCenterRenamed  = "service_center.renamed"
	ActionServiceCenterDeleted  = "service_center.deleted"
	ActionServiceCenterSelected = "service_center.selected"
	ActionAccessDenied          = "service_center.access_denied"
	ActionMemberAdded           = "member.added"
	ActionMemberRemoved         = "member.removed"
	ActionMemberLeft            = "member.left"
	ActionMembershipRejected    = "member.rejected"
	ActionOrderCreated          = "order.created"
	ActionOrderUpdated          = "order.updated"
	ActionOrderDeleted          = "order.deleted"
	ActionOrdersExported        = "order.exported"
	ActionDemoDataGenerated     = "order.demo_generated"
	ActionOrdersCleared         = "order.cleared"
)
