package repositories

import (
	"context"
	"errors"
	"time"

	"servicecrm/internal/common"
	"servicecrm/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// MembershipRepository persists (user, service center) relations.
type MembershipRepository interface {
	// Add fails with ErrAlreadyMember when the pair exists and
	// ErrTenantNotFound when the service center does not.
	Add(ctx context.Context, m *models.Membership) error
	// Remove fails with ErrMemberNotFound when no row matched.
	Remove(ctx context.Context, centerID, userID uuid.UUID) error
	// Find returns nil, nil when the user holds no membership.
	Find(ctx context.Context, centerID, userID uuid.UUID) (*models.Membership, error)
	ListByCenter(ctx context.Context, centerID uuid.UUID) ([]*models.Membership, error)
}

type membershipRepo struct {
	db DB
}

func NewMembershipRepo(db DB) MembershipRepository {
	return &membershipRepo{db: db}
}

func (r *membershipRepo) Add(ctx context.Context, m *models.Membership) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO service_center_members (id, user_id, service_center_id, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, service_center_id) DO NOTHING
	`
	tag, err := r.db.Exec(ctx, query, m.ID, m.UserID, m.ServiceCenterID, m.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return common.ErrTenantNotFound
		}
		return common.StoreError("add member", err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrAlreadyMember
	}
	return nil
}

func (r *membershipRepo) Remove(ctx context.Context, centerID, userID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM service_center_members
		WHERE service_center_id = $1 AND user_id = $2
	`, centerID, userID)
	if err != nil {
		return common.StoreError("remove member", err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrMemberNotFound
	}
	return nil
}

func (r *membershipRepo) Find(ctx context.Context, centerID, userID uuid.UUID) (*models.Membership, error) {
	m := &models.Membership{}
	query := `
		SELECT id, user_id, service_center_id, created_at
		FROM service_center_members
		WHERE service_center_id = $1 AND user_id = $2
	`
	err := r.db.QueryRow(ctx, query, centerID, userID).Scan(&m.ID, &m.UserID, &m.ServiceCenterID, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, common.StoreError("find member", err)
	}
	return m, nil
}

func (r *membershipRepo) ListByCenter(ctx context.Context, centerID uuid.UUID) ([]*models.Membership, error) {
	query := `
		SELECT id, user_id, service_center_id, created_at
		FROM service_center_members
		WHERE service_center_id = $1
		ORDER BY created_at, user_id
	`
	rows, err := r.db.Query(ctx, query, centerID)
	if err != nil {
		return nil, common.StoreError("list members", err)
	}
	defer rows.Close()

	var members []*models.Membership
	for rows.Next() {
		m := &models.Membership{}
		if err := rows.Scan(&m.ID, &m.UserID, &m.ServiceCenterID, &m.CreatedAt); err != nil {
			return nil, common.StoreError("list members", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, common.StoreError("list members", err)
	}
	return members, nil
}
