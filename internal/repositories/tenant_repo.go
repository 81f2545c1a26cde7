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

// TenantRepository persists service centers.
type TenantRepository interface {
	// Create inserts the service center and the creator's membership row atomically.
	Create(ctx context.Context, center *models.ServiceCenter) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.ServiceCenter, error)
	UpdateName(ctx context.Context, id uuid.UUID, name string) error
	// Delete removes the service center together with its orders and memberships.
	Delete(ctx context.Context, id uuid.UUID) error
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.ServiceCenter, error)
	ListIDs(ctx context.Context) ([]uuid.UUID, error)
}

type tenantRepo struct {
	db DB
}

func NewTenantRepo(db DB) TenantRepository {
	return &tenantRepo{db: db}
}

func (r *tenantRepo) Create(ctx context.Context, center *models.ServiceCenter) error {
	if center.ID == uuid.Nil {
		center.ID = uuid.New()
	}
	if center.CreatedAt.IsZero() {
		center.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return common.StoreError("create service center", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO service_centers (id, name, admin_id, order_sequence, created_at)
		VALUES ($1, $2, $3, 0, $4)
	`, center.ID, center.Name, center.AdminID, center.CreatedAt)
	if err != nil {
		return common.StoreError("create service center", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO service_center_members (id, user_id, service_center_id, created_at)
		VALUES ($1, $2, $3, $4)
	`, uuid.New(), center.AdminID, center.ID, center.CreatedAt)
	if err != nil {
		return common.StoreError("create service center", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return common.StoreError("create service center", err)
	}
	center.OrderSequence = 0
	return nil
}

func (r *tenantRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.ServiceCenter, error) {
	center := &models.ServiceCenter{}
	query := `
		SELECT id, name, admin_id, order_sequence, created_at
		FROM service_centers
		WHERE id = $1
	`
	err := r.db.QueryRow(ctx, query, id).Scan(&center.ID, &center.Name, &center.AdminID, &center.OrderSequence, &center.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrTenantNotFound
		}
		return nil, common.StoreError("get service center", err)
	}
	return center, nil
}

func (r *tenantRepo) UpdateName(ctx context.Context, id uuid.UUID, name string) error {
	tag, err := r.db.Exec(ctx, `UPDATE service_centers SET name = $1 WHERE id = $2`, name, id)
	if err != nil {
		return common.StoreError("rename service center", err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrTenantNotFound
	}
	return nil
}

func (r *tenantRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return common.StoreError("delete service center", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// The row lock makes concurrent order writers wait and then observe the deletion.
	var locked uuid.UUID
	err = tx.QueryRow(ctx, `SELECT id FROM service_centers WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return common.ErrTenantNotFound
		}
		return common.StoreError("delete service center", err)
	}

	for _, stmt := range []string{
		`DELETE FROM orders WHERE service_center_id = $1`,
		`DELETE FROM service_center_members WHERE service_center_id = $1`,
		`DELETE FROM service_centers WHERE id = $1`,
	} {
		if _, err := tx.Exec(ctx, stmt, id); err != nil {
			return common.StoreError("delete service center", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return common.StoreError("delete service center", err)
	}
	return nil
}

func (r *tenantRepo) ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.ServiceCenter, error) {
	query := `
		SELECT sc.id, sc.name, sc.admin_id, sc.order_sequence, sc.created_at
		FROM service_centers sc
		WHERE sc.admin_id = $1
		   OR EXISTS (
			SELECT 1 FROM service_center_members m
			WHERE m.service_center_id = sc.id AND m.user_id = $1
		   )
		ORDER BY sc.created_at DESC
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, common.StoreError("list service centers", err)
	}
	defer rows.Close()

	var centers []*models.ServiceCenter
	for rows.Next() {
		center := &models.ServiceCenter{}
		if err := rows.Scan(&center.ID, &center.Name, &center.AdminID, &center.OrderSequence, &center.CreatedAt); err != nil {
			return nil, common.StoreError("list service centers", err)
		}
		centers = append(centers, center)
	}
	if err := rows.Err(); err != nil {
		return nil, common.StoreError("list service centers", err)
	}
	return centers, nil
}

func (r *tenantRepo) ListIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM service_centers ORDER BY created_at`)
	if err != nil {
		return nil, common.StoreError("list service center ids", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, common.StoreError("list service center ids", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, common.StoreError("list service center ids", err)
	}
	return ids, nil
}
