package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"servicecrm/internal/common"
	"servicecrm/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// OrderRepository persists orders. Every method is scoped to one service center.
type OrderRepository interface {
	// Create allocates the next order number and inserts the order in the
	// same transaction. It sets order.OrderNumber on success.
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, centerID, id uuid.UUID) (*models.Order, error)
	Update(ctx context.Context, order *models.Order) error
	Delete(ctx context.Context, centerID, id uuid.UUID) error
	// DeleteAll removes every order of the center and returns how many were
	// removed. The order sequence is left untouched.
	DeleteAll(ctx context.Context, centerID uuid.UUID) (int, error)
	Search(ctx context.Context, centerID uuid.UUID, filter *models.OrderSearchFilter) ([]*models.Order, int, error)
	// ListCreatedBetween returns orders with from <= created_at < to.
	ListCreatedBetween(ctx context.Context, centerID uuid.UUID, from, to time.Time) ([]*models.Order, error)
}

type orderRepo struct {
	db  DB
	seq SequenceConfig
}

func NewOrderRepo(db DB, seq SequenceConfig) OrderRepository {
	return &orderRepo{db: db, seq: seq.withDefaults()}
}

const orderColumns = `id, service_center_id, order_number, created_at, status, device_type, brand, model, issue, counterparty, amount, updated_at`

func scanOrder(row pgx.Row) (*models.Order, error) {
	order := &models.Order{}
	var status int16
	err := row.Scan(&order.ID, &order.ServiceCenterID, &order.OrderNumber, &order.CreatedAt, &status,
		&order.DeviceType, &order.Brand, &order.Model, &order.Issue, &order.Counterparty, &order.Amount, &order.UpdatedAt)
	if err != nil {
		return nil, err
	}
	order.Status = models.OrderStatus(status)
	return order, nil
}

func (r *orderRepo) Create(ctx context.Context, order *models.Order) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	now := time.Now().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return common.StoreError("create order", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// A duplicate number rolls back to the savepoint only, so the counter
	// advanced by allocateNumber stays advanced and the next attempt moves past it.
	var number string
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			r.seq.retried()
		}
		number, err = r.allocateNumber(ctx, tx, order.ServiceCenterID)
		if err != nil {
			return err
		}
		err = insertOrder(ctx, tx, order, number)
		if err == nil {
			break
		}
		if !errors.Is(err, common.ErrDuplicateOrderNumber) {
			return err
		}
		if attempt >= r.seq.MaxRetries {
			return fmt.Errorf("allocate order number for service center %s: %w", order.ServiceCenterID, common.ErrDuplicateOrderNumber)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return common.StoreError("create order", err)
	}
	order.OrderNumber = number
	return nil
}

// allocateNumber increments the center's counter inside tx. The UPDATE row
// lock serializes allocations per service center.
func (r *orderRepo) allocateNumber(ctx context.Context, tx pgx.Tx, centerID uuid.UUID) (string, error) {
	var seq int64
	err := tx.QueryRow(ctx, `
		UPDATE service_centers SET order_sequence = order_sequence + 1
		WHERE id = $1
		RETURNING order_sequence
	`, centerID).Scan(&seq)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", common.ErrTenantNotFound
		}
		return "", common.StoreError("allocate order number", err)
	}
	return FormatOrderNumber(r.seq.Prefix, seq), nil
}

// insertOrder runs the INSERT under a savepoint of tx.
func insertOrder(ctx context.Context, tx pgx.Tx, order *models.Order, number string) error {
	sp, err := tx.Begin(ctx)
	if err != nil {
		return common.StoreError("create order", err)
	}
	_, err = sp.Exec(ctx, `
		INSERT INTO orders (id, service_center_id, order_number, created_at, status, device_type, brand, model, issue, counterparty, amount, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, order.ID, order.ServiceCenterID, number, order.CreatedAt, int16(order.Status),
		order.DeviceType, order.Brand, order.Model, order.Issue, order.Counterparty, order.Amount, order.UpdatedAt)
	if err != nil {
		_ = sp.Rollback(ctx)
		if isUniqueViolation(err) {
			return common.ErrDuplicateOrderNumber
		}
		if isForeignKeyViolation(err) {
			return common.ErrTenantNotFound
		}
		return common.StoreError("create order", err)
	}
	if err := sp.Commit(ctx); err != nil {
		return common.StoreError("create order", err)
	}
	return nil
}

func (r *orderRepo) GetByID(ctx context.Context, centerID, id uuid.UUID) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 AND service_center_id = $2`
	order, err := scanOrder(r.db.QueryRow(ctx, query, id, centerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, common.StoreError("get order", err)
	}
	return order, nil
}

// lockCenter re-checks that the service center exists inside tx, blocking
// while a concurrent delete holds the row.
func lockCenter(ctx context.Context, tx pgx.Tx, centerID uuid.UUID) error {
	var id uuid.UUID
	err := tx.QueryRow(ctx, `SELECT id FROM service_centers WHERE id = $1 FOR SHARE`, centerID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return common.ErrTenantNotFound
	}
	return err
}

func (r *orderRepo) Update(ctx context.Context, order *models.Order) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return common.StoreError("update order", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := lockCenter(ctx, tx, order.ServiceCenterID); err != nil {
		return common.StoreError("update order", err)
	}

	err = tx.QueryRow(ctx, `
		UPDATE orders
		SET created_at = $1, status = $2, device_type = $3, brand = $4, model = $5,
		    issue = $6, counterparty = $7, amount = $8, updated_at = NOW()
		WHERE id = $9 AND service_center_id = $10
		RETURNING updated_at
	`, order.CreatedAt, int16(order.Status), order.DeviceType, order.Brand, order.Model,
		order.Issue, order.Counterparty, order.Amount, order.ID, order.ServiceCenterID).Scan(&order.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return common.ErrNotFound
		}
		return common.StoreError("update order", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return common.StoreError("update order", err)
	}
	return nil
}

func (r *orderRepo) Delete(ctx context.Context, centerID, id uuid.UUID) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return common.StoreError("delete order", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := lockCenter(ctx, tx, centerID); err != nil {
		return common.StoreError("delete order", err)
	}

	tag, err := tx.Exec(ctx, `DELETE FROM orders WHERE id = $1 AND service_center_id = $2`, id, centerID)
	if err != nil {
		return common.StoreError("delete order", err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return common.StoreError("delete order", err)
	}
	return nil
}

func (r *orderRepo) DeleteAll(ctx context.Context, centerID uuid.UUID) (int, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, common.StoreError("clear orders", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := lockCenter(ctx, tx, centerID); err != nil {
		return 0, common.StoreError("clear orders", err)
	}

	tag, err := tx.Exec(ctx, `DELETE FROM orders WHERE service_center_id = $1`, centerID)
	if err != nil {
		return 0, common.StoreError("clear orders", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, common.StoreError("clear orders", err)
	}
	return int(tag.RowsAffected()), nil
}

var orderSortClauses = map[string]string{
	models.SortCreatedDesc: "created_at DESC, length(order_number) DESC, order_number DESC",
	models.SortCreatedAsc:  "created_at ASC, length(order_number) ASC, order_number ASC",
	models.SortAmountDesc:  "amount DESC, length(order_number) DESC, order_number DESC",
	models.SortAmountAsc:   "amount ASC, length(order_number) ASC, order_number ASC",
	models.SortStatusAsc:   "status ASC, length(order_number) ASC, order_number ASC",
	models.SortStatusDesc:  "status DESC, length(order_number) DESC, order_number DESC",
}

// buildOrderFilter returns the WHERE clause and its arguments for filter.
func buildOrderFilter(centerID uuid.UUID, filter *models.OrderSearchFilter) (string, []any) {
	conditions := []string{"service_center_id = $1"}
	args := []any{centerID}

	if q := common.NormalizeSearchQuery(filter.Query); q != "" {
		args = append(args, "%"+common.EscapeLikePattern(q)+"%")
		p := fmt.Sprintf("$%d", len(args))
		fields := []string{"order_number", "device_type", "brand", "model", "issue", "counterparty"}
		matches := make([]string, len(fields))
		for i, f := range fields {
			matches[i] = f + " ILIKE " + p
		}
		conditions = append(conditions, "("+strings.Join(matches, " OR ")+")")
	}
	if filter.Status != nil {
		args = append(args, int16(*filter.Status))
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	return strings.Join(conditions, " AND "), args
}

func (r *orderRepo) Search(ctx context.Context, centerID uuid.UUID, filter *models.OrderSearchFilter) ([]*models.Order, int, error) {
	if filter == nil {
		filter = &models.OrderSearchFilter{}
	}
	where, args := buildOrderFilter(centerID, filter)

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM orders WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, common.StoreError("count orders", err)
	}

	orderBy, ok := orderSortClauses[filter.Sort]
	if !ok {
		orderBy = orderSortClauses[models.SortCreatedDesc]
	}
	query := "SELECT " + orderColumns + " FROM orders WHERE " + where + " ORDER BY " + orderBy
	if filter.PageSize > 0 {
		args = append(args, filter.PageSize, filter.Offset())
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	orders, err := r.queryOrders(ctx, query, args...)
	if err != nil {
		return nil, 0, common.StoreError("search orders", err)
	}
	return orders, total, nil
}

func (r *orderRepo) ListCreatedBetween(ctx context.Context, centerID uuid.UUID, from, to time.Time) ([]*models.Order, error) {
	query := `SELECT ` + orderColumns + `
		FROM orders
		WHERE service_center_id = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at`
	orders, err := r.queryOrders(ctx, query, centerID, from, to)
	if err != nil {
		return nil, common.StoreError("list orders in range", err)
	}
	return orders, nil
}

func (r *orderRepo) queryOrders(ctx context.Context, query string, args ...any) ([]*models.Order, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := []*models.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}
