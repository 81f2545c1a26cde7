package repositories

import (
	"context"
	"testing"
	"time"

	"servicecrm/internal/common"
	"servicecrm/internal/models"

	"github.com/google/uuid"
	pgx "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type OrderRepoTestSuite struct {
	suite.Suite
	mock     pgxmock.PgxPoolIface
	repo     OrderRepository
	retries  int
	centerID uuid.UUID
	context  context.Context
}

func (suite *OrderRepoTestSuite) SetupTest() {
	mock, err := pgxmock.NewPool()
	assert.NoError(suite.T(), err)
	suite.mock = mock

	suite.retries = 0
	suite.repo = NewOrderRepo(mock, SequenceConfig{
		Prefix:     "ORD-",
		MaxRetries: 2,
		OnRetry:    func() { suite.retries++ },
	})
	suite.centerID = uuid.New()
	suite.context = context.Background()
}

func (suite *OrderRepoTestSuite) TearDownTest() {
	suite.mock.Close()
}

func TestOrderRepoTestSuite(t *testing.T) {
	suite.Run(t, new(OrderRepoTestSuite))
}

func (suite *OrderRepoTestSuite) newOrder() *models.Order {
	return &models.Order{
		ID:              uuid.New(),
		ServiceCenterID: suite.centerID,
		CreatedAt:       time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC),
		Status:          models.StatusNew,
		DeviceType:      "Smartphone",
		Brand:           "Samsung",
		Model:           "A52",
		Issue:           "Broken screen",
		Counterparty:    "John Doe",
		Amount:          decimal.NewFromInt(150),
	}
}

func orderRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "service_center_id", "order_number", "created_at", "status",
		"device_type", "brand", "model", "issue", "counterparty", "amount", "updated_at"})
}

func (suite *OrderRepoTestSuite) expectAllocation(seq int64) {
	suite.mock.ExpectQuery(`UPDATE service_centers SET order_sequence = order_sequence \+ 1`).
		WithArgs(suite.centerID).
		WillReturnRows(pgxmock.NewRows([]string{"order_sequence"}).AddRow(seq))
}

func (suite *OrderRepoTestSuite) TestCreate_AllocatesNumberInTransaction() {
	order := suite.newOrder()

	suite.mock.ExpectBegin()
	suite.expectAllocation(6)
	suite.mock.ExpectBegin()
	suite.mock.ExpectExec(`INSERT INTO orders`).
		WithArgs(order.ID, suite.centerID, "ORD-6", order.CreatedAt, int16(models.StatusNew),
			"Smartphone", "Samsung", "A52", "Broken screen", "John Doe", order.Amount, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	suite.mock.ExpectCommit()
	suite.mock.ExpectCommit()

	err := suite.repo.Create(suite.context, order)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), "ORD-6", order.OrderNumber)
	assert.Equal(suite.T(), 0, suite.retries)
	assert.NoError(suite.T(), suite.mock.ExpectationsWereMet())
}

func (suite *OrderRepoTestSuite) TestCreate_UnknownCenter() {
	order := suite.newOrder()

	suite.mock.ExpectBegin()
	suite.mock.ExpectQuery(`UPDATE service_centers SET order_sequence`).
		WithArgs(suite.centerID).
		WillReturnError(pgx.ErrNoRows)
	suite.mock.ExpectRollback()

	err := suite.repo.Create(suite.context, order)
	assert.ErrorIs(suite.T(), err, common.ErrTenantNotFound)
	assert.Empty(suite.T(), order.OrderNumber)
	assert.NoError(suite.T(), suite.mock.ExpectationsWereMet())
}

// The counter lives in the outer transaction and only the INSERT is rolled
// back, so the second allocation returns the next value.
func (suite *OrderRepoTestSuite) TestCreate_RetriesOnDuplicateNumber() {
	order := suite.newOrder()
	duplicate := &pgconn.PgError{Code: "23505", ConstraintName: "orders_service_center_id_order_number_key"}

	suite.mock.ExpectBegin()
	suite.expectAllocation(5)
	suite.mock.ExpectBegin()
	suite.mock.ExpectExec(`INSERT INTO orders`).
		WithArgs(order.ID, suite.centerID, "ORD-5", order.CreatedAt, int16(models.StatusNew),
			"Smartphone", "Samsung", "A52", "Broken screen", "John Doe", order.Amount, pgxmock.AnyArg()).
		WillReturnError(duplicate)
	suite.mock.ExpectRollback()
	suite.expectAllocation(6)
	suite.mock.ExpectBegin()
	suite.mock.ExpectExec(`INSERT INTO orders`).
		WithArgs(order.ID, suite.centerID, "ORD-6", order.CreatedAt, int16(models.StatusNew),
			"Smartphone", "Samsung", "A52", "Broken screen", "John Doe", order.Amount, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	suite.mock.ExpectCommit()
	suite.mock.ExpectCommit()

	err := suite.repo.Create(suite.context, order)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), "ORD-6", order.OrderNumber)
	assert.Equal(suite.T(), 1, suite.retries)
	assert.NoError(suite.T(), suite.mock.ExpectationsWereMet())
}

func (suite *OrderRepoTestSuite) TestCreate_RetriesExhausted() {
	order := suite.newOrder()
	duplicate := &pgconn.PgError{Code: "23505"}

	suite.mock.ExpectBegin()
	for seq := int64(1); seq <= 3; seq++ {
		suite.expectAllocation(seq)
		suite.mock.ExpectBegin()
		suite.mock.ExpectExec(`INSERT INTO orders`).WillReturnError(duplicate)
		suite.mock.ExpectRollback()
	}
	suite.mock.ExpectRollback()

	err := suite.repo.Create(suite.context, order)
	assert.ErrorIs(suite.T(), err, common.ErrDuplicateOrderNumber)
	assert.Empty(suite.T(), order.OrderNumber)
	assert.Equal(suite.T(), 2, suite.retries)
	assert.NoError(suite.T(), suite.mock.ExpectationsWereMet())
}

func (suite *OrderRepoTestSuite) TestDeleteAll_LocksCenter() {
	suite.mock.ExpectBegin()
	suite.mock.ExpectQuery(`SELECT id FROM service_centers WHERE id = \$1 FOR SHARE`).
		WithArgs(suite.centerID).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(suite.centerID))
	suite.mock.ExpectExec(`DELETE FROM orders WHERE service_center_id = \$1`).
		WithArgs(suite.centerID).
		WillReturnResult(pgxmock.NewResult("DELETE", 12))
	suite.mock.ExpectCommit()

	deleted, err := suite.repo.DeleteAll(suite.context, suite.centerID)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), 12, deleted)
	assert.NoError(suite.T(), suite.mock.ExpectationsWereMet())
}

func (suite *OrderRepoTestSuite) TestDeleteAll_UnknownCenter() {
	suite.mock.ExpectBegin()
	suite.mock.ExpectQuery(`FOR SHARE`).
		WithArgs(suite.centerID).
		WillReturnError(pgx.ErrNoRows)
	suite.mock.ExpectRollback()

	_, err := suite.repo.DeleteAll(suite.context, suite.centerID)
	assert.ErrorIs(suite.T(), err, common.ErrTenantNotFound)
	assert.NoError(suite.T(), suite.mock.ExpectationsWereMet())
}

func (suite *OrderRepoTestSuite) TestGetByID() {
	id := uuid.New()
	now := time.Now().UTC()
	suite.mock.ExpectQuery(`FROM orders WHERE id = \$1 AND service_center_id = \$2`).
		WithArgs(id, suite.centerID).
		WillReturnRows(orderRows().AddRow(id, suite.centerID, "ORD-3", now, int16(models.StatusRepair),
			"Laptop", "Lenovo", "T14", "No power", "ACME", decimal.RequireFromString("99.50"), now))

	order, err := suite.repo.GetByID(suite.context, suite.centerID, id)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), "ORD-3", order.OrderNumber)
	assert.Equal(suite.T(), models.StatusRepair, order.Status)
	assert.True(suite.T(), decimal.RequireFromString("99.5").Equal(order.Amount))
}

func (suite *OrderRepoTestSuite) TestGetByID_OtherCenterIsNotFound() {
	id := uuid.New()
	suite.mock.ExpectQuery(`FROM orders WHERE id`).
		WithArgs(id, suite.centerID).
		WillReturnError(pgx.ErrNoRows)

	_, err := suite.repo.GetByID(suite.context, suite.centerID, id)
	assert.ErrorIs(suite.T(), err, common.ErrNotFound)
}

func (suite *OrderRepoTestSuite) TestUpdate_RechecksCenter() {
	order := suite.newOrder()
	order.Status = models.StatusReady
	updatedAt := time.Now().UTC()

	suite.mock.ExpectBegin()
	suite.mock.ExpectQuery(`SELECT id FROM service_centers WHERE id = \$1 FOR SHARE`).
		WithArgs(suite.centerID).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(suite.centerID))
	suite.mock.ExpectQuery(`UPDATE orders`).
		WithArgs(order.CreatedAt, int16(models.StatusReady), order.DeviceType, order.Brand, order.Model,
			order.Issue, order.Counterparty, order.Amount, order.ID, suite.centerID).
		WillReturnRows(pgxmock.NewRows([]string{"updated_at"}).AddRow(updatedAt))
	suite.mock.ExpectCommit()

	assert.NoError(suite.T(), suite.repo.Update(suite.context, order))
	assert.Equal(suite.T(), updatedAt, order.UpdatedAt)
	assert.NoError(suite.T(), suite.mock.ExpectationsWereMet())
}

func (suite *OrderRepoTestSuite) TestUpdate_CenterDeletedConcurrently() {
	order := suite.newOrder()

	suite.mock.ExpectBegin()
	suite.mock.ExpectQuery(`FOR SHARE`).
		WithArgs(suite.centerID).
		WillReturnError(pgx.ErrNoRows)
	suite.mock.ExpectRollback()

	assert.ErrorIs(suite.T(), suite.repo.Update(suite.context, order), common.ErrTenantNotFound)
	assert.NoError(suite.T(), suite.mock.ExpectationsWereMet())
}

func (suite *OrderRepoTestSuite) TestUpdate_MissingOrder() {
	order := suite.newOrder()

	suite.mock.ExpectBegin()
	suite.mock.ExpectQuery(`FOR SHARE`).
		WithArgs(suite.centerID).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(suite.centerID))
	suite.mock.ExpectQuery(`UPDATE orders`).WillReturnError(pgx.ErrNoRows)
	suite.mock.ExpectRollback()

	assert.ErrorIs(suite.T(), suite.repo.Update(suite.context, order), common.ErrNotFound)
}

func (suite *OrderRepoTestSuite) TestDelete() {
	id := uuid.New()

	suite.mock.ExpectBegin()
	suite.mock.ExpectQuery(`FOR SHARE`).
		WithArgs(suite.centerID).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(suite.centerID))
	suite.mock.ExpectExec(`DELETE FROM orders WHERE id = \$1 AND service_center_id = \$2`).
		WithArgs(id, suite.centerID).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	suite.mock.ExpectRollback()

	assert.ErrorIs(suite.T(), suite.repo.Delete(suite.context, suite.centerID, id), common.ErrNotFound)
	assert.NoError(suite.T(), suite.mock.ExpectationsWereMet())
}

func (suite *OrderRepoTestSuite) TestSearch_FilterSortAndPage() {
	status := models.StatusRepair
	filter := &models.OrderSearchFilter{Query: "  50%  ", Status: &status, Sort: models.SortAmountDesc, Page: 2, PageSize: 10}
	now := time.Now().UTC()

	suite.mock.ExpectQuery(`SELECT COUNT\(\*\) FROM orders WHERE service_center_id = \$1 AND \(order_number ILIKE \$2 OR .*counterparty ILIKE \$2\) AND status = \$3`).
		WithArgs(suite.centerID, `%50\%%`, int16(models.StatusRepair)).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(11))
	suite.mock.ExpectQuery(`ORDER BY amount DESC, length\(order_number\) DESC, order_number DESC LIMIT \$4 OFFSET \$5`).
		WithArgs(suite.centerID, `%50\%%`, int16(models.StatusRepair), 10, 10).
		WillReturnRows(orderRows().AddRow(uuid.New(), suite.centerID, "ORD-11", now, int16(models.StatusRepair),
			"Tablet", "Apple", "iPad", "50% battery drain", "Jane", decimal.NewFromInt(10), now))

	items, total, err := suite.repo.Search(suite.context, suite.centerID, filter)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), 11, total)
	assert.Len(suite.T(), items, 1)
	assert.NoError(suite.T(), suite.mock.ExpectationsWereMet())
}

func (suite *OrderRepoTestSuite) TestSearch_UnknownSortFallsBackToNewestFirst() {
	filter := &models.OrderSearchFilter{Sort: "bogus"}

	suite.mock.ExpectQuery(`SELECT COUNT\(\*\) FROM orders WHERE service_center_id = \$1$`).
		WithArgs(suite.centerID).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))
	suite.mock.ExpectQuery(`ORDER BY created_at DESC`).
		WithArgs(suite.centerID).
		WillReturnRows(orderRows())

	items, total, err := suite.repo.Search(suite.context, suite.centerID, filter)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), 0, total)
	assert.Empty(suite.T(), items)
}

func (suite *OrderRepoTestSuite) TestListCreatedBetween() {
	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	suite.mock.ExpectQuery(`created_at >= \$2 AND created_at < \$3`).
		WithArgs(suite.centerID, from, to).
		WillReturnRows(orderRows().AddRow(uuid.New(), suite.centerID, "ORD-1", from, int16(models.StatusNew),
			"Phone", "Nokia", "3310", "Keys", "Bob", decimal.NewFromInt(5), from))

	orders, err := suite.repo.ListCreatedBetween(suite.context, suite.centerID, from, to)
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), orders, 1)
}
