package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"servicecrm/internal/common"
	"servicecrm/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type OrderServiceTestSuite struct {
	suite.Suite
	env    *testEnv
	ctx    context.Context
	admin  uuid.UUID
	member uuid.UUID
	center *models.ServiceCenter
}

func (suite *OrderServiceTestSuite) SetupTest() {
	suite.env = newTestEnv()
	suite.ctx = context.Background()
	suite.admin = uuid.New()
	suite.member = uuid.New()
	suite.center = suite.env.seedCenter(suite.admin, suite.member)
	suite.env.cache.On("InvalidateAnalytics", mock.Anything, suite.center.ID).Return(nil).Maybe()
}

func TestOrderServiceTestSuite(t *testing.T) {
	suite.Run(t, new(OrderServiceTestSuite))
}

func validDraft() *models.OrderDraft {
	return &models.OrderDraft{
		DeviceType:   "Smartphone",
		Brand:        "Samsung",
		Model:        "Galaxy S21",
		Issue:        "Cracked screen",
		Counterparty: "Anna Taylor",
		Amount:       decimal.NewFromInt(2500),
	}
}

func (suite *OrderServiceTestSuite) TestCreate_DefaultsAndNumbering() {
	first, err := suite.env.orders.Create(suite.ctx, suite.member, suite.center.ID, validDraft())
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "ORD-1", first.OrderNumber)
	assert.Equal(suite.T(), models.StatusNew, first.Status)
	assert.WithinDuration(suite.T(), time.Now(), first.CreatedAt, time.Minute)

	second, err := suite.env.orders.Create(suite.ctx, suite.admin, suite.center.ID, validDraft())
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "ORD-2", second.OrderNumber)
	suite.env.cache.AssertCalled(suite.T(), "InvalidateAnalytics", mock.Anything, suite.center.ID)
}

func (suite *OrderServiceTestSuite) TestCreate_ConcurrentFromSequenceFive() {
	require.NoError(suite.T(), suite.env.store.SetSequence(suite.center.ID, 5))

	var wg sync.WaitGroup
	numbers := make([]string, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			order, err := suite.env.orders.Create(suite.ctx, suite.member, suite.center.ID, validDraft())
			errs[i] = err
			if err == nil {
				numbers[i] = order.OrderNumber
			}
		}(i)
	}
	wg.Wait()

	require.NoError(suite.T(), errs[0])
	require.NoError(suite.T(), errs[1])
	assert.ElementsMatch(suite.T(), []string{"ORD-6", "ORD-7"}, numbers)
}

func (suite *OrderServiceTestSuite) TestCreate_ValidationReportsEveryField() {
	bad := models.OrderStatus(9)
	draft := &models.OrderDraft{
		Status:       &bad,
		DeviceType:   " ",
		Brand:        "Apple",
		Model:        "iPhone",
		Issue:        "",
		Counterparty: "Bob",
		Amount:       decimal.NewFromInt(1_000_001),
	}

	_, err := suite.env.orders.Create(suite.ctx, suite.member, suite.center.ID, draft)
	var verr *common.ValidationError
	require.True(suite.T(), errors.As(err, &verr))
	assert.Contains(suite.T(), verr.Fields, "device_type")
	assert.Contains(suite.T(), verr.Fields, "issue")
	assert.Contains(suite.T(), verr.Fields, "amount")
	assert.Contains(suite.T(), verr.Fields, "status")
	assert.NotContains(suite.T(), verr.Fields, "brand")

	center, err := suite.env.store.Tenants().GetByID(suite.ctx, suite.center.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(0), center.OrderSequence)
}

func (suite *OrderServiceTestSuite) TestCreate_AmountBoundsInclusive() {
	for _, amount := range []int64{-1, 0, 1_000_000} {
		draft := validDraft()
		draft.Amount = decimal.NewFromInt(amount)
		_, err := suite.env.orders.Create(suite.ctx, suite.member, suite.center.ID, draft)
		assert.NoError(suite.T(), err, "amount %d", amount)
	}
	draft := validDraft()
	draft.Amount = decimal.RequireFromString("-1.01")
	_, err := suite.env.orders.Create(suite.ctx, suite.member, suite.center.ID, draft)
	assert.ErrorIs(suite.T(), err, common.ErrValidationFailed)
}

func (suite *OrderServiceTestSuite) TestCreate_AmountScale() {
	for _, amount := range []string{"10.5", "10.50", "10.500", "-0.99"} {
		draft := validDraft()
		draft.Amount = decimal.RequireFromString(amount)
		_, err := suite.env.orders.Create(suite.ctx, suite.member, suite.center.ID, draft)
		assert.NoError(suite.T(), err, "amount %s", amount)
	}
	for _, amount := range []string{"10.005", "0.001"} {
		draft := validDraft()
		draft.Amount = decimal.RequireFromString(amount)
		_, err := suite.env.orders.Create(suite.ctx, suite.member, suite.center.ID, draft)
		var verr *common.ValidationError
		require.ErrorAs(suite.T(), err, &verr, "amount %s", amount)
		assert.Contains(suite.T(), verr.Fields, "amount")
	}
}

func (suite *OrderServiceTestSuite) TestUpdate_RejectsSubCentAmount() {
	order, err := suite.env.orders.Create(suite.ctx, suite.member, suite.center.ID, validDraft())
	require.NoError(suite.T(), err)

	amount := decimal.RequireFromString("99.999")
	_, err = suite.env.orders.Update(suite.ctx, suite.member, suite.center.ID, order.ID, &models.OrderPatch{Amount: &amount})

	assert.ErrorIs(suite.T(), err, common.ErrValidationFailed)
}

func (suite *OrderServiceTestSuite) TestNonMemberIsForbiddenEverywhere() {
	outsider := uuid.New()
	existing, err := suite.env.orders.Create(suite.ctx, suite.member, suite.center.ID, validDraft())
	require.NoError(suite.T(), err)

	_, err = suite.env.orders.List(suite.ctx, outsider, suite.center.ID, models.OrderSearchFilter{})
	assert.ErrorIs(suite.T(), err, common.ErrForbidden)
	_, err = suite.env.orders.Get(suite.ctx, outsider, suite.center.ID, existing.ID)
	assert.ErrorIs(suite.T(), err, common.ErrForbidden)
	_, err = suite.env.orders.Create(suite.ctx, outsider, suite.center.ID, validDraft())
	assert.ErrorIs(suite.T(), err, common.ErrForbidden)
	status := models.StatusReady
	_, err = suite.env.orders.Update(suite.ctx, outsider, suite.center.ID, existing.ID, &models.OrderPatch{Status: &status})
	assert.ErrorIs(suite.T(), err, common.ErrForbidden)
	err = suite.env.orders.Delete(suite.ctx, outsider, suite.center.ID, existing.ID)
	assert.ErrorIs(suite.T(), err, common.ErrForbidden)

	stored, err := suite.env.store.Orders().GetByID(suite.ctx, suite.center.ID, existing.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.StatusNew, stored.Status)
	center, err := suite.env.store.Tenants().GetByID(suite.ctx, suite.center.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(1), center.OrderSequence)
}

func (suite *OrderServiceTestSuite) TestUpdate_PatchesMutableFieldsOnly() {
	order, err := suite.env.orders.Create(suite.ctx, suite.member, suite.center.ID, validDraft())
	require.NoError(suite.T(), err)

	status := models.StatusReady
	amount := decimal.NewFromInt(3100)
	brand := "  Apple "
	updated, err := suite.env.orders.Update(suite.ctx, suite.admin, suite.center.ID, order.ID, &models.OrderPatch{
		Status: &status,
		Amount: &amount,
		Brand:  &brand,
	})
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.StatusReady, updated.Status)
	assert.True(suite.T(), amount.Equal(updated.Amount))
	assert.Equal(suite.T(), "Apple", updated.Brand)
	assert.Equal(suite.T(), order.OrderNumber, updated.OrderNumber)
	assert.Equal(suite.T(), suite.center.ID, updated.ServiceCenterID)
	assert.Equal(suite.T(), "Samsung", order.Brand)
}

func (suite *OrderServiceTestSuite) TestUpdateAndDelete_OrderOfAnotherCenterIsNotFound() {
	otherAdmin := uuid.New()
	other := suite.env.seedCenter(otherAdmin, suite.member)
	foreign, err := suite.env.orders.Create(suite.ctx, otherAdmin, other.ID, validDraft())
	require.NoError(suite.T(), err)

	status := models.StatusRepair
	_, err = suite.env.orders.Update(suite.ctx, suite.member, suite.center.ID, foreign.ID, &models.OrderPatch{Status: &status})
	assert.ErrorIs(suite.T(), err, common.ErrNotFound)
	err = suite.env.orders.Delete(suite.ctx, suite.member, suite.center.ID, foreign.ID)
	assert.ErrorIs(suite.T(), err, common.ErrNotFound)
}

func (suite *OrderServiceTestSuite) TestDelete() {
	order, err := suite.env.orders.Create(suite.ctx, suite.member, suite.center.ID, validDraft())
	require.NoError(suite.T(), err)

	require.NoError(suite.T(), suite.env.orders.Delete(suite.ctx, suite.member, suite.center.ID, order.ID))
	_, err = suite.env.orders.Get(suite.ctx, suite.member, suite.center.ID, order.ID)
	assert.ErrorIs(suite.T(), err, common.ErrNotFound)

	next, err := suite.env.orders.Create(suite.ctx, suite.member, suite.center.ID, validDraft())
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "ORD-2", next.OrderNumber)
}

func (suite *OrderServiceTestSuite) TestList_DefaultsAndFilters() {
	for i, device := range []string{"Laptop", "Smartphone", "Tablet"} {
		draft := validDraft()
		draft.DeviceType = device
		created := time.Date(2024, 1, 1+i, 10, 0, 0, 0, time.UTC)
		draft.CreatedAt = &created
		_, err := suite.env.orders.Create(suite.ctx, suite.member, suite.center.ID, draft)
		require.NoError(suite.T(), err)
	}

	page, err := suite.env.orders.List(suite.ctx, suite.member, suite.center.ID, models.OrderSearchFilter{})
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 1, page.Page)
	assert.Equal(suite.T(), 20, page.PageSize)
	assert.Equal(suite.T(), 3, page.TotalCount)
	assert.Equal(suite.T(), "Tablet", page.Items[0].DeviceType)

	page, err = suite.env.orders.List(suite.ctx, suite.member, suite.center.ID, models.OrderSearchFilter{Query: "top", PageSize: 500})
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 100, page.PageSize)
	require.Equal(suite.T(), 1, page.TotalCount)
	assert.Equal(suite.T(), "Laptop", page.Items[0].DeviceType)

	bad := models.OrderStatus(42)
	_, err = suite.env.orders.List(suite.ctx, suite.member, suite.center.ID, models.OrderSearchFilter{Status: &bad})
	assert.ErrorIs(suite.T(), err, common.ErrValidationFailed)
}

func (suite *OrderServiceTestSuite) TestCreate_UnknownCenter() {
	_, err := suite.env.orders.Create(suite.ctx, suite.member, uuid.New(), validDraft())
	assert.ErrorIs(suite.T(), err, common.ErrTenantNotFound)
}
