package analytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"servicecrm/internal/common"
	"servicecrm/internal/metrics"
	"servicecrm/internal/models"
	"servicecrm/internal/repositories"
	"servicecrm/internal/services"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

type MockCache struct {
	mock.Mock
}

func (m *MockCache) GetAnalytics(ctx context.Context, centerID uuid.UUID, period string) (*models.AnalyticsResult, error) {
	args := m.Called(ctx, centerID, period)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AnalyticsResult), args.Error(1)
}

func (m *MockCache) AnalyticsGeneration(ctx context.Context, centerID uuid.UUID) (int64, error) {
	args := m.Called(ctx, centerID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCache) SetAnalytics(ctx context.Context, centerID uuid.UUID, period string, result *models.AnalyticsResult, ttl time.Duration, generation int64) (bool, error) {
	args := m.Called(ctx, centerID, period, result, ttl, generation)
	return args.Bool(0), args.Error(1)
}

type AnalyticsServiceTestSuite struct {
	suite.Suite
	store   *repositories.MemoryStore
	cache   *MockCache
	service *AnalyticsService
	admin   uuid.UUID
	center  *models.ServiceCenter
	ctx     context.Context
}

func (s *AnalyticsServiceTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = repositories.NewMemoryStore(repositories.SequenceConfig{Prefix: "ORD-"})
	s.cache = &MockCache{}
	m := metrics.New(nil)
	access := services.NewAccessChecker(s.store.Tenants(), s.store.Memberships(), services.NewActionLogger(zap.NewNop()), m)
	s.service = NewAnalyticsService(s.store.Orders(), access, s.cache, 5*time.Minute, m, zap.NewNop())
	s.service.now = func() time.Time { return refNow }

	s.admin = uuid.New()
	s.center = &models.ServiceCenter{Name: "Bench", AdminID: s.admin}
	s.Require().NoError(s.store.Tenants().Create(s.ctx, s.center))
}

func (s *AnalyticsServiceTestSuite) addOrder(createdAt time.Time, amount int64) {
	s.Require().NoError(s.store.Orders().Create(s.ctx, &models.Order{
		ServiceCenterID: s.center.ID,
		CreatedAt:       createdAt,
		Status:          models.StatusNew,
		DeviceType:      "Phone",
		Brand:           "Acme",
		Model:           "X1",
		Issue:           "Broken screen",
		Counterparty:    "Jane",
		Amount:          decimal.NewFromInt(amount),
	}))
}

func (s *AnalyticsServiceTestSuite) TestGet_EmptyCenter() {
	s.cache.On("GetAnalytics", mock.Anything, s.center.ID, models.PeriodMonth).Return(nil, nil)
	s.cache.On("AnalyticsGeneration", mock.Anything, s.center.ID).Return(int64(0), nil)
	s.cache.On("SetAnalytics", mock.Anything, s.center.ID, models.PeriodMonth, mock.Anything, 5*time.Minute, int64(0)).Return(true, nil)

	result, err := s.service.Get(s.ctx, s.admin, s.center.ID, models.PeriodMonth)

	s.Require().NoError(err)
	s.Equal(0, result.TotalOrders)
	s.True(result.AverageOrderValue.IsZero())
	s.Len(result.RevenueByBucket, 31)
	s.cache.AssertExpectations(s.T())
}

func (s *AnalyticsServiceTestSuite) TestGet_ComputesFromStoreOnMiss() {
	s.addOrder(refNow.Add(-time.Hour), 100)
	s.addOrder(refNow.Add(-time.Hour), 200)
	s.addOrder(refNow.Add(-time.Hour), 300)
	s.addOrder(refNow.AddDate(0, -3, 0), 5000)

	s.cache.On("GetAnalytics", mock.Anything, s.center.ID, models.PeriodMonth).Return(nil, nil)
	s.cache.On("AnalyticsGeneration", mock.Anything, s.center.ID).Return(int64(0), nil)
	s.cache.On("SetAnalytics", mock.Anything, s.center.ID, models.PeriodMonth, mock.Anything, 5*time.Minute, int64(0)).Return(true, nil)

	result, err := s.service.Get(s.ctx, s.admin, s.center.ID, "month")

	s.Require().NoError(err)
	s.Equal(3, result.TotalOrders)
	s.True(result.TotalRevenue.Equal(decimal.NewFromInt(600)))
	s.True(result.RevenueByBucket[30].Revenue.Equal(decimal.NewFromInt(600)))
}

func (s *AnalyticsServiceTestSuite) TestGet_ServesCachedResult() {
	cached := &models.AnalyticsResult{Period: models.PeriodYear, TotalOrders: 42}
	s.cache.On("GetAnalytics", mock.Anything, s.center.ID, models.PeriodYear).Return(cached, nil)

	result, err := s.service.Get(s.ctx, s.admin, s.center.ID, models.PeriodYear)

	s.Require().NoError(err)
	s.Same(cached, result)
	s.cache.AssertNotCalled(s.T(), "SetAnalytics", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func (s *AnalyticsServiceTestSuite) TestGet_CacheFailureStillComputes() {
	s.addOrder(refNow, 10)
	s.cache.On("GetAnalytics", mock.Anything, s.center.ID, models.PeriodMonth).Return(nil, errors.New("redis down"))
	s.cache.On("AnalyticsGeneration", mock.Anything, s.center.ID).Return(int64(0), nil)
	s.cache.On("SetAnalytics", mock.Anything, s.center.ID, models.PeriodMonth, mock.Anything, 5*time.Minute, int64(0)).Return(false, errors.New("redis down"))

	result, err := s.service.Get(s.ctx, s.admin, s.center.ID, "fortnight")

	s.Require().NoError(err)
	s.Equal(models.PeriodMonth, result.Period)
	s.Equal(1, result.TotalOrders)
}

func (s *AnalyticsServiceTestSuite) TestGet_NonMemberForbidden() {
	_, err := s.service.Get(s.ctx, uuid.New(), s.center.ID, models.PeriodMonth)

	s.ErrorIs(err, common.ErrForbidden)
	s.cache.AssertNotCalled(s.T(), "GetAnalytics", mock.Anything, mock.Anything, mock.Anything)
}

func (s *AnalyticsServiceTestSuite) TestGet_UnknownCenter() {
	_, err := s.service.Get(s.ctx, s.admin, uuid.New(), models.PeriodMonth)

	s.ErrorIs(err, common.ErrTenantNotFound)
}

func (s *AnalyticsServiceTestSuite) TestGet_MemberAllowed() {
	member := uuid.New()
	s.Require().NoError(s.store.Memberships().Add(s.ctx, &models.Membership{UserID: member, ServiceCenterID: s.center.ID}))
	s.cache.On("GetAnalytics", mock.Anything, s.center.ID, models.PeriodYear).Return(nil, nil)
	s.cache.On("AnalyticsGeneration", mock.Anything, s.center.ID).Return(int64(0), nil)
	s.cache.On("SetAnalytics", mock.Anything, s.center.ID, models.PeriodYear, mock.Anything, 5*time.Minute, int64(0)).Return(true, nil)

	result, err := s.service.Get(s.ctx, member, s.center.ID, models.PeriodYear)

	s.Require().NoError(err)
	s.Len(result.RevenueByBucket, 12)
}

func (s *AnalyticsServiceTestSuite) TestRefresh_SkipsWriteWhenInvalidatedMeanwhile() {
	s.addOrder(refNow, 10)
	s.cache.On("AnalyticsGeneration", mock.Anything, s.center.ID).Return(int64(4), nil)
	s.cache.On("SetAnalytics", mock.Anything, s.center.ID, models.PeriodMonth, mock.Anything, 5*time.Minute, int64(4)).Return(false, nil)

	result, err := s.service.Refresh(s.ctx, s.center.ID, models.PeriodMonth)

	s.Require().NoError(err)
	s.Equal(1, result.TotalOrders)
	s.cache.AssertExpectations(s.T())
}

func (s *AnalyticsServiceTestSuite) TestRefresh_GenerationFailureSkipsCache() {
	s.addOrder(refNow, 10)
	s.cache.On("AnalyticsGeneration", mock.Anything, s.center.ID).Return(int64(0), errors.New("redis down"))

	result, err := s.service.Refresh(s.ctx, s.center.ID, models.PeriodYear)

	s.Require().NoError(err)
	s.Equal(1, result.TotalOrders)
	s.cache.AssertNotCalled(s.T(), "SetAnalytics", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAnalyticsServiceTestSuite(t *testing.T) {
	suite.Run(t, new(AnalyticsServiceTestSuite))
}
