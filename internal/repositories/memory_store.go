package repositories

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"servicecrm/internal/common"
	"servicecrm/internal/models"

	"github.com/google/uuid"
)

// MemoryStore keeps service centers, memberships and orders in process memory.
// It backs the "memory" store driver and the concurrency tests. One mutex
// guards all three collections so cross-entity writes stay atomic.
type MemoryStore struct {
	mu          sync.RWMutex
	seq         SequenceConfig
	centers     map[uuid.UUID]models.ServiceCenter
	memberships map[uuid.UUID]map[uuid.UUID]models.Membership // center -> user -> membership
	orders      map[uuid.UUID]map[uuid.UUID]models.Order      // center -> order id -> order
}

func NewMemoryStore(seq SequenceConfig) *MemoryStore {
	return &MemoryStore{
		seq:         seq.withDefaults(),
		centers:     map[uuid.UUID]models.ServiceCenter{},
		memberships: map[uuid.UUID]map[uuid.UUID]models.Membership{},
		orders:      map[uuid.UUID]map[uuid.UUID]models.Order{},
	}
}

func (s *MemoryStore) Tenants() TenantRepository         { return memoryTenants{s} }
func (s *MemoryStore) Memberships() MembershipRepository { return memoryMemberships{s} }
func (s *MemoryStore) Orders() OrderRepository           { return memoryOrders{s} }

// SetSequence overrides a service center's counter. Used to seed fixtures.
func (s *MemoryStore) SetSequence(centerID uuid.UUID, value int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	center, ok := s.centers[centerID]
	if !ok {
		return common.ErrTenantNotFound
	}
	center.OrderSequence = value
	s.centers[centerID] = center
	return nil
}

type memoryTenants struct{ s *MemoryStore }

func (r memoryTenants) Create(ctx context.Context, center *models.ServiceCenter) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if center.ID == uuid.Nil {
		center.ID = uuid.New()
	}
	if center.CreatedAt.IsZero() {
		center.CreatedAt = time.Now().UTC()
	}
	center.OrderSequence = 0

	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.centers[center.ID] = *center
	r.s.memberships[center.ID] = map[uuid.UUID]models.Membership{
		center.AdminID: {ID: uuid.New(), UserID: center.AdminID, ServiceCenterID: center.ID, CreatedAt: center.CreatedAt},
	}
	r.s.orders[center.ID] = map[uuid.UUID]models.Order{}
	return nil
}

func (r memoryTenants) GetByID(ctx context.Context, id uuid.UUID) (*models.ServiceCenter, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	center, ok := r.s.centers[id]
	if !ok {
		return nil, common.ErrTenantNotFound
	}
	return &center, nil
}

func (r memoryTenants) UpdateName(ctx context.Context, id uuid.UUID, name string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	center, ok := r.s.centers[id]
	if !ok {
		return common.ErrTenantNotFound
	}
	center.Name = name
	r.s.centers[id] = center
	return nil
}

func (r memoryTenants) Delete(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.centers[id]; !ok {
		return common.ErrTenantNotFound
	}
	delete(r.s.orders, id)
	delete(r.s.memberships, id)
	delete(r.s.centers, id)
	return nil
}

func (r memoryTenants) ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.ServiceCenter, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var centers []*models.ServiceCenter
	for id, center := range r.s.centers {
		_, member := r.s.memberships[id][userID]
		if center.AdminID == userID || member {
			c := center
			centers = append(centers, &c)
		}
	}
	sort.Slice(centers, func(i, j int) bool {
		if centers[i].CreatedAt.Equal(centers[j].CreatedAt) {
			return centers[i].ID.String() < centers[j].ID.String()
		}
		return centers[i].CreatedAt.After(centers[j].CreatedAt)
	})
	return centers, nil
}

func (r memoryTenants) ListIDs(ctx context.Context) ([]uuid.UUID, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	ids := make([]uuid.UUID, 0, len(r.s.centers))
	for id := range r.s.centers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}

type memoryMemberships struct{ s *MemoryStore }

func (r memoryMemberships) Add(ctx context.Context, m *models.Membership) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	members, ok := r.s.memberships[m.ServiceCenterID]
	if !ok {
		return common.ErrTenantNotFound
	}
	if _, exists := members[m.UserID]; exists {
		return common.ErrAlreadyMember
	}
	members[m.UserID] = *m
	return nil
}

func (r memoryMemberships) Remove(ctx context.Context, centerID, userID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	members := r.s.memberships[centerID]
	if _, ok := members[userID]; !ok {
		return common.ErrMemberNotFound
	}
	delete(members, userID)
	return nil
}

func (r memoryMemberships) Find(ctx context.Context, centerID, userID uuid.UUID) (*models.Membership, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	m, ok := r.s.memberships[centerID][userID]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (r memoryMemberships) ListByCenter(ctx context.Context, centerID uuid.UUID) ([]*models.Membership, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var members []*models.Membership
	for _, m := range r.s.memberships[centerID] {
		member := m
		members = append(members, &member)
	}
	sort.Slice(members, func(i, j int) bool {
		if members[i].CreatedAt.Equal(members[j].CreatedAt) {
			return members[i].UserID.String() < members[j].UserID.String()
		}
		return members[i].CreatedAt.Before(members[j].CreatedAt)
	})
	return members, nil
}

type memoryOrders struct{ s *MemoryStore }

func (r memoryOrders) Create(ctx context.Context, order *models.Order) error {
	if err := ctx.Err(); err != nil {
		return common.StoreError("create order", err)
	}
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	now := time.Now().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now

	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	center, ok := r.s.centers[order.ServiceCenterID]
	if !ok {
		return common.ErrTenantNotFound
	}
	center.OrderSequence++
	r.s.centers[center.ID] = center
	order.OrderNumber = FormatOrderNumber(r.s.seq.Prefix, center.OrderSequence)
	r.s.orders[center.ID][order.ID] = *order
	return nil
}

func (r memoryOrders) GetByID(ctx context.Context, centerID, id uuid.UUID) (*models.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	order, ok := r.s.orders[centerID][id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &order, nil
}

func (r memoryOrders) Update(ctx context.Context, order *models.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	orders, ok := r.s.orders[order.ServiceCenterID]
	if !ok {
		return common.ErrTenantNotFound
	}
	existing, ok := orders[order.ID]
	if !ok {
		return common.ErrNotFound
	}
	order.OrderNumber = existing.OrderNumber
	order.UpdatedAt = time.Now().UTC()
	orders[order.ID] = *order
	return nil
}

func (r memoryOrders) Delete(ctx context.Context, centerID, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	orders, ok := r.s.orders[centerID]
	if !ok {
		return common.ErrTenantNotFound
	}
	if _, ok := orders[id]; !ok {
		return common.ErrNotFound
	}
	delete(orders, id)
	return nil
}

func (r memoryOrders) DeleteAll(ctx context.Context, centerID uuid.UUID) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	orders, ok := r.s.orders[centerID]
	if !ok {
		return 0, common.ErrTenantNotFound
	}
	n := len(orders)
	r.s.orders[centerID] = make(map[uuid.UUID]models.Order)
	return n, nil
}

func (r memoryOrders) Search(ctx context.Context, centerID uuid.UUID, filter *models.OrderSearchFilter) ([]*models.Order, int, error) {
	if filter == nil {
		filter = &models.OrderSearchFilter{}
	}
	q := strings.ToLower(common.NormalizeSearchQuery(filter.Query))

	r.s.mu.RLock()
	matched := make([]*models.Order, 0)
	for _, o := range r.s.orders[centerID] {
		if filter.Status != nil && o.Status != *filter.Status {
			continue
		}
		if q != "" && !orderMatches(&o, q) {
			continue
		}
		order := o
		matched = append(matched, &order)
	}
	r.s.mu.RUnlock()

	sort.SliceStable(matched, orderLess(filter.Sort, matched))

	total := len(matched)
	if filter.PageSize > 0 {
		start := filter.Offset()
		if start > total {
			start = total
		}
		end := start + filter.PageSize
		if end > total {
			end = total
		}
		matched = matched[start:end]
	}
	return matched, total, nil
}

func (r memoryOrders) ListCreatedBetween(ctx context.Context, centerID uuid.UUID, from, to time.Time) ([]*models.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	orders := []*models.Order{}
	for _, o := range r.s.orders[centerID] {
		if !o.CreatedAt.Before(from) && o.CreatedAt.Before(to) {
			order := o
			orders = append(orders, &order)
		}
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].CreatedAt.Before(orders[j].CreatedAt) })
	return orders, nil
}

func orderMatches(o *models.Order, lowerQuery string) bool {
	for _, field := range []string{o.OrderNumber, o.DeviceType, o.Brand, o.Model, o.Issue, o.Counterparty} {
		if strings.Contains(strings.ToLower(field), lowerQuery) {
			return true
		}
	}
	return false
}

// compareOrderNumbers orders numbers sharing a prefix by their numeric suffix.
func compareOrderNumbers(a, b string) int {
	if len(a) != len(b) {
		return len(a) - len(b)
	}
	return strings.Compare(a, b)
}

func orderLess(sortKey string, orders []*models.Order) func(i, j int) bool {
	return func(i, j int) bool {
		a, b := orders[i], orders[j]
		var primary int
		desc := false
		switch sortKey {
		case models.SortCreatedAsc:
			primary = a.CreatedAt.Compare(b.CreatedAt)
		case models.SortAmountDesc:
			primary, desc = a.Amount.Cmp(b.Amount), true
		case models.SortAmountAsc:
			primary = a.Amount.Cmp(b.Amount)
		case models.SortStatusAsc:
			primary = int(a.Status) - int(b.Status)
		case models.SortStatusDesc:
			primary, desc = int(a.Status)-int(b.Status), true
		default:
			primary, desc = a.CreatedAt.Compare(b.CreatedAt), true
		}
		if primary == 0 {
			primary = compareOrderNumbers(a.OrderNumber, b.OrderNumber)
		}
		if desc {
			return primary > 0
		}
		return primary < 0
	}
}
