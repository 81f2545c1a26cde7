package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus is stored as its ordinal; sorting by status sorts by ordinal.
type OrderStatus int16

const (
	StatusNew OrderStatus = iota
	StatusRepair
	StatusAgreement
	StatusWaitingForParts
	StatusReady
)

var orderStatusNames = [...]string{"New", "Repair", "Agreement", "WaitingForParts", "Ready"}

// AllOrderStatuses lists statuses in ordinal order.
var AllOrderStatuses = []OrderStatus{StatusNew, StatusRepair, StatusAgreement, StatusWaitingForParts, StatusReady}

func (s OrderStatus) Valid() bool {
	return s >= StatusNew && s <= StatusReady
}

func (s OrderStatus) String() string {
	if !s.Valid() {
		return fmt.Sprintf("OrderStatus(%d)", int16(s))
	}
	return orderStatusNames[s]
}

// ParseOrderStatus accepts a status name (case-insensitive) or its ordinal.
func ParseOrderStatus(v string) (OrderStatus, error) {
	v = strings.TrimSpace(v)
	for i, name := range orderStatusNames {
		if strings.EqualFold(name, v) || v == fmt.Sprint(i) {
			return OrderStatus(i), nil
		}
	}
	return 0, fmt.Errorf("unknown order status %q", v)
}

func (s OrderStatus) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid order status %d", int16(s))
	}
	return []byte(s.String()), nil
}

func (s *OrderStatus) UnmarshalText(b []byte) error {
	parsed, err := ParseOrderStatus(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// OrderAmountScale is the number of decimal places the amount column keeps.
const OrderAmountScale = 2

// Amount bounds for an order.
var (
	MinOrderAmount = decimal.NewFromInt(-1)
	MaxOrderAmount = decimal.NewFromInt(1_000_000)
)

// Order is a repair order. ServiceCenterID and OrderNumber never change after creation.
type Order struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	ServiceCenterID uuid.UUID       `json:"service_center_id" db:"service_center_id"`
	OrderNumber     string          `json:"order_number" db:"order_number"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	Status          OrderStatus     `json:"status" db:"status"`
	DeviceType      string          `json:"device_type" db:"device_type"`
	Brand           string          `json:"brand" db:"brand"`
	Model           string          `json:"model" db:"model"`
	Issue           string          `json:"issue" db:"issue"`
	Counterparty    string          `json:"counterparty" db:"counterparty"`
	Amount          decimal.Decimal `json:"amount" db:"amount"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// OrderDraft carries the caller-supplied fields of a new order.
type OrderDraft struct {
	CreatedAt    *time.Time      `json:"created_at,omitempty"`
	Status       *OrderStatus    `json:"status,omitempty"`
	DeviceType   string          `json:"device_type"`
	Brand        string          `json:"brand"`
	Model        string          `json:"model"`
	Issue        string          `json:"issue"`
	Counterparty string          `json:"counterparty"`
	Amount       decimal.Decimal `json:"amount"`
}

// OrderPatch holds the mutable fields of an order; nil fields are left as is.
type OrderPatch struct {
	CreatedAt    *time.Time       `json:"created_at,omitempty"`
	Status       *OrderStatus     `json:"status,omitempty"`
	DeviceType   *string          `json:"device_type,omitempty"`
	Brand        *string          `json:"brand,omitempty"`
	Model        *string          `json:"model,omitempty"`
	Issue        *string          `json:"issue,omitempty"`
	Counterparty *string          `json:"counterparty,omitempty"`
	Amount       *decimal.Decimal `json:"amount,omitempty"`
}

// Apply copies the set fields of p onto o.
func (p *OrderPatch) Apply(o *Order) {
	if p == nil {
		return
	}
	if p.CreatedAt != nil {
		o.CreatedAt = *p.CreatedAt
	}
	if p.Status != nil {
		o.Status = *p.Status
	}
	if p.DeviceType != nil {
		o.DeviceType = *p.DeviceType
	}
	if p.Brand != nil {
		o.Brand = *p.Brand
	}
	if p.Model != nil {
		o.Model = *p.Model
	}
	if p.Issue != nil {
		o.Issue = *p.Issue
	}
	if p.Counterparty != nil {
		o.Counterparty = *p.Counterparty
	}
	if p.Amount != nil {
		o.Amount = *p.Amount
	}
}

// Sort keys accepted by order listings.
const (
	SortCreatedDesc = "created_desc"
	SortCreatedAsc  = "created_asc"
	SortAmountDesc  = "sum_desc"
	SortAmountAsc   = "sum_asc"
	SortStatusAsc   = "status_asc"
	SortStatusDesc  = "status_desc"
)

// OrderSearchFilter holds search, filter, sort and paging criteria for order listings
type OrderSearchFilter struct {
	Query    string       `json:"query,omitempty"`  // substring across number, device, brand, model, issue, counterparty
	Status   *OrderStatus `json:"status,omitempty"` // exact match, AND-combined with Query
	Sort     string       `json:"sort,omitempty"`
	Page     int          `json:"page,omitempty"`
	PageSize int          `json:"page_size,omitempty"`
}

// Offset returns the row offset of the current page.
func (f *OrderSearchFilter) Offset() int {
	if f.Page <= 1 {
		return 0
	}
	return (f.Page - 1) * f.PageSize
}

// OrderPage is one page of a filtered order listing.
type OrderPage struct {
	Items      []*Order `json:"items"`
	TotalCount int      `json:"total_count"`
	Page       int      `json:"page"`
	PageSize   int      `json:"page_size"`
}
