package models

import (
	"github.com/shopspring/decimal"
)

// Reporting periods for analytics.
const (
	PeriodMonth = "month"
	PeriodYear  = "year"
)

// Bucket is one slot of a dense time series.
type Bucket struct {
	Key     string          `json:"key"`
	Revenue decimal.Decimal `json:"revenue"`
}

// DeviceTypeCount is a device type ranked by order count.
type DeviceTypeCount struct {
	DeviceType string `json:"device_type"`
	Count      int    `json:"count"`
}

// DeviceTypeRevenue is a device type ranked by revenue.
type DeviceTypeRevenue struct {
	DeviceType string          `json:"device_type"`
	Revenue    decimal.Decimal `json:"revenue"`
}

// AnalyticsResult is the rollup of a tenant's orders over a reporting period.
type AnalyticsResult struct {
	Period              string              `json:"period"`
	TotalOrders         int                 `json:"total_orders"`
	TotalRevenue        decimal.Decimal     `json:"total_revenue"`
	AverageOrderValue   decimal.Decimal     `json:"average_order_value"`
	OrdersByStatus      map[OrderStatus]int `json:"orders_by_status"`
	RevenueByBucket     []Bucket            `json:"revenue_by_bucket"`
	OrdersByDeviceType  []DeviceTypeCount   `json:"orders_by_device_type"`
	RevenueByDeviceType []DeviceTypeRevenue `json:"revenue_by_device_type"`
	ActiveOrders        int                 `json:"active_orders"`
}
