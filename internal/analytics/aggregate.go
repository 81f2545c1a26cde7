package analytics

import (
	"sort"
	"time"

	"servicecrm/internal/models"

	"github.com/shopspring/decimal"
)

// TopDeviceTypes bounds the device type rankings.
const TopDeviceTypes = 10

// Aggregate rolls orders up over the period window ending at now. Orders
// outside the window are ignored. It performs no I/O.
func Aggregate(orders []*models.Order, period string, now time.Time) *models.AnalyticsResult {
	return AggregateWindow(orders, WindowFor(period, now))
}

// AggregateWindow is Aggregate over a precomputed window.
func AggregateWindow(orders []*models.Order, w Window) *models.AnalyticsResult {
	result := &models.AnalyticsResult{
		Period:         w.Period,
		TotalRevenue:   decimal.Zero,
		OrdersByStatus: map[models.OrderStatus]int{},
	}

	buckets := make(map[string]decimal.Decimal, len(w.Keys))
	deviceCounts := map[string]int{}
	deviceRevenue := map[string]decimal.Decimal{}

	for _, o := range orders {
		if o == nil || !w.Contains(o.CreatedAt) {
			continue
		}
		result.TotalOrders++
		result.TotalRevenue = result.TotalRevenue.Add(o.Amount)
		result.OrdersByStatus[o.Status]++
		if o.Status != models.StatusReady {
			result.ActiveOrders++
		}

		key := w.BucketKey(o.CreatedAt)
		buckets[key] = buckets[key].Add(o.Amount)
		deviceCounts[o.DeviceType]++
		deviceRevenue[o.DeviceType] = deviceRevenue[o.DeviceType].Add(o.Amount)
	}

	result.AverageOrderValue = decimal.Zero
	if result.TotalOrders > 0 {
		result.AverageOrderValue = result.TotalRevenue.Div(decimal.NewFromInt(int64(result.TotalOrders)))
	}

	result.RevenueByBucket = make([]models.Bucket, len(w.Keys))
	for i, key := range w.Keys {
		result.RevenueByBucket[i] = models.Bucket{Key: key, Revenue: buckets[key]}
	}

	result.OrdersByDeviceType = rankDeviceCounts(deviceCounts)
	result.RevenueByDeviceType = rankDeviceRevenue(deviceRevenue)
	return result
}

// Rankings sort by metric descending; equal metrics sort by device type name.

func rankDeviceCounts(counts map[string]int) []models.DeviceTypeCount {
	ranked := make([]models.DeviceTypeCount, 0, len(counts))
	for device, n := range counts {
		ranked = append(ranked, models.DeviceTypeCount{DeviceType: device, Count: n})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].DeviceType < ranked[j].DeviceType
	})
	if len(ranked) > TopDeviceTypes {
		ranked = ranked[:TopDeviceTypes]
	}
	return ranked
}

func rankDeviceRevenue(revenue map[string]decimal.Decimal) []models.DeviceTypeRevenue {
	ranked := make([]models.DeviceTypeRevenue, 0, len(revenue))
	for device, sum := range revenue {
		ranked = append(ranked, models.DeviceTypeRevenue{DeviceType: device, Revenue: sum})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if c := ranked[i].Revenue.Cmp(ranked[j].Revenue); c != 0 {
			return c > 0
		}
		return ranked[i].DeviceType < ranked[j].DeviceType
	})
	if len(ranked) > TopDeviceTypes {
		ranked = ranked[:TopDeviceTypes]
	}
	return ranked
}
