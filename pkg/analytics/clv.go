// Package analytics computes the report tables: lifetime-value ranking,
// cohort retention, RFM segmentation, purchase-interval forecasting and cube
// aggregation, all over the derived revenue rows of one snapshot.
package analytics

import (
	"fmt"
	"sort"

	"order-analytics/pkg/models"
	"order-analytics/pkg/window"

	"github.com/shopspring/decimal"
)

// LifetimeValue ranks customers by lifetime value: the running revenue total
// over the customer's completed orders, taken at the last order. Ties share a
// rank and leave a gap. Customers without a completed order do not appear.
func LifetimeValue(customers []models.Customer, revs []models.OrderRevenue) ([]models.CLVRow, error) {
	names := make(map[uint64]string, len(customers))
	for _, c := range customers {
		names[c.ID] = c.Name
	}

	running, err := window.Evaluate(revs, window.Spec[models.OrderRevenue]{
		PartitionKey: func(r models.OrderRevenue) string { return fmt.Sprintf("%d", r.CustomerID) },
		OrderKey:     func(r models.OrderRevenue) float64 { return float64(r.OrderDate.Unix()) },
		Op: window.Op[models.OrderRevenue]{
			Kind:  window.FrameSum,
			Frame: window.Frame{Unbounded: true},
			Value: func(r models.OrderRevenue) decimal.Decimal { return r.Revenue },
		},
	})
	if err != nil {
		return nil, fmt.Errorf("clv running total: %w", err)
	}

	// The running total at a customer's latest order is the lifetime value.
	byCustomer := make(map[uint64]*models.CLVRow)
	var order []uint64
	for i, r := range revs {
		row, ok := byCustomer[r.CustomerID]
		if !ok {
			row = &models.CLVRow{CustomerID: r.CustomerID, Name: names[r.CustomerID]}
			byCustomer[r.CustomerID] = row
			order = append(order, r.CustomerID)
		}
		row.OrderCount++
		if running[i].Dec.GreaterThanOrEqual(row.LifetimeValue) {
			row.LifetimeValue = running[i].Dec
		}
	}

	rows := make([]models.CLVRow, 0, len(order))
	for _, id := range order {
		rows = append(rows, *byCustomer[id])
	}

	ranks, err := window.Evaluate(rows, window.Spec[models.CLVRow]{
		OrderKey: func(r models.CLVRow) float64 { return r.LifetimeValue.InexactFloat64() },
		Desc:     true,
		Op:       window.Op[models.CLVRow]{Kind: window.Rank},
	})
	if err != nil {
		return nil, fmt.Errorf("clv rank: %w", err)
	}
	for i := range rows {
		rows[i].Rank = ranks[i].Int
		rows[i].LifetimeValue = rows[i].LifetimeValue.Round(2)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Rank != rows[j].Rank {
			return rows[i].Rank < rows[j].Rank
		}
		return rows[i].CustomerID < rows[j].CustomerID
	})
	return rows, nil
}
