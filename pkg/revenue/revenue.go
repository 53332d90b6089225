// Package revenue derives net revenue rows from the snapshot: per line, per
// completed order, and per calendar day. Every downstream analysis consumes
// these rows unchanged.
package revenue

import (
	"fmt"
	"sort"
	"time"

	"order-analytics/pkg/models"
	"order-analytics/pkg/window"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// LineRevenue computes the net revenue of one order line:
// quantity × unit_price × (1 − discount/100). This value is computed once and
// never re-derived from another pricing source.
func LineRevenue(item models.OrderItem) decimal.Decimal {
	factor := hundred.Sub(item.DiscountPercent).Div(hundred)
	return item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))).Mul(factor)
}

// OrderRevenues produces one row per completed order with its net revenue.
// Cancelled and returned orders are dropped here and stay out of every
// aggregate built downstream. Any dangling reference aborts with an
// IntegrityError; malformed quantities or discounts abort as well.
func OrderRevenues(snap *models.Snapshot) ([]models.OrderRevenue, error) {
	customers := make(map[uint64]struct{}, len(snap.Customers))
	for _, c := range snap.Customers {
		customers[c.ID] = struct{}{}
	}
	products := make(map[uint64]struct{}, len(snap.Products))
	for _, p := range snap.Products {
		products[p.ID] = struct{}{}
	}
	orders := make(map[uint64]models.Order, len(snap.Orders))
	for _, o := range snap.Orders {
		if _, ok := customers[o.CustomerID]; !ok {
			return nil, &models.IntegrityError{Table: "orders", RowID: o.ID, Ref: "customers", RefID: o.CustomerID}
		}
		orders[o.ID] = o
	}

	totals := make(map[uint64]decimal.Decimal, len(orders))
	for _, item := range snap.OrderItems {
		o, ok := orders[item.OrderID]
		if !ok {
			return nil, &models.IntegrityError{Table: "order_items", RowID: item.OrderID, Ref: "orders", RefID: item.OrderID}
		}
		if _, ok := products[item.ProductID]; !ok {
			return nil, &models.IntegrityError{Table: "order_items", RowID: item.OrderID, Ref: "products", RefID: item.ProductID}
		}
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("order_items: order %d product %d: quantity must be > 0, got %d",
				item.OrderID, item.ProductID, item.Quantity)
		}
		if item.DiscountPercent.IsNegative() || item.DiscountPercent.GreaterThanOrEqual(hundred) {
			return nil, fmt.Errorf("order_items: order %d product %d: discount must be in [0,100), got %v",
				item.OrderID, item.ProductID, item.DiscountPercent)
		}
		if o.Status != models.StatusCompleted {
			continue
		}
		totals[item.OrderID] = totals[item.OrderID].Add(LineRevenue(item))
	}

	out := make([]models.OrderRevenue, 0, len(totals))
	for _, o := range snap.Orders {
		if o.Status != models.StatusCompleted {
			continue
		}
		out = append(out, models.OrderRevenue{
			CustomerID: o.CustomerID,
			OrderID:    o.ID,
			OrderDate:  o.OrderDate,
			Revenue:    totals[o.ID],
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].OrderDate.Equal(out[j].OrderDate) {
			return out[i].OrderDate.Before(out[j].OrderDate)
		}
		return out[i].OrderID < out[j].OrderID
	})
	return out, nil
}

// DailyRevenue groups order revenue by UTC calendar day, ascending, and
// annotates each day with a seven-day moving average and the delta against
// the previous day (nil on the first day).
func DailyRevenue(revs []models.OrderRevenue) ([]models.DailyRevenueRow, error) {
	byDay := make(map[time.Time]*models.DailyRevenueRow)
	var days []time.Time
	for _, r := range revs {
		d := r.OrderDate.UTC().Truncate(24 * time.Hour)
		row, ok := byDay[d]
		if !ok {
			row = &models.DailyRevenueRow{Day: d}
			byDay[d] = row
			days = append(days, d)
		}
		row.Orders++
		row.Revenue = row.Revenue.Add(r.Revenue)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	rows := make([]models.DailyRevenueRow, len(days))
	for i, d := range days {
		rows[i] = *byDay[d]
	}

	avg, err := window.Evaluate(rows, window.Spec[models.DailyRevenueRow]{
		OrderKey: func(r models.DailyRevenueRow) float64 { return float64(r.Day.Unix()) },
		Op: window.Op[models.DailyRevenueRow]{
			Kind:  window.FrameAvg,
			Frame: window.Frame{Preceding: 6},
			Value: func(r models.DailyRevenueRow) decimal.Decimal { return r.Revenue },
		},
	})
	if err != nil {
		return nil, fmt.Errorf("daily moving average: %w", err)
	}
	prev, err := window.Evaluate(rows, window.Spec[models.DailyRevenueRow]{
		OrderKey: func(r models.DailyRevenueRow) float64 { return float64(r.Day.Unix()) },
		Op: window.Op[models.DailyRevenueRow]{
			Kind:   window.Lag,
			Offset: 1,
			Value:  func(r models.DailyRevenueRow) decimal.Decimal { return r.Revenue },
		},
	})
	if err != nil {
		return nil, fmt.Errorf("daily delta: %w", err)
	}

	for i := range rows {
		rows[i].Revenue = rows[i].Revenue.Round(2)
		rows[i].MovingAvg = avg[i].Dec.Round(2)
		if prev[i].Valid {
			d := rows[i].Revenue.Sub(prev[i].Dec.Round(2))
			rows[i].Delta = &d
		}
	}
	return rows, nil
}
