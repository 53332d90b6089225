package analytics

import (
	"fmt"
	"sort"
	"time"

	"order-analytics/pkg/models"
	"order-analytics/pkg/window"
)

// CustomerMetrics is the RFM base pass: one row per customer with at least
// one completed order, carrying last-order date, recency in days against the
// explicit as-of instant, completed-order count and net revenue total.
func CustomerMetrics(customers []models.Customer, revs []models.OrderRevenue, asOf time.Time) []models.CustomerMetric {
	names := make(map[uint64]string, len(customers))
	for _, c := range customers {
		names[c.ID] = c.Name
	}

	byCustomer := make(map[uint64]*models.CustomerMetric)
	var order []uint64
	for _, r := range revs {
		m, ok := byCustomer[r.CustomerID]
		if !ok {
			m = &models.CustomerMetric{CustomerID: r.CustomerID, Name: names[r.CustomerID]}
			byCustomer[r.CustomerID] = m
			order = append(order, r.CustomerID)
		}
		m.Frequency++
		m.Monetary = m.Monetary.Add(r.Revenue)
		if r.OrderDate.After(m.LastOrder) {
			m.LastOrder = r.OrderDate
		}
	}

	out := make([]models.CustomerMetric, 0, len(order))
	for _, id := range order {
		m := byCustomer[id]
		m.RecencyDays = daysBetween(m.LastOrder, asOf)
		out = append(out, *m)
	}
	return out
}

// RFM quantile-scores each dimension into five buckets and classifies the
// customer with an ordered first-match rule chain. Lower recency and higher
// frequency/monetary map to higher scores. An empty population yields an
// empty table.
func RFM(customers []models.Customer, revs []models.OrderRevenue, asOf time.Time) ([]models.RFMRow, error) {
	metrics := CustomerMetrics(customers, revs, asOf)
	if len(metrics) == 0 {
		return nil, nil
	}

	ntile := func(key func(models.CustomerMetric) float64, desc bool) ([]window.Cell, error) {
		return window.Evaluate(metrics, window.Spec[models.CustomerMetric]{
			OrderKey: key,
			Desc:     desc,
			Op:       window.Op[models.CustomerMetric]{Kind: window.Ntile, Buckets: 5},
		})
	}
	// Recency ascending: fewest days since last order lands in bucket 1.
	rCells, err := ntile(func(m models.CustomerMetric) float64 { return float64(m.RecencyDays) }, false)
	if err != nil {
		return nil, fmt.Errorf("rfm recency ntile: %w", err)
	}
	fCells, err := ntile(func(m models.CustomerMetric) float64 { return float64(m.Frequency) }, true)
	if err != nil {
		return nil, fmt.Errorf("rfm frequency ntile: %w", err)
	}
	mCells, err := ntile(func(m models.CustomerMetric) float64 { return m.Monetary.InexactFloat64() }, true)
	if err != nil {
		return nil, fmt.Errorf("rfm monetary ntile: %w", err)
	}

	rows := make([]models.RFMRow, len(metrics))
	for i, m := range metrics {
		// Bucket 1 is the best in every dimension; scores run 5..1.
		r, f, mo := 6-rCells[i].Int, 6-fCells[i].Int, 6-mCells[i].Int
		rows[i] = models.RFMRow{
			CustomerID:  m.CustomerID,
			Name:        m.Name,
			RecencyDays: m.RecencyDays,
			Frequency:   m.Frequency,
			Monetary:    m.Monetary.Round(2),
			RScore:      r,
			FScore:      f,
			MScore:      mo,
			TotalScore:  r + f + mo,
			Segment:     segmentOf(r, f, mo),
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].TotalScore != rows[j].TotalScore {
			return rows[i].TotalScore > rows[j].TotalScore
		}
		return rows[i].CustomerID < rows[j].CustomerID
	})
	return rows, nil
}

// segmentOf evaluates the segment rules top to bottom, first match wins.
// The rules overlap on purpose; reordering them would silently reclassify
// customers, so the chain is part of the report contract.
func segmentOf(r, f, m int) string {
	switch {
	case r >= 4 && f >= 4 && m >= 4:
		return "Champions"
	case r >= 3 && f >= 3 && m >= 3:
		return "Loyal Customers"
	case r >= 4 && f <= 2:
		return "New Customers"
	case r <= 2 && f >= 3 && m >= 3:
		return "At Risk"
	case r <= 2 && f <= 2:
		return "Lost Customers"
	case m >= 4:
		return "Big Spenders"
	default:
		return "Potential Loyalists"
	}
}

// daysBetween counts whole days from a to b.
func daysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}
