package analytics

import (
	"fmt"
	"math"
	"sort"
	"time"

	"order-analytics/pkg/models"
	"order-analytics/pkg/window"

	"github.com/shopspring/decimal"
)

// Forecast status labels, ordered by severity.
const (
	StatusOnTrack = "On Track"
	StatusDue     = "Due for Reorder"
	StatusOverdue = "Overdue - High Churn Risk"
)

// Forecast estimates the next order date per customer from inter-purchase
// gaps. Customers with fewer than two completed orders carry no gap
// statistics and are excluded by contract. Output is ordered by customer id.
func Forecast(customers []models.Customer, revs []models.OrderRevenue, asOf time.Time) ([]models.ForecastRow, error) {
	names := make(map[uint64]string, len(customers))
	for _, c := range customers {
		names[c.ID] = c.Name
	}

	// Gap in days against the previous order of the same customer.
	prev, err := window.Evaluate(revs, window.Spec[models.OrderRevenue]{
		PartitionKey: func(r models.OrderRevenue) string { return fmt.Sprintf("%d", r.CustomerID) },
		OrderKey:     func(r models.OrderRevenue) float64 { return float64(r.OrderDate.Unix()) },
		Op: window.Op[models.OrderRevenue]{
			Kind:   window.Lag,
			Offset: 1,
			Value: func(r models.OrderRevenue) decimal.Decimal {
				return decimal.NewFromInt(r.OrderDate.Unix())
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("forecast lag: %w", err)
	}

	type stats struct {
		gaps  []float64
		count int
		last  time.Time
	}
	byCustomer := make(map[uint64]*stats)
	for i, r := range revs {
		s, ok := byCustomer[r.CustomerID]
		if !ok {
			s = &stats{}
			byCustomer[r.CustomerID] = s
		}
		s.count++
		if r.OrderDate.After(s.last) {
			s.last = r.OrderDate
		}
		if prev[i].Valid {
			gap := float64(r.OrderDate.Unix()-prev[i].Dec.IntPart()) / 86400
			s.gaps = append(s.gaps, gap)
		}
	}

	ids := make([]uint64, 0, len(byCustomer))
	for id, s := range byCustomer {
		if len(s.gaps) > 0 {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	rows := make([]models.ForecastRow, 0, len(ids))
	for _, id := range ids {
		s := byCustomer[id]
		mean, stddev := gapStats(s.gaps)
		since := daysBetween(s.last, asOf)

		status := StatusOnTrack
		switch {
		case float64(since) > mean+stddev:
			status = StatusOverdue
		case float64(since) > mean:
			status = StatusDue
		}

		rows = append(rows, models.ForecastRow{
			CustomerID:    id,
			Name:          names[id],
			OrderCount:    s.count,
			LastOrder:     s.last,
			AvgGapDays:    mean,
			StdDevGapDays: stddev,
			PredictedNext: s.last.AddDate(0, 0, int(math.Round(mean))),
			DaysSinceLast: since,
			Status:        status,
		})
	}
	return rows, nil
}

// gapStats returns mean and sample standard deviation. A single gap has no
// spread, so its deviation is zero.
func gapStats(gaps []float64) (mean, stddev float64) {
	for _, g := range gaps {
		mean += g
	}
	mean /= float64(len(gaps))
	if len(gaps) < 2 {
		return mean, 0
	}
	var ss float64
	for _, g := range gaps {
		ss += (g - mean) * (g - mean)
	}
	return mean, math.Sqrt(ss / float64(len(gaps)-1))
}
