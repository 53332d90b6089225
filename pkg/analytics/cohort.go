package analytics

import (
	"math"
	"sort"
	"time"

	"order-analytics/pkg/models"
)

// CohortRetention buckets customers by the calendar month of their first
// completed order and tracks distinct active customers month by month.
// Retention is a percentage of the cohort's fixed size, rounded to two
// decimals. Months with zero active customers are absent unless dense is
// set, in which case every cohort is zero-filled up to its last active
// month.
func CohortRetention(revs []models.OrderRevenue, dense bool) []models.RetentionRow {
	// Cohort month = first completed order month, fixed for the snapshot.
	cohortOf := make(map[uint64]time.Time)
	for _, r := range revs {
		m := monthOf(r.OrderDate)
		if cur, ok := cohortOf[r.CustomerID]; !ok || m.Before(cur) {
			cohortOf[r.CustomerID] = m
		}
	}

	sizes := make(map[time.Time]int)
	for _, m := range cohortOf {
		sizes[m]++
	}

	type cell struct {
		cohort  time.Time
		elapsed int
	}
	active := make(map[cell]map[uint64]struct{})
	for _, r := range revs {
		cohort := cohortOf[r.CustomerID]
		c := cell{cohort: cohort, elapsed: monthsElapsed(cohort, monthOf(r.OrderDate))}
		if active[c] == nil {
			active[c] = make(map[uint64]struct{})
		}
		active[c][r.CustomerID] = struct{}{}
	}

	if dense {
		// Zero-fill the gaps so each cohort has a contiguous calendar.
		last := make(map[time.Time]int)
		for c := range active {
			if c.elapsed > last[c.cohort] {
				last[c.cohort] = c.elapsed
			}
		}
		for cohort, lastActive := range last {
			for e := 0; e <= lastActive; e++ {
				c := cell{cohort: cohort, elapsed: e}
				if active[c] == nil {
					active[c] = make(map[uint64]struct{})
				}
			}
		}
	}

	cells := make([]cell, 0, len(active))
	for c := range active {
		cells = append(cells, c)
	}
	sort.Slice(cells, func(i, j int) bool {
		if !cells[i].cohort.Equal(cells[j].cohort) {
			return cells[i].cohort.Before(cells[j].cohort)
		}
		return cells[i].elapsed < cells[j].elapsed
	})

	rows := make([]models.RetentionRow, 0, len(cells))
	for _, c := range cells {
		size := sizes[c.cohort]
		row := models.RetentionRow{
			CohortMonth:     formatMonth(c.cohort),
			MonthsElapsed:   c.elapsed,
			ActiveCustomers: len(active[c]),
			CohortSize:      size,
		}
		if size > 0 {
			rate := math.Round(float64(len(active[c]))/float64(size)*100*100) / 100
			row.RetentionRate = &rate
		}
		rows = append(rows, row)
	}
	return rows
}

func monthOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// monthsElapsed counts whole calendar months from a to b (a <= b).
func monthsElapsed(a, b time.Time) int {
	return (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
}
