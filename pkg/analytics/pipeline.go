package analytics

import (
	"context"
	"errors"
	"fmt"

	"order-analytics/pkg/hierarchy"
	"order-analytics/pkg/models"
	"order-analytics/pkg/revenue"

	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
)

// Report holds one result table per analysis. HierarchyErr carries a
// category-cycle failure without invalidating the revenue-derived tables,
// since hierarchy resolution is independent of them.
type Report struct {
	CLV          []models.CLVRow
	Retention    []models.RetentionRow
	RFM          []models.RFMRow
	Forecast     []models.ForecastRow
	Daily        []models.DailyRevenueRow
	Cube         []models.CubeRow
	Hierarchy    []models.CategoryPathRow
	HierarchyErr error
}

// Run executes the full pipeline over one snapshot: the revenue pass first,
// then every analysis. Integrity errors abort the run with no report; a full
// run completes or fails as a unit. The as-of date must be set explicitly so
// identical inputs always produce identical outputs.
func Run(ctx context.Context, logger *logrus.Logger, snap *models.Snapshot, cfg models.Config) (*Report, error) {
	if cfg.AsOf.IsZero() {
		return nil, fmt.Errorf("run: as-of date is required")
	}
	if logger == nil {
		logger = logrus.New()
	}

	revs, err := revenue.OrderRevenues(snap)
	if err != nil {
		return nil, fmt.Errorf("revenue pass: %w", err)
	}
	if cfg.Verbose {
		logger.WithFields(logrus.Fields{
			"completed_orders": len(revs),
			"as_of":            cfg.AsOf.Format("2006-01-02"),
		}).Info("revenue pass done")
	}

	report := &Report{}
	steps := []struct {
		name string
		run  func() error
	}{
		{"clv", func() (err error) {
			report.CLV, err = LifetimeValue(snap.Customers, revs)
			return err
		}},
		{"retention", func() error {
			report.Retention = CohortRetention(revs, cfg.DenseRetention)
			return nil
		}},
		{"rfm", func() (err error) {
			report.RFM, err = RFM(snap.Customers, revs, cfg.AsOf)
			return err
		}},
		{"forecast", func() (err error) {
			report.Forecast, err = Forecast(snap.Customers, revs, cfg.AsOf)
			return err
		}},
		{"daily_revenue", func() (err error) {
			report.Daily, err = revenue.DailyRevenue(revs)
			return err
		}},
		{"cube", func() error {
			inputs, err := BuildCubeInputs(snap)
			if err != nil {
				return err
			}
			report.Cube, err = Cube(inputs, DefaultDimensions())
			return err
		}},
		{"hierarchy", func() error {
			rows, err := hierarchy.Resolve(snap.Categories)
			var ce *hierarchy.CycleError
			if errors.As(err, &ce) {
				report.HierarchyErr = err
				return nil
			}
			report.Hierarchy = rows
			return err
		}},
	}

	bar := progressbar.Default(int64(len(steps)))
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := step.run(); err != nil {
			return nil, fmt.Errorf("compute %s: %w", step.name, err)
		}
		_ = bar.Add(1)
		if cfg.Verbose {
			logger.WithField("step", step.name).Info("analysis done")
		}
	}
	return report, nil
}
