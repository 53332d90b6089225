package analytics

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"order-analytics/pkg/models"

	"github.com/shopspring/decimal"
)

// CubeInput is one completed order line joined to its product and customer,
// the fact row the cube aggregates.
type CubeInput struct {
	OrderID    uint64
	CustomerID uint64
	OrderDate  time.Time
	Category   string
	Country    string
	Quantity   int
	Net        decimal.Decimal
}

// Dimension names one grouping axis and extracts its value from a fact row.
type Dimension struct {
	Name    string
	Extract func(CubeInput) string
}

// DefaultDimensions is the report's standard cube: product category, customer
// country and order month ("YYYY-MM" so lexicographic order is
// chronological).
func DefaultDimensions() []Dimension {
	return []Dimension{
		{Name: "category", Extract: func(in CubeInput) string { return in.Category }},
		{Name: "country", Extract: func(in CubeInput) string { return in.Country }},
		{Name: "month", Extract: func(in CubeInput) string { return in.OrderDate.UTC().Format("2006-01") }},
	}
}

// BuildCubeInputs joins completed order lines to products and customers.
// Integrity has normally been checked by the revenue pass already, but the
// builder still fails on a dangling reference rather than dropping rows.
func BuildCubeInputs(snap *models.Snapshot) ([]CubeInput, error) {
	customers := make(map[uint64]models.Customer, len(snap.Customers))
	for _, c := range snap.Customers {
		customers[c.ID] = c
	}
	products := make(map[uint64]models.Product, len(snap.Products))
	for _, p := range snap.Products {
		products[p.ID] = p
	}
	orders := make(map[uint64]models.Order, len(snap.Orders))
	for _, o := range snap.Orders {
		orders[o.ID] = o
	}

	var out []CubeInput
	for _, item := range snap.OrderItems {
		o, ok := orders[item.OrderID]
		if !ok {
			return nil, &models.IntegrityError{Table: "order_items", RowID: item.OrderID, Ref: "orders", RefID: item.OrderID}
		}
		if o.Status != models.StatusCompleted {
			continue
		}
		p, ok := products[item.ProductID]
		if !ok {
			return nil, &models.IntegrityError{Table: "order_items", RowID: item.OrderID, Ref: "products", RefID: item.ProductID}
		}
		c, ok := customers[o.CustomerID]
		if !ok {
			return nil, &models.IntegrityError{Table: "orders", RowID: o.ID, Ref: "customers", RefID: o.CustomerID}
		}
		out = append(out, CubeInput{
			OrderID:    o.ID,
			CustomerID: c.ID,
			OrderDate:  o.OrderDate,
			Category:   p.Category,
			Country:    c.Country,
			Quantity:   item.Quantity,
			Net:        lineNet(item),
		})
	}
	return out, nil
}

// lineNet mirrors the revenue pass formula; the derived value is never
// recomputed from a different pricing source.
func lineNet(item models.OrderItem) decimal.Decimal {
	hundred := decimal.NewFromInt(100)
	factor := hundred.Sub(item.DiscountPercent).Div(hundred)
	return item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))).Mul(factor)
}

// Cube computes every grouping set over up to three dimensions: 2^n subsets,
// with DimAll substituted for rolled-up dimensions and a per-dimension total
// flag. Measures per group: order count, distinct customers, units, revenue
// and average order value (nil on zero orders). Ordering: subsets with fewer
// totals first, grand total last, then lexicographic on the grouping values.
func Cube(inputs []CubeInput, dims []Dimension) ([]models.CubeRow, error) {
	if len(dims) == 0 || len(dims) > 3 {
		return nil, fmt.Errorf("cube: need 1 to 3 dimensions, got %d", len(dims))
	}
	if len(inputs) == 0 {
		return nil, nil
	}

	type agg struct {
		dims      []string
		totals    []bool
		orders    map[uint64]struct{}
		customers map[uint64]struct{}
		units     int
		revenue   decimal.Decimal
	}
	groups := make(map[string]*agg)

	for mask := 0; mask < 1<<len(dims); mask++ {
		for _, in := range inputs {
			values := make([]string, len(dims))
			totals := make([]bool, len(dims))
			for d, dim := range dims {
				if mask&(1<<d) == 0 {
					// Bit unset: this dimension is rolled up in this subset.
					values[d] = models.DimAll
					totals[d] = true
				} else {
					values[d] = dim.Extract(in)
				}
			}
			key := fmt.Sprintf("%d|%s", mask, strings.Join(values, "\x00"))
			g, ok := groups[key]
			if !ok {
				g = &agg{
					dims:      values,
					totals:    totals,
					orders:    make(map[uint64]struct{}),
					customers: make(map[uint64]struct{}),
				}
				groups[key] = g
			}
			g.orders[in.OrderID] = struct{}{}
			g.customers[in.CustomerID] = struct{}{}
			g.units += in.Quantity
			g.revenue = g.revenue.Add(in.Net)
		}
	}

	rows := make([]models.CubeRow, 0, len(groups))
	for _, g := range groups {
		row := models.CubeRow{
			Dims:      g.dims,
			Totals:    g.totals,
			Orders:    len(g.orders),
			Customers: len(g.customers),
			Units:     g.units,
			Revenue:   g.revenue.Round(2),
		}
		if row.Orders > 0 {
			aov := g.revenue.Div(decimal.NewFromInt(int64(row.Orders))).Round(2)
			row.AvgOrderValue = &aov
		}
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool {
		ti, tj := totalCount(rows[i].Totals), totalCount(rows[j].Totals)
		if ti != tj {
			return ti < tj
		}
		for d := range rows[i].Dims {
			if rows[i].Dims[d] != rows[j].Dims[d] {
				return rows[i].Dims[d] < rows[j].Dims[d]
			}
		}
		return false
	})
	return rows, nil
}

func totalCount(totals []bool) int {
	n := 0
	for _, t := range totals {
		if t {
			n++
		}
	}
	return n
}
