package models

import (
	"time"

	"github.com/shopspring/decimal"
)

/*
LOAD → input tables, one struct per row, read-only for the engine.
*/

// OrderStatus is the lifecycle state of an order. Only completed orders
// participate in revenue analytics.
type OrderStatus string

const (
	StatusCompleted OrderStatus = "completed"
	StatusCancelled OrderStatus = "cancelled"
	StatusReturned  OrderStatus = "returned"
)

// Customer is one row of the customers table.
type Customer struct {
	ID               uint64
	Name             string
	RegistrationDate time.Time
	Country          string
	Segment          string // declared label, distinct from the computed RFM segment
}

// Product is one row of the products table.
type Product struct {
	ID          uint64
	Name        string
	Category    string
	Subcategory string
	Price       decimal.Decimal
	Cost        decimal.Decimal
}

// Order is one row of the orders table.
type Order struct {
	ID         uint64
	CustomerID uint64
	OrderDate  time.Time
	ShipDate   time.Time
	Status     OrderStatus
}

// OrderItem is one line of an order. DiscountPercent is in [0,100).
type OrderItem struct {
	OrderID         uint64
	ProductID       uint64
	Quantity        int
	UnitPrice       decimal.Decimal
	DiscountPercent decimal.Decimal
}

// CategoryNode is one node of the category forest. ParentID == 0 marks a root.
type CategoryNode struct {
	ID       uint64
	Name     string
	ParentID uint64
}

// Snapshot is the materialized read-only input: the four tables plus the
// category forest. The engine never mutates it.
type Snapshot struct {
	Customers  []Customer
	Products   []Product
	Orders     []Order
	OrderItems []OrderItem
	Categories []CategoryNode
}

/*
DERIVED → intermediate rows produced by the revenue/RFM base passes.
*/

// OrderRevenue is one completed order with its net revenue. Produced once by
// the revenue pass and consumed unchanged by every downstream analysis.
type OrderRevenue struct {
	CustomerID uint64
	OrderID    uint64
	OrderDate  time.Time
	Revenue    decimal.Decimal
}

// CustomerMetric is the RFM base row: one per customer with at least one
// completed order.
type CustomerMetric struct {
	CustomerID  uint64
	Name        string
	LastOrder   time.Time
	RecencyDays int
	Frequency   int
	Monetary    decimal.Decimal
}

/*
COMPUTE → result tables, one struct per output row.
*/

// CLVRow ranks a customer by lifetime value (cumulative completed revenue).
type CLVRow struct {
	CustomerID    uint64
	Name          string
	OrderCount    int
	LifetimeValue decimal.Decimal
	Rank          int
}

// RetentionRow is one (cohort, months-elapsed) cell of the retention matrix.
// RetentionRate is nil when the cohort has size zero.
type RetentionRow struct {
	CohortMonth     string // "MM/YYYY"
	MonthsElapsed   int
	ActiveCustomers int
	CohortSize      int
	RetentionRate   *float64 // percent, 2dp
}

// RFMRow scores and classifies one customer.
type RFMRow struct {
	CustomerID  uint64
	Name        string
	RecencyDays int
	Frequency   int
	Monetary    decimal.Decimal
	RScore      int
	FScore      int
	MScore      int
	TotalScore  int
	Segment     string
}

// ForecastRow predicts the next order for a customer with >= 2 completed
// orders.
type ForecastRow struct {
	CustomerID    uint64
	Name          string
	OrderCount    int
	LastOrder     time.Time
	AvgGapDays    float64
	StdDevGapDays float64
	PredictedNext time.Time
	DaysSinceLast int
	Status        string
}

// CategoryPathRow is one resolved node of the category forest.
type CategoryPathRow struct {
	CategoryID uint64
	Name       string
	Path       string // "Root > ... > Node"
	Level      int    // root = 1
}

// DimAll is the sentinel value for a rolled-up cube dimension.
const DimAll = "ALL"

// CubeRow is one grouping-set aggregate. Dims and Totals are indexed alike;
// a dimension rolled up for this row holds DimAll and Totals[i] = true.
// AvgOrderValue is nil when the row covers zero orders.
type CubeRow struct {
	Dims          []string
	Totals        []bool
	Orders        int
	Customers     int
	Units         int
	Revenue       decimal.Decimal
	AvgOrderValue *decimal.Decimal
}

// DailyRevenueRow is one calendar day of completed revenue with a seven-day
// moving average and the delta against the previous day (nil on the first
// day).
type DailyRevenueRow struct {
	Day       time.Time
	Orders    int
	Revenue   decimal.Decimal
	MovingAvg decimal.Decimal
	Delta     *decimal.Decimal
}

/*
CONFIG → run parameters.
*/

// Config holds the parameters of one pipeline run. AsOf is the snapshot
// observation instant used by recency and forecasting; it must be set
// explicitly so that identical inputs always produce identical outputs.
type Config struct {
	AsOf           time.Time
	DenseRetention bool // zero-fill months-elapsed gaps per cohort
	Verbose        bool
}
