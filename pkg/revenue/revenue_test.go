package revenue

import (
	"errors"
	"testing"
	"time"

	"order-analytics/pkg/models"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(y int, m time.Month, dd int) time.Time {
	return time.Date(y, m, dd, 0, 0, 0, 0, time.UTC)
}

func snapshot() *models.Snapshot {
	return &models.Snapshot{
		Customers: []models.Customer{{ID: 1, Name: "Ana"}, {ID: 2, Name: "Bob"}},
		Products:  []models.Product{{ID: 10, Price: d("25.00")}},
		Orders: []models.Order{
			{ID: 100, CustomerID: 1, OrderDate: day(2024, 1, 1), Status: models.StatusCompleted},
			{ID: 101, CustomerID: 1, OrderDate: day(2024, 1, 2), Status: models.StatusCancelled},
			{ID: 102, CustomerID: 2, OrderDate: day(2024, 1, 1), Status: models.StatusCompleted},
		},
		OrderItems: []models.OrderItem{
			{OrderID: 100, ProductID: 10, Quantity: 4, UnitPrice: d("25.00"), DiscountPercent: d("10")},
			{OrderID: 101, ProductID: 10, Quantity: 1, UnitPrice: d("25.00")},
			{OrderID: 102, ProductID: 10, Quantity: 2, UnitPrice: d("25.00")},
		},
	}
}

func TestLineRevenue_AppliesDiscount(t *testing.T) {
	got := LineRevenue(models.OrderItem{Quantity: 4, UnitPrice: d("25.00"), DiscountPercent: d("10")})
	if !got.Equal(d("90")) {
		t.Fatalf("got %v, want 90", got)
	}
}

func TestOrderRevenues_CompletedOnly(t *testing.T) {
	revs, err := OrderRevenues(snapshot())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(revs) != 2 {
		t.Fatalf("got %d rows, want 2 (cancelled order excluded)", len(revs))
	}
	// Same date: order id breaks the tie.
	if revs[0].OrderID != 100 || !revs[0].Revenue.Equal(d("90")) {
		t.Fatalf("row 0: got order %d revenue %v", revs[0].OrderID, revs[0].Revenue)
	}
	if revs[1].OrderID != 102 || !revs[1].Revenue.Equal(d("50")) {
		t.Fatalf("row 1: got order %d revenue %v", revs[1].OrderID, revs[1].Revenue)
	}
}

func TestOrderRevenues_MissingProduct(t *testing.T) {
	snap := snapshot()
	snap.OrderItems[0].ProductID = 999
	_, err := OrderRevenues(snap)
	var ie *models.IntegrityError
	if !errors.As(err, &ie) {
		t.Fatalf("expected IntegrityError, got %v", err)
	}
	if ie.Ref != "products" || ie.RefID != 999 {
		t.Fatalf("error should name the missing product: %v", ie)
	}
}

func TestOrderRevenues_MissingCustomer(t *testing.T) {
	snap := snapshot()
	snap.Orders[0].CustomerID = 999
	_, err := OrderRevenues(snap)
	var ie *models.IntegrityError
	if !errors.As(err, &ie) {
		t.Fatalf("expected IntegrityError, got %v", err)
	}
	if ie.Table != "orders" || ie.Ref != "customers" {
		t.Fatalf("error should name the orders→customers reference: %v", ie)
	}
}

func TestOrderRevenues_MissingOrder(t *testing.T) {
	snap := snapshot()
	snap.OrderItems = append(snap.OrderItems, models.OrderItem{
		OrderID: 999, ProductID: 10, Quantity: 1, UnitPrice: d("1"),
	})
	_, err := OrderRevenues(snap)
	var ie *models.IntegrityError
	if !errors.As(err, &ie) {
		t.Fatalf("expected IntegrityError, got %v", err)
	}
}

func TestOrderRevenues_BadDiscount(t *testing.T) {
	snap := snapshot()
	snap.OrderItems[0].DiscountPercent = d("100")
	if _, err := OrderRevenues(snap); err == nil {
		t.Fatal("expected error for discount of 100, got nil")
	}
}

func TestDailyRevenue_MovingAvgAndDelta(t *testing.T) {
	revs := []models.OrderRevenue{
		{OrderID: 1, OrderDate: day(2024, 1, 1), Revenue: d("100")},
		{OrderID: 2, OrderDate: day(2024, 1, 1), Revenue: d("50")},
		{OrderID: 3, OrderDate: day(2024, 1, 2), Revenue: d("200")},
	}
	rows, err := DailyRevenue(revs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d days, want 2", len(rows))
	}
	if rows[0].Orders != 2 || !rows[0].Revenue.Equal(d("150")) {
		t.Fatalf("day 1: got %d orders, revenue %v", rows[0].Orders, rows[0].Revenue)
	}
	if rows[0].Delta != nil {
		t.Fatal("first day must have nil delta")
	}
	if !rows[1].MovingAvg.Equal(d("175")) {
		t.Fatalf("day 2 moving avg: got %v, want 175", rows[1].MovingAvg)
	}
	if rows[1].Delta == nil || !rows[1].Delta.Equal(d("50")) {
		t.Fatalf("day 2 delta: got %v, want 50", rows[1].Delta)
	}
}

func TestDailyRevenue_Empty(t *testing.T) {
	rows, err := DailyRevenue(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("got %d rows, want 0", len(rows))
	}
}
