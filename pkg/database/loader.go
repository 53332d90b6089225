// Package database loads the read-only snapshot the engine consumes: the
// four input tables plus the category forest, from a MariaDB/MySQL database.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	"order-analytics/pkg/models"

	_ "github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
)

// Open accepts mariadb:// or mysql:// URLs as well as native driver DSNs.
func Open(dsn string) (*sql.DB, string, error) {
	mysqlDSN, err := toMySQLDSN(dsn)
	if err != nil {
		return nil, "", err
	}
	db, err := sql.Open("mysql", mysqlDSN)
	if err != nil {
		return nil, "", err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, mysqlDSN, nil
}

func toMySQLDSN(dsn string) (string, error) {
	if strings.HasPrefix(dsn, "mariadb://") || strings.HasPrefix(dsn, "mysql://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", fmt.Errorf("parse dsn: %w", err)
		}
		user := ""
		pass := ""
		if u.User != nil {
			user = u.User.Username()
			pw, _ := u.User.Password()
			pass = pw
		}
		host := u.Host
		db := strings.TrimPrefix(u.Path, "/")
		if user == "" || host == "" || db == "" {
			return "", fmt.Errorf("incomplete dsn (user/host/db)")
		}
		return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true&loc=UTC&interpolateParams=true",
			user, pass, host, db), nil
	}
	return dsn, nil
}

// LoadSnapshot reads the five tables and verifies referential integrity
// before handing the snapshot to the engine. Integrity violations abort the
// load.
func LoadSnapshot(ctx context.Context, db *sql.DB) (*models.Snapshot, error) {
	snap := &models.Snapshot{}
	var err error

	if snap.Customers, err = loadCustomers(ctx, db); err != nil {
		return nil, fmt.Errorf("load customers: %w", err)
	}
	if snap.Products, err = loadProducts(ctx, db); err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	if snap.Orders, err = loadOrders(ctx, db); err != nil {
		return nil, fmt.Errorf("load orders: %w", err)
	}
	if snap.OrderItems, err = loadOrderItems(ctx, db); err != nil {
		return nil, fmt.Errorf("load order_items: %w", err)
	}
	if snap.Categories, err = loadCategories(ctx, db); err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}
	if err := Validate(snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// Validate checks every foreign key of the snapshot and returns an
// IntegrityError naming the table and row of the first violation. Category
// parent references are checked by the hierarchy resolver, which also owns
// cycle detection.
func Validate(snap *models.Snapshot) error {
	customers := make(map[uint64]struct{}, len(snap.Customers))
	for _, c := range snap.Customers {
		customers[c.ID] = struct{}{}
	}
	products := make(map[uint64]struct{}, len(snap.Products))
	for _, p := range snap.Products {
		products[p.ID] = struct{}{}
	}
	orders := make(map[uint64]struct{}, len(snap.Orders))
	for _, o := range snap.Orders {
		if _, ok := customers[o.CustomerID]; !ok {
			return &models.IntegrityError{Table: "orders", RowID: o.ID, Ref: "customers", RefID: o.CustomerID}
		}
		orders[o.ID] = struct{}{}
	}
	for _, item := range snap.OrderItems {
		if _, ok := orders[item.OrderID]; !ok {
			return &models.IntegrityError{Table: "order_items", RowID: item.OrderID, Ref: "orders", RefID: item.OrderID}
		}
		if _, ok := products[item.ProductID]; !ok {
			return &models.IntegrityError{Table: "order_items", RowID: item.OrderID, Ref: "products", RefID: item.ProductID}
		}
	}
	return nil
}

func loadCustomers(ctx context.Context, db *sql.DB) ([]models.Customer, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, name, registration_date, country, segment
		FROM customers ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Customer
	for rows.Next() {
		var c models.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.RegistrationDate, &c.Country, &c.Segment); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func loadProducts(ctx context.Context, db *sql.DB) ([]models.Product, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, name, category, subcategory, price, cost
		FROM products ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Product
	for rows.Next() {
		var p models.Product
		var price, cost string
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.Subcategory, &price, &cost); err != nil {
			return nil, err
		}
		if p.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("product %d price: %w", p.ID, err)
		}
		if p.Cost, err = decimal.NewFromString(cost); err != nil {
			return nil, fmt.Errorf("product %d cost: %w", p.ID, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func loadOrders(ctx context.Context, db *sql.DB) ([]models.Order, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, customer_id, order_date, ship_date, status
		FROM orders ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Order
	for rows.Next() {
		var o models.Order
		var ship sql.NullTime
		var status string
		if err := rows.Scan(&o.ID, &o.CustomerID, &o.OrderDate, &ship, &status); err != nil {
			return nil, err
		}
		if ship.Valid {
			o.ShipDate = ship.Time
		}
		o.Status = models.OrderStatus(strings.ToLower(status))
		out = append(out, o)
	}
	return out, rows.Err()
}

func loadOrderItems(ctx context.Context, db *sql.DB) ([]models.OrderItem, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT order_id, product_id, quantity, unit_price, discount_percent
		FROM order_items ORDER BY order_id, product_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.OrderItem
	for rows.Next() {
		var it models.OrderItem
		var price, disc string
		if err := rows.Scan(&it.OrderID, &it.ProductID, &it.Quantity, &price, &disc); err != nil {
			return nil, err
		}
		if it.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("order %d item %d unit_price: %w", it.OrderID, it.ProductID, err)
		}
		if it.DiscountPercent, err = decimal.NewFromString(disc); err != nil {
			return nil, fmt.Errorf("order %d item %d discount: %w", it.OrderID, it.ProductID, err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func loadCategories(ctx context.Context, db *sql.DB) ([]models.CategoryNode, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, name, parent_id
		FROM categories ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.CategoryNode
	for rows.Next() {
		var n models.CategoryNode
		var parent sql.NullInt64
		if err := rows.Scan(&n.ID, &n.Name, &parent); err != nil {
			return nil, err
		}
		if parent.Valid {
			n.ParentID = uint64(parent.Int64)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
