// Package shop is the sqlite-backed catalog, cart and order data layer.
// Every mutating or customer-scoped operation takes the caller's access
// token and fails with a typed *Error carrying a semantic Status.
package shop

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite driver
)

// Variant is one purchasable t-shirt: a (name, size, color) combination with
// its own price and stock level.
type Variant struct {
	ID         string `json:"variant_id"`
	Name       string `json:"name"`
	Size       string `json:"size"`
	Color      string `json:"color"`
	PriceCents int64  `json:"price_cents"`
	Stock      int    `json:"stock"`
}

// CartItem is a cart line joined with its variant's product details.
type CartItem struct {
	ID         string `json:"cart_item_id"`
	CartID     string `json:"cart_id"`
	VariantID  string `json:"variant_id"`
	Name       string `json:"name"`
	Size       string `json:"size"`
	Color      string `json:"color"`
	PriceCents int64  `json:"price_cents"`
	Quantity   int    `json:"quantity"`
	Stock      int    `json:"stock"`
}

// Cart is a customer's cart with its items.
type Cart struct {
	ID     string     `json:"cart_id"`
	Status string     `json:"status"`
	Items  []CartItem `json:"items"`
}

// OrderItem is an order line. PriceCents is the price at order time, which
// may differ from the variant's current price.
type OrderItem struct {
	ID         string `json:"order_item_id"`
	OrderID    string `json:"order_id"`
	VariantID  string `json:"variant_id"`
	Name       string `json:"name"`
	Size       string `json:"size"`
	Color      string `json:"color"`
	PriceCents int64  `json:"price_cents"`
	Quantity   int    `json:"quantity"`
}

// Order is a placed order with its items.
type Order struct {
	ID         string      `json:"order_id"`
	Status     string      `json:"status"`
	Date       time.Time   `json:"order_date"`
	TotalCents int64       `json:"total_cents"`
	Items      []OrderItem `json:"items"`
}

// Cart and order status values.
const (
	CartStatusActive   = "active"
	CartStatusOrdered  = "ordered"
	OrderStatusPending = "pending"
)

// Store provides all shop operations over one sqlite database.
// Safe for concurrent use; sqlite serializes writers.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the shop database at path. ":memory:"
// gives an ephemeral store for tests.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening shop database: %w", err)
	}
	// In-memory sqlite loses state when its only connection closes.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, logger: logger}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing shop schema: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS product_variant (
		variant_id  TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		size        TEXT NOT NULL,
		color       TEXT NOT NULL,
		price_cents INTEGER NOT NULL,
		stock       INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS customer (
		customer_id TEXT PRIMARY KEY,
		email       TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS access_token (
		token       TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL REFERENCES customer(customer_id)
	);
	CREATE TABLE IF NOT EXISTS cart (
		cart_id     TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL REFERENCES customer(customer_id),
		status      TEXT NOT NULL,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS cart_item (
		cart_item_id TEXT PRIMARY KEY,
		cart_id      TEXT NOT NULL REFERENCES cart(cart_id),
		variant_id   TEXT NOT NULL REFERENCES product_variant(variant_id),
		quantity     INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS orders (
		order_id    TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL REFERENCES customer(customer_id),
		cart_id     TEXT NOT NULL,
		order_date  DATETIME NOT NULL,
		status      TEXT NOT NULL,
		total_cents INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS order_item (
		order_item_id TEXT PRIMARY KEY,
		order_id      TEXT NOT NULL REFERENCES orders(order_id),
		variant_id    TEXT NOT NULL REFERENCES product_variant(variant_id),
		quantity      INTEGER NOT NULL,
		item_price_cents INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_cart_customer ON cart(customer_id, status);
	CREATE INDEX IF NOT EXISTS idx_cart_item_cart ON cart_item(cart_id);
	CREATE INDEX IF NOT EXISTS idx_order_customer ON orders(customer_id);
	CREATE INDEX IF NOT EXISTS idx_order_item_order ON order_item(order_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// authenticate resolves an access token to a customer id.
func (s *Store) authenticate(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", notAuthenticated()
	}

	var customerID string
	err := s.db.QueryRowContext(ctx,
		`SELECT customer_id FROM access_token WHERE token = ?`, token,
	).Scan(&customerID)
	if err == sql.ErrNoRows {
		return "", notAuthenticated()
	}
	if err != nil {
		return "", internal("Failed to authenticate", err)
	}
	return customerID, nil
}

// CustomerForToken resolves a bearer token to a customer id. It satisfies
// auth.Authenticator.
func (s *Store) CustomerForToken(ctx context.Context, token string) (string, error) {
	return s.authenticate(ctx, token)
}
