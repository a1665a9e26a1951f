package shop

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// FindVariants looks up product variants by name, size and color. Every
// filter supports partial, case-insensitive matching; empty strings match
// everything.
func (s *Store) FindVariants(ctx context.Context, name, size, color string) ([]Variant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT variant_id, name, size, color, price_cents, stock
		FROM product_variant
		WHERE name  LIKE '%' || ? || '%' COLLATE NOCASE
		  AND size  LIKE '%' || ? || '%' COLLATE NOCASE
		  AND color LIKE '%' || ? || '%' COLLATE NOCASE
		ORDER BY name, size, color`,
		name, size, color)
	if err != nil {
		return nil, internal("Failed to query products", err)
	}
	defer rows.Close()

	var variants []Variant
	for rows.Next() {
		var v Variant
		if err := rows.Scan(&v.ID, &v.Name, &v.Size, &v.Color, &v.PriceCents, &v.Stock); err != nil {
			return nil, internal("Failed to read product row", err)
		}
		variants = append(variants, v)
	}
	if err := rows.Err(); err != nil {
		return nil, internal("Failed to read products", err)
	}
	return variants, nil
}

func (s *Store) variant(ctx context.Context, q queryer, variantID string) (Variant, error) {
	var v Variant
	err := q.QueryRowContext(ctx, `
		SELECT variant_id, name, size, color, price_cents, stock
		FROM product_variant WHERE variant_id = ?`, variantID,
	).Scan(&v.ID, &v.Name, &v.Size, &v.Color, &v.PriceCents, &v.Stock)
	if err == sql.ErrNoRows {
		return Variant{}, notFound("Product variant")
	}
	if err != nil {
		return Variant{}, internal("Failed to load product variant", err)
	}
	return v, nil
}

// queryer abstracts *sql.DB and *sql.Tx for helpers used on both.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SeedCustomer inserts a customer and an access token for them. Used by the
// serve command for the demo account and by tests.
func (s *Store) SeedCustomer(ctx context.Context, email, token string) (string, error) {
	customerID := uuid.NewString()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", internal("Failed to seed customer", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO customer (customer_id, email) VALUES (?, ?)`, customerID, email); err != nil {
		return "", internal("Failed to seed customer", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO access_token (token, customer_id) VALUES (?, ?)`, token, customerID); err != nil {
		return "", internal("Failed to seed access token", err)
	}
	if err := tx.Commit(); err != nil {
		return "", internal("Failed to seed customer", err)
	}
	return customerID, nil
}

// SeedVariants inserts catalog variants, replacing rows with the same id.
func (s *Store) SeedVariants(ctx context.Context, variants []Variant) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return internal("Failed to seed catalog", err)
	}
	defer tx.Rollback()

	for _, v := range variants {
		if v.ID == "" {
			v.ID = uuid.NewString()
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO product_variant (variant_id, name, size, color, price_cents, stock)
			VALUES (?, ?, ?, ?, ?, ?)`,
			v.ID, v.Name, v.Size, v.Color, v.PriceCents, v.Stock); err != nil {
			return internal(fmt.Sprintf("Failed to seed variant %s", v.Name), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return internal("Failed to seed catalog", err)
	}
	return nil
}

// DefaultCatalog returns the demo catalog: one variant per size/color
// combination of each shirt design.
func DefaultCatalog() []Variant {
	type design struct {
		name       string
		priceCents int64
		sizes      []string
		colors     []string
	}
	designs := []design{
		{"My AI is Smarter Than Your Honor Student", 2499, []string{"S", "M", "L"}, []string{"Black", "White", "Light Blue"}},
		{"Keep Calm and Trust the Neural Network", 2199, []string{"S", "M", "L"}, []string{"Black", "Pink"}},
		{"I'm Just Here for the Deep Learning", 1999, []string{"S", "M"}, []string{"White"}},
	}

	var variants []Variant
	n := 1
	for _, d := range designs {
		for _, size := range d.sizes {
			for _, color := range d.colors {
				variants = append(variants, Variant{
					ID:         fmt.Sprintf("variant_%03d", n),
					Name:       d.name,
					Size:       size,
					Color:      color,
					PriceCents: d.priceCents,
					Stock:      10,
				})
				n++
			}
		}
	}
	return variants
}
