package shop

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

// AddToCart adds quantity of a variant to the caller's active cart, creating
// the cart if none exists. Adding a variant already in the cart increases the
// line's quantity. Stock is validated against the resulting quantity.
func (s *Store) AddToCart(ctx context.Context, token, variantID string, quantity int) (CartItem, error) {
	customerID, err := s.authenticate(ctx, token)
	if err != nil {
		return CartItem{}, err
	}
	if quantity <= 0 {
		return CartItem{}, conflict("Quantity must be positive")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return CartItem{}, internal("Failed to add item to cart", err)
	}
	defer tx.Rollback()

	variant, err := s.variant(ctx, tx, variantID)
	if err != nil {
		return CartItem{}, err
	}
	if quantity > variant.Stock {
		return CartItem{}, insufficientStock(variant.Stock, quantity)
	}

	cartID, err := s.activeCartLocked(ctx, tx, customerID, true)
	if err != nil {
		return CartItem{}, err
	}

	var itemID string
	var existing int
	row := tx.QueryRowContext(ctx,
		`SELECT cart_item_id, quantity FROM cart_item WHERE cart_id = ? AND variant_id = ?`,
		cartID, variantID)
	switch err := row.Scan(&itemID, &existing); err {
	case nil:
		newQuantity := existing + quantity
		if newQuantity > variant.Stock {
			return CartItem{}, insufficientStock(variant.Stock, newQuantity)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE cart_item SET quantity = ? WHERE cart_item_id = ?`, newQuantity, itemID); err != nil {
			return CartItem{}, internal("Failed to update cart item", err)
		}
		quantity = newQuantity
	case sql.ErrNoRows:
		itemID = uuid.NewString()
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO cart_item (cart_item_id, cart_id, variant_id, quantity) VALUES (?, ?, ?, ?)`,
			itemID, cartID, variantID, quantity); err != nil {
			return CartItem{}, internal("Failed to add item to cart", err)
		}
	default:
		return CartItem{}, internal("Failed to read cart", err)
	}

	if err := tx.Commit(); err != nil {
		return CartItem{}, internal("Failed to add item to cart", err)
	}

	return CartItem{
		ID:         itemID,
		CartID:     cartID,
		VariantID:  variantID,
		Name:       variant.Name,
		Size:       variant.Size,
		Color:      variant.Color,
		PriceCents: variant.PriceCents,
		Quantity:   quantity,
		Stock:      variant.Stock,
	}, nil
}

// activeCartLocked finds the customer's active cart inside tx, optionally
// creating one.
func (s *Store) activeCartLocked(ctx context.Context, tx *sql.Tx, customerID string, create bool) (string, error) {
	var cartID string
	err := tx.QueryRowContext(ctx,
		`SELECT cart_id FROM cart WHERE customer_id = ? AND status = ?`,
		customerID, CartStatusActive,
	).Scan(&cartID)
	switch {
	case err == nil:
		return cartID, nil
	case err != sql.ErrNoRows:
		return "", internal("Failed to read cart", err)
	case !create:
		return "", notFound("No active cart")
	}

	cartID = uuid.NewString()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO cart (cart_id, customer_id, status) VALUES (?, ?, ?)`,
		cartID, customerID, CartStatusActive); err != nil {
		return "", internal("Failed to create cart", err)
	}
	return cartID, nil
}

// UpdateCartItem sets a cart line's quantity, validating against stock.
func (s *Store) UpdateCartItem(ctx context.Context, token, cartItemID string, quantity int) (CartItem, error) {
	customerID, err := s.authenticate(ctx, token)
	if err != nil {
		return CartItem{}, err
	}
	if quantity <= 0 {
		return CartItem{}, conflict("Quantity must be positive; delete the item instead")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return CartItem{}, internal("Failed to update cart item", err)
	}
	defer tx.Rollback()

	var cartID, variantID string
	err = tx.QueryRowContext(ctx, `
		SELECT ci.cart_id, ci.variant_id
		FROM cart_item ci JOIN cart c ON c.cart_id = ci.cart_id
		WHERE ci.cart_item_id = ? AND c.customer_id = ?`,
		cartItemID, customerID,
	).Scan(&cartID, &variantID)
	if err == sql.ErrNoRows {
		return CartItem{}, notFound("Cart item")
	}
	if err != nil {
		return CartItem{}, internal("Failed to read cart item", err)
	}

	variant, err := s.variant(ctx, tx, variantID)
	if err != nil {
		return CartItem{}, err
	}
	if quantity > variant.Stock {
		return CartItem{}, insufficientStock(variant.Stock, quantity)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE cart_item SET quantity = ? WHERE cart_item_id = ?`, quantity, cartItemID); err != nil {
		return CartItem{}, internal("Failed to update cart item", err)
	}
	if err := tx.Commit(); err != nil {
		return CartItem{}, internal("Failed to update cart item", err)
	}

	return CartItem{
		ID:         cartItemID,
		CartID:     cartID,
		VariantID:  variantID,
		Name:       variant.Name,
		Size:       variant.Size,
		Color:      variant.Color,
		PriceCents: variant.PriceCents,
		Quantity:   quantity,
		Stock:      variant.Stock,
	}, nil
}

// DeleteCartItem removes a line from the caller's cart.
func (s *Store) DeleteCartItem(ctx context.Context, token, cartItemID string) error {
	customerID, err := s.authenticate(ctx, token)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		DELETE FROM cart_item
		WHERE cart_item_id = ?
		  AND cart_id IN (SELECT cart_id FROM cart WHERE customer_id = ?)`,
		cartItemID, customerID)
	if err != nil {
		return internal("Failed to delete cart item", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("Cart item")
	}
	return nil
}

// GetCart returns the caller's active cart with its items, or nil when the
// customer has never had a cart.
func (s *Store) GetCart(ctx context.Context, token string) (*Cart, error) {
	customerID, err := s.authenticate(ctx, token)
	if err != nil {
		return nil, err
	}

	var cartID, status string
	err = s.db.QueryRowContext(ctx, `
		SELECT cart_id, status FROM cart
		WHERE customer_id = ?
		ORDER BY CASE status WHEN ? THEN 0 ELSE 1 END, created_at DESC
		LIMIT 1`,
		customerID, CartStatusActive,
	).Scan(&cartID, &status)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, internal("Failed to read cart", err)
	}

	items, err := s.cartItems(ctx, cartID)
	if err != nil {
		return nil, err
	}
	return &Cart{ID: cartID, Status: status, Items: items}, nil
}

func (s *Store) cartItems(ctx context.Context, cartID string) ([]CartItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ci.cart_item_id, ci.cart_id, ci.variant_id, pv.name, pv.size, pv.color,
		       pv.price_cents, ci.quantity, pv.stock
		FROM cart_item ci JOIN product_variant pv ON pv.variant_id = ci.variant_id
		WHERE ci.cart_id = ?`, cartID)
	if err != nil {
		return nil, internal("Failed to read cart items", err)
	}
	defer rows.Close()

	var items []CartItem
	for rows.Next() {
		var it CartItem
		if err := rows.Scan(&it.ID, &it.CartID, &it.VariantID, &it.Name, &it.Size, &it.Color,
			&it.PriceCents, &it.Quantity, &it.Stock); err != nil {
			return nil, internal("Failed to read cart item row", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, internal("Failed to read cart items", err)
	}
	return items, nil
}
