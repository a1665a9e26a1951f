package shop

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// PlaceOrder converts the caller's active cart into a pending order: order
// items snapshot each line's current price, the total is the sum of
// price x quantity in cents, the cart is marked ordered and emptied.
func (s *Store) PlaceOrder(ctx context.Context, token string) (Order, error) {
	customerID, err := s.authenticate(ctx, token)
	if err != nil {
		return Order{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Order{}, internal("Failed to place order", err)
	}
	defer tx.Rollback()

	cartID, err := s.activeCartLocked(ctx, tx, customerID, false)
	if err != nil {
		return Order{}, err
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT ci.variant_id, ci.quantity, pv.name, pv.size, pv.color, pv.price_cents
		FROM cart_item ci JOIN product_variant pv ON pv.variant_id = ci.variant_id
		WHERE ci.cart_id = ?`, cartID)
	if err != nil {
		return Order{}, internal("Failed to read cart items", err)
	}

	var items []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.VariantID, &it.Quantity, &it.Name, &it.Size, &it.Color, &it.PriceCents); err != nil {
			rows.Close()
			return Order{}, internal("Failed to read cart item row", err)
		}
		items = append(items, it)
	}
	if err := rows.Close(); err != nil {
		return Order{}, internal("Failed to read cart items", err)
	}
	if len(items) == 0 {
		return Order{}, conflict("Cart is empty")
	}

	var totalCents int64
	for _, it := range items {
		totalCents += it.PriceCents * int64(it.Quantity)
	}

	order := Order{
		ID:         uuid.NewString(),
		Status:     OrderStatusPending,
		Date:       time.Now().UTC(),
		TotalCents: totalCents,
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO orders (order_id, customer_id, cart_id, order_date, status, total_cents)
		VALUES (?, ?, ?, ?, ?, ?)`,
		order.ID, customerID, cartID, order.Date, order.Status, order.TotalCents); err != nil {
		return Order{}, internal("Failed to create order", err)
	}

	for i := range items {
		items[i].ID = uuid.NewString()
		items[i].OrderID = order.ID
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO order_item (order_item_id, order_id, variant_id, quantity, item_price_cents)
			VALUES (?, ?, ?, ?, ?)`,
			items[i].ID, order.ID, items[i].VariantID, items[i].Quantity, items[i].PriceCents); err != nil {
			return Order{}, internal("Failed to create order item", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE cart SET status = ? WHERE cart_id = ?`, CartStatusOrdered, cartID); err != nil {
		return Order{}, internal("Failed to close cart", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM cart_item WHERE cart_id = ?`, cartID); err != nil {
		return Order{}, internal("Failed to clear cart", err)
	}

	if err := tx.Commit(); err != nil {
		return Order{}, internal("Failed to place order", err)
	}

	order.Items = items
	s.logger.Info("order placed", "order_id", order.ID, "items", len(items), "total_cents", totalCents)
	return order, nil
}

// GetOrders returns the caller's orders, newest first, each with its items.
func (s *Store) GetOrders(ctx context.Context, token string) ([]Order, error) {
	customerID, err := s.authenticate(ctx, token)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT order_id, status, order_date, total_cents
		FROM orders WHERE customer_id = ?
		ORDER BY order_date DESC`, customerID)
	if err != nil {
		return nil, internal("Failed to read orders", err)
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.Status, &o.Date, &o.TotalCents); err != nil {
			return nil, internal("Failed to read order row", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, internal("Failed to read orders", err)
	}

	for i := range orders {
		items, err := s.orderItems(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}
	return orders, nil
}

func (s *Store) orderItems(ctx context.Context, orderID string) ([]OrderItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT oi.order_item_id, oi.order_id, oi.variant_id, pv.name, pv.size, pv.color,
		       oi.item_price_cents, oi.quantity
		FROM order_item oi JOIN product_variant pv ON pv.variant_id = oi.variant_id
		WHERE oi.order_id = ?`, orderID)
	if err != nil {
		return nil, internal("Failed to read order items", err)
	}
	defer rows.Close()

	var items []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.VariantID, &it.Name, &it.Size, &it.Color,
			&it.PriceCents, &it.Quantity); err != nil {
			return nil, internal("Failed to read order item row", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, internal("Failed to read order items", err)
	}
	return items, nil
}

// UpdateOrder sets an order's status and total.
func (s *Store) UpdateOrder(ctx context.Context, token, orderID, status string, totalCents int64) error {
	customerID, err := s.authenticate(ctx, token)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE orders SET status = ?, total_cents = ? WHERE order_id = ? AND customer_id = ?`,
		status, totalCents, orderID, customerID)
	if err != nil {
		return internal("Failed to update order", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("Order")
	}
	return nil
}

// DeleteOrder removes an order and its items.
func (s *Store) DeleteOrder(ctx context.Context, token, orderID string) error {
	customerID, err := s.authenticate(ctx, token)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return internal("Failed to delete order", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM order_item WHERE order_id = ?`, orderID); err != nil {
		return internal("Failed to delete order items", err)
	}
	res, err := tx.ExecContext(ctx,
		`DELETE FROM orders WHERE order_id = ? AND customer_id = ?`, orderID, customerID)
	if err != nil {
		return internal("Failed to delete order", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("Order")
	}
	if err := tx.Commit(); err != nil {
		return internal("Failed to delete order", err)
	}
	return nil
}

// UpdateOrderItem sets an order line's quantity and price, then recomputes
// the parent order's total from its remaining lines.
func (s *Store) UpdateOrderItem(ctx context.Context, token, orderItemID string, quantity int, itemPriceCents int64) error {
	customerID, err := s.authenticate(ctx, token)
	if err != nil {
		return err
	}
	if quantity <= 0 {
		return conflict("Quantity must be positive; delete the item instead")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return internal("Failed to update order item", err)
	}
	defer tx.Rollback()

	orderID, err := s.orderForItemLocked(ctx, tx, orderItemID, customerID)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE order_item SET quantity = ?, item_price_cents = ? WHERE order_item_id = ?`,
		quantity, itemPriceCents, orderItemID); err != nil {
		return internal("Failed to update order item", err)
	}
	if err := s.recomputeTotalLocked(ctx, tx, orderID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return internal("Failed to update order item", err)
	}
	return nil
}

// DeleteOrderItem removes an order line and recomputes the order's total.
func (s *Store) DeleteOrderItem(ctx context.Context, token, orderItemID string) error {
	customerID, err := s.authenticate(ctx, token)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return internal("Failed to delete order item", err)
	}
	defer tx.Rollback()

	orderID, err := s.orderForItemLocked(ctx, tx, orderItemID, customerID)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM order_item WHERE order_item_id = ?`, orderItemID); err != nil {
		return internal("Failed to delete order item", err)
	}
	if err := s.recomputeTotalLocked(ctx, tx, orderID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return internal("Failed to delete order item", err)
	}
	return nil
}

func (s *Store) orderForItemLocked(ctx context.Context, tx *sql.Tx, orderItemID, customerID string) (string, error) {
	var orderID string
	err := tx.QueryRowContext(ctx, `
		SELECT oi.order_id
		FROM order_item oi JOIN orders o ON o.order_id = oi.order_id
		WHERE oi.order_item_id = ? AND o.customer_id = ?`,
		orderItemID, customerID,
	).Scan(&orderID)
	if err == sql.ErrNoRows {
		return "", notFound("Order item")
	}
	if err != nil {
		return "", internal("Failed to read order item", err)
	}
	return orderID, nil
}

func (s *Store) recomputeTotalLocked(ctx context.Context, tx *sql.Tx, orderID string) error {
	if _, err := tx.ExecContext(ctx, `
		UPDATE orders SET total_cents = (
			SELECT COALESCE(SUM(item_price_cents * quantity), 0)
			FROM order_item WHERE order_id = ?
		) WHERE order_id = ?`, orderID, orderID); err != nil {
		return internal("Failed to recompute order total", err)
	}
	return nil
}
