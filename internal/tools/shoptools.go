package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/threadcart/threadcart/internal/shop"
)

// Searcher answers knowledge-base queries with displayable text.
type Searcher interface {
	Search(ctx context.Context, query string, topK int, collection string) string
}

// NewShopRegistry builds the registry with the full shop tool set bound to
// the given data layer and retrieval engine.
func NewShopRegistry(store *shop.Store, retriever Searcher, logger *slog.Logger) (*Registry, error) {
	r := NewRegistry(logger)

	descriptors := []Descriptor{
		{
			Name:        "get_t_shirt",
			Description: "Use this tool to get the list of available t-shirts. If the user's input does not cover all required parameters, inform the user.",
			Schema: objectSchema(map[string]any{
				"name":  stringProp("The name of the t-shirt to retrieve from the database"),
				"size":  stringProp("The size of the t-shirt to retrieve from the database"),
				"color": stringProp("The color of the t-shirt to retrieve from the database"),
			}),
			Handler: func(ctx context.Context, args Args) (string, error) {
				variants, err := store.FindVariants(ctx, args.String("name"), args.String("size"), args.String("color"))
				if err != nil {
					return "", err
				}
				if len(variants) == 0 {
					return "No shirts found", nil
				}
				return renderJSON(variantViews(variants))
			},
		},
		{
			Name:         "add_to_cart",
			Description:  "Use this tool to add a t-shirt variant to the customer's cart.",
			RequiresAuth: true,
			Schema: objectSchema(map[string]any{
				"variant_id": stringProp("The id of the t-shirt to add to the cart"),
				"quantity":   integerProp("The quantity of the t-shirt to add to the cart"),
			}),
			Handler: func(ctx context.Context, args Args) (string, error) {
				item, err := store.AddToCart(ctx, args.Token(), args.String("variant_id"), args.Int("quantity"))
				if err != nil {
					return "", err
				}
				return renderJSON(cartItemView(item))
			},
		},
		{
			Name:         "place_order",
			Description:  "Use this tool to place an order for all items currently in the customer's active cart. This will convert the cart items into an order and clear the cart.",
			RequiresAuth: true,
			Schema:       objectSchema(nil),
			Handler: func(ctx context.Context, args Args) (string, error) {
				order, err := store.PlaceOrder(ctx, args.Token())
				if err != nil {
					return "", err
				}
				return renderJSON(orderView(order))
			},
		},
		{
			Name:         "update_cart_item",
			Description:  "Update the quantity of a cart item.",
			RequiresAuth: true,
			Schema: objectSchema(map[string]any{
				"cart_item_id": stringProp("The cart item ID to update"),
				"quantity":     integerProp("The new quantity"),
			}),
			Handler: func(ctx context.Context, args Args) (string, error) {
				item, err := store.UpdateCartItem(ctx, args.Token(), args.String("cart_item_id"), args.Int("quantity"))
				if err != nil {
					return "", err
				}
				return renderJSON(cartItemView(item))
			},
		},
		{
			Name:         "delete_cart_item",
			Description:  "Delete a cart item by its ID.",
			RequiresAuth: true,
			Schema: objectSchema(map[string]any{
				"cart_item_id": stringProp("The cart item ID to delete"),
			}),
			Handler: func(ctx context.Context, args Args) (string, error) {
				if err := store.DeleteCartItem(ctx, args.Token(), args.String("cart_item_id")); err != nil {
					return "", err
				}
				return "Cart item deleted.", nil
			},
		},
		{
			Name:         "update_order",
			Description:  "Update the status or total amount of an order.",
			RequiresAuth: true,
			Schema: objectSchema(map[string]any{
				"order_id":     stringProp("The order ID to update"),
				"status":       stringProp("The new status"),
				"total_amount": numberProp("The new total amount in dollars"),
			}),
			Handler: func(ctx context.Context, args Args) (string, error) {
				err := store.UpdateOrder(ctx, args.Token(), args.String("order_id"),
					args.String("status"), shop.DollarsToCents(args.Float("total_amount")))
				if err != nil {
					return "", err
				}
				return "Order updated.", nil
			},
		},
		{
			Name:         "delete_order",
			Description:  "Delete an order by its ID.",
			RequiresAuth: true,
			Schema: objectSchema(map[string]any{
				"order_id": stringProp("The order ID to delete"),
			}),
			Handler: func(ctx context.Context, args Args) (string, error) {
				if err := store.DeleteOrder(ctx, args.Token(), args.String("order_id")); err != nil {
					return "", err
				}
				return "Order deleted.", nil
			},
		},
		{
			Name:         "update_order_item",
			Description:  "Update the quantity or price of an order item. The order total is recalculated.",
			RequiresAuth: true,
			Schema: objectSchema(map[string]any{
				"order_item_id": stringProp("The order item ID to update"),
				"quantity":      integerProp("The new quantity"),
				"item_price":    numberProp("The new item price in dollars"),
			}),
			Handler: func(ctx context.Context, args Args) (string, error) {
				err := store.UpdateOrderItem(ctx, args.Token(), args.String("order_item_id"),
					args.Int("quantity"), shop.DollarsToCents(args.Float("item_price")))
				if err != nil {
					return "", err
				}
				return "Order item updated.", nil
			},
		},
		{
			Name:         "delete_order_item",
			Description:  "Delete an order item by its ID. The order total is recalculated.",
			RequiresAuth: true,
			Schema: objectSchema(map[string]any{
				"order_item_id": stringProp("The order item ID to delete"),
			}),
			Handler: func(ctx context.Context, args Args) (string, error) {
				if err := store.DeleteOrderItem(ctx, args.Token(), args.String("order_item_id")); err != nil {
					return "", err
				}
				return "Order item deleted.", nil
			},
		},
		{
			Name:         "get_user_cart",
			Description:  "Get the authenticated user's active cart and its items.",
			RequiresAuth: true,
			Schema:       objectSchema(nil),
			Handler: func(ctx context.Context, args Args) (string, error) {
				cart, err := store.GetCart(ctx, args.Token())
				if err != nil {
					return "", err
				}
				if cart == nil || len(cart.Items) == 0 {
					return "The cart is empty.", nil
				}
				return renderJSON(cartView(*cart))
			},
		},
		{
			Name:         "get_user_orders",
			Description:  "Get all orders for the authenticated user, including their items.",
			RequiresAuth: true,
			Schema:       objectSchema(nil),
			Handler: func(ctx context.Context, args Args) (string, error) {
				orders, err := store.GetOrders(ctx, args.Token())
				if err != nil {
					return "", err
				}
				if len(orders) == 0 {
					return "No orders found.", nil
				}
				views := make([]map[string]any, len(orders))
				for i, o := range orders {
					views[i] = orderView(o)
				}
				return renderJSON(views)
			},
		},
		{
			Name:        "search_knowledge_base",
			Description: "Search the knowledge base for product information, FAQ answers, and policy details. Use this when users ask about product details, shipping, returns, sizing, or general questions about the store.",
			Schema: objectSchema(map[string]any{
				"query": stringProp("The search query to find relevant information"),
			}),
			Handler: func(ctx context.Context, args Args) (string, error) {
				return retriever.Search(ctx, args.String("query"), 0, ""), nil
			},
		},
	}

	for _, d := range descriptors {
		if err := r.Register(d); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Schema construction helpers. Every schema is strict: all declared
// properties are required and undeclared ones are rejected.

func objectSchema(properties map[string]any) map[string]any {
	if properties == nil {
		properties = map[string]any{}
	}
	required := make([]string, 0, len(properties))
	for name := range properties {
		required = append(required, name)
	}
	return map[string]any{
		"type":                 "object",
		"properties":           properties,
		"required":             required,
		"additionalProperties": false,
	}
}

func stringProp(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

func integerProp(description string) map[string]any {
	return map[string]any{"type": "integer", "description": description}
}

func numberProp(description string) map[string]any {
	return map[string]any{"type": "number", "description": description}
}

// Result views. Prices render as dollar strings so the model relays them
// verbatim instead of arithmetic on raw cents.

func variantViews(variants []shop.Variant) []map[string]any {
	views := make([]map[string]any, len(variants))
	for i, v := range variants {
		views[i] = map[string]any{
			"variant_id": v.ID,
			"name":       v.Name,
			"size":       v.Size,
			"color":      v.Color,
			"price":      shop.FormatCents(v.PriceCents),
			"stock":      v.Stock,
		}
	}
	return views
}

func cartItemView(item shop.CartItem) map[string]any {
	return map[string]any{
		"cart_item_id": item.ID,
		"name":         item.Name,
		"size":         item.Size,
		"color":        item.Color,
		"price":        shop.FormatCents(item.PriceCents),
		"quantity":     item.Quantity,
		"stock":        item.Stock,
	}
}

func cartView(cart shop.Cart) map[string]any {
	items := make([]map[string]any, len(cart.Items))
	var totalCents int64
	for i, it := range cart.Items {
		items[i] = cartItemView(it)
		totalCents += it.PriceCents * int64(it.Quantity)
	}
	return map[string]any{
		"status": cart.Status,
		"items":  items,
		"total":  shop.FormatCents(totalCents),
	}
}

func orderView(order shop.Order) map[string]any {
	items := make([]map[string]any, len(order.Items))
	for i, it := range order.Items {
		items[i] = map[string]any{
			"order_item_id": it.ID,
			"name":          it.Name,
			"size":          it.Size,
			"color":         it.Color,
			"price":         shop.FormatCents(it.PriceCents),
			"quantity":      it.Quantity,
		}
	}
	return map[string]any{
		"order_id":   order.ID,
		"status":     order.Status,
		"order_date": order.Date.Format("2006-01-02"),
		"total":      shop.FormatCents(order.TotalCents),
		"items":      items,
	}
}

func renderJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encoding tool result: %w", err)
	}
	return string(data), nil
}

// userMessage extracts displayable text from a handler error, hiding driver
// detail wrapped inside shop errors.
func userMessage(err error) string {
	var shopErr *shop.Error
	if errors.As(err, &shopErr) {
		return shopErr.UserMessage()
	}
	return err.Error()
}
