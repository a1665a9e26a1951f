package chat

import "strings"

// Action is a quick-reply button offered with an assistant reply. Value is
// the user text sent when the button is pressed.
type Action struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Keyword tables for classifying a turn. Matching is substring-based on the
// lowercased user text and reply text; the rule order in SuggestActions is
// the precedence order and must not be rearranged.
var (
	placedOrderReply = []string{"order placed", "successfully placed", "order confirmed"}

	viewingCartUser  = []string{"view cart", "my cart", "cart"}
	viewingCartReply = []string{"your cart", "current cart", "cart items"}
	cartEmptyReply   = []string{"empty cart", "no items", "cart is empty"}

	viewingOrdersUser  = []string{"my orders", "orders", "order history"}
	viewingOrdersReply = []string{"your orders", "order history", "recent orders"}

	viewingProductsUser  = []string{"show products", "products", "available"}
	viewingProductsReply = []string{"available products", "product details", "t-shirt"}
)

// SuggestActions derives the quick-reply buttons for one turn from the user
// text and the final reply. First matching rule wins:
// order just placed > viewing cart (empty or not) > viewing orders >
// viewing products > default.
func SuggestActions(userText, reply string) []Action {
	user := strings.ToLower(userText)
	bot := strings.ToLower(reply)

	switch {
	case containsAny(bot, placedOrderReply):
		return []Action{
			{Label: "Continue Shopping", Value: "show products"},
			{Label: "View Orders", Value: "my orders"},
		}

	case containsAny(user, viewingCartUser) || containsAny(bot, viewingCartReply):
		if containsAny(bot, cartEmptyReply) {
			return []Action{
				{Label: "Show Products", Value: "show products"},
			}
		}
		return []Action{
			{Label: "Place Order", Value: "place order"},
			{Label: "Continue Shopping", Value: "show products"},
		}

	case containsAny(user, viewingOrdersUser) || containsAny(bot, viewingOrdersReply):
		return []Action{
			{Label: "Continue Shopping", Value: "show products"},
			{Label: "View Cart", Value: "view cart"},
		}

	case containsAny(user, viewingProductsUser) || containsAny(bot, viewingProductsReply):
		return []Action{
			{Label: "View Cart", Value: "view cart"},
			{Label: "My Orders", Value: "my orders"},
		}

	default:
		return []Action{
			{Label: "Show Products", Value: "show products"},
			{Label: "View Cart", Value: "view cart"},
			{Label: "My Orders", Value: "my orders"},
		}
	}
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
