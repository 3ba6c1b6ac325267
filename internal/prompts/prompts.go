package prompts

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"shopassist/internal/domain"
)

// ChatSystem is the system prompt for /chat. It tells the model when to use
// product_search and price_calculator.
const ChatSystem = `You are a helpful assistant specialised in technology and consumer electronics.
Answer clearly, concisely and professionally.

You have access to tools:

1) product_search:
   - Use it when the user asks about products, prices or stock
     (for example: "Do you have headphones in stock?",
     "How much is the GoPro Hero 11?").
   - It returns a list of products with name, price and stock.

2) price_calculator:
   - Use it when the user wants to add up several products,
     get the total of a purchase or apply a discount.
   - Pass a list of products with:
     - name: product name
     - price: unit price (use the one returned by product_search)
     - quantity: how many units the user wants
   - Pass discount_percent when the user mentions a discount.

For a question like "How much do 5 GoPro Hero 11 cost?":
first call product_search to get the unit price,
then call price_calculator with a single item and quantity=5,
and finally answer the user in plain text with the total.

Only use the tools when they help answer product or pricing questions.`

// additionalContextPrefix starts the optional caller-supplied context turn.
const additionalContextPrefix = "Additional context: "

// AdditionalContext renders the caller's context as a system turn body.
func AdditionalContext(context string) string {
	return additionalContextPrefix + context
}

// RecommendSystem is the system prompt for /recommend, listing the products
// the model may choose from.
func RecommendSystem(products []domain.Product) string {
	var b strings.Builder
	b.WriteString("You are an expert assistant for recommending technology products.\n")
	b.WriteString("Recommend products based on the user's request.\n\n")
	b.WriteString("Available products:\n")
	if len(products) == 0 {
		b.WriteString("(none)\n")
	}
	for _, p := range products {
		fmt.Fprintf(&b, "- %s: $%s (Stock: %d)\n", p.Name, decimal.NewFromFloat(p.UnitPrice).StringFixed(2), p.Stock)
	}
	b.WriteString("\nGive specific recommendations and justify your choice. Keep a professional but friendly tone.")
	return b.String()
}

// RecommendTask is the user turn for /recommend.
func RecommendTask(query string, maxProducts int) string {
	return fmt.Sprintf("The user asks: %q\n\nRecommend up to %d products that best fit this request and explain why they fit.", query, maxProducts)
}
