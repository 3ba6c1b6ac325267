package tooling

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"shopassist/internal/domain"
)

const (
	// DefaultSearchResults is used when the model omits max_results.
	DefaultSearchResults = 5
	// MaxSearchResults caps max_results; larger requests are clamped.
	MaxSearchResults = 50
)

// ProductSearchInput is the product_search argument payload.
type ProductSearchInput struct {
	Query      string `json:"query" jsonschema:"minLength=1" jsonschema_description:"Text to look for in product names; matching is case-insensitive."`
	MaxResults int    `json:"max_results,omitempty" jsonschema:"minimum=1,default=5" jsonschema_description:"Maximum number of products to return."`
}

// searchHit is one product as rendered for the model.
type searchHit struct {
	Name  string `json:"name"`
	Price string `json:"price"`
	Stock int    `json:"stock"`
}

// ProductSearchTool looks products up in the catalog by name.
type ProductSearchTool struct {
	store domain.CatalogStore
}

// NewProductSearchTool returns a search tool over store. Panics if store is nil.
func NewProductSearchTool(store domain.CatalogStore) *ProductSearchTool {
	if store == nil {
		panic("product_search: store must not be nil")
	}
	return &ProductSearchTool{store: store}
}

func (t *ProductSearchTool) Name() string { return "product_search" }

func (t *ProductSearchTool) Description() string {
	return "Search the store catalog for products whose name contains the query. " +
		"Returns each match with its unit price and units in stock."
}

func (t *ProductSearchTool) Definition() string {
	return GenerateSchema(ProductSearchInput{})
}

// Call runs the search. An empty result is a normal answer, not an error;
// catalog failures come back as *ToolExecutionError.
func (t *ProductSearchTool) Call(ctx context.Context, args json.RawMessage) (string, error) {
	var input ProductSearchInput
	if err := decodeArgs(args, &input); err != nil {
		return "", err
	}
	term := strings.TrimSpace(input.Query)
	if term == "" {
		return "", fmt.Errorf("%w: query must not be blank", ErrInvalidToolArguments)
	}

	products, err := t.store.FindByNameSubstring(ctx, term, clampResults(input.MaxResults))
	if err != nil {
		return "", &ToolExecutionError{Tool: t.Name(), Message: "Error searching products", Err: err}
	}
	if len(products) == 0 {
		return fmt.Sprintf("No products found for '%s'", term), nil
	}
	return renderHits(products)
}

func clampResults(n int) int {
	switch {
	case n <= 0:
		return DefaultSearchResults
	case n > MaxSearchResults:
		return MaxSearchResults
	default:
		return n
	}
}

func renderHits(products []domain.Product) (string, error) {
	hits := make([]searchHit, 0, len(products))
	for _, p := range products {
		hits = append(hits, searchHit{
			Name:  p.Name,
			Price: "$" + decimal.NewFromFloat(p.UnitPrice).StringFixed(2),
			Stock: p.Stock,
		})
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(hits); err != nil {
		return "", fmt.Errorf("render search results: %w", err)
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}
