package tooling

import (
	"context"
	"encoding/json"
	"fmt"

	"shopassist/internal/pricing"
)

// PriceItemInput documents one line item in the price_calculator schema.
// Decoding goes through pricing.DecodeRequest so prices keep full precision.
type PriceItemInput struct {
	Name     string `json:"name,omitempty" jsonschema_description:"Product name, for display only."`
	Price    any    `json:"price" jsonschema:"oneof_type=number;string" jsonschema_description:"Unit price as a number or a currency string such as \"$1,234.56\"."`
	Quantity any    `json:"quantity,omitempty" jsonschema:"oneof_type=integer;string" jsonschema_description:"Units to buy; defaults to 1."`
}

// PriceCalculatorInput is the price_calculator argument payload.
type PriceCalculatorInput struct {
	Products        []PriceItemInput `json:"products" jsonschema_description:"Items to price."`
	DiscountPercent any              `json:"discount_percent,omitempty" jsonschema:"oneof_type=number;string" jsonschema_description:"Discount between 0 and 100 applied to the subtotal."`
}

// PriceCalculatorTool computes purchase totals with an optional discount.
type PriceCalculatorTool struct{}

func NewPriceCalculatorTool() *PriceCalculatorTool { return &PriceCalculatorTool{} }

func (t *PriceCalculatorTool) Name() string { return "price_calculator" }

func (t *PriceCalculatorTool) Description() string {
	return "Calculate the total price for a list of products with quantities, " +
		"optionally applying a percentage discount. Returns an itemized breakdown."
}

func (t *PriceCalculatorTool) Definition() string {
	return GenerateSchema(PriceCalculatorInput{})
}

// Call prices the items. Invalid prices, quantities and discounts are
// returned as errors wrapping the pricing sentinels.
func (t *PriceCalculatorTool) Call(_ context.Context, args json.RawMessage) (string, error) {
	req, err := pricing.DecodeRequest(args)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToolArguments, err)
	}
	breakdown, err := pricing.CalculateRequest(req)
	if err != nil {
		return "", err
	}
	return breakdown.JSON()
}
