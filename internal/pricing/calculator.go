// Package pricing computes purchase totals for the price_calculator tool.
// All arithmetic is exact decimal arithmetic; values are rounded to cents only
// when a Breakdown is rendered.
package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidPriceFormat is returned when a unit price cannot be read as a non-negative number.
	ErrInvalidPriceFormat = errors.New("invalid price format")
	// ErrInvalidQuantity is returned for negative, zero, fractional, or non-numeric quantities.
	ErrInvalidQuantity = errors.New("invalid quantity")
	// ErrInvalidDiscount is returned when the discount percentage is outside [0, 100].
	ErrInvalidDiscount = errors.New("invalid discount")
)

var hundred = decimal.NewFromInt(100)

// LineItem is one product in a purchase.
type LineItem struct {
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int64
}

// ItemLine is a LineItem with its computed subtotal.
type ItemLine struct {
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int64
	Subtotal  decimal.Decimal
}

// Breakdown is the unrounded result of a calculation.
// Total == Subtotal - DiscountAmount and DiscountAmount == Subtotal * DiscountPercent / 100.
type Breakdown struct {
	Items           []ItemLine
	Subtotal        decimal.Decimal
	DiscountPercent decimal.Decimal
	DiscountAmount  decimal.Decimal
	Total           decimal.Decimal
}

// Calculate sums items and applies discountPercent. An empty item list yields a
// zero breakdown. The discount is validated before anything else and is
// rejected, never clamped, when it falls outside [0, 100].
func Calculate(items []LineItem, discountPercent decimal.Decimal) (Breakdown, error) {
	if discountPercent.IsNegative() || discountPercent.GreaterThan(hundred) {
		return Breakdown{}, fmt.Errorf("%w: %s%% is outside 0-100", ErrInvalidDiscount, discountPercent.String())
	}

	b := Breakdown{
		Items:           make([]ItemLine, 0, len(items)),
		Subtotal:        decimal.Zero,
		DiscountPercent: discountPercent,
		DiscountAmount:  decimal.Zero,
	}
	for i, it := range items {
		if it.UnitPrice.IsNegative() {
			return Breakdown{}, fmt.Errorf("%w: item %d (%s) has negative price %s", ErrInvalidPriceFormat, i+1, it.Name, it.UnitPrice.String())
		}
		if it.Quantity <= 0 {
			return Breakdown{}, fmt.Errorf("%w: item %d (%s) has quantity %d", ErrInvalidQuantity, i+1, it.Name, it.Quantity)
		}
		sub := it.UnitPrice.Mul(decimal.NewFromInt(it.Quantity))
		b.Items = append(b.Items, ItemLine{
			Name:      it.Name,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
			Subtotal:  sub,
		})
		b.Subtotal = b.Subtotal.Add(sub)
	}

	if discountPercent.IsPositive() {
		b.DiscountAmount = b.Subtotal.Mul(discountPercent).Shift(-2)
	}
	b.Total = b.Subtotal.Sub(b.DiscountAmount)
	return b, nil
}
