package pricing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// defaultItemName labels items the caller did not name.
const defaultItemName = "Unnamed product"

// currencyPrefix matches an optional ISO-style code followed by an optional
// currency symbol at the start of a price ("$", "US$", "EUR ", "€ ").
var currencyPrefix = regexp.MustCompile(`^(?:[A-Z]{2,3}\s*)?\p{Sc}?\s*`)

// maxExponent bounds the decimal exponent of any parsed number. Comparing or
// adding decimals rescales them to a common exponent, so "1e10000000" would
// otherwise expand into a ten-million-digit integer.
const maxExponent = 32

// MaxUnitPrice is the largest unit price the calculator accepts.
var MaxUnitPrice = decimal.New(1, 12)

// RawItem is a line item as the model sends it: price may be a JSON number or
// a currency-formatted string and quantity may be missing.
type RawItem struct {
	Name     string `json:"name,omitempty"`
	Price    any    `json:"price"`
	Quantity any    `json:"quantity,omitempty"`
}

// Request is the raw calculator input.
type Request struct {
	Products        []RawItem `json:"products"`
	DiscountPercent any       `json:"discount_percent,omitempty"`
}

// DecodeRequest decodes a JSON calculator request, keeping numbers exact.
func DecodeRequest(data []byte) (Request, error) {
	var req Request
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		return Request{}, fmt.Errorf("decode calculator request: %w", err)
	}
	return req, nil
}

// CalculateRequest normalizes every raw item and runs Calculate.
func CalculateRequest(req Request) (Breakdown, error) {
	discount := decimal.Zero
	if req.DiscountPercent != nil {
		d, err := toDecimal(req.DiscountPercent)
		if err != nil {
			return Breakdown{}, fmt.Errorf("%w: %v", ErrInvalidDiscount, err)
		}
		discount = d
	}
	items, err := ParseItems(req.Products)
	if err != nil {
		return Breakdown{}, err
	}
	return Calculate(items, discount)
}

// ParseItems converts raw items to LineItems, failing on the first bad field.
func ParseItems(raw []RawItem) ([]LineItem, error) {
	items := make([]LineItem, 0, len(raw))
	for i, r := range raw {
		name := strings.TrimSpace(r.Name)
		if name == "" {
			name = defaultItemName
		}
		price, err := ParsePrice(r.Price)
		if err != nil {
			return nil, fmt.Errorf("item %d (%s): %w", i+1, name, err)
		}
		qty, err := ParseQuantity(r.Quantity)
		if err != nil {
			return nil, fmt.Errorf("item %d (%s): %w", i+1, name, err)
		}
		items = append(items, LineItem{Name: name, UnitPrice: price, Quantity: qty})
	}
	return items, nil
}

// ParsePrice reads a unit price. Strings may carry a leading currency symbol
// and thousands separators: "$ 1,234.56" reads as 1234.56.
func ParsePrice(v any) (decimal.Decimal, error) {
	var (
		d   decimal.Decimal
		err error
	)
	switch p := v.(type) {
	case nil:
		return decimal.Zero, fmt.Errorf("%w: price is missing", ErrInvalidPriceFormat)
	case string:
		d, err = parsePriceString(p)
	default:
		d, err = toDecimal(p)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrInvalidPriceFormat, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: %s is negative", ErrInvalidPriceFormat, d.String())
	}
	if d.GreaterThan(MaxUnitPrice) {
		return decimal.Zero, fmt.Errorf("%w: %s exceeds %s", ErrInvalidPriceFormat, d.String(), MaxUnitPrice.String())
	}
	return d, nil
}

func parsePriceString(s string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(s)
	cleaned := currencyPrefix.ReplaceAllString(trimmed, "")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("%q has no digits", s)
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%q is not numeric", s)
	}
	return checkExponent(d, s)
}

// checkExponent rejects numbers whose exponent is outside ±maxExponent. raw is
// used in the message because rendering d itself would expand it.
func checkExponent(d decimal.Decimal, raw any) (decimal.Decimal, error) {
	if e := d.Exponent(); e > maxExponent || e < -maxExponent {
		return decimal.Zero, fmt.Errorf("%v is out of range", raw)
	}
	return d, nil
}

// ParseQuantity reads a quantity. Missing quantities default to 1; anything
// that is not a positive integer is rejected.
func ParseQuantity(v any) (int64, error) {
	if v == nil {
		return 1, nil
	}
	var (
		d   decimal.Decimal
		err error
	)
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		if s == "" {
			return 1, nil
		}
		d, err = toDecimal(s)
	} else {
		d, err = toDecimal(v)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidQuantity, v)
	}
	if !d.IsInteger() {
		return 0, fmt.Errorf("%w: %s is not a whole number", ErrInvalidQuantity, d.String())
	}
	if !d.IsPositive() {
		return 0, fmt.Errorf("%w: %s must be at least 1", ErrInvalidQuantity, d.String())
	}
	if d.GreaterThan(decimal.NewFromInt(math.MaxInt32)) {
		return 0, fmt.Errorf("%w: %s is too large", ErrInvalidQuantity, d.String())
	}
	return d.IntPart(), nil
}

// toDecimal converts JSON-decoded numbers to decimals within ±maxExponent.
func toDecimal(v any) (decimal.Decimal, error) {
	d, err := rawDecimal(v)
	if err != nil {
		return decimal.Zero, err
	}
	return checkExponent(d, v)
}

func rawDecimal(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case json.Number:
		return decimal.NewFromString(n.String())
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return decimal.Zero, fmt.Errorf("%v is not a finite number", n)
		}
		return decimal.NewFromFloat(n), nil
	case float32:
		return rawDecimal(float64(n))
	case int:
		return decimal.NewFromInt(int64(n)), nil
	case int64:
		return decimal.NewFromInt(n), nil
	case int32:
		return decimal.NewFromInt(int64(n)), nil
	case decimal.Decimal:
		return n, nil
	case string:
		return decimal.NewFromString(strings.TrimSpace(n))
	default:
		return decimal.Zero, fmt.Errorf("unsupported value %v (%T)", v, v)
	}
}
