package pricing

import (
	"bytes"
	"encoding/json"
)

// RenderedItem is the wire form of one breakdown line.
type RenderedItem struct {
	Product  string `json:"product"`
	Price    string `json:"price"`
	Quantity int64  `json:"quantity"`
	Subtotal string `json:"subtotal"`
}

// Rendered is the wire form of a Breakdown. Money fields carry exactly two
// decimals.
type Rendered struct {
	Breakdown      []RenderedItem `json:"breakdown"`
	Subtotal       string         `json:"subtotal"`
	Discount       string         `json:"discount"`
	DiscountAmount string         `json:"discount_amount"`
	Total          string         `json:"total"`
}

// Render rounds the breakdown half-up to cents. This is the only place
// rounding happens.
func (b Breakdown) Render() Rendered {
	r := Rendered{
		Breakdown:      make([]RenderedItem, 0, len(b.Items)),
		Subtotal:       b.Subtotal.StringFixed(2),
		Discount:       "0%",
		DiscountAmount: b.DiscountAmount.StringFixed(2),
		Total:          b.Total.StringFixed(2),
	}
	if b.DiscountPercent.IsPositive() {
		r.Discount = b.DiscountPercent.String() + "%"
	}
	for _, it := range b.Items {
		r.Breakdown = append(r.Breakdown, RenderedItem{
			Product:  it.Name,
			Price:    it.UnitPrice.StringFixed(2),
			Quantity: it.Quantity,
			Subtotal: it.Subtotal.StringFixed(2),
		})
	}
	return r
}

// JSON renders the breakdown as indented JSON for a tool result.
func (b Breakdown) JSON() (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(b.Render()); err != nil {
		return "", err
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}
