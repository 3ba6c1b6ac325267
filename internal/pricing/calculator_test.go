package pricing

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

// =============================================================================
// Calculate
// =============================================================================

func TestCalculate_WhenGoProWithTenPercentDiscount_ShouldMatchExpectedBreakdown(t *testing.T) {
	req, err := DecodeRequest([]byte(`{"products":[{"name":"GoPro Hero 11","price":"$350.00","quantity":5}],"discount_percent":10}`))
	if err != nil {
		t.Fatalf("DecodeRequest: %v", err)
	}
	b, err := CalculateRequest(req)
	if err != nil {
		t.Fatalf("CalculateRequest: %v", err)
	}
	r := b.Render()
	if r.Subtotal != "1750.00" {
		t.Errorf("subtotal: want 1750.00, got %s", r.Subtotal)
	}
	if r.DiscountAmount != "175.00" {
		t.Errorf("discount_amount: want 175.00, got %s", r.DiscountAmount)
	}
	if r.Total != "1575.00" {
		t.Errorf("total: want 1575.00, got %s", r.Total)
	}
	if r.Discount != "10%" {
		t.Errorf("discount: want 10%%, got %s", r.Discount)
	}
	if len(r.Breakdown) != 1 {
		t.Fatalf("want 1 breakdown line, got %d", len(r.Breakdown))
	}
	want := RenderedItem{Product: "GoPro Hero 11", Price: "350.00", Quantity: 5, Subtotal: "1750.00"}
	if r.Breakdown[0] != want {
		t.Errorf("line: want %+v, got %+v", want, r.Breakdown[0])
	}
}

func TestCalculate_WhenDiscountIsZero_ShouldRenderZeroPercentAndNoDiscount(t *testing.T) {
	b, err := Calculate([]LineItem{{Name: "Cable", UnitPrice: dec(t, "9.99"), Quantity: 3}}, decimal.Zero)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if !b.DiscountAmount.IsZero() {
		t.Errorf("want zero discount amount, got %s", b.DiscountAmount)
	}
	r := b.Render()
	if r.Discount != "0%" {
		t.Errorf("want discount 0%%, got %s", r.Discount)
	}
	if r.Total != "29.97" || r.Subtotal != "29.97" {
		t.Errorf("want subtotal and total 29.97, got %s / %s", r.Subtotal, r.Total)
	}
}

func TestCalculate_WhenDiscountOutOfRange_ShouldReturnInvalidDiscount(t *testing.T) {
	items := []LineItem{{Name: "x", UnitPrice: dec(t, "1"), Quantity: 1}}
	for _, pct := range []string{"-0.01", "-5", "100.0001", "150"} {
		_, err := Calculate(items, dec(t, pct))
		if !errors.Is(err, ErrInvalidDiscount) {
			t.Errorf("discount %s: want ErrInvalidDiscount, got %v", pct, err)
		}
	}
}

func TestCalculate_WhenDiscountIsHundred_ShouldProduceZeroTotal(t *testing.T) {
	b, err := Calculate([]LineItem{{Name: "x", UnitPrice: dec(t, "12.34"), Quantity: 2}}, hundred)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if !b.Total.IsZero() {
		t.Errorf("want zero total, got %s", b.Total)
	}
}

func TestCalculate_WhenEmptyList_ShouldReturnZeroBreakdown(t *testing.T) {
	for i := 0; i < 2; i++ {
		b, err := Calculate(nil, decimal.NewFromInt(15))
		if err != nil {
			t.Fatalf("Calculate empty: %v", err)
		}
		r := b.Render()
		if r.Subtotal != "0.00" || r.Total != "0.00" || r.DiscountAmount != "0.00" {
			t.Errorf("want zero breakdown, got %+v", r)
		}
		if r.Breakdown == nil || len(r.Breakdown) != 0 {
			t.Errorf("want empty (non-nil) breakdown, got %#v", r.Breakdown)
		}
	}
}

func TestCalculate_WhenEmptyListRendered_ShouldEncodeEmptyArray(t *testing.T) {
	b, err := Calculate(nil, decimal.Zero)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	out, err := b.JSON()
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}
	if !strings.Contains(out, `"breakdown": []`) {
		t.Errorf("want empty breakdown array, got:\n%s", out)
	}
}

func TestCalculate_WhenQuantityNotPositive_ShouldReturnInvalidQuantity(t *testing.T) {
	_, err := Calculate([]LineItem{{Name: "x", UnitPrice: dec(t, "1"), Quantity: 0}}, decimal.Zero)
	if !errors.Is(err, ErrInvalidQuantity) {
		t.Errorf("want ErrInvalidQuantity, got %v", err)
	}
}

func TestCalculate_ShouldKeepTotalPlusDiscountEqualToSubtotal(t *testing.T) {
	items := []LineItem{
		{Name: "a", UnitPrice: dec(t, "0.10"), Quantity: 3},
		{Name: "b", UnitPrice: dec(t, "19.995"), Quantity: 7},
		{Name: "c", UnitPrice: dec(t, "1234.5678"), Quantity: 1},
		{Name: "d", UnitPrice: dec(t, "0.01"), Quantity: 999},
	}
	for _, pct := range []string{"0", "0.5", "12.5", "33.333", "99.99", "100"} {
		b, err := Calculate(items, dec(t, pct))
		if err != nil {
			t.Fatalf("Calculate(%s): %v", pct, err)
		}
		if !b.Total.Add(b.DiscountAmount).Equal(b.Subtotal) {
			t.Errorf("pct %s: total %s + discount %s != subtotal %s", pct, b.Total, b.DiscountAmount, b.Subtotal)
		}
		want := b.Subtotal.Mul(dec(t, pct)).Div(hundred)
		if !b.DiscountAmount.Equal(want) {
			t.Errorf("pct %s: discount %s, want %s", pct, b.DiscountAmount, want)
		}
	}
}

func TestCalculate_ShouldNotAccumulateRoundingAcrossItems(t *testing.T) {
	items := make([]LineItem, 0, 10)
	for i := 0; i < 10; i++ {
		items = append(items, LineItem{Name: "penny-ish", UnitPrice: dec(t, "0.105"), Quantity: 1})
	}
	b, err := Calculate(items, decimal.Zero)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if got := b.Render().Subtotal; got != "1.05" {
		t.Errorf("want subtotal 1.05 from exact accumulation, got %s", got)
	}
}

func TestCalculate_ShouldBeIdempotent(t *testing.T) {
	raw := []byte(`{"products":[{"name":"A","price":"€ 2,000.10","quantity":"2"},{"name":"B","price":4.5}],"discount_percent":"12.5"}`)
	run := func() Rendered {
		req, err := DecodeRequest(raw)
		if err != nil {
			t.Fatalf("DecodeRequest: %v", err)
		}
		b, err := CalculateRequest(req)
		if err != nil {
			t.Fatalf("CalculateRequest: %v", err)
		}
		return b.Render()
	}
	first, second := run(), run()
	if !reflect.DeepEqual(first, second) {
		t.Errorf("want identical output, got %+v and %+v", first, second)
	}
	if first.Discount != "12.5%" {
		t.Errorf("want discount 12.5%%, got %s", first.Discount)
	}
	if first.Subtotal != "4004.70" {
		t.Errorf("want subtotal 4004.70, got %s", first.Subtotal)
	}
}

// =============================================================================
// Parsing
// =============================================================================

func TestParsePrice_WhenCurrencyFormatted_ShouldNormalize(t *testing.T) {
	cases := map[string]string{
		"$ 1,234.56": "1234.56",
		"$350.00":    "350",
		"1,000":      "1000",
		"€12.5":      "12.5",
		"US$ 99":     "99",
		"EUR 10.00":  "10",
		"  42  ":     "42",
		"£0.99":      "0.99",
	}
	for in, want := range cases {
		got, err := ParsePrice(in)
		if err != nil {
			t.Errorf("ParsePrice(%q): %v", in, err)
			continue
		}
		if !got.Equal(dec(t, want)) {
			t.Errorf("ParsePrice(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestParsePrice_WhenNumber_ShouldPassThrough(t *testing.T) {
	got, err := ParsePrice(json.Number("19.99"))
	if err != nil || !got.Equal(dec(t, "19.99")) {
		t.Errorf("json.Number: got %s, %v", got, err)
	}
	got, err = ParsePrice(float64(5))
	if err != nil || !got.Equal(dec(t, "5")) {
		t.Errorf("float64: got %s, %v", got, err)
	}
}

func TestParsePrice_WhenMalformed_ShouldReturnInvalidPriceFormat(t *testing.T) {
	for _, in := range []any{"", "$", "abc", "12abc", "1.2.3", "-$5", "-5", nil, true, json.Number("-1")} {
		if _, err := ParsePrice(in); !errors.Is(err, ErrInvalidPriceFormat) {
			t.Errorf("ParsePrice(%#v): want ErrInvalidPriceFormat, got %v", in, err)
		}
	}
}

func TestParsePrice_WhenExponentHuge_ShouldReturnInvalidPriceFormat(t *testing.T) {
	for _, in := range []any{"1e10000000", "$1e2000000000", json.Number("1e100000"), "1e-10000000", float64(1e300)} {
		_, err := ParsePrice(in)
		if !errors.Is(err, ErrInvalidPriceFormat) {
			t.Errorf("ParsePrice(%#v): want ErrInvalidPriceFormat, got %v", in, err)
			continue
		}
		if len(err.Error()) > 200 {
			t.Errorf("ParsePrice(%#v): error should not expand the number, got %d bytes", in, len(err.Error()))
		}
	}
}

func TestParsePrice_WhenAboveMaxUnitPrice_ShouldReturnInvalidPriceFormat(t *testing.T) {
	if _, err := ParsePrice("1e12"); err != nil {
		t.Errorf("1e12 should be accepted: %v", err)
	}
	if _, err := ParsePrice("$1,000,000,000,000.01"); !errors.Is(err, ErrInvalidPriceFormat) {
		t.Errorf("want ErrInvalidPriceFormat, got %v", err)
	}
}

func TestParseQuantity_WhenExponentHuge_ShouldReturnInvalidQuantity(t *testing.T) {
	for _, in := range []any{"1e10000000", json.Number("1e10000000")} {
		if _, err := ParseQuantity(in); !errors.Is(err, ErrInvalidQuantity) {
			t.Errorf("ParseQuantity(%#v): want ErrInvalidQuantity, got %v", in, err)
		}
	}
}

func TestCalculateRequest_WhenDiscountExponentHuge_ShouldReturnInvalidDiscount(t *testing.T) {
	req, err := DecodeRequest([]byte(`{"products":[{"price":"0.01"}],"discount_percent":1e10000000}`))
	if err != nil {
		t.Fatalf("DecodeRequest: %v", err)
	}
	if _, err := CalculateRequest(req); !errors.Is(err, ErrInvalidDiscount) {
		t.Errorf("want ErrInvalidDiscount, got %v", err)
	}
}

func TestParseQuantity_WhenMissing_ShouldDefaultToOne(t *testing.T) {
	for _, in := range []any{nil, ""} {
		q, err := ParseQuantity(in)
		if err != nil || q != 1 {
			t.Errorf("ParseQuantity(%#v) = %d, %v; want 1", in, q, err)
		}
	}
}

func TestParseQuantity_WhenValid_ShouldReturnInteger(t *testing.T) {
	cases := map[any]int64{json.Number("3"): 3, float64(2): 2, "7": 7, json.Number("4.0"): 4}
	for in, want := range cases {
		q, err := ParseQuantity(in)
		if err != nil || q != want {
			t.Errorf("ParseQuantity(%#v) = %d, %v; want %d", in, q, err, want)
		}
	}
}

func TestParseQuantity_WhenInvalid_ShouldReturnInvalidQuantity(t *testing.T) {
	for _, in := range []any{json.Number("-1"), json.Number("0"), json.Number("1.5"), "two", "2.5", false} {
		if _, err := ParseQuantity(in); !errors.Is(err, ErrInvalidQuantity) {
			t.Errorf("ParseQuantity(%#v): want ErrInvalidQuantity, got %v", in, err)
		}
	}
}

func TestCalculateRequest_WhenItemUnnamed_ShouldUseDefaultName(t *testing.T) {
	req, err := DecodeRequest([]byte(`{"products":[{"price":3}]}`))
	if err != nil {
		t.Fatalf("DecodeRequest: %v", err)
	}
	b, err := CalculateRequest(req)
	if err != nil {
		t.Fatalf("CalculateRequest: %v", err)
	}
	if b.Items[0].Name != defaultItemName {
		t.Errorf("want %q, got %q", defaultItemName, b.Items[0].Name)
	}
	if b.Items[0].Quantity != 1 {
		t.Errorf("want default quantity 1, got %d", b.Items[0].Quantity)
	}
}

func TestCalculateRequest_WhenDiscountNotNumeric_ShouldReturnInvalidDiscount(t *testing.T) {
	req, err := DecodeRequest([]byte(`{"products":[],"discount_percent":"lots"}`))
	if err != nil {
		t.Fatalf("DecodeRequest: %v", err)
	}
	if _, err := CalculateRequest(req); !errors.Is(err, ErrInvalidDiscount) {
		t.Errorf("want ErrInvalidDiscount, got %v", err)
	}
}

func TestCalculateRequest_WhenPriceMalformed_ShouldNameTheItem(t *testing.T) {
	req, err := DecodeRequest([]byte(`{"products":[{"name":"Widget","price":"ten dollars"}]}`))
	if err != nil {
		t.Fatalf("DecodeRequest: %v", err)
	}
	_, err = CalculateRequest(req)
	if !errors.Is(err, ErrInvalidPriceFormat) {
		t.Fatalf("want ErrInvalidPriceFormat, got %v", err)
	}
	if !strings.Contains(err.Error(), "Widget") {
		t.Errorf("want error to name the item, got %v", err)
	}
}
