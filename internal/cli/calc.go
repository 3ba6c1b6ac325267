package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"shopassist/internal/pricing"
)

// CalcOptions holds options for the calc command.
type CalcOptions struct {
	Items    []string // "name:price[:quantity]"
	Discount string   // percentage, empty for none
	JSON     bool     // print the breakdown the way the price_calculator tool returns it
}

// ParseItemFlag reads one --item value. The price may carry a currency
// symbol and thousands separators; a missing quantity is left for the
// calculator to default to 1.
func ParseItemFlag(s string) (pricing.RawItem, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return pricing.RawItem{}, fmt.Errorf("item %q: want name:price[:quantity]", s)
	}
	item := pricing.RawItem{Name: strings.TrimSpace(parts[0]), Price: strings.TrimSpace(parts[1])}
	if len(parts) == 3 {
		item.Quantity = strings.TrimSpace(parts[2])
	}
	return item, nil
}

// RunCalc prices the items and writes the breakdown to stdout.
func RunCalc(opts CalcOptions, stdout io.Writer) error {
	req := pricing.Request{Products: make([]pricing.RawItem, 0, len(opts.Items))}
	for _, raw := range opts.Items {
		item, err := ParseItemFlag(raw)
		if err != nil {
			return err
		}
		req.Products = append(req.Products, item)
	}
	if d := strings.TrimSpace(opts.Discount); d != "" {
		req.DiscountPercent = strings.TrimSuffix(d, "%")
	}

	breakdown, err := pricing.CalculateRequest(req)
	if err != nil {
		return err
	}
	if opts.JSON {
		out, err := breakdown.JSON()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(stdout, out)
		return err
	}
	return writeBreakdown(stdout, breakdown.Render())
}

func writeBreakdown(w io.Writer, r pricing.Rendered) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "PRODUCT\tPRICE\tQTY\tSUBTOTAL\t")
	for _, it := range r.Breakdown {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t\n", it.Product, it.Price, it.Quantity, it.Subtotal)
	}
	fmt.Fprintf(tw, "\t\tSubtotal\t%s\t\n", r.Subtotal)
	fmt.Fprintf(tw, "\t\tDiscount (%s)\t-%s\t\n", r.Discount, r.DiscountAmount)
	fmt.Fprintf(tw, "\t\tTotal\t%s\t\n", r.Total)
	return tw.Flush()
}
