package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"shopassist/internal/chat"
	"shopassist/internal/domain"
)

// Asker is the part of chat.Service the ask command needs.
type Asker interface {
	Chat(ctx context.Context, req chat.Request) (chat.Response, error)
}

// RunAsk sends one message through the assistant and prints the answer.
func RunAsk(ctx context.Context, svc Asker, message, extra string, stdout io.Writer) error {
	resp, err := svc.Chat(ctx, chat.Request{Message: message, Context: extra})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, resp.Response)
	return err
}

// RunSearch looks term up in the catalog and prints the matches as a table.
func RunSearch(ctx context.Context, store domain.CatalogStore, term string, limit int, stdout io.Writer) error {
	term = strings.TrimSpace(term)
	if term == "" {
		return errors.New("search term must not be blank")
	}
	if limit <= 0 {
		limit = 10
	}
	products, err := store.FindByNameSubstring(ctx, term, limit)
	if err != nil {
		return err
	}
	if len(products) == 0 {
		_, err := fmt.Fprintf(stdout, "No products found for '%s'\n", term)
		return err
	}
	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tPRICE\tSTOCK")
	for _, p := range products {
		fmt.Fprintf(tw, "%s\t$%s\t%d\n", p.Name, decimal.NewFromFloat(p.UnitPrice).StringFixed(2), p.Stock)
	}
	return tw.Flush()
}
