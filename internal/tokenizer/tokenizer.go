package tokenizer

import (
	"fmt"
	"log/slog"
	"unicode/utf8"

	tiktoken "github.com/pkoukk/tiktoken-go"

	"shopassist/internal/domain"
)

// DefaultEncoding matches the GPT-4 family.
const DefaultEncoding = "cl100k_base"

// getEncoding is the tiktoken loader. Package-level var for test injection.
var getEncoding = tiktoken.GetEncoding

// TikToken wraps tiktoken-go to implement domain.Tokenizer.
type TikToken struct {
	encoding *tiktoken.Tiktoken
}

// NewTikToken creates a new TikToken tokenizer with the given encoding name.
// Common encodings: "cl100k_base" (GPT-4/3.5), "o200k_base" (GPT-4o).
// Returns an error if the encoding is not recognized or cannot be loaded.
func NewTikToken(encodingName string) (*TikToken, error) {
	enc, err := getEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("tokenizer: unknown encoding %q: %w", encodingName, err)
	}
	return &TikToken{encoding: enc}, nil
}

// CountTokens returns the number of tokens in the given text.
func (t *TikToken) CountTokens(text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	tokens := t.encoding.Encode(text, nil, nil)
	return len(tokens), nil
}

// Approximate estimates four characters per token. Used when no BPE ranks
// are available (tiktoken-go fetches them on first use).
type Approximate struct{}

func (Approximate) CountTokens(text string) (int, error) {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0, nil
	}
	return (n + 3) / 4, nil
}

// New returns a tiktoken tokenizer for encodingName, or Approximate with a
// warning when the encoding cannot be loaded. An empty name selects
// DefaultEncoding.
func New(encodingName string, logger *slog.Logger) domain.Tokenizer {
	if encodingName == "" {
		encodingName = DefaultEncoding
	}
	tok, err := NewTikToken(encodingName)
	if err != nil {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("falling back to approximate token counts", "encoding", encodingName, "error", err)
		return Approximate{}
	}
	return tok
}
