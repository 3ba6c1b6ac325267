package injection

import (
	"log/slog"
	"strings"

	"shopassist/internal/domain"
)

// Default high-risk phrases (case-insensitive).
var defaultPatterns = []string{
	"ignore previous",
	"ignore all previous",
	"disregard your instructions",
	"system prompt",
	"you are now",
	"developer mode",
	"simulated mode",
	"ignora las instrucciones",
}

// ScanResult holds the result of a prompt-injection scan.
type ScanResult struct {
	Detected bool     // true if any high-risk pattern was found
	Patterns []string // matched phrases
}

// Scan checks text for high-risk prompt-injection keywords and returns a ScanResult.
func Scan(text string) ScanResult {
	text = strings.TrimSpace(text)
	if text == "" {
		return ScanResult{}
	}
	lower := strings.ToLower(text)
	var matched []string
	for _, p := range defaultPatterns {
		if strings.Contains(lower, p) {
			matched = append(matched, p)
		}
	}
	if len(matched) == 0 {
		return ScanResult{}
	}
	return ScanResult{Detected: true, Patterns: matched}
}

// ScanMessages scans the user turns of a conversation together.
func ScanMessages(msgs []domain.Message) ScanResult {
	var combined strings.Builder
	for _, m := range msgs {
		if m.Role == domain.RoleUser {
			combined.WriteString(m.Content)
			combined.WriteString("\n")
		}
	}
	return Scan(combined.String())
}

// LogIfDetected scans text and, if injection is detected, logs a warning with
// the matched patterns. It never blocks the request.
func LogIfDetected(logger *slog.Logger, source, text string) ScanResult {
	r := Scan(text)
	if !r.Detected {
		return r
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("possible prompt injection", "source", source, "patterns", r.Patterns)
	return r
}
