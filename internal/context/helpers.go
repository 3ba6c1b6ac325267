package context

import (
	"strings"

	"shopassist/internal/domain"
)

// MessageText is the text of a message as counted against the window: its
// content plus, for tool-call turns, each call's name and arguments.
func MessageText(msg domain.Message) string {
	if len(msg.ToolCalls) == 0 {
		return msg.Content
	}
	parts := make([]string, 0, len(msg.ToolCalls)+1)
	if msg.Content != "" {
		parts = append(parts, msg.Content)
	}
	for _, tc := range msg.ToolCalls {
		parts = append(parts, tc.Name+" "+string(tc.Arguments))
	}
	return strings.Join(parts, "\n")
}
