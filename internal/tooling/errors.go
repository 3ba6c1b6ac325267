package tooling

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidToolArguments is returned when a call's arguments fail schema
	// validation or cannot be decoded into the tool's input struct.
	ErrInvalidToolArguments = errors.New("invalid tool arguments")
	// ErrUnknownTool is returned when no tool is registered under a name.
	ErrUnknownTool = errors.New("unknown tool")
)

// ToolExecutionError wraps a failure from a tool's external dependency.
// Message is the text the model sees in front of the underlying error.
type ToolExecutionError struct {
	Tool    string
	Message string
	Err     error
}

func (e *ToolExecutionError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = fmt.Sprintf("tool %s failed", e.Tool)
	}
	if e.Err == nil {
		return msg
	}
	return msg + ": " + e.Err.Error()
}

func (e *ToolExecutionError) Unwrap() error { return e.Err }

// ResultText renders a tool failure as the text of an error tool result.
// Execution errors keep their own message; everything else gets an "Error: "
// prefix so the model can tell failures from data.
func ResultText(err error) string {
	var execErr *ToolExecutionError
	if errors.As(err, &execErr) {
		return execErr.Error()
	}
	return "Error: " + err.Error()
}
