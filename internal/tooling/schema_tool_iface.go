package tooling

import (
	"context"
	"encoding/json"
)

// SchemaTool is a tool whose input is described by a JSON Schema generated from
// a Go struct via invopop/jsonschema. The registry hands Definition() to the
// model and validates returned arguments before Call() runs.
type SchemaTool interface {
	// Name returns the unique tool name used in function-calling (e.g. "product_search").
	Name() string
	// Description returns a human-readable description for the model.
	Description() string
	// Definition returns the JSON Schema string for the tool's input struct.
	Definition() string
	// Call executes the tool with already-validated JSON arguments and returns
	// the text appended to the conversation as the tool result.
	Call(ctx context.Context, args json.RawMessage) (string, error)
}
