package tooling

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	invopopSchema "github.com/invopop/jsonschema"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// marshalFunc is the JSON marshaler used by GenerateSchema. Package-level so
// tests can inject a failing marshaler to cover the error return path.
var marshalFunc = func(v interface{}) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}

// GenerateSchema generates a JSON Schema string from a Go struct using
// invopop/jsonschema reflection.
func GenerateSchema(input interface{}) string {
	reflector := invopopSchema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schema := reflector.Reflect(input)

	schemaBytes, err := marshalFunc(schema)
	if err != nil {
		return ""
	}
	return string(schemaBytes)
}

// CompileSchema compiles a JSON Schema string for repeated validation.
func CompileSchema(name, schemaStr string) (*jsonschema.Schema, error) {
	schema, err := jsonschema.CompileString(name+".json", schemaStr)
	if err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	return schema, nil
}

// ValidateAgainstSchema validates JSON input against a JSON Schema string.
func ValidateAgainstSchema(input json.RawMessage, schemaStr string) error {
	schema, err := CompileSchema("input", schemaStr)
	if err != nil {
		return err
	}
	return validateCompiled(schema, input)
}

// validateCompiled decodes input with UseNumber so integer keywords see exact
// values, then validates it.
func validateCompiled(schema *jsonschema.Schema, input json.RawMessage) error {
	if len(bytes.TrimSpace(input)) == 0 {
		input = json.RawMessage("{}")
	}
	var inputData interface{}
	dec := json.NewDecoder(bytes.NewReader(input))
	dec.UseNumber()
	if err := dec.Decode(&inputData); err != nil {
		return fmt.Errorf("%w: invalid JSON input: %v", ErrInvalidToolArguments, err)
	}
	if err := checkNumbers(inputData); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToolArguments, err)
	}

	if err := schema.Validate(inputData); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToolArguments, err)
	}
	return nil
}

// maxNumberExponent bounds exponents in tool arguments. The validator expands
// numbers into exact rationals, so 1e999999 would cost a million-digit power.
const maxNumberExponent = 64

// checkNumbers rejects JSON numbers whose exponent exceeds maxNumberExponent.
func checkNumbers(v interface{}) error {
	switch n := v.(type) {
	case json.Number:
		s := string(n)
		i := strings.IndexAny(s, "eE")
		if i < 0 {
			return nil
		}
		exp, err := strconv.Atoi(strings.TrimPrefix(s[i+1:], "+"))
		if err != nil || exp > maxNumberExponent || exp < -maxNumberExponent {
			return fmt.Errorf("number %.20s... is out of range", s)
		}
	case map[string]interface{}:
		for _, e := range n {
			if err := checkNumbers(e); err != nil {
				return err
			}
		}
	case []interface{}:
		for _, e := range n {
			if err := checkNumbers(e); err != nil {
				return err
			}
		}
	}
	return nil
}

// decodeArgs unmarshals validated arguments into a tool's input struct.
func decodeArgs(args json.RawMessage, v interface{}) error {
	if len(bytes.TrimSpace(args)) == 0 {
		args = json.RawMessage("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(args))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: failed to parse input: %v", ErrInvalidToolArguments, err)
	}
	return nil
}
