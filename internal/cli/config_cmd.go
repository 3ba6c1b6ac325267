package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strconv"
	"strings"

	"shopassist/internal/config"
)

// ConfigOptions holds options for the config command.
type ConfigOptions struct {
	File   string // config file; defaults to SHOPASSIST_CONFIG or shopassist.json
	Action string // "get", "set", or "unset"
	Path   string // dot notation key, e.g. "gateway.port"
	Value  string // value to set (for set action)
}

// RunConfig runs the config subcommand: non-interactive get/set/unset on the
// JSON config file. set and unset refuse to save a file that no longer
// validates. Returns exit code (0 for success, 1 for error).
func RunConfig(opts ConfigOptions, stdout, stderr io.Writer) int {
	if opts.File == "" {
		opts.File = config.PathFromEnv()
	}

	data, err := osReadFile(opts.File)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintf(stderr, "Error: no configuration found at %s\n", opts.File)
			fmt.Fprintf(stderr, "Run 'shopassist check --fix' first to create one.\n")
			return 1
		}
		fmt.Fprintf(stderr, "Error: failed to read config: %v\n", err)
		return 1
	}

	var cfg map[string]interface{}
	if err := json.Unmarshal(data, &cfg); err != nil {
		fmt.Fprintf(stderr, "Error: failed to parse config: %v\n", err)
		return 1
	}
	if cfg == nil {
		cfg = map[string]interface{}{}
	}

	switch opts.Action {
	case "get":
		return runConfigGet(cfg, opts.Path, stdout, stderr)
	case "set":
		return runConfigSet(cfg, opts.Path, opts.Value, opts.File, stdout, stderr)
	case "unset":
		return runConfigUnset(cfg, opts.Path, opts.File, stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Error: unknown action %q (use 'get', 'set', or 'unset')\n", opts.Action)
		return 1
	}
}

func runConfigGet(cfg map[string]interface{}, path string, stdout, stderr io.Writer) int {
	value := getValueAtPath(cfg, strings.Split(path, "."))
	if value == nil {
		fmt.Fprintf(stderr, "Error: path %q not found in config\n", path)
		return 1
	}

	switch v := value.(type) {
	case string:
		fmt.Fprintln(stdout, v)
	case float64:
		if v == float64(int64(v)) {
			fmt.Fprintf(stdout, "%d\n", int64(v))
		} else {
			fmt.Fprintf(stdout, "%g\n", v)
		}
	case bool:
		fmt.Fprintf(stdout, "%t\n", v)
	default:
		jsonBytes, _ := json.Marshal(v)
		fmt.Fprintln(stdout, string(jsonBytes))
	}
	return 0
}

func runConfigSet(cfg map[string]interface{}, path, value, file string, stdout, stderr io.Writer) int {
	if err := setValueAtPathFn(cfg, strings.Split(path, "."), parseValue(value)); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return saveChecked(cfg, file, stdout, stderr)
}

func runConfigUnset(cfg map[string]interface{}, path, file string, stdout, stderr io.Writer) int {
	if err := unsetValueAtPath(cfg, strings.Split(path, ".")); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return saveChecked(cfg, file, stdout, stderr)
}

// parseValue reads value as a number or bool, otherwise keeps it a string.
func parseValue(value string) interface{} {
	if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
		return float64(intVal)
	}
	if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
		return floatVal
	}
	if boolVal, err := strconv.ParseBool(value); err == nil {
		return boolVal
	}
	return value
}

func saveChecked(cfg map[string]interface{}, file string, stdout, stderr io.Writer) int {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		fmt.Fprintf(stderr, "Error: failed to encode config: %v\n", err)
		return 1
	}
	if err := validateDocument(data); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if err := osWriteFile(file, data, 0644); err != nil {
		fmt.Fprintf(stderr, "Error: failed to save config: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "ok\n")
	return 0
}

// validateDocument overlays data on the defaults, the way config.Load does,
// and runs config.Validate on the result.
func validateDocument(data []byte) error {
	cfg := config.Default()
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return config.Validate(cfg)
}

// getValueAtPath retrieves a value from a nested map using a path.
func getValueAtPath(data map[string]interface{}, path []string) interface{} {
	if len(path) == 0 {
		return nil
	}
	value, exists := data[path[0]]
	if !exists {
		return nil
	}
	if len(path) == 1 {
		return value
	}
	nextMap, ok := value.(map[string]interface{})
	if !ok {
		return nil
	}
	return getValueAtPath(nextMap, path[1:])
}

// setValueAtPath sets a value in a nested map, creating objects as needed.
func setValueAtPath(data map[string]interface{}, path []string, value interface{}) error {
	if len(path) == 0 || path[0] == "" {
		return fmt.Errorf("empty path")
	}
	if len(path) == 1 {
		data[path[0]] = value
		return nil
	}
	nextMap, ok := data[path[0]].(map[string]interface{})
	if !ok {
		nextMap = make(map[string]interface{})
		data[path[0]] = nextMap
	}
	return setValueAtPath(nextMap, path[1:], value)
}

// unsetValueAtPath removes a value from a nested map using a path.
func unsetValueAtPath(data map[string]interface{}, path []string) error {
	if len(path) == 0 || path[0] == "" {
		return fmt.Errorf("empty path")
	}
	if len(path) == 1 {
		delete(data, path[0])
		return nil
	}
	nextValue, exists := data[path[0]]
	if !exists {
		return fmt.Errorf("path %q not found", strings.Join(path, "."))
	}
	nextMap, ok := nextValue.(map[string]interface{})
	if !ok {
		return fmt.Errorf("path %q is not an object", strings.Join(path[:len(path)-1], "."))
	}
	return unsetValueAtPath(nextMap, path[1:])
}
