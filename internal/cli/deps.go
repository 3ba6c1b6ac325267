package cli

import (
	"os"

	"shopassist/internal/catalog"
	"shopassist/internal/config"
	"shopassist/internal/llm"
)

// Function variables for dependency injection in tests.
// Default values are the real implementations; tests may temporarily swap them.
var (
	osReadFile         = os.ReadFile
	osWriteFile        = os.WriteFile
	configWriteDefault = config.WriteDefault
	configResolve      = config.Resolve
	catalogOpen        = catalog.Open
	newModel           = llm.NewModel
	newFallbackModels  = llm.NewFallbackModels
	setValueAtPathFn   = setValueAtPath
)
