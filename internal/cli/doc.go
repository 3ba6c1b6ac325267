// Package cli implements the shopassist subcommands that do not need a
// running server (check, config and calc) and the App wiring shared by
// serve, ask and search.
package cli
