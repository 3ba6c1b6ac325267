//go:build !excludemain

package main

import "os"

// exitFunc is replaced in tests so main can be called without exiting.
var exitFunc = os.Exit

func main() {
	exitFunc(runApp(os.Args))
}
