package main

import (
	"github.com/asad/usmo/internal/cli"
)

// main is the entry point for usmo.
// It delegates to the CLI package which handles command parsing and execution.
func main() {
	cli.Execute()
}
