// Package main is the entry point for the mcp-funnel CLI.
package main

import (
	"fmt"
	"os"

	"github.com/stacklok/mcp-funnel/cmd/mcp-funnel/app"
)

func main() {
	if err := app.NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "there was an error: %v\n", err)
		os.Exit(1)
	}
}
