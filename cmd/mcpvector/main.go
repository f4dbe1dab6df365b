// Package main provides the entry point for the mcpvector CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/mcpvector/cmd/mcpvector/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
