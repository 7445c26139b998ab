// Package main provides the castle CLI.
package main

import (
	"os"

	"github.com/ianyh/castle/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
