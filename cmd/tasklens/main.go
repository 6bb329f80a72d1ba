// Package main is the entry point for the Tasklens service and CLI.
package main

import (
	"os"

	"github.com/MikeSquared-Agency/Tasklens/cmd/tasklens/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
