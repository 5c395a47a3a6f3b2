// ./main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/nesthivep/kgml/cmd"
)

// main is the entry point for the kgml CLI application.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Execute the root command defined in the cmd package.
	// This handles all command-line parsing, configuration, and execution.
	if err := cmd.Execute(ctx); err != nil {
		os.Exit(1)
	}
}
