// Package main is the entry point for the Argus hunt service.
package main

import (
	"context"
	"fmt"
	"os"

	"argus/bootstrap"
)

func run() error {
	app, err := bootstrap.NewApp(context.Background())
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	app.Start()
	app.WaitForShutdown()
	app.Shutdown()
	return nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}
}
