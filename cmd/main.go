package main

import (
	"context"
	"os"

	"github.com/desertthunder/dssr/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)

	runner := NewRunner(RunnerOpts{
		Config: shared.DefaultConfig(),
		Logger: logger,
		Getenv: os.Getenv,
	})

	app := &cli.Command{
		Name:     "dssr",
		Usage:    "Server-side rendering in front of a Directus instance",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		logger.Fatalf("application error: %v", err)
	}
}
