package main

import (
	"context"

	"github.com/desertthunder/dssr/internal/shared"
	"github.com/desertthunder/dssr/internal/ui"
	"github.com/urfave/cli/v3"
)

// ConfigInit writes the embedded default configuration.
func (r *Runner) ConfigInit(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("config")
	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}

	r.logger.Info("config file created", "path", path)
	return r.writePlain("%s %s\n", ui.Styles().OK("✓"), path)
}
