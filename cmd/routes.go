package main

import (
	"context"
	"strings"

	"github.com/desertthunder/dssr/internal/app"
	"github.com/desertthunder/dssr/internal/entry"
	"github.com/desertthunder/dssr/internal/shared"
	"github.com/desertthunder/dssr/internal/ui"
	"github.com/urfave/cli/v3"
)

// RoutesOutput is the JSON shape of the routes command.
type RoutesOutput struct {
	Routes   []app.Route `json:"routes"`
	Reserved []string    `json:"reserved"`
}

// routes loads the route table from the render module the configured mode would serve.
func (r *Runner) routes(config *shared.Config) ([]app.Route, error) {
	dir := config.SSR.ServerDir
	if config.IsDev() {
		dir = config.SSR.SourceDir
	}

	module, err := entry.NewSource(config.Path(dir), entry.Options{Logger: r.logger}).Module()
	if err != nil {
		return nil, err
	}
	return module.Routes(), nil
}

// Routes prints the application routes and the reserved backend paths.
func (r *Runner) Routes(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd.String("config"))
	if err != nil {
		return err
	}

	routes, err := r.routes(config)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(RoutesOutput{Routes: routes, Reserved: config.Routes.Reserved}, true)
	}

	rows := make([][]string, 0, len(routes))
	for _, rt := range routes {
		data := rt.Collection
		if rt.Single && data != "" {
			data += " (singleton)"
		}
		rows = append(rows, []string{rt.Name, rt.Path, rt.View, data})
	}

	p := ui.Styles()
	r.writePlain("%s\n", p.Title("Application routes"))
	r.writePlain("%s\n", ui.Table([]string{"NAME", "PATH", "VIEW", "DATA"}, rows))
	r.writePlain("\n%s\n", p.Title("Reserved backend paths"))
	r.writePlain("%s\n", p.Help(strings.Join(config.Routes.Reserved, " ")))
	return nil
}
