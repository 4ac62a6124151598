package main

import (
	"context"
	"fmt"
	"maps"
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"strings"

	"github.com/desertthunder/dssr/internal/shared"
	"github.com/urfave/cli/v3"
)

// Render runs one request through the site handler and prints the response.
func (r *Runner) Render(ctx context.Context, cmd *cli.Command) error {
	target := cmd.StringArg("url")
	if target == "" {
		return fmt.Errorf("%w: url", shared.ErrMissingArgument)
	}

	u, err := url.Parse(target)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	config, err := r.loadConfig(cmd.String("config"))
	if err != nil {
		return err
	}

	s, err := r.buildSite(config)
	if err != nil {
		return err
	}

	req := httptest.NewRequestWithContext(ctx, http.MethodGet, u.RequestURI(), nil)
	if token := cmd.String("refresh-token"); token != "" {
		req.AddCookie(&http.Cookie{Name: config.Cookie.Name, Value: token})
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	if cmd.Bool("headers") {
		r.writePlain("%d %s\n", rec.Code, http.StatusText(rec.Code))
		header := rec.Header()
		for _, key := range slices.Sorted(maps.Keys(header)) {
			r.writePlain("%s: %s\n", key, strings.Join(header[key], ", "))
		}
		r.writePlain("\n")
	}

	if _, err := r.output.Write(rec.Body.Bytes()); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if rec.Code != http.StatusOK {
		return fmt.Errorf("%w: %s responded %d", shared.ErrRender, u.RequestURI(), rec.Code)
	}
	return nil
}
