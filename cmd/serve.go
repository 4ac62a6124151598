package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/desertthunder/dssr/internal/app"
	"github.com/desertthunder/dssr/internal/entry"
	"github.com/desertthunder/dssr/internal/server"
	"github.com/desertthunder/dssr/internal/shared"
	"github.com/desertthunder/dssr/internal/ssr"
	"github.com/urfave/cli/v3"
)

// ManifestFile is the SSR manifest inside the client build directory.
const ManifestFile = "ssr-manifest.json"

// site is the assembled HTTP surface: backend proxy, assets and the interceptor.
type site struct {
	config      *shared.Config
	interceptor *ssr.Interceptor
	handler     http.Handler
	dev         *server.DevServer
}

// buildSite picks the development or production providers and mounts everything on one router.
func (r *Runner) buildSite(config *shared.Config) (*site, error) {
	cookie, err := ssr.CookieConfigFromConfig(config.Cookie)
	if err != nil {
		return nil, err
	}

	opts := entry.Options{Logger: r.logger}
	s := &site{config: config}

	var (
		templates ssr.TemplateProvider
		modules   ssr.RenderModuleProvider
		manifest  ssr.Manifest
		assets    server.Middleware
	)

	if config.IsDev() {
		sourceDir := config.Path(config.SSR.SourceDir)
		source := entry.NewSource(sourceDir, opts)

		s.dev = server.NewDevServer(sourceDir, time.Second, r.logger)
		templates = ssr.NewDevTemplates(config.Path(config.SSR.Index), s.dev.Transform)
		modules = ssr.NewDevModules(source.Load, source.FixStacktrace)
		manifest = ssr.Manifest{}
		assets = s.dev.Middleware()
	} else {
		clientDir := config.Path(config.SSR.ClientDir)

		static, err := ssr.LoadStaticTemplates(filepath.Join(clientDir, "index.html"))
		if err != nil {
			return nil, err
		}
		module, err := entry.NewSource(config.Path(config.SSR.ServerDir), opts).Module()
		if err != nil {
			return nil, err
		}
		if manifest, err = ssr.LoadManifest(filepath.Join(clientDir, ManifestFile)); err != nil {
			return nil, err
		}

		templates = static
		modules = ssr.NewStaticModules(module.Render)
		assets = server.Static(clientDir)
	}

	s.interceptor = ssr.New(ssr.Options{
		Reserved:  config.Routes.Reserved,
		Templates: templates,
		Modules:   modules,
		Manifest:  manifest,
		Cookie:    cookie,
		Env:       app.EnvFromConfig(config),
		Logger:    r.logger,
	})

	proxy, err := server.NewBackendProxy(config.API.PublicURL, config.Routes.Reserved, r.logger)
	if err != nil {
		return nil, err
	}

	router := server.NewBasicRouter()
	router.Use(server.Logging(r.logger))
	router.Handler(proxy)
	router.Mount("/", server.Chain(s.interceptor.Middleware(proxy), assets))
	s.handler = router

	return s, nil
}

// Serve starts the SSR server and blocks until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd.String("config"))
	if err != nil {
		return err
	}

	s, err := r.buildSite(config)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if s.dev != nil {
		go s.dev.Watch(ctx)
	}

	listener, err := net.Listen("tcp", config.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", config.Addr(), err)
	}

	httpServer := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Info("serving", "addr", listener.Addr().String(), "env", config.SSR.Env, "backend", config.API.PublicURL)
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	if cmd.Bool("open") {
		url := "http://" + listener.Addr().String() + "/"
		if err := shared.OpenBrowser(url); err != nil {
			r.logger.Warn("failed to open browser automatically", "error", err)
			r.writePlain("Open %s in your browser\n", url)
		}
	}

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Warn("error shutting down server", "error", err)
	}
	return nil
}
