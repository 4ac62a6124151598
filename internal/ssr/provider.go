package ssr

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/dssr/internal/shared"
)

// TemplateProvider supplies the page template for a request URL.
type TemplateProvider interface {
	Template(ctx context.Context, url string) (string, error)
}

// RenderModuleProvider supplies the render function for a request.
type RenderModuleProvider interface {
	RenderFunc(ctx context.Context) (RenderFunc, error)
}

// StacktraceFixer is implemented by providers that can point errors back at source files.
type StacktraceFixer interface {
	FixStacktrace(err error) error
}

// StaticTemplates serves one template loaded at startup.
type StaticTemplates struct {
	html string
}

func NewStaticTemplates(html string) *StaticTemplates {
	return &StaticTemplates{html: html}
}

// LoadStaticTemplates reads the built index.html once.
func LoadStaticTemplates(path string) (*StaticTemplates, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrTemplate, err)
	}
	return NewStaticTemplates(string(data)), nil
}

func (s *StaticTemplates) Template(context.Context, string) (string, error) {
	return s.html, nil
}

// Transformer rewrites a freshly read template, e.g. to inject a reload client.
type Transformer func(ctx context.Context, url, html string) (string, error)

// DevTemplates reads the source template on every request so edits show up without a restart.
type DevTemplates struct {
	path      string
	transform Transformer
}

func NewDevTemplates(path string, transform Transformer) *DevTemplates {
	return &DevTemplates{path: path, transform: transform}
}

func (d *DevTemplates) Template(ctx context.Context, url string) (string, error) {
	data, err := os.ReadFile(d.path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", shared.ErrTemplate, err)
	}
	if d.transform == nil {
		return string(data), nil
	}

	html, err := d.transform(ctx, url, string(data))
	if err != nil {
		return "", fmt.Errorf("%w: transform: %w", shared.ErrTemplate, err)
	}
	return html, nil
}

// StaticModules serves one render function loaded at startup.
type StaticModules struct {
	render RenderFunc
}

func NewStaticModules(render RenderFunc) *StaticModules {
	return &StaticModules{render: render}
}

func (s *StaticModules) RenderFunc(context.Context) (RenderFunc, error) {
	if s.render == nil {
		return nil, shared.ErrRenderModule
	}
	return s.render, nil
}

// Loader builds a render function from source.
type Loader func(ctx context.Context) (RenderFunc, error)

// DevModules reloads the render module on every request.
type DevModules struct {
	load Loader
	fix  func(error) error
}

// NewDevModules creates a provider calling load per request. fix, when non-nil, maps render errors back
// to source positions.
func NewDevModules(load Loader, fix func(error) error) *DevModules {
	return &DevModules{load: load, fix: fix}
}

func (d *DevModules) RenderFunc(ctx context.Context) (RenderFunc, error) {
	render, err := d.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrRenderModule, err)
	}
	return render, nil
}

func (d *DevModules) FixStacktrace(err error) error {
	if d.fix == nil || err == nil {
		return err
	}
	return d.fix(err)
}
