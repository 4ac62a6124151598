package app

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"maps"
	"path"
	"slices"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// DirectusKey is the injection key of the request-scoped Directus client.
const DirectusKey = "directus"

// Component is a view: a parsed template set and the name of the template to execute.
type Component struct {
	Name     string
	Template *template.Template
}

// Plugin is installed into an [App] with [App.Use].
type Plugin interface {
	Install(a *App)
}

// Page is the data every view executes with.
type Page struct {
	Location
	Data any
}

var (
	markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))
	sanitize = bluemonday.UGCPolicy()
)

// TemplateFuncs returns placeholders for every function views may call. Templates must be parsed with
// these; [App.Render] swaps in the request-bound implementations on a clone.
func TemplateFuncs() template.FuncMap {
	return template.FuncMap{
		"routerView": func() (template.HTML, error) { return "", nil },
		"markdown":   renderMarkdown,
		"asset":      func(name string) string { return name },
		"title":      func(string) string { return "" },
		"meta":       func(string, string) string { return "" },
		"htmlAttr":   func(string, string) string { return "" },
		"bodyAttr":   func(string, string) string { return "" },
		"bodyScript": func(string) string { return "" },
	}
}

// App is one application instance. It is built per render and never shared between requests.
type App struct {
	root     Component
	router   *Router
	funcs    template.FuncMap
	provides map[string]any
	plugins  []Plugin

	// AssetBase prefixes paths produced by the asset template function.
	AssetBase string

	views  []string
	assets []string
}

// New creates an app rendering root.
func New(root Component) *App {
	return &App{
		root:      root,
		funcs:     template.FuncMap{},
		provides:  map[string]any{},
		AssetBase: "/",
	}
}

// Use installs plugins, once each.
func (a *App) Use(plugins ...Plugin) *App {
	for _, p := range plugins {
		if slices.Contains(a.plugins, p) {
			continue
		}
		a.plugins = append(a.plugins, p)
		p.Install(a)
	}
	return a
}

// Provide makes value available to [App.Inject] under key.
func (a *App) Provide(key string, value any) {
	a.provides[key] = value
}

// Inject returns what was provided under key.
func (a *App) Inject(key string) (any, bool) {
	v, ok := a.provides[key]
	return v, ok
}

// Funcs registers template functions, replacing placeholders of the same name.
func (a *App) Funcs(fm template.FuncMap) {
	maps.Copy(a.funcs, fm)
}

// Router returns the installed router, or nil.
func (a *App) Router() *Router { return a.router }

// Views lists the view templates rendered through routerView, in order.
func (a *App) Views() []string { return slices.Clone(a.views) }

// Assets lists the asset paths referenced through the asset function, in order, without duplicates.
func (a *App) Assets() []string { return slices.Clone(a.assets) }

// Render executes the root component with the router's current location and data.
func (a *App) Render(w io.Writer, data any) error {
	if a.root.Template == nil {
		return fmt.Errorf("app: root component %q has no template", a.root.Name)
	}

	tmpl, err := a.root.Template.Clone()
	if err != nil {
		return fmt.Errorf("clone template: %w", err)
	}

	page := Page{Data: data}
	if a.router != nil {
		page.Location = a.router.Current()
	}

	funcs := template.FuncMap{
		"asset": a.asset,
		"routerView": func() (template.HTML, error) {
			if page.Route == nil || page.Route.View == "" {
				return "", nil
			}
			a.views = append(a.views, page.Route.View)

			var buf bytes.Buffer
			if err := tmpl.ExecuteTemplate(&buf, page.Route.View, page); err != nil {
				return "", err
			}
			return template.HTML(buf.String()), nil
		},
	}
	maps.Copy(funcs, a.funcs)
	tmpl.Funcs(funcs)

	return tmpl.ExecuteTemplate(w, a.root.Name, page)
}

func (a *App) asset(name string) string {
	if !slices.Contains(a.assets, name) {
		a.assets = append(a.assets, name)
	}
	return path.Join(a.AssetBase, name)
}

func renderMarkdown(src string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return "", err
	}
	return template.HTML(sanitize.SanitizeBytes(buf.Bytes())), nil
}
