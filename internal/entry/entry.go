package entry

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"os"
	"path"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/dssr/internal/app"
	"github.com/desertthunder/dssr/internal/directus"
	"github.com/desertthunder/dssr/internal/shared"
	"github.com/desertthunder/dssr/internal/ssr"
)

const (
	RoutesFile = "routes.toml"
	ViewsGlob  = "views/*.html"
)

// routesFile is the shape of routes.toml.
type routesFile struct {
	Root      string      `toml:"root"`
	AssetBase string      `toml:"asset_base"`
	Routes    []app.Route `toml:"routes"`
}

// Options are shared by every module loaded from a source.
type Options struct {
	HTTPClient *http.Client
	Logger     *log.Logger
	Hook       app.Hook
}

// Content is the data a view renders: the route's collection items, or one item.
type Content struct {
	Items    []directus.Item
	Item     directus.Item
	NotFound bool
}

// Module is a loaded render module: the parsed views and the route table.
type Module struct {
	root      app.Component
	routes    []app.Route
	assetBase string
	sources   map[string]string
	opts      Options
}

// Load parses routes.toml and views/*.html from fsys.
func Load(fsys fs.FS, opts Options) (*Module, error) {
	data, err := fs.ReadFile(fsys, RoutesFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrRenderModule, err)
	}

	rf := routesFile{Root: "app", AssetBase: "/"}
	if err := toml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", shared.ErrRenderModule, RoutesFile, err)
	}

	paths, err := fs.Glob(fsys, ViewsGlob)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrRenderModule, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no views match %s", shared.ErrRenderModule, ViewsGlob)
	}

	set := template.New("").Funcs(app.TemplateFuncs())
	sources := map[string]string{}

	for _, p := range paths {
		src, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", shared.ErrRenderModule, err)
		}

		base := path.Base(p)
		if _, err := set.New(base).Parse(string(src)); err != nil {
			return nil, fmt.Errorf("%w: %w", shared.ErrRenderModule, err)
		}

		sources[base] = p
		for _, t := range set.Templates() {
			if _, ok := sources[t.Name()]; !ok {
				sources[t.Name()] = p
			}
		}
	}

	if set.Lookup(rf.Root) == nil {
		return nil, fmt.Errorf("%w: root view %q is not defined", shared.ErrRenderModule, rf.Root)
	}
	for _, r := range rf.Routes {
		if r.View != "" && set.Lookup(r.View) == nil {
			return nil, fmt.Errorf("%w: route %q uses undefined view %q", shared.ErrRenderModule, r.Path, r.View)
		}
	}

	return &Module{
		root:      app.Component{Name: rf.Root, Template: set},
		routes:    rf.Routes,
		assetBase: rf.AssetBase,
		sources:   sources,
		opts:      opts,
	}, nil
}

// Routes returns the route table.
func (m *Module) Routes() []app.Route { return m.routes }

// Root returns the root component.
func (m *Module) Root() app.Component { return m.root }

// Render is the module's [ssr.RenderFunc].
func (m *Module) Render(ctx context.Context, in ssr.RenderInput) (*ssr.RenderResult, error) {
	bundle, err := app.CreateApp(ctx, m.root, app.Options{
		Routes:     m.routes,
		Request:    in.Request,
		Env:        in.Env,
		HTTPClient: m.opts.HTTPClient,
		Logger:     m.opts.Logger,
	}, m.opts.Hook)
	if err != nil {
		return nil, err
	}

	bundle.App.AssetBase = m.assetBase
	bundle.Router.Push(in.URL)

	res := &ssr.RenderResult{Directus: bundle.Directus}

	if !in.SkipRender {
		loc := bundle.Router.Current()
		if loc.Route != nil && loc.Route.Title != "" {
			bundle.Head.SetTitle(loc.Route.Title)
		}

		content, err := m.load(ctx, bundle.Directus, loc)
		if err != nil {
			return nil, err
		}

		var buf strings.Builder
		if err := bundle.App.Render(&buf, content); err != nil {
			return nil, err
		}

		modules := append([]string{m.root.Name}, bundle.App.Views()...)
		modules = append(modules, bundle.App.Assets()...)

		res.AppHTML = buf.String()
		res.Head = bundle.Head.Render()
		res.PreloadLinks = in.Manifest.PreloadLinks(modules)
	}

	if in.InitialState != nil {
		if creds, err := bundle.Directus.Credentials(ctx); err == nil {
			in.InitialState.AccessToken = &creds.AccessToken
		}
	}

	return res, nil
}

// load reads the data for a route: a singleton, one item when the route captures {id}, or a list.
func (m *Module) load(ctx context.Context, client *directus.Client, loc app.Location) (*Content, error) {
	if loc.Route == nil || loc.Route.Collection == "" {
		return &Content{}, nil
	}

	var (
		content Content
		err     error
	)
	switch id := loc.Params["id"]; {
	case loc.Route.Single:
		content.Item, err = client.ReadSingleton(ctx, loc.Route.Collection)
	case id != "":
		content.Item, err = client.ReadItem(ctx, loc.Route.Collection, id)
	default:
		content.Items, err = client.ReadItems(ctx, loc.Route.Collection, directus.Query{Search: loc.Query.Get("search")})
	}

	if errors.Is(err, shared.ErrItemNotFound) {
		return &Content{NotFound: true}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", loc.Route.Collection, err)
	}
	return &content, nil
}

var templateRef = regexp.MustCompile(`template: ([^:\s]+):`)

// SourceError is an error whose message points at view source files.
type SourceError struct {
	Msg string
	Err error
}

func (e *SourceError) Error() string { return e.Msg }
func (e *SourceError) Unwrap() error { return e.Err }

// FixStacktrace rewrites template names in err's message to the files that define them.
func (m *Module) FixStacktrace(err error) error {
	if err == nil {
		return nil
	}

	msg := err.Error()
	fixed := templateRef.ReplaceAllStringFunc(msg, func(ref string) string {
		name := templateRef.FindStringSubmatch(ref)[1]
		if src, ok := m.sources[name]; ok {
			return "template: " + src + ":"
		}
		return ref
	})
	if fixed == msg {
		return err
	}
	return &SourceError{Msg: fixed, Err: err}
}

// Source loads modules from a directory on disk.
type Source struct {
	dir  string
	opts Options
}

func NewSource(dir string, opts Options) *Source {
	return &Source{dir: dir, opts: opts}
}

// Module loads the module as it is on disk now.
func (s *Source) Module() (*Module, error) {
	return Load(os.DirFS(s.dir), s.opts)
}

// Load is an [ssr.Loader].
func (s *Source) Load(context.Context) (ssr.RenderFunc, error) {
	m, err := s.Module()
	if err != nil {
		return nil, err
	}
	return m.Render, nil
}

// FixStacktrace maps err against the current sources. It returns err unchanged when they do not load.
func (s *Source) FixStacktrace(err error) error {
	m, lerr := s.Module()
	if lerr != nil {
		return err
	}
	return m.FixStacktrace(err)
}
