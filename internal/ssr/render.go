package ssr

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/desertthunder/dssr/internal/app"
)

// RenderInput is what the interceptor hands a render module for one request.
type RenderInput struct {
	// SkipRender asks the module to bootstrap without producing markup.
	SkipRender   bool
	URL          string
	Manifest     Manifest
	InitialState *app.InitialState
	Request      *http.Request
	Response     http.ResponseWriter
	Env          app.Env
}

// RenderResult is what a render module hands back.
type RenderResult struct {
	AppHTML      string
	PreloadLinks string
	Head         app.Parts
	Directus     CredentialsSource
}

// RenderFunc renders one page.
type RenderFunc func(ctx context.Context, in RenderInput) (*RenderResult, error)

// Manifest maps a module id (a view or asset name) to the built files it depends on.
type Manifest map[string][]string

// LoadManifest reads an ssr-manifest.json. A missing file yields an empty manifest.
func LoadManifest(p string) (Manifest, error) {
	data, err := os.ReadFile(p)
	if os.IsNotExist(err) {
		return Manifest{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", p, err)
	}
	return m, nil
}

// PreloadLinks renders link tags for every file the given modules depend on, each file once, in the
// order first seen.
func (m Manifest) PreloadLinks(modules []string) string {
	seen := map[string]bool{}
	var links []string

	for _, id := range modules {
		for _, file := range m[id] {
			if seen[file] {
				continue
			}
			seen[file] = true
			if link := preloadLink(file); link != "" {
				links = append(links, link)
			}
		}
	}
	return strings.Join(links, "\n")
}

func preloadLink(file string) string {
	href := html.EscapeString(file)

	switch strings.ToLower(path.Ext(file)) {
	case ".js", ".mjs":
		return `<link rel="modulepreload" crossorigin href="` + href + `">`
	case ".css":
		return `<link rel="stylesheet" href="` + href + `">`
	case ".woff":
		return `<link rel="preload" href="` + href + `" as="font" type="font/woff" crossorigin>`
	case ".woff2":
		return `<link rel="preload" href="` + href + `" as="font" type="font/woff2" crossorigin>`
	case ".gif":
		return `<link rel="preload" href="` + href + `" as="image" type="image/gif">`
	case ".jpg", ".jpeg":
		return `<link rel="preload" href="` + href + `" as="image" type="image/jpeg">`
	case ".png":
		return `<link rel="preload" href="` + href + `" as="image" type="image/png">`
	default:
		return ""
	}
}
