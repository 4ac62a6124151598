package app

import (
	"html"
	"html/template"
	"maps"
	"slices"
	"strings"
)

// Head collects document metadata while views render: the title, meta tags, attributes for the <html>
// and <body> elements and scripts appended to the body.
type Head struct {
	title       string
	meta        [][2]string
	htmlAttrs   map[string]string
	bodyAttrs   map[string]string
	bodyScripts []string
}

// Parts is the rendered form of a [Head], ready to splice into a page template.
type Parts struct {
	HeadTags  string
	HTMLAttrs string
	BodyAttrs string
	BodyTags  string
}

func NewHead() *Head {
	return &Head{htmlAttrs: map[string]string{}, bodyAttrs: map[string]string{}}
}

// Install exposes the head as template functions. Each returns "" so it can be called inline.
func (h *Head) Install(a *App) {
	a.Funcs(template.FuncMap{
		"title":      func(s string) string { h.SetTitle(s); return "" },
		"meta":       func(name, content string) string { h.AddMeta(name, content); return "" },
		"htmlAttr":   func(k, v string) string { h.SetHTMLAttr(k, v); return "" },
		"bodyAttr":   func(k, v string) string { h.SetBodyAttr(k, v); return "" },
		"bodyScript": func(src string) string { h.AddBodyScript(src); return "" },
	})
}

// SetTitle replaces the title. The last call wins.
func (h *Head) SetTitle(title string) { h.title = title }

func (h *Head) Title() string { return h.title }

// AddMeta adds a <meta name content> tag, replacing an earlier one with the same name.
func (h *Head) AddMeta(name, content string) {
	for i := range h.meta {
		if h.meta[i][0] == name {
			h.meta[i][1] = content
			return
		}
	}
	h.meta = append(h.meta, [2]string{name, content})
}

func (h *Head) SetHTMLAttr(key, value string) { h.htmlAttrs[key] = value }

func (h *Head) SetBodyAttr(key, value string) { h.bodyAttrs[key] = value }

// AddBodyScript appends a script tag loading src to the end of the body.
func (h *Head) AddBodyScript(src string) {
	if !slices.Contains(h.bodyScripts, src) {
		h.bodyScripts = append(h.bodyScripts, src)
	}
}

// Render returns the collected metadata as markup.
func (h *Head) Render() Parts {
	var head []string
	if h.title != "" {
		head = append(head, "<title>"+html.EscapeString(h.title)+"</title>")
	}
	for _, m := range h.meta {
		head = append(head, `<meta name="`+html.EscapeString(m[0])+`" content="`+html.EscapeString(m[1])+`">`)
	}

	var body []string
	for _, src := range h.bodyScripts {
		body = append(body, `<script type="module" src="`+html.EscapeString(src)+`"></script>`)
	}

	return Parts{
		HeadTags:  strings.Join(head, "\n"),
		HTMLAttrs: renderAttrs(h.htmlAttrs),
		BodyAttrs: renderAttrs(h.bodyAttrs),
		BodyTags:  strings.Join(body, "\n"),
	}
}

func renderAttrs(attrs map[string]string) string {
	keys := slices.Sorted(maps.Keys(attrs))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, html.EscapeString(k)+`="`+html.EscapeString(attrs[k])+`"`)
	}
	return strings.Join(out, " ")
}
