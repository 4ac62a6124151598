package ssr

import "strings"

// Template markers. Each is replaced at its first occurrence only.
const (
	MarkerHTML         = "<html"
	MarkerPreloadLinks = "<!--preload-links-->"
	MarkerAppHTML      = "<!--app-html-->"
	MarkerBody         = "<body"
	MarkerBodyEnd      = "</body>"
)

// Assemble splices a render result and the state script into a page template.
func Assemble(template string, res *RenderResult, stateScript string) string {
	out := template
	out = strings.Replace(out, MarkerHTML, MarkerHTML+attrs(res.Head.HTMLAttrs), 1)
	out = strings.Replace(out, MarkerPreloadLinks, res.PreloadLinks+"\n"+res.Head.HeadTags, 1)
	out = strings.Replace(out, MarkerAppHTML, res.AppHTML, 1)
	out = strings.Replace(out, MarkerBody, MarkerBody+attrs(res.Head.BodyAttrs), 1)
	out = strings.Replace(out, MarkerBodyEnd, res.Head.BodyTags+"\n"+stateScript+"\n"+MarkerBodyEnd, 1)
	return out
}

func attrs(s string) string {
	if s == "" {
		return ""
	}
	return " " + s
}
