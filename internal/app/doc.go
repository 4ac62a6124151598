// Package app wires one application instance: the view tree, its router, the document head manager and a
// Directus client.
//
// [CreateApp] runs identically for server renders and client hydration. On the server the Directus client
// uses JSON auth mode over per-request memory storage and is hydrated from the refresh-token cookie of the
// incoming request. On the client it uses cookie mode over persistent storage and is hydrated from the
// access token in the page's [InitialState].
//
// Views are html/template sets parsed with [TemplateFuncs]. The root component usually calls routerView to
// render the matched route's view, and may call title, meta, htmlAttr, bodyAttr and bodyScript to feed the
// [Head], markdown to render sanitized markdown, and asset to reference a built file.
package app
