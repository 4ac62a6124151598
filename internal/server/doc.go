// Package server provides HTTP routing and the handlers mounted around the SSR interceptor.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] runs in the order it was added: the first middleware is the outermost wrapper.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
//
// # Backend Passthrough
//
// [BackendProxy] forwards every reserved path and its subtree (/items and /items/...) to the Directus
// instance. It is registered ahead of the catch-all route so the interceptor only sees application pages,
// and it is also the interceptor's next handler for non-GET requests.
//
// # Static Files and Development
//
// In production [Static] serves the built client directory without listings or an implicit index. In
// development the [DevServer] serves the source directory, a small reload client and an event stream
// that tells open pages to reload when a source file changes.
//
// Every request passes through [Logging], which tags the request's logger with a request ID.
package server
