// Package ssr renders application pages on the server in front of a Directus backend.
//
// An [Interceptor] is middleware mounted after the backend's own routes. GET requests whose path is not
// one of the reserved backend paths are rendered: the page template comes from a [TemplateProvider], the
// render function from a [RenderModuleProvider], and each has a static (built once) and a development
// (reloaded per request) implementation chosen at startup. Everything else goes to the next handler.
//
// After rendering, the request-scoped API client is asked for its credentials. [ReadCredentials] turns
// the answer into an [AuthResult] and [RefreshCookie] decides, as a pure function of it, whether the
// refresh-token cookie is set or cleared. The credentials are then serialized into the page for the
// client bootstrap and [Assemble] splices everything into the template.
package ssr
