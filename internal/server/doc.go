// Package server provides HTTP routing, middleware, the route guard and OAuth callback handling.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses a chi mux internally for method routing and path parameters.
// [DefaultMiddleware] adds real client IPs, panic recovery, request logging and a per-request session.
//
// # Route Guard
//
// [RequireSession] is the single gate in front of protected pages. Without a token the request is
// answered with 303 See Other to the login page, remembering the original location in ?next=.
// [SafeRedirect] only ever returns local paths, so the remembered location cannot leave the site.
//
// # OAuth Callback Handler
//
// [OAuthHandler] implements the OAuth2 authorization code callback flow for `dmsa auth connect`.
// A temporary HTTP server starts on the configured redirect address, handles one callback, and
// shuts down after the provider token arrives.
//
// The handler validates the state parameter (CSRF protection), exchanges the authorization code for tokens,
// and sends the result through a channel. It only processes one callback to prevent replay attacks.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
