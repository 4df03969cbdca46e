// Package services implements the HTTP client for the dmsa backend.
//
// # Client
//
// [Client] talks to two services, each with its own base URL:
//
//   - user service: registration, password and OAuth-baseline login, follows, discovery, playlists
//   - media service: multipart track upload and track listing
//
// The bearer token is passed explicitly to every authenticated call and attached with
// [oauth2.Token.SetAuthHeader]. Calling an authenticated endpoint with an empty token fails
// with [shared.ErrNotAuthenticated] before any request is made.
//
// # Errors
//
// A non-2xx response is an [*APIError]. Its message embeds the status and the body
// (`HTTP 409: {...}`), it unwraps to [shared.ErrAPIRequest], and a JSON error body from the
// services is parsed into [models.ServiceError]. An empty 2xx body decodes to the zero value;
// a 2xx body that is not JSON fails with [shared.ErrDecode] and keeps the raw text.
//
// Nothing is retried or cached. Requests are cancelled through their context. An optional
// outbound rate limit is available through [WithRateLimit].
//
// # Raw Requests
//
// [Client.Raw], [Client.Get] and [Client.Post] return an [APIResponse] for exploring either
// service from the command line.
//
// # Provider Login
//
// [OAuthProviderRegistry] holds the identity providers that support a real authorization-code
// flow. [OAuthProvider.FetchIdentity] reads the provider profile and produces the request for
// [Client.OAuthLogin].
package services
