// Package session holds the signed-in state shared by the web, CLI and TUI clients.
//
// A [Provider] is the single owner of the bearer token and the user id derived from it.
// The token lives under one persisted key ([TokenKey]) in a [Store]:
//
//   - [CookieStore] : browser cookie, one per web request
//   - [DBStore] : local SQLite key/value table, shared by CLI and TUI runs
//   - [MemoryStore] : process memory, for tests
//
// [DecodeClaims] reads the token payload without verifying it; the client never holds the
// signing key. Handlers receive the provider through the request context ([WithProvider],
// [FromContext]) rather than a global.
package session
