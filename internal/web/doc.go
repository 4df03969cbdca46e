// Package web serves the browser front end: server-rendered pages over the user and media services.
//
// # Pages
//
//	GET  /login                      sign-in and registration forms (?mode=register), OAuth baseline form
//	POST /login, /register           email/password sign-in; register signs in afterwards
//	POST /oauth/login                OAuth baseline sign-in
//	POST /logout                     clears the token cookie
//	GET  /                           dashboard
//	GET  /playlists                  tracks and playlists, loaded in parallel; create form
//	POST /playlists                  create from selected tracks
//	GET  /playlists/{id}             playlist detail
//	POST /playlists/{id}/delete      delete
//	GET  /tracks, /tracks/upload     track list and upload form
//	POST /tracks/upload              multipart upload
//	GET  /following                  discoverable users and follows, loaded in parallel
//	POST /following/{id}/follow      follow, then reload
//	POST /following/{id}/unfollow    unfollow, then reload
//	GET  /profile                    token claims and a token preview
//	GET  /healthz                    liveness
//
// Everything except the sign-in routes and /healthz is behind [server.RequireSession].
// Unknown paths redirect to /.
//
// # Status Messages
//
// Every error is shown as a plain string in the page's status area. Messages set before a redirect
// travel in a short-lived flash cookie and are shown once.
//
// # Sessions
//
// The token lives in an HttpOnly cookie. Each request builds its own session provider from it, and
// backend calls use the request context, so an abandoned request cancels its calls. A 401 from the
// services clears the cookie and sends the visitor back to sign in.
package web
