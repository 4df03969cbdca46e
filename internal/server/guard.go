package server

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/desertthunder/dmsa/internal/session"
)

// RequireSession guards protected routes. A request without a token is redirected to loginPath
// with the original path and query kept in ?next=. Any present token passes; the services
// decide whether it is still valid.
func RequireSession(loginPath string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if p, ok := session.FromContext(r.Context()); ok && p.Authenticated() {
				next.ServeHTTP(w, r)
				return
			}
			http.Redirect(w, r, LoginRedirect(loginPath, r.URL.RequestURI()), http.StatusSeeOther)
		})
	}
}

// LoginRedirect builds the login URL that remembers next.
func LoginRedirect(loginPath, next string) string {
	next = SafeRedirect(next)
	if next == "/" {
		return loginPath
	}
	return loginPath + "?next=" + url.QueryEscape(next)
}

// SafeRedirect returns next when it is a local absolute path, and "/" otherwise.
// Scheme-relative (//host) and backslash tricks are rejected so a login cannot bounce elsewhere.
func SafeRedirect(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") {
		return "/"
	}
	if strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") || strings.ContainsAny(next, "\r\n") {
		return "/"
	}

	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "/"
	}
	return next
}
