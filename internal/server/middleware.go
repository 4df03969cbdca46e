package server

import (
	"context"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/desertthunder/dmsa/internal/session"
	"github.com/desertthunder/dmsa/internal/shared"
)

// RequestIDHeader carries the per-request id on responses.
const RequestIDHeader = "X-Request-Id"

type requestIDKey struct{}

// RequestID returns the id assigned by [RequestLogger], or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// RequestLogger assigns a request id and logs method, path, status and duration of every request.
func RequestLogger(logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := shared.GenerateID()
			w.Header().Set(RequestIDHeader, id)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			kv := []any{"method", r.Method, "path", r.URL.Path, "status", status, "duration", time.Since(start), "request_id", id}
			switch {
			case status >= 500:
				logger.Error("request", kv...)
			case status >= 400:
				logger.Warn("request", kv...)
			default:
				logger.Info("request", kv...)
			}
		})
	}
}

// Sessions gives every request its own [session.Provider] over the token cookie.
func Sessions(opts session.CookieOptions, logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := session.NewProvider(session.NewCookieStore(w, r, opts))
			if err != nil {
				logger.Warn("failed to read session cookie", "error", err)
			}
			next.ServeHTTP(w, r.WithContext(session.WithProvider(r.Context(), p)))
		})
	}
}

// DefaultMiddleware is the stack every route gets: client IP from proxy headers, panic recovery,
// request logging and the session.
func DefaultMiddleware(logger *log.Logger, opts session.CookieOptions) []Middleware {
	return []Middleware{
		middleware.RealIP,
		RequestLogger(logger),
		middleware.Recoverer,
		Sessions(opts, logger),
	}
}
