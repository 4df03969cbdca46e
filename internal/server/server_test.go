package server

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"

	"github.com/desertthunder/dmsa/internal/session"
	tu "github.com/desertthunder/dmsa/internal/testing"
)

func TestBasicRouter(t *testing.T) {
	t.Run("routes by method and path parameter", func(t *testing.T) {
		r := NewBasicRouter()
		r.HandleFunc(http.MethodGet, "/playlists/{id}", func(w http.ResponseWriter, req *http.Request) {
			_, _ = w.Write([]byte("get " + Param(req, "id")))
		})
		r.HandleFunc(http.MethodPost, "/playlists/{id}", func(w http.ResponseWriter, req *http.Request) {
			_, _ = w.Write([]byte("post " + Param(req, "id")))
		})

		for _, method := range []string{http.MethodGet, http.MethodPost} {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(method, "/playlists/p-1", nil))
			want := strings.ToLower(method) + " p-1"
			if rec.Body.String() != want {
				t.Errorf("%s: expected %q, got %q", method, want, rec.Body.String())
			}
		}

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/playlists/p-1", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})

	t.Run("middleware order", func(t *testing.T) {
		var order []string
		mw := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		r := NewBasicRouter()
		r.Use(mw("first"), mw("second"))
		r.HandleFunc(http.MethodGet, "/", func(w http.ResponseWriter, _ *http.Request) {
			order = append(order, "handler")
		})
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		if strings.Join(order, ",") != "first,second,handler" {
			t.Errorf("unexpected order %v", order)
		}
	})

	t.Run("group middleware does not leak", func(t *testing.T) {
		deny := func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusForbidden)
			})
		}
		ok := func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }

		r := NewBasicRouter()
		r.Group(func(g *BasicRouter) {
			g.HandleFunc(http.MethodGet, "/private", ok)
		}, deny)
		r.HandleFunc(http.MethodGet, "/public", ok)

		for path, want := range map[string]int{"/private": http.StatusForbidden, "/public": http.StatusOK} {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
			if rec.Code != want {
				t.Errorf("%s: expected %d, got %d", path, want, rec.Code)
			}
		}
	})

	t.Run("not found handler", func(t *testing.T) {
		r := NewBasicRouter()
		r.NotFound(http.RedirectHandler("/", http.StatusSeeOther))

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
		if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/" {
			t.Errorf("expected redirect to /, got %d %q", rec.Code, rec.Header().Get("Location"))
		}
	})
}

func TestSafeRedirect(t *testing.T) {
	tests := []struct {
		name string
		next string
		want string
	}{
		{"empty", "", "/"},
		{"local path", "/playlists", "/playlists"},
		{"local path with query", "/playlists/p-1?tab=tracks", "/playlists/p-1?tab=tracks"},
		{"relative", "playlists", "/"},
		{"absolute url", "https://evil.example.com/", "/"},
		{"scheme relative", "//evil.example.com", "/"},
		{"backslash", "/\\evil.example.com", "/"},
		{"header injection", "/ok\r\nSet-Cookie: x=y", "/"},
		{"javascript", "javascript:alert(1)", "/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SafeRedirect(tt.next); got != tt.want {
				t.Errorf("SafeRedirect(%q) = %q, want %q", tt.next, got, tt.want)
			}
		})
	}
}

func guardedRouter() *BasicRouter {
	r := NewBasicRouter()
	r.Use(Sessions(session.CookieOptions{}, log.New(&bytes.Buffer{})))
	r.Group(func(g *BasicRouter) {
		g.HandleFunc(http.MethodGet, "/playlists", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("playlists"))
		})
	}, RequireSession("/login"))
	return r
}

func TestRequireSession(t *testing.T) {
	t.Run("redirects without token and keeps the location", func(t *testing.T) {
		rec := httptest.NewRecorder()
		guardedRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/playlists?sort=name", nil))

		if rec.Code != http.StatusSeeOther {
			t.Fatalf("expected 303, got %d", rec.Code)
		}
		loc, err := url.Parse(rec.Header().Get("Location"))
		if err != nil {
			t.Fatalf("bad location: %v", err)
		}
		if loc.Path != "/login" {
			t.Errorf("expected /login, got %s", loc.Path)
		}
		if next := loc.Query().Get("next"); next != "/playlists?sort=name" {
			t.Errorf("expected next to keep path and query, got %q", next)
		}
	})

	t.Run("passes with token cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/playlists", nil)
		req.AddCookie(&http.Cookie{Name: session.TokenKey, Value: tu.Token("user-1")})

		rec := httptest.NewRecorder()
		guardedRouter().ServeHTTP(rec, req)

		if rec.Code != http.StatusOK || rec.Body.String() != "playlists" {
			t.Errorf("expected page, got %d %q", rec.Code, rec.Body.String())
		}
	})

	t.Run("login redirect omits root", func(t *testing.T) {
		if got := LoginRedirect("/login", "/"); got != "/login" {
			t.Errorf("expected bare login path, got %q", got)
		}
	})
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf)

	r := NewBasicRouter()
	r.Use(RequestLogger(logger))
	var seen string
	r.HandleFunc(http.MethodGet, "/missing", func(w http.ResponseWriter, req *http.Request) {
		seen = RequestID(req.Context())
		w.WriteHeader(http.StatusNotFound)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))

	id := rec.Header().Get(RequestIDHeader)
	if id == "" || id != seen {
		t.Errorf("expected request id in header and context, got %q and %q", id, seen)
	}

	out := buf.String()
	for _, want := range []string{"request", "/missing", "404", id} {
		if !strings.Contains(out, want) {
			t.Errorf("expected log to contain %q, got %s", want, out)
		}
	}
}

func TestDefaultMiddlewareRecovers(t *testing.T) {
	r := NewBasicRouter()
	r.Use(DefaultMiddleware(log.New(&bytes.Buffer{}), session.CookieOptions{})...)
	r.HandleFunc(http.MethodGet, "/boom", func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}

func TestOAuthHandler(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"provider-token","token_type":"Bearer","expires_in":3600}`))
	}))
	defer tokenServer.Close()

	config := &oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		Endpoint:     oauth2.Endpoint{TokenURL: tokenServer.URL},
		RedirectURL:  "http://localhost:3000/callback",
	}

	t.Run("exchanges code", func(t *testing.T) {
		h := NewOAuthHandler(config, "state-1", "")
		if routes := h.Routes(); len(routes) != 1 || routes[0] != "/callback" {
			t.Fatalf("unexpected routes %v", routes)
		}

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=state-1&code=abc", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}

		result := <-h.Result()
		if err := result.Error(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Token.AccessToken != "provider-token" {
			t.Errorf("unexpected token %q", result.Token.AccessToken)
		}
	})

	t.Run("rejects bad state", func(t *testing.T) {
		h := NewOAuthHandler(config, "state-1", "/cb")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cb?state=other&code=abc", nil))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		result := <-h.Result()
		if result.Error() == nil {
			t.Error("expected state error")
		}
	})

	t.Run("processes one callback", func(t *testing.T) {
		h := NewOAuthHandler(config, "s", "")
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/callback?state=s&error=access_denied", nil))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=s&code=abc", nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected second callback to be refused, got %d", rec.Code)
		}
		if result := <-h.Result(); result.Error() == nil {
			t.Error("expected provider error from first callback")
		}
	})
}
