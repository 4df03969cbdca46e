package web

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/dmsa/internal/services"
	"github.com/desertthunder/dmsa/internal/session"
	tu "github.com/desertthunder/dmsa/internal/testing"
)

type harness struct {
	backend *tu.Backend
	api     *services.Client
	site    *httptest.Server
	client  *http.Client
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	backend := tu.NewBackend(t)
	api, err := services.NewClient(backend.User.URL, backend.Media.URL)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	app, err := New(api, log.New(io.Discard), Options{})
	if err != nil {
		t.Fatalf("failed to create app: %v", err)
	}

	site := httptest.NewServer(app.Router())
	t.Cleanup(site.Close)

	jar, _ := cookiejar.New(nil)
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &harness{backend: backend, api: api, site: site, client: client}
}

func (h *harness) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	resp, err := h.client.Get(h.site.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp, readBody(t, resp)
}

func (h *harness) post(t *testing.T, path string, form url.Values) (*http.Response, string) {
	t.Helper()
	resp, err := h.client.PostForm(h.site.URL+path, form)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp, readBody(t, resp)
}

// follow performs one redirect hop, as a browser would after a form post.
func (h *harness) follow(t *testing.T, resp *http.Response) (*http.Response, string) {
	t.Helper()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", resp.StatusCode)
	}
	return h.get(t, resp.Header.Get("Location"))
}

// signIn stores a token for the site in the cookie jar.
func (h *harness) signIn(t *testing.T, token string) {
	t.Helper()
	u, _ := url.Parse(h.site.URL)
	h.client.Jar.SetCookies(u, []*http.Cookie{{Name: session.TokenKey, Value: token, Path: "/"}})
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	return string(b)
}

func TestAuthGate(t *testing.T) {
	h := newHarness(t)

	for _, path := range []string{"/", "/playlists", "/tracks", "/tracks/upload", "/following", "/profile"} {
		t.Run(path, func(t *testing.T) {
			resp, _ := h.get(t, path+"?tab=1")
			if resp.StatusCode != http.StatusSeeOther {
				t.Fatalf("expected 303, got %d", resp.StatusCode)
			}
			loc, _ := url.Parse(resp.Header.Get("Location"))
			if loc.Path != LoginPath {
				t.Errorf("expected redirect to %s, got %s", LoginPath, loc.Path)
			}
			if next := loc.Query().Get("next"); next != path+"?tab=1" {
				t.Errorf("expected next=%q, got %q", path+"?tab=1", next)
			}
		})
	}

	t.Run("public routes", func(t *testing.T) {
		resp, body := h.get(t, "/healthz")
		if resp.StatusCode != http.StatusOK || !strings.Contains(body, `"ok"`) {
			t.Errorf("unexpected healthz %d %s", resp.StatusCode, body)
		}
		resp, body = h.get(t, "/login")
		if resp.StatusCode != http.StatusOK || !strings.Contains(body, "Sign in") {
			t.Errorf("unexpected login page %d", resp.StatusCode)
		}
	})

	t.Run("unknown path redirects home", func(t *testing.T) {
		resp, _ := h.get(t, "/nowhere")
		if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/" {
			t.Errorf("expected redirect to /, got %d %q", resp.StatusCode, resp.Header.Get("Location"))
		}
	})
}

func TestLoginFlow(t *testing.T) {
	t.Run("register then login returns to remembered path", func(t *testing.T) {
		h := newHarness(t)

		resp, _ := h.post(t, "/register", url.Values{
			"email":       {"ana@example.com"},
			"password":    {"secret123"},
			"displayName": {"Ana"},
			"next":        {"/profile"},
		})
		if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/profile" {
			t.Fatalf("expected redirect to /profile, got %d %q", resp.StatusCode, resp.Header.Get("Location"))
		}

		_, body := h.follow(t, resp)
		if !strings.Contains(body, "ana@example.com") {
			t.Errorf("expected profile with claims, got:\n%s", body)
		}
		if strings.Contains(body, "Not found in token") {
			t.Error("expected user id from token")
		}

		resp, _ = h.post(t, "/logout", nil)
		resp, body = h.follow(t, resp)
		if !strings.Contains(body, "Signed out.") {
			t.Errorf("expected sign out status, got:\n%s", body)
		}
		resp, _ = h.get(t, "/profile")
		if resp.StatusCode != http.StatusSeeOther {
			t.Errorf("expected gate after logout, got %d", resp.StatusCode)
		}

		resp, _ = h.post(t, "/login", url.Values{"email": {"ana@example.com"}, "password": {"secret123"}})
		if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/" {
			t.Errorf("expected redirect home, got %d %q", resp.StatusCode, resp.Header.Get("Location"))
		}
	})

	t.Run("register without display name", func(t *testing.T) {
		h := newHarness(t)

		resp, _ := h.post(t, "/register", url.Values{
			"email":    {"cleo@example.com"},
			"password": {"secret123"},
		})
		if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/" {
			t.Fatalf("expected redirect home, got %d %q", resp.StatusCode, resp.Header.Get("Location"))
		}

		_, token := h.backend.SeedUser("bob@example.com", "secret123", "Bob")
		users, err := h.api.DiscoverUsers(t.Context(), token)
		if err != nil || len(users) != 1 {
			t.Fatalf("expected one discoverable user, got %+v (%v)", users, err)
		}
		if users[0].DisplayName != "cleo" {
			t.Errorf("expected display name from email, got %q", users[0].DisplayName)
		}
	})

	t.Run("bad credentials stay on login with status", func(t *testing.T) {
		h := newHarness(t)
		resp, body := h.post(t, "/login", url.Values{"email": {"nobody@example.com"}, "password": {"x"}})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected page, got %d", resp.StatusCode)
		}
		if !strings.Contains(body, "HTTP 401") {
			t.Errorf("expected status with HTTP 401, got:\n%s", body)
		}
	})

	t.Run("external next is ignored", func(t *testing.T) {
		h := newHarness(t)
		h.backend.SeedUser("ana@example.com", "secret123", "Ana")
		resp, _ := h.post(t, "/login", url.Values{
			"email":    {"ana@example.com"},
			"password": {"secret123"},
			"next":     {"//evil.example.com"},
		})
		if resp.Header.Get("Location") != "/" {
			t.Errorf("expected redirect to /, got %q", resp.Header.Get("Location"))
		}
	})

	t.Run("oauth baseline is idempotent", func(t *testing.T) {
		h := newHarness(t)
		form := url.Values{"provider": {"google"}, "providerUserId": {"g-123"}, "email": {"gee@example.com"}}

		resp, _ := h.post(t, "/oauth/login", form)
		_, first := h.follow(t, h.mustRedirectTo(t, resp, "/", "/profile"))

		resp, _ = h.post(t, "/oauth/login", form)
		_, second := h.follow(t, h.mustRedirectTo(t, resp, "/", "/profile"))

		if userIDTile(first) == "" || userIDTile(first) != userIDTile(second) {
			t.Errorf("expected same user id, got %q and %q", userIDTile(first), userIDTile(second))
		}
		if !strings.Contains(first, "gee") {
			t.Error("expected display name to fall back to the email local part")
		}
	})
}

// mustRedirectTo checks resp redirects to want and rewrites the location to next.
func (h *harness) mustRedirectTo(t *testing.T, resp *http.Response, want, next string) *http.Response {
	t.Helper()
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != want {
		t.Fatalf("expected redirect to %s, got %d %q", want, resp.StatusCode, resp.Header.Get("Location"))
	}
	resp.Header.Set("Location", next)
	return resp
}

func userIDTile(body string) string {
	_, after, ok := strings.Cut(body, "<h3>User ID</h3><p>")
	if !ok {
		return ""
	}
	id, _, _ := strings.Cut(after, "</p>")
	return id
}

func TestPlaylistsPage(t *testing.T) {
	h := newHarness(t)
	_, token := h.backend.SeedUser("ana@example.com", "secret123", "Ana")
	trackID := h.backend.SeedTrack("Song A", "artist-1", "Ana", "rock")
	h.backend.SeedTrack("Song B", "artist-1", "Ana", "pop")
	h.signIn(t, token)

	_, body := h.get(t, "/playlists")
	if !strings.Contains(body, "Loaded 2 track(s) and 0 playlist(s).") {
		t.Errorf("unexpected status:\n%s", body)
	}

	t.Run("create with one track", func(t *testing.T) {
		resp, body := h.post(t, "/playlists", url.Values{"name": {"  Road Trip "}, "track": {trackID}})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected page, got %d", resp.StatusCode)
		}
		if !strings.Contains(body, `Created playlist &#34;Road Trip&#34; with 1 track(s).`) {
			t.Errorf("unexpected status:\n%s", body)
		}

		playlists, err := h.api.ListPlaylists(t.Context(), token)
		if err != nil || len(playlists) != 1 || len(playlists[0].Tracks) != 1 {
			t.Fatalf("expected one playlist with one track, got %+v (%v)", playlists, err)
		}

		_, detail := h.get(t, "/playlists/"+playlists[0].ID)
		if !strings.Contains(detail, "Song A") {
			t.Errorf("expected detail page to list the track:\n%s", detail)
		}

		resp, _ = h.post(t, "/playlists/"+playlists[0].ID+"/delete", nil)
		_, body = h.follow(t, resp)
		if !strings.Contains(body, "Playlist deleted.") {
			t.Errorf("expected delete status:\n%s", body)
		}
	})

	t.Run("missing name", func(t *testing.T) {
		before := h.backend.Requests()
		_, body := h.post(t, "/playlists", url.Values{"name": {" "}})
		if !strings.Contains(body, "name is required") {
			t.Errorf("expected validation status:\n%s", body)
		}
		if got := h.backend.Requests() - before; got != 2 {
			t.Errorf("expected only the two library loads, got %d requests", got)
		}
	})

	t.Run("missing playlist", func(t *testing.T) {
		resp, _ := h.get(t, "/playlists/nope")
		_, body := h.follow(t, resp)
		if !strings.Contains(body, "HTTP 404") {
			t.Errorf("expected not found status:\n%s", body)
		}
	})
}

func uploadForm(t *testing.T, fields map[string]string, fileName string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	if fileName != "" {
		fw, err := mw.CreateFormFile("file", fileName)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = fw.Write([]byte("ID3 fake audio"))
	}
	_ = mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestUploadPage(t *testing.T) {
	h := newHarness(t)
	userID, token := h.backend.SeedUser("ana@example.com", "secret123", "Ana")
	h.signIn(t, token)

	t.Run("artist id defaults to user", func(t *testing.T) {
		_, body := h.get(t, "/tracks/upload")
		if !strings.Contains(body, `value="`+userID+`"`) {
			t.Errorf("expected artist id prefilled with %s", userID)
		}
	})

	t.Run("no file", func(t *testing.T) {
		before := h.backend.Requests()
		body, ct := uploadForm(t, map[string]string{"title": "Test Song"}, "")
		resp, err := h.client.Post(h.site.URL+"/tracks/upload", ct, body)
		if err != nil {
			t.Fatal(err)
		}
		page := readBody(t, resp)
		if !strings.Contains(page, "Select a file first.") {
			t.Errorf("expected missing file status:\n%s", page)
		}
		if h.backend.Requests() != before {
			t.Error("expected no backend request")
		}
	})

	t.Run("body over the limit", func(t *testing.T) {
		limit := maxUploadBytes
		maxUploadBytes = 1 << 10
		t.Cleanup(func() { maxUploadBytes = limit })

		before := h.backend.Requests()
		body, ct := uploadForm(t, map[string]string{"title": strings.Repeat("x", 4<<10)}, "song.mp3")
		resp, err := h.client.Post(h.site.URL+"/tracks/upload", ct, body)
		if err != nil {
			t.Fatal(err)
		}
		page := readBody(t, resp)
		if !strings.Contains(page, "too large") {
			t.Errorf("expected size status:\n%s", page)
		}
		if h.backend.Requests() != before {
			t.Error("expected no backend request")
		}
	})

	t.Run("upload then list", func(t *testing.T) {
		body, ct := uploadForm(t, map[string]string{"title": "Test Song", "genre": "Pop"}, "song.mp3")
		resp, err := h.client.Post(h.site.URL+"/tracks/upload", ct, body)
		if err != nil {
			t.Fatal(err)
		}
		readBody(t, resp)
		if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/tracks" {
			t.Fatalf("expected redirect to /tracks, got %d %q", resp.StatusCode, resp.Header.Get("Location"))
		}

		_, page := h.follow(t, resp)
		if !strings.Contains(page, "Test Song") || !strings.Contains(page, "/local-media/") {
			t.Errorf("expected uploaded track in list:\n%s", page)
		}
		if !strings.Contains(page, "Uploaded &#34;Test Song&#34;") {
			t.Errorf("expected flash status:\n%s", page)
		}

		_, again := h.get(t, "/tracks")
		if strings.Contains(again, "Uploaded &#34;Test Song&#34;") {
			t.Error("expected flash to be shown once")
		}
	})
}

func TestFollowingPage(t *testing.T) {
	h := newHarness(t)
	_, token := h.backend.SeedUser("ana@example.com", "secret123", "Ana")
	bobID, _ := h.backend.SeedUser("bob@example.com", "secret123", "Bob")
	h.signIn(t, token)

	_, body := h.get(t, "/following")
	if !strings.Contains(body, "Loaded 1 discoverable user(s).") || !strings.Contains(body, "/following/"+bobID+"/follow") {
		t.Fatalf("expected bob with follow action:\n%s", body)
	}

	resp, _ := h.post(t, "/following/"+bobID+"/follow", nil)
	_, body = h.follow(t, resp)
	if !strings.Contains(body, "User followed.") || !strings.Contains(body, "/following/"+bobID+"/unfollow") {
		t.Errorf("expected bob followed:\n%s", body)
	}

	resp, _ = h.post(t, "/following/"+bobID+"/follow", nil)
	_, body = h.follow(t, resp)
	if !strings.Contains(body, "Already following this user.") {
		t.Errorf("expected already following status:\n%s", body)
	}

	resp, _ = h.post(t, "/following/"+bobID+"/unfollow", nil)
	_, body = h.follow(t, resp)
	if !strings.Contains(body, "User unfollowed.") || !strings.Contains(body, "/following/"+bobID+"/follow") {
		t.Errorf("expected bob unfollowed:\n%s", body)
	}

	t.Run("failure leaves state from the server", func(t *testing.T) {
		h.backend.FailNext(http.MethodPost, "/api/v1/users/me/follows/"+bobID, http.StatusInternalServerError)
		resp, _ := h.post(t, "/following/"+bobID+"/follow", nil)
		_, body := h.follow(t, resp)
		if !strings.Contains(body, "HTTP 500") {
			t.Errorf("expected error status:\n%s", body)
		}
		if !strings.Contains(body, "/following/"+bobID+"/follow") {
			t.Error("expected bob to remain unfollowed")
		}
	})
}

func TestExpiredToken(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "not-a-valid-token")

	resp, _ := h.get(t, "/tracks")
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("expected redirect, got %d", resp.StatusCode)
	}
	loc, _ := url.Parse(resp.Header.Get("Location"))
	if loc.Path != LoginPath || loc.Query().Get("next") != "/tracks" {
		t.Errorf("unexpected location %s", loc)
	}

	resp, _ = h.get(t, "/tracks")
	if loc, _ := url.Parse(resp.Header.Get("Location")); loc == nil || loc.Path != LoginPath {
		t.Errorf("expected token cleared and gate applied, got %q", resp.Header.Get("Location"))
	}
}

func TestForbiddenKeepsSession(t *testing.T) {
	h := newHarness(t)
	_, token := h.backend.SeedUser("ana@example.com", "secret123", "Ana")
	h.signIn(t, token)

	h.backend.FailNext(http.MethodGet, "/api/v1/media/tracks", http.StatusForbidden)
	resp, body := h.get(t, "/tracks")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected page, got %d %q", resp.StatusCode, resp.Header.Get("Location"))
	}
	if !strings.Contains(body, "HTTP 403") {
		t.Errorf("expected status with HTTP 403, got:\n%s", body)
	}
	for _, c := range resp.Cookies() {
		if c.Name == session.TokenKey {
			t.Errorf("expected token cookie untouched, got %+v", c)
		}
	}

	resp, _ = h.get(t, "/profile")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected session to survive, got %d %q", resp.StatusCode, resp.Header.Get("Location"))
	}
}

func TestFlash(t *testing.T) {
	t.Run("long messages are truncated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		setFlash(rec, strings.Repeat("x", 10000))

		cookies := rec.Result().Cookies()
		if len(cookies) != 1 {
			t.Fatalf("expected one cookie, got %d", len(cookies))
		}
		if len(cookies[0].Value) > maxFlashLen+16 {
			t.Errorf("expected cookie value near %d bytes, got %d", maxFlashLen, len(cookies[0].Value))
		}

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(cookies[0])
		msg := readFlash(httptest.NewRecorder(), req)
		if !strings.HasSuffix(msg, "...") || !strings.HasPrefix(msg, "xxx") {
			t.Errorf("expected truncated message, got %q", msg)
		}
	})

	t.Run("short messages round trip", func(t *testing.T) {
		rec := httptest.NewRecorder()
		setFlash(rec, "User followed.")

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(rec.Result().Cookies()[0])
		if msg := readFlash(httptest.NewRecorder(), req); msg != "User followed." {
			t.Errorf("expected message back, got %q", msg)
		}
	})
}

func TestProfileWithoutSubject(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "opaque-token-value")

	_, body := h.get(t, "/profile")
	if !strings.Contains(body, "Not found in token") {
		t.Errorf("expected missing user id:\n%s", body)
	}
	if !strings.Contains(body, "opaque-token-value...") {
		t.Errorf("expected token preview:\n%s", body)
	}
}
