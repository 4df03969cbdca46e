package session

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/dmsa/internal/models"
	"github.com/desertthunder/dmsa/internal/repositories"
	"github.com/desertthunder/dmsa/internal/shared"
	tu "github.com/desertthunder/dmsa/internal/testing"
)

func TestDecodeClaims(t *testing.T) {
	t.Run("Signed Token", func(t *testing.T) {
		claims, ok := DecodeClaims(tu.Token("user-1"))
		if !ok {
			t.Fatal("expected token to decode")
		}
		if claims.Subject != "user-1" {
			t.Errorf("expected subject user-1, got %s", claims.Subject)
		}
		if claims.Email != "user-1@example.com" || claims.DisplayName != "user-1" {
			t.Errorf("unexpected profile claims %+v", claims)
		}
		if claims.Issuer != tu.FakeIssuer {
			t.Errorf("unexpected issuer %s", claims.Issuer)
		}
		if len(claims.Scope) != 1 || claims.Scope[0] != "USER" {
			t.Errorf("unexpected scope %v", claims.Scope)
		}
		if claims.Expired(time.Now()) {
			t.Error("fresh token should not be expired")
		}
		if !claims.Expired(time.Now().Add(2 * time.Hour)) {
			t.Error("token should expire after an hour")
		}
	})

	t.Run("Unknown Algorithm Falls Back To Payload", func(t *testing.T) {
		header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"XYZ"}`))
		payload := base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"user-2","scope":"USER ADMIN"}`))

		claims, ok := DecodeClaims(header + "." + payload + ".sig")
		if !ok {
			t.Fatal("expected fallback decode to succeed")
		}
		if claims.Subject != "user-2" || len(claims.Scope) != 2 {
			t.Errorf("unexpected claims %+v", claims)
		}
	})

	t.Run("Malformed Tokens", func(t *testing.T) {
		for _, token := range []string{"", "   ", "abc", "a.%%%.c", "a." + base64.RawURLEncoding.EncodeToString([]byte("not json")) + ".c"} {
			if _, ok := DecodeClaims(token); ok {
				t.Errorf("DecodeClaims(%q) should fail", token)
			}
			if id := UserIDFromToken(token); id != "" {
				t.Errorf("UserIDFromToken(%q) = %q, want empty", token, id)
			}
		}
	})

	t.Run("No Expiry", func(t *testing.T) {
		if (Claims{}).Expired(time.Now()) {
			t.Error("claims without exp should never be expired")
		}
	})
}

func TestProvider(t *testing.T) {
	t.Run("Reads Persisted Token On Construction", func(t *testing.T) {
		token := tu.Token("user-1")
		p, err := NewProvider(NewMemoryStore(token))
		if err != nil {
			t.Fatalf("NewProvider() error = %v", err)
		}
		if p.Token() != token || p.UserID() != "user-1" || !p.Authenticated() {
			t.Errorf("unexpected session %+v", p.Session())
		}
	})

	t.Run("Empty Store", func(t *testing.T) {
		p, _ := NewProvider(nil)
		if p.Authenticated() || p.UserID() != "" {
			t.Errorf("expected empty session, got %+v", p.Session())
		}
	})

	t.Run("Malformed Token Keeps Token Without User", func(t *testing.T) {
		p, _ := NewProvider(NewMemoryStore("garbage"))
		if !p.Authenticated() {
			t.Error("a present token should count as authenticated")
		}
		if p.UserID() != "" {
			t.Errorf("expected empty user id, got %q", p.UserID())
		}
	})

	t.Run("Set And Clear Persist", func(t *testing.T) {
		store := NewMemoryStore("")
		p, _ := NewProvider(store)

		token := tu.Token("user-3")
		if err := p.SetToken(token); err != nil {
			t.Fatalf("SetToken() error = %v", err)
		}
		if saved, _ := store.Load(); saved != token {
			t.Errorf("expected token to be persisted, got %q", saved)
		}
		if p.UserID() != "user-3" {
			t.Errorf("expected user id to be re-derived, got %q", p.UserID())
		}

		if err := p.ClearToken(); err != nil {
			t.Fatalf("ClearToken() error = %v", err)
		}
		if saved, _ := store.Load(); saved != "" {
			t.Errorf("expected persisted token to be removed, got %q", saved)
		}
		if p.Authenticated() {
			t.Error("expected provider to be signed out")
		}
	})

	t.Run("Empty SetToken Clears", func(t *testing.T) {
		p, _ := NewProvider(NewMemoryStore(tu.Token("user-1")))
		if err := p.SetToken(""); err != nil {
			t.Fatalf("SetToken() error = %v", err)
		}
		if p.Authenticated() {
			t.Error("expected empty token to sign out")
		}
	})

	t.Run("Subscribers", func(t *testing.T) {
		p, _ := NewProvider(nil)

		var got []models.Session
		cancel := p.Subscribe(func(s models.Session) { got = append(got, s) })

		p.SetToken(tu.Token("user-4"))
		p.ClearToken()
		cancel()
		cancel()
		p.SetToken(tu.Token("user-5"))

		if len(got) != 2 {
			t.Fatalf("expected 2 notifications, got %d", len(got))
		}
		if got[0].UserID != "user-4" || got[1].Authenticated() {
			t.Errorf("unexpected notifications %+v", got)
		}
	})

	t.Run("Concurrent Writers Last Write Wins", func(t *testing.T) {
		store := NewMemoryStore("")
		p, _ := NewProvider(store)

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				p.SetToken(tu.Token("user-" + string(rune('a'+i))))
				_ = p.UserID()
			}(i)
		}
		wg.Wait()

		saved, _ := store.Load()
		if saved != p.Token() {
			t.Error("memory and persisted token should agree after writes settle")
		}
		if UserIDFromToken(saved) != p.UserID() {
			t.Error("user id should match the final token")
		}
	})

	t.Run("Concurrent Writers Notify In Write Order", func(t *testing.T) {
		p, _ := NewProvider(nil)

		var (
			mu   sync.Mutex
			last models.Session
			seen int
		)
		p.Subscribe(func(s models.Session) {
			mu.Lock()
			last = s
			seen++
			mu.Unlock()
		})

		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if i%5 == 0 {
					_ = p.ClearToken()
					return
				}
				_ = p.SetToken(tu.Token("user-" + string(rune('a'+i%26))))
			}(i)
		}
		wg.Wait()

		mu.Lock()
		defer mu.Unlock()
		if seen != 50 {
			t.Errorf("expected 50 notifications, got %d", seen)
		}
		if last != p.Session() {
			t.Errorf("last notification %+v does not match final session %+v", last, p.Session())
		}
	})

	t.Run("Store Errors", func(t *testing.T) {
		p, err := NewProvider(failingStore{})
		if err == nil {
			t.Fatal("expected load error")
		}
		if p == nil || p.Authenticated() {
			t.Error("expected unauthenticated provider on load failure")
		}
		if err := p.SetToken("t"); err == nil {
			t.Error("expected save error")
		}
		if p.Token() != "t" {
			t.Error("in-memory token should still update when persistence fails")
		}
		if err := p.ClearToken(); err == nil {
			t.Error("expected clear error")
		}
	})

	t.Run("Context", func(t *testing.T) {
		if _, ok := FromContext(context.Background()); ok {
			t.Error("expected no provider in empty context")
		}

		p, _ := NewProvider(nil)
		got, ok := FromContext(WithProvider(context.Background(), p))
		if !ok || got != p {
			t.Error("expected provider from context")
		}
	})
}

type failingStore struct{}

func (failingStore) Load() (string, error) { return "", errors.New("load failed") }
func (failingStore) Save(string) error     { return errors.New("save failed") }
func (failingStore) Clear() error          { return errors.New("clear failed") }

func TestDBStore(t *testing.T) {
	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	defer db.Close()
	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	repo := repositories.NewStorageRepository(db)
	store := NewDBStore(repo)

	if token, err := store.Load(); err != nil || token != "" {
		t.Fatalf("expected empty load, got %q, %v", token, err)
	}

	if err := store.Save("abc"); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if v, _ := repo.Get(TokenKey); v != "abc" {
		t.Errorf("expected token under %s, got %q", TokenKey, v)
	}

	// a second provider over the same table sees the first one's write
	p, err := NewProvider(NewDBStore(repo))
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}
	if p.Token() != "abc" {
		t.Errorf("expected shared token, got %q", p.Token())
	}

	if err := store.Save(""); err != nil {
		t.Fatalf("Save(\"\") error = %v", err)
	}
	if token, _ := store.Load(); token != "" {
		t.Errorf("expected token to be cleared, got %q", token)
	}
}

func TestCookieStore(t *testing.T) {
	t.Run("Load", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(&http.Cookie{Name: TokenKey, Value: "tok"})

		token, err := NewCookieStore(httptest.NewRecorder(), r, CookieOptions{}).Load()
		if err != nil || token != "tok" {
			t.Errorf("Load() = %q, %v", token, err)
		}

		token, err = NewCookieStore(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil), CookieOptions{}).Load()
		if err != nil || token != "" {
			t.Errorf("expected empty token without cookie, got %q, %v", token, err)
		}
	})

	t.Run("Save", func(t *testing.T) {
		w := httptest.NewRecorder()
		store := NewCookieStore(w, httptest.NewRequest(http.MethodGet, "/", nil), CookieOptions{Secure: true})
		if err := store.Save("tok"); err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		cookies := w.Result().Cookies()
		if len(cookies) != 1 {
			t.Fatalf("expected 1 cookie, got %d", len(cookies))
		}
		c := cookies[0]
		if c.Name != TokenKey || c.Value != "tok" || !c.HttpOnly || !c.Secure || c.Path != "/" {
			t.Errorf("unexpected cookie %+v", c)
		}
		if c.MaxAge != int(defaultCookieMaxAge.Seconds()) {
			t.Errorf("expected default max age, got %d", c.MaxAge)
		}
	})

	t.Run("Clear", func(t *testing.T) {
		w := httptest.NewRecorder()
		store := NewCookieStore(w, httptest.NewRequest(http.MethodGet, "/", nil), CookieOptions{})
		if err := store.Clear(); err != nil {
			t.Fatalf("Clear() error = %v", err)
		}

		cookies := w.Result().Cookies()
		if len(cookies) != 1 || cookies[0].MaxAge >= 0 {
			t.Errorf("expected expiring cookie, got %+v", cookies)
		}
	})
}
