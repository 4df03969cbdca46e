package session

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/desertthunder/dmsa/internal/repositories"
)

// TokenKey is the single persisted key holding the bearer token.
const TokenKey = "dmsa.web.token"

// Store persists the bearer token under [TokenKey].
// Load returns "" when nothing is stored.
type Store interface {
	Load() (string, error)
	Save(token string) error
	Clear() error
}

// MemoryStore keeps the token for the life of the process.
type MemoryStore struct {
	mu    sync.Mutex
	token string
}

func NewMemoryStore(token string) *MemoryStore {
	return &MemoryStore{token: token}
}

func (m *MemoryStore) Load() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, nil
}

func (m *MemoryStore) Save(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

func (m *MemoryStore) Clear() error {
	return m.Save("")
}

// KeyValue is the subset of [repositories.StorageRepository] the DB store needs.
type KeyValue interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// DBStore keeps the token in the local SQLite key/value table, shared by CLI and TUI runs.
type DBStore struct {
	kv KeyValue
}

func NewDBStore(kv KeyValue) *DBStore {
	return &DBStore{kv: kv}
}

func (d *DBStore) Load() (string, error) {
	token, err := d.kv.Get(TokenKey)
	if errors.Is(err, repositories.ErrKeyNotFound) {
		return "", nil
	}
	return token, err
}

func (d *DBStore) Save(token string) error {
	if token == "" {
		return d.Clear()
	}
	return d.kv.Set(TokenKey, token)
}

func (d *DBStore) Clear() error {
	return d.kv.Delete(TokenKey)
}

// CookieOptions controls the token cookie attributes.
type CookieOptions struct {
	Secure bool
	MaxAge time.Duration
}

const defaultCookieMaxAge = 30 * 24 * time.Hour

// CookieStore keeps the token in a browser cookie. It is bound to one request and its response.
type CookieStore struct {
	w    http.ResponseWriter
	r    *http.Request
	opts CookieOptions
}

func NewCookieStore(w http.ResponseWriter, r *http.Request, opts CookieOptions) *CookieStore {
	if opts.MaxAge <= 0 {
		opts.MaxAge = defaultCookieMaxAge
	}
	return &CookieStore{w: w, r: r, opts: opts}
}

func (c *CookieStore) Load() (string, error) {
	cookie, err := c.r.Cookie(TokenKey)
	if errors.Is(err, http.ErrNoCookie) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return cookie.Value, nil
}

func (c *CookieStore) Save(token string) error {
	if token == "" {
		return c.Clear()
	}
	http.SetCookie(c.w, &http.Cookie{
		Name:     TokenKey,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   c.opts.Secure,
		MaxAge:   int(c.opts.MaxAge.Seconds()),
	})
	return nil
}

func (c *CookieStore) Clear() error {
	http.SetCookie(c.w, &http.Cookie{
		Name:     TokenKey,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   c.opts.Secure,
		MaxAge:   -1,
	})
	return nil
}
