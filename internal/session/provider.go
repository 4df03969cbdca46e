package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/desertthunder/dmsa/internal/models"
)

// Provider owns the session for one client. It is the only writer of the token.
//
// Reads are safe from any goroutine. Writes are serialised and persisted before listeners run;
// when two writers race, the last write wins and listeners see changes in write order.
// Listeners must not write the token.
type Provider struct {
	// writeMu orders each change together with its notification.
	writeMu sync.Mutex
	mu      sync.RWMutex
	store   Store
	session models.Session

	listenersMu sync.Mutex
	listeners   map[int]func(models.Session)
	nextID      int
}

// NewProvider reads the persisted token once and derives the user id from it.
// A store that fails to load yields an unauthenticated provider along with the error.
func NewProvider(store Store) (*Provider, error) {
	if store == nil {
		store = NewMemoryStore("")
	}
	p := &Provider{store: store, listeners: make(map[int]func(models.Session))}

	token, err := store.Load()
	if err != nil {
		return p, fmt.Errorf("failed to load token: %w", err)
	}
	p.session = newSession(token)
	return p, nil
}

func newSession(token string) models.Session {
	return models.Session{Token: token, UserID: UserIDFromToken(token)}
}

func (p *Provider) Session() models.Session {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.session
}

func (p *Provider) Token() string {
	return p.Session().Token
}

// UserID is the token subject, or "" when the token is missing or malformed.
func (p *Provider) UserID() string {
	return p.Session().UserID
}

func (p *Provider) Authenticated() bool {
	return p.Session().Authenticated()
}

// Claims decodes the current token.
func (p *Provider) Claims() (Claims, bool) {
	return DecodeClaims(p.Token())
}

// SetToken stores token in memory and in the persisted key. An empty token clears the session.
func (p *Provider) SetToken(token string) error {
	if token == "" {
		return p.ClearToken()
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	p.mu.Lock()
	p.session = newSession(token)
	s := p.session
	err := p.store.Save(token)
	p.mu.Unlock()

	p.notify(s)
	if err != nil {
		return fmt.Errorf("failed to persist token: %w", err)
	}
	return nil
}

// ClearToken removes the token from memory and from the persisted key.
func (p *Provider) ClearToken() error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	p.mu.Lock()
	p.session = models.Session{}
	err := p.store.Clear()
	p.mu.Unlock()

	p.notify(models.Session{})
	if err != nil {
		return fmt.Errorf("failed to clear token: %w", err)
	}
	return nil
}

// Subscribe registers fn to run after every token change. The returned func removes it.
func (p *Provider) Subscribe(fn func(models.Session)) (cancel func()) {
	p.listenersMu.Lock()
	defer p.listenersMu.Unlock()

	id := p.nextID
	p.nextID++
	p.listeners[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			p.listenersMu.Lock()
			delete(p.listeners, id)
			p.listenersMu.Unlock()
		})
	}
}

func (p *Provider) notify(s models.Session) {
	p.listenersMu.Lock()
	fns := make([]func(models.Session), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.listenersMu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}

type contextKey struct{}

// WithProvider returns a copy of ctx carrying p.
func WithProvider(ctx context.Context, p *Provider) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// FromContext returns the provider stored by [WithProvider].
func FromContext(ctx context.Context) (*Provider, bool) {
	p, ok := ctx.Value(contextKey{}).(*Provider)
	return p, ok && p != nil
}
