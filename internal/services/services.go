// package services implements the HTTP client for the user and media services
package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/time/rate"

	"github.com/desertthunder/dmsa/internal/models"
	"github.com/desertthunder/dmsa/internal/shared"
)

const (
	DefaultUserAPIBaseURL  = "http://localhost:8081"
	DefaultMediaAPIBaseURL = "http://localhost:8082"
	defaultUserAgent       = "dmsa/0.1"
)

// Service names accepted by raw requests.
const (
	UserService  = "user"
	MediaService = "media"
)

// AuthAPI groups the public endpoints that issue tokens.
type AuthAPI interface {
	Register(ctx context.Context, req models.RegisterRequest) (*models.Registration, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.LoginResult, error)
	OAuthLogin(ctx context.Context, req models.OAuthLoginRequest) (*models.OAuthLoginResult, error)
}

// SocialAPI groups the follow and discovery endpoints.
type SocialAPI interface {
	Follow(ctx context.Context, token, targetUserID string) (*models.FollowResult, error)
	Unfollow(ctx context.Context, token, targetUserID string) error
	ListFollows(ctx context.Context, token string) ([]models.FollowedUser, error)
	DiscoverUsers(ctx context.Context, token string) ([]models.DiscoverUser, error)
}

// LibraryAPI groups track and playlist endpoints.
type LibraryAPI interface {
	UploadTrack(ctx context.Context, token string, upload models.TrackUpload) (*models.UploadResult, error)
	ListTracks(ctx context.Context, token string) ([]models.Track, error)
	CreatePlaylist(ctx context.Context, token string, input models.PlaylistInput) (*models.Playlist, error)
	ListPlaylists(ctx context.Context, token string) ([]models.Playlist, error)
	GetPlaylist(ctx context.Context, token, playlistID string) (*models.Playlist, error)
	UpdatePlaylist(ctx context.Context, token, playlistID string, input models.PlaylistInput) (*models.Playlist, error)
	DeletePlaylist(ctx context.Context, token, playlistID string) error
}

// API is everything the clients call on the backend.
type API interface {
	AuthAPI
	SocialAPI
	LibraryAPI
	MediaURL(path string) string
}

var _ API = (*Client)(nil)

// Client talks to the user service and the media service.
//
// Requests carry no timeout of their own: cancellation comes from the caller's context.
// Nothing is retried or cached.
type Client struct {
	userBase   *url.URL
	mediaBase  *url.URL
	httpClient *http.Client
	limiter    *rate.Limiter
	userAgent  string
}

// Option configures a [Client].
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithRateLimit caps outbound requests per second. Zero or negative disables the limit.
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) {
		if perSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// NewClient builds a Client for the given base URLs. Empty values fall back to the local defaults.
func NewClient(userBaseURL, mediaBaseURL string, opts ...Option) (*Client, error) {
	userBase, err := parseBaseURL(userBaseURL, DefaultUserAPIBaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: user api base url: %v", shared.ErrInvalidConfig, err)
	}
	mediaBase, err := parseBaseURL(mediaBaseURL, DefaultMediaAPIBaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: media api base url: %v", shared.ErrInvalidConfig, err)
	}

	c := &Client{
		userBase:   userBase,
		mediaBase:  mediaBase,
		httpClient: http.DefaultClient,
		userAgent:  defaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewClientFromConfig builds a Client from the services section of the configuration.
func NewClientFromConfig(cfg shared.ServicesConfig, opts ...Option) (*Client, error) {
	opts = append([]Option{WithRateLimit(cfg.RateLimit)}, opts...)
	return NewClient(cfg.UserAPIBaseURL, cfg.MediaAPIBaseURL, opts...)
}

// UserBaseURL returns the normalised user service base URL.
func (c *Client) UserBaseURL() string { return c.userBase.String() }

// MediaBaseURL returns the normalised media service base URL.
func (c *Client) MediaBaseURL() string { return c.mediaBase.String() }

// MediaURL joins a storage path returned by the media service onto the media base URL.
func (c *Client) MediaURL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	base := strings.TrimSuffix(c.mediaBase.String(), "/")
	if path == "" {
		return base
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}

func (c *Client) baseFor(service string) (*url.URL, error) {
	switch strings.ToLower(strings.TrimSpace(service)) {
	case UserService, "":
		return c.userBase, nil
	case MediaService:
		return c.mediaBase, nil
	default:
		return nil, fmt.Errorf("%w: unknown service %q (want user or media)", shared.ErrInvalidArgument, service)
	}
}

func parseBaseURL(raw, fallback string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = fallback
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, err
	}
	if u.Host == "" {
		return nil, fmt.Errorf("missing host in %q", raw)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
