package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/oauth2"

	"github.com/desertthunder/dmsa/internal/models"
	"github.com/desertthunder/dmsa/internal/shared"
)

// OAuthProvider describes an identity provider usable for a real authorization-code login.
// The identity it returns feeds the OAuth-baseline endpoint of the user service.
type OAuthProvider struct {
	Name        string
	Endpoint    oauth2.Endpoint
	Scopes      []string
	UserInfoURL string
	// EmailsURL is queried when the profile omits the email (GitHub private emails).
	EmailsURL string
	parse     func(body []byte) (providerIdentity, error)
}

type providerIdentity struct {
	ID          string
	Email       string
	DisplayName string
}

// OAuthProviderRegistry lists the providers that support a browser login.
// Apple is offered on the login form but has no userinfo endpoint, so it is baseline-only.
var OAuthProviderRegistry = map[string]OAuthProvider{
	"github": {
		Name: "github",
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://github.com/login/oauth/authorize",
			TokenURL: "https://github.com/login/oauth/access_token",
		},
		Scopes:      []string{"read:user", "user:email"},
		UserInfoURL: "https://api.github.com/user",
		EmailsURL:   "https://api.github.com/user/emails",
		parse:       parseGitHubUser,
	},
	"google": {
		Name: "google",
		Endpoint: oauth2.Endpoint{
			AuthURL:   "https://accounts.google.com/o/oauth2/auth",
			TokenURL:  "https://oauth2.googleapis.com/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
		Scopes:      []string{"openid", "email", "profile"},
		UserInfoURL: "https://openidconnect.googleapis.com/v1/userinfo",
		parse:       parseGoogleUser,
	},
	"spotify": {
		Name: "spotify",
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://accounts.spotify.com/authorize",
			TokenURL: "https://accounts.spotify.com/api/token",
		},
		Scopes:      []string{"user-read-private", "user-read-email"},
		UserInfoURL: "https://api.spotify.com/v1/me",
		parse:       parseSpotifyUser,
	},
}

// LookupOAuthProvider returns the registry entry for name.
func LookupOAuthProvider(name string) (OAuthProvider, error) {
	p, ok := OAuthProviderRegistry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return OAuthProvider{}, fmt.Errorf("%w: provider %q does not support browser login", shared.ErrInvalidArgument, name)
	}
	return p, nil
}

// Config builds the oauth2 configuration from the credentials in the config file.
func (p OAuthProvider) Config(cfg shared.OAuthConfig) (*oauth2.Config, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("%w: oauth.%s client_id and client_secret", shared.ErrMissingConfig, p.Name)
	}

	redirect := cfg.RedirectURI
	if redirect == "" {
		redirect = "http://localhost:3000/callback"
	}

	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  redirect,
		Scopes:       p.Scopes,
		Endpoint:     p.Endpoint,
	}, nil
}

// FetchIdentity reads the signed-in user's profile with client, which must carry the provider token,
// and converts it to an OAuth-baseline login request.
func (p OAuthProvider) FetchIdentity(ctx context.Context, client *http.Client) (models.OAuthLoginRequest, error) {
	body, err := getBody(ctx, client, p.UserInfoURL)
	if err != nil {
		return models.OAuthLoginRequest{}, fmt.Errorf("%w: %s profile: %v", shared.ErrAuthFailed, p.Name, err)
	}

	id, err := p.parse(body)
	if err != nil {
		return models.OAuthLoginRequest{}, decodeError(body, err)
	}
	if id.ID == "" {
		return models.OAuthLoginRequest{}, fmt.Errorf("%w: %s profile has no user id", shared.ErrAuthFailed, p.Name)
	}

	if id.Email == "" && p.EmailsURL != "" {
		id.Email = primaryEmail(ctx, client, p.EmailsURL)
	}

	return models.OAuthLoginRequest{
		Provider:       p.Name,
		ProviderUserID: id.ID,
		Email:          id.Email,
		DisplayName:    models.DefaultDisplayName(id.DisplayName, id.Email),
	}, nil
}

func getBody(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newAPIError(http.MethodGet, url, resp.StatusCode, body)
	}
	return body, nil
}

// primaryEmail returns the verified primary address, or "" when it cannot be read.
func primaryEmail(ctx context.Context, client *http.Client, url string) string {
	body, err := getBody(ctx, client, url)
	if err != nil {
		return ""
	}

	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if json.Unmarshal(body, &emails) != nil {
		return ""
	}
	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email
		}
	}
	return ""
}

func parseGitHubUser(body []byte) (providerIdentity, error) {
	var u struct {
		ID    int64  `json:"id"`
		Login string `json:"login"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := json.Unmarshal(body, &u); err != nil {
		return providerIdentity{}, err
	}

	name := u.Name
	if name == "" {
		name = u.Login
	}
	var id string
	if u.ID != 0 {
		id = strconv.FormatInt(u.ID, 10)
	}
	return providerIdentity{ID: id, Email: u.Email, DisplayName: name}, nil
}

func parseGoogleUser(body []byte) (providerIdentity, error) {
	var u struct {
		Sub   string `json:"sub"`
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := json.Unmarshal(body, &u); err != nil {
		return providerIdentity{}, err
	}
	return providerIdentity{ID: u.Sub, Email: u.Email, DisplayName: u.Name}, nil
}

func parseSpotifyUser(body []byte) (providerIdentity, error) {
	var u struct {
		ID          string `json:"id"`
		Email       string `json:"email"`
		DisplayName string `json:"display_name"`
	}
	if err := json.Unmarshal(body, &u); err != nil {
		return providerIdentity{}, err
	}
	return providerIdentity{ID: u.ID, Email: u.Email, DisplayName: u.DisplayName}, nil
}
