package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/desertthunder/dmsa/internal/models"
	"github.com/desertthunder/dmsa/internal/shared"
)

const (
	registerPath   = "/api/v1/public/users/register"
	loginPath      = "/api/v1/public/auth/login"
	oauthLoginPath = "/api/v1/public/auth/oauth/login"
	followsPath    = "/api/v1/users/me/follows"
	discoverPath   = "/api/v1/users/discover"
	playlistsPath  = "/api/v1/users/me/playlists"
)

// Register creates an account. The service answers 201 with the new user id.
func (c *Client) Register(ctx context.Context, req models.RegisterRequest) (*models.Registration, error) {
	var out models.Registration
	if err := c.doJSON(ctx, c.userBase, http.MethodPost, registerPath, "", false, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResult, error) {
	var out models.LoginResult
	if err := c.doJSON(ctx, c.userBase, http.MethodPost, loginPath, "", false, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// OAuthLogin links or creates a user for a provider identity and returns a token.
// Repeating the call with the same identity returns the same user id.
func (c *Client) OAuthLogin(ctx context.Context, req models.OAuthLoginRequest) (*models.OAuthLoginResult, error) {
	req.Provider = strings.ToLower(strings.TrimSpace(req.Provider))
	if req.Provider == "" || strings.TrimSpace(req.ProviderUserID) == "" {
		return nil, fmt.Errorf("%w: provider and providerUserId are required", shared.ErrInvalidInput)
	}

	var out models.OAuthLoginResult
	if err := c.doJSON(ctx, c.userBase, http.MethodPost, oauthLoginPath, "", false, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Follow follows targetUserID. Following twice is not an error: the status is ALREADY_FOLLOWING.
func (c *Client) Follow(ctx context.Context, token, targetUserID string) (*models.FollowResult, error) {
	if targetUserID == "" {
		return nil, fmt.Errorf("%w: target user id", shared.ErrMissingArgument)
	}

	var out models.FollowResult
	path := followsPath + "/" + segment(targetUserID)
	if err := c.doJSON(ctx, c.userBase, http.MethodPost, path, token, true, nil, &out); err != nil {
		return nil, err
	}
	if out.ID() == "" {
		out.TargetUserID = targetUserID
	}
	return &out, nil
}

// Unfollow removes a follow. The service answers 204.
func (c *Client) Unfollow(ctx context.Context, token, targetUserID string) error {
	if targetUserID == "" {
		return fmt.Errorf("%w: target user id", shared.ErrMissingArgument)
	}
	path := followsPath + "/" + segment(targetUserID)
	return c.doJSON(ctx, c.userBase, http.MethodDelete, path, token, true, nil, nil)
}

func (c *Client) ListFollows(ctx context.Context, token string) ([]models.FollowedUser, error) {
	var out []models.FollowedUser
	if err := c.doJSON(ctx, c.userBase, http.MethodGet, followsPath, token, true, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DiscoverUsers lists users the caller may follow. The caller is excluded by the service.
func (c *Client) DiscoverUsers(ctx context.Context, token string) ([]models.DiscoverUser, error) {
	var out []models.DiscoverUser
	if err := c.doJSON(ctx, c.userBase, http.MethodGet, discoverPath, token, true, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreatePlaylist validates input locally and then creates the playlist.
func (c *Client) CreatePlaylist(ctx context.Context, token string, input models.PlaylistInput) (*models.Playlist, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	input.Name = strings.TrimSpace(input.Name)

	var out models.Playlist
	if err := c.doJSON(ctx, c.userBase, http.MethodPost, playlistsPath, token, true, input, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListPlaylists(ctx context.Context, token string) ([]models.Playlist, error) {
	var out []models.Playlist
	if err := c.doJSON(ctx, c.userBase, http.MethodGet, playlistsPath, token, true, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetPlaylist(ctx context.Context, token, playlistID string) (*models.Playlist, error) {
	if playlistID == "" {
		return nil, fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}

	var out models.Playlist
	if err := c.doJSON(ctx, c.userBase, http.MethodGet, playlistsPath+"/"+segment(playlistID), token, true, nil, &out); err != nil {
		if StatusCode(err) == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s: %w", shared.ErrPlaylistNotFound, playlistID, err)
		}
		return nil, err
	}
	return &out, nil
}

// UpdatePlaylist replaces name, description and tracks of an existing playlist.
func (c *Client) UpdatePlaylist(ctx context.Context, token, playlistID string, input models.PlaylistInput) (*models.Playlist, error) {
	if playlistID == "" {
		return nil, fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}
	if err := input.Validate(); err != nil {
		return nil, err
	}
	input.Name = strings.TrimSpace(input.Name)

	var out models.Playlist
	if err := c.doJSON(ctx, c.userBase, http.MethodPut, playlistsPath+"/"+segment(playlistID), token, true, input, &out); err != nil {
		if StatusCode(err) == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s: %w", shared.ErrPlaylistNotFound, playlistID, err)
		}
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeletePlaylist(ctx context.Context, token, playlistID string) error {
	if playlistID == "" {
		return fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}

	err := c.doJSON(ctx, c.userBase, http.MethodDelete, playlistsPath+"/"+segment(playlistID), token, true, nil, nil)
	if StatusCode(err) == http.StatusNotFound {
		return fmt.Errorf("%w: %s: %w", shared.ErrPlaylistNotFound, playlistID, err)
	}
	return err
}
