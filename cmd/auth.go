package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/desertthunder/dmsa/internal/models"
	"github.com/desertthunder/dmsa/internal/server"
	"github.com/desertthunder/dmsa/internal/services"
	"github.com/desertthunder/dmsa/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

const oauthTimeout = 2 * time.Minute

// AuthRegister creates an account and signs in with it.
func (r *Runner) AuthRegister(ctx context.Context, cmd *cli.Command) error {
	email := strings.TrimSpace(cmd.String("email"))
	req := models.RegisterRequest{
		Email:       email,
		Password:    cmd.String("password"),
		DisplayName: models.DefaultDisplayName(cmd.String("display-name"), email),
	}

	r.logger.Info("registering user", "email", req.Email)

	reg, err := r.api.Register(ctx, req)
	if err != nil {
		return err
	}
	r.writePlain("✓ Registered %s (user %s)\n", reg.Email, reg.UserID)

	return r.login(ctx, req.Email, req.Password)
}

// AuthLogin signs in with email and password and stores the token.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	return r.login(ctx, strings.TrimSpace(cmd.String("email")), cmd.String("password"))
}

func (r *Runner) login(ctx context.Context, email, password string) error {
	res, err := r.api.Login(ctx, models.LoginRequest{Email: email, Password: password})
	if err != nil {
		return err
	}
	if err := r.storeToken(res.AccessToken); err != nil {
		return err
	}

	r.logger.Info("signed in", "user", r.session.UserID())
	return r.writePlain("✓ Signed in as %s\n", email)
}

// AuthOAuth signs in through the OAuth-baseline endpoint with an identity given on the command line.
func (r *Runner) AuthOAuth(ctx context.Context, cmd *cli.Command) error {
	provider := strings.ToLower(strings.TrimSpace(cmd.String("provider")))
	if !slices.Contains(models.OAuthProviders, provider) {
		return fmt.Errorf("%w: provider must be one of %s", shared.ErrInvalidArgument, strings.Join(models.OAuthProviders, ", "))
	}

	email := strings.TrimSpace(cmd.String("email"))
	return r.oauthLogin(ctx, models.OAuthLoginRequest{
		Provider:       provider,
		ProviderUserID: strings.TrimSpace(cmd.String("provider-user-id")),
		Email:          email,
		DisplayName:    models.DefaultDisplayName(cmd.String("display-name"), email),
	})
}

func (r *Runner) oauthLogin(ctx context.Context, req models.OAuthLoginRequest) error {
	res, err := r.api.OAuthLogin(ctx, req)
	if err != nil {
		return err
	}
	if err := r.storeToken(res.AccessToken); err != nil {
		return err
	}

	r.logger.Info("signed in with provider", "provider", req.Provider, "status", res.Status)
	r.writePlain("✓ Signed in with %s as %s\n", req.Provider, req.DisplayName)
	switch res.Status {
	case models.OAuthStatusNewUser:
		r.writePlain("  New account created (user %s)\n", res.UserID)
	case models.OAuthStatusLinkedExistingUser:
		r.writePlain("  Linked to existing account (user %s)\n", res.UserID)
	}
	return nil
}

// AuthConnect runs an authorization code flow with a real identity provider, then signs in with the
// identity it returns.
//
// Starts a local HTTP server, opens browser for user authorization, and exchanges auth code for tokens.
func (r *Runner) AuthConnect(ctx context.Context, cmd *cli.Command) error {
	provider, err := services.LookupOAuthProvider(cmd.StringArg("provider"))
	if err != nil {
		return err
	}

	oauthConfig, err := provider.Config(r.config.OAuth[provider.Name])
	if err != nil {
		return err
	}

	providerToken, err := r.doOAuth(ctx, oauthConfig, provider.Name)
	if err != nil {
		return err
	}

	identity, err := provider.FetchIdentity(ctx, oauthConfig.Client(ctx, providerToken))
	if err != nil {
		return err
	}
	return r.oauthLogin(ctx, identity)
}

// doOAuth executes the OAuth2 authorization flow with a local HTTP server
func (r *Runner) doOAuth(ctx context.Context, config *oauth2.Config, provider string) (*oauth2.Token, error) {
	redirect, err := url.Parse(config.RedirectURL)
	if err != nil || redirect.Host == "" {
		return nil, fmt.Errorf("%w: redirect_uri %q", shared.ErrInvalidConfig, config.RedirectURL)
	}

	state := shared.GenerateID()
	authURL := config.AuthCodeURL(state)
	oauthHandler := server.NewOAuthHandler(config, state, redirect.Path)
	router := server.NewBasicRouter()
	router.Handler(oauthHandler)

	httpServer := &http.Server{
		Addr:              redirect.Host,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting OAuth callback server for %s at %v", provider, redirect.Host)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("error shutting down server", "error", err)
		}
	}()

	r.writePlain("→ Opening browser for %s authorization...\n", provider)
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (2 minute timeout)...\n")

	timeout := time.NewTimer(oauthTimeout)
	defer timeout.Stop()

	var result server.OAuthResult

	select {
	case result = <-oauthHandler.Result():
	case err := <-serverErrors:
		return nil, fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return nil, fmt.Errorf("%w: authorization timed out after 2 minutes", shared.ErrTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if result.Error() != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAuthFailed, result.Error())
	}

	if result.Token == nil {
		return nil, fmt.Errorf("%w: no token received", shared.ErrAuthFailed)
	}

	return result.Token, nil
}

func (r *Runner) storeToken(token string) error {
	if token == "" {
		return fmt.Errorf("%w: service returned an empty token", shared.ErrAuthFailed)
	}
	if err := r.session.SetToken(token); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	return nil
}

// AuthLogout forgets the stored token.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	if err := r.session.ClearToken(); err != nil {
		return fmt.Errorf("failed to clear token: %w", err)
	}
	r.logger.Info("signed out")
	return r.writePlain("✓ Signed out\n")
}

type authStatus struct {
	Authenticated bool      `json:"authenticated"`
	UserID        string    `json:"userId,omitempty"`
	Email         string    `json:"email,omitempty"`
	DisplayName   string    `json:"displayName,omitempty"`
	ExpiresAt     time.Time `json:"expiresAt,omitzero"`
	Expired       bool      `json:"expired"`
	TokenPreview  string    `json:"tokenPreview"`
}

// AuthStatus shows the stored session as read from the token, without calling the services.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	status := authStatus{
		Authenticated: r.session.Authenticated(),
		UserID:        r.session.UserID(),
		TokenPreview:  shared.Preview(r.session.Token(), 60, "Missing token"),
	}
	if claims, ok := r.session.Claims(); ok {
		status.Email = claims.Email
		status.DisplayName = claims.DisplayName
		status.ExpiresAt = claims.ExpiresAt
		status.Expired = claims.Expired(timeNow())
	}

	if cmd.Bool("json") {
		return r.writeJSON(status, true)
	}

	if !status.Authenticated {
		r.writePlain("✗ Not signed in\n")
		return r.writePlain("Use email/password or OAuth baseline login: dmsa auth login | dmsa auth oauth\n")
	}

	userID := status.UserID
	if userID == "" {
		userID = "Not found in token"
	}

	r.writePlain("✓ Signed in\n")
	r.writePlain("User ID: %s\n", userID)
	if status.Email != "" {
		r.writePlain("Email: %s\n", status.Email)
	}
	if status.DisplayName != "" {
		r.writePlain("Display name: %s\n", status.DisplayName)
	}
	if !status.ExpiresAt.IsZero() {
		note := ""
		if status.Expired {
			note = " (expired)"
		}
		r.writePlain("Expires: %s%s\n", status.ExpiresAt.Local().Format("2006-01-02 15:04"), note)
	}
	return r.writePlain("Token: %s\n", status.TokenPreview)
}
