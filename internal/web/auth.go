package web

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/desertthunder/dmsa/internal/models"
	"github.com/desertthunder/dmsa/internal/server"
)

const loginHint = "Use email/password or OAuth baseline login."

type loginView struct {
	Register    bool
	Next        string
	Email       string
	DisplayName string
	Provider    string
	Providers   []string
	LoginURL    string
	RegisterURL string
}

func newLoginView(r *http.Request, register bool) loginView {
	next := server.SafeRedirect(r.FormValue("next"))
	modeURL := func(mode string) string {
		q := url.Values{}
		if mode != "" {
			q.Set("mode", mode)
		}
		if next != "/" {
			q.Set("next", next)
		}
		if len(q) == 0 {
			return LoginPath
		}
		return LoginPath + "?" + q.Encode()
	}

	provider := r.FormValue("provider")
	if provider == "" {
		provider = models.OAuthProviders[0]
	}
	return loginView{
		Register:    register,
		Next:        next,
		Email:       strings.TrimSpace(r.FormValue("email")),
		DisplayName: strings.TrimSpace(r.FormValue("displayName")),
		Provider:    provider,
		Providers:   models.OAuthProviders,
		LoginURL:    modeURL(""),
		RegisterURL: modeURL("register"),
	}
}

func (a *App) renderLogin(w http.ResponseWriter, r *http.Request, register bool, status string) {
	a.render(w, r, "login", http.StatusOK, pageData{
		Title:  "Sign in",
		Status: status,
		Data:   newLoginView(r, register),
	})
}

func (a *App) loginPage(w http.ResponseWriter, r *http.Request) {
	status := readFlash(w, r)
	if status == "" {
		status = loginHint
	}
	a.renderLogin(w, r, r.URL.Query().Get("mode") == "register", status)
}

// signIn stores the token and sends the visitor to the remembered location.
func (a *App) signIn(w http.ResponseWriter, r *http.Request, token string) {
	if token == "" {
		a.renderLogin(w, r, false, "Login returned no access token.")
		return
	}
	if err := provider(r).SetToken(token); err != nil {
		a.renderLogin(w, r, false, err.Error())
		return
	}
	http.Redirect(w, r, server.SafeRedirect(r.FormValue("next")), http.StatusSeeOther)
}

func (a *App) login(w http.ResponseWriter, r *http.Request) {
	res, err := a.api.Login(r.Context(), models.LoginRequest{
		Email:    strings.TrimSpace(r.FormValue("email")),
		Password: r.FormValue("password"),
	})
	if err != nil {
		a.renderLogin(w, r, false, err.Error())
		return
	}
	a.signIn(w, r, res.AccessToken)
}

// register creates the account and then logs in with the same credentials.
func (a *App) register(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")

	_, err := a.api.Register(r.Context(), models.RegisterRequest{
		Email:       email,
		Password:    password,
		DisplayName: models.DefaultDisplayName(r.FormValue("displayName"), email),
	})
	if err != nil {
		a.renderLogin(w, r, true, err.Error())
		return
	}

	res, err := a.api.Login(r.Context(), models.LoginRequest{Email: email, Password: password})
	if err != nil {
		a.renderLogin(w, r, false, err.Error())
		return
	}
	a.signIn(w, r, res.AccessToken)
}

func (a *App) oauthLogin(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.FormValue("email"))
	res, err := a.api.OAuthLogin(r.Context(), models.OAuthLoginRequest{
		Provider:       r.FormValue("provider"),
		ProviderUserID: strings.TrimSpace(r.FormValue("providerUserId")),
		Email:          email,
		DisplayName:    models.DefaultDisplayName(strings.TrimSpace(r.FormValue("displayName")), email),
	})
	if err != nil {
		a.renderLogin(w, r, false, err.Error())
		return
	}
	a.signIn(w, r, res.AccessToken)
}

func (a *App) logout(w http.ResponseWriter, r *http.Request) {
	if err := provider(r).ClearToken(); err != nil {
		a.logger.Warn("failed to clear token", "error", err)
	}
	redirect(w, r, LoginPath, "Signed out.")
}
