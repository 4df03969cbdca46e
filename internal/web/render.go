package web

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/desertthunder/dmsa/internal/server"
	"github.com/desertthunder/dmsa/internal/services"
	"github.com/desertthunder/dmsa/internal/session"
)

const flashCookie = "dmsa.web.flash"

// maxFlashLen keeps the escaped cookie well under the browser's 4 KB limit.
const maxFlashLen = 512

type pageData struct {
	Title         string
	Active        string
	Status        string
	Authenticated bool
	Nav           []navItem
	Data          any
}

// provider returns the request's session. [server.Sessions] always installs one; the
// fallback only matters for handlers exercised without the middleware.
func provider(r *http.Request) *session.Provider {
	if p, ok := session.FromContext(r.Context()); ok {
		return p
	}
	p, _ := session.NewProvider(nil)
	return p
}

func (a *App) render(w http.ResponseWriter, r *http.Request, name string, status int, data pageData) {
	tpl, ok := a.templates[name]
	if !ok {
		http.Error(w, "unknown page", http.StatusInternalServerError)
		return
	}

	data.Authenticated = provider(r).Authenticated()
	data.Nav = nav
	if data.Status == "" {
		data.Status = readFlash(w, r)
	}

	var buf bytes.Buffer
	if err := tpl.ExecuteTemplate(&buf, "base", data); err != nil {
		a.logger.Error("failed to render page", "page", name, "error", err)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// redirect answers a form post with 303 and carries status to the next page.
func redirect(w http.ResponseWriter, r *http.Request, to, status string) {
	if status != "" {
		setFlash(w, status)
	}
	http.Redirect(w, r, to, http.StatusSeeOther)
}

func setFlash(w http.ResponseWriter, msg string) {
	if len(msg) > maxFlashLen {
		msg = strings.ToValidUTF8(msg[:maxFlashLen], "") + "..."
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    url.QueryEscape(msg),
		Path:     "/",
		MaxAge:   60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// readFlash returns and clears the pending status message.
func readFlash(w http.ResponseWriter, r *http.Request) string {
	c, err := r.Cookie(flashCookie)
	if err != nil {
		return ""
	}
	http.SetCookie(w, &http.Cookie{Name: flashCookie, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})

	msg, err := url.QueryUnescape(c.Value)
	if err != nil {
		return ""
	}
	return msg
}

// expired handles a 401 from the services: the stored token is no longer accepted, so it is
// cleared and the visitor is sent to log in again. Reports whether it answered the request.
func (a *App) expired(w http.ResponseWriter, r *http.Request, err error) bool {
	if !services.IsUnauthorized(err) {
		return false
	}
	if clearErr := provider(r).ClearToken(); clearErr != nil {
		a.logger.Warn("failed to clear token", "error", clearErr)
	}
	next := r.URL.RequestURI()
	if r.Method != http.MethodGet {
		next = "/"
	}
	setFlash(w, "Session expired. Sign in again.")
	http.Redirect(w, r, server.LoginRedirect(LoginPath, next), http.StatusSeeOther)
	return true
}

func (a *App) healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
