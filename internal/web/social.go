package web

import (
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/dmsa/internal/models"
	"github.com/desertthunder/dmsa/internal/server"
	"github.com/desertthunder/dmsa/internal/shared"
)

type userRow struct {
	User      models.DiscoverUser
	Following bool
}

// following renders discoverable users. The follow state shown always comes from the
// follow list the service returned, never from the action just taken.
func (a *App) following(w http.ResponseWriter, r *http.Request) {
	dir, err := a.engine.LoadDirectory(r.Context(), nil, provider(r).Token())
	if err != nil {
		if a.expired(w, r, err) {
			return
		}
		a.render(w, r, "following", http.StatusOK, pageData{Title: "Following", Active: "/following", Status: err.Error()})
		return
	}

	rows := make([]userRow, 0, len(dir.Users))
	for _, u := range dir.Users {
		rows = append(rows, userRow{User: u, Following: dir.IsFollowing(u.UserID)})
	}

	status := readFlash(w, r)
	if status == "" {
		status = fmt.Sprintf("Loaded %d discoverable user(s).", len(dir.Users))
	}
	a.render(w, r, "following", http.StatusOK, pageData{Title: "Following", Active: "/following", Status: status, Data: rows})
}

func (a *App) follow(w http.ResponseWriter, r *http.Request) {
	res, err := a.api.Follow(r.Context(), provider(r).Token(), server.Param(r, "id"))
	if err != nil {
		if a.expired(w, r, err) {
			return
		}
		redirect(w, r, "/following", err.Error())
		return
	}

	status := "User followed."
	if res.Status == models.FollowStatusAlreadyFollowing {
		status = "Already following this user."
	}
	redirect(w, r, "/following", status)
}

func (a *App) unfollow(w http.ResponseWriter, r *http.Request) {
	if err := a.api.Unfollow(r.Context(), provider(r).Token(), server.Param(r, "id")); err != nil {
		if a.expired(w, r, err) {
			return
		}
		redirect(w, r, "/following", err.Error())
		return
	}
	redirect(w, r, "/following", "User unfollowed.")
}

type profileView struct {
	UserID       string
	Email        string
	DisplayName  string
	Expires      string
	TokenPreview string
}

const tokenPreviewLength = 60

func (a *App) profile(w http.ResponseWriter, r *http.Request) {
	p := provider(r)
	view := profileView{
		UserID:       p.UserID(),
		TokenPreview: shared.Preview(p.Token(), tokenPreviewLength, "Missing token"),
	}
	if view.UserID == "" {
		view.UserID = "Not found in token"
	}
	if claims, ok := p.Claims(); ok {
		view.Email = claims.Email
		view.DisplayName = claims.DisplayName
		if !claims.ExpiresAt.IsZero() {
			view.Expires = claims.ExpiresAt.UTC().Format(time.RFC1123)
			if claims.Expired(time.Now()) {
				view.Expires += " (expired)"
			}
		}
	}
	a.render(w, r, "profile", http.StatusOK, pageData{Title: "Profile", Active: "/profile", Data: view})
}
