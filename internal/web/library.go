package web

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/desertthunder/dmsa/internal/models"
	"github.com/desertthunder/dmsa/internal/server"
	"github.com/desertthunder/dmsa/internal/shared"
)

type card struct {
	Title    string
	Subtitle string
}

var homeCards = []card{
	{"For You", "Recommendations will appear here."},
	{"Trending", "Popular tracks across the service."},
	{"Recently Played", "Your latest listening."},
}

func (a *App) home(w http.ResponseWriter, r *http.Request) {
	a.render(w, r, "home", http.StatusOK, pageData{Title: "Home", Active: "/", Data: homeCards})
}

type playlistsView struct {
	Tracks      []models.Track
	Playlists   []models.Playlist
	Name        string
	Description string
}

func (a *App) playlists(w http.ResponseWriter, r *http.Request) {
	token := provider(r).Token()
	lib, err := a.engine.LoadLibrary(r.Context(), nil, token)
	if err != nil {
		if a.expired(w, r, err) {
			return
		}
		a.render(w, r, "playlists", http.StatusOK, pageData{Title: "Playlists", Active: "/playlists", Status: err.Error(), Data: playlistsView{}})
		return
	}

	status := readFlash(w, r)
	if status == "" {
		status = fmt.Sprintf("Loaded %d track(s) and %d playlist(s).", len(lib.Tracks), len(lib.Playlists))
	}
	a.render(w, r, "playlists", http.StatusOK, pageData{
		Title:  "Playlists",
		Active: "/playlists",
		Status: status,
		Data:   playlistsView{Tracks: lib.Tracks, Playlists: lib.Playlists},
	})
}

// createPlaylist builds the playlist from the selected track ids and renders it at the top of the list.
func (a *App) createPlaylist(w http.ResponseWriter, r *http.Request) {
	token := provider(r).Token()
	view := playlistsView{
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
	}
	page := pageData{Title: "Playlists", Active: "/playlists"}

	lib, err := a.engine.LoadLibrary(r.Context(), nil, token)
	if err != nil {
		if a.expired(w, r, err) {
			return
		}
		page.Status, page.Data = err.Error(), view
		a.render(w, r, "playlists", http.StatusOK, page)
		return
	}
	view.Tracks, view.Playlists = lib.Tracks, lib.Playlists

	selected := models.SelectTracks(lib.Tracks, r.PostForm["track"])
	input := models.PlaylistInputFromTracks(view.Name, view.Description, selected)

	created, err := a.api.CreatePlaylist(r.Context(), token, input)
	if err != nil {
		if a.expired(w, r, err) {
			return
		}
		page.Status, page.Data = err.Error(), view
		a.render(w, r, "playlists", http.StatusOK, page)
		return
	}

	view.Playlists = append([]models.Playlist{*created}, view.Playlists...)
	view.Name, view.Description = "", ""
	page.Status = fmt.Sprintf("Created playlist %q with %d track(s).", created.Name, len(created.Tracks))
	page.Data = view
	a.render(w, r, "playlists", http.StatusOK, page)
}

func (a *App) playlist(w http.ResponseWriter, r *http.Request) {
	pl, err := a.api.GetPlaylist(r.Context(), provider(r).Token(), server.Param(r, "id"))
	if err != nil {
		if a.expired(w, r, err) {
			return
		}
		redirect(w, r, "/playlists", err.Error())
		return
	}
	a.render(w, r, "playlist", http.StatusOK, pageData{Title: pl.Name, Active: "/playlists", Data: pl})
}

func (a *App) deletePlaylist(w http.ResponseWriter, r *http.Request) {
	if err := a.api.DeletePlaylist(r.Context(), provider(r).Token(), server.Param(r, "id")); err != nil {
		if a.expired(w, r, err) {
			return
		}
		redirect(w, r, "/playlists", err.Error())
		return
	}
	redirect(w, r, "/playlists", "Playlist deleted.")
}

func (a *App) tracks(w http.ResponseWriter, r *http.Request) {
	tracks, err := a.api.ListTracks(r.Context(), provider(r).Token())
	if err != nil {
		if a.expired(w, r, err) {
			return
		}
		a.render(w, r, "tracks", http.StatusOK, pageData{Title: "Tracks", Active: "/tracks", Status: err.Error()})
		return
	}

	status := readFlash(w, r)
	if status == "" {
		status = fmt.Sprintf("Loaded %d track(s).", len(tracks))
	}
	a.render(w, r, "tracks", http.StatusOK, pageData{Title: "Tracks", Active: "/tracks", Status: status, Data: tracks})
}

type uploadView struct {
	Title      string
	Genre      string
	ArtistName string
	ArtistID   string
}

func (a *App) uploadPage(w http.ResponseWriter, r *http.Request) {
	a.render(w, r, "upload", http.StatusOK, pageData{
		Title:  "Upload Track",
		Active: "/tracks",
		Data:   uploadView{ArtistID: provider(r).UserID()},
	})
}

const maxUploadMemory = 32 << 20

// maxUploadBytes caps the whole upload request body.
var maxUploadBytes int64 = 100 << 20

// upload checks for a file before calling the media service and returns to the track list on success.
func (a *App) upload(w http.ResponseWriter, r *http.Request) {
	p := provider(r)
	fail := func(view uploadView, msg string) {
		a.render(w, r, "upload", http.StatusOK, pageData{Title: "Upload Track", Active: "/tracks", Status: msg, Data: view})
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			fail(uploadView{ArtistID: p.UserID()}, fmt.Sprintf("File is too large (limit %d MB).", maxUploadBytes>>20))
			return
		}
		fail(uploadView{ArtistID: p.UserID()}, err.Error())
		return
	}

	view := uploadView{
		Title:      strings.TrimSpace(r.FormValue("title")),
		Genre:      strings.TrimSpace(r.FormValue("genre")),
		ArtistName: strings.TrimSpace(r.FormValue("artistName")),
		ArtistID:   strings.TrimSpace(r.FormValue("artistId")),
	}
	if view.ArtistID == "" {
		view.ArtistID = p.UserID()
	}

	upload := models.TrackUpload{
		Title:      view.Title,
		ArtistID:   view.ArtistID,
		ArtistName: view.ArtistName,
		Genre:      view.Genre,
	}
	if file, header, err := r.FormFile("file"); err == nil {
		content, readErr := io.ReadAll(file)
		file.Close()
		if readErr != nil {
			fail(view, readErr.Error())
			return
		}
		upload.FileName, upload.Content = header.Filename, content
	}

	if err := upload.Validate(); err != nil {
		if errors.Is(err, shared.ErrMissingFile) {
			fail(view, "Select a file first.")
			return
		}
		fail(view, err.Error())
		return
	}

	res, err := a.api.UploadTrack(r.Context(), p.Token(), upload)
	if err != nil {
		if a.expired(w, r, err) {
			return
		}
		fail(view, err.Error())
		return
	}
	redirect(w, r, "/tracks", fmt.Sprintf("Uploaded %q (track %s, stored at %s).", upload.Title, res.Payload.TrackID, res.Payload.StoragePath))
}
