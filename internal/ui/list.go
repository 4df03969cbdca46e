package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"

	"github.com/desertthunder/dmsa/internal/models"
)

var (
	_ list.Item = playlistItem{}
	_ list.Item = trackItem{}
	_ list.Item = userItem{}
)

// playlistItem wraps [models.Playlist] to implement [list.Item].
type playlistItem struct {
	playlist models.Playlist
}

func (i playlistItem) FilterValue() string { return i.playlist.Name }
func (i playlistItem) Title() string       { return i.playlist.Name }
func (i playlistItem) Description() string {
	desc := fmt.Sprintf("%d tracks", len(i.playlist.Tracks))
	if i.playlist.Description != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.playlist.Description)
	}
	return desc
}

// trackItem wraps [models.Track] to implement [list.Item].
type trackItem struct {
	track models.Track
}

func (i trackItem) FilterValue() string { return i.track.Title }
func (i trackItem) Title() string       { return i.track.Title }
func (i trackItem) Description() string {
	parts := []string{}
	for _, s := range []string{i.track.ArtistName, i.track.Genre} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return i.track.TrackID
	}
	return strings.Join(parts, " • ")
}

// userItem wraps [models.DiscoverUser] with its confirmed follow state.
type userItem struct {
	user      models.DiscoverUser
	following bool
}

func (i userItem) FilterValue() string { return i.user.Label() }
func (i userItem) Title() string {
	if i.following {
		return "★ " + i.user.Label()
	}
	return i.user.Label()
}
func (i userItem) Description() string {
	if i.following {
		return i.user.Email + " • following"
	}
	return i.user.Email
}

func trackItems(tracks []models.Track) []list.Item {
	items := make([]list.Item, len(tracks))
	for i, t := range tracks {
		items[i] = trackItem{track: t}
	}
	return items
}

func playlistItems(playlists []models.Playlist) []list.Item {
	items := make([]list.Item, len(playlists))
	for i, p := range playlists {
		items[i] = playlistItem{playlist: p}
	}
	return items
}

func userItems(users []models.DiscoverUser, following map[string]bool) []list.Item {
	items := make([]list.Item, len(users))
	for i, u := range users {
		items[i] = userItem{user: u, following: following[u.UserID]}
	}
	return items
}
