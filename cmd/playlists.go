package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/dmsa/internal/formatter"
	"github.com/desertthunder/dmsa/internal/models"
	"github.com/desertthunder/dmsa/internal/shared"
	"github.com/urfave/cli/v3"
)

// PlaylistsList prints the signed-in user's playlists.
func (r *Runner) PlaylistsList(ctx context.Context, cmd *cli.Command) error {
	format, err := r.format(cmd)
	if err != nil {
		return err
	}
	token, err := r.token()
	if err != nil {
		return err
	}

	playlists, err := r.api.ListPlaylists(ctx, token)
	if err != nil {
		return r.checkAuth(err)
	}
	return formatter.WritePlaylists(r.output, format, playlists)
}

// PlaylistsShow prints one playlist with its tracks.
func (r *Runner) PlaylistsShow(ctx context.Context, cmd *cli.Command) error {
	format, err := r.format(cmd)
	if err != nil {
		return err
	}
	id, err := playlistID(cmd)
	if err != nil {
		return err
	}
	token, err := r.token()
	if err != nil {
		return err
	}

	playlist, err := r.api.GetPlaylist(ctx, token, id)
	if err != nil {
		return r.checkAuth(err)
	}
	return formatter.WritePlaylist(r.output, format, playlist)
}

// PlaylistsCreate creates a playlist from track ids in the media library.
//
// The library is fetched first so each playlist entry carries the track's title, artist and genre.
func (r *Runner) PlaylistsCreate(ctx context.Context, cmd *cli.Command) error {
	token, err := r.token()
	if err != nil {
		return err
	}

	tracks, err := r.selectTracks(ctx, token, cmd.StringSlice("track"))
	if err != nil {
		return err
	}

	input := models.PlaylistInputFromTracks(strings.TrimSpace(cmd.String("name")), cmd.String("description"), tracks)
	if err := input.Validate(); err != nil {
		return err
	}

	r.logger.Info("creating playlist", "name", input.Name, "tracks", len(input.Tracks))

	playlist, err := r.api.CreatePlaylist(ctx, token, input)
	if err != nil {
		return r.checkAuth(err)
	}

	r.writePlain("✓ Created playlist %q with %d track(s)\n", playlist.Name, len(playlist.Tracks))
	return r.writePlain("ID: %s\n", playlist.ID)
}

// PlaylistsUpdate changes the fields given on the command line and keeps the rest.
func (r *Runner) PlaylistsUpdate(ctx context.Context, cmd *cli.Command) error {
	id, err := playlistID(cmd)
	if err != nil {
		return err
	}
	token, err := r.token()
	if err != nil {
		return err
	}

	current, err := r.api.GetPlaylist(ctx, token, id)
	if err != nil {
		return r.checkAuth(err)
	}

	input := models.PlaylistInput{
		Name:        current.Name,
		Description: current.Description,
		Tracks:      make([]models.PlaylistTrackInput, 0, len(current.Tracks)),
	}
	for _, t := range current.Tracks {
		input.Tracks = append(input.Tracks, models.PlaylistTrackInput{
			TrackID:    t.TrackID,
			Title:      t.Title,
			ArtistName: t.ArtistName,
			Genre:      t.Genre,
		})
	}

	if cmd.IsSet("name") {
		input.Name = strings.TrimSpace(cmd.String("name"))
	}
	if cmd.IsSet("description") {
		input.Description = cmd.String("description")
	}
	if cmd.IsSet("track") {
		tracks, err := r.selectTracks(ctx, token, cmd.StringSlice("track"))
		if err != nil {
			return err
		}
		input.Tracks = models.PlaylistInputFromTracks(input.Name, input.Description, tracks).Tracks
	}
	if err := input.Validate(); err != nil {
		return err
	}

	playlist, err := r.api.UpdatePlaylist(ctx, token, id, input)
	if err != nil {
		return r.checkAuth(err)
	}
	return r.writePlain("✓ Updated playlist %q (%d track(s))\n", playlist.Name, len(playlist.Tracks))
}

// PlaylistsDelete deletes a playlist.
func (r *Runner) PlaylistsDelete(ctx context.Context, cmd *cli.Command) error {
	id, err := playlistID(cmd)
	if err != nil {
		return err
	}
	token, err := r.token()
	if err != nil {
		return err
	}

	if err := r.api.DeletePlaylist(ctx, token, id); err != nil {
		return r.checkAuth(err)
	}
	r.logger.Info("deleted playlist", "id", id)
	return r.writePlain("✓ Playlist deleted\n")
}

// selectTracks resolves ids against the media library. An id the library does not know is an error.
func (r *Runner) selectTracks(ctx context.Context, token string, ids []string) ([]models.Track, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	library, err := r.api.ListTracks(ctx, token)
	if err != nil {
		return nil, r.checkAuth(err)
	}

	selected := models.SelectTracks(library, ids)
	if len(selected) != len(ids) {
		known := make(map[string]bool, len(selected))
		for _, t := range selected {
			known[t.TrackID] = true
		}
		for _, id := range ids {
			if !known[id] {
				return nil, fmt.Errorf("%w: %s", shared.ErrTrackNotFound, id)
			}
		}
	}
	return selected, nil
}

func playlistID(cmd *cli.Command) (string, error) {
	id := strings.TrimSpace(cmd.StringArg("id"))
	if id == "" {
		return "", fmt.Errorf("%w: playlist id is required", shared.ErrMissingArgument)
	}
	return id, nil
}
