package tasks

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/desertthunder/dmsa/internal/models"
	"github.com/desertthunder/dmsa/internal/services"
)

// Library is the signed-in user's track catalog and playlists.
type Library struct {
	Tracks    []models.Track
	Playlists []models.Playlist
}

// Directory is the discoverable users together with who the caller follows.
type Directory struct {
	Users     []models.DiscoverUser
	Follows   []models.FollowedUser
	Following map[string]bool
}

// IsFollowing reports whether the caller follows userID.
func (d *Directory) IsFollowing(userID string) bool {
	return d.Following[userID]
}

// Engine runs loads and uploads against the backend services.
type Engine struct {
	api services.API
}

// NewEngine creates an [Engine] over the given client.
func NewEngine(api services.API) *Engine {
	return &Engine{api: api}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *Engine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// LoadLibrary fetches tracks and playlists concurrently. The first failure cancels the other call
// and is returned; a partial library is never returned.
func (e *Engine) LoadLibrary(ctx context.Context, progress chan<- ProgressUpdate, token string) (*Library, error) {
	var lib Library
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		tracks, err := e.api.ListTracks(gctx, token)
		if err != nil {
			return err
		}
		lib.Tracks = tracks
		e.sendProgress(progress, loadedUpdate(LoadTracks, len(tracks), "tracks"))
		return nil
	})
	g.Go(func() error {
		playlists, err := e.api.ListPlaylists(gctx, token)
		if err != nil {
			return err
		}
		lib.Playlists = playlists
		e.sendProgress(progress, loadedUpdate(LoadPlaylists, len(playlists), "playlists"))
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &lib, nil
}

// LoadDirectory fetches discoverable users and the caller's follows concurrently and derives the following set.
func (e *Engine) LoadDirectory(ctx context.Context, progress chan<- ProgressUpdate, token string) (*Directory, error) {
	var dir Directory
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		users, err := e.api.DiscoverUsers(gctx, token)
		if err != nil {
			return err
		}
		dir.Users = users
		e.sendProgress(progress, loadedUpdate(LoadUsers, len(users), "users"))
		return nil
	})
	g.Go(func() error {
		follows, err := e.api.ListFollows(gctx, token)
		if err != nil {
			return err
		}
		dir.Follows = follows
		e.sendProgress(progress, loadedUpdate(LoadFollows, len(follows), "follows"))
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	dir.Following = models.FollowingSet(dir.Follows)
	return &dir, nil
}
