package tasks

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/desertthunder/dmsa/internal/models"
	"github.com/desertthunder/dmsa/internal/services"
	"github.com/desertthunder/dmsa/internal/shared"
	tu "github.com/desertthunder/dmsa/internal/testing"
)

func newEngine(t *testing.T) (*Engine, *tu.Backend) {
	t.Helper()
	backend := tu.NewBackend(t)
	client, err := services.NewClient(backend.User.URL, backend.Media.URL)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return NewEngine(client), backend
}

func drain(ch chan ProgressUpdate) []ProgressUpdate {
	var out []ProgressUpdate
	for {
		select {
		case u := <-ch:
			out = append(out, u)
		default:
			return out
		}
	}
}

func TestLoadLibrary(t *testing.T) {
	t.Run("loads tracks and playlists", func(t *testing.T) {
		engine, backend := newEngine(t)
		_, token := backend.SeedUser("ana@example.com", "secret123", "Ana")
		backend.SeedTrack("Song A", "artist-1", "Ana", "rock")
		backend.SeedTrack("Song B", "artist-1", "Ana", "pop")

		client, _ := services.NewClient(backend.User.URL, backend.Media.URL)
		if _, err := client.CreatePlaylist(context.Background(), token, models.PlaylistInput{Name: "Mix"}); err != nil {
			t.Fatalf("failed to seed playlist: %v", err)
		}

		progress := make(chan ProgressUpdate, 10)
		lib, err := engine.LoadLibrary(context.Background(), progress, token)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(lib.Tracks) != 2 {
			t.Errorf("expected 2 tracks, got %d", len(lib.Tracks))
		}
		if len(lib.Playlists) != 1 || lib.Playlists[0].Name != "Mix" {
			t.Errorf("unexpected playlists %+v", lib.Playlists)
		}
		if updates := drain(progress); len(updates) != 2 {
			t.Errorf("expected 2 progress updates, got %d", len(updates))
		}
	})

	t.Run("first failure wins", func(t *testing.T) {
		engine, backend := newEngine(t)
		_, token := backend.SeedUser("ana@example.com", "secret123", "Ana")
		backend.FailNext(http.MethodGet, "/api/v1/users/me/playlists", http.StatusInternalServerError)

		lib, err := engine.LoadLibrary(context.Background(), nil, token)
		if err == nil {
			t.Fatal("expected error")
		}
		if lib != nil {
			t.Error("expected no partial library")
		}
		if services.StatusCode(err) != http.StatusInternalServerError {
			t.Errorf("expected 500 status, got %v", err)
		}
	})

	t.Run("calls run concurrently", func(t *testing.T) {
		engine, backend := newEngine(t)
		_, token := backend.SeedUser("ana@example.com", "secret123", "Ana")
		backend.SetDelay(150 * time.Millisecond)

		start := time.Now()
		if _, err := engine.LoadLibrary(context.Background(), nil, token); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if elapsed := time.Since(start); elapsed >= 290*time.Millisecond {
			t.Errorf("expected parallel calls, took %s", elapsed)
		}
	})
}

func TestLoadDirectory(t *testing.T) {
	engine, backend := newEngine(t)
	_, token := backend.SeedUser("ana@example.com", "secret123", "Ana")
	bobID, _ := backend.SeedUser("bob@example.com", "secret123", "Bob")
	backend.SeedUser("cy@example.com", "secret123", "")

	client, _ := services.NewClient(backend.User.URL, backend.Media.URL)
	if _, err := client.Follow(context.Background(), token, bobID); err != nil {
		t.Fatalf("failed to follow: %v", err)
	}

	dir, err := engine.LoadDirectory(context.Background(), nil, token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dir.Users) != 2 {
		t.Errorf("expected 2 other users, got %d", len(dir.Users))
	}
	if !dir.IsFollowing(bobID) {
		t.Error("expected bob to be followed")
	}
	for _, u := range dir.Users {
		if u.UserID != bobID && dir.IsFollowing(u.UserID) {
			t.Errorf("unexpected follow of %s", u.Label())
		}
	}
}

func TestCollectUploads(t *testing.T) {
	dir := t.TempDir()
	tu.MustWriteFile(t, filepath.Join(dir, "02_second-song.mp3"), "b")
	tu.MustWriteFile(t, filepath.Join(dir, "01_first_song.FLAC"), "a")
	tu.MustWriteFile(t, filepath.Join(dir, "notes.txt"), "skip")
	if err := os.Mkdir(filepath.Join(dir, "nested.mp3"), 0o755); err != nil {
		t.Fatal(err)
	}

	jobs, err := CollectUploads(dir, models.TrackUpload{ArtistID: "artist-1", Genre: "rock"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0].Upload.Title != "01 first song" || jobs[1].Upload.Title != "02 second song" {
		t.Errorf("unexpected titles %q, %q", jobs[0].Upload.Title, jobs[1].Upload.Title)
	}
	if jobs[0].Upload.ArtistID != "artist-1" || string(jobs[0].Upload.Content) != "a" {
		t.Errorf("template or content not applied: %+v", jobs[0].Upload)
	}

	t.Run("missing directory", func(t *testing.T) {
		if _, err := CollectUploads(filepath.Join(dir, "nope"), models.TrackUpload{}); err == nil {
			t.Error("expected error")
		}
	})
}

func TestBulkUpload(t *testing.T) {
	job := func(title, name string) UploadJob {
		return UploadJob{Path: name, Upload: models.TrackUpload{Title: title, ArtistID: "a-1", FileName: name, Content: []byte("x")}}
	}

	t.Run("uploads all and keeps order", func(t *testing.T) {
		engine, backend := newEngine(t)
		_, token := backend.SeedUser("ana@example.com", "secret123", "Ana")

		jobs := []UploadJob{job("One", "1.mp3"), job("Two", "2.mp3"), job("Three", "3.mp3"), job("Four", "4.mp3")}
		progress := make(chan ProgressUpdate, 20)
		res, err := engine.BulkUpload(context.Background(), progress, token, jobs, BulkUploadOpts{NumWorkers: 2, RateLimit: 100})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Total != 4 || res.Succeeded != 4 || res.Failed != 0 {
			t.Errorf("unexpected summary %+v", res)
		}
		for i, r := range res.Results {
			if r.Title != jobs[i].Upload.Title {
				t.Errorf("result %d out of order: %s", i, r.Title)
			}
			if r.TrackID() == "" {
				t.Errorf("result %d has no track id", i)
			}
		}
		if updates := drain(progress); len(updates) != 5 {
			t.Errorf("expected start plus 4 updates, got %d", len(updates))
		}

		tracks, err := engine.api.ListTracks(context.Background(), token)
		if err != nil || len(tracks) != 4 {
			t.Errorf("expected 4 uploaded tracks, got %d (%v)", len(tracks), err)
		}
	})

	t.Run("invalid file fails without request", func(t *testing.T) {
		engine, backend := newEngine(t)
		_, token := backend.SeedUser("ana@example.com", "secret123", "Ana")
		before := backend.Requests()

		res, err := engine.BulkUpload(context.Background(), nil, token, []UploadJob{{Path: "empty", Upload: models.TrackUpload{Title: "x"}}}, BulkUploadOpts{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Failed != 1 || !errors.Is(res.Results[0].Error, shared.ErrMissingFile) {
			t.Errorf("expected missing file failure, got %+v", res.Results[0])
		}
		if backend.Requests() != before {
			t.Error("expected no request for invalid upload")
		}
	})

	t.Run("one failure does not stop the batch", func(t *testing.T) {
		engine, backend := newEngine(t)
		_, token := backend.SeedUser("ana@example.com", "secret123", "Ana")
		backend.FailNext(http.MethodPost, "/api/v1/media/tracks", http.StatusBadGateway)

		res, err := engine.BulkUpload(context.Background(), nil, token, []UploadJob{job("One", "1.mp3"), job("Two", "2.mp3")}, BulkUploadOpts{NumWorkers: 1, RateLimit: 100})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Succeeded != 1 || res.Failed != 1 {
			t.Errorf("expected one success and one failure, got %+v", res)
		}
	})

	t.Run("requires token", func(t *testing.T) {
		engine, _ := newEngine(t)
		if _, err := engine.BulkUpload(context.Background(), nil, "", nil, BulkUploadOpts{}); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		engine, backend := newEngine(t)
		_, token := backend.SeedUser("ana@example.com", "secret123", "Ana")
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		res, err := engine.BulkUpload(ctx, nil, token, []UploadJob{job("One", "1.mp3")}, BulkUploadOpts{})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if res.Failed != 1 {
			t.Errorf("expected the file to be reported failed, got %+v", res)
		}
	})
}

func TestPhaseString(t *testing.T) {
	tests := map[Phase]string{
		LoadTracks:    "load_tracks",
		LoadPlaylists: "load_playlists",
		LoadUsers:     "load_users",
		LoadFollows:   "load_follows",
		UploadTracks:  "upload_tracks",
		Phase(99):     "",
	}
	for phase, want := range tests {
		if got := phase.String(); got != want {
			t.Errorf("Phase(%d).String() = %q, want %q", phase, got, want)
		}
	}
}
