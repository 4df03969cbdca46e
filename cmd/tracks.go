package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/desertthunder/dmsa/internal/formatter"
	"github.com/desertthunder/dmsa/internal/models"
	"github.com/desertthunder/dmsa/internal/services"
	"github.com/desertthunder/dmsa/internal/shared"
	"github.com/desertthunder/dmsa/internal/tasks"
	"github.com/urfave/cli/v3"
)

// TracksList prints the media library.
func (r *Runner) TracksList(ctx context.Context, cmd *cli.Command) error {
	format, err := r.format(cmd)
	if err != nil {
		return err
	}
	token, err := r.token()
	if err != nil {
		return err
	}

	tracks, err := r.api.ListTracks(ctx, token)
	if err != nil {
		return r.checkAuth(err)
	}

	r.logger.Debug("listed tracks", "count", len(tracks))
	return formatter.WriteTracks(r.output, format, tracks)
}

// uploadTemplate collects the metadata flags shared by both upload commands.
// The artist id defaults to the signed-in user.
func (r *Runner) uploadTemplate(cmd *cli.Command) models.TrackUpload {
	artistID := strings.TrimSpace(cmd.String("artist-id"))
	if artistID == "" {
		artistID = r.session.UserID()
	}
	return models.TrackUpload{
		ArtistID:   artistID,
		ArtistName: strings.TrimSpace(cmd.String("artist-name")),
		Genre:      strings.TrimSpace(cmd.String("genre")),
	}
}

// TracksUpload uploads one audio file.
func (r *Runner) TracksUpload(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("file")
	if path == "" {
		return shared.ErrMissingFile
	}
	token, err := r.token()
	if err != nil {
		return err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	upload := r.uploadTemplate(cmd)
	upload.FileName = filepath.Base(path)
	upload.Content = content
	upload.Title = strings.TrimSpace(cmd.String("title"))
	if upload.Title == "" {
		upload.Title = tasks.TitleFromFileName(upload.FileName)
	}
	if err := upload.Validate(); err != nil {
		return err
	}

	r.logger.Info("uploading track", "file", path, "bytes", len(content))

	res, err := r.api.UploadTrack(ctx, token, upload)
	if err != nil {
		return r.checkAuth(err)
	}

	return r.writePlain("✓ Uploaded %q (track %s, stored at %s)\n", upload.Title, res.Payload.TrackID, res.Payload.StoragePath)
}

// TracksUploadDir uploads every audio file in a directory with a worker pool.
func (r *Runner) TracksUploadDir(ctx context.Context, cmd *cli.Command) error {
	dir := cmd.StringArg("dir")
	if dir == "" {
		return fmt.Errorf("%w: directory is required", shared.ErrMissingArgument)
	}
	token, err := r.token()
	if err != nil {
		return err
	}

	jobs, err := tasks.CollectUploads(dir, r.uploadTemplate(cmd))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	if len(jobs) == 0 {
		return fmt.Errorf("%w: no audio files in %s (%s)", shared.ErrInvalidInput, dir, strings.Join(tasks.AudioExtensions, ", "))
	}

	r.logger.Info("starting bulk upload", "dir", dir, "files", len(jobs))

	progressCh := make(chan tasks.ProgressUpdate, len(jobs)+1)
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for update := range progressCh {
			if update.Step == 0 {
				r.writePlain("📤 %s\n", update.Message)
			} else {
				r.writePlain("   %s\n", update.Message)
			}
		}
	}()

	result, err := r.engine.BulkUpload(ctx, progressCh, token, jobs, tasks.BulkUploadOpts{
		NumWorkers: cmd.Int("workers"),
		RateLimit:  cmd.Float("rate"),
	})
	close(progressCh)
	<-printed

	if err != nil {
		return err
	}

	r.writePlain("\n")
	r.writePlainHeader("Upload Complete!")
	r.writePlain("Uploaded: %d/%d\n", result.Succeeded, result.Total)

	if result.Failed > 0 {
		r.writePlain("\nFailed to upload %d files:\n", result.Failed)
		var unauthorized error
		for _, res := range result.Results {
			if res.Error != nil {
				r.writePlain("  - %s: %v\n", res.Path, res.Error)
				if unauthorized == nil && services.IsUnauthorized(res.Error) {
					unauthorized = r.checkAuth(res.Error)
				}
			}
		}
		if unauthorized != nil {
			return unauthorized
		}
	}

	return nil
}
