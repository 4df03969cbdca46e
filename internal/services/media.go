package services

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/desertthunder/dmsa/internal/models"
)

const tracksPath = "/api/v1/media/tracks"

// UploadTrack sends a multipart form with title, artistId, artistName, genre and file.
// A missing file fails before any request is made.
func (c *Client) UploadTrack(ctx context.Context, token string, upload models.TrackUpload) (*models.UploadResult, error) {
	if err := upload.Validate(); err != nil {
		return nil, err
	}

	body, contentType, err := encodeTrackForm(upload)
	if err != nil {
		return nil, err
	}

	var out models.UploadResult
	r := request{
		base:        c.mediaBase,
		method:      http.MethodPost,
		path:        tracksPath,
		token:       token,
		auth:        true,
		body:        body,
		contentType: contentType,
	}
	if err := c.do(ctx, r, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListTracks returns every track the media service knows about.
func (c *Client) ListTracks(ctx context.Context, token string) ([]models.Track, error) {
	var out []models.Track
	if err := c.doJSON(ctx, c.mediaBase, http.MethodGet, tracksPath, token, true, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func encodeTrackForm(upload models.TrackUpload) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := []struct{ name, value string }{
		{"title", upload.Title},
		{"artistId", upload.ArtistID},
		{"artistName", upload.ArtistName},
		{"genre", upload.Genre},
	}
	for _, f := range fields {
		if err := w.WriteField(f.name, f.value); err != nil {
			return nil, "", fmt.Errorf("failed to write form field %s: %w", f.name, err)
		}
	}

	part, err := w.CreateFormFile("file", upload.FileName)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create file part: %w", err)
	}
	if _, err := part.Write(upload.Content); err != nil {
		return nil, "", fmt.Errorf("failed to write file part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finish form: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
