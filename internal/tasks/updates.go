package tasks

import (
	"fmt"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	LoadTracks Phase = iota
	LoadPlaylists
	LoadUsers
	LoadFollows
	UploadTracks
)

func (p Phase) String() string {
	switch p {
	case LoadTracks:
		return "load_tracks"
	case LoadPlaylists:
		return "load_playlists"
	case LoadUsers:
		return "load_users"
	case LoadFollows:
		return "load_follows"
	case UploadTracks:
		return "upload_tracks"
	default:
		return ""
	}
}

func loadedUpdate(phase Phase, count int, noun string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   phase,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Loaded %d %s", count, noun),
		Data:    count,
	}
}

func uploadStartedUpdate(total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   UploadTracks,
		Step:    0,
		Total:   total,
		Message: fmt.Sprintf("Uploading %d files...", total),
	}
}

func uploadCompletedUpdate(step, total int, res UploadFileResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   UploadTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%s)", step, total, res.Title, res.TrackID()),
		Data:    res,
	}
}

func uploadFailedUpdate(step, total int, res UploadFileResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   UploadTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, res.Title, res.Error),
		Data:    res,
	}
}
