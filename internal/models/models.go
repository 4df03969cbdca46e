package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/desertthunder/dmsa/internal/shared"
)

// Limits enforced by the user service on playlist writes.
const (
	PlaylistNameMaxLength        = 120
	PlaylistDescriptionMaxLength = 600
	PlaylistMaxTracks            = 500
	TrackIDMaxLength             = 64
	TrackTitleMaxLength          = 200
	TrackArtistNameMaxLength     = 200
	TrackGenreMaxLength          = 80
)

// Follow statuses returned by the user service.
const (
	FollowStatusFollowed         = "FOLLOWED"
	FollowStatusAlreadyFollowing = "ALREADY_FOLLOWING"
)

// OAuth login statuses returned by the user service.
const (
	OAuthStatusNewUser            = "NEW_USER"
	OAuthStatusLinkedExistingUser = "LINKED_EXISTING_USER"
	OAuthStatusExistingLink       = "EXISTING_LINK"
)

// Session is the client's view of who is signed in.
// UserID is derived from the token and is empty when the token cannot be decoded.
type Session struct {
	Token  string `json:"token"`
	UserID string `json:"userId"`
}

// Authenticated reports whether a token is present.
func (s Session) Authenticated() bool {
	return s.Token != ""
}

type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

type Registration struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Status string `json:"status"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResult struct {
	AccessToken string `json:"accessToken"`
	TokenType   string `json:"tokenType"`
}

// OAuthLoginRequest carries a provider identity to the OAuth-baseline endpoint.
// The service links or creates a user from (Provider, ProviderUserID).
type OAuthLoginRequest struct {
	Provider       string `json:"provider"`
	ProviderUserID string `json:"providerUserId"`
	Email          string `json:"email"`
	DisplayName    string `json:"displayName"`
}

type OAuthLoginResult struct {
	AccessToken string `json:"accessToken"`
	TokenType   string `json:"tokenType"`
	UserID      string `json:"userId"`
	Status      string `json:"status"`
}

// OAuthProviders lists the identity providers offered on the login form.
var OAuthProviders = []string{"google", "github", "apple", "spotify"}

// DefaultDisplayName picks the name sent with an OAuth login: the given name,
// else the local part of the email, else "music-user".
func DefaultDisplayName(displayName, email string) string {
	if name := strings.TrimSpace(displayName); name != "" {
		return name
	}
	if local, _, _ := strings.Cut(strings.TrimSpace(email), "@"); local != "" {
		return local
	}
	return "music-user"
}

// Track is a media service track.
type Track struct {
	TrackID    string    `json:"trackId"`
	ArtistID   string    `json:"artistId"`
	ArtistName string    `json:"artistName"`
	Title      string    `json:"title"`
	Genre      string    `json:"genre"`
	FileURL    string    `json:"fileUrl"`
	CreatedAt  time.Time `json:"createdAt"`
}

// TrackUpload describes a multipart upload to the media service.
type TrackUpload struct {
	Title      string
	ArtistID   string
	ArtistName string
	Genre      string
	FileName   string
	Content    []byte
}

// Validate checks the fields the upload form requires before any request is sent.
func (u TrackUpload) Validate() error {
	if u.FileName == "" || u.Content == nil {
		return shared.ErrMissingFile
	}
	if strings.TrimSpace(u.Title) == "" {
		return fmt.Errorf("%w: title is required", shared.ErrInvalidInput)
	}
	return nil
}

type UploadPayload struct {
	StoragePath string `json:"storagePath"`
	TrackID     string `json:"trackId"`
}

// UploadResult is the event envelope the media service answers an upload with.
// Unknown envelope fields are kept in Extra.
type UploadResult struct {
	EventType    string         `json:"eventType,omitempty"`
	EventVersion string         `json:"eventVersion,omitempty"`
	OccurredAt   string         `json:"occurredAt,omitempty"`
	Payload      UploadPayload  `json:"payload"`
	Extra        map[string]any `json:"-"`
}

func (r *UploadResult) UnmarshalJSON(data []byte) error {
	type plain UploadResult
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}

	var all map[string]any
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for _, known := range []string{"eventType", "eventVersion", "occurredAt", "payload"} {
		delete(all, known)
	}
	if len(all) > 0 {
		p.Extra = all
	}

	*r = UploadResult(p)
	return nil
}

type PlaylistTrack struct {
	TrackID    string `json:"trackId"`
	Title      string `json:"title"`
	ArtistName string `json:"artistName"`
	Genre      string `json:"genre"`
	Position   int    `json:"position"`
}

type Playlist struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
	Tracks      []PlaylistTrack `json:"tracks"`
}

type PlaylistTrackInput struct {
	TrackID    string `json:"trackId"`
	Title      string `json:"title"`
	ArtistName string `json:"artistName"`
	Genre      string `json:"genre"`
}

// PlaylistInput is the body for playlist create and update.
type PlaylistInput struct {
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Tracks      []PlaylistTrackInput `json:"tracks"`
}

// Validate mirrors the user service's constraints so obvious mistakes fail without a round trip.
func (p PlaylistInput) Validate() error {
	name := strings.TrimSpace(p.Name)
	switch {
	case name == "":
		return fmt.Errorf("%w: name is required", shared.ErrInvalidInput)
	case utf8.RuneCountInString(name) > PlaylistNameMaxLength:
		return fmt.Errorf("%w: name must be at most %d characters", shared.ErrInvalidInput, PlaylistNameMaxLength)
	case utf8.RuneCountInString(p.Description) > PlaylistDescriptionMaxLength:
		return fmt.Errorf("%w: description must be at most %d characters", shared.ErrInvalidInput, PlaylistDescriptionMaxLength)
	case len(p.Tracks) > PlaylistMaxTracks:
		return fmt.Errorf("%w: at most %d tracks allowed", shared.ErrInvalidInput, PlaylistMaxTracks)
	}

	for i, t := range p.Tracks {
		if strings.TrimSpace(t.TrackID) == "" {
			return fmt.Errorf("%w: track %d is missing trackId", shared.ErrInvalidInput, i+1)
		}
		if err := checkLength(fmt.Sprintf("track %d trackId", i+1), t.TrackID, TrackIDMaxLength); err != nil {
			return err
		}
		if err := checkLength(fmt.Sprintf("track %d title", i+1), t.Title, TrackTitleMaxLength); err != nil {
			return err
		}
		if err := checkLength(fmt.Sprintf("track %d artistName", i+1), t.ArtistName, TrackArtistNameMaxLength); err != nil {
			return err
		}
		if err := checkLength(fmt.Sprintf("track %d genre", i+1), t.Genre, TrackGenreMaxLength); err != nil {
			return err
		}
	}
	return nil
}

func checkLength(field, value string, limit int) error {
	if utf8.RuneCountInString(value) > limit {
		return fmt.Errorf("%w: %s must be at most %d characters", shared.ErrInvalidInput, field, limit)
	}
	return nil
}

// PlaylistInputFromTracks builds a playlist body from selected tracks, preserving their order.
func PlaylistInputFromTracks(name, description string, tracks []Track) PlaylistInput {
	input := PlaylistInput{Name: name, Description: description, Tracks: make([]PlaylistTrackInput, 0, len(tracks))}
	for _, t := range tracks {
		input.Tracks = append(input.Tracks, PlaylistTrackInput{
			TrackID:    t.TrackID,
			Title:      t.Title,
			ArtistName: t.ArtistName,
			Genre:      t.Genre,
		})
	}
	return input
}

// SelectTracks returns the tracks whose ids are in ids, in library order.
// Unknown ids are ignored.
func SelectTracks(tracks []Track, ids []string) []Track {
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}

	selected := make([]Track, 0, len(ids))
	for _, t := range tracks {
		if _, ok := wanted[t.TrackID]; ok {
			selected = append(selected, t)
		}
	}
	return selected
}

type DiscoverUser struct {
	UserID      string    `json:"userId"`
	DisplayName string    `json:"displayName"`
	Email       string    `json:"email"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Label is the display name, or the email when no display name is set.
func (u DiscoverUser) Label() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Email
}

// FollowedUser is a followed-user entry. The service may send the id as targetUserId or artistId.
type FollowedUser struct {
	TargetUserID string    `json:"targetUserId"`
	ArtistID     string    `json:"artistId,omitempty"`
	FollowedAt   time.Time `json:"followedAt"`
}

// ID returns whichever id field the service populated.
func (f FollowedUser) ID() string {
	if f.TargetUserID != "" {
		return f.TargetUserID
	}
	return f.ArtistID
}

type FollowResult struct {
	TargetUserID string `json:"targetUserId"`
	ArtistID     string `json:"artistId,omitempty"`
	Status       string `json:"status"`
}

func (f FollowResult) ID() string {
	if f.TargetUserID != "" {
		return f.TargetUserID
	}
	return f.ArtistID
}

// FollowingSet derives the "is following" lookup from a follow list.
func FollowingSet(follows []FollowedUser) map[string]bool {
	set := make(map[string]bool, len(follows))
	for _, f := range follows {
		if id := f.ID(); id != "" {
			set[id] = true
		}
	}
	return set
}

// ServiceError is the JSON error body both services return.
type ServiceError struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details"`
	TraceID string   `json:"traceId"`
}
