package testing

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// FakeIssuer is the issuer claim on tokens minted by [Backend].
const FakeIssuer = "dmsa-fake-user-service"

var fakeSigningKey = []byte("fake-backend-signing-key")

type fakeUser struct {
	ID          string
	Email       string
	Password    string
	DisplayName string
	CreatedAt   time.Time
}

type fakeTrack struct {
	TrackID    string    `json:"trackId"`
	ArtistID   string    `json:"artistId"`
	ArtistName string    `json:"artistName"`
	Title      string    `json:"title"`
	Genre      string    `json:"genre"`
	FileURL    string    `json:"fileUrl"`
	CreatedAt  time.Time `json:"createdAt"`
}

type fakePlaylistTrack struct {
	TrackID    string `json:"trackId"`
	Title      string `json:"title"`
	ArtistName string `json:"artistName"`
	Genre      string `json:"genre"`
	Position   int    `json:"position"`
}

type fakePlaylist struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	CreatedAt   time.Time           `json:"createdAt"`
	UpdatedAt   time.Time           `json:"updatedAt"`
	Tracks      []fakePlaylistTrack `json:"tracks"`
	owner       string
}

type fakeFollow struct {
	target     string
	followedAt time.Time
}

// Backend is an in-memory stand-in for the user and media services.
//
// It speaks the same paths, status codes and bodies as the real services and mints HS256
// tokens whose subject is the user id.
type Backend struct {
	User  *httptest.Server
	Media *httptest.Server

	mu        sync.Mutex
	users     map[string]*fakeUser // by email
	links     map[string]string    // provider:providerUserId -> user id
	follows   map[string][]fakeFollow
	tracks    []fakeTrack
	playlists []*fakePlaylist

	requests atomic.Int64
	// Delay holds every request for the given duration before it is handled.
	delay atomic.Int64
	// failures maps "METHOD /path" to a status the next matching request fails with.
	failures map[string]int
}

// NewBackend starts both fake services and closes them when the test ends.
func NewBackend(t *testing.T) *Backend {
	t.Helper()

	b := &Backend{
		users:    make(map[string]*fakeUser),
		links:    make(map[string]string),
		follows:  make(map[string][]fakeFollow),
		failures: make(map[string]int),
	}

	userMux := http.NewServeMux()
	userMux.HandleFunc("POST /api/v1/public/users/register", b.register)
	userMux.HandleFunc("POST /api/v1/public/auth/login", b.login)
	userMux.HandleFunc("POST /api/v1/public/auth/oauth/login", b.oauthLogin)
	userMux.HandleFunc("GET /api/v1/users/discover", b.authed(b.discover))
	userMux.HandleFunc("GET /api/v1/users/me/follows", b.authed(b.listFollows))
	userMux.HandleFunc("POST /api/v1/users/me/follows/{id}", b.authed(b.follow))
	userMux.HandleFunc("DELETE /api/v1/users/me/follows/{id}", b.authed(b.unfollow))
	userMux.HandleFunc("GET /api/v1/users/me/playlists", b.authed(b.listPlaylists))
	userMux.HandleFunc("POST /api/v1/users/me/playlists", b.authed(b.createPlaylist))
	userMux.HandleFunc("GET /api/v1/users/me/playlists/{id}", b.authed(b.getPlaylist))
	userMux.HandleFunc("PUT /api/v1/users/me/playlists/{id}", b.authed(b.updatePlaylist))
	userMux.HandleFunc("DELETE /api/v1/users/me/playlists/{id}", b.authed(b.deletePlaylist))

	mediaMux := http.NewServeMux()
	mediaMux.HandleFunc("GET /api/v1/media/tracks", b.authed(b.listTracks))
	mediaMux.HandleFunc("POST /api/v1/media/tracks", b.authed(b.uploadTrack))

	b.User = httptest.NewServer(b.wrap(userMux))
	b.Media = httptest.NewServer(b.wrap(mediaMux))
	t.Cleanup(func() {
		b.User.Close()
		b.Media.Close()
	})
	return b
}

// Requests reports how many requests reached either service.
func (b *Backend) Requests() int {
	return int(b.requests.Load())
}

// SetDelay makes every subsequent request wait d before it is handled.
func (b *Backend) SetDelay(d time.Duration) {
	b.delay.Store(int64(d))
}

// FailNext makes the next request matching method and path answer with status.
func (b *Backend) FailNext(method, path string, status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[method+" "+path] = status
}

// SeedUser registers a user directly and returns a token for it.
func (b *Backend) SeedUser(email, password, displayName string) (userID, token string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	u := b.addUser(email, password, displayName)
	return u.ID, b.mint(u)
}

// SeedTrack adds a track to the media library.
func (b *Backend) SeedTrack(title, artistID, artistName, genre string) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.NewString()
	b.tracks = append(b.tracks, fakeTrack{
		TrackID:    id,
		ArtistID:   artistID,
		ArtistName: artistName,
		Title:      title,
		Genre:      genre,
		FileURL:    "/local-media/tracks/" + id + ".mp3",
		CreatedAt:  time.Now().UTC(),
	})
	return id
}

// Token mints a token for an arbitrary subject, for tests that do not need a registered user.
func Token(subject string) string {
	claims := jwt.MapClaims{
		"iss":         FakeIssuer,
		"sub":         subject,
		"email":       subject + "@example.com",
		"displayName": subject,
		"scope":       []string{"USER"},
		"iat":         time.Now().Unix(),
		"exp":         time.Now().Add(time.Hour).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(fakeSigningKey)
	if err != nil {
		panic(err)
	}
	return signed
}

func (b *Backend) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.requests.Add(1)
		if d := time.Duration(b.delay.Load()); d > 0 {
			select {
			case <-time.After(d):
			case <-r.Context().Done():
				return
			}
		}

		key := r.Method + " " + r.URL.Path
		b.mu.Lock()
		status, fail := b.failures[key]
		delete(b.failures, key)
		b.mu.Unlock()
		if fail {
			writeError(w, status, http.StatusText(status), "injected failure")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) addUser(email, password, displayName string) *fakeUser {
	u := &fakeUser{
		ID:          uuid.NewString(),
		Email:       strings.ToLower(email),
		Password:    password,
		DisplayName: displayName,
		CreatedAt:   time.Now().UTC(),
	}
	b.users[u.Email] = u
	return u
}

func (b *Backend) mint(u *fakeUser) string {
	claims := jwt.MapClaims{
		"iss":         FakeIssuer,
		"sub":         u.ID,
		"email":       u.Email,
		"displayName": u.DisplayName,
		"scope":       []string{"USER"},
		"iat":         time.Now().Unix(),
		"exp":         time.Now().Add(time.Hour).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(fakeSigningKey)
	if err != nil {
		panic(err)
	}
	return signed
}

type authedHandler func(w http.ResponseWriter, r *http.Request, userID string)

func (b *Backend) authed(h authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scheme, raw, ok := strings.Cut(r.Header.Get("Authorization"), " ")
		if !ok || !strings.EqualFold(scheme, "bearer") {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
			return
		}

		token, err := jwt.Parse(raw, func(*jwt.Token) (any, error) { return fakeSigningKey, nil },
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid token")
			return
		}
		sub, err := token.Claims.GetSubject()
		if err != nil || sub == "" {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token subject")
			return
		}
		h(w, r, sub)
	}
}

func (b *Backend) register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email       string `json:"email"`
		Password    string `json:"password"`
		DisplayName string `json:"displayName"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" || req.DisplayName == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", "email, password and displayName are required")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.users[strings.ToLower(req.Email)]; exists {
		writeError(w, http.StatusConflict, "CONFLICT", "Email already registered")
		return
	}
	u := b.addUser(req.Email, req.Password, req.DisplayName)
	writeJSON(w, http.StatusCreated, map[string]string{"userId": u.ID, "email": u.Email, "status": "REGISTERED"})
}

func (b *Backend) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !readJSON(w, r, &req) {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	u, ok := b.users[strings.ToLower(req.Email)]
	if !ok || u.Password != req.Password {
		writeError(w, http.StatusUnauthorized, "AUTHENTICATION_FAILED", "Invalid credentials")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"accessToken": b.mint(u), "tokenType": "Bearer"})
}

func (b *Backend) oauthLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Provider       string `json:"provider"`
		ProviderUserID string `json:"providerUserId"`
		Email          string `json:"email"`
		DisplayName    string `json:"displayName"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	switch strings.ToLower(req.Provider) {
	case "google", "github", "apple", "spotify":
	default:
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "Unsupported OAuth provider")
		return
	}
	if req.ProviderUserID == "" || req.Email == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", "providerUserId and email are required")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	key := strings.ToLower(req.Provider) + ":" + req.ProviderUserID
	status := "EXISTING_LINK"
	var user *fakeUser
	if id, linked := b.links[key]; linked {
		for _, u := range b.users {
			if u.ID == id {
				user = u
			}
		}
	} else if u, ok := b.users[strings.ToLower(req.Email)]; ok {
		user, status = u, "LINKED_EXISTING_USER"
		b.links[key] = u.ID
	} else {
		user, status = b.addUser(req.Email, "", req.DisplayName), "NEW_USER"
		b.links[key] = user.ID
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"accessToken": b.mint(user),
		"tokenType":   "Bearer",
		"userId":      user.ID,
		"status":      status,
	})
}

func (b *Backend) discover(w http.ResponseWriter, _ *http.Request, userID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := []map[string]any{}
	for _, u := range b.users {
		if u.ID == userID {
			continue
		}
		out = append(out, map[string]any{
			"userId":      u.ID,
			"displayName": u.DisplayName,
			"email":       u.Email,
			"createdAt":   u.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) listFollows(w http.ResponseWriter, _ *http.Request, userID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := []map[string]any{}
	for _, f := range b.follows[userID] {
		out = append(out, map[string]any{"artistId": f.target, "followedAt": f.followedAt})
	}
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) follow(w http.ResponseWriter, r *http.Request, userID string) {
	target := r.PathValue("id")

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, f := range b.follows[userID] {
		if f.target == target {
			writeJSON(w, http.StatusOK, map[string]string{"artistId": target, "status": "ALREADY_FOLLOWING"})
			return
		}
	}
	b.follows[userID] = append(b.follows[userID], fakeFollow{target: target, followedAt: time.Now().UTC()})
	writeJSON(w, http.StatusCreated, map[string]string{"artistId": target, "status": "FOLLOWED"})
}

func (b *Backend) unfollow(w http.ResponseWriter, r *http.Request, userID string) {
	target := r.PathValue("id")

	b.mu.Lock()
	defer b.mu.Unlock()

	kept := b.follows[userID][:0]
	for _, f := range b.follows[userID] {
		if f.target != target {
			kept = append(kept, f)
		}
	}
	b.follows[userID] = kept
	w.WriteHeader(http.StatusNoContent)
}

type playlistBody struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Tracks      []struct {
		TrackID    string `json:"trackId"`
		Title      string `json:"title"`
		ArtistName string `json:"artistName"`
		Genre      string `json:"genre"`
	} `json:"tracks"`
}

func (p playlistBody) apply(pl *fakePlaylist) {
	pl.Name = p.Name
	pl.Description = p.Description
	pl.UpdatedAt = time.Now().UTC()
	pl.Tracks = []fakePlaylistTrack{}
	for i, t := range p.Tracks {
		pl.Tracks = append(pl.Tracks, fakePlaylistTrack{
			TrackID:    t.TrackID,
			Title:      t.Title,
			ArtistName: t.ArtistName,
			Genre:      t.Genre,
			Position:   i + 1,
		})
	}
}

func (b *Backend) listPlaylists(w http.ResponseWriter, _ *http.Request, userID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := []*fakePlaylist{}
	for _, p := range b.playlists {
		if p.owner == userID {
			out = append(out, p)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) createPlaylist(w http.ResponseWriter, r *http.Request, userID string) {
	var req playlistBody
	if !readJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", "name: must not be blank")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	p := &fakePlaylist{ID: uuid.NewString(), CreatedAt: time.Now().UTC(), owner: userID}
	req.apply(p)
	b.playlists = append(b.playlists, p)
	writeJSON(w, http.StatusCreated, p)
}

func (b *Backend) findPlaylist(userID, id string) (int, *fakePlaylist) {
	for i, p := range b.playlists {
		if p.ID == id && p.owner == userID {
			return i, p
		}
	}
	return -1, nil
}

func (b *Backend) getPlaylist(w http.ResponseWriter, r *http.Request, userID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, p := b.findPlaylist(userID, r.PathValue("id")); p != nil {
		writeJSON(w, http.StatusOK, p)
		return
	}
	writeError(w, http.StatusNotFound, "NOT_FOUND", "Playlist not found")
}

func (b *Backend) updatePlaylist(w http.ResponseWriter, r *http.Request, userID string) {
	var req playlistBody
	if !readJSON(w, r, &req) {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	_, p := b.findPlaylist(userID, r.PathValue("id"))
	if p == nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Playlist not found")
		return
	}
	req.apply(p)
	writeJSON(w, http.StatusOK, p)
}

func (b *Backend) deletePlaylist(w http.ResponseWriter, r *http.Request, userID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	i, p := b.findPlaylist(userID, r.PathValue("id"))
	if p == nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Playlist not found")
		return
	}
	b.playlists = append(b.playlists[:i], b.playlists[i+1:]...)
	w.WriteHeader(http.StatusNoContent)
}

func (b *Backend) listTracks(w http.ResponseWriter, _ *http.Request, _ string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := append([]fakeTrack{}, b.tracks...)
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) uploadTrack(w http.ResponseWriter, r *http.Request, _ string) {
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", "file: is required")
		return
	}
	defer file.Close()
	if _, err := io.Copy(io.Discard, file); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.NewString()
	storagePath := fmt.Sprintf("/local-media/tracks/%s/%s", id, header.Filename)
	b.tracks = append(b.tracks, fakeTrack{
		TrackID:    id,
		ArtistID:   r.FormValue("artistId"),
		ArtistName: r.FormValue("artistName"),
		Title:      r.FormValue("title"),
		Genre:      r.FormValue("genre"),
		FileURL:    storagePath,
		CreatedAt:  time.Now().UTC(),
	})

	writeJSON(w, http.StatusAccepted, map[string]any{
		"eventType":    "TrackUploaded",
		"eventVersion": "1",
		"occurredAt":   time.Now().UTC(),
		"payload":      map[string]string{"storagePath": storagePath, "trackId": id},
	})
}

func readJSON(w http.ResponseWriter, r *http.Request, dest any) bool {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "Malformed JSON request")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string, details ...string) {
	if details == nil {
		details = []string{}
	}
	writeJSON(w, status, map[string]any{
		"code":    code,
		"message": message,
		"details": details,
		"traceId": uuid.NewString(),
	})
}
