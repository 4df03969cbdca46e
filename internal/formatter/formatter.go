// package formatter renders tracks, playlists and users as tables, CSV, Markdown or JSON for the CLI.
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/desertthunder/dmsa/internal/models"
	"github.com/desertthunder/dmsa/internal/shared"
)

// Format selects an output rendering.
type Format string

const (
	Table    Format = "table"
	JSON     Format = "json"
	CSV      Format = "csv"
	Markdown Format = "markdown"
)

// Formats lists the accepted values of --format.
var Formats = []Format{Table, JSON, CSV, Markdown}

// ParseFormat accepts a format name, case-insensitively. Empty means [Table].
func ParseFormat(s string) (Format, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Table, nil
	}
	if s == "md" {
		return Markdown, nil
	}
	for _, f := range Formats {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, s)
}

// dataset is a header row plus records, rendered by every format except JSON.
type dataset struct {
	headers []string
	rows    [][]string
}

func trackData(tracks []models.Track) dataset {
	d := dataset{headers: []string{"ID", "Title", "Artist", "Genre", "Uploaded"}}
	for _, t := range tracks {
		d.rows = append(d.rows, []string{t.TrackID, t.Title, t.ArtistName, t.Genre, FormatTime(t.CreatedAt)})
	}
	return d
}

func playlistData(playlists []models.Playlist) dataset {
	d := dataset{headers: []string{"ID", "Name", "Tracks", "Updated"}}
	for _, p := range playlists {
		d.rows = append(d.rows, []string{p.ID, p.Name, strconv.Itoa(len(p.Tracks)), FormatTime(p.UpdatedAt)})
	}
	return d
}

func playlistTrackData(tracks []models.PlaylistTrack) dataset {
	d := dataset{headers: []string{"#", "Title", "Artist", "Genre", "Track ID"}}
	for i, t := range tracks {
		pos := t.Position
		if pos == 0 {
			pos = i + 1
		}
		d.rows = append(d.rows, []string{strconv.Itoa(pos), t.Title, t.ArtistName, t.Genre, t.TrackID})
	}
	return d
}

func userData(users []models.DiscoverUser, following map[string]bool) dataset {
	d := dataset{headers: []string{"ID", "Name", "Email", "Following"}}
	for _, u := range users {
		d.rows = append(d.rows, []string{u.UserID, u.Label(), u.Email, yesNo(following[u.UserID])})
	}
	return d
}

func followData(follows []models.FollowedUser) dataset {
	d := dataset{headers: []string{"User ID", "Followed"}}
	for _, f := range follows {
		d.rows = append(d.rows, []string{f.ID(), FormatTime(f.FollowedAt)})
	}
	return d
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func (d dataset) table() string {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(d.headers...).
		Rows(d.rows...).
		String()
}

func (d dataset) csv() ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(d.headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, row := range d.rows {
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

func (d dataset) markdown() []byte {
	var buf bytes.Buffer
	buf.WriteString("| " + strings.Join(escapeCells(d.headers), " | ") + " |\n")
	buf.WriteString("|" + strings.Repeat(" --- |", len(d.headers)) + "\n")
	for _, row := range d.rows {
		buf.WriteString("| " + strings.Join(escapeCells(row), " | ") + " |\n")
	}
	return buf.Bytes()
}

func escapeCells(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = strings.ReplaceAll(c, "|", `\|`)
	}
	return out
}

func render(w io.Writer, f Format, d dataset, v any, empty string) error {
	var (
		data []byte
		err  error
	)

	switch f {
	case JSON:
		data, err = shared.MarshalJSON(v, true)
		if err == nil {
			data = append(data, '\n')
		}
	case CSV:
		data, err = d.csv()
	case Markdown:
		data = d.markdown()
	default:
		if len(d.rows) == 0 {
			data = []byte(empty + "\n")
		} else {
			data = []byte(d.table() + "\n")
		}
	}
	if err != nil {
		return err
	}

	_, err = w.Write(data)
	return err
}

// WriteTracks renders a track catalog.
func WriteTracks(w io.Writer, f Format, tracks []models.Track) error {
	return render(w, f, trackData(tracks), tracks, "No tracks yet.")
}

// WritePlaylists renders a playlist summary list.
func WritePlaylists(w io.Writer, f Format, playlists []models.Playlist) error {
	return render(w, f, playlistData(playlists), playlists, "No playlists yet.")
}

// WriteUsers renders discoverable users with their follow state.
func WriteUsers(w io.Writer, f Format, users []models.DiscoverUser, following map[string]bool) error {
	return render(w, f, userData(users, following), users, "No other users found.")
}

// WriteFollows renders the caller's follow list.
func WriteFollows(w io.Writer, f Format, follows []models.FollowedUser) error {
	return render(w, f, followData(follows), follows, "Not following anyone yet.")
}

// WritePlaylist renders one playlist with its tracks in position order.
//
// Table output starts with a short header block; Markdown gets a title and description.
func WritePlaylist(w io.Writer, f Format, p *models.Playlist) error {
	d := playlistTrackData(p.Tracks)

	switch f {
	case Table:
		var buf bytes.Buffer
		fmt.Fprintf(&buf, "%s (%s)\n", p.Name, p.ID)
		if p.Description != "" {
			fmt.Fprintf(&buf, "%s\n", p.Description)
		}
		fmt.Fprintf(&buf, "Tracks: %d  Updated: %s\n\n", len(p.Tracks), FormatTime(p.UpdatedAt))
		if _, err := w.Write(buf.Bytes()); err != nil {
			return err
		}
		return render(w, f, d, p, "This playlist is empty.")
	case Markdown:
		var buf bytes.Buffer
		fmt.Fprintf(&buf, "# %s\n\n", p.Name)
		if p.Description != "" {
			fmt.Fprintf(&buf, "**Description**: %s\n\n", p.Description)
		}
		fmt.Fprintf(&buf, "**Tracks**: %d\n\n", len(p.Tracks))
		if len(p.Tracks) > 0 {
			buf.Write(d.markdown())
		}
		_, err := w.Write(buf.Bytes())
		return err
	default:
		return render(w, f, d, p, "")
	}
}

// FormatTime renders t as "2006-01-02 15:04" in UTC, or "-" when unset.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04")
}

// RelativeTime renders how long ago t was, relative to now, in the largest whole unit.
func RelativeTime(now, t time.Time) string {
	if t.IsZero() {
		return "never"
	}

	d := now.Sub(t)
	if d < 0 {
		d = 0
	}

	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return plural(int(d/time.Minute), "minute") + " ago"
	case d < 24*time.Hour:
		return plural(int(d/time.Hour), "hour") + " ago"
	case d < 30*24*time.Hour:
		return plural(int(d/(24*time.Hour)), "day") + " ago"
	default:
		return FormatTime(t)
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
