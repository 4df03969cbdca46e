package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/desertthunder/dmsa/internal/models"
	"github.com/desertthunder/dmsa/internal/services"
	"github.com/desertthunder/dmsa/internal/session"
	"github.com/desertthunder/dmsa/internal/shared"
	"github.com/desertthunder/dmsa/internal/tasks"
)

// Tab is one page of the TUI.
type Tab int

const (
	TracksTab Tab = iota
	PlaylistsTab
	FollowingTab
	ProfileTab
)

var tabNames = []string{"Tracks", "Playlists", "Following", "Profile"}

func (t Tab) String() string {
	if int(t) < len(tabNames) {
		return tabNames[t]
	}
	return ""
}

// Model represents the TUI application state.
//
// Every load or tab switch bumps seq. Replies carry the seq they were issued under and are
// dropped when it no longer matches, so a late reply never lands on a page that moved on.
// Calls run on ctx, which the program cancels on quit.
type Model struct {
	ctx     context.Context
	api     services.API
	engine  *tasks.Engine
	session *session.Provider

	tab     Tab
	seq     int
	loading bool
	status  string
	failed  bool // status holds an error
	err     error

	width        int
	height       int
	trackList    list.Model
	playlistList list.Model
	userList     list.Model
	directory    *tasks.Directory

	help help.Model
	keys keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, api services.API, provider *session.Provider) *Model {
	newList := func(title string) list.Model {
		l := list.New(nil, list.NewDefaultDelegate(), 0, 0)
		l.Title = title
		l.SetShowHelp(false)
		return l
	}

	return &Model{
		ctx:          ctx,
		api:          api,
		engine:       tasks.NewEngine(api),
		session:      provider,
		trackList:    newList("Tracks"),
		playlistList: newList("Playlists"),
		userList:     newList("Discover"),
		help:         help.New(),
		keys:         newKeyMap(),
	}
}

// Init loads the first tab.
func (m *Model) Init() tea.Cmd {
	if !m.session.Authenticated() {
		m.err = shared.ErrNotAuthenticated
		return nil
	}
	return m.load()
}

// Tab returns the current tab.
func (m *Model) Tab() Tab { return m.tab }

// Status returns the status line text.
func (m *Model) Status() string { return m.status }

// Following reports whether userID is followed according to the last confirmed server state.
func (m *Model) Following(userID string) bool {
	return m.directory != nil && m.directory.IsFollowing(userID)
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		for _, l := range []*list.Model{&m.trackList, &m.playlistList, &m.userList} {
			l.SetSize(msg.Width-4, msg.Height-8)
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case Msg:
		if msg.seq != m.seq {
			return m, nil
		}
		return m.handleMsg(msg)
	}

	return m.updateList(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	m.loading = false
	m.failed = msg.err != nil
	if msg.err != nil {
		m.fail(msg.err)
		return m, nil
	}

	switch msg.kind {
	case MsgLibraryLoaded:
		lib := msg.data.(*tasks.Library)
		cmds := []tea.Cmd{
			m.trackList.SetItems(trackItems(lib.Tracks)),
			m.playlistList.SetItems(playlistItems(lib.Playlists)),
		}
		m.status = fmt.Sprintf("Loaded %d track(s) and %d playlist(s).", len(lib.Tracks), len(lib.Playlists))
		return m, tea.Batch(cmds...)

	case MsgDirectoryLoaded:
		m.directory = msg.data.(*tasks.Directory)
		m.status = fmt.Sprintf("Loaded %d discoverable user(s).", len(m.directory.Users))
		return m, m.refreshUsers()

	case MsgFollowed:
		res := msg.data.(*models.FollowResult)
		m.setFollowing(res.ID(), true)
		m.status = "User followed."
		if res.Status == models.FollowStatusAlreadyFollowing {
			m.status = "Already following this user."
		}
		return m, m.refreshUsers()

	case MsgUnfollowed:
		m.setFollowing(msg.data.(unfollowed).userID, false)
		m.status = "User unfollowed."
		return m, m.refreshUsers()
	}
	return m, nil
}

func (m *Model) refreshUsers() tea.Cmd {
	if m.directory == nil {
		return nil
	}
	return m.userList.SetItems(userItems(m.directory.Users, m.directory.Following))
}

// setFollowing records a follow change the server has confirmed.
func (m *Model) setFollowing(userID string, following bool) {
	if m.directory == nil || userID == "" {
		return
	}
	if m.directory.Following == nil {
		m.directory.Following = map[string]bool{}
	}
	if following {
		m.directory.Following[userID] = true
	} else {
		delete(m.directory.Following, userID)
	}
}

// fail shows err in the status line. A rejected token is cleared so the next run asks to log in.
func (m *Model) fail(err error) {
	m.status = err.Error()
	if services.IsUnauthorized(err) {
		_ = m.session.ClearToken()
		m.err = fmt.Errorf("%w: session expired, run `dmsa auth login`", shared.ErrNotAuthenticated)
	}
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.quit) && msg.String() == "ctrl+c" {
		return m, tea.Quit
	}
	if m.err != nil {
		if key.Matches(msg, m.keys.quit) {
			return m, tea.Quit
		}
		return m, nil
	}
	if l := m.activeList(); l != nil && l.FilterState() == list.Filtering {
		return m.updateList(msg)
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.next):
		return m, m.switchTab((m.tab + 1) % Tab(len(tabNames)))
	case key.Matches(msg, m.keys.prev):
		return m, m.switchTab((m.tab + Tab(len(tabNames)) - 1) % Tab(len(tabNames)))
	case msg.String() >= "1" && msg.String() <= "4" && len(msg.String()) == 1:
		return m, m.switchTab(Tab(msg.String()[0] - '1'))
	case key.Matches(msg, m.keys.refresh):
		return m, m.load()
	case m.tab == FollowingTab && key.Matches(msg, m.keys.follow):
		return m, m.followSelected(true)
	case m.tab == FollowingTab && key.Matches(msg, m.keys.unfollow):
		return m, m.followSelected(false)
	}
	return m.updateList(msg)
}

// switchTab moves to tab and loads it. Replies still in flight for the old tab are dropped.
func (m *Model) switchTab(tab Tab) tea.Cmd {
	if tab == m.tab {
		return nil
	}
	m.tab = tab
	return m.load()
}

// load starts a fresh generation and fetches the current tab's data.
func (m *Model) load() tea.Cmd {
	m.seq++
	seq, token := m.seq, m.session.Token()
	m.failed = false

	switch m.tab {
	case TracksTab, PlaylistsTab:
		m.loading = true
		m.status = "Loading library..."
		return func() tea.Msg {
			lib, err := m.engine.LoadLibrary(m.ctx, nil, token)
			return libraryLoadedMsg(seq, lib, err)
		}
	case FollowingTab:
		m.loading = true
		m.status = "Loading users..."
		return func() tea.Msg {
			dir, err := m.engine.LoadDirectory(m.ctx, nil, token)
			return directoryLoadedMsg(seq, dir, err)
		}
	default:
		m.loading = false
		m.status = ""
		return nil
	}
}

// followSelected asks the service to follow or unfollow the highlighted user. Local state
// changes only when the reply confirms it.
func (m *Model) followSelected(follow bool) tea.Cmd {
	item, ok := m.userList.SelectedItem().(userItem)
	if !ok {
		m.status = "Select a user first."
		return nil
	}

	seq, token, id := m.seq, m.session.Token(), item.user.UserID
	m.loading = true
	if follow {
		m.status = fmt.Sprintf("Following %s...", item.user.Label())
		return func() tea.Msg {
			res, err := m.api.Follow(m.ctx, token, id)
			if err == nil && res.ID() == "" {
				res.TargetUserID = id
			}
			return followedMsg(seq, res, err)
		}
	}
	m.status = fmt.Sprintf("Unfollowing %s...", item.user.Label())
	return func() tea.Msg {
		return unfollowedMsg(seq, id, m.api.Unfollow(m.ctx, token, id))
	}
}

func (m *Model) activeList() *list.Model {
	switch m.tab {
	case TracksTab:
		return &m.trackList
	case PlaylistsTab:
		return &m.playlistList
	case FollowingTab:
		return &m.userList
	default:
		return nil
	}
}

func (m *Model) updateList(msg tea.Msg) (tea.Model, tea.Cmd) {
	l := m.activeList()
	if l == nil {
		return m, nil
	}
	var cmd tea.Cmd
	*l, cmd = l.Update(msg)
	return m, cmd
}

// View renders the UI based on the current tab.
func (m *Model) View() string {
	if m.err != nil {
		msg := m.err.Error()
		if errors.Is(m.err, shared.ErrNotAuthenticated) && !strings.Contains(msg, "dmsa auth") {
			msg += ": run `dmsa auth login` first"
		}
		return styles.err.Render(fmt.Sprintf("Error: %s\n\nPress q to quit", msg))
	}

	var body string
	if l := m.activeList(); l != nil {
		body = l.View()
	} else {
		body = m.renderProfile()
	}

	var status string
	switch {
	case m.loading:
		status = styles.warn.Render(m.status)
	case m.failed:
		status = styles.err.Render(m.status)
	default:
		status = styles.ok.Render(m.status)
	}

	helpKeys := []key.Binding{m.keys.next, m.keys.refresh, m.keys.quit}
	if m.tab == FollowingTab {
		helpKeys = []key.Binding{m.keys.follow, m.keys.unfollow, m.keys.next, m.keys.refresh, m.keys.quit}
	}
	return fmt.Sprintf("%s\n\n%s\n\n%s\n%s", m.renderTabs(), body, status, m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderTabs() string {
	tabs := make([]string, len(tabNames))
	for i, name := range tabNames {
		label := fmt.Sprintf("%d %s", i+1, name)
		if Tab(i) == m.tab {
			tabs[i] = styles.act.Render(label)
		} else {
			tabs[i] = styles.tab.Render(label)
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m *Model) renderProfile() string {
	userID := m.session.UserID()
	if userID == "" {
		userID = "Not found in token"
	}

	lines := []string{
		styles.title.Render("Profile"),
		fmt.Sprintf("User ID:      %s", userID),
	}
	if claims, ok := m.session.Claims(); ok {
		if claims.Email != "" {
			lines = append(lines, fmt.Sprintf("Email:        %s", claims.Email))
		}
		if claims.DisplayName != "" {
			lines = append(lines, fmt.Sprintf("Display name: %s", claims.DisplayName))
		}
		if !claims.ExpiresAt.IsZero() {
			lines = append(lines, fmt.Sprintf("Expires:      %s", claims.ExpiresAt.Local().Format("2006-01-02 15:04")))
		}
	}
	lines = append(lines, fmt.Sprintf("Token:        %s", shared.Preview(m.session.Token(), 60, "Missing token")))
	return strings.Join(lines, "\n")
}
