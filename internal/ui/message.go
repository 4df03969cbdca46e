package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/dmsa/internal/models"
	"github.com/desertthunder/dmsa/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
//
// seq is the load generation the message answers; the model drops messages from older generations.
type Msg struct {
	kind MsgKind
	seq  int
	data any
	err  error
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgLibraryLoaded MsgKind = iota
	MsgDirectoryLoaded
	MsgFollowed
	MsgUnfollowed
)

type unfollowed struct {
	userID string
}

// libraryLoadedMsg is the constructor for [MsgLibraryLoaded]
func libraryLoadedMsg(seq int, lib *tasks.Library, err error) Msg {
	return Msg{kind: MsgLibraryLoaded, seq: seq, data: lib, err: err}
}

// directoryLoadedMsg is the constructor for [MsgDirectoryLoaded]
func directoryLoadedMsg(seq int, dir *tasks.Directory, err error) Msg {
	return Msg{kind: MsgDirectoryLoaded, seq: seq, data: dir, err: err}
}

// followedMsg is the constructor for [MsgFollowed]
func followedMsg(seq int, res *models.FollowResult, err error) Msg {
	return Msg{kind: MsgFollowed, seq: seq, data: res, err: err}
}

// unfollowedMsg is the constructor for [MsgUnfollowed]
func unfollowedMsg(seq int, userID string, err error) Msg {
	return Msg{kind: MsgUnfollowed, seq: seq, data: unfollowed{userID: userID}, err: err}
}
