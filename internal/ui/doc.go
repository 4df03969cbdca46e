// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI shows four tabs over the signed-in session:
//  1. [TracksTab] : the media library
//  2. [PlaylistsTab] : the user's playlists
//  3. [FollowingTab] : discoverable users, with f/u to follow and unfollow
//  4. [ProfileTab] : token claims and a token preview
//
// The [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving replies via the [Msg] union type.
// Entering a tab loads it and r reloads it. Follow state changes only after the service confirms the call.
// Replies from a load that was superseded (tab left or reloaded) are discarded by sequence number.
//
// Keyboard navigation uses vim-style bindings (j/k, h/l or tab between pages, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
