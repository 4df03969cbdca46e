// submodule cmd contains command definitions
package main

import (
	"github.com/desertthunder/dmsa/internal/formatter"
	"github.com/desertthunder/dmsa/internal/session"
	"github.com/urfave/cli/v3"
)

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format (table, json, csv, markdown)",
		Value:   string(formatter.Table),
	}
}

// setupCommand handles setup operations for database, config and token import.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupDatabase,
			},
			{
				Name:   "config",
				Usage:  "Write a config.toml with the default settings",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupConfig,
			},
			{
				Name:  "token",
				Usage: "Import a bearer token from a browser request (DevTools > Copy as cURL)",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "curl",
						Usage: "cURL command from browser DevTools (Copy as cURL)",
					},
					&cli.StringFlag{
						Name:  "curl-file",
						Usage: "Path to .sh file containing cURL command",
					},
					&cli.StringFlag{
						Name:  "cookie",
						Usage: "Cookie holding the token when the request has no Authorization header",
						Value: session.TokenKey,
					},
				},
				Action: r.SetupToken,
			},
		},
	}
}

// authCommand handles sign-in and the stored session.
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage authentication",
		Commands: []*cli.Command{
			{
				Name:  "register",
				Usage: "Create an account and sign in",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Usage: "Account email", Required: true},
					&cli.StringFlag{Name: "password", Usage: "Account password", Required: true, Sources: cli.EnvVars("DMSA_PASSWORD")},
					&cli.StringFlag{Name: "display-name", Usage: "Name shown to other users (defaults to the email name)"},
				},
				Action: r.AuthRegister,
			},
			{
				Name:  "login",
				Usage: "Sign in with email and password",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Usage: "Account email", Required: true},
					&cli.StringFlag{Name: "password", Usage: "Account password", Required: true, Sources: cli.EnvVars("DMSA_PASSWORD")},
				},
				Action: r.AuthLogin,
			},
			{
				Name:  "oauth",
				Usage: "Sign in with a provider identity (OAuth baseline)",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "provider", Usage: "Identity provider (google, github, apple, spotify)", Value: "google"},
					&cli.StringFlag{Name: "provider-user-id", Usage: "User id at the provider", Required: true},
					&cli.StringFlag{Name: "email", Usage: "Email reported by the provider"},
					&cli.StringFlag{Name: "display-name", Usage: "Display name reported by the provider"},
				},
				Action: r.AuthOAuth,
			},
			{
				Name:  "connect",
				Usage: "Sign in through a provider in the browser (github, google, spotify)",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "provider"},
				},
				Action: r.AuthConnect,
			},
			{
				Name:   "logout",
				Usage:  "Forget the stored token",
				Action: r.AuthLogout,
			},
			{
				Name:  "status",
				Usage: "Show who is signed in",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
				},
				Action: r.AuthStatus,
			},
		},
	}
}

// tracksCommand handles the media library.
func tracksCommand(r *Runner) *cli.Command {
	uploadFlags := []cli.Flag{
		&cli.StringFlag{Name: "artist-id", Usage: "Artist id (defaults to the signed-in user)"},
		&cli.StringFlag{Name: "artist-name", Usage: "Artist name"},
		&cli.StringFlag{Name: "genre", Usage: "Genre"},
	}

	return &cli.Command{
		Name:    "tracks",
		Aliases: []string{"t"},
		Usage:   "List and upload tracks",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List tracks in the media library",
				Flags:  []cli.Flag{formatFlag()},
				Action: r.TracksList,
			},
			{
				Name:  "upload",
				Usage: "Upload one audio file",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "file"},
				},
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "title", Usage: "Track title (defaults to the file name)"},
				}, uploadFlags...),
				Action: r.TracksUpload,
			},
			{
				Name:  "upload-dir",
				Usage: "Upload every audio file in a directory",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "dir"},
				},
				Flags: append([]cli.Flag{
					&cli.IntFlag{Name: "workers", Usage: "Concurrent uploads (max 8)", Value: 3},
					&cli.FloatFlag{Name: "rate", Usage: "Uploads started per second", Value: 2},
				}, uploadFlags...),
				Action: r.TracksUploadDir,
			},
		},
	}
}

// playlistsCommand handles playlist CRUD.
func playlistsCommand(r *Runner) *cli.Command {
	idArg := []cli.Argument{&cli.StringArg{Name: "id"}}

	return &cli.Command{
		Name:    "playlists",
		Aliases: []string{"pl"},
		Usage:   "Manage playlists",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List your playlists",
				Flags:  []cli.Flag{formatFlag()},
				Action: r.PlaylistsList,
			},
			{
				Name:      "show",
				Usage:     "Show a playlist and its tracks",
				Arguments: idArg,
				Flags:     []cli.Flag{formatFlag()},
				Action:    r.PlaylistsShow,
			},
			{
				Name:  "create",
				Usage: "Create a playlist from library tracks",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Usage: "Playlist name", Required: true},
					&cli.StringFlag{Name: "description", Usage: "Playlist description"},
					&cli.StringSliceFlag{Name: "track", Usage: "Track id to include (repeatable)"},
				},
				Action: r.PlaylistsCreate,
			},
			{
				Name:      "update",
				Usage:     "Rename a playlist or replace its tracks",
				Arguments: idArg,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Usage: "New name"},
					&cli.StringFlag{Name: "description", Usage: "New description"},
					&cli.StringSliceFlag{Name: "track", Usage: "Replacement track id (repeatable)"},
				},
				Action: r.PlaylistsUpdate,
			},
			{
				Name:      "delete",
				Usage:     "Delete a playlist",
				Arguments: idArg,
				Action:    r.PlaylistsDelete,
			},
		},
	}
}

// followsCommand handles the social graph.
func followsCommand(r *Runner) *cli.Command {
	userArg := []cli.Argument{&cli.StringArg{Name: "user-id"}}

	return &cli.Command{
		Name:  "follows",
		Usage: "Manage the users you follow",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List followed users",
				Flags:  []cli.Flag{formatFlag()},
				Action: r.FollowsList,
			},
			{
				Name:      "add",
				Usage:     "Follow a user",
				Arguments: userArg,
				Action:    r.FollowsAdd,
			},
			{
				Name:      "remove",
				Usage:     "Unfollow a user",
				Arguments: userArg,
				Action:    r.FollowsRemove,
			},
		},
	}
}

func discoverCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "discover",
		Usage:  "List discoverable users and whether you follow them",
		Flags:  []cli.Flag{formatFlag()},
		Action: r.Discover,
	}
}

// apiCommand handles direct API calls
func apiCommand(r *Runner) *cli.Command {
	serviceFlag := &cli.StringFlag{
		Name:    "service",
		Aliases: []string{"s"},
		Usage:   "Target service (user or media)",
		Value:   "user",
	}

	return &cli.Command{
		Name:  "api",
		Usage: "Direct API calls with the stored token",
		Commands: []*cli.Command{
			{
				Name:  "get",
				Usage: "Direct GET, prints the raw response",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "path"},
				},
				Flags:  []cli.Flag{serviceFlag},
				Action: r.APIGet,
			},
			{
				Name:  "post",
				Usage: "Direct POST with JSON body",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "path"},
				},
				Flags: []cli.Flag{
					serviceFlag,
					&cli.StringFlag{
						Name:    "data",
						Aliases: []string{"d"},
						Usage:   "JSON body to send",
						Value:   "{}",
					},
				},
				Action: r.APIPost,
			},
		},
	}
}

// storageCommand inspects the local key/value store.
func storageCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "storage",
		Usage: "Inspect local storage",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List stored keys",
				Action: r.StorageList,
			},
			{
				Name:  "delete",
				Usage: "Delete a stored key",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "key"},
				},
				Action: r.StorageDelete,
			},
		},
	}
}

func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the web front end",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "host", Usage: "Listen host (defaults to server.host)"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "Listen port (defaults to server.port)"},
		},
		Action: r.Serve,
	}
}

// tuiCommand returns the top-level TUI command.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch the interactive terminal UI",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log-file", Usage: "Where TUI logs are written", Value: "./tmp/dmsa-tui.log"},
		},
		Action: r.TUI,
	}
}
