package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/dmsa/internal/formatter"
	"github.com/desertthunder/dmsa/internal/models"
	"github.com/desertthunder/dmsa/internal/shared"
	"github.com/urfave/cli/v3"
)

// FollowsList prints the users the signed-in user follows.
func (r *Runner) FollowsList(ctx context.Context, cmd *cli.Command) error {
	format, err := r.format(cmd)
	if err != nil {
		return err
	}
	token, err := r.token()
	if err != nil {
		return err
	}

	follows, err := r.api.ListFollows(ctx, token)
	if err != nil {
		return r.checkAuth(err)
	}
	return formatter.WriteFollows(r.output, format, follows)
}

// FollowsAdd follows a user. Following someone twice is reported, not treated as an error.
func (r *Runner) FollowsAdd(ctx context.Context, cmd *cli.Command) error {
	userID, err := targetUser(cmd)
	if err != nil {
		return err
	}
	token, err := r.token()
	if err != nil {
		return err
	}

	res, err := r.api.Follow(ctx, token, userID)
	if err != nil {
		return r.checkAuth(err)
	}

	if res.Status == models.FollowStatusAlreadyFollowing {
		return r.writePlain("Already following %s\n", userID)
	}
	return r.writePlain("✓ User followed: %s\n", userID)
}

// FollowsRemove unfollows a user.
func (r *Runner) FollowsRemove(ctx context.Context, cmd *cli.Command) error {
	userID, err := targetUser(cmd)
	if err != nil {
		return err
	}
	token, err := r.token()
	if err != nil {
		return err
	}

	if err := r.api.Unfollow(ctx, token, userID); err != nil {
		return r.checkAuth(err)
	}
	return r.writePlain("✓ User unfollowed: %s\n", userID)
}

// Discover lists discoverable users, loading them together with the follow list.
func (r *Runner) Discover(ctx context.Context, cmd *cli.Command) error {
	format, err := r.format(cmd)
	if err != nil {
		return err
	}
	token, err := r.token()
	if err != nil {
		return err
	}

	dir, err := r.engine.LoadDirectory(ctx, nil, token)
	if err != nil {
		return r.checkAuth(err)
	}

	r.logger.Debug("loaded directory", "users", len(dir.Users), "follows", len(dir.Follows))
	return formatter.WriteUsers(r.output, format, dir.Users, dir.Following)
}

func targetUser(cmd *cli.Command) (string, error) {
	id := strings.TrimSpace(cmd.StringArg("user-id"))
	if id == "" {
		return "", fmt.Errorf("%w: user id is required", shared.ErrMissingArgument)
	}
	return id, nil
}
