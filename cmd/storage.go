package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/dmsa/internal/session"
	"github.com/desertthunder/dmsa/internal/shared"
	"github.com/urfave/cli/v3"
)

func (r *Runner) requireStorage() error {
	if r.storage == nil {
		return fmt.Errorf("%w: local storage is not available, run `dmsa setup database`", shared.ErrServiceUnavailable)
	}
	return nil
}

// StorageList prints the keys in local storage. The token value is shortened.
func (r *Runner) StorageList(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireStorage(); err != nil {
		return err
	}

	entries, err := r.storage.List()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return r.writePlain("Local storage is empty.\n")
	}

	for _, e := range entries {
		value := e.Value
		if e.Key == session.TokenKey {
			value = shared.Preview(value, 20, "")
		}
		r.writePlain("%s = %s (updated %s)\n", e.Key, value, e.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}
	return nil
}

// StorageDelete removes one key. Deleting the token key signs out.
func (r *Runner) StorageDelete(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireStorage(); err != nil {
		return err
	}

	key := cmd.StringArg("key")
	if key == "" {
		return fmt.Errorf("%w: key is required", shared.ErrMissingArgument)
	}

	if err := r.storage.Delete(key); err != nil {
		return err
	}
	if key == session.TokenKey {
		if err := r.session.ClearToken(); err != nil {
			return err
		}
	}
	return r.writePlain("✓ Deleted %s\n", key)
}
