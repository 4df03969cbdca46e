package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/desertthunder/dmsa/internal/services"
	"github.com/desertthunder/dmsa/internal/shared"
	"github.com/urfave/cli/v3"
)

func rawTarget(cmd *cli.Command) (service, path string, err error) {
	service = strings.ToLower(cmd.String("service"))
	if service != services.UserService && service != services.MediaService {
		return "", "", fmt.Errorf("%w: service must be %q or %q", shared.ErrInvalidArgument, services.UserService, services.MediaService)
	}
	path = cmd.StringArg("path")
	if path == "" {
		return "", "", fmt.Errorf("%w: path is required", shared.ErrMissingArgument)
	}
	return service, path, nil
}

// APIGet makes a direct GET request with the stored token, if any.
func (r *Runner) APIGet(ctx context.Context, cmd *cli.Command) error {
	service, path, err := rawTarget(cmd)
	if err != nil {
		return err
	}

	r.logger.Info("GET request", "service", service, "path", path)

	resp, err := r.api.Get(ctx, service, path, r.session.Token())
	return r.finishRaw(resp, err)
}

// APIPost makes a direct POST request with a JSON body.
func (r *Runner) APIPost(ctx context.Context, cmd *cli.Command) error {
	service, path, err := rawTarget(cmd)
	if err != nil {
		return err
	}

	data := cmd.String("data")
	if !json.Valid([]byte(data)) {
		return fmt.Errorf("%w: data is not valid JSON", shared.ErrInvalidInput)
	}

	r.logger.Info("POST request", "service", service, "path", path)

	resp, err := r.api.Post(ctx, service, path, r.session.Token(), []byte(data))
	return r.finishRaw(resp, err)
}

// finishRaw prints whatever body came back, including error bodies, then returns the error.
func (r *Runner) finishRaw(resp *services.APIResponse, err error) error {
	if resp != nil {
		if writeErr := r.writeRaw(resp); writeErr != nil {
			return writeErr
		}
	}
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	return nil
}
