package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/desertthunder/dmsa/internal/session"
	"github.com/desertthunder/dmsa/internal/web"
	"github.com/urfave/cli/v3"
)

// Serve runs the web front end until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	host, port := r.config.Server.Host, r.config.Server.Port
	if cmd.IsSet("host") {
		host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		port = cmd.Int("port")
	}

	app, err := web.New(r.api, r.logger.With("component", "web"), web.Options{
		Cookie: session.CookieOptions{Secure: r.config.Server.CookieSecure},
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	r.writePlain("→ Serving on http://%s (Ctrl+C to stop)\n", addr)
	return app.Serve(ctx, addr)
}
