package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/dmsa/internal/formatter"
	"github.com/desertthunder/dmsa/internal/repositories"
	"github.com/desertthunder/dmsa/internal/services"
	"github.com/desertthunder/dmsa/internal/session"
	"github.com/desertthunder/dmsa/internal/shared"
	"github.com/desertthunder/dmsa/internal/tasks"
	"github.com/urfave/cli/v3"
)

var timeNow = time.Now

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	api        *services.Client
	session    *session.Provider
	storage    *repositories.StorageRepository
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	engine     *tasks.Engine
}

// RunnerOpts contains configuration options for creating a Runner.
//
// A nil Storage means the local database could not be opened; the token then lives in memory
// for the duration of the command.
type RunnerOpts struct {
	Config     *shared.Config
	API        *services.Client
	Session    *session.Provider
	Storage    *repositories.StorageRepository
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.API == nil {
		// Empty base URLs fall back to the defaults, which always parse.
		opts.API, _ = services.NewClient("", "", services.WithHTTPClient(opts.HTTPClient))
	}
	if opts.Session == nil {
		opts.Session, _ = session.NewProvider(session.NewMemoryStore(""))
	}

	return &Runner{
		config:     opts.Config,
		api:        opts.API,
		session:    opts.Session,
		storage:    opts.Storage,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		engine:     tasks.NewEngine(opts.API),
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, tracksCommand, playlistsCommand, followsCommand, discoverCommand,
		apiCommand, storageCommand, serveCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger replaces the logger, e.g. with a file logger while the TUI owns the terminal.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

// token returns the stored bearer token or [shared.ErrNotAuthenticated] when there is none.
func (r *Runner) token() (string, error) {
	if !r.session.Authenticated() {
		return "", fmt.Errorf("%w: run `dmsa auth login` first", shared.ErrNotAuthenticated)
	}
	return r.session.Token(), nil
}

// checkAuth clears a token the service rejected so the next command asks for a fresh login.
func (r *Runner) checkAuth(err error) error {
	if err == nil || !services.IsUnauthorized(err) {
		return err
	}
	if clearErr := r.session.ClearToken(); clearErr != nil {
		r.logger.Warn("failed to clear rejected token", "error", clearErr)
	}
	return fmt.Errorf("%w: session expired, run `dmsa auth login`: %v", shared.ErrNotAuthenticated, err)
}

func (r *Runner) format(cmd *cli.Command) (formatter.Format, error) {
	return formatter.ParseFormat(cmd.String("format"))
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

// writeRaw prints a raw service body, indenting it when it is JSON.
func (r *Runner) writeRaw(resp *services.APIResponse) error {
	if resp.IsJSON {
		return r.writeJSON(resp.JSONData, true)
	}
	return r.writePlain("%s\n", string(resp.Body))
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
