package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/dmsa/internal/formatter"
	"github.com/desertthunder/dmsa/internal/server"
	"github.com/desertthunder/dmsa/internal/services"
	"github.com/desertthunder/dmsa/internal/session"
	"github.com/desertthunder/dmsa/internal/tasks"
)

//go:embed templates/*.html
var templateFS embed.FS

// LoginPath is where [server.RequireSession] sends visitors without a token.
const LoginPath = "/login"

// pages lists every template rendered inside the base layout.
var pages = []string{"login", "home", "playlists", "playlist", "tracks", "upload", "following", "profile"}

type navItem struct {
	Path  string
	Label string
}

var nav = []navItem{
	{"/", "Home"},
	{"/playlists", "Playlists"},
	{"/tracks", "Tracks"},
	{"/following", "Following"},
	{"/profile", "Profile"},
}

// Options configures the web front end.
type Options struct {
	Cookie session.CookieOptions
}

// App serves the web pages. Each request gets its own session from the token cookie; the app
// itself holds no per-user state.
type App struct {
	api       services.API
	engine    *tasks.Engine
	logger    *log.Logger
	opts      Options
	templates map[string]*template.Template
}

// New parses the embedded templates and returns an App calling api.
func New(api services.API, logger *log.Logger, opts Options) (*App, error) {
	a := &App{
		api:       api,
		engine:    tasks.NewEngine(api),
		logger:    logger,
		opts:      opts,
		templates: make(map[string]*template.Template, len(pages)),
	}

	funcs := template.FuncMap{
		"when":  formatter.FormatTime,
		"media": api.MediaURL,
	}
	for _, name := range pages {
		tpl, err := template.New(name).Funcs(funcs).ParseFS(templateFS, "templates/base.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s template: %w", name, err)
		}
		a.templates[name] = tpl
	}
	return a, nil
}

// Router wires every route. Pages other than login, the auth form posts and /healthz sit
// behind [server.RequireSession]; unknown paths redirect to /.
func (a *App) Router() *server.BasicRouter {
	r := server.NewBasicRouter()
	r.Use(server.DefaultMiddleware(a.logger, a.opts.Cookie)...)

	r.HandleFunc(http.MethodGet, "/healthz", a.healthz)
	r.HandleFunc(http.MethodGet, LoginPath, a.loginPage)
	r.HandleFunc(http.MethodPost, LoginPath, a.login)
	r.HandleFunc(http.MethodPost, "/register", a.register)
	r.HandleFunc(http.MethodPost, "/oauth/login", a.oauthLogin)
	r.HandleFunc(http.MethodPost, "/logout", a.logout)

	r.Group(func(g *server.BasicRouter) {
		g.HandleFunc(http.MethodGet, "/", a.home)
		g.HandleFunc(http.MethodGet, "/playlists", a.playlists)
		g.HandleFunc(http.MethodPost, "/playlists", a.createPlaylist)
		g.HandleFunc(http.MethodGet, "/playlists/{id}", a.playlist)
		g.HandleFunc(http.MethodPost, "/playlists/{id}/delete", a.deletePlaylist)
		g.HandleFunc(http.MethodGet, "/tracks", a.tracks)
		g.HandleFunc(http.MethodGet, "/tracks/upload", a.uploadPage)
		g.HandleFunc(http.MethodPost, "/tracks/upload", a.upload)
		g.HandleFunc(http.MethodGet, "/following", a.following)
		g.HandleFunc(http.MethodPost, "/following/{id}/follow", a.follow)
		g.HandleFunc(http.MethodPost, "/following/{id}/unfollow", a.unfollow)
		g.HandleFunc(http.MethodGet, "/profile", a.profile)
	}, server.RequireSession(LoginPath))

	r.NotFound(http.RedirectHandler("/", http.StatusSeeOther))
	return r
}

// Serve runs the front end on addr until ctx is cancelled, then shuts down gracefully.
func (a *App) Serve(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		a.logger.Info("starting web server", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
		close(serverErrors)
	}()

	select {
	case err, ok := <-serverErrors:
		if ok {
			return fmt.Errorf("web server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("error shutting down server", "error", err)
		return err
	}
	a.logger.Info("web server stopped")
	return nil
}
