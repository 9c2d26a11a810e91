// Package server exposes the studio over HTTP: one pipeline controller per
// browser session, JSON endpoints for each operation and an SSE event feed.
package server

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"
	"golang.org/x/sync/errgroup"

	"github.com/rendis/erdstudio/internal/pipeline"
	"github.com/rendis/erdstudio/internal/store"
	"github.com/rendis/erdstudio/internal/streaming"
	"github.com/rendis/erdstudio/pkg/schema"
)

//go:embed static
var content embed.FS

// DefaultMaxUploadBytes caps POST /api/upload bodies.
const DefaultMaxUploadBytes = 64 << 20

const (
	sessionCookie = "erdstudio"
	sessionKey    = "sid"
)

// ActivityLister reads the activity log.
type ActivityLister interface {
	ListActivities(ctx context.Context, filter store.ActivityFilter) ([]*schema.Activity, error)
}

// Config holds the dependencies of the HTTP server.
type Config struct {
	Addr           string
	SessionSecret  string
	// SecureCookies marks the session cookie Secure. Leave it off when the
	// studio is served over plain HTTP or browsers drop the cookie.
	SecureCookies  bool
	Sessions       *pipeline.Registry
	Hub            streaming.EventHub
	Activity       ActivityLister
	MaxUploadBytes int64
	Logger         *slog.Logger
}

// Server is the studio HTTP server.
type Server struct {
	cfg          Config
	sessionStore *sessions.CookieStore
	logger       *slog.Logger
}

// New validates cfg and returns a Server.
func New(cfg Config) (*Server, error) {
	if cfg.Sessions == nil || cfg.Hub == nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "server needs a session registry and an event hub")
	}
	if cfg.SessionSecret == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "session_secret is required")
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	sessionStore := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	sessionStore.MaxAge(86400 * 7)
	sessionStore.Options.Path = "/"
	sessionStore.Options.HttpOnly = true
	sessionStore.Options.Secure = cfg.SecureCookies
	sessionStore.Options.SameSite = http.SameSiteLaxMode

	return &Server{cfg: cfg, sessionStore: sessionStore, logger: cfg.Logger}, nil
}

// Handler returns the HTTP handler for all routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		s.logRequests,
		middleware.Recoverer,
	)

	staticFS, _ := fs.Sub(content, "static")
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))
	r.Get("/", s.handleIndex)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.withSession)

		r.Get("/state", s.handleState)
		r.Post("/upload", s.handleUpload)
		r.Post("/describe", s.handleDescribe)
		r.Put("/source", s.handleSource)
		r.Post("/reset", s.handleReset)
		r.Post("/cancel", s.handleCancel)
		r.Get("/export/{format}", s.handleExport)
		r.Get("/activity", s.handleActivity)
		r.Get("/events", s.handleEvents)
	})
	return r
}

// Serve starts the server and blocks until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    s.cfg.Addr,
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		s.logger.Info("starting HTTP server", "addr", s.cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down HTTP server")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	page, err := content.ReadFile("static/index.html")
	if err != nil {
		http.Error(w, "index not found", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(page)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"took", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
