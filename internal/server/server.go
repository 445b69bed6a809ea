package server

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"scanviewer/internal/config"
	"scanviewer/internal/logging"
	"scanviewer/internal/shell"
)

const (
	defaultPollTimeout = 25 * time.Second
	maxPollTimeout     = 60 * time.Second
	maxBodyBytes       = 1 << 16
)

// Server is the viewer host.
type Server struct {
	bind   string
	logger *slog.Logger
	app    *shell.App
	page   *template.Template

	listener net.Listener
	server   *http.Server
}

// New builds a server for app bound to cfg.Server.Bind.
func New(cfg *config.Config, app *shell.App, logger *slog.Logger) (*Server, error) {
	if cfg == nil || app == nil {
		return nil, errors.New("server: config and app are required")
	}
	page, err := parsePage()
	if err != nil {
		return nil, err
	}
	s := &Server{
		bind:   strings.TrimSpace(cfg.Server.Bind),
		logger: logging.NewComponentLogger(logger, "viewer-host"),
		app:    app,
		page:   page,
	}
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      maxPollTimeout + 15*time.Second,
		IdleTimeout:       90 * time.Second,
	}
	return s, nil
}

// Handler returns the routed handler with request id middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handlePage)
	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("GET /api/events", s.handleEvents)
	mux.HandleFunc("GET /api/overlay.svg", s.handleOverlaySVG)
	mux.HandleFunc("GET /api/overlay.png", s.handleOverlayPNG)
	mux.HandleFunc("GET /api/plots/{file}", s.handlePlot)
	mux.HandleFunc("POST /api/datasets/{id}", s.handleSelectDataset)
	mux.HandleFunc("POST /api/jobs/{id}", s.handleSelectJob)
	mux.HandleFunc("POST /api/reload", s.handleReload)
	mux.HandleFunc("POST /api/frame", s.handleSelectFrame)
	mux.HandleFunc("POST /api/pointer", s.handlePointer)
	mux.HandleFunc("POST /api/key/{dir}", s.handleKey)
	mux.HandleFunc("POST /api/resize", s.handleResize)
	mux.HandleFunc("POST /api/threshold", s.handleThreshold)
	mux.HandleFunc("POST /api/jump", s.handleJump)
	return withRequestID(s.logger, mux)
}

// Start listens on the configured address and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("viewer listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.ErrorWithContext(s.logger, "viewer server error", "viewer_serve_failed", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("viewer listening", logging.String("address", "http://"+listener.Addr().String()))
	return nil
}

// Addr returns the listening address once started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down, waiting briefly for open requests.
func (s *Server) Stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}
