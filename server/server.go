// Package server implements the taskdeck HTTP surface: the task submission
// form and API, the Discord interactions webhook, and a status endpoint.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/taskdeck/taskdeck/config"
	"github.com/taskdeck/taskdeck/discord"
	"github.com/taskdeck/taskdeck/janitor"
	"github.com/taskdeck/taskdeck/task"
)

// Chat is the slice of the Discord client the handlers need.
type Chat interface {
	ExecuteWebhook(ctx context.Context, msg discord.WebhookMessage) (string, error)
	EditWebhookMessage(ctx context.Context, messageID string, msg discord.WebhookMessage) error
	SendChannelMessage(ctx context.Context, channelID, content string) (string, error)
	CreateScheduledEvent(ctx context.Context, guildID string, ev discord.ScheduledEvent) error
}

// Cleaner schedules stale-summary cleanup without blocking the caller.
type Cleaner interface {
	Enqueue(job janitor.Job)
}

// Server is the taskdeck HTTP server.
type Server struct {
	cfg     *config.Config
	mux     *http.ServeMux
	httpSrv *http.Server
	logger  *slog.Logger

	store   task.Store
	chat    Chat
	cleaner Cleaner

	// now supplies "today"; injectable so date rollover is testable.
	now func() time.Time

	routesOnce sync.Once

	startTime time.Time
	version   string
}

// New creates a new Server with the given config and collaborators.
func New(cfg *config.Config, store task.Store, chat Chat, cleaner Cleaner, ver string, logger *slog.Logger) *Server {
	return &Server{
		cfg:       cfg,
		mux:       http.NewServeMux(),
		logger:    logger,
		store:     store,
		chat:      chat,
		cleaner:   cleaner,
		now:       time.Now,
		startTime: time.Now(),
		version:   ver,
	}
}

// SetClock overrides the server's time source. Used by tests.
func (s *Server) SetClock(now func() time.Time) { s.now = now }

// Handler returns the routed handler. Used by tests.
func (s *Server) Handler() http.Handler {
	s.registerRoutes()
	return s.mux
}

func (s *Server) registerRoutes() {
	s.routesOnce.Do(func() {
		s.mux.HandleFunc("POST /submit", s.handleSubmit)
		s.mux.HandleFunc("GET /form", s.handleForm)
		s.mux.HandleFunc("POST /interactions", s.handleInteraction)
		s.mux.HandleFunc("GET /api/status", s.handleStatus)
	})
}

// Start registers routes and begins listening.
func (s *Server) Start() error {
	s.registerRoutes()

	addr := s.cfg.Server.Addr
	if addr == "" {
		addr = ":5000"
	}
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 15 * time.Second,
	}
	s.logger.Info("server listening", slog.String("addr", addr))
	return s.httpSrv.ListenAndServe()
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}
