// Package api provides the NutriPipe HTTP surface and the composition root.
//
// The router exposes a health check, the Twilio webhook and a small admin API
// (reminder sweep, user count, meal log) protected by an HS256 bearer token.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/BTreeMap/NutriPipe/internal/reminder"
	"github.com/BTreeMap/NutriPipe/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

const (
	// DefaultAddr is used when no API address is configured.
	DefaultAddr = ":8080"
	// requestTimeout bounds every HTTP request, including a full reminder sweep.
	requestTimeout = 60 * time.Second
	shutdownGrace  = 10 * time.Second
)

// Sweeper runs one reminder sweep. *reminder.Dispatcher satisfies it.
type Sweeper interface {
	Sweep(ctx context.Context) (reminder.Tally, error)
}

// QueueStats reports per-identity work in flight. *messaging.ResponseHandler satisfies it.
type QueueStats interface {
	Pending() int
}

// Opts holds configuration for the API server.
type Opts struct {
	Addr        string
	JWTSecret   string
	CORSOrigins []string
	Webhook     http.HandlerFunc
	Queue       QueueStats
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithJWTSecret protects /api/* with HS256 bearer tokens signed by secret.
func WithJWTSecret(secret string) Option {
	return func(o *Opts) { o.JWTSecret = secret }
}

// WithCORSOrigins allows browser access to /api/* from origins.
func WithCORSOrigins(origins []string) Option {
	return func(o *Opts) { o.CORSOrigins = origins }
}

// WithTwilioWebhook mounts h at POST /twilio/webhook.
func WithTwilioWebhook(h http.HandlerFunc) Option {
	return func(o *Opts) { o.Webhook = h }
}

// WithQueueStats reports pending messages in the health check.
func WithQueueStats(q QueueStats) Option {
	return func(o *Opts) { o.Queue = q }
}

// Server serves the NutriPipe HTTP endpoints.
type Server struct {
	st        store.ProfileStore
	reminders Sweeper
	opts      Opts
	http      *http.Server
}

// NewServer creates a Server backed by st and reminders.
func NewServer(st store.ProfileStore, reminders Sweeper, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultAddr}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.JWTSecret == "" {
		slog.Warn("API_JWT_SECRET not set, admin endpoints are unauthenticated")
	}
	return &Server{st: st, reminders: reminders, opts: cfg}
}

// Router builds the chi router with all routes and middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/health", s.healthHandler)
	if s.opts.Webhook != nil {
		r.Post("/twilio/webhook", s.opts.Webhook)
	}

	r.Route("/api", func(r chi.Router) {
		if len(s.opts.CORSOrigins) > 0 {
			r.Use(cors.Handler(cors.Options{
				AllowedOrigins: s.opts.CORSOrigins,
				AllowedMethods: []string{"GET", "POST", "OPTIONS"},
				AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
				MaxAge:         300,
			}))
		}
		r.Use(BearerAuth(s.opts.JWTSecret))
		r.Post("/reminders/sweep", s.sweepHandler)
		r.Get("/users/count", s.userCountHandler)
		r.Post("/meals", s.addMealHandler)
		r.Get("/meals", s.listMealsHandler)
	})
	return r
}

// Start listens in the background. Listener errors other than a clean
// shutdown are sent on the returned channel.
func (s *Server) Start() <-chan error {
	errc := make(chan error, 1)
	s.http = &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("API server listening", "addr", s.opts.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("API server failed", "error", err)
			errc <- err
		}
		close(errc)
	}()
	return errc
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}
