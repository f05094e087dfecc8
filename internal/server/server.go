package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/sozercan/cosilium/apimodels"
	"github.com/sozercan/cosilium/internal/agents"
	"github.com/sozercan/cosilium/internal/config"
	"github.com/sozercan/cosilium/internal/events"
	"github.com/sozercan/cosilium/internal/sse"
	"github.com/sozercan/cosilium/internal/store"
)

const shutdownTimeout = 30 * time.Second

// Analyzer runs one analysis request.
type Analyzer interface {
	Analyze(ctx context.Context, req apimodels.AnalysisRequest) (*apimodels.AnalysisResponse, error)
	Mode() string
}

type Server struct {
	cfg      config.ServerConfig
	server   *http.Server
	router   chi.Router
	analyzer Analyzer
	roster   agents.Roster
	bus      *events.Bus
	store    *store.Store
	sse      *sse.Handler
	logger   *slog.Logger
	sseBeat  time.Duration
}

type Option func(*Server)

func WithRoster(r agents.Roster) Option {
	return func(s *Server) { s.roster = r }
}

// WithStore enables the telemetry, activity and prompt endpoints. Without a
// store they answer 503.
func WithStore(st *store.Store) Option {
	return func(s *Server) { s.store = st }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithHeartbeat sets the SSE heartbeat interval.
func WithHeartbeat(d time.Duration) Option {
	return func(s *Server) { s.sseBeat = d }
}

func New(cfg config.Config, analyzer Analyzer, bus *events.Bus, opts ...Option) *Server {
	s := &Server{
		cfg:      cfg.Server,
		analyzer: analyzer,
		bus:      bus,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.sse = sse.NewHandler(bus, sse.WithHeartbeat(s.sseBeat), sse.WithLogger(s.logger))
	s.router = s.routes()

	s.server = &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	return s
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.loggingMiddleware)

	origins := s.cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Requested-With"},
		MaxAge:         300,
	}).Handler)

	r.Route("/api/v1", func(r chi.Router) {
		// streaming stays outside the request timeout
		r.Get("/events", s.sse.ServeHTTP)

		r.Group(func(r chi.Router) {
			if s.cfg.RequestTimeout > 0 {
				r.Use(middleware.Timeout(s.cfg.RequestTimeout))
			}

			r.Post("/analyze", s.handleAnalyze)
			r.Get("/health", s.handleHealth)
			r.Get("/agents", s.handleAgents)

			r.Post("/events", s.handlePublishEvent)
			r.Get("/metrics/usage", s.handleUsage)
			r.Get("/logs", s.handleLogs)
			r.Get("/activity", s.handleListActivity)
			r.Post("/activity", s.handleCreateActivity)

			r.Route("/prompts", func(r chi.Router) {
				r.Get("/", s.handleListPrompts)
				r.Put("/{agentID}", s.handleSetPrompt)
				r.Delete("/{agentID}", s.handleDeletePrompt)
			})

			r.Get("/config/export", s.handleExport)
			r.Post("/config/import", s.handleImport)
		})
	})

	if dir := s.cfg.StaticDir; dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			r.Handle("/*", http.FileServer(http.Dir(dir)))
		}
	}

	return r
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.logger.Info("HTTP request completed",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"bytes", ww.BytesWritten(),
				"request_id", middleware.GetReqID(r.Context()),
				"remote_addr", r.RemoteAddr,
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("Starting server", "address", s.server.Addr, "mode", s.analyzer.Mode())
		serverErrors <- s.server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)

	case <-ctx.Done():
		s.logger.Info("Starting shutdown", "reason", context.Cause(ctx))

		// Give outstanding requests a deadline for completion
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		// open event streams would otherwise hold Shutdown until the deadline
		_ = s.sse.Shutdown(shutdownCtx)

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
	}

	return nil
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode response", "error", err)
		}
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, apimodels.ErrorResponse{Error: message})
}

func respondErrorDetails(w http.ResponseWriter, status int, message string, err error) {
	respondJSON(w, status, apimodels.ErrorResponse{Error: message, Details: err.Error()})
}

// requireStore answers 503 and reports false when persistence is disabled.
func (s *Server) requireStore(w http.ResponseWriter) bool {
	if s.store == nil {
		respondError(w, http.StatusServiceUnavailable, "Persistence is disabled")
		return false
	}
	return true
}
