// Package api provides the HTTP API server for gaugeviz.
//
// It exposes endpoints to create gauges, deliver query results to them,
// clear and inspect them, and a WebSocket stream that pushes every redraw
// to live pages.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/seenimoa/gaugeviz/internal/chart"
	"github.com/seenimoa/gaugeviz/internal/config"
	"github.com/seenimoa/gaugeviz/internal/gauge"
	"github.com/seenimoa/gaugeviz/internal/palette"
	"github.com/seenimoa/gaugeviz/internal/result"
	"github.com/seenimoa/gaugeviz/internal/source"
)

// Version is reported by the health endpoint.
var Version = "dev"

// sourceCacheTTL bounds how long parsed result files are reused.
const sourceCacheTTL = 30 * time.Second

// Server is the HTTP API server.
type Server struct {
	router   chi.Router
	logger   *slog.Logger
	hub      *WSHub
	registry *registry
	results  *result.Handler
	loader   *source.Loader
	serveUI  bool // when true, serve the live page at /

	mu      sync.RWMutex // guards cfg, engine and palette
	cfg     *config.Config
	engine  chart.Engine
	palette *palette.Palette

	// ctx outlives requests; asynchronous deliveries run under it.
	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer creates a configured API server with all routes and middleware.
// A nil logger uses slog.Default().
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	engine, err := chart.NewEngine(cfg.Render.Engine, nil)
	if err != nil {
		return nil, fmt.Errorf("render engine: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	srv := &Server{
		logger:   logger,
		hub:      NewWSHub(),
		registry: newRegistry(),
		results:  result.NewHandler(logger),
		loader:   source.NewLoader(sourceCacheTTL),
		serveUI:  true,
		cfg:      cfg,
		engine:   engine,
		palette:  palette.New(cfg.Palette.Colors),
		ctx:      ctx,
		cancel:   cancel,
	}
	srv.router = srv.buildRouter()
	return srv, nil
}

// SetServeUI controls whether the live page is served.
// Must be called before ListenAndServe.
func (s *Server) SetServeUI(enabled bool) {
	s.serveUI = enabled
	s.router = s.buildRouter()
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *WSHub {
	return s.hub
}

// Close clears every gauge and stops pending deliveries.
func (s *Server) Close() {
	s.cancel()
	for _, inst := range s.registry.list() {
		inst.g.Close()
	}
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go s.hub.Run(hubCtx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api server listening", "addr", addr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	s.Close()
	return httpSrv.Shutdown(shutdownCtx)
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS
	origins := []string{"*"}
	if len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", s.handleHealth)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Gauges
		r.Get("/gauges", s.handleListGauges)
		r.Post("/gauges", s.handleCreateGauge)
		r.Route("/gauges/{id}", func(r chi.Router) {
			// The WebSocket route stays outside the timeout middleware.
			r.Use(middleware.Timeout(60 * time.Second))
			r.Get("/", s.handleGetGauge)
			r.Delete("/", s.handleDeleteGauge)
			r.Post("/render", s.handleRenderGauge)
			r.Delete("/render", s.handleClearGauge)
			r.Post("/results", s.handleDeliverResults)
			r.Get("/html", s.handleGaugeHTML)
		})

		// Configuration
		r.Get("/config", s.handleGetConfig)
		r.Put("/config", s.handleUpdateConfig)
		r.Get("/config/sources", s.handleGetConfigSources)

		// WebSocket
		r.Get("/ws", s.handleWebSocket)
	})

	if s.serveUI {
		r.Get("/", s.handleIndexPage)
		r.Get("/gauges/{id}", s.handleGaugePage)
	}

	return r
}

// gaugeConfig returns the collaborators of a new gauge.
func (s *Server) gaugeConfig() gauge.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return gauge.Config{
		Engine:     s.engine,
		Palette:    s.palette,
		Results:    s.results,
		Logger:     s.logger,
		FullReload: s.cfg.Render.FullReload(),
		Update:     s.cfg.Render.Update(),
		Width:      s.cfg.Render.Width,
		Height:     s.cfg.Render.Height,
	}
}

// ============================================================
// Response helpers
// ============================================================

// APIResponse is the standard JSON envelope.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]any{
			"status":     "ok",
			"version":    Version,
			"gauges":     s.registry.len(),
			"ws_clients": s.hub.ClientCount(),
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   msg,
	})
}
