// Package api exposes a read-only status API over the recipe registry and
// the run journal.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pyrill/rilldev/internal/recipe"
	"github.com/pyrill/rilldev/internal/storage"
)

// RunLister reads journaled runs.
type RunLister interface {
	Recent(ctx context.Context, limit int) ([]storage.RunRecord, error)
	RecentByRecipe(ctx context.Context, recipe string, limit int) ([]storage.RunRecord, error)
}

// Config holds API server configuration.
type Config struct {
	Listen      string
	PackageName string
}

// Server is the HTTP status server.
type Server struct {
	config    Config
	registry  *recipe.Registry
	runs      RunLister
	logger    *slog.Logger
	server    *http.Server
	startedAt time.Time
}

// New creates a new status server.
func New(config Config, registry *recipe.Registry, runs RunLister, logger *slog.Logger) *Server {
	return &Server{
		config:    config,
		registry:  registry,
		runs:      runs,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// Start starts the HTTP server (blocking until ctx is cancelled).
func (s *Server) Start(ctx context.Context) error {
	router := s.setupRoutes()

	s.server = &http.Server{
		Addr:         s.config.Listen,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("status API starting", "listen", s.config.Listen)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("status API shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// setupRoutes configures the HTTP router.
func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/recipes", s.handleRecipes)
	r.Get("/runs", s.handleRuns)

	return r
}

// loggingMiddleware logs HTTP requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"package":        s.config.PackageName,
		"uptime_seconds": int64(time.Since(s.startedAt).Seconds()),
		"recipes_loaded": s.registry.Len(),
	})
}

type recipeInfo struct {
	Name   string `json:"name"`
	Help   string `json:"help,omitempty"`
	Python string `json:"python,omitempty"`
	Steps  int    `json:"steps"`
}

func (s *Server) handleRecipes(w http.ResponseWriter, r *http.Request) {
	out := make([]recipeInfo, 0, s.registry.Len())
	for _, rec := range s.registry.All() {
		out = append(out, recipeInfo{
			Name:   rec.Name,
			Help:   rec.Help,
			Python: rec.Python,
			Steps:  len(rec.Steps),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"recipes": out})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 500 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be 1..500"})
			return
		}
		limit = parsed
	}

	var (
		records []storage.RunRecord
		err     error
	)
	if name := r.URL.Query().Get("recipe"); name != "" {
		records, err = s.runs.RecentByRecipe(r.Context(), name, limit)
	} else {
		records, err = s.runs.Recent(r.Context(), limit)
	}
	if err != nil {
		s.logger.Error("failed to list runs", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list runs"})
		return
	}
	if records == nil {
		records = []storage.RunRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": records})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
