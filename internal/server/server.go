package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"newsdesk/internal/database"
	"newsdesk/internal/domain"
	"newsdesk/internal/tools"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// Server exposes the tool service as a JSON API under /api.
type Server struct {
	svc     *tools.Service
	db      *database.Database
	router  chi.Router
	log     *slog.Logger
	started time.Time
}

func New(svc *tools.Service, db *database.Database, log *slog.Logger) *Server {
	s := &Server{
		svc:     svc,
		db:      db,
		log:     log,
		started: time.Now(),
	}
	s.routes()

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.InfoContext(ctx, "HTTP server is listening",
			"addr", addr)

		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen and serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown HTTP server: %w", err)
	}

	return nil
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/articles", func(r chi.Router) {
			r.Get("/", s.handleGetArticles)
			r.Get("/unanalyzed", s.handleUnanalyzed)
			r.Get("/deep-candidates", s.handleDeepCandidates)
			r.Post("/read", s.handleMarkRead)
			r.Post("/read-all", s.handleMarkAllRead)
			r.Get("/{id}", s.handleGetArticle)
			r.Post("/{id}/feedback", s.handleSaveFeedback)
			r.Post("/{id}/analysis", s.handleSaveAnalysis)
		})

		r.Route("/sources", func(r chi.Router) {
			r.Get("/", s.handleListSources)
			r.Post("/", s.handleAddSource)
			r.Post("/validate", s.handleValidateFeed)
			r.Delete("/{name}", s.handleRemoveSource)
		})

		r.Get("/profile", s.handleGetProfile)
		r.Post("/profile/interests", s.handleAddInterest)
		r.Delete("/profile/interests/{topic}", s.handleRemoveInterest)

		r.Get("/stats", s.handleStats)
		r.Get("/trending", s.handleTrending)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := s.db.Ping(r.Context()) == nil

	status := http.StatusOK
	if !dbOK {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, map[string]any{
		"status":  "ok",
		"uptime":  time.Since(s.started).Seconds(),
		"db":      dbOK,
		"db_path": s.db.Path(),
	})
}

// statusFor maps component errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDuplicateSource):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidRating),
		errors.Is(err, domain.ErrInvalidArgument),
		errors.Is(err, domain.ErrInvalidAnalysis):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrStoreBusy):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)

	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.log.ErrorContext(r.Context(), "Failed to handle request",
			"error", err,
			"method", r.Method,
			"path", r.URL.Path)

		msg = "internal error"
	}

	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid json: %v: %w", err, domain.ErrInvalidArgument)
	}

	return nil
}
