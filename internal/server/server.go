// Package server exposes the search engine and cache layer over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pauljones0/gapfinder/internal/cache"
	"github.com/pauljones0/gapfinder/internal/models"
	"github.com/pauljones0/gapfinder/internal/processor"
	"github.com/pauljones0/gapfinder/internal/search"
)

// Searcher is the query surface of the search engine.
type Searcher interface {
	Search(query string, f models.Filters) ([]models.SearchResult, error)
	SearchByProblem(query string, f models.Filters) ([]models.SearchResult, error)
	SearchByOpportunity(query string, f models.Filters) ([]models.SearchResult, error)
	SmartSearch(ctx context.Context, query string, f models.Filters) (*models.SmartSearchResponse, error)
	Suggestions(partial string) ([]models.SearchSuggestion, error)
	Categories() ([]string, error)
	PopularTools(limit int) ([]models.ToolRecord, error)
	Tool(id string) (*models.ToolRecord, error)
}

// CacheManager is the part of the cache layer the API drives.
type CacheManager interface {
	Online() bool
	Status(ctx context.Context) models.OfflineStatus
	Enqueue(ctx context.Context, action models.QueuedAction) (models.QueuedAction, error)
	Queue(ctx context.Context) []models.QueuedAction
	Flush(ctx context.Context) (cache.FlushResult, error)
	ClearCache(ctx context.Context)
	AddHistory(ctx context.Context, query string)
	History(ctx context.Context) []models.HistoryEntry
	Overlay(ctx context.Context, toolID string) (models.ToolOverlay, bool)
	SetOverlay(ctx context.Context, o models.ToolOverlay) models.ToolOverlay
	SetFavorite(ctx context.Context, toolID string, favorite bool) models.ToolOverlay
	Favorites(ctx context.Context) []models.ToolOverlay
}

// Refresher reloads the dataset on demand.
type Refresher interface {
	Refresh(ctx context.Context) (processor.RefreshResult, error)
}

type Options struct {
	// TrackSearches queues a low-priority search action for every query.
	TrackSearches bool
}

type Server struct {
	engine    Searcher
	cache     CacheManager
	refresher Refresher
	opts      Options
	router    chi.Router
}

func New(engine Searcher, c CacheManager, r Refresher, opts Options) *Server {
	s := &Server{
		engine:    engine,
		cache:     c,
		refresher: r,
		opts:      opts,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/search", s.handleSearch)
		r.Get("/smart-search", s.handleSmartSearch)
		r.Get("/problems", s.handleProblems)
		r.Get("/opportunities", s.handleOpportunities)
		r.Get("/suggestions", s.handleSuggestions)
		r.Get("/categories", s.handleCategories)
		r.Get("/popular", s.handlePopular)
		r.Get("/tools/{id}", s.handleTool)
		r.Put("/tools/{id}/overlay", s.handleSetOverlay)

		r.Get("/status", s.handleStatus)
		r.Get("/queue", s.handleQueue)
		r.Post("/actions", s.handleEnqueue)
		r.Post("/sync", s.handleSync)
		r.Post("/refresh", s.handleRefresh)
		r.Delete("/cache", s.handleClearCache)
		r.Get("/history", s.handleHistory)

		r.Get("/favorites", s.handleFavorites)
		r.Put("/favorites/{id}", s.handleFavorite(true))
		r.Delete("/favorites/{id}", s.handleFavorite(false))
	})

	s.router = r
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("Failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeEngineError maps engine errors onto HTTP responses.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, search.ErrNotReady):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
	case errors.Is(err, models.ErrToolNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "request cancelled")
	default:
		slog.Error("Engine request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
