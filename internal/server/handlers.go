package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pauljones0/gapfinder/internal/models"
)

const maxBodyBytes = 1 << 20

type searchResponse struct {
	Query   string                `json:"query"`
	Count   int                   `json:"count"`
	Results []models.SearchResult `json:"results"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "online": s.cache.Online()})
}

type searchFunc func(query string, f models.Filters) ([]models.SearchResult, error)

func (s *Server) runSearch(w http.ResponseWriter, r *http.Request, kind string, fn searchFunc) {
	q := queryParam(r)
	results, err := fn(q, parseFilters(r))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if results == nil {
		results = []models.SearchResult{}
	}
	s.trackSearch(r, kind, q)
	writeJSON(w, http.StatusOK, searchResponse{Query: q, Count: len(results), Results: results})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	s.runSearch(w, r, "direct", s.engine.Search)
}

func (s *Server) handleProblems(w http.ResponseWriter, r *http.Request) {
	s.runSearch(w, r, "problem", s.engine.SearchByProblem)
}

func (s *Server) handleOpportunities(w http.ResponseWriter, r *http.Request) {
	s.runSearch(w, r, "opportunity", s.engine.SearchByOpportunity)
}

func (s *Server) handleSmartSearch(w http.ResponseWriter, r *http.Request) {
	q := queryParam(r)
	resp, err := s.engine.SmartSearch(r.Context(), q, parseFilters(r))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	s.trackSearch(r, "smart", q)
	writeJSON(w, http.StatusOK, resp)
}

// trackSearch records a non-empty query in history and, when enabled, queues
// it for the sync endpoint.
func (s *Server) trackSearch(r *http.Request, kind, q string) {
	if q == "" {
		return
	}
	ctx := r.Context()
	s.cache.AddHistory(ctx, q)
	if !s.opts.TrackSearches {
		return
	}
	payload, err := json.Marshal(map[string]string{"query": q, "kind": kind})
	if err != nil {
		return
	}
	if _, err := s.cache.Enqueue(ctx, models.QueuedAction{
		Type:     models.ActionSearch,
		Payload:  payload,
		Priority: models.PriorityLow,
	}); err != nil {
		slog.Warn("Failed to queue search action", "query", q, "error", err)
	}
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	sugg, err := s.engine.Suggestions(queryParam(r))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if sugg == nil {
		sugg = []models.SearchSuggestion{}
	}
	writeJSON(w, http.StatusOK, sugg)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.engine.Categories()
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if cats == nil {
		cats = []string{}
	}
	writeJSON(w, http.StatusOK, cats)
}

func (s *Server) handlePopular(w http.ResponseWriter, r *http.Request) {
	tools, err := s.engine.PopularTools(limitParam(r))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if tools == nil {
		tools = []models.ToolRecord{}
	}
	writeJSON(w, http.StatusOK, tools)
}

type toolResponse struct {
	Tool    *models.ToolRecord  `json:"tool"`
	Overlay *models.ToolOverlay `json:"overlay,omitempty"`
}

func (s *Server) handleTool(w http.ResponseWriter, r *http.Request) {
	tool, err := s.engine.Tool(chi.URLParam(r, "id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	resp := toolResponse{Tool: tool}
	if o, ok := s.cache.Overlay(r.Context(), tool.ID); ok {
		resp.Overlay = &o
	}
	writeJSON(w, http.StatusOK, resp)
}

type overlayRequest struct {
	Favorite *bool    `json:"favorite"`
	Notes    *string  `json:"notes"`
	Tags     []string `json:"tags"`
}

// handleSetOverlay merges the supplied fields into the tool's overlay.
func (s *Server) handleSetOverlay(w http.ResponseWriter, r *http.Request) {
	tool, err := s.engine.Tool(chi.URLParam(r, "id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	var req overlayRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx := r.Context()
	o, _ := s.cache.Overlay(ctx, tool.ID)
	o.ToolID = tool.ID
	if req.Favorite != nil {
		o.Favorite = *req.Favorite
	}
	if req.Notes != nil {
		o.Notes = strings.TrimSpace(*req.Notes)
	}
	if req.Tags != nil {
		o.Tags = req.Tags
	}
	writeJSON(w, http.StatusOK, s.cache.SetOverlay(ctx, o))
}

func (s *Server) handleFavorites(w http.ResponseWriter, r *http.Request) {
	favs := s.cache.Favorites(r.Context())
	if favs == nil {
		favs = []models.ToolOverlay{}
	}
	writeJSON(w, http.StatusOK, favs)
}

func (s *Server) handleFavorite(favorite bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tool, err := s.engine.Tool(chi.URLParam(r, "id"))
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s.cache.SetFavorite(r.Context(), tool.ID, favorite))
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cache.Status(r.Context()))
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	q := s.cache.Queue(r.Context())
	if q == nil {
		q = []models.QueuedAction{}
	}
	writeJSON(w, http.StatusOK, q)
}

type actionRequest struct {
	Type     models.ActionType `json:"type"`
	Priority models.Priority   `json:"priority"`
	Payload  json.RawMessage   `json:"payload"`
}

func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	action, err := s.cache.Enqueue(r.Context(), models.QueuedAction{
		Type:     req.Type,
		Priority: req.Priority,
		Payload:  req.Payload,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, action)
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if !s.cache.Online() {
		writeJSON(w, http.StatusConflict, map[string]any{
			"status":    "offline",
			"remaining": len(s.cache.Queue(r.Context())),
		})
		return
	}
	res, err := s.cache.Flush(r.Context())
	if err != nil {
		slog.Warn("Manual sync interrupted", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	res, err := s.refresher.Refresh(r.Context())
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]any{"error": err.Error(), "serving": res})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	s.cache.ClearCache(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	h := s.cache.History(r.Context())
	if h == nil {
		h = []models.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, h)
}
