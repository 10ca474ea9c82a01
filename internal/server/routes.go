package server

import (
	"net/http"
	"strconv"

	"newsdesk/internal/tools"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleGetArticles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	req := tools.GetArticlesRequest{
		ReadStatus: q.Get("read_status"),
		Source:     q.Get("source"),
		Search:     q.Get("search"),
		TimeFilter: q.Get("time_filter"),
		SortBy:     q.Get("sort_by"),
	}

	var err error
	if req.SinceHours, err = intParam(r, "since_hours"); err != nil {
		s.writeError(w, r, err)
		return
	}

	if req.Limit, err = intParam(r, "limit"); err != nil {
		s.writeError(w, r, err)
		return
	}

	if req.Offset, err = intParam(r, "offset"); err != nil {
		s.writeError(w, r, err)
		return
	}

	if raw := q.Get("min_relevance"); raw != "" {
		v, parseErr := strconv.ParseFloat(raw, 64)
		if parseErr != nil {
			s.writeError(w, r, tools.InvalidParam("min_relevance", raw))
			return
		}

		req.MinRelevance = &v
	}

	if raw := q.Get("grouped"); raw != "" {
		if req.Grouped, err = strconv.ParseBool(raw); err != nil {
			s.writeError(w, r, tools.InvalidParam("grouped", raw))
			return
		}
	}

	resp, err := s.svc.GetArticles(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetArticle(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	article, err := s.svc.GetArticle(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, article)
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	var req tools.MarkReadRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	resp, err := s.svc.MarkRead(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	resp, err := s.svc.MarkAllRead(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSaveFeedback(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req tools.SaveFeedbackRequest
	if err = decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	req.ArticleID = id

	resp, err := s.svc.SaveFeedback(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleUnanalyzed(w http.ResponseWriter, r *http.Request) {
	articles, err := s.svc.Unanalyzed(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"articles": articles, "total": len(articles)})
}

func (s *Server) handleSaveAnalysis(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req tools.SaveAnalysisRequest
	if err = decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	req.ArticleID = id

	if err = s.svc.SaveAnalysis(r.Context(), req); err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

func (s *Server) handleDeepCandidates(w http.ResponseWriter, r *http.Request) {
	candidates, err := s.svc.DeepCandidates(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"candidates": candidates, "total": len(candidates)})
}

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	sources, err := s.svc.ListSources(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"sources": sources})
}

func (s *Server) handleAddSource(w http.ResponseWriter, r *http.Request) {
	var req tools.AddSourceRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	src, err := s.svc.AddSource(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, src)
}

func (s *Server) handleValidateFeed(w http.ResponseWriter, r *http.Request) {
	var req tools.ValidateFeedRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.svc.ValidateFeed(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleRemoveSource(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.RemoveSource(r.Context(), chi.URLParam(r, "name")); err != nil {
		s.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.svc.GetProfile(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleAddInterest(w http.ResponseWriter, r *http.Request) {
	var req tools.AddInterestRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	topic, err := s.svc.AddInterest(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, topic)
}

func (s *Server) handleRemoveInterest(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.RemoveInterest(r.Context(), chi.URLParam(r, "topic")); err != nil {
		s.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.Stats(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleTrending(w http.ResponseWriter, r *http.Request) {
	var (
		req tools.TrendingRequest
		err error
	)

	if req.Days, err = intParam(r, "days"); err != nil {
		s.writeError(w, r, err)
		return
	}

	if req.Limit, err = intParam(r, "limit"); err != nil {
		s.writeError(w, r, err)
		return
	}

	topics, err := s.svc.Trending(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"topics": topics})
}

func idParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, tools.InvalidParam("id", raw)
	}

	return id, nil
}

func intParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, tools.InvalidParam(name, raw)
	}

	return v, nil
}
