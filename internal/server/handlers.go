package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/beanatlas/coffee-cli/internal/model"
	"github.com/beanatlas/coffee-cli/internal/pipeline"
)

type scrapeRequest struct {
	URL          string `json:"url"`
	Name         string `json:"name,omitempty"`
	RoasterID    string `json:"roaster_id,omitempty"`
	ForceRefresh bool   `json:"force_refresh,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	var req scrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	site := model.Site{
		RoasterID: req.RoasterID,
		Name:      req.Name,
		URL:       req.URL,
	}

	zap.L().Info("server: scrape request",
		zap.String("url", req.URL),
		zap.Bool("force_refresh", req.ForceRefresh),
	)

	ctx, cancel := context.WithTimeout(r.Context(), s.opts.ScrapeTimeout)
	defer cancel()

	result, err := s.scraper.ScrapeWithOptions(ctx, site, pipeline.Options{ForceRefresh: req.ForceRefresh})
	if err != nil {
		zap.L().Error("server: scrape failed", zap.String("url", req.URL), zap.Error(err))
		if strings.Contains(err.Error(), "has no url") {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	run, err := s.store.GetRun(r.Context(), runID)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		zap.L().Error("server: get run failed", zap.String("run_id", runID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	writeJSON(w, http.StatusOK, run)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
