package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"mediaserver/internal/domain"
)

type statusResponse struct {
	JobID         string   `json:"jobId"`
	Status        string   `json:"status"`
	GeneratedURLs []string `json:"generatedImageUrls,omitempty"`
	Error         string   `json:"error,omitempty"`
}

// HistoryStatus lets an authenticated owner poll a job. An absent record and
// a record owned by someone else produce the same 404 so existence never
// leaks.
func (a *App) HistoryStatus(w http.ResponseWriter, r *http.Request) {
	username := a.currentUsername(r)
	if username == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	id := chi.URLParam(r, "id")
	if id == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "job id required")
		return
	}
	rec, err := a.History.GetForOwner(r.Context(), id, username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "job not found")
			return
		}
		a.Logger.Error().Err(err).Str("job_id", id).Msg("status: load record failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load job")
		return
	}

	switch rec.Status {
	case domain.StatusProcessing:
		a.json(w, http.StatusOK, statusResponse{JobID: rec.ID, Status: string(domain.StatusProcessing)})
	case domain.StatusCompleted:
		if a.Config.PublicBaseURL == "" {
			a.Logger.Error().Msg("status: PUBLIC_BASE_URL is not configured")
			a.error(w, http.StatusInternalServerError, "config", "server is missing its public base url")
			return
		}
		urls := make([]string, 0, len(rec.GeneratedURLs))
		for _, stored := range rec.GeneratedURLs {
			if u := publicURL(a.Config.PublicBaseURL, stored); u != "" {
				urls = append(urls, u)
			}
		}
		a.json(w, http.StatusOK, statusResponse{JobID: rec.ID, Status: string(domain.StatusCompleted), GeneratedURLs: urls})
	case domain.StatusFailed:
		msg := rec.ErrorMessage
		if msg == "" {
			msg = "generation failed"
		}
		a.json(w, http.StatusOK, statusResponse{JobID: rec.ID, Status: string(domain.StatusFailed), Error: msg})
	default:
		a.json(w, http.StatusOK, statusResponse{JobID: rec.ID, Status: string(domain.StatusUnknown)})
	}
}
