package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"mediaserver/internal/domain"
	"mediaserver/pkg/zip"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type historyItem struct {
	ID            string          `json:"id"`
	Kind          string          `json:"kind"`
	Status        string          `json:"status"`
	GeneratedURLs []string        `json:"generatedUrls,omitempty"`
	Error         string          `json:"error,omitempty"`
	Params        json.RawMessage `json:"params,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}

type historyListResponse struct {
	Items      []historyItem `json:"items"`
	TotalCount int           `json:"totalCount"`
}

// HistoryList pages the caller's jobs newest-first with an optional kind
// filter. Filtering happens in the storage layer, never on a fetched page.
func (a *App) HistoryList(w http.ResponseWriter, r *http.Request) {
	username := a.currentUsername(r)
	if username == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	var kind domain.Kind
	switch filter := r.URL.Query().Get("filter"); filter {
	case "":
	case string(domain.KindImage), string(domain.KindVideo):
		kind = domain.Kind(filter)
	default:
		a.error(w, http.StatusBadRequest, "bad_request", "filter must be image or video")
		return
	}

	result, err := a.History.ListByUsername(r.Context(), username, page, limit, kind)
	if err != nil {
		a.Logger.Error().Err(err).Str("username", username).Msg("history: list failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load history")
		return
	}

	items := make([]historyItem, 0, len(result.Items))
	for _, rec := range result.Items {
		urls := make([]string, 0, len(rec.GeneratedURLs))
		for _, stored := range rec.GeneratedURLs {
			if u := publicURL(a.Config.PublicBaseURL, stored); u != "" {
				urls = append(urls, u)
			}
		}
		items = append(items, historyItem{
			ID:            rec.ID,
			Kind:          string(rec.Kind),
			Status:        string(rec.Status),
			GeneratedURLs: urls,
			Error:         rec.ErrorMessage,
			Params:        rec.Params,
			CreatedAt:     rec.CreatedAt,
		})
	}
	a.json(w, http.StatusOK, historyListResponse{Items: items, TotalCount: result.TotalCount})
}

// HistoryArchive streams a completed job's locally stored artifacts as a zip.
func (a *App) HistoryArchive(w http.ResponseWriter, r *http.Request) {
	username := a.currentUsername(r)
	if username == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	id := chi.URLParam(r, "id")
	rec, err := a.History.GetForOwner(r.Context(), id, username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "job not found")
			return
		}
		a.Logger.Error().Err(err).Str("job_id", id).Msg("archive: load record failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load job")
		return
	}
	if rec.Status != domain.StatusCompleted {
		a.error(w, http.StatusConflict, "not_ready", "job has no artifacts to archive")
		return
	}

	var assets []zip.Asset
	for _, stored := range rec.GeneratedURLs {
		key, ok := strings.CutPrefix(stored, "/api/proxy/")
		if !ok {
			continue
		}
		fullPath, err := a.Store.Resolve(key)
		if err != nil {
			continue
		}
		data, err := os.ReadFile(fullPath)
		if err != nil {
			continue
		}
		assets = append(assets, zip.Asset{Filename: path.Base(key), Data: data})
	}
	if len(assets) == 0 {
		a.error(w, http.StatusNotFound, "not_found", "no stored artifacts for job")
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=job-%s.zip", rec.ID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(zip.ArchiveAssets(assets))
}
