package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"mediaserver/internal/domain"
	"mediaserver/internal/providers/video"
)

const maxWebhookBody = 1 << 20

// VideoWebhook is the reconciliation boundary for asynchronous video jobs.
// The caller is the vendor, not a user: the only binding to a job is the
// historyItemId/username pair baked into the callback URL at submission time,
// which is why job ids are random UUIDs. A signed callback token would slot
// in here if the vendor ever supports one.
//
// Every valid-but-unfortunate payload is acknowledged with 200 so the vendor
// does not retry indefinitely; only malformed input earns a 400.
func (a *App) VideoWebhook(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("historyItemId")
	username := r.URL.Query().Get("username")

	defer func() {
		if rec := recover(); rec != nil {
			a.Logger.Error().Str("job_id", id).Interface("panic", rec).Msg("webhook: recovered from panic")
			if id != "" {
				a.failJob(r.Context(), id, "internal error while processing generation result")
			}
			a.error(w, http.StatusInternalServerError, "internal", "failed to process callback")
		}
	}()

	if id == "" || username == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "historyItemId and username are required")
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "unreadable body")
		return
	}
	outcome, err := video.ParseCallback(body)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "malformed callback body")
		return
	}

	rec, err := a.History.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.Logger.Warn().Str("job_id", id).Msg("webhook: callback for unknown job")
			a.json(w, http.StatusOK, map[string]bool{"received": true})
			return
		}
		a.Logger.Error().Err(err).Str("job_id", id).Msg("webhook: load record failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to process callback")
		return
	}
	if rec.Username != username {
		a.Logger.Warn().Str("job_id", id).Msg("webhook: owner mismatch on callback")
		a.json(w, http.StatusOK, map[string]bool{"received": true})
		return
	}
	if rec.Status != domain.StatusProcessing {
		// Duplicate or late delivery; the record already settled.
		a.Logger.Info().Str("job_id", id).Str("status", string(rec.Status)).Msg("webhook: ignoring callback for settled job")
		a.json(w, http.StatusOK, map[string]bool{"received": true})
		return
	}

	switch outcome.Kind {
	case video.OutcomeFailure:
		a.failJob(r.Context(), id, outcome.Message)
	case video.OutcomeUnexpected:
		a.failJob(r.Context(), id, fmt.Sprintf("unexpected generation status %q", outcome.RawStatus))
	case video.OutcomeSuccess:
		a.completeVideoJob(r, id, outcome)
	}
	a.json(w, http.StatusOK, map[string]bool{"received": true})
}

func (a *App) completeVideoJob(r *http.Request, id string, outcome *video.Outcome) {
	if outcome.VideoURL == "" {
		a.failJob(r.Context(), id, "generation result is missing the video url")
		return
	}
	folder := fmt.Sprintf("generated/videos/%s", id)
	ext := strings.ToLower(path.Ext(outcome.VideoURL))
	if ext == "" || strings.ContainsAny(ext, "?&=") {
		ext = ".mp4"
	}
	key, err := a.Store.SaveFromURL(r.Context(), outcome.VideoURL, "video", folder, ext)
	if err != nil {
		a.Logger.Error().Err(err).Str("job_id", id).Msg("webhook: artifact download failed")
		a.failJob(r.Context(), id, fmt.Sprintf("downloading generated video failed: %v", err))
		return
	}
	// Local copy first, remote mirror second.
	urls := []string{proxyURL(key), outcome.VideoURL}
	transitioned, err := a.History.MarkCompleted(r.Context(), id, urls)
	if err != nil {
		a.Logger.Error().Err(err).Str("job_id", id).Msg("webhook: mark completed failed")
		a.failJob(r.Context(), id, "failed to finalize generation result")
		return
	}
	if !transitioned {
		a.Logger.Info().Str("job_id", id).Msg("webhook: job settled concurrently, completion skipped")
		return
	}
	a.Logger.Info().Str("job_id", id).Int("seed", outcome.Seed).Msg("webhook: job completed")
}
