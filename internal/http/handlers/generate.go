package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"mediaserver/internal/domain"
	"mediaserver/internal/providers/image"
	"mediaserver/internal/providers/video"
)

const submitTimeout = 60 * time.Second

type imageGenerateRequest struct {
	Prompt          string `json:"prompt" validate:"required,min=1,max=2000"`
	Quantity        int    `json:"quantity" validate:"gte=0,lte=4"`
	SourceImageURL  string `json:"source_image_url" validate:"omitempty,url"`
	SourceImageData string `json:"source_image_data" validate:"omitempty,base64"`
}

type videoGenerateRequest struct {
	Prompt          string `json:"prompt" validate:"required,min=1,max=2000"`
	SourceImageURL  string `json:"source_image_url" validate:"omitempty,url"`
	DurationSeconds int    `json:"duration_seconds" validate:"gte=0,lte=60"`
	Resolution      string `json:"resolution" validate:"omitempty,oneof=720p 1080p"`
	Seed            int    `json:"seed" validate:"gte=0"`
}

type jobCreatedResponse struct {
	JobID         string   `json:"jobId"`
	Status        string   `json:"status"`
	GeneratedURLs []string `json:"generatedImageUrls,omitempty"`
}

// ImagesGenerate is the synchronous path: the record is created, the
// generator awaited, artifacts stored and the record finalized before the
// response is written.
func (a *App) ImagesGenerate(w http.ResponseWriter, r *http.Request) {
	username := a.currentUsername(r)
	if username == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req imageGenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if err := a.Validate.Struct(req); err != nil {
		a.error(w, http.StatusUnprocessableEntity, "invalid_params", "invalid generation parameters")
		return
	}
	var sourceData []byte
	if req.SourceImageData != "" {
		decoded, err := base64.StdEncoding.DecodeString(req.SourceImageData)
		if err != nil {
			a.error(w, http.StatusUnprocessableEntity, "invalid_params", "source_image_data is not valid base64")
			return
		}
		sourceData = decoded
	}

	id := uuid.NewString()
	params, _ := json.Marshal(req)
	rec := &domain.HistoryRecord{
		ID:       id,
		Username: username,
		Kind:     domain.KindImage,
		Status:   domain.StatusProcessing,
		Params:   params,
	}
	if err := a.History.Insert(r.Context(), rec); err != nil {
		a.Logger.Error().Err(err).Str("job_id", id).Msg("images: insert history record failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to create job")
		return
	}

	assets, err := a.Images.Generate(r.Context(), image.GenerateRequest{
		Prompt:          req.Prompt,
		SourceImageURL:  req.SourceImageURL,
		SourceImageData: sourceData,
		Quantity:        req.Quantity,
		RequestID:       id,
	})
	if err != nil {
		a.failJob(r.Context(), id, fmt.Sprintf("image generation failed: %v", err))
		a.error(w, http.StatusBadGateway, "upstream", "image generation failed")
		return
	}

	urls, err := a.storeImageAssets(r.Context(), id, assets)
	if err != nil {
		a.failJob(r.Context(), id, fmt.Sprintf("storing artifacts failed: %v", err))
		a.error(w, http.StatusInternalServerError, "storage", "failed to store generated images")
		return
	}
	if _, err := a.History.MarkCompleted(r.Context(), id, urls); err != nil {
		a.Logger.Error().Err(err).Str("job_id", id).Msg("images: mark completed failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to finalize job")
		return
	}

	public := make([]string, 0, len(urls))
	for _, u := range urls {
		public = append(public, publicURL(a.Config.PublicBaseURL, u))
	}
	a.json(w, http.StatusOK, jobCreatedResponse{JobID: id, Status: string(domain.StatusCompleted), GeneratedURLs: public})
}

// VideosGenerate is the asynchronous path: the record is created, the vendor
// submission runs detached, and the caller gets the job id immediately. The
// webhook finishes the job later.
func (a *App) VideosGenerate(w http.ResponseWriter, r *http.Request) {
	username := a.currentUsername(r)
	if username == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req videoGenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if err := a.Validate.Struct(req); err != nil {
		a.error(w, http.StatusUnprocessableEntity, "invalid_params", "invalid generation parameters")
		return
	}
	if a.Config.PublicBaseURL == "" {
		a.Logger.Error().Msg("videos: PUBLIC_BASE_URL is not configured, cannot build callback url")
		a.error(w, http.StatusInternalServerError, "config", "server is not configured for video generation")
		return
	}

	id := uuid.NewString()
	params, _ := json.Marshal(req)
	rec := &domain.HistoryRecord{
		ID:       id,
		Username: username,
		Kind:     domain.KindVideo,
		Status:   domain.StatusProcessing,
		Params:   params,
	}
	if err := a.History.Insert(r.Context(), rec); err != nil {
		a.Logger.Error().Err(err).Str("job_id", id).Msg("videos: insert history record failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to create job")
		return
	}

	callback := fmt.Sprintf("%s/v1/webhooks/video?historyItemId=%s&username=%s",
		strings.TrimRight(a.Config.PublicBaseURL, "/"), id, url.QueryEscape(username))
	submitReq := video.SubmitRequest{
		Prompt:          req.Prompt,
		SourceImageURL:  req.SourceImageURL,
		DurationSeconds: req.DurationSeconds,
		Resolution:      req.Resolution,
		Seed:            req.Seed,
		CallbackURL:     callback,
		RequestID:       id,
	}

	// Detached from the request lifecycle: the 202 must not wait on the
	// vendor, and a submit failure is reconciled into the record instead
	// of vanishing.
	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), submitTimeout)
		defer cancel()
		if err := a.Videos.Submit(ctx, submitReq); err != nil {
			a.Logger.Error().Err(err).Str("job_id", id).Msg("videos: submit failed")
			a.failJob(ctx, id, fmt.Sprintf("video submission failed: %v", err))
		}
	}()

	a.json(w, http.StatusAccepted, jobCreatedResponse{JobID: id, Status: string(domain.StatusProcessing)})
}

func (a *App) storeImageAssets(ctx context.Context, jobID string, assets []image.Asset) ([]string, error) {
	urls := make([]string, 0, len(assets))
	folder := fmt.Sprintf("generated/images/%s", jobID)
	for idx, asset := range assets {
		ext := extensionForMIME(asset.Format)
		if ext == "" {
			ext = ".png"
		}
		var key string
		var err error
		if len(asset.Data) > 0 {
			key, err = a.Store.Write(ctx, fmt.Sprintf("%s/image-%02d%s", folder, idx+1, ext), asset.Data)
		} else {
			key, err = a.Store.SaveFromURL(ctx, asset.URL, "image", folder, ext)
		}
		if err != nil {
			return nil, err
		}
		urls = append(urls, proxyURL(key))
	}
	if len(urls) == 0 {
		return nil, errors.New("no assets produced")
	}
	return urls, nil
}

// failJob is a best-effort transition used on error paths; a duplicate or
// already-terminal record is left alone.
func (a *App) failJob(ctx context.Context, id, message string) {
	if _, err := a.History.MarkFailed(ctx, id, message); err != nil {
		a.Logger.Error().Err(err).Str("job_id", id).Msg("mark failed errored")
	}
}

func extensionForMIME(mime string) string {
	switch strings.ToLower(strings.TrimSpace(mime)) {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "video/mp4":
		return ".mp4"
	default:
		return ""
	}
}
