package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"mediaserver/internal/domain"
	"mediaserver/internal/infra"
	"mediaserver/internal/middleware"
	"mediaserver/internal/providers/image"
	"mediaserver/internal/providers/video"
)

// ArtifactStore is the slice of the file store the handlers need: durable
// writes, remote downloads, and traversal-safe path resolution.
type ArtifactStore interface {
	Write(ctx context.Context, key string, data []byte) (string, error)
	SaveFromURL(ctx context.Context, remoteURL, prefix, folder, ext string) (string, error)
	Resolve(key string) (string, error)
}

// App carries the dependencies shared by all HTTP handlers.
type App struct {
	Config   *infra.Config
	Logger   zerolog.Logger
	History  domain.HistoryRepository
	Store    ArtifactStore
	Images   image.Generator
	Videos   video.Submitter
	Validate *validator.Validate
}

// NewApp builds the handler container with a ready validator instance.
func NewApp(cfg *infra.Config, logger zerolog.Logger, history domain.HistoryRepository, store ArtifactStore, images image.Generator, videos video.Submitter) *App {
	return &App{
		Config:   cfg,
		Logger:   logger,
		History:  history,
		Store:    store,
		Images:   images,
		Videos:   videos,
		Validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, map[string]any{"error": map[string]string{"code": errCode, "message": message}})
}

func (a *App) currentUsername(r *http.Request) string {
	return middleware.UsernameFromContext(r.Context())
}

// proxyURL turns a storage key into the proxy-relative reference that is
// persisted on the record.
func proxyURL(key string) string {
	return "/api/proxy/" + strings.TrimLeft(key, "/")
}

// publicURL maps a stored reference to something a client can fetch. Already
// absolute references (remote mirrors) pass through untouched.
func publicURL(base, stored string) string {
	if stored == "" {
		return ""
	}
	if strings.HasPrefix(stored, "http://") || strings.HasPrefix(stored, "https://") {
		return stored
	}
	if base == "" {
		return stored
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(stored, "/")
}
