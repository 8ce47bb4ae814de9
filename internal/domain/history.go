package domain

import (
	"encoding/json"
	"time"
)

// Kind discriminates image and video generation jobs.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

// Status enumerates the history record lifecycle states.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	// StatusUnknown is never persisted; it is the read-side fallback for
	// legacy or corrupt rows so API consumers keep working across schema
	// evolution.
	StatusUnknown Status = "unknown"
)

// Terminal reports whether a record in this status may no longer change.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// NormalizeStatus maps any stored value onto the public status vocabulary.
func NormalizeStatus(raw string) Status {
	switch Status(raw) {
	case StatusProcessing, StatusCompleted, StatusFailed:
		return Status(raw)
	default:
		return StatusUnknown
	}
}

// HistoryRecord is one durable generation job. The id and username are
// immutable for the lifetime of the record; only the reconciling paths move
// status out of processing, and they do so exactly once.
type HistoryRecord struct {
	ID            string
	Username      string
	Kind          Kind
	Status        Status
	Params        json.RawMessage
	GeneratedURLs []string
	ErrorMessage  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// KindForParams derives the job kind from the submitted parameters: the
// presence of video-specific fields marks a video job.
func KindForParams(params json.RawMessage) Kind {
	var probe struct {
		Duration   int    `json:"duration_seconds"`
		Resolution string `json:"resolution"`
	}
	if err := json.Unmarshal(params, &probe); err == nil {
		if probe.Duration > 0 || probe.Resolution != "" {
			return KindVideo
		}
	}
	return KindImage
}
