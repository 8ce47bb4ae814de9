package video

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("video: api key is required")

// Options configures the video generation client.
type Options struct {
	APIKey         string
	BaseURL        string
	Model          string
	HTTPClient     *http.Client
	Logger         *zerolog.Logger
	RequestTimeout time.Duration
}

// Client submits video generation jobs to the vendor API. Completion is
// reported asynchronously to the callback URL carried in each submission.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *zerolog.Logger
}

type submitRequest struct {
	Model           string `json:"model"`
	Prompt          string `json:"prompt"`
	ImageURL        string `json:"image_url,omitempty"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
	Resolution      string `json:"resolution,omitempty"`
	Seed            int    `json:"seed,omitempty"`
	WebhookURL      string `json:"webhook_url"`
}

type submitResponse struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		return nil, errors.New("video: base url is required")
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "studio-video-1"
	}
	var logger *zerolog.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		logger = &discard
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      model,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Submit sends the generation request. A nil return only means the vendor
// accepted the job, not that it will succeed.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) error {
	if c.apiKey == "" {
		return ErrMissingAPIKey
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return errors.New("video: prompt is required")
	}
	if strings.TrimSpace(req.CallbackURL) == "" {
		return errors.New("video: callback url is required")
	}
	payload := submitRequest{
		Model:           c.model,
		Prompt:          req.Prompt,
		ImageURL:        req.SourceImageURL,
		DurationSeconds: req.DurationSeconds,
		Resolution:      req.Resolution,
		Seed:            req.Seed,
		WebhookURL:      req.CallbackURL,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("video: encode request: %w", err)
	}
	endpoint := c.baseURL + "/videos/generations"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("video: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("video: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("video: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var decoded submitResponse
		if err := json.Unmarshal(raw, &decoded); err == nil && decoded.Message != "" {
			return fmt.Errorf("video: %s (%s)", decoded.Message, decoded.Code)
		}
		return fmt.Errorf("video: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	c.logger.Debug().
		Str("model", c.model).
		Str("request_id", req.RequestID).
		Msg("video: submitted generation job")
	return nil
}

var _ Submitter = (*Client)(nil)
