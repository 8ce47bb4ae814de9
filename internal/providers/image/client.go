package image

import (
	"bytes"
	"context"
	"encoding/base64"
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
var ErrMissingAPIKey = errors.New("image: api key is required")

// Options configures the image generation client.
type Options struct {
	APIKey         string
	BaseURL        string
	Model          string
	HTTPClient     *http.Client
	Logger         *zerolog.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls to the image generation API. The vendor answers
// synchronously, so one request covers the whole job.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *zerolog.Logger
}

type generationRequest struct {
	Model       string       `json:"model"`
	Prompt      string       `json:"prompt"`
	N           int          `json:"n"`
	SourceImage *sourceImage `json:"source_image,omitempty"`
}

type sourceImage struct {
	URL  string `json:"url,omitempty"`
	Data string `json:"data,omitempty"`
}

type generationResponse struct {
	Images []struct {
		URL string `json:"url"`
	} `json:"images"`
	RequestID string `json:"request_id"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		return nil, errors.New("image: base url is required")
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "studio-image-1"
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

// Generate invokes the API once and returns the normalized assets with their
// bytes already downloaded.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) ([]Asset, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, errors.New("image: prompt is required")
	}
	quantity := req.Quantity
	if quantity <= 0 {
		quantity = 1
	}
	payload := generationRequest{
		Model:  c.model,
		Prompt: prompt,
		N:      quantity,
	}
	switch {
	case len(req.SourceImageData) > 0:
		payload.SourceImage = &sourceImage{Data: base64.StdEncoding.EncodeToString(req.SourceImageData)}
	case req.SourceImageURL != "":
		payload.SourceImage = &sourceImage{URL: req.SourceImageURL}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("image: encode request: %w", err)
	}
	endpoint := c.baseURL + "/images/generations"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("image: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("image: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("image: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var decoded generationResponse
		if err := json.Unmarshal(raw, &decoded); err == nil && decoded.Message != "" {
			return nil, fmt.Errorf("image: %s (%s)", decoded.Message, decoded.Code)
		}
		return nil, fmt.Errorf("image: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var decoded generationResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("image: decode response: %w", err)
	}
	if decoded.Code != "" {
		return nil, fmt.Errorf("image: %s (%s)", decoded.Message, decoded.Code)
	}
	if len(decoded.Images) == 0 {
		return nil, errors.New("image: empty result set")
	}

	assets := make([]Asset, 0, len(decoded.Images))
	for _, img := range decoded.Images {
		u := strings.TrimSpace(img.URL)
		if u == "" {
			continue
		}
		data, format, err := c.download(ctx, u)
		if err != nil {
			return nil, err
		}
		assets = append(assets, Asset{URL: u, Data: data, Format: format})
	}
	if len(assets) == 0 {
		return nil, errors.New("image: no downloadable assets")
	}
	c.logger.Debug().
		Str("model", c.model).
		Str("request_id", decoded.RequestID).
		Int("assets", len(assets)).
		Msg("image: generated assets")
	return assets, nil
}

func (c *Client) download(ctx context.Context, imageURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("image: build download request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("image: download asset: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("image: download status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("image: read asset: %w", err)
	}
	format := resp.Header.Get("Content-Type")
	if format == "" {
		format = "image/png"
	}
	return data, format, nil
}

var _ Generator = (*Client)(nil)
