package image

import "context"

// GenerateRequest captures the inputs for one synchronous image generation.
// The source image arrives either inline or as a remote URL, never both.
type GenerateRequest struct {
	Prompt          string
	SourceImageURL  string
	SourceImageData []byte
	Quantity        int
	RequestID       string
}

// Asset is one normalized generation result. Data is populated when the
// vendor returned bytes inline, URL when it returned a temporary location.
type Asset struct {
	URL    string
	Data   []byte
	Format string
}

// Generator is the synchronous image generation contract.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) ([]Asset, error)
}
