// Package synthesis adapts the external image synthesis service. The
// service is a black box that turns N reference images plus a style prompt
// into one output image; everything pipeline-side goes through the Gateway
// interface so workers can be tested without network access.
package synthesis

import "context"

// GenerateRequest describes one collage generation call. ImageURLs are
// ordered: index i is the i-th submitted image.
type GenerateRequest struct {
	Prompt       string
	ImageURLs    []string
	AspectRatio  string
	Resolution   string
	OutputFormat string
	NumImages    int
}

// Gateway is implemented by synthesis backends. Generate may block for a
// long time (remote compute); callers must not hold locks across any of
// these calls. Failures carry the remote error text verbatim.
type Gateway interface {
	// Upload stages one normalized image and returns its remote URL.
	Upload(ctx context.Context, data []byte, contentType string) (string, error)
	// Generate submits the generation request and returns the result URL.
	Generate(ctx context.Context, req GenerateRequest) (string, error)
	// Fetch downloads the final artifact bytes.
	Fetch(ctx context.Context, resultURL string) ([]byte, error)
}
