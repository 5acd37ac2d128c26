package synthesis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"server/internal/infra"
)

const (
	defaultModel          = "fal-ai/nano-banana-pro/edit"
	defaultQueueBaseURL   = "https://queue.fal.run"
	defaultStorageBaseURL = "https://rest.alpha.fal.ai/storage"
	defaultPollInterval   = 2 * time.Second
	defaultGenerateLimit  = 10 * time.Minute
)

// FalOptions configures the fal.ai client.
type FalOptions struct {
	APIKey         string
	Model          string
	QueueBaseURL   string
	StorageBaseURL string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	PollInterval   time.Duration
	GenerateLimit  time.Duration
}

// FalClient performs HTTP calls against the fal.ai queue and storage APIs.
// Generation is submitted to the request queue and polled until the remote
// job settles, which keeps each HTTP call short-lived even though the
// overall Generate call can take minutes.
type FalClient struct {
	apiKey         string
	model          string
	queueBaseURL   string
	storageBaseURL string
	httpClient     *http.Client
	logger         *infra.Logger
	pollInterval   time.Duration
	generateLimit  time.Duration
}

// NewFalClient constructs a client with sane defaults. A nil HTTP client is
// replaced with one carrying a per-request timeout.
func NewFalClient(opts FalOptions) *FalClient {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	model := opts.Model
	if model == "" {
		model = defaultModel
	}
	queueBase := strings.TrimRight(opts.QueueBaseURL, "/")
	if queueBase == "" {
		queueBase = defaultQueueBaseURL
	}
	storageBase := strings.TrimRight(opts.StorageBaseURL, "/")
	if storageBase == "" {
		storageBase = defaultStorageBaseURL
	}
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	generateLimit := opts.GenerateLimit
	if generateLimit <= 0 {
		generateLimit = defaultGenerateLimit
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &FalClient{
		apiKey:         strings.TrimSpace(opts.APIKey),
		model:          model,
		queueBaseURL:   queueBase,
		storageBaseURL: storageBase,
		httpClient:     client,
		logger:         logger,
		pollInterval:   pollInterval,
		generateLimit:  generateLimit,
	}
}

type initiateUploadRequest struct {
	ContentType string `json:"content_type"`
	FileName    string `json:"file_name"`
}

type initiateUploadResponse struct {
	UploadURL string `json:"upload_url"`
	FileURL   string `json:"file_url"`
}

// Upload stages one image with the storage API: initiate, then PUT the
// bytes to the signed URL. The returned file URL is what Generate accepts.
func (c *FalClient) Upload(ctx context.Context, data []byte, contentType string) (string, error) {
	var initiated initiateUploadResponse
	err := c.invoke(ctx, http.MethodPost, c.storageBaseURL+"/upload/initiate", initiateUploadRequest{
		ContentType: contentType,
		FileName:    "image.jpg",
	}, &initiated)
	if err != nil {
		return "", fmt.Errorf("initiate upload: %w", err)
	}
	if initiated.UploadURL == "" || initiated.FileURL == "" {
		return "", fmt.Errorf("initiate upload: incomplete response")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, initiated.UploadURL, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return "", c.remoteError(resp)
	}

	return initiated.FileURL, nil
}

type queueSubmitRequest struct {
	Prompt       string   `json:"prompt"`
	ImageURLs    []string `json:"image_urls"`
	Resolution   string   `json:"resolution,omitempty"`
	AspectRatio  string   `json:"aspect_ratio,omitempty"`
	OutputFormat string   `json:"output_format,omitempty"`
	NumImages    int      `json:"num_images,omitempty"`
}

type queueSubmitResponse struct {
	RequestID   string `json:"request_id"`
	StatusURL   string `json:"status_url"`
	ResponseURL string `json:"response_url"`
}

type queueStatusResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type queueResultResponse struct {
	Images []struct {
		URL string `json:"url"`
	} `json:"images"`
}

// Generate submits the request to the model queue and polls until the
// remote job completes, then returns the result image URL.
func (c *FalClient) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.generateLimit)
	defer cancel()

	var submitted queueSubmitResponse
	endpoint := c.queueBaseURL + "/" + c.model
	err := c.invoke(ctx, http.MethodPost, endpoint, queueSubmitRequest{
		Prompt:       req.Prompt,
		ImageURLs:    req.ImageURLs,
		Resolution:   req.Resolution,
		AspectRatio:  req.AspectRatio,
		OutputFormat: req.OutputFormat,
		NumImages:    req.NumImages,
	}, &submitted)
	if err != nil {
		return "", fmt.Errorf("submit generation: %w", err)
	}
	if submitted.StatusURL == "" || submitted.ResponseURL == "" {
		return "", fmt.Errorf("submit generation: incomplete response")
	}

	c.logger.Debug().
		Str("request_id", submitted.RequestID).
		Str("model", c.model).
		Int("images", len(req.ImageURLs)).
		Msg("synthesis: generation submitted")

	for {
		var status queueStatusResponse
		if err := c.invoke(ctx, http.MethodGet, submitted.StatusURL, nil, &status); err != nil {
			return "", fmt.Errorf("poll generation status: %w", err)
		}
		switch status.Status {
		case "COMPLETED":
			return c.result(ctx, submitted.ResponseURL)
		case "IN_QUEUE", "IN_PROGRESS":
		default:
			msg := status.Error
			if msg == "" {
				msg = status.Status
			}
			return "", fmt.Errorf("generation failed: %s", msg)
		}

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("poll generation status: %w", ctx.Err())
		case <-time.After(c.pollInterval):
		}
	}
}

func (c *FalClient) result(ctx context.Context, responseURL string) (string, error) {
	var result queueResultResponse
	if err := c.invoke(ctx, http.MethodGet, responseURL, nil, &result); err != nil {
		return "", fmt.Errorf("fetch generation result: %w", err)
	}
	if len(result.Images) == 0 {
		return "", fmt.Errorf("no images returned from synthesis service")
	}
	return result.Images[0].URL, nil
}

// Fetch downloads the final artifact over a time-bounded call.
func (c *FalClient) Fetch(ctx context.Context, resultURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, resultURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create fetch request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch result: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, c.remoteError(resp)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read result: %w", err)
	}
	return data, nil
}

// invoke performs one authenticated JSON round trip.
func (c *FalClient) invoke(ctx context.Context, method, endpoint string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Key "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return c.remoteError(resp)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// remoteError surfaces the remote status and body text verbatim.
func (c *FalClient) remoteError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	text := strings.TrimSpace(string(data))
	if text == "" {
		return fmt.Errorf("fal status %d", resp.StatusCode)
	}
	return fmt.Errorf("fal status %d: %s", resp.StatusCode, text)
}

var _ Gateway = (*FalClient)(nil)
