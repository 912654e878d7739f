package imagegen

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/c360studio/adpilot/llm"
)

// maxResponseSize bounds a base64 image response.
const maxResponseSize = 32 * 1024 * 1024

// Defaults for the Together AI images endpoint.
const (
	DefaultBaseURL   = "https://api.together.xyz/v1"
	DefaultModel     = "black-forest-labs/FLUX.1-schnell"
	DefaultAPIKeyEnv = "TOGETHER_API_KEY"
)

// HTTPGenerator calls an OpenAI-compatible /images/generations endpoint
// (Together AI, OpenAI, or the bundled mock server).
type HTTPGenerator struct {
	baseURL    string
	model      string
	apiKey     string
	width      int
	height     int
	steps      int
	httpClient *http.Client
	logger     *slog.Logger
}

// HTTPOption configures an HTTPGenerator.
type HTTPOption func(*HTTPGenerator)

// WithBaseURL sets the API base URL.
func WithBaseURL(url string) HTTPOption {
	return func(g *HTTPGenerator) {
		if url != "" {
			g.baseURL = url
		}
	}
}

// WithModel sets the image model identifier.
func WithModel(model string) HTTPOption {
	return func(g *HTTPGenerator) {
		if model != "" {
			g.model = model
		}
	}
}

// WithAPIKey sets the bearer token. Without it the generator reads
// TOGETHER_API_KEY.
func WithAPIKey(key string) HTTPOption {
	return func(g *HTTPGenerator) {
		g.apiKey = key
	}
}

// WithSize sets the requested image dimensions.
func WithSize(width, height int) HTTPOption {
	return func(g *HTTPGenerator) {
		g.width = width
		g.height = height
	}
}

// WithSteps sets the diffusion step count for models that accept it.
func WithSteps(steps int) HTTPOption {
	return func(g *HTTPGenerator) {
		g.steps = steps
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(g *HTTPGenerator) {
		g.httpClient = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) HTTPOption {
	return func(g *HTTPGenerator) {
		g.logger = logger
	}
}

// NewHTTPGenerator creates a generator for an OpenAI-compatible images API.
func NewHTTPGenerator(opts ...HTTPOption) *HTTPGenerator {
	g := &HTTPGenerator{
		baseURL: DefaultBaseURL,
		model:   DefaultModel,
		width:   1024,
		height:  1024,
		steps:   4,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.apiKey == "" {
		g.apiKey = os.Getenv(DefaultAPIKeyEnv)
	}
	return g
}

type imagesRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Width          int    `json:"width,omitempty"`
	Height         int    `json:"height,omitempty"`
	Steps          int    `json:"steps,omitempty"`
	ResponseFormat string `json:"response_format"`
}

type imagesResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
		URL     string `json:"url"`
	} `json:"data"`
}

// GenerateImage requests a single image for prompt.
func (g *HTTPGenerator) GenerateImage(ctx context.Context, prompt string) (*Image, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, llm.NewFatalError(errors.New("image prompt is required"))
	}

	body, err := json.Marshal(imagesRequest{
		Model:          g.model,
		Prompt:         prompt,
		N:              1,
		Width:          g.width,
		Height:         g.height,
		Steps:          g.steps,
		ResponseFormat: "b64_json",
	})
	if err != nil {
		return nil, llm.NewFatalError(fmt.Errorf("build image request: %w", err))
	}

	url := strings.TrimSuffix(g.baseURL, "/") + "/images/generations"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, llm.NewFatalError(fmt.Errorf("create HTTP request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	g.logger.Debug("Sending image request", "model", g.model, "url", url)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, llm.ClassifyTransportError(fmt.Errorf("HTTP request failed: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, llm.ClassifyTransportError(fmt.Errorf("read response body: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, llm.ClassifyHTTPError("images", resp.StatusCode, respBody)
	}

	var parsed imagesResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, llm.NewTransientError(fmt.Errorf("parse image response: %w", err))
	}
	if len(parsed.Data) == 0 {
		return nil, llm.NewTransientError(errors.New("no images in response"))
	}

	first := parsed.Data[0]
	img := &Image{URL: first.URL}
	if first.B64JSON != "" {
		data, err := base64.StdEncoding.DecodeString(first.B64JSON)
		if err != nil {
			return nil, llm.NewTransientError(fmt.Errorf("decode image data: %w", err))
		}
		img.Data = data
		img.MIMEType = http.DetectContentType(data)
	}
	if img.URL == "" && len(img.Data) == 0 {
		return nil, llm.NewTransientError(errors.New("image response has neither data nor url"))
	}

	return img, nil
}
