package imagegen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/c360studio/adpilot/llm"
	"google.golang.org/genai"
)

// DefaultGenAIModel is the Imagen model used when none is configured.
const DefaultGenAIModel = "imagen-3.0-generate-002"

// GenAIGenerator generates images with Google's Imagen models through the
// Gemini API.
type GenAIGenerator struct {
	client      *genai.Client
	model       string
	aspectRatio string
	logger      *slog.Logger
}

// GenAIConfig configures a GenAIGenerator.
type GenAIConfig struct {
	APIKey string
	Model  string

	// AspectRatio such as "1:1" or "16:9". Empty uses the model default.
	AspectRatio string

	// BaseURL overrides the API endpoint, mainly for tests.
	BaseURL    string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// NewGenAIGenerator creates an Imagen generator.
func NewGenAIGenerator(ctx context.Context, cfg GenAIConfig) (*GenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGenAIModel
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  cfg.HTTPClient,
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GenAIGenerator{
		client:      client,
		model:       cfg.Model,
		aspectRatio: cfg.AspectRatio,
		logger:      cfg.Logger,
	}, nil
}

// GenerateImage requests a single PNG image for prompt.
func (g *GenAIGenerator) GenerateImage(ctx context.Context, prompt string) (*Image, error) {
	g.logger.Debug("Sending Imagen request", "model", g.model)

	resp, err := g.client.Models.GenerateImages(ctx, g.model, prompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		AspectRatio:    g.aspectRatio,
		OutputMIMEType: "image/png",
	})
	if err != nil {
		return nil, classifyGenAIError(err)
	}

	for _, generated := range resp.GeneratedImages {
		if generated == nil || generated.Image == nil {
			continue
		}
		if len(generated.Image.ImageBytes) == 0 && generated.Image.GCSURI == "" {
			continue
		}
		return &Image{
			Data:     generated.Image.ImageBytes,
			MIMEType: generated.Image.MIMEType,
			URL:      generated.Image.GCSURI,
		}, nil
	}

	return nil, llm.NewTransientError(errors.New("imagen returned no usable image"))
}

// classifyGenAIError maps SDK errors onto the llm error kinds.
func classifyGenAIError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code != 0 {
		return llm.ClassifyHTTPError("genai", apiErr.Code, []byte(apiErr.Message))
	}
	return llm.ClassifyTransportError(err)
}
