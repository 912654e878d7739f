package campaign

import (
	"context"
	"errors"

	"github.com/c360studio/adpilot/imagegen"
	"github.com/c360studio/adpilot/llm"
	"github.com/c360studio/adpilot/model"
)

// TextParams are the per-step generation settings.
type TextParams struct {
	// Capability selects the model chain in the registry.
	Capability string `yaml:"capability" json:"capability"`

	// Temperature is nil for the endpoint default.
	Temperature *float64 `yaml:"temperature,omitempty" json:"temperature,omitempty"`

	MaxTokens int `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty"`
}

// DefaultWriterParams favour creative output.
func DefaultWriterParams() TextParams {
	temp := 0.75
	return TextParams{
		Capability:  string(model.CapabilityWriting),
		Temperature: &temp,
		MaxTokens:   512,
	}
}

// DefaultReviewerParams favour consistent verdicts.
func DefaultReviewerParams() TextParams {
	temp := 0.3
	return TextParams{
		Capability:  string(model.CapabilityReviewing),
		Temperature: &temp,
		MaxTokens:   256,
	}
}

// TextRequest is a single text generation call.
type TextRequest struct {
	// Instructions set the role (system message).
	Instructions string

	// Context is the task input (user message).
	Context string

	Params TextParams
}

// TextGenerator produces text. Errors should be *llm.ServiceError values;
// steps treat any error as a reason to fall back.
type TextGenerator interface {
	GenerateText(ctx context.Context, req TextRequest) (string, error)
}

// ImageGenerator produces an image for a prompt.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (*imagegen.Image, error)
}

// ImageStore persists image bytes and returns a reference to them.
type ImageStore interface {
	Save(id string, img *imagegen.Image) (string, error)
}

// Completer is the subset of *llm.Client used by LLMText.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (*llm.Response, error)
}

// LLMText adapts an llm client to TextGenerator.
type LLMText struct {
	client Completer
}

// NewLLMText wraps client.
func NewLLMText(client Completer) *LLMText {
	return &LLMText{client: client}
}

// GenerateText sends the instructions as a system message and the context as
// the user message.
func (t *LLMText) GenerateText(ctx context.Context, req TextRequest) (string, error) {
	if t.client == nil {
		return "", llm.NewFatalError(errors.New("no llm client configured"))
	}

	capability := req.Params.Capability
	if capability == "" {
		capability = string(model.CapabilityWriting)
	}

	messages := make([]llm.Message, 0, 2)
	if req.Instructions != "" {
		messages = append(messages, llm.Message{Role: "system", Content: req.Instructions})
	}
	messages = append(messages, llm.Message{Role: "user", Content: req.Context})

	resp, err := t.client.Complete(ctx, llm.Request{
		Capability:  capability,
		Messages:    messages,
		Temperature: req.Params.Temperature,
		MaxTokens:   req.Params.MaxTokens,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}
