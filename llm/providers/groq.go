package providers

import (
	"net/http"
	"os"

	"github.com/c360studio/adpilot/llm"
)

// GroqProvider implements Groq's OpenAI-compatible endpoint, the default
// host for the Llama models used by the writer and reviewer.
type GroqProvider struct {
	OllamaProvider
}

func init() {
	llm.RegisterProvider(&GroqProvider{})
}

// Name returns the provider identifier.
func (g *GroqProvider) Name() string {
	return "groq"
}

// APIKeyEnv names the Groq credential variable.
func (g *GroqProvider) APIKeyEnv() string {
	return "GROQ_API_KEY"
}

// BuildURL constructs the Groq chat completions endpoint.
func (g *GroqProvider) BuildURL(baseURL string) string {
	return chatCompletionsURL(baseURL, "https://api.groq.com/openai/v1")
}

// SetHeaders adds the Groq bearer token.
func (g *GroqProvider) SetHeaders(req *http.Request) {
	if apiKey := os.Getenv(g.APIKeyEnv()); apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
}
