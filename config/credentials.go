package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/c360studio/adpilot/llm"
	"github.com/c360studio/adpilot/model"
	"github.com/caarlos0/env/v11"
)

// keyPrefixes are the known credential formats.
var keyPrefixes = map[string]string{
	"GROQ_API_KEY": "gsk_",
}

// Credentials holds API keys read from the environment.
type Credentials struct {
	GroqAPIKey      string `env:"GROQ_API_KEY"`
	OpenAIAPIKey    string `env:"OPENAI_API_KEY"`
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`
	TogetherAPIKey  string `env:"TOGETHER_API_KEY"`
	GoogleAPIKey    string `env:"GOOGLE_API_KEY"`
}

// LoadCredentials reads credentials from the environment.
func LoadCredentials() (*Credentials, error) {
	var creds Credentials
	if err := env.Parse(&creds); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &creds, nil
}

// Lookup returns the credential stored under an environment variable name.
func (c *Credentials) Lookup(name string) string {
	switch name {
	case "GROQ_API_KEY":
		return c.GroqAPIKey
	case "OPENAI_API_KEY":
		return c.OpenAIAPIKey
	case "ANTHROPIC_API_KEY":
		return c.AnthropicAPIKey
	case "TOGETHER_API_KEY":
		return c.TogetherAPIKey
	case "GOOGLE_API_KEY":
		return c.GoogleAPIKey
	}
	return ""
}

// ImageKeyEnv returns the credential variable for the image provider.
func (c *Config) ImageKeyEnv() string {
	switch c.Image.Provider {
	case ImageProviderTogether:
		return "TOGETHER_API_KEY"
	case ImageProviderOpenAI:
		return "OPENAI_API_KEY"
	case ImageProviderGenAI:
		return "GOOGLE_API_KEY"
	}
	return ""
}

// CheckCredentials verifies that every capability the campaign uses has at
// least one endpoint whose provider credentials are present, that present
// keys are well formed, and that the image provider has its key.
func (c *Config) CheckCredentials(creds *Credentials, reg *model.Registry) error {
	var errs []error

	checked := make(map[string]bool)
	checkFormat := func(name string) {
		if checked[name] {
			return
		}
		checked[name] = true
		value := creds.Lookup(name)
		if prefix, ok := keyPrefixes[name]; ok && value != "" && !strings.HasPrefix(value, prefix) {
			errs = append(errs, &ConfigError{Key: name, Problem: fmt.Sprintf("should start with %q", prefix)})
		}
	}

	for _, capName := range []string{c.Campaign.Writer.Capability, c.Campaign.Reviewer.Capability} {
		chain := reg.GetFallbackChain(model.Capability(capName))
		if len(chain) == 0 {
			errs = append(errs, &ConfigError{Key: "models.capabilities." + capName, Problem: "no endpoints configured"})
			continue
		}

		usable := false
		var missing []string
		for _, name := range chain {
			ep := reg.GetEndpoint(name)
			if ep == nil {
				continue
			}
			provider := llm.GetProvider(ep.Provider)
			if provider == nil {
				errs = append(errs, &ConfigError{Key: "models.endpoints." + name, Problem: fmt.Sprintf("unknown provider %q", ep.Provider)})
				continue
			}
			keyEnv := provider.APIKeyEnv()
			if keyEnv == "" {
				usable = true
				continue
			}
			checkFormat(keyEnv)
			if creds.Lookup(keyEnv) != "" {
				usable = true
			} else {
				missing = append(missing, keyEnv)
			}
		}
		if !usable {
			errs = append(errs, &ConfigError{
				Key:     strings.Join(dedupe(missing), ", "),
				Problem: fmt.Sprintf("no credentials for any %s endpoint", capName),
			})
		}
	}

	// A custom base URL (such as the mock server) needs no key, except for
	// genai whose client refuses to start without one.
	if keyEnv := c.ImageKeyEnv(); keyEnv != "" && (c.Image.BaseURL == "" || c.Image.Provider == ImageProviderGenAI) {
		if creds.Lookup(keyEnv) == "" {
			errs = append(errs, &ConfigError{Key: keyEnv, Problem: "required by image provider " + c.Image.Provider})
		}
	}

	return errors.Join(errs...)
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
