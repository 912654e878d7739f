// Package config provides configuration loading and management for adpilot.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/c360studio/adpilot/campaign"
	"github.com/c360studio/adpilot/model"
	"gopkg.in/yaml.v3"
)

// Image providers.
const (
	ImageProviderTogether = "together"
	ImageProviderOpenAI   = "openai"
	ImageProviderGenAI    = "genai"
	ImageProviderNone     = "none"
)

// Config represents the complete adpilot configuration
type Config struct {
	Campaign campaign.Config       `yaml:"campaign"`
	LLM      LLMConfig             `yaml:"llm"`
	Models   *model.RegistryConfig `yaml:"models,omitempty"`
	Image    ImageConfig           `yaml:"image"`
	NATS     NATSConfig            `yaml:"nats"`
	Metrics  MetricsConfig         `yaml:"metrics"`
	Tracing  TracingConfig         `yaml:"tracing"`
	Storage  StorageConfig         `yaml:"storage"`
}

// LLMConfig configures the text completion client
type LLMConfig struct {
	// Timeout bounds a single HTTP request
	Timeout time.Duration `yaml:"timeout"`
	// MaxAttempts per endpoint before moving down the fallback chain
	MaxAttempts int `yaml:"max_attempts"`
	// MaxConcurrent limits in-flight requests shared by all campaigns (0 = unlimited)
	MaxConcurrent int `yaml:"max_concurrent"`
}

// ImageConfig configures the image generation backend
type ImageConfig struct {
	// Provider is together, openai, genai or none
	Provider string `yaml:"provider"`
	// BaseURL overrides the provider endpoint (e.g. the mock server)
	BaseURL string `yaml:"base_url,omitempty"`
	Model   string `yaml:"model,omitempty"`
	Width   int    `yaml:"width,omitempty"`
	Height  int    `yaml:"height,omitempty"`
	Steps   int    `yaml:"steps,omitempty"`
	// AspectRatio applies to genai only
	AspectRatio string        `yaml:"aspect_ratio,omitempty"`
	Timeout     time.Duration `yaml:"timeout"`
}

// NATSConfig configures campaign event publishing
type NATSConfig struct {
	// URL is the NATS server URL (empty = events disabled unless Embedded)
	URL string `yaml:"url"`
	// Embedded starts an in-process server instead of connecting to URL
	Embedded bool `yaml:"embedded"`
	// SubjectPrefix is prepended to every event subject
	SubjectPrefix string `yaml:"subject_prefix"`
	// Stream names a JetStream stream that retains campaign events (empty = none)
	Stream string `yaml:"stream,omitempty"`
}

// Enabled reports whether events should be published.
func (n NATSConfig) Enabled() bool {
	return n.URL != "" || n.Embedded
}

// MetricsConfig configures the Prometheus endpoint
type MetricsConfig struct {
	// Addr is the listen address for /metrics (empty = disabled)
	Addr string `yaml:"addr"`
}

// TracingConfig configures OpenTelemetry span export
type TracingConfig struct {
	// Endpoint is an OTLP/HTTP collector URL (empty = tracing disabled)
	Endpoint string `yaml:"endpoint,omitempty"`
	// ServiceName is reported as service.name
	ServiceName string `yaml:"service_name,omitempty"`
}

// StorageConfig configures campaign history
type StorageConfig struct {
	// Path of the SQLite database (empty = <output_dir>/history.db)
	Path string `yaml:"path,omitempty"`
	// Disabled turns history recording off
	Disabled bool `yaml:"disabled"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Campaign: campaign.DefaultConfig(),
		LLM: LLMConfig{
			Timeout:     60 * time.Second,
			MaxAttempts: 2,
		},
		Image: ImageConfig{
			Provider: ImageProviderTogether,
			Width:    1024,
			Height:   1024,
			Steps:    4,
			Timeout:  2 * time.Minute,
		},
		NATS: NATSConfig{
			SubjectPrefix: "adpilot",
		},
	}
}

// HistoryPath returns the SQLite database path, or "" when disabled.
func (c *Config) HistoryPath() string {
	if c.Storage.Disabled {
		return ""
	}
	if c.Storage.Path != "" {
		return c.Storage.Path
	}
	return filepath.Join(c.Campaign.OutputDir, "history.db")
}

// Validate checks that the configuration is valid. Problems are reported
// as *ConfigError values joined together.
func (c *Config) Validate() error {
	var errs []error

	if err := c.Campaign.Validate(); err != nil {
		errs = append(errs, &ConfigError{Key: "campaign", Problem: err.Error()})
	}
	if c.Campaign.OutputDir == "" {
		errs = append(errs, &ConfigError{Key: "campaign.output_dir", Problem: "is required"})
	}
	if c.LLM.Timeout <= 0 {
		errs = append(errs, &ConfigError{Key: "llm.timeout", Problem: "must be positive"})
	}
	if c.LLM.MaxAttempts < 1 {
		errs = append(errs, &ConfigError{Key: "llm.max_attempts", Problem: "must be at least 1"})
	}
	if c.LLM.MaxConcurrent < 0 {
		errs = append(errs, &ConfigError{Key: "llm.max_concurrent", Problem: "must be >= 0"})
	}

	switch c.Image.Provider {
	case ImageProviderTogether, ImageProviderOpenAI, ImageProviderGenAI, ImageProviderNone:
	default:
		errs = append(errs, &ConfigError{
			Key:     "image.provider",
			Problem: fmt.Sprintf("unknown provider %q (want together, openai, genai or none)", c.Image.Provider),
		})
	}

	if c.Models != nil {
		for name, ep := range c.Models.Endpoints {
			if ep == nil || ep.Provider == "" || ep.Model == "" {
				errs = append(errs, &ConfigError{Key: "models.endpoints." + name, Problem: "provider and model are required"})
			}
		}
	}

	return errors.Join(errs...)
}

// Registry builds the model registry: the built-in defaults overlaid with
// the configured models.
func (c *Config) Registry() *model.Registry {
	reg := model.NewDefaultRegistry()
	if c.Models != nil {
		reg.MergeFromConfig(c.Models)
	}
	return reg
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Campaign
	oc := other.Campaign
	if oc.MaxRetries != campaign.DefaultMaxRetries {
		c.Campaign.MaxRetries = oc.MaxRetries
	}
	if oc.MaxSteps != 0 {
		c.Campaign.MaxSteps = oc.MaxSteps
	}
	mergeParams(&c.Campaign.Writer, oc.Writer)
	mergeParams(&c.Campaign.Reviewer, oc.Reviewer)
	if oc.Image.Style != "" {
		c.Campaign.Image.Style = oc.Image.Style
	}
	if oc.OutputDir != "" && oc.OutputDir != campaign.DefaultConfig().OutputDir {
		c.Campaign.OutputDir = oc.OutputDir
	}

	// LLM
	if other.LLM.Timeout != 0 {
		c.LLM.Timeout = other.LLM.Timeout
	}
	if other.LLM.MaxAttempts != 0 {
		c.LLM.MaxAttempts = other.LLM.MaxAttempts
	}
	if other.LLM.MaxConcurrent != 0 {
		c.LLM.MaxConcurrent = other.LLM.MaxConcurrent
	}

	// Models
	if other.Models != nil {
		if c.Models == nil {
			c.Models = &model.RegistryConfig{}
		}
		mergeRegistryConfig(c.Models, other.Models)
	}

	// Image
	oi := other.Image
	if oi.Provider != "" && oi.Provider != ImageProviderTogether {
		c.Image.Provider = oi.Provider
	}
	if oi.BaseURL != "" {
		c.Image.BaseURL = oi.BaseURL
	}
	if oi.Model != "" {
		c.Image.Model = oi.Model
	}
	if oi.Width != 0 {
		c.Image.Width = oi.Width
	}
	if oi.Height != 0 {
		c.Image.Height = oi.Height
	}
	if oi.Steps != 0 {
		c.Image.Steps = oi.Steps
	}
	if oi.AspectRatio != "" {
		c.Image.AspectRatio = oi.AspectRatio
	}
	if oi.Timeout != 0 {
		c.Image.Timeout = oi.Timeout
	}

	// NATS
	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
	}
	if other.NATS.Embedded {
		c.NATS.Embedded = true
	}
	if other.NATS.SubjectPrefix != "" {
		c.NATS.SubjectPrefix = other.NATS.SubjectPrefix
	}
	if other.NATS.Stream != "" {
		c.NATS.Stream = other.NATS.Stream
	}

	// Metrics
	if other.Metrics.Addr != "" {
		c.Metrics.Addr = other.Metrics.Addr
	}

	// Tracing
	if other.Tracing.Endpoint != "" {
		c.Tracing.Endpoint = other.Tracing.Endpoint
	}
	if other.Tracing.ServiceName != "" {
		c.Tracing.ServiceName = other.Tracing.ServiceName
	}

	// Storage
	if other.Storage.Path != "" {
		c.Storage.Path = other.Storage.Path
	}
	if other.Storage.Disabled {
		c.Storage.Disabled = true
	}
}

// mergeParams overlays non-zero text parameters.
func mergeParams(dst *campaign.TextParams, src campaign.TextParams) {
	if src.Capability != "" {
		dst.Capability = src.Capability
	}
	if src.Temperature != nil {
		t := *src.Temperature
		dst.Temperature = &t
	}
	if src.MaxTokens != 0 {
		dst.MaxTokens = src.MaxTokens
	}
}

func mergeRegistryConfig(dst, src *model.RegistryConfig) {
	if dst.Capabilities == nil {
		dst.Capabilities = make(map[string]*model.CapabilityConfig)
	}
	for k, v := range src.Capabilities {
		dst.Capabilities[k] = v
	}
	if dst.Endpoints == nil {
		dst.Endpoints = make(map[string]*model.EndpointConfig)
	}
	for k, v := range src.Endpoints {
		dst.Endpoints[k] = v
	}
	if src.Defaults != nil {
		dst.Defaults = src.Defaults
	}
}
