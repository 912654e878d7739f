package campaign

import (
	"errors"
	"fmt"
)

// DefaultMaxRetries is the number of revisions allowed before the image step
// is forced.
const DefaultMaxRetries = 3

// ImageParams configure the art director.
type ImageParams struct {
	// Style is appended to every image prompt. Empty uses DefaultImageStyle.
	Style string `yaml:"style,omitempty" json:"style,omitempty"`
}

// Config holds the options recognised by the engine.
type Config struct {
	MaxRetries int `yaml:"max_retries" json:"max_retries"`

	// MaxSteps caps folded steps per campaign. Zero derives it from MaxRetries.
	MaxSteps int `yaml:"max_steps,omitempty" json:"max_steps,omitempty"`

	Writer   TextParams  `yaml:"writer" json:"writer"`
	Reviewer TextParams  `yaml:"reviewer" json:"reviewer"`
	Image    ImageParams `yaml:"image" json:"image"`

	// OutputDir receives generated images.
	OutputDir string `yaml:"output_dir" json:"output_dir"`
}

// DefaultConfig returns the standard campaign configuration.
func DefaultConfig() Config {
	return Config{
		MaxRetries: DefaultMaxRetries,
		Writer:     DefaultWriterParams(),
		Reviewer:   DefaultReviewerParams(),
		OutputDir:  "output",
	}
}

// StepCeiling returns the effective step limit: MaxSteps, or
// 2*(MaxRetries+2)+1 when unset.
func (c Config) StepCeiling() int {
	if c.MaxSteps > 0 {
		return c.MaxSteps
	}
	return 2*(c.MaxRetries+2) + 1
}

// Validate checks the configuration.
func (c Config) Validate() error {
	var errs []error
	if c.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("max_retries must be >= 0, got %d", c.MaxRetries))
	}
	if c.MaxSteps < 0 {
		errs = append(errs, fmt.Errorf("max_steps must be >= 0, got %d", c.MaxSteps))
	}
	for name, p := range map[string]TextParams{"writer": c.Writer, "reviewer": c.Reviewer} {
		if p.Temperature != nil && (*p.Temperature < 0 || *p.Temperature > 2) {
			errs = append(errs, fmt.Errorf("%s temperature must be within [0, 2]", name))
		}
		if p.MaxTokens < 0 {
			errs = append(errs, fmt.Errorf("%s max_tokens must be >= 0", name))
		}
	}
	return errors.Join(errs...)
}
