package config

import (
	"errors"
	"fmt"
)

// ConfigError reports a setting or credential that prevents adpilot from
// building its services. It is detected before any campaign starts.
type ConfigError struct {
	// Key is the config key or environment variable at fault.
	Key     string
	Problem string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Key, e.Problem)
}

// IsConfigError reports whether err contains a *ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
