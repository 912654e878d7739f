package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
)

const (
	// ProjectConfigFile is the name of the project-level config file
	ProjectConfigFile = "adpilot.yaml"
	// UserConfigDir is the directory for user-level config
	UserConfigDir = ".config/adpilot"
	// UserConfigFile is the name of the user-level config file
	UserConfigFile = "config.yaml"
)

// envOverrides are runtime settings that may come from the environment.
type envOverrides struct {
	OutputDir  string `env:"ADPILOT_OUTPUT_DIR"`
	MaxRetries int    `env:"ADPILOT_MAX_RETRIES" envDefault:"-1"`
	NATSURL    string `env:"ADPILOT_NATS_URL"`
	Metrics    string `env:"ADPILOT_METRICS_ADDR"`
	OTel       string `env:"ADPILOT_OTEL_ENDPOINT"`
}

// Loader handles configuration loading with layered precedence
type Loader struct {
	logger *slog.Logger

	// explicit is a config file given on the command line; it replaces
	// the project config search.
	explicit string
}

// NewLoader creates a new configuration loader
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// WithFile makes the loader read path instead of searching for a project config.
func (l *Loader) WithFile(path string) *Loader {
	l.explicit = path
	return l
}

// Load loads configuration with layered precedence:
// 1. Default config
// 2. User config (~/.config/adpilot/config.yaml)
// 3. Project config (adpilot.yaml in current or parent directories, or the explicit file)
// 4. Environment variables (ADPILOT_*)
func (l *Loader) Load() (*Config, error) {
	config := DefaultConfig()

	// Load user config
	userConfigPath := l.userConfigPath()
	if userConfig, err := LoadFromFile(userConfigPath); err == nil {
		l.logger.Debug("Loaded user config", slog.String("path", userConfigPath))
		config.Merge(userConfig)
	} else if !errors.Is(err, fs.ErrNotExist) {
		l.logger.Warn("Failed to load user config", slog.String("path", userConfigPath), slog.String("error", err.Error()))
	}

	// Load project config
	if l.explicit != "" {
		projectConfig, err := LoadFromFile(l.explicit)
		if err != nil {
			return nil, &ConfigError{Key: l.explicit, Problem: err.Error()}
		}
		l.logger.Debug("Loaded config file", slog.String("path", l.explicit))
		config.Merge(projectConfig)
	} else if projectConfigPath := l.findProjectConfig(); projectConfigPath != "" {
		if projectConfig, err := LoadFromFile(projectConfigPath); err == nil {
			l.logger.Debug("Loaded project config", slog.String("path", projectConfigPath))
			config.Merge(projectConfig)
		} else {
			l.logger.Warn("Failed to load project config", slog.String("path", projectConfigPath), slog.String("error", err.Error()))
		}
	} else {
		l.logger.Debug("No project config found")
	}

	// Environment overrides
	var overrides envOverrides
	if err := env.Parse(&overrides); err != nil {
		return nil, &ConfigError{Key: "env", Problem: err.Error()}
	}
	applyOverrides(config, overrides)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func applyOverrides(c *Config, o envOverrides) {
	if o.OutputDir != "" {
		c.Campaign.OutputDir = o.OutputDir
	}
	if o.MaxRetries >= 0 {
		c.Campaign.MaxRetries = o.MaxRetries
	}
	if o.NATSURL != "" {
		c.NATS.URL = o.NATSURL
	}
	if o.Metrics != "" {
		c.Metrics.Addr = o.Metrics
	}
	if o.OTel != "" {
		c.Tracing.Endpoint = o.OTel
	}
}

// EnsureUserConfig creates the user config file with defaults if it doesn't exist
func (l *Loader) EnsureUserConfig() (string, error) {
	userConfigPath := l.userConfigPath()
	if userConfigPath == "" {
		return "", fmt.Errorf("cannot determine home directory")
	}

	if _, err := os.Stat(userConfigPath); err == nil {
		return userConfigPath, nil
	}

	if err := DefaultConfig().SaveToFile(userConfigPath); err != nil {
		return "", err
	}

	l.logger.Info("Created default user config", slog.String("path", userConfigPath))
	return userConfigPath, nil
}

// UserConfigPath returns the path of the user config file.
func (l *Loader) UserConfigPath() string {
	return l.userConfigPath()
}

// ProjectConfigPath returns the project config that Load would read, or "".
func (l *Loader) ProjectConfigPath() string {
	if l.explicit != "" {
		return l.explicit
	}
	return l.findProjectConfig()
}

// userConfigPath returns the path to the user config file
func (l *Loader) userConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, UserConfigDir, UserConfigFile)
}

// findProjectConfig searches for adpilot.yaml in current and parent directories
func (l *Loader) findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	dir := cwd
	for {
		configPath := filepath.Join(dir, ProjectConfigFile)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}
