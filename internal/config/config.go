package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the effective bridge configuration.
type Config struct {
	// Display is the compatibility server display. Empty means $DISPLAY.
	Display string `yaml:"display"`
	// Socket is the method channel socket. Empty means the runtime default.
	Socket            string          `yaml:"socket"`
	Codec             string          `yaml:"codec"`
	QueueSize         int             `yaml:"queue_size"`
	ReconcileInterval time.Duration   `yaml:"reconcile_interval"`
	Selection         SelectionConfig `yaml:"selection"`
	Logging           LoggingConfig   `yaml:"logging"`
}

// SelectionConfig toggles bridging per selection target.
type SelectionConfig struct {
	Clipboard bool `yaml:"clipboard"`
	Primary   bool `yaml:"primary"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

const (
	DefaultCodec             = "json"
	DefaultQueueSize         = 256
	DefaultReconcileInterval = 10 * time.Second
)

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Codec:             DefaultCodec,
		QueueSize:         DefaultQueueSize,
		ReconcileInterval: DefaultReconcileInterval,
		Selection: SelectionConfig{
			Clipboard: true,
			Primary:   true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// ResolvedDisplay returns the configured display, falling back to $DISPLAY.
func (c *Config) ResolvedDisplay() string {
	if c == nil || strings.TrimSpace(c.Display) == "" {
		return os.Getenv("DISPLAY")
	}
	return c.Display
}

// Validate checks the effective configuration.
func (c *Config) Validate() error {
	switch c.Codec {
	case "json", "proto":
	default:
		return &ValidationError{Path: "codec", Err: fmt.Errorf("codec must be one of: json, proto")}
	}
	if c.QueueSize <= 0 {
		return &ValidationError{Path: "queue_size", Err: fmt.Errorf("queue_size must be > 0")}
	}
	if c.ReconcileInterval < 0 {
		return &ValidationError{Path: "reconcile_interval", Err: fmt.Errorf("reconcile_interval must be >= 0")}
	}
	if c.ReconcileInterval > 0 && c.ReconcileInterval < 100*time.Millisecond {
		return &ValidationError{Path: "reconcile_interval", Err: fmt.Errorf("reconcile_interval must be 0 or at least 100ms")}
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return &ValidationError{Path: "logging.level", Err: fmt.Errorf("level must be one of: debug, info, warn, error")}
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return &ValidationError{Path: "logging.format", Err: fmt.Errorf("format must be one of: text, json")}
	}
	return nil
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}

// ValidationError locates an invalid setting.
type ValidationError struct {
	Path   string
	Source Source
	Err    error
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Source.Kind == SourceFile && e.Source.File != "" && e.Source.Line > 0 {
		return fmt.Sprintf("%s: %s: %v", e.Source, e.Path, e.Err)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
