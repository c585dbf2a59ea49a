package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// IncludeList supports either:
//
//	include: "/path/to/file.yaml"
//
// or:
//
//	include:
//	  - "/path/to/file.yaml"
//	  - "/path/to/dir"
type IncludeList []string

func (l *IncludeList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case 0:
		*l = nil
		return nil
	case yaml.ScalarNode:
		if value.Tag != "!!str" {
			return fmt.Errorf("include must be a string or list of strings")
		}
		*l = []string{value.Value}
		return nil
	case yaml.SequenceNode:
		out := make([]string, 0, len(value.Content))
		for _, item := range value.Content {
			if item.Kind != yaml.ScalarNode || item.Tag != "!!str" {
				return fmt.Errorf("include entries must be strings")
			}
			out = append(out, item.Value)
		}
		*l = out
		return nil
	default:
		return fmt.Errorf("include must be a string or list of strings")
	}
}

// RawConfig is one file as written. Nil fields were not set.
type RawConfig struct {
	Include           IncludeList        `yaml:"include"`
	Display           *string            `yaml:"display"`
	Socket            *string            `yaml:"socket"`
	Codec             *string            `yaml:"codec"`
	QueueSize         *int               `yaml:"queue_size"`
	ReconcileInterval *time.Duration     `yaml:"reconcile_interval"`
	Selection         RawSelectionConfig `yaml:"selection"`
	Logging           RawLoggingConfig   `yaml:"logging"`
}

type RawSelectionConfig struct {
	Clipboard *bool `yaml:"clipboard"`
	Primary   *bool `yaml:"primary"`
}

type RawLoggingConfig struct {
	Level  *string `yaml:"level"`
	Format *string `yaml:"format"`
}

// merge returns c with every field set in overlay replaced.
func (c RawConfig) merge(overlay RawConfig) RawConfig {
	out := c
	if overlay.Display != nil {
		out.Display = overlay.Display
	}
	if overlay.Socket != nil {
		out.Socket = overlay.Socket
	}
	if overlay.Codec != nil {
		out.Codec = overlay.Codec
	}
	if overlay.QueueSize != nil {
		out.QueueSize = overlay.QueueSize
	}
	if overlay.ReconcileInterval != nil {
		out.ReconcileInterval = overlay.ReconcileInterval
	}
	if overlay.Selection.Clipboard != nil {
		out.Selection.Clipboard = overlay.Selection.Clipboard
	}
	if overlay.Selection.Primary != nil {
		out.Selection.Primary = overlay.Selection.Primary
	}
	if overlay.Logging.Level != nil {
		out.Logging.Level = overlay.Logging.Level
	}
	if overlay.Logging.Format != nil {
		out.Logging.Format = overlay.Logging.Format
	}
	return out
}

// apply writes every set field onto cfg.
func (c RawConfig) apply(cfg *Config) {
	if c.Display != nil {
		cfg.Display = *c.Display
	}
	if c.Socket != nil {
		cfg.Socket = *c.Socket
	}
	if c.Codec != nil {
		cfg.Codec = *c.Codec
	}
	if c.QueueSize != nil {
		cfg.QueueSize = *c.QueueSize
	}
	if c.ReconcileInterval != nil {
		cfg.ReconcileInterval = *c.ReconcileInterval
	}
	if c.Selection.Clipboard != nil {
		cfg.Selection.Clipboard = *c.Selection.Clipboard
	}
	if c.Selection.Primary != nil {
		cfg.Selection.Primary = *c.Selection.Primary
	}
	if c.Logging.Level != nil {
		cfg.Logging.Level = *c.Logging.Level
	}
	if c.Logging.Format != nil {
		cfg.Logging.Format = *c.Logging.Format
	}
}
