package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/hyprpal/autotile/internal/layout"
)

// Config is the optional configuration document.
type Config struct {
	Debug      bool          `yaml:"debug"`
	Workspaces WorkspaceList `yaml:"workspaces"`
}

// WorkspaceList holds workspace numbers as strings, the form they are matched in.
type WorkspaceList []string

// UnmarshalYAML accepts a sequence of numbers or strings, or a single comma-separated scalar.
func (w *WorkspaceList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		if value.Tag == "!!null" {
			*w = nil
			return nil
		}
		*w = SplitWorkspaces(value.Value)
		return nil
	case yaml.SequenceNode:
		list := make(WorkspaceList, 0, len(value.Content))
		for _, item := range value.Content {
			if item.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: workspace must be a scalar", item.Line)
			}
			list = append(list, strings.TrimSpace(item.Value))
		}
		*w = list
		return nil
	default:
		return fmt.Errorf("line %d: workspaces must be a list", value.Line)
	}
}

var workspaceNumber = regexp.MustCompile(`^-?[0-9]+$`)

// DefaultPath returns ~/.config/autotile/config.yaml, honoring XDG_CONFIG_HOME.
func DefaultPath() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "autotile", "config.yaml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "autotile", "config.yaml")
}

// Load reads and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// LoadOptional behaves like Load but returns an empty config when the file does not exist.
func LoadOptional(path string) (*Config, []byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &Config{}, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, nil, err
	}
	return cfg, data, nil
}

// Parse decodes and validates a configuration document.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate performs basic sanity checks.
func (c *Config) Validate() error {
	err := validation.ValidateStruct(c,
		validation.Field(&c.Workspaces, validation.Each(
			validation.Required,
			validation.Match(workspaceNumber).Error("must be a workspace number"),
		)),
	)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	seen := make(map[string]struct{}, len(c.Workspaces))
	for _, ws := range c.Workspaces {
		if _, exists := seen[ws]; exists {
			return fmt.Errorf("invalid config: duplicate workspace %s", ws)
		}
		seen[ws] = struct{}{}
	}
	return nil
}

// WithOverrides returns a copy with flag values applied. Flags can only turn
// debug on; a non-empty workspace list replaces the file's list.
func (c Config) WithOverrides(debug bool, workspaces []string) Config {
	out := c
	out.Debug = c.Debug || debug
	if len(workspaces) > 0 {
		out.Workspaces = append(WorkspaceList(nil), workspaces...)
	} else {
		out.Workspaces = append(WorkspaceList(nil), c.Workspaces...)
	}
	return out
}

// Scope converts the workspace list into a decision scope.
func (c Config) Scope() layout.Scope {
	return layout.NewScope(c.Workspaces)
}

// SplitWorkspaces splits comma or space separated workspace identifiers.
func SplitWorkspaces(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	if len(fields) == 0 {
		return nil
	}
	return fields
}
