// Package config merges plugin-supplied configuration into editor settings.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned when merged configuration fails validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// DefaultMaxEventActionsNesting is the nesting bound used when no provider sets one.
const DefaultMaxEventActionsNesting = 5

// Config holds the settings of the event-action core.
type Config struct {
	MaxEventActionsNesting int `mapstructure:"maxEventActionsNesting" json:"maxEventActionsNesting" yaml:"maxEventActionsNesting"`

	// Extra keeps every key the core does not interpret, for plugins.
	Extra map[string]any `mapstructure:",remain" json:"-" yaml:"-"`
}

// Provider contributes one configuration fragment.
type Provider interface {
	Config() map[string]any
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func() map[string]any

// Config calls f.
func (f ProviderFunc) Config() map[string]any { return f() }

// Static returns a provider for a fixed fragment.
func Static(values map[string]any) Provider {
	return ProviderFunc(func() map[string]any { return values })
}

// Defaults returns the base fragment every merge starts from.
func Defaults() map[string]any {
	return map[string]any{
		"maxEventActionsNesting": DefaultMaxEventActionsNesting,
	}
}

// Merge deep-merges every provider's fragment, in order, onto the defaults
// and decodes the result. Later providers win.
func Merge(providers ...Provider) (Config, error) {
	merged := Defaults()
	for i, p := range providers {
		if p == nil {
			continue
		}
		fragment := p.Config()
		if len(fragment) == 0 {
			continue
		}
		if err := mergo.Merge(&merged, fragment, mergo.WithOverride); err != nil {
			return Config{}, fmt.Errorf("failed to merge config provider %d: %w", i, err)
		}
	}
	return Decode(merged)
}

// Decode turns a loose map into a validated Config.
func Decode(values map[string]any) (Config, error) {
	var cfg Config
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return Config{}, fmt.Errorf("failed to build config decoder: %w", err)
	}
	if err := dec.Decode(values); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings the core relies on.
func (c Config) Validate() error {
	if c.MaxEventActionsNesting < 1 {
		return fmt.Errorf("%w: maxEventActionsNesting must be at least 1, got %d", ErrInvalidConfig, c.MaxEventActionsNesting)
	}
	return nil
}

// FileProvider reads a YAML or JSON fragment from path.
// A missing file contributes nothing.
func FileProvider(path string) (Provider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Static(nil), nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	values := map[string]any{}
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &values); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	} else {
		if err := yaml.Unmarshal(data, &values); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	}
	return Static(values), nil
}
