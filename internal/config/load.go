package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Validator is implemented by configs that can check themselves.
type Validator interface {
	Validate() error
}

// Load reads a YAML file into target, expanding ${VAR} references from the
// environment first, then validates target if it implements Validator.
func Load[T any](filename string, target *T) error {
	if err := decode(filename, target); err != nil {
		return err
	}
	return validate(target)
}

func decode[T any](filename string, target *T) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", filename, err)
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), target); err != nil {
		return fmt.Errorf("parse config file %s: %w", filename, err)
	}
	return nil
}

// LoadFile returns the default config overlaid with filename.
// A gpio.lines mapping in the file replaces the default wiring as a whole.
// A missing file at DefaultPath is not an error: the defaults are used.
// A missing file anywhere else is.
func LoadFile(filename string) (*Config, error) {
	cfg := NewDefaultConfig()
	if filename == "" {
		return cfg, validate(cfg)
	}
	if _, err := os.Stat(filename); errors.Is(err, os.ErrNotExist) && filename == DefaultPath {
		return cfg, validate(cfg)
	}

	defaults := cfg.GPIO.Lines
	cfg.GPIO.Lines = nil
	if err := decode(filename, cfg); err != nil {
		return nil, err
	}
	if cfg.GPIO.Lines == nil {
		cfg.GPIO.Lines = defaults
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(target any) error {
	if v, ok := target.(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}
	}
	return nil
}
