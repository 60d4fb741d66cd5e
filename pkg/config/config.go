// Package config loads the empack settings: where component definitions,
// blueprints, raw override data and rendered datapackages live, plus the
// telemetry sections. Settings come from built-in defaults, an optional YAML
// file, and the environment, in that order; the environment wins.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/empack/empack/pkg/telemetry"
)

// Settings holds the directory layout and telemetry configuration.
type Settings struct {
	// ComponentsDir is the directory of component-type definition files.
	ComponentsDir string `yaml:"components_dir" envconfig:"COMPONENTS_DIR" validate:"required"`

	// BlueprintsDir is the directory of scenario/blueprint files.
	BlueprintsDir string `yaml:"blueprints_dir" envconfig:"BLUEPRINT_DIR" validate:"required"`

	// PackagesDir is the directory rendered datapackages are written to.
	PackagesDir string `yaml:"packages_dir" envconfig:"DATAPACKAGE_DIR" validate:"required"`

	// RawDir is the directory external override data is read from.
	RawDir string `yaml:"raw_dir" envconfig:"RAW_DIR"`

	// Telemetry configures logging, tracing and metrics.
	Telemetry telemetry.Config `yaml:"telemetry"`
}

// Default returns settings rooted in the current working directory.
func Default() Settings {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	return Settings{
		ComponentsDir: filepath.Join(cwd, "components"),
		BlueprintsDir: filepath.Join(cwd, "blueprints"),
		PackagesDir:   filepath.Join(cwd, "datapackages"),
		RawDir:        filepath.Join(cwd, "raw"),
		Telemetry:     telemetry.DefaultConfig(),
	}
}

// Load assembles settings from defaults, the optional YAML file at path
// (skipped when path is empty), and the environment.
func Load(path string) (Settings, error) {
	s := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return s, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &s); err != nil {
			return s, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	if err := envconfig.Process("", &s); err != nil {
		return s, fmt.Errorf("reading environment: %w", err)
	}

	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}

// Validate checks the settings against their struct tags.
func (s *Settings) Validate() error {
	if err := validator.New().Struct(s); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	return nil
}
