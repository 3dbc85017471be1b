// Package config loads modelgraph settings from defaults, a project config
// file, MODELGRAPH_* environment variables, and command-line flags.
package config

import (
	"fmt"
	"time"

	"github.com/leapstack-labs/modelgraph/internal/complexity"
	"github.com/leapstack-labs/modelgraph/internal/impact"
	"github.com/leapstack-labs/modelgraph/internal/validate"
)

// Output modes accepted by the output key.
var OutputModes = []string{"auto", "text", "markdown", "json"}

// Config holds all settings. ProjectDir comes from --project-dir,
// MODELGRAPH_PROJECT_DIR, the location of the config file, or an upward
// search from the working directory, in that order.
type Config struct {
	ProjectDir string                      `koanf:"-"`
	ModelsDir  string                      `koanf:"models_dir"`
	TestsDir   string                      `koanf:"tests_dir"`
	MacrosDir  string                      `koanf:"macros_dir"`
	StatePath  string                      `koanf:"state_path"`
	Workers    int                         `koanf:"workers"`
	Verbose    int                         `koanf:"verbose"`
	Output     string                      `koanf:"output"`
	Impact     ImpactConfig                `koanf:"impact"`
	Complexity ComplexityConfig            `koanf:"complexity"`
	Duplicates complexity.DuplicateOptions `koanf:"duplicates"`
	Lineage    LineageConfig               `koanf:"lineage"`
	Cache      CacheConfig                 `koanf:"cache"`
	Validation ValidateConfig              `koanf:"validate"`

	// ConfigFile is the file that was loaded, empty when none was found.
	ConfigFile string `koanf:"-"`
}

// ImpactConfig configures risk classification.
type ImpactConfig struct {
	Thresholds impact.Thresholds `koanf:"thresholds"`
}

// ComplexityConfig configures complexity scoring.
type ComplexityConfig struct {
	// Weights override the default per-feature weights.
	Weights   complexity.Weights `koanf:"weights"`
	Threshold float64            `koanf:"threshold"`
	Top       int                `koanf:"top"`
}

// LineageConfig bounds path enumeration.
type LineageConfig struct {
	MaxPaths int `koanf:"max_paths"`
}

// CacheConfig controls the result cache in the state store.
type CacheConfig struct {
	Enabled bool          `koanf:"enabled"`
	TTL     time.Duration `koanf:"ttl"`
}

// ValidateConfig selects validation rule groups. Empty means all.
type ValidateConfig struct {
	Rules []string `koanf:"rules"`
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	if !validOutput(c.Output) {
		return fmt.Errorf("invalid output %q (want one of %v)", c.Output, OutputModes)
	}
	if err := c.Impact.Thresholds.Validate(); err != nil {
		return fmt.Errorf("invalid impact thresholds: %w", err)
	}
	if err := c.Complexity.Weights.Validate(); err != nil {
		return fmt.Errorf("invalid complexity weights: %w", err)
	}
	if _, err := complexity.ParseMethod(string(c.Duplicates.Method)); err != nil {
		return fmt.Errorf("invalid duplicates method: %w", err)
	}
	if c.Duplicates.Threshold <= 0 || c.Duplicates.Threshold > 1 {
		return fmt.Errorf("duplicates threshold must be in (0, 1], got %g", c.Duplicates.Threshold)
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache ttl must not be negative, got %s", c.Cache.TTL)
	}
	if _, err := validate.ParseKinds(c.Validation.Rules); err != nil {
		return err
	}
	return nil
}

func validOutput(s string) bool {
	for _, m := range OutputModes {
		if s == m {
			return true
		}
	}
	return false
}
