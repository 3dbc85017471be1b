package config

import (
	"github.com/leapstack-labs/modelgraph/internal/complexity"
	"github.com/leapstack-labs/modelgraph/internal/impact"
	"github.com/leapstack-labs/modelgraph/internal/lineage"
	"github.com/leapstack-labs/modelgraph/internal/project"
)

// Default configuration values.
const (
	DefaultStatePath = ".modelgraph/state.db"
	DefaultOutput    = "auto"
	DefaultCacheTTL  = "24h"
	DefaultTop       = 10
)

// defaults returns the lowest configuration layer, keyed by dotted path.
func defaults() map[string]any {
	th := impact.DefaultThresholds()
	dup := complexity.DefaultDuplicateOptions()
	return map[string]any{
		"models_dir":               project.DefaultModelsDir,
		"tests_dir":                project.DefaultTestsDir,
		"macros_dir":               project.DefaultMacrosDir,
		"state_path":               DefaultStatePath,
		"workers":                  0,
		"verbose":                  0,
		"output":                   DefaultOutput,
		"impact.thresholds.low":    th.Low,
		"impact.thresholds.medium": th.Medium,
		"impact.thresholds.high":   th.High,
		"complexity.threshold":     complexity.DefaultAboveThreshold,
		"complexity.top":           DefaultTop,
		"duplicates.threshold":     dup.Threshold,
		"duplicates.method":        string(dup.Method),
		"duplicates.max_length":    dup.MaxLength,
		"lineage.max_paths":        lineage.DefaultMaxPaths,
		"cache.enabled":            true,
		"cache.ttl":                DefaultCacheTTL,
	}
}
