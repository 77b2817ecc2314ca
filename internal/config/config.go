// Package config loads and validates the planner configuration: facet
// definitions, policy constraints, and the allocation constraint set, from
// a YAML file with ${VAR} environment interpolation.
package config

import (
	"github.com/evalforge/coverplan/internal/allocation"
	"github.com/evalforge/coverplan/internal/facet"
	"github.com/evalforge/coverplan/internal/taxonomy"
	"github.com/evalforge/coverplan/internal/types"
)

// Config is the full planner configuration file.
type Config struct {
	// Facets defines the combination grid.
	Facets facet.Config `mapstructure:"facets" yaml:"facets"`

	// Policy drives quarantine and jurisdiction blocking.
	Policy taxonomy.PolicyConstraint `mapstructure:"policy" yaml:"policy"`

	// Constraints is the allocation configuration.
	Constraints allocation.ConstraintConfig `mapstructure:"constraints" yaml:"constraints" validate:"required"`

	// LeafOnly restricts stratification to leaf concepts.
	LeafOnly bool `mapstructure:"leaf_only" yaml:"leaf_only"`

	// SizeWeights optionally overrides the unit size weight per concept ID.
	SizeWeights map[string]float64 `mapstructure:"size_weights" yaml:"size_weights,omitempty"`

	// Logging configures the structured logger.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"omitempty,oneof=text json"`
}

// DefaultConfig returns a minimal working configuration: a uniform
// allocation over leaf concepts with no facets.
func DefaultConfig() *Config {
	return &Config{
		Constraints: allocation.ConstraintConfig{
			TotalItems: 100,
			Strategy:   types.StrategyUniform,
		},
		LeafOnly: true,
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
