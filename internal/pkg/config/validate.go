package config

import (
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// weightTolerance 가중치 합 허용 오차
const weightTolerance = 1e-6

// Validate checks struct tags and the weight tables.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Database.Enabled && c.Database.URL == "" {
		return fmt.Errorf("database.url is required when database is enabled")
	}
	if c.Market.Source == "postgres" && !c.Database.Enabled {
		return fmt.Errorf("market.source=postgres requires the database")
	}
	return c.Engine.Validate()
}

// Validate checks every engine section.
func (e *EngineConfig) Validate() error {
	if err := e.Fusion.Validate(); err != nil {
		return err
	}
	if err := e.Ensemble.Validate(); err != nil {
		return err
	}
	if err := e.Risk.Validate(); err != nil {
		return err
	}
	return e.Position.Validate()
}

// Validate checks thresholds and that the strategy weights sum to 1.
func (f FusionConfig) Validate() error {
	if err := validate.Struct(f); err != nil {
		return err
	}
	return validateWeights("fusion", f.Weights)
}

// Validate checks cutoffs and that the model weights sum to 1.
func (e EnsembleConfig) Validate() error {
	if err := validate.Struct(e); err != nil {
		return err
	}
	return validateWeights("ensemble", e.Weights)
}

// Validate checks the risk thresholds.
func (r RiskConfig) Validate() error {
	return validate.Struct(r)
}

// Validate checks sizing limits and loop intervals.
func (p PositionConfig) Validate() error {
	return validate.Struct(p)
}

func validateWeights(section string, weights map[string]float64) error {
	if len(weights) == 0 {
		return fmt.Errorf("%s.weights: empty weight table", section)
	}
	var sum float64
	for name, w := range weights {
		if w < 0 || math.IsNaN(w) {
			return fmt.Errorf("%s.weights.%s: negative weight %v", section, name, w)
		}
		sum += w
	}
	if math.Abs(sum-1) > weightTolerance {
		return fmt.Errorf("%s.weights: sum %.6f, want 1", section, sum)
	}
	return nil
}
