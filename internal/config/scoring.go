package config

import (
	"context"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/trunk/pkg/log"
)

// ScoringConfig carries the per-dimension weights for the relevance
// scorer. The weights need not sum to 1; the scorer normalizes.
type ScoringConfig struct {
	WeightIdentity   float64 `env:"TRUNK_SCORE_WEIGHT_IDENTITY" envDefault:"0.2"`
	WeightRecency    float64 `env:"TRUNK_SCORE_WEIGHT_RECENCY" envDefault:"0.15"`
	WeightSimilarity float64 `env:"TRUNK_SCORE_WEIGHT_SIMILARITY" envDefault:"0.25"`
	WeightSalience   float64 `env:"TRUNK_SCORE_WEIGHT_SALIENCE" envDefault:"0.15"`
	WeightFrequency  float64 `env:"TRUNK_SCORE_WEIGHT_FREQUENCY" envDefault:"0.1"`
	WeightGraph      float64 `env:"TRUNK_SCORE_WEIGHT_GRAPH" envDefault:"0.15"`

	// Recency half-life in hours for the recency dimension.
	RecencyHalfLifeH float64 `env:"TRUNK_SCORE_RECENCY_HALFLIFE_HOURS" envDefault:"168"`
}

func NewScoringConfig(ctx context.Context) *ScoringConfig {
	c := &ScoringConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse Scoring config")
	}
	return c
}
