package config

import (
	"context"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/trunk/pkg/log"
)

type ConsolidationConfig struct {
	// Tiering thresholds. A score exactly at a threshold takes the higher
	// tier.
	HighThreshold   float64 `env:"TRUNK_TIER_HIGH" envDefault:"0.8"`
	MediumThreshold float64 `env:"TRUNK_TIER_MEDIUM" envDefault:"0.5"`
	LowThreshold    float64 `env:"TRUNK_TIER_LOW" envDefault:"0.3"`

	// Item weights written per tier.
	HighWeight   float64 `env:"TRUNK_TIER_HIGH_WEIGHT" envDefault:"0.9"`
	MediumWeight float64 `env:"TRUNK_TIER_MEDIUM_WEIGHT" envDefault:"0.6"`
	LowWeight    float64 `env:"TRUNK_TIER_LOW_WEIGHT" envDefault:"0.3"`

	// Batch ceiling per run, bounds run duration.
	MaxFactsPerRun int `env:"TRUNK_CONSOLIDATION_BATCH" envDefault:"50"`

	Interval time.Duration `env:"TRUNK_CONSOLIDATION_INTERVAL" envDefault:"10m"`

	// Thread/module promoted facts land in.
	TargetThread string `env:"TRUNK_CONSOLIDATION_THREAD" envDefault:"episodic"`
	TargetModule string `env:"TRUNK_CONSOLIDATION_MODULE" envDefault:"facts"`

	// Rolling window of recent conversational concepts used as extra
	// activation seeds.
	ContextWindow int `env:"TRUNK_CONSOLIDATION_CONTEXT_WINDOW" envDefault:"16"`
}

func NewConsolidationConfig(ctx context.Context) *ConsolidationConfig {
	c := &ConsolidationConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse Consolidation config")
	}
	return c
}
