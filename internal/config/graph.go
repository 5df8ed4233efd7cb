package config

import (
	"context"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/trunk/pkg/log"
)

type GraphConfig struct {
	// Hebbian update rate: new = old + (1-old)*rate.
	LearningRate float64 `env:"TRUNK_GRAPH_LEARNING_RATE" envDefault:"0.1"`

	// Per-day multiplicative decay and the pruning floor below which a
	// decayed link is deleted.
	DecayRate   float64 `env:"TRUNK_GRAPH_DECAY_RATE" envDefault:"0.95"`
	MinStrength float64 `env:"TRUNK_GRAPH_MIN_STRENGTH" envDefault:"0.05"`

	// Spread activation.
	MaxHops             int     `env:"TRUNK_GRAPH_MAX_HOPS" envDefault:"1"`
	ActivationThreshold float64 `env:"TRUNK_GRAPH_ACTIVATION_THRESHOLD" envDefault:"0.1"`
	ActivationLimit     int     `env:"TRUNK_GRAPH_ACTIVATION_LIMIT" envDefault:"50"`
	ChildActivation     float64 `env:"TRUNK_GRAPH_CHILD_ACTIVATION" envDefault:"0.8"`

	// Multi-path combine strategy: "max" (default) or "sum".
	Combine string `env:"TRUNK_GRAPH_COMBINE" envDefault:"max"`

	DecayInterval time.Duration `env:"TRUNK_GRAPH_DECAY_INTERVAL" envDefault:"24h"`
}

func NewGraphConfig(ctx context.Context) *GraphConfig {
	c := &GraphConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse Graph config")
	}
	return c
}
