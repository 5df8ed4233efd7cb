package config

import (
	"context"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/trunk/pkg/log"
)

type AssemblerConfig struct {
	// Token budgets per depth level. Smallest for L1, largest for L3.
	BudgetL1 int `env:"TRUNK_BUDGET_L1" envDefault:"256"`
	BudgetL2 int `env:"TRUNK_BUDGET_L2" envDefault:"1024"`
	BudgetL3 int `env:"TRUNK_BUDGET_L3" envDefault:"4096"`

	// Candidate pool size fetched before budget packing.
	CandidateLimit int `env:"TRUNK_ASSEMBLER_CANDIDATES" envDefault:"100"`
}

func NewAssemblerConfig(ctx context.Context) *AssemblerConfig {
	c := &AssemblerConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse Assembler config")
	}
	return c
}

// BudgetFor returns the token budget for a depth level.
func (c AssemblerConfig) BudgetFor(level int) int {
	switch {
	case level <= 1:
		return c.BudgetL1
	case level == 2:
		return c.BudgetL2
	default:
		return c.BudgetL3
	}
}
