package config

import (
	"context"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/trunk/pkg/log"
)

// LLMConfig points at the OpenAI-compatible extraction/generation
// collaborator.
type LLMConfig struct {
	BaseURL string `env:"TRUNK_LLM_BASE_URL" envDefault:"http://localhost:11434"`
	APIKey  string `env:"TRUNK_LLM_API_KEY"`
	Model   string `env:"TRUNK_LLM_MODEL" envDefault:"llama3.1"`
}

func NewLLMConfig(ctx context.Context) *LLMConfig {
	c := &LLMConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse LLM config")
	}
	return c
}
