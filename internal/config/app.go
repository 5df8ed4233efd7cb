package config

import (
	"context"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/trunk/pkg/log"
)

type AppConfig struct {
	RuntimePath string `env:"TRUNK_RUNTIME_PATH" envDefault:".trunk"`

	// Thread names carrying persistent persona state. Identity items are
	// always eligible for assembly; value items feed the salience and
	// identity scoring dimensions.
	IdentityThread string `env:"TRUNK_IDENTITY_THREAD" envDefault:"identity"`
	ValuesThread   string `env:"TRUNK_VALUES_THREAD" envDefault:"values"`
}

func NewAppConfig(ctx context.Context) *AppConfig {
	c := &AppConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse App config")
	}
	return c
}

func (c AppConfig) GetRuntimePath() string {
	return c.RuntimePath
}

func (c AppConfig) GetDatabasePath() string {
	return filepath.Join(c.RuntimePath, "trunk.db")
}

func (c AppConfig) GetIdentityThread() string {
	return c.IdentityThread
}

func (c AppConfig) GetValuesThread() string {
	return c.ValuesThread
}
