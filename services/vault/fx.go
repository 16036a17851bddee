package vault

import (
	"businesspilot/pkg/config"

	"go.uber.org/fx"
)

func ProvideKey(cfg *config.Config) (Key, error) {
	return LoadKey(cfg.Credentials.KeyFile)
}

var Module = fx.Module("vault.module",
	fx.Provide(
		ProvideKey,
		NewCipher,
		NewService,
	),
)
