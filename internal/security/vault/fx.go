package vault

import (
	"github.com/npclabs/storefront/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("security.vault",
	fx.Provide(func(cfg config.Config) (Provider, error) {
		return New(cfg.Vault.AESKey)
	}),
)
