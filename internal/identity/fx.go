package identity

import (
	"github.com/npclabs/storefront/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("identity",
	fx.Provide(func(cfg config.Config) (*Verifier, error) {
		return NewVerifier(cfg.Auth.JWTSecret)
	}),
)
