package partner

import (
	"github.com/npclabs/storefront/internal/config"
	"github.com/npclabs/storefront/internal/partner/directory"
	"github.com/npclabs/storefront/internal/partner/domain"
	"github.com/npclabs/storefront/internal/partner/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("partner",
	fx.Provide(repository.ProvideCafeRepository),
	fx.Provide(repository.ProvideProfileRepository),
	fx.Provide(func(cfg config.Config, log *zap.Logger) domain.Directory {
		return directory.NewClient(cfg.PartnerAuth, log)
	}),
)
