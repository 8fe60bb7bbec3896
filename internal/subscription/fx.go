package subscription

import (
	"github.com/npclabs/storefront/internal/subscription/repository"
	"github.com/npclabs/storefront/internal/subscription/service"
	"go.uber.org/fx"
)

var Module = fx.Module("subscription",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
