package payment

import (
	"github.com/npclabs/storefront/internal/payment/repository"
	"github.com/npclabs/storefront/internal/payment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payment",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
