package product

import (
	"github.com/npclabs/storefront/internal/product/repository"
	"github.com/npclabs/storefront/internal/product/service"
	"go.uber.org/fx"
)

var Module = fx.Module("product.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
