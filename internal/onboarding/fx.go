package onboarding

import (
	"github.com/npclabs/storefront/internal/onboarding/service"
	"go.uber.org/fx"
)

var Module = fx.Module("onboarding",
	fx.Provide(service.New),
)
