package audit

import (
	"github.com/npclabs/storefront/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit",
	fx.Provide(service.New),
)
