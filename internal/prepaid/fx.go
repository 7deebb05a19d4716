package prepaid

import (
	"github.com/smallbiznis/faktura/internal/prepaid/service"
	"go.uber.org/fx"
)

var Module = fx.Module("prepaid.service",
	fx.Provide(service.NewService),
)
