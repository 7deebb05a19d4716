package tracker

import (
	"github.com/smallbiznis/faktura/internal/tracker/service"
	"go.uber.org/fx"
)

var Module = fx.Module("tracker.service",
	fx.Provide(service.NewService),
)
