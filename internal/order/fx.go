package order

import (
	"github.com/namevault/namevault/internal/order/repository"
	"github.com/namevault/namevault/internal/order/service"
	"go.uber.org/fx"
)

var Module = fx.Module("order.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
