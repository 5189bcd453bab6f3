package customer

import (
	"github.com/namevault/namevault/internal/customer/repository"
	"github.com/namevault/namevault/internal/customer/service"
	"go.uber.org/fx"
)

var Module = fx.Module("customer.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
