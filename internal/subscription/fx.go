package subscription

import (
	"github.com/namevault/namevault/internal/subscription/repository"
	"github.com/namevault/namevault/internal/subscription/service"
	"go.uber.org/fx"
)

var Module = fx.Module("subscription.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
