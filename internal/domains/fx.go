package domains

import (
	"github.com/namevault/namevault/internal/domains/repository"
	"github.com/namevault/namevault/internal/domains/service"
	"go.uber.org/fx"
)

var Module = fx.Module("domains.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
