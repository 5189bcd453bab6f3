package reconciliation

import (
	"github.com/namevault/namevault/internal/reconciliation/repository"
	"github.com/namevault/namevault/internal/reconciliation/service"
	"go.uber.org/fx"
)

var Module = fx.Module("reconciliation.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
