package transfer

import (
	"github.com/namevault/namevault/internal/transfer/repository"
	"github.com/namevault/namevault/internal/transfer/service"
	"go.uber.org/fx"
)

var Module = fx.Module("transfer.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
