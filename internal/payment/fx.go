package payment

import (
	"github.com/namevault/namevault/internal/payment/repository"
	"github.com/namevault/namevault/internal/payment/service"
	"github.com/namevault/namevault/internal/payment/webhook"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
	fx.Provide(webhook.NewParser),
)
