package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/namevault/namevault/internal/cache"
	"github.com/namevault/namevault/internal/clock"
	"github.com/namevault/namevault/internal/config"
	"github.com/namevault/namevault/internal/customer"
	"github.com/namevault/namevault/internal/domains"
	"github.com/namevault/namevault/internal/logger"
	"github.com/namevault/namevault/internal/notify"
	"github.com/namevault/namevault/internal/order"
	"github.com/namevault/namevault/internal/processor"
	"github.com/namevault/namevault/internal/ratelimit"
	"github.com/namevault/namevault/internal/reconciliation"
	"github.com/namevault/namevault/internal/scheduler"
	"github.com/namevault/namevault/pkg/db"
	"go.uber.org/fx"
)

// Engine-only binary for deployments that split the API from the sweeps.
func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		cache.Module,

		domains.Module,
		customer.Module,
		processor.Module,
		order.Module,
		reconciliation.Module,
		notify.Module,
		ratelimit.Module,
		scheduler.Module,

		// No server module.
		fx.Invoke(scheduler.Run),
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
