package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/namevault/namevault/internal/cache"
	"github.com/namevault/namevault/internal/clock"
	"github.com/namevault/namevault/internal/config"
	"github.com/namevault/namevault/internal/customer"
	"github.com/namevault/namevault/internal/domains"
	"github.com/namevault/namevault/internal/logger"
	"github.com/namevault/namevault/internal/migration"
	"github.com/namevault/namevault/internal/notify"
	"github.com/namevault/namevault/internal/order"
	"github.com/namevault/namevault/internal/payment"
	"github.com/namevault/namevault/internal/processor"
	"github.com/namevault/namevault/internal/ratelimit"
	"github.com/namevault/namevault/internal/reconciliation"
	"github.com/namevault/namevault/internal/scheduler"
	"github.com/namevault/namevault/internal/server"
	"github.com/namevault/namevault/internal/subscription"
	"github.com/namevault/namevault/internal/transfer"
	"github.com/namevault/namevault/pkg/db"
	"go.uber.org/fx"
)

// The monolith: HTTP API plus the background engine in one process.
func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		cache.Module,
		migration.Module,

		customer.Module,
		domains.Module,
		processor.Module,
		order.Module,
		subscription.Module,
		payment.Module,
		reconciliation.Module,
		transfer.Module,
		notify.Module,
		ratelimit.Module,
		scheduler.Module,
		server.Module,

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
