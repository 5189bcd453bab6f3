// Package notify delivers milestone notifications. The engine claims due rows
// and hands them to a Dispatcher; delivery goes over SMTP when configured and
// falls back to log-only otherwise.
package notify

import (
	"context"
	"time"

	"github.com/namevault/namevault/internal/config"
	domainsdomain "github.com/namevault/namevault/internal/domains/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Dispatcher interface {
	// Dispatch delivers a single milestone notification. An error leaves the
	// row pending so a later sweep retries it.
	Dispatch(ctx context.Context, n domainsdomain.Notification) error
}

type Params struct {
	fx.In

	Config config.Config
	DB     *gorm.DB
	Log    *zap.Logger
}

type logDispatcher struct {
	log *zap.Logger
}

func NewDispatcher(p Params) Dispatcher {
	if p.Config.Email.SMTPHost != "" {
		return newEmailDispatcher(p.Config.Email, p.DB, p.Log)
	}
	return &logDispatcher{log: p.Log.Named("notify.dispatcher")}
}

func (d *logDispatcher) Dispatch(ctx context.Context, n domainsdomain.Notification) error {
	d.log.Info("notification dispatched",
		zap.Int64("notification_id", int64(n.ID)),
		zap.Int64("domain_id", int64(n.DomainID)),
		zap.String("milestone", n.Milestone),
		zap.Time("scheduled_for", n.ScheduledFor.UTC()),
		zap.Time("delivered_at", time.Now().UTC()),
	)
	return nil
}

var Module = fx.Module("notify",
	fx.Provide(NewDispatcher),
)
