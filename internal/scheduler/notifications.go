package scheduler

import (
	"context"
	"errors"

	"github.com/namevault/namevault/internal/observability/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RunNotifications claims due milestone notifications and hands them to the
// dispatcher, returning how many went out. Rows that fail to dispatch stay
// pending for the next sweep.
func (e *Engine) RunNotifications(ctx context.Context) (int, error) {
	var jobErr error
	dispatched := 0

	for {
		if ctx.Err() != nil {
			return dispatched, errors.Join(jobErr, ctx.Err())
		}

		claimed := 0
		err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			now := e.clock.Now()
			batch, err := e.domainRepo.ClaimDueNotifications(ctx, tx, now, e.cfg.NotificationBatchSize)
			if err != nil {
				return err
			}
			claimed = len(batch)

			for _, n := range batch {
				if err := e.dispatcher.Dispatch(ctx, n); err != nil {
					jobErr = errors.Join(jobErr, err)
					e.log.Warn("notification dispatch failed",
						zap.Int64("notification_id", int64(n.ID)),
						zap.String("milestone", n.Milestone),
						zap.Error(err),
					)
					continue
				}
				sent, err := e.domainRepo.MarkNotificationSent(ctx, tx, n.ID, now)
				if err != nil {
					jobErr = errors.Join(jobErr, err)
					continue
				}
				if sent {
					dispatched++
					metrics.Engine().IncNotificationDispatched()
				}
			}
			return nil
		})
		if err != nil {
			return dispatched, errors.Join(jobErr, err)
		}
		if claimed < e.cfg.NotificationBatchSize {
			break
		}
	}

	if dispatched > 0 {
		e.log.Info("notification sweep complete", zap.Int("dispatched", dispatched))
	}
	return dispatched, jobErr
}
