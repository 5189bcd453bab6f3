package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	domainsdomain "github.com/namevault/namevault/internal/domains/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// sweepPhases is the order the lifecycle sweep visits phases. Later phases
// first, so a domain never traverses two phases in a single run even when
// both deadlines are past.
var sweepPhases = []domainsdomain.Status{
	domainsdomain.StatusPendingDelete,
	domainsdomain.StatusAuction,
	domainsdomain.StatusRegistryHold,
	domainsdomain.StatusRedemption,
	domainsdomain.StatusGrace,
	domainsdomain.StatusActive,
}

// LifecycleSummary reports one lifecycle sweep: when it ran, every domain it
// moved, how many claims were lost to a concurrent writer and which stages
// reported errors.
type LifecycleSummary struct {
	Timestamp            time.Time          `json:"timestamp"`
	TransitionsProcessed int                `json:"transitions_processed"`
	NotificationsSent    int                `json:"notifications_sent"`
	Skipped              int                `json:"skipped"`
	Moved                map[string]int     `json:"moved"`
	Transitions          []TransitionRecord `json:"transitions"`
	Errors               []SweepError       `json:"errors"`
}

// TransitionRecord is one domain moved by the sweep.
type TransitionRecord struct {
	DomainID      snowflake.ID `json:"domain_id"`
	FQDN          string       `json:"fqdn"`
	CurrentStatus string       `json:"current_status"`
	NewStatus     string       `json:"new_status"`
	Reason        string       `json:"reason"`
}

// SweepError names the stage that failed; the sweep carries on past it.
type SweepError struct {
	Stage string `json:"stage"`
	Error string `json:"error"`
}

// RunLifecycle sweeps every delinquency phase, moving domains whose phase
// deadline has elapsed one step down the expiry path. Claims use SKIP LOCKED
// and moves are CAS transitions, so concurrent sweeps partition the work.
func (e *Engine) RunLifecycle(ctx context.Context) (*LifecycleSummary, error) {
	summary := &LifecycleSummary{
		Timestamp:   e.clock.Now(),
		Moved:       make(map[string]int),
		Transitions: []TransitionRecord{},
		Errors:      []SweepError{},
	}
	var jobErr error

	for _, phase := range sweepPhases {
		next, ok := domainsdomain.NextPhase(phase)
		if !ok {
			continue
		}
		if err := e.sweepPhase(ctx, phase, next, summary); err != nil {
			jobErr = errors.Join(jobErr, err)
		}
	}

	if summary.TransitionsProcessed > 0 || summary.Skipped > 0 {
		e.log.Info("lifecycle sweep complete",
			zap.Int("processed", summary.TransitionsProcessed),
			zap.Int("skipped", summary.Skipped),
			zap.Any("moved", summary.Moved),
		)
	}
	return summary, jobErr
}

func (e *Engine) sweepPhase(ctx context.Context, phase, next domainsdomain.Status, summary *LifecycleSummary) error {
	edge := fmt.Sprintf("%s->%s", phase, next)
	var jobErr error

	for {
		if ctx.Err() != nil {
			return errors.Join(jobErr, ctx.Err())
		}

		claimed := 0
		err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			now := e.clock.Now()
			batch, err := e.domainRepo.ClaimDueForPhase(ctx, tx, phase, now, e.cfg.BatchSize)
			if err != nil {
				return err
			}
			claimed = len(batch)

			domains := e.domains.WithTx(tx)
			for _, d := range batch {
				const reason = "phase deadline elapsed"
				moved, err := domains.Transition(ctx, domainsdomain.TransitionRequest{
					DomainID: d.ID,
					From:     phase,
					To:       next,
					Actor:    domainsdomain.ActorScheduler,
					Note:     reason,
					Now:      now,
				})
				if err != nil {
					jobErr = errors.Join(jobErr, err)
					summary.Errors = append(summary.Errors, SweepError{Stage: edge, Error: err.Error()})
					e.log.Error("lifecycle transition failed",
						zap.String("edge", edge),
						zap.Int64("domain_id", int64(d.ID)),
						zap.Error(err),
					)
					continue
				}
				if moved {
					summary.TransitionsProcessed++
					summary.Moved[edge]++
					summary.Transitions = append(summary.Transitions, TransitionRecord{
						DomainID:      d.ID,
						FQDN:          d.FQDN,
						CurrentStatus: string(phase),
						NewStatus:     string(next),
						Reason:        reason,
					})
				} else {
					// A rescue or another sweep got there first.
					summary.Skipped++
				}
			}
			return nil
		})
		if err != nil {
			summary.Errors = append(summary.Errors, SweepError{Stage: edge, Error: err.Error()})
			return errors.Join(jobErr, err)
		}
		if claimed < e.cfg.BatchSize {
			return jobErr
		}
	}
}
