// Package scheduler drives the background engine: the lifecycle sweep that
// pushes delinquent domains down the expiry path, the notification dispatch
// sweep and the daily ledger reconciliation. Every job is idempotent, so
// overlapping runs from multiple replicas degrade to no-ops rather than
// double-moves.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/namevault/namevault/internal/clock"
	domainsdomain "github.com/namevault/namevault/internal/domains/domain"
	"github.com/namevault/namevault/internal/notify"
	"github.com/namevault/namevault/internal/observability/metrics"
	"github.com/namevault/namevault/internal/ratelimit"
	recondomain "github.com/namevault/namevault/internal/reconciliation/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidConfig = errors.New("scheduler_invalid_config")

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Domains    domainsdomain.Service
	DomainRepo domainsdomain.Repository
	Recon      recondomain.Service
	Dispatcher notify.Dispatcher
	Locker     *ratelimit.Locker `optional:"true"`
	Config     Config            `optional:"true"`
}

type Engine struct {
	db         *gorm.DB
	log        *zap.Logger
	cfg        Config
	genID      *snowflake.Node
	clock      clock.Clock
	domains    domainsdomain.Service
	domainRepo domainsdomain.Repository
	recon      recondomain.Service
	dispatcher notify.Dispatcher
	locker     *ratelimit.Locker
}

func New(p Params) (*Engine, error) {
	if p.DB == nil || p.Log == nil || p.GenID == nil || p.Clock == nil || p.Domains == nil || p.DomainRepo == nil || p.Recon == nil || p.Dispatcher == nil {
		return nil, ErrInvalidConfig
	}
	return &Engine{
		db:         p.DB,
		log:        p.Log.Named("scheduler").With(zap.String("component", "engine")),
		cfg:        p.Config.withDefaults(),
		genID:      p.GenID,
		clock:      p.Clock,
		domains:    p.Domains,
		domainRepo: p.DomainRepo,
		recon:      p.Recon,
		dispatcher: p.Dispatcher,
		locker:     p.Locker,
	}, nil
}

func (e *Engine) runJob(parent context.Context, name string, fn func(ctx context.Context) error) error {
	start := e.clock.Now()
	ctx, cancel := context.WithTimeout(parent, e.cfg.JobTimeout)
	defer cancel()

	// Best-effort lease so only one replica sweeps a job per interval. The
	// row-level claims keep concurrent runs correct if the lease is skipped.
	lockKey := "engine:job:" + name
	token, held, err := e.locker.TryLock(ctx, lockKey, e.cfg.JobTimeout)
	if err != nil {
		e.log.Warn("job lease unavailable, running unlocked", zap.String("job", name), zap.Error(err))
	} else if !held {
		e.log.Debug("job lease held elsewhere, skipping", zap.String("job", name))
		return nil
	}
	defer func() {
		if token != "" {
			_ = e.locker.Release(context.WithoutCancel(ctx), lockKey, token)
		}
	}()

	runID := e.genID.Generate().String()
	log := e.log.With(zap.String("job", name), zap.String("run_id", runID))
	log.Info("engine.job.start")

	m := metrics.Engine()
	m.IncJobRun(name)

	err = fn(ctx)
	m.ObserveJobDuration(name, time.Since(start))
	log.Info("engine.job.finish", zap.Int64("duration_ms", time.Since(start).Milliseconds()))
	if err == nil {
		return nil
	}

	m.IncJobError(name)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		// Soft timeout: the next interval picks up where this one stopped.
		log.Warn("job timed out", zap.Duration("timeout", e.cfg.JobTimeout), zap.Error(err))
		return nil
	}
	return fmt.Errorf("%s: %w", name, err)
}

func (e *Engine) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name string
		Run  func(context.Context) error
	}{
		{"lifecycle_transitions", func(ctx context.Context) error {
			_, runErr := e.RunLifecycle(ctx)
			return runErr
		}},
		{"notifications", func(ctx context.Context) error {
			_, runErr := e.RunNotifications(ctx)
			return runErr
		}},
		{"reconciliation", e.RunReconciliation},
	}

	for _, job := range jobs {
		if !e.isJobEnabled(job.Name) {
			continue
		}
		name := job.Name
		run := job.Run
		err = errors.Join(err, e.runJob(parent, name, run))
	}

	return err
}

func (e *Engine) RunForever(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := e.RunOnce(ctx); err != nil {
			e.log.Warn("engine run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (e *Engine) isJobEnabled(jobName string) bool {
	// Empty EnabledJobs means every job runs (monolith mode).
	if len(e.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range e.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}
