package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/namevault/namevault/internal/clock"
	"github.com/namevault/namevault/internal/config"
	domainsdomain "github.com/namevault/namevault/internal/domains/domain"
	"github.com/namevault/namevault/internal/observability/metrics"
	orderdomain "github.com/namevault/namevault/internal/order/domain"
	processordomain "github.com/namevault/namevault/internal/processor/domain"
	recondomain "github.com/namevault/namevault/internal/reconciliation/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Config    config.Config
	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Repo      recondomain.Repository
	OrderRepo orderdomain.Repository
	Domains   domainsdomain.Service
	Processor processordomain.Client
}

type Service struct {
	window    time.Duration
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	repo      recondomain.Repository
	orderRepo orderdomain.Repository
	domains   domainsdomain.Service
	processor processordomain.Client
}

func NewService(p Params) recondomain.Service {
	window := p.Config.Scheduler.ReconciliationWindow
	if window <= 0 {
		window = 24 * time.Hour
	}
	return &Service{
		window:    window,
		db:        p.DB,
		log:       p.Log.Named("reconciliation.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		repo:      p.Repo,
		orderRepo: p.OrderRepo,
		domains:   p.Domains,
		processor: p.Processor,
	}
}

func (s *Service) RunOnce(ctx context.Context) (*recondomain.Run, error) {
	started := s.clock.Now()
	run := &recondomain.Run{
		ID:          s.genID.Generate(),
		WindowStart: started.Add(-s.window),
		WindowEnd:   started,
		Status:      recondomain.RunStatusRunning,
		CreatedAt:   started,
		UpdatedAt:   started,
	}
	if err := s.repo.InsertRun(ctx, s.db, run); err != nil {
		return nil, err
	}

	external, err := s.processor.ListTransactions(ctx, run.WindowStart, run.WindowEnd)
	if err != nil {
		// Without the external ledger there is nothing trustworthy to
		// compare against.
		s.failRun(ctx, run, err)
		return run, err
	}

	internal, err := s.orderRepo.ListCompletedBetween(ctx, s.db, processordomain.Name, run.WindowStart, run.WindowEnd)
	if err != nil {
		s.failRun(ctx, run, err)
		return run, err
	}

	run.ExternalChecked = len(external)
	run.InternalChecked = len(internal)

	var checkErrs []string
	for _, txn := range external {
		if !txn.Settled() {
			continue
		}
		if err := s.checkTransaction(ctx, run, txn); err != nil {
			// One bad transaction must not sink the rest of the window.
			checkErrs = append(checkErrs, fmt.Sprintf("%s: %v", txn.TransactionID, err))
			s.log.Error("reconciliation check failed",
				zap.String("provider_transaction_id", txn.TransactionID),
				zap.Error(err),
			)
		}
	}
	if len(checkErrs) > 0 {
		message := strings.Join(checkErrs, "; ")
		run.ErrorMessage = &message
	}

	run.Status = recondomain.RunStatusCompleted
	run.ExecutionMs = s.clock.Now().Sub(started).Milliseconds()
	run.UpdatedAt = s.clock.Now()
	if err := s.repo.UpdateRun(ctx, s.db, run); err != nil {
		return nil, err
	}

	s.log.Info("reconciliation run completed",
		zap.Int64("run_id", int64(run.ID)),
		zap.Int("external_checked", run.ExternalChecked),
		zap.Int("internal_checked", run.InternalChecked),
		zap.Int("discrepancies_found", run.DiscrepanciesFound),
		zap.Int("discrepancies_resolved", run.DiscrepanciesResolved),
	)
	return run, nil
}

func (s *Service) checkTransaction(ctx context.Context, run *recondomain.Run, txn processordomain.LedgerTransaction) error {
	order, err := s.orderRepo.FindByProviderTransactionID(ctx, s.db, processordomain.Name, txn.TransactionID)
	if err != nil {
		return err
	}

	if order != nil {
		diff := order.Amount.Sub(txn.Amount).Abs()
		if diff.GreaterThan(recondomain.AmountEpsilon) {
			// Money disagreements are never auto-healed.
			return s.recordDiscrepancy(ctx, run, recondomain.DiscrepancyAmountMismatch, txn, order, nil, false)
		}
		return nil
	}

	// No completed order holds this capture. A pending order under the
	// reported checkout reference means the capture webhook never landed.
	if txn.ReferenceID != "" {
		pending, err := s.orderRepo.FindByProviderOrderID(ctx, s.db, processordomain.Name, txn.ReferenceID)
		if err != nil {
			return err
		}
		if pending != nil && pending.Status == orderdomain.StatusPending {
			return s.healStatusMismatch(ctx, run, txn, pending)
		}
		if pending != nil {
			// The checkout settled under a different transaction id, so this
			// capture has no order of its own. Flag it, do not touch the order.
			note := "order_settled_under_different_transaction_id"
			return s.recordDiscrepancy(ctx, run, recondomain.DiscrepancyMissingInDB, txn, pending, &note, false)
		}
	}

	return s.recordDiscrepancy(ctx, run, recondomain.DiscrepancyMissingInDB, txn, nil, nil, false)
}

// healStatusMismatch completes the stuck order and fulfils its domain, the
// same effect the lost webhook would have had.
func (s *Service) healStatusMismatch(ctx context.Context, run *recondomain.Run, txn processordomain.LedgerTransaction, order *orderdomain.Order) error {
	now := s.clock.Now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		completed, err := s.orderRepo.MarkCompleted(ctx, tx, order.ID, txn.TransactionID, now)
		if err != nil {
			return err
		}
		if !completed {
			// A late webhook beat us to it.
			return nil
		}
		if order.DomainID != nil {
			if _, err := s.domains.WithTx(tx).Activate(ctx, *order.DomainID, domainsdomain.ActorSystem); err != nil &&
				!errors.Is(err, domainsdomain.ErrInvalidTransition) {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	resolution := "order_completed"
	return s.recordDiscrepancy(ctx, run, recondomain.DiscrepancyStatusMismatch, txn, order, &resolution, true)
}

func (s *Service) recordDiscrepancy(ctx context.Context, run *recondomain.Run, kind recondomain.DiscrepancyType, txn processordomain.LedgerTransaction, order *orderdomain.Order, resolution *string, autoResolved bool) error {
	d := &recondomain.Discrepancy{
		ID:                    s.genID.Generate(),
		RunID:                 run.ID,
		Type:                  kind,
		ProviderTransactionID: txn.TransactionID,
		AutoResolved:          autoResolved,
		Resolution:            resolution,
		CreatedAt:             s.clock.Now(),
	}
	externalAmount := txn.Amount
	externalStatus := txn.Status
	d.ExternalAmount = &externalAmount
	d.ExternalStatus = &externalStatus
	if order != nil {
		orderID := order.ID
		internalAmount := order.Amount
		internalStatus := string(order.Status)
		d.OrderID = &orderID
		d.InternalAmount = &internalAmount
		d.InternalStatus = &internalStatus
	}

	if err := s.repo.InsertDiscrepancy(ctx, s.db, d); err != nil {
		return err
	}

	run.DiscrepanciesFound++
	if d.AutoResolved {
		run.DiscrepanciesResolved++
	}
	metrics.Engine().IncDiscrepancy(string(kind))
	s.log.Warn("reconciliation discrepancy",
		zap.String("type", string(kind)),
		zap.String("provider_transaction_id", txn.TransactionID),
		zap.Bool("auto_resolved", d.AutoResolved),
	)
	return nil
}

func (s *Service) failRun(ctx context.Context, run *recondomain.Run, cause error) {
	message := cause.Error()
	run.Status = recondomain.RunStatusFailed
	run.ErrorMessage = &message
	run.ExecutionMs = s.clock.Now().Sub(run.CreatedAt).Milliseconds()
	run.UpdatedAt = s.clock.Now()
	if err := s.repo.UpdateRun(ctx, s.db, run); err != nil {
		s.log.Error("failed to record reconciliation failure", zap.Error(err))
	}
}

func (s *Service) GetRun(ctx context.Context, id snowflake.ID) (*recondomain.Run, error) {
	run, err := s.repo.FindRun(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, recondomain.ErrRunNotFound
	}
	return run, nil
}

func (s *Service) ListRuns(ctx context.Context, limit int) ([]recondomain.Run, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.repo.ListRuns(ctx, s.db, limit)
}

func (s *Service) ListDiscrepancies(ctx context.Context, runID snowflake.ID) ([]recondomain.Discrepancy, error) {
	return s.repo.ListDiscrepancies(ctx, s.db, runID)
}
