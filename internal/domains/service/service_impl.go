package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/namevault/namevault/internal/clock"
	domainsdomain "github.com/namevault/namevault/internal/domains/domain"
	"github.com/namevault/namevault/internal/domains/guard"
	"github.com/namevault/namevault/internal/observability/metrics"
	"github.com/namevault/namevault/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domainsdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domainsdomain.Repository
}

func NewService(p Params) domainsdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("domains.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) WithTx(tx *gorm.DB) domainsdomain.Service {
	copied := *s
	copied.db = tx
	return &copied
}

func (s *Service) Create(ctx context.Context, req domainsdomain.CreateRequest) (*domainsdomain.Domain, error) {
	fqdn := strings.ToLower(strings.TrimSpace(req.FQDN))
	if fqdn == "" || !strings.Contains(fqdn, ".") {
		return nil, domainsdomain.ErrInvalidFQDN
	}

	status := req.Status
	if status == "" {
		status = domainsdomain.StatusPending
	}

	now := s.clock.Now()
	d := &domainsdomain.Domain{
		ID:             s.genID.Generate(),
		FQDN:           fqdn,
		Status:         status,
		IsTransferable: true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if req.CustomerID != 0 {
		id := req.CustomerID
		d.CustomerID = &id
	}
	if !req.ExpiresAt.IsZero() {
		exp := req.ExpiresAt.UTC()
		d.ExpiresAt = &exp
	}

	if err := s.repo.Insert(ctx, s.db, d); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domainsdomain.ErrDomainExists
		}
		return nil, err
	}

	if d.ExpiresAt != nil {
		if err := s.ScheduleMilestones(ctx, d.ID, *d.ExpiresAt); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (s *Service) Transition(ctx context.Context, req domainsdomain.TransitionRequest) (bool, error) {
	if err := guard.EnsureTransition(req.From, req.To, req.Actor); err != nil {
		return false, domainsdomain.ErrInvalidTransition
	}

	d, err := s.repo.FindByID(ctx, s.db, req.DomainID)
	if err != nil {
		return false, err
	}
	if d == nil {
		return false, domainsdomain.ErrNotFound
	}

	now := req.Now
	if now.IsZero() {
		now = s.clock.Now()
	}

	update := domainsdomain.TransitionUpdate{}
	if column, deadline, ok := nextDeadline(d, req.To, now); ok {
		update.DeadlineColumn = column
		update.Deadline = &deadline
	}
	if req.To == domainsdomain.StatusReleased {
		update.ClearOwner = true
	}
	if isHold(req.To) && req.Note != "" {
		reason := req.Note
		update.SuspensionReason = &reason
	}

	swapped := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.repo.CASTransition(ctx, tx, req.DomainID, req.From, req.To, update, now)
		if err != nil {
			return err
		}
		if !ok {
			// Someone else moved the domain first. The work item is stale,
			// not failed.
			return nil
		}
		swapped = true

		event := &domainsdomain.LifecycleEvent{
			ID:        s.genID.Generate(),
			DomainID:  req.DomainID,
			OldStatus: req.From,
			NewStatus: req.To,
			Actor:     req.Actor,
			CreatedAt: now,
		}
		if req.Note != "" {
			note := req.Note
			event.Note = &note
		}
		return s.repo.InsertEvent(ctx, tx, event)
	})
	if err != nil {
		return false, err
	}

	if swapped {
		metrics.Engine().IncTransition(string(req.From), string(req.To))
		s.log.Info("domain transitioned",
			zap.Int64("domain_id", int64(req.DomainID)),
			zap.String("from", string(req.From)),
			zap.String("to", string(req.To)),
			zap.String("actor", string(req.Actor)),
		)
	}
	return swapped, nil
}

// nextDeadline derives the deadline for the window that opens when the domain
// enters to. Each window is anchored on the previous window's deadline rather
// than wall-clock now, so a lagging sweep does not stretch the schedule.
func nextDeadline(d *domainsdomain.Domain, to domainsdomain.Status, now time.Time) (string, time.Time, bool) {
	days, ok := domainsdomain.PhaseDurationDays(to)
	if !ok {
		return "", time.Time{}, false
	}

	var base *time.Time
	var column string
	switch to {
	case domainsdomain.StatusGrace:
		base, column = d.ExpiresAt, "grace_until"
	case domainsdomain.StatusRedemption:
		base, column = d.GraceUntil, "redemption_until"
	case domainsdomain.StatusRegistryHold:
		base, column = d.RedemptionUntil, "registry_hold_until"
	case domainsdomain.StatusAuction:
		base, column = d.RegistryHoldUntil, "auction_until"
	case domainsdomain.StatusPendingDelete:
		base, column = d.AuctionUntil, "pending_delete_until"
	default:
		return "", time.Time{}, false
	}

	anchor := now
	if base != nil {
		anchor = *base
	}
	return column, anchor.AddDate(0, 0, days), true
}

func (s *Service) Activate(ctx context.Context, domainID snowflake.ID, actor domainsdomain.Actor) (bool, error) {
	d, err := s.repo.FindByID(ctx, s.db, domainID)
	if err != nil {
		return false, err
	}
	if d == nil {
		return false, domainsdomain.ErrNotFound
	}
	if d.Status == domainsdomain.StatusActive {
		return false, nil
	}
	return s.Transition(ctx, domainsdomain.TransitionRequest{
		DomainID: domainID,
		From:     domainsdomain.StatusPending,
		To:       domainsdomain.StatusActive,
		Actor:    actor,
	})
}

func (s *Service) MarkFailed(ctx context.Context, domainID snowflake.ID, actor domainsdomain.Actor, note string) error {
	_, err := s.Transition(ctx, domainsdomain.TransitionRequest{
		DomainID: domainID,
		From:     domainsdomain.StatusPending,
		To:       domainsdomain.StatusFailed,
		Actor:    actor,
		Note:     note,
	})
	return err
}

func (s *Service) Hold(ctx context.Context, domainID snowflake.ID, hold domainsdomain.Status, actor domainsdomain.Actor, note string) error {
	if !isHold(hold) {
		return domainsdomain.ErrInvalidTransition
	}
	d, err := s.repo.FindByID(ctx, s.db, domainID)
	if err != nil {
		return err
	}
	if d == nil {
		return domainsdomain.ErrNotFound
	}
	_, err = s.Transition(ctx, domainsdomain.TransitionRequest{
		DomainID: domainID,
		From:     d.Status,
		To:       hold,
		Actor:    actor,
		Note:     note,
	})
	return err
}

func isHold(status domainsdomain.Status) bool {
	switch status {
	case domainsdomain.StatusDisputeHold, domainsdomain.StatusFraudHold, domainsdomain.StatusUnpaidHold:
		return true
	default:
		return false
	}
}

func (s *Service) Renew(ctx context.Context, domainID snowflake.ID, extendDays int, actor domainsdomain.Actor) (*domainsdomain.Domain, error) {
	if extendDays <= 0 {
		extendDays = 365
	}

	d, err := s.repo.FindByID(ctx, s.db, domainID)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, domainsdomain.ErrNotFound
	}

	now := s.clock.Now()
	anchor := now
	if d.ExpiresAt != nil && d.ExpiresAt.After(now) {
		anchor = *d.ExpiresAt
	}
	newExpiry := anchor.AddDate(0, 0, extendDays)

	if d.Status == domainsdomain.StatusGrace || d.Status == domainsdomain.StatusRedemption {
		swapped, err := s.Transition(ctx, domainsdomain.TransitionRequest{
			DomainID: domainID,
			From:     d.Status,
			To:       domainsdomain.StatusActive,
			Actor:    actor,
			Note:     "renewal payment received",
			Now:      now,
		})
		if err != nil {
			return nil, err
		}
		if !swapped {
			// The sweep advanced the domain first; re-read and let the
			// guard decide on the next attempt.
			return nil, domainsdomain.ErrInvalidTransition
		}
		d.Status = domainsdomain.StatusActive
	} else if d.Status != domainsdomain.StatusActive {
		return nil, domainsdomain.ErrInvalidTransition
	}

	if err := s.repo.SetExpiry(ctx, s.db, domainID, newExpiry, now); err != nil {
		return nil, err
	}
	d.ExpiresAt = &newExpiry
	d.GraceUntil = nil
	d.RedemptionUntil = nil

	if err := s.repo.DeletePendingNotifications(ctx, s.db, domainID); err != nil {
		return nil, err
	}
	if err := s.ScheduleMilestones(ctx, domainID, newExpiry); err != nil {
		return nil, err
	}

	s.log.Info("domain renewed",
		zap.Int64("domain_id", int64(domainID)),
		zap.Time("expires_at", newExpiry),
	)
	return d, nil
}

func (s *Service) TransferOwnership(ctx context.Context, domainID, newOwner snowflake.ID, lockUntil time.Time, actor domainsdomain.Actor, note string) error {
	d, err := s.repo.FindByID(ctx, s.db, domainID)
	if err != nil {
		return err
	}
	if d == nil {
		return domainsdomain.ErrNotFound
	}

	now := s.clock.Now()
	if err := s.repo.ReassignOwner(ctx, s.db, domainID, newOwner, lockUntil, now); err != nil {
		return err
	}

	event := &domainsdomain.LifecycleEvent{
		ID:        s.genID.Generate(),
		DomainID:  domainID,
		OldStatus: d.Status,
		NewStatus: d.Status,
		Actor:     actor,
		CreatedAt: now,
	}
	if note != "" {
		event.Note = &note
	}
	return s.repo.InsertEvent(ctx, s.db, event)
}

func (s *Service) ScheduleMilestones(ctx context.Context, domainID snowflake.ID, expiresAt time.Time) error {
	now := s.clock.Now()
	notifications := make([]domainsdomain.Notification, 0, len(domainsdomain.Milestones))
	for _, m := range domainsdomain.Milestones {
		notifications = append(notifications, domainsdomain.Notification{
			ID:           s.genID.Generate(),
			DomainID:     domainID,
			Milestone:    m.Code,
			ScheduledFor: expiresAt.AddDate(0, 0, m.OffsetDays),
			Status:       domainsdomain.NotificationStatusPending,
			CreatedAt:    now,
		})
	}
	return s.repo.InsertNotifications(ctx, s.db, notifications)
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*domainsdomain.Domain, error) {
	d, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, domainsdomain.ErrNotFound
	}
	return d, nil
}

func (s *Service) GetByFQDN(ctx context.Context, fqdn string) (*domainsdomain.Domain, error) {
	d, err := s.repo.FindByFQDN(ctx, s.db, strings.ToLower(strings.TrimSpace(fqdn)))
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, domainsdomain.ErrNotFound
	}
	return d, nil
}

func (s *Service) ListByCustomer(ctx context.Context, customerID snowflake.ID) ([]domainsdomain.Domain, error) {
	return s.repo.ListByCustomer(ctx, s.db, customerID)
}

func (s *Service) ListEvents(ctx context.Context, domainID snowflake.ID) ([]domainsdomain.LifecycleEvent, error) {
	return s.repo.ListEvents(ctx, s.db, domainID)
}
