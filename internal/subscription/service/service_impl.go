package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/namevault/namevault/internal/clock"
	subscriptiondomain "github.com/namevault/namevault/internal/subscription/domain"
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
	Repo  subscriptiondomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  subscriptiondomain.Repository
}

func NewService(p Params) subscriptiondomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("subscription.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) WithTx(tx *gorm.DB) subscriptiondomain.Service {
	copied := *s
	copied.db = tx
	return &copied
}

func (s *Service) ActivateFromProvider(ctx context.Context, req subscriptiondomain.ActivateRequest) (*subscriptiondomain.Subscription, error) {
	existing, err := s.repo.FindByProviderID(ctx, s.db, req.ProviderSubscriptionID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	if existing != nil {
		if existing.Status != subscriptiondomain.StatusActive {
			if _, err := s.repo.UpdateStatus(ctx, s.db, existing.ID, subscriptiondomain.StatusActive, nil, now); err != nil {
				return nil, err
			}
			existing.Status = subscriptiondomain.StatusActive
		}
		return existing, nil
	}

	planCode := req.PlanCode
	if planCode == "" {
		planCode = "domain-annual"
	}
	sub := &subscriptiondomain.Subscription{
		ID:                     s.genID.Generate(),
		CustomerID:             req.CustomerID,
		DomainID:               req.DomainID,
		PlanCode:               planCode,
		ProviderSubscriptionID: req.ProviderSubscriptionID,
		Status:                 subscriptiondomain.StatusActive,
		NextBillingDate:        req.NextBillingDate,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	if err := s.repo.Insert(ctx, s.db, sub); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return s.repo.FindByProviderID(ctx, s.db, req.ProviderSubscriptionID)
		}
		return nil, err
	}
	return sub, nil
}

func (s *Service) RecordRenewal(ctx context.Context, providerSubscriptionID string, nextBillingDate *time.Time) (*subscriptiondomain.Subscription, error) {
	sub, err := s.mustFind(ctx, providerSubscriptionID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()

	// A renewal on a past_due subscription means the retry went through.
	if sub.Status != subscriptiondomain.StatusActive {
		if _, err := s.repo.UpdateStatus(ctx, s.db, sub.ID, subscriptiondomain.StatusActive, nil, now); err != nil {
			return nil, err
		}
		sub.Status = subscriptiondomain.StatusActive
	}
	if err := s.repo.SetNextBillingDate(ctx, s.db, sub.ID, nextBillingDate, now); err != nil {
		return nil, err
	}
	sub.NextBillingDate = nextBillingDate
	return sub, nil
}

func (s *Service) MarkPastDue(ctx context.Context, providerSubscriptionID string) (*subscriptiondomain.Subscription, error) {
	return s.moveTo(ctx, providerSubscriptionID, subscriptiondomain.StatusPastDue, nil)
}

func (s *Service) Suspend(ctx context.Context, providerSubscriptionID string) (*subscriptiondomain.Subscription, error) {
	return s.moveTo(ctx, providerSubscriptionID, subscriptiondomain.StatusSuspended, nil)
}

func (s *Service) Cancel(ctx context.Context, providerSubscriptionID string) (*subscriptiondomain.Subscription, error) {
	now := s.clock.Now()
	return s.moveTo(ctx, providerSubscriptionID, subscriptiondomain.StatusCanceled, &now)
}

func (s *Service) moveTo(ctx context.Context, providerSubscriptionID string, status subscriptiondomain.Status, canceledAt *time.Time) (*subscriptiondomain.Subscription, error) {
	sub, err := s.mustFind(ctx, providerSubscriptionID)
	if err != nil {
		return nil, err
	}
	moved, err := s.repo.UpdateStatus(ctx, s.db, sub.ID, status, canceledAt, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if moved {
		sub.Status = status
		if canceledAt != nil {
			sub.CanceledAt = canceledAt
		}
		s.log.Info("subscription status changed",
			zap.Int64("subscription_id", int64(sub.ID)),
			zap.String("status", string(status)),
		)
	}
	return sub, nil
}

func (s *Service) mustFind(ctx context.Context, providerSubscriptionID string) (*subscriptiondomain.Subscription, error) {
	sub, err := s.repo.FindByProviderID(ctx, s.db, providerSubscriptionID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, subscriptiondomain.ErrNotFound
	}
	return sub, nil
}

func (s *Service) GetByProviderID(ctx context.Context, providerSubscriptionID string) (*subscriptiondomain.Subscription, error) {
	return s.mustFind(ctx, providerSubscriptionID)
}

func (s *Service) ListByCustomer(ctx context.Context, customerID snowflake.ID) ([]subscriptiondomain.Subscription, error) {
	return s.repo.ListByCustomer(ctx, s.db, customerID)
}
