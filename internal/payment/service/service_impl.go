package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/namevault/namevault/internal/clock"
	customerdomain "github.com/namevault/namevault/internal/customer/domain"
	domainsdomain "github.com/namevault/namevault/internal/domains/domain"
	"github.com/namevault/namevault/internal/observability/metrics"
	orderdomain "github.com/namevault/namevault/internal/order/domain"
	paymentdomain "github.com/namevault/namevault/internal/payment/domain"
	subscriptiondomain "github.com/namevault/namevault/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Repo      paymentdomain.Repository
	OrderRepo orderdomain.Repository
	Domains   domainsdomain.Service
	Subs      subscriptiondomain.Service
	Customers customerdomain.Service
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	repo      paymentdomain.Repository
	orderRepo orderdomain.Repository
	domains   domainsdomain.Service
	subs      subscriptiondomain.Service
	customers customerdomain.Service
}

func NewService(p Params) paymentdomain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("payment.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		repo:      p.Repo,
		orderRepo: p.OrderRepo,
		domains:   p.Domains,
		subs:      p.Subs,
		customers: p.Customers,
	}
}

const renewalExtensionDays = 365

func (s *Service) ProcessEvent(ctx context.Context, event *paymentdomain.PaymentEvent, payload []byte) (*paymentdomain.ProcessResult, error) {
	if event == nil {
		return nil, paymentdomain.ErrInvalidEvent
	}
	event.Provider = strings.ToLower(strings.TrimSpace(event.Provider))
	if !json.Valid(payload) {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if err := event.Validate(); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	record := paymentdomain.EventRecord{
		ID:              s.genID.Generate(),
		Provider:        event.Provider,
		ProviderEventID: event.ProviderEventID,
		EventType:       event.Type,
		Payload:         datatypes.JSON(payload),
		ReceivedAt:      now,
	}

	result := &paymentdomain.ProcessResult{}
	replayed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inserted, err := s.repo.InsertEvent(ctx, tx, &record)
		if err != nil {
			return err
		}
		stored := &record
		if !inserted {
			stored, err = s.repo.FindEvent(ctx, tx, event.Provider, event.ProviderEventID)
			if err != nil {
				return err
			}
			if stored == nil {
				return paymentdomain.ErrInvalidEvent
			}
			if stored.ProcessedAt != nil {
				replayed = true
				return nil
			}
			// Claimed but never finished: an earlier delivery crashed
			// mid-flight. Resume against the stored row.
		}

		if err := s.apply(ctx, tx, event, now, result); err != nil {
			return err
		}
		return s.repo.MarkProcessed(ctx, tx, stored.ID, now)
	})
	if err != nil {
		return nil, err
	}

	if replayed {
		metrics.Engine().IncEventReplay()
		return nil, paymentdomain.ErrEventAlreadyProcessed
	}
	metrics.Engine().IncPaymentEvent(event.Provider, event.Type)
	return result, nil
}

func (s *Service) apply(ctx context.Context, tx *gorm.DB, event *paymentdomain.PaymentEvent, now time.Time, result *paymentdomain.ProcessResult) error {
	switch event.Type {
	case paymentdomain.EventTypeCaptureCompleted:
		return s.applyCapture(ctx, tx, event, now, result)
	case paymentdomain.EventTypeSubscriptionActivated:
		return s.applySubscriptionActivated(ctx, tx, event, result)
	case paymentdomain.EventTypeSubscriptionPayment:
		return s.applySubscriptionPayment(ctx, tx, event, result)
	case paymentdomain.EventTypePaymentFailed:
		return s.applySubscriptionStatus(ctx, tx, event, subscriptiondomain.StatusPastDue, result)
	case paymentdomain.EventTypeSubscriptionCancelled:
		return s.applySubscriptionStatus(ctx, tx, event, subscriptiondomain.StatusCanceled, result)
	case paymentdomain.EventTypeSubscriptionSuspended:
		return s.applySubscriptionStatus(ctx, tx, event, subscriptiondomain.StatusSuspended, result)
	default:
		return paymentdomain.ErrInvalidEvent
	}
}

func (s *Service) applyCapture(ctx context.Context, tx *gorm.DB, event *paymentdomain.PaymentEvent, now time.Time, result *paymentdomain.ProcessResult) error {
	data := event.Capture
	order, err := s.orderRepo.FindByProviderOrderID(ctx, tx, event.Provider, data.ProviderOrderID)
	if err != nil {
		return err
	}
	if order == nil {
		// Nothing to fulfil. The whole transaction rolls back, dedupe row
		// included, so the provider keeps redelivering until a checkout
		// exists or an operator intervenes.
		s.log.Warn("capture for unknown order",
			zap.String("provider_order_id", data.ProviderOrderID),
			zap.String("transaction_id", data.TransactionID),
		)
		return orderdomain.ErrNotFound
	}
	result.OrderID = &order.ID
	result.DomainID = order.DomainID

	if !order.Amount.Equal(data.Amount) || !strings.EqualFold(order.Currency, data.Currency) {
		s.log.Warn("capture amount differs from order",
			zap.Int64("order_id", int64(order.ID)),
			zap.String("order_amount", order.Amount.StringFixed(2)),
			zap.String("captured_amount", data.Amount.StringFixed(2)),
		)
	}

	completed, err := s.orderRepo.MarkCompleted(ctx, tx, order.ID, data.TransactionID, now)
	if err != nil {
		return err
	}
	if !completed {
		// Already settled; nothing left to fulfil.
		return nil
	}

	if order.DomainID == nil {
		return nil
	}
	return s.fulfilDomain(ctx, tx, *order.DomainID)
}

// fulfilDomain activates a pending domain or extends an already-leased one.
// A domain that can do neither is parked in failed so support can step in;
// the money stays recorded on the order either way.
func (s *Service) fulfilDomain(ctx context.Context, tx *gorm.DB, domainID snowflake.ID) error {
	domains := s.domains.WithTx(tx)
	d, err := domains.GetByID(ctx, domainID)
	if err != nil {
		if errors.Is(err, domainsdomain.ErrNotFound) {
			s.log.Warn("paid order references missing domain", zap.Int64("domain_id", int64(domainID)))
			return nil
		}
		return err
	}

	switch d.Status {
	case domainsdomain.StatusPending:
		_, err = domains.Activate(ctx, domainID, domainsdomain.ActorSystem)
	case domainsdomain.StatusActive, domainsdomain.StatusGrace, domainsdomain.StatusRedemption:
		_, err = domains.Renew(ctx, domainID, renewalExtensionDays, domainsdomain.ActorSystem)
	default:
		err = domainsdomain.ErrInvalidTransition
	}

	if errors.Is(err, domainsdomain.ErrInvalidTransition) {
		s.log.Error("domain fulfilment rejected, parking domain",
			zap.Int64("domain_id", int64(domainID)),
			zap.String("status", string(d.Status)),
		)
		if d.Status == domainsdomain.StatusPending {
			return domains.MarkFailed(ctx, domainID, domainsdomain.ActorSystem, "activation rejected after capture")
		}
		return nil
	}
	return err
}

func (s *Service) applySubscriptionActivated(ctx context.Context, tx *gorm.DB, event *paymentdomain.PaymentEvent, result *paymentdomain.ProcessResult) error {
	data := event.Subscription

	var customerID snowflake.ID
	var domainID *snowflake.ID

	if ref := data.DomainRef; ref != "" {
		if id, err := snowflake.ParseString(ref); err == nil {
			d, err := s.domains.WithTx(tx).GetByID(ctx, id)
			if err == nil {
				domainID = &d.ID
				if d.CustomerID != nil {
					customerID = *d.CustomerID
				}
			}
		}
	}

	if customerID == 0 {
		if data.CustomerEmail == "" {
			s.log.Warn("subscription activation without resolvable customer",
				zap.String("provider_subscription_id", data.ProviderSubscriptionID),
			)
			return nil
		}
		customer, err := s.customers.WithTx(tx).ResolveOrCreate(ctx, customerdomain.ResolveRequest{
			Email: data.CustomerEmail,
		})
		if err != nil {
			return err
		}
		customerID = customer.ID
	}

	sub, err := s.subs.WithTx(tx).ActivateFromProvider(ctx, subscriptiondomain.ActivateRequest{
		ProviderSubscriptionID: data.ProviderSubscriptionID,
		CustomerID:             customerID,
		DomainID:               domainID,
		PlanCode:               data.PlanCode,
		NextBillingDate:        data.NextBillingTime,
	})
	if err != nil {
		return err
	}
	result.SubscriptionID = &sub.ID
	result.DomainID = domainID

	if domainID == nil {
		return nil
	}
	// A subscription start is paid-for capacity just like a capture: the
	// linked domain goes live with it.
	return s.fulfilDomain(ctx, tx, *domainID)
}

func (s *Service) applySubscriptionPayment(ctx context.Context, tx *gorm.DB, event *paymentdomain.PaymentEvent, result *paymentdomain.ProcessResult) error {
	data := event.Subscription
	sub, err := s.subs.WithTx(tx).RecordRenewal(ctx, data.ProviderSubscriptionID, data.NextBillingTime)
	if err != nil {
		if errors.Is(err, subscriptiondomain.ErrNotFound) {
			s.log.Warn("renewal for unknown subscription",
				zap.String("provider_subscription_id", data.ProviderSubscriptionID),
			)
			return nil
		}
		return err
	}
	result.SubscriptionID = &sub.ID
	result.DomainID = sub.DomainID
	if sub.DomainID == nil {
		return nil
	}

	_, err = s.domains.WithTx(tx).Renew(ctx, *sub.DomainID, renewalExtensionDays, domainsdomain.ActorSystem)
	if errors.Is(err, domainsdomain.ErrInvalidTransition) {
		// Past the rescue window. The payment stays on record; support
		// reconciles the refund by hand.
		s.log.Warn("renewal arrived too late to rescue domain",
			zap.Int64("domain_id", int64(*sub.DomainID)),
		)
		return nil
	}
	return err
}

func (s *Service) applySubscriptionStatus(ctx context.Context, tx *gorm.DB, event *paymentdomain.PaymentEvent, status subscriptiondomain.Status, result *paymentdomain.ProcessResult) error {
	data := event.Subscription
	subs := s.subs.WithTx(tx)

	var sub *subscriptiondomain.Subscription
	var err error
	switch status {
	case subscriptiondomain.StatusPastDue:
		sub, err = subs.MarkPastDue(ctx, data.ProviderSubscriptionID)
	case subscriptiondomain.StatusSuspended:
		sub, err = subs.Suspend(ctx, data.ProviderSubscriptionID)
	case subscriptiondomain.StatusCanceled:
		sub, err = subs.Cancel(ctx, data.ProviderSubscriptionID)
	}
	if errors.Is(err, subscriptiondomain.ErrNotFound) {
		s.log.Warn("status event for unknown subscription",
			zap.String("provider_subscription_id", data.ProviderSubscriptionID),
			zap.String("status", string(status)),
		)
		return nil
	}
	if err != nil {
		return err
	}
	if sub != nil {
		result.SubscriptionID = &sub.ID
	}
	return nil
}

func (s *Service) ListRecent(ctx context.Context, limit int) ([]paymentdomain.EventRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.repo.ListRecent(ctx, s.db, limit)
}
