package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/go-playground/validator/v10"
	"github.com/namevault/namevault/internal/clock"
	customerdomain "github.com/namevault/namevault/internal/customer/domain"
	domainsdomain "github.com/namevault/namevault/internal/domains/domain"
	orderdomain "github.com/namevault/namevault/internal/order/domain"
	processordomain "github.com/namevault/namevault/internal/processor/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Repo      orderdomain.Repository
	Customers customerdomain.Service
	Domains   domainsdomain.Service
	Processor processordomain.Client
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	validate  *validator.Validate
	repo      orderdomain.Repository
	customers customerdomain.Service
	domains   domainsdomain.Service
	processor processordomain.Client
}

func NewService(p Params) orderdomain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("order.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		repo:      p.Repo,
		customers: p.Customers,
		domains:   p.Domains,
		processor: p.Processor,
	}
}

const defaultLeaseDays = 365

func (s *Service) CreateCheckout(ctx context.Context, req orderdomain.CheckoutRequest) (*orderdomain.Checkout, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", orderdomain.ErrInvalidAmount, err)
	}
	if !req.Amount.IsPositive() {
		return nil, orderdomain.ErrInvalidAmount
	}
	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}

	customer, err := s.customers.ResolveOrCreate(ctx, customerdomain.ResolveRequest{
		Email:    req.CustomerEmail,
		Name:     req.CustomerName,
		Currency: currency,
	})
	if err != nil {
		return nil, err
	}

	leaseDays := req.ExpiresInDays
	if leaseDays <= 0 {
		leaseDays = defaultLeaseDays
	}
	now := s.clock.Now()

	d, err := s.domains.GetByFQDN(ctx, req.FQDN)
	switch {
	case err == nil:
		// Renewal checkout only for the current owner.
		if d.CustomerID == nil || *d.CustomerID != customer.ID {
			return nil, domainsdomain.ErrDomainExists
		}
	case err == domainsdomain.ErrNotFound:
		d, err = s.domains.Create(ctx, domainsdomain.CreateRequest{
			FQDN:       req.FQDN,
			CustomerID: customer.ID,
			Status:     domainsdomain.StatusPending,
			ExpiresAt:  now.AddDate(0, 0, leaseDays),
		})
		if err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	description := fmt.Sprintf("namevault lease: %s", d.FQDN)
	processorOrder, err := s.processor.CreateOrder(ctx, processordomain.CreateOrderRequest{
		ReferenceID: d.ID.String(),
		Amount:      req.Amount,
		Currency:    currency,
		Description: description,
	})
	if err != nil {
		return nil, err
	}

	order := &orderdomain.Order{
		ID:              s.genID.Generate(),
		Provider:        processordomain.Name,
		ProviderOrderID: processorOrder.ID,
		Amount:          req.Amount,
		Currency:        currency,
		Status:          orderdomain.StatusPending,
		Description:     &description,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	customerID := customer.ID
	domainID := d.ID
	order.CustomerID = &customerID
	order.DomainID = &domainID

	if err := s.repo.Insert(ctx, s.db, order); err != nil {
		return nil, err
	}

	s.log.Info("checkout created",
		zap.Int64("order_id", int64(order.ID)),
		zap.String("fqdn", d.FQDN),
		zap.String("provider_order_id", processorOrder.ID),
	)
	return &orderdomain.Checkout{
		Order:      order,
		DomainID:   d.ID,
		ApproveURL: processorOrder.ApproveURL,
	}, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*orderdomain.Order, error) {
	order, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, orderdomain.ErrNotFound
	}
	return order, nil
}

func (s *Service) ListByCustomer(ctx context.Context, customerID snowflake.ID) ([]orderdomain.Order, error) {
	return s.repo.ListByCustomer(ctx, s.db, customerID)
}
