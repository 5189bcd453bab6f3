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
	transferdomain "github.com/namevault/namevault/internal/transfer/domain"
	"github.com/namevault/namevault/pkg/db"
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
	Repo      transferdomain.Repository
	OrderRepo orderdomain.Repository
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
	repo      transferdomain.Repository
	orderRepo orderdomain.Repository
	customers customerdomain.Service
	domains   domainsdomain.Service
	processor processordomain.Client
}

func NewService(p Params) transferdomain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("transfer.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		repo:      p.Repo,
		orderRepo: p.OrderRepo,
		customers: p.Customers,
		domains:   p.Domains,
		processor: p.Processor,
	}
}

func (s *Service) Initiate(ctx context.Context, req transferdomain.InitiateRequest) (*transferdomain.Transfer, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", transferdomain.ErrInvalidState, err)
	}

	d, err := s.domains.GetByFQDN(ctx, req.FQDN)
	if err != nil {
		return nil, err
	}
	if d.CustomerID == nil || *d.CustomerID != req.FromCustomerID {
		return nil, transferdomain.ErrNotOwner
	}
	if !d.IsTransferable {
		return nil, transferdomain.ErrNotTransferable
	}
	now := s.clock.Now()
	if d.TransferLockUntil != nil && d.TransferLockUntil.After(now) {
		return nil, transferdomain.ErrTransferLocked
	}
	if d.Status != domainsdomain.StatusActive {
		// Delinquency of any depth and holds block transfers outright.
		return nil, transferdomain.ErrNotTransferable
	}

	recipient, err := s.customers.ResolveOrCreate(ctx, customerdomain.ResolveRequest{
		Email: req.ToCustomerEmail,
		Name:  req.ToCustomerName,
	})
	if err != nil {
		return nil, err
	}
	if recipient.ID == req.FromCustomerID {
		return nil, transferdomain.ErrSameOwner
	}

	transfer := &transferdomain.Transfer{
		ID:             s.genID.Generate(),
		DomainID:       d.ID,
		FromCustomerID: req.FromCustomerID,
		ToCustomerID:   recipient.ID,
		Status:         transferdomain.StatusPending,
		TransferFee:    transferdomain.TransferFee,
		RenewalFee:     transferdomain.RenewalFee,
		TotalFee:       transferdomain.TransferFee.Add(transferdomain.RenewalFee),
		Currency:       "USD",
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Insert(ctx, s.db, transfer); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, transferdomain.ErrTransferExists
		}
		return nil, err
	}

	s.log.Info("transfer initiated",
		zap.Int64("transfer_id", int64(transfer.ID)),
		zap.Int64("domain_id", int64(d.ID)),
		zap.Int64("to_customer_id", int64(recipient.ID)),
	)
	return transfer, nil
}

func (s *Service) CreatePayment(ctx context.Context, transferID snowflake.ID) (*transferdomain.PaymentIntent, error) {
	transfer, err := s.mustFind(ctx, transferID)
	if err != nil {
		return nil, err
	}
	if transfer.Status != transferdomain.StatusPending {
		return nil, transferdomain.ErrInvalidState
	}

	processorOrder, err := s.processor.CreateOrder(ctx, processordomain.CreateOrderRequest{
		ReferenceID: transfer.ID.String(),
		Amount:      transfer.TotalFee,
		Currency:    transfer.Currency,
		Description: fmt.Sprintf("namevault transfer %s", transfer.ID),
	})
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	moved, err := s.repo.UpdateStatus(ctx, s.db, transfer.ID,
		transferdomain.StatusPending, transferdomain.StatusAwaitingPayment,
		&processorOrder.ID, nil, now)
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, transferdomain.ErrInvalidState
	}

	transfer.Status = transferdomain.StatusAwaitingPayment
	transfer.ProviderOrderID = &processorOrder.ID
	return &transferdomain.PaymentIntent{
		Transfer:   transfer,
		ApproveURL: processorOrder.ApproveURL,
	}, nil
}

func (s *Service) Complete(ctx context.Context, transferID snowflake.ID) (*transferdomain.Transfer, error) {
	transfer, err := s.mustFind(ctx, transferID)
	if err != nil {
		return nil, err
	}
	if transfer.Status != transferdomain.StatusAwaitingPayment || transfer.ProviderOrderID == nil {
		return nil, transferdomain.ErrInvalidState
	}

	capture, err := s.processor.CaptureOrder(ctx, *transfer.ProviderOrderID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	lockUntil := now.AddDate(0, 0, domainsdomain.TransferLockDays)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		moved, err := s.repo.UpdateStatus(ctx, tx, transfer.ID,
			transferdomain.StatusAwaitingPayment, transferdomain.StatusCompleted,
			nil, &now, now)
		if err != nil {
			return err
		}
		if !moved {
			return transferdomain.ErrInvalidState
		}

		domains := s.domains.WithTx(tx)
		if err := domains.TransferOwnership(ctx, transfer.DomainID, transfer.ToCustomerID, lockUntil,
			domainsdomain.ActorSystem, fmt.Sprintf("ownership transfer %s", transfer.ID)); err != nil {
			return err
		}
		if _, err := domains.Renew(ctx, transfer.DomainID, 365, domainsdomain.ActorSystem); err != nil {
			return err
		}

		description := fmt.Sprintf("namevault transfer %s", transfer.ID)
		order := &orderdomain.Order{
			ID:                    s.genID.Generate(),
			Provider:              processordomain.Name,
			ProviderOrderID:       *transfer.ProviderOrderID,
			ProviderTransactionID: &capture.TransactionID,
			Amount:                transfer.TotalFee,
			Currency:              transfer.Currency,
			Status:                orderdomain.StatusCompleted,
			Description:           &description,
			CreatedAt:             now,
			UpdatedAt:             now,
		}
		customerID := transfer.ToCustomerID
		domainID := transfer.DomainID
		order.CustomerID = &customerID
		order.DomainID = &domainID
		return s.orderRepo.Insert(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}

	transfer.Status = transferdomain.StatusCompleted
	transfer.CompletedAt = &now
	s.log.Info("transfer completed",
		zap.Int64("transfer_id", int64(transfer.ID)),
		zap.Int64("domain_id", int64(transfer.DomainID)),
		zap.String("transaction_id", capture.TransactionID),
	)
	return transfer, nil
}

func (s *Service) Cancel(ctx context.Context, transferID snowflake.ID) (*transferdomain.Transfer, error) {
	transfer, err := s.mustFind(ctx, transferID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	for _, from := range []transferdomain.Status{transferdomain.StatusPending, transferdomain.StatusAwaitingPayment} {
		moved, err := s.repo.UpdateStatus(ctx, s.db, transfer.ID, from, transferdomain.StatusCancelled, nil, nil, now)
		if err != nil {
			return nil, err
		}
		if moved {
			transfer.Status = transferdomain.StatusCancelled
			return transfer, nil
		}
	}
	return nil, transferdomain.ErrInvalidState
}

func (s *Service) mustFind(ctx context.Context, id snowflake.ID) (*transferdomain.Transfer, error) {
	transfer, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if transfer == nil {
		return nil, transferdomain.ErrNotFound
	}
	return transfer, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*transferdomain.Transfer, error) {
	return s.mustFind(ctx, id)
}

func (s *Service) ListByDomain(ctx context.Context, domainID snowflake.ID) ([]transferdomain.Transfer, error) {
	return s.repo.ListByDomain(ctx, s.db, domainID)
}
