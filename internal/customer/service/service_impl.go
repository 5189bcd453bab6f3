package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	customerdomain "github.com/namevault/namevault/internal/customer/domain"
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
	Repo  customerdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  customerdomain.Repository
}

func NewService(p Params) customerdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("customer.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) WithTx(tx *gorm.DB) customerdomain.Service {
	copied := *s
	copied.db = tx
	return &copied
}

func (s *Service) ResolveOrCreate(ctx context.Context, req customerdomain.ResolveRequest) (*customerdomain.Customer, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, customerdomain.ErrInvalidEmail
	}

	existing, err := s.repo.FindByEmail(ctx, s.db, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	now := time.Now().UTC()
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "USD"
	}
	customer := &customerdomain.Customer{
		ID:        s.genID.Generate(),
		Name:      strings.TrimSpace(req.Name),
		Email:     email,
		Currency:  currency,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if payerID := strings.TrimSpace(req.ExternalPayerID); payerID != "" {
		customer.ExternalPayerID = &payerID
	}
	if customer.Name == "" {
		customer.Name = email
	}

	if err := s.repo.Insert(ctx, s.db, customer); err != nil {
		if db.IsDuplicateKeyErr(err) {
			// Lost the insert race; the winner's row is authoritative.
			return s.repo.FindByEmail(ctx, s.db, email)
		}
		return nil, err
	}
	return customer, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*customerdomain.Customer, error) {
	if id == 0 {
		return nil, customerdomain.ErrNotFound
	}
	customer, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, customerdomain.ErrNotFound
	}
	return customer, nil
}
