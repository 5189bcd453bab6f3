package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound      = errors.New("order_not_found")
	ErrInvalidAmount = errors.New("invalid_order_amount")
)

type CheckoutRequest struct {
	CustomerEmail string          `json:"customer_email" validate:"required,email"`
	CustomerName  string          `json:"customer_name"`
	FQDN          string          `json:"fqdn" validate:"required,fqdn"`
	Amount        decimal.Decimal `json:"amount" validate:"required"`
	Currency      string          `json:"currency" validate:"omitempty,iso4217"`
	ExpiresInDays int             `json:"expires_in_days" validate:"omitempty,min=1,max=3650"`
}

// Checkout is what the API hands back: the pending order plus the processor
// approval URL the buyer must visit.
type Checkout struct {
	Order      *Order       `json:"order"`
	DomainID   snowflake.ID `json:"domain_id"`
	ApproveURL string       `json:"approve_url"`
}

type Service interface {
	// CreateCheckout resolves the customer, registers the pending domain,
	// opens a processor order and records it as a pending Order row.
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error)

	GetByID(ctx context.Context, id snowflake.ID) (*Order, error)
	ListByCustomer(ctx context.Context, customerID snowflake.ID) ([]Order, error)
}
