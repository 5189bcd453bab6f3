// Package domain models ownership transfers between customers. A transfer
// walks pending -> awaiting_payment -> completed, with cancellation allowed
// until payment is captured.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Status string

const (
	StatusPending         Status = "pending"
	StatusAwaitingPayment Status = "awaiting_payment"
	StatusCompleted       Status = "completed"
	StatusCancelled       Status = "cancelled"
)

var (
	ErrNotFound        = errors.New("transfer_not_found")
	ErrNotTransferable = errors.New("domain_not_transferable")
	ErrTransferLocked  = errors.New("domain_transfer_locked")
	ErrTransferExists  = errors.New("transfer_already_in_flight")
	ErrNotOwner        = errors.New("transfer_initiator_not_owner")
	ErrSameOwner       = errors.New("transfer_to_same_owner")
	ErrInvalidState    = errors.New("invalid_transfer_state")
)

// Flat fee schedule. Every transfer carries a mandatory one-year renewal so
// the new owner never inherits an about-to-expire name.
var (
	TransferFee = decimal.RequireFromString("20.00")
	RenewalFee  = decimal.RequireFromString("15.00")
)

type Transfer struct {
	ID              snowflake.ID    `gorm:"primaryKey" json:"id"`
	DomainID        snowflake.ID    `gorm:"not null" json:"domain_id"`
	FromCustomerID  snowflake.ID    `gorm:"not null" json:"from_customer_id"`
	ToCustomerID    snowflake.ID    `gorm:"not null" json:"to_customer_id"`
	Status          Status          `gorm:"type:text;not null" json:"status"`
	TransferFee     decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"transfer_fee"`
	RenewalFee      decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"renewal_fee"`
	TotalFee        decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_fee"`
	Currency        string          `gorm:"not null" json:"currency"`
	ProviderOrderID *string         `json:"provider_order_id,omitempty"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
	CreatedAt       time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Transfer) TableName() string { return "transfers" }

type InitiateRequest struct {
	FQDN            string `json:"fqdn" validate:"required,fqdn"`
	FromCustomerID  snowflake.ID
	ToCustomerEmail string `json:"to_customer_email" validate:"required,email"`
	ToCustomerName  string `json:"to_customer_name"`
}

// PaymentIntent is returned by CreatePayment: the transfer plus the approval
// URL the receiving customer must visit.
type PaymentIntent struct {
	Transfer   *Transfer `json:"transfer"`
	ApproveURL string    `json:"approve_url"`
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, transfer *Transfer) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Transfer, error)
	ListByDomain(ctx context.Context, db *gorm.DB, domainID snowflake.ID) ([]Transfer, error)

	// UpdateStatus is a CAS move between workflow states, optionally
	// stamping the processor order id or the completion time.
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to Status, providerOrderID *string, completedAt *time.Time, now time.Time) (bool, error)
}

type Service interface {
	// Initiate opens a transfer after checking ownership, transferability
	// and the post-transfer lock. The partial unique index keeps at most
	// one transfer in flight per domain.
	Initiate(ctx context.Context, req InitiateRequest) (*Transfer, error)

	// CreatePayment opens a processor order for the total fee and moves the
	// transfer to awaiting_payment.
	CreatePayment(ctx context.Context, transferID snowflake.ID) (*PaymentIntent, error)

	// Complete captures the processor order, then atomically reassigns
	// ownership, applies the 60-day transfer lock, extends the lease by the
	// bundled renewal year and records the settled order.
	Complete(ctx context.Context, transferID snowflake.ID) (*Transfer, error)

	Cancel(ctx context.Context, transferID snowflake.ID) (*Transfer, error)

	GetByID(ctx context.Context, id snowflake.ID) (*Transfer, error)
	ListByDomain(ctx context.Context, domainID snowflake.ID) ([]Transfer, error)
}
