// Package domain defines the outbound payment processor contract. The
// concrete client speaks the processor's REST API; services depend on this
// interface so tests can swap in fakes.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Name identifies the processor in order and event rows.
const Name = "paypal"

var (
	// ErrUnavailable covers transport failures, 5xx and 429 responses.
	// Callers may retry; scheduled jobs surface it as a failed run.
	ErrUnavailable = errors.New("processor_unavailable")

	// ErrRejected covers terminal 4xx responses. Retrying the same request
	// will not help.
	ErrRejected = errors.New("processor_rejected")
)

type CreateOrderRequest struct {
	ReferenceID string
	Amount      decimal.Decimal
	Currency    string
	Description string
}

type Order struct {
	ID         string
	Status     string
	ApproveURL string
}

type CaptureResult struct {
	OrderID       string
	TransactionID string
	Status        string
	Amount        decimal.Decimal
	Currency      string
}

// LedgerTransaction is one settled row from the processor's transaction
// report, the external side of reconciliation.
type LedgerTransaction struct {
	TransactionID string
	// ReferenceID echoes the checkout order id when the processor reports
	// one, which lets reconciliation match captures that never reached us.
	ReferenceID string
	Status      string
	Amount      decimal.Decimal
	Currency    string
	CapturedAt  time.Time
}

// Settled reports whether the ledger row represents captured funds.
func (t LedgerTransaction) Settled() bool {
	switch t.Status {
	case "S", "SUCCESS", "COMPLETED":
		return true
	default:
		return false
	}
}

type Client interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error)
	CaptureOrder(ctx context.Context, orderID string) (*CaptureResult, error)

	// ListTransactions pages through the processor ledger for the window.
	ListTransactions(ctx context.Context, start, end time.Time) ([]LedgerTransaction, error)
}
