// Package domain models auto-renew subscriptions mirrored from the payment
// processor. The processor is the billing source of truth; these rows track
// which domain each provider subscription renews.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusPastDue   Status = "past_due"
	StatusSuspended Status = "suspended"
	StatusCanceled  Status = "canceled"
)

var ErrNotFound = errors.New("subscription_not_found")

type Subscription struct {
	ID                     snowflake.ID  `gorm:"primaryKey" json:"id"`
	CustomerID             snowflake.ID  `gorm:"not null" json:"customer_id"`
	DomainID               *snowflake.ID `json:"domain_id,omitempty"`
	PlanCode               string        `gorm:"not null" json:"plan_code"`
	ProviderSubscriptionID string        `gorm:"not null;uniqueIndex" json:"provider_subscription_id"`
	Status                 Status        `gorm:"type:text;not null" json:"status"`
	NextBillingDate        *time.Time    `json:"next_billing_date,omitempty"`
	CanceledAt             *time.Time    `json:"canceled_at,omitempty"`
	CreatedAt              time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt              time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Subscription) TableName() string { return "subscriptions" }

type ActivateRequest struct {
	ProviderSubscriptionID string
	CustomerID             snowflake.ID
	DomainID               *snowflake.ID
	PlanCode               string
	NextBillingDate        *time.Time
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, sub *Subscription) error
	FindByProviderID(ctx context.Context, db *gorm.DB, providerSubscriptionID string) (*Subscription, error)
	ListByCustomer(ctx context.Context, db *gorm.DB, customerID snowflake.ID) ([]Subscription, error)

	// UpdateStatus moves the subscription between lifecycle states; canceled
	// rows never leave canceled.
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status Status, canceledAt *time.Time, now time.Time) (bool, error)

	SetNextBillingDate(ctx context.Context, db *gorm.DB, id snowflake.ID, next *time.Time, now time.Time) error
}

type Service interface {
	// WithTx returns a copy of the service bound to the given transaction.
	WithTx(tx *gorm.DB) Service

	// ActivateFromProvider upserts the mirror row for a provider
	// subscription. Replayed activation events land on the existing row.
	ActivateFromProvider(ctx context.Context, req ActivateRequest) (*Subscription, error)

	// RecordRenewal marks a successful billing cycle and advances the next
	// billing date. The caller extends the domain lease.
	RecordRenewal(ctx context.Context, providerSubscriptionID string, nextBillingDate *time.Time) (*Subscription, error)

	MarkPastDue(ctx context.Context, providerSubscriptionID string) (*Subscription, error)
	Suspend(ctx context.Context, providerSubscriptionID string) (*Subscription, error)
	Cancel(ctx context.Context, providerSubscriptionID string) (*Subscription, error)

	GetByProviderID(ctx context.Context, providerSubscriptionID string) (*Subscription, error)
	ListByCustomer(ctx context.Context, customerID snowflake.ID) ([]Subscription, error)
}
