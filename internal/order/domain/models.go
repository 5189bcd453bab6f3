// Package domain holds the order ledger: one row per purchase intent, from
// checkout through capture.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusRefunded  Status = "refunded"
)

type Order struct {
	ID         snowflake.ID  `gorm:"primaryKey" json:"id"`
	CustomerID *snowflake.ID `json:"customer_id,omitempty"`
	DomainID   *snowflake.ID `json:"domain_id,omitempty"`
	Provider   string        `gorm:"not null" json:"provider"`

	// ProviderOrderID is assigned at checkout; ProviderTransactionID only
	// once the processor captures the payment. Each capture maps to exactly
	// one row.
	ProviderOrderID       string  `gorm:"not null" json:"provider_order_id"`
	ProviderTransactionID *string `json:"provider_transaction_id,omitempty"`

	Amount      decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	Currency    string          `gorm:"not null" json:"currency"`
	Status      Status          `gorm:"type:text;not null" json:"status"`
	Description *string         `json:"description,omitempty"`
	CreatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Order) TableName() string { return "orders" }
