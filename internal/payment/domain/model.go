// Package domain defines the payment event ingest model: the dedupe ledger
// of every webhook delivery plus the canonical parsed event union.
package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// EventRecord is one webhook delivery. The unique (provider,
// provider_event_id) index makes the insert the dedupe point.
type EventRecord struct {
	ID              snowflake.ID   `json:"id" gorm:"primaryKey"`
	Provider        string         `json:"provider" gorm:"type:text;not null"`
	ProviderEventID string         `json:"provider_event_id" gorm:"type:text;not null"`
	EventType       string         `json:"event_type" gorm:"type:text;not null"`
	Payload         datatypes.JSON `json:"payload" gorm:"type:jsonb;not null"`
	ReceivedAt      time.Time      `json:"received_at" gorm:"not null"`
	ProcessedAt     *time.Time     `json:"processed_at"`
}

func (EventRecord) TableName() string { return "payment_events" }

const (
	EventTypeCaptureCompleted      = "capture_completed"
	EventTypeSubscriptionActivated = "subscription_activated"
	EventTypeSubscriptionPayment   = "subscription_payment"
	EventTypePaymentFailed         = "payment_failed"
	EventTypeSubscriptionCancelled = "subscription_cancelled"
	EventTypeSubscriptionSuspended = "subscription_suspended"
)

var (
	ErrInvalidEvent          = errors.New("invalid_payment_event")
	ErrInvalidProvider       = errors.New("invalid_payment_provider")
	ErrInvalidPayload        = errors.New("invalid_payment_payload")
	ErrInvalidAmount         = errors.New("invalid_payment_amount")
	ErrEventIgnored          = errors.New("payment_event_ignored")
	ErrEventAlreadyProcessed = errors.New("payment_event_already_processed")
)

// CaptureData is the payload of a one-off order capture.
type CaptureData struct {
	ProviderOrderID string
	TransactionID   string
	Amount          decimal.Decimal
	Currency        string
}

// SubscriptionData carries the subset of subscription event fields each
// event type uses; Validate checks the per-type requirements.
type SubscriptionData struct {
	ProviderSubscriptionID string
	PlanCode               string
	CustomerEmail          string
	DomainRef              string
	TransactionID          string
	Amount                 decimal.Decimal
	Currency               string
	NextBillingTime        *time.Time
	Reason                 string
}

// PaymentEvent is the canonical event parsed from a provider webhook.
// Exactly one of Capture and Subscription is set, matching Type.
type PaymentEvent struct {
	Provider        string
	ProviderEventID string
	Type            string
	OccurredAt      time.Time
	RawPayload      []byte

	Capture      *CaptureData
	Subscription *SubscriptionData
}

// Validate checks the union shape before any store write happens.
func (e *PaymentEvent) Validate() error {
	if e == nil || e.ProviderEventID == "" || e.OccurredAt.IsZero() {
		return ErrInvalidEvent
	}
	if e.Provider == "" {
		return ErrInvalidProvider
	}

	switch e.Type {
	case EventTypeCaptureCompleted:
		if e.Capture == nil || e.Subscription != nil {
			return ErrInvalidEvent
		}
		if e.Capture.ProviderOrderID == "" || e.Capture.TransactionID == "" {
			return ErrInvalidEvent
		}
		if !e.Capture.Amount.IsPositive() || e.Capture.Currency == "" {
			return ErrInvalidAmount
		}
	case EventTypeSubscriptionPayment:
		if e.Subscription == nil || e.Capture != nil {
			return ErrInvalidEvent
		}
		if e.Subscription.ProviderSubscriptionID == "" || e.Subscription.TransactionID == "" {
			return ErrInvalidEvent
		}
		if !e.Subscription.Amount.IsPositive() || e.Subscription.Currency == "" {
			return ErrInvalidAmount
		}
	case EventTypeSubscriptionActivated,
		EventTypePaymentFailed,
		EventTypeSubscriptionCancelled,
		EventTypeSubscriptionSuspended:
		if e.Subscription == nil || e.Capture != nil {
			return ErrInvalidEvent
		}
		if e.Subscription.ProviderSubscriptionID == "" {
			return ErrInvalidEvent
		}
	default:
		return ErrInvalidEvent
	}
	return nil
}
