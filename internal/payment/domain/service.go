package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

// ProcessResult names the records a processed event created or touched, so
// the webhook response can point the caller at them.
type ProcessResult struct {
	OrderID        *snowflake.ID `json:"order_id,omitempty"`
	DomainID       *snowflake.ID `json:"domain_id,omitempty"`
	SubscriptionID *snowflake.ID `json:"subscription_id,omitempty"`
}

type Service interface {
	// ProcessEvent applies a parsed provider event exactly once. The dedupe
	// insert, the fulfilment writes and the processed marker commit in one
	// transaction; a replay of a processed event returns
	// ErrEventAlreadyProcessed without side effects.
	ProcessEvent(ctx context.Context, event *PaymentEvent, payload []byte) (*ProcessResult, error)

	ListRecent(ctx context.Context, limit int) ([]EventRecord, error)
}
