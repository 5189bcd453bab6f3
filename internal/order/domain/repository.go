package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, order *Order) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Order, error)
	FindByProviderOrderID(ctx context.Context, db *gorm.DB, provider, providerOrderID string) (*Order, error)
	FindByProviderTransactionID(ctx context.Context, db *gorm.DB, provider, transactionID string) (*Order, error)
	ListByCustomer(ctx context.Context, db *gorm.DB, customerID snowflake.ID) ([]Order, error)

	// ListCompletedBetween returns the internal side of a reconciliation
	// window: orders whose capture landed inside [start, end).
	ListCompletedBetween(ctx context.Context, db *gorm.DB, provider string, start, end time.Time) ([]Order, error)

	// MarkCompleted flips a pending order to completed and stamps the
	// capture transaction id. Returns false if the order was not pending.
	MarkCompleted(ctx context.Context, db *gorm.DB, id snowflake.ID, transactionID string, now time.Time) (bool, error)

	MarkFailed(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (bool, error)
}
