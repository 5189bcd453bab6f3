package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// InsertEvent claims the (provider, provider_event_id) slot. Returns
	// false when another delivery already holds it.
	InsertEvent(ctx context.Context, db *gorm.DB, event *EventRecord) (bool, error)

	FindEvent(ctx context.Context, db *gorm.DB, provider, providerEventID string) (*EventRecord, error)
	MarkProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, processedAt time.Time) error
	ListRecent(ctx context.Context, db *gorm.DB, limit int) ([]EventRecord, error)
}
