package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// TransitionUpdate carries the optional column writes that ride along with a
// CAS status change.
type TransitionUpdate struct {
	// DeadlineColumn names the phase deadline column to set, validated
	// against a fixed whitelist by the repository.
	DeadlineColumn   string
	Deadline         *time.Time
	ClearOwner       bool
	SuspensionReason *string
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, domain *Domain) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Domain, error)
	FindByFQDN(ctx context.Context, db *gorm.DB, fqdn string) (*Domain, error)
	ListByCustomer(ctx context.Context, db *gorm.DB, customerID snowflake.ID) ([]Domain, error)

	// CASTransition updates status only if the row still holds the expected
	// current status. Returns true when the row was updated.
	CASTransition(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to Status, update TransitionUpdate, now time.Time) (bool, error)

	// ClaimDueForPhase selects domains sitting in phase whose deadline is
	// strictly past, locking the rows (SKIP LOCKED) so overlapping engine
	// runs partition the work.
	ClaimDueForPhase(ctx context.Context, db *gorm.DB, phase Status, now time.Time, limit int) ([]Domain, error)

	ReassignOwner(ctx context.Context, db *gorm.DB, id, newOwner snowflake.ID, lockUntil time.Time, now time.Time) error

	// SetExpiry stamps a new lease expiry and clears the delinquency
	// deadlines, used when a renewal lands.
	SetExpiry(ctx context.Context, db *gorm.DB, id snowflake.ID, expiresAt time.Time, now time.Time) error

	InsertEvent(ctx context.Context, db *gorm.DB, event *LifecycleEvent) error
	ListEvents(ctx context.Context, db *gorm.DB, domainID snowflake.ID) ([]LifecycleEvent, error)

	InsertNotifications(ctx context.Context, db *gorm.DB, notifications []Notification) error
	DeletePendingNotifications(ctx context.Context, db *gorm.DB, domainID snowflake.ID) error
	ClaimDueNotifications(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]Notification, error)
	MarkNotificationSent(ctx context.Context, db *gorm.DB, id snowflake.ID, deliveredAt time.Time) (bool, error)
}
