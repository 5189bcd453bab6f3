package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrNotFound          = errors.New("domain_not_found")
	ErrInvalidFQDN       = errors.New("invalid_fqdn")
	ErrInvalidTransition = errors.New("invalid_domain_transition")
	ErrDomainExists      = errors.New("domain_exists")
)

type CreateRequest struct {
	FQDN       string
	CustomerID snowflake.ID
	Status     Status
	ExpiresAt  time.Time
}

type TransitionRequest struct {
	DomainID snowflake.ID
	From     Status
	To       Status
	Actor    Actor
	Note     string
	Now      time.Time
}

type Service interface {
	// WithTx returns a copy of the service bound to the given transaction,
	// so callers can compose domain writes with their own.
	WithTx(tx *gorm.DB) Service

	// Create inserts a new domain row and schedules its expiry milestones.
	Create(ctx context.Context, req CreateRequest) (*Domain, error)

	// Transition performs a guarded compare-and-swap status change and
	// appends exactly one LifecycleEvent in the same transaction. It
	// returns false without error when the domain already moved on, so
	// overlapping runs degrade to no-ops.
	Transition(ctx context.Context, req TransitionRequest) (bool, error)

	// Activate moves a pending domain to active. Already-active domains
	// are a no-op; this is shared by the capture handler and the
	// reconciliation healer so both race safely.
	Activate(ctx context.Context, domainID snowflake.ID, actor Actor) (bool, error)

	// MarkFailed is the activation compensation: the order and domain rows
	// stay committed, the domain is parked in failed.
	MarkFailed(ctx context.Context, domainID snowflake.ID, actor Actor, note string) error

	// Hold parks a domain in an external hold status (dispute, fraud,
	// unpaid). Holds are terminal until manually cleared.
	Hold(ctx context.Context, domainID snowflake.ID, hold Status, actor Actor, note string) error

	// Renew extends the lease by extendDays from the later of now and the
	// current expiry, pulls grace/redemption domains back to active and
	// replaces the pending milestone schedule.
	Renew(ctx context.Context, domainID snowflake.ID, extendDays int, actor Actor) (*Domain, error)

	// TransferOwnership reassigns the domain to newOwner and applies the
	// post-transfer lock. Status is unchanged; an audit event records the
	// handover.
	TransferOwnership(ctx context.Context, domainID, newOwner snowflake.ID, lockUntil time.Time, actor Actor, note string) error

	ScheduleMilestones(ctx context.Context, domainID snowflake.ID, expiresAt time.Time) error

	GetByID(ctx context.Context, id snowflake.ID) (*Domain, error)
	GetByFQDN(ctx context.Context, fqdn string) (*Domain, error)
	ListByCustomer(ctx context.Context, customerID snowflake.ID) ([]Domain, error)
	ListEvents(ctx context.Context, domainID snowflake.ID) ([]LifecycleEvent, error)
}
