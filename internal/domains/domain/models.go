// Package domain contains persistence models for leased domains and their
// lifecycle audit trail.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Status represents lifecycle states for a leased domain.
type Status string

const (
	StatusPending       Status = "pending"
	StatusActive        Status = "active"
	StatusGrace         Status = "grace"
	StatusRedemption    Status = "redemption"
	StatusRegistryHold  Status = "registry_hold"
	StatusAuction       Status = "auction"
	StatusPendingDelete Status = "pending_delete"
	StatusReleased      Status = "released"
	StatusFailed        Status = "failed"

	// Hold statuses are set by external fraud/dispute collaborators and are
	// terminal until manually cleared.
	StatusDisputeHold Status = "dispute_hold"
	StatusFraudHold   Status = "fraud_hold"
	StatusUnpaidHold  Status = "unpaid_hold"
)

// Phase durations for the delinquency path.
const (
	GraceDays         = 15
	RedemptionDays    = 30
	RegistryHoldDays  = 15
	AuctionDays       = 15
	PendingDeleteDays = 5

	TransferLockDays = 60
)

type Actor string

const (
	ActorScheduler Actor = "scheduler"
	ActorSystem    Actor = "system"
	ActorHuman     Actor = "human"
)

type Domain struct {
	ID                 snowflake.ID  `gorm:"primaryKey" json:"id"`
	FQDN               string        `gorm:"column:fqdn;not null;uniqueIndex" json:"fqdn"`
	CustomerID         *snowflake.ID `gorm:"index" json:"customer_id,omitempty"`
	Status             Status        `gorm:"type:text;not null" json:"status"`
	ExpiresAt          *time.Time    `json:"expires_at,omitempty"`
	GraceUntil         *time.Time    `json:"grace_until,omitempty"`
	RedemptionUntil    *time.Time    `json:"redemption_until,omitempty"`
	RegistryHoldUntil  *time.Time    `json:"registry_hold_until,omitempty"`
	AuctionUntil       *time.Time    `json:"auction_until,omitempty"`
	PendingDeleteUntil *time.Time    `json:"pending_delete_until,omitempty"`
	IsTransferable     bool          `gorm:"not null;default:true" json:"is_transferable"`
	TransferLockUntil  *time.Time    `json:"transfer_lock_until,omitempty"`
	SuspensionReason   *string       `json:"suspension_reason,omitempty"`
	CreatedAt          time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt          time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Domain) TableName() string { return "domains" }

// LifecycleEvent is the append-only audit record for every status change.
// Rows are never mutated or deleted.
type LifecycleEvent struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	DomainID  snowflake.ID `gorm:"not null;index" json:"domain_id"`
	OldStatus Status       `gorm:"type:text;not null" json:"old_status"`
	NewStatus Status       `gorm:"type:text;not null" json:"new_status"`
	Actor     Actor        `gorm:"type:text;not null" json:"actor"`
	Note      *string      `json:"note,omitempty"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (LifecycleEvent) TableName() string { return "lifecycle_events" }

type NotificationStatus string

const (
	NotificationStatusPending NotificationStatus = "pending"
	NotificationStatusSent    NotificationStatus = "sent"
)

type Notification struct {
	ID           snowflake.ID       `gorm:"primaryKey" json:"id"`
	DomainID     snowflake.ID       `gorm:"not null;index" json:"domain_id"`
	Milestone    string             `gorm:"type:text;not null" json:"milestone"`
	ScheduledFor time.Time          `gorm:"not null" json:"scheduled_for"`
	Status       NotificationStatus `gorm:"type:text;not null" json:"status"`
	DeliveredAt  *time.Time         `json:"delivered_at,omitempty"`
	CreatedAt    time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Notification) TableName() string { return "notifications" }

// Milestone offsets are signed day offsets relative to the billing expiry.
type Milestone struct {
	Code       string
	OffsetDays int
}

// Milestones enumerates every scheduled touchpoint around expiry.
var Milestones = []Milestone{
	{Code: "D-14", OffsetDays: -14},
	{Code: "D-7", OffsetDays: -7},
	{Code: "D-3", OffsetDays: -3},
	{Code: "D-1", OffsetDays: -1},
	{Code: "D+1", OffsetDays: 1},
	{Code: "D+10", OffsetDays: 10},
	{Code: "D+16", OffsetDays: 16},
	{Code: "D+30", OffsetDays: 30},
	{Code: "D+45", OffsetDays: 45},
	{Code: "D+60", OffsetDays: 60},
}

// NextPhase returns the phase that follows status on the delinquency path.
func NextPhase(status Status) (Status, bool) {
	switch status {
	case StatusActive:
		return StatusGrace, true
	case StatusGrace:
		return StatusRedemption, true
	case StatusRedemption:
		return StatusRegistryHold, true
	case StatusRegistryHold:
		return StatusAuction, true
	case StatusAuction:
		return StatusPendingDelete, true
	case StatusPendingDelete:
		return StatusReleased, true
	default:
		return "", false
	}
}

// PhaseDurationDays returns the length of the window that opens when a domain
// enters status.
func PhaseDurationDays(status Status) (int, bool) {
	switch status {
	case StatusGrace:
		return GraceDays, true
	case StatusRedemption:
		return RedemptionDays, true
	case StatusRegistryHold:
		return RegistryHoldDays, true
	case StatusAuction:
		return AuctionDays, true
	case StatusPendingDelete:
		return PendingDeleteDays, true
	default:
		return 0, false
	}
}
