// Package domain models reconciliation runs: periodic comparison of the
// processor's transaction ledger against the local order ledger.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

type DiscrepancyType string

const (
	// DiscrepancyMissingInDB is a settled external capture with no matching
	// order row at all.
	DiscrepancyMissingInDB DiscrepancyType = "missing_in_db"
	// DiscrepancyStatusMismatch is a settled external capture whose order is
	// still pending. This is the only type the engine heals on its own.
	DiscrepancyStatusMismatch DiscrepancyType = "status_mismatch"
	// DiscrepancyAmountMismatch is a completed order whose recorded amount
	// differs from the settled amount beyond the epsilon.
	DiscrepancyAmountMismatch DiscrepancyType = "amount_mismatch"
)

var ErrRunNotFound = errors.New("reconciliation_run_not_found")

// AmountEpsilon is the largest absolute difference treated as equal.
var AmountEpsilon = decimal.NewFromFloat(0.01)

type Run struct {
	ID                    snowflake.ID `gorm:"primaryKey" json:"id"`
	WindowStart           time.Time    `gorm:"not null" json:"window_start"`
	WindowEnd             time.Time    `gorm:"not null" json:"window_end"`
	ExternalChecked       int          `gorm:"not null" json:"external_checked"`
	InternalChecked       int          `gorm:"not null" json:"internal_checked"`
	DiscrepanciesFound    int          `gorm:"not null" json:"discrepancies_found"`
	DiscrepanciesResolved int          `gorm:"not null" json:"discrepancies_resolved"`
	Status                RunStatus    `gorm:"type:text;not null" json:"status"`
	ErrorMessage          *string      `json:"error_message,omitempty"`
	ExecutionMs           int64        `gorm:"not null" json:"execution_ms"`
	CreatedAt             time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt             time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Run) TableName() string { return "reconciliation_runs" }

type Discrepancy struct {
	ID                    snowflake.ID     `gorm:"primaryKey" json:"id"`
	RunID                 snowflake.ID     `gorm:"not null;index" json:"run_id"`
	Type                  DiscrepancyType  `gorm:"column:type;type:text;not null" json:"type"`
	ProviderTransactionID string           `gorm:"not null" json:"provider_transaction_id"`
	ExternalAmount        *decimal.Decimal `gorm:"type:numeric(12,2)" json:"external_amount,omitempty"`
	ExternalStatus        *string          `json:"external_status,omitempty"`
	OrderID               *snowflake.ID    `json:"order_id,omitempty"`
	InternalAmount        *decimal.Decimal `gorm:"type:numeric(12,2)" json:"internal_amount,omitempty"`
	InternalStatus        *string          `json:"internal_status,omitempty"`
	Resolution            *string          `json:"resolution,omitempty"`
	AutoResolved          bool             `gorm:"not null" json:"auto_resolved"`
	CreatedAt             time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Discrepancy) TableName() string { return "discrepancies" }

type Repository interface {
	InsertRun(ctx context.Context, db *gorm.DB, run *Run) error
	UpdateRun(ctx context.Context, db *gorm.DB, run *Run) error
	FindRun(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Run, error)
	ListRuns(ctx context.Context, db *gorm.DB, limit int) ([]Run, error)

	InsertDiscrepancy(ctx context.Context, db *gorm.DB, d *Discrepancy) error
	ListDiscrepancies(ctx context.Context, db *gorm.DB, runID snowflake.ID) ([]Discrepancy, error)
}

type Service interface {
	// RunOnce reconciles the trailing window against the processor ledger.
	// A ledger fetch failure fails the whole run; nothing is guessed.
	RunOnce(ctx context.Context) (*Run, error)

	GetRun(ctx context.Context, id snowflake.ID) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	ListDiscrepancies(ctx context.Context, runID snowflake.ID) ([]Discrepancy, error)
}
