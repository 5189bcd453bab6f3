package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	recondomain "github.com/namevault/namevault/internal/reconciliation/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() recondomain.Repository {
	return &repo{}
}

const runColumns = `id, window_start, window_end, external_checked, internal_checked,
	discrepancies_found, discrepancies_resolved, status, error_message, execution_ms,
	created_at, updated_at`

func (r *repo) InsertRun(ctx context.Context, db *gorm.DB, run *recondomain.Run) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO reconciliation_runs (id, window_start, window_end, external_checked, internal_checked,
		                                  discrepancies_found, discrepancies_resolved, status, error_message,
		                                  execution_ms, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.WindowStart,
		run.WindowEnd,
		run.ExternalChecked,
		run.InternalChecked,
		run.DiscrepanciesFound,
		run.DiscrepanciesResolved,
		run.Status,
		run.ErrorMessage,
		run.ExecutionMs,
		run.CreatedAt,
		run.UpdatedAt,
	).Error
}

func (r *repo) UpdateRun(ctx context.Context, db *gorm.DB, run *recondomain.Run) error {
	return db.WithContext(ctx).Exec(
		`UPDATE reconciliation_runs
		 SET external_checked = ?, internal_checked = ?, discrepancies_found = ?,
		     discrepancies_resolved = ?, status = ?, error_message = ?, execution_ms = ?,
		     updated_at = ?
		 WHERE id = ?`,
		run.ExternalChecked,
		run.InternalChecked,
		run.DiscrepanciesFound,
		run.DiscrepanciesResolved,
		run.Status,
		run.ErrorMessage,
		run.ExecutionMs,
		run.UpdatedAt,
		run.ID,
	).Error
}

func (r *repo) FindRun(ctx context.Context, db *gorm.DB, id snowflake.ID) (*recondomain.Run, error) {
	var run recondomain.Run
	err := db.WithContext(ctx).Raw(
		`SELECT `+runColumns+` FROM reconciliation_runs WHERE id = ?`,
		id,
	).Scan(&run).Error
	if err != nil {
		return nil, err
	}
	if run.ID == 0 {
		return nil, nil
	}
	return &run, nil
}

func (r *repo) ListRuns(ctx context.Context, db *gorm.DB, limit int) ([]recondomain.Run, error) {
	var runs []recondomain.Run
	err := db.WithContext(ctx).Raw(
		`SELECT `+runColumns+` FROM reconciliation_runs ORDER BY created_at DESC LIMIT ?`,
		limit,
	).Scan(&runs).Error
	return runs, err
}

func (r *repo) InsertDiscrepancy(ctx context.Context, db *gorm.DB, d *recondomain.Discrepancy) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO discrepancies (id, run_id, type, provider_transaction_id, external_amount,
		                            external_status, order_id, internal_amount, internal_status,
		                            resolution, auto_resolved, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID,
		d.RunID,
		d.Type,
		d.ProviderTransactionID,
		d.ExternalAmount,
		d.ExternalStatus,
		d.OrderID,
		d.InternalAmount,
		d.InternalStatus,
		d.Resolution,
		d.AutoResolved,
		d.CreatedAt,
	).Error
}

func (r *repo) ListDiscrepancies(ctx context.Context, db *gorm.DB, runID snowflake.ID) ([]recondomain.Discrepancy, error) {
	var out []recondomain.Discrepancy
	err := db.WithContext(ctx).Raw(
		`SELECT id, run_id, type, provider_transaction_id, external_amount, external_status,
		        order_id, internal_amount, internal_status, resolution, auto_resolved, created_at
		 FROM discrepancies
		 WHERE run_id = ?
		 ORDER BY created_at, id`,
		runID,
	).Scan(&out).Error
	return out, err
}
