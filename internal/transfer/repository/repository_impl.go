package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	transferdomain "github.com/namevault/namevault/internal/transfer/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() transferdomain.Repository {
	return &repo{}
}

const transferColumns = `id, domain_id, from_customer_id, to_customer_id, status, transfer_fee,
	renewal_fee, total_fee, currency, provider_order_id, completed_at, created_at, updated_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, transfer *transferdomain.Transfer) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO transfers (id, domain_id, from_customer_id, to_customer_id, status, transfer_fee,
		                        renewal_fee, total_fee, currency, provider_order_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		transfer.ID,
		transfer.DomainID,
		transfer.FromCustomerID,
		transfer.ToCustomerID,
		transfer.Status,
		transfer.TransferFee,
		transfer.RenewalFee,
		transfer.TotalFee,
		transfer.Currency,
		transfer.ProviderOrderID,
		transfer.CreatedAt,
		transfer.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*transferdomain.Transfer, error) {
	var transfer transferdomain.Transfer
	err := db.WithContext(ctx).Raw(
		`SELECT `+transferColumns+` FROM transfers WHERE id = ?`,
		id,
	).Scan(&transfer).Error
	if err != nil {
		return nil, err
	}
	if transfer.ID == 0 {
		return nil, nil
	}
	return &transfer, nil
}

func (r *repo) ListByDomain(ctx context.Context, db *gorm.DB, domainID snowflake.ID) ([]transferdomain.Transfer, error) {
	var transfers []transferdomain.Transfer
	err := db.WithContext(ctx).Raw(
		`SELECT `+transferColumns+` FROM transfers WHERE domain_id = ? ORDER BY created_at DESC`,
		domainID,
	).Scan(&transfers).Error
	return transfers, err
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to transferdomain.Status, providerOrderID *string, completedAt *time.Time, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE transfers
		 SET status = ?,
		     provider_order_id = COALESCE(?, provider_order_id),
		     completed_at = COALESCE(?, completed_at),
		     updated_at = ?
		 WHERE id = ? AND status = ?`,
		to,
		providerOrderID,
		completedAt,
		now,
		id,
		from,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
