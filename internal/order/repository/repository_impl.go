package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	orderdomain "github.com/namevault/namevault/internal/order/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() orderdomain.Repository {
	return &repo{}
}

const orderColumns = `id, customer_id, domain_id, provider, provider_order_id, provider_transaction_id,
	amount, currency, status, description, created_at, updated_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, order *orderdomain.Order) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO orders (id, customer_id, domain_id, provider, provider_order_id, provider_transaction_id,
		                     amount, currency, status, description, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID,
		order.CustomerID,
		order.DomainID,
		order.Provider,
		order.ProviderOrderID,
		order.ProviderTransactionID,
		order.Amount,
		order.Currency,
		order.Status,
		order.Description,
		order.CreatedAt,
		order.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*orderdomain.Order, error) {
	return r.findOne(ctx, db, `id = ?`, id)
}

func (r *repo) FindByProviderOrderID(ctx context.Context, db *gorm.DB, provider, providerOrderID string) (*orderdomain.Order, error) {
	return r.findOne(ctx, db, `provider = ? AND provider_order_id = ?`, provider, providerOrderID)
}

func (r *repo) FindByProviderTransactionID(ctx context.Context, db *gorm.DB, provider, transactionID string) (*orderdomain.Order, error) {
	return r.findOne(ctx, db, `provider = ? AND provider_transaction_id = ?`, provider, transactionID)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, where string, args ...interface{}) (*orderdomain.Order, error) {
	var order orderdomain.Order
	err := db.WithContext(ctx).Raw(
		`SELECT `+orderColumns+` FROM orders WHERE `+where,
		args...,
	).Scan(&order).Error
	if err != nil {
		return nil, err
	}
	if order.ID == 0 {
		return nil, nil
	}
	return &order, nil
}

func (r *repo) ListByCustomer(ctx context.Context, db *gorm.DB, customerID snowflake.ID) ([]orderdomain.Order, error) {
	var orders []orderdomain.Order
	err := db.WithContext(ctx).Raw(
		`SELECT `+orderColumns+` FROM orders WHERE customer_id = ? ORDER BY created_at DESC`,
		customerID,
	).Scan(&orders).Error
	return orders, err
}

func (r *repo) ListCompletedBetween(ctx context.Context, db *gorm.DB, provider string, start, end time.Time) ([]orderdomain.Order, error) {
	var orders []orderdomain.Order
	err := db.WithContext(ctx).Raw(
		`SELECT `+orderColumns+`
		 FROM orders
		 WHERE provider = ?
		   AND status = ?
		   AND provider_transaction_id IS NOT NULL
		   AND updated_at >= ? AND updated_at < ?`,
		provider,
		orderdomain.StatusCompleted,
		start,
		end,
	).Scan(&orders).Error
	return orders, err
}

func (r *repo) MarkCompleted(ctx context.Context, db *gorm.DB, id snowflake.ID, transactionID string, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE orders
		 SET status = ?, provider_transaction_id = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		orderdomain.StatusCompleted,
		transactionID,
		now,
		id,
		orderdomain.StatusPending,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) MarkFailed(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE orders
		 SET status = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		orderdomain.StatusFailed,
		now,
		id,
		orderdomain.StatusPending,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
