package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	subscriptiondomain "github.com/namevault/namevault/internal/subscription/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() subscriptiondomain.Repository {
	return &repo{}
}

const subscriptionColumns = `id, customer_id, domain_id, plan_code, provider_subscription_id,
	status, next_billing_date, canceled_at, created_at, updated_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, sub *subscriptiondomain.Subscription) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO subscriptions (id, customer_id, domain_id, plan_code, provider_subscription_id,
		                            status, next_billing_date, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.ID,
		sub.CustomerID,
		sub.DomainID,
		sub.PlanCode,
		sub.ProviderSubscriptionID,
		sub.Status,
		sub.NextBillingDate,
		sub.CreatedAt,
		sub.UpdatedAt,
	).Error
}

func (r *repo) FindByProviderID(ctx context.Context, db *gorm.DB, providerSubscriptionID string) (*subscriptiondomain.Subscription, error) {
	var sub subscriptiondomain.Subscription
	err := db.WithContext(ctx).Raw(
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE provider_subscription_id = ?`,
		providerSubscriptionID,
	).Scan(&sub).Error
	if err != nil {
		return nil, err
	}
	if sub.ID == 0 {
		return nil, nil
	}
	return &sub, nil
}

func (r *repo) ListByCustomer(ctx context.Context, db *gorm.DB, customerID snowflake.ID) ([]subscriptiondomain.Subscription, error) {
	var subs []subscriptiondomain.Subscription
	err := db.WithContext(ctx).Raw(
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE customer_id = ? ORDER BY created_at DESC`,
		customerID,
	).Scan(&subs).Error
	return subs, err
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status subscriptiondomain.Status, canceledAt *time.Time, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE subscriptions
		 SET status = ?, canceled_at = COALESCE(?, canceled_at), updated_at = ?
		 WHERE id = ? AND status <> ?`,
		status,
		canceledAt,
		now,
		id,
		subscriptiondomain.StatusCanceled,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) SetNextBillingDate(ctx context.Context, db *gorm.DB, id snowflake.ID, next *time.Time, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE subscriptions SET next_billing_date = ?, updated_at = ? WHERE id = ?`,
		next,
		now,
		id,
	).Error
}
