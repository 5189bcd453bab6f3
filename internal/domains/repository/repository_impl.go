package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	domainsdomain "github.com/namevault/namevault/internal/domains/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domainsdomain.Repository {
	return &repo{}
}

// deadlineColumns whitelists the column names that CASTransition may set, so
// the interpolated column can never come from request input.
var deadlineColumns = map[string]bool{
	"grace_until":          true,
	"redemption_until":     true,
	"registry_hold_until":  true,
	"auction_until":        true,
	"pending_delete_until": true,
}

// phaseDeadlineColumn maps each phase to the column holding its exit deadline.
var phaseDeadlineColumn = map[domainsdomain.Status]string{
	domainsdomain.StatusActive:        "expires_at",
	domainsdomain.StatusGrace:         "grace_until",
	domainsdomain.StatusRedemption:    "redemption_until",
	domainsdomain.StatusRegistryHold:  "registry_hold_until",
	domainsdomain.StatusAuction:       "auction_until",
	domainsdomain.StatusPendingDelete: "pending_delete_until",
}

const domainColumns = `id, fqdn, customer_id, status, expires_at, grace_until, redemption_until,
	registry_hold_until, auction_until, pending_delete_until, is_transferable,
	transfer_lock_until, suspension_reason, created_at, updated_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, domain *domainsdomain.Domain) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO domains (id, fqdn, customer_id, status, expires_at, is_transferable, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		domain.ID,
		domain.FQDN,
		domain.CustomerID,
		domain.Status,
		domain.ExpiresAt,
		domain.IsTransferable,
		domain.CreatedAt,
		domain.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domainsdomain.Domain, error) {
	var domain domainsdomain.Domain
	err := db.WithContext(ctx).Raw(
		fmt.Sprintf(`SELECT %s FROM domains WHERE id = ?`, domainColumns),
		id,
	).Scan(&domain).Error
	if err != nil {
		return nil, err
	}
	if domain.ID == 0 {
		return nil, nil
	}
	return &domain, nil
}

func (r *repo) FindByFQDN(ctx context.Context, db *gorm.DB, fqdn string) (*domainsdomain.Domain, error) {
	var domain domainsdomain.Domain
	err := db.WithContext(ctx).Raw(
		fmt.Sprintf(`SELECT %s FROM domains WHERE fqdn = ?`, domainColumns),
		fqdn,
	).Scan(&domain).Error
	if err != nil {
		return nil, err
	}
	if domain.ID == 0 {
		return nil, nil
	}
	return &domain, nil
}

func (r *repo) ListByCustomer(ctx context.Context, db *gorm.DB, customerID snowflake.ID) ([]domainsdomain.Domain, error) {
	var domains []domainsdomain.Domain
	err := db.WithContext(ctx).Raw(
		fmt.Sprintf(`SELECT %s FROM domains WHERE customer_id = ? ORDER BY fqdn`, domainColumns),
		customerID,
	).Scan(&domains).Error
	return domains, err
}

func (r *repo) CASTransition(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to domainsdomain.Status, update domainsdomain.TransitionUpdate, now time.Time) (bool, error) {
	set := "status = ?, updated_at = ?"
	args := []interface{}{to, now}

	if update.DeadlineColumn != "" {
		if !deadlineColumns[update.DeadlineColumn] {
			return false, fmt.Errorf("unknown deadline column %q", update.DeadlineColumn)
		}
		set += fmt.Sprintf(", %s = ?", update.DeadlineColumn)
		args = append(args, update.Deadline)
	}
	if update.ClearOwner {
		set += ", customer_id = NULL"
	}
	if update.SuspensionReason != nil {
		set += ", suspension_reason = ?"
		args = append(args, *update.SuspensionReason)
	}

	args = append(args, id, from)
	res := db.WithContext(ctx).Exec(
		fmt.Sprintf(`UPDATE domains SET %s WHERE id = ? AND status = ?`, set),
		args...,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) ClaimDueForPhase(ctx context.Context, db *gorm.DB, phase domainsdomain.Status, now time.Time, limit int) ([]domainsdomain.Domain, error) {
	column, ok := phaseDeadlineColumn[phase]
	if !ok {
		return nil, fmt.Errorf("phase %q has no deadline", phase)
	}

	var domains []domainsdomain.Domain
	err := db.WithContext(ctx).Raw(
		fmt.Sprintf(`SELECT %s
		 FROM domains
		 WHERE status = ? AND %s < ?
		 ORDER BY %s
		 LIMIT ?
		 FOR UPDATE SKIP LOCKED`, domainColumns, column, column),
		phase,
		now,
		limit,
	).Scan(&domains).Error
	return domains, err
}

func (r *repo) ReassignOwner(ctx context.Context, db *gorm.DB, id, newOwner snowflake.ID, lockUntil time.Time, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE domains
		 SET customer_id = ?, transfer_lock_until = ?, updated_at = ?
		 WHERE id = ?`,
		newOwner,
		lockUntil,
		now,
		id,
	).Error
}

func (r *repo) SetExpiry(ctx context.Context, db *gorm.DB, id snowflake.ID, expiresAt time.Time, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE domains
		 SET expires_at = ?,
		     grace_until = NULL,
		     redemption_until = NULL,
		     registry_hold_until = NULL,
		     auction_until = NULL,
		     pending_delete_until = NULL,
		     updated_at = ?
		 WHERE id = ?`,
		expiresAt,
		now,
		id,
	).Error
}

func (r *repo) InsertEvent(ctx context.Context, db *gorm.DB, event *domainsdomain.LifecycleEvent) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO lifecycle_events (id, domain_id, old_status, new_status, actor, note, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.DomainID,
		event.OldStatus,
		event.NewStatus,
		event.Actor,
		event.Note,
		event.CreatedAt,
	).Error
}

func (r *repo) ListEvents(ctx context.Context, db *gorm.DB, domainID snowflake.ID) ([]domainsdomain.LifecycleEvent, error) {
	var events []domainsdomain.LifecycleEvent
	err := db.WithContext(ctx).Raw(
		`SELECT id, domain_id, old_status, new_status, actor, note, created_at
		 FROM lifecycle_events
		 WHERE domain_id = ?
		 ORDER BY created_at, id`,
		domainID,
	).Scan(&events).Error
	return events, err
}

func (r *repo) InsertNotifications(ctx context.Context, db *gorm.DB, notifications []domainsdomain.Notification) error {
	for _, n := range notifications {
		// Re-scheduling after a renewal must not duplicate milestones that
		// already exist for the domain.
		err := db.WithContext(ctx).Exec(
			`INSERT INTO notifications (id, domain_id, milestone, scheduled_for, status, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT (domain_id, milestone) DO NOTHING`,
			n.ID,
			n.DomainID,
			n.Milestone,
			n.ScheduledFor,
			n.Status,
			n.CreatedAt,
		).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *repo) DeletePendingNotifications(ctx context.Context, db *gorm.DB, domainID snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`DELETE FROM notifications WHERE domain_id = ? AND status = ?`,
		domainID,
		domainsdomain.NotificationStatusPending,
	).Error
}

func (r *repo) ClaimDueNotifications(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]domainsdomain.Notification, error) {
	var notifications []domainsdomain.Notification
	err := db.WithContext(ctx).Raw(
		`SELECT id, domain_id, milestone, scheduled_for, status, delivered_at, created_at
		 FROM notifications
		 WHERE status = ? AND scheduled_for <= ?
		 ORDER BY scheduled_for
		 LIMIT ?
		 FOR UPDATE SKIP LOCKED`,
		domainsdomain.NotificationStatusPending,
		now,
		limit,
	).Scan(&notifications).Error
	return notifications, err
}

func (r *repo) MarkNotificationSent(ctx context.Context, db *gorm.DB, id snowflake.ID, deliveredAt time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE notifications
		 SET status = ?, delivered_at = ?
		 WHERE id = ? AND status = ?`,
		domainsdomain.NotificationStatusSent,
		deliveredAt,
		id,
		domainsdomain.NotificationStatusPending,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
