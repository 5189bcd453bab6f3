// Package testdb wires an isolated in-memory sqlite database that accepts the
// Postgres-flavoured SQL the repositories emit.
package testdb

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

var seq atomic.Int64

// Open returns a fresh in-memory database. sqlite does not speak FOR UPDATE,
// so the locking clauses are stripped before execution.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", seq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	stripForUpdate := func(d *gorm.DB) {
		sql := d.Statement.SQL.String()
		if strings.Contains(sql, "FOR UPDATE") {
			sql = strings.ReplaceAll(sql, "FOR UPDATE SKIP LOCKED", "")
			sql = strings.ReplaceAll(sql, "FOR UPDATE", "")
			d.Statement.SQL.Reset()
			d.Statement.SQL.WriteString(sql)
		}
	}
	db.Callback().Query().Before("gorm:query").Register("sqlite_skip_locked", stripForUpdate)
	db.Callback().Row().Before("gorm:row").Register("sqlite_skip_locked_row", stripForUpdate)

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return db
}

func exec(t *testing.T, db *gorm.DB, ddl string) {
	t.Helper()
	if err := db.Exec(ddl).Error; err != nil {
		t.Fatalf("apply fixture DDL: %v", err)
	}
}

func CreateCustomerTable(t *testing.T, db *gorm.DB) {
	exec(t, db, `
		CREATE TABLE customers (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			external_payer_id TEXT,
			currency TEXT NOT NULL DEFAULT 'USD',
			metadata TEXT NOT NULL DEFAULT '{}',
			created_at DATETIME,
			updated_at DATETIME
		)`)
}

func CreateDomainTables(t *testing.T, db *gorm.DB) {
	exec(t, db, `
		CREATE TABLE domains (
			id INTEGER PRIMARY KEY,
			fqdn TEXT NOT NULL UNIQUE,
			customer_id INTEGER,
			status TEXT NOT NULL,
			expires_at DATETIME,
			grace_until DATETIME,
			redemption_until DATETIME,
			registry_hold_until DATETIME,
			auction_until DATETIME,
			pending_delete_until DATETIME,
			is_transferable BOOLEAN NOT NULL DEFAULT TRUE,
			transfer_lock_until DATETIME,
			suspension_reason TEXT,
			created_at DATETIME,
			updated_at DATETIME
		)`)
	exec(t, db, `
		CREATE TABLE lifecycle_events (
			id INTEGER PRIMARY KEY,
			domain_id INTEGER NOT NULL,
			old_status TEXT NOT NULL,
			new_status TEXT NOT NULL,
			actor TEXT NOT NULL,
			note TEXT,
			created_at DATETIME
		)`)
	exec(t, db, `
		CREATE TABLE notifications (
			id INTEGER PRIMARY KEY,
			domain_id INTEGER NOT NULL,
			milestone TEXT NOT NULL,
			scheduled_for DATETIME NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			delivered_at DATETIME,
			created_at DATETIME
		)`)
	exec(t, db, `CREATE UNIQUE INDEX idx_notifications_domain_milestone ON notifications (domain_id, milestone)`)
}

func CreateOrderTable(t *testing.T, db *gorm.DB) {
	exec(t, db, `
		CREATE TABLE orders (
			id INTEGER PRIMARY KEY,
			customer_id INTEGER,
			domain_id INTEGER,
			provider TEXT NOT NULL,
			provider_order_id TEXT NOT NULL,
			provider_transaction_id TEXT,
			amount NUMERIC NOT NULL,
			currency TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			description TEXT,
			created_at DATETIME,
			updated_at DATETIME
		)`)
	exec(t, db, `CREATE UNIQUE INDEX idx_orders_provider_order ON orders (provider, provider_order_id)`)
	exec(t, db, `CREATE UNIQUE INDEX idx_orders_provider_txn ON orders (provider, provider_transaction_id)
		WHERE provider_transaction_id IS NOT NULL`)
}

func CreateSubscriptionTable(t *testing.T, db *gorm.DB) {
	exec(t, db, `
		CREATE TABLE subscriptions (
			id INTEGER PRIMARY KEY,
			customer_id INTEGER NOT NULL,
			domain_id INTEGER,
			plan_code TEXT NOT NULL,
			provider_subscription_id TEXT NOT NULL UNIQUE,
			status TEXT NOT NULL DEFAULT 'active',
			next_billing_date DATETIME,
			canceled_at DATETIME,
			created_at DATETIME,
			updated_at DATETIME
		)`)
}

func CreatePaymentEventTable(t *testing.T, db *gorm.DB) {
	exec(t, db, `
		CREATE TABLE payment_events (
			id INTEGER PRIMARY KEY,
			provider TEXT NOT NULL,
			provider_event_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			payload TEXT NOT NULL,
			received_at DATETIME NOT NULL,
			processed_at DATETIME
		)`)
	exec(t, db, `CREATE UNIQUE INDEX idx_payment_events_dedupe ON payment_events (provider, provider_event_id)`)
}

func CreateReconciliationTables(t *testing.T, db *gorm.DB) {
	exec(t, db, `
		CREATE TABLE reconciliation_runs (
			id INTEGER PRIMARY KEY,
			window_start DATETIME NOT NULL,
			window_end DATETIME NOT NULL,
			external_checked INTEGER NOT NULL DEFAULT 0,
			internal_checked INTEGER NOT NULL DEFAULT 0,
			discrepancies_found INTEGER NOT NULL DEFAULT 0,
			discrepancies_resolved INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'running',
			error_message TEXT,
			execution_ms INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME,
			updated_at DATETIME
		)`)
	exec(t, db, `
		CREATE TABLE discrepancies (
			id INTEGER PRIMARY KEY,
			run_id INTEGER NOT NULL,
			type TEXT NOT NULL,
			provider_transaction_id TEXT NOT NULL,
			external_amount NUMERIC,
			external_status TEXT,
			order_id INTEGER,
			internal_amount NUMERIC,
			internal_status TEXT,
			resolution TEXT,
			auto_resolved BOOLEAN NOT NULL DEFAULT FALSE,
			created_at DATETIME
		)`)
}

func CreateTransferTable(t *testing.T, db *gorm.DB) {
	exec(t, db, `
		CREATE TABLE transfers (
			id INTEGER PRIMARY KEY,
			domain_id INTEGER NOT NULL,
			from_customer_id INTEGER NOT NULL,
			to_customer_id INTEGER NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			transfer_fee NUMERIC NOT NULL,
			renewal_fee NUMERIC NOT NULL,
			total_fee NUMERIC NOT NULL,
			currency TEXT NOT NULL,
			provider_order_id TEXT,
			completed_at DATETIME,
			created_at DATETIME,
			updated_at DATETIME
		)`)
	exec(t, db, `CREATE UNIQUE INDEX idx_transfers_pending_domain ON transfers (domain_id)
		WHERE status IN ('pending', 'awaiting_payment')`)
}
