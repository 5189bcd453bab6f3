package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/namevault/namevault/internal/clock"
	"github.com/namevault/namevault/internal/config"
	domainsdomain "github.com/namevault/namevault/internal/domains/domain"
	domainsrepo "github.com/namevault/namevault/internal/domains/repository"
	domainsservice "github.com/namevault/namevault/internal/domains/service"
	orderrepo "github.com/namevault/namevault/internal/order/repository"
	processordomain "github.com/namevault/namevault/internal/processor/domain"
	recondomain "github.com/namevault/namevault/internal/reconciliation/domain"
	reconrepo "github.com/namevault/namevault/internal/reconciliation/repository"
	"github.com/namevault/namevault/internal/testdb"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var testStart = time.Date(2025, 1, 2, 12, 0, 0, 0, time.UTC)

type fakeProcessor struct {
	transactions []processordomain.LedgerTransaction
	err          error
}

func (f *fakeProcessor) CreateOrder(context.Context, processordomain.CreateOrderRequest) (*processordomain.Order, error) {
	return nil, processordomain.ErrRejected
}

func (f *fakeProcessor) CaptureOrder(context.Context, string) (*processordomain.CaptureResult, error) {
	return nil, processordomain.ErrRejected
}

func (f *fakeProcessor) ListTransactions(context.Context, time.Time, time.Time) ([]processordomain.LedgerTransaction, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.transactions, nil
}

type fixture struct {
	svc  recondomain.Service
	db   *gorm.DB
	node *snowflake.Node
	proc *fakeProcessor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testdb.Open(t)
	testdb.CreateDomainTables(t, db)
	testdb.CreateOrderTable(t, db)
	testdb.CreateReconciliationTables(t, db)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fakeClock := clock.NewFakeClock(testStart)
	log := zap.NewNop()
	proc := &fakeProcessor{}

	domainSvc := domainsservice.NewService(domainsservice.Params{
		DB: db, Log: log, GenID: node, Clock: fakeClock, Repo: domainsrepo.Provide(),
	})
	svc := NewService(Params{
		Config:    config.Config{Scheduler: config.SchedulerConfig{ReconciliationWindow: 24 * time.Hour}},
		DB:        db,
		Log:       log,
		GenID:     node,
		Clock:     fakeClock,
		Repo:      reconrepo.Provide(),
		OrderRepo: orderrepo.Provide(),
		Domains:   domainSvc,
		Processor: proc,
	})
	return &fixture{svc: svc, db: db, node: node, proc: proc}
}

func (f *fixture) seedOrder(t *testing.T, status, providerOrderID string, txnID *string, amount string, domainID *snowflake.ID) snowflake.ID {
	t.Helper()
	id := f.node.Generate()
	require.NoError(t, f.db.Exec(
		`INSERT INTO orders (id, domain_id, provider, provider_order_id, provider_transaction_id, amount, currency, status, created_at, updated_at)
		 VALUES (?, ?, 'paypal', ?, ?, ?, 'USD', ?, ?, ?)`,
		id, domainID, providerOrderID, txnID, amount, status, testStart.Add(-time.Hour), testStart.Add(-time.Hour),
	).Error)
	return id
}

func settled(txnID, refID, amount string) processordomain.LedgerTransaction {
	return processordomain.LedgerTransaction{
		TransactionID: txnID,
		ReferenceID:   refID,
		Status:        "S",
		Amount:        decimal.RequireFromString(amount),
		Currency:      "USD",
		CapturedAt:    testStart.Add(-time.Hour),
	}
}

func TestRunOnceCleanLedger(t *testing.T) {
	f := newFixture(t)

	txn := "TXN-1"
	f.seedOrder(t, "completed", "ORD-1", &txn, "499.00", nil)
	f.proc.transactions = []processordomain.LedgerTransaction{settled("TXN-1", "ORD-1", "499.00")}

	run, err := f.svc.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, recondomain.RunStatusCompleted, run.Status)
	require.Equal(t, 1, run.ExternalChecked)
	require.Equal(t, 1, run.InternalChecked)
	require.Zero(t, run.DiscrepanciesFound)
	require.True(t, run.WindowEnd.Sub(run.WindowStart) == 24*time.Hour)
}

func TestRunOnceHealsStatusMismatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	domainID := f.node.Generate()
	require.NoError(t, f.db.Exec(
		`INSERT INTO domains (id, fqdn, status, is_transferable, created_at, updated_at)
		 VALUES (?, 'stuck.example', 'pending', TRUE, ?, ?)`,
		domainID, testStart, testStart,
	).Error)

	// The checkout exists but the capture webhook never arrived.
	orderID := f.seedOrder(t, "pending", "ORD-1", nil, "499.00", &domainID)
	f.proc.transactions = []processordomain.LedgerTransaction{settled("TXN-1", "ORD-1", "499.00")}

	run, err := f.svc.RunOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, run.DiscrepanciesFound)
	require.Equal(t, 1, run.DiscrepanciesResolved)

	var order struct {
		Status                string
		ProviderTransactionID *string
	}
	require.NoError(t, f.db.Raw(
		`SELECT status, provider_transaction_id FROM orders WHERE id = ?`, orderID,
	).Scan(&order).Error)
	require.Equal(t, "completed", order.Status)
	require.NotNil(t, order.ProviderTransactionID)
	require.Equal(t, "TXN-1", *order.ProviderTransactionID)

	var domainStatus string
	require.NoError(t, f.db.Raw(`SELECT status FROM domains WHERE id = ?`, domainID).Scan(&domainStatus).Error)
	require.Equal(t, string(domainsdomain.StatusActive), domainStatus)

	discrepancies, err := f.svc.ListDiscrepancies(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, discrepancies, 1)
	require.Equal(t, recondomain.DiscrepancyStatusMismatch, discrepancies[0].Type)
	require.True(t, discrepancies[0].AutoResolved)
	require.NotNil(t, discrepancies[0].Resolution)
	require.Equal(t, "order_completed", *discrepancies[0].Resolution)
}

func TestRunOnceFlagsMissingInDB(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.proc.transactions = []processordomain.LedgerTransaction{settled("TXN-GHOST", "", "120.00")}

	run, err := f.svc.RunOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, run.DiscrepanciesFound)
	require.Zero(t, run.DiscrepanciesResolved)

	discrepancies, err := f.svc.ListDiscrepancies(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, discrepancies, 1)
	require.Equal(t, recondomain.DiscrepancyMissingInDB, discrepancies[0].Type)
	require.False(t, discrepancies[0].AutoResolved)
	require.Nil(t, discrepancies[0].OrderID)
}

func TestRunOnceFlagsAmountMismatchWithoutHealing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	txn := "TXN-1"
	orderID := f.seedOrder(t, "completed", "ORD-1", &txn, "499.00", nil)
	f.proc.transactions = []processordomain.LedgerTransaction{settled("TXN-1", "ORD-1", "450.00")}

	run, err := f.svc.RunOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, run.DiscrepanciesFound)
	require.Zero(t, run.DiscrepanciesResolved)

	discrepancies, err := f.svc.ListDiscrepancies(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, discrepancies, 1)
	require.Equal(t, recondomain.DiscrepancyAmountMismatch, discrepancies[0].Type)
	require.NotNil(t, discrepancies[0].OrderID)
	require.Equal(t, orderID, *discrepancies[0].OrderID)

	// The order itself stays untouched.
	var status string
	require.NoError(t, f.db.Raw(`SELECT status FROM orders WHERE id = ?`, orderID).Scan(&status).Error)
	require.Equal(t, "completed", status)
}

func TestRunOnceFlagsConflictingTransactionID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// The checkout settled under TXN-OLD; the ledger reports another capture
	// TXN-NEW against the same reference and the same amount.
	txn := "TXN-OLD"
	orderID := f.seedOrder(t, "completed", "ORD-1", &txn, "499.00", nil)
	f.proc.transactions = []processordomain.LedgerTransaction{settled("TXN-NEW", "ORD-1", "499.00")}

	run, err := f.svc.RunOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, run.DiscrepanciesFound)
	require.Zero(t, run.DiscrepanciesResolved)

	discrepancies, err := f.svc.ListDiscrepancies(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, discrepancies, 1)
	d := discrepancies[0]
	require.Equal(t, recondomain.DiscrepancyMissingInDB, d.Type)
	require.Equal(t, "TXN-NEW", d.ProviderTransactionID)
	require.NotNil(t, d.OrderID)
	require.Equal(t, orderID, *d.OrderID)
	require.False(t, d.AutoResolved)
	require.NotNil(t, d.Resolution)
	require.Equal(t, "order_settled_under_different_transaction_id", *d.Resolution)

	// The settled order keeps its original transaction id.
	var stored struct {
		Status                string
		ProviderTransactionID *string
	}
	require.NoError(t, f.db.Raw(
		`SELECT status, provider_transaction_id FROM orders WHERE id = ?`, orderID,
	).Scan(&stored).Error)
	require.Equal(t, "completed", stored.Status)
	require.NotNil(t, stored.ProviderTransactionID)
	require.Equal(t, "TXN-OLD", *stored.ProviderTransactionID)
}

func TestRunOnceContinuesPastCheckFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Recording the ghost capture fails once its discrepancy insert hits a
	// broken table; the healthy transaction must still be checked.
	require.NoError(t, f.db.Exec(`DROP TABLE discrepancies`).Error)

	txn := "TXN-1"
	f.seedOrder(t, "completed", "ORD-1", &txn, "499.00", nil)
	f.proc.transactions = []processordomain.LedgerTransaction{
		settled("TXN-GHOST", "", "120.00"),
		settled("TXN-1", "ORD-1", "499.00"),
	}

	run, err := f.svc.RunOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, recondomain.RunStatusCompleted, run.Status)
	require.Equal(t, 2, run.ExternalChecked)
	require.Zero(t, run.DiscrepanciesFound)
	require.NotNil(t, run.ErrorMessage)
	require.Contains(t, *run.ErrorMessage, "TXN-GHOST")

	stored, err := f.svc.GetRun(ctx, run.ID)
	require.NoError(t, err)
	require.Equal(t, recondomain.RunStatusCompleted, stored.Status)
	require.NotNil(t, stored.ErrorMessage)
}

func TestRunOnceToleratesEpsilonDifference(t *testing.T) {
	f := newFixture(t)

	txn := "TXN-1"
	f.seedOrder(t, "completed", "ORD-1", &txn, "499.00", nil)
	f.proc.transactions = []processordomain.LedgerTransaction{settled("TXN-1", "ORD-1", "499.01")}

	run, err := f.svc.RunOnce(context.Background())
	require.NoError(t, err)
	require.Zero(t, run.DiscrepanciesFound)
}

func TestRunOnceSkipsUnsettledRows(t *testing.T) {
	f := newFixture(t)

	pending := settled("TXN-P", "", "10.00")
	pending.Status = "P"
	denied := settled("TXN-D", "", "10.00")
	denied.Status = "DENIED"
	f.proc.transactions = []processordomain.LedgerTransaction{pending, denied}

	run, err := f.svc.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, run.ExternalChecked)
	require.Zero(t, run.DiscrepanciesFound)
}

func TestRunOnceFailsWhenLedgerUnavailable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.proc.err = processordomain.ErrUnavailable

	run, err := f.svc.RunOnce(ctx)
	require.ErrorIs(t, err, processordomain.ErrUnavailable)
	require.Equal(t, recondomain.RunStatusFailed, run.Status)

	stored, err := f.svc.GetRun(ctx, run.ID)
	require.NoError(t, err)
	require.Equal(t, recondomain.RunStatusFailed, stored.Status)
	require.NotNil(t, stored.ErrorMessage)
}
