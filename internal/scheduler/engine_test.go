package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/namevault/namevault/internal/clock"
	domainsdomain "github.com/namevault/namevault/internal/domains/domain"
	domainsrepo "github.com/namevault/namevault/internal/domains/repository"
	domainsservice "github.com/namevault/namevault/internal/domains/service"
	recondomain "github.com/namevault/namevault/internal/reconciliation/domain"
	"github.com/namevault/namevault/internal/testdb"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Mocks for dependencies

type fakeReconSvc struct {
	runs int
	err  error
}

func (f *fakeReconSvc) RunOnce(context.Context) (*recondomain.Run, error) {
	f.runs++
	if f.err != nil {
		return nil, f.err
	}
	return &recondomain.Run{Status: recondomain.RunStatusCompleted}, nil
}

func (f *fakeReconSvc) GetRun(context.Context, snowflake.ID) (*recondomain.Run, error) {
	return nil, recondomain.ErrRunNotFound
}

func (f *fakeReconSvc) ListRuns(context.Context, int) ([]recondomain.Run, error) {
	return nil, nil
}

func (f *fakeReconSvc) ListDiscrepancies(context.Context, snowflake.ID) ([]recondomain.Discrepancy, error) {
	return nil, nil
}

type recordingDispatcher struct {
	sent []domainsdomain.Notification
	err  error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, n domainsdomain.Notification) error {
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, n)
	return nil
}

type engineFixture struct {
	engine     *Engine
	db         *gorm.DB
	clock      *clock.FakeClock
	node       *snowflake.Node
	recon      *fakeReconSvc
	dispatcher *recordingDispatcher
}

func newEngineFixture(t *testing.T, cfg Config) *engineFixture {
	t.Helper()

	db := testdb.Open(t)
	testdb.CreateDomainTables(t, db)

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	startTime := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	fakeClock := clock.NewFakeClock(startTime)
	log := zap.NewNop()

	domainRepo := domainsrepo.Provide()
	domainSvc := domainsservice.NewService(domainsservice.Params{
		DB: db, Log: log, GenID: node, Clock: fakeClock, Repo: domainRepo,
	})

	recon := &fakeReconSvc{}
	dispatcher := &recordingDispatcher{}
	engine, err := New(Params{
		DB:         db,
		Log:        log,
		GenID:      node,
		Clock:      fakeClock,
		Domains:    domainSvc,
		DomainRepo: domainRepo,
		Recon:      recon,
		Dispatcher: dispatcher,
		Config:     cfg,
	})
	if err != nil {
		t.Fatalf("New engine: %v", err)
	}
	return &engineFixture{
		engine: engine, db: db, clock: fakeClock, node: node,
		recon: recon, dispatcher: dispatcher,
	}
}

func (f *engineFixture) domainStatus(t *testing.T, id snowflake.ID) domainsdomain.Status {
	t.Helper()
	var status string
	if err := f.db.Raw(`SELECT status FROM domains WHERE id = ?`, id).Scan(&status).Error; err != nil {
		t.Fatalf("read domain status: %v", err)
	}
	return domainsdomain.Status(status)
}

// TestEngine_RunOnce_FakeClock_FullExpiryPath walks one domain from expiry to
// release over a simulated ~85 days, one engine run per day.
func TestEngine_RunOnce_FakeClock_FullExpiryPath(t *testing.T) {
	f := newEngineFixture(t, Config{BatchSize: 10, NotificationBatchSize: 10, JobTimeout: time.Minute})
	ctx := context.Background()

	startTime := f.clock.Now()
	domainID := f.node.Generate()
	if err := f.db.Exec(
		`INSERT INTO domains (id, fqdn, customer_id, status, expires_at, is_transferable, created_at, updated_at)
		 VALUES (?, 'expiring.example', ?, 'active', ?, TRUE, ?, ?)`,
		domainID, f.node.Generate(), startTime, startTime, startTime,
	).Error; err != nil {
		t.Fatalf("seed domain: %v", err)
	}

	// Day 1: the lease expired overnight, the first sweep opens grace.
	f.clock.Advance(24 * time.Hour)
	if err := f.engine.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce failed on day 1: %v", err)
	}
	if got := f.domainStatus(t, domainID); got != domainsdomain.StatusGrace {
		t.Fatalf("expected grace after first sweep, got %s", got)
	}

	// Run daily until well past the full delinquency path
	// (15 + 30 + 15 + 15 + 5 = 80 days).
	targetDate := startTime.AddDate(0, 0, 85)
	for f.clock.Now().Before(targetDate) {
		f.clock.Advance(24 * time.Hour)
		if err := f.engine.RunOnce(ctx); err != nil {
			t.Fatalf("RunOnce failed at %v: %v", f.clock.Now(), err)
		}
	}

	if got := f.domainStatus(t, domainID); got != domainsdomain.StatusReleased {
		t.Fatalf("expected released at %v, got %s", f.clock.Now(), got)
	}

	// Release severed the ownership link.
	var ownerCount int
	if err := f.db.Raw(
		`SELECT COUNT(*) FROM domains WHERE id = ? AND customer_id IS NOT NULL`, domainID,
	).Scan(&ownerCount).Error; err != nil {
		t.Fatalf("check owner: %v", err)
	}
	if ownerCount != 0 {
		t.Fatal("expected released domain to have no owner")
	}

	// Each window was anchored on the previous deadline, not on sweep time.
	var d domainsdomain.Domain
	if err := f.db.Raw(`SELECT * FROM domains WHERE id = ?`, domainID).Scan(&d).Error; err != nil {
		t.Fatalf("refetch domain: %v", err)
	}
	checks := []struct {
		name string
		got  *time.Time
		want time.Time
	}{
		{"grace_until", d.GraceUntil, startTime.AddDate(0, 0, 15)},
		{"redemption_until", d.RedemptionUntil, startTime.AddDate(0, 0, 45)},
		{"registry_hold_until", d.RegistryHoldUntil, startTime.AddDate(0, 0, 60)},
		{"auction_until", d.AuctionUntil, startTime.AddDate(0, 0, 75)},
		{"pending_delete_until", d.PendingDeleteUntil, startTime.AddDate(0, 0, 80)},
	}
	for _, c := range checks {
		if c.got == nil {
			t.Fatalf("%s not set", c.name)
		}
		if !c.got.Equal(c.want) {
			t.Fatalf("%s: expected %v, got %v", c.name, c.want, *c.got)
		}
	}

	// Exactly one audit row per edge, all by the scheduler.
	var events []domainsdomain.LifecycleEvent
	if err := f.db.Raw(
		`SELECT * FROM lifecycle_events WHERE domain_id = ? ORDER BY created_at, id`, domainID,
	).Scan(&events).Error; err != nil {
		t.Fatalf("list events: %v", err)
	}
	wantPath := []domainsdomain.Status{
		domainsdomain.StatusGrace,
		domainsdomain.StatusRedemption,
		domainsdomain.StatusRegistryHold,
		domainsdomain.StatusAuction,
		domainsdomain.StatusPendingDelete,
		domainsdomain.StatusReleased,
	}
	if len(events) != len(wantPath) {
		t.Fatalf("expected %d lifecycle events, got %d", len(wantPath), len(events))
	}
	for i, event := range events {
		if event.NewStatus != wantPath[i] {
			t.Fatalf("event %d: expected %s, got %s", i, wantPath[i], event.NewStatus)
		}
		if event.Actor != domainsdomain.ActorScheduler {
			t.Fatalf("event %d: expected scheduler actor, got %s", i, event.Actor)
		}
	}
}

// A domain with several elapsed deadlines still moves a single step per run;
// the sweep order prevents it falling through the whole path at once.
func TestEngine_RunLifecycle_OneStepPerRun(t *testing.T) {
	f := newEngineFixture(t, Config{BatchSize: 10})
	ctx := context.Background()

	longPast := f.clock.Now().AddDate(0, -6, 0)
	domainID := f.node.Generate()
	if err := f.db.Exec(
		`INSERT INTO domains (id, fqdn, status, expires_at, is_transferable, created_at, updated_at)
		 VALUES (?, 'stale.example', 'active', ?, TRUE, ?, ?)`,
		domainID, longPast, longPast, longPast,
	).Error; err != nil {
		t.Fatalf("seed domain: %v", err)
	}

	summary, err := f.engine.RunLifecycle(ctx)
	if err != nil {
		t.Fatalf("RunLifecycle: %v", err)
	}
	if summary.TransitionsProcessed != 1 {
		t.Fatalf("expected 1 processed, got %d", summary.TransitionsProcessed)
	}
	if summary.Moved["active->grace"] != 1 {
		t.Fatalf("expected one active->grace move, got %+v", summary.Moved)
	}
	if summary.Timestamp.IsZero() {
		t.Fatal("expected summary timestamp to be set")
	}
	if len(summary.Errors) != 0 {
		t.Fatalf("expected no sweep errors, got %+v", summary.Errors)
	}
	if len(summary.Transitions) != 1 {
		t.Fatalf("expected 1 transition record, got %d", len(summary.Transitions))
	}
	rec := summary.Transitions[0]
	if rec.DomainID != domainID || rec.FQDN != "stale.example" {
		t.Fatalf("unexpected transition record: %+v", rec)
	}
	if rec.CurrentStatus != string(domainsdomain.StatusActive) || rec.NewStatus != string(domainsdomain.StatusGrace) {
		t.Fatalf("expected active->grace record, got %s->%s", rec.CurrentStatus, rec.NewStatus)
	}
	if rec.Reason == "" {
		t.Fatal("expected transition record to carry a reason")
	}
	if got := f.domainStatus(t, domainID); got != domainsdomain.StatusGrace {
		t.Fatalf("expected grace after one sweep, got %s", got)
	}

	// The grace deadline derived from the ancient expiry is already past, so
	// the next run takes exactly the next step.
	summary, err = f.engine.RunLifecycle(ctx)
	if err != nil {
		t.Fatalf("RunLifecycle: %v", err)
	}
	if summary.Moved["grace->redemption"] != 1 {
		t.Fatalf("expected one grace->redemption move, got %+v", summary.Moved)
	}
}

func TestEngine_RunNotifications_DispatchAndRetry(t *testing.T) {
	f := newEngineFixture(t, Config{NotificationBatchSize: 10})
	ctx := context.Background()

	now := f.clock.Now()
	domainID := f.node.Generate()
	due := f.node.Generate()
	future := f.node.Generate()
	if err := f.db.Exec(
		`INSERT INTO notifications (id, domain_id, milestone, scheduled_for, status, created_at)
		 VALUES (?, ?, 'D-7', ?, 'pending', ?), (?, ?, 'D-1', ?, 'pending', ?)`,
		due, domainID, now.Add(-time.Hour), now,
		future, domainID, now.AddDate(0, 0, 6), now,
	).Error; err != nil {
		t.Fatalf("seed notifications: %v", err)
	}

	// First sweep fails to deliver; the row must stay pending.
	f.dispatcher.err = errors.New("relay down")
	dispatched, err := f.engine.RunNotifications(ctx)
	if err == nil {
		t.Fatal("expected dispatch failure to surface")
	}
	if dispatched != 0 {
		t.Fatalf("expected no dispatches on failure, got %d", dispatched)
	}
	var pending int
	if err := f.db.Raw(`SELECT COUNT(*) FROM notifications WHERE status = 'pending'`).Scan(&pending).Error; err != nil {
		t.Fatalf("count pending: %v", err)
	}
	if pending != 2 {
		t.Fatalf("expected both notifications still pending, got %d", pending)
	}

	// Delivery recovers: only the due milestone goes out.
	f.dispatcher.err = nil
	dispatched, err = f.engine.RunNotifications(ctx)
	if err != nil {
		t.Fatalf("RunNotifications: %v", err)
	}
	if dispatched != 1 {
		t.Fatalf("expected 1 dispatch, got %d", dispatched)
	}
	if len(f.dispatcher.sent) != 1 {
		t.Fatalf("expected 1 dispatched notification, got %d", len(f.dispatcher.sent))
	}
	if f.dispatcher.sent[0].Milestone != "D-7" {
		t.Fatalf("expected D-7 dispatched, got %s", f.dispatcher.sent[0].Milestone)
	}

	var sent int
	if err := f.db.Raw(`SELECT COUNT(*) FROM notifications WHERE status = 'sent' AND delivered_at IS NOT NULL`).Scan(&sent).Error; err != nil {
		t.Fatalf("count sent: %v", err)
	}
	if sent != 1 {
		t.Fatalf("expected 1 sent notification, got %d", sent)
	}

	// A later sweep does not re-send.
	dispatched, err = f.engine.RunNotifications(ctx)
	if err != nil {
		t.Fatalf("RunNotifications: %v", err)
	}
	if dispatched != 0 {
		t.Fatalf("expected no re-dispatch, got %d", dispatched)
	}
	if len(f.dispatcher.sent) != 1 {
		t.Fatalf("expected no re-dispatch, got %d", len(f.dispatcher.sent))
	}
}

func TestEngine_EnabledJobsFilter(t *testing.T) {
	f := newEngineFixture(t, Config{EnabledJobs: []string{"notifications"}})

	if err := f.engine.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if f.recon.runs != 0 {
		t.Fatalf("expected reconciliation to be disabled, ran %d times", f.recon.runs)
	}

	f2 := newEngineFixture(t, Config{})
	if err := f2.engine.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if f2.recon.runs != 1 {
		t.Fatalf("expected reconciliation to run once, ran %d times", f2.recon.runs)
	}
}

func TestEngine_New_RequiresDependencies(t *testing.T) {
	if _, err := New(Params{}); err == nil {
		t.Fatal("expected error for missing dependencies")
	}
}
