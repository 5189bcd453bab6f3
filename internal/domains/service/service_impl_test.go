package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/namevault/namevault/internal/clock"
	domainsdomain "github.com/namevault/namevault/internal/domains/domain"
	"github.com/namevault/namevault/internal/domains/repository"
	"github.com/namevault/namevault/internal/testdb"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var testStart = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (domainsdomain.Service, *gorm.DB, *clock.FakeClock, *snowflake.Node) {
	t.Helper()

	db := testdb.Open(t)
	testdb.CreateDomainTables(t, db)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fakeClock := clock.NewFakeClock(testStart)

	svc := NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fakeClock,
		Repo:  repository.Provide(),
	})
	return svc, db, fakeClock, node
}

func seedDomain(t *testing.T, db *gorm.DB, node *snowflake.Node, status domainsdomain.Status, deadlines map[string]time.Time) snowflake.ID {
	t.Helper()

	id := node.Generate()
	custID := node.Generate()
	require.NoError(t, db.Exec(
		`INSERT INTO domains (id, fqdn, customer_id, status, is_transferable, created_at, updated_at)
		 VALUES (?, ?, ?, ?, TRUE, ?, ?)`,
		id, "example-"+id.String()+".com", custID, status, testStart, testStart,
	).Error)
	for column, deadline := range deadlines {
		require.NoError(t, db.Exec(
			`UPDATE domains SET `+column+` = ? WHERE id = ?`, deadline, id,
		).Error)
	}
	return id
}

func TestCreateSchedulesMilestones(t *testing.T) {
	svc, db, _, _ := newTestService(t)
	ctx := context.Background()

	expiry := testStart.AddDate(1, 0, 0)
	d, err := svc.Create(ctx, domainsdomain.CreateRequest{
		FQDN:      "Premium.Example ",
		Status:    domainsdomain.StatusActive,
		ExpiresAt: expiry,
	})
	require.NoError(t, err)
	require.Equal(t, "premium.example", d.FQDN)
	require.Equal(t, domainsdomain.StatusActive, d.Status)

	var count int
	require.NoError(t, db.Raw(
		`SELECT COUNT(*) FROM notifications WHERE domain_id = ? AND status = 'pending'`, d.ID,
	).Scan(&count).Error)
	require.Equal(t, len(domainsdomain.Milestones), count)

	// Re-creating the same name is a duplicate.
	_, err = svc.Create(ctx, domainsdomain.CreateRequest{FQDN: "premium.example"})
	require.ErrorIs(t, err, domainsdomain.ErrDomainExists)
}

func TestCreateRejectsBareLabel(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	_, err := svc.Create(context.Background(), domainsdomain.CreateRequest{FQDN: "nodots"})
	require.ErrorIs(t, err, domainsdomain.ErrInvalidFQDN)
}

func TestTransitionWritesAuditAndIsIdempotent(t *testing.T) {
	svc, db, _, node := newTestService(t)
	ctx := context.Background()

	expiry := testStart.Add(-24 * time.Hour)
	id := seedDomain(t, db, node, domainsdomain.StatusActive, map[string]time.Time{"expires_at": expiry})

	moved, err := svc.Transition(ctx, domainsdomain.TransitionRequest{
		DomainID: id,
		From:     domainsdomain.StatusActive,
		To:       domainsdomain.StatusGrace,
		Actor:    domainsdomain.ActorScheduler,
	})
	require.NoError(t, err)
	require.True(t, moved)

	d, err := svc.GetByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, domainsdomain.StatusGrace, d.Status)
	require.NotNil(t, d.GraceUntil)
	require.True(t, d.GraceUntil.Equal(expiry.AddDate(0, 0, domainsdomain.GraceDays)))

	events, err := svc.ListEvents(ctx, id)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, domainsdomain.StatusActive, events[0].OldStatus)
	require.Equal(t, domainsdomain.StatusGrace, events[0].NewStatus)
	require.Equal(t, domainsdomain.ActorScheduler, events[0].Actor)

	// A second sweep hitting the same work item loses the CAS and reports
	// stale, not failed.
	moved, err = svc.Transition(ctx, domainsdomain.TransitionRequest{
		DomainID: id,
		From:     domainsdomain.StatusActive,
		To:       domainsdomain.StatusGrace,
		Actor:    domainsdomain.ActorScheduler,
	})
	require.NoError(t, err)
	require.False(t, moved)

	events, err = svc.ListEvents(ctx, id)
	require.NoError(t, err)
	require.Len(t, events, 1)
}

func TestTransitionDeadlineAnchorsOnPreviousWindow(t *testing.T) {
	svc, db, fakeClock, node := newTestService(t)
	ctx := context.Background()

	graceUntil := testStart.Add(-time.Hour)
	id := seedDomain(t, db, node, domainsdomain.StatusGrace, map[string]time.Time{"grace_until": graceUntil})

	// The sweep runs ten days late. The redemption window still opens from
	// the grace deadline, not from wall clock.
	fakeClock.Advance(10 * 24 * time.Hour)
	moved, err := svc.Transition(ctx, domainsdomain.TransitionRequest{
		DomainID: id,
		From:     domainsdomain.StatusGrace,
		To:       domainsdomain.StatusRedemption,
		Actor:    domainsdomain.ActorScheduler,
	})
	require.NoError(t, err)
	require.True(t, moved)

	d, err := svc.GetByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, d.RedemptionUntil)
	require.True(t, d.RedemptionUntil.Equal(graceUntil.AddDate(0, 0, domainsdomain.RedemptionDays)))
}

func TestTransitionGuardRejectsSchedulerRescue(t *testing.T) {
	svc, db, _, node := newTestService(t)

	id := seedDomain(t, db, node, domainsdomain.StatusGrace, nil)
	_, err := svc.Transition(context.Background(), domainsdomain.TransitionRequest{
		DomainID: id,
		From:     domainsdomain.StatusGrace,
		To:       domainsdomain.StatusActive,
		Actor:    domainsdomain.ActorScheduler,
	})
	require.ErrorIs(t, err, domainsdomain.ErrInvalidTransition)
}

func TestTransitionToReleasedClearsOwner(t *testing.T) {
	svc, db, _, node := newTestService(t)
	ctx := context.Background()

	id := seedDomain(t, db, node, domainsdomain.StatusPendingDelete, map[string]time.Time{
		"pending_delete_until": testStart.Add(-time.Hour),
	})

	moved, err := svc.Transition(ctx, domainsdomain.TransitionRequest{
		DomainID: id,
		From:     domainsdomain.StatusPendingDelete,
		To:       domainsdomain.StatusReleased,
		Actor:    domainsdomain.ActorScheduler,
	})
	require.NoError(t, err)
	require.True(t, moved)

	d, err := svc.GetByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, domainsdomain.StatusReleased, d.Status)
	require.Nil(t, d.CustomerID)
}

func TestHoldRecordsSuspensionReason(t *testing.T) {
	svc, db, _, node := newTestService(t)
	ctx := context.Background()

	id := seedDomain(t, db, node, domainsdomain.StatusActive, nil)
	require.NoError(t, svc.Hold(ctx, id, domainsdomain.StatusFraudHold, domainsdomain.ActorHuman, "chargeback ring"))

	d, err := svc.GetByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, domainsdomain.StatusFraudHold, d.Status)
	require.NotNil(t, d.SuspensionReason)
	require.Equal(t, "chargeback ring", *d.SuspensionReason)

	require.ErrorIs(t, svc.Hold(ctx, id, domainsdomain.StatusActive, domainsdomain.ActorHuman, ""), domainsdomain.ErrInvalidTransition)
}

func TestRenewFromGraceRestoresActive(t *testing.T) {
	svc, db, _, node := newTestService(t)
	ctx := context.Background()

	expiry := testStart.Add(-5 * 24 * time.Hour)
	id := seedDomain(t, db, node, domainsdomain.StatusGrace, map[string]time.Time{
		"expires_at":  expiry,
		"grace_until": expiry.AddDate(0, 0, domainsdomain.GraceDays),
	})

	// A stale pending milestone from the old schedule.
	require.NoError(t, db.Exec(
		`INSERT INTO notifications (id, domain_id, milestone, scheduled_for, status, created_at)
		 VALUES (?, ?, 'D+10', ?, 'pending', ?)`,
		node.Generate(), id, expiry.AddDate(0, 0, 10), testStart,
	).Error)

	d, err := svc.Renew(ctx, id, 365, domainsdomain.ActorSystem)
	require.NoError(t, err)
	require.Equal(t, domainsdomain.StatusActive, d.Status)

	// Expiry anchors on now because the old expiry has already passed.
	require.NotNil(t, d.ExpiresAt)
	require.True(t, d.ExpiresAt.Equal(testStart.AddDate(0, 0, 365)))

	fresh, err := svc.GetByID(ctx, id)
	require.NoError(t, err)
	require.Nil(t, fresh.GraceUntil)
	require.Nil(t, fresh.RedemptionUntil)

	// Milestones were rescheduled against the new expiry.
	var count int
	require.NoError(t, db.Raw(
		`SELECT COUNT(*) FROM notifications WHERE domain_id = ? AND status = 'pending'`, id,
	).Scan(&count).Error)
	require.Equal(t, len(domainsdomain.Milestones), count)

	var stale int
	require.NoError(t, db.Raw(
		`SELECT COUNT(*) FROM notifications WHERE domain_id = ? AND scheduled_for < ?`, id, testStart,
	).Scan(&stale).Error)
	require.Zero(t, stale)
}

func TestRenewActiveExtendsFromCurrentExpiry(t *testing.T) {
	svc, db, _, node := newTestService(t)
	ctx := context.Background()

	expiry := testStart.AddDate(0, 6, 0)
	id := seedDomain(t, db, node, domainsdomain.StatusActive, map[string]time.Time{"expires_at": expiry})

	d, err := svc.Renew(ctx, id, 365, domainsdomain.ActorHuman)
	require.NoError(t, err)
	require.True(t, d.ExpiresAt.Equal(expiry.AddDate(0, 0, 365)))
}

func TestRenewRejectsDeepDelinquency(t *testing.T) {
	svc, db, _, node := newTestService(t)

	id := seedDomain(t, db, node, domainsdomain.StatusAuction, nil)
	_, err := svc.Renew(context.Background(), id, 365, domainsdomain.ActorSystem)
	require.ErrorIs(t, err, domainsdomain.ErrInvalidTransition)
}
