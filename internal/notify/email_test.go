package notify

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/namevault/namevault/internal/config"
	domainsdomain "github.com/namevault/namevault/internal/domains/domain"
	"github.com/namevault/namevault/internal/testdb"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type sentMail struct {
	addr string
	from string
	to   []string
	msg  string
}

func newEmailFixture(t *testing.T) (*emailDispatcher, *gorm.DB, *[]sentMail) {
	t.Helper()

	db := testdb.Open(t)
	testdb.CreateCustomerTable(t, db)
	testdb.CreateDomainTables(t, db)

	d := newEmailDispatcher(config.EmailConfig{
		SMTPHost: "mail.test",
		SMTPPort: 587,
		SMTPFrom: "notifications@namevault.example",
	}, db, zap.NewNop())

	var sent []sentMail
	d.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		sent = append(sent, sentMail{addr: addr, from: from, to: to, msg: string(msg)})
		return nil
	}
	return d, db, &sent
}

func seedOwnedDomain(t *testing.T, db *gorm.DB, node *snowflake.Node) snowflake.ID {
	t.Helper()

	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	ownerID := node.Generate()
	require.NoError(t, db.Exec(
		`INSERT INTO customers (id, email, name, currency, created_at, updated_at)
		 VALUES (?, 'owner@example.com', 'Owner', 'USD', ?, ?)`,
		ownerID, at, at,
	).Error)

	domainID := node.Generate()
	require.NoError(t, db.Exec(
		`INSERT INTO domains (id, fqdn, status, customer_id, is_transferable, created_at, updated_at)
		 VALUES (?, 'premium.example', 'active', ?, TRUE, ?, ?)`,
		domainID, ownerID, at, at,
	).Error)
	return domainID
}

func TestEmailDispatcherSendsToOwner(t *testing.T) {
	d, db, sent := newEmailFixture(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	domainID := seedOwnedDomain(t, db, node)

	err = d.Dispatch(context.Background(), domainsdomain.Notification{
		ID:        node.Generate(),
		DomainID:  domainID,
		Milestone: "D-7",
	})
	require.NoError(t, err)

	require.Len(t, *sent, 1)
	mail := (*sent)[0]
	require.Equal(t, "mail.test:587", mail.addr)
	require.Equal(t, "notifications@namevault.example", mail.from)
	require.Equal(t, []string{"owner@example.com"}, mail.to)
	require.Contains(t, mail.msg, "Your domain premium.example renews in 7 days")
	require.Contains(t, mail.msg, "premium.example")
}

func TestEmailDispatcherSkipsUnownedDomain(t *testing.T) {
	d, db, sent := newEmailFixture(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	domainID := node.Generate()
	require.NoError(t, db.Exec(
		`INSERT INTO domains (id, fqdn, status, is_transferable, created_at, updated_at)
		 VALUES (?, 'orphan.example', 'pending_delete', TRUE, ?, ?)`,
		domainID, at, at,
	).Error)

	err = d.Dispatch(context.Background(), domainsdomain.Notification{
		ID:        node.Generate(),
		DomainID:  domainID,
		Milestone: "D+60",
	})
	require.NoError(t, err)
	require.Empty(t, *sent)
}

func TestEmailDispatcherPropagatesSendFailure(t *testing.T) {
	d, db, _ := newEmailFixture(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	domainID := seedOwnedDomain(t, db, node)

	d.send = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("relay down")
	}

	err = d.Dispatch(context.Background(), domainsdomain.Notification{
		ID:        node.Generate(),
		DomainID:  domainID,
		Milestone: "D-1",
	})
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "relay down"))
}
