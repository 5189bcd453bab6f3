package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/smtp"

	"github.com/namevault/namevault/internal/config"
	domainsdomain "github.com/namevault/namevault/internal/domains/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// emailDispatcher delivers milestone notifications over SMTP. The recipient is
// the domain owner on record; notifications for unowned domains are dropped.
type emailDispatcher struct {
	cfg  config.EmailConfig
	db   *gorm.DB
	log  *zap.Logger
	send sendFunc
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

var milestoneSubjects = map[string]string{
	"D-14": "Your domain %s renews in 14 days",
	"D-7":  "Your domain %s renews in 7 days",
	"D-3":  "Your domain %s renews in 3 days",
	"D-1":  "Your domain %s renews tomorrow",
	"D+1":  "Payment overdue for %s",
	"D+10": "Grace period ending soon for %s",
	"D+16": "%s has entered redemption",
	"D+30": "Redemption deadline approaching for %s",
	"D+45": "Final redemption notice for %s",
	"D+60": "%s is scheduled for release",
}

var milestoneTemplate = template.Must(template.New("milestone").Parse(`<html>
<body>
<p>Hello {{.Name}},</p>
<p>This is a notice regarding your domain <strong>{{.FQDN}}</strong>.</p>
<p>{{.Body}}</p>
<p>Sign in to your account to renew or review your billing details.</p>
</body>
</html>`))

var milestoneBodies = map[string]string{
	"D-14": "Your subscription renews in 14 days. No action is needed if your payment method is up to date.",
	"D-7":  "Your subscription renews in 7 days. No action is needed if your payment method is up to date.",
	"D-3":  "Your subscription renews in 3 days.",
	"D-1":  "Your subscription renews tomorrow.",
	"D+1":  "We could not collect your renewal payment. Your domain is in its grace period and remains active.",
	"D+10": "Your grace period ends in 5 days. Renew now to avoid service interruption.",
	"D+16": "Your domain has entered redemption. It can still be recovered by renewing your subscription.",
	"D+30": "Your redemption window is half over. Renew soon to keep your domain.",
	"D+45": "This is the final notice before your domain leaves redemption and can no longer be recovered.",
	"D+60": "Your domain has reached the end of its recovery window and is scheduled for release.",
}

func newEmailDispatcher(cfg config.EmailConfig, db *gorm.DB, log *zap.Logger) *emailDispatcher {
	return &emailDispatcher{
		cfg:  cfg,
		db:   db,
		log:  log.Named("notify.email"),
		send: smtp.SendMail,
	}
}

func (d *emailDispatcher) Dispatch(ctx context.Context, n domainsdomain.Notification) error {
	var recipient struct {
		FQDN  string
		Email string
		Name  string
	}
	err := d.db.WithContext(ctx).Raw(`
		SELECT d.fqdn, c.email, c.name
		FROM domains d
		JOIN customers c ON c.id = d.customer_id
		WHERE d.id = ?
	`, n.DomainID).Scan(&recipient).Error
	if err != nil {
		return err
	}
	if recipient.Email == "" {
		// Owner already released or never assigned. Nothing to deliver.
		d.log.Info("notification skipped, domain has no owner",
			zap.Int64("notification_id", int64(n.ID)),
			zap.Int64("domain_id", int64(n.DomainID)),
		)
		return nil
	}

	subject, ok := milestoneSubjects[n.Milestone]
	if !ok {
		subject = "Notice regarding %s"
	}
	subject = fmt.Sprintf(subject, recipient.FQDN)

	var body bytes.Buffer
	err = milestoneTemplate.Execute(&body, map[string]string{
		"Name": recipient.Name,
		"FQDN": recipient.FQDN,
		"Body": milestoneBodies[n.Milestone],
	})
	if err != nil {
		return fmt.Errorf("render milestone template: %w", err)
	}

	auth := smtp.PlainAuth("", d.cfg.SMTPUsername, d.cfg.SMTPPassword, d.cfg.SMTPHost)
	addr := fmt.Sprintf("%s:%d", d.cfg.SMTPHost, d.cfg.SMTPPort)
	mime := "MIME-version: 1.0;\nContent-Type: text/html; charset=\"UTF-8\";\n\n"
	msg := []byte(fmt.Sprintf("To: %s\r\nSubject: %s\r\n%s\r\n%s", recipient.Email, subject, mime, body.String()))

	if err := d.send(addr, auth, d.cfg.SMTPFrom, []string{recipient.Email}, msg); err != nil {
		return fmt.Errorf("send milestone email: %w", err)
	}

	d.log.Info("notification emailed",
		zap.Int64("notification_id", int64(n.ID)),
		zap.Int64("domain_id", int64(n.DomainID)),
		zap.String("milestone", n.Milestone),
	)
	return nil
}
