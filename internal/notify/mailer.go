// Package notify implements the two outward notification channels
// named in SPEC_FULL.md §4.7: an SMTP mailer and an HTTP chat gateway.
// Grounded on the teacher's service/notification.go, but the mailer
// sends only plain-text `email` outbox rows (no iCalendar attachment),
// and delivery is driven by the outbox runner rather than a
// fire-and-forget goroutine. Each send dials the SMTP server anew
// through net/smtp.SendMail; no connection is kept between sends.
package notify

import (
	"fmt"
	"net/smtp"
	"strings"

	"televent/internal/config"
	"televent/internal/models"
)

type Mailer struct {
	cfg  config.SMTPConfig
	auth smtp.Auth
}

func NewMailer(cfg config.SMTPConfig) *Mailer {
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &Mailer{cfg: cfg, auth: auth}
}

func (m *Mailer) SendEmail(p models.EmailPayload) error {
	return m.send(p.To, p.Subject, p.Body)
}

func (m *Mailer) send(to, subject, body string) error {
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", m.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n\r\n")
	msg.WriteString(body)

	return smtp.SendMail(addr, m.auth, m.cfg.From, []string{to}, []byte(msg.String()))
}
