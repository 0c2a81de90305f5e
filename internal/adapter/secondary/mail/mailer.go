package mail

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/northpay/gateway/internal/core"
	"go.uber.org/zap"
)

// Mailer emails administrators when a payment fails. Wired as an error
// handler on the event bus.
type Mailer struct {
	log      *zap.Logger
	host     string
	port     string
	username string
	password string
	from     string
	to       []string
}

// NewMailer creates the alert mailer.
func NewMailer(log *zap.Logger, host, port, username, password, from string, to []string) *Mailer {
	return &Mailer{
		log:      log,
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		to:       to,
	}
}

// HandleError sends the alert email for a failed payment. Implements
// core.ErrorHandler.
func (m *Mailer) HandleError(ctx context.Context, e core.ErrorEvent) error {
	subject := fmt.Sprintf("Payment failure: %s", e.Provider)

	var body strings.Builder
	fmt.Fprintf(&body, "Provider: %s\r\n", e.Provider)
	if e.Order != nil {
		fmt.Fprintf(&body, "Order: %s\r\n", e.Order.UniqueID)
		fmt.Fprintf(&body, "Amount: %s\r\n", e.Order.Amount)
	}
	fmt.Fprintf(&body, "Error: %v\r\n", e.Err)

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		m.from, strings.Join(m.to, ", "), subject, body.String())

	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}

	if err := smtp.SendMail(m.host+":"+m.port, auth, m.from, m.to, []byte(msg)); err != nil {
		m.log.Error("failed to send alert email", zap.Error(err))
		return fmt.Errorf("send alert email: %w", err)
	}
	return nil
}
