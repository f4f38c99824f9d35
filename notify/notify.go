// Package notify delivers run alerts.
package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"
	"github.com/rotisserie/eris"

	"devleads/utils"
)

// Notifier sends one alert. Delivery is best effort; callers log failures.
type Notifier interface {
	Notify(ctx context.Context, subject, body string) error
}

// SMTPConfig identifies the mailbox alerts are sent from.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	To       string
}

type sendFunc func(e *email.Email, addr string, auth smtp.Auth, tlsConfig *tls.Config) error

// EmailNotifier sends alerts over SMTP. Port 465 uses implicit TLS; any other
// port uses STARTTLS when the server offers it.
type EmailNotifier struct {
	cfg    SMTPConfig
	send   sendFunc
	logger *utils.Logger
}

func NewEmailNotifier(cfg SMTPConfig, logger *utils.Logger) *EmailNotifier {
	if cfg.To == "" {
		cfg.To = cfg.User
	}
	return &EmailNotifier{cfg: cfg, send: deliver, logger: logger}
}

func (n *EmailNotifier) Notify(ctx context.Context, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	mail := email.NewEmail()
	mail.From = n.cfg.User
	mail.To = splitRecipients(n.cfg.To)
	mail.Subject = subject
	mail.Text = []byte(body)

	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)
	auth := smtp.PlainAuth("", n.cfg.User, n.cfg.Password, n.cfg.Host)
	var tlsConfig *tls.Config
	if n.cfg.Port == 465 {
		tlsConfig = &tls.Config{ServerName: n.cfg.Host}
	}

	if err := n.send(mail, addr, auth, tlsConfig); err != nil {
		return eris.Wrapf(err, "notify: send %q via %s", subject, addr)
	}
	n.logger.Info("[notify] Alert sent: %s", subject)
	return nil
}

func deliver(e *email.Email, addr string, auth smtp.Auth, tlsConfig *tls.Config) error {
	if tlsConfig != nil {
		return e.SendWithTLS(addr, auth, tlsConfig)
	}
	return e.Send(addr, auth)
}

func splitRecipients(s string) []string {
	var out []string
	for _, r := range strings.Split(s, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

// LogNotifier writes alerts to the log. It stands in when SMTP credentials
// are missing.
type LogNotifier struct {
	logger *utils.Logger
}

func NewLogNotifier(logger *utils.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, subject, body string) error {
	n.logger.Warn("[notify] Email creds missing, alert logged only: %s\n%s", subject, body)
	return nil
}
