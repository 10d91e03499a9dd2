package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/wneessen/go-mail"

	"github.com/aelpxy/dockup/internal/report"
	"github.com/aelpxy/dockup/pkg/models"
)

// Mailer sends reports over SMTP with PLAIN auth. STARTTLS is used when
// the server offers it.
type Mailer struct {
	cfg    models.EmailConfig
	logger *slog.Logger
}

func NewMailer(cfg models.EmailConfig, logger *slog.Logger) *Mailer {
	return &Mailer{cfg: cfg, logger: logger}
}

func (m *Mailer) Notify(ctx context.Context, msg report.Message) error {
	message, err := m.buildMessage(msg)
	if err != nil {
		return err
	}

	client, err := mail.NewClient(m.cfg.Host,
		mail.WithPort(m.cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(m.cfg.User),
		mail.WithPassword(m.cfg.Password),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	)
	if err != nil {
		return fmt.Errorf("failed to create mail client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, message); err != nil {
		return fmt.Errorf("failed to send mail via %s:%d: %w", m.cfg.Host, m.cfg.Port, err)
	}

	m.logger.Debug("mail sent", "to", m.cfg.NotifyEmail, "subject", msg.Subject)
	return nil
}

func (m *Mailer) buildMessage(msg report.Message) (*mail.Msg, error) {
	message := mail.NewMsg()
	if err := message.From(m.sender()); err != nil {
		return nil, fmt.Errorf("invalid sender address: %w", err)
	}
	if err := message.To(m.cfg.NotifyEmail); err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}
	message.Subject(msg.Subject)
	message.SetBodyString(mail.TypeTextPlain, msg.Text)
	if msg.HTML != "" {
		message.AddAlternativeString(mail.TypeTextHTML, msg.HTML)
	}
	return message, nil
}

// sender is the SMTP user when it is an address, else the recipient.
func (m *Mailer) sender() string {
	if strings.Contains(m.cfg.User, "@") {
		return m.cfg.User
	}
	return m.cfg.NotifyEmail
}
