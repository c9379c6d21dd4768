package message

import (
	"context"
	"errors"
	"fmt"

	"github.com/mailgun/mailgun-go/v4"
	"go.uber.org/zap"

	"github.com/yanizio/adept-intake/internal/config"
)

// MailgunSender sends emails via the Mailgun API.
type MailgunSender struct {
	client *mailgun.MailgunImpl
	from   string
	log    *zap.SugaredLogger
}

// NewMailgunSender returns nil if mail is not configured.
func NewMailgunSender(cfg config.Mail, log *zap.SugaredLogger) *MailgunSender {
	if !cfg.Enabled() {
		return nil
	}
	if log == nil {
		log = zap.S()
	}
	from := cfg.From
	if cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", cfg.FromName, cfg.From)
	}
	return &MailgunSender{
		client: mailgun.NewMailgun(cfg.Domain, cfg.APIKey),
		from:   from,
		log:    log.Named("mailgun"),
	}
}

// Send delivers msg to every recipient in one API call.
func (s *MailgunSender) Send(ctx context.Context, msg Email) error {
	if len(msg.To) == 0 {
		return errors.New("mailgun: no recipients")
	}

	m := s.client.NewMessage(s.from, msg.Subject, msg.Text, msg.To...)
	if msg.HTML != "" {
		m.SetHtml(msg.HTML)
	}

	_, id, err := s.client.Send(ctx, m)
	if err != nil {
		return fmt.Errorf("mailgun send: %w", err)
	}
	s.log.Debugw("email sent", "to", msg.To, "message_id", id)
	return nil
}

// SenderFor picks Mailgun when configured and LogSender otherwise.
func SenderFor(cfg config.Mail, log *zap.SugaredLogger) Sender {
	if mg := NewMailgunSender(cfg, log); mg != nil {
		return mg
	}
	return LogSender{Log: log}
}
