// internal/message/message.go
//
// Intake – Lead notifications.
//
// Context
//   After a contact or booking is persisted, the handlers hand a short
//   summary to a Notifier.  Delivery is asynchronous and best-effort: the
//   HTTP response never waits on it, and failures are logged and counted,
//   never surfaced to the submitter.
//
//   Two Senders exist.  MailgunSender delivers through the Mailgun API.
//   LogSender is used when mail is not configured and simply logs the
//   payload, so local runs need no credentials.
//
// Style
//   Two-space sentence spacing, Oxford comma, concise inline notes.
//
//------------------------------------------------------------------------------

package message

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yanizio/adept-intake/internal/metrics"
)

// Email represents a basic outbound email job.
type Email struct {
	To      []string
	Subject string
	Text    string
	HTML    string // optional
}

// Sender delivers one Email.
type Sender interface {
	Send(ctx context.Context, msg Email) error
}

// DefaultTimeout bounds a single delivery attempt.
const DefaultTimeout = 30 * time.Second

// Notifier fans emails out to a Sender in the background.
type Notifier struct {
	sender  Sender
	to      []string
	log     *zap.SugaredLogger
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewNotifier returns a Notifier that mails every lead to recipients.
func NewNotifier(s Sender, recipients []string, log *zap.SugaredLogger) *Notifier {
	if log == nil {
		log = zap.S()
	}
	return &Notifier{
		sender:  s,
		to:      recipients,
		log:     log.Named("notify"),
		timeout: DefaultTimeout,
	}
}

// Notify queues subject/text for delivery and returns immediately.  The
// request context's cancellation does not abort delivery.
func (n *Notifier) Notify(ctx context.Context, subject, text string) {
	if n == nil || n.sender == nil {
		return
	}
	msg := Email{To: n.to, Subject: subject, Text: text}
	sendCtx := context.WithoutCancel(ctx)

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(sendCtx, n.timeout)
		defer cancel()

		if err := n.sender.Send(ctx, msg); err != nil {
			metrics.NotifyErrorsTotal.Inc()
			n.log.Warnw("lead notification failed", "subject", subject, "err", err)
		}
	}()
}

// Wait blocks until every queued notification has finished.  Called on
// shutdown.
func (n *Notifier) Wait() {
	if n != nil {
		n.wg.Wait()
	}
}

// LogSender logs the email payload instead of sending it.
type LogSender struct{ Log *zap.SugaredLogger }

func (s LogSender) Send(_ context.Context, msg Email) error {
	l := s.Log
	if l == nil {
		l = zap.S()
	}
	l.Infow("QUEUE Email", "to", msg.To, "subject", msg.Subject, "len_text", len(msg.Text))
	return nil
}
