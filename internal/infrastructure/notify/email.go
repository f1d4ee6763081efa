package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	gomail "gopkg.in/mail.v2"

	"MarketNewsroom/internal/config"
	"MarketNewsroom/internal/ports"
)

type mailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailNotifier mails the reviewer through SMTP.
type EmailNotifier struct {
	from     string
	to       string
	renderer *Renderer
	sender   mailSender
	logger   *slog.Logger
}

var _ ports.ReviewerNotifier = (*EmailNotifier)(nil)

// NewEmailNotifier dials cfg.SMTP for every notice.
func NewEmailNotifier(cfg config.NotificationConfig, logger *slog.Logger) *EmailNotifier {
	dialer := gomail.NewDialer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password)
	dialer.Timeout = 10 * time.Second

	from := cfg.SMTP.From
	if from == "" {
		from = cfg.SMTP.Username
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EmailNotifier{
		from:     from,
		to:       cfg.ReviewerEmail,
		renderer: NewRenderer(cfg.ReviewBaseURL),
		sender:   dialer,
		logger:   logger.With("component", "email"),
	}
}

// Channel names the delivery channel.
func (n *EmailNotifier) Channel() string { return "email" }

// NotifyDraftReady renders and sends the notice.
func (n *EmailNotifier) NotifyDraftReady(ctx context.Context, notice ports.DraftReadyNotice) error {
	if n.to == "" || n.from == "" {
		return errors.New("email notifier misconfigured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := n.renderer.Render(notice)
	if err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", n.to)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Text)
	m.AddAlternative("text/html", msg.HTML)

	if err := n.sender.DialAndSend(m); err != nil {
		return fmt.Errorf("send email to %s: %w", n.to, err)
	}
	n.logger.Info("email sent", "draft_id", notice.Draft.ID, "subject", msg.Subject)
	return nil
}
