package channel

import (
	"context"
	"strings"

	"github.com/yourneighborhoodchef/skuwatch/internal/config"
	"github.com/yourneighborhoodchef/skuwatch/internal/notify"
	"gopkg.in/gomail.v2"
)

// Mailer is the part of gomail.Dialer the email channel uses.
type Mailer interface {
	DialAndSend(m ...*gomail.Message) error
}

type Email struct {
	cfg    config.EmailConfig
	mailer Mailer
}

func NewEmail(cfg config.EmailConfig, _ Deps) *Email {
	e := &Email{cfg: cfg}
	if cfg.Host != "" {
		e.mailer = gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	}
	return e
}

// WithMailer replaces the SMTP dialer.
func (e *Email) WithMailer(m Mailer) *Email {
	e.mailer = m
	return e
}

func (e *Email) Name() string { return "email" }

func (e *Email) Initialize(context.Context) (bool, error) {
	return e.cfg.Enabled && e.mailer != nil && len(e.cfg.To) > 0, nil
}

func (e *Email) Shutdown(context.Context) error { return nil }

func (e *Email) send(ctx context.Context, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", e.cfg.From)
	m.SetHeader("To", e.cfg.To...)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	// gomail has no context support; the dispatcher timeout bounds the wait.
	errCh := make(chan error, 1)
	go func() { errCh <- e.mailer.DialAndSend(m) }()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Email) SendStockAlert(ctx context.Context, a notify.Alert) error {
	return e.send(ctx, a.Title(), a.Text())
}

func (e *Email) SendStatusUpdate(ctx context.Context, r notify.StatusReport) error {
	return e.send(ctx, "Stock monitor status", strings.Join(r.Lines(), "\n"))
}

func (e *Email) SendStartupMessage(ctx context.Context, text string) error {
	return e.send(ctx, "Stock monitor", text)
}
