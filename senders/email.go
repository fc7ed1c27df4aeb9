package senders

import (
	"context"
	"net/http"
	"time"

	"github.com/mailgun/mailgun-go/v4"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"schedpush/config"
)

// Alerter sends operational alerts to the maintainer, not to subscribers.
type Alerter interface {
	Alert(ctx context.Context, subject, body string) error
}

func NewAlerter(lc fx.Lifecycle, log *zap.Logger, cfg *config.Config, transport http.RoundTripper) Alerter {
	if cfg.Mailgun.Domain == "" || cfg.Mailgun.APIKey == "" || cfg.AlertEmail == "" {
		log.Sugar().Info("Ops email alerts are disabled since mailgun is not configured")
		return NopAlerter{}
	}
	return &mailgunAlerter{base{log, cfg, transport}}
}

type mailgunAlerter struct {
	base
}

func (a *mailgunAlerter) Alert(ctx context.Context, subject, body string) error {
	mg := mailgun.NewMailgun(a.cfg.Mailgun.Domain, a.cfg.Mailgun.APIKey)
	mg.Client().Transport = a.transport

	// Create message with empty body first, then SetHtml so the MIME type is
	// assigned properly.
	message := mg.NewMessage(a.cfg.Mailgun.SenderFrom, subject, "", a.cfg.AlertEmail)
	message.SetHtml(body)

	timeout := time.Duration(a.cfg.Mailgun.TimeoutSecs) * time.Second
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	_, id, err := mg.Send(ctx, message)
	if err == nil {
		a.log.Sugar().Infow("Sent ops alert", "message_id", id)
	}
	return err
}

// NopAlerter drops every alert. Used when mailgun is unconfigured.
type NopAlerter struct{}

func (NopAlerter) Alert(ctx context.Context, subject, body string) error { return nil }
