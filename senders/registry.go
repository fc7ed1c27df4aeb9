package senders

import (
	"context"
	"net/http"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"schedpush/config"
	"schedpush/lib/models"
)

// Payload is the JSON document delivered to a subscriber's push service.
type Payload struct {
	Title string       `json:"title"`
	Body  string       `json:"body"`
	Icon  string       `json:"icon,omitempty"`
	Badge string       `json:"badge,omitempty"`
	Tag   string       `json:"tag,omitempty"`
	Data  *PayloadData `json:"data,omitempty"`
}

type PayloadData struct {
	URL     string        `json:"url,omitempty"`
	Changes *ChangeTotals `json:"changes,omitempty"`
}

// ChangeTotals carries the per-category counts of one check cycle.
type ChangeTotals struct {
	Added    int `json:"added"`
	Removed  int `json:"removed"`
	Modified int `json:"modified"`
}

// Sender delivers one payload to one subscriber. An ErrEndpointGone return
// means the subscription will never work again.
type Sender interface {
	Send(ctx context.Context, sub *models.PushSubscription, payload Payload) error
}

type Registry map[string]Sender

func NewSenderRegistry(lc fx.Lifecycle, log *zap.Logger, cfg *config.Config, transport http.RoundTripper) Registry {
	base := base{log, cfg, transport}
	return Registry{
		"webpush": &webpushSender{base},
	}
}

type base struct {
	log       *zap.Logger
	cfg       *config.Config
	transport http.RoundTripper
}
