package senders

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"schedpush/config"
)

// Broadcaster posts a change summary to the public announcement channel.
// Complementary to per-subscriber pushes; no filters apply.
type Broadcaster interface {
	Broadcast(ctx context.Context, text string) error
}

func NewBroadcaster(lc fx.Lifecycle, log *zap.Logger, cfg *config.Config) Broadcaster {
	if cfg.Telegram.Token == "" || cfg.Telegram.ChatID == 0 {
		log.Sugar().Info("Telegram broadcast is disabled since no token is configured")
		return NopBroadcaster{}
	}

	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		log.Sugar().Warnw("Failed to initialise telegram bot, broadcast disabled", "err", err)
		return NopBroadcaster{}
	}
	return &telegramBroadcaster{log: log, api: api, chatID: cfg.Telegram.ChatID}
}

type telegramBroadcaster struct {
	log    *zap.Logger
	api    *tgbotapi.BotAPI
	chatID int64
}

func (b *telegramBroadcaster) Broadcast(ctx context.Context, text string) error {
	_, err := b.api.Send(tgbotapi.NewMessage(b.chatID, text))
	return err
}

// NopBroadcaster drops every broadcast. Used when telegram is unconfigured.
type NopBroadcaster struct{}

func (NopBroadcaster) Broadcast(ctx context.Context, text string) error { return nil }
