package telegram

import (
	"context"
	"fmt"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"gatekeeper-bot/internal/config"
	"gatekeeper-bot/internal/messaging"
)

// Dispatcher consumes translated events
type Dispatcher interface {
	Dispatch(ctx context.Context, ev messaging.Event)
}

// NewAPI connects to the Bot API
func NewAPI(cfg config.TelegramConfig) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	return api, nil
}

// Bot long-polls Telegram and feeds updates to the dispatcher
type Bot struct {
	api            *tgbotapi.BotAPI
	dispatcher     Dispatcher
	cfg            config.TelegramConfig
	requestTimeout time.Duration
	logger         *zap.Logger

	// Track active update processing
	activeRequests sync.WaitGroup
}

// NewBot creates a new Telegram bot
func NewBot(
	api *tgbotapi.BotAPI,
	dispatcher Dispatcher,
	cfg config.TelegramConfig,
	requestTimeout time.Duration,
	logger *zap.Logger,
) *Bot {
	return &Bot{
		api:            api,
		dispatcher:     dispatcher,
		cfg:            cfg,
		requestTimeout: requestTimeout,
		logger:         logger,
	}
}

// Run starts the bot and blocks until context is cancelled
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.cfg.PollingTimeout
	u.AllowedUpdates = []string{"message"}

	updates := b.api.GetUpdatesChan(u)

	b.logger.Info("telegram bot started", zap.String("username", b.api.Self.UserName))

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("stopping bot, waiting for active requests")

			// Stop receiving updates
			b.api.StopReceivingUpdates()

			// Wait for active requests with timeout
			done := make(chan struct{})
			go func() {
				b.activeRequests.Wait()
				close(done)
			}()

			select {
			case <-done:
				b.logger.Info("all active requests completed")
			case <-time.After(25 * time.Second):
				b.logger.Warn("some requests may not have completed")
			}

			return ctx.Err()

		case update, ok := <-updates:
			if !ok {
				return nil
			}

			events := Translate(update, b.api.Self.UserName)
			if len(events) == 0 {
				continue
			}

			// Process update in goroutine
			b.activeRequests.Add(1)
			go func(events []messaging.Event) {
				defer b.activeRequests.Done()

				// Create request context with timeout
				reqCtx, cancel := context.WithTimeout(ctx, b.requestTimeout)
				defer cancel()

				for _, ev := range events {
					b.dispatcher.Dispatch(reqCtx, ev)
				}
			}(events)
		}
	}
}
