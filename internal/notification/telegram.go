package notification

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Sender is the part of tgbotapi.BotAPI used for delivery
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramDeliverer sends HTML messages with retry on transient failures
type TelegramDeliverer struct {
	bot            Sender
	maxElapsedTime time.Duration
	logger         zerolog.Logger
}

// NewTelegramDeliverer wraps a bot
func NewTelegramDeliverer(bot Sender) *TelegramDeliverer {
	return &TelegramDeliverer{
		bot:            bot,
		maxElapsedTime: 20 * time.Second,
		logger:         log.With().Str("component", "telegram").Logger(),
	}
}

// Send delivers text to chatID. Rejections by Telegram (bad request, bot
// blocked, chat not found) are not retried.
func (d *TelegramDeliverer) Send(ctx context.Context, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	operation := func() error {
		_, err := d.bot.Send(msg)
		if err == nil {
			return nil
		}
		var apiErr *tgbotapi.Error
		if errors.As(err, &apiErr) {
			if apiErr.RetryAfter > 0 {
				d.logger.Warn().Int64("chat_id", chatID).Int("retry_after", apiErr.RetryAfter).Msg("Rate limited by Telegram")
				select {
				case <-time.After(time.Duration(apiErr.RetryAfter) * time.Second):
				case <-ctx.Done():
					return backoff.Permanent(ctx.Err())
				}
				return err
			}
			if apiErr.Code == http.StatusBadRequest || apiErr.Code == http.StatusForbidden || apiErr.Code == http.StatusUnauthorized {
				return backoff.Permanent(err)
			}
		}
		return err
	}

	strategy := backoff.NewExponentialBackOff()
	strategy.MaxElapsedTime = d.maxElapsedTime
	if err := backoff.Retry(operation, backoff.WithContext(strategy, ctx)); err != nil {
		return fmt.Errorf("sending to %d: %w", chatID, err)
	}
	return nil
}
