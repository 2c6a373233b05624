package notifier

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// telegramSender is the slice of the bot API the channel needs.
type telegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram delivers reminders as bot messages. Send-only: the bot never
// polls for updates.
type Telegram struct {
	api    telegramSender
	logger zerolog.Logger
}

// NewTelegram creates the Telegram channel from a bot token.
func NewTelegram(botToken string, logger zerolog.Logger) (*Telegram, error) {
	if botToken == "" {
		return nil, fmt.Errorf("telegram bot token is required")
	}

	api, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	return &Telegram{
		api:    api,
		logger: logger.With().Str("component", "telegram").Logger(),
	}, nil
}

// Notify sends the reminder to the account's Telegram chat.
func (t *Telegram) Notify(ctx context.Context, n Notification) error {
	if n.TelegramChatID == 0 {
		return ErrNoRecipient
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	text := fmt.Sprintf("⏰ Study reminder: it's been %d minutes since you started %q.", n.Minutes, n.Topic)
	if n.Goal != "" {
		text += fmt.Sprintf("\nYour goal: %s", n.Goal)
	}

	msg := tgbotapi.NewMessage(n.TelegramChatID, text)
	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send telegram reminder: %w", err)
	}

	t.logger.Info().Str("run_id", n.RunID).Int64("chat_id", n.TelegramChatID).Msg("Telegram reminder sent")
	return nil
}
