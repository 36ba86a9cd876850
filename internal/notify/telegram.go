package notify

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"
)

// TelegramNotifier delivers customer and admin messages over the Telegram
// Bot API. Delivery is best-effort; the billing core never waits on it for
// a state transition.
type TelegramNotifier struct {
	bot         *tele.Bot
	adminChatID int64
	logger      *zap.Logger
}

// NewTelegramNotifier builds a notifier from a bot token. adminChatID may
// be 0; admin alerts are then only logged.
func NewTelegramNotifier(token string, adminChatID int64, logger *zap.Logger) (*TelegramNotifier, error) {
	bot, err := tele.NewBot(tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, fmt.Errorf("telegram bot init failed: %w", err)
	}
	return &TelegramNotifier{bot: bot, adminChatID: adminChatID, logger: logger}, nil
}

// NotifyUser sends a message to a customer chat.
func (n *TelegramNotifier) NotifyUser(_ context.Context, userID, message string) error {
	chatID, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return fmt.Errorf("user id %q is not a chat id: %w", userID, err)
	}
	_, err = n.bot.Send(&tele.User{ID: chatID}, message, tele.ModeHTML)
	if err != nil {
		n.logger.Warn("telegram send failed",
			zap.String("user_id", userID), zap.Error(err))
	}
	return err
}

// NotifyAdmin sends an alert to the configured admin chat.
func (n *TelegramNotifier) NotifyAdmin(_ context.Context, message string) error {
	if n.adminChatID == 0 {
		n.logger.Info("admin alert (no admin chat configured)", zap.String("message", message))
		return nil
	}
	_, err := n.bot.Send(&tele.User{ID: n.adminChatID}, message, tele.ModeHTML)
	if err != nil {
		n.logger.Warn("telegram admin alert failed", zap.Error(err))
	}
	return err
}
