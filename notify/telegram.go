// Package notify implements ports.Notifier against Telegram, the operator
// alert channel spec.md §1 names as the system's external notification
// sink. Delivery failures are logged, never propagated — a dropped alert
// must not interrupt the trading loop that triggered it.
package notify

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/tranvietlong/vnalgo-core/domain"
)

// TelegramNotifier sends operator alerts to a single chat via the Telegram
// bot API.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64

	// sendFunc defaults to the real Telegram send and is overridden in
	// tests to avoid dialing out.
	sendFunc func(text string)
}

// NewTelegramNotifier dials the Telegram bot API with token and binds
// every alert to chatID.
func NewTelegramNotifier(token string, chatID int64) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("notify: create telegram bot: %w", err)
	}
	n := &TelegramNotifier{bot: bot, chatID: chatID}
	n.sendFunc = n.sendViaBot
	return n, nil
}

func (n *TelegramNotifier) NotifyOrderPlaced(o domain.Order) {
	text := fmt.Sprintf("✅ Order placed: %s %s x%d @ %s (status=%s)",
		o.Side, o.Symbol, o.Quantity, o.Price.String(), o.Status)
	n.send(text)
}

func (n *TelegramNotifier) NotifyOrderRejected(o domain.Order, reason string) {
	text := fmt.Sprintf("⛔ Order rejected: %s %s x%d — %s", o.Side, o.Symbol, o.Quantity, reason)
	n.send(text)
}

func (n *TelegramNotifier) NotifyRiskEvent(summary string) {
	text := fmt.Sprintf("🔶 Risk event: %s", summary)
	n.send(text)
}

func (n *TelegramNotifier) send(text string) {
	n.sendFunc(text)
}

func (n *TelegramNotifier) sendViaBot(text string) {
	msg := tgbotapi.NewMessage(n.chatID, text)
	if _, err := n.bot.Send(msg); err != nil {
		log.Error().Err(err).Str("text", text).Msg("📡 telegram notification failed")
	}
}
