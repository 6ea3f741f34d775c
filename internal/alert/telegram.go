package alert

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/kirillm/spread-bot/pkg/utils"
)

// Telegram дублирует алерты в telegram-чат оператора
type Telegram struct {
	api    *tgbotapi.BotAPI
	chatID int64
	logger *utils.Logger
}

func NewTelegram(token string, chatID int64, logger *utils.Logger) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	return &Telegram{
		api:    api,
		chatID: chatID,
		logger: logger,
	}, nil
}

func (t *Telegram) Funds(ctx context.Context, a FundsAlert) {
	message := fmt.Sprintf(
		"⚠️ Insufficient Funds\n\n"+
			"Bot: %s\n"+
			"Exchange: %s\n"+
			"Currency: %s\n"+
			"Target: %.8f\n"+
			"On Order: %.8f\n"+
			"Available: %.8f",
		a.BotName, a.Exchange, a.Currency,
		a.TargetAmount, a.AmountOnOrder, a.AmountAvailable,
	)
	t.send(message)
}

func (t *Telegram) VenueError(ctx context.Context, a VenueErrorAlert) {
	message := fmt.Sprintf(
		"❌ Venue Error\n\n"+
			"Bot: %s\n"+
			"Exchange: %s\n"+
			"Action: %s\n"+
			"Error: %s",
		a.BotName, a.Exchange, a.Action, a.Error,
	)
	t.send(message)
}

func (t *Telegram) send(message string) {
	msg := tgbotapi.NewMessage(t.chatID, message)
	if _, err := t.api.Send(msg); err != nil {
		t.logger.Error("failed to send telegram alert: %v", err)
	}
}
