package notify

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const maxSendAttempts = 3

// Telegram envia as notificações de aposta pro chat configurado.
// Send só retorna sucesso com a mensagem confirmada pela API; o chamador
// decide segurar mutações de estado quando a entrega falha
type Telegram struct {
	Log    *zap.Logger
	bot    *tgbotapi.BotAPI
	chatID int64
}

func NewTelegram(log *zap.Logger, token string, chatID int64) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &Telegram{Log: log, bot: bot, chatID: chatID}, nil
}

// Send entrega o texto com até 3 tentativas e backoff exponencial
func (t *Telegram) Send(ctx context.Context, text string) error {
	msg := tgbotapi.NewMessage(t.chatID, text)

	var lastErr error
	for attempt := 0; attempt < maxSendAttempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<attempt) * time.Second
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		if _, err := t.bot.Send(msg); err != nil {
			lastErr = err
			t.Log.Warn("telegram send failed",
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
			continue
		}
		return nil
	}
	return fmt.Errorf("telegram send: %w", lastErr)
}
