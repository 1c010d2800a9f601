package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"
)

// Sender ограничивает частоту исходящих вызовов Bot API.
type Sender struct {
	api     API
	limiter *rate.Limiter
}

// NewSender создаёт отправитель с лимитом perSecond запросов в секунду и всплеском burst.
func NewSender(api API, perSecond float64, burst int) *Sender {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &Sender{
		api:     api,
		limiter: rate.NewLimiter(limit, max(burst, 1)),
	}
}

// Send дожидается разрешения лимитера и отправляет сообщение.
func (s *Sender) Send(ctx context.Context, c tgbotapi.Chattable) (tgbotapi.Message, error) {
	const op = "bot.Sender.Send"
	if err := s.limiter.Wait(ctx); err != nil {
		return tgbotapi.Message{}, fmt.Errorf("%s: %w", op, err)
	}
	msg, err := s.api.Send(c)
	if err != nil {
		return tgbotapi.Message{}, fmt.Errorf("%s: %w", op, err)
	}
	return msg, nil
}

// Request выполняет вызов, не возвращающий сообщение (ответ на callback и т.п.).
func (s *Sender) Request(ctx context.Context, c tgbotapi.Chattable) error {
	const op = "bot.Sender.Request"
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if _, err := s.api.Request(c); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
