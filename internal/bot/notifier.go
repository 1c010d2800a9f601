package bot

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/magabrotheeeer/phoenix-filter-bot/internal/lib/sl"
	"github.com/magabrotheeeer/phoenix-filter-bot/internal/metrics"
	"github.com/magabrotheeeer/phoenix-filter-bot/internal/models"
	"github.com/magabrotheeeer/phoenix-filter-bot/internal/rabbitmq"
)

// Notifier доставляет уведомления из очереди в Telegram.
type Notifier struct {
	sender *Sender
	queue  string
	log    *slog.Logger
}

// NewNotifier создаёт обработчик очереди queue.
func NewNotifier(sender *Sender, queue string, log *slog.Logger) *Notifier {
	return &Notifier{sender: sender, queue: queue, log: log}
}

// Handle отправляет одно уведомление. Битое сообщение и заблокировавший бота
// получатель не возвращаются в очередь, прочие ошибки возвращаются для повтора.
func (n *Notifier) Handle(ctx context.Context, body []byte) error {
	const op = "bot.Notifier.Handle"
	log := n.log.With(slog.String("op", op), slog.String("queue", n.queue))

	var note models.Notification
	if err := json.Unmarshal(body, &note); err != nil || note.ChatID == 0 || note.Text == "" {
		log.Error("dropping malformed notification", sl.Err(err))
		metrics.Notifications.WithLabelValues(n.queue, "dropped").Inc()
		return nil
	}

	if _, err := n.sender.Send(ctx, tgbotapi.NewMessage(note.ChatID, note.Text)); err != nil {
		var apiErr *tgbotapi.Error
		if errors.As(err, &apiErr) && (apiErr.Code == http.StatusForbidden || apiErr.Code == http.StatusBadRequest) {
			log.Warn("recipient unreachable, dropping notification",
				slog.Int64("chat_id", note.ChatID), sl.Err(err))
			metrics.Notifications.WithLabelValues(n.queue, "dropped").Inc()
			return nil
		}
		metrics.Notifications.WithLabelValues(n.queue, "retry").Inc()
		return err
	}

	metrics.Notifications.WithLabelValues(n.queue, "delivered").Inc()
	return nil
}

// Handler возвращает функцию-обработчик для rabbitmq.Consume.
func (n *Notifier) Handler() rabbitmq.Handler {
	return n.Handle
}
