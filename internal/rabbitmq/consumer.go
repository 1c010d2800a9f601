package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/phoenix-filter-bot/internal/lib/sl"
)

// RetryDelay пауза перед возвратом сообщения в очередь после ошибки обработчика.
const RetryDelay = 5 * time.Second

// Handler обрабатывает тело сообщения. Ошибка возвращает сообщение в очередь.
type Handler func(ctx context.Context, body []byte) error

// Consume запускает потребителя очереди queueName. Одновременно обрабатывается
// не более workers сообщений. Потребитель останавливается при отмене ctx
// или закрытии канала доставки.
func Consume(ctx context.Context, ch *amqp.Channel, queueName string, workers int, log *slog.Logger,
	handler Handler) error {
	const op = "rabbitmq.Consume"
	delivery, err := ch.Consume(
		queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	go dispatch(ctx, delivery, max(workers, 1), RetryDelay, log.With(slog.String("queue", queueName)), handler)
	return nil
}

// Acknowledger подтверждение доставки, выделено для тестов.
type Acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

func dispatch(ctx context.Context, delivery <-chan amqp.Delivery, workers int, retryDelay time.Duration,
	log *slog.Logger, handler Handler) {
	sem := make(chan struct{}, workers)
	for {
		select {
		case d, ok := <-delivery:
			if !ok {
				log.Info("delivery channel closed")
				return
			}
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				if err := d.Nack(false, true); err != nil {
					log.Error("failed to return message on shutdown", sl.Err(err))
				}
				return
			}
			go func(d amqp.Delivery) {
				defer func() { <-sem }()
				handle(ctx, d.Body, d, retryDelay, log, handler)
			}(d)
		case <-ctx.Done():
			return
		}
	}
}

// handle подтверждает сообщение после успешной обработки. При ошибке сообщение
// возвращается в очередь через retryDelay или сразу при отмене ctx.
func handle(ctx context.Context, body []byte, ack Acknowledger, retryDelay time.Duration, log *slog.Logger,
	handler Handler) {
	if err := handler(ctx, body); err != nil {
		log.Warn("handler failed, requeueing message", sl.Err(err), slog.Duration("delay", retryDelay))
		timer := time.NewTimer(retryDelay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
		}
		if nackErr := ack.Nack(false, true); nackErr != nil {
			log.Error("failed to nack message", sl.Err(nackErr))
		}
		return
	}
	if ackErr := ack.Ack(false); ackErr != nil {
		log.Error("failed to ack message", sl.Err(ackErr))
	}
}
