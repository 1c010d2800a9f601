// Package scheduler периодически напоминает пользователям о скором окончании премиума.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/phoenix-filter-bot/internal/lib/sl"
	"github.com/magabrotheeeer/phoenix-filter-bot/internal/models"
	"github.com/magabrotheeeer/phoenix-filter-bot/internal/rabbitmq"
)

const (
	// Interval период проверки.
	Interval = 12 * time.Hour
	// Lead за сколько до окончания премиума отправляется напоминание.
	Lead = 24 * time.Hour
)

// UserRepository ищет пользователей с истекающим премиумом.
type UserRepository interface {
	FindPremiumExpiring(ctx context.Context, from, to time.Time) ([]*models.User, error)
}

// Publisher отправляет уведомления в очередь.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, message any) error
}

// SchedulerService рассылает напоминания об окончании премиума.
// Окна проверки [now+Lead, now+Lead+Interval) соседних запусков не пересекаются,
// поэтому каждый пользователь получает одно напоминание.
type SchedulerService struct {
	repo      UserRepository
	publisher Publisher
	interval  time.Duration
	log       *slog.Logger
	now       func() time.Time
}

// NewSchedulerService создаёт планировщик.
func NewSchedulerService(repo UserRepository, publisher Publisher, log *slog.Logger) *SchedulerService {
	return &SchedulerService{
		repo:      repo,
		publisher: publisher,
		interval:  Interval,
		log:       log,
		now:       time.Now,
	}
}

// Run выполняет проверку сразу и затем каждые Interval до отмены ctx.
func (s *SchedulerService) Run(ctx context.Context) {
	s.runRemindExpiring(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("premium reminder scheduler stopped")
			return
		case <-ticker.C:
			s.runRemindExpiring(ctx)
		}
	}
}

func (s *SchedulerService) runRemindExpiring(ctx context.Context) {
	sent, err := s.RemindExpiring(ctx)
	if err != nil {
		s.log.Error("failed to send premium reminders", sl.Err(err))
		return
	}
	s.log.Info("premium reminders sent", slog.Int("count", sent))
}

// RemindExpiring публикует напоминание каждому пользователю, чей премиум закончится
// в окне [now+Lead, now+Lead+interval). Возвращает число опубликованных напоминаний.
func (s *SchedulerService) RemindExpiring(ctx context.Context) (int, error) {
	const op = "scheduler.SchedulerService.RemindExpiring"

	from := s.now().UTC().Add(Lead)
	users, err := s.repo.FindPremiumExpiring(ctx, from, from.Add(s.interval))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if len(users) == 0 {
		s.log.Debug("no expiring premium found")
		return 0, nil
	}

	sent := 0
	for _, u := range users {
		text := fmt.Sprintf("⏰ Your premium expires on %s.\n\nUse /buy to extend it.",
			u.PremiumExpiry.UTC().Format("2006-01-02 15:04 UTC"))
		err := s.publisher.Publish(ctx, rabbitmq.RoutingUser, models.Notification{ChatID: u.ID, Text: text})
		if err != nil {
			s.log.Error("failed to publish reminder", sl.UserID(u.ID), sl.Err(err))
			continue
		}
		sent++
	}
	return sent, nil
}
