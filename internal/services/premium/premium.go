// Package premium выдаёт и снимает премиум-доступ.
package premium

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/phoenix-filter-bot/internal/lib/sl"
	"github.com/magabrotheeeer/phoenix-filter-bot/internal/models"
	"github.com/magabrotheeeer/phoenix-filter-bot/internal/storage"
)

// ErrInvalidDays срок премиума должен быть положительным.
var ErrInvalidDays = errors.New("days must be positive")

// UserRepository описывает изменение премиум-статуса пользователя.
type UserRepository interface {
	GetUser(ctx context.Context, userID int64) (*models.User, error)
	SetPremium(ctx context.Context, userID int64, until time.Time) (bool, error)
	ClearPremium(ctx context.Context, userID int64) (bool, error)
}

// Service управляет премиумом.
type Service struct {
	users UserRepository
	log   *slog.Logger
	now   func() time.Time
}

// NewService создаёт сервис премиума.
func NewService(users UserRepository, log *slog.Logger) *Service {
	return &Service{users: users, log: log, now: time.Now}
}

// Grant продлевает премиум на days дней. Действующий премиум продлевается от даты
// окончания, иначе отсчёт идёт от текущего момента. Возвращает новую дату окончания.
func (s *Service) Grant(ctx context.Context, userID int64, days int) (time.Time, error) {
	const op = "premium.Service.Grant"
	if days <= 0 {
		return time.Time{}, fmt.Errorf("%s: %w", op, ErrInvalidDays)
	}

	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", op, err)
	}

	now := s.now().UTC()
	base := now
	if user.PremiumActive(now) {
		base = user.PremiumExpiry.UTC()
	}
	until := base.AddDate(0, 0, days)

	ok, err := s.users.SetPremium(ctx, userID, until)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return time.Time{}, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
	}

	s.log.Info("premium granted", sl.UserID(userID), slog.Int("days", days), slog.Time("until", until))
	return until, nil
}

// Revoke снимает премиум.
func (s *Service) Revoke(ctx context.Context, userID int64) error {
	const op = "premium.Service.Revoke"

	ok, err := s.users.ClearPremium(ctx, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
	}

	s.log.Info("premium revoked", sl.UserID(userID))
	return nil
}
