// Package quota реализует суточные лимиты действий по тарифу пользователя.
//
// Проверка Remaining и запись RecordUsage выполняются раздельно и не сериализуются
// для одного пользователя: параллельные запросы могут превысить лимит на число
// одновременно прошедших проверок.
package quota

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/phoenix-filter-bot/internal/lib/sl"
	"github.com/magabrotheeeer/phoenix-filter-bot/internal/metrics"
	"github.com/magabrotheeeer/phoenix-filter-bot/internal/models"
	"github.com/magabrotheeeer/phoenix-filter-bot/internal/storage"
)

// ErrUnknownAction возвращается для действия, у которого нет дневного лимита.
var ErrUnknownAction = errors.New("unknown action")

// UserRepository описывает чтение и исправление записи пользователя.
type UserRepository interface {
	// GetUser возвращает пользователя или storage.ErrUserNotFound.
	GetUser(ctx context.Context, userID int64) (*models.User, error)
	// ClearPremium снимает просроченный премиум.
	ClearPremium(ctx context.Context, userID int64) (bool, error)
}

// UsageStore описывает суточные счётчики действий.
type UsageStore interface {
	GetUsage(ctx context.Context, userID int64, action models.Action, now time.Time) (int, error)
	IncrUsage(ctx context.Context, userID int64, action models.Action, now time.Time) (int, error)
}

// QuotaGate определяет тариф пользователя и остаток дневного лимита.
type QuotaGate struct {
	users  UserRepository
	usage  UsageStore
	limits map[models.Tier]models.TierLimits
	log    *slog.Logger
	now    func() time.Time
}

// NewQuotaGate создаёт гейт с тарифами по умолчанию.
func NewQuotaGate(users UserRepository, usage UsageStore, log *slog.Logger) *QuotaGate {
	return &QuotaGate{
		users:  users,
		usage:  usage,
		limits: models.DefaultLimits,
		log:    log,
		now:    time.Now,
	}
}

// TierOf возвращает тариф пользователя. Неизвестный пользователь и ошибка хранилища дают free.
func (g *QuotaGate) TierOf(ctx context.Context, userID int64) models.Tier {
	tier, err := g.resolveTier(ctx, userID)
	if err != nil {
		g.log.Error("failed to resolve tier, falling back to free", sl.UserID(userID), sl.Err(err))
		return models.TierFree
	}
	return tier
}

// Limits возвращает лимиты тарифа.
func (g *QuotaGate) Limits(tier models.Tier) models.TierLimits {
	if l, ok := g.limits[tier]; ok {
		return l
	}
	return g.limits[models.TierFree]
}

// Remaining сообщает, можно ли выполнить действие сегодня, и сколько действий осталось.
// Безлимит возвращается как (true, models.Unlimited). Ошибка хранилища даёт (false, 0, nil).
func (g *QuotaGate) Remaining(ctx context.Context, userID int64, action models.Action) (bool, int, error) {
	const op = "quota.QuotaGate.Remaining"
	log := g.log.With(slog.String("op", op), sl.UserID(userID), slog.String("action", string(action)))

	if _, ok := g.Limits(models.TierFree).Daily(action); !ok {
		return false, 0, fmt.Errorf("%s: %w: %q", op, ErrUnknownAction, action)
	}

	tier, err := g.resolveTier(ctx, userID)
	if err != nil {
		log.Error("failed to resolve tier, denying", sl.Err(err))
		metrics.GateDecisions.WithLabelValues("quota", "unavailable").Inc()
		return false, 0, nil
	}

	ceiling, _ := g.Limits(tier).Daily(action)
	if ceiling >= models.Unlimited {
		metrics.GateDecisions.WithLabelValues("quota", "allow").Inc()
		return true, models.Unlimited, nil
	}

	used, err := g.usage.GetUsage(ctx, userID, action, g.now())
	if err != nil {
		log.Error("failed to read usage counter, denying", sl.Err(err))
		metrics.GateDecisions.WithLabelValues("quota", "unavailable").Inc()
		return false, 0, nil
	}

	allowed := used < ceiling
	if allowed {
		metrics.GateDecisions.WithLabelValues("quota", "allow").Inc()
	} else {
		metrics.GateDecisions.WithLabelValues("quota", "deny").Inc()
	}
	return allowed, max(ceiling-used, 0), nil
}

// RecordUsage увеличивает сегодняшний счётчик действия. Ошибка хранилища логируется
// и не возвращается: действие уже выполнено.
func (g *QuotaGate) RecordUsage(ctx context.Context, userID int64, action models.Action) error {
	const op = "quota.QuotaGate.RecordUsage"

	if _, ok := g.Limits(models.TierFree).Daily(action); !ok {
		return fmt.Errorf("%s: %w: %q", op, ErrUnknownAction, action)
	}

	if _, err := g.usage.IncrUsage(ctx, userID, action, g.now()); err != nil {
		metrics.UsageRecordErrors.Inc()
		g.log.Warn("failed to record usage",
			slog.String("op", op), sl.UserID(userID), slog.String("action", string(action)), sl.Err(err))
	}
	return nil
}

// Benefits возвращает тариф, лимиты и использование за сегодня.
func (g *QuotaGate) Benefits(ctx context.Context, userID int64) (*models.Benefits, error) {
	const op = "quota.QuotaGate.Benefits"

	tier, err := g.resolveTier(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	limits := g.Limits(tier)
	now := g.now()

	b := &models.Benefits{
		Tier:      tier,
		Limits:    limits,
		Used:      make(map[models.Action]int, 2),
		Remaining: make(map[models.Action]int, 2),
	}
	for _, action := range []models.Action{models.ActionSearch, models.ActionDownload} {
		used, err := g.usage.GetUsage(ctx, userID, action, now)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		ceiling, _ := limits.Daily(action)
		b.Used[action] = used
		if ceiling >= models.Unlimited {
			b.Remaining[action] = models.Unlimited
		} else {
			b.Remaining[action] = max(ceiling-used, 0)
		}
	}
	return b, nil
}

// resolveTier читает пользователя и снимает просроченный премиум до принятия решения.
func (g *QuotaGate) resolveTier(ctx context.Context, userID int64) (models.Tier, error) {
	user, err := g.users.GetUser(ctx, userID)
	if errors.Is(err, storage.ErrUserNotFound) {
		return models.TierFree, nil
	}
	if err != nil {
		return "", err
	}

	if user.PremiumStale(g.now()) {
		if _, err := g.users.ClearPremium(ctx, userID); err != nil {
			g.log.Warn("failed to clear expired premium", sl.UserID(userID), sl.Err(err))
		} else {
			g.log.Info("expired premium cleared", sl.UserID(userID))
		}
		return models.TierFree, nil
	}
	if user.PremiumActive(g.now()) {
		return models.TierPremium, nil
	}
	return models.TierFree, nil
}
