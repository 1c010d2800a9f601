// Package fsub реализует гейт обязательной подписки: определяет, в какие каналы
// пользователю ещё нужно вступить, и управляет списком каналов чата.
package fsub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/phoenix-filter-bot/internal/lib/sl"
	"github.com/magabrotheeeer/phoenix-filter-bot/internal/metrics"
	"github.com/magabrotheeeer/phoenix-filter-bot/internal/models"
)

var (
	// ErrUnavailable означает, что гейт не удалось вычислить полностью. Вызывающий код должен отказать.
	ErrUnavailable = errors.New("force-subscribe gate unavailable")
	// ErrTooManyLinks возвращается AddLink, если у чата уже maxLinks каналов.
	ErrTooManyLinks = errors.New("too many force-subscribe channels")
)

// DefaultMaxLinks ограничивает число каналов одного чата.
const DefaultMaxLinks = 50

// LinkRepository описывает хранение связей чат-канал.
type LinkRepository interface {
	// AddForceSubLink сохраняет связь, false если она уже есть.
	AddForceSubLink(ctx context.Context, link models.ForceSubLink) (bool, error)
	// RemoveForceSubLink удаляет связь, false если её не было.
	RemoveForceSubLink(ctx context.Context, contextID, channelID int64) (bool, error)
	// ListForceSubLinks возвращает связи чата в порядке добавления.
	ListForceSubLinks(ctx context.Context, contextID int64, limit int) ([]*models.ForceSubLink, error)
}

// MembershipChecker проверяет членство пользователя в канале.
type MembershipChecker interface {
	Check(ctx context.Context, channelID, userID int64) (models.Membership, error)
}

// AccessGate объединяет обязательный канал бота и каналы, привязанные к чату.
type AccessGate struct {
	repo      LinkRepository
	checker   MembershipChecker
	mandatory int64
	maxLinks  int
	log       *slog.Logger
	now       func() time.Time
}

// NewAccessGate создаёт гейт. mandatoryChannel = 0 означает, что обязательный канал не задан.
func NewAccessGate(repo LinkRepository, checker MembershipChecker, mandatoryChannel int64, maxLinks int,
	log *slog.Logger) *AccessGate {
	if maxLinks <= 0 {
		maxLinks = DefaultMaxLinks
	}
	return &AccessGate{
		repo:      repo,
		checker:   checker,
		mandatory: mandatoryChannel,
		maxLinks:  maxLinks,
		log:       log,
		now:       time.Now,
	}
}

// MissingChannels возвращает каналы, в которые пользователь должен вступить: сначала
// обязательный канал, затем каналы чата в порядке добавления. Канал попадает в список,
// если пользователь в нём не состоит или проверка не удалась. Дубли не схлопываются.
//
// Если список каналов чата прочитать не удалось или в нём больше maxLinks каналов,
// возвращаются уже найденные каналы вместе с ErrUnavailable.
func (g *AccessGate) MissingChannels(ctx context.Context, userID, contextID int64) ([]int64, error) {
	const op = "fsub.AccessGate.MissingChannels"
	log := g.log.With(slog.String("op", op), sl.UserID(userID), slog.Int64("context_id", contextID))

	var missing []int64
	if g.mandatory != 0 && !g.isMember(ctx, log, g.mandatory, userID) {
		missing = append(missing, g.mandatory)
	}

	links, err := g.repo.ListForceSubLinks(ctx, contextID, g.maxLinks+1)
	if err != nil {
		log.Error("failed to list force-sub links", sl.Err(err))
		metrics.GateDecisions.WithLabelValues("fsub", "unavailable").Inc()
		return missing, fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	}
	truncated := len(links) > g.maxLinks
	if truncated {
		links = links[:g.maxLinks]
	}

	for _, link := range links {
		if !g.isMember(ctx, log, link.ChannelID, userID) {
			missing = append(missing, link.ChannelID)
		}
	}

	if truncated {
		log.Error("force-sub links exceed the limit, denying", slog.Int("max_links", g.maxLinks))
		metrics.GateDecisions.WithLabelValues("fsub", "unavailable").Inc()
		return missing, fmt.Errorf("%s: %w: more than %d links", op, ErrUnavailable, g.maxLinks)
	}

	if len(missing) == 0 {
		metrics.GateDecisions.WithLabelValues("fsub", "allow").Inc()
	} else {
		metrics.GateDecisions.WithLabelValues("fsub", "deny").Inc()
	}
	return missing, nil
}

func (g *AccessGate) isMember(ctx context.Context, log *slog.Logger, channelID, userID int64) bool {
	status, err := g.checker.Check(ctx, channelID, userID)
	if err != nil {
		log.Warn("membership check failed, treating as not joined",
			slog.Int64("channel_id", channelID), sl.Err(err))
		return false
	}
	return status == models.MembershipMember
}

// AddLink привязывает канал к чату. added=false, если связь уже существует.
// Сверх maxLinks каналов новая связь не добавляется: ErrTooManyLinks.
func (g *AccessGate) AddLink(ctx context.Context, contextID, channelID, addedBy int64) (bool, error) {
	const op = "fsub.AccessGate.AddLink"

	existing, err := g.repo.ListForceSubLinks(ctx, contextID, g.maxLinks)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	for _, link := range existing {
		if link.ChannelID == channelID {
			return false, nil
		}
	}
	if len(existing) >= g.maxLinks {
		return false, fmt.Errorf("%s: %w", op, ErrTooManyLinks)
	}

	added, err := g.repo.AddForceSubLink(ctx, models.ForceSubLink{
		ContextID: contextID,
		ChannelID: channelID,
		AddedBy:   addedBy,
		AddedAt:   g.now(),
	})
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if added {
		g.log.Info("force-sub link added",
			slog.Int64("context_id", contextID), slog.Int64("channel_id", channelID), sl.UserID(addedBy))
	}
	return added, nil
}

// RemoveLink отвязывает канал от чата. removed=false, если связи не было.
func (g *AccessGate) RemoveLink(ctx context.Context, contextID, channelID int64) (bool, error) {
	const op = "fsub.AccessGate.RemoveLink"

	removed, err := g.repo.RemoveForceSubLink(ctx, contextID, channelID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if removed {
		g.log.Info("force-sub link removed",
			slog.Int64("context_id", contextID), slog.Int64("channel_id", channelID))
	}
	return removed, nil
}

// ListLinks возвращает каналы, привязанные к чату.
func (g *AccessGate) ListLinks(ctx context.Context, contextID int64) ([]*models.ForceSubLink, error) {
	const op = "fsub.AccessGate.ListLinks"

	links, err := g.repo.ListForceSubLinks(ctx, contextID, g.maxLinks)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return links, nil
}
