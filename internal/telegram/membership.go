// Package telegram содержит адаптеры к Telegram Bot API, используемые гейтами:
// проверку членства в канале и кэш информации о каналах.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/magabrotheeeer/phoenix-filter-bot/internal/metrics"
	"github.com/magabrotheeeer/phoenix-filter-bot/internal/models"
)

// MemberGetter часть клиента Bot API, нужная для проверки членства.
type MemberGetter interface {
	GetChatMember(config tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error)
}

// MembershipChecker определяет членство пользователя в канале через getChatMember.
type MembershipChecker struct {
	api MemberGetter
}

// NewMembershipChecker создаёт проверку членства поверх клиента Bot API.
func NewMembershipChecker(api MemberGetter) *MembershipChecker {
	return &MembershipChecker{api: api}
}

// Check возвращает членство пользователя в канале.
// Ответ «пользователь не найден» считается отсутствием членства. Любая другая ошибка
// даёт MembershipUnknown вместе с ошибкой.
func (c *MembershipChecker) Check(ctx context.Context, channelID, userID int64) (models.Membership, error) {
	const op = "telegram.MembershipChecker.Check"

	if err := ctx.Err(); err != nil {
		metrics.MembershipChecks.WithLabelValues(models.MembershipUnknown.String()).Inc()
		return models.MembershipUnknown, fmt.Errorf("%s: %w", op, err)
	}

	member, err := c.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
			ChatID: channelID,
			UserID: userID,
		},
	})
	result, err := classify(member, err)
	metrics.MembershipChecks.WithLabelValues(result.String()).Inc()
	if err != nil {
		return result, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

func classify(member tgbotapi.ChatMember, err error) (models.Membership, error) {
	if err != nil {
		var apiErr *tgbotapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusBadRequest && userMissing(apiErr.Message) {
			return models.MembershipNotMember, nil
		}
		return models.MembershipUnknown, err
	}

	switch member.Status {
	case "creator", "administrator", "member":
		return models.MembershipMember, nil
	case "restricted":
		if member.IsMember {
			return models.MembershipMember, nil
		}
		return models.MembershipNotMember, nil
	case "left", "kicked":
		return models.MembershipNotMember, nil
	default:
		return models.MembershipUnknown, fmt.Errorf("unexpected member status %q", member.Status)
	}
}

func userMissing(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "user not found") || strings.Contains(msg, "participant_id_invalid")
}
