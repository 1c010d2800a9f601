package bot

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/magabrotheeeer/phoenix-filter-bot/internal/lib/sl"
	"github.com/magabrotheeeer/phoenix-filter-bot/internal/models"
)

const (
	activityFsubRequired = "fsub_required"
	activityQuotaLimit   = "quota_exceeded"
	activityPayment      = "payment"
)

const unavailableText = "⚠️ Service is temporarily unavailable. Please try again later."

// admit проводит пользователя через гейт подписки и гейт лимитов.
// false означает, что пользователю уже отправлен отказ и действие выполнять нельзя.
// Возвращаемое число равно остатку действий на сегодня до выполнения текущего.
func (b *Bot) admit(ctx context.Context, chatID, userID int64, action models.Action) (bool, int) {
	log := b.log.With(slog.String("op", "bot.admit"), sl.UserID(userID),
		slog.Int64("chat_id", chatID), slog.String("action", string(action)))

	if b.opts.ForceSubEnabled {
		missing, err := b.deps.Access.MissingChannels(ctx, userID, chatID)
		if err != nil {
			log.Error("force-subscribe gate failed, denying", sl.Err(err))
			b.reply(ctx, chatID, unavailableText)
			return false, 0
		}
		if len(missing) > 0 {
			log.Info("user must join channels", slog.Int("missing", len(missing)))
			b.sendJoinPrompt(ctx, chatID, missing)
			b.logActivity(ctx, userID, activityFsubRequired, fmt.Sprintf("channels=%v", missing))
			return false, 0
		}
	}

	allowed, remaining, err := b.deps.Quota.Remaining(ctx, userID, action)
	if err != nil {
		log.Error("quota gate failed", sl.Err(err))
		b.reply(ctx, chatID, unavailableText)
		return false, 0
	}
	if !allowed {
		log.Info("daily limit reached", slog.Int("remaining", remaining))
		b.reply(ctx, chatID, formatLimitReached(action))
		b.logActivity(ctx, userID, activityQuotaLimit, string(action))
		return false, remaining
	}
	return true, remaining
}

// consume записывает использование после выполненного действия.
func (b *Bot) consume(ctx context.Context, userID int64, action models.Action, details string) {
	if err := b.deps.Quota.RecordUsage(ctx, userID, action); err != nil {
		b.log.Error("failed to record usage", sl.UserID(userID), sl.Err(err))
	}
	b.logActivity(ctx, userID, string(action), details)
}

func (b *Bot) sendJoinPrompt(ctx context.Context, chatID int64, channels []int64) {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(channels))
	for i, channelID := range channels {
		info, err := b.deps.Chats.Get(ctx, channelID)
		if err != nil {
			b.log.Warn("failed to get channel info", slog.Int64("channel_id", channelID), sl.Err(err))
			continue
		}
		url := info.JoinURL()
		if url == "" {
			continue
		}
		title := info.Title
		if title == "" {
			title = fmt.Sprintf("Channel %d", i+1)
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL("📢 Join "+title, url)))
	}

	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf(
		"🔒 To use the bot, please join %d channel(s) first, then try again.", len(channels)))
	if len(rows) > 0 {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	}
	b.send(ctx, msg)
}

func (b *Bot) logActivity(ctx context.Context, userID int64, action, details string) {
	var d *string
	if details != "" {
		d = &details
	}
	if err := b.deps.Users.LogActivity(ctx, &userID, action, d); err != nil {
		b.log.Warn("failed to log activity", sl.UserID(userID), slog.String("action", action), sl.Err(err))
	}
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	b.send(ctx, tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) send(ctx context.Context, c tgbotapi.Chattable) {
	if _, err := b.sender.Send(ctx, c); err != nil {
		b.log.Warn("failed to send message", sl.Err(err))
	}
}
