package telegram

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/magabrotheeeer/phoenix-filter-bot/internal/metrics"
)

// ChatGetter часть клиента Bot API для чтения информации о чате.
type ChatGetter interface {
	GetChat(config tgbotapi.ChatInfoConfig) (tgbotapi.Chat, error)
}

// ChatInfo данные канала для кнопки «Вступить».
type ChatInfo struct {
	ID         int64
	Title      string
	UserName   string
	InviteLink string
}

// JoinURL возвращает ссылку для вступления или пустую строку, если её нет.
func (c ChatInfo) JoinURL() string {
	if c.UserName != "" {
		return "https://t.me/" + c.UserName
	}
	return c.InviteLink
}

// ChatCache LRU-кэш информации о каналах с TTL.
// Названия каналов меняются редко, а getChat вызывается на каждый отказ гейта.
type ChatCache struct {
	api   ChatGetter
	cache *expirable.LRU[int64, ChatInfo]
}

// NewChatCache создаёт кэш на size записей с временем жизни ttl.
func NewChatCache(api ChatGetter, size int, ttl time.Duration) *ChatCache {
	return &ChatCache{
		api:   api,
		cache: expirable.NewLRU[int64, ChatInfo](size, nil, ttl),
	}
}

// Get возвращает информацию о канале из кэша или запрашивает её у Bot API.
func (c *ChatCache) Get(ctx context.Context, chatID int64) (ChatInfo, error) {
	const op = "telegram.ChatCache.Get"

	if info, ok := c.cache.Get(chatID); ok {
		metrics.ChatCacheLookups.WithLabelValues("hit").Inc()
		return info, nil
	}
	metrics.ChatCacheLookups.WithLabelValues("miss").Inc()

	if err := ctx.Err(); err != nil {
		return ChatInfo{}, fmt.Errorf("%s: %w", op, err)
	}
	chat, err := c.api.GetChat(tgbotapi.ChatInfoConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: chatID},
	})
	if err != nil {
		return ChatInfo{}, fmt.Errorf("%s: %w", op, err)
	}

	info := ChatInfo{
		ID:         chat.ID,
		Title:      chat.Title,
		UserName:   chat.UserName,
		InviteLink: chat.InviteLink,
	}
	c.cache.Add(chatID, info)
	return info, nil
}

// Forget удаляет канал из кэша.
func (c *ChatCache) Forget(chatID int64) {
	c.cache.Remove(chatID)
}
