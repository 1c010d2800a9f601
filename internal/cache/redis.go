// Package cache реализует работу с Redis: JSON-кэш с TTL для сессионных данных
// и суточные счётчики использования.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/magabrotheeeer/phoenix-filter-bot/internal/config"
	"github.com/magabrotheeeer/phoenix-filter-bot/internal/lib/day"
	"github.com/magabrotheeeer/phoenix-filter-bot/internal/models"
)

// usageGrace держит счётчик ещё сутки после окончания его дня.
const usageGrace = 24 * time.Hour

// Cache обёртка над клиентом Redis.
type Cache struct {
	Db *redis.Client
}

// InitServer подключается к Redis и проверяет соединение.
func InitServer(ctx context.Context, cfg config.RedisConnection) (*Cache, error) {
	const op = "cache.InitServer"
	db := redis.NewClient(&redis.Options{
		Addr:         cfg.AddressRedis,
		Password:     cfg.Password,
		DB:           cfg.DB,
		Username:     cfg.User,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.TimeoutRedis,
		WriteTimeout: cfg.TimeoutRedis,
	})

	if err := db.Ping(ctx).Err(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Cache{Db: db}, nil
}

// Get читает JSON-значение по ключу. found=false, если ключа нет или он истёк.
func (c *Cache) Get(ctx context.Context, key string, result any) (bool, error) {
	const op = "cache.Get"
	val, err := c.Db.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if err = json.Unmarshal(val, result); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return true, nil
}

// Set сохраняет значение в JSON с временем жизни expiration.
func (c *Cache) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	const op = "cache.Set"
	jsonData, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err = c.Db.Set(ctx, key, jsonData, expiration).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Invalidate удаляет ключ.
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	const op = "cache.Invalidate"
	if err := c.Db.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Ping проверяет доступность Redis.
func (c *Cache) Ping(ctx context.Context) error {
	return c.Db.Ping(ctx).Err()
}

// Close закрывает клиент.
func (c *Cache) Close() error {
	return c.Db.Close()
}

// UsageKey возвращает ключ счётчика действия пользователя за сутки UTC, содержащие now.
func UsageKey(userID int64, action models.Action, now time.Time) string {
	return "usage:" + string(action) + ":" + strconv.FormatInt(userID, 10) + ":" + day.Key(now)
}

// IncrUsage атомарно увеличивает счётчик на текущие сутки и возвращает новое значение.
// Счётчик удаляется Redis'ом через сутки после окончания своего дня.
func (c *Cache) IncrUsage(ctx context.Context, userID int64, action models.Action, now time.Time) (int, error) {
	const op = "cache.IncrUsage"
	key := UsageKey(userID, action, now)

	var incr *redis.IntCmd
	_, err := c.Db.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireAt(ctx, key, day.EndOf(now).Add(usageGrace))
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(incr.Val()), nil
}

// GetUsage возвращает значение счётчика за сутки, содержащие now. Отсутствующий счётчик равен нулю.
func (c *Cache) GetUsage(ctx context.Context, userID int64, action models.Action, now time.Time) (int, error) {
	const op = "cache.GetUsage"
	n, err := c.Db.Get(ctx, UsageKey(userID, action, now)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}
