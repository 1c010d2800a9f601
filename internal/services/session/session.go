// Package session хранит временное состояние диалога пользователя с явным TTL.
package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/magabrotheeeer/phoenix-filter-bot/internal/models"
)

// ErrExpired возвращается, если сохранённого выбора нет или его TTL истёк.
var ErrExpired = errors.New("session expired")

// Cache описывает JSON-кэш с временем жизни ключей.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

// Store хранит выбранный тариф до отправки хэша транзакции.
type Store struct {
	cache Cache
	ttl   time.Duration
}

// NewStore создаёт хранилище сессий. ttl задаёт время жизни незавершённой оплаты.
func NewStore(cache Cache, ttl time.Duration) *Store {
	return &Store{cache: cache, ttl: ttl}
}

func pendingKey(userID int64) string {
	return "session:payment:" + strconv.FormatInt(userID, 10)
}

// SavePending сохраняет выбор тарифа, заменяя предыдущий.
func (s *Store) SavePending(ctx context.Context, sel models.PendingSelection) error {
	const op = "session.Store.SavePending"
	if err := s.cache.Set(ctx, pendingKey(sel.UserID), sel, s.ttl); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Pending возвращает сохранённый выбор или ErrExpired.
func (s *Store) Pending(ctx context.Context, userID int64) (*models.PendingSelection, error) {
	const op = "session.Store.Pending"
	var sel models.PendingSelection
	found, err := s.cache.Get(ctx, pendingKey(userID), &sel)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !found {
		return nil, fmt.Errorf("%s: %w", op, ErrExpired)
	}
	return &sel, nil
}

// ClearPending удаляет выбор после завершения или отмены оплаты.
func (s *Store) ClearPending(ctx context.Context, userID int64) error {
	const op = "session.Store.ClearPending"
	if err := s.cache.Invalidate(ctx, pendingKey(userID)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
