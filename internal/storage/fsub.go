package storage

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/phoenix-filter-bot/internal/models"
)

// AddForceSubLink сохраняет связь чата с каналом обязательной подписки.
// Возвращает false без ошибки, если такая пара уже есть.
func (s *Storage) AddForceSubLink(ctx context.Context, link models.ForceSubLink) (bool, error) {
	const op = "storage.AddForceSubLink"
	if err := checkCtx(ctx, op); err != nil {
		return false, err
	}

	query := `INSERT INTO fsub_links (chat_id, channel_id, added_by, added_at)
			  VALUES ($1, $2, $3, $4)
			  ON CONFLICT (chat_id, channel_id) DO NOTHING`
	return s.execAffected(ctx, op, query, link.ContextID, link.ChannelID, link.AddedBy, link.AddedAt.UTC())
}

// RemoveForceSubLink удаляет связь. Возвращает false, если связи не было.
func (s *Storage) RemoveForceSubLink(ctx context.Context, contextID, channelID int64) (bool, error) {
	const op = "storage.RemoveForceSubLink"
	if err := checkCtx(ctx, op); err != nil {
		return false, err
	}

	query := `DELETE FROM fsub_links WHERE chat_id = $1 AND channel_id = $2`
	return s.execAffected(ctx, op, query, contextID, channelID)
}

// ListForceSubLinks возвращает связи чата в порядке добавления, не более limit штук.
func (s *Storage) ListForceSubLinks(ctx context.Context, contextID int64, limit int) ([]*models.ForceSubLink, error) {
	const op = "storage.ListForceSubLinks"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT chat_id, channel_id, added_by, added_at
			  FROM fsub_links
			  WHERE chat_id = $1
			  ORDER BY id
			  LIMIT $2`
	rows, err := s.DB.QueryContext(ctx, query, contextID, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.ForceSubLink
	for rows.Next() {
		var link models.ForceSubLink
		if err := rows.Scan(&link.ContextID, &link.ChannelID, &link.AddedBy, &link.AddedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &link)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
