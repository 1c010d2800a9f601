package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/phoenix-filter-bot/internal/models"
)

const userColumns = `user_id, username, first_name, is_premium, premium_expiry,
	referrer_id, referral_count, is_banned, joined_at, last_seen`

// UpsertUser создаёт пользователя при первом обращении или обновляет его профиль и last_seen.
// Реферер сохраняется только при создании записи.
func (s *Storage) UpsertUser(ctx context.Context, user models.User) error {
	const op = "storage.UpsertUser"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	query := `INSERT INTO users (user_id, username, first_name, referrer_id)
			  VALUES ($1, $2, $3, $4)
			  ON CONFLICT (user_id) DO UPDATE
			  SET username = EXCLUDED.username,
			      first_name = EXCLUDED.first_name,
			      last_seen = NOW()`
	if _, err := s.DB.ExecContext(ctx, query,
		user.ID, user.Username, user.FirstName, user.ReferrerID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetUser возвращает запись пользователя как есть, без исправления просроченного премиума.
func (s *Storage) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	const op = "storage.GetUser"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE user_id = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// ClearPremium снимает премиум: флаг сбрасывается, дата окончания обнуляется.
// Возвращает false, если пользователя нет.
func (s *Storage) ClearPremium(ctx context.Context, userID int64) (bool, error) {
	const op = "storage.ClearPremium"
	if err := checkCtx(ctx, op); err != nil {
		return false, err
	}

	query := `UPDATE users
			  SET is_premium = FALSE, premium_expiry = NULL
			  WHERE user_id = $1`
	return s.execAffected(ctx, op, query, userID)
}

// SetPremium включает премиум до момента until.
func (s *Storage) SetPremium(ctx context.Context, userID int64, until time.Time) (bool, error) {
	const op = "storage.SetPremium"
	if err := checkCtx(ctx, op); err != nil {
		return false, err
	}

	query := `UPDATE users
			  SET is_premium = TRUE, premium_expiry = $1
			  WHERE user_id = $2`
	return s.execAffected(ctx, op, query, until.UTC(), userID)
}

// SetBanned выставляет или снимает мягкую блокировку.
func (s *Storage) SetBanned(ctx context.Context, userID int64, banned bool) (bool, error) {
	const op = "storage.SetBanned"
	if err := checkCtx(ctx, op); err != nil {
		return false, err
	}

	query := `UPDATE users SET is_banned = $1 WHERE user_id = $2`
	return s.execAffected(ctx, op, query, banned, userID)
}

// CountUsers возвращает общее число пользователей и число пользователей с действующим премиумом.
func (s *Storage) CountUsers(ctx context.Context) (total, premium int, err error) {
	const op = "storage.CountUsers"
	if err = checkCtx(ctx, op); err != nil {
		return 0, 0, err
	}

	query := `SELECT COUNT(*),
			         COUNT(*) FILTER (WHERE is_premium AND premium_expiry > NOW())
			  FROM users`
	if err = s.DB.QueryRowContext(ctx, query).Scan(&total, &premium); err != nil {
		return 0, 0, fmt.Errorf("%s: %w", op, err)
	}
	return total, premium, nil
}

// FindPremiumExpiring возвращает незаблокированных пользователей с премиумом,
// который заканчивается в интервале [from, to).
func (s *Storage) FindPremiumExpiring(ctx context.Context, from, to time.Time) ([]*models.User, error) {
	const op = "storage.FindPremiumExpiring"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT ` + userColumns + ` FROM users
			  WHERE is_premium AND NOT is_banned
			    AND premium_expiry >= $1 AND premium_expiry < $2
			  ORDER BY premium_expiry`
	rows, err := s.DB.QueryContext(ctx, query, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return users, nil
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		u             models.User
		premiumExpiry sql.NullTime
		referrerID    sql.NullInt64
	)
	if err := row.Scan(&u.ID, &u.Username, &u.FirstName, &u.IsPremium, &premiumExpiry,
		&referrerID, &u.ReferralCount, &u.IsBanned, &u.JoinedAt, &u.LastSeen); err != nil {
		return nil, err
	}
	if premiumExpiry.Valid {
		expiry := premiumExpiry.Time
		u.PremiumExpiry = &expiry
	}
	if referrerID.Valid {
		referrer := referrerID.Int64
		u.ReferrerID = &referrer
	}
	return &u, nil
}
