package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/phoenix-filter-bot/internal/models"
)

// CreatePayment сохраняет заявку на оплату. Повторный хэш транзакции даёт ErrDuplicateTx.
func (s *Storage) CreatePayment(ctx context.Context, p models.Payment) error {
	const op = "storage.CreatePayment"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	query := `INSERT INTO payments (id, user_id, plan, network, tx_hash, price, days, status, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := s.DB.ExecContext(ctx, query,
		p.ID, p.UserID, p.Plan, p.Network, p.TxHash, p.Price, p.Days, string(p.Status), p.CreatedAt.UTC())
	if isUniqueViolation(err) {
		return fmt.Errorf("%s: %w", op, ErrDuplicateTx)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetPayment возвращает заявку по ID.
func (s *Storage) GetPayment(ctx context.Context, id string) (*models.Payment, error) {
	const op = "storage.GetPayment"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT id, user_id, plan, network, tx_hash, price, days, status, created_at, verified_at
			  FROM payments WHERE id = $1`
	var (
		p          models.Payment
		status     string
		verifiedAt sql.NullTime
	)
	err := s.DB.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.UserID, &p.Plan, &p.Network, &p.TxHash,
		&p.Price, &p.Days, &status, &p.CreatedAt, &verifiedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrPaymentNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	p.Status = models.PaymentStatus(status)
	if verifiedAt.Valid {
		t := verifiedAt.Time
		p.VerifiedAt = &t
	}
	return &p, nil
}

// UpdatePaymentStatus переводит заявку из статуса from в статус to.
// Возвращает false, если заявка уже не находится в статусе from.
func (s *Storage) UpdatePaymentStatus(ctx context.Context, id string, from, to models.PaymentStatus,
	verifiedAt time.Time) (bool, error) {
	const op = "storage.UpdatePaymentStatus"
	if err := checkCtx(ctx, op); err != nil {
		return false, err
	}

	query := `UPDATE payments
			  SET status = $1, verified_at = $2
			  WHERE id = $3 AND status = $4`
	return s.execAffected(ctx, op, query, string(to), verifiedAt.UTC(), id, string(from))
}

// ReopenPayment возвращает заявку из статуса from в ожидание проверки и сбрасывает verified_at.
// Возвращает false, если заявка уже не находится в статусе from.
func (s *Storage) ReopenPayment(ctx context.Context, id string, from models.PaymentStatus) (bool, error) {
	const op = "storage.ReopenPayment"
	if err := checkCtx(ctx, op); err != nil {
		return false, err
	}

	query := `UPDATE payments
			  SET status = $1, verified_at = NULL
			  WHERE id = $2 AND status = $3`
	return s.execAffected(ctx, op, query, string(models.PaymentAwaiting), id, string(from))
}
