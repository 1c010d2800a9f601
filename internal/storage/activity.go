package storage

import (
	"context"
	"fmt"
)

// LogActivity пишет событие в журнал активности. userID и details необязательны.
func (s *Storage) LogActivity(ctx context.Context, userID *int64, action string, details *string) error {
	const op = "storage.LogActivity"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	query := `INSERT INTO activity_logs (user_id, action, details) VALUES ($1, $2, $3)`
	if _, err := s.DB.ExecContext(ctx, query, userID, action, details); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
