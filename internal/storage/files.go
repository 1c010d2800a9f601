package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/magabrotheeeer/phoenix-filter-bot/internal/models"
)

const fileColumns = `id, file_id, file_name, file_type, file_size, mime_type,
	channel_id, message_id, custom_name, caption, download_count, indexed_at`

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// IndexFile сохраняет файл из канала. Повторная индексация того же file_id обновляет
// имя и подпись. Возвращает внутренний ID записи.
func (s *Storage) IndexFile(ctx context.Context, file models.File) (int64, error) {
	const op = "storage.IndexFile"
	if err := checkCtx(ctx, op); err != nil {
		return 0, err
	}

	query := `INSERT INTO files (file_id, file_name, file_type, file_size, mime_type,
			                     channel_id, message_id, caption)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			  ON CONFLICT (file_id) DO UPDATE
			  SET file_name = EXCLUDED.file_name,
			      caption = EXCLUDED.caption
			  RETURNING id`
	var id int64
	err := s.DB.QueryRowContext(ctx, query,
		file.FileID, file.FileName, file.FileType, file.FileSize, file.MimeType,
		file.ChannelID, file.MessageID, file.Caption,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

// SearchFiles ищет файлы по подстроке без учёта регистра в имени, пользовательском
// имени и подписи. Самые популярные файлы идут первыми.
func (s *Storage) SearchFiles(ctx context.Context, query string, limit int) ([]*models.File, error) {
	const op = "storage.SearchFiles"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	pattern := "%" + likeEscaper.Replace(query) + "%"
	q := `SELECT ` + fileColumns + `
		  FROM files
		  WHERE file_name ILIKE $1
		     OR custom_name ILIKE $1
		     OR caption ILIKE $1
		  ORDER BY download_count DESC, id DESC
		  LIMIT $2`
	rows, err := s.DB.QueryContext(ctx, q, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, f)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// GetFile возвращает файл по внутреннему ID.
func (s *Storage) GetFile(ctx context.Context, id int64) (*models.File, error) {
	const op = "storage.GetFile"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT ` + fileColumns + ` FROM files WHERE id = $1`
	f, err := scanFile(s.DB.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrFileNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return f, nil
}

// IncrementDownloadCount увеличивает счётчик скачиваний файла.
func (s *Storage) IncrementDownloadCount(ctx context.Context, id int64) error {
	const op = "storage.IncrementDownloadCount"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	query := `UPDATE files SET download_count = download_count + 1 WHERE id = $1`
	if _, err := s.DB.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// DeleteFile удаляет файл из индекса. Возвращает false, если файла не было.
func (s *Storage) DeleteFile(ctx context.Context, id int64) (bool, error) {
	const op = "storage.DeleteFile"
	if err := checkCtx(ctx, op); err != nil {
		return false, err
	}

	return s.execAffected(ctx, op, `DELETE FROM files WHERE id = $1`, id)
}

// CountFiles возвращает число проиндексированных файлов.
func (s *Storage) CountFiles(ctx context.Context) (int, error) {
	const op = "storage.CountFiles"
	if err := checkCtx(ctx, op); err != nil {
		return 0, err
	}

	var n int
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM files`).Scan(&n); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

func scanFile(row rowScanner) (*models.File, error) {
	var (
		f          models.File
		mimeType   sql.NullString
		customName sql.NullString
		caption    sql.NullString
	)
	if err := row.Scan(&f.ID, &f.FileID, &f.FileName, &f.FileType, &f.FileSize, &mimeType,
		&f.ChannelID, &f.MessageID, &customName, &caption, &f.DownloadCount, &f.IndexedAt); err != nil {
		return nil, err
	}
	f.MimeType = nullString(mimeType)
	f.CustomName = nullString(customName)
	f.Caption = nullString(caption)
	return &f, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
