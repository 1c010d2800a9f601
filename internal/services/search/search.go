// Package search индексирует медиафайлы из каналов и ищет их по подстроке.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/magabrotheeeer/phoenix-filter-bot/internal/lib/sl"
	"github.com/magabrotheeeer/phoenix-filter-bot/internal/models"
)

const (
	// ResultLimit сколько файлов читается из индекса на один запрос.
	ResultLimit = 10
	// ShowLimit сколько файлов показывается пользователю.
	ShowLimit = 5
	// MinQueryLen минимальная длина запроса в символах.
	MinQueryLen = 2
)

// ErrQueryTooShort возвращается для слишком короткого запроса.
var ErrQueryTooShort = errors.New("search query too short")

// FileRepository описывает хранение проиндексированных файлов.
type FileRepository interface {
	IndexFile(ctx context.Context, file models.File) (int64, error)
	SearchFiles(ctx context.Context, query string, limit int) ([]*models.File, error)
	GetFile(ctx context.Context, id int64) (*models.File, error)
	IncrementDownloadCount(ctx context.Context, id int64) error
	DeleteFile(ctx context.Context, id int64) (bool, error)
}

// Service поиск и индексация файлов.
type Service struct {
	repo     FileRepository
	channels map[int64]struct{}
	log      *slog.Logger
}

// NewService создаёт сервис. channels задаёт каналы, из которых файлы попадают в индекс.
func NewService(repo FileRepository, channels []int64, log *slog.Logger) *Service {
	set := make(map[int64]struct{}, len(channels))
	for _, ch := range channels {
		set[ch] = struct{}{}
	}
	return &Service{repo: repo, channels: set, log: log}
}

// Indexed сообщает, индексируется ли канал.
func (s *Service) Indexed(channelID int64) bool {
	_, ok := s.channels[channelID]
	return ok
}

// Index сохраняет файл из индексируемого канала. Для прочих каналов возвращает indexed=false.
func (s *Service) Index(ctx context.Context, file models.File) (int64, bool, error) {
	const op = "search.Service.Index"
	if !s.Indexed(file.ChannelID) {
		return 0, false, nil
	}

	id, err := s.repo.IndexFile(ctx, file)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("file indexed", slog.Int64("id", id), slog.String("name", file.FileName),
		slog.Int64("channel_id", file.ChannelID))
	return id, true, nil
}

// Search ищет файлы по подстроке без учёта регистра.
func (s *Service) Search(ctx context.Context, query string) ([]*models.File, error) {
	const op = "search.Service.Search"
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < MinQueryLen {
		return nil, fmt.Errorf("%s: %w", op, ErrQueryTooShort)
	}

	files, err := s.repo.SearchFiles(ctx, query, ResultLimit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Debug("search finished", slog.String("query", query), slog.Int("results", len(files)))
	return files, nil
}

// Get возвращает файл по ID.
func (s *Service) Get(ctx context.Context, id int64) (*models.File, error) {
	const op = "search.Service.Get"
	f, err := s.repo.GetFile(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return f, nil
}

// MarkDownloaded увеличивает счётчик скачиваний. Ошибка только логируется.
func (s *Service) MarkDownloaded(ctx context.Context, id int64) {
	if err := s.repo.IncrementDownloadCount(ctx, id); err != nil {
		s.log.Warn("failed to increment download count", slog.Int64("file_id", id), sl.Err(err))
	}
}

// Delete удаляет файл из индекса.
func (s *Service) Delete(ctx context.Context, id int64) (bool, error) {
	const op = "search.Service.Delete"
	deleted, err := s.repo.DeleteFile(ctx, id)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return deleted, nil
}
