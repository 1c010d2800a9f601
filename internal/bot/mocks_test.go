package bot

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/phoenix-filter-bot/internal/models"
	"github.com/magabrotheeeer/phoenix-filter-bot/internal/services/payment"
	"github.com/magabrotheeeer/phoenix-filter-bot/internal/telegram"
)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	sendErr  error
	updates  chan tgbotapi.Update
	stopped  bool
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{updates: make(chan tgbotapi.Update, 16)}
}

func (f *fakeAPI) GetUpdatesChan(_ tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeAPI) StopReceivingUpdates() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return tgbotapi.Message{}, f.sendErr
	}
	f.sent = append(f.sent, c)
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) Sent() []tgbotapi.Chattable {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]tgbotapi.Chattable(nil), f.sent...)
}

// Texts возвращает тексты отправленных сообщений.
func (f *fakeAPI) Texts() []string {
	var out []string
	for _, c := range f.Sent() {
		if m, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, m.Text)
		}
	}
	return out
}

type UsersMock struct {
	mock.Mock
}

func (m *UsersMock) UpsertUser(ctx context.Context, user models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *UsersMock) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *UsersMock) SetBanned(ctx context.Context, userID int64, banned bool) (bool, error) {
	args := m.Called(ctx, userID, banned)
	return args.Bool(0), args.Error(1)
}

func (m *UsersMock) CountUsers(ctx context.Context) (int, int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Int(1), args.Error(2)
}

func (m *UsersMock) CountFiles(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *UsersMock) LogActivity(ctx context.Context, userID *int64, action string, details *string) error {
	args := m.Called(ctx, userID, action, details)
	return args.Error(0)
}

type AccessMock struct {
	mock.Mock
}

func (m *AccessMock) MissingChannels(ctx context.Context, userID, contextID int64) ([]int64, error) {
	args := m.Called(ctx, userID, contextID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

func (m *AccessMock) AddLink(ctx context.Context, contextID, channelID, addedBy int64) (bool, error) {
	args := m.Called(ctx, contextID, channelID, addedBy)
	return args.Bool(0), args.Error(1)
}

func (m *AccessMock) RemoveLink(ctx context.Context, contextID, channelID int64) (bool, error) {
	args := m.Called(ctx, contextID, channelID)
	return args.Bool(0), args.Error(1)
}

func (m *AccessMock) ListLinks(ctx context.Context, contextID int64) ([]*models.ForceSubLink, error) {
	args := m.Called(ctx, contextID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ForceSubLink), args.Error(1)
}

type QuotaMock struct {
	mock.Mock
}

func (m *QuotaMock) TierOf(ctx context.Context, userID int64) models.Tier {
	args := m.Called(ctx, userID)
	return args.Get(0).(models.Tier)
}

func (m *QuotaMock) Remaining(ctx context.Context, userID int64, action models.Action) (bool, int, error) {
	args := m.Called(ctx, userID, action)
	return args.Bool(0), args.Int(1), args.Error(2)
}

func (m *QuotaMock) RecordUsage(ctx context.Context, userID int64, action models.Action) error {
	args := m.Called(ctx, userID, action)
	return args.Error(0)
}

func (m *QuotaMock) Benefits(ctx context.Context, userID int64) (*models.Benefits, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Benefits), args.Error(1)
}

type FilesMock struct {
	mock.Mock
}

func (m *FilesMock) Indexed(channelID int64) bool {
	args := m.Called(channelID)
	return args.Bool(0)
}

func (m *FilesMock) Index(ctx context.Context, file models.File) (int64, bool, error) {
	args := m.Called(ctx, file)
	return args.Get(0).(int64), args.Bool(1), args.Error(2)
}

func (m *FilesMock) Search(ctx context.Context, query string) ([]*models.File, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.File), args.Error(1)
}

func (m *FilesMock) Get(ctx context.Context, id int64) (*models.File, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.File), args.Error(1)
}

func (m *FilesMock) MarkDownloaded(ctx context.Context, id int64) {
	m.Called(ctx, id)
}

func (m *FilesMock) Delete(ctx context.Context, id int64) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

type PremiumMock struct {
	mock.Mock
}

func (m *PremiumMock) Grant(ctx context.Context, userID int64, days int) (time.Time, error) {
	args := m.Called(ctx, userID, days)
	return args.Get(0).(time.Time), args.Error(1)
}

func (m *PremiumMock) Revoke(ctx context.Context, userID int64) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

type PaymentsMock struct {
	mock.Mock
}

func (m *PaymentsMock) Wallets() payment.Wallets {
	args := m.Called()
	return args.Get(0).(payment.Wallets)
}

func (m *PaymentsMock) SelectPlan(ctx context.Context, userID int64, planCode string) (*models.PendingSelection, error) {
	args := m.Called(ctx, userID, planCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PendingSelection), args.Error(1)
}

func (m *PaymentsMock) Cancel(ctx context.Context, userID int64) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *PaymentsMock) Submit(ctx context.Context, userID int64, network, txHash string) (*models.Payment, error) {
	args := m.Called(ctx, userID, network, txHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *PaymentsMock) Approve(ctx context.Context, paymentID string) (*models.Payment, time.Time, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, time.Time{}, args.Error(2)
	}
	return args.Get(0).(*models.Payment), args.Get(1).(time.Time), args.Error(2)
}

func (m *PaymentsMock) Reject(ctx context.Context, paymentID string) (*models.Payment, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

type ChatsMock struct {
	mock.Mock
}

func (m *ChatsMock) Get(ctx context.Context, chatID int64) (telegram.ChatInfo, error) {
	args := m.Called(ctx, chatID)
	return args.Get(0).(telegram.ChatInfo), args.Error(1)
}
