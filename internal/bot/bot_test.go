package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/phoenix-filter-bot/internal/models"
	"github.com/magabrotheeeer/phoenix-filter-bot/internal/services/fsub"
	"github.com/magabrotheeeer/phoenix-filter-bot/internal/services/payment"
	"github.com/magabrotheeeer/phoenix-filter-bot/internal/services/session"
	"github.com/magabrotheeeer/phoenix-filter-bot/internal/storage"
	"github.com/magabrotheeeer/phoenix-filter-bot/internal/telegram"
)

const (
	adminID   int64 = 1
	userID    int64 = 100
	channelID int64 = -1001
)

type testBot struct {
	*Bot
	api      *fakeAPI
	users    *UsersMock
	access   *AccessMock
	quota    *QuotaMock
	files    *FilesMock
	premium  *PremiumMock
	payments *PaymentsMock
	chats    *ChatsMock
}

func newTestBot(t *testing.T, opts Options) *testBot {
	t.Helper()
	tb := &testBot{
		api:      newFakeAPI(),
		users:    new(UsersMock),
		access:   new(AccessMock),
		quota:    new(QuotaMock),
		files:    new(FilesMock),
		premium:  new(PremiumMock),
		payments: new(PaymentsMock),
		chats:    new(ChatsMock),
	}
	if opts.Admins == nil {
		opts.Admins = []int64{adminID}
	}
	tb.Bot = New(Deps{
		API:      tb.api,
		Users:    tb.users,
		Access:   tb.access,
		Quota:    tb.quota,
		Files:    tb.files,
		Premium:  tb.premium,
		Payments: tb.payments,
		Chats:    tb.chats,
	}, opts, newNoopLogger())

	tb.users.On("UpsertUser", mock.Anything, mock.Anything).Return(nil).Maybe()
	tb.users.On("LogActivity", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	return tb
}

func (tb *testBot) knownUser(u *models.User) {
	tb.users.On("GetUser", mock.Anything, u.ID).Return(u, nil)
}

func (tb *testBot) assertMocks(t *testing.T) {
	tb.users.AssertExpectations(t)
	tb.access.AssertExpectations(t)
	tb.quota.AssertExpectations(t)
	tb.files.AssertExpectations(t)
	tb.premium.AssertExpectations(t)
	tb.payments.AssertExpectations(t)
	tb.chats.AssertExpectations(t)
}

func command(from, chatID int64, text string) tgbotapi.Update {
	cmd := strings.Fields(text)[0]
	return tgbotapi.Update{Message: &tgbotapi.Message{
		From:     &tgbotapi.User{ID: from, FirstName: "Test"},
		Chat:     &tgbotapi.Chat{ID: chatID, Type: "private"},
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}},
	}}
}

func text(from, chatID int64, body string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		From: &tgbotapi.User{ID: from, FirstName: "Test"},
		Chat: &tgbotapi.Chat{ID: chatID, Type: "private"},
		Text: body,
	}}
}

func callback(from int64, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb-1",
		From:    &tgbotapi.User{ID: from},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: from, Type: "private"}},
		Data:    data,
	}}
}

func testFiles(n int) []*models.File {
	files := make([]*models.File, n)
	for i := range files {
		files[i] = &models.File{ID: int64(i + 1), FileID: fmt.Sprintf("f%d", i+1),
			FileName: fmt.Sprintf("movie.part%d.mkv", i+1), FileType: "document", FileSize: 1 << 20}
	}
	return files
}

func TestSearch_Admitted(t *testing.T) {
	tb := newTestBot(t, Options{ForceSubEnabled: true})
	tb.knownUser(&models.User{ID: userID})
	tb.access.On("MissingChannels", mock.Anything, userID, userID).Return([]int64{}, nil).Once()
	tb.quota.On("Remaining", mock.Anything, userID, models.ActionSearch).Return(true, 20, nil).Once()
	tb.files.On("Search", mock.Anything, "movie").Return(testFiles(7), nil).Once()
	tb.quota.On("RecordUsage", mock.Anything, userID, models.ActionSearch).Return(nil).Once()

	tb.HandleUpdate(context.Background(), text(userID, userID, "movie"))

	sent := tb.api.Sent()
	require.Len(t, sent, 1)
	msg, ok := sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Contains(t, msg.Text, "Searches left today: 19")
	kb, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	assert.Len(t, kb.InlineKeyboard, 5)
	require.NotNil(t, kb.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "dl:1", *kb.InlineKeyboard[0][0].CallbackData)
	tb.assertMocks(t)
}

func TestSearch_JoinPrompt(t *testing.T) {
	tb := newTestBot(t, Options{ForceSubEnabled: true})
	tb.knownUser(&models.User{ID: userID})
	tb.access.On("MissingChannels", mock.Anything, userID, userID).Return([]int64{channelID, -1002}, nil).Once()
	tb.chats.On("Get", mock.Anything, channelID).
		Return(telegram.ChatInfo{ID: channelID, Title: "Movies", UserName: "movies"}, nil).Once()
	tb.chats.On("Get", mock.Anything, int64(-1002)).Return(telegram.ChatInfo{}, errors.New("chat not found")).Once()

	tb.HandleUpdate(context.Background(), command(userID, userID, "/search movie"))

	sent := tb.api.Sent()
	require.Len(t, sent, 1)
	msg := sent[0].(tgbotapi.MessageConfig)
	assert.Contains(t, msg.Text, "join 2 channel(s)")
	kb := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.Len(t, kb.InlineKeyboard, 1)
	require.NotNil(t, kb.InlineKeyboard[0][0].URL)
	assert.Equal(t, "https://t.me/movies", *kb.InlineKeyboard[0][0].URL)

	tb.quota.AssertNotCalled(t, "Remaining", mock.Anything, mock.Anything, mock.Anything)
	tb.files.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
	tb.users.AssertCalled(t, "LogActivity", mock.Anything, mock.Anything, activityFsubRequired, mock.Anything)
	tb.assertMocks(t)
}

func TestSearch_GateUnavailableDenies(t *testing.T) {
	tb := newTestBot(t, Options{ForceSubEnabled: true})
	tb.knownUser(&models.User{ID: userID})
	tb.access.On("MissingChannels", mock.Anything, userID, userID).
		Return([]int64{}, fmt.Errorf("fsub: %w", fsub.ErrUnavailable)).Once()

	tb.HandleUpdate(context.Background(), text(userID, userID, "movie"))

	assert.Equal(t, []string{unavailableText}, tb.api.Texts())
	tb.quota.AssertNotCalled(t, "Remaining", mock.Anything, mock.Anything, mock.Anything)
	tb.assertMocks(t)
}

func TestSearch_QuotaExceeded(t *testing.T) {
	tb := newTestBot(t, Options{})
	tb.knownUser(&models.User{ID: userID})
	tb.quota.On("Remaining", mock.Anything, userID, models.ActionSearch).Return(false, 0, nil).Once()

	tb.HandleUpdate(context.Background(), text(userID, userID, "movie"))

	texts := tb.api.Texts()
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "Daily search limit reached (20 per day")
	tb.access.AssertNotCalled(t, "MissingChannels", mock.Anything, mock.Anything, mock.Anything)
	tb.files.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
	tb.quota.AssertNotCalled(t, "RecordUsage", mock.Anything, mock.Anything, mock.Anything)
	tb.users.AssertCalled(t, "LogActivity", mock.Anything, mock.Anything, activityQuotaLimit, mock.Anything)
	tb.assertMocks(t)
}

func TestSearch_PremiumHidesCounter(t *testing.T) {
	tb := newTestBot(t, Options{})
	tb.knownUser(&models.User{ID: userID})
	tb.quota.On("Remaining", mock.Anything, userID, models.ActionSearch).Return(true, models.Unlimited, nil).Once()
	tb.files.On("Search", mock.Anything, "movie").Return(testFiles(1), nil).Once()
	tb.quota.On("RecordUsage", mock.Anything, userID, models.ActionSearch).Return(nil).Once()

	tb.HandleUpdate(context.Background(), text(userID, userID, "movie"))

	texts := tb.api.Texts()
	require.Len(t, texts, 1)
	assert.NotContains(t, texts[0], "Searches left")
	tb.assertMocks(t)
}

func TestSearch_NothingFoundStillCounts(t *testing.T) {
	tb := newTestBot(t, Options{})
	tb.knownUser(&models.User{ID: userID})
	tb.quota.On("Remaining", mock.Anything, userID, models.ActionSearch).Return(true, 3, nil).Once()
	tb.files.On("Search", mock.Anything, "zzz").Return([]*models.File{}, nil).Once()
	tb.quota.On("RecordUsage", mock.Anything, userID, models.ActionSearch).Return(nil).Once()

	tb.HandleUpdate(context.Background(), command(userID, userID, "/search zzz"))

	assert.Equal(t, []string{`😔 Nothing found for "zzz".`}, tb.api.Texts())
	tb.assertMocks(t)
}

func TestBannedUserIgnored(t *testing.T) {
	tb := newTestBot(t, Options{ForceSubEnabled: true})
	tb.knownUser(&models.User{ID: userID, IsBanned: true})

	tb.HandleUpdate(context.Background(), text(userID, userID, "movie"))

	assert.Empty(t, tb.api.Sent())
	tb.access.AssertNotCalled(t, "MissingChannels", mock.Anything, mock.Anything, mock.Anything)
	tb.assertMocks(t)
}

func TestBannedUserCallbackIgnored(t *testing.T) {
	tb := newTestBot(t, Options{})
	tb.knownUser(&models.User{ID: userID, IsBanned: true})

	tb.HandleUpdate(context.Background(), callback(userID, "dl:7"))

	assert.Empty(t, tb.api.Sent())
	assert.Len(t, tb.api.requests, 1, "callback must be answered")
	tb.files.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
	tb.files.AssertNotCalled(t, "MarkDownloaded", mock.Anything, mock.Anything)
	tb.quota.AssertNotCalled(t, "RecordUsage", mock.Anything, mock.Anything, mock.Anything)
	tb.assertMocks(t)
}

func TestUserLookupFailureDenies(t *testing.T) {
	dbErr := errors.New("connection refused")

	t.Run("message", func(t *testing.T) {
		tb := newTestBot(t, Options{})
		tb.users.On("GetUser", mock.Anything, userID).Return(nil, dbErr).Once()

		tb.HandleUpdate(context.Background(), text(userID, userID, "movie"))

		assert.Equal(t, []string{unavailableText}, tb.api.Texts())
		tb.files.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
		tb.assertMocks(t)
	})

	t.Run("callback", func(t *testing.T) {
		tb := newTestBot(t, Options{})
		tb.users.On("GetUser", mock.Anything, userID).Return(nil, dbErr).Once()

		tb.HandleUpdate(context.Background(), callback(userID, "dl:7"))

		assert.Empty(t, tb.api.Sent())
		assert.Len(t, tb.api.requests, 1)
		tb.files.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
		tb.assertMocks(t)
	})

	t.Run("admin still served", func(t *testing.T) {
		tb := newTestBot(t, Options{})
		tb.users.On("GetUser", mock.Anything, adminID).Return(nil, dbErr).Once()

		tb.HandleUpdate(context.Background(), command(adminID, adminID, "/plan"))

		require.Len(t, tb.api.Texts(), 1)
		assert.NotEqual(t, unavailableText, tb.api.Texts()[0])
		tb.assertMocks(t)
	})
}

func TestStart_StoresReferrer(t *testing.T) {
	tb := newTestBot(t, Options{})
	tb.users.On("GetUser", mock.Anything, userID).Return(nil, storage.ErrUserNotFound).Twice()

	tb.HandleUpdate(context.Background(), command(userID, userID, "/start 555"))
	tb.HandleUpdate(context.Background(), command(userID, userID, "/start 100"))

	tb.users.AssertCalled(t, "UpsertUser", mock.Anything, mock.MatchedBy(func(u models.User) bool {
		return u.ID == userID && u.ReferrerID != nil && *u.ReferrerID == 555
	}))
	tb.users.AssertCalled(t, "UpsertUser", mock.Anything, mock.MatchedBy(func(u models.User) bool {
		return u.ReferrerID == nil
	}))
	texts := tb.api.Texts()
	require.Len(t, texts, 2)
	assert.Contains(t, texts[0], "Hello, Test")
	tb.assertMocks(t)
}

func TestDownload(t *testing.T) {
	file := &models.File{ID: 7, FileID: "BQAD", FileName: "song.mp3", FileType: "audio", FileSize: 3 << 20}

	tests := []struct {
		name      string
		allowed   bool
		wantFile  bool
		wantTexts int
	}{
		{name: "allowed", allowed: true, wantFile: true},
		{name: "limit reached", allowed: false, wantTexts: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tb := newTestBot(t, Options{})
			tb.knownUser(&models.User{ID: userID})
			tb.files.On("Get", mock.Anything, int64(7)).Return(file, nil).Once()
			tb.quota.On("Remaining", mock.Anything, userID, models.ActionDownload).Return(tt.allowed, 2, nil).Once()
			if tt.allowed {
				tb.files.On("MarkDownloaded", mock.Anything, int64(7)).Once()
				tb.quota.On("RecordUsage", mock.Anything, userID, models.ActionDownload).Return(nil).Once()
			}

			tb.HandleUpdate(context.Background(), callback(userID, "dl:7"))

			var audio []tgbotapi.AudioConfig
			for _, c := range tb.api.Sent() {
				if a, ok := c.(tgbotapi.AudioConfig); ok {
					audio = append(audio, a)
				}
			}
			if tt.wantFile {
				require.Len(t, audio, 1)
				assert.Equal(t, tgbotapi.FileID("BQAD"), audio[0].File)
				assert.Contains(t, audio[0].Caption, "song.mp3")
			} else {
				assert.Empty(t, audio)
				tb.files.AssertNotCalled(t, "MarkDownloaded", mock.Anything, mock.Anything)
			}
			assert.Len(t, tb.api.Texts(), tt.wantTexts)
			assert.Len(t, tb.api.requests, 1, "callback must be answered")
			tb.assertMocks(t)
		})
	}
}

func TestDownload_FileMissing(t *testing.T) {
	tb := newTestBot(t, Options{})
	tb.knownUser(&models.User{ID: userID})
	tb.files.On("Get", mock.Anything, int64(9)).Return(nil, fmt.Errorf("get: %w", storage.ErrFileNotFound)).Once()

	tb.HandleUpdate(context.Background(), callback(userID, "dl:9"))

	assert.Equal(t, []string{"❌ File not found. It may have been removed."}, tb.api.Texts())
	tb.quota.AssertNotCalled(t, "Remaining", mock.Anything, mock.Anything, mock.Anything)
}

func TestChannelPost_Indexes(t *testing.T) {
	tb := newTestBot(t, Options{})
	tb.files.On("Indexed", channelID).Return(true).Once()
	tb.files.On("Index", mock.Anything, mock.MatchedBy(func(f models.File) bool {
		return f.FileID == "DOC1" && f.FileName == "book.pdf" && f.FileType == "document" &&
			f.FileSize == 2048 && f.ChannelID == channelID && f.MessageID == 42 &&
			f.Caption != nil && *f.Caption == "Great book" && f.MimeType != nil && *f.MimeType == "application/pdf"
	})).Return(int64(1), true, nil).Once()

	tb.HandleUpdate(context.Background(), tgbotapi.Update{ChannelPost: &tgbotapi.Message{
		MessageID: 42,
		Chat:      &tgbotapi.Chat{ID: channelID, Type: "channel"},
		Caption:   "Great book",
		Document:  &tgbotapi.Document{FileID: "DOC1", FileName: "book.pdf", MimeType: "application/pdf", FileSize: 2048},
	}})

	tb.assertMocks(t)
}

func TestChannelPost_IgnoresOtherChannels(t *testing.T) {
	tb := newTestBot(t, Options{})
	tb.files.On("Indexed", int64(-5)).Return(false).Once()

	tb.HandleUpdate(context.Background(), tgbotapi.Update{ChannelPost: &tgbotapi.Message{
		Chat:     &tgbotapi.Chat{ID: -5, Type: "channel"},
		Document: &tgbotapi.Document{FileID: "X"},
	}})

	tb.files.AssertNotCalled(t, "Index", mock.Anything, mock.Anything)
}

func TestPaid(t *testing.T) {
	hash := strings.Repeat("ab", 32)

	tests := []struct {
		name     string
		text     string
		submit   bool
		err      error
		wantText string
	}{
		{name: "bad network", text: "/paid eth " + hash, wantText: "Network must be one of: bsc sol"},
		{name: "short hash", text: "/paid bsc abc", wantText: "TxHash must be within limits"},
		{name: "missing args", text: "/paid", wantText: "Usage: /paid"},
		{name: "expired selection", text: "/paid bsc " + hash, submit: true, err: session.ErrExpired, wantText: "No active plan selection"},
		{name: "duplicate tx", text: "/paid BSC " + hash, submit: true, err: storage.ErrDuplicateTx, wantText: "already been submitted"},
		{name: "ok", text: "/paid sol " + hash, submit: true, wantText: "Payment submitted"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tb := newTestBot(t, Options{PaymentEnabled: true})
			tb.knownUser(&models.User{ID: userID})
			if tt.submit {
				network := strings.ToLower(strings.Fields(tt.text)[1])
				var p *models.Payment
				if tt.err == nil {
					p = &models.Payment{ID: "pid", UserID: userID, Network: network}
				}
				tb.payments.On("Submit", mock.Anything, userID, network, hash).Return(p, tt.err).Once()
			}

			tb.HandleUpdate(context.Background(), command(userID, userID, tt.text))

			texts := tb.api.Texts()
			require.Len(t, texts, 1)
			assert.Contains(t, texts[0], tt.wantText)
			if !tt.submit {
				tb.payments.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			}
			tb.assertMocks(t)
		})
	}
}

func TestPaid_Disabled(t *testing.T) {
	tb := newTestBot(t, Options{PaymentEnabled: false})
	tb.knownUser(&models.User{ID: userID})

	tb.HandleUpdate(context.Background(), command(userID, userID, "/paid bsc "+strings.Repeat("a", 64)))

	assert.Equal(t, []string{paymentsDisabled}, tb.api.Texts())
}

func TestBuyCallback_StoresSelection(t *testing.T) {
	tb := newTestBot(t, Options{PaymentEnabled: true, PaymentTimeout: 30 * time.Minute})
	tb.knownUser(&models.User{ID: userID})
	tb.payments.On("SelectPlan", mock.Anything, userID, "standard").
		Return(&models.PendingSelection{PaymentID: "pid", UserID: userID, Plan: "standard"}, nil).Once()
	tb.payments.On("Wallets").Return(payment.Wallets{BEP20: "0xWALLET", SOL: "SoLWALLET"}).Once()

	tb.HandleUpdate(context.Background(), callback(userID, "buy:standard"))

	texts := tb.api.Texts()
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "Standard plan: $7.99 USDT for 90 days")
	assert.Contains(t, texts[0], "0xWALLET")
	assert.Contains(t, texts[0], "30m0s")
	tb.assertMocks(t)
}

func TestAdminCommands_RequireAdmin(t *testing.T) {
	tb := newTestBot(t, Options{})
	tb.knownUser(&models.User{ID: userID})

	tb.HandleUpdate(context.Background(), command(userID, userID, "/add_premium 5 30"))

	assert.Empty(t, tb.api.Sent())
	tb.premium.AssertNotCalled(t, "Grant", mock.Anything, mock.Anything, mock.Anything)
}

func TestAdminCommands(t *testing.T) {
	until := time.Date(2030, 1, 2, 0, 0, 0, 0, time.UTC)
	pid := "6f1c7c4e-8a0b-4f57-9a55-3c1f5d0a2b11"

	tests := []struct {
		name     string
		text     string
		setup    func(tb *testBot)
		wantText string
	}{
		{
			name: "fsub added",
			text: "/fsub -100123",
			setup: func(tb *testBot) {
				tb.access.On("AddLink", mock.Anything, adminID, int64(-100123), adminID).Return(true, nil).Once()
			},
			wantText: "Channel -100123 is now required",
		},
		{
			name: "fsub duplicate",
			text: "/fsub -100123",
			setup: func(tb *testBot) {
				tb.access.On("AddLink", mock.Anything, adminID, int64(-100123), adminID).Return(false, nil).Once()
			},
			wantText: "already required",
		},
		{
			name: "fsub limit reached",
			text: "/fsub -100123",
			setup: func(tb *testBot) {
				tb.access.On("AddLink", mock.Anything, adminID, int64(-100123), adminID).
					Return(false, fmt.Errorf("fsub: %w", fsub.ErrTooManyLinks)).Once()
			},
			wantText: "maximum number of required channels",
		},
		{name: "fsub positive id", text: "/fsub 123", wantText: "ChannelID must be a channel id"},
		{
			name: "nofsub missing",
			text: "/nofsub -100123",
			setup: func(tb *testBot) {
				tb.access.On("RemoveLink", mock.Anything, adminID, int64(-100123)).Return(false, nil).Once()
			},
			wantText: "is not required",
		},
		{
			name: "fsublist",
			text: "/fsublist",
			setup: func(tb *testBot) {
				tb.access.On("ListLinks", mock.Anything, adminID).Return([]*models.ForceSubLink{
					{ContextID: adminID, ChannelID: -1001, AddedAt: until},
					{ContextID: adminID, ChannelID: -1002, AddedAt: until},
				}, nil).Once()
			},
			wantText: "2. -1002",
		},
		{
			name: "add premium",
			text: "/add_premium 5 30",
			setup: func(tb *testBot) {
				tb.premium.On("Grant", mock.Anything, int64(5), 30).Return(until, nil).Once()
			},
			wantText: "User 5 has premium until 2030-01-02",
		},
		{name: "add premium bad days", text: "/add_premium 5 0", wantText: "Days must be within limits"},
		{name: "add premium not a number", text: "/add_premium five 3", wantText: "UserID must be a number"},
		{
			name: "remove premium",
			text: "/remove_premium 5",
			setup: func(tb *testBot) {
				tb.premium.On("Revoke", mock.Anything, int64(5)).Return(nil).Once()
			},
			wantText: "Premium removed from user 5",
		},
		{
			name: "approve",
			text: "/approve_payment " + pid,
			setup: func(tb *testBot) {
				tb.payments.On("Approve", mock.Anything, pid).
					Return(&models.Payment{ID: pid, UserID: 5}, until, nil).Once()
			},
			wantText: "approved",
		},
		{
			name: "approve twice",
			text: "/approve_payment " + pid,
			setup: func(tb *testBot) {
				tb.payments.On("Approve", mock.Anything, pid).
					Return(nil, time.Time{}, fmt.Errorf("approve: %w", payment.ErrNotPending)).Once()
			},
			wantText: "already been processed",
		},
		{name: "approve bad id", text: "/approve_payment 123", wantText: "ID must be a payment id"},
		{
			name: "reject missing",
			text: "/reject_payment " + pid,
			setup: func(tb *testBot) {
				tb.payments.On("Reject", mock.Anything, pid).Return(nil, storage.ErrPaymentNotFound).Once()
			},
			wantText: "Payment not found",
		},
		{
			name: "ban",
			text: "/ban 5",
			setup: func(tb *testBot) {
				tb.users.On("SetBanned", mock.Anything, int64(5), true).Return(true, nil).Once()
			},
			wantText: "User 5 banned",
		},
		{name: "ban admin", text: "/ban 1", wantText: "Admins cannot be banned"},
		{
			name: "unban unknown",
			text: "/unban 6",
			setup: func(tb *testBot) {
				tb.users.On("SetBanned", mock.Anything, int64(6), false).Return(false, nil).Once()
			},
			wantText: "User 6 not found",
		},
		{
			name: "stats",
			text: "/stats",
			setup: func(tb *testBot) {
				tb.users.On("CountUsers", mock.Anything).Return(10, 3, nil).Once()
				tb.users.On("CountFiles", mock.Anything).Return(42, nil).Once()
			},
			wantText: "Files: 42",
		},
		{
			name: "delete",
			text: "/delete 12",
			setup: func(tb *testBot) {
				tb.files.On("Delete", mock.Anything, int64(12)).Return(true, nil).Once()
			},
			wantText: "File 12 deleted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tb := newTestBot(t, Options{})
			tb.knownUser(&models.User{ID: adminID})
			if tt.setup != nil {
				tt.setup(tb)
			}

			tb.HandleUpdate(context.Background(), command(adminID, adminID, tt.text))

			texts := tb.api.Texts()
			require.Len(t, texts, 1)
			assert.Contains(t, texts[0], tt.wantText)
			tb.assertMocks(t)
		})
	}
}

func TestBenefitsAndPlan(t *testing.T) {
	tb := newTestBot(t, Options{})
	tb.knownUser(&models.User{ID: userID})
	tb.quota.On("Benefits", mock.Anything, userID).Return(&models.Benefits{
		Tier:      models.TierFree,
		Limits:    models.DefaultLimits[models.TierFree],
		Used:      map[models.Action]int{models.ActionSearch: 4, models.ActionDownload: 5},
		Remaining: map[models.Action]int{models.ActionSearch: 16, models.ActionDownload: 0},
	}, nil).Once()
	tb.quota.On("TierOf", mock.Anything, userID).Return(models.TierFree).Once()

	tb.HandleUpdate(context.Background(), command(userID, userID, "/benefits"))
	tb.HandleUpdate(context.Background(), command(userID, userID, "/myplan"))

	texts := tb.api.Texts()
	require.Len(t, texts, 2)
	assert.Contains(t, texts[0], "Searches today: 4/20 (left: 16)")
	assert.Contains(t, texts[0], "Downloads today: 5/5 (left: 0)")
	assert.Contains(t, texts[1], "Plan: Free")
	tb.assertMocks(t)
}

func TestHandleUpdate_RecoversPanic(t *testing.T) {
	tb := newTestBot(t, Options{})
	tb.files.On("Indexed", channelID).Run(func(mock.Arguments) { panic("boom") }).Return(true)

	assert.NotPanics(t, func() {
		tb.HandleUpdate(context.Background(), tgbotapi.Update{ChannelPost: &tgbotapi.Message{
			Chat: &tgbotapi.Chat{ID: channelID, Type: "channel"},
		}})
	})
}

func TestRun_ProcessesUpdatesUntilCanceled(t *testing.T) {
	tb := newTestBot(t, Options{Workers: 2})
	tb.knownUser(&models.User{ID: userID})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tb.Run(ctx) }()

	tb.api.updates <- command(userID, userID, "/plan")
	require.Eventually(t, func() bool { return len(tb.api.Texts()) == 1 }, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	tb.api.mu.Lock()
	assert.True(t, tb.api.stopped)
	tb.api.mu.Unlock()
}
