// Package bot обрабатывает обновления Telegram: поиск и выдачу файлов через гейты
// обязательной подписки и дневных лимитов, команды премиума, оплаты и администрирования.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/go-playground/validator"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/magabrotheeeer/phoenix-filter-bot/internal/metrics"
	"github.com/magabrotheeeer/phoenix-filter-bot/internal/models"
	"github.com/magabrotheeeer/phoenix-filter-bot/internal/services/payment"
	"github.com/magabrotheeeer/phoenix-filter-bot/internal/telegram"
)

// API часть клиента Bot API, используемая ботом.
type API interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Users описывает хранилище пользователей, статистики и журнала активности.
type Users interface {
	UpsertUser(ctx context.Context, user models.User) error
	GetUser(ctx context.Context, userID int64) (*models.User, error)
	SetBanned(ctx context.Context, userID int64, banned bool) (bool, error)
	CountUsers(ctx context.Context) (total, premium int, err error)
	CountFiles(ctx context.Context) (int, error)
	LogActivity(ctx context.Context, userID *int64, action string, details *string) error
}

// AccessGate гейт обязательной подписки.
type AccessGate interface {
	MissingChannels(ctx context.Context, userID, contextID int64) ([]int64, error)
	AddLink(ctx context.Context, contextID, channelID, addedBy int64) (bool, error)
	RemoveLink(ctx context.Context, contextID, channelID int64) (bool, error)
	ListLinks(ctx context.Context, contextID int64) ([]*models.ForceSubLink, error)
}

// QuotaGate гейт дневных лимитов.
type QuotaGate interface {
	TierOf(ctx context.Context, userID int64) models.Tier
	Remaining(ctx context.Context, userID int64, action models.Action) (bool, int, error)
	RecordUsage(ctx context.Context, userID int64, action models.Action) error
	Benefits(ctx context.Context, userID int64) (*models.Benefits, error)
}

// Files поиск и индексация файлов.
type Files interface {
	Indexed(channelID int64) bool
	Index(ctx context.Context, file models.File) (int64, bool, error)
	Search(ctx context.Context, query string) ([]*models.File, error)
	Get(ctx context.Context, id int64) (*models.File, error)
	MarkDownloaded(ctx context.Context, id int64)
	Delete(ctx context.Context, id int64) (bool, error)
}

// Premium выдаёт и снимает премиум.
type Premium interface {
	Grant(ctx context.Context, userID int64, days int) (time.Time, error)
	Revoke(ctx context.Context, userID int64) error
}

// Payments ручная оплата премиума.
type Payments interface {
	Wallets() payment.Wallets
	SelectPlan(ctx context.Context, userID int64, planCode string) (*models.PendingSelection, error)
	Cancel(ctx context.Context, userID int64) error
	Submit(ctx context.Context, userID int64, network, txHash string) (*models.Payment, error)
	Approve(ctx context.Context, paymentID string) (*models.Payment, time.Time, error)
	Reject(ctx context.Context, paymentID string) (*models.Payment, error)
}

// Chats возвращает информацию о канале для кнопок вступления.
type Chats interface {
	Get(ctx context.Context, chatID int64) (telegram.ChatInfo, error)
}

// Deps зависимости бота.
type Deps struct {
	API      API
	Users    Users
	Access   AccessGate
	Quota    QuotaGate
	Files    Files
	Premium  Premium
	Payments Payments
	Chats    Chats
}

// Options настройки бота.
type Options struct {
	Admins          []int64
	ForceSubEnabled bool
	PaymentEnabled  bool
	PaymentTimeout  time.Duration
	UpdateTimeout   int
	Workers         int
	SendRate        float64
	SendBurst       int
}

// Bot обрабатывает обновления Telegram.
type Bot struct {
	deps     Deps
	opts     Options
	sender   *Sender
	admins   map[int64]struct{}
	validate *validator.Validate
	log      *slog.Logger
}

// New создаёт бота.
func New(deps Deps, opts Options, log *slog.Logger) *Bot {
	admins := make(map[int64]struct{}, len(opts.Admins))
	for _, id := range opts.Admins {
		admins[id] = struct{}{}
	}
	return &Bot{
		deps:     deps,
		opts:     opts,
		sender:   NewSender(deps.API, opts.SendRate, opts.SendBurst),
		admins:   admins,
		validate: validator.New(),
		log:      log,
	}
}

// Sender возвращает отправитель с ограничением частоты.
func (b *Bot) Sender() *Sender {
	return b.sender
}

// Run получает обновления long polling'ом и обрабатывает каждое в отдельной горутине,
// не более Workers одновременно. Возвращается после отмены ctx и завершения обработчиков.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.opts.UpdateTimeout
	updates := b.deps.API.GetUpdatesChan(u)

	sem := make(chan struct{}, max(b.opts.Workers, 1))
	var wg sync.WaitGroup
	defer wg.Wait()

	b.log.Info("bot started", slog.Int("workers", cap(sem)))
	for {
		select {
		case <-ctx.Done():
			b.deps.API.StopReceivingUpdates()
			b.log.Info("bot stopping")
			return nil
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				b.deps.API.StopReceivingUpdates()
				return nil
			}
			wg.Add(1)
			go func(upd tgbotapi.Update) {
				defer wg.Done()
				defer func() { <-sem }()
				b.HandleUpdate(ctx, upd)
			}(upd)
		}
	}
}

// HandleUpdate обрабатывает одно обновление. Паника в обработчике логируется и не роняет бота.
func (b *Bot) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("panic while handling update",
				slog.Int("update_id", upd.UpdateID),
				slog.String("panic", fmt.Sprint(r)),
				slog.String("stack", string(debug.Stack())))
		}
	}()

	switch {
	case upd.ChannelPost != nil:
		metrics.UpdatesTotal.WithLabelValues("channel_post").Inc()
		b.handleChannelPost(ctx, upd.ChannelPost)
	case upd.CallbackQuery != nil:
		metrics.UpdatesTotal.WithLabelValues("callback").Inc()
		b.handleCallback(ctx, upd.CallbackQuery)
	case upd.Message != nil:
		metrics.UpdatesTotal.WithLabelValues("message").Inc()
		b.handleMessage(ctx, upd.Message)
	default:
		metrics.UpdatesTotal.WithLabelValues("other").Inc()
	}
}

func (b *Bot) isAdmin(userID int64) bool {
	_, ok := b.admins[userID]
	return ok
}
