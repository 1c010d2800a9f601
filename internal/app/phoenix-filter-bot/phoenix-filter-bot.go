package phoenixfilterbot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/phoenix-filter-bot/internal/bot"
	"github.com/magabrotheeeer/phoenix-filter-bot/internal/cache"
	"github.com/magabrotheeeer/phoenix-filter-bot/internal/config"
	"github.com/magabrotheeeer/phoenix-filter-bot/internal/http-server/handlers/health"
	"github.com/magabrotheeeer/phoenix-filter-bot/internal/lib/sl"
	"github.com/magabrotheeeer/phoenix-filter-bot/internal/migrations"
	"github.com/magabrotheeeer/phoenix-filter-bot/internal/rabbitmq"
	"github.com/magabrotheeeer/phoenix-filter-bot/internal/services/fsub"
	"github.com/magabrotheeeer/phoenix-filter-bot/internal/services/payment"
	"github.com/magabrotheeeer/phoenix-filter-bot/internal/services/premium"
	"github.com/magabrotheeeer/phoenix-filter-bot/internal/services/quota"
	"github.com/magabrotheeeer/phoenix-filter-bot/internal/services/scheduler"
	"github.com/magabrotheeeer/phoenix-filter-bot/internal/services/search"
	"github.com/magabrotheeeer/phoenix-filter-bot/internal/services/session"
	"github.com/magabrotheeeer/phoenix-filter-bot/internal/storage"
	"github.com/magabrotheeeer/phoenix-filter-bot/internal/telegram"
)

const shutdownTimeout = 15 * time.Second

// App собранный бот со служебным HTTP-сервером и потребителями уведомлений.
type App struct {
	server    *http.Server
	bot       *bot.Bot
	scheduler *scheduler.SchedulerService
	logger    *slog.Logger
	db        *storage.Storage
	cache     *cache.Cache
	conn      *amqp.Connection
	consumeCh *amqp.Channel
	publishCh *amqp.Channel
	workers   int
}

// New подключается к PostgreSQL, Redis, RabbitMQ и Bot API и собирает сервисы.
// При ошибке уже открытые соединения закрываются.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	var closers []io.Closer
	defer func() {
		if err == nil {
			return
		}
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
	}()

	db, err := storage.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	closers = append(closers, db)
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		return nil, err
	}
	if err = storage.CheckDatabaseReady(db); err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}
	closers = append(closers, cacheRedis)

	conn, err := rabbitmq.Connect(ctx, cfg.URL, cfg.Retries, cfg.Delay)
	if err != nil {
		return nil, err
	}
	closers = append(closers, conn)
	consumeCh, err := rabbitmq.SetupChannel(conn, rabbitmq.NotificationQueues(), cfg.Workers)
	if err != nil {
		return nil, err
	}
	publishCh, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open publish channel: %w", err)
	}
	publisher := rabbitmq.NewPublisher(publishCh, rabbitmq.Exchange)

	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to init bot api: %w", err)
	}
	logger.Info("authorized on telegram", slog.String("username", api.Self.UserName))

	checker := telegram.NewMembershipChecker(api)
	chats := telegram.NewChatCache(api, cfg.ChatCacheSize, cfg.ChatCacheTTL)

	accessGate := fsub.NewAccessGate(db, checker, cfg.ForceSub.Channel, cfg.MaxLinks, logger)
	quotaGate := quota.NewQuotaGate(db, cacheRedis, logger)
	premiumService := premium.NewService(db, logger)
	sessions := session.NewStore(cacheRedis, cfg.Payment.Timeout)
	paymentService := payment.NewService(db, sessions, premiumService, publisher, cfg.Admins,
		payment.Wallets{BEP20: cfg.BEP20Wallet, SOL: cfg.SOLWallet}, logger)
	searchService := search.NewService(db, cfg.IndexChannels, logger)
	schedulerService := scheduler.NewSchedulerService(db, publisher, logger)

	b := bot.New(bot.Deps{
		API:      api,
		Users:    db,
		Access:   accessGate,
		Quota:    quotaGate,
		Files:    searchService,
		Premium:  premiumService,
		Payments: paymentService,
		Chats:    chats,
	}, bot.Options{
		Admins:          cfg.Admins,
		ForceSubEnabled: cfg.ForceSub.Enabled,
		PaymentEnabled:  cfg.Payment.Enabled,
		PaymentTimeout:  cfg.Payment.Timeout,
		UpdateTimeout:   cfg.UpdateTimeout,
		Workers:         cfg.Workers,
		SendRate:        cfg.SendRate,
		SendBurst:       cfg.SendBurst,
	}, logger)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, health.New(logger, cfg.TimeoutHTTP, map[string]health.Pinger{
		"postgres": db,
		"redis":    cacheRedis,
	}))

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server:    srv,
		bot:       b,
		scheduler: schedulerService,
		logger:    logger,
		db:        db,
		cache:     cacheRedis,
		conn:      conn,
		consumeCh: consumeCh,
		publishCh: publishCh,
		workers:   cfg.Workers,
	}, nil
}

// Run запускает потребителей уведомлений, HTTP-сервер и цикл обновлений бота.
// Возвращается после отмены ctx или падения HTTP-сервера.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for _, q := range rabbitmq.NotificationQueues() {
		notifier := bot.NewNotifier(a.bot.Sender(), q.QueueName, a.logger)
		if err := rabbitmq.Consume(ctx, a.consumeCh, q.QueueName, a.workers, a.logger, notifier.Handler()); err != nil {
			a.logger.Error("failed to start consumer", slog.String("queue", q.QueueName), sl.Err(err))
			a.close()
			return err
		}
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	go a.scheduler.Run(ctx)

	botDone := make(chan error, 1)
	go func() {
		botDone <- a.bot.Run(ctx)
	}()

	var runErr error
	select {
	case runErr = <-errCh:
		if runErr != nil {
			a.logger.Error("HTTP server failed", sl.Err(runErr))
		}
	case <-ctx.Done():
	}
	cancel()

	timeoutCtx, cancelTimeout := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelTimeout()
	a.logger.Info("shutting down gracefully")
	if err := a.server.Shutdown(timeoutCtx); err != nil {
		a.logger.Error("failed to shutdown HTTP server", sl.Err(err))
	}

	select {
	case err := <-botDone:
		if err != nil {
			a.logger.Error("bot stopped with error", sl.Err(err))
		}
	case <-timeoutCtx.Done():
		a.logger.Warn("bot did not stop in time")
	}

	a.close()
	return runErr
}

func (a *App) close() {
	if err := a.consumeCh.Close(); err != nil {
		a.logger.Error("failed to close consume channel", sl.Err(err))
	}
	if err := a.publishCh.Close(); err != nil {
		a.logger.Error("failed to close publish channel", sl.Err(err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close rabbitmq connection", sl.Err(err))
	}
	if err := a.cache.Close(); err != nil {
		a.logger.Error("failed to close redis", sl.Err(err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close database", sl.Err(err))
	}
}
