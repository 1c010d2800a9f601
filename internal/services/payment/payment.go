// Package payment реализует ручную оплату премиума в USDT: выбор тарифа,
// отправку хэша транзакции и проверку заявки администратором.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/phoenix-filter-bot/internal/lib/sl"
	"github.com/magabrotheeeer/phoenix-filter-bot/internal/models"
	"github.com/magabrotheeeer/phoenix-filter-bot/internal/rabbitmq"
)

// Ошибки сервиса оплаты.
var (
	ErrNotPending     = errors.New("payment is not awaiting verification")
	ErrUnknownPlan    = errors.New("unknown plan")
	ErrUnknownNetwork = errors.New("unknown network")
)

// Поддерживаемые сети USDT.
const (
	NetworkBSC = "bsc"
	NetworkSOL = "sol"
)

// Repository описывает хранение заявок на оплату.
type Repository interface {
	CreatePayment(ctx context.Context, p models.Payment) error
	GetPayment(ctx context.Context, id string) (*models.Payment, error)
	UpdatePaymentStatus(ctx context.Context, id string, from, to models.PaymentStatus, verifiedAt time.Time) (bool, error)
	ReopenPayment(ctx context.Context, id string, from models.PaymentStatus) (bool, error)
}

// Sessions хранит выбранный, но ещё не оплаченный тариф.
type Sessions interface {
	SavePending(ctx context.Context, sel models.PendingSelection) error
	Pending(ctx context.Context, userID int64) (*models.PendingSelection, error)
	ClearPending(ctx context.Context, userID int64) error
}

// Premium продлевает премиум после одобрения оплаты.
type Premium interface {
	Grant(ctx context.Context, userID int64, days int) (time.Time, error)
}

// Publisher отправляет уведомления в очередь.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, message any) error
}

// Wallets адреса для приёма USDT.
type Wallets struct {
	BEP20 string
	SOL   string
}

// Address возвращает адрес кошелька для сети.
func (w Wallets) Address(network string) (string, error) {
	switch network {
	case NetworkBSC:
		return w.BEP20, nil
	case NetworkSOL:
		return w.SOL, nil
	default:
		return "", ErrUnknownNetwork
	}
}

// Service управляет жизненным циклом заявки на оплату.
type Service struct {
	repo      Repository
	sessions  Sessions
	premium   Premium
	publisher Publisher
	admins    []int64
	wallets   Wallets
	log       *slog.Logger
	now       func() time.Time
}

// NewService создаёт сервис оплаты.
func NewService(repo Repository, sessions Sessions, premium Premium, publisher Publisher,
	admins []int64, wallets Wallets, log *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		sessions:  sessions,
		premium:   premium,
		publisher: publisher,
		admins:    admins,
		wallets:   wallets,
		log:       log,
		now:       time.Now,
	}
}

// Wallets возвращает адреса для приёма оплаты.
func (s *Service) Wallets() Wallets {
	return s.wallets
}

// SelectPlan сохраняет выбор тарифа в сессии пользователя.
func (s *Service) SelectPlan(ctx context.Context, userID int64, planCode string) (*models.PendingSelection, error) {
	const op = "payment.Service.SelectPlan"
	if _, ok := models.Plans[planCode]; !ok {
		return nil, fmt.Errorf("%s: %w: %q", op, ErrUnknownPlan, planCode)
	}

	sel := models.PendingSelection{
		PaymentID: uuid.NewString(),
		UserID:    userID,
		Plan:      planCode,
		CreatedAt: s.now().UTC(),
	}
	if err := s.sessions.SavePending(ctx, sel); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &sel, nil
}

// Cancel удаляет незавершённый выбор тарифа.
func (s *Service) Cancel(ctx context.Context, userID int64) error {
	const op = "payment.Service.Cancel"
	if err := s.sessions.ClearPending(ctx, userID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Submit создаёт заявку по выбранному тарифу и хэшу транзакции и уведомляет администраторов.
// Без сохранённого выбора возвращается session.ErrExpired.
func (s *Service) Submit(ctx context.Context, userID int64, network, txHash string) (*models.Payment, error) {
	const op = "payment.Service.Submit"
	network = strings.ToLower(network)
	if _, err := s.wallets.Address(network); err != nil {
		return nil, fmt.Errorf("%s: %w: %q", op, err, network)
	}

	sel, err := s.sessions.Pending(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	plan, ok := models.Plans[sel.Plan]
	if !ok {
		return nil, fmt.Errorf("%s: %w: %q", op, ErrUnknownPlan, sel.Plan)
	}

	p := models.Payment{
		ID:        sel.PaymentID,
		UserID:    userID,
		Plan:      plan.Code,
		Network:   network,
		TxHash:    txHash,
		Price:     plan.Price,
		Days:      plan.Days,
		Status:    models.PaymentAwaiting,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.CreatePayment(ctx, p); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.sessions.ClearPending(ctx, userID); err != nil {
		s.log.Warn("failed to clear pending payment", sl.UserID(userID), sl.Err(err))
	}

	s.log.Info("payment submitted", slog.String("payment_id", p.ID), sl.UserID(userID),
		slog.String("plan", p.Plan), slog.String("network", p.Network))

	text := fmt.Sprintf("🔔 New payment\n\nPayment ID: %s\nUser ID: %d\nPlan: %s\nAmount: $%.2f\n"+
		"Network: %s\nTx: %s\nDuration: %d days\n\n/approve_payment %s\n/reject_payment %s",
		p.ID, p.UserID, plan.Name, p.Price, strings.ToUpper(p.Network), p.TxHash, p.Days, p.ID, p.ID)
	for _, admin := range s.admins {
		s.notify(ctx, rabbitmq.RoutingAdmin, admin, text)
	}
	return &p, nil
}

// Approve одобряет заявку и продлевает премиум пользователю. Если премиум выдать не удалось,
// заявка возвращается в ожидание и одобрение можно повторить.
func (s *Service) Approve(ctx context.Context, paymentID string) (*models.Payment, time.Time, error) {
	const op = "payment.Service.Approve"

	p, err := s.transition(ctx, paymentID, models.PaymentApproved)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("%s: %w", op, err)
	}

	until, err := s.premium.Grant(ctx, p.UserID, p.Days)
	if err != nil {
		if _, rerr := s.repo.ReopenPayment(ctx, p.ID, models.PaymentApproved); rerr != nil {
			s.log.Error("failed to reopen payment after grant failure",
				slog.String("payment_id", p.ID), sl.UserID(p.UserID), sl.Err(rerr))
		}
		return nil, time.Time{}, fmt.Errorf("%s: premium not granted: %w", op, err)
	}

	plan := models.Plans[p.Plan]
	s.notify(ctx, rabbitmq.RoutingUser, p.UserID, fmt.Sprintf(
		"🎉 Payment approved!\n\nYour %s premium is active.\nDuration: %d days\nExpires: %s",
		plan.Name, p.Days, until.Format("2006-01-02")))
	return p, until, nil
}

// Reject отклоняет заявку и уведомляет пользователя.
func (s *Service) Reject(ctx context.Context, paymentID string) (*models.Payment, error) {
	const op = "payment.Service.Reject"

	p, err := s.transition(ctx, paymentID, models.PaymentRejected)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.notify(ctx, rabbitmq.RoutingUser, p.UserID, fmt.Sprintf(
		"❌ Payment rejected\n\nPayment ID: %s\n\nYour payment could not be verified. Please contact an admin.", p.ID))
	return p, nil
}

func (s *Service) transition(ctx context.Context, paymentID string, to models.PaymentStatus) (*models.Payment, error) {
	if _, err := uuid.Parse(paymentID); err != nil {
		return nil, fmt.Errorf("invalid payment id %q: %w", paymentID, err)
	}

	p, err := s.repo.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.Status != models.PaymentAwaiting {
		return nil, ErrNotPending
	}

	now := s.now().UTC()
	ok, err := s.repo.UpdatePaymentStatus(ctx, paymentID, models.PaymentAwaiting, to, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotPending
	}

	p.Status = to
	p.VerifiedAt = &now
	s.log.Info("payment verified", slog.String("payment_id", p.ID), slog.String("status", string(to)))
	return p, nil
}

func (s *Service) notify(ctx context.Context, routingKey string, chatID int64, text string) {
	err := s.publisher.Publish(ctx, routingKey, models.Notification{ChatID: chatID, Text: text})
	if err != nil {
		s.log.Error("failed to publish notification",
			slog.String("routing_key", routingKey), slog.Int64("chat_id", chatID), sl.Err(err))
	}
}
