package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/magabrotheeeer/phoenix-filter-bot/internal/lib/sl"
	"github.com/magabrotheeeer/phoenix-filter-bot/internal/models"
	"github.com/magabrotheeeer/phoenix-filter-bot/internal/services/payment"
	"github.com/magabrotheeeer/phoenix-filter-bot/internal/services/session"
	"github.com/magabrotheeeer/phoenix-filter-bot/internal/storage"
)

const paymentsDisabled = "💳 Payments are currently disabled. Please contact an admin."

func (b *Bot) handleBuy(ctx context.Context, chatID int64) {
	if !b.opts.PaymentEnabled {
		b.reply(ctx, chatID, paymentsDisabled)
		return
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(models.PlanOrder))
	for _, code := range models.PlanOrder {
		p := models.Plans[code]
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(
			fmt.Sprintf("%s · $%.2f · %d days", p.Name, p.Price, p.Days), callbackBuy+code)))
	}
	msg := tgbotapi.NewMessage(chatID, "💎 Choose a premium plan:")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	b.send(ctx, msg)
}

func (b *Bot) handleSelectPlan(ctx context.Context, chatID, userID int64, plan string) {
	if !b.opts.PaymentEnabled {
		b.reply(ctx, chatID, paymentsDisabled)
		return
	}
	sel, err := b.deps.Payments.SelectPlan(ctx, userID, plan)
	if errors.Is(err, payment.ErrUnknownPlan) {
		b.reply(ctx, chatID, "❌ Unknown plan. Use /buy to choose again.")
		return
	}
	if err != nil {
		b.log.Error("failed to select plan", sl.UserID(userID), slog.String("plan", plan), sl.Err(err))
		b.reply(ctx, chatID, "⚠️ Could not start the payment. Please try again later.")
		return
	}

	msg := tgbotapi.NewMessage(chatID, formatPaymentInstructions(sel, b.deps.Payments.Wallets(), b.opts.PaymentTimeout))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", callbackCancel)))
	b.send(ctx, msg)
	b.logActivity(ctx, userID, activityPayment, "selected "+plan)
}

func (b *Bot) handleCancel(ctx context.Context, chatID, userID int64) {
	if err := b.deps.Payments.Cancel(ctx, userID); err != nil {
		b.log.Error("failed to cancel payment", sl.UserID(userID), sl.Err(err))
		return
	}
	b.reply(ctx, chatID, "Payment cancelled.")
}

func (b *Bot) handlePaid(ctx context.Context, chatID, userID int64, raw string) {
	if !b.opts.PaymentEnabled {
		b.reply(ctx, chatID, paymentsDisabled)
		return
	}
	args, err := b.parsePaid(raw)
	if err != nil {
		b.reply(ctx, chatID, "Usage: /paid <bsc|sol> <tx_hash>\n\n"+err.Error())
		return
	}

	p, err := b.deps.Payments.Submit(ctx, userID, args.Network, args.TxHash)
	switch {
	case errors.Is(err, session.ErrExpired):
		b.reply(ctx, chatID, "⌛ No active plan selection. Use /buy to choose a plan first.")
		return
	case errors.Is(err, storage.ErrDuplicateTx):
		b.reply(ctx, chatID, "❌ This transaction has already been submitted.")
		return
	case err != nil:
		b.log.Error("failed to submit payment", sl.UserID(userID), sl.Err(err))
		b.reply(ctx, chatID, "⚠️ Could not submit the payment. Please try again later.")
		return
	}

	b.reply(ctx, chatID, fmt.Sprintf("✅ Payment submitted!\n\nPayment ID: %s\nNetwork: %s\n\n"+
		"An admin will verify the transaction shortly.", p.ID, strings.ToUpper(p.Network)))
	b.logActivity(ctx, userID, activityPayment, "submitted "+p.ID)
}

func (b *Bot) handleApprove(ctx context.Context, chatID int64, raw string) {
	args, err := b.parsePaymentID(raw)
	if err != nil {
		b.reply(ctx, chatID, "Usage: /approve_payment <payment_id>\n\n"+err.Error())
		return
	}
	p, until, err := b.deps.Payments.Approve(ctx, args.ID)
	if err != nil {
		b.reply(ctx, chatID, paymentError(err))
		if !isPaymentClientError(err) {
			b.log.Error("failed to approve payment", slog.String("payment_id", args.ID), sl.Err(err))
		}
		return
	}
	b.reply(ctx, chatID, fmt.Sprintf("✅ Payment %s approved.\nUser %d has premium until %s.",
		p.ID, p.UserID, until.Format(dateLayout)))
	b.logActivity(ctx, p.UserID, activityPayment, "approved "+p.ID)
}

func (b *Bot) handleReject(ctx context.Context, chatID int64, raw string) {
	args, err := b.parsePaymentID(raw)
	if err != nil {
		b.reply(ctx, chatID, "Usage: /reject_payment <payment_id>\n\n"+err.Error())
		return
	}
	p, err := b.deps.Payments.Reject(ctx, args.ID)
	if err != nil {
		b.reply(ctx, chatID, paymentError(err))
		if !isPaymentClientError(err) {
			b.log.Error("failed to reject payment", slog.String("payment_id", args.ID), sl.Err(err))
		}
		return
	}
	b.reply(ctx, chatID, fmt.Sprintf("❌ Payment %s rejected. User %d notified.", p.ID, p.UserID))
	b.logActivity(ctx, p.UserID, activityPayment, "rejected "+p.ID)
}

func isPaymentClientError(err error) bool {
	return errors.Is(err, storage.ErrPaymentNotFound) || errors.Is(err, payment.ErrNotPending)
}

func paymentError(err error) string {
	switch {
	case errors.Is(err, storage.ErrPaymentNotFound):
		return "❌ Payment not found."
	case errors.Is(err, payment.ErrNotPending):
		return "❌ Payment has already been processed."
	default:
		return "⚠️ Could not process the payment. Check the logs."
	}
}
