package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/magabrotheeeer/phoenix-filter-bot/internal/lib/sl"
	"github.com/magabrotheeeer/phoenix-filter-bot/internal/services/fsub"
)

// handleAdmin выполняет команду администратора. false, если команда неизвестна.
func (b *Bot) handleAdmin(ctx context.Context, msg *tgbotapi.Message, cmd, args string) bool {
	chatID := msg.Chat.ID
	b.log.Info("admin command", sl.UserID(msg.From.ID), slog.String("command", cmd))

	switch cmd {
	case "fsub":
		b.handleAddFsub(ctx, chatID, msg.From.ID, args)
	case "nofsub":
		b.handleRemoveFsub(ctx, chatID, args)
	case "fsublist":
		b.handleListFsub(ctx, chatID)
	case "add_premium":
		b.handleAddPremium(ctx, chatID, args)
	case "remove_premium":
		b.handleRemovePremium(ctx, chatID, args)
	case "approve_payment":
		b.handleApprove(ctx, chatID, args)
	case "reject_payment":
		b.handleReject(ctx, chatID, args)
	case "ban":
		b.handleBan(ctx, chatID, args, true)
	case "unban":
		b.handleBan(ctx, chatID, args, false)
	case "stats":
		b.handleStats(ctx, chatID)
	case "delete":
		b.handleDelete(ctx, chatID, args)
	default:
		return false
	}
	return true
}

func (b *Bot) handleAddFsub(ctx context.Context, chatID, adminID int64, raw string) {
	args, err := b.parseChannel(raw)
	if err != nil {
		b.reply(ctx, chatID, "Usage: /fsub <channel_id>\n\n"+err.Error())
		return
	}
	added, err := b.deps.Access.AddLink(ctx, chatID, args.ChannelID, adminID)
	if errors.Is(err, fsub.ErrTooManyLinks) {
		b.reply(ctx, chatID, "⚠️ This chat already has the maximum number of required channels.")
		return
	}
	if err != nil {
		b.log.Error("failed to add force-sub link", slog.Int64("channel_id", args.ChannelID), sl.Err(err))
		b.reply(ctx, chatID, "⚠️ Could not add the channel.")
		return
	}
	if !added {
		b.reply(ctx, chatID, fmt.Sprintf("ℹ️ Channel %d is already required in this chat.", args.ChannelID))
		return
	}
	b.reply(ctx, chatID, fmt.Sprintf("✅ Channel %d is now required in this chat.", args.ChannelID))
}

func (b *Bot) handleRemoveFsub(ctx context.Context, chatID int64, raw string) {
	args, err := b.parseChannel(raw)
	if err != nil {
		b.reply(ctx, chatID, "Usage: /nofsub <channel_id>\n\n"+err.Error())
		return
	}
	removed, err := b.deps.Access.RemoveLink(ctx, chatID, args.ChannelID)
	if err != nil {
		b.log.Error("failed to remove force-sub link", slog.Int64("channel_id", args.ChannelID), sl.Err(err))
		b.reply(ctx, chatID, "⚠️ Could not remove the channel.")
		return
	}
	if !removed {
		b.reply(ctx, chatID, fmt.Sprintf("ℹ️ Channel %d is not required in this chat.", args.ChannelID))
		return
	}
	b.reply(ctx, chatID, fmt.Sprintf("✅ Channel %d removed.", args.ChannelID))
}

func (b *Bot) handleListFsub(ctx context.Context, chatID int64) {
	links, err := b.deps.Access.ListLinks(ctx, chatID)
	if err != nil {
		b.log.Error("failed to list force-sub links", slog.Int64("chat_id", chatID), sl.Err(err))
		b.reply(ctx, chatID, "⚠️ Could not load the channel list.")
		return
	}
	if len(links) == 0 {
		b.reply(ctx, chatID, "No required channels in this chat.")
		return
	}
	var sb strings.Builder
	sb.WriteString("📢 Required channels:\n")
	for i, l := range links {
		fmt.Fprintf(&sb, "\n%d. %d (added %s)", i+1, l.ChannelID, l.AddedAt.Format(dateLayout))
	}
	b.reply(ctx, chatID, sb.String())
}

func (b *Bot) handleAddPremium(ctx context.Context, chatID int64, raw string) {
	args, err := b.parseUserDays(raw)
	if err != nil {
		b.reply(ctx, chatID, "Usage: /add_premium <user_id> <days>\n\n"+err.Error())
		return
	}
	until, err := b.deps.Premium.Grant(ctx, args.UserID, args.Days)
	if err != nil {
		b.log.Error("failed to grant premium", sl.UserID(args.UserID), sl.Err(err))
		b.reply(ctx, chatID, "⚠️ Could not grant premium: "+err.Error())
		return
	}
	b.reply(ctx, chatID, fmt.Sprintf("✅ User %d has premium until %s.", args.UserID, until.Format(dateLayout)))
}

func (b *Bot) handleRemovePremium(ctx context.Context, chatID int64, raw string) {
	args, err := b.parseUser(raw)
	if err != nil {
		b.reply(ctx, chatID, "Usage: /remove_premium <user_id>\n\n"+err.Error())
		return
	}
	if err := b.deps.Premium.Revoke(ctx, args.UserID); err != nil {
		b.log.Error("failed to revoke premium", sl.UserID(args.UserID), sl.Err(err))
		b.reply(ctx, chatID, "⚠️ Could not remove premium: "+err.Error())
		return
	}
	b.reply(ctx, chatID, fmt.Sprintf("✅ Premium removed from user %d.", args.UserID))
}

func (b *Bot) handleBan(ctx context.Context, chatID int64, raw string, banned bool) {
	args, err := b.parseUser(raw)
	if err != nil {
		b.reply(ctx, chatID, "Usage: /ban <user_id> or /unban <user_id>\n\n"+err.Error())
		return
	}
	if b.isAdmin(args.UserID) {
		b.reply(ctx, chatID, "❌ Admins cannot be banned.")
		return
	}
	ok, err := b.deps.Users.SetBanned(ctx, args.UserID, banned)
	if err != nil {
		b.log.Error("failed to update ban", sl.UserID(args.UserID), sl.Err(err))
		b.reply(ctx, chatID, "⚠️ Could not update the user.")
		return
	}
	if !ok {
		b.reply(ctx, chatID, fmt.Sprintf("❌ User %d not found.", args.UserID))
		return
	}
	if banned {
		b.reply(ctx, chatID, fmt.Sprintf("🚫 User %d banned.", args.UserID))
	} else {
		b.reply(ctx, chatID, fmt.Sprintf("✅ User %d unbanned.", args.UserID))
	}
}

func (b *Bot) handleStats(ctx context.Context, chatID int64) {
	total, premium, err := b.deps.Users.CountUsers(ctx)
	if err != nil {
		b.log.Error("failed to count users", sl.Err(err))
		b.reply(ctx, chatID, "⚠️ Could not load statistics.")
		return
	}
	files, err := b.deps.Users.CountFiles(ctx)
	if err != nil {
		b.log.Error("failed to count files", sl.Err(err))
		b.reply(ctx, chatID, "⚠️ Could not load statistics.")
		return
	}
	b.reply(ctx, chatID, fmt.Sprintf("📊 Statistics\n\n👥 Users: %d\n💎 Premium: %d\n📁 Files: %d",
		total, premium, files))
}

func (b *Bot) handleDelete(ctx context.Context, chatID int64, raw string) {
	args, err := b.parseFile(raw)
	if err != nil {
		b.reply(ctx, chatID, "Usage: /delete <file_id>\n\n"+err.Error())
		return
	}
	deleted, err := b.deps.Files.Delete(ctx, args.FileID)
	if err != nil {
		b.log.Error("failed to delete file", slog.Int64("file_id", args.FileID), sl.Err(err))
		b.reply(ctx, chatID, "⚠️ Could not delete the file.")
		return
	}
	if !deleted {
		b.reply(ctx, chatID, fmt.Sprintf("❌ File %d not found.", args.FileID))
		return
	}
	b.reply(ctx, chatID, fmt.Sprintf("🗑 File %d deleted.", args.FileID))
}
