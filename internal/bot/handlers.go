package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/magabrotheeeer/phoenix-filter-bot/internal/lib/sl"
	"github.com/magabrotheeeer/phoenix-filter-bot/internal/models"
	"github.com/magabrotheeeer/phoenix-filter-bot/internal/services/search"
	"github.com/magabrotheeeer/phoenix-filter-bot/internal/storage"
)

var errBanned = errors.New("user is banned")

const (
	callbackDownload = "dl:"
	callbackBuy      = "buy:"
	callbackCancel   = "pay:cancel"
)

// identify сохраняет отправителя и возвращает его запись. Заблокированный пользователь
// получает errBanned. Если запись не прочитать, отказ для всех, кроме администраторов.
func (b *Bot) identify(ctx context.Context, from *tgbotapi.User, referrer *int64) (*models.User, error) {
	log := b.log.With(sl.UserID(from.ID))

	err := b.deps.Users.UpsertUser(ctx, models.User{
		ID:         from.ID,
		Username:   from.UserName,
		FirstName:  from.FirstName,
		ReferrerID: referrer,
	})
	if err != nil {
		log.Error("failed to upsert user", sl.Err(err))
	}

	stored, err := b.deps.Users.GetUser(ctx, from.ID)
	switch {
	case err == nil && stored.IsBanned:
		return nil, errBanned
	case err == nil:
		return stored, nil
	case errors.Is(err, storage.ErrUserNotFound):
		return nil, nil
	case b.isAdmin(from.ID):
		log.Warn("failed to read admin user", sl.Err(err))
		return nil, nil
	default:
		return nil, err
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.From.IsBot {
		return
	}
	userID := msg.From.ID
	log := b.log.With(sl.UserID(userID), slog.Int64("chat_id", msg.Chat.ID))

	var referrer *int64
	if msg.IsCommand() && msg.Command() == "start" {
		if ref, err := strconv.ParseInt(strings.TrimSpace(msg.CommandArguments()), 10, 64); err == nil && ref > 0 && ref != userID {
			referrer = &ref
		}
	}
	stored, err := b.identify(ctx, msg.From, referrer)
	if errors.Is(err, errBanned) {
		log.Info("ignoring banned user")
		return
	}
	if err != nil {
		log.Error("failed to read user, denying", sl.Err(err))
		b.reply(ctx, msg.Chat.ID, unavailableText)
		return
	}

	if !msg.IsCommand() {
		if text := strings.TrimSpace(msg.Text); text != "" && msg.Chat.IsPrivate() {
			b.handleSearch(ctx, msg.Chat.ID, userID, text)
		}
		return
	}

	args := msg.CommandArguments()
	switch cmd := msg.Command(); cmd {
	case "start":
		b.reply(ctx, msg.Chat.ID, fmt.Sprintf("👋 Hello, %s!\n\nSend me a file name and I will find it for you.\n\n%s",
			msg.From.FirstName, helpText))
	case "help":
		text := helpText
		if b.isAdmin(userID) {
			text += adminHelpText
		}
		b.reply(ctx, msg.Chat.ID, text)
	case "search":
		b.handleSearch(ctx, msg.Chat.ID, userID, args)
	case "myplan":
		b.handleMyPlan(ctx, msg.Chat.ID, userID, stored)
	case "benefits":
		b.handleBenefits(ctx, msg.Chat.ID, userID)
	case "plan":
		b.reply(ctx, msg.Chat.ID, formatPlans())
	case "buy":
		b.handleBuy(ctx, msg.Chat.ID)
	case "paid":
		b.handlePaid(ctx, msg.Chat.ID, userID, args)
	default:
		if b.isAdmin(userID) && b.handleAdmin(ctx, msg, cmd, args) {
			return
		}
		log.Debug("unknown command", slog.String("command", cmd))
	}
}

func (b *Bot) handleSearch(ctx context.Context, chatID, userID int64, query string) {
	query = strings.TrimSpace(query)
	if query == "" {
		b.reply(ctx, chatID, "Usage: /search <query>")
		return
	}

	ok, remaining := b.admit(ctx, chatID, userID, models.ActionSearch)
	if !ok {
		return
	}

	files, err := b.deps.Files.Search(ctx, query)
	if errors.Is(err, search.ErrQueryTooShort) {
		b.reply(ctx, chatID, fmt.Sprintf("Query must be at least %d characters.", search.MinQueryLen))
		return
	}
	if err != nil {
		b.log.Error("search failed", sl.UserID(userID), sl.Err(err))
		b.reply(ctx, chatID, "⚠️ Search is temporarily unavailable.")
		return
	}
	b.consume(ctx, userID, models.ActionSearch, query)

	if len(files) == 0 {
		b.reply(ctx, chatID, fmt.Sprintf("😔 Nothing found for %q.", query))
		return
	}
	if len(files) > search.ShowLimit {
		files = files[:search.ShowLimit]
	}
	if remaining < models.Unlimited {
		remaining--
	}

	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(files))
	for _, f := range files {
		label := truncate(f.DisplayName(), 40) + " · " + readableSize(f.FileSize)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, callbackDownload+strconv.FormatInt(f.ID, 10))))
	}
	msg := tgbotapi.NewMessage(chatID, formatSearchResults(query, files, max(remaining, 0)))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	b.send(ctx, msg)
}

func (b *Bot) handleMyPlan(ctx context.Context, chatID, userID int64, stored *models.User) {
	tier := b.deps.Quota.TierOf(ctx, userID)
	b.reply(ctx, chatID, formatMyPlan(stored, tier))
}

func (b *Bot) handleBenefits(ctx context.Context, chatID, userID int64) {
	benefits, err := b.deps.Quota.Benefits(ctx, userID)
	if err != nil {
		b.log.Error("failed to load benefits", sl.UserID(userID), sl.Err(err))
		b.reply(ctx, chatID, "⚠️ Could not load your limits. Please try again later.")
		return
	}
	b.reply(ctx, chatID, formatBenefits(benefits))
}

func (b *Bot) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) {
	if q.From == nil {
		return
	}
	chatID := q.From.ID
	if q.Message != nil && q.Message.Chat != nil {
		chatID = q.Message.Chat.ID
	}

	if _, err := b.identify(ctx, q.From, nil); err != nil {
		if errors.Is(err, errBanned) {
			b.log.Info("ignoring callback from banned user", sl.UserID(q.From.ID))
			b.answer(ctx, q.ID, "")
			return
		}
		b.log.Error("failed to read user, denying", sl.UserID(q.From.ID), sl.Err(err))
		b.answer(ctx, q.ID, unavailableText)
		return
	}

	switch data := q.Data; {
	case strings.HasPrefix(data, callbackDownload):
		id, err := strconv.ParseInt(strings.TrimPrefix(data, callbackDownload), 10, 64)
		if err != nil {
			b.answer(ctx, q.ID, "Invalid file")
			return
		}
		b.answer(ctx, q.ID, "")
		b.handleDownload(ctx, chatID, q.From.ID, id)
	case strings.HasPrefix(data, callbackBuy):
		b.answer(ctx, q.ID, "")
		b.handleSelectPlan(ctx, chatID, q.From.ID, strings.TrimPrefix(data, callbackBuy))
	case data == callbackCancel:
		b.answer(ctx, q.ID, "Cancelled")
		b.handleCancel(ctx, chatID, q.From.ID)
	default:
		b.answer(ctx, q.ID, "")
	}
}

func (b *Bot) answer(ctx context.Context, callbackID, text string) {
	if err := b.sender.Request(ctx, tgbotapi.NewCallback(callbackID, text)); err != nil {
		b.log.Warn("failed to answer callback", sl.Err(err))
	}
}

func (b *Bot) handleDownload(ctx context.Context, chatID, userID, fileID int64) {
	f, err := b.deps.Files.Get(ctx, fileID)
	if errors.Is(err, storage.ErrFileNotFound) {
		b.reply(ctx, chatID, "❌ File not found. It may have been removed.")
		return
	}
	if err != nil {
		b.log.Error("failed to load file", slog.Int64("file_id", fileID), sl.Err(err))
		b.reply(ctx, chatID, "⚠️ Download is temporarily unavailable.")
		return
	}

	if ok, _ := b.admit(ctx, chatID, userID, models.ActionDownload); !ok {
		return
	}

	if _, err := b.sender.Send(ctx, fileMessage(chatID, f)); err != nil {
		b.log.Error("failed to send file", slog.Int64("file_id", fileID), sl.UserID(userID), sl.Err(err))
		b.reply(ctx, chatID, "⚠️ Could not send the file. Please try again later.")
		return
	}
	b.deps.Files.MarkDownloaded(ctx, fileID)
	b.consume(ctx, userID, models.ActionDownload, strconv.FormatInt(fileID, 10))
}

func fileMessage(chatID int64, f *models.File) tgbotapi.Chattable {
	file := tgbotapi.FileID(f.FileID)
	caption := formatFile(f)
	switch f.FileType {
	case "video":
		m := tgbotapi.NewVideo(chatID, file)
		m.Caption = caption
		return m
	case "audio":
		m := tgbotapi.NewAudio(chatID, file)
		m.Caption = caption
		return m
	default:
		m := tgbotapi.NewDocument(chatID, file)
		m.Caption = caption
		return m
	}
}

func (b *Bot) handleChannelPost(ctx context.Context, post *tgbotapi.Message) {
	if post.Chat == nil || !b.deps.Files.Indexed(post.Chat.ID) {
		return
	}
	file, ok := fileFromPost(post)
	if !ok {
		return
	}
	if _, _, err := b.deps.Files.Index(ctx, file); err != nil {
		b.log.Error("failed to index file", slog.Int64("channel_id", post.Chat.ID),
			slog.Int("message_id", post.MessageID), sl.Err(err))
	}
}

func fileFromPost(post *tgbotapi.Message) (models.File, bool) {
	f := models.File{
		ChannelID: post.Chat.ID,
		MessageID: post.MessageID,
	}
	if post.Caption != "" {
		caption := post.Caption
		f.Caption = &caption
	}

	var mime string
	switch {
	case post.Document != nil:
		d := post.Document
		f.FileID, f.FileName, f.FileType, f.FileSize, mime = d.FileID, d.FileName, "document", int64(d.FileSize), d.MimeType
	case post.Video != nil:
		v := post.Video
		f.FileID, f.FileName, f.FileType, f.FileSize, mime = v.FileID, v.FileName, "video", int64(v.FileSize), v.MimeType
	case post.Audio != nil:
		a := post.Audio
		name := a.FileName
		if name == "" {
			name = strings.TrimSpace(a.Performer + " " + a.Title)
		}
		f.FileID, f.FileName, f.FileType, f.FileSize, mime = a.FileID, name, "audio", int64(a.FileSize), a.MimeType
	default:
		return models.File{}, false
	}

	if f.FileName == "" {
		f.FileName = f.FileType + "_" + strconv.Itoa(post.MessageID)
	}
	if mime != "" {
		f.MimeType = &mime
	}
	return f, true
}
