// Package bot is the admin-facing Telegram shell: it takes uploads, asks when
// to publish them and serves the catalog screens.
package bot

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/Lllllllleong/docchannelbot/internal/catalog"
	"github.com/Lllllllleong/docchannelbot/internal/models"
)

// API is the subset of *tgbotapi.BotAPI the handler talks to.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Publisher publishes a downloaded upload.
type Publisher interface {
	PublishUpload(ctx context.Context, localPath, originalFileName string) (*models.UploadReport, error)
}

// Scheduler defers a publish.
type Scheduler interface {
	Schedule(ctx context.Context, localPath, originalFileName string, chatID int64, runAt time.Time) (models.ScheduledJob, error)
	List(ctx context.Context) ([]models.ScheduledJob, error)
}

// Config tunes the handler.
type Config struct {
	OwnerID      int64
	DownloadsDir string
	Location     *time.Location
	SessionTTL   time.Duration
	// MaxDownloadBytes is the Bot API download ceiling.
	MaxDownloadBytes int64
}

const defaultMaxDownloadBytes = 20 << 20

// Handler routes updates from the admins.
type Handler struct {
	api       API
	store     catalog.Store
	publisher Publisher
	scheduler Scheduler
	config    Config
	logger    *slog.Logger
	http      *http.Client
	now       func() time.Time

	sessions *expirable.LRU[int64, session]
}

// NewHandler builds a handler. scheduler may be set later with SetScheduler
// when the scheduler's job function needs the handler itself.
func NewHandler(api API, store catalog.Store, publisher Publisher, scheduler Scheduler, config Config, logger *slog.Logger) *Handler {
	if config.MaxDownloadBytes == 0 {
		config.MaxDownloadBytes = defaultMaxDownloadBytes
	}
	if config.Location == nil {
		config.Location = time.UTC
	}
	h := &Handler{
		api:       api,
		store:     store,
		publisher: publisher,
		scheduler: scheduler,
		config:    config,
		logger:    logger,
		http:      &http.Client{Timeout: 5 * time.Minute},
		now:       time.Now,
	}
	h.sessions = expirable.NewLRU[int64, session](256, h.onSessionEvicted, config.SessionTTL)
	return h
}

// SetScheduler attaches the scheduler.
func (h *Handler) SetScheduler(s Scheduler) {
	h.scheduler = s
}

// Run handles updates one at a time until ctx is done or the channel closes.
func (h *Handler) Run(ctx context.Context, updates <-chan tgbotapi.Update) error {
	h.logger.Info("Bot update loop started.")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			h.HandleUpdate(ctx, update)
		}
	}
}

// HandleUpdate dispatches a single update.
func (h *Handler) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		h.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		h.handleMessage(ctx, update.Message)
	}
}

func (h *Handler) handleMessage(ctx context.Context, m *tgbotapi.Message) {
	if m.From == nil {
		return
	}
	logCtx := h.logger.With("userId", m.From.ID, "chatId", m.Chat.ID)

	// The owner check happens before the admin gate so anyone asking gets an answer.
	if m.IsCommand() && m.Command() == "add_admin" {
		h.addAdmin(ctx, m)
		return
	}

	isAdmin, err := h.store.IsAdmin(ctx, m.From.ID, h.config.OwnerID)
	if err != nil {
		logCtx.Error("Admin check failed.", "error", err)
		return
	}
	if !isAdmin {
		logCtx.Debug("Ignoring message from non-admin.")
		return
	}

	if m.Document != nil {
		h.handleDocument(ctx, m)
		return
	}
	if m.IsCommand() {
		if m.Command() == "start" {
			h.reply(m.Chat.ID, "🛡 <b>Admin Panel yuklandi.</b>", mainKeyboard())
		}
		return
	}

	switch m.Text {
	case buttonPlans:
		h.showPlans(ctx, m.Chat.ID)
		return
	case buttonStats:
		h.showStats(ctx, m.Chat.ID)
		return
	case buttonCategories:
		h.showCategories(m.Chat.ID)
		return
	case buttonSettings:
		h.showSettings(ctx, m.Chat.ID)
		return
	case buttonAdmins:
		h.showAdmins(ctx, m.Chat.ID)
		return
	}

	sess, _ := h.sessions.Get(m.Chat.ID)
	switch sess.state {
	case stateAwaitingSchedule:
		h.decideSchedule(ctx, m.Chat.ID, m.Text)
	case stateAwaitingTemplate:
		h.saveSetting(ctx, m.Chat.ID, models.SettingPostCaption, m.Text)
	case stateAwaitingFooter:
		h.saveSetting(ctx, m.Chat.ID, models.SettingFooterText, m.Text)
	}
}

func (h *Handler) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) {
	if _, err := h.api.Request(tgbotapi.NewCallback(q.ID, "")); err != nil {
		h.logger.Warn("Failed to answer callback query.", "error", err)
	}
	if q.From == nil || q.Message == nil {
		return
	}
	isAdmin, err := h.store.IsAdmin(ctx, q.From.ID, h.config.OwnerID)
	if err != nil {
		h.logger.Error("Admin check failed.", "userId", q.From.ID, "error", err)
		return
	}
	if !isAdmin {
		return
	}

	chatID := q.Message.Chat.ID
	switch data := q.Data; {
	case data == callbackPublishNow:
		h.decideSchedule(ctx, chatID, decisionNow)
	case data == callbackSetTemplate:
		h.setState(chatID, stateAwaitingTemplate)
		h.reply(chatID, "📝 Yangi shablonni yuboring. <code>{name}</code> va <code>{channel}</code> o'rniga fayl nomi va kanal qo'yiladi.", nil)
	case data == callbackSetFooter:
		h.setState(chatID, stateAwaitingFooter)
		h.reply(chatID, "🖋 Yangi footer matnini yuboring. O'chirish uchun <code>-</code> yuboring.", nil)
	case strings.HasPrefix(data, callbackCategoryPrefix):
		h.showCategory(ctx, chatID, strings.TrimPrefix(data, callbackCategoryPrefix))
	default:
		h.logger.Debug("Unknown callback data.", "data", data)
	}
}

func (h *Handler) reply(chatID int64, text string, markup interface{}) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	if _, err := h.api.Send(msg); err != nil {
		h.logger.Error("Failed to send reply.", "chatId", chatID, "error", err)
	}
}

// replyError logs err and tells the admin text.
func (h *Handler) replyError(chatID int64, text string, err error) {
	h.logger.Error("Request failed.", "chatId", chatID, "reply", text, "error", err)
	h.reply(chatID, "❌ "+text, nil)
}
