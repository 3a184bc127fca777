package bot

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Lllllllleong/docchannelbot/internal/models"
	"github.com/Lllllllleong/docchannelbot/internal/services"
)

const (
	buttonPlans      = "📅 Rejalarni ko'rish"
	buttonStats      = "📈 Batafsil statistika"
	buttonCategories = "📁 Kategoriyalar"
	buttonSettings   = "⚙️ Sozlamalar"
	buttonAdmins     = "💎 Adminlarni boshqarish"

	callbackPublishNow     = "publish_now"
	callbackSetTemplate    = "set_tpl"
	callbackSetFooter      = "set_footer"
	callbackCategoryPrefix = "cat:"

	// Telegram rejects messages longer than 4096 characters.
	maxMessageLen = 4000
)

func mainKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(buttonPlans), tgbotapi.NewKeyboardButton(buttonStats)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(buttonCategories), tgbotapi.NewKeyboardButton(buttonSettings)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(buttonAdmins)),
	)
	kb.ResizeKeyboard = true
	return kb
}

func publishNowKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🚀 Hozir", callbackPublishNow)),
	)
}

func settingsKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📝 Shablon", callbackSetTemplate),
			tgbotapi.NewInlineKeyboardButtonData("🖋 Footer", callbackSetFooter),
		),
	)
}

func categoryKeyboard() tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, c := range models.Categories {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📂 "+string(c), callbackCategoryPrefix+string(c)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func (h *Handler) addAdmin(ctx context.Context, m *tgbotapi.Message) {
	if m.From.ID != h.config.OwnerID {
		h.reply(m.Chat.ID, "❌ Bu buyruq faqat asosiy ega uchun!", nil)
		return
	}
	args := strings.Fields(m.CommandArguments())
	if len(args) != 1 {
		h.reply(m.Chat.ID, "⚠️ Format: <code>/add_admin ID</code>", nil)
		return
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		h.reply(m.Chat.ID, "⚠️ Format: <code>/add_admin ID</code>", nil)
		return
	}
	if err := h.store.AddAdmin(ctx, id); err != nil {
		h.replyError(m.Chat.ID, "Adminni qo'shib bo'lmadi.", err)
		return
	}
	h.logger.Info("Admin added.", "adminId", id)
	h.reply(m.Chat.ID, fmt.Sprintf("✅ Yangi admin qo'shildi! ID: <code>%d</code>", id), nil)
}

func (h *Handler) showPlans(ctx context.Context, chatID int64) {
	if h.scheduler == nil {
		h.reply(chatID, "📭 Rejalashtirilgan postlar yo'q.", nil)
		return
	}
	jobs, err := h.scheduler.List(ctx)
	if err != nil {
		h.replyError(chatID, "Rejalarni o'qib bo'lmadi.", err)
		return
	}
	if len(jobs) == 0 {
		h.reply(chatID, "📭 Rejalashtirilgan postlar yo'q.", nil)
		return
	}
	lines := []string{fmt.Sprintf("📅 <b>Rejalashtirilgan postlar: %d</b>", len(jobs))}
	for _, job := range jobs {
		lines = append(lines, fmt.Sprintf("🕒 %s | %s",
			job.RunAt.In(h.config.Location).Format(services.ScheduleLayout), html.EscapeString(job.OriginalFileName)))
	}
	h.replyLines(chatID, lines)
}

func (h *Handler) showStats(ctx context.Context, chatID int64) {
	total, err := h.store.CountCatalogEntries(ctx)
	if err != nil {
		h.replyError(chatID, "Statistikani o'qib bo'lmadi.", err)
		return
	}
	counts, err := h.store.CountByCategory(ctx)
	if err != nil {
		h.replyError(chatID, "Statistikani o'qib bo'lmadi.", err)
		return
	}
	lines := []string{fmt.Sprintf("📈 <b>Jami fayllar: %d</b>", total)}
	for _, c := range models.Categories {
		lines = append(lines, fmt.Sprintf("• %s: %d", c, counts[c]))
	}
	h.reply(chatID, strings.Join(lines, "\n"), nil)
}

func (h *Handler) showCategories(chatID int64) {
	h.reply(chatID, "📁 Kategoriyani tanlang:", categoryKeyboard())
}

func (h *Handler) showCategory(ctx context.Context, chatID int64, raw string) {
	category, ok := models.ParseCategory(raw)
	if !ok {
		h.reply(chatID, "⚠️ Bunday kategoriya yo'q.", nil)
		return
	}
	links, err := h.store.ListCatalogByCategory(ctx, category)
	if err != nil {
		h.replyError(chatID, "Katalogni o'qib bo'lmadi.", err)
		return
	}
	if len(links) == 0 {
		h.reply(chatID, fmt.Sprintf("📂 <b>%s</b>: hozircha fayllar yo'q.", category), nil)
		return
	}
	lines := []string{fmt.Sprintf("📂 <b>%s</b> (%d):", category, len(links))}
	for _, l := range links {
		lines = append(lines, fmt.Sprintf("• <a href=\"%s\">%s</a>", html.EscapeString(l.ChannelLink), html.EscapeString(l.DisplayName)))
	}
	h.replyLines(chatID, lines)
}

func (h *Handler) showSettings(ctx context.Context, chatID int64) {
	template, ok, err := h.store.GetSetting(ctx, models.SettingPostCaption)
	if err != nil {
		h.replyError(chatID, "Sozlamalarni o'qib bo'lmadi.", err)
		return
	}
	if !ok || template == "" {
		template = models.DefaultCaptionTemplate
	}
	footer, _, err := h.store.GetSetting(ctx, models.SettingFooterText)
	if err != nil {
		h.replyError(chatID, "Sozlamalarni o'qib bo'lmadi.", err)
		return
	}
	if footer == "" {
		footer = "(yo'q)"
	}
	h.reply(chatID, fmt.Sprintf("⚙️ <b>Sozlamalar</b>\n\n📝 Shablon: <code>%s</code>\n🖋 Footer: %s",
		html.EscapeString(template), html.EscapeString(footer)), settingsKeyboard())
}

func (h *Handler) saveSetting(ctx context.Context, chatID int64, key, value string) {
	value = strings.TrimSpace(value)
	if key == models.SettingFooterText && value == "-" {
		value = ""
	}
	if key == models.SettingPostCaption && value == "" {
		h.reply(chatID, "⚠️ Shablon bo'sh bo'lmasligi kerak.", nil)
		return
	}
	if err := h.store.SetSetting(ctx, key, value); err != nil {
		h.replyError(chatID, "Sozlamani saqlab bo'lmadi.", err)
		return
	}
	h.sessions.Add(chatID, session{})
	h.logger.Info("Setting updated.", "key", key)
	h.reply(chatID, "✅ Saqlandi.", nil)
}

func (h *Handler) showAdmins(ctx context.Context, chatID int64) {
	admins, err := h.store.ListAdmins(ctx)
	if err != nil {
		h.replyError(chatID, "Adminlar ro'yxatini o'qib bo'lmadi.", err)
		return
	}
	lines := []string{"💎 <b>Adminlar</b>", fmt.Sprintf("👑 <code>%d</code> (ega)", h.config.OwnerID)}
	for _, id := range admins {
		if id == h.config.OwnerID {
			continue
		}
		lines = append(lines, fmt.Sprintf("👤 <code>%d</code>", id))
	}
	lines = append(lines, "", "Qo'shish: <code>/add_admin ID</code>")
	h.reply(chatID, strings.Join(lines, "\n"), nil)
}

// replyLines sends lines as one or more messages under the length limit.
func (h *Handler) replyLines(chatID int64, lines []string) {
	for _, chunk := range chunkLines(lines, maxMessageLen) {
		h.reply(chatID, chunk, nil)
	}
}

func chunkLines(lines []string, limit int) []string {
	var chunks []string
	var b strings.Builder
	for _, line := range lines {
		if b.Len() > 0 && b.Len()+1+len(line) > limit {
			chunks = append(chunks, b.String())
			b.Reset()
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
	}
	if b.Len() > 0 {
		chunks = append(chunks, b.String())
	}
	return chunks
}
