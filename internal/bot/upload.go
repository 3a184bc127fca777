package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/oklog/ulid/v2"

	"github.com/Lllllllleong/docchannelbot/internal/models"
	"github.com/Lllllllleong/docchannelbot/internal/services"
)

const decisionNow = "now"

func (h *Handler) handleDocument(ctx context.Context, m *tgbotapi.Message) {
	doc := m.Document
	name := doc.FileName
	if name == "" {
		name = "document"
	}
	logCtx := h.logger.With("chatId", m.Chat.ID, "fileName", name, "fileId", doc.FileID)

	if int64(doc.FileSize) > h.config.MaxDownloadBytes {
		logCtx.Warn("Upload exceeds download limit.", "size", doc.FileSize)
		h.reply(m.Chat.ID, fmt.Sprintf("❌ Fayl juda katta (%d MB dan oshmasligi kerak).", h.config.MaxDownloadBytes>>20), nil)
		return
	}

	localPath, err := h.download(ctx, doc.FileID, name)
	if err != nil {
		h.replyError(m.Chat.ID, "Faylni yuklab bo'lmadi.", err)
		return
	}
	logCtx.Info("Upload downloaded.", "path", localPath)

	h.holdPending(m.Chat.ID, &models.PendingUpload{LocalPath: localPath, OriginalFileName: name})
	h.reply(m.Chat.ID,
		fmt.Sprintf("📥 <b>%s</b> qabul qilindi.\n⏰ Vaqtni <code>KK.OO.YYYY SS:MM</code> formatida yuboring yoki «Hozir» tugmasini bosing.", html.EscapeString(name)),
		publishNowKeyboard())
}

// download saves the Telegram file under the downloads dir with a unique
// name; the original name is kept for classification.
func (h *Handler) download(ctx context.Context, fileID, name string) (string, error) {
	url, err := h.api.GetFileDirectURL(fileID)
	if err != nil {
		return "", fmt.Errorf("failed to resolve file url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build download request: %w", err)
	}
	resp, err := h.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to download file: unexpected status %s", resp.Status)
	}

	if err := os.MkdirAll(h.config.DownloadsDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create downloads dir: %w", err)
	}
	localPath := filepath.Join(h.config.DownloadsDir, ulid.Make().String()+strings.ToLower(filepath.Ext(name)))
	out, err := os.Create(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to create local file: %w", err)
	}
	n, err := io.Copy(out, io.LimitReader(resp.Body, h.config.MaxDownloadBytes+1))
	if err == nil && n > h.config.MaxDownloadBytes {
		err = fmt.Errorf("file exceeds %d bytes", h.config.MaxDownloadBytes)
	}
	if err != nil {
		out.Close()
		os.Remove(localPath)
		return "", fmt.Errorf("failed to write local file: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(localPath)
		return "", fmt.Errorf("failed to write local file: %w", err)
	}
	return localPath, nil
}

// decideSchedule applies the admin's answer for the pending upload: publish
// now, or at the typed time.
func (h *Handler) decideSchedule(ctx context.Context, chatID int64, decision string) {
	if decision == decisionNow {
		pending, ok := h.takePending(chatID)
		if !ok {
			h.reply(chatID, "ℹ️ Kutilayotgan fayl yo'q. Avval hujjat yuboring.", nil)
			return
		}
		h.publish(ctx, chatID, pending.LocalPath, pending.OriginalFileName)
		return
	}

	runAt, err := services.ParseScheduleTime(decision, h.config.Location, h.now())
	switch {
	case errors.Is(err, services.ErrBadScheduleFormat):
		h.reply(chatID, "⚠️ Format: <code>KK.OO.YYYY SS:MM</code>, masalan <code>25.09.2026 08:00</code>.", nil)
		return
	case errors.Is(err, services.ErrScheduleInPast):
		h.reply(chatID, "⚠️ Bu vaqt o'tib ketgan. Kelajakdagi vaqtni yuboring.", nil)
		return
	case err != nil:
		h.replyError(chatID, "Vaqtni tushunib bo'lmadi.", err)
		return
	}

	pending, ok := h.takePending(chatID)
	if !ok {
		h.reply(chatID, "ℹ️ Kutilayotgan fayl yo'q. Avval hujjat yuboring.", nil)
		return
	}
	if h.scheduler == nil {
		h.holdPending(chatID, pending)
		h.replyError(chatID, "Rejalashtirish hozir ishlamayapti.", errors.New("scheduler not configured"))
		return
	}
	job, err := h.scheduler.Schedule(ctx, pending.LocalPath, pending.OriginalFileName, chatID, runAt)
	if err != nil {
		h.holdPending(chatID, pending)
		h.replyError(chatID, "Rejalashtirib bo'lmadi.", err)
		return
	}
	h.reply(chatID, fmt.Sprintf("✅ Rejalashtirildi: <b>%s</b>\n🕒 %s",
		html.EscapeString(job.OriginalFileName), job.RunAt.In(h.config.Location).Format(services.ScheduleLayout)), nil)
}

// RunScheduledJob publishes a deferred upload and tells the admin who
// scheduled it.
func (h *Handler) RunScheduledJob(ctx context.Context, job models.ScheduledJob) {
	h.publish(ctx, job.ChatID, job.LocalPath, job.OriginalFileName)
}

func (h *Handler) publish(ctx context.Context, chatID int64, localPath, name string) {
	report, err := h.publisher.PublishUpload(ctx, localPath, name)
	if err != nil {
		h.logger.Error("Upload failed.", "chatId", chatID, "fileName", name, "error", err)
	}
	h.reply(chatID, formatReport(name, report, err), nil)
}

// formatReport renders the short acknowledgement for one top-level upload.
func formatReport(name string, report *models.UploadReport, err error) string {
	name = html.EscapeString(name)
	if report == nil || (!report.IsArchive && err != nil) {
		return fmt.Sprintf("❌ <b>%s</b> kanalga yuborilmadi.", name)
	}
	if report.IsArchive {
		if err != nil {
			return fmt.Sprintf("❌ <b>%s</b> arxivini ochib bo'lmadi.", name)
		}
		text := fmt.Sprintf("📦 <b>%s</b>: %d ta fayl joylandi", name, len(report.Published))
		if n := len(report.Failures); n > 0 {
			text += fmt.Sprintf(", %d ta xato", n)
		}
		text += "."
		if n := report.StampWarnings(); n > 0 {
			text += fmt.Sprintf("\n⚠️ %d ta faylga belgi qo'yilmadi.", n)
		}
		return text
	}

	outcome := report.Published[0]
	text := fmt.Sprintf("✅ Kanalga joylandi: <a href=\"%s\">%s</a>",
		html.EscapeString(outcome.Entry.ChannelLink), html.EscapeString(outcome.Entry.DisplayName))
	if outcome.Stamp == models.StampFailed {
		text += "\n⚠️ Faylga belgi qo'yilmadi."
	}
	return text
}
