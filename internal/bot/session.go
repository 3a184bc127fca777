package bot

import (
	"errors"
	"io/fs"
	"os"

	"github.com/Lllllllleong/docchannelbot/internal/models"
)

type convState int

const (
	stateIdle convState = iota
	stateAwaitingSchedule
	stateAwaitingTemplate
	stateAwaitingFooter
)

// session is the per-chat conversation state. Values are stored by copy so
// the expiry goroutine never shares memory with the update loop.
type session struct {
	state   convState
	pending *models.PendingUpload
}

// onSessionEvicted deletes an upload nobody decided on. Sessions are reset by
// overwriting, which does not trigger eviction, so a pending upload reaching
// here was abandoned.
func (h *Handler) onSessionEvicted(chatID int64, s session) {
	if s.pending == nil {
		return
	}
	h.logger.Info("Discarding abandoned upload.", "chatId", chatID, "fileName", s.pending.OriginalFileName)
	if err := os.Remove(s.pending.LocalPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		h.logger.Warn("Failed to remove abandoned upload.", "path", s.pending.LocalPath, "error", err)
	}
}

// setState changes the conversation state and drops any pending upload.
func (h *Handler) setState(chatID int64, state convState) {
	h.discardPending(chatID)
	h.sessions.Add(chatID, session{state: state})
}

// takePending removes and returns the chat's pending upload.
func (h *Handler) takePending(chatID int64) (*models.PendingUpload, bool) {
	s, ok := h.sessions.Get(chatID)
	if !ok || s.pending == nil {
		return nil, false
	}
	h.sessions.Add(chatID, session{})
	return s.pending, true
}

// holdPending parks an upload until the admin decides when to publish it.
func (h *Handler) holdPending(chatID int64, p *models.PendingUpload) {
	h.discardPending(chatID)
	h.sessions.Add(chatID, session{state: stateAwaitingSchedule, pending: p})
}

func (h *Handler) discardPending(chatID int64) {
	if p, ok := h.takePending(chatID); ok {
		h.onSessionEvicted(chatID, session{pending: p})
	}
}
