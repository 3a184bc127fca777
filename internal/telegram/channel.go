// Package telegram adapts the Bot API client to the publishing pipeline.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sender is the part of *tgbotapi.BotAPI used to post messages.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// ChannelSender posts documents to the broadcast channel. A rejected send
// is returned as is; flood-control replies are not retried.
type ChannelSender struct {
	api      Sender
	chatID   int64
	username string
	logger   *slog.Logger
}

// NewChannelSender targets channel, which is a numeric chat id or an
// @username.
func NewChannelSender(api Sender, channel string, logger *slog.Logger) (*ChannelSender, error) {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		return nil, errors.New("channel id is empty")
	}
	s := &ChannelSender{api: api, logger: logger}
	if id, err := strconv.ParseInt(channel, 10, 64); err == nil {
		s.chatID = id
	} else {
		s.username = "@" + strings.TrimPrefix(channel, "@")
	}
	return s, nil
}

// SendDocument uploads the file at path with caption and returns the channel
// message id. The document name shown in the channel is the file's base name.
func (s *ChannelSender) SendDocument(ctx context.Context, path, caption string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	doc := tgbotapi.NewDocument(s.chatID, tgbotapi.FilePath(path))
	if s.username != "" {
		doc.ChannelUsername = s.username
	}
	doc.Caption = caption

	msg, err := s.api.Send(doc)
	if err != nil {
		var apiErr *tgbotapi.Error
		if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
			s.logger.Warn("Channel send throttled.", "path", path, "retryAfter", time.Duration(apiErr.RetryAfter)*time.Second)
		}
		return 0, fmt.Errorf("failed to send document to channel: %w", err)
	}
	return msg.MessageID, nil
}
