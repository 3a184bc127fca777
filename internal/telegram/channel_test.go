package telegram

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedSender struct {
	errs []error
	sent []tgbotapi.Chattable
}

func (s *scriptedSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	s.sent = append(s.sent, c)
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return tgbotapi.Message{}, err
		}
	}
	return tgbotapi.Message{MessageID: 40 + len(s.sent)}, nil
}

func newTestSender(t *testing.T, api Sender, channel string) *ChannelSender {
	t.Helper()
	s, err := NewChannelSender(api, channel, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return s
}

func TestChannelSender_Targets(t *testing.T) {
	tests := []struct {
		channel      string
		wantChatID   int64
		wantUsername string
	}{
		{channel: "-1001234567890", wantChatID: -1001234567890},
		{channel: "@ish_reja_uz", wantUsername: "@ish_reja_uz"},
		{channel: "ish_reja_uz", wantUsername: "@ish_reja_uz"},
	}
	for _, tt := range tests {
		t.Run(tt.channel, func(t *testing.T) {
			api := &scriptedSender{}
			s := newTestSender(t, api, tt.channel)

			id, err := s.SendDocument(context.Background(), "/tmp/@ISH_REJA_UZ_Reja.pdf", "caption")
			require.NoError(t, err)
			assert.Equal(t, 41, id)

			require.Len(t, api.sent, 1)
			doc, ok := api.sent[0].(tgbotapi.DocumentConfig)
			require.True(t, ok)
			assert.Equal(t, tt.wantChatID, doc.ChatID)
			assert.Equal(t, tt.wantUsername, doc.ChannelUsername)
			assert.Equal(t, "caption", doc.Caption)
			assert.Equal(t, tgbotapi.FilePath("/tmp/@ISH_REJA_UZ_Reja.pdf"), doc.File)
		})
	}
}

func TestNewChannelSender_RejectsEmpty(t *testing.T) {
	_, err := NewChannelSender(&scriptedSender{}, "  ", slog.Default())
	assert.Error(t, err)
}

func TestChannelSender_FloodControlIsNotRetried(t *testing.T) {
	flood := &tgbotapi.Error{Code: 429, Message: "Too Many Requests", ResponseParameters: tgbotapi.ResponseParameters{RetryAfter: 3}}
	api := &scriptedSender{errs: []error{flood}}
	s := newTestSender(t, api, "@ish_reja_uz")

	_, err := s.SendDocument(context.Background(), "a.pdf", "")
	var apiErr *tgbotapi.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 429, apiErr.Code)
	assert.Len(t, api.sent, 1)
}

func TestChannelSender_OtherErrors(t *testing.T) {
	api := &scriptedSender{errs: []error{&tgbotapi.Error{Code: 400, Message: "Bad Request: chat not found"}}}
	s := newTestSender(t, api, "@ish_reja_uz")

	_, err := s.SendDocument(context.Background(), "a.pdf", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
	assert.Len(t, api.sent, 1)
}

func TestChannelSender_CancelledContext(t *testing.T) {
	api := &scriptedSender{}
	s := newTestSender(t, api, "@ish_reja_uz")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.SendDocument(ctx, "a.pdf", "")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, api.sent)
}
