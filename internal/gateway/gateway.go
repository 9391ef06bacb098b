// Package gateway sends messages to chats through the Telegram Bot API.
package gateway

import (
	"context"

	"relaybot/internal/metrics"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Gateway is the outbound messaging transport.
type Gateway interface {
	SendMessage(ctx context.Context, chatID int64, text string, markup interface{}) (int, error)
	EditMessage(ctx context.Context, chatID int64, messageID int, text string, markup *tgbotapi.InlineKeyboardMarkup) error
	SendMedia(ctx context.Context, chatID int64, media Media) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

type MediaKind string

const (
	MediaPhoto    MediaKind = "photo"
	MediaDocument MediaKind = "document"
)

// Media references a Telegram file id or carries raw bytes for upload.
type Media struct {
	Kind    MediaKind
	FileID  string
	Name    string
	Data    []byte
	Caption string
}

// Message is one outbound action decided by a handler.
// EditMessageID edits an existing message instead of sending a new one.
type Message struct {
	ChatID        int64
	Text          string
	Markup        interface{}
	EditMessageID int
	Media         *Media
}

// Text builds a plain outbound message.
func Text(chatID int64, text string, markup interface{}) Message {
	return Message{ChatID: chatID, Text: text, Markup: markup}
}

// Deliver sends msgs in order. Failures are logged and counted, never returned:
// state has already been committed by the time messages go out.
func Deliver(ctx context.Context, gw Gateway, msgs ...Message) {
	l := zerolog.Ctx(ctx)
	for _, m := range msgs {
		if m.ChatID == 0 {
			l.Warn().Str("text", m.Text).Msg("outbound message without chat id dropped")
			continue
		}
		op, err := deliverOne(ctx, gw, m)
		if err != nil {
			metrics.IncGatewayError(op)
			l.Error().Err(err).Int64("chat_id", m.ChatID).Str("op", op).Msg("gateway call failed")
		}
	}
}

func deliverOne(ctx context.Context, gw Gateway, m Message) (string, error) {
	switch {
	case m.Media != nil:
		return "send_media", gw.SendMedia(ctx, m.ChatID, *m.Media)
	case m.EditMessageID != 0:
		var kb *tgbotapi.InlineKeyboardMarkup
		switch v := m.Markup.(type) {
		case tgbotapi.InlineKeyboardMarkup:
			kb = &v
		case *tgbotapi.InlineKeyboardMarkup:
			kb = v
		}
		return "edit_message", gw.EditMessage(ctx, m.ChatID, m.EditMessageID, m.Text, kb)
	default:
		_, err := gw.SendMessage(ctx, m.ChatID, m.Text, m.Markup)
		return "send_message", err
	}
}
