// Package gatewaytest provides an in-memory gateway for handler tests.
package gatewaytest

import (
	"context"
	"sync"

	"relaybot/internal/gateway"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sent is one recorded gateway call.
type Sent struct {
	Op        string
	ChatID    int64
	MessageID int
	Text      string
	Markup    interface{}
	Media     *gateway.Media
}

// Recorder records every call and optionally fails them.
type Recorder struct {
	mu     sync.Mutex
	sent   []Sent
	nextID int
	Err    error
}

var _ gateway.Gateway = (*Recorder)(nil)

func (r *Recorder) record(s Sent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, s)
	return r.Err
}

func (r *Recorder) SendMessage(_ context.Context, chatID int64, text string, markup interface{}) (int, error) {
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.mu.Unlock()
	if err := r.record(Sent{Op: "send", ChatID: chatID, MessageID: id, Text: text, Markup: markup}); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *Recorder) EditMessage(_ context.Context, chatID int64, messageID int, text string, markup *tgbotapi.InlineKeyboardMarkup) error {
	var m interface{}
	if markup != nil {
		m = *markup
	}
	return r.record(Sent{Op: "edit", ChatID: chatID, MessageID: messageID, Text: text, Markup: m})
}

func (r *Recorder) SendMedia(_ context.Context, chatID int64, media gateway.Media) error {
	return r.record(Sent{Op: "media", ChatID: chatID, Text: media.Caption, Media: &media})
}

func (r *Recorder) AnswerCallback(_ context.Context, callbackID, text string) error {
	return r.record(Sent{Op: "answer", Text: text})
}

// All returns a copy of every recorded call.
func (r *Recorder) All() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Sent(nil), r.sent...)
}

// To returns sends and edits addressed to chatID.
func (r *Recorder) To(chatID int64) []Sent {
	var out []Sent
	for _, s := range r.All() {
		if s.ChatID == chatID && s.Op != "answer" {
			out = append(out, s)
		}
	}
	return out
}

// Reset forgets recorded calls.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.sent = nil
	r.mu.Unlock()
}
