package dispatcher

import (
	"strings"

	"relaybot/internal/catalog"
	"relaybot/internal/gateway"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Event is one classified inbound update. The set of implementations is closed.
type Event interface {
	Kind() string
	isEvent()
}

// Sender identifies who an event came from and which chat to answer in.
type Sender struct {
	UserID    int64
	ChatID    int64
	Username  string
	FirstName string
	LastName  string
}

func (s Sender) Name() string {
	return catalog.DisplayName(s.Username, s.FirstName, s.LastName)
}

// CommandEvent is a slash command or a menu button press.
type CommandEvent struct {
	Sender
	Command catalog.Command
	Args    string
}

// TextEvent is free text, optionally with attached media. For media the
// caption is carried in Text.
type TextEvent struct {
	Sender
	Text  string
	Media *gateway.Media
}

// ContactEvent is a phone number shared with the contact button.
type ContactEvent struct {
	Sender
	Phone string
}

// CallbackEvent is an inline button press with decoded data.
type CallbackEvent struct {
	Sender
	CallbackID string
	MessageID  int
	Data       catalog.Callback
}

// UnknownEvent is acknowledged and dropped. CallbackID is set when the
// update was a button press whose data could not be decoded.
type UnknownEvent struct {
	Reason     string
	ChatID     int64
	CallbackID string
}

func (CommandEvent) Kind() string { return "command" }
func (TextEvent) Kind() string { return "text" }
func (ContactEvent) Kind() string { return "contact" }
func (CallbackEvent) Kind() string { return "callback" }
func (UnknownEvent) Kind() string { return "unknown" }

func (CommandEvent) isEvent() {}
func (TextEvent) isEvent() {}
func (ContactEvent) isEvent() {}
func (CallbackEvent) isEvent() {}
func (UnknownEvent) isEvent() {}

// Classify maps a Telegram update to exactly one event.
func Classify(u *tgbotapi.Update) Event {
	if u == nil {
		return UnknownEvent{Reason: "empty update"}
	}
	if cq := u.CallbackQuery; cq != nil {
		return classifyCallback(cq)
	}
	if u.Message != nil {
		return classifyMessage(u.Message)
	}
	return UnknownEvent{Reason: "unsupported update"}
}

func classifyCallback(cq *tgbotapi.CallbackQuery) Event {
	if cq.From == nil {
		return UnknownEvent{Reason: "callback without sender", CallbackID: cq.ID}
	}
	s := senderOf(cq.From, cq.From.ID)
	messageID := 0
	if cq.Message != nil {
		messageID = cq.Message.MessageID
		if cq.Message.Chat != nil {
			s.ChatID = cq.Message.Chat.ID
		}
	}
	data, err := catalog.DecodeCallback(cq.Data)
	if err != nil {
		return UnknownEvent{Reason: err.Error(), ChatID: s.ChatID, CallbackID: cq.ID}
	}
	return CallbackEvent{Sender: s, CallbackID: cq.ID, MessageID: messageID, Data: data}
}

func classifyMessage(m *tgbotapi.Message) Event {
	if m.From == nil || m.Chat == nil {
		return UnknownEvent{Reason: "message without sender"}
	}
	s := senderOf(m.From, m.Chat.ID)

	if m.Contact != nil {
		return ContactEvent{Sender: s, Phone: m.Contact.PhoneNumber}
	}
	if media := mediaOf(m); media != nil {
		return TextEvent{Sender: s, Text: strings.TrimSpace(m.Caption), Media: media}
	}

	text := strings.TrimSpace(m.Text)
	if text == "" {
		return UnknownEvent{Reason: "no text", ChatID: s.ChatID}
	}
	cmd, args, isSlash, ok := catalog.ParseCommand(text)
	switch {
	case ok:
		return CommandEvent{Sender: s, Command: cmd, Args: args}
	case isSlash:
		return UnknownEvent{Reason: "unknown command", ChatID: s.ChatID}
	}
	return TextEvent{Sender: s, Text: text}
}

func senderOf(u *tgbotapi.User, chatID int64) Sender {
	return Sender{
		UserID:    u.ID,
		ChatID:    chatID,
		Username:  u.UserName,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

func mediaOf(m *tgbotapi.Message) *gateway.Media {
	switch {
	case len(m.Photo) > 0:
		// Telegram lists sizes smallest first.
		largest := m.Photo[len(m.Photo)-1]
		return &gateway.Media{Kind: gateway.MediaPhoto, FileID: largest.FileID}
	case m.Document != nil:
		return &gateway.Media{Kind: gateway.MediaDocument, FileID: m.Document.FileID, Name: m.Document.FileName}
	}
	return nil
}
