// Package order implements the product -> delivery -> phone -> confirmation dialog.
package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"relaybot/internal/catalog"
	"relaybot/internal/commlog"
	"relaybot/internal/gateway"
	"relaybot/internal/metrics"
	"relaybot/internal/outbox"
	"relaybot/internal/session"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Contact is a phone number shared through the contact button, plus the sender's names.
type Contact struct {
	Phone     string
	Username  string
	FirstName string
	LastName  string
}

// Machine drives the order dialog on top of the session store. Every method
// decides the transition and its notifications inside one store mutation;
// the returned outbox is flushed by the caller after the lock is released.
//
// The Apply* variants work on a state the caller already holds inside
// Store.Upsert, so the dispatcher can pick between flows atomically.
type Machine struct {
	store   *session.Store
	adminID int64
	now     func() time.Time
	newID   func() string
}

// New creates a machine that reports confirmed orders to adminID.
func New(store *session.Store, adminID int64) *Machine {
	return &Machine{
		store:   store,
		adminID: adminID,
		now:     time.Now,
		newID: func() string {
			return strings.ToUpper(uuid.NewString()[:8])
		},
	}
}

func (m *Machine) upsert(chatID int64, fn func(st *session.State) outbox.Outbox) outbox.Outbox {
	var out outbox.Outbox
	m.store.Upsert(chatID, func(st *session.State) {
		out = fn(st)
	})
	return out
}

// Start enters the order flow, restarting it when one is already in progress.
func (m *Machine) Start(ctx context.Context, chatID int64) outbox.Outbox {
	return m.upsert(chatID, func(st *session.State) outbox.Outbox {
		return m.ApplyStart(ctx, chatID, st)
	})
}

// ApplyStart is Start for a state already held under the session lock.
func (m *Machine) ApplyStart(ctx context.Context, chatID int64, st *session.State) outbox.Outbox {
	var out outbox.Outbox
	if st.Mode.OperatorChat() {
		zerolog.Ctx(ctx).Debug().Int64("chat_id", chatID).Str("mode", st.Mode.String()).Msg("order start refused during operator chat")
		out.Send(gateway.Text(chatID, catalog.TextInOperatorChat, nil))
		return out
	}
	st.Mode = session.ModeOrderFlow
	st.Order = &session.Order{Stage: session.StageAwaitingProduct, StartedAt: m.now()}
	out.Send(gateway.Text(chatID, catalog.TextAskProduct, catalog.CancelKeyboard()))
	out.After(func() { metrics.IncOrderTransition(session.StageAwaitingProduct.String()) })
	return out
}

// SubmitText handles free text; only the product stage consumes it.
func (m *Machine) SubmitText(ctx context.Context, chatID int64, text string) outbox.Outbox {
	return m.upsert(chatID, func(st *session.State) outbox.Outbox {
		return m.ApplyText(ctx, chatID, st, text)
	})
}

// ApplyText is SubmitText for a state already held under the session lock.
func (m *Machine) ApplyText(ctx context.Context, chatID int64, st *session.State, text string) outbox.Outbox {
	var out outbox.Outbox
	if !m.expect(ctx, chatID, st, session.StageAwaitingProduct, "text") {
		return out
	}
	product := strings.TrimSpace(text)
	if product == "" {
		out.Send(gateway.Text(chatID, catalog.TextEmptyProduct, catalog.CancelKeyboard()))
		return out
	}
	st.Order.Product = product
	st.Order.Stage = session.StageAwaitingDelivery
	out.Send(gateway.Text(chatID, catalog.TextAskDelivery, catalog.DeliveryKeyboard()))
	out.After(func() { metrics.IncOrderTransition(session.StageAwaitingDelivery.String()) })
	return out
}

// SelectDelivery stores the delivery option picked on the inline keyboard.
func (m *Machine) SelectDelivery(ctx context.Context, chatID int64, option string, messageID int) outbox.Outbox {
	return m.upsert(chatID, func(st *session.State) outbox.Outbox {
		var out outbox.Outbox
		if !m.expect(ctx, chatID, st, session.StageAwaitingDelivery, "delivery") {
			return out
		}
		label, ok := catalog.DeliveryLabel(option)
		if !ok {
			zerolog.Ctx(ctx).Warn().Int64("chat_id", chatID).Str("option", option).Msg("unknown delivery option ignored")
			return out
		}
		st.Order.Delivery = option
		st.Order.Stage = session.StageAwaitingPhone
		if messageID != 0 {
			out.Send(gateway.Message{ChatID: chatID, EditMessageID: messageID, Text: catalog.DeliveryChosen(label)})
		}
		out.Send(gateway.Text(chatID, catalog.TextAskPhone, catalog.ContactRequest))
		out.After(func() { metrics.IncOrderTransition(session.StageAwaitingPhone.String()) })
		return out
	})
}

// ShareContact stores the phone and moves to confirmation.
func (m *Machine) ShareContact(ctx context.Context, chatID int64, c Contact) outbox.Outbox {
	return m.upsert(chatID, func(st *session.State) outbox.Outbox {
		var out outbox.Outbox
		if !m.expect(ctx, chatID, st, session.StageAwaitingPhone, "contact") {
			return out
		}
		phone, ok := NormalizePhone(c.Phone)
		if !ok {
			out.Send(gateway.Text(chatID, catalog.TextBadPhone, catalog.ContactRequest))
			return out
		}
		st.Order.Phone = phone
		st.Order.Username = catalog.DisplayName(c.Username, c.FirstName, c.LastName)
		st.Order.Stage = session.StageAwaitingConfirmation

		summary := catalog.OrderSummary(st.Order.Product, catalog.DeliveryText(st.Order.Delivery), phone)
		out.Send(
			gateway.Text(chatID, catalog.DeliveryChosen(catalog.DeliveryText(st.Order.Delivery)), tgbotapi.NewRemoveKeyboard(true)),
			gateway.Text(chatID, summary, catalog.ConfirmKeyboard()),
		)
		out.After(func() { metrics.IncOrderTransition(session.StageAwaitingConfirmation.String()) })
		return out
	})
}

// Confirm hands the finished order to the operator and clears the session.
func (m *Machine) Confirm(ctx context.Context, chatID int64, messageID int) outbox.Outbox {
	return m.upsert(chatID, func(st *session.State) outbox.Outbox {
		var out outbox.Outbox
		if !m.expect(ctx, chatID, st, session.StageAwaitingConfirmation, "confirm") {
			return out
		}
		o := *st.Order
		id := m.newID()
		st.Mode = session.ModeNone
		st.Order = nil

		delivery := catalog.DeliveryText(o.Delivery)
		if messageID != 0 {
			out.Send(gateway.Message{
				ChatID:        chatID,
				EditMessageID: messageID,
				Text:          catalog.OrderSummary(o.Product, delivery, o.Phone) + "\n\n" + catalog.TextOrderConfirmed,
			})
		}
		out.Send(
			gateway.Text(m.adminID, catalog.AdminOrder(id, chatID, o.Username, o.Product, delivery, o.Phone), nil),
			gateway.Text(chatID, catalog.OrderAccepted(id), catalog.MainMenu),
		)
		out.Record(commlog.Entry{
			Time:   m.now(),
			Sender: commlog.SenderBot,
			ChatID: chatID,
			Text:   fmt.Sprintf("order %s: %s | %s | %s | %s", id, o.Product, o.Delivery, o.Phone, o.Username),
		})
		out.After(func() {
			metrics.IncOrderConfirmed()
			metrics.IncOrderTransition("confirmed")
		})
		zerolog.Ctx(ctx).Info().Int64("chat_id", chatID).Str("order_id", id).Msg("order confirmed")
		return out
	})
}

// Cancel clears the order flow. It is always legal and leaves operator chats alone.
func (m *Machine) Cancel(ctx context.Context, chatID int64, messageID int) outbox.Outbox {
	return m.upsert(chatID, func(st *session.State) outbox.Outbox {
		return m.ApplyCancel(ctx, chatID, st, messageID)
	})
}

// ApplyCancel is Cancel for a state already held under the session lock.
func (m *Machine) ApplyCancel(ctx context.Context, chatID int64, st *session.State, messageID int) outbox.Outbox {
	var out outbox.Outbox
	if !m.clear(ctx, chatID, st) {
		out.Send(gateway.Text(chatID, catalog.TextNothingToCancel, menuFor(st.Mode)))
		return out
	}
	if messageID != 0 {
		out.Send(gateway.Message{ChatID: chatID, EditMessageID: messageID, Text: catalog.TextOrderCancelled})
	} else {
		out.Send(gateway.Text(chatID, catalog.TextOrderCancelled, nil))
	}
	out.Send(gateway.Text(chatID, catalog.TextWelcome, catalog.MainMenu))
	return out
}

// Home handles /start: drops any order in progress and shows the menu.
func (m *Machine) Home(ctx context.Context, chatID int64) outbox.Outbox {
	return m.upsert(chatID, func(st *session.State) outbox.Outbox {
		return m.ApplyHome(ctx, chatID, st)
	})
}

// ApplyHome is Home for a state already held under the session lock.
func (m *Machine) ApplyHome(ctx context.Context, chatID int64, st *session.State) outbox.Outbox {
	var out outbox.Outbox
	m.clear(ctx, chatID, st)
	out.Send(gateway.Text(chatID, catalog.TextWelcome, menuFor(st.Mode)))
	return out
}

func (m *Machine) clear(ctx context.Context, chatID int64, st *session.State) bool {
	if st.Mode != session.ModeOrderFlow {
		return false
	}
	stage := st.Order.Stage
	st.Mode = session.ModeNone
	st.Order = nil
	zerolog.Ctx(ctx).Debug().Int64("chat_id", chatID).Str("stage", stage.String()).Msg("order flow cleared")
	return true
}

// expect reports whether st is in the order flow at stage; mismatches are logged and ignored.
func (m *Machine) expect(ctx context.Context, chatID int64, st *session.State, stage session.Stage, event string) bool {
	if st.Mode == session.ModeOrderFlow && st.Order != nil && st.Order.Stage == stage {
		return true
	}
	ev := zerolog.Ctx(ctx).Debug().Int64("chat_id", chatID).Str("event", event).Str("mode", st.Mode.String())
	if st.Order != nil {
		ev = ev.Str("stage", st.Order.Stage.String())
	}
	ev.Msg("event does not match order stage, ignored")
	return false
}

func menuFor(mode session.Mode) interface{} {
	if mode.OperatorChat() {
		return catalog.OperatorChatMenu
	}
	return catalog.MainMenu
}

// NormalizePhone converts a shared phone number to +<digits>.
func NormalizePhone(raw string) (string, bool) {
	digits := filterDigits(raw)
	if len(digits) < 10 || len(digits) > 15 {
		return "", false
	}
	return "+" + digits, true
}

func filterDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
