// Package relay connects user chats with the single operator chat.
package relay

import (
	"context"
	"strings"
	"sync"
	"time"

	"relaybot/internal/catalog"
	"relaybot/internal/commlog"
	"relaybot/internal/gateway"
	"relaybot/internal/hours"
	"relaybot/internal/metrics"
	"relaybot/internal/outbox"
	"relaybot/internal/session"

	"github.com/rs/zerolog"
)

// Route is the user chat the operator is currently addressing.
// It is only changed while holding the session lock of the chat it points to
// (or used to point to), so lock order is always session shard, then route.
type Route struct {
	mu     sync.Mutex
	target int64
}

// Target returns the bound chat or 0.
func (r *Route) Target() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.target
}

func (r *Route) bind(id int64) (previous int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	previous, r.target = r.target, id
	return previous
}

func (r *Route) release(id int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.target != id {
		return false
	}
	r.target = 0
	return true
}

// Incoming is a user or operator message to relay.
type Incoming struct {
	Name  string
	Text  string
	Media *gateway.Media
}

// Router owns the operator route and the operator-chat modes in the session store.
type Router struct {
	store   *session.Store
	route   Route
	adminID int64
	hours   *hours.Policy
	now     func() time.Time
}

// New creates a router for the single operator chat adminID. A nil policy
// means the operator is always available.
func New(store *session.Store, adminID int64, policy *hours.Policy) *Router {
	return &Router{
		store:   store,
		adminID: adminID,
		hours:   policy,
		now:     time.Now,
	}
}

// AdminID is the operator chat.
func (r *Router) AdminID() int64 { return r.adminID }

// Target returns the chat currently bound to the operator, or 0.
func (r *Router) Target() int64 { return r.route.Target() }

func (r *Router) upsert(chatID int64, fn func(st *session.State) outbox.Outbox) outbox.Outbox {
	var out outbox.Outbox
	r.store.Upsert(chatID, func(st *session.State) {
		out = fn(st)
	})
	return out
}

// RequestOperator puts the chat in the operator queue and notifies the operator.
func (r *Router) RequestOperator(ctx context.Context, chatID int64, name string) outbox.Outbox {
	return r.upsert(chatID, func(st *session.State) outbox.Outbox {
		return r.ApplyRequest(ctx, chatID, st, name)
	})
}

// ApplyRequest is RequestOperator for a state already held under the session lock.
func (r *Router) ApplyRequest(ctx context.Context, chatID int64, st *session.State, name string) outbox.Outbox {
	var out outbox.Outbox
	switch st.Mode {
	case session.ModeOrderFlow:
		out.Send(gateway.Text(chatID, catalog.TextFinishOrder, nil))
		return out
	case session.ModePendingOperator:
		out.Send(gateway.Text(chatID, catalog.TextOperatorWaiting, catalog.OperatorChatMenu))
		return out
	case session.ModeActiveOperator:
		out.Send(gateway.Text(chatID, catalog.TextOperatorConnected, catalog.OperatorChatMenu))
		return out
	}

	now := r.now()
	offHours := !r.hours.IsOpen(now)
	st.Mode = session.ModePendingOperator
	st.Name = name

	reply := catalog.TextOperatorRequested
	if offHours {
		reply = catalog.TextOperatorOffHours
	}
	out.Send(
		gateway.Text(r.adminID, catalog.AdminNewRequest(chatID, name, offHours), catalog.OperatorRequestKeyboard(chatID)),
		gateway.Text(chatID, reply, catalog.OperatorChatMenu),
	)
	out.Record(commlog.Entry{Time: now, Sender: commlog.SenderBot, ChatID: chatID, Text: "operator requested"})
	zerolog.Ctx(ctx).Info().Int64("chat_id", chatID).Bool("off_hours", offHours).Msg("operator requested")
	return out
}

// Accept binds the operator to userID. The last accept wins.
func (r *Router) Accept(ctx context.Context, userID int64) outbox.Outbox {
	return r.upsert(userID, func(st *session.State) outbox.Outbox {
		var out outbox.Outbox
		if !st.Mode.OperatorChat() {
			out.Send(gateway.Text(r.adminID, catalog.TextAdminNotWaiting, nil))
			return out
		}
		wasPending := st.Mode == session.ModePendingOperator
		st.Mode = session.ModeActiveOperator
		previous := r.route.bind(userID)
		if previous == userID && !wasPending {
			out.Send(gateway.Text(r.adminID, catalog.AdminAlreadyTarget(userID), nil))
			return out
		}

		out.Send(gateway.Text(r.adminID, catalog.AdminAccepted(userID, st.Name), catalog.AdminMenu))
		if wasPending {
			out.Send(gateway.Text(userID, catalog.TextOperatorConnected, catalog.OperatorChatMenu))
		}
		zerolog.Ctx(ctx).Info().Int64("chat_id", userID).Int64("previous", previous).Msg("operator route bound")
		return out
	})
}

// Decline refuses a queued request.
func (r *Router) Decline(ctx context.Context, userID int64) outbox.Outbox {
	return r.upsert(userID, func(st *session.State) outbox.Outbox {
		var out outbox.Outbox
		if st.Mode != session.ModePendingOperator {
			out.Send(gateway.Text(r.adminID, catalog.TextAdminNotWaiting, nil))
			return out
		}
		st.Mode = session.ModeNone
		r.route.release(userID)
		out.Send(
			gateway.Text(userID, catalog.TextOperatorDeclined, catalog.MainMenu),
			gateway.Text(r.adminID, catalog.AdminDeclined(userID), nil),
		)
		out.Record(commlog.Entry{Time: r.now(), Sender: commlog.SenderBot, ChatID: userID, Text: "operator request declined"})
		zerolog.Ctx(ctx).Info().Int64("chat_id", userID).Msg("operator request declined")
		return out
	})
}

// UserMessage forwards a message from a chat in operator mode.
func (r *Router) UserMessage(ctx context.Context, chatID int64, msg Incoming) outbox.Outbox {
	return r.upsert(chatID, func(st *session.State) outbox.Outbox {
		return r.ApplyUserMessage(ctx, chatID, st, msg)
	})
}

// ApplyUserMessage promotes a pending chat to active on its first message
// without binding the route; the operator still has to accept it to reply.
func (r *Router) ApplyUserMessage(ctx context.Context, chatID int64, st *session.State, msg Incoming) outbox.Outbox {
	var out outbox.Outbox
	if !st.Mode.OperatorChat() {
		zerolog.Ctx(ctx).Debug().Int64("chat_id", chatID).Str("mode", st.Mode.String()).Msg("user message outside operator chat ignored")
		return out
	}
	if st.Mode == session.ModePendingOperator {
		st.Mode = session.ModeActiveOperator
	}
	if msg.Name != "" {
		st.Name = msg.Name
	}

	if msg.Media != nil {
		media := *msg.Media
		media.Caption = catalog.AdminForward(chatID, st.Name, media.Caption)
		out.Send(gateway.Message{ChatID: r.adminID, Media: &media})
	}
	text := msg.Text
	if msg.Media != nil && strings.TrimSpace(text) == "" {
		text = "📎"
	}
	out.Send(gateway.Text(r.adminID, catalog.AdminForward(chatID, st.Name, text), catalog.OperatorChatKeyboard(chatID)))
	out.Record(commlog.Entry{Time: r.now(), Sender: commlog.SenderUser, ChatID: chatID, Text: logText(msg)})
	out.After(func() { metrics.IncRelayMessage("to_operator") })
	return out
}

// OperatorMessage forwards an operator message to the bound chat.
// Without a binding the message is dropped and the operator told so.
func (r *Router) OperatorMessage(ctx context.Context, msg Incoming) outbox.Outbox {
	target := r.route.Target()
	if target == 0 {
		zerolog.Ctx(ctx).Warn().Msg("operator message without target dropped")
		var out outbox.Outbox
		out.Send(gateway.Text(r.adminID, catalog.TextAdminNoTarget, nil))
		return out
	}

	var delivered bool
	out := r.upsert(target, func(st *session.State) outbox.Outbox {
		var out outbox.Outbox
		// The route may have moved between reading it and taking this lock.
		if !st.Mode.OperatorChat() || r.route.Target() != target {
			return out
		}
		delivered = true
		if msg.Media != nil {
			out.Send(gateway.Message{ChatID: target, Media: msg.Media})
		}
		if strings.TrimSpace(msg.Text) != "" {
			out.Send(gateway.Text(target, msg.Text, nil))
		}
		out.Record(commlog.Entry{Time: r.now(), Sender: commlog.SenderOperator, ChatID: target, Text: logText(msg)})
		out.After(func() { metrics.IncRelayMessage("to_user") })
		return out
	})
	if !delivered {
		zerolog.Ctx(ctx).Warn().Int64("chat_id", target).Msg("operator route went stale, message dropped")
		out.Send(gateway.Text(r.adminID, catalog.TextAdminNoTarget, nil))
	}
	return out
}

// Close ends the operator chat with userID. byOperator selects who gets the
// "nothing to close" reply.
func (r *Router) Close(ctx context.Context, userID int64, byOperator bool) outbox.Outbox {
	return r.upsert(userID, func(st *session.State) outbox.Outbox {
		var out outbox.Outbox
		if !st.Mode.OperatorChat() {
			if byOperator {
				out.Send(gateway.Text(r.adminID, catalog.TextAdminNotWaiting, nil))
			} else {
				out.Send(gateway.Text(userID, catalog.TextNoOperatorChat, menuFor(st.Mode)))
			}
			return out
		}
		st.Mode = session.ModeNone
		released := r.route.release(userID)
		out.Send(
			gateway.Text(userID, catalog.TextChatClosedUser, catalog.MainMenu),
			gateway.Text(r.adminID, catalog.AdminChatClosed(userID), catalog.AdminMenu),
		)
		out.Record(commlog.Entry{Time: r.now(), Sender: commlog.SenderBot, ChatID: userID, Text: "operator chat closed"})
		zerolog.Ctx(ctx).Info().Int64("chat_id", userID).Bool("by_operator", byOperator).Bool("route_released", released).Msg("operator chat closed")
		return out
	})
}

// CloseTarget closes the chat the operator is bound to.
func (r *Router) CloseTarget(ctx context.Context) outbox.Outbox {
	target := r.route.Target()
	if target == 0 {
		var out outbox.Outbox
		out.Send(gateway.Text(r.adminID, catalog.TextAdminNoTarget, nil))
		return out
	}
	return r.Close(ctx, target, true)
}

// Queue lists chats waiting for or talking to the operator.
func (r *Router) Queue() outbox.Outbox {
	var out outbox.Outbox
	entries := r.store.Snapshot(func(st session.State) bool { return st.Mode.OperatorChat() })
	if len(entries) == 0 {
		out.Send(gateway.Text(r.adminID, catalog.TextAdminQueueEmpty, catalog.AdminMenu))
		return out
	}
	target := r.route.Target()
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, catalog.QueueLine(e.ChatID, e.State.Mode.String(), e.ChatID == target))
	}
	out.Send(gateway.Text(r.adminID, strings.Join(lines, "\n"), catalog.AdminMenu))
	for _, e := range entries {
		if e.State.Mode == session.ModePendingOperator {
			out.Send(gateway.Text(r.adminID, catalog.AdminNewRequest(e.ChatID, e.State.Name, false), catalog.OperatorRequestKeyboard(e.ChatID)))
		}
	}
	return out
}

// ShowTarget tells the operator who they are bound to.
func (r *Router) ShowTarget() outbox.Outbox {
	var out outbox.Outbox
	out.Send(gateway.Text(r.adminID, catalog.AdminTarget(r.route.Target()), catalog.AdminMenu))
	return out
}

func logText(msg Incoming) string {
	text := msg.Text
	if msg.Media != nil {
		text = strings.TrimSpace("[" + string(msg.Media.Kind) + "] " + msg.Media.Caption + " " + text)
	}
	return text
}

func menuFor(mode session.Mode) interface{} {
	if mode.OperatorChat() {
		return catalog.OperatorChatMenu
	}
	return catalog.MainMenu
}
