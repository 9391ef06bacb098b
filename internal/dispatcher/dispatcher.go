// Package dispatcher classifies inbound updates and routes them to the order
// and relay flows.
package dispatcher

import (
	"context"
	"strconv"
	"strings"
	"time"

	"relaybot/internal/catalog"
	"relaybot/internal/commlog"
	"relaybot/internal/gateway"
	"relaybot/internal/metrics"
	"relaybot/internal/order"
	"relaybot/internal/outbox"
	"relaybot/internal/ratelimit"
	"relaybot/internal/relay"
	"relaybot/internal/session"

	"github.com/rs/zerolog"
)

// Reporter builds the communication log export sent on /export.
// A nil media with a nil error means there was nothing to export.
type Reporter interface {
	Build(ctx context.Context, since time.Time) (*gateway.Media, error)
}

// Deps are the collaborators of a Dispatcher. Log, Limiter and Reporter are optional.
type Deps struct {
	Store    *session.Store
	Orders   *order.Machine
	Relay    *relay.Router
	Gateway  gateway.Gateway
	Log      commlog.Logger
	Limiter  *ratelimit.Limiter
	Reporter Reporter
	AdminID  int64
}

// Dispatcher routes classified events to the order machine and the relay router.
type Dispatcher struct {
	store    *session.Store
	orders   *order.Machine
	relay    *relay.Router
	gw       gateway.Gateway
	log      commlog.Logger
	limiter  *ratelimit.Limiter
	reporter Reporter
	adminID  int64
	now      func() time.Time
}

// New builds a dispatcher. A nil Log discards communication entries.
func New(d Deps) *Dispatcher {
	log := d.Log
	if log == nil {
		log = commlog.Nop{}
	}
	return &Dispatcher{
		store:    d.Store,
		orders:   d.Orders,
		relay:    d.Relay,
		gw:       d.Gateway,
		log:      log,
		limiter:  d.Limiter,
		reporter: d.Reporter,
		adminID:  d.AdminID,
		now:      time.Now,
	}
}

// Handle routes one event and delivers the resulting messages. It never
// fails; problems are logged on the context logger.
func (d *Dispatcher) Handle(ctx context.Context, ev Event) {
	metrics.IncEvent(ev.Kind())
	l := zerolog.Ctx(ctx)

	if cb, ok := ev.(CallbackEvent); ok {
		d.answer(ctx, cb.CallbackID)
	}
	if s, ok := eventSender(ev); ok && s.ChatID != d.adminID && !d.limiter.Allow(ctx, s.ChatID) {
		metrics.IncEventDropped("rate_limited")
		l.Warn().Int64("chat_id", s.ChatID).Str("kind", ev.Kind()).Msg("event rate limited")
		return
	}

	var out outbox.Outbox
	switch e := ev.(type) {
	case CommandEvent:
		if e.ChatID == d.adminID {
			out = d.adminCommand(ctx, e)
		} else {
			out = d.userCommand(ctx, e)
		}
	case TextEvent:
		if e.ChatID == d.adminID {
			out = d.relay.OperatorMessage(ctx, relay.Incoming{Text: e.Text, Media: e.Media})
		} else {
			out = d.userText(ctx, e)
		}
	case ContactEvent:
		out = d.orders.ShareContact(ctx, e.ChatID, order.Contact{
			Phone:     e.Phone,
			Username:  e.Username,
			FirstName: e.FirstName,
			LastName:  e.LastName,
		})
	case CallbackEvent:
		out = d.callback(ctx, e)
	case UnknownEvent:
		if e.CallbackID != "" {
			d.answer(ctx, e.CallbackID)
		}
		l.Debug().Str("reason", e.Reason).Int64("chat_id", e.ChatID).Msg("unclassified update ignored")
		return
	default:
		l.Error().Str("kind", ev.Kind()).Msg("unhandled event type")
		return
	}
	out.Flush(ctx, d.gw, d.log)
}

func (d *Dispatcher) userCommand(ctx context.Context, e CommandEvent) outbox.Outbox {
	switch e.Command {
	case catalog.CmdStart:
		return d.orders.Home(ctx, e.ChatID)
	case catalog.CmdOrder:
		return d.orders.Start(ctx, e.ChatID)
	case catalog.CmdOperator:
		return d.relay.RequestOperator(ctx, e.ChatID, e.Name())
	case catalog.CmdCancel:
		return d.orders.Cancel(ctx, e.ChatID, 0)
	case catalog.CmdClose:
		return d.relay.Close(ctx, e.ChatID, false)
	default:
		return reply(e.ChatID, catalog.TextHelp, nil)
	}
}

func (d *Dispatcher) adminCommand(ctx context.Context, e CommandEvent) outbox.Outbox {
	switch e.Command {
	case catalog.CmdQueue:
		return d.relay.Queue()
	case catalog.CmdTarget:
		if e.Args == "" {
			return d.relay.ShowTarget()
		}
		id, err := strconv.ParseInt(e.Args, 10, 64)
		if err != nil {
			return reply(d.adminID, catalog.TextAdminNoTarget, nil)
		}
		return d.relay.Accept(ctx, id)
	case catalog.CmdClose:
		if e.Args == "" {
			return d.relay.CloseTarget(ctx)
		}
		id, err := strconv.ParseInt(e.Args, 10, 64)
		if err != nil {
			return reply(d.adminID, catalog.TextAdminNoTarget, nil)
		}
		return d.relay.Close(ctx, id, true)
	case catalog.CmdExport:
		return d.export(ctx, e.Args)
	case catalog.CmdHelp:
		return reply(d.adminID, catalog.TextAdminHelp, catalog.AdminMenu)
	default:
		return reply(d.adminID, catalog.TextAdminWelcome, catalog.AdminMenu)
	}
}

// userText picks the flow for free text inside one session mutation so a
// concurrent mode change cannot split the decision from the transition.
func (d *Dispatcher) userText(ctx context.Context, e TextEvent) outbox.Outbox {
	var out outbox.Outbox
	d.store.Upsert(e.ChatID, func(st *session.State) {
		switch {
		case st.Mode == session.ModeOrderFlow:
			out = d.orders.ApplyText(ctx, e.ChatID, st, e.Text)
		case st.Mode.OperatorChat():
			out = d.relay.ApplyUserMessage(ctx, e.ChatID, st, relay.Incoming{Name: e.Name(), Text: e.Text, Media: e.Media})
		default:
			out.Send(gateway.Text(e.ChatID, catalog.TextWelcome, catalog.MainMenu))
		}
	})
	return out
}

func (d *Dispatcher) callback(ctx context.Context, e CallbackEvent) outbox.Outbox {
	switch e.Data.Scope {
	case catalog.ScopeOrder:
		switch e.Data.Action {
		case catalog.ActionDelivery:
			return d.orders.SelectDelivery(ctx, e.ChatID, e.Data.Arg, e.MessageID)
		case catalog.ActionConfirm:
			return d.orders.Confirm(ctx, e.ChatID, e.MessageID)
		case catalog.ActionCancel:
			return d.orders.Cancel(ctx, e.ChatID, e.MessageID)
		}
	case catalog.ScopeMenu:
		switch e.Data.Action {
		case catalog.ActionOrder:
			return d.orders.Start(ctx, e.ChatID)
		case catalog.ActionOperator:
			return d.relay.RequestOperator(ctx, e.ChatID, e.Name())
		}
	case catalog.ScopeRelay:
		if e.ChatID != d.adminID {
			zerolog.Ctx(ctx).Warn().Int64("chat_id", e.ChatID).Str("action", e.Data.Action).Msg("relay callback from non-operator ignored")
			return outbox.Outbox{}
		}
		userID, err := e.Data.ChatID()
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("relay callback without chat id")
			return outbox.Outbox{}
		}
		switch e.Data.Action {
		case catalog.ActionAccept:
			return d.relay.Accept(ctx, userID)
		case catalog.ActionDecline:
			return d.relay.Decline(ctx, userID)
		case catalog.ActionClose:
			return d.relay.Close(ctx, userID, true)
		}
	}
	zerolog.Ctx(ctx).Debug().Str("scope", e.Data.Scope).Str("action", e.Data.Action).Msg("callback action ignored")
	return outbox.Outbox{}
}

// export sends the communication log for the last N days (default 1).
func (d *Dispatcher) export(ctx context.Context, args string) outbox.Outbox {
	if d.reporter == nil {
		return reply(d.adminID, catalog.TextAdminExportNone, catalog.AdminMenu)
	}
	days := 1
	if n, err := strconv.Atoi(strings.TrimSpace(args)); err == nil && n > 0 {
		days = n
	}
	media, err := d.reporter.Build(ctx, d.now().AddDate(0, 0, -days))
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("export failed")
		return reply(d.adminID, catalog.TextAdminExportFail, catalog.AdminMenu)
	}
	if media == nil {
		return reply(d.adminID, catalog.TextAdminExportNone, catalog.AdminMenu)
	}
	var out outbox.Outbox
	out.Send(gateway.Message{ChatID: d.adminID, Media: media})
	return out
}

func (d *Dispatcher) answer(ctx context.Context, callbackID string) {
	if err := d.gw.AnswerCallback(ctx, callbackID, ""); err != nil {
		metrics.IncGatewayError("answer_callback")
		zerolog.Ctx(ctx).Warn().Err(err).Msg("answer callback failed")
	}
}

func reply(chatID int64, text string, markup interface{}) outbox.Outbox {
	var out outbox.Outbox
	out.Send(gateway.Text(chatID, text, markup))
	return out
}

func eventSender(ev Event) (Sender, bool) {
	switch e := ev.(type) {
	case CommandEvent:
		return e.Sender, true
	case TextEvent:
		return e.Sender, true
	case ContactEvent:
		return e.Sender, true
	case CallbackEvent:
		return e.Sender, true
	}
	return Sender{}, false
}
