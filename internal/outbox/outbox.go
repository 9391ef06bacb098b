// Package outbox collects the side effects of a session transition so they
// can be decided under the session lock and performed after it is released.
package outbox

import (
	"context"

	"relaybot/internal/commlog"
	"relaybot/internal/gateway"

	"github.com/rs/zerolog"
)

// Outbox holds outbound messages, communication log entries and post-commit hooks.
type Outbox struct {
	Messages []gateway.Message
	Log      []commlog.Entry
	after    []func()
}

// Send queues outbound messages.
func (o *Outbox) Send(msgs ...gateway.Message) {
	o.Messages = append(o.Messages, msgs...)
}

// Record queues communication log entries.
func (o *Outbox) Record(entries ...commlog.Entry) {
	o.Log = append(o.Log, entries...)
}

// After registers fn to run once the transition has been committed.
func (o *Outbox) After(fn func()) {
	o.after = append(o.after, fn)
}

// Merge appends everything queued in other.
func (o *Outbox) Merge(other Outbox) {
	o.Messages = append(o.Messages, other.Messages...)
	o.Log = append(o.Log, other.Log...)
	o.after = append(o.after, other.after...)
}

// Empty reports whether nothing was queued.
func (o Outbox) Empty() bool {
	return len(o.Messages) == 0 && len(o.Log) == 0 && len(o.after) == 0
}

// Flush runs hooks, writes the log and delivers messages. It never fails:
// errors are logged against the context logger.
func (o Outbox) Flush(ctx context.Context, gw gateway.Gateway, log commlog.Logger) {
	for _, fn := range o.after {
		fn()
	}
	if log != nil && len(o.Log) > 0 {
		if err := commlog.AppendAll(ctx, log, o.Log...); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("communication log append failed")
		}
	}
	if gw != nil {
		gateway.Deliver(ctx, gw, o.Messages...)
	}
}
