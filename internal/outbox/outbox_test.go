package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"relaybot/internal/commlog"
	"relaybot/internal/gateway"
	"relaybot/internal/gateway/gatewaytest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memLog struct {
	entries []commlog.Entry
	err     error
}

func (m *memLog) Append(_ context.Context, e commlog.Entry) error {
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, e)
	return nil
}

func (m *memLog) Entries(context.Context, time.Time) ([]commlog.Entry, error) {
	return m.entries, nil
}

func (m *memLog) Close() error { return nil }

func TestFlushOrder(t *testing.T) {
	rec := &gatewaytest.Recorder{}
	log := &memLog{}

	var out Outbox
	assert.True(t, out.Empty())

	var hooked int
	out.Send(gateway.Text(1, "hello", nil), gateway.Text(2, "admin", nil))
	out.Record(commlog.Entry{Sender: commlog.SenderBot, ChatID: 1, Text: "hello"})
	out.After(func() { hooked++ })
	assert.False(t, out.Empty())

	out.Flush(context.Background(), rec, log)

	assert.Equal(t, 1, hooked)
	require.Len(t, log.entries, 1)
	assert.False(t, log.entries[0].Time.IsZero())
	require.Len(t, rec.All(), 2)
	assert.Equal(t, "hello", rec.To(1)[0].Text)
	assert.Equal(t, "admin", rec.To(2)[0].Text)
}

func TestMerge(t *testing.T) {
	var a, b Outbox
	var calls []string
	a.Send(gateway.Text(1, "a", nil))
	a.After(func() { calls = append(calls, "a") })
	b.Send(gateway.Text(1, "b", nil))
	b.Record(commlog.Entry{ChatID: 1, Text: "b"})
	b.After(func() { calls = append(calls, "b") })

	a.Merge(b)
	require.Len(t, a.Messages, 2)
	require.Len(t, a.Log, 1)

	a.Flush(context.Background(), nil, nil)
	assert.Equal(t, []string{"a", "b"}, calls)
}

func TestFlushLogFailureStillDelivers(t *testing.T) {
	rec := &gatewaytest.Recorder{}
	var out Outbox
	out.Send(gateway.Text(5, "still sent", nil))
	out.Record(commlog.Entry{ChatID: 5, Text: "x"})

	out.Flush(context.Background(), rec, &memLog{err: errors.New("disk full")})

	require.Len(t, rec.To(5), 1)
	assert.Equal(t, "still sent", rec.To(5)[0].Text)
}

func greeting(chatID int64) Outbox {
	var out Outbox
	out.Send(gateway.Text(chatID, "hi", nil))
	return out
}

func TestFlushOnReturnedValue(t *testing.T) {
	rec := &gatewaytest.Recorder{}

	assert.False(t, greeting(3).Empty())
	assert.True(t, Outbox{}.Empty())
	greeting(3).Flush(context.Background(), rec, nil)

	require.Len(t, rec.To(3), 1)
	assert.Equal(t, "hi", rec.To(3)[0].Text)
}
