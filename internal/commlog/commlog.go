// Package commlog records the conversation traffic between users, the bot and the operator.
package commlog

import (
	"context"
	"fmt"
	"time"
)

// Sender identifies who wrote a logged message.
type Sender string

const (
	SenderUser     Sender = "user"
	SenderOperator Sender = "operator"
	SenderBot      Sender = "bot"
)

// Entry is one logged message. ChatID is always the user side of the conversation.
type Entry struct {
	Time   time.Time
	Sender Sender
	ChatID int64
	Text   string
}

// Logger is an append-only communication log.
type Logger interface {
	Append(ctx context.Context, e Entry) error
	Entries(ctx context.Context, since time.Time) ([]Entry, error)
	Close() error
}

// Open selects a backend by driver name.
func Open(driver, path string) (Logger, error) {
	switch driver {
	case "", "csv":
		return NewCSVLogger(path)
	case "sqlite", "sqlite3":
		return NewSQLiteLogger(path)
	case "none":
		return Nop{}, nil
	default:
		return nil, fmt.Errorf("unknown commlog driver %q", driver)
	}
}

// Nop discards everything.
type Nop struct{}

func (Nop) Append(context.Context, Entry) error { return nil }

func (Nop) Entries(context.Context, time.Time) ([]Entry, error) { return nil, nil }

func (Nop) Close() error { return nil }

// AppendAll writes entries and returns the first error, continuing past failures.
func AppendAll(ctx context.Context, l Logger, entries ...Entry) error {
	var first error
	for _, e := range entries {
		if e.Time.IsZero() {
			e.Time = time.Now()
		}
		if err := l.Append(ctx, e); err != nil && first == nil {
			first = err
		}
	}
	return first
}
