package commlog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
)

const schema = `
CREATE TABLE IF NOT EXISTS communications (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at DATETIME NOT NULL,
	sender     TEXT NOT NULL,
	chat_id    INTEGER NOT NULL,
	text       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_communications_created_at ON communications(created_at);
`

// SQLiteLogger stores entries in a SQLite table.
type SQLiteLogger struct {
	db *sql.DB
}

// NewSQLiteLogger opens the database at path and creates the table if needed.
func NewSQLiteLogger(path string) (*SQLiteLogger, error) {
	if path == "" {
		path = "data/communications.db"
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate commlog: %w", err)
	}
	return &SQLiteLogger{db: db}, nil
}

func (l *SQLiteLogger) Append(ctx context.Context, e Entry) error {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO communications (created_at, sender, chat_id, text) VALUES (?, ?, ?, ?)`,
		e.Time.UTC(), string(e.Sender), e.ChatID, e.Text)
	return err
}

func (l *SQLiteLogger) Entries(ctx context.Context, since time.Time) (entries []Entry, err error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT created_at, sender, chat_id, text FROM communications WHERE created_at >= ? ORDER BY id`,
		since.UTC())
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	for rows.Next() {
		var e Entry
		var sender string
		if err = rows.Scan(&e.Time, &sender, &e.ChatID, &e.Text); err != nil {
			return nil, err
		}
		e.Sender = Sender(sender)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (l *SQLiteLogger) Close() error {
	return l.db.Close()
}
