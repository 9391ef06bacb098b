package commlog

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

var csvHeader = []string{"timestamp", "sender", "chat_id", "text"}

// CSVLogger appends entries to a CSV file.
type CSVLogger struct {
	mu   sync.Mutex
	path string
	f    *os.File
	w    *csv.Writer
}

// NewCSVLogger opens path for appending and writes the header to a new file.
func NewCSVLogger(path string) (*CSVLogger, error) {
	if path == "" {
		path = "data/communications.csv"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open commlog: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	l := &CSVLogger{path: path, f: f, w: csv.NewWriter(f)}
	if info.Size() == 0 {
		if err := l.w.Write(csvHeader); err != nil {
			f.Close()
			return nil, err
		}
		l.w.Flush()
		if err := l.w.Error(); err != nil {
			f.Close()
			return nil, err
		}
	}
	return l, nil
}

func (l *CSVLogger) Append(_ context.Context, e Entry) error {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return os.ErrClosed
	}
	if err := l.w.Write([]string{
		e.Time.UTC().Format(time.RFC3339),
		string(e.Sender),
		strconv.FormatInt(e.ChatID, 10),
		e.Text,
	}); err != nil {
		return err
	}
	l.w.Flush()
	return l.w.Error()
}

// Entries reads the file back. Malformed rows are skipped.
func (l *CSVLogger) Entries(_ context.Context, since time.Time) ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(csvHeader)
	var out []Entry
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				continue
			}
			return nil, err
		}
		ts, err := time.Parse(time.RFC3339, rec[0])
		if err != nil {
			continue // header or garbage
		}
		if ts.Before(since) {
			continue
		}
		chatID, err := strconv.ParseInt(rec[2], 10, 64)
		if err != nil {
			continue
		}
		out = append(out, Entry{Time: ts, Sender: Sender(rec[1]), ChatID: chatID, Text: rec[3]})
	}
	return out, nil
}

func (l *CSVLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	l.w.Flush()
	err := l.f.Close()
	l.f = nil
	return err
}
