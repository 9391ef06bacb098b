package commlog

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func testBackends(t *testing.T) map[string]Logger {
	dir := t.TempDir()
	csvLog, err := NewCSVLogger(filepath.Join(dir, "log.csv"))
	require.NoError(t, err)
	sqliteLog, err := NewSQLiteLogger(filepath.Join(dir, "log.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = csvLog.Close()
		_ = sqliteLog.Close()
	})
	return map[string]Logger{"csv": csvLog, "sqlite": sqliteLog}
}

func TestLoggerAppendAndRead(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 12, 23, 10, 0, 0, 0, time.UTC)

	for name, l := range testBackends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, l.Append(ctx, Entry{Time: base, Sender: SenderUser, ChatID: 1, Text: "hello, \"world\"\nsecond line"}))
			require.NoError(t, l.Append(ctx, Entry{Time: base.Add(time.Hour), Sender: SenderOperator, ChatID: 1, Text: "hi"}))
			require.NoError(t, l.Append(ctx, Entry{Time: base.Add(2 * time.Hour), Sender: SenderBot, ChatID: 2, Text: "order"}))

			all, err := l.Entries(ctx, time.Time{})
			require.NoError(t, err)
			require.Len(t, all, 3)
			assert.Equal(t, "hello, \"world\"\nsecond line", all[0].Text)
			assert.Equal(t, SenderOperator, all[1].Sender)
			assert.Equal(t, int64(2), all[2].ChatID)
			assert.True(t, all[0].Time.Equal(base))

			recent, err := l.Entries(ctx, base.Add(90*time.Minute))
			require.NoError(t, err)
			require.Len(t, recent, 1)
			assert.Equal(t, "order", recent[0].Text)
		})
	}
}

func TestCSVLoggerReopenKeepsSingleHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "log.csv")
	ctx := context.Background()

	l, err := NewCSVLogger(path)
	require.NoError(t, err)
	require.NoError(t, l.Append(ctx, Entry{Sender: SenderUser, ChatID: 5, Text: "a"}))
	require.NoError(t, l.Close())

	l, err = NewCSVLogger(path)
	require.NoError(t, err)
	require.NoError(t, l.Append(ctx, Entry{Sender: SenderUser, ChatID: 5, Text: "b"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, bytes.Count(data, []byte("timestamp,sender")))

	entries, err := l.Entries(ctx, time.Time{})
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	require.NoError(t, l.Close())
	assert.ErrorIs(t, l.Append(ctx, Entry{Text: "late"}), os.ErrClosed)
	assert.NoError(t, l.Close())
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	l, err := Open("csv", filepath.Join(dir, "a.csv"))
	require.NoError(t, err)
	assert.IsType(t, &CSVLogger{}, l)
	_ = l.Close()

	l, err = Open("sqlite", filepath.Join(dir, "a.db"))
	require.NoError(t, err)
	assert.IsType(t, &SQLiteLogger{}, l)
	_ = l.Close()

	l, err = Open("none", "")
	require.NoError(t, err)
	assert.Equal(t, Nop{}, l)

	_, err = Open("kafka", "")
	assert.Error(t, err)
}

func TestAppendAllFillsTime(t *testing.T) {
	l, err := NewCSVLogger(filepath.Join(t.TempDir(), "log.csv"))
	require.NoError(t, err)
	defer l.Close()

	require.NoError(t, AppendAll(context.Background(), l,
		Entry{Sender: SenderUser, ChatID: 1, Text: "x"},
		Entry{Sender: SenderBot, ChatID: 1, Text: "y"},
	))
	entries, err := l.Entries(context.Background(), time.Now().Add(-time.Minute))
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestExportExcel(t *testing.T) {
	entries := []Entry{
		{Time: time.Date(2024, 12, 23, 10, 0, 0, 0, time.UTC), Sender: SenderUser, ChatID: 11, Text: "питання"},
		{Time: time.Date(2024, 12, 23, 10, 5, 0, 0, time.UTC), Sender: SenderOperator, ChatID: 11, Text: "відповідь"},
	}

	data, err := ExportExcel(entries, time.UTC)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "2024-12-23 10:00:00", rows[1][0])
	assert.Equal(t, "user", rows[1][1])
	assert.Equal(t, "11", rows[1][2])
	assert.Equal(t, "відповідь", rows[2][3])
}

func TestReportFilename(t *testing.T) {
	assert.Equal(t, "communications_2024-12-23.xlsx", ReportFilename(time.Date(2024, 12, 23, 21, 0, 0, 0, time.UTC)))
}
