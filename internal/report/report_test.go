package report

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"relaybot/internal/commlog"
	"relaybot/internal/gateway"
	"relaybot/internal/gateway/gatewaytest"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var now = time.Date(2024, 12, 23, 21, 0, 0, 0, time.UTC)

func newLog(t *testing.T) commlog.Logger {
	t.Helper()
	l, err := commlog.NewCSVLogger(filepath.Join(t.TempDir(), "log.csv"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func newReporter(t *testing.T, l commlog.Logger) *Reporter {
	r := New(l, time.UTC)
	r.now = func() time.Time { return now }
	return r
}

func TestBuild(t *testing.T) {
	l := newLog(t)
	ctx := context.Background()
	require.NoError(t, commlog.AppendAll(ctx, l,
		commlog.Entry{Time: now.Add(-48 * time.Hour), Sender: commlog.SenderUser, ChatID: 1, Text: "old"},
		commlog.Entry{Time: now.Add(-time.Hour), Sender: commlog.SenderUser, ChatID: 1, Text: "fresh"},
		commlog.Entry{Time: now.Add(-time.Minute), Sender: commlog.SenderOperator, ChatID: 1, Text: "reply"},
	))
	r := newReporter(t, l)

	media, err := r.Build(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	require.NotNil(t, media)
	assert.Equal(t, gateway.MediaDocument, media.Kind)
	assert.Equal(t, "communications_2024-12-23.xlsx", media.Name)

	f, err := excelize.OpenReader(bytes.NewReader(media.Data))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Communications")
	require.NoError(t, err)
	require.Len(t, rows, 3, "header plus two entries in the window")
	assert.Equal(t, "fresh", rows[1][3])
}

func TestBuildEmpty(t *testing.T) {
	r := newReporter(t, newLog(t))
	media, err := r.Build(context.Background(), now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Nil(t, media)
}

func TestWriteFile(t *testing.T) {
	l := newLog(t)
	ctx := context.Background()
	require.NoError(t, l.Append(ctx, commlog.Entry{Time: now, Sender: commlog.SenderBot, ChatID: 3, Text: "order"}))
	r := newReporter(t, l)

	path := filepath.Join(t.TempDir(), "out", "report.xlsx")
	n, err := r.WriteFile(ctx, now.Add(-time.Hour), path)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Communications")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestJobRun(t *testing.T) {
	l := newLog(t)
	ctx := context.Background()
	rec := &gatewaytest.Recorder{}
	job := &Job{Reporter: newReporter(t, l), Gateway: rec, AdminID: 9, Logger: zerolog.Nop()}

	job.Run(ctx)
	assert.Empty(t, rec.All(), "nothing sent without entries")

	require.NoError(t, l.Append(ctx, commlog.Entry{Time: now.Add(-time.Hour), Sender: commlog.SenderUser, ChatID: 3, Text: "hi"}))
	job.Run(ctx)
	sent := rec.To(9)
	require.Len(t, sent, 1)
	assert.Equal(t, "media", sent[0].Op)
	assert.Equal(t, "communications_2024-12-23.xlsx", sent[0].Media.Name)
}

func TestSchedule(t *testing.T) {
	job := &Job{Reporter: newReporter(t, newLog(t)), Gateway: &gatewaytest.Recorder{}, Logger: zerolog.Nop()}

	c, err := Schedule("0 21 * * *", time.UTC, job)
	require.NoError(t, err)
	require.Len(t, c.Entries(), 1)

	_, err = Schedule("not a cron", time.UTC, job)
	assert.Error(t, err)

	c, err = Schedule("@daily", nil, job)
	require.NoError(t, err)
	assert.Len(t, c.Entries(), 1)
}

func TestScheduleRecoversIntoJobLogger(t *testing.T) {
	var buf bytes.Buffer
	job := &Job{Logger: zerolog.New(&buf)}

	c, err := Schedule("@hourly", time.UTC, job)
	require.NoError(t, err)
	require.Len(t, c.Entries(), 1)

	assert.NotPanics(t, func() { c.Entries()[0].WrappedJob.Run() })
	assert.Contains(t, buf.String(), "panic")
	assert.Contains(t, buf.String(), `"component":"cron"`)
}
