// Package report exports the communication log to Excel and delivers it to
// the operator on a cron schedule.
package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"relaybot/internal/commlog"
	"relaybot/internal/gateway"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Reporter renders communication log entries as an .xlsx document.
type Reporter struct {
	log commlog.Logger
	loc *time.Location
	now func() time.Time
}

// New creates a reporter that renders times in loc (UTC when nil).
func New(log commlog.Logger, loc *time.Location) *Reporter {
	if loc == nil {
		loc = time.UTC
	}
	return &Reporter{log: log, loc: loc, now: time.Now}
}

// Build returns the report for entries since the given time as a document,
// or nil when there is nothing to report.
func (r *Reporter) Build(ctx context.Context, since time.Time) (*gateway.Media, error) {
	entries, err := r.log.Entries(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("read communication log: %w", err)
	}
	if len(entries) == 0 {
		return nil, nil
	}
	data, err := commlog.ExportExcel(entries, r.loc)
	if err != nil {
		return nil, err
	}
	return &gateway.Media{
		Kind:    gateway.MediaDocument,
		Name:    commlog.ReportFilename(r.now().In(r.loc)),
		Data:    data,
		Caption: fmt.Sprintf("📊 Журнал комунікацій: %d записів", len(entries)),
	}, nil
}

// WriteFile writes the report to path. It returns the number of exported
// entries; zero entries still produce a file with only the header row.
func (r *Reporter) WriteFile(ctx context.Context, since time.Time, path string) (int, error) {
	entries, err := r.log.Entries(ctx, since)
	if err != nil {
		return 0, fmt.Errorf("read communication log: %w", err)
	}
	data, err := commlog.ExportExcel(entries, r.loc)
	if err != nil {
		return 0, err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, err
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return 0, err
	}
	return len(entries), nil
}

// Job sends the last Window of the log to the operator.
type Job struct {
	Reporter *Reporter
	Gateway  gateway.Gateway
	AdminID  int64
	Window   time.Duration
	Logger   zerolog.Logger
}

// Run builds and delivers one report. It is safe to call outside the scheduler.
func (j *Job) Run(ctx context.Context) {
	window := j.Window
	if window <= 0 {
		window = 24 * time.Hour
	}
	media, err := j.Reporter.Build(ctx, j.Reporter.now().Add(-window))
	if err != nil {
		j.Logger.Error().Err(err).Msg("scheduled report failed")
		return
	}
	if media == nil {
		j.Logger.Info().Msg("scheduled report skipped, no entries")
		return
	}
	gateway.Deliver(j.Logger.WithContext(ctx), j.Gateway, gateway.Message{ChatID: j.AdminID, Media: media})
	j.Logger.Info().Str("file", media.Name).Msg("scheduled report sent")
}

// Schedule registers job on a cron runner using a standard 5-field spec in loc.
// The caller starts and stops the returned runner.
func Schedule(spec string, loc *time.Location, job *Job) (*cron.Cron, error) {
	if loc == nil {
		loc = time.UTC
	}
	cronLog := job.Logger.With().Str("component", "cron").Logger()
	logger := cron.PrintfLogger(&cronLog)
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow|cron.Descriptor)),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger)),
	)
	if _, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		job.Run(ctx)
	}); err != nil {
		return nil, fmt.Errorf("schedule report %q: %w", spec, err)
	}
	return c, nil
}
