// Package hours answers whether the operator desk is open at a given moment.
package hours

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

var ErrBadWindow = errors.New("invalid working hours window")

// Window is an opening interval in minutes since local midnight, [Open, Close).
type Window struct {
	Open  int
	Close int
}

// Schedule is a fixed weekly timetable in one location.
type Schedule struct {
	Location *time.Location
	Days     map[time.Weekday]Window
}

var dayKeys = map[string]time.Weekday{
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
	"sun": time.Sunday,
}

// ParseSchedule builds a schedule from config values like {"mon": "09:00-18:00", "sun": "closed"}.
// Days that are missing are treated as closed.
func ParseSchedule(timezone string, days map[string]string) (*Schedule, error) {
	loc := time.Local
	if timezone != "" {
		var err error
		loc, err = time.LoadLocation(timezone)
		if err != nil {
			return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
		}
	}

	s := &Schedule{Location: loc, Days: make(map[time.Weekday]Window, len(days))}
	for key, val := range days {
		wd, ok := dayKeys[strings.ToLower(strings.TrimSpace(key))]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", key)
		}
		val = strings.TrimSpace(val)
		if val == "" || strings.EqualFold(val, "closed") {
			continue
		}
		w, err := parseWindow(val)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		s.Days[wd] = w
	}
	return s, nil
}

func parseWindow(raw string) (Window, error) {
	from, to, ok := strings.Cut(raw, "-")
	if !ok {
		return Window{}, fmt.Errorf("%w: %q", ErrBadWindow, raw)
	}
	open, err := parseClock(from)
	if err != nil {
		return Window{}, err
	}
	closeAt, err := parseClock(to)
	if err != nil {
		return Window{}, err
	}
	if closeAt <= open {
		return Window{}, fmt.Errorf("%w: %q closes before it opens", ErrBadWindow, raw)
	}
	return Window{Open: open, Close: closeAt}, nil
}

func parseClock(raw string) (int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(raw), ":")
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrBadWindow, raw)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 24 {
		return 0, fmt.Errorf("%w: hour %q", ErrBadWindow, hh)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("%w: minute %q", ErrBadWindow, mm)
	}
	return h*60 + m, nil
}

// IsOpen reports whether now falls inside the working window of its weekday.
func (s *Schedule) IsOpen(now time.Time) bool {
	if s == nil {
		return true
	}
	loc := s.Location
	if loc == nil {
		loc = time.Local
	}
	local := now.In(loc)
	w, ok := s.Days[local.Weekday()]
	if !ok {
		return false
	}
	minute := local.Hour()*60 + local.Minute()
	return minute >= w.Open && minute < w.Close
}

// Policy holds the active schedule and allows swapping it on config reload.
type Policy struct {
	current atomic.Pointer[Schedule]
}

// NewPolicy wraps s. A nil schedule is always open.
func NewPolicy(s *Schedule) *Policy {
	p := &Policy{}
	p.current.Store(s)
	return p
}

// Set replaces the schedule. A nil schedule means always open.
func (p *Policy) Set(s *Schedule) {
	p.current.Store(s)
}

// IsOpen checks now against the current schedule.
func (p *Policy) IsOpen(now time.Time) bool {
	if p == nil {
		return true
	}
	return p.current.Load().IsOpen(now)
}
