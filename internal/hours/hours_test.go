package hours

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSchedule(t *testing.T) {
	s, err := ParseSchedule("UTC", map[string]string{
		"mon": "09:00-18:00",
		"sat": "10:30-14:00",
		"sun": "closed",
	})
	require.NoError(t, err)

	assert.Equal(t, Window{Open: 9 * 60, Close: 18 * 60}, s.Days[time.Monday])
	assert.Equal(t, Window{Open: 10*60 + 30, Close: 14 * 60}, s.Days[time.Saturday])
	_, ok := s.Days[time.Sunday]
	assert.False(t, ok)
}

func TestParseScheduleErrors(t *testing.T) {
	tests := []struct {
		name string
		days map[string]string
	}{
		{"unknown day", map[string]string{"funday": "09:00-10:00"}},
		{"no dash", map[string]string{"mon": "09:00"}},
		{"inverted", map[string]string{"mon": "18:00-09:00"}},
		{"bad minute", map[string]string{"mon": "09:75-10:00"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSchedule("UTC", tt.days)
			assert.Error(t, err)
		})
	}

	_, err := ParseSchedule("UTC", map[string]string{"mon": "18:00-09:00"})
	assert.True(t, errors.Is(err, ErrBadWindow))

	_, err = ParseSchedule("Mars/Olympus", nil)
	assert.Error(t, err)
}

func TestIsOpen(t *testing.T) {
	kyiv, err := time.LoadLocation("Europe/Kyiv")
	require.NoError(t, err)
	s, err := ParseSchedule("Europe/Kyiv", map[string]string{"mon": "09:00-18:00"})
	require.NoError(t, err)

	// 2024-12-23 is a Monday.
	tests := []struct {
		name string
		at   time.Time
		open bool
	}{
		{"before opening", time.Date(2024, 12, 23, 8, 59, 0, 0, kyiv), false},
		{"at opening", time.Date(2024, 12, 23, 9, 0, 0, 0, kyiv), true},
		{"midday", time.Date(2024, 12, 23, 13, 0, 0, 0, kyiv), true},
		{"at closing", time.Date(2024, 12, 23, 18, 0, 0, 0, kyiv), false},
		{"closed day", time.Date(2024, 12, 24, 12, 0, 0, 0, kyiv), false},
		{"utc input converted", time.Date(2024, 12, 23, 8, 0, 0, 0, time.UTC), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.open, s.IsOpen(tt.at))
		})
	}
}

func TestPolicySwap(t *testing.T) {
	closed, err := ParseSchedule("UTC", nil)
	require.NoError(t, err)

	p := NewPolicy(closed)
	now := time.Date(2024, 12, 23, 12, 0, 0, 0, time.UTC)
	assert.False(t, p.IsOpen(now))

	p.Set(nil)
	assert.True(t, p.IsOpen(now))
}
