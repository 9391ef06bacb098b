// Package idle runs a background heartbeat that logs simulated activity at
// random intervals.
package idle

import (
	"context"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"relaybot/internal/metrics"

	"github.com/rs/zerolog"
)

// DefaultJoinTimeout bounds how long Stop waits for the loop.
const DefaultJoinTimeout = 2 * time.Second

// Config bounds the random sleep between ticks.
type Config struct {
	Min         time.Duration
	Max         time.Duration
	JoinTimeout time.Duration
}

// DefaultConfig returns the default simulator configuration.
func DefaultConfig() Config {
	return Config{
		Min:         5 * time.Minute,
		Max:         15 * time.Minute,
		JoinTimeout: DefaultJoinTimeout,
	}
}

// Simulator is started once per process. Start and Stop are idempotent and a
// stopped simulator is never restarted.
type Simulator struct {
	cfg    Config
	logger zerolog.Logger
	jitter func(n int64) int64

	mu        sync.Mutex
	running   bool
	stopped   bool
	startedAt time.Time
	stopCh    chan struct{}
	done      chan struct{}

	ticks atomic.Int64
}

// New creates a stopped simulator. Max below Min collapses to Min.
func New(cfg Config, logger zerolog.Logger) *Simulator {
	if cfg.Min <= 0 {
		cfg.Min = time.Second
	}
	if cfg.Max < cfg.Min {
		cfg.Max = cfg.Min
	}
	if cfg.JoinTimeout <= 0 {
		cfg.JoinTimeout = DefaultJoinTimeout
	}
	return &Simulator{
		cfg:    cfg,
		logger: logger.With().Str("component", "idle").Logger(),
		jitter: rand.Int64N,
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start launches the loop. It returns immediately.
func (s *Simulator) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running || s.stopped {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info().
		Dur("min", s.cfg.Min).
		Dur("max", s.cfg.Max).
		Msg("idle simulator started")

	go s.loop(ctx)
}

// Stop signals the loop and waits up to the join timeout for it to exit.
// It reports whether the loop finished in time.
func (s *Simulator) Stop() bool {
	s.mu.Lock()
	if !s.running {
		s.stopped = true
		s.mu.Unlock()
		return true
	}
	s.running = false
	s.stopped = true
	close(s.stopCh)
	started := s.startedAt
	s.mu.Unlock()

	select {
	case <-s.done:
		s.logger.Info().
			Int64("ticks", s.ticks.Load()).
			Dur("uptime", time.Since(started)).
			Msg("idle simulator stopped")
		return true
	case <-time.After(s.cfg.JoinTimeout):
		s.logger.Warn().Dur("timeout", s.cfg.JoinTimeout).Msg("idle simulator did not stop in time")
		return false
	}
}

// Running reports whether the loop has been started and not stopped.
func (s *Simulator) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Ticks returns the number of completed ticks.
func (s *Simulator) Ticks() int64 {
	return s.ticks.Load()
}

func (s *Simulator) loop(ctx context.Context) {
	defer close(s.done)

	for {
		wait := s.interval()
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.mu.Lock()
			s.running = false
			s.stopped = true
			s.mu.Unlock()
			s.logger.Debug().Msg("idle simulator stopped by context")
			return
		case <-s.stopCh:
			timer.Stop()
			return
		case <-timer.C:
			s.tick(wait)
		}
	}
}

func (s *Simulator) interval() time.Duration {
	span := int64(s.cfg.Max - s.cfg.Min)
	if span <= 0 {
		return s.cfg.Min
	}
	return s.cfg.Min + time.Duration(s.jitter(span+1))
}

func (s *Simulator) tick(waited time.Duration) {
	n := s.ticks.Add(1)
	metrics.IncIdleTick()
	s.logger.Info().
		Int64("tick", n).
		Dur("slept", waited).
		Msg("simulated activity")
}
