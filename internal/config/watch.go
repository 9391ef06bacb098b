package config

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Watch polls path for modification and calls onUpdate with every config
// that parses. Invalid edits are logged and skipped; the last good config
// stays in effect.
func Watch(ctx context.Context, path string, interval time.Duration, logger zerolog.Logger, onUpdate func(*Config)) error {
	if path == "" {
		path = DefaultPath
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	lastMod := info.ModTime()

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				info, err := os.Stat(path)
				if err != nil {
					continue // transient errors
				}
				if !info.ModTime().After(lastMod) {
					continue
				}
				lastMod = info.ModTime()

				data, err := os.ReadFile(path)
				if err != nil {
					logger.Warn().Err(err).Str("path", path).Msg("config reload read failed")
					continue
				}
				cfg, err := Parse(data)
				if err != nil {
					logger.Warn().Err(err).Str("path", path).Msg("config reload rejected")
					continue
				}
				if onUpdate != nil {
					onUpdate(cfg)
				}
			}
		}
	}()

	return nil
}
