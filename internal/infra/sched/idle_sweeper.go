package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// IdleExpirer is the part of the checkout use case the sweeper drives.
type IdleExpirer interface {
	ExpireIdle(ctx context.Context, cutoff time.Time) int
}

// IdleSweeper periodically cancels checkouts idle for longer than ttl.
type IdleSweeper struct {
	interval time.Duration
	ttl      time.Duration
	uc       IdleExpirer
	now      func() time.Time
	log      *zerolog.Logger
}

func NewIdleSweeper(interval, ttl time.Duration, uc IdleExpirer, logger *zerolog.Logger) *IdleSweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	l := logger.With().Str("component", "IdleSweeper").Logger()
	return &IdleSweeper{interval: interval, ttl: ttl, uc: uc, now: time.Now, log: &l}
}

func (w *IdleSweeper) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Dur("idle_ttl", w.ttl).Msg("Starting idle sweeper")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping idle sweeper")
			return ctx.Err()
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep runs one pass and returns how many attempts were cancelled.
func (w *IdleSweeper) Sweep(ctx context.Context) int {
	n := w.uc.ExpireIdle(ctx, w.now().Add(-w.ttl))
	if n > 0 {
		w.log.Info().Int("count", n).Msg("idle checkouts cancelled")
	}
	return n
}
