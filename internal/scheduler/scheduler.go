package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc is invoked once per poll. at is the scheduled poll time.
type TickFunc func(ctx context.Context, at time.Time) error

// Options tune poller behaviour.
type Options struct {
	Interval time.Duration
	// Immediate runs the first poll at start instead of one interval later.
	Immediate bool
	// MaxPolls stops the poller after that many ticks; zero polls forever.
	MaxPolls int
}

// Poller invokes a tick function on a fixed cadence. Ticks never overlap:
// a slow tick delays the next one rather than running concurrently.
type Poller struct {
	opts   Options
	logger zerolog.Logger
}

// New constructs a Poller.
func New(opts Options, logger zerolog.Logger) (*Poller, error) {
	if opts.Interval <= 0 {
		return nil, errors.New("scheduler: interval must be positive")
	}
	if opts.MaxPolls < 0 {
		return nil, errors.New("scheduler: max polls cannot be negative")
	}
	return &Poller{opts: opts, logger: logger.With().Str("component", "poller").Logger()}, nil
}

// Run blocks, polling until ctx is cancelled or MaxPolls is reached. Tick
// errors are logged and do not stop the poller.
func (p *Poller) Run(ctx context.Context, tick TickFunc) error {
	next := time.Now().UTC()
	if !p.opts.Immediate {
		next = next.Add(p.opts.Interval)
	}

	for polls := 0; p.opts.MaxPolls == 0 || polls < p.opts.MaxPolls; polls++ {
		if delay := time.Until(next); delay > 0 {
			timer := time.NewTimer(delay)
			p.logger.Debug().Time("next_poll", next).Msg("waiting for next poll")
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		if err := tick(ctx, next); err != nil {
			p.logger.Error().Err(err).Time("at", next).Msg("poll failed")
		}

		next = next.Add(p.opts.Interval)
		if now := time.Now().UTC(); next.Before(now) {
			next = now
		}
	}
	return nil
}
