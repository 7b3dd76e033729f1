package retrieval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"whalewatch/internal/alert"
	"whalewatch/internal/metrics"
)

// ErrAllSourcesFailed is returned when every source in the chain errored.
var ErrAllSourcesFailed = errors.New("retrieval: all sources failed")

const (
	defaultStepTimeout    = 3 * time.Second
	defaultRequestTimeout = 10 * time.Second
	defaultLimit          = 50
	defaultMaxLimit       = 200
)

// Query selects recent whale activity.
type Query struct {
	ChannelID string
	Limit     int
}

// Source yields raw records newest first.
type Source interface {
	Name() string
	Fetch(ctx context.Context, q Query) ([]alert.RawRecord, error)
}

// Options tune chain behaviour.
type Options struct {
	StepTimeout    time.Duration
	RequestTimeout time.Duration
	DefaultLimit   int
	MaxLimit       int
	Metrics        *metrics.Metrics
}

// Chain tries its sources strictly in order and returns the first usable result.
type Chain struct {
	sources []Source
	opts    Options
	logger  zerolog.Logger
}

// NewChain builds a chain over sources in priority order.
func NewChain(opts Options, logger zerolog.Logger, sources ...Source) *Chain {
	if opts.StepTimeout <= 0 {
		opts.StepTimeout = defaultStepTimeout
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = defaultLimit
	}
	if opts.MaxLimit <= 0 {
		opts.MaxLimit = defaultMaxLimit
	}
	return &Chain{
		sources: sources,
		opts:    opts,
		logger:  logger.With().Str("component", "retrieval_chain").Logger(),
	}
}

// Sources lists the source names in attempt order.
func (c *Chain) Sources() []string {
	names := make([]string, len(c.sources))
	for i, src := range c.sources {
		names[i] = src.Name()
	}
	return names
}

// FetchRecent walks the chain. A source that errors or yields no whale
// activity hands over to the next one. The result is nil-error and possibly
// empty unless every source errored.
func (c *Chain) FetchRecent(ctx context.Context, q Query) ([]alert.WhaleActivity, error) {
	q.Limit = c.clampLimit(q.Limit)

	ctx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	defer cancel()

	var errs []error
	healthy := false
	for _, src := range c.sources {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		records, err := c.attempt(ctx, src, q)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
			continue
		}
		healthy = true

		activity := alert.NormalizeAll(records)
		if len(activity) == 0 {
			c.logger.Debug().Str("source", src.Name()).Int("records", len(records)).Msg("source yielded no whale activity")
			continue
		}

		c.logger.Debug().Str("source", src.Name()).Int("activity", len(activity)).Msg("serving whale activity")
		return activity, nil
	}

	if !healthy {
		err := errors.Join(append([]error{ErrAllSourcesFailed}, errs...)...)
		c.logger.Error().Err(err).Msg("no whale activity source available")
		return []alert.WhaleActivity{}, err
	}
	return []alert.WhaleActivity{}, nil
}

func (c *Chain) attempt(ctx context.Context, src Source, q Query) ([]alert.RawRecord, error) {
	stepCtx, cancel := context.WithTimeout(ctx, c.opts.StepTimeout)
	defer cancel()

	started := time.Now()
	records, err := src.Fetch(stepCtx, q)
	elapsed := time.Since(started)

	switch {
	case err != nil:
		c.opts.Metrics.ObserveSource(src.Name(), "error", elapsed)
		c.logger.Warn().Err(err).Str("source", src.Name()).Dur("elapsed", elapsed).Msg("source unavailable, trying next")
		return nil, err
	case len(records) == 0:
		c.opts.Metrics.ObserveSource(src.Name(), "empty", elapsed)
	default:
		c.opts.Metrics.ObserveSource(src.Name(), "ok", elapsed)
	}
	return records, nil
}

func (c *Chain) clampLimit(limit int) int {
	if limit <= 0 {
		return c.opts.DefaultLimit
	}
	if limit > c.opts.MaxLimit {
		return c.opts.MaxLimit
	}
	return limit
}
