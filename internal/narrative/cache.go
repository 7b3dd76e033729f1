package narrative

import (
	"context"
	"errors"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"whalewatch/internal/metrics"
	"whalewatch/internal/storage"
)

const (
	// AddressQueryThreshold is the query length above which a search is
	// treated as a token address rather than a name.
	AddressQueryThreshold = 30

	DefaultSearchPageSize = 10
	DefaultMaxPageSize    = 50
	defaultLRUSize        = 512
)

// Options configure a Cache.
type Options struct {
	LRUSize        int
	SearchPageSize int
	MaxPageSize    int
	Metrics        *metrics.Metrics
}

// Cache is a cache-aside front for stored token narratives. Gets are
// memoized in process; upserts write through and refresh the memo.
type Cache struct {
	store  storage.NarrativeStore
	memo   *lru.Cache[string, storage.TokenNarrative]
	opts   Options
	logger zerolog.Logger
}

// NewCache wraps store.
func NewCache(store storage.NarrativeStore, opts Options, logger zerolog.Logger) (*Cache, error) {
	if store == nil {
		return nil, errors.New("narrative: store is required")
	}
	if opts.LRUSize <= 0 {
		opts.LRUSize = defaultLRUSize
	}
	if opts.SearchPageSize <= 0 {
		opts.SearchPageSize = DefaultSearchPageSize
	}
	if opts.MaxPageSize <= 0 {
		opts.MaxPageSize = DefaultMaxPageSize
	}
	if opts.SearchPageSize > opts.MaxPageSize {
		opts.SearchPageSize = opts.MaxPageSize
	}

	memo, err := lru.New[string, storage.TokenNarrative](opts.LRUSize)
	if err != nil {
		return nil, fmt.Errorf("narrative: create lru: %w", err)
	}
	return &Cache{
		store:  store,
		memo:   memo,
		opts:   opts,
		logger: logger.With().Str("component", "narrative_cache").Logger(),
	}, nil
}

// Get returns the narrative for address, or storage.ErrNotFound.
func (c *Cache) Get(ctx context.Context, address string) (storage.TokenNarrative, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return storage.TokenNarrative{}, storage.ErrInvalidInput
	}
	if n, ok := c.memo.Get(address); ok {
		c.opts.Metrics.ObserveNarrativeLookup("hit")
		return n, nil
	}

	n, err := c.store.GetNarrative(ctx, address)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		c.opts.Metrics.ObserveNarrativeLookup("miss")
		return storage.TokenNarrative{}, err
	case err != nil:
		c.opts.Metrics.ObserveNarrativeLookup("error")
		c.logger.Error().Err(err).Str("address", address).Msg("narrative lookup failed")
		return storage.TokenNarrative{}, err
	}

	c.opts.Metrics.ObserveNarrativeLookup("hit")
	c.memo.Add(address, n)
	return n, nil
}

// Upsert inserts or fully replaces the narrative keyed by n.Address and
// returns the stored row. Concurrent writers resolve last-writer-wins.
func (c *Cache) Upsert(ctx context.Context, n storage.TokenNarrative) (storage.TokenNarrative, error) {
	n.Address = strings.TrimSpace(n.Address)
	if n.Address == "" {
		c.opts.Metrics.ObserveNarrativeWrite("invalid")
		return storage.TokenNarrative{}, storage.ErrInvalidInput
	}

	stored, err := c.store.UpsertNarrative(ctx, n)
	if err != nil {
		c.opts.Metrics.ObserveNarrativeWrite("error")
		c.memo.Remove(n.Address)
		c.logger.Error().Err(err).Str("address", n.Address).Msg("narrative upsert failed")
		return storage.TokenNarrative{}, err
	}

	c.opts.Metrics.ObserveNarrativeWrite("ok")
	c.memo.Add(stored.Address, stored)
	c.logger.Debug().Str("address", stored.Address).Str("name", stored.Name).Msg("narrative stored")
	return stored, nil
}

// Recent lists narratives most recently written first.
func (c *Cache) Recent(ctx context.Context, limit int) ([]storage.TokenNarrative, error) {
	items, err := c.store.ListRecentNarratives(ctx, c.pageSize(limit))
	if err != nil {
		return nil, err
	}
	return nonNil(items), nil
}

// Search matches query against the address or the name, chosen by
// RouteSearch. An empty query yields no results.
func (c *Cache) Search(ctx context.Context, query string, limit int) ([]storage.TokenNarrative, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []storage.TokenNarrative{}, nil
	}
	items, err := c.store.SearchNarratives(ctx, RouteSearch(query), query, c.pageSize(limit))
	if err != nil {
		return nil, err
	}
	return nonNil(items), nil
}

// RouteSearch picks the column a query searches. Queries longer than
// AddressQueryThreshold characters look like token addresses.
func RouteSearch(query string) storage.SearchField {
	if len(query) > AddressQueryThreshold {
		return storage.SearchByAddress
	}
	return storage.SearchByName
}

func (c *Cache) pageSize(limit int) int {
	if limit <= 0 {
		return c.opts.SearchPageSize
	}
	if limit > c.opts.MaxPageSize {
		return c.opts.MaxPageSize
	}
	return limit
}

func nonNil(items []storage.TokenNarrative) []storage.TokenNarrative {
	if items == nil {
		return []storage.TokenNarrative{}
	}
	return items
}
