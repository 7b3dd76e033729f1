package app

import (
	"context"
	"io"
	"os"

	"github.com/rs/zerolog"

	"whalewatch/internal/address"
	"whalewatch/internal/alert"
	"whalewatch/internal/alerting"
	"whalewatch/internal/config"
	"whalewatch/internal/ingest"
	"whalewatch/internal/metrics"
	"whalewatch/internal/narrative"
	"whalewatch/internal/retrieval"
	"whalewatch/internal/storage"
	"whalewatch/internal/storage/memory"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Out    io.Writer
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger(), Out: os.Stdout}
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

func (a *App) newRelay() ingest.Relay {
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, cfg.Timeout, a.Logger)
	}
	return nil
}

// components are the wired domain services shared by every command.
type components struct {
	store      *storage.Store
	sink       *ingest.Sink
	chain      *retrieval.Chain
	narratives *narrative.Cache
	classifier *address.Classifier
	metrics    *metrics.Metrics
	close      func()
}

func (c *components) Close() {
	if c.close != nil {
		c.close()
	}
}

func (a *App) build(ctx context.Context) (*components, error) {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; using in-memory message buffer and narrative store")
	}

	m := metrics.New("whalewatch")
	sinkOpts := ingest.Options{Relay: a.newRelay(), Metrics: m}
	if store != nil {
		sinkOpts.Store = store
	} else {
		sinkOpts.Buffer = ingest.NewBuffer(a.Config.Ingest.BufferCapacity)
	}
	sink := ingest.NewSink(sinkOpts, a.Logger)

	var narrativeStore storage.NarrativeStore = memory.NewNarrativeStore()
	if store != nil {
		narrativeStore = store
	}
	cache, err := narrative.NewCache(narrativeStore, narrative.Options{
		LRUSize:        a.Config.Narratives.LRUSize,
		SearchPageSize: a.Config.Narratives.SearchPageSize,
		MaxPageSize:    a.Config.Narratives.MaxPageSize,
		Metrics:        m,
	}, a.Logger)
	if err != nil {
		if closeStore != nil {
			closeStore()
		}
		return nil, err
	}

	classifier := address.NewClassifier(address.Options{
		Ethereum: address.EthereumOptions{
			RPCURL:  a.Config.Ethereum.RPCURL,
			Timeout: a.Config.Ethereum.RequestTimeout,
		},
		Solana: address.SolanaOptions{
			RPCURL:  a.Config.Solana.RPCURL,
			Timeout: a.Config.Solana.RequestTimeout,
		},
	}, a.Logger)

	chain := retrieval.NewChain(retrieval.Options{
		StepTimeout:    a.Config.Retrieval.StepTimeout,
		RequestTimeout: a.Config.Retrieval.RequestTimeout,
		DefaultLimit:   a.Config.Retrieval.DefaultLimit,
		MaxLimit:       a.Config.Retrieval.MaxLimit,
		Metrics:        m,
	}, a.Logger, a.sources(store, sink)...)

	a.Logger.Debug().Strs("sources", chain.Sources()).Bool("durable", store != nil).Msg("components wired")
	return &components{
		store:      store,
		sink:       sink,
		chain:      chain,
		narratives: cache,
		classifier: classifier,
		metrics:    m,
		close:      closeStore,
	}, nil
}

// sources orders the retrieval chain: derived, primary table, legacy table.
// Without a derived endpoint and without a database, the sink's own recent
// messages stand in for the derived step.
func (a *App) sources(store *storage.Store, sink *ingest.Sink) []retrieval.Source {
	var sources []retrieval.Source
	switch {
	case a.Config.Retrieval.DerivedURL != "":
		sources = append(sources, retrieval.NewHTTPSource(retrieval.HTTPSourceOptions{
			URL:       a.Config.Retrieval.DerivedURL,
			Timeout:   a.Config.Retrieval.StepTimeout,
			UserAgent: a.Config.App.Name + "/" + versionString(),
		}, a.Logger))
	case store == nil:
		sources = append(sources, retrieval.NewRecentSource("derived", sink))
	}
	if store != nil {
		sources = append(sources,
			retrieval.NewTableSource("primary", store, alert.SchemaCurrent),
			retrieval.NewTableSource("legacy", store, alert.SchemaLegacy),
		)
	}
	return sources
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit     int
	ChannelID string
}

// IngestOptions configure a one-off submission.
type IngestOptions struct {
	Text      string
	Author    string
	ChannelID string
}

// ExportOptions hold parameters for exporting recent whale activity.
type ExportOptions struct {
	PNGPath   string
	CSVPath   string
	Limit     int
	ChannelID string
	MaxPoints int
}

// TailOptions configure the tail poller.
type TailOptions struct {
	Limit     int
	ChannelID string
	MaxPolls  int
}
