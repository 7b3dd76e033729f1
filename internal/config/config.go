package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"whalewatch/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Logging    logging.Config   `mapstructure:"logging"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Server     ServerConfig     `mapstructure:"server"`
	Ingest     IngestConfig     `mapstructure:"ingest"`
	Retrieval  RetrievalConfig  `mapstructure:"retrieval"`
	Narratives NarrativesConfig `mapstructure:"narratives"`
	Alerting   AlertingConfig   `mapstructure:"alerting"`
	Ethereum   ChainRPCConfig   `mapstructure:"ethereum"`
	Solana     ChainRPCConfig   `mapstructure:"solana"`
	Tail       TailConfig       `mapstructure:"tail"`
	Export     ExportConfig     `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity. An empty DSN runs
// the service without durable storage.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	RunMigrations   bool          `mapstructure:"run_migrations"`
}

// ServerConfig covers the HTTP API.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	BearerToken     string        `mapstructure:"bearer_token"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
	IngestRPS       float64       `mapstructure:"ingest_rps"`
	IngestBurst     int           `mapstructure:"ingest_burst"`
}

// IngestConfig sizes the in-memory fallback.
type IngestConfig struct {
	BufferCapacity int `mapstructure:"buffer_capacity"`
}

// RetrievalConfig tunes the whale activity fallback chain.
type RetrievalConfig struct {
	DerivedURL     string        `mapstructure:"derived_url"`
	StepTimeout    time.Duration `mapstructure:"step_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	DefaultLimit   int           `mapstructure:"default_limit"`
	MaxLimit       int           `mapstructure:"max_limit"`
}

// NarrativesConfig tunes the narrative cache.
type NarrativesConfig struct {
	LRUSize        int `mapstructure:"lru_size"`
	SearchPageSize int `mapstructure:"search_page_size"`
	MaxPageSize    int `mapstructure:"max_page_size"`
}

// AlertingConfig routes stored whale alerts onward.
type AlertingConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes the Telegram relay.
type TelegramConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	BotToken string        `mapstructure:"bot_token"`
	ChatID   string        `mapstructure:"chat_id"`
	APIBase  string        `mapstructure:"api_base"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// ChainRPCConfig covers one chain's JSON-RPC endpoint.
type ChainRPCConfig struct {
	RPCURL         string        `mapstructure:"rpc_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// TailConfig governs the tail poller.
type TailConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxPoints int `mapstructure:"max_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("WHALEWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "whalewatch")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stderr")

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.run_migrations", true)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.bearer_token", "")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.max_body_bytes", int64(1<<20))
	v.SetDefault("server.ingest_rps", 20.0)
	v.SetDefault("server.ingest_burst", 40)

	v.SetDefault("ingest.buffer_capacity", 100)

	v.SetDefault("retrieval.derived_url", "")
	v.SetDefault("retrieval.step_timeout", "3s")
	v.SetDefault("retrieval.request_timeout", "10s")
	v.SetDefault("retrieval.default_limit", 50)
	v.SetDefault("retrieval.max_limit", 200)

	v.SetDefault("narratives.lru_size", 512)
	v.SetDefault("narratives.search_page_size", 10)
	v.SetDefault("narratives.max_page_size", 50)

	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.bot_token", "")
	v.SetDefault("alerting.telegram.chat_id", "")
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")
	v.SetDefault("alerting.telegram.timeout", "10s")

	v.SetDefault("ethereum.rpc_url", "")
	v.SetDefault("ethereum.request_timeout", "10s")
	v.SetDefault("solana.rpc_url", "")
	v.SetDefault("solana.request_timeout", "10s")

	v.SetDefault("tail.interval", "30s")

	v.SetDefault("export.max_points", 10000)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Ingest.BufferCapacity <= 0 {
		return fmt.Errorf("ingest.buffer_capacity must be greater than zero")
	}
	if c.Retrieval.StepTimeout <= 0 {
		return fmt.Errorf("retrieval.step_timeout must be greater than zero")
	}
	if c.Retrieval.RequestTimeout < c.Retrieval.StepTimeout {
		return fmt.Errorf("retrieval.request_timeout must be at least retrieval.step_timeout")
	}
	if c.Retrieval.DefaultLimit <= 0 || c.Retrieval.MaxLimit < c.Retrieval.DefaultLimit {
		return fmt.Errorf("retrieval limits must satisfy 0 < default_limit <= max_limit")
	}
	if c.Retrieval.DerivedURL != "" {
		if u, err := url.Parse(c.Retrieval.DerivedURL); err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("retrieval.derived_url must be an absolute URL")
		}
	}
	if c.Narratives.SearchPageSize <= 0 || c.Narratives.MaxPageSize < c.Narratives.SearchPageSize {
		return fmt.Errorf("narratives page sizes must satisfy 0 < search_page_size <= max_page_size")
	}
	if c.Narratives.LRUSize <= 0 {
		return fmt.Errorf("narratives.lru_size must be greater than zero")
	}
	if c.Server.IngestRPS < 0 || c.Server.IngestBurst < 0 {
		return fmt.Errorf("server ingest rate limits cannot be negative")
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("server.max_body_bytes must be greater than zero")
	}
	if c.Tail.Interval <= 0 {
		return fmt.Errorf("tail.interval must be greater than zero")
	}
	if c.Export.MaxPoints <= 0 {
		return fmt.Errorf("export.max_points must be greater than zero")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token is required when telegram is enabled")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id is required when telegram is enabled")
		}
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxPoints
}
