package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Cian     CianConfig     `yaml:"cian" mapstructure:"cian"`
	Fetch    FetchConfig    `yaml:"fetch" mapstructure:"fetch"`
	Extract  ExtractConfig  `yaml:"extract" mapstructure:"extract"`
	Sweep    SweepConfig    `yaml:"sweep" mapstructure:"sweep"`
	Quota    QuotaConfig    `yaml:"quota" mapstructure:"quota"`
	Criteria CriteriaConfig `yaml:"criteria" mapstructure:"criteria"`
	Sink     SinkConfig     `yaml:"sink" mapstructure:"sink"`
	Notion   NotionConfig   `yaml:"notion" mapstructure:"notion"`
	Telegram TelegramConfig `yaml:"telegram" mapstructure:"telegram"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend holding the seen-set,
// quota state and sweep records.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// CianConfig holds Cian source settings.
type CianConfig struct {
	BaseURL    string  `yaml:"base_url" mapstructure:"base_url"`
	APIBaseURL string  `yaml:"api_base_url" mapstructure:"api_base_url"`
	UserAgent  string  `yaml:"user_agent" mapstructure:"user_agent"`
	RegionID   int     `yaml:"region_id" mapstructure:"region_id"`
	RateRPS    float64 `yaml:"rate_rps" mapstructure:"rate_rps"`
}

// FetchConfig configures the page fetch chain.
type FetchConfig struct {
	TimeoutSecs      int  `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxAttempts      int  `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int  `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int  `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	UseChrome        bool `yaml:"use_chrome" mapstructure:"use_chrome"`
	ChromeHeadless   bool `yaml:"chrome_headless" mapstructure:"chrome_headless"`
}

// ExtractConfig bounds the plausible absolute price window used to tell
// prices apart from phone numbers and other incidental digit runs.
type ExtractConfig struct {
	PriceMin int64 `yaml:"price_min" mapstructure:"price_min"`
	PriceMax int64 `yaml:"price_max" mapstructure:"price_max"`
}

// SweepConfig configures the orchestrator's sweep loop.
type SweepConfig struct {
	MaxPages          int  `yaml:"max_pages" mapstructure:"max_pages"`
	IdleIntervalSecs  int  `yaml:"idle_interval_secs" mapstructure:"idle_interval_secs"`
	PageDelayMs       int  `yaml:"page_delay_ms" mapstructure:"page_delay_ms"`
	CardDelayMs       int  `yaml:"card_delay_ms" mapstructure:"card_delay_ms"`
	EnrichDetail      bool `yaml:"enrich_detail" mapstructure:"enrich_detail"`
	EnrichConcurrency int  `yaml:"enrich_concurrency" mapstructure:"enrich_concurrency"`
}

// QuotaConfig configures the rolling daily emission cap.
type QuotaConfig struct {
	DailyCap int `yaml:"daily_cap" mapstructure:"daily_cap"`
}

// CriteriaConfig locates the criteria file. When Path is empty the criteria
// live in the store.
type CriteriaConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// SinkConfig selects the active record sink.
type SinkConfig struct {
	Kind    string `yaml:"kind" mapstructure:"kind"` // "notion", "csv"
	CSVPath string `yaml:"csv_path" mapstructure:"csv_path"`
}

// NotionConfig holds Notion API credentials and the listings database ID.
type NotionConfig struct {
	Token     string `yaml:"token" mapstructure:"token"`
	ListingDB string `yaml:"listing_db" mapstructure:"listing_db"`
}

// TelegramConfig holds Telegram bot credentials.
type TelegramConfig struct {
	Token       string `yaml:"token" mapstructure:"token"`
	AdminChatID int64  `yaml:"admin_chat_id" mapstructure:"admin_chat_id"`
	PollSecs    int    `yaml:"poll_secs" mapstructure:"poll_secs"`
}

// ServerConfig configures the control-surface HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, config file and environment.
func Load() (*Config, error) {
	// Optional .env for local development; real deployments use the
	// environment directly.
	_ = godotenv.Load()

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("RENTSCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "rentscout.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("cian.base_url", "https://www.cian.ru")
	v.SetDefault("cian.api_base_url", "https://api.cian.ru")
	v.SetDefault("cian.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	v.SetDefault("cian.region_id", 1)
	v.SetDefault("cian.rate_rps", 0.5)
	v.SetDefault("fetch.timeout_secs", 45)
	v.SetDefault("fetch.max_attempts", 3)
	v.SetDefault("fetch.initial_backoff_ms", 2000)
	v.SetDefault("fetch.max_backoff_ms", 30000)
	v.SetDefault("fetch.chrome_headless", true)
	v.SetDefault("extract.price_min", 1_000_000)
	v.SetDefault("extract.price_max", 1_000_000_000)
	v.SetDefault("sweep.max_pages", 5)
	v.SetDefault("sweep.idle_interval_secs", 1800)
	v.SetDefault("sweep.page_delay_ms", 2000)
	v.SetDefault("sweep.card_delay_ms", 500)
	v.SetDefault("sweep.enrich_concurrency", 2)
	v.SetDefault("quota.daily_cap", 100)
	v.SetDefault("criteria.path", "criteria.yaml")
	v.SetDefault("sink.kind", "csv")
	v.SetDefault("sink.csv_path", "listings.csv")
	v.SetDefault("telegram.poll_secs", 25)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
