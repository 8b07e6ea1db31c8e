package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/careers-cli/internal/cost"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Browser    BrowserConfig    `yaml:"browser" mapstructure:"browser"`
	Scraper    ScraperConfig    `yaml:"scraper" mapstructure:"scraper"`
	Pricing    cost.Rates       `yaml:"pricing" mapstructure:"pricing"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// AnthropicConfig holds Anthropic API settings. The three call sites use
// separately configurable models: cheap classification, mid-tier extraction,
// and suggestion.
type AnthropicConfig struct {
	Key             string  `yaml:"key" mapstructure:"key"`
	ClassifyModel   string  `yaml:"classify_model" mapstructure:"classify_model"`
	ExtractModel    string  `yaml:"extract_model" mapstructure:"extract_model"`
	SuggestModel    string  `yaml:"suggest_model" mapstructure:"suggest_model"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec" mapstructure:"rate_limit_per_sec"`
}

// BrowserConfig holds rendering-service settings.
type BrowserConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// ScraperConfig bounds the discovery run.
type ScraperConfig struct {
	MaxPages               int `yaml:"max_pages" mapstructure:"max_pages"`
	MaxRoles               int `yaml:"max_roles" mapstructure:"max_roles"`
	MaxScrolls             int `yaml:"max_scrolls" mapstructure:"max_scrolls"`
	NetworkIdleTimeoutSecs int `yaml:"network_idle_timeout_secs" mapstructure:"network_idle_timeout_secs"`
	DOMReadyTimeoutSecs    int `yaml:"dom_ready_timeout_secs" mapstructure:"dom_ready_timeout_secs"`
	SettleDelayMs          int `yaml:"settle_delay_ms" mapstructure:"settle_delay_ms"`
	Concurrency            int `yaml:"concurrency" mapstructure:"concurrency"`
	DetailTimeoutSecs      int `yaml:"detail_timeout_secs" mapstructure:"detail_timeout_secs"`
	RunTimeoutSecs         int `yaml:"run_timeout_secs" mapstructure:"run_timeout_secs"`
	RunHistoryLimit        int `yaml:"run_history_limit" mapstructure:"run_history_limit"`
}

// ServerConfig configures the review API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// MonitoringConfig configures background alert checks. Alerts are disabled
// when no webhook URL is set.
type MonitoringConfig struct {
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	CostThresholdUSD     float64 `yaml:"cost_threshold_usd" mapstructure:"cost_threshold_usd"`
	LookbackWindowHours  int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CAREERS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Secrets and URLs default to empty so AutomaticEnv sees the
	// keys; viper only reads env vars for keys it already knows about.
	v.SetDefault("store.database_url", "")
	v.SetDefault("anthropic.key", "")
	v.SetDefault("browser.key", "")
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("anthropic.classify_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.extract_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.suggest_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.rate_limit_per_sec", 2.0)
	v.SetDefault("browser.base_url", "http://localhost:3000")
	v.SetDefault("scraper.max_pages", 20)
	v.SetDefault("scraper.max_roles", 200)
	v.SetDefault("scraper.max_scrolls", 10)
	v.SetDefault("scraper.network_idle_timeout_secs", 15)
	v.SetDefault("scraper.dom_ready_timeout_secs", 10)
	v.SetDefault("scraper.settle_delay_ms", 750)
	v.SetDefault("scraper.concurrency", 4)
	v.SetDefault("scraper.detail_timeout_secs", 120)
	v.SetDefault("scraper.run_timeout_secs", 1800)
	v.SetDefault("scraper.run_history_limit", 50)
	v.SetDefault("monitoring.failure_rate_threshold", 0.5)
	v.SetDefault("monitoring.cost_threshold_usd", 25.0)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.check_interval_secs", 300)

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

	// Pricing has a full built-in table; a config file only overrides it.
	if len(cfg.Pricing.Anthropic) == 0 {
		def := cost.DefaultRates()
		cfg.Pricing.Anthropic = def.Anthropic
		if cfg.Pricing.Render.PerPageLoad == 0 {
			cfg.Pricing.Render = def.Render
		}
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
