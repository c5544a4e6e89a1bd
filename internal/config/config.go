package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"ledger-whale-alerts/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Polling   PollingConfig   `mapstructure:"polling"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Exchanges []ExchangeEntry `mapstructure:"exchanges"`
	Health    HealthConfig    `mapstructure:"health"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// SchedulerConfig governs the poll and health sweep cadences.
type SchedulerConfig struct {
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	HealthInterval  time.Duration `mapstructure:"health_interval"`
	AlignToBucket   bool          `mapstructure:"align_to_bucket"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
}

// LedgerConfig covers the ledger read API. Endpoints are equivalent read
// nodes tried in order on failure.
type LedgerConfig struct {
	Endpoints      []string      `mapstructure:"endpoints"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	PageLimit      int           `mapstructure:"page_limit"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// PollingConfig tunes wallet polling.
type PollingConfig struct {
	WorkerLimit      int     `mapstructure:"worker_limit"`
	DefaultThreshold float64 `mapstructure:"default_threshold"`
}

// AlertingConfig defines thresholds, routing, and delivery behaviour.
type AlertingConfig struct {
	Enabled              bool           `mapstructure:"enabled"`
	Telegram             TelegramConfig `mapstructure:"telegram"`
	Channels             ChannelConfig  `mapstructure:"channels"`
	Retry                RetryConfig    `mapstructure:"retry"`
	CriticalFloor        float64        `mapstructure:"critical_floor"`
	HighFloor            float64        `mapstructure:"high_floor"`
	ExchangeDepositFloor float64        `mapstructure:"exchange_deposit_floor"`
	TrendWindow          time.Duration  `mapstructure:"trend_window"`
}

// TelegramConfig 描述 Telegram 告警参数。
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	APIBase        string        `mapstructure:"api_base"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// ChannelConfig maps routing destinations to opaque channel ids (Telegram
// chat ids). The system channel receives escalations.
type ChannelConfig struct {
	Critical         string `mapstructure:"critical"`
	ExchangeDeposits string `mapstructure:"exchange_deposits"`
	WhaleMovements   string `mapstructure:"whale_movements"`
	System           string `mapstructure:"system"`
}

// RetryConfig bounds delivery retries.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

// ExchangeEntry identifies one known exchange deposit address. Tag zero
// matches any destination tag on that address.
type ExchangeEntry struct {
	Address string `mapstructure:"address"`
	Tag     uint32 `mapstructure:"tag"`
	Name    string `mapstructure:"name"`
}

// HealthConfig tunes the health aggregator.
type HealthConfig struct {
	CheckTimeout         time.Duration `mapstructure:"check_timeout"`
	DownWindow           time.Duration `mapstructure:"down_window"`
	DownThreshold        int           `mapstructure:"down_threshold"`
	SlowLatency          time.Duration `mapstructure:"slow_latency"`
	SlowWindow           time.Duration `mapstructure:"slow_window"`
	SlowCountThreshold   int           `mapstructure:"slow_count_threshold"`
	SummaryInterval      time.Duration `mapstructure:"summary_interval"`
	AlertActivityWindow  time.Duration `mapstructure:"alert_activity_window"`
	SampleActivityWindow time.Duration `mapstructure:"sample_activity_window"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
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

	v.SetDefault("scheduler.poll_interval", "1m")
	v.SetDefault("scheduler.health_interval", "5m")
	v.SetDefault("scheduler.align_to_bucket", true)
	v.SetDefault("scheduler.advisory_lock_key", int64(0x77686131))
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("ledger.endpoints", []string{
		"https://xrplcluster.com",
		"https://s1.ripple.com:51234",
		"https://s2.ripple.com:51234",
	})
	v.SetDefault("ledger.request_timeout", "10s")
	v.SetDefault("ledger.page_limit", 50)
	v.SetDefault("ledger.user_agent", "whalewatch/1.0")

	v.SetDefault("polling.worker_limit", 4)
	v.SetDefault("polling.default_threshold", 500000.0)

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")
	v.SetDefault("alerting.telegram.request_timeout", "10s")
	v.SetDefault("alerting.retry.max_attempts", 3)
	v.SetDefault("alerting.retry.base_delay", "2s")
	v.SetDefault("alerting.retry.max_delay", "30s")
	v.SetDefault("alerting.critical_floor", 1000000.0)
	v.SetDefault("alerting.high_floor", 500000.0)
	v.SetDefault("alerting.exchange_deposit_floor", 250000.0)
	v.SetDefault("alerting.trend_window", "1h")

	v.SetDefault("health.check_timeout", "5s")
	v.SetDefault("health.down_window", "15m")
	v.SetDefault("health.down_threshold", 3)
	v.SetDefault("health.slow_latency", "2s")
	v.SetDefault("health.slow_window", "1h")
	v.SetDefault("health.slow_count_threshold", 5)
	v.SetDefault("health.summary_interval", "6h")
	v.SetDefault("health.alert_activity_window", "24h")
	v.SetDefault("health.sample_activity_window", "1h")

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "migrations")
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
	if len(c.Ledger.Endpoints) == 0 {
		return fmt.Errorf("ledger.endpoints must list at least one endpoint")
	}
	if c.Ledger.PageLimit <= 0 {
		return fmt.Errorf("ledger.page_limit must be greater than zero")
	}
	if c.Scheduler.PollInterval <= 0 {
		return fmt.Errorf("scheduler.poll_interval must be greater than zero")
	}
	if c.Scheduler.HealthInterval <= 0 {
		return fmt.Errorf("scheduler.health_interval must be greater than zero")
	}
	if c.Polling.WorkerLimit <= 0 {
		return fmt.Errorf("polling.worker_limit must be greater than zero")
	}
	if c.Polling.DefaultThreshold < 0 {
		return fmt.Errorf("polling.default_threshold cannot be negative")
	}
	if c.Alerting.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("alerting.retry.max_attempts must be greater than zero")
	}
	if c.Alerting.Retry.BaseDelay <= 0 || c.Alerting.Retry.MaxDelay < c.Alerting.Retry.BaseDelay {
		return fmt.Errorf("alerting.retry delays misconfigured")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Alerting.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token 必须配置")
		}
		if c.Alerting.Channels.WhaleMovements == "" {
			return fmt.Errorf("alerting.channels.whale_movements 必须配置")
		}
		if c.Alerting.Channels.System == "" {
			return fmt.Errorf("alerting.channels.system 必须配置")
		}
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
