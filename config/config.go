package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"

	"github.com/jwalitptl/attend-api/internal/dispatch"
	"github.com/jwalitptl/attend-api/internal/model"
	"github.com/jwalitptl/attend-api/internal/notifier"
	"github.com/jwalitptl/attend-api/internal/poller"
)

type ServerConfig struct {
	Port         int           `mapstructure:"port" envconfig:"SERVER_PORT"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type SyncConfig struct {
	AutoSync          bool `mapstructure:"auto_sync" envconfig:"AUTO_SYNC"`
	IntervalSeconds   int  `mapstructure:"interval_seconds" envconfig:"SYNC_INTERVAL"`
	ConnectionTimeout int  `mapstructure:"connection_timeout" envconfig:"CONNECTION_TIMEOUT"`
	MaxRetries        int  `mapstructure:"max_retries" envconfig:"MAX_RETRIES"`
}

type NotificationConfig struct {
	CheckIn      bool   `mapstructure:"check_in"`
	CheckOut     bool   `mapstructure:"check_out"`
	LateArrival  bool   `mapstructure:"late_arrival"`
	DeviceFault  bool   `mapstructure:"device_fault"`
	DailySummary bool   `mapstructure:"daily_summary"`
	SummaryTime  string `mapstructure:"summary_time" envconfig:"SUMMARY_TIME"`
	GraceMinutes int    `mapstructure:"grace_minutes" envconfig:"GRACE_MINUTES"`
}

type DispatchConfig struct {
	Workers             int  `mapstructure:"workers"`
	MessageDelaySeconds int  `mapstructure:"message_delay_seconds" envconfig:"MESSAGE_DELAY"`
	MaxRetries          int  `mapstructure:"max_retries"`
	RetryFailedMessages bool `mapstructure:"retry_failed_messages" envconfig:"RETRY_FAILED_MESSAGES"`
}

type WhatsAppConfig struct {
	Enabled bool   `mapstructure:"enabled" envconfig:"WHATSAPP_ENABLED"`
	APIURL  string `mapstructure:"api_url" envconfig:"WHATSAPP_API_URL"`
	APIKey  string `mapstructure:"api_key" envconfig:"WHATSAPP_API_KEY"`
}

type EmailConfig struct {
	Enabled  bool   `mapstructure:"enabled" envconfig:"EMAIL_ENABLED"`
	Host     string `mapstructure:"host" envconfig:"SMTP_HOST"`
	Port     int    `mapstructure:"port" envconfig:"SMTP_PORT"`
	Username string `mapstructure:"username" envconfig:"SMTP_USERNAME"`
	Password string `mapstructure:"password" envconfig:"SMTP_PASSWORD"`
	From     string `mapstructure:"from" envconfig:"SMTP_FROM"`
}

type RedisConfig struct {
	URL string `mapstructure:"url" envconfig:"REDIS_URL"`
}

type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" envconfig:"LOG_LEVEL"`
	Pretty bool   `mapstructure:"pretty"`
}

type Config struct {
	Server        ServerConfig       `mapstructure:"server"`
	Sync          SyncConfig         `mapstructure:"sync"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Dispatch      DispatchConfig     `mapstructure:"dispatch"`
	WhatsApp      WhatsAppConfig     `mapstructure:"whatsapp"`
	Email         EmailConfig        `mapstructure:"email"`
	Redis         RedisConfig        `mapstructure:"redis"`
	RateLimit     RateLimitConfig    `mapstructure:"rate_limit"`
	Log           LogConfig          `mapstructure:"log"`
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 15*time.Second)
	viper.SetDefault("server.write_timeout", 15*time.Second)

	viper.SetDefault("sync.auto_sync", true)
	viper.SetDefault("sync.interval_seconds", 30)
	viper.SetDefault("sync.connection_timeout", 60)
	viper.SetDefault("sync.max_retries", 3)

	viper.SetDefault("notifications.check_in", true)
	viper.SetDefault("notifications.check_out", true)
	viper.SetDefault("notifications.late_arrival", true)
	viper.SetDefault("notifications.device_fault", true)
	viper.SetDefault("notifications.daily_summary", true)
	viper.SetDefault("notifications.summary_time", "18:00")
	viper.SetDefault("notifications.grace_minutes", 0)

	viper.SetDefault("dispatch.workers", 4)
	viper.SetDefault("dispatch.message_delay_seconds", 2)
	viper.SetDefault("dispatch.max_retries", 3)
	viper.SetDefault("dispatch.retry_failed_messages", true)

	viper.SetDefault("rate_limit.enabled", true)
	viper.SetDefault("rate_limit.requests_per_second", 50.0)
	viper.SetDefault("rate_limit.burst", 100)

	viper.SetDefault("log.level", "info")
}

// LoadConfig reads config.yml, applies ATTEND_* environment overrides and
// validates the result. A missing config file is not an error; defaults
// cover every field.
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := envconfig.Process("attend", &config); err != nil {
		return nil, fmt.Errorf("failed to apply env overrides: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate enforces the settings ranges. Out-of-range values are rejected,
// not clamped.
func (c *Config) Validate() error {
	if c.Sync.IntervalSeconds < 10 || c.Sync.IntervalSeconds > 300 {
		return fmt.Errorf("sync interval must be between 10 and 300 seconds, got %d", c.Sync.IntervalSeconds)
	}
	if c.Sync.ConnectionTimeout < 30 || c.Sync.ConnectionTimeout > 300 {
		return fmt.Errorf("connection timeout must be between 30 and 300 seconds, got %d", c.Sync.ConnectionTimeout)
	}
	if c.Sync.MaxRetries < 1 || c.Sync.MaxRetries > 10 {
		return fmt.Errorf("sync max retries must be between 1 and 10, got %d", c.Sync.MaxRetries)
	}
	if c.Dispatch.MessageDelaySeconds < 1 || c.Dispatch.MessageDelaySeconds > 60 {
		return fmt.Errorf("message delay must be between 1 and 60 seconds, got %d", c.Dispatch.MessageDelaySeconds)
	}
	if c.Dispatch.MaxRetries < 1 || c.Dispatch.MaxRetries > 10 {
		return fmt.Errorf("dispatch max retries must be between 1 and 10, got %d", c.Dispatch.MaxRetries)
	}
	if _, err := model.ParseDayTime(c.Notifications.SummaryTime); err != nil {
		return fmt.Errorf("invalid summary time %q: %w", c.Notifications.SummaryTime, err)
	}
	if c.Notifications.GraceMinutes < 0 {
		return fmt.Errorf("grace minutes cannot be negative, got %d", c.Notifications.GraceMinutes)
	}
	return nil
}

func (c *SyncConfig) ToPollerConfig() poller.Config {
	return poller.Config{
		Interval:   time.Duration(c.IntervalSeconds) * time.Second,
		Timeout:    time.Duration(c.ConnectionTimeout) * time.Second,
		MaxRetries: c.MaxRetries,
	}
}

func (c *DispatchConfig) ToDispatcherConfig() dispatch.Config {
	return dispatch.Config{
		Workers:      c.Workers,
		MessageDelay: time.Duration(c.MessageDelaySeconds) * time.Second,
		MaxRetries:   c.MaxRetries,
		Retry:        c.RetryFailedMessages,
	}
}

func (c *NotificationConfig) ToRouterConfig() (notifier.Config, error) {
	summaryAt, err := model.ParseDayTime(c.SummaryTime)
	if err != nil {
		return notifier.Config{}, err
	}
	return notifier.Config{SummaryTime: summaryAt}, nil
}

// ToSettings seeds the runtime settings store from the startup config; the
// API mutates the store from there.
func (c *Config) ToSettings() model.Settings {
	return model.Settings{
		AutoSync:            c.Sync.AutoSync,
		SyncInterval:        c.Sync.IntervalSeconds,
		ConnectionTimeout:   c.Sync.ConnectionTimeout,
		MaxRetries:          c.Sync.MaxRetries,
		MessageDelay:        c.Dispatch.MessageDelaySeconds,
		SummaryTime:         c.Notifications.SummaryTime,
		RetryFailedMessages: c.Dispatch.RetryFailedMessages,
		NotifyOnCheckIn:     c.Notifications.CheckIn,
		NotifyOnCheckOut:    c.Notifications.CheckOut,
		NotifyOnLateArrival: c.Notifications.LateArrival,
		NotifyOnDeviceError: c.Notifications.DeviceFault,
		DailySummary:        c.Notifications.DailySummary,
	}
}

func (c *NotificationConfig) Grace() time.Duration {
	return time.Duration(c.GraceMinutes) * time.Minute
}
