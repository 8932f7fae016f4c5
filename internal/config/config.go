package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	PlatformLINE     = "line"
	PlatformTelegram = "telegram"
)

type Config struct {
	Platform       string             `mapstructure:"platform"`
	RequestTimeout time.Duration      `mapstructure:"request_timeout"`
	Server         ServerConfig       `mapstructure:"server"`
	LINE           LINEConfig         `mapstructure:"line"`
	Telegram       TelegramConfig     `mapstructure:"telegram"`
	Verification   VerificationConfig `mapstructure:"verification"`
	Admin          AdminConfig        `mapstructure:"admin"`
	Webhook        WebhookConfig      `mapstructure:"webhook"`
	Audit          AuditConfig        `mapstructure:"audit"`
	Logging        LoggingConfig      `mapstructure:"logging"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	EventsEnabled   bool          `mapstructure:"events_enabled"`
	// APIToken guards /events and /audit
	APIToken        string        `mapstructure:"api_token"`
}

type LINEConfig struct {
	ChannelAccessToken string `mapstructure:"channel_access_token"`
	ChannelSecret      string `mapstructure:"channel_secret"`
}

type TelegramConfig struct {
	BotToken       string `mapstructure:"bot_token"`
	PollingTimeout int    `mapstructure:"polling_timeout"`
}

type VerificationConfig struct {
	SecretCode string        `mapstructure:"secret_code"`
	Timeout    time.Duration `mapstructure:"timeout"`
	// Groups restricts challenges to these group IDs; empty means all groups
	Groups     []string      `mapstructure:"groups"`
}

type AdminConfig struct {
	IDs       []string `mapstructure:"ids"`
	PTMessage string   `mapstructure:"pt_message"`
}

type WebhookConfig struct {
	DedupeSize int           `mapstructure:"dedupe_size"`
	DedupeTTL  time.Duration `mapstructure:"dedupe_ttl"`
}

type AuditConfig struct {
	DBPath string `mapstructure:"db_path"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	JSONFormat bool   `mapstructure:"json_format"`
}

var envBindings = []struct{ key, env string }{
	{"line.channel_access_token", "LINE_CHANNEL_ACCESS_TOKEN"},
	{"line.channel_secret", "LINE_CHANNEL_SECRET"},
	{"telegram.bot_token", "TELEGRAM_BOT_TOKEN"},
	{"server.port", "PORT"},
	{"server.api_token", "GATEKEEPER_API_TOKEN"},
}

// Load reads configuration from defaults, an optional config file and the
// environment. configFile may be empty to use the default search paths.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("platform", PlatformLINE)
	v.SetDefault("request_timeout", "30s")
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.events_enabled", false)
	v.SetDefault("server.api_token", "")
	v.SetDefault("telegram.polling_timeout", 60)
	v.SetDefault("verification.secret_code", "your_secret_password")
	v.SetDefault("verification.timeout", "300s")
	v.SetDefault("verification.groups", []string{})
	v.SetDefault("admin.ids", []string{})
	v.SetDefault("admin.pt_message", "這是預設的 pt 訊息")
	v.SetDefault("webhook.dedupe_size", 4096)
	v.SetDefault("webhook.dedupe_ttl", "10m")
	v.SetDefault("audit.db_path", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.json_format", false)

	// Config file locations
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/gatekeeper-bot")
	}

	// Environment variables
	v.SetEnvPrefix("GATEKEEPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Names used by the platform consoles and hosting providers
	for _, b := range envBindings {
		if err := v.BindEnv(b.key, b.env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", b.env, err)
		}
	}

	// Read config file (optional unless given explicitly)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configFile != "" {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file not found is OK, use env vars and defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Platform {
	case PlatformLINE:
		if c.LINE.ChannelAccessToken == "" {
			return fmt.Errorf("line.channel_access_token is required")
		}
		if c.LINE.ChannelSecret == "" {
			return fmt.Errorf("line.channel_secret is required")
		}
	case PlatformTelegram:
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required")
		}
	default:
		return fmt.Errorf("platform must be %q or %q, got %q", PlatformLINE, PlatformTelegram, c.Platform)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if (c.Server.EventsEnabled || c.Audit.DBPath != "") && c.Server.APIToken == "" {
		return fmt.Errorf("server.api_token is required when events or the audit log are enabled")
	}
	if c.Verification.SecretCode == "" {
		return fmt.Errorf("verification.secret_code is required")
	}
	if c.Verification.Timeout <= 0 {
		return fmt.Errorf("verification.timeout must be positive")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive")
	}
	if c.Webhook.DedupeSize < 0 {
		return fmt.Errorf("webhook.dedupe_size must not be negative")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error")
	}
	return nil
}
