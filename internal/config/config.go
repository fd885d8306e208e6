package config

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	DefaultCurrency  = "SGD"
	DefaultSourceURL = "https://www.singaporepools.com.sg/DataFileArchive/Lottery/Output/toto_next_draw_estimate_en.html"
)

// Config materialises the YAML configuration document.
type Config struct {
	Threshold   ThresholdConfig   `mapstructure:"threshold"`
	PrizeSource PrizeSourceConfig `mapstructure:"prize_source"`
	Alert       AlertConfig       `mapstructure:"alert"`
}

// ThresholdConfig is the single alerting rule: notify when the jackpot exceeds Amount.
type ThresholdConfig struct {
	Amount   float64 `mapstructure:"amount"`
	Currency string  `mapstructure:"currency"`
}

// PrizeSourceConfig locates the results page.
type PrizeSourceConfig struct {
	URL       string        `mapstructure:"url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
}

// AlertConfig defines the message and its delivery.
type AlertConfig struct {
	MessageTemplate string         `mapstructure:"message_template"`
	Telegram        TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig holds Bot API connectivity. Credentials come from the environment.
type TelegramConfig struct {
	APIBase string        `mapstructure:"api_base"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// ConfigError reports a configuration document that cannot be read or is invalid.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Load builds configuration from the YAML file at path, environment overrides, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("JACKPOTWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, &ConfigError{Path: path, Err: fmt.Errorf("read config: %w", err)}
	}

	if !v.IsSet("threshold.amount") {
		return nil, &ConfigError{Path: path, Err: fmt.Errorf("threshold.amount is required")}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, &ConfigError{Path: path, Err: fmt.Errorf("unmarshal config: %w", err)}
	}

	cfg.Threshold.Currency = strings.TrimSpace(cfg.Threshold.Currency)
	if cfg.Threshold.Currency == "" {
		cfg.Threshold.Currency = DefaultCurrency
	}
	cfg.PrizeSource.URL = strings.TrimSpace(cfg.PrizeSource.URL)
	if cfg.PrizeSource.URL == "" {
		cfg.PrizeSource.URL = DefaultSourceURL
	}

	if err := cfg.Validate(); err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("threshold.currency", DefaultCurrency)

	v.SetDefault("prize_source.url", DefaultSourceURL)
	v.SetDefault("prize_source.timeout", "20s")
	v.SetDefault("prize_source.user_agent", "Mozilla/5.0")

	v.SetDefault("alert.telegram.api_base", "https://api.telegram.org")
	v.SetDefault("alert.telegram.timeout", "20s")
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
	if math.IsNaN(c.Threshold.Amount) || math.IsInf(c.Threshold.Amount, 0) {
		return fmt.Errorf("threshold.amount must be a finite number")
	}
	if strings.TrimSpace(c.Alert.MessageTemplate) == "" {
		return fmt.Errorf("alert.message_template is required")
	}
	if strings.TrimSpace(c.PrizeSource.URL) == "" {
		return fmt.Errorf("prize_source.url cannot be empty")
	}
	if c.PrizeSource.Timeout <= 0 {
		return fmt.Errorf("prize_source.timeout must be greater than zero")
	}
	if c.Alert.Telegram.Timeout <= 0 {
		return fmt.Errorf("alert.telegram.timeout must be greater than zero")
	}
	return nil
}
