package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"jackpotwatch/internal/logging"
)

// DefaultFreshnessThreshold is how old the next draw may be before the run is flagged stale.
const DefaultFreshnessThreshold = 72 * time.Hour

// Settings are per-process values taken from the environment rather than the YAML document.
type Settings struct {
	ConfigPath          string `env:"CONFIG_PATH" envDefault:"config.yaml"`
	StatePath           string `env:"STATE_PATH" envDefault:".state/last_alert.json"`
	RuntimeReportPath   string `env:"OPS_RUNTIME_PATH" envDefault:".state/runtime_report.json"`
	MetricsTextfilePath string `env:"METRICS_TEXTFILE_PATH"`

	// Parsed leniently by FreshnessThreshold and DryRun.
	FreshnessThresholdSeconds string `env:"FRESHNESS_THRESHOLD_SECONDS"`
	DryRunFlag                string `env:"DRY_RUN"`

	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID   string `env:"TELEGRAM_CHAT_ID"`

	Logging logging.Config
}

// LoadSettings reads Settings from the environment, after loading an optional .env file.
func LoadSettings() (Settings, error) {
	_ = godotenv.Load() //nolint:errcheck // .env is optional

	var s Settings
	if err := env.Parse(&s); err != nil {
		return Settings{}, fmt.Errorf("parsing environment settings: %w", err)
	}
	return s, nil
}

// FreshnessThreshold parses FRESHNESS_THRESHOLD_SECONDS. Empty, invalid and
// negative values yield DefaultFreshnessThreshold.
func (s Settings) FreshnessThreshold() time.Duration {
	raw := strings.TrimSpace(s.FreshnessThresholdSeconds)
	if raw == "" {
		return DefaultFreshnessThreshold
	}
	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil || seconds < 0 {
		return DefaultFreshnessThreshold
	}
	return time.Duration(seconds * float64(time.Second))
}

// DryRun reports whether DRY_RUN asks for the Telegram request to be skipped.
func (s Settings) DryRun() bool {
	raw := strings.TrimSpace(s.DryRunFlag)
	return raw == "1" || strings.EqualFold(raw, "true")
}
