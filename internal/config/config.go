package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"cryptolens-backend/internal/domain"
)

// Config is the full runtime configuration, loaded from YAML with env
// overrides for deployment secrets.
type Config struct {
	Environment string `yaml:"environment" default:"development"`

	Log struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"console"` // console or json
	} `yaml:"log"`

	Server struct {
		Port int `yaml:"port" default:"8080"`
	} `yaml:"server"`

	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr" default:"localhost:6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Exchange struct {
		BaseURL           string  `yaml:"base_url" default:"https://api.kucoin.com"`
		RequestsPerSecond float64 `yaml:"requests_per_second" default:"8"`
		Burst             float64 `yaml:"burst" default:"16"`
		TimeoutSeconds    int     `yaml:"timeout_seconds" default:"15"`
	} `yaml:"exchange"`

	Scanner struct {
		Symbols         []string `yaml:"symbols"`
		Timeframes      []string `yaml:"timeframes"`
		IntervalMinutes int      `yaml:"interval_minutes" default:"5" validate:"min=1"`
		CandleLimit     int      `yaml:"candle_limit" default:"200" validate:"min=20"`
	} `yaml:"scanner"`

	Signals struct {
		MinConfluence      int     `yaml:"min_confluence" default:"3" validate:"min=1"`
		RequireHTF         bool    `yaml:"require_htf" default:"true"`
		CooldownHours      int     `yaml:"cooldown_hours" default:"4" validate:"min=0"`
		DefaultRR          float64 `yaml:"default_rr" default:"3"`
		MinRiskPct         float64 `yaml:"min_risk_pct" default:"0.5"`
		MinZoneSizePct     float64 `yaml:"min_zone_size_pct" default:"0.1"`
		OrderBlockStrength float64 `yaml:"order_block_strength" default:"1.5"`
		SweepNoisePct      float64 `yaml:"sweep_noise_pct" default:"0.02"`
		// Hours before an untouched active pattern expires, per timeframe.
		ExpiryHours map[string]int `yaml:"expiry_hours"`
	} `yaml:"signals"`

	Ntfy struct {
		URL      string `yaml:"url" default:"https://ntfy.sh"`
		Topic    string `yaml:"topic" default:"cryptolens-signals"`
		Priority int    `yaml:"priority" default:"4" validate:"min=1,max=5"`
	} `yaml:"ntfy"`

	FCM struct {
		Enabled         bool   `yaml:"enabled"`
		CredentialsPath string `yaml:"credentials_path"`
	} `yaml:"fcm"`

	Dispatcher struct {
		MaxConcurrent         int `yaml:"max_concurrent" default:"100" validate:"min=1"`
		MaxPerHost            int `yaml:"max_per_host" default:"30" validate:"min=1"`
		RequestTimeoutSeconds int `yaml:"request_timeout_seconds" default:"10" validate:"min=1"`
		MaxRetries            int `yaml:"max_retries" default:"3" validate:"min=0"`
		BreakerFailMax        int `yaml:"breaker_fail_max" default:"5" validate:"min=1"`
		BreakerResetSeconds   int `yaml:"breaker_reset_seconds" default:"60" validate:"min=1"`
	} `yaml:"dispatcher"`

	Tiers TierConfig `yaml:"tiers"`
}

// TierConfig overrides the per-tier quota and delay defaults.
type TierConfig struct {
	Free    TierLimits `yaml:"free"`
	Pro     TierLimits `yaml:"pro"`
	Premium TierLimits `yaml:"premium"`
}

// TierLimits is the configurable part of a tier policy. Zero values keep
// the built-in defaults.
type TierLimits struct {
	DailyNotifications int `yaml:"daily_notifications"`
	DelaySeconds       int `yaml:"delay_seconds"`
}

// Load reads, defaults, env-overrides and validates the configuration.
func Load(path string) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	c.applyEnv()
	c.applyFallbacks()

	if err := validator.New().Struct(&c); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	if err := c.validateTimeframes(); err != nil {
		return nil, err
	}

	return &c, nil
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		c.Database.URL = v
	}
	if v := strings.TrimSpace(os.Getenv("REDIS_ADDR")); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := strings.TrimSpace(os.Getenv("NTFY_TOPIC")); v != "" {
		c.Ntfy.Topic = v
	}
	if v := strings.TrimSpace(os.Getenv("NTFY_PRIORITY")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Ntfy.Priority = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("FIREBASE_CREDENTIALS_PATH")); v != "" {
		c.FCM.CredentialsPath = v
		c.FCM.Enabled = true
	}
	if v := strings.TrimSpace(os.Getenv("SCAN_INTERVAL_MINUTES")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Scanner.IntervalMinutes = n
		}
	}
}

func (c *Config) applyFallbacks() {
	if len(c.Scanner.Symbols) == 0 {
		c.Scanner.Symbols = []string{
			"BTC/USDT", "ETH/USDT", "BNB/USDT", "XRP/USDT", "ADA/USDT",
			"DOGE/USDT", "SOL/USDT", "DOT/USDT", "LTC/USDT", "AVAX/USDT",
			"LINK/USDT", "ATOM/USDT", "UNI/USDT", "XLM/USDT", "BCH/USDT",
		}
	}
	if len(c.Scanner.Timeframes) == 0 {
		for _, tf := range domain.Timeframes {
			c.Scanner.Timeframes = append(c.Scanner.Timeframes, string(tf))
		}
	}
	if len(c.Signals.ExpiryHours) == 0 {
		c.Signals.ExpiryHours = map[string]int{
			"1m": 4, "5m": 12, "15m": 24, "1h": 48, "4h": 96, "1d": 168,
		}
	}
}

func (c *Config) validateTimeframes() error {
	for _, tf := range c.Scanner.Timeframes {
		if domain.Timeframe(tf).Duration() == 0 {
			return fmt.Errorf("unknown timeframe %q", tf)
		}
	}
	return nil
}

// ScanTimeframes returns the configured timeframes in ascending duration.
func (c *Config) ScanTimeframes() []domain.Timeframe {
	out := make([]domain.Timeframe, 0, len(c.Scanner.Timeframes))
	for _, tf := range domain.Timeframes {
		for _, cfg := range c.Scanner.Timeframes {
			if string(tf) == cfg {
				out = append(out, tf)
				break
			}
		}
	}
	return out
}

// ExpiryFor returns the active-pattern expiry window for a timeframe.
func (c *Config) ExpiryFor(tf domain.Timeframe) time.Duration {
	if h, ok := c.Signals.ExpiryHours[string(tf)]; ok && h > 0 {
		return time.Duration(h) * time.Hour
	}
	return 48 * time.Hour
}

// Cooldown returns the signal dedup window.
func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.Signals.CooldownHours) * time.Hour
}

// RequestTimeout returns the per-delivery HTTP timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Dispatcher.RequestTimeoutSeconds) * time.Second
}

// BreakerReset returns the circuit breaker cooldown.
func (c *Config) BreakerReset() time.Duration {
	return time.Duration(c.Dispatcher.BreakerResetSeconds) * time.Second
}
