package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config collects every tunable in one validated value object. YAML supplies
// the trading parameters; credentials come from the environment only.
type Config struct {
	Exchange struct {
		RESTEndpoint string `yaml:"rest_endpoint"`
		WSEndpoint   string `yaml:"ws_endpoint"`
		Symbol       string `yaml:"symbol"`
		ProductType  string `yaml:"product_type"`
		MarginCoin   string `yaml:"margin_coin"`
	} `yaml:"exchange"`

	Trading struct {
		Leverage             int     `yaml:"leverage"`
		PositionSizeFraction float64 `yaml:"position_size_fraction"`
		MinOrderValue        float64 `yaml:"min_order_value"`
	} `yaml:"trading"`

	Protection struct {
		// StopLossFraction is capital at risk; the price delta is this
		// divided by leverage.
		StopLossFraction   float64 `yaml:"stop_loss_fraction"`
		TrailingDrop       float64 `yaml:"trailing_drop_fraction"`
		TrailingActivation float64 `yaml:"trailing_activation_fraction"`
		ReentryThreshold   float64 `yaml:"reentry_threshold_fraction"`
		MaxReentryAttempts int     `yaml:"max_reentry_attempts"`
	} `yaml:"protection"`

	Timing struct {
		CacheTTLMs       int `yaml:"cache_ttl_ms"`
		CheckGateMs      int `yaml:"check_gate_ms"`
		ActionCooldownMs int `yaml:"action_cooldown_ms"`
		DedupWindowMs    int `yaml:"dedup_window_ms"`
		RiskTickMs       int `yaml:"risk_tick_ms"`
		SettleDelayMs    int `yaml:"settle_delay_ms"`
	} `yaml:"timing"`

	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`

	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`

	Credentials Credentials `yaml:"-"`
}

// Credentials are never read from YAML.
type Credentials struct {
	APIKey        string
	APISecret     string
	APIPassphrase string
}

// Loaded reports whether all three credential parts are present.
func (c Credentials) Loaded() bool {
	return c.APIKey != "" && c.APISecret != "" && c.APIPassphrase != ""
}

// Default returns the configuration matching the production deployment.
func Default() *Config {
	cfg := &Config{}
	cfg.Exchange.RESTEndpoint = "https://api.bitget.com"
	cfg.Exchange.WSEndpoint = "wss://ws.bitget.com/v2/ws/public"
	cfg.Exchange.Symbol = "WLFIUSDT"
	cfg.Exchange.ProductType = "USDT-FUTURES"
	cfg.Exchange.MarginCoin = "USDT"

	cfg.Trading.Leverage = 4
	cfg.Trading.PositionSizeFraction = 0.96
	cfg.Trading.MinOrderValue = 5

	cfg.Protection.StopLossFraction = 0.07
	cfg.Protection.TrailingDrop = 0.25
	cfg.Protection.TrailingActivation = 0.008
	cfg.Protection.ReentryThreshold = 0.003
	cfg.Protection.MaxReentryAttempts = 3

	cfg.Timing.CacheTTLMs = 100
	cfg.Timing.CheckGateMs = 500
	cfg.Timing.ActionCooldownMs = 3000
	cfg.Timing.DedupWindowMs = 2000
	cfg.Timing.RiskTickMs = 1000
	cfg.Timing.SettleDelayMs = 500

	cfg.Server.Port = 10000
	cfg.Logging.Level = "info"
	cfg.Storage.Path = "bot.db"
	return cfg
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides. A missing file is not an error; a malformed one is.
func Load(path string) (*Config, error) {
	cfg := Default()

	if f, err := os.Open(path); err == nil {
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg.Credentials.APIKey = os.Getenv("BITGET_API_KEY")
	cfg.Credentials.APISecret = os.Getenv("BITGET_API_SECRET")
	cfg.Credentials.APIPassphrase = os.Getenv("BITGET_API_PASSPHRASE")

	if p := os.Getenv("PORT"); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT %q: %w", p, err)
		}
		cfg.Server.Port = port
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects parameter combinations the risk math cannot work with.
func (c *Config) Validate() error {
	if c.Exchange.Symbol == "" {
		return fmt.Errorf("exchange.symbol must be set")
	}
	if c.Trading.Leverage <= 0 {
		return fmt.Errorf("trading.leverage must be > 0, got %d", c.Trading.Leverage)
	}
	if c.Trading.PositionSizeFraction <= 0 || c.Trading.PositionSizeFraction > 1 {
		return fmt.Errorf("trading.position_size_fraction must be in (0,1], got %g", c.Trading.PositionSizeFraction)
	}
	if c.Trading.MinOrderValue < 0 {
		return fmt.Errorf("trading.min_order_value must be >= 0, got %g", c.Trading.MinOrderValue)
	}
	for name, v := range map[string]float64{
		"protection.stop_loss_fraction":           c.Protection.StopLossFraction,
		"protection.trailing_drop_fraction":       c.Protection.TrailingDrop,
		"protection.trailing_activation_fraction": c.Protection.TrailingActivation,
		"protection.reentry_threshold_fraction":   c.Protection.ReentryThreshold,
	} {
		if v <= 0 || v >= 1 {
			return fmt.Errorf("%s must be in (0,1), got %g", name, v)
		}
	}
	if c.Protection.MaxReentryAttempts < 0 {
		return fmt.Errorf("protection.max_reentry_attempts must be >= 0, got %d", c.Protection.MaxReentryAttempts)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in (0,65535], got %d", c.Server.Port)
	}
	return nil
}

func (c *Config) CacheTTL() time.Duration { return ms(c.Timing.CacheTTLMs) }

func (c *Config) CheckGate() time.Duration { return ms(c.Timing.CheckGateMs) }

func (c *Config) ActionCooldown() time.Duration { return ms(c.Timing.ActionCooldownMs) }

func (c *Config) DedupWindow() time.Duration { return ms(c.Timing.DedupWindowMs) }

func (c *Config) RiskTick() time.Duration { return ms(c.Timing.RiskTickMs) }

func (c *Config) SettleDelay() time.Duration { return ms(c.Timing.SettleDelayMs) }

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }
