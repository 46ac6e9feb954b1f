package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/papertrader/exit"
	"github.com/rustyeddy/papertrader/indicators"
	"github.com/rustyeddy/papertrader/ledger"
	"github.com/rustyeddy/papertrader/market"
	"github.com/rustyeddy/papertrader/risk"
)

// EnvPrefix namespaces environment overrides: PAPERTRADER_RISK_CAPITAL
// sets risk.capital.
const EnvPrefix = "PAPERTRADER"

// Config represents the complete paper-trading configuration
type Config struct {
	Instruments []market.Instrument `json:"instruments" yaml:"instruments" mapstructure:"instruments"`
	Risk        risk.Policy         `json:"risk" yaml:"risk" mapstructure:"risk"`
	Exit        exit.Config         `json:"exit" yaml:"exit" mapstructure:"exit"`
	Ledger      ledger.Rules        `json:"ledger" yaml:"ledger" mapstructure:"ledger"`
	Indicators  indicators.Periods  `json:"indicators" yaml:"indicators" mapstructure:"indicators"`
	Engine      EngineConfig        `json:"engine" yaml:"engine" mapstructure:"engine"`
	Journal     JournalConfig       `json:"journal" yaml:"journal" mapstructure:"journal"`
	Server      ServerConfig        `json:"server" yaml:"server" mapstructure:"server"`
	Logger      LoggerConfig        `json:"logger" yaml:"logger" mapstructure:"logger"`
}

// EngineConfig contains session engine parameters
type EngineConfig struct {
	// StaleAfter flags live trades with no price update for this long.
	StaleAfter time.Duration `json:"stale_after" yaml:"stale_after" mapstructure:"stale_after"`
	// EquityInterval is how often an equity snapshot is journaled; zero disables it.
	EquityInterval time.Duration `json:"equity_interval" yaml:"equity_interval" mapstructure:"equity_interval"`
	// AutoStart starts accepting signals without a start command.
	AutoStart bool `json:"auto_start" yaml:"auto_start" mapstructure:"auto_start"`
}

// JournalConfig contains journaling parameters
type JournalConfig struct {
	Type   string `json:"type" yaml:"type" mapstructure:"type"` // "csv", "sqlite" or "none"
	Dir    string `json:"dir,omitempty" yaml:"dir,omitempty" mapstructure:"dir"`
	DBPath string `json:"db_path,omitempty" yaml:"db_path,omitempty" mapstructure:"db_path"`
}

// ServerConfig holds the configuration for the dashboard API.
type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr" mapstructure:"addr"`
	// Command endpoints (exit/start/stop) share one token bucket.
	RateLimit      float64 `json:"rate_limit" yaml:"rate_limit" mapstructure:"rate_limit"`
	RateLimitBurst int     `json:"rate_limit_burst" yaml:"rate_limit_burst" mapstructure:"rate_limit_burst"`
}

// LoggerConfig holds the configuration for the logger.
type LoggerConfig struct {
	Level  string `json:"level" yaml:"level" mapstructure:"level"`
	Format string `json:"format" yaml:"format" mapstructure:"format"`
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Instruments: append([]market.Instrument(nil), market.DefaultInstruments...),
		Risk:        risk.DefaultPolicy(),
		Exit:        exit.DefaultConfig(),
		Ledger:      ledger.DefaultRules(),
		Indicators:  indicators.DefaultPeriods(),
		Engine: EngineConfig{
			StaleAfter:     2 * time.Minute,
			EquityInterval: time.Minute,
		},
		Journal: JournalConfig{
			Type:   "sqlite",
			DBPath: "./papertrader.db",
		},
		Server: ServerConfig{
			Addr:           ":8080",
			RateLimit:      5,
			RateLimitBurst: 10,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads the defaults, merges the file at path (if any) and applies
// PAPERTRADER_* environment overrides.
func Load(path string) (*Config, error) {
	base, err := yaml.Marshal(Default())
	if err != nil {
		return nil, fmt.Errorf("marshal defaults: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(base)); err != nil {
		return nil, fmt.Errorf("read defaults: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a file without defaults or
// environment overrides (JSON or YAML).
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}

	// Try YAML first, fall back to JSON
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveToFile saves configuration to a file (JSON or YAML based on extension)
func (c *Config) SaveToFile(path string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error
	if len(c.Instruments) == 0 {
		errs = append(errs, fmt.Errorf("instruments: at least one instrument is required"))
	}
	if _, err := c.Registry(); err != nil {
		errs = append(errs, fmt.Errorf("instruments: %w", err))
	}
	if err := c.Risk.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Exit.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("exit: %w", err))
	}
	if err := c.Ledger.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Ledger.MaxTradesPerDay != c.Risk.MaxTradesPerDay && c.Ledger.MaxTradesPerDay != 0 && c.Risk.MaxTradesPerDay != 0 {
		errs = append(errs, fmt.Errorf("ledger.max_trades_per_day (%d) disagrees with risk.max_trades_per_day (%d)",
			c.Ledger.MaxTradesPerDay, c.Risk.MaxTradesPerDay))
	}
	p := c.Indicators
	if p.ATR <= 0 || p.RSI <= 0 || p.Fast <= 0 || p.Slow <= 0 || p.Swing <= 0 || p.ADX < 0 {
		errs = append(errs, fmt.Errorf("indicators: periods must be positive"))
	}
	if c.Engine.StaleAfter < 0 || c.Engine.EquityInterval < 0 {
		errs = append(errs, fmt.Errorf("engine: durations must not be negative"))
	}
	switch c.Journal.Type {
	case "none":
	case "csv":
		if c.Journal.Dir == "" {
			errs = append(errs, fmt.Errorf("journal.dir required for CSV type"))
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			errs = append(errs, fmt.Errorf("journal.db_path required for SQLite type"))
		}
	default:
		errs = append(errs, fmt.Errorf("journal.type must be 'csv', 'sqlite' or 'none'"))
	}
	if c.Server.RateLimit < 0 || c.Server.RateLimitBurst < 0 {
		errs = append(errs, fmt.Errorf("server: rate limits must not be negative"))
	}
	return errors.Join(errs...)
}

// Registry builds the instrument registry from Instruments.
func (c *Config) Registry() (market.Registry, error) {
	return market.NewRegistry(c.Instruments)
}

// Symbols lists the configured instrument symbols in order.
func (c *Config) Symbols() []string {
	out := make([]string, len(c.Instruments))
	for i, in := range c.Instruments {
		out[i] = in.Symbol
	}
	return out
}
