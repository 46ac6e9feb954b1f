package exit

import (
	"errors"
	"fmt"
	"math"
	"time"

	// Session times default to Asia/Kolkata; hosts without a zoneinfo
	// database still need to resolve it.
	_ "time/tzdata"
)

// StepLevel locks LockR of profit once the trade has reached ProfitR.
type StepLevel struct {
	ProfitR float64 `json:"profit_r" yaml:"profit_r" mapstructure:"profit_r"`
	LockR   float64 `json:"lock_r" yaml:"lock_r" mapstructure:"lock_r"`
}

type StepConfig struct {
	Enabled bool        `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Levels  []StepLevel `json:"levels" yaml:"levels" mapstructure:"levels"`
}

// ATRConfig controls ATR trailing. InitialMultiplier is the multiplier the
// strategy used to place the initial stop; trailing multipliers may not be
// wider than it.
type ATRConfig struct {
	Enabled           bool    `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	ActivationR       float64 `json:"activation_r" yaml:"activation_r" mapstructure:"activation_r"`
	InitialMultiplier float64 `json:"initial_multiplier" yaml:"initial_multiplier" mapstructure:"initial_multiplier"`
	TrendMultiplier   float64 `json:"trend_multiplier" yaml:"trend_multiplier" mapstructure:"trend_multiplier"`
	ChoppyMultiplier  float64 `json:"choppy_multiplier" yaml:"choppy_multiplier" mapstructure:"choppy_multiplier"`
	ADXTrend          float64 `json:"adx_trend" yaml:"adx_trend" mapstructure:"adx_trend"`
	EMASeparation     float64 `json:"ema_separation_atr" yaml:"ema_separation_atr" mapstructure:"ema_separation_atr"`
}

type Config struct {
	ATR   ATRConfig  `json:"atr" yaml:"atr" mapstructure:"atr"`
	Steps StepConfig `json:"steps" yaml:"steps" mapstructure:"steps"`

	// SessionEnd is the HH:MM wall-clock time at which open trades are
	// closed. Empty disables the market-close exit.
	SessionEnd string `json:"session_end" yaml:"session_end" mapstructure:"session_end"`
	Timezone   string `json:"timezone" yaml:"timezone" mapstructure:"timezone"`
}

var ErrConfig = errors.New("invalid exit config")

func DefaultConfig() Config {
	return Config{
		ATR: ATRConfig{
			Enabled:           true,
			ActivationR:       0,
			InitialMultiplier: 1.5,
			TrendMultiplier:   1.3,
			ChoppyMultiplier:  1.0,
			ADXTrend:          25,
			EMASeparation:     0.5,
		},
		Steps: StepConfig{
			Enabled: true,
			Levels: []StepLevel{
				{ProfitR: 1, LockR: 0},
				{ProfitR: 2, LockR: 0.5},
				{ProfitR: 3, LockR: 1.5},
			},
		},
		SessionEnd: "15:15",
		Timezone:   "Asia/Kolkata",
	}
}

func (c Config) Validate() error {
	if c.ATR.Enabled {
		a := c.ATR
		if a.TrendMultiplier <= 0 || a.ChoppyMultiplier <= 0 {
			return fmt.Errorf("%w: atr multipliers must be positive", ErrConfig)
		}
		if a.InitialMultiplier > 0 && (a.TrendMultiplier > a.InitialMultiplier || a.ChoppyMultiplier > a.InitialMultiplier) {
			return fmt.Errorf("%w: trailing multiplier (trend %.2f, choppy %.2f) exceeds initial multiplier %.2f",
				ErrConfig, a.TrendMultiplier, a.ChoppyMultiplier, a.InitialMultiplier)
		}
		if a.ActivationR < 0 {
			return fmt.Errorf("%w: activation_r must not be negative", ErrConfig)
		}
	}
	if c.Steps.Enabled {
		prev := StepLevel{ProfitR: 0, LockR: math.Inf(-1)}
		for i, l := range c.Steps.Levels {
			if l.ProfitR <= 0 {
				return fmt.Errorf("%w: step %d: profit_r must be positive", ErrConfig, i)
			}
			if l.LockR >= l.ProfitR {
				return fmt.Errorf("%w: step %d: lock_r %.2f must be below profit_r %.2f", ErrConfig, i, l.LockR, l.ProfitR)
			}
			if l.ProfitR <= prev.ProfitR || l.LockR < prev.LockR {
				return fmt.Errorf("%w: step levels must be ordered by profit_r with non-decreasing lock_r", ErrConfig)
			}
			prev = l
		}
	}
	if _, err := parseClock(c.SessionEnd); err != nil {
		return fmt.Errorf("%w: session_end: %v", ErrConfig, err)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("%w: timezone: %v", ErrConfig, err)
	}
	return nil
}

// parseClock parses HH:MM into minutes after midnight; "" yields -1.
func parseClock(s string) (int, error) {
	if s == "" {
		return -1, nil
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}
