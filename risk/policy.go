package risk

import (
	"fmt"
	"time"
	_ "time/tzdata"
)

type Policy struct {
	// Virtual capital the paper session trades against.
	Capital float64 `json:"capital" yaml:"capital" mapstructure:"capital"`

	// Risk limits (fractions: 0.01 = 1%)
	RiskPerTradePct float64 `json:"risk_per_trade_pct" yaml:"risk_per_trade_pct" mapstructure:"risk_per_trade_pct"`
	MinRR           float64 `json:"min_rr" yaml:"min_rr" mapstructure:"min_rr"`

	// Circuit breakers. MaxDailyLoss is an absolute amount; when zero it is
	// derived from MaxDailyLossPct of Capital.
	MaxDailyLoss         float64 `json:"max_daily_loss" yaml:"max_daily_loss" mapstructure:"max_daily_loss"`
	MaxDailyLossPct      float64 `json:"max_daily_loss_pct" yaml:"max_daily_loss_pct" mapstructure:"max_daily_loss_pct"`
	MaxConsecutiveLosses int     `json:"max_consecutive_losses_per_day" yaml:"max_consecutive_losses_per_day" mapstructure:"max_consecutive_losses_per_day"`
	MaxTradesPerDay      int     `json:"max_trades_per_day" yaml:"max_trades_per_day" mapstructure:"max_trades_per_day"`

	// Exposure limits
	MaxOpenTrades int `json:"max_open_trades" yaml:"max_open_trades" mapstructure:"max_open_trades"`

	// Sizing. FixedQuantity overrides risk-based sizing when non-zero.
	FixedQuantity float64 `json:"fixed_quantity" yaml:"fixed_quantity" mapstructure:"fixed_quantity"`

	// Entry window, HH:MM in Timezone. Empty leaves that side open.
	SessionStart string `json:"session_start" yaml:"session_start" mapstructure:"session_start"`
	SessionEnd   string `json:"session_end" yaml:"session_end" mapstructure:"session_end"`
	Timezone     string `json:"timezone" yaml:"timezone" mapstructure:"timezone"`

	NoTrade NoTradeConfig `json:"no_trade" yaml:"no_trade" mapstructure:"no_trade"`
}

func DefaultPolicy() Policy {
	return Policy{
		Capital:              100000,
		RiskPerTradePct:      0.01,
		MaxDailyLossPct:      0.03,
		MaxConsecutiveLosses: 3,
		MaxTradesPerDay:      5,
		MaxOpenTrades:        3,
		SessionStart:         "09:15",
		SessionEnd:           "15:30",
		Timezone:             "Asia/Kolkata",
		NoTrade:              DefaultNoTradeConfig(),
	}
}

// DailyLossLimit is the positive loss amount that trips the daily latch.
func (p Policy) DailyLossLimit() float64 {
	if p.MaxDailyLoss > 0 {
		return p.MaxDailyLoss
	}
	return p.MaxDailyLossPct * p.Capital
}

func (p Policy) Validate() error {
	if p.Capital <= 0 {
		return fmt.Errorf("risk: capital must be positive")
	}
	if p.RiskPerTradePct <= 0 || p.RiskPerTradePct > 1 {
		return fmt.Errorf("risk: risk_per_trade_pct must be in (0, 1], got %v", p.RiskPerTradePct)
	}
	if p.MaxDailyLoss < 0 || p.MaxDailyLossPct < 0 || p.MaxDailyLossPct > 1 {
		return fmt.Errorf("risk: daily loss limits must be non-negative fractions")
	}
	if p.DailyLossLimit() <= 0 {
		return fmt.Errorf("risk: a daily loss limit is required")
	}
	if p.MaxOpenTrades < 0 || p.MaxTradesPerDay < 0 || p.MaxConsecutiveLosses < 0 {
		return fmt.Errorf("risk: count limits must not be negative")
	}
	if p.FixedQuantity < 0 {
		return fmt.Errorf("risk: fixed_quantity must not be negative")
	}
	if _, err := NewSession(p.SessionStart, p.SessionEnd, p.Timezone); err != nil {
		return fmt.Errorf("risk: %w", err)
	}
	return p.NoTrade.Validate()
}

// Session is the entry window for new trades.
type Session struct {
	start, end int // minutes after midnight, -1 when open
	loc        *time.Location
}

func NewSession(start, end, tz string) (Session, error) {
	s := Session{start: -1, end: -1}
	var err error
	if s.start, err = clock(start); err != nil {
		return s, fmt.Errorf("session_start: %w", err)
	}
	if s.end, err = clock(end); err != nil {
		return s, fmt.Errorf("session_end: %w", err)
	}
	if s.start >= 0 && s.end >= 0 && s.end <= s.start {
		return s, fmt.Errorf("session_end %s must be after session_start %s", end, start)
	}
	if s.loc, err = time.LoadLocation(tz); err != nil {
		return s, fmt.Errorf("timezone: %w", err)
	}
	return s, nil
}

func (s Session) Contains(at time.Time) bool {
	if s.loc == nil {
		return true
	}
	local := at.In(s.loc)
	m := local.Hour()*60 + local.Minute()
	if s.start >= 0 && m < s.start {
		return false
	}
	if s.end >= 0 && m >= s.end {
		return false
	}
	return true
}

func (s Session) Location() *time.Location {
	if s.loc == nil {
		return time.UTC
	}
	return s.loc
}

// Day is the trading day of at in the session's timezone.
func (s Session) Day(at time.Time) string {
	if s.loc != nil {
		at = at.In(s.loc)
	}
	return at.Format(time.DateOnly)
}

func clock(v string) (int, error) {
	if v == "" {
		return -1, nil
	}
	t, err := time.Parse("15:04", v)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}
