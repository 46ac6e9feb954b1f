package trade

import (
	"fmt"
	"math"
	"time"

	"github.com/rustyeddy/papertrader/market"
)

// Signal is a strategy's request to open a trade. It is never mutated.
type Signal struct {
	Symbol     string            `json:"symbol"`
	Direction  Direction         `json:"direction"`
	EntryPrice float64           `json:"entry_price"`
	StopLoss   float64           `json:"stop_loss"`
	Target     float64           `json:"target,omitempty"`
	Confidence float64           `json:"confidence"`
	Strategy   string            `json:"strategy"`
	Pattern    string            `json:"pattern"`
	Time       time.Time         `json:"time"`
	Indicators market.Indicators `json:"indicators"`
}

func (s Signal) Validate() error {
	if s.Symbol == "" {
		return fmt.Errorf("signal: symbol is required")
	}
	if _, err := ParseDirection(string(s.Direction)); err != nil {
		return fmt.Errorf("signal %s: %w", s.Symbol, err)
	}
	if !finite(s.EntryPrice) || s.EntryPrice <= 0 {
		return fmt.Errorf("signal %s: entry price must be positive", s.Symbol)
	}
	if !finite(s.StopLoss) || s.StopLoss <= 0 {
		return fmt.Errorf("signal %s: stop loss must be positive", s.Symbol)
	}
	if !s.Direction.Better(s.EntryPrice, s.StopLoss) {
		return fmt.Errorf("signal %s %s: stop %.2f is not on the adverse side of entry %.2f",
			s.Symbol, s.Direction, s.StopLoss, s.EntryPrice)
	}
	if s.Target != 0 && !s.Direction.Better(s.Target, s.EntryPrice) {
		return fmt.Errorf("signal %s %s: target %.2f is not on the favourable side of entry %.2f",
			s.Symbol, s.Direction, s.Target, s.EntryPrice)
	}
	if s.Time.IsZero() {
		return fmt.Errorf("signal %s: missing timestamp", s.Symbol)
	}
	return nil
}

// Risk is the initial risk per unit, |entry - stop|.
func (s Signal) Risk() float64 { return math.Abs(s.EntryPrice - s.StopLoss) }

func finite(x float64) bool { return !math.IsNaN(x) && !math.IsInf(x, 0) }
