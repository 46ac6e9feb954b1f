package market

import (
	"fmt"
	"math"
	"time"
)

// Candle represents OHLC (Open, High, Low, Close) candlestick data for one
// symbol and timeframe. Closed is false while the candle is still forming.
type Candle struct {
	Symbol    string
	Timeframe string
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Start     time.Time
	Closed    bool
}

// Validate rejects candles that cannot be priced against: non-positive or
// non-finite prices and a high/low that does not bracket open and close.
func (c Candle) Validate() error {
	for _, p := range []float64{c.Open, c.High, c.Low, c.Close} {
		if math.IsNaN(p) || math.IsInf(p, 0) || p <= 0 {
			return fmt.Errorf("candle %s %s: bad price %v", c.Symbol, c.Start.Format(time.RFC3339), p)
		}
	}
	if c.High < math.Max(c.Open, c.Close) || c.Low > math.Min(c.Open, c.Close) {
		return fmt.Errorf("candle %s %s: high/low %v/%v do not bracket open/close %v/%v",
			c.Symbol, c.Start.Format(time.RFC3339), c.High, c.Low, c.Open, c.Close)
	}
	if c.Start.IsZero() {
		return fmt.Errorf("candle %s: missing start time", c.Symbol)
	}
	return nil
}

func (c Candle) Range() float64 { return c.High - c.Low }

// TimeframeDuration maps the feed's interval names to durations.
func TimeframeDuration(tf string) (time.Duration, error) {
	switch tf {
	case "1min", "minute", "M1":
		return time.Minute, nil
	case "3min", "M3":
		return 3 * time.Minute, nil
	case "5min", "M5":
		return 5 * time.Minute, nil
	case "15min", "M15":
		return 15 * time.Minute, nil
	case "30min", "M30":
		return 30 * time.Minute, nil
	case "60min", "1h", "H1":
		return time.Hour, nil
	case "day", "D1":
		return 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unsupported timeframe string: %s", tf)
	}
}
