package indicators

import (
	"fmt"

	"github.com/rustyeddy/papertrader/market"
)

// Swing tracks the highest high and lowest low of the last lookback candles.
type Swing struct {
	lookback int
	highs    []float64
	lows     []float64
}

func NewSwing(lookback int) *Swing {
	return &Swing{
		lookback: lookback,
		highs:    make([]float64, 0, lookback),
		lows:     make([]float64, 0, lookback),
	}
}

func (s *Swing) Name() string { return fmt.Sprintf("SWING(%d)", s.lookback) }
func (s *Swing) Warmup() int  { return s.lookback }

func (s *Swing) Reset() {
	s.highs = s.highs[:0]
	s.lows = s.lows[:0]
}

func (s *Swing) Update(c market.Candle) {
	s.highs = append(s.highs, c.High)
	s.lows = append(s.lows, c.Low)
	if len(s.highs) > s.lookback {
		s.highs = s.highs[1:]
		s.lows = s.lows[1:]
	}
}

func (s *Swing) Ready() bool { return len(s.highs) >= s.lookback }

// Value is the swing high.
func (s *Swing) Value() float64 { return s.High() }

func (s *Swing) High() float64 {
	if !s.Ready() {
		return 0
	}
	hi := s.highs[0]
	for _, h := range s.highs[1:] {
		hi = max(hi, h)
	}
	return hi
}

func (s *Swing) Low() float64 {
	if !s.Ready() {
		return 0
	}
	lo := s.lows[0]
	for _, l := range s.lows[1:] {
		lo = min(lo, l)
	}
	return lo
}
