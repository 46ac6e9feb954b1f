package indicators

import "github.com/rustyeddy/papertrader/market"

// Periods configures a Snapshot. Zero ADX disables it.
type Periods struct {
	ATR   int `json:"atr" yaml:"atr" mapstructure:"atr"`
	RSI   int `json:"rsi" yaml:"rsi" mapstructure:"rsi"`
	Fast  int `json:"ema_fast" yaml:"ema_fast" mapstructure:"ema_fast"`
	Slow  int `json:"ema_slow" yaml:"ema_slow" mapstructure:"ema_slow"`
	Swing int `json:"swing" yaml:"swing" mapstructure:"swing"`
	ADX   int `json:"adx" yaml:"adx" mapstructure:"adx"`
}

func DefaultPeriods() Periods {
	return Periods{ATR: 14, RSI: 14, Fast: 20, Slow: 50, Swing: 10, ADX: 14}
}

// Snapshot keeps the indicator set for one symbol and renders it as the
// market.Indicators the engine consumes.
type Snapshot struct {
	atr   *ATR
	rsi   *RSI
	fast  *ExponentialMA
	slow  *ExponentialMA
	swing *Swing
	adx   *ADX
}

func NewSnapshot(p Periods) *Snapshot {
	s := &Snapshot{
		atr:   NewATR(p.ATR),
		rsi:   NewRSI(p.RSI),
		fast:  NewEMA(p.Fast),
		slow:  NewEMA(p.Slow),
		swing: NewSwing(p.Swing),
	}
	if p.ADX > 0 {
		s.adx = NewADX(p.ADX)
	}
	return s
}

func (s *Snapshot) all() []Indicator {
	out := []Indicator{s.atr, s.rsi, s.fast, s.slow, s.swing}
	if s.adx != nil {
		out = append(out, s.adx)
	}
	return out
}

// Update feeds a closed candle to every indicator and returns the current
// snapshot. Values not yet warmed up are zero.
func (s *Snapshot) Update(c market.Candle) market.Indicators {
	for _, ind := range s.all() {
		ind.Update(c)
	}
	return s.Current()
}

func (s *Snapshot) Current() market.Indicators {
	in := market.Indicators{
		ATR:       s.atr.Value(),
		RSI:       s.rsi.Value(),
		EMA20:     s.fast.Value(),
		EMA50:     s.slow.Value(),
		SwingHigh: s.swing.High(),
		SwingLow:  s.swing.Low(),
	}
	if s.adx != nil {
		in.ADX = s.adx.Value()
	}
	return in
}

// Ready reports whether ATR and both EMAs are warmed up; RSI, swing and
// ADX may still be zero.
func (s *Snapshot) Ready() bool {
	return s.atr.Ready() && s.fast.Ready() && s.slow.Ready()
}

func (s *Snapshot) Reset() {
	for _, ind := range s.all() {
		ind.Reset()
	}
}
