package exit

import (
	"fmt"
	"time"

	"github.com/rustyeddy/papertrader/market"
	"github.com/rustyeddy/papertrader/trade"
)

// Update is one price event for a trade's instrument. Ticks arrive as
// degenerate candles. Reversal is set when the signal feed produced a new
// signal for the same instrument during this update.
type Update struct {
	Candle     market.Candle
	Indicators market.Indicators
	Reversal   *trade.Signal
}

// Decision is the result of one evaluation. Trailing is the ratcheted
// trailing level after the update (0 when no trailing level exists yet)
// and is meaningful whether or not the trade exits.
type Decision struct {
	Exit     bool
	Reason   trade.ExitReason
	Price    float64
	Trailing float64
	Regime   Regime
}

// Evaluator decides exits for open trades. It holds no per-trade state;
// everything it needs arrives with the trade and the update.
type Evaluator struct {
	cfg         Config
	instruments market.Registry
	sessionEnd  int
	loc         *time.Location
}

func New(cfg Config, instruments market.Registry) (*Evaluator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	end, _ := parseClock(cfg.SessionEnd)
	loc, _ := time.LoadLocation(cfg.Timezone)
	return &Evaluator{
		cfg:         cfg,
		instruments: instruments,
		sessionEnd:  end,
		loc:         loc,
	}, nil
}

func (e *Evaluator) Config() Config { return e.cfg }

// Evaluate runs the trailing update and then the exit checks in priority
// order: hard stop, trailing stop, target, signal reversal, market close.
// The first match wins.
//
// Within a candle the intra-bar path is unknown. The trailing level used
// for the checks is the one in force at the candle's open; the candle's
// high and low only ratchet it for the next update. A gap open beyond a
// level fills at the open.
func (e *Evaluator) Evaluate(t *trade.Trade, u Update) (Decision, error) {
	if !t.State.Live() {
		return Decision{}, fmt.Errorf("evaluate trade %s in state %s: %w", t.ID, t.State, trade.ErrInvalidTransition)
	}
	c := u.Candle
	if err := c.Validate(); err != nil {
		return Decision{}, err
	}

	d := t.Direction
	regime := Classify(u.Indicators, e.cfg.ATR)
	dec := Decision{Regime: regime}

	extreme := e.extreme(t, c.Open, c.Open)
	trailing := Ratchet(d, t.TrailingStop, e.candidate(t, extreme, u.Indicators, regime))
	dec.Trailing = trailing

	if px, ok := stopHit(d, t.StopLoss, c); ok {
		return e.exit(dec, trade.ExitStopLoss, px), nil
	}
	if px, ok := stopHit(d, trailing, c); ok {
		return e.exit(dec, trade.ExitTrailingStop, px), nil
	}
	if px, ok := targetHit(d, t.Target, c); ok {
		return e.exit(dec, trade.ExitTarget, px), nil
	}
	if r := u.Reversal; r != nil && r.Symbol == t.Symbol && d.Opposes(r.Direction) {
		return e.exit(dec, trade.ExitSignalReversal, c.Close), nil
	}
	if e.afterSessionEnd(c.Start) {
		return e.exit(dec, trade.ExitMarketClose, c.Close), nil
	}

	extreme = e.extreme(t, c.High, c.Low)
	dec.Trailing = Ratchet(d, trailing, e.candidate(t, extreme, u.Indicators, regime))
	return dec, nil
}

func (e *Evaluator) exit(dec Decision, reason trade.ExitReason, price float64) Decision {
	dec.Exit = true
	dec.Reason = reason
	dec.Price = price
	return dec
}

// extreme is the best price since entry including high/low of the current
// update.
func (e *Evaluator) extreme(t *trade.Trade, high, low float64) float64 {
	if t.Direction.Long() {
		if high > t.HighestPrice {
			return high
		}
		return t.HighestPrice
	}
	if low < t.LowestPrice {
		return low
	}
	return t.LowestPrice
}

func (e *Evaluator) afterSessionEnd(at time.Time) bool {
	if e.sessionEnd < 0 {
		return false
	}
	local := at.In(e.loc)
	return local.Hour()*60+local.Minute() >= e.sessionEnd
}

// SessionOver reports whether at is at or past the configured session end.
func (e *Evaluator) SessionOver(at time.Time) bool { return e.afterSessionEnd(at) }

// stopHit reports whether the candle trades through level adversely and
// the fill price: the level itself, or the open when the candle gapped
// through it.
func stopHit(d trade.Direction, level float64, c market.Candle) (float64, bool) {
	if level <= 0 {
		return 0, false
	}
	if d.Long() {
		if c.Open <= level {
			return c.Open, true
		}
		return level, c.Low <= level
	}
	if c.Open >= level {
		return c.Open, true
	}
	return level, c.High >= level
}

func targetHit(d trade.Direction, level float64, c market.Candle) (float64, bool) {
	if level <= 0 {
		return 0, false
	}
	if d.Long() {
		if c.Open >= level {
			return c.Open, true
		}
		return level, c.High >= level
	}
	if c.Open <= level {
		return c.Open, true
	}
	return level, c.Low <= level
}
