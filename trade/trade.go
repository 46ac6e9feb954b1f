package trade

import (
	"errors"
	"fmt"
	"math"
	"time"
)

type ExitReason string

const (
	ExitStopLoss       ExitReason = "STOP_LOSS"
	ExitTrailingStop   ExitReason = "TRAILING_STOP"
	ExitTarget         ExitReason = "TARGET"
	ExitSignalReversal ExitReason = "SIGNAL_REVERSAL"
	ExitMarketClose    ExitReason = "MARKET_CLOSE"
	ExitManual         ExitReason = "MANUAL"
	ExitEndOfData      ExitReason = "END_OF_DATA"
)

var ErrStopLoosened = errors.New("stop would loosen")

// Fill is one partial exit booked before the trade closed.
type Fill struct {
	Quantity float64    `json:"quantity"`
	Price    float64    `json:"price"`
	Reason   ExitReason `json:"reason"`
	Time     time.Time  `json:"time"`
}

// Trade is a simulated position and its full history. A Trade is owned by
// the ledger; everything else works on copies returned by Clone.
type Trade struct {
	ID         string    `json:"id"`
	Symbol     string    `json:"symbol"`
	Direction  Direction `json:"direction"`
	Strategy   string    `json:"strategy"`
	Pattern    string    `json:"pattern"`
	Confidence float64   `json:"confidence"`

	EntryPrice   float64 `json:"entry_price"`
	InitialStop  float64 `json:"initial_stop"`
	StopLoss     float64 `json:"stop_loss"`
	TrailingStop float64 `json:"trailing_stop,omitempty"`
	Target       float64 `json:"target,omitempty"`
	Quantity     float64 `json:"quantity"`
	OpenQuantity float64 `json:"open_quantity"`

	State        State      `json:"state"`
	SignalTime   time.Time  `json:"signal_time"`
	EntryTime    time.Time  `json:"entry_time,omitempty"`
	ExitTime     time.Time  `json:"exit_time,omitempty"`
	ExitPrice    float64    `json:"exit_price,omitempty"`
	ExitReason   ExitReason `json:"exit_reason,omitempty"`
	CancelReason string     `json:"cancel_reason,omitempty"`

	// RealizedPnL stays nil until the CLOSED transition and is never
	// rewritten after it. PartialPnL accumulates partial exits before that.
	RealizedPnL *float64 `json:"realized_pnl"`
	PartialPnL  float64  `json:"partial_pnl,omitempty"`
	Partials    []Fill   `json:"partials,omitempty"`

	LastPrice     float64   `json:"ltp"`
	LastUpdate    time.Time `json:"last_update,omitempty"`
	UnrealizedPnL float64   `json:"unrealized_pnl"`
	HighestPrice  float64   `json:"highest_price"`
	LowestPrice   float64   `json:"lowest_price"`
	MFE           float64   `json:"mfe"`
	MAE           float64   `json:"mae"`
	Stale         bool      `json:"stale"`

	exitQty      float64
	exitNotional float64
}

// New creates a trade in SIGNAL_GENERATED from a validated signal.
func New(id string, sig Signal, quantity float64) *Trade {
	return &Trade{
		ID:          id,
		Symbol:      sig.Symbol,
		Direction:   sig.Direction,
		Strategy:    sig.Strategy,
		Pattern:     sig.Pattern,
		Confidence:  sig.Confidence,
		EntryPrice:  sig.EntryPrice,
		InitialStop: sig.StopLoss,
		StopLoss:    sig.StopLoss,
		Target:      sig.Target,
		Quantity:    quantity,
		State:       SignalGenerated,
		SignalTime:  sig.Time,
	}
}

func (t *Trade) Transition(to State) error {
	if err := checkTransition(t.State, to); err != nil {
		return fmt.Errorf("trade %s: %w", t.ID, err)
	}
	t.State = to
	return nil
}

// Fill opens the trade at price. The stop and target keep their absolute
// levels; only the entry moves.
func (t *Trade) Fill(price float64, at time.Time) error {
	if err := t.Transition(Open); err != nil {
		return err
	}
	t.EntryPrice = price
	t.EntryTime = at
	t.OpenQuantity = t.Quantity
	t.LastPrice = price
	t.LastUpdate = at
	t.HighestPrice = price
	t.LowestPrice = price
	return nil
}

// Mark revalues an open trade at price. It never changes state.
func (t *Trade) Mark(price float64, at time.Time) {
	t.markRange(price, price, price, at)
}

// MarkRange revalues against a candle: extremes and excursions use its
// high and low, unrealized P&L uses close.
func (t *Trade) MarkRange(high, low, close float64, at time.Time) {
	t.markRange(high, low, close, at)
}

func (t *Trade) markRange(high, low, close float64, at time.Time) {
	if !t.State.Live() {
		return
	}
	t.LastPrice = close
	t.LastUpdate = at
	t.Stale = false
	t.UnrealizedPnL = PnL(t.Direction, t.EntryPrice, close, t.OpenQuantity)
	if high > t.HighestPrice {
		t.HighestPrice = high
	}
	if low < t.LowestPrice {
		t.LowestPrice = low
	}
	best, worst := high, low
	if !t.Direction.Long() {
		best, worst = low, high
	}
	if fav := Excursion(t.Direction, t.EntryPrice, best); fav > t.MFE {
		t.MFE = fav
	}
	if adv := -Excursion(t.Direction, t.EntryPrice, worst); adv > t.MAE {
		t.MAE = adv
	}
}

// Reduce books a partial exit of qty units at price.
func (t *Trade) Reduce(qty, price float64, reason ExitReason, at time.Time) error {
	if reason == "" {
		return fmt.Errorf("trade %s: exit reason is required", t.ID)
	}
	if qty <= 0 || qty >= t.OpenQuantity {
		return fmt.Errorf("trade %s: partial exit of %v from %v open: %w", t.ID, qty, t.OpenQuantity, ErrInvalidTransition)
	}
	if err := t.checkExitTime(at); err != nil {
		return err
	}
	if err := t.Transition(PartialExit); err != nil {
		return err
	}
	t.PartialPnL += PnL(t.Direction, t.EntryPrice, price, qty)
	t.exitQty += qty
	t.exitNotional += qty * price
	t.OpenQuantity -= qty
	t.UnrealizedPnL = PnL(t.Direction, t.EntryPrice, t.LastPrice, t.OpenQuantity)
	t.Partials = append(t.Partials, Fill{Quantity: qty, Price: price, Reason: reason, Time: at})
	return nil
}

// Close books the remaining quantity at price and fixes the realized P&L.
// ExitPrice is the quantity-weighted average of every exit so that
// PnL(Direction, EntryPrice, ExitPrice, Quantity) reproduces RealizedPnL.
func (t *Trade) Close(price float64, at time.Time, reason ExitReason) error {
	if reason == "" {
		return fmt.Errorf("trade %s: exit reason is required", t.ID)
	}
	if err := t.checkExitTime(at); err != nil {
		return err
	}
	if err := t.Transition(Closed); err != nil {
		return err
	}
	qty := t.OpenQuantity
	t.exitQty += qty
	t.exitNotional += qty * price

	avg := price
	if t.exitQty > 0 {
		avg = t.exitNotional / t.exitQty
	}
	realized := PnL(t.Direction, t.EntryPrice, avg, t.Quantity)
	t.RealizedPnL = &realized
	t.ExitPrice = avg
	t.ExitTime = at
	t.ExitReason = reason
	t.OpenQuantity = 0
	t.UnrealizedPnL = 0
	t.LastPrice = price
	t.Stale = false
	return nil
}

func (t *Trade) Cancel(reason string) error {
	if reason == "" {
		return fmt.Errorf("trade %s: cancel reason is required", t.ID)
	}
	if err := t.Transition(Cancelled); err != nil {
		return err
	}
	t.CancelReason = reason
	return nil
}

func (t *Trade) checkExitTime(at time.Time) error {
	if at.Before(t.EntryTime) {
		return fmt.Errorf("trade %s: exit %s before entry %s: %w",
			t.ID, at.Format(time.RFC3339), t.EntryTime.Format(time.RFC3339), ErrInvalidTransition)
	}
	return nil
}

// Tighten moves the hard and trailing stops. A zero argument leaves that
// level alone; a level that would loosen is refused.
func (t *Trade) Tighten(hard, trailing float64) error {
	if hard != 0 && t.StopLoss != 0 && t.Direction.Better(t.StopLoss, hard) {
		return fmt.Errorf("trade %s: hard stop %.4f -> %.4f: %w", t.ID, t.StopLoss, hard, ErrStopLoosened)
	}
	if trailing != 0 && t.TrailingStop != 0 && t.Direction.Better(t.TrailingStop, trailing) {
		return fmt.Errorf("trade %s: trailing stop %.4f -> %.4f: %w", t.ID, t.TrailingStop, trailing, ErrStopLoosened)
	}
	if hard != 0 {
		t.StopLoss = hard
	}
	if trailing != 0 {
		t.TrailingStop = trailing
	}
	return nil
}

// Risk is R, the initial risk per unit.
func (t *Trade) Risk() float64 { return math.Abs(t.EntryPrice - t.InitialStop) }

// EffectiveStop is the more protective of the hard and trailing stops.
func (t *Trade) EffectiveStop() float64 {
	return t.Direction.Protective(t.StopLoss, t.TrailingStop)
}

// R expresses a price as a multiple of the initial risk.
func (t *Trade) R(price float64) float64 {
	r := t.Risk()
	if r == 0 {
		return 0
	}
	return Excursion(t.Direction, t.EntryPrice, price) / r
}

func (t *Trade) Realized() float64 {
	if t.RealizedPnL == nil {
		return 0
	}
	return *t.RealizedPnL
}

// Net is the realized P&L once closed, otherwise partial exits plus the
// unrealized P&L of the open quantity.
func (t *Trade) Net() float64 {
	if t.RealizedPnL != nil {
		return *t.RealizedPnL
	}
	return t.PartialPnL + t.UnrealizedPnL
}

func (t *Trade) Won() bool { return t.Realized() > 0 }

func (t *Trade) Clone() Trade {
	c := *t
	if t.RealizedPnL != nil {
		v := *t.RealizedPnL
		c.RealizedPnL = &v
	}
	c.Partials = append([]Fill(nil), t.Partials...)
	return c
}
