package ledger

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rustyeddy/papertrader/internal/id"
	"github.com/rustyeddy/papertrader/risk"
	"github.com/rustyeddy/papertrader/trade"
)

var ErrNotFound = errors.New("trade not found")

// CancelGapThroughStop is the cancel reason for a next-open fill that
// opened beyond the stop.
const CancelGapThroughStop = "GAP_THROUGH_STOP"

// Ledger owns every trade of a session. Callers get copies; all mutation
// goes through Ledger methods, which check the state machine under one
// lock. Two closers racing on the same trade are serialized here and the
// second gets trade.ErrAlreadyTerminal.
type Ledger struct {
	mu       sync.RWMutex
	rules    Rules
	trades   map[string]*trade.Trade
	order    []string
	bySymbol map[string][]string
	lastExit map[string]exitMark
	perDay   map[string]int
	dayOf    func(time.Time) string
}

// exitMark is the last exit of an instrument, for the cooldown.
type exitMark struct {
	at       time.Time
	reversal bool
}

type Option func(*Ledger)

// WithDay sets how timestamps map to trading days for the daily cap. The
// default is the UTC calendar date.
func WithDay(fn func(time.Time) string) Option {
	return func(l *Ledger) { l.dayOf = fn }
}

func New(rules Rules, opts ...Option) (*Ledger, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	l := &Ledger{
		rules:    rules,
		trades:   make(map[string]*trade.Trade),
		bySymbol: make(map[string][]string),
		lastExit: make(map[string]exitMark),
		perDay:   make(map[string]int),
		dayOf: func(t time.Time) string {
			return t.UTC().Format(time.DateOnly)
		},
	}
	for _, o := range opts {
		o(l)
	}
	return l, nil
}

func (l *Ledger) Rules() Rules { return l.rules }

// CreateTrade turns an admitted signal into a trade. The ledger applies its
// own creation rules on top of the risk decision: one live trade per
// instrument, the post-exit cooldown and the daily trade cap.
func (l *Ledger) CreateTrade(sig trade.Signal, dec risk.Decision) (trade.Trade, error) {
	if err := dec.Err(sig.Symbol); err != nil {
		return trade.Trade{}, err
	}
	if err := sig.Validate(); err != nil {
		return trade.Trade{}, risk.Deny(sig.Symbol, risk.ReasonInvalidSignal, "INVALID_SIGNAL", err.Error())
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.rules.OnePerInstrument {
		if t := l.liveLocked(sig.Symbol); t != nil {
			return trade.Trade{}, risk.Deny(sig.Symbol, risk.ReasonDuplicateInstrument, "DUPLICATE_INSTRUMENT",
				fmt.Sprintf("trade %s is %s", t.ID, t.State))
		}
	}
	// The signal that reversed a trade may open the opposite one.
	if last, ok := l.lastExit[sig.Symbol]; ok && l.rules.Cooldown > 0 && !(last.reversal && last.at.Equal(sig.Time)) {
		if wait := last.at.Add(l.rules.Cooldown).Sub(sig.Time); wait > 0 {
			return trade.Trade{}, risk.Deny(sig.Symbol, risk.ReasonCooldownActive, "COOLDOWN_ACTIVE",
				fmt.Sprintf("last exit %s, %s remaining", last.at.Format(time.RFC3339), wait))
		}
	}
	day := l.dayOf(sig.Time)
	if l.rules.MaxTradesPerDay > 0 && l.perDay[day] >= l.rules.MaxTradesPerDay {
		return trade.Trade{}, risk.Deny(sig.Symbol, risk.ReasonDailyCapReached, "MAX_TRADES_PER_DAY",
			fmt.Sprintf("%d trades on %s", l.perDay[day], day))
	}

	// Ids carry the signal time so replayed trades sort in market order.
	t := trade.New(id.NewAt(sig.Time), sig, dec.Quantity)
	if err := t.Transition(trade.WaitingForExecution); err != nil {
		return trade.Trade{}, err
	}
	if l.rules.Execution == ExecSignalClose {
		if err := t.Fill(sig.EntryPrice, sig.Time); err != nil {
			return trade.Trade{}, err
		}
	}

	l.trades[t.ID] = t
	l.order = append(l.order, t.ID)
	l.bySymbol[t.Symbol] = append(l.bySymbol[t.Symbol], t.ID)
	l.perDay[day]++
	return t.Clone(), nil
}

// Fill opens a WAITING_FOR_EXECUTION trade at price. When the price has
// already gapped through the stop the trade is cancelled instead; the
// returned copy shows which happened.
func (l *Ledger) Fill(tradeID string, price float64, at time.Time) (trade.Trade, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, err := l.getLocked(tradeID)
	if err != nil {
		return trade.Trade{}, err
	}
	if t.State != trade.WaitingForExecution {
		return trade.Trade{}, fmt.Errorf("fill trade %s in state %s: %w", t.ID, t.State, stateErr(t.State))
	}
	if !t.Direction.Better(price, t.StopLoss) {
		if err := t.Cancel(CancelGapThroughStop); err != nil {
			return trade.Trade{}, err
		}
		return t.Clone(), nil
	}
	if err := t.Fill(price, at); err != nil {
		return trade.Trade{}, err
	}
	return t.Clone(), nil
}

// RecordTick revalues a live trade at the last traded price.
func (l *Ledger) RecordTick(tradeID string, ltp float64, at time.Time) (trade.Trade, error) {
	return l.RecordCandle(tradeID, ltp, ltp, ltp, at)
}

// RecordCandle revalues a live trade against a candle's range.
func (l *Ledger) RecordCandle(tradeID string, high, low, close float64, at time.Time) (trade.Trade, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, err := l.getLocked(tradeID)
	if err != nil {
		return trade.Trade{}, err
	}
	if !t.State.Live() {
		return trade.Trade{}, fmt.Errorf("mark trade %s in state %s: %w", t.ID, t.State, stateErr(t.State))
	}
	t.MarkRange(high, low, close, at)
	return t.Clone(), nil
}

// UpdateStops ratchets the hard and trailing stops. Zero leaves a level
// unchanged.
func (l *Ledger) UpdateStops(tradeID string, hard, trailing float64) (trade.Trade, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, err := l.getLocked(tradeID)
	if err != nil {
		return trade.Trade{}, err
	}
	if !t.State.Live() {
		return trade.Trade{}, fmt.Errorf("update stops of trade %s in state %s: %w", t.ID, t.State, stateErr(t.State))
	}
	if err := t.Tighten(hard, trailing); err != nil {
		return trade.Trade{}, err
	}
	return t.Clone(), nil
}

// PartialExit books qty units of a live trade at price, moving it to
// PARTIAL_EXIT. The remaining quantity stays open.
func (l *Ledger) PartialExit(tradeID string, qty, price float64, reason trade.ExitReason, at time.Time) (trade.Trade, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, err := l.getLocked(tradeID)
	if err != nil {
		return trade.Trade{}, err
	}
	if err := t.Reduce(qty, price, reason, at); err != nil {
		return trade.Trade{}, err
	}
	return t.Clone(), nil
}

// CloseTrade closes an OPEN or PARTIAL_EXIT trade and fixes its realized
// P&L. Any other state fails with trade.ErrAlreadyTerminal or
// trade.ErrInvalidTransition.
func (l *Ledger) CloseTrade(tradeID string, price float64, reason trade.ExitReason, at time.Time) (trade.Trade, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, err := l.getLocked(tradeID)
	if err != nil {
		return trade.Trade{}, err
	}
	if !t.State.Live() {
		return trade.Trade{}, fmt.Errorf("close trade %s in state %s: %w", t.ID, t.State, stateErr(t.State))
	}
	if err := t.Close(price, at, reason); err != nil {
		return trade.Trade{}, err
	}
	l.lastExit[t.Symbol] = exitMark{at: at, reversal: reason == trade.ExitSignalReversal}
	return t.Clone(), nil
}

// CancelTrade cancels a trade that has not been filled yet.
func (l *Ledger) CancelTrade(tradeID, reason string) (trade.Trade, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, err := l.getLocked(tradeID)
	if err != nil {
		return trade.Trade{}, err
	}
	if err := t.Cancel(reason); err != nil {
		return trade.Trade{}, err
	}
	return t.Clone(), nil
}

// MarkStale flags live trades whose last update is older than cutoff and
// returns their ids. Fresh data clears the flag.
func (l *Ledger) MarkStale(cutoff time.Time) []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	var ids []string
	for _, tid := range l.order {
		t := l.trades[tid]
		if !t.State.Live() || t.Stale || !t.LastUpdate.Before(cutoff) {
			continue
		}
		t.Stale = true
		ids = append(ids, tid)
	}
	return ids
}

// FlagStale marks one live trade stale after a data gap. The next
// RecordCandle or RecordTick clears it.
func (l *Ledger) FlagStale(tradeID string) (trade.Trade, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, err := l.getLocked(tradeID)
	if err != nil {
		return trade.Trade{}, err
	}
	if !t.State.Live() {
		return trade.Trade{}, fmt.Errorf("flag trade %s in state %s: %w", t.ID, t.State, stateErr(t.State))
	}
	t.Stale = true
	return t.Clone(), nil
}

func (l *Ledger) Get(tradeID string) (trade.Trade, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	t, ok := l.trades[tradeID]
	if !ok {
		return trade.Trade{}, false
	}
	return t.Clone(), true
}

// Active returns every non-terminal trade in creation order.
func (l *Ledger) Active() []trade.Trade {
	return l.collect(func(t *trade.Trade) bool { return !t.State.Terminal() })
}

// ForSymbol returns the non-terminal trades of one instrument.
func (l *Ledger) ForSymbol(symbol string) []trade.Trade {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []trade.Trade
	for _, tid := range l.bySymbol[symbol] {
		if t := l.trades[tid]; !t.State.Terminal() {
			out = append(out, t.Clone())
		}
	}
	return out
}

// Closed returns CLOSED trades matching f, ordered by exit time.
func (l *Ledger) Closed(f trade.Filter) []trade.Trade {
	out := l.collect(func(t *trade.Trade) bool { return t.State == trade.Closed && f.Match(t) })
	sort.SliceStable(out, func(i, j int) bool { return out[i].ExitTime.Before(out[j].ExitTime) })
	return out
}

func (l *Ledger) All() []trade.Trade {
	return l.collect(func(*trade.Trade) bool { return true })
}

// OpenCount is the number of non-terminal trades across all instruments.
func (l *Ledger) OpenCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	n := 0
	for _, t := range l.trades {
		if !t.State.Terminal() {
			n++
		}
	}
	return n
}

// TradesOn is the number of trades created on day.
func (l *Ledger) TradesOn(day string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.perDay[day]
}

func (l *Ledger) collect(keep func(*trade.Trade) bool) []trade.Trade {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []trade.Trade
	for _, tid := range l.order {
		if t := l.trades[tid]; keep(t) {
			out = append(out, t.Clone())
		}
	}
	return out
}

func (l *Ledger) getLocked(tradeID string) (*trade.Trade, error) {
	t, ok := l.trades[tradeID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, tradeID)
	}
	return t, nil
}

func (l *Ledger) liveLocked(symbol string) *trade.Trade {
	for _, tid := range l.bySymbol[symbol] {
		if t := l.trades[tid]; !t.State.Terminal() {
			return t
		}
	}
	return nil
}

func stateErr(s trade.State) error {
	if s.Terminal() {
		return trade.ErrAlreadyTerminal
	}
	return trade.ErrInvalidTransition
}
