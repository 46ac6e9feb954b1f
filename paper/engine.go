// Package paper runs a paper-trading session: signals go through the risk
// governor into the ledger, price updates go through the exit evaluator,
// and every decision is logged, journaled and published as an event.
package paper

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/papertrader/config"
	"github.com/rustyeddy/papertrader/exit"
	"github.com/rustyeddy/papertrader/internal/metrics"
	"github.com/rustyeddy/papertrader/journal"
	"github.com/rustyeddy/papertrader/ledger"
	"github.com/rustyeddy/papertrader/market"
	"github.com/rustyeddy/papertrader/risk"
)

var (
	// ErrOutOfOrder rejects a price update that is not strictly after the
	// previous one for the same instrument.
	ErrOutOfOrder = errors.New("out-of-order update")
	// ErrDataGap reports unusable price data. Live trades of the instrument
	// are flagged stale and held; they are never closed on missing data.
	ErrDataGap = errors.New("data gap")
)

type Config struct {
	Symbols     []string
	Instruments market.Registry
	Timeframe   string
	Risk        risk.Policy
	Exit        exit.Config
	Ledger      ledger.Rules

	StaleAfter     time.Duration
	EquityInterval time.Duration
	AutoStart      bool
}

// ConfigFrom converts the file configuration into an engine configuration.
func ConfigFrom(c *config.Config) (Config, error) {
	reg, err := c.Registry()
	if err != nil {
		return Config{}, err
	}
	return Config{
		Symbols:        c.Symbols(),
		Instruments:    reg,
		Risk:           c.Risk,
		Exit:           c.Exit,
		Ledger:         c.Ledger,
		StaleAfter:     c.Engine.StaleAfter,
		EquityInterval: c.Engine.EquityInterval,
		AutoStart:      c.Engine.AutoStart,
	}, nil
}

type Option func(*Engine)

func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

func WithJournal(j journal.Journal) Option {
	return func(e *Engine) {
		if j != nil {
			e.journal = j
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithClock replaces time.Now for manual exits and the watchdog.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// symbolState serializes everything that touches one instrument.
type symbolState struct {
	mu   sync.Mutex
	last time.Time
	ind  market.Indicators
}

type Engine struct {
	cfg     Config
	log     *zap.Logger
	journal journal.Journal
	metrics *metrics.Metrics
	now     func() time.Time

	ledger  *ledger.Ledger
	eval    *exit.Evaluator
	gov     *risk.Governor
	session risk.Session
	prices  *market.PriceStore

	running   atomic.Bool
	startedAt atomic.Pointer[time.Time]

	symMu sync.Mutex
	syms  map[string]*symbolState

	// admitMu makes the open-trade count and trade creation one step.
	admitMu sync.Mutex

	dayMu sync.Mutex
	daily risk.DailyState

	bus *bus
}

func New(cfg Config, opts ...Option) (*Engine, error) {
	gov, err := risk.NewGovernor(cfg.Risk)
	if err != nil {
		return nil, err
	}
	eval, err := exit.New(cfg.Exit, cfg.Instruments)
	if err != nil {
		return nil, err
	}
	session := gov.Session()
	led, err := ledger.New(cfg.Ledger, ledger.WithDay(session.Day))
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:     cfg,
		log:     zap.NewNop(),
		journal: journal.Discard{},
		now:     time.Now,
		ledger:  led,
		eval:    eval,
		gov:     gov,
		session: session,
		prices:  market.NewPriceStore(),
		syms:    make(map[string]*symbolState),
		bus:     newBus(),
	}
	for _, o := range opts {
		o(e)
	}
	if e.metrics == nil {
		e.metrics = metrics.New()
	}
	e.log = e.log.Named("paper")
	if cfg.AutoStart {
		e.Start()
	}
	return e, nil
}

func (e *Engine) Ledger() *ledger.Ledger     { return e.ledger }
func (e *Engine) Metrics() *metrics.Metrics { return e.metrics }
func (e *Engine) Running() bool             { return e.running.Load() }

// Start begins admitting signals. It reports false when already running.
func (e *Engine) Start() bool {
	if !e.running.CompareAndSwap(false, true) {
		return false
	}
	now := e.now()
	e.startedAt.Store(&now)
	e.log.Info("paper session started", zap.Strings("symbols", e.cfg.Symbols))
	e.publish(Event{Kind: EventStarted, Time: now})
	return true
}

// Stop stops admitting signals. Open trades keep being managed.
func (e *Engine) Stop() bool {
	if !e.running.CompareAndSwap(true, false) {
		return false
	}
	now := e.now()
	e.log.Info("paper session stopped", zap.Int("active_trades", e.ledger.OpenCount()))
	e.publish(Event{Kind: EventStopped, Time: now})
	return true
}

func (e *Engine) symbol(sym string) *symbolState {
	e.symMu.Lock()
	defer e.symMu.Unlock()
	st, ok := e.syms[sym]
	if !ok {
		st = &symbolState{}
		e.syms[sym] = st
	}
	return st
}

// dailyAt returns a copy of the day's risk state, rolling forward when at
// falls on a later trading day.
func (e *Engine) dailyAt(at time.Time) risk.DailyState {
	e.dayMu.Lock()
	defer e.dayMu.Unlock()
	e.rollLocked(at)
	return e.daily
}

// rollLocked reports whether at belongs to the current trading day. Days
// only move forward; a late update from an earlier day does not reopen it.
func (e *Engine) rollLocked(at time.Time) bool {
	day := e.session.Day(at)
	if day > e.daily.Day {
		if e.daily.Day != "" {
			e.log.Info("trading day rolled", zap.String("from", e.daily.Day), zap.String("to", day),
				zap.Float64("realized_pnl", e.daily.RealizedPnL), zap.Int("trades", e.daily.Trades))
		}
		e.daily.Roll(day)
		e.metrics.DailyLatch.Set(0)
	}
	return day == e.daily.Day
}

func (e *Engine) Daily() risk.DailyState {
	e.dayMu.Lock()
	defer e.dayMu.Unlock()
	return e.daily
}

