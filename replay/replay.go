// Package replay drives historical candles and signals through a paper
// engine. Each instrument is replayed in its own goroutine; within an
// instrument, candles are fed in time order and a signal is handed to the
// engine right after the candle whose close it follows.
package replay

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rustyeddy/papertrader/indicators"
	"github.com/rustyeddy/papertrader/market"
	"github.com/rustyeddy/papertrader/paper"
	"github.com/rustyeddy/papertrader/perf"
	"github.com/rustyeddy/papertrader/risk"
	"github.com/rustyeddy/papertrader/strategy"
	"github.com/rustyeddy/papertrader/trade"
)

type Options struct {
	Periods indicators.Periods
	// Strategy names a built-in signal generator run on every candle in
	// addition to the signal file. Empty or "noop" runs none.
	Strategy       string
	StrategyParams strategy.Params
	// CloseAtEnd closes trades still live after the last candle with
	// END_OF_DATA.
	CloseAtEnd bool
	Logger     *zap.Logger
}

// Result counts what happened during a replay.
type Result struct {
	Candles  int           `json:"candles"`
	Signals  int           `json:"signals"`
	Admitted int           `json:"admitted"`
	Denied   int           `json:"denied"`
	DataGaps int           `json:"data_gaps"`
	Errors   int           `json:"errors"`
	Closed   []trade.Trade `json:"-"`
	Summary  perf.Summary  `json:"summary"`
	Start    time.Time     `json:"start"`
	End      time.Time     `json:"end"`
}

func (r *Result) add(o Result) {
	r.Candles += o.Candles
	r.Signals += o.Signals
	r.Admitted += o.Admitted
	r.Denied += o.Denied
	r.DataGaps += o.DataGaps
	r.Errors += o.Errors
	if r.Start.IsZero() || (!o.Start.IsZero() && o.Start.Before(r.Start)) {
		r.Start = o.Start
	}
	if o.End.After(r.End) {
		r.End = o.End
	}
}

// Run replays candles and signals through eng and returns the counts and
// the performance of every trade closed by the end of the replay. Only a
// cancelled context or a strategy error stops it early; engine refusals
// and bad data are counted and skipped.
func Run(ctx context.Context, eng *paper.Engine, candles []market.Candle, signals []trade.Signal, opts Options) (Result, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("replay")
	if _, err := strategy.New(opts.Strategy, opts.StrategyParams); err != nil {
		return Result{}, err
	}

	bySym := map[string]*feed{}
	get := func(sym string) *feed {
		f, ok := bySym[sym]
		if !ok {
			f = &feed{symbol: sym}
			bySym[sym] = f
		}
		return f
	}
	for _, c := range candles {
		f := get(c.Symbol)
		f.candles = append(f.candles, c)
	}
	for _, s := range signals {
		f := get(s.Symbol)
		f.signals = append(f.signals, s)
	}

	var (
		mu    sync.Mutex
		total Result
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, f := range bySym {
		f.strat, _ = strategy.New(opts.Strategy, opts.StrategyParams)
		f.snap = indicators.NewSnapshot(opts.Periods)
		f.log = log.With(zap.String("symbol", f.symbol))
		g.Go(func() error {
			res, err := f.run(gctx, eng)
			mu.Lock()
			total.add(res)
			mu.Unlock()
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return total, err
	}

	if opts.CloseAtEnd {
		closed := eng.CloseAll(trade.ExitEndOfData, total.End)
		if len(closed) > 0 {
			log.Info("closed trades at end of data", zap.Int("trades", len(closed)))
		}
	}
	total.Closed = eng.ClosedTrades(trade.Filter{})
	total.Summary = eng.Performance(trade.Filter{})
	log.Info("replay complete",
		zap.Int("candles", total.Candles),
		zap.Int("signals", total.Signals),
		zap.Int("admitted", total.Admitted),
		zap.Int("denied", total.Denied),
		zap.Int("data_gaps", total.DataGaps),
		zap.Int("closed", len(total.Closed)),
		zap.Float64("total_pnl", total.Summary.TotalPnL),
	)
	return total, nil
}

// feed is one instrument's replay.
type feed struct {
	symbol  string
	candles []market.Candle
	signals []trade.Signal
	strat   strategy.Strategy
	snap    *indicators.Snapshot
	log     *zap.Logger
}

func (f *feed) run(ctx context.Context, eng *paper.Engine) (Result, error) {
	sort.SliceStable(f.candles, func(i, j int) bool { return f.candles[i].Start.Before(f.candles[j].Start) })
	sort.SliceStable(f.signals, func(i, j int) bool { return f.signals[i].Time.Before(f.signals[j].Time) })

	var res Result
	next := 0
	ind := f.snap.Current()
	for _, c := range f.candles {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Candles++
		at := closeTime(c)
		if res.Start.IsZero() {
			res.Start = c.Start
		}
		res.End = at

		if c.Validate() == nil {
			ind = f.snap.Update(c)
		}
		if err := eng.OnCandle(c, ind); err != nil {
			switch {
			case errors.Is(err, paper.ErrDataGap):
				res.DataGaps++
				f.log.Warn("data gap", zap.Time("start", c.Start), zap.Error(err))
			default:
				res.Errors++
				f.log.Warn("candle rejected", zap.Time("start", c.Start), zap.Error(err))
			}
		}

		for next < len(f.signals) && !f.signals[next].Time.After(at) {
			sig := f.signals[next]
			next++
			if sig.Indicators == (market.Indicators{}) {
				sig.Indicators = ind
			}
			f.submit(eng, sig, &res)
		}
		if sig, ok := f.strat.OnCandle(c, ind); ok {
			f.submit(eng, sig, &res)
		}
	}
	// Signals after the last candle still get a decision.
	for ; next < len(f.signals); next++ {
		f.submit(eng, f.signals[next], &res)
	}
	return res, nil
}

func (f *feed) submit(eng *paper.Engine, sig trade.Signal, res *Result) {
	res.Signals++
	_, err := eng.OnSignal(sig)
	switch {
	case err == nil:
		res.Admitted++
	case errors.Is(err, risk.ErrAdmissionDenied):
		res.Denied++
	default:
		res.Errors++
		f.log.Warn("signal failed", zap.Time("time", sig.Time), zap.Error(err))
	}
}

func closeTime(c market.Candle) time.Time {
	if d, err := market.TimeframeDuration(c.Timeframe); err == nil {
		return c.Start.Add(d)
	}
	return c.Start
}

// Files reads a candle file and an optional signal file and replays them.
func Files(ctx context.Context, eng *paper.Engine, candlePath, signalPath, tf string, opts Options) (Result, error) {
	candles, err := ReadCandlesFile(candlePath, tf)
	if err != nil {
		return Result{}, fmt.Errorf("read candles: %w", err)
	}
	var signals []trade.Signal
	if signalPath != "" {
		if signals, err = ReadSignalsFile(signalPath); err != nil {
			return Result{}, fmt.Errorf("read signals: %w", err)
		}
	}
	return Run(ctx, eng, candles, signals, opts)
}
