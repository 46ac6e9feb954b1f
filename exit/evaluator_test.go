package exit

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/papertrader/market"
	"github.com/rustyeddy/papertrader/trade"
)

var t0 = time.Date(2025, 3, 3, 9, 30, 0, 0, time.UTC)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.SessionEnd = ""
	cfg.Timezone = "UTC"
	return cfg
}

func newEvaluator(t *testing.T, cfg Config) *Evaluator {
	t.Helper()
	e, err := New(cfg, nil)
	require.NoError(t, err)
	return e
}

func openTrade(t *testing.T, dir trade.Direction, entry, stop, target float64) *trade.Trade {
	t.Helper()
	tr := trade.New("T1", trade.Signal{
		Symbol:     "NIFTY50",
		Direction:  dir,
		EntryPrice: entry,
		StopLoss:   stop,
		Target:     target,
		Time:       t0,
	}, 75)
	require.NoError(t, tr.Transition(trade.WaitingForExecution))
	require.NoError(t, tr.Fill(entry, t0))
	return tr
}

func candle(o, h, l, c float64, at time.Time) market.Candle {
	return market.Candle{Symbol: "NIFTY50", Open: o, High: h, Low: l, Close: c, Start: at, Closed: true}
}

func TestATRStop(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 107.4, ATRStop(trade.Call, 110, 2, 1.3), 1e-9)
	assert.InDelta(t, 92.6, ATRStop(trade.Put, 90, 2, 1.3), 1e-9)
}

func TestStepStop(t *testing.T) {
	t.Parallel()

	levels := DefaultConfig().Steps.Levels
	tests := []struct {
		name  string
		dir   trade.Direction
		peakR float64
		want  float64
	}{
		{"below first step", trade.Call, 0.9, 0},
		{"breakeven", trade.Call, 1, 100},
		{"half R", trade.Call, 2.4, 101},
		{"one and a half R", trade.Call, 3.2, 103},
		{"short half R", trade.Put, 2, 99},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, StepStop(tt.dir, 100, 2, tt.peakR, levels), 1e-9)
		})
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig().ATR
	assert.Equal(t, RegimeTrend, Classify(market.Indicators{ADX: 31}, cfg))
	assert.Equal(t, RegimeChoppy, Classify(market.Indicators{ADX: 14}, cfg))
	assert.Equal(t, RegimeTrend, Classify(market.Indicators{ATR: 2, EMA20: 105, EMA50: 103}, cfg))
	assert.Equal(t, RegimeChoppy, Classify(market.Indicators{ATR: 2, EMA20: 104, EMA50: 103.5}, cfg))
	assert.Equal(t, RegimeUnknown, Classify(market.Indicators{}, cfg))

	assert.Equal(t, cfg.ChoppyMultiplier, cfg.Multiplier(RegimeChoppy))
	assert.Equal(t, cfg.TrendMultiplier, cfg.Multiplier(RegimeUnknown))
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, DefaultConfig().Validate())

	wide := DefaultConfig()
	wide.ATR.TrendMultiplier = 2.0
	assert.ErrorIs(t, wide.Validate(), ErrConfig)

	unordered := DefaultConfig()
	unordered.Steps.Levels = []StepLevel{{ProfitR: 2, LockR: 0.5}, {ProfitR: 1, LockR: 0}}
	assert.ErrorIs(t, unordered.Validate(), ErrConfig)

	badClock := DefaultConfig()
	badClock.SessionEnd = "25:99"
	assert.ErrorIs(t, badClock.Validate(), ErrConfig)

	_, err := New(wide, nil)
	assert.Error(t, err)
}

func TestStopBeatsTargetInOneCandle(t *testing.T) {
	t.Parallel()

	e := newEvaluator(t, testConfig())
	tr := openTrade(t, trade.Call, 100, 98, 106)

	dec, err := e.Evaluate(tr, Update{Candle: candle(100, 106, 98, 101, t0.Add(time.Minute))})
	require.NoError(t, err)
	assert.True(t, dec.Exit)
	assert.Equal(t, trade.ExitStopLoss, dec.Reason)
	assert.Equal(t, 98.0, dec.Price)
}

func TestATRTrailingExample(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Steps.Enabled = false
	e := newEvaluator(t, cfg)

	tr := openTrade(t, trade.Call, 100, 95, 0)
	tr.MarkRange(110, 100, 109, t0.Add(time.Minute))

	ind := market.Indicators{ATR: 2}
	dec, err := e.Evaluate(tr, Update{Candle: candle(109, 109.5, 108, 109, t0.Add(2*time.Minute)), Indicators: ind})
	require.NoError(t, err)
	require.False(t, dec.Exit)
	assert.InDelta(t, 107.4, dec.Trailing, 1e-9)
	require.NoError(t, tr.Tighten(0, dec.Trailing))

	// A wider ATR produces a lower candidate; the stop stays where it was.
	ind.ATR = 3
	dec, err = e.Evaluate(tr, Update{Candle: candle(109, 109.2, 108.5, 109, t0.Add(3*time.Minute)), Indicators: ind})
	require.NoError(t, err)
	require.False(t, dec.Exit)
	assert.InDelta(t, 107.4, dec.Trailing, 1e-9)

	dec, err = e.Evaluate(tr, Update{Candle: candle(108, 108.1, 107, 107.2, t0.Add(4*time.Minute)), Indicators: ind})
	require.NoError(t, err)
	assert.True(t, dec.Exit)
	assert.Equal(t, trade.ExitTrailingStop, dec.Reason)
	assert.InDelta(t, 107.4, dec.Price, 1e-9)
}

func TestExitPriority(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.SessionEnd = "15:15"
	e := newEvaluator(t, cfg)
	opposite := &trade.Signal{Symbol: "NIFTY50", Direction: trade.Put}
	same := &trade.Signal{Symbol: "NIFTY50", Direction: trade.Call}
	sessionClose := time.Date(2025, 3, 3, 15, 15, 0, 0, time.UTC)

	tests := []struct {
		name   string
		dir    trade.Direction
		stop   float64
		target float64
		update Update
		exit   bool
		reason trade.ExitReason
		price  float64
	}{
		{
			name: "gap down through stop fills at open",
			dir:  trade.Call, stop: 98, target: 106,
			update: Update{Candle: candle(97, 97.5, 96, 97, t0.Add(time.Minute))},
			exit:   true, reason: trade.ExitStopLoss, price: 97,
		},
		{
			name: "gap up through target fills at open",
			dir:  trade.Call, stop: 98, target: 106,
			update: Update{Candle: candle(107, 108, 106.5, 107.5, t0.Add(time.Minute))},
			exit:   true, reason: trade.ExitTarget, price: 107,
		},
		{
			name: "target inside candle",
			dir:  trade.Call, stop: 98, target: 106,
			update: Update{Candle: candle(101, 106.2, 100.5, 105, t0.Add(time.Minute))},
			exit:   true, reason: trade.ExitTarget, price: 106,
		},
		{
			name: "put stop",
			dir:  trade.Put, stop: 102, target: 94,
			update: Update{Candle: candle(100, 102.5, 93, 101, t0.Add(time.Minute))},
			exit:   true, reason: trade.ExitStopLoss, price: 102,
		},
		{
			name: "opposing signal reverses",
			dir:  trade.Call, stop: 98, target: 106,
			update: Update{Candle: candle(100, 101, 99.5, 100.5, t0.Add(time.Minute)), Reversal: opposite},
			exit:   true, reason: trade.ExitSignalReversal, price: 100.5,
		},
		{
			name: "same side signal is ignored",
			dir:  trade.Call, stop: 98, target: 106,
			update: Update{Candle: candle(100, 101, 99.5, 100.5, t0.Add(time.Minute)), Reversal: same},
		},
		{
			name: "stop beats reversal",
			dir:  trade.Call, stop: 98, target: 106,
			update: Update{Candle: candle(100, 101, 97.9, 98.5, t0.Add(time.Minute)), Reversal: opposite},
			exit:   true, reason: trade.ExitStopLoss, price: 98,
		},
		{
			name: "market close",
			dir:  trade.Call, stop: 98, target: 106,
			update: Update{Candle: candle(100, 101, 99.5, 100.5, sessionClose)},
			exit:   true, reason: trade.ExitMarketClose, price: 100.5,
		},
		{
			name: "quiet candle",
			dir:  trade.Put, stop: 102, target: 94,
			update: Update{Candle: candle(100, 101, 99, 100, t0.Add(time.Minute))},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tr := openTrade(t, tt.dir, 100, tt.stop, tt.target)
			dec, err := e.Evaluate(tr, tt.update)
			require.NoError(t, err)
			assert.Equal(t, tt.exit, dec.Exit)
			if tt.exit {
				assert.Equal(t, tt.reason, dec.Reason)
				assert.InDelta(t, tt.price, dec.Price, 1e-9)
			}
		})
	}
}

func TestEvaluateRejectsBadData(t *testing.T) {
	t.Parallel()

	e := newEvaluator(t, testConfig())
	tr := openTrade(t, trade.Call, 100, 98, 106)

	_, err := e.Evaluate(tr, Update{Candle: candle(100, 99, 101, 100, t0.Add(time.Minute))})
	assert.Error(t, err)

	require.NoError(t, tr.Close(101, t0.Add(time.Minute), trade.ExitManual))
	_, err = e.Evaluate(tr, Update{Candle: candle(100, 101, 99, 100, t0.Add(2*time.Minute))})
	assert.ErrorIs(t, err, trade.ErrInvalidTransition)
}

func TestTrailingIsMonotonic(t *testing.T) {
	t.Parallel()

	for _, dir := range []trade.Direction{trade.Call, trade.Put} {
		dir := dir
		t.Run(string(dir), func(t *testing.T) {
			t.Parallel()
			e := newEvaluator(t, testConfig())
			stop := 95.0
			if !dir.Long() {
				stop = 105
			}
			tr := openTrade(t, dir, 100, stop, 0)

			rng := rand.New(rand.NewSource(7))
			price := 100.0
			prev := 0.0
			at := t0
			for i := 0; i < 500; i++ {
				at = at.Add(time.Minute)
				next := price + dir.Sign()*(rng.Float64()-0.4)
				hi, lo := price, next
				if next > price {
					hi, lo = next, price
				}
				hi += rng.Float64() * 0.3
				lo -= rng.Float64() * 0.3
				ind := market.Indicators{ATR: 0.5 + rng.Float64()*2, EMA20: 100, EMA50: 100}

				dec, err := e.Evaluate(tr, Update{Candle: candle(price, hi, lo, next, at), Indicators: ind})
				require.NoError(t, err)
				if dec.Exit {
					break
				}
				if prev != 0 {
					assert.False(t, dir.Better(prev, dec.Trailing), "trailing loosened from %v to %v", prev, dec.Trailing)
				}
				require.NoError(t, tr.Tighten(0, dec.Trailing))
				tr.MarkRange(hi, lo, next, at)
				prev = dec.Trailing
				price = next
			}
		})
	}
}
