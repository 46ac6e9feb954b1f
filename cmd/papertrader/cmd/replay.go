package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustyeddy/papertrader/internal/id"
	"github.com/rustyeddy/papertrader/journal"
	"github.com/rustyeddy/papertrader/paper"
	"github.com/rustyeddy/papertrader/perf"
	"github.com/rustyeddy/papertrader/replay"
	"github.com/rustyeddy/papertrader/strategy"
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay historical candles and signals through the paper engine",
	Long: `Replay a candle CSV (time,symbol,open,high,low,close[,volume]) and an
optional signal CSV (time,symbol,direction,entry,stop[,target,confidence,
strategy,pattern]) through the same engine a live session uses.

A built-in strategy can generate signals from the candles instead of, or
in addition to, the signal file.

Examples:
  papertrader replay --candles nifty_5m.csv --signals signals.csv
  papertrader replay --candles nifty_5m.csv --strategy ema-cross --org report.org`,
	Args: cobra.NoArgs,
	RunE: runReplay,
}

var (
	replayCandles   string
	replaySignals   string
	replayTimeframe string
	replayStrategy  string
	replayRR        float64
	replayStopATR   float64
	replayADXMin    float64
	replayStyle     string
	replayOrg       string
	replayNoClose   bool
	replayNoJournal bool
)

func init() {
	rootCmd.AddCommand(replayCmd)

	replayCmd.Flags().StringVar(&replayCandles, "candles", "", "candle CSV file (required)")
	replayCmd.Flags().StringVar(&replaySignals, "signals", "", "signal CSV file")
	replayCmd.Flags().StringVar(&replayTimeframe, "timeframe", "5min", "candle timeframe")
	replayCmd.Flags().StringVar(&replayStrategy, "strategy", "", "built-in signal generator (noop, ema-cross, ema-cross-adx, trend-momentum)")
	replayCmd.Flags().Float64Var(&replayRR, "rr", strategy.DefaultParams().RR, "strategy target as a multiple of risk")
	replayCmd.Flags().Float64Var(&replayStopATR, "stop-atr", strategy.DefaultParams().StopATR, "strategy stop distance in ATRs")
	replayCmd.Flags().Float64Var(&replayADXMin, "adx-min", strategy.DefaultParams().ADXMin, "minimum ADX for ema-cross-adx")
	replayCmd.Flags().StringVar(&replayStyle, "style", strategy.StyleIntraday, "trend-momentum style (intraday, swing)")
	replayCmd.Flags().StringVar(&replayOrg, "org", "", "write an org session report to this file")
	replayCmd.Flags().BoolVar(&replayNoClose, "no-close", false, "leave trades open after the last candle")
	replayCmd.Flags().BoolVar(&replayNoJournal, "no-journal", false, "do not write to the configured journal")

	_ = replayCmd.MarkFlagRequired("candles")
}

func runReplay(cmd *cobra.Command, args []string) error {
	if replaySignals == "" && replayStrategy == "" {
		return errors.New("nothing to trade: pass --signals and/or --strategy")
	}

	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	var j journal.Journal = journal.Discard{}
	if !replayNoJournal {
		if j, err = openJournal(cfg.Journal); err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
	}
	defer j.Close()

	pc, err := paper.ConfigFrom(cfg)
	if err != nil {
		return err
	}
	pc.Timeframe = replayTimeframe
	pc.AutoStart = true
	// The wall-clock watchdog has no meaning against historical data.
	pc.StaleAfter = 0
	pc.EquityInterval = 0

	eng, err := paper.New(pc, paper.WithLogger(log), paper.WithJournal(j))
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}

	params := strategy.DefaultParams()
	params.RR = replayRR
	params.StopATR = replayStopATR
	params.ADXMin = replayADXMin
	switch replayStyle {
	case strategy.StyleIntraday, strategy.StyleSwing:
		params.Style = replayStyle
	default:
		return fmt.Errorf("unknown style %q (want intraday or swing)", replayStyle)
	}

	res, err := replay.Files(cmd.Context(), eng, replayCandles, replaySignals, replayTimeframe, replay.Options{
		Periods:        cfg.Indicators,
		Strategy:       replayStrategy,
		StrategyParams: params,
		CloseAtEnd:     !replayNoClose,
		Logger:         log,
	})
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}
	if !res.End.IsZero() {
		eng.RecordEquity(res.End)
	}

	log.Info("replay complete",
		zap.Int("candles", res.Candles),
		zap.Int("signals", res.Signals),
		zap.Int("admitted", res.Admitted),
		zap.Int("denied", res.Denied),
		zap.Int("data_gaps", res.DataGaps),
		zap.Int("errors", res.Errors))

	out := cmd.OutOrStdout()
	perf.PrintSummary(out, "Paper Replay: "+filepath.Base(replayCandles), res.Summary)
	fmt.Fprintln(out)
	perf.PrintInstruments(out, eng.InstrumentSummaries())

	if replayOrg != "" {
		recs := make([]journal.TradeRecord, len(res.Closed))
		for i, t := range res.Closed {
			recs[i] = journal.FromTrade(t)
		}
		report := &journal.SessionReport{
			SessionID:   id.New(),
			Created:     time.Now(),
			Source:      filepath.Base(replayCandles),
			Timeframe:   replayTimeframe,
			Instruments: pc.Symbols,
			Start:       res.Start,
			End:         res.End,
			Capital:     cfg.Risk.Capital,
			RiskPct:     cfg.Risk.RiskPerTradePct,
			Summary:     res.Summary,
			Trades:      recs,
		}
		if replayStrategy != "" {
			report.Notes = append(report.Notes, "signals generated by "+replayStrategy)
		}
		if err := report.WriteOrgFile(replayOrg); err != nil {
			return fmt.Errorf("write org report: %w", err)
		}
		fmt.Fprintf(out, "\n✓ Session report written to %s\n", replayOrg)
	}

	if res.Errors > 0 {
		fmt.Fprintf(os.Stderr, "warning: %d updates failed, see log\n", res.Errors)
	}
	return nil
}
