package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rustyeddy/papertrader/internal/api"
	"github.com/rustyeddy/papertrader/paper"
	"github.com/rustyeddy/papertrader/trade"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a paper-trading session with the dashboard API",
	Long: `Run a paper-trading session.

Signals, candles and ticks are pushed to the engine over HTTP:
  POST /api/paper/signals
  POST /api/paper/candles
  POST /api/paper/ticks

The dashboard reads /api/paper/{status,summary,trades,performance} and
streams engine events from /api/paper/ws. Prometheus metrics are served
on /metrics.

Examples:
  papertrader serve
  papertrader serve -c papertrader.yaml --addr :9090 --start`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var (
	serveAddr        string
	serveTimeframe   string
	serveStart       bool
	serveCloseOnExit bool
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
	serveCmd.Flags().StringVar(&serveTimeframe, "timeframe", "5min", "candle timeframe reported by status")
	serveCmd.Flags().BoolVar(&serveStart, "start", false, "accept signals immediately (overrides engine.auto_start)")
	serveCmd.Flags().BoolVar(&serveCloseOnExit, "close-on-exit", false, "close live trades at their last price on shutdown")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	j, err := openJournal(cfg.Journal)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer j.Close()

	pc, err := paper.ConfigFrom(cfg)
	if err != nil {
		return err
	}
	pc.Timeframe = serveTimeframe
	pc.AutoStart = pc.AutoStart || serveStart

	eng, err := paper.New(pc, paper.WithLogger(log), paper.WithJournal(j))
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}
	srv := api.New(eng, api.Config{
		Addr:           cfg.Server.Addr,
		RateLimit:      cfg.Server.RateLimit,
		RateLimitBurst: cfg.Server.RateLimitBurst,
	}, log)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("starting paper session",
		zap.Strings("symbols", pc.Symbols),
		zap.String("journal", cfg.Journal.Type),
		zap.Bool("running", eng.Running()))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return eng.Run(gctx) })
	g.Go(func() error { return srv.ListenAndServe(gctx) })
	err = g.Wait()

	if serveCloseOnExit {
		closed := eng.CloseAll(trade.ExitManual, time.Now())
		log.Info("closed live trades on shutdown", zap.Int("count", len(closed)))
	}
	eng.RecordEquity(time.Now())

	log.Info("paper session stopped", zap.Float64("realized_pnl", eng.Daily().RealizedPnL))
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
