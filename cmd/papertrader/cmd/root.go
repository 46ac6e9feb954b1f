package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustyeddy/papertrader/config"
	"github.com/rustyeddy/papertrader/internal/logger"
	"github.com/rustyeddy/papertrader/journal"
)

var rootCmd = &cobra.Command{
	Use:   "papertrader",
	Short: "Paper trade lifecycle engine for intraday signals",
	Long: `Papertrader turns trading signals into simulated trades and manages them
until exit, without sending real orders.

It provides tools for:
  - Serving a live paper-trading session with a dashboard API
  - Replaying historical candles and signals through the same engine
  - Querying the trade journal and rendering org reports
  - Creating and validating configuration files

Settings come from a YAML or JSON file, overridden by PAPERTRADER_*
environment variables (a .env file is loaded first when present).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
		return nil
	},
}

var (
	cfgFile string
	envFile string
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (YAML or JSON); defaults apply when empty")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the config")
}

// setup loads the configuration and builds the logger it describes.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, log, nil
}

func openJournal(c config.JournalConfig) (journal.Journal, error) {
	switch c.Type {
	case "csv":
		return journal.NewCSV(c.Dir)
	case "sqlite":
		return journal.NewSQLite(c.DBPath)
	default:
		return journal.Discard{}, nil
	}
}
