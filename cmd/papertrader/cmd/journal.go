package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/papertrader/journal"
	"github.com/rustyeddy/papertrader/perf"
	"github.com/rustyeddy/papertrader/trade"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query trade journal data",
	Long: `Query and display trade journal records from the SQLite journal.

Days are calendar days in the risk session's timezone.

Subcommands:
  trade      - Get details of a specific trade by ID
  today      - List trades closed today
  day        - List trades closed on a specific day
  summary    - Performance summary over a filtered set of trades
  decisions  - List admission decisions for a day

Examples:
  papertrader journal trade <trade-id>
  papertrader journal today
  papertrader journal day 2025-01-06
  papertrader journal summary --symbol NIFTY50 --from 2025-01-01`,
}

var journalTradeCmd = &cobra.Command{
	Use:   "trade <trade-id>",
	Short: "Get details of a specific trade",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalTrade,
}

var journalTodayCmd = &cobra.Command{
	Use:   "today",
	Short: "List trades closed today",
	Args:  cobra.NoArgs,
	RunE:  runJournalToday,
}

var journalDayCmd = &cobra.Command{
	Use:   "day <YYYY-MM-DD>",
	Short: "List trades closed on a specific day",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalDay,
}

var journalSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print a performance summary of journaled trades",
	Args:  cobra.NoArgs,
	RunE:  runJournalSummary,
}

var journalDecisionsCmd = &cobra.Command{
	Use:   "decisions <YYYY-MM-DD>",
	Short: "List admission decisions made on a specific day",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalDecisions,
}

var (
	journalDBPath   string
	journalSymbol   string
	journalStrategy string
	journalOutcome  string
	journalFrom     string
	journalTo       string
)

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalTradeCmd)
	journalCmd.AddCommand(journalTodayCmd)
	journalCmd.AddCommand(journalDayCmd)
	journalCmd.AddCommand(journalSummaryCmd)
	journalCmd.AddCommand(journalDecisionsCmd)

	journalCmd.PersistentFlags().StringVarP(&journalDBPath, "db", "d", "", "path to SQLite journal DB (default journal.db_path)")

	journalSummaryCmd.Flags().StringVar(&journalSymbol, "symbol", "", "only this instrument")
	journalSummaryCmd.Flags().StringVar(&journalStrategy, "strategy", "", "only this strategy")
	journalSummaryCmd.Flags().StringVar(&journalOutcome, "outcome", "", "win or loss")
	journalSummaryCmd.Flags().StringVar(&journalFrom, "from", "", "first day (YYYY-MM-DD)")
	journalSummaryCmd.Flags().StringVar(&journalTo, "to", "", "last day, inclusive (YYYY-MM-DD)")
}

// openJournalDB opens the SQLite journal and returns the location that
// trading days are counted in.
func openJournalDB() (*journal.SQLite, *time.Location, error) {
	cfg, _, err := setup()
	if err != nil {
		return nil, nil, err
	}
	path := journalDBPath
	if path == "" {
		path = cfg.Journal.DBPath
	}
	loc, err := time.LoadLocation(cfg.Risk.Timezone)
	if err != nil {
		return nil, nil, fmt.Errorf("timezone: %w", err)
	}
	j, err := journal.NewSQLite(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open db: %w", err)
	}
	return j, loc, nil
}

func runJournalTrade(cmd *cobra.Command, args []string) error {
	j, _, err := openJournalDB()
	if err != nil {
		return err
	}
	defer j.Close()

	rec, err := j.GetTrade(args[0])
	if err != nil {
		return fmt.Errorf("get trade: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), journal.FormatTradeOrg(rec))
	return nil
}

func runJournalToday(cmd *cobra.Command, args []string) error {
	j, loc, err := openJournalDB()
	if err != nil {
		return err
	}
	defer j.Close()
	return listDay(cmd, j, loc, time.Now().In(loc).Format(time.DateOnly))
}

func runJournalDay(cmd *cobra.Command, args []string) error {
	j, loc, err := openJournalDB()
	if err != nil {
		return err
	}
	defer j.Close()
	return listDay(cmd, j, loc, args[0])
}

func listDay(cmd *cobra.Command, j *journal.SQLite, loc *time.Location, day string) error {
	start, end, err := dayBounds(loc, day)
	if err != nil {
		return fmt.Errorf("date: %w", err)
	}

	recs, err := j.ListTradesClosedBetween(start, end)
	if err != nil {
		return fmt.Errorf("query trades: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), journal.FormatTradesOrg(recs))
	return nil
}

func runJournalSummary(cmd *cobra.Command, args []string) error {
	j, loc, err := openJournalDB()
	if err != nil {
		return err
	}
	defer j.Close()

	f, err := journalFilter(loc)
	if err != nil {
		return err
	}
	recs, err := j.ListTrades(f)
	if err != nil {
		return fmt.Errorf("query trades: %w", err)
	}

	s := perf.Summarize(journal.Trades(recs), perf.InLocation(loc))
	perf.PrintSummary(cmd.OutOrStdout(), "Journal Summary", s)
	return nil
}

func journalFilter(loc *time.Location) (trade.Filter, error) {
	f := trade.Filter{Symbol: journalSymbol, Strategy: journalStrategy}
	if journalOutcome != "" {
		o, err := trade.ParseOutcome(journalOutcome)
		if err != nil {
			return f, err
		}
		f.Outcome = o
	}
	if journalFrom != "" {
		start, _, err := dayBounds(loc, journalFrom)
		if err != nil {
			return f, fmt.Errorf("from: %w", err)
		}
		f.From = start
	}
	if journalTo != "" {
		_, end, err := dayBounds(loc, journalTo)
		if err != nil {
			return f, fmt.Errorf("to: %w", err)
		}
		f.To = end
	}
	return f, nil
}

func runJournalDecisions(cmd *cobra.Command, args []string) error {
	j, loc, err := openJournalDB()
	if err != nil {
		return err
	}
	defer j.Close()

	start, end, err := dayBounds(loc, args[0])
	if err != nil {
		return fmt.Errorf("date: %w", err)
	}
	recs, err := j.ListDecisionsBetween(start, end)
	if err != nil {
		return fmt.Errorf("query decisions: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-25s %-12s %-5s %-10s %-7s %s\n", "TIME", "SYMBOL", "DIR", "STRATEGY", "ALLOWED", "CODES")
	for _, d := range recs {
		fmt.Fprintf(out, "%-25s %-12s %-5s %-10s %-7t %s\n",
			d.Time.In(loc).Format(time.RFC3339), d.Symbol, d.Direction, d.Strategy, d.Allowed, d.Codes)
	}
	return nil
}

func dayBounds(loc *time.Location, day string) (time.Time, time.Time, error) {
	t, err := time.ParseInLocation(time.DateOnly, day, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1)
	return start, end, nil
}
