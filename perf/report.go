package perf

import (
	"fmt"
	"io"
	"time"
)

func PrintSummary(w io.Writer, title string, s Summary) {
	fmt.Fprintln(w, "==================================================")
	fmt.Fprintf(w, " %s\n", title)
	fmt.Fprintln(w, "==================================================")

	if !s.FirstExit.IsZero() {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Period")
		fmt.Fprintln(w, "--------------------------------------------------")
		fmt.Fprintf(w, "First Exit:    %s\n", s.FirstExit.Format(time.RFC3339))
		fmt.Fprintf(w, "Last Exit:     %s\n", s.LastExit.Format(time.RFC3339))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Trade Statistics")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Trades:        %d\n", s.TotalTrades)
	fmt.Fprintf(w, "Wins:          %d\n", s.Wins)
	fmt.Fprintf(w, "Losses:        %d\n", s.Losses)
	fmt.Fprintf(w, "Win Rate:      %.2f%%\n", s.WinRate*100)
	fmt.Fprintf(w, "Max Loss Run:  %d\n", s.MaxConsecutiveLosses)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "P&L")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Net P/L:       %.2f\n", s.TotalPnL)
	fmt.Fprintf(w, "Gross Profit:  %.2f\n", s.GrossProfit)
	fmt.Fprintf(w, "Gross Loss:    %.2f\n", s.GrossLoss)
	fmt.Fprintf(w, "Expectancy:    %.2f\n", s.Expectancy)
	if s.ProfitFactor > 0 {
		fmt.Fprintf(w, "Profit Factor: %.2f\n", s.ProfitFactor)
	}
	if s.AvgWin > 0 || s.AvgLoss > 0 {
		fmt.Fprintf(w, "Avg Win/Loss:  %.2f / %.2f\n", s.AvgWin, s.AvgLoss)
	}
	if s.MaxDrawdown > 0 {
		fmt.Fprintf(w, "Max Drawdown:  %.2f\n", s.MaxDrawdown)
	}

	if len(s.Daily) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Daily P&L")
		fmt.Fprintln(w, "--------------------------------------------------")
		for _, d := range s.Daily {
			fmt.Fprintf(w, "%s  %3d trades  %10.2f\n", d.Day, d.Trades, d.PnL)
		}
	}

	fmt.Fprintln(w)
}

func PrintInstruments(w io.Writer, rows []InstrumentSummary) {
	fmt.Fprintf(w, "%-12s %10s %6s %5s %6s %8s %12s %12s %12s %6s\n",
		"SYMBOL", "LTP", "TRADES", "WINS", "LOSSES", "WIN%", "REALIZED", "UNREALIZED", "NET", "OPEN")
	for _, r := range rows {
		fmt.Fprintf(w, "%-12s %10.2f %6d %5d %6d %7.2f%% %12.2f %12.2f %12.2f %6d\n",
			r.Symbol, r.CurrentPrice, r.TotalTrades, r.Wins, r.Losses, r.WinRate*100,
			r.TotalPnL, r.UnrealizedPnL, r.NetPnL, r.ActiveTrades)
	}
}
