package journal

import (
	"fmt"
	"strings"
	"time"
)

// FormatTradeOrg renders a TradeRecord as an Org-mode block suitable for pasting into a journal.
// Structured facts go in the PROPERTIES drawer; the narrative headings are left for the trader.
func FormatTradeOrg(t TradeRecord) string {
	heading := fmt.Sprintf("** Trade: %s %s (%s)", t.Instrument, t.Direction, shortID(t.TradeID))
	opened := t.OpenTime.UTC().Format(time.RFC3339)
	closed := t.CloseTime.UTC().Format(time.RFC3339)

	var b strings.Builder
	b.WriteString(heading)
	b.WriteString("\n")
	b.WriteString(":PROPERTIES:\n")
	fmt.Fprintf(&b, ":TRADE_ID: %s\n", t.TradeID)
	fmt.Fprintf(&b, ":ID: %s\n", t.TradeID)
	fmt.Fprintf(&b, ":INSTRUMENT: %s\n", t.Instrument)
	fmt.Fprintf(&b, ":DIRECTION: %s\n", t.Direction)
	if t.Strategy != "" {
		fmt.Fprintf(&b, ":STRATEGY: %s\n", t.Strategy)
	}
	if t.Pattern != "" {
		fmt.Fprintf(&b, ":PATTERN: %s\n", t.Pattern)
	}
	fmt.Fprintf(&b, ":QUANTITY: %.0f\n", t.Quantity)
	fmt.Fprintf(&b, ":ENTRY_PRICE: %.2f\n", t.EntryPrice)
	fmt.Fprintf(&b, ":EXIT_PRICE: %.2f\n", t.ExitPrice)
	fmt.Fprintf(&b, ":INITIAL_STOP: %.2f\n", t.InitialStop)
	if t.TrailingStop != 0 {
		fmt.Fprintf(&b, ":TRAILING_STOP: %.2f\n", t.TrailingStop)
	}
	if t.Target != 0 {
		fmt.Fprintf(&b, ":TARGET: %.2f\n", t.Target)
	}
	fmt.Fprintf(&b, ":OPEN_TIME: %s\n", opened)
	fmt.Fprintf(&b, ":CLOSE_TIME: %s\n", closed)
	fmt.Fprintf(&b, ":REALIZED_PL: %.2f\n", t.RealizedPL)
	fmt.Fprintf(&b, ":MFE: %.2f\n", t.MFE)
	fmt.Fprintf(&b, ":MAE: %.2f\n", t.MAE)
	fmt.Fprintf(&b, ":REASON: %s\n", t.Reason)
	b.WriteString(":END:\n")
	b.WriteString("\n")
	b.WriteString("*** Thesis\n- \n\n")
	b.WriteString("*** Execution\n- \n\n")
	b.WriteString("*** Review\n- \n")

	return b.String()
}

// FormatTradesOrg renders multiple trades separated by blank lines.
func FormatTradesOrg(trades []TradeRecord) string {
	var b strings.Builder
	for i, t := range trades {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(FormatTradeOrg(t))
	}
	return b.String()
}

func shortID(full string) string {
	if len(full) <= 8 {
		return full
	}
	return full[:8]
}
