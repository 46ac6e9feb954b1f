package perf

import (
	"sort"

	"github.com/rustyeddy/papertrader/trade"
)

// InstrumentSummary is the per-symbol dashboard row.
type InstrumentSummary struct {
	Symbol        string  `json:"symbol"`
	CurrentPrice  float64 `json:"current_price"`
	TotalTrades   int     `json:"total_trades"`
	Wins          int     `json:"wins"`
	Losses        int     `json:"losses"`
	WinRate       float64 `json:"win_rate"`
	TotalPnL      float64 `json:"total_pnl"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	NetPnL        float64 `json:"net_pnl"`
	ActiveTrades  int     `json:"active_trades"`
}

// ByInstrument builds one row per symbol seen in symbols, active or closed.
// Totals come from closed trades, unrealized P&L from live ones.
func ByInstrument(symbols []string, active, closed []trade.Trade, price func(string) float64) []InstrumentSummary {
	rows := map[string]*InstrumentSummary{}
	row := func(sym string) *InstrumentSummary {
		r, ok := rows[sym]
		if !ok {
			r = &InstrumentSummary{Symbol: sym}
			rows[sym] = r
		}
		return r
	}
	for _, s := range symbols {
		row(s)
	}

	bySym := map[string][]trade.Trade{}
	for _, t := range closed {
		bySym[t.Symbol] = append(bySym[t.Symbol], t)
	}
	for sym, ts := range bySym {
		s := Summarize(ts)
		r := row(sym)
		r.TotalTrades = s.TotalTrades
		r.Wins = s.Wins
		r.Losses = s.Losses
		r.WinRate = s.WinRate
		r.TotalPnL = s.TotalPnL
	}
	for _, t := range active {
		if t.State.Terminal() {
			continue
		}
		r := row(t.Symbol)
		r.ActiveTrades++
		if t.State.Live() {
			r.UnrealizedPnL += t.Net()
		}
	}

	out := make([]InstrumentSummary, 0, len(rows))
	for _, r := range rows {
		r.NetPnL = r.TotalPnL + r.UnrealizedPnL
		if price != nil {
			r.CurrentPrice = price(r.Symbol)
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}
