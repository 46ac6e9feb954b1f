package perf

import (
	"sort"
	"time"

	"github.com/rustyeddy/papertrader/trade"
)

type DayPnL struct {
	Day    string  `json:"day"`
	PnL    float64 `json:"pnl"`
	Trades int     `json:"trades"`
}

// Summary is derived from closed trades only. WinRate is a fraction in
// [0, 1]; GrossLoss and LargestLoss are reported as positive magnitudes.
type Summary struct {
	TotalTrades int     `json:"total_trades"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	WinRate     float64 `json:"win_rate"`

	TotalPnL     float64 `json:"total_pnl"`
	GrossProfit  float64 `json:"gross_profit"`
	GrossLoss    float64 `json:"gross_loss"`
	ProfitFactor float64 `json:"profit_factor"`
	Expectancy   float64 `json:"expectancy"`

	AvgWin      float64 `json:"avg_win"`
	AvgLoss     float64 `json:"avg_loss"`
	LargestWin  float64 `json:"largest_win"`
	LargestLoss float64 `json:"largest_loss"`

	MaxDrawdown          float64 `json:"max_drawdown"`
	MaxConsecutiveLosses int     `json:"max_consecutive_losses"`

	Daily []DayPnL `json:"daily_pnl"`

	FirstExit time.Time `json:"first_exit,omitempty"`
	LastExit  time.Time `json:"last_exit,omitempty"`
}

type options struct {
	loc *time.Location
}

type Option func(*options)

// InLocation buckets daily P&L by exit date in loc instead of UTC.
func InLocation(loc *time.Location) Option {
	return func(o *options) {
		if loc != nil {
			o.loc = loc
		}
	}
}

// Summarize derives performance from trades. Trades that are not CLOSED
// are ignored, so any subset of a ledger or journal can be passed. It does
// not modify its input.
func Summarize(trades []trade.Trade, opts ...Option) Summary {
	o := options{loc: time.UTC}
	for _, fn := range opts {
		fn(&o)
	}

	closed := make([]trade.Trade, 0, len(trades))
	for _, t := range trades {
		if t.State == trade.Closed && t.RealizedPnL != nil {
			closed = append(closed, t)
		}
	}
	sort.SliceStable(closed, func(i, j int) bool { return closed[i].ExitTime.Before(closed[j].ExitTime) })

	s := Summary{TotalTrades: len(closed), Daily: []DayPnL{}}
	if len(closed) == 0 {
		return s
	}

	var cum, peak float64
	var streak int
	days := map[string]*DayPnL{}
	for _, t := range closed {
		pnl := *t.RealizedPnL
		s.TotalPnL += pnl

		if pnl > 0 {
			s.Wins++
			s.GrossProfit += pnl
			if pnl > s.LargestWin {
				s.LargestWin = pnl
			}
			streak = 0
		} else {
			s.Losses++
			s.GrossLoss -= pnl
			if -pnl > s.LargestLoss {
				s.LargestLoss = -pnl
			}
			streak++
			if streak > s.MaxConsecutiveLosses {
				s.MaxConsecutiveLosses = streak
			}
		}

		cum += pnl
		if cum > peak {
			peak = cum
		}
		if dd := peak - cum; dd > s.MaxDrawdown {
			s.MaxDrawdown = dd
		}

		day := t.ExitTime.In(o.loc).Format(time.DateOnly)
		d, ok := days[day]
		if !ok {
			d = &DayPnL{Day: day}
			days[day] = d
		}
		d.PnL += pnl
		d.Trades++
	}

	n := float64(s.TotalTrades)
	s.WinRate = float64(s.Wins) / n
	s.Expectancy = s.TotalPnL / n
	if s.GrossLoss > 0 {
		s.ProfitFactor = s.GrossProfit / s.GrossLoss
	} else {
		s.ProfitFactor = s.GrossProfit
	}
	if s.Wins > 0 {
		s.AvgWin = s.GrossProfit / float64(s.Wins)
	}
	if s.Losses > 0 {
		s.AvgLoss = s.GrossLoss / float64(s.Losses)
	}

	for _, d := range days {
		s.Daily = append(s.Daily, *d)
	}
	sort.Slice(s.Daily, func(i, j int) bool { return s.Daily[i].Day < s.Daily[j].Day })

	s.FirstExit = closed[0].ExitTime
	s.LastExit = closed[len(closed)-1].ExitTime
	return s
}
