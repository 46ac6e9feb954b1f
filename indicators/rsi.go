package indicators

import (
	"fmt"

	"github.com/rustyeddy/papertrader/market"
)

// RSI is Wilder's Relative Strength Index over closes.
type RSI struct {
	period    int
	prevClose float64
	havePrev  bool
	count     int
	avgGain   float64
	avgLoss   float64
}

func NewRSI(period int) *RSI {
	return &RSI{period: period}
}

func (r *RSI) Name() string { return fmt.Sprintf("RSI(%d)", r.period) }
func (r *RSI) Warmup() int  { return r.period + 1 }
func (r *RSI) Reset()       { *r = RSI{period: r.period} }
func (r *RSI) Ready() bool  { return r.count >= r.period }

func (r *RSI) Update(c market.Candle) {
	if !r.havePrev {
		r.prevClose = c.Close
		r.havePrev = true
		return
	}
	change := c.Close - r.prevClose
	r.prevClose = c.Close

	var gain, loss float64
	if change > 0 {
		gain = change
	} else {
		loss = -change
	}

	p := float64(r.period)
	if r.count < r.period {
		r.avgGain += gain / p
		r.avgLoss += loss / p
		r.count++
		return
	}
	r.avgGain = (r.avgGain*(p-1) + gain) / p
	r.avgLoss = (r.avgLoss*(p-1) + loss) / p
}

// Value is 100 when there were no losses and 50 on a flat series.
func (r *RSI) Value() float64 {
	if !r.Ready() {
		return 0
	}
	if r.avgLoss == 0 {
		if r.avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := r.avgGain / r.avgLoss
	return 100 - 100/(1+rs)
}
