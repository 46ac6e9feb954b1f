package risk

import "time"

// DailyState is the risk bookkeeping for one trading day. It is a value the
// caller owns and guards; the Governor only reads it.
type DailyState struct {
	Day               string    `json:"day"`
	RealizedPnL       float64   `json:"realized_pnl"`
	Trades            int       `json:"trades"`
	Wins              int       `json:"wins"`
	Losses            int       `json:"losses"`
	ConsecutiveLosses int       `json:"consecutive_losses"`
	LossLimitBreached bool      `json:"loss_limit_breached"`
	BreachedAt        time.Time `json:"breached_at,omitempty"`
}

func NewDailyState(day string) DailyState {
	return DailyState{Day: day}
}

// Roll starts a new day when day differs from the current one and reports
// whether it did. Rolling is the only way to clear the loss latch.
func (s *DailyState) Roll(day string) bool {
	if s.Day == day {
		return false
	}
	*s = NewDailyState(day)
	return true
}

func (s *DailyState) RecordOpen() { s.Trades++ }

// RecordClose books a closed trade's realized P&L. Once the day's realized
// P&L reaches -lossLimit the latch trips and stays tripped for the day,
// even if later trades bring the total back above the limit. It reports
// whether this close tripped the latch.
func (s *DailyState) RecordClose(pnl, lossLimit float64, at time.Time) bool {
	s.RealizedPnL += pnl
	if pnl < 0 {
		s.Losses++
		s.ConsecutiveLosses++
	} else {
		if pnl > 0 {
			s.Wins++
		}
		s.ConsecutiveLosses = 0
	}
	if s.LossLimitBreached || lossLimit <= 0 {
		return false
	}
	if s.RealizedPnL <= -lossLimit {
		s.LossLimitBreached = true
		s.BreachedAt = at
		return true
	}
	return false
}
