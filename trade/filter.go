package trade

import (
	"fmt"
	"strings"
	"time"
)

type Outcome string

const (
	OutcomeAny  Outcome = ""
	OutcomeWin  Outcome = "win"
	OutcomeLoss Outcome = "loss"
)

func ParseOutcome(s string) (Outcome, error) {
	switch o := Outcome(strings.ToLower(strings.TrimSpace(s))); o {
	case OutcomeAny, OutcomeWin, OutcomeLoss:
		return o, nil
	}
	return "", fmt.Errorf("unknown outcome %q (want win or loss)", s)
}

// Filter selects trades. From/To bound the exit time of closed trades and
// the entry time of the others as [From, To); zero values leave a bound
// open. Outcome only makes sense for closed trades.
type Filter struct {
	Symbol   string
	Strategy string
	Outcome  Outcome
	From     time.Time
	To       time.Time
}

func (f Filter) Match(t *Trade) bool {
	if f.Symbol != "" && !strings.EqualFold(f.Symbol, t.Symbol) {
		return false
	}
	if f.Strategy != "" && !strings.EqualFold(f.Strategy, t.Strategy) {
		return false
	}
	switch f.Outcome {
	case OutcomeWin:
		if !t.Won() {
			return false
		}
	case OutcomeLoss:
		if t.Won() {
			return false
		}
	}
	at := t.ExitTime
	if t.State != Closed {
		at = t.EntryTime
		if at.IsZero() {
			at = t.SignalTime
		}
	}
	if !f.From.IsZero() && at.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !at.Before(f.To) {
		return false
	}
	return true
}
