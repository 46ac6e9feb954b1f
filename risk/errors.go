package risk

import (
	"errors"
	"fmt"
	"strings"
)

type Reason string

const (
	ReasonDuplicateInstrument Reason = "DUPLICATE_INSTRUMENT"
	ReasonCooldownActive      Reason = "COOLDOWN_ACTIVE"
	ReasonDailyCapReached     Reason = "DAILY_CAP_REACHED"
	ReasonRiskTooHigh         Reason = "RISK_TOO_HIGH"
	ReasonTooManyOpenTrades   Reason = "TOO_MANY_OPEN_TRADES"
	ReasonOutsideSession      Reason = "OUTSIDE_SESSION"
	ReasonSessionStopped      Reason = "SESSION_STOPPED"
	ReasonNoTradeZone         Reason = "NO_TRADE_ZONE"
	ReasonInvalidSignal       Reason = "INVALID_SIGNAL"
	ReasonStaleSignal         Reason = "STALE_SIGNAL"
)

// ErrAdmissionDenied is matched by every *AdmissionError.
var ErrAdmissionDenied = errors.New("admission denied")

// Violation is one reason a signal was refused. Reason is the category
// callers branch on; Code names the specific rule.
type Violation struct {
	Reason Reason `json:"reason"`
	Code   string `json:"code"`
	Msg    string `json:"msg"`
}

type AdmissionError struct {
	Symbol     string
	Violations []Violation
}

func (e *AdmissionError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, fmt.Sprintf("%s: %s", v.Code, v.Msg))
	}
	return fmt.Sprintf("%s: %s: %s", ErrAdmissionDenied, e.Symbol, strings.Join(parts, "; "))
}

func (e *AdmissionError) Unwrap() error { return ErrAdmissionDenied }

func (e *AdmissionError) Has(r Reason) bool {
	for _, v := range e.Violations {
		if v.Reason == r {
			return true
		}
	}
	return false
}

// Deny builds an AdmissionError with a single violation.
func Deny(symbol string, r Reason, code, msg string) *AdmissionError {
	return &AdmissionError{Symbol: symbol, Violations: []Violation{{Reason: r, Code: code, Msg: msg}}}
}

// HasReason reports whether err is an admission denial for reason r.
func HasReason(err error, r Reason) bool {
	var ae *AdmissionError
	return errors.As(err, &ae) && ae.Has(r)
}
