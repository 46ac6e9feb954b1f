// journal/journal.go
package journal

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rustyeddy/papertrader/market"
	"github.com/rustyeddy/papertrader/risk"
	"github.com/rustyeddy/papertrader/trade"
)

// TradeRecord is a closed trade as persisted. It keeps enough to rebuild
// the performance summary without the ledger.
type TradeRecord struct {
	TradeID      string
	Instrument   string
	Direction    string
	Strategy     string
	Pattern      string
	Quantity     float64
	EntryPrice   float64
	ExitPrice    float64
	InitialStop  float64
	StopLoss     float64
	TrailingStop float64
	Target       float64
	OpenTime     time.Time
	CloseTime    time.Time
	RealizedPL   float64
	MFE          float64
	MAE          float64
	Reason       string
}

func FromTrade(t trade.Trade) TradeRecord {
	return TradeRecord{
		TradeID:      t.ID,
		Instrument:   t.Symbol,
		Direction:    string(t.Direction),
		Strategy:     t.Strategy,
		Pattern:      t.Pattern,
		Quantity:     t.Quantity,
		EntryPrice:   t.EntryPrice,
		ExitPrice:    t.ExitPrice,
		InitialStop:  t.InitialStop,
		StopLoss:     t.StopLoss,
		TrailingStop: t.TrailingStop,
		Target:       t.Target,
		OpenTime:     t.EntryTime,
		CloseTime:    t.ExitTime,
		RealizedPL:   t.Realized(),
		MFE:          t.MFE,
		MAE:          t.MAE,
		Reason:       string(t.ExitReason),
	}
}

// Trade rebuilds the closed trade a record was written from.
func (r TradeRecord) Trade() trade.Trade {
	pnl := r.RealizedPL
	return trade.Trade{
		ID:           r.TradeID,
		Symbol:       r.Instrument,
		Direction:    trade.Direction(r.Direction),
		Strategy:     r.Strategy,
		Pattern:      r.Pattern,
		EntryPrice:   r.EntryPrice,
		InitialStop:  r.InitialStop,
		StopLoss:     r.StopLoss,
		TrailingStop: r.TrailingStop,
		Target:       r.Target,
		Quantity:     r.Quantity,
		State:        trade.Closed,
		EntryTime:    r.OpenTime,
		ExitTime:     r.CloseTime,
		ExitPrice:    r.ExitPrice,
		ExitReason:   trade.ExitReason(r.Reason),
		RealizedPnL:  &pnl,
		LastPrice:    r.ExitPrice,
		MFE:          r.MFE,
		MAE:          r.MAE,
	}
}

// Trades converts records back into closed trades.
func Trades(recs []TradeRecord) []trade.Trade {
	out := make([]trade.Trade, len(recs))
	for i, r := range recs {
		out[i] = r.Trade()
	}
	return out
}

// DecisionRecord is the audit entry for one admission decision. Context
// holds the signal, indicator and risk-state snapshot as JSON.
type DecisionRecord struct {
	Time      time.Time
	Symbol    string
	Direction string
	Strategy  string
	Allowed   bool
	Codes     string
	TradeID   string
	Context   string
}

type decisionContext struct {
	Signal     trade.Signal      `json:"signal"`
	Indicators market.Indicators `json:"indicators"`
	Decision   risk.Decision     `json:"decision"`
}

// NewDecisionRecord captures the full context of an admission decision.
// tradeID is empty for denials. err is the ledger's refusal, if any, and is
// folded into the codes.
func NewDecisionRecord(sig trade.Signal, dec risk.Decision, tradeID string, err error) (DecisionRecord, error) {
	codes := make([]string, 0, len(dec.Violations))
	for _, v := range dec.Violations {
		codes = append(codes, v.Code)
	}
	// A governor denial comes back from the ledger as the same violations.
	var ae *risk.AdmissionError
	if (dec.Allowed || len(dec.Violations) == 0) && errors.As(err, &ae) {
		for _, v := range ae.Violations {
			codes = append(codes, v.Code)
		}
	}
	blob, jerr := json.Marshal(decisionContext{Signal: sig, Indicators: sig.Indicators, Decision: dec})
	if jerr != nil {
		return DecisionRecord{}, jerr
	}
	return DecisionRecord{
		Time:      sig.Time,
		Symbol:    sig.Symbol,
		Direction: string(sig.Direction),
		Strategy:  sig.Strategy,
		Allowed:   dec.Allowed && err == nil,
		Codes:     strings.Join(codes, ","),
		TradeID:   tradeID,
		Context:   string(blob),
	}, nil
}

// EquitySnapshot is the session's marked-to-market value at a point in time.
type EquitySnapshot struct {
	Time       time.Time
	Capital    float64
	Realized   float64
	Unrealized float64
	Equity     float64
	OpenTrades int
}

type Journal interface {
	RecordTrade(TradeRecord) error
	RecordDecision(DecisionRecord) error
	RecordEquity(EquitySnapshot) error
	Close() error
}

// Discard is a Journal that drops everything.
type Discard struct{}

func (Discard) RecordTrade(TradeRecord) error       { return nil }
func (Discard) RecordDecision(DecisionRecord) error { return nil }
func (Discard) RecordEquity(EquitySnapshot) error   { return nil }
func (Discard) Close() error                        { return nil }
