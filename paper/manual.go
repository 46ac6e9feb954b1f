package paper

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/papertrader/ledger"
	"github.com/rustyeddy/papertrader/trade"
)

// ManualExit closes the live trade of symbol that was entered at
// entryTime, at the latest known price. It races automatic exits through
// the ledger; the loser is told the trade is already closed.
func (e *Engine) ManualExit(symbol string, entryTime time.Time) (bool, string) {
	st := e.symbol(symbol)
	st.mu.Lock()
	defer st.mu.Unlock()

	var found *trade.Trade
	for _, t := range e.ledger.All() {
		if t.Symbol != symbol || !t.EntryTime.Equal(entryTime) {
			continue
		}
		if found == nil || !t.State.Terminal() {
			found = &t
		}
	}
	if found == nil {
		return false, "Trade not found"
	}
	if found.State.Pending() {
		c, err := e.ledger.CancelTrade(found.ID, string(trade.ExitManual))
		if err != nil {
			return false, err.Error()
		}
		e.metrics.TradesCancelled.WithLabelValues(c.CancelReason).Inc()
		e.publish(tradeEvent(EventCancelled, c, e.now()))
		e.updateGauges()
		return true, "Pending trade cancelled"
	}

	price := e.prices.Last(symbol)
	if price <= 0 {
		price = found.LastPrice
	}
	at := e.now()
	if at.Before(found.LastUpdate) {
		at = found.LastUpdate
	}

	closed, err := e.ledger.CloseTrade(found.ID, price, trade.ExitManual, at)
	switch {
	case errors.Is(err, trade.ErrAlreadyTerminal):
		return false, fmt.Sprintf("Trade already %s", found.State)
	case err != nil:
		e.log.Error("manual exit failed", zap.String("trade_id", found.ID), zap.Error(err))
		return false, err.Error()
	}
	e.onClosed(closed, "")
	e.updateGauges()
	return true, "Exit successful"
}

// ManualPartialExit books qty units of the live trade of symbol entered at
// entryTime at the latest known price. The rest of the position stays open
// under the same stops.
func (e *Engine) ManualPartialExit(symbol string, entryTime time.Time, qty float64) (trade.Trade, error) {
	st := e.symbol(symbol)
	st.mu.Lock()
	defer st.mu.Unlock()

	var found *trade.Trade
	for _, t := range e.ledger.ForSymbol(symbol) {
		if t.State.Live() && t.EntryTime.Equal(entryTime) {
			found = &t
			break
		}
	}
	if found == nil {
		return trade.Trade{}, fmt.Errorf("no live %s trade entered at %s: %w", symbol, entryTime.Format(time.RFC3339), ledger.ErrNotFound)
	}

	price := e.prices.Last(symbol)
	if price <= 0 {
		price = found.LastPrice
	}
	at := e.now()
	if at.Before(found.LastUpdate) {
		at = found.LastUpdate
	}
	part, err := e.ledger.PartialExit(found.ID, qty, price, trade.ExitManual, at)
	if err != nil {
		return trade.Trade{}, err
	}
	e.log.Info("partial exit", zap.String("trade_id", part.ID), zap.Float64("quantity", qty),
		zap.Float64("price", price), zap.Float64("open_quantity", part.OpenQuantity))
	e.publish(tradeEvent(EventPartial, part, at))
	e.updateGauges()
	return part, nil
}

// CloseAll closes every live trade at its last price and cancels the ones
// still waiting for a fill. Replay uses it with END_OF_DATA at the end of
// the data, serve with MANUAL on shutdown. It returns the closed trades.
func (e *Engine) CloseAll(reason trade.ExitReason, at time.Time) []trade.Trade {
	var out []trade.Trade
	for _, sym := range e.symbolsWithTrades() {
		st := e.symbol(sym)
		st.mu.Lock()
		for _, t := range e.ledger.ForSymbol(sym) {
			if t.State.Pending() {
				if c, err := e.ledger.CancelTrade(t.ID, string(reason)); err == nil {
					e.metrics.TradesCancelled.WithLabelValues(c.CancelReason).Inc()
					e.publish(tradeEvent(EventCancelled, c, at))
				}
				continue
			}
			price := t.LastPrice
			if price <= 0 {
				price = t.EntryPrice
			}
			when := at
			if when.Before(t.LastUpdate) {
				when = t.LastUpdate
			}
			closed, err := e.ledger.CloseTrade(t.ID, price, reason, when)
			if err != nil {
				e.log.Error("close trade", zap.String("trade_id", t.ID), zap.Error(err))
				continue
			}
			e.onClosed(closed, "")
			out = append(out, closed)
		}
		st.mu.Unlock()
	}
	e.updateGauges()
	return out
}

func (e *Engine) symbolsWithTrades() []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range e.ledger.Active() {
		if !seen[t.Symbol] {
			seen[t.Symbol] = true
			out = append(out, t.Symbol)
		}
	}
	return out
}
