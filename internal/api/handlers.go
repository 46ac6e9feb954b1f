package api

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rustyeddy/papertrader/ledger"
	"github.com/rustyeddy/papertrader/perf"
	"github.com/rustyeddy/papertrader/trade"
)

type result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// tradeView is one row of the dashboard trade table.
type tradeView struct {
	ID           string     `json:"id"`
	Symbol       string     `json:"symbol"`
	OptionType   string     `json:"option_type"`
	Strategy     string     `json:"strategy"`
	Pattern      string     `json:"pattern"`
	EntryTime    *time.Time `json:"entry_time"`
	ExitTime     *time.Time `json:"exit_time"`
	EntryPrice   float64    `json:"entry_price"`
	ExitPrice    *float64   `json:"exit_price"`
	StopLoss     float64    `json:"stop_loss"`
	TrailingStop float64    `json:"trailing_stop,omitempty"`
	Target       float64    `json:"target,omitempty"`
	Quantity     float64    `json:"quantity"`
	LTP          float64    `json:"ltp"`
	PnL          float64    `json:"pnl"`
	Status       string     `json:"status"`
	ExitReason   string     `json:"exit_reason,omitempty"`
	Stale        bool       `json:"stale,omitempty"`
}

func newTradeView(t trade.Trade) tradeView {
	v := tradeView{
		ID:           t.ID,
		Symbol:       t.Symbol,
		OptionType:   string(t.Direction),
		Strategy:     t.Strategy,
		Pattern:      t.Pattern,
		EntryPrice:   t.EntryPrice,
		StopLoss:     t.StopLoss,
		TrailingStop: t.TrailingStop,
		Target:       t.Target,
		Quantity:     t.Quantity,
		LTP:          t.LastPrice,
		PnL:          t.Net(),
		Status:       string(t.State),
		ExitReason:   string(t.ExitReason),
		Stale:        t.Stale,
	}
	if !t.EntryTime.IsZero() {
		at := t.EntryTime
		v.EntryTime = &at
	}
	if t.State == trade.Closed {
		at, px := t.ExitTime, t.ExitPrice
		v.ExitTime, v.ExitPrice = &at, &px
	}
	if t.State == trade.Cancelled {
		v.ExitReason = t.CancelReason
	}
	return v
}

type performanceView struct {
	TotalTrades          int                `json:"total_trades"`
	WinRate              float64            `json:"win_rate"`
	Wins                 int                `json:"wins"`
	Losses               int                `json:"losses"`
	TotalPnL             float64            `json:"total_pnl"`
	DailyPnL             map[string]float64 `json:"daily_pnl"`
	ProfitFactor         float64            `json:"profit_factor"`
	Expectancy           float64            `json:"expectancy"`
	MaxDrawdown          float64            `json:"max_drawdown"`
	AvgWin               float64            `json:"avg_win"`
	AvgLoss              float64            `json:"avg_loss"`
	MaxConsecutiveLosses int                `json:"max_consecutive_losses"`
}

func newPerformanceView(s perf.Summary) performanceView {
	v := performanceView{
		TotalTrades:          s.TotalTrades,
		WinRate:              s.WinRate * 100,
		Wins:                 s.Wins,
		Losses:               s.Losses,
		TotalPnL:             s.TotalPnL,
		DailyPnL:             make(map[string]float64, len(s.Daily)),
		ProfitFactor:         s.ProfitFactor,
		Expectancy:           s.Expectancy,
		MaxDrawdown:          s.MaxDrawdown,
		AvgWin:               s.AvgWin,
		AvgLoss:              s.AvgLoss,
		MaxConsecutiveLosses: s.MaxConsecutiveLosses,
	}
	for _, d := range s.Daily {
		v.DailyPnL[d.Day] = d.PnL
	}
	return v
}

func (s *Server) status(c *gin.Context) {
	c.JSON(http.StatusOK, s.eng.Status())
}

func (s *Server) summary(c *gin.Context) {
	rows := s.eng.InstrumentSummaries()
	now := time.Now().UTC()

	type row struct {
		perf.InstrumentSummary
		WinRate    float64   `json:"win_rate"`
		LastUpdate time.Time `json:"last_update"`
	}
	indices := make(map[string]row, len(rows))
	for _, r := range rows {
		indices[r.Symbol] = row{InstrumentSummary: r, WinRate: r.WinRate * 100, LastUpdate: now}
	}
	c.JSON(http.StatusOK, gin.H{"indices": indices})
}

// trades lists active trades first, then closed ones newest first.
func (s *Server) trades(c *gin.Context) {
	f, err := parseFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, result{Message: err.Error()})
		return
	}

	// Open trades have no outcome yet; every other filter applies.
	active := f
	active.Outcome = trade.OutcomeAny
	out := []tradeView{}
	for _, t := range s.eng.ActiveTrades() {
		if !active.Match(&t) {
			continue
		}
		out = append(out, newTradeView(t))
	}
	closed := s.eng.ClosedTrades(f)
	slices.Reverse(closed)
	for _, t := range closed {
		out = append(out, newTradeView(t))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) performance(c *gin.Context) {
	f, err := parseFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, result{Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, newPerformanceView(s.eng.Performance(f)))
}

type partialExitRequest struct {
	Symbol    string  `json:"symbol" binding:"required"`
	EntryTime string  `json:"entry_time" binding:"required"`
	Quantity  float64 `json:"quantity" binding:"required,gt=0"`
}

func (s *Server) partialExit(c *gin.Context) {
	var req partialExitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, result{Message: err.Error()})
		return
	}
	at, err := time.Parse(time.RFC3339, req.EntryTime)
	if err != nil {
		c.JSON(http.StatusBadRequest, result{Message: fmt.Sprintf("bad entry_time %q: want RFC3339", req.EntryTime)})
		return
	}

	t, err := s.eng.ManualPartialExit(req.Symbol, at, req.Quantity)
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		c.JSON(http.StatusNotFound, result{Message: err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusUnprocessableEntity, result{Message: err.Error()})
		return
	}
	s.log.Info("partial exit", zap.String("symbol", req.Symbol), zap.Time("entry_time", at),
		zap.Float64("quantity", req.Quantity), zap.Float64("open_quantity", t.OpenQuantity))
	c.JSON(http.StatusOK, signalResponse{
		result: result{Success: true, Message: fmt.Sprintf("Booked %v, %v open", req.Quantity, t.OpenQuantity)},
		Trade:  &t,
	})
}

type exitRequest struct {
	Symbol    string `json:"symbol" form:"symbol"`
	EntryTime string `json:"entry_time" form:"entry_time"`
}

func (s *Server) exit(c *gin.Context) {
	var req exitRequest
	if err := c.ShouldBind(&req); err != nil || req.Symbol == "" {
		// Query parameters work for any content type.
		req.Symbol, req.EntryTime = c.Query("symbol"), c.Query("entry_time")
	}
	if req.Symbol == "" || req.EntryTime == "" {
		c.JSON(http.StatusBadRequest, result{Message: "symbol and entry_time are required"})
		return
	}
	at, err := time.Parse(time.RFC3339, req.EntryTime)
	if err != nil {
		c.JSON(http.StatusBadRequest, result{Message: fmt.Sprintf("bad entry_time %q: want RFC3339", req.EntryTime)})
		return
	}

	ok, msg := s.eng.ManualExit(req.Symbol, at)
	s.log.Info("manual exit", zap.String("symbol", req.Symbol), zap.Time("entry_time", at),
		zap.Bool("success", ok), zap.String("message", msg))
	c.JSON(http.StatusOK, result{Success: ok, Message: msg})
}

func (s *Server) start(c *gin.Context) {
	if !s.eng.Start() {
		c.JSON(http.StatusOK, result{Message: "Paper trade already running"})
		return
	}
	st := s.eng.Status()
	c.JSON(http.StatusOK, result{Success: true, Message: fmt.Sprintf("Paper trade started for %v", st.Symbols)})
}

func (s *Server) stop(c *gin.Context) {
	if !s.eng.Stop() {
		c.JSON(http.StatusOK, result{Message: "Paper trade not running"})
		return
	}
	c.JSON(http.StatusOK, result{Success: true, Message: "Paper trade stopped"})
}

// parseFilter reads symbol, strategy, outcome, from and to. Dates are
// RFC3339 or YYYY-MM-DD.
func parseFilter(c *gin.Context) (trade.Filter, error) {
	f := trade.Filter{Symbol: c.Query("symbol"), Strategy: c.Query("strategy")}
	var err error
	if f.Outcome, err = trade.ParseOutcome(c.Query("outcome")); err != nil {
		return f, err
	}
	if f.From, err = parseDate(c.Query("from")); err != nil {
		return f, fmt.Errorf("from: %w", err)
	}
	if f.To, err = parseDate(c.Query("to")); err != nil {
		return f, fmt.Errorf("to: %w", err)
	}
	return f, nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad date %q", s)
	}
	return t, nil
}
