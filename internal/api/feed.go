package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rustyeddy/papertrader/market"
	"github.com/rustyeddy/papertrader/paper"
	"github.com/rustyeddy/papertrader/risk"
	"github.com/rustyeddy/papertrader/trade"
)

// Feed endpoints let an external strategy and market-data process push
// into the engine.

type candleRequest struct {
	Symbol     string            `json:"symbol" binding:"required"`
	Timeframe  string            `json:"timeframe"`
	Open       float64           `json:"open"`
	High       float64           `json:"high"`
	Low        float64           `json:"low"`
	Close      float64           `json:"close"`
	Volume     float64           `json:"volume"`
	Start      time.Time         `json:"start" binding:"required"`
	Closed     bool              `json:"closed"`
	Indicators market.Indicators `json:"indicators"`
}

type tickRequest struct {
	Symbol string    `json:"symbol" binding:"required"`
	Price  float64   `json:"price"`
	Time   time.Time `json:"time" binding:"required"`
}

type signalResponse struct {
	result
	Trade      *trade.Trade     `json:"trade,omitempty"`
	Violations []risk.Violation `json:"violations,omitempty"`
}

func (s *Server) postSignal(c *gin.Context) {
	var sig trade.Signal
	if err := c.ShouldBindJSON(&sig); err != nil {
		c.JSON(http.StatusBadRequest, result{Message: err.Error()})
		return
	}
	if dir, err := trade.ParseDirection(string(sig.Direction)); err == nil {
		sig.Direction = dir
	}

	t, err := s.eng.OnSignal(sig)
	if err != nil {
		res := signalResponse{result: result{Message: err.Error()}}
		var ae *risk.AdmissionError
		if errors.As(err, &ae) {
			res.Violations = ae.Violations
		}
		c.JSON(http.StatusUnprocessableEntity, res)
		return
	}
	c.JSON(http.StatusOK, signalResponse{result: result{Success: true, Message: "Trade " + string(t.State)}, Trade: &t})
}

func (s *Server) postCandle(c *gin.Context) {
	var req candleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, result{Message: err.Error()})
		return
	}
	candle := market.Candle{
		Symbol:    req.Symbol,
		Timeframe: req.Timeframe,
		Open:      req.Open,
		High:      req.High,
		Low:       req.Low,
		Close:     req.Close,
		Volume:    req.Volume,
		Start:     req.Start,
		Closed:    req.Closed,
	}
	s.update(c, s.eng.OnCandle(candle, req.Indicators))
}

func (s *Server) postTick(c *gin.Context) {
	var req tickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, result{Message: err.Error()})
		return
	}
	s.update(c, s.eng.OnTick(market.Tick{Symbol: req.Symbol, Price: req.Price, Time: req.Time}))
}

func (s *Server) update(c *gin.Context, err error) {
	switch {
	case err == nil:
		c.JSON(http.StatusOK, result{Success: true, Message: "ok"})
	case errors.Is(err, paper.ErrOutOfOrder):
		c.JSON(http.StatusConflict, result{Message: err.Error()})
	case errors.Is(err, paper.ErrDataGap):
		c.JSON(http.StatusUnprocessableEntity, result{Message: err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, result{Message: err.Error()})
	}
}
