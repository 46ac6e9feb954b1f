package market

import (
	"errors"
	"sync"
	"time"
)

// Tick is a last-traded price for a symbol.
type Tick struct {
	Symbol string
	Price  float64
	Time   time.Time
}

// Candle turns a tick into a degenerate candle so ticks and candles share
// one evaluation path.
func (t Tick) Candle() Candle {
	return Candle{
		Symbol: t.Symbol,
		Open:   t.Price,
		High:   t.Price,
		Low:    t.Price,
		Close:  t.Price,
		Start:  t.Time,
		Closed: true,
	}
}

var ErrNoPrice = errors.New("price not found")

// PriceStore keeps the latest traded price per symbol.
type PriceStore struct {
	mu    sync.RWMutex
	ticks map[string]Tick
}

func NewPriceStore() *PriceStore {
	return &PriceStore{ticks: make(map[string]Tick)}
}

func (ps *PriceStore) Set(t Tick) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.ticks[t.Symbol] = t
}

func (ps *PriceStore) Get(symbol string) (Tick, error) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	t, ok := ps.ticks[symbol]
	if !ok {
		return Tick{}, ErrNoPrice
	}
	return t, nil
}

// Last returns the latest price or 0 when none has been seen.
func (ps *PriceStore) Last(symbol string) float64 {
	t, err := ps.Get(symbol)
	if err != nil {
		return 0
	}
	return t.Price
}

func (ps *PriceStore) All() map[string]Tick {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	out := make(map[string]Tick, len(ps.ticks))
	for k, v := range ps.ticks {
		out[k] = v
	}
	return out
}
