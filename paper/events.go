package paper

import (
	"sync"
	"time"

	"github.com/rustyeddy/papertrader/risk"
	"github.com/rustyeddy/papertrader/trade"
)

type EventKind string

const (
	EventAdmitted  EventKind = "admitted"
	EventDenied    EventKind = "denied"
	EventFilled    EventKind = "filled"
	EventCancelled EventKind = "cancelled"
	EventStops     EventKind = "stops"
	EventPartial   EventKind = "partial_exit"
	EventClosed    EventKind = "closed"
	EventStale     EventKind = "stale"
	EventLatch     EventKind = "daily_latch"
	EventStarted   EventKind = "started"
	EventStopped   EventKind = "stopped"
)

// Event is published for every state change the dashboard cares about.
type Event struct {
	Kind       EventKind        `json:"kind"`
	Time       time.Time        `json:"time"`
	Symbol     string           `json:"symbol,omitempty"`
	Trade      *trade.Trade     `json:"trade,omitempty"`
	Violations []risk.Violation `json:"violations,omitempty"`
	Message    string           `json:"message,omitempty"`
}

// bus fans events out to subscribers. A slow subscriber loses events
// rather than blocking the engine.
type bus struct {
	mu   sync.RWMutex
	next int
	subs map[int]chan Event
}

func newBus() *bus {
	return &bus{subs: make(map[int]chan Event)}
}

func (b *bus) subscribe(size int) (<-chan Event, func()) {
	if size <= 0 {
		size = 64
	}
	ch := make(chan Event, size)

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

func (b *bus) publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribe returns a buffered event stream and a cancel func that closes it.
func (e *Engine) Subscribe(size int) (<-chan Event, func()) {
	return e.bus.subscribe(size)
}

func (e *Engine) publish(ev Event) {
	e.bus.publish(ev)
}

func tradeEvent(kind EventKind, t trade.Trade, at time.Time) Event {
	return Event{Kind: kind, Time: at, Symbol: t.Symbol, Trade: &t}
}
