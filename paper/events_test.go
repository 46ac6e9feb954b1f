package paper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusDropsForSlowSubscribers(t *testing.T) {
	t.Parallel()

	b := newBus()
	slow, cancelSlow := b.subscribe(1)
	fast, cancelFast := b.subscribe(8)
	defer cancelFast()

	for i := 0; i < 3; i++ {
		b.publish(Event{Kind: EventStopped, Message: string(rune('a' + i))})
	}
	assert.Len(t, slow, 1)
	assert.Len(t, fast, 3)
	assert.Equal(t, "a", (<-slow).Message)

	cancelSlow()
	cancelSlow()
	_, open := <-slow
	assert.False(t, open)

	b.publish(Event{Kind: EventStarted})
	assert.Len(t, fast, 4)
}

func TestRunStopsWithContext(t *testing.T) {
	t.Parallel()

	e := newEngine(t, func(c *Config) { c.EquityInterval = 10 * time.Millisecond })
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := e.Run(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
