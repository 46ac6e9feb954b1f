package replay

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/papertrader/trade"
)

func TestReadCandles(t *testing.T) {
	t.Parallel()

	in := `time,symbol,open,high,low,close,volume
2025-01-06T04:00:00Z,NIFTY50,100,101,99.5,100.5,1200

2025-01-06T04:01:00Z, NIFTY50 ,100.5,102,100,101.5
`
	got, err := ReadCandles(strings.NewReader(in), "1min")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "NIFTY50", got[0].Symbol)
	assert.Equal(t, "1min", got[0].Timeframe)
	assert.True(t, got[0].Closed)
	assert.Equal(t, 1200.0, got[0].Volume)
	assert.Equal(t, "NIFTY50", got[1].Symbol)
	assert.Equal(t, 101.5, got[1].Close)
	assert.Zero(t, got[1].Volume)
	assert.True(t, got[1].Start.Equal(time.Date(2025, 1, 6, 4, 1, 0, 0, time.UTC)))
}

func TestReadCandlesErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"short row", "2025-01-06T04:00:00Z,X,1,2,3\n", "line 1: need at least 6 columns"},
		{"bad time", "06/01/2025,X,1,2,0.5,1\n", "bad time"},
		{"bad high", "2025-01-06T04:00:00Z,X,1,abc,0.5,1\n", "high: bad number"},
		{"missing close", "time,symbol,open,high,low,close\n2025-01-06T04:00:00Z,X,1,2,0.5,\n", "line 2: close: missing value"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ReadCandles(strings.NewReader(tt.in), "1min")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestReadSignals(t *testing.T) {
	t.Parallel()

	in := `time,symbol,direction,entry,stop,target,confidence,strategy,pattern
2025-01-06T04:05:00Z,NIFTY50,call,100,98,106,0.8,option,hammer
2025-01-06T04:06:00Z,INFY,short,1500,1510
`
	got, err := ReadSignals(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, trade.Call, got[0].Direction)
	assert.Equal(t, 106.0, got[0].Target)
	assert.Equal(t, 0.8, got[0].Confidence)
	assert.Equal(t, "option", got[0].Strategy)
	assert.Equal(t, "hammer", got[0].Pattern)
	require.NoError(t, got[0].Validate())

	assert.Equal(t, trade.Sell, got[1].Direction)
	assert.Zero(t, got[1].Target)
	require.NoError(t, got[1].Validate())

	_, err = ReadSignals(strings.NewReader("2025-01-06T04:05:00Z,X,sideways,1,2\n"))
	assert.ErrorContains(t, err, "unknown direction")
}

func stringsReader(s string) *strings.Reader { return strings.NewReader(s) }
