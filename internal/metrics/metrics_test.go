package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsIndependentRegistries(t *testing.T) {
	t.Parallel()

	a, b := New(), New()
	a.Denials.WithLabelValues("COOLDOWN_ACTIVE").Inc()
	a.OpenTrades.Set(2)

	assert.Equal(t, 1.0, testutil.ToFloat64(a.Denials.WithLabelValues("COOLDOWN_ACTIVE")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.Denials.WithLabelValues("COOLDOWN_ACTIVE")))
	assert.Equal(t, 2.0, testutil.ToFloat64(a.OpenTrades))
}

func TestMetricsHandler(t *testing.T) {
	t.Parallel()

	m := New()
	m.TradesClosed.WithLabelValues("TARGET").Add(3)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `papertrader_trades_closed_total{reason="TARGET"} 3`)
	assert.Contains(t, string(body), "go_goroutines")
}
