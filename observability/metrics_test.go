package observability

import (
	"math/big"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestExchangeMetrics(t *testing.T) {
	m := Exchange()
	require.Same(t, m, Exchange())

	m.Observe("swap", 10*time.Millisecond, "")
	m.Observe("swap", 5*time.Millisecond, "unknown_pair")
	require.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("swap", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("swap", "error")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.errors.WithLabelValues("swap", "unknown_pair")))

	m.RecordSwap("native", "0xA", big.NewInt(1000), big.NewInt(3))
	require.Equal(t, 1000.0, testutil.ToFloat64(m.volume.WithLabelValues("native", "0xA")))
	require.Equal(t, 3.0, testutil.ToFloat64(m.fees.WithLabelValues("0xA")))

	m.SetReserve("native", big.NewInt(42))
	require.Equal(t, 42.0, testutil.ToFloat64(m.reserves.WithLabelValues("native")))
}

func TestHTTPMetrics(t *testing.T) {
	m := HTTP()
	m.Observe("/v1/swap", "POST", 409, time.Millisecond)
	m.RecordThrottle("")
	require.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("/v1/swap", "POST", "409")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.throttles.WithLabelValues("unmatched")))

	var nilMetrics *HTTPMetrics
	nilMetrics.Observe("x", "GET", 200, time.Second)
}
