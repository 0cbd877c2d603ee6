package observability

import (
	"math"
	"math/big"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	exchangeOnce sync.Once
	exchangeReg  *ExchangeMetrics

	httpOnce sync.Once
	httpReg  *HTTPMetrics
)

// ExchangeMetrics captures engine operation outcomes, swap volume and reserve
// levels for the swap daemon.
type ExchangeMetrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	errors   *prometheus.CounterVec
	volume   *prometheus.CounterVec
	fees     *prometheus.CounterVec
	reserves *prometheus.GaugeVec
}

// Exchange returns the singleton metrics registry for exchange operations.
func Exchange() *ExchangeMetrics {
	exchangeOnce.Do(func() {
		exchangeReg = &ExchangeMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "rateswap",
				Subsystem: "exchange",
				Name:      "operations_total",
				Help:      "Count of exchange operations segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "rateswap",
				Subsystem: "exchange",
				Name:      "operation_duration_seconds",
				Help:      "Latency distribution for exchange operations.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "rateswap",
				Subsystem: "exchange",
				Name:      "errors_total",
				Help:      "Count of exchange failures segmented by operation and error code.",
			}, []string{"operation", "code"}),
			volume: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "rateswap",
				Subsystem: "exchange",
				Name:      "swap_input_units_total",
				Help:      "Smallest-unit input volume of committed swaps per pair.",
			}, []string{"from", "to"}),
			fees: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "rateswap",
				Subsystem: "exchange",
				Name:      "fee_units_total",
				Help:      "Smallest-unit output retained as per-mille fee per output asset.",
			}, []string{"asset"}),
			reserves: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "rateswap",
				Subsystem: "exchange",
				Name:      "reserve_units",
				Help:      "Engine reserve balance in smallest units per asset.",
			}, []string{"asset"}),
		}
		prometheus.MustRegister(
			exchangeReg.requests,
			exchangeReg.latency,
			exchangeReg.errors,
			exchangeReg.volume,
			exchangeReg.fees,
			exchangeReg.reserves,
		)
	})
	return exchangeReg
}

// Observe records the outcome of one engine operation. code is the stable
// error identifier and is ignored when empty.
func (m *ExchangeMetrics) Observe(operation string, duration time.Duration, code string) {
	if m == nil {
		return
	}
	op := labelOr(operation, "unknown")
	outcome := "success"
	if code = strings.TrimSpace(code); code != "" {
		outcome = "error"
		m.errors.WithLabelValues(op, code).Inc()
	}
	m.requests.WithLabelValues(op, outcome).Inc()
	m.latency.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordSwap adds a committed swap to the volume and fee counters.
func (m *ExchangeMetrics) RecordSwap(from, to string, amountIn, fee *big.Int) {
	if m == nil {
		return
	}
	m.volume.WithLabelValues(labelOr(from, "unknown"), labelOr(to, "unknown")).Add(bigToFloat(amountIn))
	m.fees.WithLabelValues(labelOr(to, "unknown")).Add(bigToFloat(fee))
}

// SetReserve publishes the current reserve of asset.
func (m *ExchangeMetrics) SetReserve(asset string, balance *big.Int) {
	if m == nil {
		return
	}
	m.reserves.WithLabelValues(labelOr(asset, "unknown")).Set(bigToFloat(balance))
}

// HTTPMetrics records API request outcomes per route.
type HTTPMetrics struct {
	requests  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

// HTTP returns the lazily-initialised HTTP metrics registry.
func HTTP() *HTTPMetrics {
	httpOnce.Do(func() {
		httpReg = &HTTPMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "rateswap",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total API requests segmented by route, method and status code.",
			}, []string{"route", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "rateswap",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for API handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"route", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "rateswap",
				Subsystem: "http",
				Name:      "throttles_total",
				Help:      "Count of API requests rejected by the rate limiter.",
			}, []string{"route"}),
		}
		prometheus.MustRegister(httpReg.requests, httpReg.latency, httpReg.throttles)
	})
	return httpReg
}

// Observe records the outcome of a request. The status code should be the
// one ultimately written to the response writer.
func (m *HTTPMetrics) Observe(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	route = labelOr(route, "unmatched")
	method = labelOr(method, "unknown")
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.latency.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter for route.
func (m *HTTPMetrics) RecordThrottle(route string) {
	if m == nil {
		return
	}
	m.throttles.WithLabelValues(labelOr(route, "unmatched")).Inc()
}

func labelOr(value, fallback string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	return trimmed
}

func bigToFloat(value *big.Int) float64 {
	if value == nil {
		return 0
	}
	floatVal, acc := new(big.Float).SetInt(value).Float64()
	if acc != big.Exact {
		// Guard against NaN/Inf when conversion fails.
		if math.IsNaN(floatVal) || math.IsInf(floatVal, 0) {
			return 0
		}
	}
	return floatVal
}
