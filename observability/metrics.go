package observability

import (
	"fmt"
	"math"
	"math/big"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type moduleMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	saleMetricsOnce sync.Once
	saleRegistry    *SaleMetrics
)

// ModuleMetrics returns the lazily-initialised module metrics registry used to
// record RPC module activity.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "onls",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Total JSON-RPC requests segmented by module and method.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "onls",
				Subsystem: "rpc",
				Name:      "errors_total",
				Help:      "Total JSON-RPC errors segmented by module, method, and error code.",
			}, []string{"module", "method", "code"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "onls",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "onls",
				Subsystem: "rpc",
				Name:      "throttles_total",
				Help:      "Count of requests rejected due to throttling policies.",
			}, []string{"module", "reason"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
			moduleRegistry.throttles,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of a module request. code is the JSON-RPC error
// code, or zero on success.
func (m *moduleMetrics) Observe(module, method string, code int, duration time.Duration) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if code != 0 {
		outcome = "error"
		m.errors.WithLabelValues(module, method, fmt.Sprintf("%d", code)).Inc()
	}
	m.requests.WithLabelValues(module, method, outcome).Inc()
	m.latency.WithLabelValues(module, method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter for the supplied module and
// reason. Reasons should be stable strings such as "rate_limit" so dashboards
// and alerts remain consistent.
func (m *moduleMetrics) RecordThrottle(module, reason string) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(module, reason).Inc()
}

// SaleMetrics tracks sale operations and escrow balances.
type SaleMetrics struct {
	operations *prometheus.CounterVec
	rejections *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	balances   *prometheus.GaugeVec
	tokens     *prometheus.GaugeVec
}

// Sale returns the singleton metrics registry for the sale node.
func Sale() *SaleMetrics {
	saleMetricsOnce.Do(func() {
		saleRegistry = &SaleMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "onls",
				Subsystem: "sale",
				Name:      "operations_total",
				Help:      "Count of sale operations segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "onls",
				Subsystem: "sale",
				Name:      "rejections_total",
				Help:      "Count of reverted sale operations segmented by operation and reason.",
			}, []string{"operation", "reason"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "onls",
				Subsystem: "sale",
				Name:      "operation_duration_seconds",
				Help:      "Latency distribution for sale operations including commit.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
			balances: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "onls",
				Subsystem: "sale",
				Name:      "wei",
				Help:      "Native amounts held or moved by the sale, in whole native units.",
			}, []string{"kind"}),
			tokens: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "onls",
				Subsystem: "sale",
				Name:      "tokens",
				Help:      "Token units sold, pending delivery and delivered.",
			}, []string{"kind"}),
		}
		prometheus.MustRegister(
			saleRegistry.operations,
			saleRegistry.rejections,
			saleRegistry.latency,
			saleRegistry.balances,
			saleRegistry.tokens,
		)
	})
	return saleRegistry
}

// ObserveOperation records one sale operation. reason is empty on success.
func (m *SaleMetrics) ObserveOperation(operation, reason string, duration time.Duration) {
	if m == nil {
		return
	}
	if operation == "" {
		operation = "unknown"
	}
	outcome := "success"
	if reason != "" {
		outcome = "reverted"
		m.rejections.WithLabelValues(operation, reason).Inc()
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.latency.WithLabelValues(operation).Observe(duration.Seconds())
}

// SetBalance records a native amount such as "raised", "goal" or "raise".
func (m *SaleMetrics) SetBalance(kind string, wei *big.Int) {
	if m == nil {
		return
	}
	m.balances.WithLabelValues(kind).Set(weiToFloat(wei))
}

// SetTokens records a token amount such as "sold", "pending" or "delivered".
func (m *SaleMetrics) SetTokens(kind string, amount *big.Int) {
	if m == nil {
		return
	}
	m.tokens.WithLabelValues(kind).Set(bigToFloat(amount))
}

func weiToFloat(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(v), big.NewFloat(1e18)).Float64()
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0
	}
	return f
}

func bigToFloat(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0
	}
	return f
}
