// Package metrics provides counters, Prometheus collectors, and HTTP
// handlers for exporting relay runtime metrics.
package metrics

import (
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Send outcomes, used as the "outcome" label.
const (
	OutcomeSuccess         = "success"
	OutcomeInvalidRequest  = "invalid_request"
	OutcomeCredentialError = "credential_error"
	OutcomeProviderError   = "provider_error"
	OutcomeTimeout         = "timeout"
)

var (
	sendsSucceeded    int64
	sendsFailed       int64
	tokenExchanges    int64
	tokenExchangeErrs int64
	tokenCacheHits    int64
)

var (
	promSends = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "push_relay_sends_total",
			Help: "Total send attempts by outcome",
		},
		[]string{"outcome"},
	)
	promTokenExchanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "push_relay_token_exchanges_total",
			Help: "Total credential exchanges by status",
		},
		[]string{"status"},
	)
	promTokenCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "push_relay_token_cache_hits_total",
			Help: "Total token requests served from the cache",
		},
	)
	promSendDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "push_relay_send_duration_seconds",
			Help:    "Duration of relay sends including token acquisition",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)
)

func init() {
	prometheus.MustRegister(
		promSends,
		promTokenExchanges,
		promTokenCacheHits,
		promSendDuration,
	)
}

// IncSend records one relay send with the given outcome.
func IncSend(outcome string) {
	if outcome == OutcomeSuccess {
		atomic.AddInt64(&sendsSucceeded, 1)
	} else {
		atomic.AddInt64(&sendsFailed, 1)
	}
	promSends.WithLabelValues(outcome).Inc()
}

// IncTokenExchange records one credential exchange.
func IncTokenExchange(err error) {
	if err != nil {
		atomic.AddInt64(&tokenExchangeErrs, 1)
		promTokenExchanges.WithLabelValues("failure").Inc()
		return
	}
	atomic.AddInt64(&tokenExchanges, 1)
	promTokenExchanges.WithLabelValues("success").Inc()
}

// IncTokenCacheHit records a token request served without an exchange.
func IncTokenCacheHit() {
	atomic.AddInt64(&tokenCacheHits, 1)
	promTokenCacheHits.Inc()
}

// ObserveSendDuration records the duration of a send in seconds.
func ObserveSendDuration(seconds float64) {
	promSendDuration.Observe(seconds)
}

// StatsSnapshot is a point-in-time copy of the counters for JSON encoding.
type StatsSnapshot struct {
	SendsSucceeded      int64 `json:"sends_succeeded"`
	SendsFailed         int64 `json:"sends_failed"`
	TokenExchanges      int64 `json:"token_exchanges"`
	TokenExchangeErrors int64 `json:"token_exchange_errors"`
	TokenCacheHits      int64 `json:"token_cache_hits"`
}

// GetSnapshot returns the current counter values.
func GetSnapshot() StatsSnapshot {
	return StatsSnapshot{
		SendsSucceeded:      atomic.LoadInt64(&sendsSucceeded),
		SendsFailed:         atomic.LoadInt64(&sendsFailed),
		TokenExchanges:      atomic.LoadInt64(&tokenExchanges),
		TokenExchangeErrors: atomic.LoadInt64(&tokenExchangeErrs),
		TokenCacheHits:      atomic.LoadInt64(&tokenCacheHits),
	}
}

// PromHandler returns an HTTP handler that exposes Prometheus metrics.
func PromHandler() http.Handler { return promhttp.Handler() }
