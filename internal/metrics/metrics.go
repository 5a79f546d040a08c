// Package metrics holds the Prometheus collectors exported by swapxd.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	LedgerOpsTotal        = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "swapx_ledger_ops_total", Help: "Ledger operations by op and result code"}, []string{"op", "result"})
	LedgerOpLatencyMs     = prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "swapx_ledger_op_latency_ms", Help: "Ledger operation latency", Buckets: prometheus.ExponentialBuckets(0.05, 2, 14)}, []string{"op"})
	LedgerSequence        = prometheus.NewGauge(prometheus.GaugeOpts{Name: "swapx_ledger_sequence", Help: "Sequence of the last committed operation"})
	FeePercentage         = prometheus.NewGauge(prometheus.GaugeOpts{Name: "swapx_fee_percentage", Help: "Current fee percentage"})
	SwapVolumeTotal       = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "swapx_swap_volume_total", Help: "Swap input volume by token (approximate, float64)"}, []string{"token"})
	ProtocolFeesTotal     = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "swapx_protocol_fees_total", Help: "Protocol fees forwarded to the treasury by token (approximate, float64)"}, []string{"token"})
	TreasuryFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{Name: "swapx_treasury_failures_total", Help: "Treasury credits that failed and rolled back an operation"})
	PublishFailuresTotal  = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "swapx_publish_failures_total", Help: "Event deliveries that failed by sink"}, []string{"sink"})
	OracleCacheTotal      = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "swapx_oracle_cache_total", Help: "Rate cache lookups by outcome"}, []string{"outcome"})
	RPCRequestsTotal      = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "swapx_rpc_requests_total", Help: "RPC requests by transport and method"}, []string{"transport", "method"})
	WSConnections         = prometheus.NewGauge(prometheus.GaugeOpts{Name: "swapx_ws_connections", Help: "Open event stream connections"})
)

// Init registers every collector on a fresh registry.
func Init(logger zerolog.Logger) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	toRegister := []prometheus.Collector{
		LedgerOpsTotal, LedgerOpLatencyMs, LedgerSequence, FeePercentage,
		SwapVolumeTotal, ProtocolFeesTotal, TreasuryFailuresTotal, PublishFailuresTotal,
		OracleCacheTotal, RPCRequestsTotal, WSConnections,
		collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	}
	for _, c := range toRegister {
		if err := reg.Register(c); err != nil {
			logger.Warn().Err(err).Msg("metrics collector not registered")
		}
	}
	logger.Info().Msg("Prometheus metrics initialized")
	return reg
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
