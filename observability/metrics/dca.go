package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// DCAMetrics tracks the externally visible activity of the settlement engine:
// order flow, period settlements and withdrawals per pair.
type DCAMetrics struct {
	ordersCreated    *prometheus.CounterVec
	periodsSettled   *prometheus.CounterVec
	settlementErrors *prometheus.CounterVec
	withdrawals      *prometheus.CounterVec
	lastSettled      *prometheus.GaugeVec
	rpcRequests      *prometheus.CounterVec
}

var (
	dcaOnce     sync.Once
	dcaRegistry *DCAMetrics
)

// DCA returns the process-wide settlement metrics registry, registering the
// collectors on first use.
func DCA() *DCAMetrics {
	dcaOnce.Do(func() {
		dcaRegistry = &DCAMetrics{
			ordersCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "dca_orders_created_total",
				Help: "Count of accepted order creations by pair.",
			}, []string{"pair"}),
			periodsSettled: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "dca_periods_settled_total",
				Help: "Count of successfully settled periods by pair.",
			}, []string{"pair"}),
			settlementErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "dca_settlement_errors_total",
				Help: "Count of failed settlement attempts by reason.",
			}, []string{"reason"}),
			withdrawals: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "dca_withdrawals_total",
				Help: "Count of withdrawal operations by kind.",
			}, []string{"kind"}),
			lastSettled: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "dca_last_settled_period",
				Help: "Most recently settled period per pair.",
			}, []string{"pair"}),
			rpcRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "dca_rpc_requests_total",
				Help: "Count of RPC requests by method and outcome.",
			}, []string{"method", "outcome"}),
		}
		prometheus.MustRegister(
			dcaRegistry.ordersCreated,
			dcaRegistry.periodsSettled,
			dcaRegistry.settlementErrors,
			dcaRegistry.withdrawals,
			dcaRegistry.lastSettled,
			dcaRegistry.rpcRequests,
		)
	})
	return dcaRegistry
}

// ObserveOrderCreated records an accepted order for a pair.
func (m *DCAMetrics) ObserveOrderCreated(pair string) {
	if m == nil {
		return
	}
	if pair == "" {
		pair = "unknown"
	}
	m.ordersCreated.WithLabelValues(pair).Inc()
}

// ObservePeriodSettled records a successful settlement and the new high-water
// period for the pair.
func (m *DCAMetrics) ObservePeriodSettled(pair string, period uint64) {
	if m == nil {
		return
	}
	if pair == "" {
		pair = "unknown"
	}
	m.periodsSettled.WithLabelValues(pair).Inc()
	m.lastSettled.WithLabelValues(pair).Set(float64(period))
}

// ObserveSettlementError records a failed settlement attempt by reason.
func (m *DCAMetrics) ObserveSettlementError(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unknown"
	}
	m.settlementErrors.WithLabelValues(reason).Inc()
}

// ObserveWithdrawal records a withdrawal operation. Kind distinguishes plain
// withdrawals from full cancellations.
func (m *DCAMetrics) ObserveWithdrawal(kind string) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	m.withdrawals.WithLabelValues(kind).Inc()
}

// ObserveRPCRequest records one RPC request with its outcome.
func (m *DCAMetrics) ObserveRPCRequest(method, outcome string) {
	if m == nil {
		return
	}
	if method == "" {
		method = "unknown"
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.rpcRequests.WithLabelValues(method, outcome).Inc()
}
