package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SettlementMetrics records the money-movement outcomes operators alert on.
type SettlementMetrics struct {
	escrowReleased  *prometheus.CounterVec
	escrowAmount    *prometheus.CounterVec
	payouts         *prometheus.CounterVec
	disputes        *prometheus.CounterVec
	courierDuration *prometheus.HistogramVec
	invariantBreaks prometheus.Counter
}

// NewSettlementMetrics registers the settlement metrics on the provided registerer.
func NewSettlementMetrics(reg prometheus.Registerer) *SettlementMetrics {
	if reg == nil {
		return &SettlementMetrics{}
	}
	escrowReleased := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "escrow_transitions_total",
		Help: "Escrow transactions moved to a terminal state, by outcome.",
	}, []string{"outcome"})
	escrowAmount := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "escrow_amount_kobo_total",
		Help: "Total kobo moved out of escrow, by outcome.",
	}, []string{"outcome"})
	payouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payouts_total",
		Help: "Payout requests by terminal status.",
	}, []string{"status"})
	disputes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "disputes_total",
		Help: "Disputes by lifecycle event.",
	}, []string{"event"})
	courierDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "courier_request_duration_seconds",
		Help:    "Duration of courier gateway calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	invariantBreaks := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wallet_invariant_violations_total",
		Help: "Detected disagreements between wallet balance and ledger.",
	})
	reg.MustRegister(escrowReleased, escrowAmount, payouts, disputes, courierDuration, invariantBreaks)
	return &SettlementMetrics{
		escrowReleased:  escrowReleased,
		escrowAmount:    escrowAmount,
		payouts:         payouts,
		disputes:        disputes,
		courierDuration: courierDuration,
		invariantBreaks: invariantBreaks,
	}
}

// ObserveEscrowOutcome counts a release or refund with the amount moved.
func (m *SettlementMetrics) ObserveEscrowOutcome(outcome string, amountKobo int64) {
	if m == nil || m.escrowReleased == nil {
		return
	}
	label := normalizeLabel(outcome)
	m.escrowReleased.WithLabelValues(label).Inc()
	if amountKobo > 0 {
		m.escrowAmount.WithLabelValues(label).Add(float64(amountKobo))
	}
}

// ObservePayout counts a payout reaching the given status.
func (m *SettlementMetrics) ObservePayout(status string) {
	if m == nil || m.payouts == nil {
		return
	}
	m.payouts.WithLabelValues(normalizeLabel(status)).Inc()
}

// ObserveDispute counts a dispute lifecycle event (opened, resolved).
func (m *SettlementMetrics) ObserveDispute(event string) {
	if m == nil || m.disputes == nil {
		return
	}
	m.disputes.WithLabelValues(normalizeLabel(event)).Inc()
}

// ObserveCourierCall records the duration of one courier gateway operation.
func (m *SettlementMetrics) ObserveCourierCall(operation string, duration time.Duration) {
	if m == nil || m.courierDuration == nil {
		return
	}
	m.courierDuration.WithLabelValues(normalizeLabel(operation)).Observe(duration.Seconds())
}

// IncInvariantViolation counts a wallet/ledger disagreement.
func (m *SettlementMetrics) IncInvariantViolation() {
	if m == nil || m.invariantBreaks == nil {
		return
	}
	m.invariantBreaks.Inc()
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return "unknown"
	}
	return strings.ReplaceAll(value, " ", "_")
}
