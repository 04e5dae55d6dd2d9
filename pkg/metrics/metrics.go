// Package metrics provides Prometheus metrics for the token ledger.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "x1token"

// Result label values.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Metrics holds all collectors for the token ledger on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	// Counters
	Instructions *prometheus.CounterVec
	Transactions *prometheus.CounterVec
	Signatures   prometheus.Counter

	// Gauges
	AccountsCount prometheus.Gauge

	// Histograms
	TransactionDuration prometheus.Histogram
	ComputeUnits        prometheus.Histogram
}

// NewMetrics creates a Metrics instance with every collector registered,
// including the Go runtime and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		Instructions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "instructions_total",
			Help:      "Instructions executed, by program, opcode and result",
		}, []string{"program", "opcode", "result"}),
		Transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_total",
			Help:      "Transactions processed, by result",
		}, []string{"result"}),
		Signatures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signatures_verified_total",
			Help:      "Transaction signatures verified",
		}),

		AccountsCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "accounts_count",
			Help:      "Accounts in the account store",
		}),

		TransactionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transaction_duration_seconds",
			Help:      "Transaction execution latency in seconds",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1.0},
		}),
		ComputeUnits: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transaction_compute_units",
			Help:      "Compute units consumed per transaction",
			Buckets:   prometheus.ExponentialBuckets(1000, 2, 9),
		}),
	}

	m.registry.MustRegister(
		m.Instructions,
		m.Transactions,
		m.Signatures,
		m.AccountsCount,
		m.TransactionDuration,
		m.ComputeUnits,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordInstruction counts one executed instruction. The opcode label is the
// first instruction data byte, or "none" for empty data.
func (m *Metrics) RecordInstruction(program string, data []byte, err error) {
	opcode := "none"
	if len(data) > 0 {
		opcode = strconv.Itoa(int(data[0]))
	}
	m.Instructions.WithLabelValues(program, opcode, result(err == nil)).Inc()
}

// RecordTransaction records the outcome, compute usage and latency of one
// transaction.
func (m *Metrics) RecordTransaction(success bool, computeUnits uint64, duration time.Duration) {
	m.Transactions.WithLabelValues(result(success)).Inc()
	m.ComputeUnits.Observe(float64(computeUnits))
	m.TransactionDuration.Observe(duration.Seconds())
}

// RecordSignatures counts verified signatures.
func (m *Metrics) RecordSignatures(n int) {
	m.Signatures.Add(float64(n))
}

// SetAccountsCount updates the account store size gauge.
func (m *Metrics) SetAccountsCount(n uint64) {
	m.AccountsCount.Set(float64(n))
}

func result(success bool) string {
	if success {
		return ResultSuccess
	}
	return ResultFailure
}

// Global default metrics instance.
var defaultMetrics *Metrics
var defaultMetricsOnce sync.Once

// DefaultMetrics returns the global default metrics instance.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		defaultMetrics = NewMetrics()
	})
	return defaultMetrics
}
