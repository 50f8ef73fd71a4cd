// Package metrics holds the crawler's shared counters. Per spec, no
// component holds a lock here — every field is a plain atomic, read
// and written independently. The Autoscaler samples TotalOps to derive
// a rolling ops/sec; a Prometheus registry mirrors the same counters
// for the external stats surface.
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is the set of counters every component increments directly.
// There is deliberately no mutex: each field is independently atomic,
// and readers tolerate slight skew between fields taken at different
// instants.
type Metrics struct {
	OpsInFlight       atomic.Int64
	TotalOps          atomic.Int64
	TotalErrors       atomic.Int64
	TotalQueueLength  atomic.Int64
	TotalObjectsFound atomic.Int64
	KeysWritten       atomic.Int64
	ActiveWorkers     atomic.Int64
	TargetWorkers     atomic.Int64

	opsCounter       prometheus.Counter
	errorsCounter    prometheus.Counter
	objectsCounter   prometheus.Counter
	keysCounter      prometheus.Counter
	inFlightGauge    prometheus.Gauge
	workersGauge     prometheus.Gauge
	targetGauge      prometheus.Gauge
	queueLengthGauge prometheus.Gauge
}

// New returns a Metrics registered against registry.
func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		opsCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "s3sweep_listing_requests_total",
			Help: "Total number of listing requests issued.",
		}),
		errorsCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "s3sweep_listing_errors_total",
			Help: "Total number of listing requests that failed.",
		}),
		objectsCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "s3sweep_objects_found_total",
			Help: "Total number of objects observed across all listing responses.",
		}),
		keysCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "s3sweep_keys_written_total",
			Help: "Total number of object keys written to the output sink.",
		}),
		inFlightGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "s3sweep_ops_in_flight",
			Help: "Number of listing requests currently awaiting a response.",
		}),
		workersGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "s3sweep_active_workers",
			Help: "Current number of running Worker tasks.",
		}),
		targetGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "s3sweep_target_workers",
			Help: "Worker population the Autoscaler currently wants.",
		}),
		queueLengthGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "s3sweep_frontier_length",
			Help: "Current total_queue_length of the prefix frontier.",
		}),
	}
	registry.MustRegister(
		m.opsCounter, m.errorsCounter, m.objectsCounter, m.keysCounter,
		m.inFlightGauge, m.workersGauge, m.targetGauge, m.queueLengthGauge,
	)
	return m
}

// BeginOp increments OpsInFlight; call EndOp when the response (or
// error) for this request is in hand.
func (m *Metrics) BeginOp() {
	m.OpsInFlight.Add(1)
	m.inFlightGauge.Inc()
}

// EndOp decrements OpsInFlight and records the completed op, counting
// it as an error when err != nil.
func (m *Metrics) EndOp(err error) {
	m.OpsInFlight.Add(-1)
	m.inFlightGauge.Dec()
	m.TotalOps.Add(1)
	m.opsCounter.Inc()
	if err != nil {
		m.TotalErrors.Add(1)
		m.errorsCounter.Inc()
	}
}

// RecordObjectsFound adds n to TotalObjectsFound.
func (m *Metrics) RecordObjectsFound(n int) {
	if n <= 0 {
		return
	}
	m.TotalObjectsFound.Add(int64(n))
	m.objectsCounter.Add(float64(n))
}

// RecordKeysWritten adds n to KeysWritten.
func (m *Metrics) RecordKeysWritten(n int) {
	if n <= 0 {
		return
	}
	m.KeysWritten.Add(int64(n))
	m.keysCounter.Add(float64(n))
}

// AddQueueLength adjusts TotalQueueLength by delta (positive on push,
// negative on pop).
func (m *Metrics) AddQueueLength(delta int) {
	m.TotalQueueLength.Add(int64(delta))
	m.queueLengthGauge.Set(float64(m.TotalQueueLength.Load()))
}

// SetActiveWorkers records the current worker population.
func (m *Metrics) SetActiveWorkers(n int) {
	m.ActiveWorkers.Store(int64(n))
	m.workersGauge.Set(float64(n))
}

// SetTargetWorkers records the Autoscaler's current desired population.
func (m *Metrics) SetTargetWorkers(n int) {
	m.TargetWorkers.Store(int64(n))
	m.targetGauge.Set(float64(n))
}
