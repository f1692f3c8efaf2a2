// Package metrics accumulates execution counters and a rolling sample
// of per-command latencies, exposing a snapshot with computed
// percentiles (§4.3). It also mirrors the same counters onto a
// per-instance Prometheus registry so an embedder can mount
// promhttp.HandlerFor without this package owning an HTTP sink (the
// metrics sink itself stays an external collaborator, per the spec's
// Non-goals).
//
// Grounded on the original Rust source's ExecutionMetrics
// (types/mod.rs) and get_metrics (engine/mod.rs) for the counters and
// percentile arithmetic, and on
// akshitanchan-execution-fairness-simulator's internal/metrics
// collector for the accumulator-plus-Compute(snapshot) shape.
package metrics

import (
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// sampleCap bounds the latency reservoir (suggested in §4.3) to prevent
// unbounded growth; the source's sample buffer is unbounded.
const sampleCap = 65536

// Snapshot is a consistent, by-value copy of the engine's execution
// metrics at the moment it was taken.
type Snapshot struct {
	TotalOrders     uint64
	FilledOrders    uint64
	CancelledOrders uint64
	RejectedOrders  uint64
	TotalTrades     uint64
	DroppedTrades   uint64
	TotalNotional   float64

	AvgLatencyMicros uint64
	P50LatencyMicros uint64
	P95LatencyMicros uint64
	P99LatencyMicros uint64
}

// FillRate is filled_orders / total_orders * 100, preserved from the
// original source's ExecutionMetrics::fill_rate. It is derived on read
// rather than stored, so it cannot drift from the counters it depends
// on.
func (s Snapshot) FillRate() float64 {
	if s.TotalOrders == 0 {
		return 0
	}
	return float64(s.FilledOrders) / float64(s.TotalOrders) * 100
}

// Collector accumulates counters and a bounded ring buffer of per-command
// latencies (microseconds). It is mutated only by the engine's single
// dispatcher worker (§5); Snapshot may be called concurrently from any
// goroutine and takes a brief lock to copy a consistent view.
type Collector struct {
	mu sync.Mutex

	totalOrders     uint64
	filledOrders    uint64
	cancelledOrders uint64
	rejectedOrders  uint64
	totalTrades     uint64
	droppedTrades   uint64
	totalNotional   float64

	samples    [sampleCap]uint64
	sampleHead int
	sampleLen  int

	registry      *prometheus.Registry
	ordersTotal   *prometheus.CounterVec
	tradesTotal   prometheus.Counter
	notionalTotal prometheus.Counter
	latencyHist   prometheus.Histogram
}

// New returns an empty collector with its own Prometheus registry (never
// the global default registry, so multiple engines can coexist in a
// process or in tests without metric-name collisions).
func New() *Collector {
	registry := prometheus.NewRegistry()

	ordersTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "matchcore",
		Name:      "orders_total",
		Help:      "Orders processed by outcome.",
	}, []string{"outcome"})
	tradesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "matchcore",
		Name:      "trades_total",
		Help:      "Trades produced by the matching book.",
	})
	notionalTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "matchcore",
		Name:      "notional_total",
		Help:      "Sum of quantity*price over every produced trade.",
	})
	latencyHist := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "matchcore",
		Name:      "command_latency_microseconds",
		Help:      "Dispatcher command processing latency.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 20),
	})

	registry.MustRegister(ordersTotal, tradesTotal, notionalTotal, latencyHist)

	return &Collector{
		registry:      registry,
		ordersTotal:   ordersTotal,
		tradesTotal:   tradesTotal,
		notionalTotal: notionalTotal,
		latencyHist:   latencyHist,
	}
}

// Registry exposes the collector's Prometheus registry for an embedder
// to mount behind promhttp.HandlerFor. The engine itself never starts an
// HTTP server.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// IncTotalOrders records a non-rejected new order.
func (c *Collector) IncTotalOrders() {
	c.mu.Lock()
	c.totalOrders++
	c.mu.Unlock()
	c.ordersTotal.WithLabelValues("accepted").Inc()
}

// IncFilled records that an order's entry produced at least one trade.
func (c *Collector) IncFilled() {
	c.mu.Lock()
	c.filledOrders++
	c.mu.Unlock()
	c.ordersTotal.WithLabelValues("filled").Inc()
}

// IncRejected records a validation failure at worker intake.
func (c *Collector) IncRejected() {
	c.mu.Lock()
	c.rejectedOrders++
	c.mu.Unlock()
	c.ordersTotal.WithLabelValues("rejected").Inc()
}

// IncCancelled records a successful cancel.
func (c *Collector) IncCancelled() {
	c.mu.Lock()
	c.cancelledOrders++
	c.mu.Unlock()
	c.ordersTotal.WithLabelValues("cancelled").Inc()
}

// AddTrades records n trades produced by a single command, with their
// combined notional value in the original floating-point price units.
func (c *Collector) AddTrades(n int, notional float64) {
	if n == 0 {
		return
	}
	c.mu.Lock()
	c.totalTrades += uint64(n)
	c.totalNotional += notional
	c.mu.Unlock()
	c.tradesTotal.Add(float64(n))
	c.notionalTotal.Add(notional)
}

// IncDroppedTrades records a trade that was produced but could not be
// published because the trade sink was full or closed.
func (c *Collector) IncDroppedTrades() {
	c.mu.Lock()
	c.droppedTrades++
	c.mu.Unlock()
}

// RecordLatencyMicros pushes one elapsed-time-since-dequeue sample
// (microseconds) into the ring buffer, evicting the oldest sample once
// the buffer is full.
func (c *Collector) RecordLatencyMicros(micros uint64) {
	c.mu.Lock()
	c.samples[c.sampleHead] = micros
	c.sampleHead = (c.sampleHead + 1) % sampleCap
	if c.sampleLen < sampleCap {
		c.sampleLen++
	}
	c.mu.Unlock()
	c.latencyHist.Observe(float64(micros))
}

// Snapshot returns a consistent copy of the current counters and
// percentiles computed over the present sample buffer: sorted ascending,
// avg = sum/n, and p50/p95/p99 read by integer index (no interpolation).
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		TotalOrders:     c.totalOrders,
		FilledOrders:    c.filledOrders,
		CancelledOrders: c.cancelledOrders,
		RejectedOrders:  c.rejectedOrders,
		TotalTrades:     c.totalTrades,
		DroppedTrades:   c.droppedTrades,
		TotalNotional:   c.totalNotional,
	}

	if c.sampleLen == 0 {
		return s
	}

	samples := make([]uint64, c.sampleLen)
	copy(samples, c.samples[:c.sampleLen])
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })

	n := len(samples)
	var sum uint64
	for _, v := range samples {
		sum += v
	}
	s.AvgLatencyMicros = sum / uint64(n)
	s.P50LatencyMicros = samples[percentileIndex(n, 50)]
	s.P95LatencyMicros = samples[percentileIndex(n, 95)]
	s.P99LatencyMicros = samples[percentileIndex(n, 99)]
	return s
}

func percentileIndex(n, pct int) int {
	idx := (pct * n) / 100
	if idx >= n {
		idx = n - 1
	}
	return idx
}
