package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matchcore/internal/metrics"
)

func TestSnapshotAccumulatesCounters(t *testing.T) {
	c := metrics.New()

	c.IncTotalOrders()
	c.IncTotalOrders()
	c.IncFilled()
	c.IncRejected()
	c.IncCancelled()
	c.AddTrades(2, 1500.0)
	c.IncDroppedTrades()

	snap := c.Snapshot()
	assert.Equal(t, uint64(2), snap.TotalOrders)
	assert.Equal(t, uint64(1), snap.FilledOrders)
	assert.Equal(t, uint64(1), snap.RejectedOrders)
	assert.Equal(t, uint64(1), snap.CancelledOrders)
	assert.Equal(t, uint64(2), snap.TotalTrades)
	assert.Equal(t, uint64(1), snap.DroppedTrades)
	assert.InDelta(t, 1500.0, snap.TotalNotional, 0.0001)
}

func TestFillRate(t *testing.T) {
	empty := metrics.Snapshot{}
	assert.Equal(t, float64(0), empty.FillRate())

	s := metrics.Snapshot{TotalOrders: 4, FilledOrders: 1}
	assert.Equal(t, float64(25), s.FillRate())
}

func TestSnapshotWithNoLatencySamplesLeavesPercentilesZero(t *testing.T) {
	c := metrics.New()
	snap := c.Snapshot()
	assert.Equal(t, uint64(0), snap.AvgLatencyMicros)
	assert.Equal(t, uint64(0), snap.P50LatencyMicros)
	assert.Equal(t, uint64(0), snap.P95LatencyMicros)
	assert.Equal(t, uint64(0), snap.P99LatencyMicros)
}

func TestSnapshotPercentilesByIntegerIndex(t *testing.T) {
	c := metrics.New()
	for i := uint64(1); i <= 100; i++ {
		c.RecordLatencyMicros(i)
	}

	snap := c.Snapshot()
	// Integer-indexed percentiles over 1..100 sorted ascending: index =
	// pct*n/100, so p50 -> samples[50] == 51, p95 -> samples[95] == 96,
	// p99 -> samples[99] == 100.
	assert.Equal(t, uint64(51), snap.P50LatencyMicros)
	assert.Equal(t, uint64(96), snap.P95LatencyMicros)
	assert.Equal(t, uint64(100), snap.P99LatencyMicros)
	assert.InDelta(t, 50.5, float64(snap.AvgLatencyMicros), 1)
}

func TestRingBufferEvictsOldestSampleAtCapacity(t *testing.T) {
	c := metrics.New()
	// Push one outlier, then fill the reservoir with a single repeated
	// value: the outlier is the oldest sample and must be evicted, so the
	// snapshot reflects only the sampleCap most recent entries. Had the
	// buffer grown unbounded instead, the outlier would lift the average
	// to (65536*10 + 10_000_000)/65537 = 162.
	const cap = 65536
	c.RecordLatencyMicros(10_000_000)
	for i := 0; i < cap; i++ {
		c.RecordLatencyMicros(10)
	}

	snap := c.Snapshot()
	assert.Equal(t, uint64(10), snap.P99LatencyMicros)
	assert.Less(t, snap.AvgLatencyMicros, uint64(20))
}

func TestRegistryExposesPrometheusCounters(t *testing.T) {
	c := metrics.New()
	c.IncTotalOrders()
	c.AddTrades(3, 10.0)

	registry := c.Registry()
	require.NotNil(t, registry)

	count, err := testutil.GatherAndCount(registry, "matchcore_orders_total", "matchcore_trades_total")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, count, 2)
}
