package engine_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matchcore/internal/domain"
	"matchcore/internal/engine"
)

const waitFor = 2 * time.Second
const tick = 5 * time.Millisecond

func TestSubmitMatchesAndPublishesTrade(t *testing.T) {
	trades := make(chan domain.Trade, 8)
	eng := engine.New(trades)
	eng.Start()
	defer eng.Stop()

	buy := domain.NewLimitOrder("AAPL", domain.Buy, 10, 100.0, "alice")
	sell := domain.NewLimitOrder("AAPL", domain.Sell, 10, 100.0, "bob")

	require.NoError(t, eng.Submit(buy))
	require.NoError(t, eng.Submit(sell))

	select {
	case trade := <-trades:
		assert.Equal(t, uint64(10), trade.Quantity)
		assert.Equal(t, buy.ID, trade.BuyOrderID)
		assert.Equal(t, sell.ID, trade.SellOrderID)
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for trade")
	}
}

func TestSubmitRejectsZeroQuantity(t *testing.T) {
	trades := make(chan domain.Trade, 8)
	eng := engine.New(trades)
	eng.Start()
	defer eng.Stop()

	order := domain.NewLimitOrder("AAPL", domain.Buy, 0, 100.0, "alice")
	require.NoError(t, eng.Submit(order))

	require.Eventually(t, func() bool {
		return order.Status == domain.Rejected
	}, waitFor, tick)

	snap := eng.SnapshotMetrics()
	assert.Equal(t, uint64(1), snap.RejectedOrders)
}

func TestCancelRemovesRestingOrder(t *testing.T) {
	trades := make(chan domain.Trade, 8)
	eng := engine.New(trades)
	eng.Start()
	defer eng.Stop()

	order := domain.NewLimitOrder("AAPL", domain.Buy, 10, 100.0, "alice")
	require.NoError(t, eng.Submit(order))

	require.Eventually(t, func() bool {
		view, ok := eng.PeekBook("AAPL")
		return ok && view.Depth == 1
	}, waitFor, tick)

	require.NoError(t, eng.Cancel(order.ID, "AAPL"))

	require.Eventually(t, func() bool {
		view, ok := eng.PeekBook("AAPL")
		return ok && view.Depth == 0
	}, waitFor, tick)

	snap := eng.SnapshotMetrics()
	assert.Equal(t, uint64(1), snap.CancelledOrders)
}

func TestPeekBookReflectsBestPrices(t *testing.T) {
	trades := make(chan domain.Trade, 8)
	eng := engine.New(trades)
	eng.Start()
	defer eng.Stop()

	require.NoError(t, eng.Submit(domain.NewLimitOrder("AAPL", domain.Buy, 5, 99.5, "alice")))
	require.NoError(t, eng.Submit(domain.NewLimitOrder("AAPL", domain.Sell, 5, 101.5, "bob")))

	require.Eventually(t, func() bool {
		view, ok := eng.PeekBook("AAPL")
		return ok && view.BestBid != nil && view.BestAsk != nil
	}, waitFor, tick)

	view, ok := eng.PeekBook("AAPL")
	require.True(t, ok)
	require.NotNil(t, view.BestBid)
	require.NotNil(t, view.BestAsk)
	assert.Equal(t, domain.ToTicks(99.5), *view.BestBid)
	assert.Equal(t, domain.ToTicks(101.5), *view.BestAsk)
}

func TestPeekBookUnknownSymbol(t *testing.T) {
	eng := engine.New(make(chan domain.Trade, 1))
	eng.Start()
	defer eng.Stop()

	_, ok := eng.PeekBook("DOES-NOT-EXIST")
	assert.False(t, ok)
}

func TestStopIsIdempotentAndRejectsFurtherWork(t *testing.T) {
	eng := engine.New(make(chan domain.Trade, 1))
	eng.Start()
	eng.Stop()
	eng.Stop() // must not block or panic

	err := eng.Submit(domain.NewLimitOrder("AAPL", domain.Buy, 1, 1.0, "alice"))
	assert.ErrorIs(t, err, engine.ErrEngineStopped)

	err = eng.Cancel(uuid.New(), "AAPL")
	assert.ErrorIs(t, err, engine.ErrEngineStopped)
}

func TestStopThenRestartLeavesWorkerFunctional(t *testing.T) {
	trades := make(chan domain.Trade, 8)
	eng := engine.New(trades)

	// Run several stop/start cycles: each Stop races a shutdownCommand
	// against the tomb dying, so a stale sentinel left in the queue must
	// never survive into the next Start's fresh worker. The cycle orders
	// go to a separate symbol so they cannot rest ahead of the final buy.
	for i := 0; i < 5; i++ {
		eng.Start()
		require.NoError(t, eng.Submit(domain.NewLimitOrder("MSFT", domain.Buy, 1, 100.0, "alice")))
		eng.Stop()
	}

	eng.Start()
	defer eng.Stop()

	buy := domain.NewLimitOrder("AAPL", domain.Buy, 10, 100.0, "alice")
	sell := domain.NewLimitOrder("AAPL", domain.Sell, 10, 100.0, "bob")
	require.NoError(t, eng.Submit(buy))
	require.NoError(t, eng.Submit(sell))

	select {
	case trade := <-trades:
		assert.Equal(t, uint64(10), trade.Quantity)
	case <-time.After(waitFor):
		t.Fatal("worker did not process commands after restart")
	}
}

func TestMarketOrderRejectedWithoutExistingBook(t *testing.T) {
	trades := make(chan domain.Trade, 8)
	eng := engine.New(trades)
	eng.Start()
	defer eng.Stop()

	order := domain.NewMarketOrder("AAPL", domain.Buy, 10, "alice")
	require.NoError(t, eng.Submit(order))

	require.Eventually(t, func() bool {
		return order.Status == domain.Rejected
	}, waitFor, tick)
}

func TestSubmitFailsWhenQueueFull(t *testing.T) {
	eng := engine.New(nil, engine.WithQueueCapacity(1))
	// The engine runs with a single queue slot and is fed in a tight
	// loop, so the worker may fall behind; when it does, Submit must
	// observe backpressure rather than block.
	eng.Start()
	defer eng.Stop()

	var lastErr error
	for i := 0; i < 10000 && lastErr == nil; i++ {
		lastErr = eng.Submit(domain.NewLimitOrder("AAPL", domain.Buy, 1, 1.0, "alice"))
	}
	// Either every submit drained in time (no full queue observed, which
	// is acceptable given a live worker) or ErrQueueFull surfaced.
	if lastErr != nil {
		assert.ErrorIs(t, lastErr, engine.ErrQueueFull)
	}
}
