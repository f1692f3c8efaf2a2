// Package engine owns the symbol->book mapping, serialises NewOrder/
// CancelOrder/Shutdown commands from a bounded single-consumer queue
// onto one logical worker, publishes resulting trades to a trade sink,
// and drives the metrics collector (§4.2).
//
// Grounded on the teacher's internal/net/server.go and internal/worker.go
// for the tomb.Tomb-supervised worker loop and idiomatic shutdown
// discipline, generalized from a TCP connection-pool worker to the
// spec's single-writer command dispatcher, and on the original Rust
// source's engine/mod.rs (ExecutionEngine) for the command shapes and
// process_order/process_cancel split.
package engine

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"matchcore/internal/book"
	"matchcore/internal/domain"
	"matchcore/internal/metrics"
)

// DefaultQueueCapacity is the suggested bounded command queue size (§4.2).
const DefaultQueueCapacity = 10_000

// pollTimeout bounds how long the worker waits on an empty queue before
// re-checking for a shutdown signal (§4.2 step 1, §5 "suspension points").
const pollTimeout = 100 * time.Millisecond

var (
	// ErrEngineStopped is returned by Submit/Cancel when the engine is
	// not running.
	ErrEngineStopped = errors.New("engine: stopped")
	// ErrQueueFull is returned by Submit/Cancel when the bounded command
	// queue is at capacity.
	ErrQueueFull = errors.New("engine: command queue full")
)

type command interface{ isCommand() }

type newOrderCommand struct{ order *domain.Order }
type cancelCommand struct {
	id     uuid.UUID
	symbol string
}
type shutdownCommand struct{}

func (newOrderCommand) isCommand() {}
func (cancelCommand) isCommand()   {}
func (shutdownCommand) isCommand() {}

// Option configures an Engine at construction.
type Option func(*Engine)

// WithQueueCapacity overrides DefaultQueueCapacity.
func WithQueueCapacity(capacity int) Option {
	return func(e *Engine) { e.queueCapacity = capacity }
}

// Engine is the command dispatcher: it exclusively owns the
// symbol->OrderBook mapping, the bounded command queue, and the metrics
// accumulator. Construct one per logical venue; it is an ordinary value
// with explicit lifetime (§9), safe to construct and dispose many of
// concurrently in tests.
//
// Lock order, per §5: metrics < latency-buffer < books. The metrics
// collector and its latency buffer guard themselves internally
// (internal/metrics); booksMu is the only lock this package takes, and
// it is never held across an enqueue/dequeue or trade-send operation.
type Engine struct {
	queueCapacity int
	commands      chan command
	trades        chan domain.Trade
	metrics       *metrics.Collector

	booksMu sync.RWMutex
	books   map[string]*book.OrderBook

	running atomic.Bool
	t       *tomb.Tomb
}

// New constructs a stopped Engine publishing trades onto tradeSink.
// tradeSink is owned by the caller; the engine only ever sends on it.
func New(tradeSink chan domain.Trade, opts ...Option) *Engine {
	e := &Engine{
		queueCapacity: DefaultQueueCapacity,
		trades:        tradeSink,
		metrics:       metrics.New(),
		books:         make(map[string]*book.OrderBook),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.commands = make(chan command, e.queueCapacity)
	return e
}

// Start transitions the engine from stopped to running and spawns the
// dispatcher worker. Idempotent: starting an already-running engine is a
// no-op.
func (e *Engine) Start() {
	if !e.running.CompareAndSwap(false, true) {
		return
	}
	e.t = new(tomb.Tomb)
	e.t.Go(e.run)
	log.Info().Msg("engine started")
}

// Stop signals shutdown and waits for the worker to observe it. The
// worker drains no further commands after observing the signal; an
// in-flight command completes first. Idempotent: stopping an
// already-stopped engine is a no-op. After Stop returns, every
// subsequent Submit/Cancel fails with ErrEngineStopped.
func (e *Engine) Stop() {
	if !e.running.CompareAndSwap(true, false) {
		return
	}
	select {
	case e.commands <- shutdownCommand{}:
	default:
		// Queue is full; the worker still exits on the tomb's Dying
		// signal raised by Kill below.
	}
	e.t.Kill(nil)
	_ = e.t.Wait()
	e.drainCommands()
	log.Info().Msg("engine stopped")
}

// drainCommands discards whatever is left buffered in commands once the
// worker has exited. Without this, a shutdownCommand sent above can lose
// the race against Dying() closing (run's select picks either ready case
// at random) and sit unconsumed in the channel; a later Start would then
// spin up a fresh worker whose first iteration dequeues that stale
// sentinel and exits immediately, leaving running true with no worker
// behind it. Draining here means a new Start always begins from an empty
// queue regardless of which case run's select happened to pick.
func (e *Engine) drainCommands() {
	for {
		select {
		case <-e.commands:
		default:
			return
		}
	}
}

// Submit enqueues a NewOrder command. Non-blocking: fails with
// ErrQueueFull under backpressure rather than blocking the caller.
func (e *Engine) Submit(order *domain.Order) error {
	if !e.running.Load() {
		return ErrEngineStopped
	}
	select {
	case e.commands <- newOrderCommand{order: order}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Cancel enqueues a CancelOrder command for id within symbol.
func (e *Engine) Cancel(id uuid.UUID, symbol string) error {
	if !e.running.Load() {
		return ErrEngineStopped
	}
	select {
	case e.commands <- cancelCommand{id: id, symbol: symbol}:
		return nil
	default:
		return ErrQueueFull
	}
}

// SnapshotMetrics returns a consistent copy of current counters and
// computed latency percentiles. Safe to call concurrently with the
// dispatcher worker.
func (e *Engine) SnapshotMetrics() metrics.Snapshot {
	return e.metrics.Snapshot()
}

// BookView is a read-only projection of one symbol's book (§4.2
// peek_book).
type BookView struct {
	BestBid *int64
	BestAsk *int64
	Depth   int
}

// PeekBook returns a point-in-time view of symbol's book, or ok=false if
// no book exists for that symbol. This is a read path: it takes booksMu
// briefly (per §5) and may run concurrently with the dispatcher worker;
// the lock is never held across a channel operation.
func (e *Engine) PeekBook(symbol string) (BookView, bool) {
	e.booksMu.RLock()
	defer e.booksMu.RUnlock()

	b, ok := e.books[symbol]
	if !ok {
		return BookView{}, false
	}

	view := BookView{Depth: b.Depth()}
	if bid, ok := b.BestBid(); ok {
		view.BestBid = &bid
	}
	if ask, ok := b.BestAsk(); ok {
		view.BestAsk = &ask
	}
	return view, true
}

// run is the single dispatcher worker: it polls the command queue with
// a short timeout to allow periodic shutdown observation, and suspends
// only on that poll and on the (never-blocking) trade send.
func (e *Engine) run() error {
	for {
		select {
		case <-e.t.Dying():
			return nil
		case cmd := <-e.commands:
			dequeuedAt := time.Now()
			if _, ok := cmd.(shutdownCommand); ok {
				return nil
			}
			e.dispatch(cmd)
			e.metrics.RecordLatencyMicros(uint64(time.Since(dequeuedAt).Microseconds()))
		case <-time.After(pollTimeout):
			continue
		}
	}
}

func (e *Engine) dispatch(cmd command) {
	switch c := cmd.(type) {
	case newOrderCommand:
		e.handleNewOrder(c.order)
	case cancelCommand:
		e.handleCancel(c.id, c.symbol)
	}
}

func (e *Engine) handleNewOrder(order *domain.Order) {
	if order.Quantity == 0 {
		e.reject(order, "zero quantity")
		return
	}
	if order.OrderType == domain.Limit && order.Price == nil {
		e.reject(order, "limit order missing price")
		return
	}
	if !order.OrderType.Core() {
		e.reject(order, "unsupported order type")
		return
	}

	e.booksMu.Lock()
	b, ok := e.books[order.Symbol]
	if !ok {
		if order.OrderType == domain.Market {
			e.booksMu.Unlock()
			e.reject(order, "no book for symbol")
			return
		}
		b = book.New(order.Symbol)
		e.books[order.Symbol] = b
	}

	var trades []domain.Trade
	if order.OrderType == domain.Market {
		trades = b.MatchMarket(order)
	} else {
		_ = b.Add(order) // preconditions already checked above
		trades = b.Match()
	}
	e.booksMu.Unlock()

	e.metrics.IncTotalOrders()
	if len(trades) > 0 {
		e.metrics.IncFilled()
	}

	var notional float64
	for _, t := range trades {
		notional += t.Notional()
	}
	e.metrics.AddTrades(len(trades), notional)

	for _, t := range trades {
		e.publish(t)
	}
}

func (e *Engine) reject(order *domain.Order, reason string) {
	order.Status = domain.Rejected
	e.metrics.IncRejected()
	log.Warn().Str("order_id", order.ID.String()).Str("reason", reason).Msg("order rejected")
}

func (e *Engine) handleCancel(id uuid.UUID, symbol string) {
	e.booksMu.Lock()
	b, ok := e.books[symbol]
	var cancelled *domain.Order
	if ok {
		cancelled = b.Cancel(id)
	}
	e.booksMu.Unlock()

	if !ok {
		log.Warn().Str("symbol", symbol).Msg("cancel: unknown symbol")
		return
	}
	if cancelled == nil {
		log.Warn().Str("order_id", id.String()).Msg("cancel: order not resting")
		return
	}
	e.metrics.IncCancelled()
}

// publish sends a trade on the trade sink. The send never suspends: on a
// full or closed channel the trade, already counted, is dropped, counted
// as dropped, and logged at error level (§7). With no sink (nil) trades
// are not published at all.
func (e *Engine) publish(trade domain.Trade) {
	if e.trades == nil {
		return
	}
	defer func() {
		if recover() != nil {
			e.metrics.IncDroppedTrades()
			log.Error().Str("trade_id", trade.ID.String()).Msg("trade sink closed, dropping trade")
		}
	}()
	select {
	case e.trades <- trade:
	default:
		e.metrics.IncDroppedTrades()
		log.Error().Str("trade_id", trade.ID.String()).Msg("trade sink full, dropping trade")
	}
}
