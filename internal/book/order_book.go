// Package book implements the per-symbol limit order book and its
// continuous price-time-priority matching algorithm. It is the hard
// part of the engine: fast best-price lookup, O(1) append at a price
// level, O(1) head removal, stable FIFO ordering within a level,
// partial-fill bookkeeping, and in-place cancellation by identity — all
// under the invariant that the book never rests in a crossed state.
//
// Grounded on the teacher's internal/engine/orderbook.go (the
// tidwall/btree price ladder and the handleLimit/handleMarket/Match
// split), generalized to two ladders with FIFO queues backed by
// container/list so cancel is O(1) given an index entry, instead of the
// teacher's slice-reslicing levels.
package book

import (
	"container/list"
	"errors"

	"github.com/google/uuid"
	"github.com/tidwall/btree"

	"matchcore/internal/domain"
)

var (
	// ErrZeroQuantity is returned by Add when the order's quantity is
	// not positive.
	ErrZeroQuantity = errors.New("book: order quantity must be positive")
	// ErrMissingLimitPrice is returned by Add when a Limit order has no
	// price.
	ErrMissingLimitPrice = errors.New("book: limit order requires a price")
)

// priceLevel is one tick's FIFO queue of resting orders.
type priceLevel struct {
	price  int64
	orders *list.List // of *domain.Order, front = oldest
}

// ladder is the ordered price->FIFO mapping for one side of the book.
type ladder = btree.BTreeG[*priceLevel]

// indexEntry locates a resting order for O(1) cancel: which ladder, at
// which price, and at which list element.
type indexEntry struct {
	side  domain.Side
	price int64
	elem  *list.Element
}

// OrderBook maintains resting limit orders for one symbol and executes
// the matching algorithm. It has no shared state with any other book.
type OrderBook struct {
	symbol string
	bids   *ladder // highest price first
	asks   *ladder // lowest price first
	index  map[uuid.UUID]*indexEntry
}

// New returns an empty order book for symbol.
func New(symbol string) *OrderBook {
	bids := btree.NewBTreeG(func(a, b *priceLevel) bool {
		return a.price > b.price // descending: best bid first
	})
	asks := btree.NewBTreeG(func(a, b *priceLevel) bool {
		return a.price < b.price // ascending: best ask first
	})
	return &OrderBook{
		symbol: symbol,
		bids:   bids,
		asks:   asks,
		index:  make(map[uuid.UUID]*indexEntry),
	}
}

// Symbol returns the book's instrument key.
func (b *OrderBook) Symbol() string { return b.symbol }

func (b *OrderBook) ladderFor(side domain.Side) *ladder {
	if side == domain.Buy {
		return b.bids
	}
	return b.asks
}

// Add appends a resting order onto the appropriate ladder under its
// price tick. No match is attempted here; the caller decides when to
// call Match. Preconditions: quantity > 0, and a Limit order carries a
// price. On success the order's status is set to Pending.
func (b *OrderBook) Add(order *domain.Order) error {
	if order.Quantity == 0 {
		return ErrZeroQuantity
	}
	if order.OrderType == domain.Limit && order.Price == nil {
		return ErrMissingLimitPrice
	}

	order.Status = domain.Pending

	levels := b.ladderFor(order.Side)
	key := &priceLevel{price: *order.Price}
	level, ok := levels.Get(key)
	if !ok {
		level = &priceLevel{price: *order.Price, orders: list.New()}
		levels.Set(level)
	}
	elem := level.orders.PushBack(order)
	b.index[order.ID] = &indexEntry{side: order.Side, price: *order.Price, elem: elem}
	return nil
}

// Match executes as many trades as possible against the current book,
// consuming liquidity from the top of both ladders until no crossed
// levels remain. Per trade, the aggressor is whichever of the two
// participating orders arrived more recently (the other side must
// already have been resting, since the book never rests crossed); the
// resting side's price clears the trade.
func (b *OrderBook) Match() []domain.Trade {
	var trades []domain.Trade

	for {
		bidLevel, bidOK := b.bids.Min()
		askLevel, askOK := b.asks.Min()
		if !bidOK || !askOK || bidLevel.price < askLevel.price {
			break
		}

		for bidLevel.orders.Len() > 0 && askLevel.orders.Len() > 0 {
			bidElem := bidLevel.orders.Front()
			askElem := askLevel.orders.Front()
			buy := bidElem.Value.(*domain.Order)
			sell := askElem.Value.(*domain.Order)

			qty := min(buy.Remaining(), sell.Remaining())

			price := bidLevel.price
			if buy.SubmittedAt.After(sell.SubmittedAt) {
				price = askLevel.price
			}

			trades = append(trades, domain.NewTrade(b.symbol, qty, price, buy.ID, sell.ID))

			buy.FilledQuantity += qty
			sell.FilledQuantity += qty

			if buy.Remaining() == 0 {
				buy.Status = domain.Filled
				bidLevel.orders.Remove(bidElem)
				delete(b.index, buy.ID)
			} else {
				buy.Status = domain.PartiallyFilled
			}

			if sell.Remaining() == 0 {
				sell.Status = domain.Filled
				askLevel.orders.Remove(askElem)
				delete(b.index, sell.ID)
			} else {
				sell.Status = domain.PartiallyFilled
			}
		}

		if bidLevel.orders.Len() == 0 {
			b.bids.Delete(bidLevel)
		}
		if askLevel.orders.Len() == 0 {
			b.asks.Delete(askLevel)
		}
	}

	return trades
}

// MatchMarket sweeps the opposing ladder from best price outward on
// behalf of a market order, creating trades at each consumed level's
// own price, until either order is fully filled or the opposing side is
// exhausted. The market order is never rested: any unfilled remainder is
// discarded and the order's terminal status reflects that (Filled if
// fully consumed, Cancelled if any quantity went unfilled).
func (b *OrderBook) MatchMarket(order *domain.Order) []domain.Trade {
	order.Status = domain.Pending
	opposing := b.asks
	if order.Side == domain.Sell {
		opposing = b.bids
	}

	var trades []domain.Trade

	for order.Remaining() > 0 {
		level, ok := opposing.Min()
		if !ok {
			break
		}

		for level.orders.Len() > 0 && order.Remaining() > 0 {
			elem := level.orders.Front()
			resting := elem.Value.(*domain.Order)

			qty := min(order.Remaining(), resting.Remaining())

			var trade domain.Trade
			if order.Side == domain.Buy {
				trade = domain.NewTrade(b.symbol, qty, level.price, order.ID, resting.ID)
			} else {
				trade = domain.NewTrade(b.symbol, qty, level.price, resting.ID, order.ID)
			}
			trades = append(trades, trade)

			order.FilledQuantity += qty
			resting.FilledQuantity += qty

			if resting.Remaining() == 0 {
				resting.Status = domain.Filled
				level.orders.Remove(elem)
				delete(b.index, resting.ID)
			} else {
				resting.Status = domain.PartiallyFilled
			}
		}

		if level.orders.Len() == 0 {
			opposing.Delete(level)
		}
	}

	if order.Remaining() == 0 {
		order.Status = domain.Filled
	} else {
		order.Status = domain.Cancelled
	}

	return trades
}

// Cancel removes the uniquely identified resting order from whichever
// level contains it and returns it with Status = Cancelled. Returns nil
// if no such order is resting (already filled, never existed, or
// previously cancelled) — this is not an error.
func (b *OrderBook) Cancel(id uuid.UUID) *domain.Order {
	entry, ok := b.index[id]
	if !ok {
		return nil
	}
	delete(b.index, id)

	levels := b.ladderFor(entry.side)
	level, ok := levels.Get(&priceLevel{price: entry.price})
	if !ok {
		return nil
	}

	order := entry.elem.Value.(*domain.Order)
	level.orders.Remove(entry.elem)
	order.Status = domain.Cancelled

	if level.orders.Len() == 0 {
		levels.Delete(level)
	}
	return order
}

// BestBid returns the highest resting bid price tick, if any.
func (b *OrderBook) BestBid() (int64, bool) {
	level, ok := b.bids.Min()
	if !ok {
		return 0, false
	}
	return level.price, true
}

// BestAsk returns the lowest resting ask price tick, if any.
func (b *OrderBook) BestAsk() (int64, bool) {
	level, ok := b.asks.Min()
	if !ok {
		return 0, false
	}
	return level.price, true
}

// Mid returns the arithmetic mean of best bid and best ask, in ticks,
// when both exist.
func (b *OrderBook) Mid() (int64, bool) {
	bid, ok := b.BestBid()
	if !ok {
		return 0, false
	}
	ask, ok := b.BestAsk()
	if !ok {
		return 0, false
	}
	return (bid + ask) / 2, true
}

// Depth is the total count of resting orders on both sides.
func (b *OrderBook) Depth() int {
	depth := 0
	b.bids.Scan(func(level *priceLevel) bool {
		depth += level.orders.Len()
		return true
	})
	b.asks.Scan(func(level *priceLevel) bool {
		depth += level.orders.Len()
		return true
	})
	return depth
}
