package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Order is an immutable identity plus mutable fill/status fields. Price
// is stored tick-scaled internally (see price.go); it crosses the wire
// as the original floating-point value.
type Order struct {
	ID             uuid.UUID
	Symbol         string
	Side           Side
	OrderType      OrderType
	Quantity       uint64
	Price          *int64 // tick-scaled; nil for Market
	FilledQuantity uint64
	Status         OrderStatus
	SubmittedAt    time.Time
	ClientID       string
}

// NewMarketOrder stamps an id, timestamp, and Pending status for a new
// market order.
func NewMarketOrder(symbol string, side Side, quantity uint64, clientID string) *Order {
	return &Order{
		ID:          uuid.New(),
		Symbol:      symbol,
		Side:        side,
		OrderType:   Market,
		Quantity:    quantity,
		Status:      Pending,
		SubmittedAt: time.Now().UTC(),
		ClientID:    clientID,
	}
}

// NewLimitOrder stamps an id, timestamp, and Pending status for a new
// limit order. price is the external floating-point price; it is
// converted to ticks using the current PriceScale.
func NewLimitOrder(symbol string, side Side, quantity uint64, price float64, clientID string) *Order {
	ticks := ToTicks(price)
	return &Order{
		ID:          uuid.New(),
		Symbol:      symbol,
		Side:        side,
		OrderType:   Limit,
		Quantity:    quantity,
		Price:       &ticks,
		Status:      Pending,
		SubmittedAt: time.Now().UTC(),
		ClientID:    clientID,
	}
}

// Remaining is the quantity not yet filled.
func (o *Order) Remaining() uint64 {
	if o.FilledQuantity >= o.Quantity {
		return 0
	}
	return o.Quantity - o.FilledQuantity
}

// FullyFilled reports whether FilledQuantity has reached Quantity.
func (o *Order) FullyFilled() bool {
	return o.FilledQuantity >= o.Quantity
}

// orderWire is the canonical self-describing JSON representation: price
// as the original float, timestamp as RFC 3339 UTC, snake_case fields.
type orderWire struct {
	ID             uuid.UUID   `json:"id"`
	Symbol         string      `json:"symbol"`
	Side           Side        `json:"side"`
	OrderType      OrderType   `json:"order_type"`
	Quantity       uint64      `json:"quantity"`
	Price          *float64    `json:"price,omitempty"`
	FilledQuantity uint64      `json:"filled_quantity"`
	Status         OrderStatus `json:"status"`
	SubmittedAt    time.Time   `json:"submitted_at"`
	ClientID       string      `json:"client_id"`
}

func (o Order) MarshalJSON() ([]byte, error) {
	w := orderWire{
		ID:             o.ID,
		Symbol:         o.Symbol,
		Side:           o.Side,
		OrderType:      o.OrderType,
		Quantity:       o.Quantity,
		FilledQuantity: o.FilledQuantity,
		Status:         o.Status,
		SubmittedAt:    o.SubmittedAt,
		ClientID:       o.ClientID,
	}
	if o.Price != nil {
		p := FromTicks(*o.Price)
		w.Price = &p
	}
	return json.Marshal(w)
}

func (o *Order) UnmarshalJSON(b []byte) error {
	var w orderWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*o = Order{
		ID:             w.ID,
		Symbol:         w.Symbol,
		Side:           w.Side,
		OrderType:      w.OrderType,
		Quantity:       w.Quantity,
		FilledQuantity: w.FilledQuantity,
		Status:         w.Status,
		SubmittedAt:    w.SubmittedAt,
		ClientID:       w.ClientID,
	}
	if w.Price != nil {
		ticks := ToTicks(*w.Price)
		o.Price = &ticks
	}
	return nil
}
