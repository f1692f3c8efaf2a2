package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Trade is the result of a match. It references its two participating
// orders by identity only (weak reference: the order may have already
// been fully filled and evicted from the book by the time a consumer
// observes the trade).
type Trade struct {
	ID          uuid.UUID
	Symbol      string
	Quantity    uint64
	Price       int64 // tick-scaled
	Timestamp   time.Time
	BuyOrderID  uuid.UUID
	SellOrderID uuid.UUID
}

// NewTrade stamps an id and timestamp for a newly produced trade.
func NewTrade(symbol string, quantity uint64, priceTicks int64, buyOrderID, sellOrderID uuid.UUID) Trade {
	return Trade{
		ID:          uuid.New(),
		Symbol:      symbol,
		Quantity:    quantity,
		Price:       priceTicks,
		Timestamp:   time.Now().UTC(),
		BuyOrderID:  buyOrderID,
		SellOrderID: sellOrderID,
	}
}

// Notional is quantity * price in the original floating-point units.
func (t Trade) Notional() float64 {
	return float64(t.Quantity) * FromTicks(t.Price)
}

type tradeWire struct {
	ID          uuid.UUID `json:"id"`
	Symbol      string    `json:"symbol"`
	Quantity    uint64    `json:"quantity"`
	Price       float64   `json:"price"`
	Timestamp   time.Time `json:"timestamp"`
	BuyOrderID  uuid.UUID `json:"buy_order_id"`
	SellOrderID uuid.UUID `json:"sell_order_id"`
}

func (t Trade) MarshalJSON() ([]byte, error) {
	return json.Marshal(tradeWire{
		ID:          t.ID,
		Symbol:      t.Symbol,
		Quantity:    t.Quantity,
		Price:       FromTicks(t.Price),
		Timestamp:   t.Timestamp,
		BuyOrderID:  t.BuyOrderID,
		SellOrderID: t.SellOrderID,
	})
}

func (t *Trade) UnmarshalJSON(b []byte) error {
	var w tradeWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*t = Trade{
		ID:          w.ID,
		Symbol:      w.Symbol,
		Quantity:    w.Quantity,
		Price:       ToTicks(w.Price),
		Timestamp:   w.Timestamp,
		BuyOrderID:  w.BuyOrderID,
		SellOrderID: w.SellOrderID,
	}
	return nil
}
