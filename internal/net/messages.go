// Package net is a thin illustrative TCP front-end for the engine: it
// is the kind of network/FIX gateway the spec treats as an external
// collaborator (§1 Out of scope), kept only as a demonstration of the
// engine's programmatic surface (§6) over a wire protocol.
//
// Grounded on the teacher's internal/net/messages.go, switched from its
// fixed-width binary encoding to line-delimited JSON, per §6's
// "Serialisation format: JSON recommended for interop".
package net

import (
	"errors"

	"github.com/google/uuid"

	"matchcore/internal/domain"
)

var (
	ErrInvalidMessageType = errors.New("net: invalid message type")
	ErrMissingUsername    = errors.New("net: owner is required")
)

// MessageType discriminates the line-delimited JSON envelopes this
// gateway accepts.
type MessageType string

const (
	MessageNewOrder    MessageType = "new_order"
	MessageCancelOrder MessageType = "cancel_order"
	MessagePeekBook    MessageType = "peek_book"
)

// ReportType discriminates the envelopes the gateway emits back to a
// client.
type ReportType string

const (
	ReportExecution ReportType = "execution"
	ReportError     ReportType = "error"
	ReportBook      ReportType = "book"
)

// Request is the envelope a client sends, one per line. Side and
// OrderType carry no omitempty, so they are always written, including
// their zero values (Buy, Market). On decode an absent side or
// order_type is not an error: the field keeps its zero value.
type Request struct {
	Type MessageType `json:"type"`

	// NewOrder fields.
	Symbol    string           `json:"symbol,omitempty"`
	Side      domain.Side      `json:"side"`
	OrderType domain.OrderType `json:"order_type"`
	Price     *float64         `json:"price,omitempty"`
	Quantity  uint64           `json:"quantity,omitempty"`
	Owner     string           `json:"owner,omitempty"`

	// CancelOrder field.
	OrderID uuid.UUID `json:"order_id,omitempty"`
}

// Order builds a domain.Order from a NewOrder request, stamping an id
// via the domain constructors.
func (r Request) Order() (*domain.Order, error) {
	if r.Owner == "" {
		return nil, ErrMissingUsername
	}
	if r.OrderType == domain.Market {
		return domain.NewMarketOrder(r.Symbol, r.Side, r.Quantity, r.Owner), nil
	}
	if r.Price == nil {
		return nil, errors.New("net: limit order requires price")
	}
	return domain.NewLimitOrder(r.Symbol, r.Side, r.Quantity, *r.Price, r.Owner), nil
}

// Report is the envelope the gateway sends back, one per line.
type Report struct {
	Type    ReportType    `json:"type"`
	Trade   *domain.Trade `json:"trade,omitempty"`
	Error   string        `json:"error,omitempty"`
	Symbol  string        `json:"symbol,omitempty"`
	BestBid *float64      `json:"best_bid,omitempty"`
	BestAsk *float64      `json:"best_ask,omitempty"`
	Depth   int           `json:"depth,omitempty"`
}
