package net_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matchcore/internal/domain"
	netgw "matchcore/internal/net"
)

func TestRequestOrderBuildsLimitOrder(t *testing.T) {
	price := 101.25
	req := netgw.Request{
		Type:      netgw.MessageNewOrder,
		Symbol:    "AAPL",
		Side:      domain.Sell,
		OrderType: domain.Limit,
		Price:     &price,
		Quantity:  7,
		Owner:     "alice",
	}

	order, err := req.Order()
	require.NoError(t, err)
	assert.Equal(t, domain.Sell, order.Side)
	assert.Equal(t, domain.Limit, order.OrderType)
	require.NotNil(t, order.Price)
	assert.InDelta(t, 101.25, domain.FromTicks(*order.Price), 0.0001)
}

func TestRequestOrderBuildsMarketOrderWithoutPrice(t *testing.T) {
	req := netgw.Request{
		Type:      netgw.MessageNewOrder,
		Symbol:    "AAPL",
		Side:      domain.Buy,
		OrderType: domain.Market,
		Quantity:  5,
		Owner:     "bob",
	}

	order, err := req.Order()
	require.NoError(t, err)
	assert.Nil(t, order.Price)
	assert.Equal(t, domain.Market, order.OrderType)
}

func TestRequestOrderRequiresOwner(t *testing.T) {
	req := netgw.Request{Type: netgw.MessageNewOrder, Symbol: "AAPL", Quantity: 1}
	_, err := req.Order()
	assert.ErrorIs(t, err, netgw.ErrMissingUsername)
}

func TestRequestOrderRequiresPriceForLimit(t *testing.T) {
	req := netgw.Request{
		Type:      netgw.MessageNewOrder,
		Symbol:    "AAPL",
		OrderType: domain.Limit,
		Quantity:  1,
		Owner:     "alice",
	}
	_, err := req.Order()
	assert.Error(t, err)
}
