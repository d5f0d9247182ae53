package book

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quantedge/matchcore/internal/engine/types"
)

func newNode(id types.OrderID, side types.Side, price types.Price, qty types.Quantity, typ types.OrderType, tif types.TimeInForce) *types.Node {
	return &types.Node{
		Index: uint32(id),
		Hot: types.OrderHot{
			ID:    id,
			Price: price,
			Qty:   qty,
			Side:  side,
			Type:  typ,
			TIF:   tif,
		},
	}
}

func TestRestingOrderGetsAccept(t *testing.T) {
	b := New(1, 1, 1000, 1)
	maker := newNode(1, types.Buy, 100, 10, types.Limit, types.GTC)
	events := b.Process(maker, 1, nil)

	require.Len(t, events, 1)
	require.Equal(t, types.EvtAccept, events[0].Kind)
	bid, ok := b.BestBid()
	require.True(t, ok)
	require.Equal(t, types.Price(100), bid)
}

func TestFullyFilledTakerGetsOnlyTradeNoAccept(t *testing.T) {
	b := New(1, 1, 1000, 1)
	maker := newNode(1, types.Sell, 100, 10, types.Limit, types.GTC)
	b.Process(maker, 1, nil)

	taker := newNode(2, types.Buy, 100, 10, types.Limit, types.GTC)
	events := b.Process(taker, 2, nil)

	require.Len(t, events, 1, "a fully filled taker must emit exactly one event")
	require.Equal(t, types.EvtTrade, events[0].Kind)
	require.Equal(t, types.StatusFilled, taker.Hot.Status)
	require.EqualValues(t, 0, taker.Hot.Qty)
}

func TestPartialFillRestsResidualWithAccept(t *testing.T) {
	b := New(1, 1, 1000, 1)
	maker := newNode(1, types.Sell, 100, 4, types.Limit, types.GTC)
	b.Process(maker, 1, nil)

	taker := newNode(2, types.Buy, 100, 10, types.Limit, types.GTC)
	events := b.Process(taker, 2, nil)

	var kinds []types.EventKind
	for _, e := range events {
		kinds = append(kinds, e.Kind)
	}
	require.Contains(t, kinds, types.EvtTrade)
	require.Contains(t, kinds, types.EvtAccept)
	require.Equal(t, types.StatusPartiallyFilled, taker.Hot.Status)
	require.EqualValues(t, 6, taker.Hot.Qty)
}

func TestIOCResidualCancelledSilently(t *testing.T) {
	b := New(1, 1, 1000, 1)
	maker := newNode(1, types.Sell, 100, 4, types.Limit, types.GTC)
	b.Process(maker, 1, nil)

	taker := newNode(2, types.Buy, 100, 10, types.Limit, types.IOC)
	events := b.Process(taker, 2, nil)

	for _, e := range events {
		require.NotEqual(t, types.EvtAccept, e.Kind, "IOC residual must never rest or be accepted")
	}
	require.EqualValues(t, 0, taker.Hot.Qty)
	_, hasBid := b.BestBid()
	require.False(t, hasBid, "IOC residual must not end up resting in the book")
}

func TestFOKRejectedWhenLiquidityInsufficient(t *testing.T) {
	b := New(1, 1, 1000, 1)
	maker := newNode(1, types.Sell, 100, 4, types.Limit, types.GTC)
	b.Process(maker, 1, nil)

	taker := newNode(2, types.Buy, 100, 10, types.Limit, types.FOK)
	events := b.Process(taker, 2, nil)

	require.Len(t, events, 1)
	require.Equal(t, types.EvtReject, events[0].Kind)
	require.Equal(t, types.ReasonInsufficientLiquid, events[0].Reject.Reason)
	require.EqualValues(t, 10, taker.Hot.Qty, "a rejected FOK order must not have been touched")
	require.EqualValues(t, 4, maker.Hot.Qty, "a rejected FOK order must not have partially filled the maker")
}

func TestFOKFillsCompletelyWhenLiquiditySufficient(t *testing.T) {
	b := New(1, 1, 1000, 1)
	maker := newNode(1, types.Sell, 100, 20, types.Limit, types.GTC)
	b.Process(maker, 1, nil)

	taker := newNode(2, types.Buy, 100, 10, types.Limit, types.FOK)
	events := b.Process(taker, 2, nil)

	require.Len(t, events, 1)
	require.Equal(t, types.EvtTrade, events[0].Kind)
	require.EqualValues(t, 0, taker.Hot.Qty)
}

func TestCancelRemovesRestingOrder(t *testing.T) {
	b := New(1, 1, 1000, 1)
	maker := newNode(1, types.Buy, 100, 10, types.Limit, types.GTC)
	b.Process(maker, 1, nil)

	ok := b.Cancel(maker)
	require.True(t, ok)
	require.Equal(t, types.StatusCancelled, maker.Hot.Status)
	_, hasBid := b.BestBid()
	require.False(t, hasBid)
}

func TestCancelUnknownOrderFails(t *testing.T) {
	b := New(1, 1, 1000, 1)
	node := newNode(99, types.Buy, 100, 10, types.Limit, types.GTC)
	require.False(t, b.Cancel(node))
}

func TestHotWindowOverflowPopulatesSecondLevelBucket(t *testing.T) {
	b := New(1, 1, 1000, 1)
	for i := 0; i < HotWindowSize+5; i++ {
		maker := newNode(types.OrderID(i+1), types.Buy, 100, 1, types.Limit, types.GTC)
		b.Process(maker, types.Timestamp(i), nil)
	}
	idx, _ := b.priceToLevel(100)
	level := b.bids[idx]
	require.Equal(t, HotWindowSize, level.hotCount)
	require.EqualValues(t, HotWindowSize+5, level.Population())
}

func TestMatchDrainsOverflowAfterHotWindow(t *testing.T) {
	b := New(1, 1, 1000, 1)
	for i := 0; i < HotWindowSize+5; i++ {
		maker := newNode(types.OrderID(i+1), types.Sell, 100, 1, types.Limit, types.GTC)
		b.Process(maker, types.Timestamp(i), nil)
	}

	taker := newNode(9000, types.Buy, 100, types.Quantity(HotWindowSize+5), types.Limit, types.GTC)
	events := b.Process(taker, 1, nil)

	trades := 0
	for _, e := range events {
		if e.Kind == types.EvtTrade {
			trades++
		}
	}
	require.Equal(t, HotWindowSize+5, trades)
	require.EqualValues(t, 0, taker.Hot.Qty)
	_, hasAsk := b.BestAsk()
	require.False(t, hasAsk)
}

func TestPeriodicMaintenanceCompactsOverflow(t *testing.T) {
	b := New(1, 1, 1000, 1)
	var overflowOrder *types.Node
	for i := 0; i < HotWindowSize+3; i++ {
		maker := newNode(types.OrderID(i+1), types.Buy, 100, 1, types.Limit, types.GTC)
		b.Process(maker, types.Timestamp(i), nil)
		if i == HotWindowSize {
			overflowOrder = maker
		}
	}
	idx, _ := b.priceToLevel(100)
	level := b.bids[idx]
	require.NotNil(t, overflowOrder)
	b.Cancel(overflowOrder)
	require.Contains(t, level.overflow, (*types.Node)(nil))

	b.PeriodicMaintenance()
	for _, n := range level.overflow {
		require.NotNil(t, n)
	}
}

func TestPriceOutOfRangeRejected(t *testing.T) {
	b := New(1, 100, 200, 1)
	order := newNode(1, types.Buy, 5000, 10, types.Limit, types.GTC)
	events := b.Process(order, 1, nil)
	require.Len(t, events, 1)
	require.Equal(t, types.EvtReject, events[0].Kind)
	require.Equal(t, types.ReasonPriceOutOfRange, events[0].Reject.Reason)
}
