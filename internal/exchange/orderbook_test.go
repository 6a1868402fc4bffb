package exchange

import (
	"testing"
	"time"

	. "github.com/robaho/fixed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/robaho/go-twime/pkg/common"
	"github.com/robaho/go-twime/pkg/protocol"
)

type testClient string

func (c testClient) SessionID() string {
	return string(c)
}

var testInstrument = NewFuture(100, "Si-12.26", "Si")

var testOrderID int64

// entry times are strictly increasing so the resting side is deterministic
var testEpoch = time.Now()

func limit(side Side, price string, qty int64) sessionOrder {
	return limitFor(testClient("X"), side, price, qty, protocol.TimeInForceDay)
}

func limitFor(client exchangeClient, side Side, price string, qty int64, tif uint8) sessionOrder {
	testOrderID++
	o := LimitOrder(testInstrument, side, NewS(price), NewI(qty, 0))
	o.ExchangeId = testOrderID
	return sessionOrder{client: client, order: o, id: testOrderID, time: testEpoch.Add(time.Duration(testOrderID)), ref: &orderRef{tif: tif}}
}

func newTestBook() *orderBook {
	return &orderBook{Instrument: testInstrument}
}

func TestOrderBook(t *testing.T) {
	ob := newTestBook()

	ob.add(limit(Buy, "100", 10))
	ob.add(limit(Sell, "110", 10))

	b := ob.buildBook()
	assert.Len(t, b.Bids, 1)
	assert.Len(t, b.Asks, 1)

	s3 := limit(Buy, "100", 10)
	s4 := limit(Buy, "99", 30)
	ob.add(s3)
	ob.add(s4)

	b = ob.buildBook()
	require.Len(t, b.Bids, 2)
	assert.Len(t, b.Asks, 1)
	assert.True(t, b.Bids[0].Quantity.Equal(NewI(20, 0)), b.String())
	assert.True(t, b.Bids[1].Price.Equal(NewS("99")))

	require.NoError(t, ob.remove(s4))
	assert.Equal(t, Cancelled, s4.order.OrderState)
	b = ob.buildBook()
	require.Len(t, b.Bids, 1)
	assert.True(t, b.Bids[0].Quantity.Equal(NewI(20, 0)))

	require.NoError(t, ob.remove(s3))
	b = ob.buildBook()
	require.Len(t, b.Bids, 1)
	assert.True(t, b.Bids[0].Quantity.Equal(NewI(10, 0)))

	assert.ErrorIs(t, ob.remove(s3), OrderNotFound)
}

func TestOrderMatch(t *testing.T) {
	ob := newTestBook()

	s1 := limit(Buy, "110", 20)
	ob.add(s1)
	s2 := limit(Sell, "100", 10)
	trades := ob.add(s2)

	b := ob.buildBook()
	assert.Len(t, b.Bids, 1)
	assert.Len(t, b.Asks, 0)
	require.Len(t, trades, 1)

	tr := trades[0]
	assert.True(t, tr.quantity.Equal(NewI(10, 0)))
	// the resting bid sets the price
	assert.True(t, tr.price.Equal(NewS("110")))
	assert.True(t, tr.buyRemaining.Equal(NewI(10, 0)))
	assert.True(t, tr.sellRemaining.Equal(ZERO))
	assert.Equal(t, PartialFill, s1.order.OrderState)
	assert.Equal(t, Filled, s2.order.OrderState)
}

func TestOrderMatchSweep(t *testing.T) {
	ob := newTestBook()

	ob.add(limit(Buy, "100", 20))
	ob.add(limit(Buy, "90", 20))
	trades := ob.add(limit(Sell, "80", 30))

	b := ob.buildBook()
	assert.Len(t, b.Bids, 1)
	assert.Len(t, b.Asks, 0)
	require.Len(t, trades, 2)
	assert.True(t, trades[0].quantity.Equal(NewI(20, 0)))
	assert.True(t, trades[0].price.Equal(NewS("100")))
	assert.True(t, trades[1].quantity.Equal(NewI(10, 0)))
	assert.True(t, trades[1].price.Equal(NewS("90")))
	assert.NotEqual(t, trades[0].tradeid, trades[1].tradeid)
}

func TestTimePriority(t *testing.T) {
	ob := newTestBook()

	first := limit(Sell, "100", 5)
	second := limit(Sell, "100", 5)
	ob.add(first)
	ob.add(second)

	trades := ob.add(limit(Buy, "100", 5))
	require.Len(t, trades, 1)
	assert.Same(t, first.order, trades[0].seller.order)
	assert.Equal(t, Booked, second.order.OrderState)
}

func TestImmediateOrder(t *testing.T) {
	ob := newTestBook()

	ob.add(limit(Sell, "100", 5))
	ioc := limitFor(testClient("X"), Buy, "100", 8, protocol.TimeInForceIOC)
	trades := ob.add(ioc)

	require.Len(t, trades, 1)
	assert.Equal(t, Cancelled, ioc.order.OrderState)
	assert.True(t, ioc.order.Remaining.Equal(NewI(3, 0)))
	b := ob.buildBook()
	assert.Empty(t, b.Bids)
	assert.Empty(t, b.Asks)
}

func TestOrderList(t *testing.T) {
	l := newOrderList()
	a, b := limit(Buy, "1", 1), limit(Buy, "1", 1)
	l.pushBack(a)
	l.pushBack(b)
	assert.Equal(t, 2, l.size)

	require.NoError(t, l.remove(a))
	assert.Same(t, b.order, l.top().order)
	require.NoError(t, l.remove(b))
	assert.Nil(t, l.head)
	assert.Nil(t, l.tail)
	assert.ErrorIs(t, l.remove(b), OrderNotFound)

	// the list is reusable after it was emptied
	l.pushBack(a)
	assert.Same(t, a.order, l.top().order)
}
