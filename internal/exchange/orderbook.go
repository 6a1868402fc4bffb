package exchange

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/robaho/fixed"

	. "github.com/robaho/go-twime/pkg/common"
)

type priceLevel struct {
	orderList
	price Fixed
}

func (level priceLevel) String() string {
	return fmt.Sprint("", level.price, "=", &level.orderList)
}

type orderBook struct {
	sync.Mutex
	Instrument
	bids []priceLevel
	asks []priceLevel
}

type trade struct {
	buyer    sessionOrder
	seller   sessionOrder
	price    Fixed
	quantity Fixed
	tradeid  int64
	when     time.Time

	buyRemaining  Fixed
	sellRemaining Fixed
}

// BookLevel and Book are snapshots for display, the live book is only reachable through the exchange
type BookLevel struct {
	Price    Fixed
	Quantity Fixed
}

type Book struct {
	Instrument Instrument
	Bids       []BookLevel
	Asks       []BookLevel
}

func (b *Book) String() string {
	var sb strings.Builder
	sb.WriteString(b.Instrument.Symbol())
	for _, l := range b.Bids {
		fmt.Fprintf(&sb, " %s@%s", l.Quantity, l.Price)
	}
	sb.WriteString(" /")
	for _, l := range b.Asks {
		fmt.Fprintf(&sb, " %s@%s", l.Quantity, l.Price)
	}
	return sb.String()
}

func (ob *orderBook) String() string {
	return fmt.Sprint("bids:", ob.bids, ", asks:", ob.asks)
}

func (ob *orderBook) add(so sessionOrder) []trade {
	so.order.OrderState = Booked

	if so.order.Side == Buy {
		ob.bids = insertSort(ob.bids, so, 1)
	} else {
		ob.asks = insertSort(ob.asks, so, -1)
	}

	var trades = matchTrades(ob)

	// whatever an immediate order did not fill is cancelled
	if so.immediate() && so.order.IsActive() {
		ob.remove(so)
	}

	return trades
}

func insertSort(levels []priceLevel, so sessionOrder, direction int) []priceLevel {
	index := sort.Search(len(levels), func(i int) bool {
		return so.order.Price.Cmp(levels[i].price)*direction >= 0
	})

	if index < len(levels) && levels[index].price.Equal(so.order.Price) {
		levels[index].orderList.pushBack(so)
	} else {
		level := priceLevel{newOrderList(), so.order.Price}
		level.orderList.pushBack(so)
		levels = append(levels[:index], append([]priceLevel{level}, levels[index:]...)...)
	}

	return levels
}

var nextTradeID int64 = 0

func matchTrades(book *orderBook) []trade {
	var trades []trade
	var when = time.Now()

	for len(book.bids) > 0 && len(book.asks) > 0 {
		bid := book.bids[0].orderList.top()
		ask := book.asks[0].orderList.top()

		if !bid.order.Price.GreaterThanOrEqual(ask.order.Price) {
			break
		}

		var price Fixed
		// the resting order sets the price
		if bid.time.Before(ask.time) {
			price = bid.order.Price
		} else {
			price = ask.order.Price
		}

		var qty = minFixed(bid.order.Remaining, ask.order.Remaining)

		var trade = trade{}
		trade.price = price
		trade.quantity = qty
		trade.buyer = bid
		trade.seller = ask
		trade.tradeid = atomic.AddInt64(&nextTradeID, 1)
		trade.when = when

		fill(bid.order, qty)
		fill(ask.order, qty)

		trade.buyRemaining = bid.order.Remaining
		trade.sellRemaining = ask.order.Remaining

		trades = append(trades, trade)

		if bid.order.Remaining.Equal(ZERO) {
			book.remove(bid)
		}
		if ask.order.Remaining.Equal(ZERO) {
			book.remove(ask)
		}
	}
	return trades
}

func fill(order *Order, qty Fixed) {
	order.Remaining = order.Remaining.Sub(qty)
	if order.Remaining.Equal(ZERO) {
		order.OrderState = Filled
	} else {
		order.OrderState = PartialFill
	}
}

func minFixed(a, b Fixed) Fixed {
	if a.LessThan(b) {
		return a
	}
	return b
}

func (ob *orderBook) remove(so sessionOrder) error {
	var levels []priceLevel
	var direction int

	if so.order.Side == Buy {
		levels = ob.bids
		direction = 1
	} else {
		levels = ob.asks
		direction = -1
	}

	index := sort.Search(len(levels), func(i int) bool {
		return so.order.Price.Cmp(levels[i].price)*direction >= 0
	})

	if index >= len(levels) || !levels[index].price.Equal(so.order.Price) {
		return OrderNotFound
	}

	level := &levels[index]
	if err := level.orderList.remove(so); err != nil {
		return err
	}

	if level.orderList.size == 0 {
		levels = append(levels[:index], levels[index+1:]...)
	}

	if so.order.Side == Buy {
		ob.bids = levels
	} else {
		ob.asks = levels
	}

	if so.order.IsActive() {
		so.order.OrderState = Cancelled
	}

	return nil
}

func (ob *orderBook) buildBook() *Book {
	var book = new(Book)

	book.Instrument = ob.Instrument
	book.Bids = createBookLevels(ob.bids)
	book.Asks = createBookLevels(ob.asks)

	return book
}

func createBookLevels(_levels []priceLevel) []BookLevel {
	var levels []BookLevel

	for _, level := range _levels {
		quantity := ZERO
		for node := level.head; node != nil; node = node.next {
			quantity = quantity.Add(node.order.order.Remaining)
		}
		levels = append(levels, BookLevel{Price: level.price, Quantity: quantity})
	}
	return levels
}
