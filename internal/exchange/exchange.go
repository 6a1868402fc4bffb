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
	"github.com/robaho/go-twime/pkg/protocol"
)

// orderRef is what the client sent along with an order, echoed in every report on it
type orderRef struct {
	clOrdID uint64
	linkID  int32
	tif     uint8
}

type sessionOrder struct {
	client exchangeClient
	order  *Order
	// the exchange id the order had when this entry was made
	id   int64
	time time.Time
	ref  *orderRef
}

func (so sessionOrder) String() string {
	return fmt.Sprint(so.client.SessionID(), so.order)
}

func (so sessionOrder) immediate() bool {
	return so.ref != nil && so.ref.tif == protocol.TimeInForceIOC
}

type exchangeClient interface {
	SessionID() string
}

type session struct {
	sync.Mutex
	id string
	// by exchange order id, filled orders are pruned lazily since another session's aggressor fills them
	orders map[int64]sessionOrder
	client exchangeClient
}

// Exchange matches orders for any number of client sessions. Locks are always taken session first, then order book.
type Exchange struct {
	orderBooks sync.Map // map of Instrument to *orderBook
	sessions   sync.Map // map of exchangeClient to *session
	nextOrder  int64
}

func NewExchange() *Exchange {
	return &Exchange{}
}

func (e *Exchange) lockSession(client exchangeClient) *session {
	s, ok := e.sessions.Load(client)
	if !ok {
		s, _ = e.sessions.LoadOrStore(client, &session{id: client.SessionID(), orders: make(map[int64]sessionOrder), client: client})
	}
	s.(*session).Lock()
	return s.(*session)
}

func (e *Exchange) lockOrderBook(instrument Instrument) *orderBook {
	ob, ok := e.orderBooks.Load(instrument.ID())
	if !ok {
		ob, _ = e.orderBooks.LoadOrStore(instrument.ID(), &orderBook{Instrument: instrument})
	}
	_ob := ob.(*orderBook)
	_ob.Lock()
	return _ob
}

// CreateOrder books the order and returns the trades it caused
func (e *Exchange) CreateOrder(client exchangeClient, order *Order, ref *orderRef) (sessionOrder, []trade) {
	s := e.lockSession(client)
	defer s.Unlock()

	ob := e.lockOrderBook(order.Instrument)
	defer ob.Unlock()

	order.ExchangeId = atomic.AddInt64(&e.nextOrder, 1)
	so := sessionOrder{client, order, order.ExchangeId, time.Now(), ref}
	s.orders[order.ExchangeId] = so

	return so, ob.add(so)
}

// ModifyOrder replaces price and remaining quantity. The order loses its time priority and gets a new exchange id.
func (e *Exchange) ModifyOrder(client exchangeClient, exchangeID int64, price Fixed, remaining Fixed, ref *orderRef) (so sessionOrder, prevID int64, trades []trade, err error) {
	s := e.lockSession(client)
	defer s.Unlock()

	so, ok := s.orders[exchangeID]
	if !ok {
		return so, 0, nil, OrderNotFound
	}
	ob := e.lockOrderBook(so.order.Instrument)
	defer ob.Unlock()

	if err := ob.remove(so); err != nil {
		delete(s.orders, exchangeID)
		return so, 0, nil, OrderNotActive
	}
	delete(s.orders, exchangeID)

	order := so.order
	filled := order.Quantity.Sub(order.Remaining)
	order.Price = price
	order.Remaining = remaining
	order.Quantity = filled.Add(remaining)
	order.ExchangeId = atomic.AddInt64(&e.nextOrder, 1)

	ref.tif = so.ref.tif
	so = sessionOrder{client, order, order.ExchangeId, time.Now(), ref}
	s.orders[order.ExchangeId] = so

	return so, exchangeID, ob.add(so), nil
}

// CancelOrder removes the order from its book and returns the quantity removed
func (e *Exchange) CancelOrder(client exchangeClient, exchangeID int64) (sessionOrder, Fixed, error) {
	s := e.lockSession(client)
	defer s.Unlock()

	so, ok := s.orders[exchangeID]
	if !ok {
		return so, ZERO, OrderNotFound
	}
	delete(s.orders, exchangeID)

	ob := e.lockOrderBook(so.order.Instrument)
	defer ob.Unlock()

	remaining := so.order.Remaining
	if err := ob.remove(so); err != nil {
		return so, ZERO, OrderNotActive
	}
	return so, remaining, nil
}

// CancelAll cancels every active order of the session that matches, returning each with the quantity removed
func (e *Exchange) CancelAll(client exchangeClient, match func(*Order) bool) ([]sessionOrder, []Fixed) {
	s := e.lockSession(client)
	defer s.Unlock()

	ids := make([]int64, 0, len(s.orders))
	for id := range s.orders {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var cancelled []sessionOrder
	var quantities []Fixed
	for _, id := range ids {
		so := s.orders[id]
		ob := e.lockOrderBook(so.order.Instrument)
		if !so.order.IsActive() {
			delete(s.orders, id)
		} else if match(so.order) {
			remaining := so.order.Remaining
			if ob.remove(so) == nil {
				cancelled = append(cancelled, so)
				quantities = append(quantities, remaining)
			}
			delete(s.orders, id)
		}
		ob.Unlock()
	}
	return cancelled, quantities
}

// ClearBooks cancels every order of every session, the end of the trading day
func (e *Exchange) ClearBooks() int {
	count := 0
	e.sessions.Range(func(key, value any) bool {
		cancelled, _ := e.CancelAll(key.(exchangeClient), func(*Order) bool { return true })
		count += len(cancelled)
		return true
	})
	return count
}

func (e *Exchange) GetBook(instrument Instrument) *Book {
	ob := e.lockOrderBook(instrument)
	defer ob.Unlock()
	return ob.buildBook()
}

func (e *Exchange) ListSessions() string {
	var s []string

	e.sessions.Range(func(key, value any) bool {
		s = append(s, key.(exchangeClient).SessionID())
		return true
	})
	sort.Strings(s)
	return strings.Join(s, ",")
}
