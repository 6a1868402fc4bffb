package twime

import (
	"strconv"
	"sync"
	"time"

	. "github.com/robaho/fixed"
	"go.uber.org/zap"

	. "github.com/robaho/go-twime/pkg/common"
	"github.com/robaho/go-twime/pkg/protocol"
)

// requestMap is the default Correlator. It owns the orders created through the connector and turns exchange
// responses into Order updates and ConnectorCallback notifications.
type requestMap struct {
	callback ConnectorCallback
	post     func(func())
	log      *zap.Logger

	nextOrder int32
	nextReq   uint64
	requests  map[uint64]*Request
	// the request that created the current incarnation of each order, new or replace
	current    map[OrderID]*Request
	byExchange map[int64]*Order
	// holds OrderID->*Order, concurrent since callers read orders outside the session goroutine
	orders sync.Map
}

func newRequestMap(callback ConnectorCallback, post func(func()), log *zap.Logger) *requestMap {
	return &requestMap{
		callback:   callback,
		post:       post,
		log:        log,
		nextReq:    uint64(time.Now().UnixMicro()),
		requests:   make(map[uint64]*Request),
		current:    make(map[OrderID]*Request),
		byExchange: make(map[int64]*Order),
	}
}

func (m *requestMap) GetOrder(id OrderID) *Order {
	order, ok := m.orders.Load(id)
	if !ok {
		return nil
	}
	return order.(*Order)
}

func (m *requestMap) addOrder(order *Order) {
	m.nextOrder++
	order.Id = OrderID(m.nextOrder)
	m.orders.Store(order.Id, order)
}

func (m *requestMap) add(kind RequestKind, order *Order) *Request {
	m.nextReq++
	req := &Request{ID: m.nextReq, Kind: kind, Order: order, Sent: time.Now()}
	if order != nil {
		req.LinkID = int32(order.Id)
		req.SecurityID = int32(order.Instrument.ID())
		req.Side = toSide(order.Side)
	}
	m.requests[req.ID] = req
	if kind == NewRequest {
		m.current[order.Id] = req
	}
	return req
}

// remove undoes add after a failed send
func (m *requestMap) remove(req *Request) {
	delete(m.requests, req.ID)
	if req.Kind == NewRequest {
		delete(m.current, req.Order.Id)
		m.orders.Delete(req.Order.Id)
	}
}

// done retires a request once its response arrived, a confirmed new order request instead lives as long as the order
func (m *requestMap) done(req *Request, status RequestStatus, ts time.Time) {
	req.Status = status
	req.Confirmed = ts
	delete(m.requests, req.ID)
}

func (m *requestMap) retire(order *Order) {
	if req, ok := m.current[order.Id]; ok {
		delete(m.requests, req.ID)
		// a rejected request keeps its Failed status
		if !req.IsTerminal() {
			req.Status = Completed
		}
	}
	delete(m.current, order.Id)
	delete(m.byExchange, order.ExchangeId)
}

func (m *requestMap) ConfirmNew(clOrdID uint64, orderID int64, price protocol.Decimal5, qty uint32, ts time.Time) (*Request, error) {
	req, ok := m.requests[clOrdID]
	if !ok || req.Kind != NewRequest {
		return nil, nil
	}
	req.Status = Confirmed
	req.Confirmed = ts

	order := req.Order
	order.Lock()
	order.ExchangeId = orderID
	if order.OrderState == New {
		order.OrderState = Booked
	}
	order.Unlock()
	m.byExchange[orderID] = order
	m.orderStatus(order)
	return req, nil
}

func (m *requestMap) Reject(clOrdID uint64, reason int32, ts time.Time) (*Request, error) {
	req, ok := m.requests[clOrdID]
	if !ok {
		return nil, nil
	}
	m.done(req, Failed, ts)
	if req.Order == nil {
		m.log.Warn("mass cancel rejected", zap.Uint64("clOrdID", clOrdID), zap.String("reason", rejectText(reason)))
		return req, nil
	}

	order := req.Order
	order.Lock()
	order.RejectReason = rejectText(reason)
	if req.Kind == NewRequest {
		order.OrderState = Rejected
		order.Remaining = ZERO
	}
	order.Unlock()
	if req.Kind == NewRequest {
		m.retire(order)
	}
	m.orderStatus(order)
	return req, nil
}

func (m *requestMap) Cancel(clOrdID uint64, orderID int64, qty uint32, ts time.Time) (*Request, error) {
	req, ok := m.requests[clOrdID]
	if !ok {
		return nil, nil
	}
	order := m.byExchange[orderID]
	if order == nil {
		order = req.Order
	}
	if req.Kind == CancelRequest {
		m.done(req, Completed, ts)
	}
	if order == nil {
		return req, nil
	}

	order.Lock()
	order.OrderState = Cancelled
	order.Remaining = ZERO
	order.Unlock()
	m.retire(order)
	m.orderStatus(order)
	return req, nil
}

func (m *requestMap) Replace(clOrdID uint64, orderID int64, prevOrderID int64, price protocol.Decimal5, qty uint32, ts time.Time) (*Request, error) {
	req, ok := m.requests[clOrdID]
	if !ok || req.Kind != ReplaceRequest {
		return nil, nil
	}
	m.done(req, Completed, ts)

	order := req.Order
	order.Lock()
	filled := order.Quantity.Sub(order.Remaining)
	order.ExchangeId = orderID
	order.Price = price.Fixed()
	order.Remaining = NewI(int64(qty), 0)
	order.Quantity = filled.Add(order.Remaining)
	order.RejectReason = ""
	order.Unlock()

	delete(m.byExchange, prevOrderID)
	m.byExchange[orderID] = order
	if prev, ok := m.current[order.Id]; ok {
		delete(m.requests, prev.ID)
		prev.Status = Completed
	}
	m.current[order.Id] = req
	m.orderStatus(order)
	return req, nil
}

func (m *requestMap) Trade(e *Execution) (*Request, error) {
	order := m.byExchange[e.OrderID]
	if order == nil {
		// the report may arrive before a replace response re-keys the order
		order = m.GetOrder(OrderID(e.LinkID))
	}
	if order == nil {
		return nil, nil
	}
	req := m.current[order.Id]

	order.Lock()
	order.Remaining = NewI(int64(e.Leaves), 0)
	if e.Leaves == 0 {
		order.OrderState = Filled
	} else {
		order.OrderState = PartialFill
	}
	order.Unlock()

	fill := &Fill{
		Instrument: order.Instrument,
		Order:      order,
		ExchangeID: strconv.FormatInt(e.TradeID, 10),
		Quantity:   NewI(int64(e.Qty), 0),
		Price:      e.Price.Fixed(),
		Side:       fromSide(e.Side),
		IsLegTrade: e.IsLeg,
		TradeTime:  e.Time,
	}
	if e.Leaves == 0 {
		m.retire(order)
	}
	m.post(func() { m.callback.OnFill(fill) })
	m.orderStatus(order)
	if req == nil {
		// the order is known but its request was already retired, still report it as found
		req = &Request{Kind: NewRequest, Order: order, LinkID: int32(order.Id), SecurityID: int32(order.Instrument.ID()), Side: toSide(order.Side), Status: Completed}
	}
	return req, nil
}

func (m *requestMap) MassCancelled(clOrdID uint64, affected int32, reason int32, ts time.Time) (*Request, error) {
	req, ok := m.requests[clOrdID]
	if !ok || req.Kind != MassCancelRequest {
		return nil, nil
	}
	if reason != 0 {
		m.done(req, Failed, ts)
		m.log.Warn("mass cancel rejected", zap.Uint64("clOrdID", clOrdID), zap.String("reason", rejectText(reason)))
		return req, nil
	}
	m.done(req, Completed, ts)
	m.log.Info("mass cancel completed", zap.Uint64("clOrdID", clOrdID), zap.Int32("affected", affected))
	return req, nil
}

func (m *requestMap) orderStatus(order *Order) {
	m.post(func() {
		order.Lock()
		defer order.Unlock()
		m.callback.OnOrderStatus(order)
	})
}

func rejectText(reason int32) string {
	switch reason {
	case FloodRejectReason:
		return "flood reject"
	case SessionRejectReason:
		return "session reject"
	}
	return "reason " + strconv.Itoa(int(reason))
}

func toSide(side Side) uint8 {
	if side == Sell {
		return protocol.SideSell
	}
	return protocol.SideBuy
}

func fromSide(side uint8) Side {
	if side == protocol.SideSell {
		return Sell
	}
	return Buy
}
