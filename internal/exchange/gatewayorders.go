package exchange

import (
	"time"

	. "github.com/robaho/fixed"
	"go.uber.org/zap"

	. "github.com/robaho/go-twime/pkg/common"
	"github.com/robaho/go-twime/pkg/protocol"
)

// OrdRejReason values produced by the simulator
const (
	reasonUnsupported     int32 = 1
	reasonUnknownSecurity int32 = 2
	reasonInvalidPrice    int32 = 3
	reasonInvalidQuantity int32 = 4
	reasonInvalidSide     int32 = 5
	reasonOrderNotFound   int32 = 14
)

func (g *Gateway) onApplication(a *account, m protocol.Message) {
	switch m := m.(type) {
	case *protocol.NewOrderSingle:
		g.newOrder(a, m)
	case *protocol.OrderCancelRequest:
		g.cancelOrder(a, m)
	case *protocol.OrderReplaceRequest:
		g.replaceOrder(a, m)
	case *protocol.OrderMassCancelRequest:
		g.massCancel(a, m)
	default:
		a.publish(&protocol.BusinessMessageReject{RejectBody: protocol.RejectBody{Timestamp: protocol.Timestamp(time.Now()), OrdRejReason: reasonUnsupported}})
	}
}

func toSide(side uint8) (Side, bool) {
	switch side {
	case protocol.SideBuy:
		return Buy, true
	case protocol.SideSell:
		return Sell, true
	}
	return "", false
}

func fromSide(side Side) uint8 {
	if side == Buy {
		return protocol.SideBuy
	}
	return protocol.SideSell
}

func toDecimal5(f Fixed) protocol.Decimal5 {
	d, _ := protocol.Decimal5FromFixed(f)
	return d
}

func toQty(f Fixed) uint32 {
	return uint32(f.Int())
}

func (g *Gateway) newOrder(a *account, m *protocol.NewOrderSingle) {
	now := time.Now()
	reject := func(reason int32) {
		g.log.Info("order rejected", zap.String("session", a.id), zap.Uint64("clOrdID", m.ClOrdID), zap.Int32("reason", reason))
		a.publish(&protocol.NewOrderReject{RejectBody: protocol.RejectBody{ClOrdID: m.ClOrdID, Timestamp: protocol.Timestamp(now), OrdRejReason: reason}})
	}

	instrument := IMap.GetByID(int64(m.SecurityID))
	side, ok := toSide(m.Side)
	switch {
	case instrument == nil:
		reject(reasonUnknownSecurity)
		return
	case !ok:
		reject(reasonInvalidSide)
		return
	case m.OrderQty == 0:
		reject(reasonInvalidQuantity)
		return
	case m.Price <= 0:
		reject(reasonInvalidPrice)
		return
	case m.TimeInForce == protocol.TimeInForceFOK:
		reject(reasonUnsupported)
		return
	}

	order := LimitOrder(instrument, side, m.Price.Fixed(), NewI(int64(m.OrderQty), 0))
	so, trades := g.e.CreateOrder(a, order, &orderRef{clOrdID: m.ClOrdID, linkID: m.ClOrdLinkID, tif: m.TimeInForce})

	a.publish(&protocol.NewOrderSingleResponse{
		ClOrdID:          m.ClOrdID,
		Timestamp:        protocol.Timestamp(now),
		ExpireDate:       m.ExpireDate,
		OrderID:          so.id,
		Price:            m.Price,
		SecurityID:       m.SecurityID,
		OrderQty:         m.OrderQty,
		TradingSessionID: tradingSessionID,
		ClOrdLinkID:      m.ClOrdLinkID,
		Side:             m.Side,
	})
	g.sendTrades(trades)

	// an immediate order is out of the book once CreateOrder returns, so its state is stable
	if so.immediate() && order.OrderState == Cancelled {
		a.publish(&protocol.OrderCancelResponse{
			ClOrdID:          m.ClOrdID,
			Timestamp:        protocol.Timestamp(time.Now()),
			OrderID:          so.id,
			OrderQty:         toQty(order.Remaining),
			TradingSessionID: tradingSessionID,
			ClOrdLinkID:      m.ClOrdLinkID,
			Side:             m.Side,
		})
	}
}

func (g *Gateway) cancelOrder(a *account, m *protocol.OrderCancelRequest) {
	so, removed, err := g.e.CancelOrder(a, m.OrderID)
	if err != nil {
		a.publish(&protocol.OrderCancelReject{RejectBody: protocol.RejectBody{ClOrdID: m.ClOrdID, Timestamp: protocol.Timestamp(time.Now()), OrdRejReason: reasonOrderNotFound}})
		return
	}
	a.publish(&protocol.OrderCancelResponse{
		ClOrdID:          m.ClOrdID,
		Timestamp:        protocol.Timestamp(time.Now()),
		OrderID:          m.OrderID,
		OrderQty:         toQty(removed),
		TradingSessionID: tradingSessionID,
		ClOrdLinkID:      so.ref.linkID,
		Side:             fromSide(so.order.Side),
	})
}

func (g *Gateway) replaceOrder(a *account, m *protocol.OrderReplaceRequest) {
	reject := func(reason int32) {
		a.publish(&protocol.OrderReplaceReject{RejectBody: protocol.RejectBody{ClOrdID: m.ClOrdID, Timestamp: protocol.Timestamp(time.Now()), OrdRejReason: reason}})
	}
	if m.OrderQty == 0 {
		reject(reasonInvalidQuantity)
		return
	}
	if m.Price <= 0 {
		reject(reasonInvalidPrice)
		return
	}

	ref := &orderRef{clOrdID: m.ClOrdID, linkID: m.ClOrdLinkID}
	so, prevID, trades, err := g.e.ModifyOrder(a, m.OrderID, m.Price.Fixed(), NewI(int64(m.OrderQty), 0), ref)
	if err != nil {
		reject(reasonOrderNotFound)
		return
	}
	a.publish(&protocol.OrderReplaceResponse{
		ClOrdID:          m.ClOrdID,
		Timestamp:        protocol.Timestamp(time.Now()),
		OrderID:          so.id,
		PrevOrderID:      prevID,
		Price:            m.Price,
		OrderQty:         m.OrderQty,
		TradingSessionID: tradingSessionID,
		ClOrdLinkID:      m.ClOrdLinkID,
		Side:             fromSide(so.order.Side),
	})
	g.sendTrades(trades)
}

func (g *Gateway) massCancel(a *account, m *protocol.OrderMassCancelRequest) {
	match := func(order *Order) bool {
		if m.SecurityID != 0 && order.Instrument.ID() != int64(m.SecurityID) {
			return false
		}
		if m.Side != protocol.SideAll && fromSide(order.Side) != m.Side {
			return false
		}
		if m.SecurityGroup != "" && order.Instrument.Group() != m.SecurityGroup {
			return false
		}
		return true
	}

	cancelled, quantities := g.e.CancelAll(a, match)
	now := protocol.Timestamp(time.Now())
	for i, so := range cancelled {
		a.publish(&protocol.OrderCancelResponse{
			ClOrdID:          m.ClOrdID,
			Timestamp:        now,
			OrderID:          so.id,
			OrderQty:         toQty(quantities[i]),
			TradingSessionID: tradingSessionID,
			ClOrdLinkID:      so.ref.linkID,
			Side:             fromSide(so.order.Side),
		})
	}
	a.publish(&protocol.OrderMassCancelResponse{ClOrdID: m.ClOrdID, Timestamp: now, TotalAffectedOrders: int32(len(cancelled))})
}

func (g *Gateway) sendTrades(trades []trade) {
	for _, t := range trades {
		g.sendTrade(t.buyer, t, t.buyRemaining)
		g.sendTrade(t.seller, t, t.sellRemaining)
	}
}

func (g *Gateway) sendTrade(so sessionOrder, t trade, remaining Fixed) {
	a, ok := so.client.(*account)
	if !ok {
		return
	}
	a.publish(&protocol.ExecutionSingleReport{
		ClOrdID:          so.ref.clOrdID,
		Timestamp:        protocol.Timestamp(t.when),
		OrderID:          so.id,
		TrdMatchID:       t.tradeid,
		LastPx:           toDecimal5(t.price),
		LastQty:          toQty(t.quantity),
		OrderQty:         toQty(remaining),
		TradingSessionID: tradingSessionID,
		ClOrdLinkID:      so.ref.linkID,
		SecurityID:       int32(so.order.Instrument.ID()),
		Side:             fromSide(so.order.Side),
	})
}
