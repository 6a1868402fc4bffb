package twime

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/robaho/go-twime/pkg/protocol"
)

// application level handlers, they translate exchange responses into correlator calls

func (s *Session) onNewOrderSingleResponse(body []byte) error {
	var m protocol.NewOrderSingleResponse
	m.Decode(body)
	req, err := s.corr.ConfirmNew(m.ClOrdID, m.OrderID, m.Price, m.OrderQty, protocol.ToTime(m.Timestamp))
	if err != nil {
		return errors.Wrapf(err, "confirm new %d", m.ClOrdID)
	}
	if req == nil {
		s.notFound("NewOrderSingleResponse", m.ClOrdID)
		return nil
	}
	if s.cfg.Paranoid {
		var e echo
		e.check("security", m.SecurityID == req.SecurityID)
		e.check("side", m.Side == req.Side)
		e.check("price", m.Price == req.Price)
		e.check("qty", m.OrderQty == req.Qty)
		e.check("link", m.ClOrdLinkID == req.LinkID)
		s.report("NewOrderSingleResponse", req, e)
	}
	return nil
}

func (s *Session) onNewOrderReject(body []byte) error {
	var m protocol.NewOrderReject
	m.Decode(body)
	return s.reject("NewOrderReject", &m.RejectBody)
}

func (s *Session) onOrderCancelReject(body []byte) error {
	var m protocol.OrderCancelReject
	m.Decode(body)
	return s.reject("OrderCancelReject", &m.RejectBody)
}

func (s *Session) onOrderReplaceReject(body []byte) error {
	var m protocol.OrderReplaceReject
	m.Decode(body)
	return s.reject("OrderReplaceReject", &m.RejectBody)
}

func (s *Session) onBusinessMessageReject(body []byte) error {
	var m protocol.BusinessMessageReject
	m.Decode(body)
	return s.reject("BusinessMessageReject", &m.RejectBody)
}

func (s *Session) reject(msg string, m *protocol.RejectBody) error {
	req, err := s.corr.Reject(m.ClOrdID, m.OrdRejReason, protocol.ToTime(m.Timestamp))
	if err != nil {
		return errors.Wrapf(err, "%s %d", msg, m.ClOrdID)
	}
	if req == nil {
		s.notFound(msg, m.ClOrdID)
		return nil
	}
	s.log.Info("request rejected", zap.String("msg", msg), zap.Uint64("clOrdID", m.ClOrdID),
		zap.Stringer("kind", req.Kind), zap.Int32("reason", m.OrdRejReason))
	return nil
}

func (s *Session) onOrderCancelResponse(body []byte) error {
	var m protocol.OrderCancelResponse
	m.Decode(body)
	req, err := s.corr.Cancel(m.ClOrdID, m.OrderID, m.OrderQty, protocol.ToTime(m.Timestamp))
	if err != nil {
		return errors.Wrapf(err, "cancel %d", m.ClOrdID)
	}
	if req == nil {
		s.notFound("OrderCancelResponse", m.ClOrdID)
		return nil
	}
	// a mass cancel is answered by one response per order it removed
	if s.cfg.Paranoid && req.Kind == CancelRequest {
		var e echo
		e.check("side", m.Side == req.Side)
		e.check("link", m.ClOrdLinkID == req.LinkID)
		s.report("OrderCancelResponse", req, e)
	}
	return nil
}

func (s *Session) onOrderReplaceResponse(body []byte) error {
	var m protocol.OrderReplaceResponse
	m.Decode(body)
	req, err := s.corr.Replace(m.ClOrdID, m.OrderID, m.PrevOrderID, m.Price, m.OrderQty, protocol.ToTime(m.Timestamp))
	if err != nil {
		return errors.Wrapf(err, "replace %d", m.ClOrdID)
	}
	if req == nil {
		s.notFound("OrderReplaceResponse", m.ClOrdID)
		return nil
	}
	if s.cfg.Paranoid {
		var e echo
		e.check("side", m.Side == req.Side)
		e.check("price", m.Price == req.Price)
		e.check("qty", m.OrderQty == req.Qty)
		e.check("link", m.ClOrdLinkID == req.LinkID)
		s.report("OrderReplaceResponse", req, e)
	}
	return nil
}

func (s *Session) onOrderMassCancelResponse(body []byte) error {
	var m protocol.OrderMassCancelResponse
	m.Decode(body)
	req, err := s.corr.MassCancelled(m.ClOrdID, m.TotalAffectedOrders, m.OrdRejReason, protocol.ToTime(m.Timestamp))
	if err != nil {
		return errors.Wrapf(err, "mass cancel %d", m.ClOrdID)
	}
	if req == nil {
		s.notFound("OrderMassCancelResponse", m.ClOrdID)
	}
	return nil
}

func (s *Session) onExecutionSingleReport(body []byte) error {
	var m protocol.ExecutionSingleReport
	m.Decode(body)
	return s.trade("ExecutionSingleReport", &Execution{
		ClOrdID:    m.ClOrdID,
		OrderID:    m.OrderID,
		TradeID:    m.TrdMatchID,
		SecurityID: m.SecurityID,
		LinkID:     m.ClOrdLinkID,
		Side:       m.Side,
		Price:      m.LastPx,
		Qty:        m.LastQty,
		Leaves:     m.OrderQty,
		Time:       protocol.ToTime(m.Timestamp),
	})
}

func (s *Session) onExecutionMultilegReport(body []byte) error {
	var m protocol.ExecutionMultilegReport
	m.Decode(body)
	return s.trade("ExecutionMultilegReport", &Execution{
		ClOrdID:    m.ClOrdID,
		OrderID:    m.OrderID,
		TradeID:    m.TrdMatchID,
		SecurityID: m.SecurityID,
		LinkID:     m.ClOrdLinkID,
		Side:       m.Side,
		Price:      m.LegPrice,
		Qty:        m.LastQty,
		Leaves:     m.OrderQty,
		IsLeg:      true,
		Time:       protocol.ToTime(m.Timestamp),
	})
}

func (s *Session) trade(msg string, e *Execution) error {
	req, err := s.corr.Trade(e)
	if err != nil {
		return errors.Wrapf(err, "trade %d", e.TradeID)
	}
	if req == nil {
		s.notFound(msg, e.ClOrdID)
		return nil
	}
	// leg trades are reported against the leg instrument
	if s.cfg.Paranoid && !e.IsLeg {
		var ec echo
		ec.check("security", e.SecurityID == req.SecurityID)
		ec.check("side", e.Side == req.Side)
		ec.check("link", e.LinkID == req.LinkID)
		s.report(msg, req, ec)
	}
	return nil
}

func (s *Session) onEmptyBook(body []byte) error {
	var m protocol.EmptyBook
	m.Decode(body)
	s.log.Warn("exchange emptied the order book", zap.Time("at", protocol.ToTime(m.Timestamp)))
	s.stop(true, false, protocol.Finished, "empty book")
	return nil
}

func (s *Session) onSystemEvent(body []byte) error {
	var m protocol.SystemEvent
	m.Decode(body)
	switch m.TradSesEvent {
	case protocol.EventIntradayClearingStarted, protocol.EventClearingStarted, protocol.EventTradingStatusChanged:
		s.log.Warn("trading interrupted", zap.Uint8("event", m.TradSesEvent), zap.Int32("tradingSession", m.TradingSessionID))
		s.stop(true, false, protocol.Finished, "system event")
	default:
		s.log.Info("system event", zap.Uint8("event", m.TradSesEvent), zap.Int32("tradingSession", m.TradingSessionID))
	}
	return nil
}

func (s *Session) notFound(msg string, clOrdID uint64) {
	s.log.Warn("request not found", zap.String("msg", msg), zap.Uint64("clOrdID", clOrdID))
}

// echo collects the names of fields the exchange echoed differently from the request
type echo struct {
	bad []string
}

func (e *echo) check(field string, ok bool) {
	if !ok {
		e.bad = append(e.bad, field)
	}
}

// a mismatch is only reported, the exchange has already accepted the order as it echoed it
func (s *Session) report(msg string, req *Request, e echo) {
	if len(e.bad) == 0 {
		return
	}
	s.metrics.mismatches.Inc()
	s.log.Error("echoed fields differ from request", zap.String("msg", msg), zap.Uint64("clOrdID", req.ID),
		zap.Stringer("kind", req.Kind), zap.Strings("fields", e.bad))
}
