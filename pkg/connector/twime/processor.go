package twime

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/robaho/go-twime/pkg/protocol"
)

// ErrExitRun asks the host to shut down. It is the only error that escapes OnBytes, from a handler error or panic.
var ErrExitRun = errors.New("exit run")

func IsExitRun(err error) bool {
	return err != nil && errors.Cause(err) == ErrExitRun
}

type handler struct {
	name string
	// session level handlers decide whether reading the current buffer continues
	session func(s *Session, body []byte) (bool, error)
	// application level handlers are always followed by sequence number bookkeeping
	appl func(s *Session, body []byte) error
}

func newDispatchTable() map[uint16]handler {
	t := map[uint16]handler{
		protocol.TidEstablishmentAck:    {session: (*Session).onEstablishmentAck},
		protocol.TidEstablishmentReject: {session: (*Session).onEstablishmentReject},
		protocol.TidTerminate:           {session: (*Session).onTerminate},
		protocol.TidRetransmission:      {session: (*Session).onRetransmission},
		protocol.TidSequence:            {session: (*Session).onSequence},
		protocol.TidFloodReject:         {session: (*Session).onFloodReject},
		protocol.TidSessionReject:       {session: (*Session).onSessionReject},

		protocol.TidBusinessMessageReject:   {appl: (*Session).onBusinessMessageReject},
		protocol.TidNewOrderSingleResponse:  {appl: (*Session).onNewOrderSingleResponse},
		protocol.TidNewOrderReject:          {appl: (*Session).onNewOrderReject},
		protocol.TidOrderCancelResponse:     {appl: (*Session).onOrderCancelResponse},
		protocol.TidOrderCancelReject:       {appl: (*Session).onOrderCancelReject},
		protocol.TidOrderReplaceResponse:    {appl: (*Session).onOrderReplaceResponse},
		protocol.TidOrderReplaceReject:      {appl: (*Session).onOrderReplaceReject},
		protocol.TidOrderMassCancelResponse: {appl: (*Session).onOrderMassCancelResponse},
		protocol.TidExecutionSingleReport:   {appl: (*Session).onExecutionSingleReport},
		protocol.TidExecutionMultilegReport: {appl: (*Session).onExecutionMultilegReport},
		protocol.TidEmptyBook:               {appl: (*Session).onEmptyBook},
		protocol.TidSystemEvent:             {appl: (*Session).onSystemEvent},
	}
	for tid, h := range t {
		h.name = protocol.TemplateName(tid)
		t[tid] = h
	}
	return t
}

// OnBytes processes every complete frame in buf and returns the number of bytes consumed, the caller keeps the
// remainder for the next read. A negative count means the connection was closed or replaced while processing and
// the rest of buf, and the socket it came from, must be abandoned.
func (s *Session) OnBytes(buf []byte) (int, error) {
	s.lastRecv = s.now()
	offset := 0
	for {
		f, n, err := protocol.DecodeNext(buf, offset)
		if err != nil {
			fe, _ := protocol.IsFramingError(err)
			s.metrics.framingError(fe.Code)
			s.log.Error("corrupt frame, abandoning connection", zap.Error(err))
			// a schema or version mismatch will not go away by reconnecting
			s.stopImmediate(fe.Code == protocol.BadLength, "framing error")
			return -1, nil
		}
		if n == 0 {
			return offset, nil
		}
		offset += n

		// logged before the handler, which may close the connection the buffer belongs to
		if ce := s.log.Check(zap.DebugLevel, "recv"); ce != nil {
			ce.Write(zap.String("msg", protocol.TemplateName(f.TemplateID)), zap.Binary("body", f.Body))
		}
		s.metrics.frame(f.TemplateID)

		h, ok := s.handlers[f.TemplateID]
		if !ok {
			s.log.Warn("skipping unknown message", zap.Uint16("tid", f.TemplateID), zap.Int("length", len(f.Body)))
			continue
		}

		cont, err := s.dispatch(h, f.Body)
		if err != nil {
			if IsExitRun(err) {
				return offset, err
			}
			s.metrics.frameError(f.TemplateID)
			s.log.Error("message processing failed", zap.String("msg", h.name), zap.Error(err))
		}
		if !cont || !s.transport.IsActive() {
			return -1, nil
		}
	}
}

func (s *Session) dispatch(h handler, body []byte) (bool, error) {
	if h.appl == nil {
		return s.runSession(h, body)
	}
	err := s.runAppl(h, body)
	if IsExitRun(err) {
		return false, err
	}
	// the message consumed a sequence number even if processing it failed
	return s.manageApplSeqNums(), err
}

func (s *Session) runSession(h handler, body []byte) (cont bool, err error) {
	cont = true
	defer recoverFrame(h.name, &err)
	return h.session(s, body)
}

func (s *Session) runAppl(h handler, body []byte) (err error) {
	defer recoverFrame(h.name, &err)
	return h.appl(s, body)
}

func recoverFrame(name string, err *error) {
	r := recover()
	if r == nil {
		return
	}
	if e, ok := r.(error); ok {
		if IsExitRun(e) {
			*err = e
		} else {
			*err = errors.Wrapf(e, "panic in %s", name)
		}
		return
	}
	*err = errors.Errorf("panic in %s: %v", name, r)
}
