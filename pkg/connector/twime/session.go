package twime

import (
	"time"

	"go.uber.org/zap"

	"github.com/robaho/go-twime/pkg/common"
	"github.com/robaho/go-twime/pkg/protocol"
)

type State int32

const (
	Disconnected State = iota
	Connecting
	LoggingOn
	Active
	LoggingOut
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case LoggingOn:
		return "logging on"
	case Active:
		return "active"
	case LoggingOut:
		return "logging out"
	}
	return "unknown"
}

// reject reasons passed to the correlator for session level rejects, exchange reasons are positive
const (
	FloodRejectReason   int32 = -1
	SessionRejectReason int32 = -2
)

// Session is the TWIME session and sequence state machine. It is not safe for concurrent use, every method must be
// called from the goroutine that owns the transport.
type Session struct {
	cfg       Config
	transport Transport
	corr      Correlator
	log       *zap.Logger
	metrics   *sessionMetrics
	handlers  map[uint16]handler
	now       func() time.Time

	state State
	// next expected inbound and next outbound application sequence numbers
	rxSN uint64
	txSN uint64

	recoveryMode     bool
	reSendCountCurr  uint64
	reSendCountTotal uint64

	acked          bool
	pendingRestart bool

	connectedAt time.Time
	lastRecv    time.Time
	lastSent    time.Time
	logoutAt    time.Time

	wbuf []byte
}

func NewSession(cfg Config, transport Transport, corr Correlator, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	account := cfg.AccountKey.String()
	return &Session{
		cfg:       cfg,
		transport: transport,
		corr:      corr,
		log:       log.With(zap.String("session", account)),
		metrics:   newSessionMetrics(account),
		handlers:  newDispatchTable(),
		now:       time.Now,
		rxSN:      1,
		txSN:      1,
		wbuf:      make([]byte, 0, protocol.MaxMsgSize),
	}
}

func (s *Session) State() State {
	return s.state
}
func (s *Session) RxSN() uint64 {
	return s.rxSN
}
func (s *Session) TxSN() uint64 {
	return s.txSN
}
func (s *Session) RecoveryMode() bool {
	return s.recoveryMode
}

// ReSendCounts returns the messages outstanding in the current retransmission batch and in total
func (s *Session) ReSendCounts() (curr uint64, total uint64) {
	return s.reSendCountCurr, s.reSendCountTotal
}

// SetSeqNums restores the sequence numbers of a previous run, it must be called before the first connect
func (s *Session) SetSeqNums(rxSN, txSN uint64) {
	s.rxSN, s.txSN = rxSN, txSN
	s.metrics.rx.Set(float64(rxSN))
	s.metrics.tx.Set(float64(txSN))
}

// Connecting marks the session as waiting for the transport, used when the connector starts dialing
func (s *Session) Connecting() {
	if s.state == Disconnected {
		s.state = Connecting
	}
}

func (s *Session) OnConnected() {
	now := s.now()
	s.state = LoggingOn
	s.acked = false
	s.connectedAt, s.lastRecv = now, now
	s.log.Info("connected, establishing", zap.Bool("recovery", s.recoveryMode), zap.Uint64("rxSN", s.rxSN))
	s.send(&protocol.Establish{
		Timestamp:         protocol.Timestamp(now),
		KeepaliveInterval: s.keepalive(),
		Credentials:       s.cfg.Credentials,
	})
}

// OnConnectionLost is called when the transport fails underneath the session
func (s *Session) OnConnectionLost(err error) {
	if s.state == Disconnected || s.state == Connecting {
		return
	}
	restart := s.state != LoggingOut || s.pendingRestart
	s.log.Warn("connection lost", zap.Stringer("state", s.state), zap.Error(err))
	s.stopImmediate(restart, "connection lost")
}

// Stop logs off without restarting. A graceful stop sends Terminate and completes when the exchange answers or
// the logoff timeout expires.
func (s *Session) Stop(graceful bool) {
	s.stop(graceful, false, protocol.Finished, "requested")
}

// SendApplication sends an order message, it is only allowed while the session is active
func (s *Session) SendApplication(m protocol.Message) error {
	if s.state != Active {
		return common.NotConnected
	}
	if err := s.send(m); err != nil {
		return err
	}
	s.txSN++
	s.metrics.tx.Set(float64(s.txSN))
	return nil
}

// OnTimer drives heartbeats and the logon, logoff and inactivity timeouts
func (s *Session) OnTimer(now time.Time) {
	if s.state == Disconnected || s.state == Connecting {
		return
	}
	if now.Sub(s.lastRecv) > s.cfg.Inactivity {
		s.log.Warn("exchange inactive", zap.Duration("since", now.Sub(s.lastRecv)))
		s.stopImmediate(s.state != LoggingOut || s.pendingRestart, "inactivity")
		return
	}
	switch s.state {
	case LoggingOn:
		if !s.acked && now.Sub(s.connectedAt) > s.cfg.LogonTimeout {
			s.log.Warn("logon timeout")
			s.stopImmediate(true, "logon timeout")
			return
		}
	case LoggingOut:
		if now.Sub(s.logoutAt) > s.cfg.LogoffTimeout {
			s.log.Warn("logoff timeout")
			s.disconnect(s.pendingRestart)
		}
		return
	}
	if s.acked && now.Sub(s.lastSent) >= s.cfg.Heartbeat {
		s.send(&protocol.Sequence{NextSeqNo: s.txSN})
	}
}

func (s *Session) keepalive() uint32 {
	return uint32(s.cfg.Heartbeat / time.Millisecond)
}

func (s *Session) send(m protocol.Message) error {
	s.wbuf = protocol.Append(s.wbuf[:0], m)
	s.lastSent = s.now()
	if ce := s.log.Check(zap.DebugLevel, "send"); ce != nil {
		ce.Write(zap.String("msg", protocol.TemplateName(m.TemplateID())), zap.Binary("body", s.wbuf[protocol.HeaderSize:]))
	}
	err := s.transport.Send(s.wbuf)
	if err != nil {
		s.log.Warn("send failed", zap.String("msg", protocol.TemplateName(m.TemplateID())), zap.Error(err))
	}
	return err
}

func (s *Session) stop(graceful bool, restart bool, code protocol.TerminationCode, reason string) {
	switch s.state {
	case LoggingOn, Active:
		if !graceful {
			break
		}
		s.log.Info("logging out", zap.String("reason", reason), zap.Stringer("code", code), zap.Bool("restart", restart))
		s.metrics.stop(reason)
		s.state = LoggingOut
		s.pendingRestart = restart
		s.logoutAt = s.now()
		s.send(&protocol.Terminate{Code: code})
		return
	case LoggingOut:
		// the first stop decides the restart policy
		if graceful {
			return
		}
	}
	s.stopImmediate(restart, reason)
}

func (s *Session) stopImmediate(restart bool, reason string) {
	s.log.Info("disconnecting", zap.String("reason", reason), zap.Bool("restart", restart))
	s.metrics.stop(reason)
	s.disconnect(restart)
}

// disconnect abandons any retransmission in progress, a restarted session detects the gap again at logon
func (s *Session) disconnect(restart bool) {
	s.recoveryMode = false
	s.reSendCountCurr, s.reSendCountTotal = 0, 0
	s.pendingRestart = false
	s.acked = false
	s.metrics.active.Set(0)
	if restart {
		s.state = Connecting
	} else {
		s.state = Disconnected
	}
	s.transport.Drop(restart)
}

func (s *Session) logonCompleted() {
	s.state = Active
	s.metrics.active.Set(1)
	s.metrics.rx.Set(float64(s.rxSN))
	s.log.Info("logon completed", zap.Uint64("rxSN", s.rxSN), zap.Uint64("txSN", s.txSN))
	s.transport.LogonCompleted()
}

func (s *Session) requestRetransmission() {
	s.metrics.retransmits.Inc()
	s.log.Info("requesting retransmission", zap.Uint64("from", s.rxSN), zap.Uint64("count", s.reSendCountCurr),
		zap.Uint64("total", s.reSendCountTotal), zap.Bool("recovery", s.recoveryMode))
	s.send(&protocol.RetransmitRequest{
		Timestamp: protocol.Timestamp(s.now()),
		FromSeqNo: s.rxSN,
		Count:     uint32(s.reSendCountCurr),
	})
}

// manageApplSeqNums runs after every application message. It returns false when the connection was replaced
// and the current read buffer must be abandoned.
func (s *Session) manageApplSeqNums() bool {
	s.rxSN++
	s.metrics.rx.Set(float64(s.rxSN))
	if s.reSendCountCurr == 0 {
		return true
	}
	s.reSendCountCurr--
	s.reSendCountTotal--
	if s.reSendCountCurr > 0 {
		return true
	}
	if s.reSendCountTotal > 0 {
		s.reSendCountCurr = min(s.reSendCountTotal, uint64(s.cfg.MaxReSends))
		s.requestRetransmission()
		return true
	}
	if !s.recoveryMode {
		s.logonCompleted()
		return true
	}
	s.log.Info("recovery complete, returning to main endpoint", zap.Uint64("rxSN", s.rxSN))
	s.recoveryMode = false
	s.state = Connecting
	s.transport.Reconnect(s.cfg.Main)
	return false
}

// session level handlers, each returns whether reading the current buffer may continue

func (s *Session) onEstablishmentAck(body []byte) (bool, error) {
	var m protocol.EstablishmentAck
	m.Decode(body)
	if s.state != LoggingOn || s.acked {
		s.log.Warn("unexpected EstablishmentAck", zap.Stringer("state", s.state))
		return true, nil
	}
	s.acked = true

	if m.KeepaliveInterval != s.keepalive() {
		s.log.Error("keepalive interval not accepted, check the configuration",
			zap.Uint32("requested", s.keepalive()), zap.Uint32("acked", m.KeepaliveInterval))
		s.stopImmediate(false, "keepalive mismatch")
		return false, nil
	}
	if s.recoveryMode {
		s.requestRetransmission()
		return true, nil
	}

	next := m.NextSeqNo
	switch {
	case next == s.rxSN || (s.rxSN == 1 && next == 0):
		// it is not known whether the exchange starts a session at 0 or 1, both are accepted
		s.rxSN = next
		s.logonCompleted()
	case next < s.rxSN:
		s.log.Error("exchange sequence is behind the client", zap.Uint64("next", next), zap.Uint64("rxSN", s.rxSN))
		s.stopImmediate(false, "sequence behind")
		return false, nil
	default:
		gap := next - s.rxSN
		maxReSends := uint64(s.cfg.MaxReSends)
		switch {
		case s.cfg.ResetSeqNums:
			s.log.Warn("accepting sequence gap, messages are lost", zap.Uint64("gap", gap), zap.Uint64("next", next))
			s.rxSN = next
			s.logonCompleted()
		case gap <= maxReSends:
			s.reSendCountTotal, s.reSendCountCurr = gap, gap
			s.requestRetransmission()
		default:
			s.log.Warn("sequence gap too large, switching to recovery endpoint", zap.Uint64("gap", gap),
				zap.Stringer("recovery", s.cfg.Recovery))
			s.metrics.recoveries.Inc()
			s.recoveryMode = true
			s.reSendCountTotal = gap
			s.reSendCountCurr = min(gap, maxReSends)
			s.state = Connecting
			s.transport.Reconnect(s.cfg.Recovery)
			return false, nil
		}
	}
	return true, nil
}

func (s *Session) onEstablishmentReject(body []byte) (bool, error) {
	var m protocol.EstablishmentReject
	m.Decode(body)
	s.log.Warn("establishment rejected", zap.Uint8("code", uint8(m.Code)))
	s.stopImmediate(true, "establishment rejected")
	return false, nil
}

func (s *Session) onTerminate(body []byte) (bool, error) {
	var m protocol.Terminate
	m.Decode(body)
	if s.state == LoggingOut {
		s.log.Info("logged out", zap.Stringer("code", m.Code))
		s.disconnect(s.pendingRestart)
		return false, nil
	}
	if m.Code == protocol.Finished {
		s.log.Info("terminated by exchange", zap.Stringer("code", m.Code))
	} else {
		s.log.Error("terminated by exchange", zap.Stringer("code", m.Code))
	}
	s.metrics.stop("terminated")
	s.disconnect(false)
	return false, nil
}

func (s *Session) onSequence(body []byte) (bool, error) {
	var m protocol.Sequence
	m.Decode(body)
	// rxSN is not agreed before the EstablishmentAck, and the exchange runs ahead of the client until a
	// retransmission completes
	if m.NextSeqNo == protocol.NullSeqNo || !s.acked || s.reSendCountCurr > 0 || s.recoveryMode {
		return true, nil
	}
	if m.NextSeqNo != s.rxSN {
		s.log.Error("sequence mismatch", zap.Uint64("next", m.NextSeqNo), zap.Uint64("rxSN", s.rxSN))
		s.stop(true, true, protocol.InvalidSequenceNumber, "invalid sequence")
	}
	return true, nil
}

func (s *Session) onRetransmission(body []byte) (bool, error) {
	var m protocol.Retransmission
	m.Decode(body)
	if m.NextSeqNo != s.rxSN || uint64(m.Count) != s.reSendCountCurr || (s.state != LoggingOn && !s.recoveryMode) {
		s.log.Error("unexpected retransmission", zap.Uint64("next", m.NextSeqNo), zap.Uint64("rxSN", s.rxSN),
			zap.Uint32("count", m.Count), zap.Uint64("expected", s.reSendCountCurr), zap.Stringer("state", s.state))
		s.stopImmediate(true, "bad retransmission")
		return false, nil
	}
	s.log.Debug("retransmission", zap.Uint64("next", m.NextSeqNo), zap.Uint32("count", m.Count))
	return true, nil
}

func (s *Session) onFloodReject(body []byte) (bool, error) {
	var m protocol.FloodReject
	m.Decode(body)
	s.log.Error("flood reject", zap.Uint64("clOrdID", m.ClOrdID), zap.Uint32("queue", m.QueueSize), zap.Uint32("penalty", m.PenaltyRemain))
	_, err := s.corr.Reject(m.ClOrdID, FloodRejectReason, s.now())
	s.stop(true, true, protocol.TooFastClient, "flood reject")
	return true, err
}

func (s *Session) onSessionReject(body []byte) (bool, error) {
	var m protocol.SessionReject
	m.Decode(body)
	s.log.Error("session reject", zap.Uint64("clOrdID", m.ClOrdID), zap.Uint32("tag", m.RefTagID), zap.Uint8("reason", m.Reason))
	_, err := s.corr.Reject(m.ClOrdID, SessionRejectReason, s.now())
	s.stop(true, false, protocol.UnspecifiedError, "session reject")
	return true, err
}
