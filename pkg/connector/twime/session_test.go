package twime

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/robaho/go-twime/pkg/common"
	"github.com/robaho/go-twime/pkg/protocol"
)

type fakeTransport struct {
	active      bool
	sent        []protocol.Message
	disconnects []bool
	reconnects  []Endpoint
	logons      int
}

func (t *fakeTransport) Send(b []byte) error {
	f, n, err := protocol.DecodeNext(b, 0)
	if err != nil || n != len(b) {
		panic("session sent a malformed frame")
	}
	m, err := protocol.Decode(f)
	if err != nil {
		panic(err)
	}
	t.sent = append(t.sent, m)
	return nil
}
func (t *fakeTransport) Drop(restart bool) {
	t.active = false
	t.disconnects = append(t.disconnects, restart)
}
func (t *fakeTransport) Reconnect(ep Endpoint) {
	t.active = false
	t.reconnects = append(t.reconnects, ep)
}
func (t *fakeTransport) LogonCompleted() {
	t.logons++
}
func (t *fakeTransport) IsActive() bool {
	return t.active
}

func (t *fakeTransport) retransmitRequests() []*protocol.RetransmitRequest {
	var reqs []*protocol.RetransmitRequest
	for _, m := range t.sent {
		if r, ok := m.(*protocol.RetransmitRequest); ok {
			reqs = append(reqs, r)
		}
	}
	return reqs
}

func (t *fakeTransport) last() protocol.Message {
	if len(t.sent) == 0 {
		return nil
	}
	return t.sent[len(t.sent)-1]
}

// fakeCorrelator knows the requests in known, and records every call by name
type fakeCorrelator struct {
	known  map[uint64]*Request
	calls  []string
	err    error
	panics int
}

func newFakeCorrelator() *fakeCorrelator {
	return &fakeCorrelator{known: make(map[uint64]*Request)}
}

func (c *fakeCorrelator) lookup(name string, clOrdID uint64) (*Request, error) {
	c.calls = append(c.calls, name)
	if c.panics > 0 {
		c.panics--
		panic("correlator failure")
	}
	if c.err != nil {
		return nil, c.err
	}
	return c.known[clOrdID], nil
}

func (c *fakeCorrelator) ConfirmNew(clOrdID uint64, orderID int64, price protocol.Decimal5, qty uint32, ts time.Time) (*Request, error) {
	return c.lookup("new", clOrdID)
}
func (c *fakeCorrelator) Reject(clOrdID uint64, reason int32, ts time.Time) (*Request, error) {
	return c.lookup("reject", clOrdID)
}
func (c *fakeCorrelator) Cancel(clOrdID uint64, orderID int64, qty uint32, ts time.Time) (*Request, error) {
	return c.lookup("cancel", clOrdID)
}
func (c *fakeCorrelator) Replace(clOrdID uint64, orderID int64, prevOrderID int64, price protocol.Decimal5, qty uint32, ts time.Time) (*Request, error) {
	return c.lookup("replace", clOrdID)
}
func (c *fakeCorrelator) Trade(e *Execution) (*Request, error) {
	return c.lookup("trade", e.ClOrdID)
}
func (c *fakeCorrelator) MassCancelled(clOrdID uint64, affected int32, reason int32, ts time.Time) (*Request, error) {
	return c.lookup("masscancel", clOrdID)
}

func testConfig() Config {
	return Config{
		AccountKey:    AccountKey{Prefix: "TEST", Venue: "FORTS", Env: "Test"},
		Main:          Endpoint{Host: "main", Port: 9000},
		Recovery:      Endpoint{Host: "recovery", Port: 9001},
		Account:       "A01",
		Heartbeat:     time.Second,
		LogonTimeout:  5 * time.Second,
		LogoffTimeout: 2 * time.Second,
		Reconnect:     time.Second,
		Inactivity:    3 * time.Second,
		ConnectWait:   time.Second,
		MaxReSends:    10,
	}
}

type harness struct {
	s     *Session
	tr    *fakeTransport
	corr  *fakeCorrelator
	clock time.Time
}

func newHarness(t *testing.T, rxSN uint64) *harness {
	return newHarnessWith(testConfig(), rxSN, zaptest.NewLogger(t))
}

func newHarnessWith(cfg Config, rxSN uint64, log *zap.Logger) *harness {
	h := &harness{tr: &fakeTransport{}, corr: newFakeCorrelator(), clock: time.Unix(1700000000, 0)}
	h.s = NewSession(cfg, h.tr, h.corr, log)
	h.s.now = func() time.Time { return h.clock }
	h.s.SetSeqNums(rxSN, 1)
	h.s.Connecting()
	h.connect()
	return h
}

// connect simulates the transport completing a dial
func (h *harness) connect() {
	h.tr.active = true
	h.s.OnConnected()
}

func (h *harness) feed(t *testing.T, msgs ...protocol.Message) int {
	t.Helper()
	n, err := h.s.OnBytes(frames(msgs...))
	require.NoError(t, err)
	return n
}

func (h *harness) ack(t *testing.T, next uint64) int {
	t.Helper()
	return h.feed(t, &protocol.EstablishmentAck{KeepaliveInterval: 1000, NextSeqNo: next})
}

// active returns a harness logged on with rxSN 1
func active(t *testing.T) *harness {
	h := newHarness(t, 1)
	h.ack(t, 1)
	require.Equal(t, Active, h.s.State())
	return h
}

func frames(msgs ...protocol.Message) []byte {
	var buf []byte
	for _, m := range msgs {
		buf = protocol.Append(buf, m)
	}
	return buf
}

func execReport(clOrdID uint64) protocol.Message {
	return &protocol.ExecutionSingleReport{ClOrdID: clOrdID, OrderID: 1000, TrdMatchID: 1, LastPx: 100000, LastQty: 1, OrderQty: 1, SecurityID: 7, Side: protocol.SideBuy}
}

func unknownFrame(tid uint16, blockLength int) []byte {
	b := make([]byte, protocol.HeaderSize+blockLength)
	binary.LittleEndian.PutUint16(b[0:], uint16(blockLength))
	binary.LittleEndian.PutUint16(b[2:], tid)
	binary.LittleEndian.PutUint16(b[4:], protocol.SchemaID)
	binary.LittleEndian.PutUint16(b[6:], protocol.SchemaVersion)
	return b
}

func TestCleanLogon(t *testing.T) {
	h := newHarness(t, 1)

	require.Len(t, h.tr.sent, 1)
	est, ok := h.tr.sent[0].(*protocol.Establish)
	require.True(t, ok)
	assert.Equal(t, uint32(1000), est.KeepaliveInterval)
	assert.Equal(t, LoggingOn, h.s.State())

	h.ack(t, 1)
	assert.Equal(t, Active, h.s.State())
	assert.Equal(t, 1, h.tr.logons)
	assert.Empty(t, h.tr.retransmitRequests())
	assert.Equal(t, uint64(1), h.s.RxSN())
}

func TestLogonSequenceConventions(t *testing.T) {
	// the exchange may start a fresh session at 0 or at 1
	for _, next := range []uint64{0, 1} {
		h := newHarness(t, 1)
		h.ack(t, next)
		assert.Equal(t, Active, h.s.State(), "next %d", next)
		assert.Equal(t, 1, h.tr.logons, "next %d", next)
		assert.Empty(t, h.tr.retransmitRequests(), "next %d", next)
		assert.Equal(t, next, h.s.RxSN(), "next %d", next)
	}

	// the tolerance only applies to a fresh session
	h := newHarness(t, 2)
	h.ack(t, 0)
	assert.Equal(t, []bool{false}, h.tr.disconnects)
}

func TestGapClassification(t *testing.T) {
	tests := []struct {
		name        string
		rx, next    uint64
		state       State
		retransmit  []uint32
		recovery    bool
		disconnects []bool
	}{
		{name: "no gap", rx: 5, next: 5, state: Active},
		{name: "small gap", rx: 5, next: 8, state: LoggingOn, retransmit: []uint32{3}},
		{name: "largest online gap", rx: 5, next: 15, state: LoggingOn, retransmit: []uint32{10}},
		{name: "large gap", rx: 5, next: 16, state: Connecting, recovery: true},
		{name: "backward", rx: 10, next: 3, state: Disconnected, disconnects: []bool{false}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.rx)
			h.ack(t, tt.next)

			assert.Equal(t, tt.state, h.s.State())
			var counts []uint32
			for _, r := range h.tr.retransmitRequests() {
				assert.Equal(t, tt.rx, r.FromSeqNo)
				counts = append(counts, r.Count)
			}
			assert.Equal(t, tt.retransmit, counts)
			assert.Equal(t, tt.recovery, h.s.RecoveryMode())
			assert.Equal(t, tt.disconnects, h.tr.disconnects)
		})
	}
}

func TestSmallGapRecoveredOnline(t *testing.T) {
	h := newHarness(t, 5)
	h.ack(t, 8)

	reqs := h.tr.retransmitRequests()
	require.Len(t, reqs, 1)
	assert.Equal(t, uint64(5), reqs[0].FromSeqNo)
	assert.Equal(t, uint32(3), reqs[0].Count)
	assert.Equal(t, 0, h.tr.logons)

	buf := frames(&protocol.Retransmission{NextSeqNo: 5, Count: 3}, execReport(1), execReport(2), execReport(3))
	n, err := h.s.OnBytes(buf)
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)

	assert.Equal(t, 1, h.tr.logons)
	assert.Equal(t, Active, h.s.State())
	assert.Equal(t, uint64(8), h.s.RxSN())
	assert.Equal(t, []string{"trade", "trade", "trade"}, h.corr.calls)
	assert.Len(t, h.tr.retransmitRequests(), 1)
}

func TestLargeGapTriggersRecovery(t *testing.T) {
	h := newHarness(t, 5)
	n := h.ack(t, 50)

	assert.Equal(t, -1, n)
	assert.True(t, h.s.RecoveryMode())
	assert.Equal(t, []Endpoint{{Host: "recovery", Port: 9001}}, h.tr.reconnects)
	assert.Empty(t, h.tr.retransmitRequests())
	curr, total := h.s.ReSendCounts()
	assert.Equal(t, uint64(10), curr)
	assert.Equal(t, uint64(45), total)

	h.connect()
	_, ok := h.tr.last().(*protocol.Establish)
	assert.True(t, ok)
	h.ack(t, 50)

	reqs := h.tr.retransmitRequests()
	require.Len(t, reqs, 1)
	assert.Equal(t, uint64(5), reqs[0].FromSeqNo)
	assert.Equal(t, uint32(10), reqs[0].Count)
	assert.Equal(t, 0, h.tr.logons)
}

func TestRecoveryBatches(t *testing.T) {
	h := newHarness(t, 1)
	h.ack(t, 16)
	require.True(t, h.s.RecoveryMode())
	h.connect()
	h.ack(t, 16)

	for i := 1; i <= 15; i++ {
		before := h.s.RxSN()
		n := h.feed(t, execReport(uint64(i)))
		assert.Equal(t, before+1, h.s.RxSN())

		switch {
		case i < 10:
			assert.Len(t, h.tr.retransmitRequests(), 1)
			assert.True(t, h.s.RecoveryMode())
		case i == 10:
			reqs := h.tr.retransmitRequests()
			require.Len(t, reqs, 2)
			assert.Equal(t, uint64(11), reqs[1].FromSeqNo)
			assert.Equal(t, uint32(5), reqs[1].Count)
			assert.True(t, h.s.RecoveryMode())
		case i < 15:
			assert.True(t, h.s.RecoveryMode())
		default:
			// back to the main endpoint, the recovery connection is abandoned
			assert.Equal(t, -1, n)
			assert.False(t, h.s.RecoveryMode())
		}
	}
	assert.Equal(t, uint64(16), h.s.RxSN())
	assert.Equal(t, []Endpoint{h.s.cfg.Recovery, h.s.cfg.Main}, h.tr.reconnects)
	assert.Equal(t, 0, h.tr.logons)

	h.connect()
	h.ack(t, 16)
	assert.Equal(t, Active, h.s.State())
	assert.Equal(t, 1, h.tr.logons)
	assert.Len(t, h.tr.retransmitRequests(), 2)
}

func TestResetSeqNums(t *testing.T) {
	cfg := testConfig()
	cfg.ResetSeqNums = true
	h := newHarnessWith(cfg, 5, zaptest.NewLogger(t))
	h.ack(t, 50)
	assert.Equal(t, Active, h.s.State())
	assert.Equal(t, uint64(50), h.s.RxSN())
	assert.Empty(t, h.tr.retransmitRequests())
}

func TestKeepaliveNotAccepted(t *testing.T) {
	h := newHarness(t, 1)
	h.feed(t, &protocol.EstablishmentAck{KeepaliveInterval: 500, NextSeqNo: 1})
	assert.Equal(t, []bool{false}, h.tr.disconnects)
	assert.Equal(t, Disconnected, h.s.State())
}

func TestEstablishmentRejected(t *testing.T) {
	h := newHarness(t, 1)
	n := h.feed(t, &protocol.EstablishmentReject{Code: protocol.RejectCredentials})
	assert.Equal(t, -1, n)
	assert.Equal(t, []bool{true}, h.tr.disconnects)
	assert.Equal(t, Connecting, h.s.State())
}

func TestBadRetransmission(t *testing.T) {
	h := newHarness(t, 5)
	h.ack(t, 8)
	h.feed(t, &protocol.Retransmission{NextSeqNo: 6, Count: 3})
	assert.Equal(t, []bool{true}, h.tr.disconnects)
	curr, total := h.s.ReSendCounts()
	assert.Zero(t, curr)
	assert.Zero(t, total)
}

func TestUnknownTemplateSkipped(t *testing.T) {
	h := active(t)

	buf := append(unknownFrame(6999, 12), frames(execReport(1))...)
	buf = append(buf, unknownFrame(4321, 0)...)
	n, err := h.s.OnBytes(buf)
	require.NoError(t, err)

	assert.Equal(t, len(buf), n)
	assert.Equal(t, uint64(2), h.s.RxSN())
	assert.Equal(t, []string{"trade"}, h.corr.calls)
	assert.Empty(t, h.tr.disconnects)
}

func TestSplitBufferEquivalence(t *testing.T) {
	buf := frames(&protocol.Sequence{NextSeqNo: 1}, execReport(1), &protocol.NewOrderReject{}, execReport(2),
		&protocol.SystemEvent{TradSesEvent: protocol.EventSessionDataReady}, &protocol.OrderCancelResponse{ClOrdID: 3})
	buf = append(buf, unknownFrame(6999, 5)...)
	buf = append(buf, frames(execReport(4))...)

	whole := activeQuiet(t)
	n, err := whole.s.OnBytes(buf)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)

	for split := 0; split <= len(buf); split++ {
		h := activeQuiet(t)
		var pending []byte
		for _, chunk := range [][]byte{buf[:split], buf[split:]} {
			pending = append(pending, chunk...)
			n, err := h.s.OnBytes(pending)
			require.NoError(t, err)
			require.GreaterOrEqual(t, n, 0)
			pending = pending[n:]
		}
		assert.Empty(t, pending, "split %d", split)
		assert.Equal(t, whole.corr.calls, h.corr.calls, "split %d", split)
		assert.Equal(t, whole.s.RxSN(), h.s.RxSN(), "split %d", split)
		assert.Equal(t, Active, h.s.State(), "split %d", split)
	}
}

func activeQuiet(t *testing.T) *harness {
	h := newHarnessWith(testConfig(), 1, zap.NewNop())
	h.ack(t, 1)
	return h
}

func TestHandlerPanicIsolated(t *testing.T) {
	h := active(t)
	h.corr.panics = 1

	buf := frames(execReport(1), execReport(2))
	n, err := h.s.OnBytes(buf)
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)
	// the failed frame still consumed its sequence number
	assert.Equal(t, uint64(3), h.s.RxSN())
	assert.Equal(t, []string{"trade", "trade"}, h.corr.calls)
	assert.Equal(t, Active, h.s.State())
}

func TestHandlerErrorContinues(t *testing.T) {
	h := active(t)
	h.corr.err = errors.New("order store unavailable")

	buf := frames(execReport(1), &protocol.OrderCancelResponse{ClOrdID: 2})
	n, err := h.s.OnBytes(buf)
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)
	assert.Equal(t, uint64(3), h.s.RxSN())
}

func TestExitRunPropagates(t *testing.T) {
	h := active(t)
	h.corr.err = errors.Wrap(ErrExitRun, "operator shutdown")

	first := frames(execReport(1))
	n, err := h.s.OnBytes(append(first, frames(execReport(2))...))
	assert.True(t, IsExitRun(err))
	assert.Equal(t, len(first), n)
	assert.Equal(t, uint64(1), h.s.RxSN())
	assert.Equal(t, []string{"trade"}, h.corr.calls)
}

func TestExitRunPanic(t *testing.T) {
	h := active(t)
	h.s.handlers[protocol.TidEmptyBook] = handler{name: "EmptyBook", appl: func(*Session, []byte) error {
		panic(ErrExitRun)
	}}
	_, err := h.s.OnBytes(frames(&protocol.EmptyBook{}))
	assert.True(t, IsExitRun(err))
}

func TestSequenceMismatch(t *testing.T) {
	h := active(t)
	h.feed(t, &protocol.Sequence{NextSeqNo: 1})
	assert.Equal(t, Active, h.s.State())

	h.feed(t, &protocol.Sequence{NextSeqNo: 5})
	assert.Equal(t, LoggingOut, h.s.State())
	assert.Equal(t, &protocol.Terminate{Code: protocol.InvalidSequenceNumber}, h.tr.last())

	h.feed(t, &protocol.Terminate{Code: protocol.Finished})
	assert.Equal(t, []bool{true}, h.tr.disconnects)
	assert.Equal(t, Connecting, h.s.State())
}

func TestSequenceIgnoredDuringRetransmission(t *testing.T) {
	h := newHarness(t, 5)
	h.ack(t, 8)
	h.feed(t, &protocol.Sequence{NextSeqNo: 8})
	assert.Equal(t, LoggingOn, h.s.State())

	h = active(t)
	h.feed(t, &protocol.Sequence{NextSeqNo: protocol.NullSeqNo})
	assert.Equal(t, Active, h.s.State())
}

func TestSequenceIgnoredBeforeAck(t *testing.T) {
	h := newHarness(t, 5)
	h.feed(t, &protocol.Sequence{NextSeqNo: 9})
	assert.Equal(t, LoggingOn, h.s.State())
	assert.Empty(t, h.tr.disconnects)
	assert.IsType(t, &protocol.Establish{}, h.tr.last())

	h.ack(t, 5)
	assert.Equal(t, Active, h.s.State())
	h.feed(t, &protocol.Sequence{NextSeqNo: 9})
	assert.Equal(t, LoggingOut, h.s.State())
}

func TestGracefulStopFirstWins(t *testing.T) {
	h := active(t)
	h.s.Stop(true)
	assert.Equal(t, LoggingOut, h.s.State())
	assert.Equal(t, &protocol.Terminate{Code: protocol.Finished}, h.tr.last())

	// a later restartable stop does not override the user stop
	h.feed(t, &protocol.Sequence{NextSeqNo: 9})
	h.feed(t, &protocol.Terminate{Code: protocol.Finished})
	assert.Equal(t, []bool{false}, h.tr.disconnects)
	assert.Equal(t, Disconnected, h.s.State())
}

func TestUnsolicitedTerminate(t *testing.T) {
	h := active(t)
	n := h.feed(t, &protocol.Terminate{Code: protocol.UnspecifiedError}, execReport(1))
	assert.Equal(t, -1, n)
	assert.Equal(t, []bool{false}, h.tr.disconnects)
	assert.Empty(t, h.corr.calls)
}

func TestFloodReject(t *testing.T) {
	h := active(t)
	h.corr.known[42] = &Request{ID: 42}
	h.feed(t, &protocol.FloodReject{ClOrdID: 42, QueueSize: 100})

	assert.Equal(t, []string{"reject"}, h.corr.calls)
	assert.Equal(t, &protocol.Terminate{Code: protocol.TooFastClient}, h.tr.last())
	assert.Equal(t, uint64(1), h.s.RxSN())

	h.feed(t, &protocol.Terminate{Code: protocol.Finished})
	assert.Equal(t, []bool{true}, h.tr.disconnects)
}

func TestSessionReject(t *testing.T) {
	h := active(t)
	h.feed(t, &protocol.SessionReject{ClOrdID: 42, RefTagID: 38})
	assert.Equal(t, []string{"reject"}, h.corr.calls)
	assert.Equal(t, &protocol.Terminate{Code: protocol.UnspecifiedError}, h.tr.last())

	h.feed(t, &protocol.Terminate{Code: protocol.Finished})
	assert.Equal(t, []bool{false}, h.tr.disconnects)
}

func TestApplicationStops(t *testing.T) {
	for _, m := range []protocol.Message{
		&protocol.EmptyBook{},
		&protocol.SystemEvent{TradSesEvent: protocol.EventClearingStarted},
		&protocol.SystemEvent{TradSesEvent: protocol.EventTradingStatusChanged},
	} {
		h := active(t)
		h.feed(t, m)
		assert.Equal(t, LoggingOut, h.s.State())
		assert.Equal(t, uint64(2), h.s.RxSN())
	}

	h := active(t)
	h.feed(t, &protocol.SystemEvent{TradSesEvent: protocol.EventIntradayClearingFinished})
	assert.Equal(t, Active, h.s.State())
}

func TestFramingErrors(t *testing.T) {
	h := active(t)
	bad := frames(execReport(1))
	binary.LittleEndian.PutUint16(bad[4:], 1)
	n, err := h.s.OnBytes(bad)
	require.NoError(t, err)
	assert.Equal(t, -1, n)
	assert.Equal(t, []bool{false}, h.tr.disconnects)

	h = active(t)
	bad = frames(execReport(1))
	binary.LittleEndian.PutUint16(bad[0:], 10)
	n, err = h.s.OnBytes(bad)
	require.NoError(t, err)
	assert.Equal(t, -1, n)
	assert.Equal(t, []bool{true}, h.tr.disconnects)
	assert.Empty(t, h.corr.calls)
}

func TestSendApplication(t *testing.T) {
	h := newHarness(t, 1)
	err := h.s.SendApplication(&protocol.NewOrderSingle{ClOrdID: 1})
	assert.Equal(t, common.NotConnected, err)

	h.ack(t, 1)
	require.NoError(t, h.s.SendApplication(&protocol.NewOrderSingle{ClOrdID: 1, OrderQty: 2}))
	assert.Equal(t, uint64(2), h.s.TxSN())
	assert.Equal(t, &protocol.NewOrderSingle{ClOrdID: 1, OrderQty: 2}, h.tr.last())
}

func TestHeartbeat(t *testing.T) {
	h := newHarness(t, 1)
	h.clock = h.clock.Add(time.Second)
	h.s.OnTimer(h.clock)
	// no heartbeats before the exchange acknowledged the logon
	assert.Len(t, h.tr.sent, 1)

	h.ack(t, 1)
	h.clock = h.clock.Add(time.Second)
	h.s.OnTimer(h.clock)
	assert.Equal(t, &protocol.Sequence{NextSeqNo: 1}, h.tr.last())
	sent := len(h.tr.sent)

	h.clock = h.clock.Add(500 * time.Millisecond)
	h.s.OnTimer(h.clock)
	assert.Len(t, h.tr.sent, sent)
}

func TestTimeouts(t *testing.T) {
	t.Run("inactivity", func(t *testing.T) {
		h := active(t)
		h.s.OnTimer(h.clock.Add(4 * time.Second))
		assert.Equal(t, []bool{true}, h.tr.disconnects)
	})
	t.Run("logon", func(t *testing.T) {
		cfg := testConfig()
		cfg.Inactivity = time.Minute
		h := newHarnessWith(cfg, 1, zaptest.NewLogger(t))
		h.s.OnTimer(h.clock.Add(4 * time.Second))
		assert.Empty(t, h.tr.disconnects)
		h.s.OnTimer(h.clock.Add(6 * time.Second))
		assert.Equal(t, []bool{true}, h.tr.disconnects)
	})
	t.Run("logoff", func(t *testing.T) {
		cfg := testConfig()
		cfg.Inactivity = time.Minute
		h := newHarnessWith(cfg, 1, zaptest.NewLogger(t))
		h.ack(t, 1)
		h.s.Stop(true)
		h.s.OnTimer(h.clock.Add(time.Second))
		assert.Empty(t, h.tr.disconnects)
		h.s.OnTimer(h.clock.Add(3 * time.Second))
		assert.Equal(t, []bool{false}, h.tr.disconnects)
	})
	t.Run("inactivity after user stop", func(t *testing.T) {
		h := active(t)
		h.s.Stop(true)
		h.s.OnTimer(h.clock.Add(4 * time.Second))
		assert.Equal(t, []bool{false}, h.tr.disconnects)
	})
}

func TestConnectionLost(t *testing.T) {
	h := active(t)
	h.s.OnConnectionLost(errors.New("reset by peer"))
	assert.Equal(t, []bool{true}, h.tr.disconnects)
	assert.Equal(t, Connecting, h.s.State())

	h = active(t)
	h.s.Stop(true)
	h.s.OnConnectionLost(errors.New("reset by peer"))
	assert.Equal(t, []bool{false}, h.tr.disconnects)
}
