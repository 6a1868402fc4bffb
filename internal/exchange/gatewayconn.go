package exchange

import (
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/robaho/go-twime/pkg/protocol"
)

const (
	establishTimeout = 10 * time.Second
	writeTimeout     = 5 * time.Second
	maxKeepalive     = 60000
	readBufferSize   = 64 * 1024
)

// gatewayConn is one TCP connection, on either endpoint
type gatewayConn struct {
	g        *Gateway
	conn     net.Conn
	recovery bool
	log      *zap.Logger

	wmu      sync.Mutex
	lastSent time.Time

	// set by Establish
	acct      *account
	keepalive time.Duration
	ackNext   uint64

	closeOnce sync.Once
	done      chan struct{}
}

func newGatewayConn(g *Gateway, conn net.Conn, recovery bool) *gatewayConn {
	return &gatewayConn{
		g:        g,
		conn:     conn,
		recovery: recovery,
		log:      g.log.With(zap.Stringer("remote", conn.RemoteAddr()), zap.Bool("recovery", recovery)),
		done:     make(chan struct{}),
	}
}

func (c *gatewayConn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// write is safe from any goroutine, a failed write closes the connection
func (c *gatewayConn) write(b []byte) {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if _, err := c.conn.Write(b); err != nil {
		c.log.Debug("write failed", zap.Error(err))
		c.conn.Close()
		return
	}
	c.lastSent = time.Now()
}

func (c *gatewayConn) send(m protocol.Message) {
	c.write(protocol.Encode(m))
}

func (c *gatewayConn) terminate(code protocol.TerminationCode) {
	c.log.Info("terminating", zap.Stringer("code", code))
	c.send(&protocol.Terminate{Code: code})
}

func (c *gatewayConn) run() {
	defer c.close()
	defer func() {
		if c.acct != nil {
			c.acct.detach(c)
		}
	}()

	buf := make([]byte, readBufferSize)
	n := 0
	c.conn.SetReadDeadline(time.Now().Add(establishTimeout))
	for {
		r, err := c.conn.Read(buf[n:])
		if err != nil {
			c.log.Debug("connection closed", zap.Error(err))
			return
		}
		n += r

		offset := 0
		for {
			f, used, err := protocol.DecodeNext(buf[:n], offset)
			if err != nil {
				c.log.Warn("framing error", zap.Error(err))
				return
			}
			if used == 0 {
				break
			}
			offset += used
			if !f.Known() {
				c.log.Debug("skipping unknown template", zap.Uint16("tid", f.TemplateID))
				continue
			}
			m, err := protocol.Decode(f)
			if err != nil {
				c.log.Warn("decode failed", zap.Error(err))
				return
			}
			if !c.onMessage(m) {
				return
			}
		}
		n = copy(buf, buf[offset:n])
		if n == len(buf) {
			c.log.Warn("frame larger than the read buffer")
			return
		}
		if c.keepalive > 0 {
			c.conn.SetReadDeadline(time.Now().Add(3 * c.keepalive))
		}
	}
}

// onMessage returns false when the connection should be closed
func (c *gatewayConn) onMessage(m protocol.Message) bool {
	if ce := c.log.Check(zap.DebugLevel, "received"); ce != nil {
		ce.Write(zap.String("msg", protocol.TemplateName(m.TemplateID())))
	}

	if m, ok := m.(*protocol.Establish); ok {
		return c.onEstablish(m)
	}
	if c.acct == nil {
		c.terminate(protocol.UnspecifiedError)
		return false
	}

	switch m := m.(type) {
	case *protocol.Terminate:
		c.log.Info("client terminated", zap.Stringer("code", m.Code))
		c.send(&protocol.Terminate{Code: protocol.Finished})
		return false
	case *protocol.RetransmitRequest:
		return c.onRetransmitRequest(m)
	case *protocol.Sequence:
		c.activate()
		c.onSequence(m)
		return true
	}

	if !protocol.IsApplication(m.TemplateID()) || c.recovery {
		c.terminate(protocol.UnspecifiedError)
		return false
	}
	c.activate()
	c.acct.Lock()
	if c.acct.nextIn != 0 {
		c.acct.nextIn++
	}
	c.acct.Unlock()
	c.g.onApplication(c.acct, m)
	return true
}

func (c *gatewayConn) onEstablish(m *protocol.Establish) bool {
	if c.acct != nil {
		c.terminate(protocol.UnspecifiedError)
		return false
	}
	reject := func(code protocol.EstablishmentRejectCode) bool {
		c.log.Info("establish rejected", zap.String("credentials", m.Credentials), zap.Uint8("code", uint8(code)))
		c.send(&protocol.EstablishmentReject{RequestTimestamp: m.Timestamp, Code: code})
		return false
	}
	if m.Credentials == "" {
		return reject(protocol.RejectCredentials)
	}
	if m.KeepaliveInterval == 0 || m.KeepaliveInterval > maxKeepalive {
		return reject(protocol.RejectKeepaliveInterval)
	}

	a := c.g.account(m.Credentials)
	a.Lock()
	defer a.Unlock()
	if !c.recovery {
		if a.conn != nil {
			return reject(protocol.RejectAlreadyEstablished)
		}
		a.conn = c
	}
	c.log = c.log.With(zap.String("session", a.id))
	c.acct = a
	c.keepalive = time.Duration(m.KeepaliveInterval) * time.Millisecond
	c.ackNext = a.nextSeq()
	c.send(&protocol.EstablishmentAck{RequestTimestamp: m.Timestamp, KeepaliveInterval: m.KeepaliveInterval, NextSeqNo: c.ackNext})
	c.log.Info("established", zap.Uint64("next", c.ackNext), zap.Duration("keepalive", c.keepalive))

	c.g.wg.Add(1)
	go func() {
		defer c.g.wg.Done()
		c.heartbeats()
	}()
	return true
}

func (c *gatewayConn) onRetransmitRequest(m *protocol.RetransmitRequest) bool {
	limit := mainMaxResend
	if c.recovery {
		limit = recoveryMaxResend
	}
	a := c.acct
	a.Lock()
	defer a.Unlock()

	last := m.FromSeqNo + uint64(m.Count)
	if m.Count == 0 || int(m.Count) > limit || m.FromSeqNo == 0 || last > a.nextSeq() {
		c.log.Warn("retransmit request out of bounds", zap.Uint64("from", m.FromSeqNo), zap.Uint32("count", m.Count), zap.Uint64("next", a.nextSeq()))
		c.terminate(protocol.ReRequestOutOfBounds)
		return false
	}
	c.send(&protocol.Retransmission{NextSeqNo: m.FromSeqNo, RequestTimestamp: m.Timestamp, Count: m.Count})
	for seq := m.FromSeqNo; seq < last; seq++ {
		c.write(a.history[seq-1])
	}
	if !c.recovery && last == c.ackNext {
		a.goLive(c, last)
	}
	return true
}

// activate starts streaming on the first client message that is not part of a recovery
func (c *gatewayConn) activate() {
	if c.recovery {
		return
	}
	c.acct.Lock()
	c.acct.goLive(c, c.ackNext)
	c.acct.Unlock()
}

func (c *gatewayConn) onSequence(m *protocol.Sequence) {
	if m.NextSeqNo == protocol.NullSeqNo {
		return
	}
	a := c.acct
	a.Lock()
	defer a.Unlock()
	if a.nextIn != 0 && a.nextIn != m.NextSeqNo {
		c.log.Warn("client sequence moved", zap.Uint64("expected", a.nextIn), zap.Uint64("next", m.NextSeqNo))
	}
	a.nextIn = m.NextSeqNo
}

func (c *gatewayConn) heartbeats() {
	interval := c.keepalive / 4
	if interval < time.Millisecond {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
		}
		c.wmu.Lock()
		idle := time.Since(c.lastSent)
		c.wmu.Unlock()
		if idle < c.keepalive {
			continue
		}
		// under the session lock so the sequence number is consistent with what was written
		a := c.acct
		a.Lock()
		next := protocol.NullSeqNo
		if a.live == c {
			next = a.nextSeq()
		}
		c.send(&protocol.Sequence{NextSeqNo: next})
		a.Unlock()
	}
}
