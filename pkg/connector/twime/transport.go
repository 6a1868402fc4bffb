package twime

import (
	"net"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/robaho/go-twime/pkg/common"
)

// Transport is the byte stream a Session runs over. Every method is called from the session goroutine.
type Transport interface {
	Send(b []byte) error
	// Drop closes the connection at once. When restart is true the transport connects to the main endpoint
	// again after the reconnect interval.
	Drop(restart bool)
	// Reconnect closes the connection and connects to ep
	Reconnect(ep Endpoint)
	LogonCompleted()
	IsActive() bool
}

type readEvent struct {
	gen uint64
	buf []byte
	n   int
	err error
}

type dialEvent struct {
	gen  uint64
	ep   Endpoint
	conn net.Conn
	err  error
}

// the connector is the TCP Transport of its session, these methods run on the session goroutine

func (c *twimeConnector) Send(b []byte) error {
	if c.conn == nil {
		return common.NotConnected
	}
	// a stalled peer must not hold up the session goroutine for longer than a heartbeat
	c.conn.SetWriteDeadline(time.Now().Add(c.cfg.Heartbeat))
	if _, err := c.conn.Write(b); err != nil {
		// the read loop sees the closed connection and the session handles it as lost
		c.conn.Close()
		return errors.Wrap(err, "send")
	}
	return nil
}

func (c *twimeConnector) IsActive() bool {
	return c.conn != nil
}

func (c *twimeConnector) Drop(restart bool) {
	c.closeConn()
	c.saveSeqNums()
	c.setLoggedIn(false)
	if restart {
		delay := c.backoff.NextBackOff()
		c.log.Info("reconnecting", zap.Stringer("endpoint", c.cfg.Main), zap.Duration("delay", delay))
		c.dial(c.cfg.Main, delay)
		return
	}
	c.stopped.SetTrue()
}

func (c *twimeConnector) Reconnect(ep Endpoint) {
	c.closeConn()
	c.saveSeqNums()
	c.log.Info("switching endpoint", zap.Stringer("endpoint", ep))
	c.dial(ep, 0)
}

func (c *twimeConnector) LogonCompleted() {
	c.backoff.Reset()
	c.saveSeqNums()
	c.setLoggedIn(true)
}

// closeConn invalidates everything in flight for the current connection, stale reads and dials are dropped by
// their generation
func (c *twimeConnector) closeConn() {
	c.gen++
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.pending = c.pending[:0]
}

func (c *twimeConnector) dial(ep Endpoint, delay time.Duration) {
	gen := c.gen
	quit := c.quit
	go func() {
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-quit:
				return
			}
		}
		conn, err := net.DialTimeout("tcp", ep.String(), c.cfg.LogonTimeout)
		select {
		case c.dials <- dialEvent{gen: gen, ep: ep, conn: conn, err: err}:
		case <-quit:
			if conn != nil {
				conn.Close()
			}
		}
	}()
}

func (c *twimeConnector) onDial(ev dialEvent) {
	if ev.gen != c.gen {
		if ev.conn != nil {
			ev.conn.Close()
		}
		return
	}
	if ev.err != nil {
		delay := c.backoff.NextBackOff()
		c.log.Warn("connect failed", zap.Stringer("endpoint", ev.ep), zap.Error(ev.err), zap.Duration("retry", delay))
		c.dial(ev.ep, delay)
		return
	}
	c.conn = ev.conn
	go c.readLoop(c.gen, ev.conn, c.quit)
	c.session.OnConnected()
}

func (c *twimeConnector) readLoop(gen uint64, conn net.Conn, quit <-chan struct{}) {
	for {
		buf := c.pool.get()
		n, err := conn.Read(buf)
		select {
		case c.reads <- readEvent{gen: gen, buf: buf, n: n, err: err}:
		case <-quit:
			return
		}
		if err != nil {
			return
		}
	}
}

func (c *twimeConnector) onRead(ev readEvent) {
	if ev.gen != c.gen {
		c.pool.put(ev.buf)
		return
	}
	c.pending = append(c.pending, ev.buf[:ev.n]...)
	c.pool.put(ev.buf)

	if len(c.pending) > 0 {
		n, err := c.session.OnBytes(c.pending)
		if err != nil {
			c.log.Info("exit requested by message handler", zap.Error(err))
			c.exit(err)
			return
		}
		if n < 0 {
			return
		}
		c.pending = c.pending[:copy(c.pending, c.pending[n:])]
	}
	if ev.err != nil && ev.gen == c.gen {
		c.session.OnConnectionLost(ev.err)
	}
}
