package exchange

import (
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/robaho/go-twime/pkg/protocol"
)

// retransmission limits of the two endpoints, per request
const (
	mainMaxResend     = 10
	recoveryMaxResend = 1000
)

const tradingSessionID = 1

// Gateway accepts TWIME connections for the exchange. Every credential is one logical session,
// its outbound sequence and message history survive reconnects.
type Gateway struct {
	e   *Exchange
	log *zap.Logger

	mu        sync.Mutex
	accounts  map[string]*account
	listeners []net.Listener
	conns     map[*gatewayConn]struct{}
	closed    bool
	wg        sync.WaitGroup
}

func NewGateway(e *Exchange, log *zap.Logger) *Gateway {
	return &Gateway{e: e, log: log, accounts: make(map[string]*account), conns: make(map[*gatewayConn]struct{})}
}

func (g *Gateway) Exchange() *Exchange {
	return g.e
}

// Listen serves addr as the main endpoint, or as the recovery endpoint which only answers
// retransmit requests. It returns the bound address, so addr may use port 0.
func (g *Gateway) Listen(addr string, recovery bool) (net.Addr, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrap(err, "gateway listen")
	}
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		l.Close()
		return nil, errors.New("gateway closed")
	}
	g.listeners = append(g.listeners, l)
	g.mu.Unlock()

	g.log.Info("gateway listening", zap.Stringer("addr", l.Addr()), zap.Bool("recovery", recovery))

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			g.serve(conn, recovery)
		}
	}()
	return l.Addr(), nil
}

func (g *Gateway) serve(conn net.Conn, recovery bool) {
	c := newGatewayConn(g, conn, recovery)
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		conn.Close()
		return
	}
	g.conns[c] = struct{}{}
	g.mu.Unlock()

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		c.run()
		g.mu.Lock()
		delete(g.conns, c)
		g.mu.Unlock()
	}()
}

// Close stops accepting and drops every connection. The books and session histories are kept.
func (g *Gateway) Close() {
	g.mu.Lock()
	g.closed = true
	for _, l := range g.listeners {
		l.Close()
	}
	for c := range g.conns {
		c.close()
	}
	g.mu.Unlock()
	g.wg.Wait()
}

func (g *Gateway) account(credentials string) *account {
	g.mu.Lock()
	defer g.mu.Unlock()
	a, ok := g.accounts[credentials]
	if !ok {
		a = &account{id: credentials, g: g}
		g.accounts[credentials] = a
	}
	return a
}

func (g *Gateway) lookup(credentials string) *account {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.accounts[credentials]
}

func (g *Gateway) allAccounts() []*account {
	g.mu.Lock()
	defer g.mu.Unlock()
	accounts := make([]*account, 0, len(g.accounts))
	for _, a := range g.accounts {
		accounts = append(accounts, a)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].id < accounts[j].id })
	return accounts
}

// Terminate ends the main connection of the session with the code, as the exchange does on a
// violation or at the end of the day
func (g *Gateway) Terminate(credentials string, code protocol.TerminationCode) bool {
	a := g.lookup(credentials)
	if a == nil {
		return false
	}
	c := a.connection()
	if c == nil {
		return false
	}
	c.write(protocol.Encode(&protocol.Terminate{Code: code}))
	c.close()
	return true
}

// Drop closes the main connection of the session without a Terminate
func (g *Gateway) Drop(credentials string) bool {
	a := g.lookup(credentials)
	if a == nil {
		return false
	}
	c := a.connection()
	if c == nil {
		return false
	}
	c.close()
	return true
}

// SystemEvent is sent to every session
func (g *Gateway) SystemEvent(event uint8) {
	for _, a := range g.allAccounts() {
		a.publish(&protocol.SystemEvent{Timestamp: protocol.Timestamp(time.Now()), TradingSessionID: tradingSessionID, TradSesEvent: event})
	}
}

// EmptyBook removes every order from every book and tells every session
func (g *Gateway) EmptyBook() int {
	n := g.e.ClearBooks()
	for _, a := range g.allAccounts() {
		a.publish(&protocol.EmptyBook{Timestamp: protocol.Timestamp(time.Now())})
	}
	return n
}

// Sessions lists each session with its next outbound sequence number and whether it is connected
func (g *Gateway) Sessions() string {
	var s []string
	for _, a := range g.allAccounts() {
		a.Lock()
		state := "offline"
		if a.live != nil {
			state = "live"
		} else if a.conn != nil {
			state = "pending"
		}
		s = append(s, a.id+"("+state+" next="+strconv.FormatUint(a.nextSeq(), 10)+")")
		a.Unlock()
	}
	return strings.Join(s, ",")
}

// account is one logical TWIME session
type account struct {
	sync.Mutex
	id string
	g  *Gateway
	// application messages, history[i] carries sequence number i+1
	history [][]byte
	// the established main connection, and the same connection once it is caught up
	conn *gatewayConn
	live *gatewayConn
	// next inbound application sequence number
	nextIn uint64
}

func (a *account) SessionID() string {
	return a.id
}

func (a *account) nextSeq() uint64 {
	return uint64(len(a.history)) + 1
}

func (a *account) connection() *gatewayConn {
	a.Lock()
	defer a.Unlock()
	return a.conn
}

// publish assigns the next sequence number to m, it is only written when the client is caught up
func (a *account) publish(m protocol.Message) {
	a.Lock()
	defer a.Unlock()
	b := protocol.Encode(m)
	a.history = append(a.history, b)
	if a.live != nil {
		a.live.write(b)
	}
}

// goLive flushes what the client has not seen since from and starts streaming. Caller holds the lock.
func (a *account) goLive(c *gatewayConn, from uint64) {
	if a.conn != c || a.live == c {
		return
	}
	for seq := from; seq < a.nextSeq(); seq++ {
		c.write(a.history[seq-1])
	}
	a.live = c
	c.log.Debug("session live", zap.Uint64("from", from), zap.Uint64("next", a.nextSeq()))
}

func (a *account) detach(c *gatewayConn) {
	a.Lock()
	defer a.Unlock()
	if a.conn == c {
		a.conn = nil
	}
	if a.live == c {
		a.live = nil
	}
}
