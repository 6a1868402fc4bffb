package twime

import (
	"io"
	"net"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/pkg/errors"
	. "github.com/robaho/fixed"
	"go.uber.org/zap"

	. "github.com/robaho/go-twime/pkg/common"
	"github.com/robaho/go-twime/pkg/protocol"
)

// twimeConnector runs one TWIME session. The session, the request map and the connection are owned by the run
// goroutine, every public method hands its work to that goroutine and waits for the result.
type twimeConnector struct {
	cfg      Config
	callback ConnectorCallback
	log      *zap.Logger
	session  *Session
	orders   *requestMap
	store    SeqStore
	notify   *notifier
	pool     bufferPool

	connected StatusBool
	loggedIn  StatusBool
	// the session stopped without a restart pending
	stopped   StatusBool

	lifecycle sync.Mutex
	// sequence numbers come from the store on the first Connect only, later the session's own are kept
	restored  bool
	mailbox   chan func()
	reads     chan readEvent
	dials     chan dialEvent
	quit      chan struct{}
	// receives the error once when a message handler stops the session
	exited    chan error
	wg        sync.WaitGroup

	// owned by the run goroutine
	conn    net.Conn
	gen     uint64
	pending []byte
	backoff *backoff.ExponentialBackOff
	exitErr error
}

// NewConnector creates the connector for the session named by accountKey in props. The log output is usually
// os.Stdout, or the log view of the terminal client.
func NewConnector(callback ConnectorCallback, props Properties, accountKey string, logOutput io.Writer) (ExchangeConnector, error) {
	cfg, err := LoadConfig(props, accountKey)
	if err != nil {
		return nil, err
	}
	log := NewLogger(logOutput, props.GetBool("debug", false))
	return newConnector(cfg, callback, log), nil
}

func newConnector(cfg Config, callback ConnectorCallback, log *zap.Logger) *twimeConnector {
	c := &twimeConnector{
		cfg:      cfg,
		callback: callback,
		log:      log,
		mailbox:  make(chan func()),
		reads:    make(chan readEvent, 16),
		dials:    make(chan dialEvent, 1),
		exited:   make(chan error, 1),
		pending:  make([]byte, 0, readBufferSize),
	}
	c.backoff = backoff.NewExponentialBackOff()
	c.backoff.InitialInterval = cfg.Reconnect
	c.backoff.MaxInterval = 30 * cfg.Reconnect
	c.orders = newRequestMap(callback, c.post, log)
	c.session = NewSession(cfg, c, c.orders, log)
	return c
}

func (c *twimeConnector) IsConnected() bool {
	return c.loggedIn.IsTrue()
}

func (c *twimeConnector) GetExchangeCode() string {
	return c.cfg.AccountKey.Venue
}

// Connect starts the session and waits until it is logged on. The session keeps trying to connect in the
// background when this returns ConnectionFailed, Disconnect stops it.
func (c *twimeConnector) Connect() error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	if c.connected.IsTrue() {
		return AlreadyConnected
	}
	store, err := OpenSeqStore(c.cfg.SeqStore)
	if err != nil {
		return err
	}
	c.store = store
	if !c.restored {
		rxSN, txSN, err := store.Load(c.cfg.AccountKey.String())
		if err != nil {
			store.Close()
			return err
		}
		c.session.SetSeqNums(rxSN, txSN)
		c.restored = true
	} else {
		c.saveSeqNums()
	}
	c.log.Info("connecting", zap.Stringer("endpoint", c.cfg.Main), zap.Uint64("rxSN", c.session.RxSN()), zap.Uint64("txSN", c.session.TxSN()))

	c.notify = newNotifier()
	c.quit = make(chan struct{})
	c.stopped.SetFalse()
	c.exitErr = nil
	select {
	case <-c.exited:
	default:
	}
	c.connected.SetTrue()
	c.wg.Add(1)
	go c.run()

	c.call(func() error {
		c.backoff.Reset()
		c.session.Connecting()
		c.dial(c.cfg.Main, 0)
		return nil
	})

	if !c.loggedIn.WaitForTrue(c.cfg.ConnectWait) {
		return ConnectionFailed
	}
	return nil
}

// Disconnect logs off gracefully and stops the session goroutine. It returns ErrExitRun when a message handler
// stopped the session.
func (c *twimeConnector) Disconnect() error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	if !c.connected.IsTrue() {
		return NotConnected
	}
	c.call(func() error {
		c.session.Stop(true)
		return nil
	})
	if !c.stopped.WaitForTrue(c.cfg.LogoffTimeout + time.Second) {
		c.log.Warn("logoff did not complete, closing")
	}
	close(c.quit)
	c.wg.Wait()

	c.notify.close()
	err := c.store.Close()
	c.connected.SetFalse()
	if c.exitErr != nil {
		return c.exitErr
	}
	return err
}

func (c *twimeConnector) run() {
	defer c.wg.Done()

	tick := time.NewTicker(timerResolution(c.cfg.Heartbeat))
	defer tick.Stop()

	for {
		select {
		case <-c.quit:
			if c.session.State() != Disconnected {
				c.session.Stop(false)
			}
			c.closeConn()
			return
		case f := <-c.mailbox:
			f()
		case ev := <-c.dials:
			c.onDial(ev)
		case ev := <-c.reads:
			c.onRead(ev)
		case now := <-tick.C:
			c.session.OnTimer(now)
		}
	}
}

func timerResolution(heartbeat time.Duration) time.Duration {
	return max(min(heartbeat/4, 100*time.Millisecond), time.Millisecond)
}

// call runs f on the session goroutine
func (c *twimeConnector) call(f func() error) error {
	quit := c.quit
	if quit == nil {
		return NotConnected
	}
	done := make(chan error, 1)
	select {
	case c.mailbox <- func() { done <- f() }:
	case <-quit:
		return NotConnected
	}
	select {
	case err := <-done:
		return err
	case <-quit:
		return NotConnected
	}
}

func (c *twimeConnector) post(f func()) {
	c.notify.post(f)
}

// exit stops the session at once when a handler asked the process to exit
func (c *twimeConnector) exit(err error) {
	if c.exitErr == nil {
		c.exitErr = err
		c.exited <- err
	}
	c.session.Stop(false)
}

// Exited receives ErrExitRun, possibly wrapped, when a message handler stopped the session. The host should call
// Disconnect and shut down.
func (c *twimeConnector) Exited() <-chan error {
	return c.exited
}

func (c *twimeConnector) setLoggedIn(active bool) {
	if c.loggedIn.IsTrue() == active {
		return
	}
	if active {
		c.loggedIn.SetTrue()
	} else {
		c.loggedIn.SetFalse()
	}
	now := time.Now()
	c.post(func() { c.callback.OnConnectorStatus(active, now) })
}

func (c *twimeConnector) saveSeqNums() {
	if err := c.store.Save(c.cfg.AccountKey.String(), c.session.RxSN(), c.session.TxSN()); err != nil {
		c.log.Error("unable to save sequence numbers", zap.Error(err))
	}
}

func (c *twimeConnector) GetOrder(id OrderID) *Order {
	return c.orders.GetOrder(id)
}

func (c *twimeConnector) CreateOrder(order *Order) (OrderID, error) {
	if !c.loggedIn.IsTrue() {
		return -1, NotConnected
	}
	if order.OrderType != Limit {
		return -1, UnsupportedOrderType
	}
	qty, err := toQty(order.Quantity)
	if err != nil {
		return -1, err
	}
	price, err := protocol.Decimal5FromFixed(order.Price)
	if err != nil {
		return -1, err
	}

	var id OrderID = -1
	err = c.call(func() error {
		c.orders.addOrder(order)
		req := c.orders.add(NewRequest, order)
		req.Price, req.Qty = price, qty
		err := c.session.SendApplication(&protocol.NewOrderSingle{
			ClOrdID:     req.ID,
			Price:       price,
			SecurityID:  req.SecurityID,
			ClOrdLinkID: req.LinkID,
			OrderQty:    qty,
			TimeInForce: protocol.TimeInForceDay,
			Side:        req.Side,
			Account:     c.cfg.Account,
		})
		if err != nil {
			c.orders.remove(req)
			return err
		}
		id = order.Id
		return nil
	})
	return id, err
}

// ModifyOrder replaces the price and total quantity of an order, the quantity must exceed what is already filled
func (c *twimeConnector) ModifyOrder(id OrderID, price Fixed, quantity Fixed) error {
	if !c.loggedIn.IsTrue() {
		return NotConnected
	}
	p, err := protocol.Decimal5FromFixed(price)
	if err != nil {
		return err
	}
	return c.call(func() error {
		order, err := c.activeOrder(id)
		if err != nil {
			return err
		}
		order.RLock()
		leaves, err := toQty(quantity.Sub(order.Quantity.Sub(order.Remaining)))
		exchangeID := order.ExchangeId
		order.RUnlock()
		if err != nil {
			return err
		}

		req := c.orders.add(ReplaceRequest, order)
		req.Price, req.Qty = p, leaves
		err = c.session.SendApplication(&protocol.OrderReplaceRequest{
			ClOrdID:     req.ID,
			OrderID:     exchangeID,
			Price:       p,
			OrderQty:    leaves,
			ClOrdLinkID: req.LinkID,
			Mode:        1,
			Account:     c.cfg.Account,
		})
		if err != nil {
			c.orders.remove(req)
		}
		return err
	})
}

func (c *twimeConnector) CancelOrder(id OrderID) error {
	if !c.loggedIn.IsTrue() {
		return NotConnected
	}
	return c.call(func() error {
		order, err := c.activeOrder(id)
		if err != nil {
			return err
		}
		req := c.orders.add(CancelRequest, order)
		order.RLock()
		msg := &protocol.OrderCancelRequest{ClOrdID: req.ID, OrderID: order.ExchangeId, Account: c.cfg.Account}
		order.RUnlock()
		err = c.session.SendApplication(msg)
		if err != nil {
			c.orders.remove(req)
		}
		return err
	})
}

func (c *twimeConnector) CancelAll(instrument Instrument) error {
	if !c.loggedIn.IsTrue() {
		return NotConnected
	}
	return c.call(func() error {
		req := c.orders.add(MassCancelRequest, nil)
		msg := &protocol.OrderMassCancelRequest{ClOrdID: req.ID, Side: protocol.SideAll, Account: c.cfg.Account}
		if instrument != nil {
			msg.SecurityID = int32(instrument.ID())
			req.SecurityID = msg.SecurityID
		}
		err := c.session.SendApplication(msg)
		if err != nil {
			c.orders.remove(req)
		}
		return err
	})
}

// activeOrder returns an order that is booked at the exchange
func (c *twimeConnector) activeOrder(id OrderID) (*Order, error) {
	order := c.orders.GetOrder(id)
	if order == nil {
		return nil, OrderNotFound
	}
	order.RLock()
	defer order.RUnlock()
	if !order.IsActive() {
		return nil, OrderNotActive
	}
	if order.ExchangeId == 0 {
		return nil, errors.Wrap(OrderNotActive, "not acknowledged yet")
	}
	return order, nil
}

func toQty(f Fixed) (uint32, error) {
	q := f.Int()
	if q <= 0 || q > int64(^uint32(0)) || !NewI(q, 0).Equal(f) {
		return 0, errors.Wrap(InvalidQuantity, f.String())
	}
	return uint32(q), nil
}
