package common

import (
	"time"

	"github.com/pkg/errors"
	. "github.com/robaho/fixed"
)

type ExchangeConnector interface {
	IsConnected() bool
	Connect() error
	Disconnect() error

	CreateOrder(order *Order) (OrderID, error)
	ModifyOrder(order OrderID, price Fixed, quantity Fixed) error
	CancelOrder(order OrderID) error
	// cancel all open orders, or only those for the instrument if it is not nil
	CancelAll(instrument Instrument) error

	GetExchangeCode() string
}

// a fill on an order
type Fill struct {
	Instrument Instrument
	// the order is unlocked
	Order      *Order
	ExchangeID string
	Quantity   Fixed
	Price      Fixed
	Side       Side
	IsLegTrade bool
	TradeTime  time.Time
}

type ConnectorCallback interface {
	// the callback will have the order locked, and will unlock when the callback returns
	OnOrderStatus(*Order)
	OnFill(*Fill)
	// the connector has completed logon (active) or lost its session (inactive). the reason
	// for an inactive connector is only logged, it is not exposed here
	OnConnectorStatus(active bool, at time.Time)
}

var AlreadyConnected = errors.New("already connected")
var NotConnected = errors.New("not connected")
var ConnectionFailed = errors.New("connection failed")
var OrderNotFound = errors.New("order not found")
var OrderNotActive = errors.New("order not active")
var InvalidConnector = errors.New("invalid connector")
var UnknownInstrument = errors.New("unknown instrument")
var UnsupportedOrderType = errors.New("unsupported order type")
var InvalidQuantity = errors.New("invalid quantity")
