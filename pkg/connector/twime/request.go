package twime

import (
	"time"

	"github.com/robaho/go-twime/pkg/common"
	"github.com/robaho/go-twime/pkg/protocol"
)

type RequestKind int

const (
	NewRequest RequestKind = iota
	CancelRequest
	ReplaceRequest
	MassCancelRequest
)

func (k RequestKind) String() string {
	switch k {
	case NewRequest:
		return "new"
	case CancelRequest:
		return "cancel"
	case ReplaceRequest:
		return "replace"
	case MassCancelRequest:
		return "mass-cancel"
	}
	return "unknown"
}

type RequestStatus int

const (
	// sent, not yet acknowledged
	Indicated RequestStatus = iota
	// acknowledged by the exchange
	Confirmed
	Completed
	Failed
)

// Request is one in-flight order request, identified by the ClOrdID it was sent with.
type Request struct {
	ID     uint64
	Kind   RequestKind
	Status RequestStatus
	// nil for a mass cancel
	Order *common.Order

	SecurityID int32
	Side       uint8
	Price      protocol.Decimal5
	Qty        uint32
	LinkID     int32

	Sent time.Time
	// exchange time of the last response
	Confirmed time.Time
}

func (r *Request) IsTerminal() bool {
	return r.Status == Completed || r.Status == Failed
}

// Execution is a decoded single or multileg execution report
type Execution struct {
	ClOrdID    uint64
	OrderID    int64
	TradeID    int64
	SecurityID int32
	LinkID     int32
	Side       uint8
	Price      protocol.Decimal5
	Qty        uint32
	Leaves     uint32
	IsLeg      bool
	Time       time.Time
}

// Correlator resolves exchange responses to the requests that caused them. A nil request with a nil error means
// the request is not (or no longer) known, which the caller tolerates. All methods are called from the session
// goroutine.
type Correlator interface {
	ConfirmNew(clOrdID uint64, orderID int64, price protocol.Decimal5, qty uint32, ts time.Time) (*Request, error)
	Reject(clOrdID uint64, reason int32, ts time.Time) (*Request, error)
	// qty is the quantity removed from the book
	Cancel(clOrdID uint64, orderID int64, qty uint32, ts time.Time) (*Request, error)
	Replace(clOrdID uint64, orderID int64, prevOrderID int64, price protocol.Decimal5, qty uint32, ts time.Time) (*Request, error)
	Trade(e *Execution) (*Request, error)
	MassCancelled(clOrdID uint64, affected int32, reason int32, ts time.Time) (*Request, error)
}
