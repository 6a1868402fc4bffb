package protocol

import (
	"encoding/binary"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Message is a fixed layout TWIME body. PutBody and Decode operate on exactly BlockLength bytes.
type Message interface {
	TemplateID() uint16
	BlockLength() int
	PutBody(b []byte)
	Decode(b []byte)
}

// Append encodes header and body of m onto dst
func Append(dst []byte, m Message) []byte {
	n := m.BlockLength()
	off := len(dst)
	dst = append(dst, make([]byte, HeaderSize+n)...)
	h := Header{BlockLength: uint16(n), TemplateID: m.TemplateID(), SchemaID: SchemaID, Version: SchemaVersion}
	h.put(dst[off:])
	m.PutBody(dst[off+HeaderSize:])
	return dst
}

func Encode(m Message) []byte {
	return Append(make([]byte, 0, HeaderSize+m.BlockLength()), m)
}

var ErrUnknownTemplate = errors.New("unknown template id")

// Decode allocates a typed message for the frame. The connector hot path decodes into
// stack values instead, this is for the simulator and tools.
func Decode(f Frame) (Message, error) {
	m := newMessage(f.TemplateID)
	if m == nil {
		return nil, errors.Wrapf(ErrUnknownTemplate, "tid %d", f.TemplateID)
	}
	m.Decode(f.Body)
	return m, nil
}

func newMessage(tid uint16) Message {
	switch tid {
	case TidEstablish:
		return new(Establish)
	case TidEstablishmentAck:
		return new(EstablishmentAck)
	case TidEstablishmentReject:
		return new(EstablishmentReject)
	case TidTerminate:
		return new(Terminate)
	case TidRetransmitRequest:
		return new(RetransmitRequest)
	case TidRetransmission:
		return new(Retransmission)
	case TidSequence:
		return new(Sequence)
	case TidFloodReject:
		return new(FloodReject)
	case TidSessionReject:
		return new(SessionReject)
	case TidBusinessMessageReject:
		return new(BusinessMessageReject)
	case TidNewOrderSingle:
		return new(NewOrderSingle)
	case TidOrderMassCancelRequest:
		return new(OrderMassCancelRequest)
	case TidOrderCancelRequest:
		return new(OrderCancelRequest)
	case TidOrderReplaceRequest:
		return new(OrderReplaceRequest)
	case TidNewOrderReject:
		return new(NewOrderReject)
	case TidOrderCancelResponse:
		return new(OrderCancelResponse)
	case TidOrderCancelReject:
		return new(OrderCancelReject)
	case TidOrderReplaceResponse:
		return new(OrderReplaceResponse)
	case TidOrderReplaceReject:
		return new(OrderReplaceReject)
	case TidOrderMassCancelResponse:
		return new(OrderMassCancelResponse)
	case TidExecutionSingleReport:
		return new(ExecutionSingleReport)
	case TidExecutionMultilegReport:
		return new(ExecutionMultilegReport)
	case TidEmptyBook:
		return new(EmptyBook)
	case TidSystemEvent:
		return new(SystemEvent)
	case TidNewOrderSingleResponse:
		return new(NewOrderSingleResponse)
	}
	return nil
}

var msgSizes = make(map[uint16]int)

func init() {
	for tid := range templateNames {
		if m := newMessage(tid); m != nil {
			msgSizes[tid] = HeaderSize + m.BlockLength()
		}
	}
}

// MsgSize is the total frame size (header included) for a known template id
func MsgSize(tid uint16) (int, bool) {
	n, ok := msgSizes[tid]
	return n, ok
}

// IsApplication is true for messages that consume a sequence number
func IsApplication(tid uint16) bool {
	return tid == TidBusinessMessageReject || tid >= TidNewOrderSingle
}

func Timestamp(t time.Time) uint64 {
	return uint64(t.UnixNano())
}

func ToTime(ns uint64) time.Time {
	return time.Unix(0, int64(ns))
}

// field cursors

type putter struct {
	b   []byte
	off int
}

func (p *putter) u8(v uint8) {
	p.b[p.off] = v
	p.off++
}
func (p *putter) u32(v uint32) {
	binary.LittleEndian.PutUint32(p.b[p.off:], v)
	p.off += 4
}
func (p *putter) i32(v int32) {
	p.u32(uint32(v))
}
func (p *putter) u64(v uint64) {
	binary.LittleEndian.PutUint64(p.b[p.off:], v)
	p.off += 8
}
func (p *putter) i64(v int64) {
	p.u64(uint64(v))
}
func (p *putter) str(s string, n int) {
	copy(p.b[p.off:p.off+n], s)
	for i := p.off + len(s); i < p.off+n; i++ {
		p.b[i] = 0
	}
	p.off += n
}

type getter struct {
	b   []byte
	off int
}

func (g *getter) u8() uint8 {
	v := g.b[g.off]
	g.off++
	return v
}
func (g *getter) u32() uint32 {
	v := binary.LittleEndian.Uint32(g.b[g.off:])
	g.off += 4
	return v
}
func (g *getter) i32() int32 {
	return int32(g.u32())
}
func (g *getter) u64() uint64 {
	v := binary.LittleEndian.Uint64(g.b[g.off:])
	g.off += 8
	return v
}
func (g *getter) i64() int64 {
	return int64(g.u64())
}
func (g *getter) str(n int) string {
	s := strings.TrimRight(string(g.b[g.off:g.off+n]), "\x00")
	g.off += n
	return s
}

const (
	credentialsLen   = 20
	accountLen       = 7
	securityGroupLen = 25
)

// session level

type Establish struct {
	Timestamp         uint64
	KeepaliveInterval uint32 // ms
	Credentials       string
}

func (*Establish) TemplateID() uint16 { return TidEstablish }
func (*Establish) BlockLength() int   { return 8 + 4 + credentialsLen }
func (m *Establish) PutBody(b []byte) {
	p := putter{b: b}
	p.u64(m.Timestamp)
	p.u32(m.KeepaliveInterval)
	p.str(m.Credentials, credentialsLen)
}
func (m *Establish) Decode(b []byte) {
	g := getter{b: b}
	m.Timestamp = g.u64()
	m.KeepaliveInterval = g.u32()
	m.Credentials = g.str(credentialsLen)
}

type EstablishmentAck struct {
	RequestTimestamp  uint64
	KeepaliveInterval uint32
	NextSeqNo         uint64
}

func (*EstablishmentAck) TemplateID() uint16 { return TidEstablishmentAck }
func (*EstablishmentAck) BlockLength() int   { return 8 + 4 + 8 }
func (m *EstablishmentAck) PutBody(b []byte) {
	p := putter{b: b}
	p.u64(m.RequestTimestamp)
	p.u32(m.KeepaliveInterval)
	p.u64(m.NextSeqNo)
}
func (m *EstablishmentAck) Decode(b []byte) {
	g := getter{b: b}
	m.RequestTimestamp = g.u64()
	m.KeepaliveInterval = g.u32()
	m.NextSeqNo = g.u64()
}

type EstablishmentReject struct {
	RequestTimestamp uint64
	Code             EstablishmentRejectCode
}

func (*EstablishmentReject) TemplateID() uint16 { return TidEstablishmentReject }
func (*EstablishmentReject) BlockLength() int   { return 8 + 1 }
func (m *EstablishmentReject) PutBody(b []byte) {
	p := putter{b: b}
	p.u64(m.RequestTimestamp)
	p.u8(uint8(m.Code))
}
func (m *EstablishmentReject) Decode(b []byte) {
	g := getter{b: b}
	m.RequestTimestamp = g.u64()
	m.Code = EstablishmentRejectCode(g.u8())
}

type Terminate struct {
	Code TerminationCode
}

func (*Terminate) TemplateID() uint16 { return TidTerminate }
func (*Terminate) BlockLength() int   { return 1 }
func (m *Terminate) PutBody(b []byte) { b[0] = uint8(m.Code) }
func (m *Terminate) Decode(b []byte)  { m.Code = TerminationCode(b[0]) }

type RetransmitRequest struct {
	Timestamp uint64
	FromSeqNo uint64
	Count     uint32
}

func (*RetransmitRequest) TemplateID() uint16 { return TidRetransmitRequest }
func (*RetransmitRequest) BlockLength() int   { return 8 + 8 + 4 }
func (m *RetransmitRequest) PutBody(b []byte) {
	p := putter{b: b}
	p.u64(m.Timestamp)
	p.u64(m.FromSeqNo)
	p.u32(m.Count)
}
func (m *RetransmitRequest) Decode(b []byte) {
	g := getter{b: b}
	m.Timestamp = g.u64()
	m.FromSeqNo = g.u64()
	m.Count = g.u32()
}

type Retransmission struct {
	NextSeqNo        uint64
	RequestTimestamp uint64
	Count            uint32
}

func (*Retransmission) TemplateID() uint16 { return TidRetransmission }
func (*Retransmission) BlockLength() int   { return 8 + 8 + 4 }
func (m *Retransmission) PutBody(b []byte) {
	p := putter{b: b}
	p.u64(m.NextSeqNo)
	p.u64(m.RequestTimestamp)
	p.u32(m.Count)
}
func (m *Retransmission) Decode(b []byte) {
	g := getter{b: b}
	m.NextSeqNo = g.u64()
	m.RequestTimestamp = g.u64()
	m.Count = g.u32()
}

type Sequence struct {
	NextSeqNo uint64 // NullSeqNo when absent
}

func (*Sequence) TemplateID() uint16 { return TidSequence }
func (*Sequence) BlockLength() int   { return 8 }
func (m *Sequence) PutBody(b []byte) { binary.LittleEndian.PutUint64(b, m.NextSeqNo) }
func (m *Sequence) Decode(b []byte)  { m.NextSeqNo = binary.LittleEndian.Uint64(b) }

type FloodReject struct {
	ClOrdID       uint64
	QueueSize     uint32
	PenaltyRemain uint32
}

func (*FloodReject) TemplateID() uint16 { return TidFloodReject }
func (*FloodReject) BlockLength() int   { return 8 + 4 + 4 }
func (m *FloodReject) PutBody(b []byte) {
	p := putter{b: b}
	p.u64(m.ClOrdID)
	p.u32(m.QueueSize)
	p.u32(m.PenaltyRemain)
}
func (m *FloodReject) Decode(b []byte) {
	g := getter{b: b}
	m.ClOrdID = g.u64()
	m.QueueSize = g.u32()
	m.PenaltyRemain = g.u32()
}

type SessionReject struct {
	ClOrdID  uint64
	RefTagID uint32
	Reason   uint8
}

func (*SessionReject) TemplateID() uint16 { return TidSessionReject }
func (*SessionReject) BlockLength() int   { return 8 + 4 + 1 }
func (m *SessionReject) PutBody(b []byte) {
	p := putter{b: b}
	p.u64(m.ClOrdID)
	p.u32(m.RefTagID)
	p.u8(m.Reason)
}
func (m *SessionReject) Decode(b []byte) {
	g := getter{b: b}
	m.ClOrdID = g.u64()
	m.RefTagID = g.u32()
	m.Reason = g.u8()
}

// application level, client to gateway

type NewOrderSingle struct {
	ClOrdID      uint64
	ExpireDate   uint64
	Price        Decimal5
	SecurityID   int32
	ClOrdLinkID  int32
	OrderQty     uint32
	ComplianceID uint8
	TimeInForce  uint8
	Side         uint8
	CheckLimit   uint8
	Account      string
}

func (*NewOrderSingle) TemplateID() uint16 { return TidNewOrderSingle }
func (*NewOrderSingle) BlockLength() int   { return 8*3 + 4*3 + 4 + accountLen }
func (m *NewOrderSingle) PutBody(b []byte) {
	p := putter{b: b}
	p.u64(m.ClOrdID)
	p.u64(m.ExpireDate)
	p.i64(int64(m.Price))
	p.i32(m.SecurityID)
	p.i32(m.ClOrdLinkID)
	p.u32(m.OrderQty)
	p.u8(m.ComplianceID)
	p.u8(m.TimeInForce)
	p.u8(m.Side)
	p.u8(m.CheckLimit)
	p.str(m.Account, accountLen)
}
func (m *NewOrderSingle) Decode(b []byte) {
	g := getter{b: b}
	m.ClOrdID = g.u64()
	m.ExpireDate = g.u64()
	m.Price = Decimal5(g.i64())
	m.SecurityID = g.i32()
	m.ClOrdLinkID = g.i32()
	m.OrderQty = g.u32()
	m.ComplianceID = g.u8()
	m.TimeInForce = g.u8()
	m.Side = g.u8()
	m.CheckLimit = g.u8()
	m.Account = g.str(accountLen)
}

type OrderMassCancelRequest struct {
	ClOrdID       uint64
	ClOrdLinkID   int32
	SecurityID    int32 // 0 for all
	SecurityType  uint8
	Side          uint8 // 0 for both
	Account       string
	SecurityGroup string
}

func (*OrderMassCancelRequest) TemplateID() uint16 { return TidOrderMassCancelRequest }
func (*OrderMassCancelRequest) BlockLength() int {
	return 8 + 4 + 4 + 1 + 1 + accountLen + securityGroupLen
}
func (m *OrderMassCancelRequest) PutBody(b []byte) {
	p := putter{b: b}
	p.u64(m.ClOrdID)
	p.i32(m.ClOrdLinkID)
	p.i32(m.SecurityID)
	p.u8(m.SecurityType)
	p.u8(m.Side)
	p.str(m.Account, accountLen)
	p.str(m.SecurityGroup, securityGroupLen)
}
func (m *OrderMassCancelRequest) Decode(b []byte) {
	g := getter{b: b}
	m.ClOrdID = g.u64()
	m.ClOrdLinkID = g.i32()
	m.SecurityID = g.i32()
	m.SecurityType = g.u8()
	m.Side = g.u8()
	m.Account = g.str(accountLen)
	m.SecurityGroup = g.str(securityGroupLen)
}

type OrderCancelRequest struct {
	ClOrdID uint64
	OrderID int64
	Account string
}

func (*OrderCancelRequest) TemplateID() uint16 { return TidOrderCancelRequest }
func (*OrderCancelRequest) BlockLength() int   { return 8 + 8 + accountLen }
func (m *OrderCancelRequest) PutBody(b []byte) {
	p := putter{b: b}
	p.u64(m.ClOrdID)
	p.i64(m.OrderID)
	p.str(m.Account, accountLen)
}
func (m *OrderCancelRequest) Decode(b []byte) {
	g := getter{b: b}
	m.ClOrdID = g.u64()
	m.OrderID = g.i64()
	m.Account = g.str(accountLen)
}

type OrderReplaceRequest struct {
	ClOrdID     uint64
	OrderID     int64
	Price       Decimal5
	OrderQty    uint32
	ClOrdLinkID int32
	Mode        uint8
	CheckLimit  uint8
	Account     string
}

func (*OrderReplaceRequest) TemplateID() uint16 { return TidOrderReplaceRequest }
func (*OrderReplaceRequest) BlockLength() int   { return 8*3 + 4*2 + 2 + accountLen }
func (m *OrderReplaceRequest) PutBody(b []byte) {
	p := putter{b: b}
	p.u64(m.ClOrdID)
	p.i64(m.OrderID)
	p.i64(int64(m.Price))
	p.u32(m.OrderQty)
	p.i32(m.ClOrdLinkID)
	p.u8(m.Mode)
	p.u8(m.CheckLimit)
	p.str(m.Account, accountLen)
}
func (m *OrderReplaceRequest) Decode(b []byte) {
	g := getter{b: b}
	m.ClOrdID = g.u64()
	m.OrderID = g.i64()
	m.Price = Decimal5(g.i64())
	m.OrderQty = g.u32()
	m.ClOrdLinkID = g.i32()
	m.Mode = g.u8()
	m.CheckLimit = g.u8()
	m.Account = g.str(accountLen)
}

// application level, gateway to client

// RejectBody is shared by all of the simple reject responses
type RejectBody struct {
	ClOrdID      uint64
	Timestamp    uint64
	OrdRejReason int32
}

func (*RejectBody) BlockLength() int { return 8 + 8 + 4 }
func (m *RejectBody) PutBody(b []byte) {
	p := putter{b: b}
	p.u64(m.ClOrdID)
	p.u64(m.Timestamp)
	p.i32(m.OrdRejReason)
}
func (m *RejectBody) Decode(b []byte) {
	g := getter{b: b}
	m.ClOrdID = g.u64()
	m.Timestamp = g.u64()
	m.OrdRejReason = g.i32()
}

type BusinessMessageReject struct{ RejectBody }
type NewOrderReject struct{ RejectBody }
type OrderCancelReject struct{ RejectBody }
type OrderReplaceReject struct{ RejectBody }

func (*BusinessMessageReject) TemplateID() uint16 { return TidBusinessMessageReject }
func (*NewOrderReject) TemplateID() uint16        { return TidNewOrderReject }
func (*OrderCancelReject) TemplateID() uint16     { return TidOrderCancelReject }
func (*OrderReplaceReject) TemplateID() uint16    { return TidOrderReplaceReject }

type NewOrderSingleResponse struct {
	ClOrdID          uint64
	Timestamp        uint64
	ExpireDate       uint64
	OrderID          int64
	Flags            int64
	Price            Decimal5
	SecurityID       int32
	OrderQty         uint32
	TradingSessionID int32
	ClOrdLinkID      int32
	Side             uint8
}

func (*NewOrderSingleResponse) TemplateID() uint16 { return TidNewOrderSingleResponse }
func (*NewOrderSingleResponse) BlockLength() int   { return 8*6 + 4*4 + 1 }
func (m *NewOrderSingleResponse) PutBody(b []byte) {
	p := putter{b: b}
	p.u64(m.ClOrdID)
	p.u64(m.Timestamp)
	p.u64(m.ExpireDate)
	p.i64(m.OrderID)
	p.i64(m.Flags)
	p.i64(int64(m.Price))
	p.i32(m.SecurityID)
	p.u32(m.OrderQty)
	p.i32(m.TradingSessionID)
	p.i32(m.ClOrdLinkID)
	p.u8(m.Side)
}
func (m *NewOrderSingleResponse) Decode(b []byte) {
	g := getter{b: b}
	m.ClOrdID = g.u64()
	m.Timestamp = g.u64()
	m.ExpireDate = g.u64()
	m.OrderID = g.i64()
	m.Flags = g.i64()
	m.Price = Decimal5(g.i64())
	m.SecurityID = g.i32()
	m.OrderQty = g.u32()
	m.TradingSessionID = g.i32()
	m.ClOrdLinkID = g.i32()
	m.Side = g.u8()
}

type OrderCancelResponse struct {
	ClOrdID          uint64
	Timestamp        uint64
	OrderID          int64
	Flags            int64
	OrderQty         uint32 // quantity removed from the book
	TradingSessionID int32
	ClOrdLinkID      int32
	Side             uint8
}

func (*OrderCancelResponse) TemplateID() uint16 { return TidOrderCancelResponse }
func (*OrderCancelResponse) BlockLength() int   { return 8*4 + 4*3 + 1 }
func (m *OrderCancelResponse) PutBody(b []byte) {
	p := putter{b: b}
	p.u64(m.ClOrdID)
	p.u64(m.Timestamp)
	p.i64(m.OrderID)
	p.i64(m.Flags)
	p.u32(m.OrderQty)
	p.i32(m.TradingSessionID)
	p.i32(m.ClOrdLinkID)
	p.u8(m.Side)
}
func (m *OrderCancelResponse) Decode(b []byte) {
	g := getter{b: b}
	m.ClOrdID = g.u64()
	m.Timestamp = g.u64()
	m.OrderID = g.i64()
	m.Flags = g.i64()
	m.OrderQty = g.u32()
	m.TradingSessionID = g.i32()
	m.ClOrdLinkID = g.i32()
	m.Side = g.u8()
}

type OrderReplaceResponse struct {
	ClOrdID          uint64
	Timestamp        uint64
	OrderID          int64
	PrevOrderID      int64
	Flags            int64
	Price            Decimal5
	OrderQty         uint32
	TradingSessionID int32
	ClOrdLinkID      int32
	Side             uint8
}

func (*OrderReplaceResponse) TemplateID() uint16 { return TidOrderReplaceResponse }
func (*OrderReplaceResponse) BlockLength() int   { return 8*6 + 4*3 + 1 }
func (m *OrderReplaceResponse) PutBody(b []byte) {
	p := putter{b: b}
	p.u64(m.ClOrdID)
	p.u64(m.Timestamp)
	p.i64(m.OrderID)
	p.i64(m.PrevOrderID)
	p.i64(m.Flags)
	p.i64(int64(m.Price))
	p.u32(m.OrderQty)
	p.i32(m.TradingSessionID)
	p.i32(m.ClOrdLinkID)
	p.u8(m.Side)
}
func (m *OrderReplaceResponse) Decode(b []byte) {
	g := getter{b: b}
	m.ClOrdID = g.u64()
	m.Timestamp = g.u64()
	m.OrderID = g.i64()
	m.PrevOrderID = g.i64()
	m.Flags = g.i64()
	m.Price = Decimal5(g.i64())
	m.OrderQty = g.u32()
	m.TradingSessionID = g.i32()
	m.ClOrdLinkID = g.i32()
	m.Side = g.u8()
}

type OrderMassCancelResponse struct {
	ClOrdID             uint64
	Timestamp           uint64
	TotalAffectedOrders int32
	OrdRejReason        int32
}

func (*OrderMassCancelResponse) TemplateID() uint16 { return TidOrderMassCancelResponse }
func (*OrderMassCancelResponse) BlockLength() int   { return 8 + 8 + 4 + 4 }
func (m *OrderMassCancelResponse) PutBody(b []byte) {
	p := putter{b: b}
	p.u64(m.ClOrdID)
	p.u64(m.Timestamp)
	p.i32(m.TotalAffectedOrders)
	p.i32(m.OrdRejReason)
}
func (m *OrderMassCancelResponse) Decode(b []byte) {
	g := getter{b: b}
	m.ClOrdID = g.u64()
	m.Timestamp = g.u64()
	m.TotalAffectedOrders = g.i32()
	m.OrdRejReason = g.i32()
}

type ExecutionSingleReport struct {
	ClOrdID          uint64
	Timestamp        uint64
	OrderID          int64
	TrdMatchID       int64
	Flags            int64
	LastPx           Decimal5
	LastQty          uint32
	OrderQty         uint32 // leaves
	TradingSessionID int32
	ClOrdLinkID      int32
	SecurityID       int32
	Side             uint8
}

func (*ExecutionSingleReport) TemplateID() uint16 { return TidExecutionSingleReport }
func (*ExecutionSingleReport) BlockLength() int   { return 8*6 + 4*5 + 1 }
func (m *ExecutionSingleReport) PutBody(b []byte) {
	p := putter{b: b}
	p.u64(m.ClOrdID)
	p.u64(m.Timestamp)
	p.i64(m.OrderID)
	p.i64(m.TrdMatchID)
	p.i64(m.Flags)
	p.i64(int64(m.LastPx))
	p.u32(m.LastQty)
	p.u32(m.OrderQty)
	p.i32(m.TradingSessionID)
	p.i32(m.ClOrdLinkID)
	p.i32(m.SecurityID)
	p.u8(m.Side)
}
func (m *ExecutionSingleReport) Decode(b []byte) {
	g := getter{b: b}
	m.ClOrdID = g.u64()
	m.Timestamp = g.u64()
	m.OrderID = g.i64()
	m.TrdMatchID = g.i64()
	m.Flags = g.i64()
	m.LastPx = Decimal5(g.i64())
	m.LastQty = g.u32()
	m.OrderQty = g.u32()
	m.TradingSessionID = g.i32()
	m.ClOrdLinkID = g.i32()
	m.SecurityID = g.i32()
	m.Side = g.u8()
}

type ExecutionMultilegReport struct {
	ClOrdID          uint64
	Timestamp        uint64
	OrderID          int64
	TrdMatchID       int64
	Flags            int64
	LastPx           Decimal5
	LegPrice         Decimal5
	LastQty          uint32
	OrderQty         uint32
	TradingSessionID int32
	ClOrdLinkID      int32
	SecurityID       int32
	Side             uint8
}

func (*ExecutionMultilegReport) TemplateID() uint16 { return TidExecutionMultilegReport }
func (*ExecutionMultilegReport) BlockLength() int   { return 8*7 + 4*5 + 1 }
func (m *ExecutionMultilegReport) PutBody(b []byte) {
	p := putter{b: b}
	p.u64(m.ClOrdID)
	p.u64(m.Timestamp)
	p.i64(m.OrderID)
	p.i64(m.TrdMatchID)
	p.i64(m.Flags)
	p.i64(int64(m.LastPx))
	p.i64(int64(m.LegPrice))
	p.u32(m.LastQty)
	p.u32(m.OrderQty)
	p.i32(m.TradingSessionID)
	p.i32(m.ClOrdLinkID)
	p.i32(m.SecurityID)
	p.u8(m.Side)
}
func (m *ExecutionMultilegReport) Decode(b []byte) {
	g := getter{b: b}
	m.ClOrdID = g.u64()
	m.Timestamp = g.u64()
	m.OrderID = g.i64()
	m.TrdMatchID = g.i64()
	m.Flags = g.i64()
	m.LastPx = Decimal5(g.i64())
	m.LegPrice = Decimal5(g.i64())
	m.LastQty = g.u32()
	m.OrderQty = g.u32()
	m.TradingSessionID = g.i32()
	m.ClOrdLinkID = g.i32()
	m.SecurityID = g.i32()
	m.Side = g.u8()
}

type EmptyBook struct {
	Timestamp uint64
}

func (*EmptyBook) TemplateID() uint16 { return TidEmptyBook }
func (*EmptyBook) BlockLength() int   { return 8 }
func (m *EmptyBook) PutBody(b []byte) { binary.LittleEndian.PutUint64(b, m.Timestamp) }
func (m *EmptyBook) Decode(b []byte)  { m.Timestamp = binary.LittleEndian.Uint64(b) }

type SystemEvent struct {
	Timestamp        uint64
	TradingSessionID int32
	TradSesEvent     uint8
}

func (*SystemEvent) TemplateID() uint16 { return TidSystemEvent }
func (*SystemEvent) BlockLength() int   { return 8 + 4 + 1 }
func (m *SystemEvent) PutBody(b []byte) {
	p := putter{b: b}
	p.u64(m.Timestamp)
	p.i32(m.TradingSessionID)
	p.u8(m.TradSesEvent)
}
func (m *SystemEvent) Decode(b []byte) {
	g := getter{b: b}
	m.Timestamp = g.u64()
	m.TradingSessionID = g.i32()
	m.TradSesEvent = g.u8()
}
