package protocol

import "strconv"

// template ids
const (
	TidEstablish             uint16 = 5000
	TidEstablishmentAck      uint16 = 5001
	TidEstablishmentReject   uint16 = 5002
	TidTerminate             uint16 = 5003
	TidRetransmitRequest     uint16 = 5004
	TidRetransmission        uint16 = 5005
	TidSequence              uint16 = 5006
	TidFloodReject           uint16 = 5007
	TidSessionReject         uint16 = 5008
	TidBusinessMessageReject uint16 = 5009

	TidNewOrderSingle         uint16 = 6000
	TidOrderMassCancelRequest uint16 = 6004
	TidOrderCancelRequest     uint16 = 6006
	TidOrderReplaceRequest    uint16 = 6007

	TidNewOrderReject          uint16 = 7002
	TidOrderCancelResponse     uint16 = 7003
	TidOrderCancelReject       uint16 = 7004
	TidOrderReplaceResponse    uint16 = 7005
	TidOrderReplaceReject      uint16 = 7006
	TidOrderMassCancelResponse uint16 = 7007
	TidExecutionSingleReport   uint16 = 7008
	TidExecutionMultilegReport uint16 = 7009
	TidEmptyBook               uint16 = 7010
	TidSystemEvent             uint16 = 7011
	TidNewOrderSingleResponse  uint16 = 7015
)

var templateNames = map[uint16]string{
	TidEstablish:               "Establish",
	TidEstablishmentAck:        "EstablishmentAck",
	TidEstablishmentReject:     "EstablishmentReject",
	TidTerminate:               "Terminate",
	TidRetransmitRequest:       "RetransmitRequest",
	TidRetransmission:          "Retransmission",
	TidSequence:                "Sequence",
	TidFloodReject:             "FloodReject",
	TidSessionReject:           "SessionReject",
	TidBusinessMessageReject:   "BusinessMessageReject",
	TidNewOrderSingle:          "NewOrderSingle",
	TidOrderMassCancelRequest:  "OrderMassCancelRequest",
	TidOrderCancelRequest:      "OrderCancelRequest",
	TidOrderReplaceRequest:     "OrderReplaceRequest",
	TidNewOrderReject:          "NewOrderReject",
	TidOrderCancelResponse:     "OrderCancelResponse",
	TidOrderCancelReject:       "OrderCancelReject",
	TidOrderReplaceResponse:    "OrderReplaceResponse",
	TidOrderReplaceReject:      "OrderReplaceReject",
	TidOrderMassCancelResponse: "OrderMassCancelResponse",
	TidExecutionSingleReport:   "ExecutionSingleReport",
	TidExecutionMultilegReport: "ExecutionMultilegReport",
	TidEmptyBook:               "EmptyBook",
	TidSystemEvent:             "SystemEvent",
	TidNewOrderSingleResponse:  "NewOrderSingleResponse",
}

func TemplateName(tid uint16) string {
	if s, ok := templateNames[tid]; ok {
		return s
	}
	return "Unknown(" + strconv.Itoa(int(tid)) + ")"
}

type TerminationCode uint8

const (
	Finished TerminationCode = iota
	UnspecifiedError
	ReRequestOutOfBounds
	ReRequestInProgress
	TooFastClient
	TooSlowClient
	InvalidSequenceNumber
)

func (c TerminationCode) String() string {
	switch c {
	case Finished:
		return "Finished"
	case UnspecifiedError:
		return "UnspecifiedError"
	case ReRequestOutOfBounds:
		return "ReRequestOutOfBounds"
	case ReRequestInProgress:
		return "ReRequestInProgress"
	case TooFastClient:
		return "TooFastClient"
	case TooSlowClient:
		return "TooSlowClient"
	case InvalidSequenceNumber:
		return "InvalidSequenceNumber"
	}
	return "TerminationCode(" + strconv.Itoa(int(c)) + ")"
}

type EstablishmentRejectCode uint8

const (
	RejectUnnegotiated EstablishmentRejectCode = iota
	RejectAlreadyEstablished
	RejectSessionBlocked
	RejectKeepaliveInterval
	RejectCredentials
	RejectUnspecified
)

// sides use the FIX Side(54) values, SideAll is only valid in a mass cancel
const (
	SideAll  uint8 = 0
	SideBuy  uint8 = 1
	SideSell uint8 = 2
)

// TradSesEvent values carried by SystemEvent
const (
	EventSessionDataReady         uint8 = 0
	EventIntradayClearingStarted  uint8 = 1
	EventIntradayClearingFinished uint8 = 2
	EventClearingStarted          uint8 = 3
	EventTradingStatusChanged     uint8 = 4
)

// TimeInForce
const (
	TimeInForceDay uint8 = 0
	TimeInForceIOC uint8 = 3
	TimeInForceFOK uint8 = 4
	TimeInForceGTD uint8 = 6
)

// NextSeqNo is optional in Sequence, this is its null value
const NullSeqNo uint64 = ^uint64(0)
