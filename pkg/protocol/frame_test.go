package protocol

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	msgs := []Message{
		&Establish{Timestamp: 12345, KeepaliveInterval: 1000, Credentials: "secret"},
		&EstablishmentAck{RequestTimestamp: 12345, KeepaliveInterval: 1000, NextSeqNo: 42},
		&Sequence{NextSeqNo: NullSeqNo},
		&NewOrderSingle{ClOrdID: 7, Price: 12345678, SecurityID: 99, OrderQty: 5, Side: SideSell, Account: "A01"},
		&ExecutionSingleReport{ClOrdID: 7, OrderID: 1001, TrdMatchID: 3, LastPx: 100000, LastQty: 2, OrderQty: 3, SecurityID: 99, Side: SideBuy},
		&NewOrderReject{RejectBody{ClOrdID: 8, OrdRejReason: 31}},
	}

	var buf []byte
	for _, m := range msgs {
		buf = Append(buf, m)
	}

	offset := 0
	for i, m := range msgs {
		f, n, err := DecodeNext(buf, offset)
		require.NoError(t, err)
		require.NotZero(t, n)
		assert.Equal(t, m.TemplateID(), f.TemplateID)
		assert.True(t, f.Known())

		decoded, err := Decode(f)
		require.NoError(t, err)
		assert.Equal(t, m, decoded, "message %d", i)
		offset += n
	}
	assert.Equal(t, len(buf), offset)
}

func TestMsgSize(t *testing.T) {
	n, ok := MsgSize(TidSequence)
	assert.True(t, ok)
	assert.Equal(t, HeaderSize+8, n)

	n, ok = MsgSize(TidNewOrderSingle)
	assert.True(t, ok)
	assert.Equal(t, HeaderSize+47, n)

	n, ok = MsgSize(TidExecutionMultilegReport)
	assert.True(t, ok)
	assert.Equal(t, HeaderSize+77, n)

	_, ok = MsgSize(4999)
	assert.False(t, ok)

	for tid := range templateNames {
		n, ok := MsgSize(tid)
		assert.True(t, ok, TemplateName(tid))
		assert.LessOrEqual(t, n, MaxMsgSize)
	}
}

func TestPartialFrame(t *testing.T) {
	buf := Encode(&Sequence{NextSeqNo: 5})

	for i := 0; i < len(buf); i++ {
		_, n, err := DecodeNext(buf[:i], 0)
		assert.NoError(t, err)
		assert.Equal(t, 0, n, "prefix %d", i)
	}
	_, n, err := DecodeNext(buf, 0)
	assert.NoError(t, err)
	assert.Equal(t, len(buf), n)
}

func TestBadHeader(t *testing.T) {
	good := Encode(&Sequence{NextSeqNo: 5})

	tests := []struct {
		name  string
		patch func(b []byte)
		code  FramingCode
	}{
		{"schema", func(b []byte) { binary.LittleEndian.PutUint16(b[4:], 1) }, BadSchema},
		{"version", func(b []byte) { binary.LittleEndian.PutUint16(b[6:], 6) }, BadVersion},
		{"length", func(b []byte) { binary.LittleEndian.PutUint16(b[0:], 9) }, BadLength},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := append([]byte(nil), good...)
			tt.patch(b)
			_, n, err := DecodeNext(b, 0)
			assert.Equal(t, 0, n)
			fe, ok := IsFramingError(err)
			require.True(t, ok)
			assert.Equal(t, tt.code, fe.Code)
			assert.Equal(t, TidSequence, fe.TemplateID)
		})
	}
}

func TestBadLengthBeforeBody(t *testing.T) {
	// header alone is enough to reject a known template with the wrong length
	b := Encode(&Sequence{NextSeqNo: 5})[:HeaderSize]
	binary.LittleEndian.PutUint16(b[0:], 100)
	_, _, err := DecodeNext(b, 0)
	fe, ok := IsFramingError(err)
	require.True(t, ok)
	assert.Equal(t, BadLength, fe.Code)
}

func TestUnknownTemplate(t *testing.T) {
	b := make([]byte, HeaderSize+3)
	h := Header{BlockLength: 3, TemplateID: 6999, SchemaID: SchemaID, Version: SchemaVersion}
	h.put(b)
	b = append(b, Encode(&Terminate{Code: Finished})...)

	f, n, err := DecodeNext(b, 0)
	require.NoError(t, err)
	assert.Equal(t, HeaderSize+3, n)
	assert.False(t, f.Known())
	assert.Equal(t, "Unknown(6999)", TemplateName(f.TemplateID))

	_, err = Decode(f)
	assert.ErrorIs(t, err, ErrUnknownTemplate)

	f, _, err = DecodeNext(b, n)
	require.NoError(t, err)
	assert.Equal(t, TidTerminate, f.TemplateID)
}

func TestIsApplication(t *testing.T) {
	assert.False(t, IsApplication(TidSequence))
	assert.False(t, IsApplication(TidSessionReject))
	assert.True(t, IsApplication(TidBusinessMessageReject))
	assert.True(t, IsApplication(TidExecutionSingleReport))
	assert.True(t, IsApplication(TidNewOrderSingleResponse))
}

func TestStringsArePadded(t *testing.T) {
	m := &OrderCancelRequest{ClOrdID: 1, OrderID: 2, Account: "ACCOUNT_TOO_LONG"}
	b := Encode(m)
	var d OrderCancelRequest
	d.Decode(b[HeaderSize:])
	assert.Equal(t, "ACCOUNT", d.Account)
}
