package protocol

import (
	"encoding/binary"
	"fmt"
)

// TWIME is SBE encoded, little endian, with a fixed 8 byte message header. There is no
// end of message delimiter, the boundaries are entirely header driven, so a corrupt
// header cannot be resynchronized and the stream must be abandoned.

const (
	SchemaID      uint16 = 19781
	SchemaVersion uint16 = 7

	HeaderSize = 8

	// MaxMsgSize is larger than any known template, used to size read buffers
	MaxMsgSize = 256
)

type FramingCode int

const (
	BadSchema FramingCode = iota + 1
	BadVersion
	BadLength
)

func (c FramingCode) String() string {
	switch c {
	case BadSchema:
		return "bad schema"
	case BadVersion:
		return "bad version"
	case BadLength:
		return "bad length"
	}
	return "unknown"
}

// FramingError is fatal to the connection it was read from
type FramingError struct {
	Code       FramingCode
	TemplateID uint16
	Msg        string
}

func (e *FramingError) Error() string {
	return fmt.Sprintf("framing error (%s) tid %d: %s", e.Code, e.TemplateID, e.Msg)
}

func IsFramingError(err error) (*FramingError, bool) {
	if err == nil {
		return nil, false
	}
	fe, ok := err.(*FramingError)
	return fe, ok
}

type Header struct {
	BlockLength uint16
	TemplateID  uint16
	SchemaID    uint16
	Version     uint16
}

func (h *Header) put(b []byte) {
	binary.LittleEndian.PutUint16(b[0:], h.BlockLength)
	binary.LittleEndian.PutUint16(b[2:], h.TemplateID)
	binary.LittleEndian.PutUint16(b[4:], h.SchemaID)
	binary.LittleEndian.PutUint16(b[6:], h.Version)
}

func readHeader(b []byte) Header {
	return Header{
		BlockLength: binary.LittleEndian.Uint16(b[0:]),
		TemplateID:  binary.LittleEndian.Uint16(b[2:]),
		SchemaID:    binary.LittleEndian.Uint16(b[4:]),
		Version:     binary.LittleEndian.Uint16(b[6:]),
	}
}

// Frame is one decoded message. Body aliases the buffer passed to DecodeNext, so it is
// only valid until that buffer is reused or the connection owning it is closed.
type Frame struct {
	TemplateID uint16
	Body       []byte
}

// DecodeNext slices the next frame starting at buf[offset]. A zero consumed count with a
// nil error means the buffer does not yet hold a complete frame and the caller should retain
// the tail. Frames with unknown template ids are returned with Known() false; they are
// delimited by their declared block length alone.
func DecodeNext(buf []byte, offset int) (Frame, int, error) {
	b := buf[offset:]
	if len(b) < HeaderSize {
		return Frame{}, 0, nil
	}
	h := readHeader(b)
	if h.SchemaID != SchemaID {
		return Frame{}, 0, &FramingError{Code: BadSchema, TemplateID: h.TemplateID, Msg: fmt.Sprint("schema id ", h.SchemaID)}
	}
	if h.Version != SchemaVersion {
		return Frame{}, 0, &FramingError{Code: BadVersion, TemplateID: h.TemplateID, Msg: fmt.Sprint("version ", h.Version)}
	}

	n := HeaderSize + int(h.BlockLength)
	if expected, ok := MsgSize(h.TemplateID); ok && expected != n {
		return Frame{}, 0, &FramingError{Code: BadLength, TemplateID: h.TemplateID, Msg: fmt.Sprint("length ", n, " expected ", expected)}
	}
	if len(b) < n {
		return Frame{}, 0, nil
	}
	return Frame{TemplateID: h.TemplateID, Body: b[HeaderSize:n]}, n, nil
}

func (f Frame) Known() bool {
	_, ok := MsgSize(f.TemplateID)
	return ok
}
