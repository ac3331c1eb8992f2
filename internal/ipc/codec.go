package ipc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Magic prefixes every i3-ipc frame.
const Magic = "i3-ipc"

const (
	headerSize = len(Magic) + 8
	// maxPayload bounds a single frame; real trees are a few hundred KiB.
	maxPayload = 64 << 20
	eventBit   = 1 << 31
)

// MessageType tags a frame. Replies reuse the request's type; events have the high bit set.
type MessageType uint32

// Request types.
const (
	MessageRunCommand    MessageType = 0
	MessageGetWorkspaces MessageType = 1
	MessageSubscribe     MessageType = 2
	MessageGetOutputs    MessageType = 3
	MessageGetTree       MessageType = 4
	MessageGetMarks      MessageType = 5
	MessageGetBarConfig  MessageType = 6
	MessageGetVersion    MessageType = 7
)

// IsEvent reports whether the type tags an unsolicited event frame.
func (t MessageType) IsEvent() bool {
	return t&eventBit != 0
}

func (t MessageType) String() string {
	if t.IsEvent() {
		return EventType(t).String()
	}
	switch t {
	case MessageRunCommand:
		return "run_command"
	case MessageGetWorkspaces:
		return "get_workspaces"
	case MessageSubscribe:
		return "subscribe"
	case MessageGetOutputs:
		return "get_outputs"
	case MessageGetTree:
		return "get_tree"
	case MessageGetMarks:
		return "get_marks"
	case MessageGetBarConfig:
		return "get_bar_config"
	case MessageGetVersion:
		return "get_version"
	default:
		return fmt.Sprintf("message(%d)", uint32(t))
	}
}

// Frame is one message on the wire.
type Frame struct {
	Type    MessageType
	Payload []byte
}

// byteOrder is the host order i3 and sway use; every supported platform is little endian.
var byteOrder = binary.LittleEndian

// EncodeFrame serializes a frame including its header.
func EncodeFrame(typ MessageType, payload []byte) []byte {
	buf := make([]byte, headerSize+len(payload))
	copy(buf, Magic)
	byteOrder.PutUint32(buf[len(Magic):], uint32(len(payload)))
	byteOrder.PutUint32(buf[len(Magic)+4:], uint32(typ))
	copy(buf[headerSize:], payload)
	return buf
}

// WriteFrame writes a single frame to w.
func WriteFrame(w io.Writer, typ MessageType, payload []byte) error {
	if _, err := w.Write(EncodeFrame(typ, payload)); err != nil {
		return &ConnectionError{Op: "write " + typ.String(), Err: err}
	}
	return nil
}

var (
	errBadMagic  = errors.New("bad magic")
	errTooLarge  = errors.New("payload exceeds frame limit")
	errClosedEOF = errors.New("connection closed by peer")
)

// ReadFrame reads a single frame from r. I/O failures are ConnectionErrors;
// a header that does not parse is a ProtocolError.
func ReadFrame(r io.Reader) (Frame, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if errors.Is(err, io.EOF) {
			err = errClosedEOF
		}
		return Frame{}, &ConnectionError{Op: "read header", Err: err}
	}
	if string(hdr[:len(Magic)]) != Magic {
		return Frame{}, &ProtocolError{Op: "read header", Err: fmt.Errorf("%w %q", errBadMagic, hdr[:len(Magic)])}
	}
	length := byteOrder.Uint32(hdr[len(Magic):])
	typ := MessageType(byteOrder.Uint32(hdr[len(Magic)+4:]))
	if length > maxPayload {
		return Frame{}, &ProtocolError{Op: "read header", Err: fmt.Errorf("%w: %d bytes", errTooLarge, length)}
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Frame{}, &ConnectionError{Op: "read " + typ.String(), Err: err}
	}
	return Frame{Type: typ, Payload: payload}, nil
}
