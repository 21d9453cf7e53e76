package protocol

import (
	"errors"
	"fmt"
	"io"
)

const (
	// FrameHeaderSize is the size of the frame header in bytes.
	FrameHeaderSize = 5

	// MaxPayloadSize bounds one frame's payload. Snapshots of large
	// documents are the biggest frames.
	MaxPayloadSize = 8 << 20
)

// FrameType identifies the payload of a frame.
type FrameType uint8

const (
	FrameSnapshot  FrameType = 0x01 // server -> client: full document
	FrameMutations FrameType = 0x02 // server -> client: changes after a flush
	FrameEvent     FrameType = 0x03 // client -> server: DOM event
	FramePing      FrameType = 0x04
	FramePong      FrameType = 0x05
	FrameError     FrameType = 0x06 // server -> client
)

// String returns the lower-case frame name used in logs and metrics.
func (ft FrameType) String() string {
	switch ft {
	case FrameSnapshot:
		return "snapshot"
	case FrameMutations:
		return "mutations"
	case FrameEvent:
		return "event"
	case FramePing:
		return "ping"
	case FramePong:
		return "pong"
	case FrameError:
		return "error"
	default:
		return fmt.Sprintf("frame(0x%02x)", uint8(ft))
	}
}

// FrameFlags modify frame handling.
type FrameFlags uint8

const (
	// FlagResumed marks a snapshot sent to a client that reattached to an
	// existing session.
	FlagResumed FrameFlags = 0x01
)

// Has reports whether flag is set.
func (ff FrameFlags) Has(flag FrameFlags) bool {
	return ff&flag != 0
}

var (
	ErrFrameTooLarge    = errors.New("protocol: frame payload too large")
	ErrInvalidFrameType = errors.New("protocol: invalid frame type")
)

// Frame is one protocol message.
//
// Wire format:
//
//	[type: 1 byte][flags: 1 byte][payload length: uint32 big-endian][payload]
type Frame struct {
	Type    FrameType
	Flags   FrameFlags
	Payload []byte
}

// NewFrame returns a frame without flags.
func NewFrame(ft FrameType, payload []byte) *Frame {
	return &Frame{Type: ft, Payload: payload}
}

// Encode returns the header and payload.
func (f *Frame) Encode() []byte {
	e := &Encoder{buf: make([]byte, 0, FrameHeaderSize+len(f.Payload))}
	e.WriteByte(byte(f.Type))
	e.WriteByte(byte(f.Flags))
	e.WriteUint32(uint32(len(f.Payload)))
	e.buf = append(e.buf, f.Payload...)
	return e.buf
}

// DecodeFrame decodes exactly one frame from data.
func DecodeFrame(data []byte) (*Frame, error) {
	d := NewDecoder(data)
	f, err := readHeader(d)
	if err != nil {
		return nil, err
	}
	if len(f.Payload) != d.Remaining() {
		if len(f.Payload) > d.Remaining() {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, ErrTrailingBytes
	}
	copy(f.Payload, data[FrameHeaderSize:])
	return f, nil
}

func readHeader(d *Decoder) (*Frame, error) {
	ft, err := d.ReadByte()
	if err != nil {
		return nil, err
	}
	if ft < byte(FrameSnapshot) || ft > byte(FrameError) {
		return nil, fmt.Errorf("%w: 0x%02x", ErrInvalidFrameType, ft)
	}
	flags, err := d.ReadByte()
	if err != nil {
		return nil, err
	}
	length, err := d.ReadUint32()
	if err != nil {
		return nil, err
	}
	if length > MaxPayloadSize {
		return nil, ErrFrameTooLarge
	}
	return &Frame{Type: FrameType(ft), Flags: FrameFlags(flags), Payload: make([]byte, length)}, nil
}

// ReadFrame reads one frame from a stream.
func ReadFrame(r io.Reader) (*Frame, error) {
	header := make([]byte, FrameHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}
	f, err := readHeader(NewDecoder(header))
	if err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(r, f.Payload); err != nil {
		return nil, err
	}
	return f, nil
}

// WriteFrame writes one frame to a stream.
func WriteFrame(w io.Writer, f *Frame) error {
	if len(f.Payload) > MaxPayloadSize {
		return ErrFrameTooLarge
	}
	_, err := w.Write(f.Encode())
	return err
}
