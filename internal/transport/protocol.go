package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MessageType identifies the semantic meaning of a message.
type MessageType uint8

const (
	// Control
	MsgHeartbeat MessageType = 0x01
	MsgLeave     MessageType = 0x03

	// Session handshake
	MsgHello   MessageType = 0x10 // client announces itself
	MsgWelcome MessageType = 0x11 // server assigns an entity ref and the net table

	// State sync
	MsgDelta       MessageType = 0x20
	MsgFull        MessageType = 0x21
	MsgFullRequest MessageType = 0x22
)

func (t MessageType) String() string {
	switch t {
	case MsgHeartbeat:
		return "heartbeat"
	case MsgLeave:
		return "leave"
	case MsgHello:
		return "hello"
	case MsgWelcome:
		return "welcome"
	case MsgDelta:
		return "delta"
	case MsgFull:
		return "full"
	case MsgFullRequest:
		return "full-request"
	default:
		return fmt.Sprintf("type(0x%02x)", uint8(t))
	}
}

// HeaderSize is the fixed header preceding every message:
// [Type:1][Flags:1][Seq:4][Ack:4][Len:2]
const HeaderSize = 12

// MaxPayload is the largest payload the length field can describe.
const MaxPayload = 1<<16 - 1

// Header flags
const (
	FlagNone    uint8 = 0x00
	FlagNeedAck uint8 = 0x01
)

var (
	ErrPayloadTooLarge = errors.New("transport: payload exceeds maximum size")
	ErrShortFrame      = errors.New("transport: frame shorter than its header")
	ErrPeerLimit       = errors.New("transport: max peers reached")
	ErrUnknownPeer     = errors.New("transport: unknown peer")
)

// Message is one framed network message.
type Message struct {
	Type    MessageType
	Flags   uint8
	Seq     uint32 // sender's sequence number
	Ack     uint32 // last sequence received from the peer
	Payload []byte
}

// NewMessage creates a message with the given type and payload.
func NewMessage(t MessageType, payload []byte) *Message {
	return &Message{Type: t, Payload: payload}
}

func (m *Message) putHeader(h []byte) {
	h[0] = byte(m.Type)
	h[1] = m.Flags
	binary.BigEndian.PutUint32(h[2:6], m.Seq)
	binary.BigEndian.PutUint32(h[6:10], m.Ack)
	binary.BigEndian.PutUint16(h[10:12], uint16(len(m.Payload)))
}

// Encode writes the header and payload to w.
func (m *Message) Encode(w io.Writer) error {
	if len(m.Payload) > MaxPayload {
		return ErrPayloadTooLarge
	}
	var header [HeaderSize]byte
	m.putHeader(header[:])
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	if len(m.Payload) > 0 {
		if _, err := w.Write(m.Payload); err != nil {
			return err
		}
	}
	return nil
}

// AppendFrame appends the encoded message to b. Used for message-oriented transports
// where one frame carries exactly one message.
func (m *Message) AppendFrame(b []byte) ([]byte, error) {
	if len(m.Payload) > MaxPayload {
		return b, ErrPayloadTooLarge
	}
	var header [HeaderSize]byte
	m.putHeader(header[:])
	b = append(b, header[:]...)
	return append(b, m.Payload...), nil
}

// Decode reads one message from a byte stream.
func Decode(r io.Reader) (*Message, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	m := parseHeader(header[:])
	if n := binary.BigEndian.Uint16(header[10:12]); n > 0 {
		m.Payload = make([]byte, n)
		if _, err := io.ReadFull(r, m.Payload); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ParseFrame decodes a message from a single frame produced by AppendFrame.
func ParseFrame(frame []byte) (*Message, error) {
	if len(frame) < HeaderSize {
		return nil, ErrShortFrame
	}
	m := parseHeader(frame)
	n := int(binary.BigEndian.Uint16(frame[10:12]))
	if len(frame)-HeaderSize != n {
		return nil, fmt.Errorf("%w: header says %d payload bytes, frame has %d",
			ErrShortFrame, n, len(frame)-HeaderSize)
	}
	if n > 0 {
		m.Payload = append([]byte(nil), frame[HeaderSize:]...)
	}
	return m, nil
}

func parseHeader(h []byte) *Message {
	return &Message{
		Type:  MessageType(h[0]),
		Flags: h[1],
		Seq:   binary.BigEndian.Uint32(h[2:6]),
		Ack:   binary.BigEndian.Uint32(h[6:10]),
	}
}
