package transport

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageStreamRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	in := []*Message{
		{Type: MsgHello, Seq: 1, Payload: []byte("alice")},
		{Type: MsgDelta, Flags: FlagNeedAck, Seq: 2, Ack: 9, Payload: []byte{1, 2, 3}},
		{Type: MsgFullRequest, Seq: 3},
	}
	for _, m := range in {
		require.NoError(t, m.Encode(&buf))
	}
	assert.Equal(t, 3*HeaderSize+5+3, buf.Len())

	for _, want := range in {
		got, err := Decode(&buf)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := Decode(&buf)
	assert.ErrorIs(t, err, io.EOF)
}

func TestFrameRoundTrip(t *testing.T) {
	m := &Message{Type: MsgWelcome, Seq: 7, Ack: 3, Payload: []byte("table")}
	frame, err := m.AppendFrame(nil)
	require.NoError(t, err)
	got, err := ParseFrame(frame)
	require.NoError(t, err)
	assert.Equal(t, m, got)

	_, err = ParseFrame(frame[:HeaderSize-1])
	assert.ErrorIs(t, err, ErrShortFrame)
	_, err = ParseFrame(frame[:len(frame)-1])
	assert.ErrorIs(t, err, ErrShortFrame)
}

func TestPayloadLimit(t *testing.T) {
	m := NewMessage(MsgFull, make([]byte, MaxPayload+1))
	assert.ErrorIs(t, m.Encode(io.Discard), ErrPayloadTooLarge)
	_, err := m.AppendFrame(nil)
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestTruncatedStream(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewMessage(MsgDelta, []byte{1, 2, 3, 4}).Encode(&buf))
	_, err := Decode(bytes.NewReader(buf.Bytes()[:buf.Len()-2]))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
