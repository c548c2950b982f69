package transport

import (
	"bufio"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn carries whole messages in both directions. ReadMessage is called from a single
// reader goroutine and WriteMessage from a single writer goroutine.
type Conn interface {
	ReadMessage() (*Message, error)
	WriteMessage(m *Message) error
	RemoteAddr() string
	Close() error
}

// streamConn frames messages over a byte stream such as TCP.
type streamConn struct {
	conn         net.Conn
	reader       *bufio.Reader
	writer       *bufio.Writer
	writeTimeout time.Duration
}

// NewStreamConn wraps a stream connection.
func NewStreamConn(c net.Conn, writeTimeout time.Duration) Conn {
	return &streamConn{
		conn:         c,
		reader:       bufio.NewReaderSize(c, 64*1024),
		writer:       bufio.NewWriterSize(c, 64*1024),
		writeTimeout: writeTimeout,
	}
}

func (c *streamConn) ReadMessage() (*Message, error) { return Decode(c.reader) }

func (c *streamConn) WriteMessage(m *Message) error {
	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}
	if err := m.Encode(c.writer); err != nil {
		return err
	}
	return c.writer.Flush()
}

func (c *streamConn) RemoteAddr() string { return c.conn.RemoteAddr().String() }
func (c *streamConn) Close() error       { return c.conn.Close() }

// wsConn carries one message per binary WebSocket frame.
type wsConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	buf          []byte
	mu           sync.Mutex
}

// NewWebSocketConn wraps a WebSocket connection.
func NewWebSocketConn(c *websocket.Conn, writeTimeout time.Duration) Conn {
	return &wsConn{conn: c, writeTimeout: writeTimeout}
}

func (c *wsConn) ReadMessage() (*Message, error) {
	for {
		kind, frame, err := c.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if kind != websocket.BinaryMessage {
			continue
		}
		return ParseFrame(frame)
	}
}

func (c *wsConn) WriteMessage(m *Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	frame, err := m.AppendFrame(c.buf[:0])
	if err != nil {
		return err
	}
	c.buf = frame
	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}
	return c.conn.WriteMessage(websocket.BinaryMessage, frame)
}

func (c *wsConn) RemoteAddr() string { return c.conn.RemoteAddr().String() }

func (c *wsConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return c.conn.Close()
}
