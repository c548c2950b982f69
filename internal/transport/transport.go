package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
)

// Transport listens (server) or dials (client) and hands connections to a PeerManager.
type Transport struct {
	config   *Config
	peers    *PeerManager
	logger   *slog.Logger
	listener net.Listener
	http     *http.Server
	upgrader websocket.Upgrader

	running atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// New creates a transport. A nil logger uses slog.Default().
func New(cfg *Config, logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transport{
		config: cfg,
		peers:  NewPeerManager(cfg, logger),
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		stopCh: make(chan struct{}),
	}
}

// SetHandlers configures message and connection callbacks.
func (t *Transport) SetHandlers(h Handlers) { t.peers.SetHandlers(h) }

// Start begins listening or connecting depending on the role.
func (t *Transport) Start(ctx context.Context) error {
	if !t.running.CompareAndSwap(false, true) {
		return nil
	}
	var err error
	switch t.config.Role {
	case RoleServer:
		err = t.startServer()
	case RoleClient:
		err = t.startClient(ctx)
	default:
		return nil
	}
	if err != nil {
		t.running.Store(false)
	}
	return err
}

// Addr returns the bound listener address, or nil before a server starts.
func (t *Transport) Addr() net.Addr {
	if t.listener == nil {
		return nil
	}
	return t.listener.Addr()
}

func (t *Transport) startServer() error {
	ln, err := net.Listen("tcp", t.config.Address)
	if err != nil {
		return fmt.Errorf("listen %s: %w", t.config.Address, err)
	}
	t.listener = ln
	t.wg.Add(1)
	switch t.config.Kind {
	case KindWebSocket:
		mux := http.NewServeMux()
		mux.HandleFunc(t.config.Path, t.serveWebSocket)
		t.http = &http.Server{Handler: mux}
		go func() {
			defer t.wg.Done()
			if err := t.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				t.logger.Error("websocket server stopped", slog.Any("error", err))
			}
		}()
	default:
		go t.acceptLoop()
	}
	t.logger.Info("transport listening",
		slog.String("kind", string(t.config.Kind)),
		slog.String("addr", ln.Addr().String()))
	return nil
}

func (t *Transport) acceptLoop() {
	defer t.wg.Done()
	for {
		conn, err := t.listener.Accept()
		if err != nil {
			select {
			case <-t.stopCh:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			continue
		}
		if _, err := t.peers.AddConn(NewStreamConn(conn, t.config.WriteTimeout)); err != nil {
			t.logger.Warn("rejected connection", slog.String("addr", conn.RemoteAddr().String()), slog.Any("error", err))
		}
	}
}

func (t *Transport) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		t.logger.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}
	if _, err := t.peers.AddConn(NewWebSocketConn(conn, t.config.WriteTimeout)); err != nil {
		t.logger.Warn("rejected connection", slog.String("addr", r.RemoteAddr), slog.Any("error", err))
	}
}

func (t *Transport) startClient(ctx context.Context) error {
	dctx := ctx
	if t.config.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		dctx, cancel = context.WithTimeout(ctx, t.config.ConnectTimeout)
		defer cancel()
	}
	var conn Conn
	switch t.config.Kind {
	case KindWebSocket:
		u := url.URL{Scheme: "ws", Host: t.config.Address, Path: t.config.Path}
		ws, _, err := websocket.DefaultDialer.DialContext(dctx, u.String(), nil)
		if err != nil {
			return fmt.Errorf("dial %s: %w", u.String(), err)
		}
		conn = NewWebSocketConn(ws, t.config.WriteTimeout)
	default:
		var d net.Dialer
		c, err := d.DialContext(dctx, "tcp", t.config.Address)
		if err != nil {
			return fmt.Errorf("dial %s: %w", t.config.Address, err)
		}
		conn = NewStreamConn(c, t.config.WriteTimeout)
	}
	_, err := t.peers.AddConn(conn)
	return err
}

// Stop closes the listener and every peer.
func (t *Transport) Stop() error {
	if !t.running.CompareAndSwap(true, false) {
		return nil
	}
	close(t.stopCh)
	var err error
	if t.http != nil {
		err = t.http.Close()
	} else if t.listener != nil {
		err = t.listener.Close()
	}
	t.peers.Close()
	t.wg.Wait()
	return err
}

// Send transmits to one peer.
func (t *Transport) Send(id PeerID, msg *Message) bool { return t.peers.Send(id, msg) }

// Broadcast sends to every peer.
func (t *Transport) Broadcast(msg *Message) { t.peers.Broadcast(msg) }

// Disconnect closes one peer.
func (t *Transport) Disconnect(id PeerID) error { return t.peers.Disconnect(id) }

// PeerCount returns the connected peer count.
func (t *Transport) PeerCount() int { return t.peers.PeerCount() }

// IsRunning reports whether Start succeeded and Stop has not been called.
func (t *Transport) IsRunning() bool { return t.running.Load() }
