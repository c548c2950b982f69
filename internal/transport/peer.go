package transport

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// PeerID identifies a connected peer within one PeerManager.
type PeerID uint32

// ConnState is a peer's connection lifecycle state.
type ConnState uint8

const (
	StateDisconnected ConnState = iota
	StateConnected
	StateDisconnecting
)

// Peer is one remote endpoint.
type Peer struct {
	ID       PeerID
	Addr     string
	State    atomic.Uint32 // ConnState
	LastSeen atomic.Int64  // UnixNano

	OutSeq atomic.Uint32 // next outbound sequence
	InSeq  atomic.Uint32 // last inbound sequence

	conn   Conn
	sendCh chan *Message

	closeCh   chan struct{}
	closeOnce sync.Once
}

func newPeer(id PeerID, conn Conn, sendQueueSize int) *Peer {
	p := &Peer{
		ID:      id,
		Addr:    conn.RemoteAddr(),
		conn:    conn,
		sendCh:  make(chan *Message, sendQueueSize),
		closeCh: make(chan struct{}),
	}
	p.State.Store(uint32(StateConnected))
	p.LastSeen.Store(time.Now().UnixNano())
	return p
}

// Send queues a message. It returns false if the peer is gone or its queue is full.
func (p *Peer) Send(msg *Message) bool {
	if ConnState(p.State.Load()) != StateConnected {
		return false
	}
	msg.Seq = p.OutSeq.Add(1)
	msg.Ack = p.InSeq.Load()
	select {
	case p.sendCh <- msg:
		return true
	default:
		return false
	}
}

// Close shuts the connection down. Safe to call more than once.
func (p *Peer) Close() {
	p.closeOnce.Do(func() {
		p.State.Store(uint32(StateDisconnecting))
		close(p.closeCh)
		p.conn.Close()
	})
}

// Done is closed when the peer disconnects.
func (p *Peer) Done() <-chan struct{} { return p.closeCh }

func (p *Peer) readLoop(handler func(PeerID, *Message)) {
	defer p.Close()
	for {
		msg, err := p.conn.ReadMessage()
		if err != nil {
			return
		}
		p.LastSeen.Store(time.Now().UnixNano())
		if msg.Seq > p.InSeq.Load() {
			p.InSeq.Store(msg.Seq)
		}
		if msg.Type == MsgHeartbeat {
			continue
		}
		handler(p.ID, msg)
	}
}

func (p *Peer) writeLoop(heartbeat time.Duration) {
	defer p.Close()
	var tick <-chan time.Time
	if heartbeat > 0 {
		t := time.NewTicker(heartbeat)
		defer t.Stop()
		tick = t.C
	}
	for {
		select {
		case <-p.closeCh:
			return
		case msg := <-p.sendCh:
			if err := p.conn.WriteMessage(msg); err != nil {
				return
			}
		case <-tick:
			hb := &Message{Type: MsgHeartbeat, Seq: p.OutSeq.Load(), Ack: p.InSeq.Load()}
			if err := p.conn.WriteMessage(hb); err != nil {
				return
			}
		}
	}
}

// Handlers receive connection events. They are called from transport goroutines.
type Handlers struct {
	OnConnect    func(PeerID)
	OnDisconnect func(PeerID)
	OnMessage    func(PeerID, *Message)
}

// PeerManager owns the set of connected peers and their I/O goroutines.
type PeerManager struct {
	mu       sync.RWMutex
	peers    map[PeerID]*Peer
	nextID   atomic.Uint32
	maxPeers int
	config   *Config
	handlers Handlers
	logger   *slog.Logger
	wg       sync.WaitGroup
}

// NewPeerManager creates a peer manager.
func NewPeerManager(cfg *Config, logger *slog.Logger) *PeerManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &PeerManager{
		peers:    make(map[PeerID]*Peer),
		maxPeers: cfg.MaxPeers,
		config:   cfg,
		logger:   logger,
	}
}

// SetHandlers configures event callbacks. Call before adding connections.
func (pm *PeerManager) SetHandlers(h Handlers) { pm.handlers = h }

// AddConn registers a peer for an established connection and starts its I/O loops.
func (pm *PeerManager) AddConn(conn Conn) (PeerID, error) {
	pm.mu.Lock()
	if pm.maxPeers > 0 && len(pm.peers) >= pm.maxPeers {
		pm.mu.Unlock()
		conn.Close()
		return 0, ErrPeerLimit
	}
	id := PeerID(pm.nextID.Add(1))
	peer := newPeer(id, conn, pm.config.SendQueueSize)
	pm.peers[id] = peer
	pm.mu.Unlock()

	pm.logger.Debug("peer connected", slog.Uint64("peer", uint64(id)), slog.String("addr", peer.Addr))
	if pm.handlers.OnConnect != nil {
		pm.handlers.OnConnect(id)
	}
	pm.wg.Add(3)
	go func() { defer pm.wg.Done(); peer.readLoop(pm.handleMessage) }()
	go func() { defer pm.wg.Done(); peer.writeLoop(pm.config.HeartbeatInterval) }()
	go func() { defer pm.wg.Done(); pm.monitorPeer(peer) }()
	return id, nil
}

func (pm *PeerManager) handleMessage(id PeerID, msg *Message) {
	if pm.handlers.OnMessage != nil {
		pm.handlers.OnMessage(id, msg)
	}
}

func (pm *PeerManager) monitorPeer(peer *Peer) {
	<-peer.closeCh
	pm.mu.Lock()
	delete(pm.peers, peer.ID)
	pm.mu.Unlock()
	pm.logger.Debug("peer disconnected", slog.Uint64("peer", uint64(peer.ID)))
	if pm.handlers.OnDisconnect != nil {
		pm.handlers.OnDisconnect(peer.ID)
	}
}

// Send queues a message for one peer.
func (pm *PeerManager) Send(id PeerID, msg *Message) bool {
	pm.mu.RLock()
	peer, ok := pm.peers[id]
	pm.mu.RUnlock()
	if !ok {
		return false
	}
	return peer.Send(msg)
}

// Broadcast queues a copy of msg for every peer.
func (pm *PeerManager) Broadcast(msg *Message) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	for _, peer := range pm.peers {
		clone := *msg
		peer.Send(&clone)
	}
}

// Peer looks up a connected peer.
func (pm *PeerManager) Peer(id PeerID) (*Peer, bool) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	p, ok := pm.peers[id]
	return p, ok
}

// PeerCount returns the number of connected peers.
func (pm *PeerManager) PeerCount() int {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return len(pm.peers)
}

// Disconnect closes one peer.
func (pm *PeerManager) Disconnect(id PeerID) error {
	p, ok := pm.Peer(id)
	if !ok {
		return ErrUnknownPeer
	}
	p.Close()
	return nil
}

// Close disconnects every peer and waits for their goroutines to exit.
func (pm *PeerManager) Close() {
	pm.mu.RLock()
	peers := make([]*Peer, 0, len(pm.peers))
	for _, p := range pm.peers {
		peers = append(peers, p)
	}
	pm.mu.RUnlock()
	for _, p := range peers {
		p.Close()
	}
	pm.wg.Wait()
}
