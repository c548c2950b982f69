// Package netsync replicates playerstate entities between one server and its clients.
//
// Transport goroutines only enqueue; every state change happens on the tick goroutine
// inside ApplyInbound and Flush. The server relays each client's changes to every other
// client (star topology) and never accepts state for an entity the sender does not own.
package netsync

import (
	"bytes"
	"cmp"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/comalice/playerstate"
	"github.com/comalice/playerstate/internal/transport"
	"github.com/comalice/playerstate/wire"
)

// Role selects server or client behavior.
type Role uint8

const (
	RoleServer Role = iota
	RoleClient
)

func (r Role) String() string {
	if r == RoleClient {
		return "client"
	}
	return "server"
}

// DefaultMaxPending bounds the packets a client buffers before it is welcomed.
const DefaultMaxPending = 64

// Sender delivers a message to one peer. transport.Transport satisfies it.
type Sender interface {
	Send(id transport.PeerID, msg *transport.Message) bool
}

// HostFactory creates the host value for an entity the session attaches. name is the
// client's Hello name on the server and empty for remote entities on a client.
type HostFactory func(ref playerstate.EntityRef, name string) any

// Config configures a Session.
type Config struct {
	Role Role
	// Name is sent in the client's Hello.
	Name string
	// MaxPending bounds the pre-welcome buffer. Zero means DefaultMaxPending.
	MaxPending int
}

// Option configures optional Session behavior.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithHostFactory sets how hosts are created for entities the session attaches.
func WithHostFactory(fn HostFactory) Option {
	return func(s *Session) { s.newHost = fn }
}

type eventKind uint8

const (
	evConnect eventKind = iota
	evDisconnect
	evMessage
)

type inbound struct {
	seq  uint64
	kind eventKind
	peer transport.PeerID
	msg  *transport.Message
}

type remote struct {
	name     string
	ref      playerstate.EntityRef
	welcomed bool
}

type pendingPacket struct {
	typ     transport.MessageType
	payload []byte
}

// Session is one side of a replication session over a World.
type Session struct {
	id      uuid.UUID
	cfg     Config
	world   *playerstate.World
	out     Sender
	logger  *slog.Logger
	newHost HostFactory
	table   *playerstate.NetTable

	mu    sync.Mutex
	inbox []inbound
	seq   uint64

	// Server state, tick goroutine only.
	peers   map[transport.PeerID]*remote
	owner   map[playerstate.EntityRef]transport.PeerID
	nextRef playerstate.EntityRef

	// Client state, tick goroutine only.
	server    transport.PeerID
	connected bool
	local     *playerstate.Entity
	pending   []pendingPacket
	needFull  bool

	buf *wire.Writer
}

// New creates a session over world that sends through out. A server builds its net
// table from the world's graph and picks a fresh session id; a client receives both in
// the server's Welcome.
func New(world *playerstate.World, cfg Config, out Sender, opts ...Option) (*Session, error) {
	if cfg.MaxPending <= 0 {
		cfg.MaxPending = DefaultMaxPending
	}
	s := &Session{
		cfg:     cfg,
		world:   world,
		out:     out,
		logger:  slog.Default(),
		newHost: func(playerstate.EntityRef, string) any { return nil },
		peers:   make(map[transport.PeerID]*remote),
		owner:   make(map[playerstate.EntityRef]transport.PeerID),
		nextRef: 1,
		buf:     wire.NewWriter(1024),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(slog.String("role", cfg.Role.String()))
	if cfg.Role == RoleServer {
		t, err := playerstate.BuildNetTable(world.Graph())
		if err != nil {
			return nil, fmt.Errorf("netsync: %w", err)
		}
		s.table = t
		s.id = uuid.New()
	}
	return s, nil
}

// ID returns the session id. A client's is uuid.Nil until it is welcomed.
func (s *Session) ID() uuid.UUID { return s.id }

// Role returns the session role.
func (s *Session) Role() Role { return s.cfg.Role }

// World returns the replicated world.
func (s *Session) World() *playerstate.World { return s.world }

// Table returns the net table, or nil on a client that has not been welcomed.
func (s *Session) Table() *playerstate.NetTable { return s.table }

// Local returns a client's own entity, or nil before Welcome and on a server.
func (s *Session) Local() *playerstate.Entity { return s.local }

// Reconciled reports whether a client has been welcomed. Servers always are.
func (s *Session) Reconciled() bool { return s.table != nil }

// Handlers returns the transport callbacks feeding this session.
func (s *Session) Handlers() transport.Handlers {
	return transport.Handlers{
		OnConnect:    func(id transport.PeerID) { s.enqueue(evConnect, id, nil) },
		OnDisconnect: func(id transport.PeerID) { s.enqueue(evDisconnect, id, nil) },
		OnMessage:    func(id transport.PeerID, m *transport.Message) { s.enqueue(evMessage, id, m) },
	}
}

func (s *Session) enqueue(kind eventKind, peer transport.PeerID, msg *transport.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inbox = append(s.inbox, inbound{seq: s.seq, kind: kind, peer: peer, msg: msg})
	s.seq++
}

// ApplyInbound handles everything queued since the last call. Call it from the tick
// goroutine.
func (s *Session) ApplyInbound() {
	s.mu.Lock()
	batch := s.inbox
	s.inbox = nil
	s.mu.Unlock()

	slices.SortStableFunc(batch, func(a, b inbound) int { return cmp.Compare(a.seq, b.seq) })
	for _, in := range batch {
		switch s.cfg.Role {
		case RoleServer:
			s.serverHandle(in)
		case RoleClient:
			s.clientHandle(in)
		}
	}
}

// applyPacket hands payload to apply, turning a panic in decoding or in a state hook into
// an error so the rest of the batch is still handled.
func applyPacket(apply func([]byte) error, payload []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return apply(payload)
}

// Flush sends a delta for every dirty entity this side is responsible for and clears
// its dirty flags. Call it from the tick goroutine after ticking.
func (s *Session) Flush() {
	if s.cfg.Role == RoleClient && s.needFull && s.connected && s.table != nil {
		s.send(s.server, transport.MsgFullRequest, encodeRef(0))
		s.needFull = false
	}
	for _, e := range s.world.Entities() {
		if !e.Dirty() {
			continue
		}
		if !e.Reconciled() {
			if s.table == nil {
				continue
			}
			e.Reconcile(s.table)
		}
		if s.cfg.Role == RoleClient && e != s.local {
			e.ClearNetUpdates()
			continue
		}
		s.buf.Reset()
		n, err := e.WriteDelta(s.buf)
		e.ClearNetUpdates()
		if err != nil {
			s.logger.Warn("encode delta failed", slog.Uint64("entity", uint64(e.Ref())), slog.Any("error", err))
			continue
		}
		if n == 0 {
			continue
		}
		payload := bytes.Clone(s.buf.Bytes())
		if s.cfg.Role == RoleClient {
			if s.connected {
				s.send(s.server, transport.MsgDelta, payload)
			}
			continue
		}
		s.broadcast(transport.MsgDelta, payload, s.owner[e.Ref()])
	}
}

func (s *Session) send(id transport.PeerID, typ transport.MessageType, payload []byte) {
	if len(payload) > transport.MaxPayload {
		s.logger.Error("message too large to send",
			slog.String("type", typ.String()), slog.Int("bytes", len(payload)))
		return
	}
	if !s.out.Send(id, transport.NewMessage(typ, payload)) {
		s.logger.Warn("send dropped", slog.Uint64("peer", uint64(id)), slog.String("type", typ.String()))
	}
}

// broadcast sends to every welcomed peer except skip, in peer order.
func (s *Session) broadcast(typ transport.MessageType, payload []byte, skip transport.PeerID) {
	ids := make([]transport.PeerID, 0, len(s.peers))
	for id, r := range s.peers {
		if r.welcomed && id != skip {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	for _, id := range ids {
		s.send(id, typ, payload)
	}
}

// sendFull writes a full snapshot of e to one peer.
func (s *Session) sendFull(id transport.PeerID, e *playerstate.Entity) {
	s.buf.Reset()
	if _, err := e.WriteFull(s.buf); err != nil {
		s.logger.Warn("encode full failed", slog.Uint64("entity", uint64(e.Ref())), slog.Any("error", err))
		return
	}
	s.send(id, transport.MsgFull, bytes.Clone(s.buf.Bytes()))
}
