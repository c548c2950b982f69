// Package testutil wires a server and clients together in memory so replication can be
// tested deterministically without sockets or goroutines.
package testutil

import (
	"fmt"
	"log/slog"

	"github.com/comalice/playerstate"
	"github.com/comalice/playerstate/internal/transport"
	"github.com/comalice/playerstate/netsync"
)

// ServerPeer is the PeerID clients see the server as.
const ServerPeer transport.PeerID = 1

// Node is one side of the loopback network.
type Node struct {
	World   *playerstate.World
	Session *netsync.Session
	// Sent counts messages by type.
	Sent map[transport.MessageType]int
}

// Step applies inbound messages, ticks the world, and flushes.
func (n *Node) Step() {
	n.Session.ApplyInbound()
	n.World.Tick()
	n.Session.Flush()
}

// Loopback is a star network of one server and its clients. Messages are delivered
// synchronously into the receiver's inbox and handled on its next Step.
type Loopback struct {
	Server  *Node
	Clients []*Node
	up      []bool
}

// Options configures a Loopback.
type Options struct {
	Logger *slog.Logger
	Host   netsync.HostFactory
}

type link struct {
	lb   *Loopback
	node *Node
	// client index, or -1 for the server
	index int
}

func (l *link) Send(id transport.PeerID, msg *transport.Message) bool {
	l.node.Sent[msg.Type]++
	cp := *msg
	cp.Payload = append([]byte(nil), msg.Payload...)
	if l.index < 0 {
		i := int(id) - 1
		if i < 0 || i >= len(l.lb.Clients) || !l.lb.up[i] {
			return false
		}
		l.lb.Clients[i].Session.Handlers().OnMessage(ServerPeer, &cp)
		return true
	}
	if !l.lb.up[l.index] {
		return false
	}
	l.lb.Server.Session.Handlers().OnMessage(ClientPeer(l.index), &cp)
	return true
}

// ClientPeer is the PeerID the server sees client i as.
func ClientPeer(i int) transport.PeerID { return transport.PeerID(i + 1) }

// NewLoopback builds a server and n clients over graph g and connects every client.
// Nothing is exchanged until the nodes are stepped.
func NewLoopback(g *playerstate.Graph, n int, opts Options) (*Loopback, error) {
	lb := &Loopback{up: make([]bool, n)}
	var sopts []netsync.Option
	if opts.Logger != nil {
		sopts = append(sopts, netsync.WithLogger(opts.Logger))
	}
	if opts.Host != nil {
		sopts = append(sopts, netsync.WithHostFactory(opts.Host))
	}
	newNode := func(cfg netsync.Config, index int) (*Node, error) {
		node := &Node{
			World: playerstate.NewWorld(g, playerstate.WithLogger(opts.Logger)),
			Sent:  make(map[transport.MessageType]int),
		}
		s, err := netsync.New(node.World, cfg, &link{lb: lb, node: node, index: index}, sopts...)
		if err != nil {
			return nil, err
		}
		node.Session = s
		return node, nil
	}
	var err error
	if lb.Server, err = newNode(netsync.Config{Role: netsync.RoleServer}, -1); err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		c, err := newNode(netsync.Config{Role: netsync.RoleClient, Name: fmt.Sprintf("client-%d", i)}, i)
		if err != nil {
			return nil, err
		}
		lb.Clients = append(lb.Clients, c)
		lb.connect(i)
	}
	return lb, nil
}

func (lb *Loopback) connect(i int) {
	lb.up[i] = true
	lb.Server.Session.Handlers().OnConnect(ClientPeer(i))
	lb.Clients[i].Session.Handlers().OnConnect(ServerPeer)
}

// Disconnect cuts client i off from the server.
func (lb *Loopback) Disconnect(i int) {
	if !lb.up[i] {
		return
	}
	lb.up[i] = false
	lb.Server.Session.Handlers().OnDisconnect(ClientPeer(i))
	lb.Clients[i].Session.Handlers().OnDisconnect(ServerPeer)
}

// Step steps the server, then every client in order.
func (lb *Loopback) Step() {
	lb.Server.Step()
	for _, c := range lb.Clients {
		c.Step()
	}
}

// Settle steps the network n times.
func (lb *Loopback) Settle(n int) {
	for k := 0; k < n; k++ {
		lb.Step()
	}
}
