package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comalice/playerstate"
	"github.com/comalice/playerstate/internal/transport"
	"github.com/comalice/playerstate/wire"
)

type hp struct {
	playerstate.Base
	Value int64
}

func (h *hp) Set(v int64) {
	h.Value = v
	h.MarkNetUpdate()
}

func (h *hp) NetSend(w *wire.Writer) { w.Varint(h.Value) }

func (h *hp) NetReceive(r *wire.Reader) error {
	v := r.Varint()
	if err := r.Err(); err != nil {
		return err
	}
	h.Value = v
	return nil
}

func playerGraph(t *testing.T) *playerstate.Graph {
	t.Helper()
	r := playerstate.NewRegistry()
	b := playerstate.NewGraphBuilder("p")
	b.Machine("Move").Children("Idle", "Walk", "Jump")
	b.Leaf("Idle")
	b.Leaf("Walk")
	b.Leaf("Jump")
	require.NoError(t, b.Register(r))
	r.MustRegister(playerstate.Definition{Mod: "p", Name: "HP", New: func() playerstate.State { return &hp{} }})
	g, err := r.Build()
	require.NoError(t, err)
	return g
}

func entity(t *testing.T, n *Node, ref playerstate.EntityRef) *playerstate.Entity {
	t.Helper()
	e, ok := n.World.Entity(ref)
	require.True(t, ok, "entity %d missing", ref)
	return e
}

func TestLoopbackJoin(t *testing.T) {
	lb, err := NewLoopback(playerGraph(t), 2, Options{})
	require.NoError(t, err)
	lb.Settle(4)

	assert.Equal(t, 2, lb.Server.World.Len())
	for i, c := range lb.Clients {
		require.True(t, c.Session.Reconciled(), "client %d", i)
		assert.Equal(t, lb.Server.Session.ID(), c.Session.ID())
		assert.Equal(t, 2, c.World.Len(), "client %d sees both players", i)
	}
	assert.Equal(t, playerstate.EntityRef(1), lb.Clients[0].Session.Local().Ref())
	assert.Equal(t, playerstate.EntityRef(2), lb.Clients[1].Session.Local().Ref())
}

func TestLoopbackReplicatesStateAndTransitions(t *testing.T) {
	lb, err := NewLoopback(playerGraph(t), 3, Options{})
	require.NoError(t, err)
	lb.Settle(4)

	me := lb.Clients[0].Session.Local()
	playerstate.MustGet[*hp](me).Set(70)
	move := playerstate.MachineOf(mustState(t, me, "p/Move"))
	require.True(t, move.TrySetActiveChild(mustState(t, me, "p/Jump"), false))
	lb.Settle(2)

	for _, n := range []*Node{lb.Server, lb.Clients[1], lb.Clients[2]} {
		e := entity(t, n, me.Ref())
		assert.Equal(t, int64(70), playerstate.MustGet[*hp](e).Value)
		m := playerstate.MachineOf(mustState(t, e, "p/Move"))
		assert.Equal(t, "p/Jump", m.ActiveChild().FullName())
	}
}

func TestLoopbackLeave(t *testing.T) {
	lb, err := NewLoopback(playerGraph(t), 2, Options{})
	require.NoError(t, err)
	lb.Settle(4)

	gone := lb.Clients[0].Session.Local().Ref()
	lb.Disconnect(0)
	lb.Settle(2)
	assert.Equal(t, 1, lb.Server.World.Len())
	_, ok := lb.Clients[1].World.Entity(gone)
	assert.False(t, ok)
	assert.Positive(t, lb.Server.Sent[transport.MsgLeave])
}

func mustState(t *testing.T, e *playerstate.Entity, name string) playerstate.State {
	t.Helper()
	s, err := e.StateByName(name)
	require.NoError(t, err)
	return s
}
