package netsync

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/comalice/playerstate"
	"github.com/comalice/playerstate/internal/transport"
	"github.com/comalice/playerstate/wire"
)

// score is a synced leaf.
type score struct {
	playerstate.Base
	Points int64
}

func (s *score) Add(n int64) {
	s.Points += n
	s.MarkNetUpdate()
}

func (s *score) NetSend(w *wire.Writer) { w.Varint(s.Points) }

// faulty is a score value whose receive hook panics.
const faulty int64 = -13

func (s *score) NetReceive(r *wire.Reader) error {
	v := r.Varint()
	if err := r.Err(); err != nil {
		return err
	}
	if v == faulty {
		panic("score hook failed")
	}
	s.Points = v
	return nil
}

// testGraph is p/Body -> {p/Idle, p/Run} plus a root p/Score.
func testGraph(t *testing.T) *playerstate.Graph {
	t.Helper()
	r := playerstate.NewRegistry()
	b := playerstate.NewGraphBuilder("p")
	b.Machine("Body").Children("Idle", "Run")
	b.Leaf("Idle")
	b.Leaf("Run")
	require.NoError(t, b.Register(r))
	r.MustRegister(playerstate.Definition{Mod: "p", Name: "Score", New: func() playerstate.State { return &score{} }})
	g, err := r.Build()
	require.NoError(t, err)
	return g
}

type sent struct {
	peer transport.PeerID
	msg  *transport.Message
}

// recorder is a Sender that keeps everything.
type recorder struct {
	out []sent
}

func (r *recorder) Send(id transport.PeerID, m *transport.Message) bool {
	r.out = append(r.out, sent{peer: id, msg: m})
	return true
}

func (r *recorder) to(id transport.PeerID) []transport.MessageType {
	var types []transport.MessageType
	for _, s := range r.out {
		if s.peer == id {
			types = append(types, s.msg.Type)
		}
	}
	return types
}

func (r *recorder) reset() { r.out = nil }

func msg(t transport.MessageType, payload []byte) *transport.Message {
	return transport.NewMessage(t, payload)
}
