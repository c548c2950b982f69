package netsync

import (
	"log/slog"

	"github.com/comalice/playerstate"
	"github.com/comalice/playerstate/internal/transport"
)

func (s *Session) serverHandle(in inbound) {
	switch in.kind {
	case evConnect:
		s.peers[in.peer] = &remote{}
	case evDisconnect:
		s.dropPeer(in.peer)
	case evMessage:
		r, ok := s.peers[in.peer]
		if !ok {
			s.logger.Warn("message from unknown peer", slog.Uint64("peer", uint64(in.peer)))
			return
		}
		s.serverMessage(in.peer, r, in.msg)
	}
}

func (s *Session) serverMessage(id transport.PeerID, r *remote, m *transport.Message) {
	switch m.Type {
	case transport.MsgHello:
		s.admit(id, r, m.Payload)
	case transport.MsgDelta, transport.MsgFull:
		if !r.welcomed {
			s.logger.Warn("state before hello", slog.Uint64("peer", uint64(id)))
			return
		}
		s.applyFromClient(id, r, m)
	case transport.MsgFullRequest:
		if !r.welcomed {
			return
		}
		want, err := decodeRef(m.Payload)
		if err != nil {
			s.logger.Warn("bad full request", slog.Uint64("peer", uint64(id)), slog.Any("error", err))
			return
		}
		for _, e := range s.world.Entities() {
			if e.Ref() != r.ref && (want == 0 || e.Ref() == want) {
				s.sendFull(id, e)
			}
		}
	case transport.MsgLeave:
		s.dropPeer(id)
		s.peers[id] = &remote{}
	default:
		s.logger.Debug("ignored message", slog.Uint64("peer", uint64(id)), slog.String("type", m.Type.String()))
	}
}

func (s *Session) admit(id transport.PeerID, r *remote, payload []byte) {
	if r.welcomed {
		return
	}
	h, err := decodeHello(payload)
	if err != nil {
		s.logger.Warn("bad hello", slog.Uint64("peer", uint64(id)), slog.Any("error", err))
		return
	}
	ref := s.allocRef()
	e, err := s.world.Attach(s.newHost(ref, h.Name), playerstate.WithRef(ref), playerstate.WithAuthority(false))
	if err != nil {
		s.logger.Error("attach failed", slog.String("name", h.Name), slog.Any("error", err))
		return
	}
	e.Reconcile(s.table)
	r.name, r.ref, r.welcomed = h.Name, ref, true
	s.owner[ref] = id

	s.send(id, transport.MsgWelcome, welcome{Session: s.id, Ref: ref, Names: s.table.Names()}.encode())
	for _, other := range s.world.Entities() {
		if other.Ref() != ref {
			s.sendFull(id, other)
		}
	}
	s.logger.Info("client joined",
		slog.Uint64("peer", uint64(id)),
		slog.String("name", h.Name),
		slog.Uint64("entity", uint64(ref)))
}

func (s *Session) allocRef() playerstate.EntityRef {
	for {
		ref := s.nextRef
		s.nextRef++
		if ref == 0 {
			continue
		}
		if _, taken := s.world.Entity(ref); !taken {
			return ref
		}
	}
}

// applyFromClient applies a client's own entity state and queues it for relay.
func (s *Session) applyFromClient(id transport.PeerID, r *remote, m *transport.Message) {
	ref, err := playerstate.DecodeEntityRef(m.Payload)
	if err != nil {
		s.logger.Warn("bad packet", slog.Uint64("peer", uint64(id)), slog.Any("error", err))
		return
	}
	if ref != r.ref {
		s.logger.Warn("state for an entity the peer does not own",
			slog.Uint64("peer", uint64(id)),
			slog.Uint64("entity", uint64(ref)),
			slog.Uint64("owned", uint64(r.ref)))
		return
	}
	e, ok := s.world.Entity(ref)
	if !ok {
		return
	}
	apply := e.ApplyDelta
	if m.Type == transport.MsgFull {
		apply = e.ApplyFull
	}
	err = applyPacket(apply, m.Payload)
	if err != nil {
		s.logger.Warn("apply failed",
			slog.Uint64("peer", uint64(id)),
			slog.String("type", m.Type.String()),
			slog.Any("error", err))
	}
	// Records applied before a failure stay applied here, so they are relayed too and the
	// other clients keep matching the server. The rest of the packet is lost until the
	// owner changes those states again.
	e.MarkAppliedDirty()
}

func (s *Session) dropPeer(id transport.PeerID) {
	r, ok := s.peers[id]
	if !ok {
		return
	}
	delete(s.peers, id)
	if !r.welcomed {
		return
	}
	delete(s.owner, r.ref)
	if err := s.world.Detach(r.ref); err != nil {
		s.logger.Warn("detach failed", slog.Uint64("entity", uint64(r.ref)), slog.Any("error", err))
	}
	s.broadcast(transport.MsgLeave, encodeRef(r.ref), 0)
	s.logger.Info("client left", slog.Uint64("peer", uint64(id)), slog.String("name", r.name))
}
