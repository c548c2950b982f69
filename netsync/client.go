package netsync

import (
	"log/slog"

	"github.com/comalice/playerstate"
	"github.com/comalice/playerstate/internal/transport"
)

func (s *Session) clientHandle(in inbound) {
	switch in.kind {
	case evConnect:
		s.server, s.connected = in.peer, true
		s.send(in.peer, transport.MsgHello, hello{Name: s.cfg.Name}.encode())
	case evDisconnect:
		if in.peer == s.server {
			s.connected = false
			s.logger.Warn("disconnected from server")
		}
	case evMessage:
		if in.peer != s.server {
			return
		}
		s.clientMessage(in.msg)
	}
}

func (s *Session) clientMessage(m *transport.Message) {
	switch m.Type {
	case transport.MsgWelcome:
		s.onWelcome(m.Payload)
	case transport.MsgDelta, transport.MsgFull:
		if s.table == nil {
			if len(s.pending) >= s.cfg.MaxPending {
				s.logger.Warn("pre-welcome buffer full, dropping packet", slog.String("type", m.Type.String()))
				return
			}
			s.pending = append(s.pending, pendingPacket{typ: m.Type, payload: m.Payload})
			return
		}
		s.applyRemote(m.Type, m.Payload)
	case transport.MsgLeave:
		ref, err := decodeRef(m.Payload)
		if err != nil {
			s.logger.Warn("bad leave", slog.Any("error", err))
			return
		}
		if s.local != nil && ref == s.local.Ref() {
			return
		}
		if _, ok := s.world.Entity(ref); ok {
			s.world.Detach(ref)
		}
	default:
		s.logger.Debug("ignored message", slog.String("type", m.Type.String()))
	}
}

func (s *Session) onWelcome(payload []byte) {
	if s.table != nil {
		s.logger.Warn("duplicate welcome")
		return
	}
	w, err := decodeWelcome(payload)
	if err != nil {
		s.logger.Error("bad welcome", slog.Any("error", err))
		return
	}
	t, err := playerstate.NetTableFromNames(w.Names)
	if err != nil {
		s.logger.Error("bad net table", slog.Any("error", err))
		return
	}
	e, err := s.world.Attach(s.newHost(w.Ref, s.cfg.Name), playerstate.WithRef(w.Ref), playerstate.WithAuthority(true))
	if err != nil {
		s.logger.Error("attach local entity failed", slog.Uint64("entity", uint64(w.Ref)), slog.Any("error", err))
		return
	}
	e.Reconcile(t)
	s.table, s.id, s.local = t, w.Session, e
	for _, other := range s.world.Entities() {
		if !other.Reconciled() {
			other.Reconcile(t)
		}
	}

	s.sendFull(s.server, e)
	e.ClearNetUpdates()

	pending := s.pending
	s.pending = nil
	for _, p := range pending {
		s.applyRemote(p.typ, p.payload)
	}
	s.logger.Info("welcomed",
		slog.String("session", w.Session.String()),
		slog.Uint64("entity", uint64(w.Ref)),
		slog.Int("replayed", len(pending)))
}

// applyRemote applies another entity's state, creating the entity on first sight.
func (s *Session) applyRemote(typ transport.MessageType, payload []byte) {
	ref, err := playerstate.DecodeEntityRef(payload)
	if err != nil {
		s.logger.Warn("bad packet", slog.Any("error", err))
		return
	}
	if ref == s.local.Ref() {
		return
	}
	e, ok := s.world.Entity(ref)
	if !ok {
		e, err = s.world.Attach(s.newHost(ref, ""), playerstate.WithRef(ref), playerstate.WithAuthority(false))
		if err != nil {
			s.logger.Error("attach remote entity failed", slog.Uint64("entity", uint64(ref)), slog.Any("error", err))
			return
		}
		e.Reconcile(s.table)
	}
	apply := e.ApplyDelta
	if typ == transport.MsgFull {
		apply = e.ApplyFull
	}
	err = applyPacket(apply, payload)
	if err != nil {
		s.logger.Warn("apply failed, requesting resync",
			slog.Uint64("entity", uint64(ref)),
			slog.String("type", typ.String()),
			slog.Any("error", err))
		s.needFull = true
	}
}
