package gameservice

import (
	"log/slog"
	"time"

	"github.com/rivermoor/realmd/internal/dispatch"
	"github.com/rivermoor/realmd/internal/session"
	"github.com/rivermoor/realmd/internal/wire"
)

// OnFrame is the session.FrameHandler every accepted connection is built
// with. Heartbeats are handled inline — the session's read loop already
// touched last-activity before calling us — everything else is handed to
// the priority dispatcher (spec.md §4.2, §4.4).
func (s *Service) OnFrame(sess *session.Session, body []byte, recvTime time.Time) {
	id, err := wire.PeekPacketID(body)
	if err != nil {
		slog.Warn("dropping malformed frame", "session", sess.ID(), "error", err)
		sess.Close()
		return
	}
	if id == wire.PacketHeartbeat {
		return
	}

	s.dispatcher.Enqueue(&dispatch.Job{
		SessionID: sess.ID(),
		Body:      body,
		RecvTime:  recvTime,
		Priority:  priorityFor(id),
	})
}

// priorityFor maps a packet id to its dispatcher priority class per
// spec.md §4.4's table.
func priorityFor(id wire.PacketID) dispatch.Priority {
	switch id {
	case wire.PacketMoveRequest, wire.PacketObjectUpdate:
		return dispatch.PriorityGameplay
	case wire.PacketObjectSpawn, wire.PacketObjectDespawn,
		wire.PacketLoginRequest, wire.PacketReconnectRequest:
		return dispatch.PriorityControl
	case wire.PacketHeartbeat:
		return dispatch.PriorityIdle
	default:
		return dispatch.PriorityDefault
	}
}

// ProcessJob is the dispatch.Handler the dispatcher's worker pool calls
// for every dequeued Job. A handler panic is recovered and logged so one
// bad packet never takes down a worker (spec.md §4.4's failure policy).
func (s *Service) ProcessJob(job *dispatch.Job) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("recovered panic in packet handler", "session", job.SessionID, "panic", r)
		}
	}()

	sess, ok := s.sessionFor(job.SessionID)
	if !ok {
		return
	}

	id, pkt, err := wire.Decode(job.Body)
	if err != nil {
		slog.Warn("protocol error decoding frame", "session", job.SessionID, "error", err)
		sess.Close()
		return
	}

	switch id {
	case wire.PacketLoginRequest:
		s.handleLogin(sess, pkt.(*wire.LoginRequest))
	case wire.PacketReconnectRequest:
		s.handleReconnect(sess, pkt.(*wire.ReconnectRequest))
	case wire.PacketMoveRequest:
		s.handleMove(sess, pkt.(*wire.MoveRequest))
	default:
		slog.Debug("no handler registered for packet", "packetID", id, "session", job.SessionID)
	}
}

func (s *Service) sessionFor(sid string) (*session.Session, bool) {
	rs, ok := s.registry.Get(sid)
	if !ok {
		return nil, false
	}
	sess, ok := rs.(*session.Session)
	return sess, ok
}
