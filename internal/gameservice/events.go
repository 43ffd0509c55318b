package gameservice

import (
	"log/slog"
	"time"

	"github.com/rivermoor/realmd/internal/entity"
	"github.com/rivermoor/realmd/internal/session"
	"github.com/rivermoor/realmd/internal/wire"
	"github.com/rivermoor/realmd/internal/worldmap"
)

// spawnOf builds the wire representation of e's current full state, used
// both for ObjectSpawn events and for populating an ObjectSnapshot.
func spawnOf(e entity.Entity) wire.ObjectSpawn {
	hp, maxHP, level := int32(0), int32(0), int32(0)
	switch v := e.(type) {
	case *entity.Character:
		hp, maxHP = v.HP()
		level = v.Level()
	case *entity.Monster:
		hp, maxHP = v.HP()
		level = v.Level()
	}
	pos := e.Position()
	return wire.ObjectSpawn{
		ID:     e.ObjectID(),
		Type:   e.Kind(),
		X:      pos.X,
		Y:      pos.Y,
		Z:      pos.Z,
		HP:     hp,
		MaxHP:  maxHP,
		Level:  level,
	}
}

// updateOf builds an ObjectUpdate carrying only the fields flags marks
// changed, per spec.md §6's flag-gated body.
func updateOf(e entity.Entity, flags uint8) wire.ObjectUpdate {
	u := wire.ObjectUpdate{ID: e.ObjectID(), Flags: flags}
	if flags&wire.UpdateFlagPosition != 0 {
		pos := e.Position()
		u.X, u.Y, u.Z = pos.X, pos.Y, pos.Z
	}
	if flags&wire.UpdateFlagHP != 0 {
		switch v := e.(type) {
		case *entity.Character:
			u.HP, _ = v.HP()
		case *entity.Monster:
			u.HP, _ = v.HP()
		}
	}
	if flags&wire.UpdateFlagLevel != 0 {
		switch v := e.(type) {
		case *entity.Character:
			u.Level = v.Level()
		case *entity.Monster:
			u.Level = v.Level()
		}
	}
	return u
}

// broadcastEvents turns each worldmap.Event into the wire packet its
// kind implies and queues it for every named recipient session.
func (s *Service) broadcastEvents(events []worldmap.Event) {
	for _, e := range events {
		switch e.Kind {
		case worldmap.EventSpawn:
			spawn := spawnOf(e.Entity)
			s.sendToSessions(e.Sessions, spawn.Encode())
		case worldmap.EventDespawn:
			despawn := wire.ObjectDespawn{ID: e.ObjectID}
			s.sendToSessions(e.Sessions, despawn.Encode())
		case worldmap.EventUpdate:
			update := updateOf(e.Entity, e.Flags)
			s.sendToSessions(e.Sessions, update.Encode())
		}
	}
}

// sendSnapshot sends sess the initial ObjectSnapshot of everything within
// its character's interest area, excluding the character itself
// (spec.md §4.10's login flow).
func (s *Service) sendSnapshot(sess *session.Session, self entity.Entity) {
	around := s.world.Snapshot(self.Position(), s.cfg.InterestRadius)
	entries := make([]wire.ObjectSpawn, 0, len(around))
	for _, e := range around {
		if e.ObjectID() == self.ObjectID() {
			continue
		}
		entries = append(entries, spawnOf(e))
	}
	snapshot := wire.ObjectSnapshot{Entries: entries}
	s.send(sess, snapshot.Encode())
}

func (s *Service) sendToSessions(sids []string, body []byte) {
	for _, sid := range sids {
		sess, ok := s.sessionFor(sid)
		if !ok {
			continue
		}
		if err := sess.Send(body); err != nil {
			slog.Warn("dropping frame, session disconnected after send timeout", "session", sid, "error", err)
		}
	}
}

func (s *Service) send(sess *session.Session, body []byte) {
	if err := sess.Send(body); err != nil {
		slog.Warn("dropping response, session disconnected after send timeout", "session", sess.ID(), "error", err)
	}
}

// TickOnce advances the world by one tick and broadcasts the resulting
// events. The caller (cmd/realmd) drives this on a fixed-rate loop
// (spec.md §4.9).
func (s *Service) TickOnce(now time.Time) {
	events := s.world.Tick(now)
	if len(events) > 0 {
		s.broadcastEvents(events)
	}
}
