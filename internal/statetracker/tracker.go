// Package statetracker remembers the last state broadcast for each
// entity so the per-tick update pass can send only what changed
// (spec.md §4.7), instead of re-serializing full entity state every
// tick the way a naive broadcast would.
package statetracker

import (
	"sync"

	"github.com/rivermoor/realmd/internal/entity"
	"github.com/rivermoor/realmd/internal/wire"
)

// Snapshot is the subset of an entity's state that can change tick to
// tick and is worth diffing before sending an update.
type Snapshot struct {
	Position entity.Vec3
	HP       int32
	Level    int32
}

func snapshotOf(e entity.Entity, hp, level int32) Snapshot {
	return Snapshot{Position: e.Position(), HP: hp, Level: level}
}

// Tracker holds the last broadcast Snapshot per entity.
type Tracker struct {
	mu   sync.Mutex
	last map[uint32]Snapshot
}

// New creates an empty Tracker.
func New() *Tracker {
	return &Tracker{last: make(map[uint32]Snapshot)}
}

// Delta compares current against last, the last broadcast snapshot, and
// returns the flag bits that changed (spec.md §6's ObjectUpdate flag
// table) and whether any did. Call Commit to persist current once the
// update has actually been sent; Delta itself does not mutate state, so
// callers can compute a delta and decide not to send without desyncing
// the tracker.
func Delta(last Snapshot, current Snapshot) (flags uint8, changed bool) {
	if current.Position != last.Position {
		flags |= wire.UpdateFlagPosition
	}
	if current.HP != last.HP {
		flags |= wire.UpdateFlagHP
	}
	if current.Level != last.Level {
		flags |= wire.UpdateFlagLevel
	}
	return flags, flags != 0
}

// Last returns the last committed snapshot for id, and whether one
// exists (false means the entity has never been broadcast — callers
// should send a full spawn instead of a delta).
func (t *Tracker) Last(id uint32) (Snapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	snap, ok := t.last[id]
	return snap, ok
}

// Commit records current as the last broadcast snapshot for id.
func (t *Tracker) Commit(id uint32, current Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last[id] = current
}

// Remove forgets id entirely, e.g. once it despawns.
func (t *Tracker) Remove(id uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.last, id)
}
