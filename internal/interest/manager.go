// Package interest tracks each session's area of interest and resolves
// spawn/move/despawn events against it (spec.md §4.6). It plays the role
// the teacher's VisibilityManager plays for Player visibility caches, but
// inverted: instead of each player periodically pulling a fresh snapshot
// of nearby regions, sessions push position updates and the manager
// pushes back exactly the enter/leave deltas a session needs to stay in
// sync, via a reverse (object -> interested sessions) index.
package interest

import (
	"sync"

	"github.com/rivermoor/realmd/internal/entity"
)

// Area is one session's region of interest, centered on its character.
type Area struct {
	Center entity.Vec3
	Radius float32
}

func (a Area) contains(pos entity.Vec3) bool {
	r := float64(a.Radius)
	return a.Center.DistanceSquared(pos) <= r*r
}

// Manager holds every session's current Area and the reverse index of
// which sessions currently have each object marked visible.
type Manager struct {
	mu    sync.RWMutex
	areas map[string]Area            // sessionID -> area
	index map[uint32]map[string]bool // objectID -> set of sessionIDs currently tracking it
}

// NewManager creates an empty interest manager.
func NewManager() *Manager {
	return &Manager{
		areas: make(map[string]Area),
		index: make(map[uint32]map[string]bool),
	}
}

// SetInterestArea registers or updates sessionID's area of interest.
func (m *Manager) SetInterestArea(sessionID string, area Area) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.areas[sessionID] = area
}

// RemoveInterestArea drops sessionID entirely, removing it from every
// object's reverse-index entry. Returns the objectIDs the session was
// tracking, so the caller can tell that session's client to despawn them
// (though the session is usually already gone by the time this matters).
func (m *Manager) RemoveInterestArea(sessionID string) []uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.areas, sessionID)

	var tracked []uint32
	for objectID, sessions := range m.index {
		if sessions[sessionID] {
			tracked = append(tracked, objectID)
			delete(sessions, sessionID)
			if len(sessions) == 0 {
				delete(m.index, objectID)
			}
		}
	}
	return tracked
}

// ResolveOnSpawn reports which sessions should be told to spawn obj, and
// marks obj visible for each in the reverse index.
func (m *Manager) ResolveOnSpawn(obj entity.Entity) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var interested []string
	pos := obj.Position()
	for sessionID, area := range m.areas {
		if area.contains(pos) {
			interested = append(interested, sessionID)
			m.markVisible(obj.ObjectID(), sessionID)
		}
	}
	return interested
}

// ResolveOnMove reports which sessions newly entered obj's visibility
// (enter) and which newly lost it (leave), given its position change. A
// session that already had it visible and still does appears in neither
// slice — the caller is expected to send it a delta update instead.
func (m *Manager) ResolveOnMove(obj entity.Entity, newPos entity.Vec3) (enter, leave []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	objectID := obj.ObjectID()
	for sessionID, area := range m.areas {
		wasVisible := m.index[objectID][sessionID]
		isVisible := area.contains(newPos)

		switch {
		case isVisible && !wasVisible:
			enter = append(enter, sessionID)
			m.markVisible(objectID, sessionID)
		case wasVisible && !isVisible:
			leave = append(leave, sessionID)
			m.markHidden(objectID, sessionID)
		}
	}
	return enter, leave
}

// ResolveOnDespawn reports the sessions that currently have obj visible,
// and removes it entirely from the reverse index.
func (m *Manager) ResolveOnDespawn(objectID uint32) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	sessions := m.index[objectID]
	if len(sessions) == 0 {
		return nil
	}
	out := make([]string, 0, len(sessions))
	for sessionID := range sessions {
		out = append(out, sessionID)
	}
	delete(m.index, objectID)
	return out
}

// IsVisible reports whether objectID is currently marked visible to
// sessionID. Exposed for tests and for the per-tick delta broadcast pass
// to decide whether a session should receive a full spawn vs an update.
func (m *Manager) IsVisible(objectID uint32, sessionID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.index[objectID][sessionID]
}

// VisibleTo returns every session currently tracking objectID as
// visible, without mutating the index. Used by the per-tick delta pass
// to know who to send an ObjectUpdate to once a visible entity changes.
func (m *Manager) VisibleTo(objectID uint32) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sessions := m.index[objectID]
	if len(sessions) == 0 {
		return nil
	}
	out := make([]string, 0, len(sessions))
	for sessionID := range sessions {
		out = append(out, sessionID)
	}
	return out
}

// markVisible and markHidden assume the caller already holds m.mu.
func (m *Manager) markVisible(objectID uint32, sessionID string) {
	sessions, ok := m.index[objectID]
	if !ok {
		sessions = make(map[string]bool)
		m.index[objectID] = sessions
	}
	sessions[sessionID] = true
}

func (m *Manager) markHidden(objectID uint32, sessionID string) {
	sessions, ok := m.index[objectID]
	if !ok {
		return
	}
	delete(sessions, sessionID)
	if len(sessions) == 0 {
		delete(m.index, objectID)
	}
}
