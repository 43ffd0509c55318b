package worldmap

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rivermoor/realmd/internal/ai"
	"github.com/rivermoor/realmd/internal/entity"
	"github.com/rivermoor/realmd/internal/interest"
	"github.com/rivermoor/realmd/internal/spatial"
	"github.com/rivermoor/realmd/internal/statetracker"
)

// EventKind labels what happened to an entity during a tick.
type EventKind uint8

const (
	EventSpawn EventKind = iota
	EventDespawn
	EventUpdate
)

// Event is one spawn/despawn/update that the caller (internal/gameservice)
// must turn into wire packets for the named recipient sessions.
type Event struct {
	Kind     EventKind
	Entity   entity.Entity // set for EventSpawn and EventUpdate
	ObjectID uint32        // always set
	Flags    uint8         // set for EventUpdate (wire.UpdateFlag*)
	Sessions []string
}

// Map owns one simulated area: its entities, spatial grid, interest
// index, broadcast-delta tracker, and AI controllers. It generalizes
// the teacher's singleton World + spawn.Manager pairing into an
// instantiable type so a process can run more than one map (spec.md
// §2's component table lists Map as the unit the tick loop operates
// on).
type Map struct {
	name                  string
	behavior              ai.Behavior
	defaultInterestRadius float32
	tickPeriod            time.Duration
	lastTick              time.Time

	grid     *spatial.Grid
	interest *interest.Manager
	tracker  *statetracker.Tracker

	characterPool *entity.CharacterPool
	monsterPool   *entity.MonsterPool

	mu              sync.Mutex
	characters      map[uint32]*entity.Character
	monsters        map[uint32]*entity.Monster
	controllers     map[uint32]*ai.Controller
	sessionByChar   map[uint32]string
	pendingRespawns []respawnTask

	nextCharacterID atomic.Uint32
	nextMonsterID   atomic.Uint32
}

// New creates an empty Map with the given cell size for its spatial
// grid.
func New(name string, cellSize float32) *Map {
	m := &Map{
		name:                  name,
		behavior:              ai.DefaultBehavior(),
		defaultInterestRadius: 80,
		tickPeriod:            50 * time.Millisecond,
		grid:                  spatial.NewGrid(cellSize),
		interest:              interest.NewManager(),
		tracker:               statetracker.New(),
		characterPool:         entity.NewCharacterPool(),
		monsterPool:           entity.NewMonsterPool(),
		characters:            make(map[uint32]*entity.Character),
		monsters:              make(map[uint32]*entity.Monster),
		controllers:           make(map[uint32]*ai.Controller),
		sessionByChar:         make(map[uint32]string),
	}
	m.nextCharacterID.Store(entity.CharacterIDStart)
	m.nextMonsterID.Store(entity.MonsterIDStart)
	return m
}

// Name returns the map's identifier.
func (m *Map) Name() string { return m.name }

// SetDefaultInterestRadius changes the radius a session's interest area
// is given when MoveCharacter moves its character. AddCharacter and
// AdoptCharacter take their radius as a parameter and do not use it.
func (m *Map) SetDefaultInterestRadius(radius float32) {
	m.defaultInterestRadius = radius
}

// SetTickPeriod changes the nominal tick duration used as the
// character-movement timestep when no prior tick timestamp is known
// (the very first Tick call).
func (m *Map) SetTickPeriod(period time.Duration) {
	m.tickPeriod = period
}

// Character looks up a live character by object id.
func (m *Map) Character(objectID uint32) (*entity.Character, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.characters[objectID]
	return c, ok
}

// LoadDescriptor populates the map's monster population from d. Call
// once, before accepting sessions.
func (m *Map) LoadDescriptor(d Descriptor, now time.Time) {
	for _, spawn := range d.Monsters {
		m.spawnMonster(spawn, now)
	}
}

func (m *Map) spawnMonster(spec MonsterSpawn, now time.Time) *entity.Monster {
	id := m.nextMonsterID.Add(1) - 1
	mon := m.monsterPool.Rent(id, spec.TemplateID, spec.Position, spec.HP, spec.HP, spec.Level, spec.AggroRange)

	m.mu.Lock()
	m.monsters[id] = mon
	behavior := m.behavior
	behavior.AggroRange = spec.AggroRange
	m.controllers[id] = ai.NewController(mon, behavior, now)
	m.mu.Unlock()

	m.grid.Add(mon)
	m.interest.ResolveOnSpawn(mon)
	m.tracker.Commit(id, snapshotOf(mon))
	return mon
}

func snapshotOf(e entity.Entity) statetracker.Snapshot {
	hp, level := int32(0), int32(0)
	switch v := e.(type) {
	case *entity.Character:
		hp, _ = v.HP()
		level = v.Level()
	case *entity.Monster:
		hp, _ = v.HP()
		level = v.Level()
	}
	return statetracker.Snapshot{Position: e.Position(), HP: hp, Level: level}
}

// AddCharacter spawns a new Character owned by sessionID at pos, makes
// it interested in everything within interestRadius of itself, and
// returns both the character and the spawn events other already-present
// sessions need to be told about.
func (m *Map) AddCharacter(sessionID, name string, pos entity.Vec3, hp, maxHP, level int32, interestRadius float32) (*entity.Character, []Event) {
	id := m.nextCharacterID.Add(1) - 1
	c := m.characterPool.Rent(id, name, pos, hp, maxHP, level)

	m.mu.Lock()
	m.characters[id] = c
	m.sessionByChar[id] = sessionID
	m.mu.Unlock()

	m.grid.Add(c)
	m.interest.SetInterestArea(sessionID, interest.Area{Center: pos, Radius: interestRadius})
	interested := m.interest.ResolveOnSpawn(c)
	m.tracker.Commit(id, snapshotOf(c))

	events := []Event{}
	for _, sid := range interested {
		if sid == sessionID {
			continue
		}
		events = append(events, Event{Kind: EventSpawn, Entity: c, ObjectID: id, Sessions: []string{sid}})
	}
	return c, events
}

// RemoveCharacter despawns objectID, returns its pooled instance, and
// reports which sessions need a despawn notification.
func (m *Map) RemoveCharacter(objectID uint32) []Event {
	m.mu.Lock()
	c, ok := m.characters[objectID]
	sessionID := m.sessionByChar[objectID]
	if ok {
		delete(m.characters, objectID)
		delete(m.sessionByChar, objectID)
	}
	m.mu.Unlock()
	if !ok {
		return nil
	}

	pos := c.Position()
	sessions := m.interest.ResolveOnDespawn(objectID)
	if sessionID != "" {
		m.interest.RemoveInterestArea(sessionID)
	}
	m.grid.Remove(c, pos)
	m.tracker.Remove(objectID)
	m.characterPool.Return(c)

	if len(sessions) == 0 {
		return nil
	}
	return []Event{{Kind: EventDespawn, ObjectID: objectID, Sessions: sessions}}
}

func (m *Map) sessionIDFor(objectID uint32) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionByChar[objectID]
}

// MoveCharacter updates objectID's position and resolves the resulting
// interest changes: spawn events for sessions that newly see it, despawn
// events for sessions that lost it, and an update event for everyone
// who already had it visible.
func (m *Map) MoveCharacter(objectID uint32, newPos entity.Vec3) []Event {
	m.mu.Lock()
	c, ok := m.characters[objectID]
	m.mu.Unlock()
	if !ok {
		return nil
	}

	oldPos := c.Position()
	c.SetPosition(newPos)
	m.grid.Move(c, oldPos, newPos)

	sessionID := m.sessionIDFor(objectID)
	if sessionID != "" {
		m.interest.SetInterestArea(sessionID, interest.Area{Center: newPos, Radius: m.interestRadiusFor(sessionID)})
	}

	return m.resolveMoveEvents(c, objectID, newPos)
}

// SetCharacterMoveTarget records where a MoveRequest wants objectID to
// travel. Actual motion is integrated by the tick loop (spec.md §4.10),
// not applied here.
func (m *Map) SetCharacterMoveTarget(objectID uint32, target entity.Vec3) bool {
	m.mu.Lock()
	c, ok := m.characters[objectID]
	m.mu.Unlock()
	if !ok {
		return false
	}
	c.SetMoveTarget(target)
	return true
}

// ParkCharacter is the first half of a disconnect: it removes sessionID's
// interest area and reports the despawn events its neighbors need, but
// leaves the character's entry (HP, level, position) alone in the map
// so a reconnect within the grace window can adopt it unchanged. The
// caller (gameservice) is responsible for remembering objectID so it can
// later call AdoptCharacter or EvictCharacter.
func (m *Map) ParkCharacter(sessionID string, objectID uint32) []Event {
	sessions := m.interest.ResolveOnDespawn(objectID)
	m.interest.RemoveInterestArea(sessionID)
	if len(sessions) == 0 {
		return nil
	}
	return []Event{{Kind: EventDespawn, ObjectID: objectID, Sessions: sessions}}
}

// AdoptCharacter rebinds a parked (or still-live) character to a new
// session: reinstalls its interest area at its current position and
// reports spawn events for any newly-interested neighbors. Returns
// false if objectID is not present in this map at all (the grace window
// already expired and EvictCharacter ran).
func (m *Map) AdoptCharacter(objectID uint32, newSessionID string, interestRadius float32) (*entity.Character, []Event, bool) {
	m.mu.Lock()
	c, ok := m.characters[objectID]
	if ok {
		m.sessionByChar[objectID] = newSessionID
	}
	m.mu.Unlock()
	if !ok {
		return nil, nil, false
	}

	pos := c.Position()
	m.interest.SetInterestArea(newSessionID, interest.Area{Center: pos, Radius: interestRadius})
	interested := m.interest.ResolveOnSpawn(c)

	var events []Event
	for _, sid := range interested {
		if sid == newSessionID {
			continue
		}
		events = append(events, Event{Kind: EventSpawn, Entity: c, ObjectID: objectID, Sessions: []string{sid}})
	}
	return c, events, true
}

// EvictCharacter is the second half of a disconnect, run once the
// reconnection grace window has expired: it fully removes objectID from
// the grid, tracker and characters map and returns it to the pool. No
// events are generated — ParkCharacter already told every former
// observer goodbye.
func (m *Map) EvictCharacter(objectID uint32) {
	m.mu.Lock()
	c, ok := m.characters[objectID]
	if ok {
		delete(m.characters, objectID)
		delete(m.sessionByChar, objectID)
	}
	m.mu.Unlock()
	if !ok {
		return
	}

	m.grid.Remove(c, c.Position())
	m.tracker.Remove(objectID)
	m.characterPool.Return(c)
}

// interestRadiusFor returns the radius MoveCharacter gives a session's
// re-centered interest area: always the map's default. The radius passed
// to AddCharacter or AdoptCharacter is not remembered per session.
func (m *Map) interestRadiusFor(sessionID string) float32 {
	return m.defaultInterestRadius
}

func (m *Map) resolveMoveEvents(e entity.Entity, objectID uint32, newPos entity.Vec3) []Event {
	enter, leave := m.interest.ResolveOnMove(e, newPos)
	var events []Event
	for _, sid := range enter {
		events = append(events, Event{Kind: EventSpawn, Entity: e, ObjectID: objectID, Sessions: []string{sid}})
	}
	for _, sid := range leave {
		events = append(events, Event{Kind: EventDespawn, ObjectID: objectID, Sessions: []string{sid}})
	}

	last, hadLast := m.tracker.Last(objectID)
	current := snapshotOf(e)
	flags, changed := statetracker.Delta(last, current)
	m.tracker.Commit(objectID, current)
	if hadLast && changed {
		entered := make(map[string]bool, len(enter))
		for _, sid := range enter {
			entered[sid] = true
		}
		var stale []string
		for _, sid := range m.interest.VisibleTo(objectID) {
			if !entered[sid] {
				stale = append(stale, sid)
			}
		}
		if len(stale) > 0 {
			events = append(events, Event{Kind: EventUpdate, Entity: e, ObjectID: objectID, Flags: flags, Sessions: stale})
		}
	}
	return events
}

// Tick advances every monster's AI by one step and propagates resulting
// position/state changes as Events. The idle fast path (no characters
// connected) skips AI and spatial work entirely (spec.md §4.9 step 1) —
// with nobody around to observe them, monsters don't need updating.
func (m *Map) Tick(now time.Time) []Event {
	m.mu.Lock()
	if len(m.characters) == 0 {
		m.mu.Unlock()
		return nil
	}
	dt := m.tickPeriod.Seconds()
	if !m.lastTick.IsZero() {
		dt = now.Sub(m.lastTick).Seconds()
	}
	m.lastTick = now

	characterIDs := make([]uint32, 0, len(m.characters))
	for id := range m.characters {
		characterIDs = append(characterIDs, id)
	}
	monsterIDs := make([]uint32, 0, len(m.monsters))
	for id := range m.monsters {
		monsterIDs = append(monsterIDs, id)
	}
	m.mu.Unlock()

	var events []Event
	for _, id := range characterIDs {
		m.mu.Lock()
		c, ok := m.characters[id]
		m.mu.Unlock()
		if !ok || !c.IsActive() {
			continue
		}

		oldPos := c.Position()
		if !c.Step(dt) {
			continue
		}
		newPos := c.Position()
		m.grid.Move(c, oldPos, newPos)
		events = append(events, m.resolveMoveEvents(c, id, newPos)...)
	}

	for _, id := range monsterIDs {
		m.mu.Lock()
		mon, ok := m.monsters[id]
		ctrl := m.controllers[id]
		m.mu.Unlock()
		if !ok || ctrl == nil {
			continue
		}

		if !mon.IsActive() {
			events = append(events, m.evictMonster(id, mon)...)
			continue
		}

		oldPos := mon.Position()
		nearest := m.nearestActiveCharacter(oldPos, ctrl.ChaseExitRange())
		moved := ctrl.Tick(now, nearest)
		if moved {
			newPos := mon.Position()
			m.grid.Move(mon, oldPos, newPos)
			events = append(events, m.resolveMoveEvents(mon, id, newPos)...)
		}
	}

	m.processRespawns(now)
	return events
}

// evictMonster removes a dead (inactive) monster from the grid, tracker
// and controller/monster maps, and returns it to the pool (spec.md
// §4.8's Dead state: "map removes the entity on its next sweep";
// §4.9 step 2: "collect inactive entities and remove them").
func (m *Map) evictMonster(objectID uint32, mon *entity.Monster) []Event {
	m.mu.Lock()
	delete(m.monsters, objectID)
	delete(m.controllers, objectID)
	m.mu.Unlock()

	sessions := m.interest.ResolveOnDespawn(objectID)
	m.grid.Remove(mon, mon.Position())
	m.tracker.Remove(objectID)
	m.monsterPool.Return(mon)

	if len(sessions) == 0 {
		return nil
	}
	return []Event{{Kind: EventDespawn, ObjectID: objectID, Sessions: sessions}}
}

func (m *Map) nearestActiveCharacter(pos entity.Vec3, radius float32) *entity.Character {
	var best *entity.Character
	bestDist := float64(radius) * float64(radius)
	m.grid.Range(pos, radius, func(e entity.Entity) bool {
		c, ok := e.(*entity.Character)
		if !ok || !c.IsActive() {
			return true
		}
		d := pos.DistanceSquared(c.Position())
		if d <= bestDist {
			best = c
			bestDist = d
		}
		return true
	})
	return best
}

// Snapshot returns every active entity within radius of center, used to
// build the initial ObjectSnapshot a newly joined session receives.
func (m *Map) Snapshot(center entity.Vec3, radius float32) []entity.Entity {
	var out []entity.Entity
	r := float64(radius)
	m.grid.Range(center, radius, func(e entity.Entity) bool {
		if e.IsActive() && center.DistanceSquared(e.Position()) <= r*r {
			out = append(out, e)
		}
		return true
	})
	return out
}

// CharacterCount and MonsterCount are diagnostics, not hot-path calls.
func (m *Map) CharacterCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.characters)
}

func (m *Map) MonsterCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.monsters)
}
