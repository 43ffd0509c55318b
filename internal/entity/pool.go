package entity

import "sync"

// CharacterPool rents and returns Character instances, reducing allocation
// churn across login/logout cycles (spec.md §4.8's "type-keyed object
// pool"). Grounded on the teacher's BytePool: a sync.Pool with a reset
// step on return so a stale occupant's state never leaks to the next
// renter.
type CharacterPool struct {
	pool sync.Pool
}

// NewCharacterPool creates an empty Character pool.
func NewCharacterPool() *CharacterPool {
	p := &CharacterPool{}
	p.pool.New = func() any {
		return &Character{moveSpeed: DefaultMoveSpeed}
	}
	return p
}

// Rent returns a Character configured with the given identity and spawn
// state, either freshly allocated or recycled from a prior Return.
func (p *CharacterPool) Rent(objectID uint32, name string, pos Vec3, hp, maxHP, level int32) *Character {
	c := p.pool.Get().(*Character)
	c.objectID = objectID
	c.name = name
	c.position = pos
	c.hp = hp
	c.maxHP = maxHP
	c.level = level
	c.active = true
	return c
}

// Return clears c and releases it back to the pool. c must not be used by
// the caller after Return.
func (p *CharacterPool) Return(c *Character) {
	if c == nil {
		return
	}
	c.reset()
	p.pool.Put(c)
}

// MonsterPool rents and returns Monster instances, same shape as
// CharacterPool but for server-controlled NPCs respawned repeatedly over
// a map's lifetime.
type MonsterPool struct {
	pool sync.Pool
}

// NewMonsterPool creates an empty Monster pool.
func NewMonsterPool() *MonsterPool {
	p := &MonsterPool{}
	p.pool.New = func() any {
		return &Monster{}
	}
	return p
}

// Rent returns a Monster configured with the given identity, template and
// spawn state, idle, either freshly allocated or recycled.
func (p *MonsterPool) Rent(objectID uint32, templateID int32, spawn Vec3, hp, maxHP, level int32, aggroRange float32) *Monster {
	m := p.pool.Get().(*Monster)
	m.objectID = objectID
	m.templateID = templateID
	m.spawnPoint = spawn
	m.aggroRange = aggroRange
	m.position = spawn
	m.hp = hp
	m.maxHP = maxHP
	m.level = level
	m.active = true
	m.state = AIIdle
	m.target = 0
	return m
}

// Return clears m and releases it back to the pool. m must not be used by
// the caller after Return.
func (p *MonsterPool) Return(m *Monster) {
	if m == nil {
		return
	}
	m.reset()
	p.pool.Put(m)
}
