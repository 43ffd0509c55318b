package ai

import (
	"math/rand"
	"time"

	"github.com/rivermoor/realmd/internal/entity"
)

// Controller drives one Monster's state machine. One Controller per
// live monster; the worldmap's tick loop calls Tick on each once per
// tick, handing it the nearest character in range so the controller
// never needs to query the spatial grid itself.
type Controller struct {
	monster  *entity.Monster
	behavior Behavior

	lastTransition  time.Time
	lastUpdate      time.Time // last time this state's own update interval fired
	lastRescan      time.Time // last time an Idle/Patrol target rescan ran
	patrolTarget    entity.Vec3
	hasPatrolTarget bool
}

// NewController creates a Controller for m, starting Idle.
func NewController(m *entity.Monster, behavior Behavior, now time.Time) *Controller {
	m.SetState(entity.AIIdle)
	return &Controller{monster: m, behavior: behavior, lastTransition: now}
}

// Monster returns the controlled monster.
func (c *Controller) Monster() *entity.Monster { return c.monster }

// DetectRange returns the monster's aggro/detect range.
func (c *Controller) DetectRange() float32 { return c.behavior.AggroRange }

// ChaseExitRange returns the radius the map's spatial query should scan
// to find a target this controller could chase or keep chasing: 1.5x
// detect range (spec.md §4.8).
func (c *Controller) ChaseExitRange() float32 { return c.behavior.chaseExitRange() }

// transition changes state and resets the controller's internal timers,
// per spec.md §4.8 ("the monster's internal timers are reset on state
// transition").
func (c *Controller) transition(to entity.AIState, now time.Time) {
	c.monster.SetState(to)
	c.lastTransition = now
	c.lastUpdate = now
	c.lastRescan = now
}

// ready reports whether interval has elapsed since last, treating a
// zero last (a timer not yet set since NewController) as immediately
// ready; transition sets the timers to now, so it does not produce one. An
// interval of zero means "every tick" (used by Attack).
func ready(now, last time.Time, interval time.Duration) bool {
	if interval <= 0 {
		return true
	}
	return last.IsZero() || now.Sub(last) >= interval
}

// Tick advances the controller by one tick. nearest is the closest
// active character to the monster, or nil if none is within any
// behavior range. It returns true if the monster's position changed.
func (c *Controller) Tick(now time.Time, nearest *entity.Character) (moved bool) {
	switch c.monster.State() {
	case entity.AIDead:
		return false
	case entity.AIIdle:
		return c.tickIdle(now, nearest)
	case entity.AIPatrol:
		return c.tickPatrol(now, nearest)
	case entity.AIChase:
		return c.tickChase(now, nearest)
	case entity.AIAttack:
		return c.tickAttack(now, nearest)
	default:
		return false
	}
}

func (c *Controller) tickIdle(now time.Time, nearest *entity.Character) bool {
	if ready(now, c.lastRescan, c.behavior.RescanInterval) {
		c.lastRescan = now
		if c.withinAggroRange(nearest) {
			c.engage(nearest, now)
			return false
		}
	}
	if !ready(now, c.lastUpdate, c.behavior.IdleUpdateInterval) {
		return false
	}
	c.lastUpdate = now

	if now.Sub(c.lastTransition) >= c.behavior.IdleDuration {
		c.patrolTarget = c.pickPatrolWaypoint()
		c.hasPatrolTarget = true
		c.transition(entity.AIPatrol, now)
	}
	return false
}

func (c *Controller) tickPatrol(now time.Time, nearest *entity.Character) bool {
	if ready(now, c.lastRescan, c.behavior.RescanInterval) {
		c.lastRescan = now
		if c.withinAggroRange(nearest) {
			c.engage(nearest, now)
			return false
		}
	}
	if !ready(now, c.lastUpdate, c.behavior.PatrolUpdateInterval) {
		return false
	}
	c.lastUpdate = now

	if !c.hasPatrolTarget {
		c.patrolTarget = c.pickPatrolWaypoint()
		c.hasPatrolTarget = true
	}

	pos := c.monster.Position()
	next := stepToward(pos, c.patrolTarget, c.behavior.MoveSpeed)
	c.monster.SetPosition(next)

	if distance(next, c.patrolTarget) < 0.5 {
		c.hasPatrolTarget = false
		c.transition(entity.AIIdle, now)
	}
	return next != pos
}

func (c *Controller) tickChase(now time.Time, nearest *entity.Character) bool {
	if nearest == nil || distance(c.monster.Position(), nearest.Position()) > float64(c.behavior.chaseExitRange()) {
		c.disengage(now)
		return c.returnToSpawn(now)
	}

	if !ready(now, c.lastUpdate, c.behavior.ChaseUpdateInterval) {
		return false
	}
	c.lastUpdate = now

	pos := c.monster.Position()
	target := nearest.Position()
	if distance(pos, target) <= float64(c.behavior.AttackRange) {
		c.transition(entity.AIAttack, now)
		return false
	}

	next := stepToward(pos, target, c.behavior.MoveSpeed)
	c.monster.SetPosition(next)
	return next != pos
}

func (c *Controller) tickAttack(now time.Time, nearest *entity.Character) bool {
	if nearest == nil || nearest.ObjectID() != c.monster.Target() {
		c.disengage(now)
		return c.returnToSpawn(now)
	}

	if distance(c.monster.Position(), nearest.Position()) > float64(c.behavior.AttackRange) {
		c.transition(entity.AIChase, now)
	}
	return false
}

func (c *Controller) withinAggroRange(nearest *entity.Character) bool {
	if nearest == nil {
		return false
	}
	return distance(c.monster.Position(), nearest.Position()) <= float64(c.behavior.AggroRange)
}

func (c *Controller) engage(target *entity.Character, now time.Time) {
	c.monster.SetTarget(target.ObjectID())
	c.transition(entity.AIChase, now)
}

func (c *Controller) disengage(now time.Time) {
	c.monster.ClearTarget()
}

// returnToSpawn walks the monster back toward its spawn point and
// drops it into Idle once it arrives.
func (c *Controller) returnToSpawn(now time.Time) bool {
	pos := c.monster.Position()
	spawn := c.monster.SpawnPoint()
	next := stepToward(pos, spawn, c.behavior.MoveSpeed)
	c.monster.SetPosition(next)
	if next == spawn {
		c.transition(entity.AIIdle, now)
	}
	return next != pos
}

// pickPatrolWaypoint returns a random point within ±PatrolRadius of the
// spawn anchor on x and z (spec.md §4.8).
func (c *Controller) pickPatrolWaypoint() entity.Vec3 {
	spawn := c.monster.SpawnPoint()
	r := c.behavior.PatrolRadius
	return entity.Vec3{
		X: spawn.X + (rand.Float32()*2-1)*r,
		Y: spawn.Y,
		Z: spawn.Z + (rand.Float32()*2-1)*r,
	}
}
