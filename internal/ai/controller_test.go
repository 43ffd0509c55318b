package ai

import (
	"testing"
	"time"

	"github.com/rivermoor/realmd/internal/entity"
)

func testBehavior() Behavior {
	return Behavior{
		AggroRange:   40,
		AttackRange:  5,
		MoveSpeed:    10,
		IdleDuration: time.Second,
		PatrolRadius: 20,
	}
}

func TestControllerStartsIdle(t *testing.T) {
	m := entity.NewMonster(10000, 1, entity.Vec3{}, 50, 50, 1, 40)
	c := NewController(m, testBehavior(), time.Now())
	if m.State() != entity.AIIdle {
		t.Errorf("State() = %v, want AIIdle", m.State())
	}
	_ = c
}

func TestIdleTransitionsToChaseWhenCharacterInAggroRange(t *testing.T) {
	now := time.Now()
	m := entity.NewMonster(10000, 1, entity.Vec3{}, 50, 50, 1, 40)
	c := NewController(m, testBehavior(), now)

	nearby := entity.NewCharacter(1, "nora", entity.Vec3{X: 10}, 100, 100, 1)
	c.Tick(now, nearby)

	if m.State() != entity.AIChase {
		t.Errorf("State() = %v, want AIChase", m.State())
	}
	if m.Target() != 1 {
		t.Errorf("Target() = %d, want 1", m.Target())
	}
}

func TestIdleTransitionsToPatrolAfterIdleDuration(t *testing.T) {
	now := time.Now()
	m := entity.NewMonster(10000, 1, entity.Vec3{}, 50, 50, 1, 40)
	c := NewController(m, testBehavior(), now)

	c.Tick(now.Add(2*time.Second), nil)

	if m.State() != entity.AIPatrol {
		t.Errorf("State() = %v, want AIPatrol", m.State())
	}
}

func TestChaseBecomesAttackWithinAttackRange(t *testing.T) {
	now := time.Now()
	m := entity.NewMonster(10000, 1, entity.Vec3{}, 50, 50, 1, 40)
	c := NewController(m, testBehavior(), now)

	target := entity.NewCharacter(1, "nora", entity.Vec3{X: 3}, 100, 100, 1)
	m.SetState(entity.AIChase)
	m.SetTarget(1)

	c.Tick(now, target)

	if m.State() != entity.AIAttack {
		t.Errorf("State() = %v, want AIAttack", m.State())
	}
}

func TestChaseStepsTowardTargetWhenFar(t *testing.T) {
	now := time.Now()
	m := entity.NewMonster(10000, 1, entity.Vec3{}, 50, 50, 1, 40)
	c := NewController(m, testBehavior(), now)
	m.SetState(entity.AIChase)
	m.SetTarget(1)

	target := entity.NewCharacter(1, "nora", entity.Vec3{X: 50}, 100, 100, 1)
	moved := c.Tick(now, target)

	if !moved {
		t.Error("Tick() should report movement while chasing a distant target")
	}
	pos := m.Position()
	if pos.X <= 0 || pos.X >= 50 {
		t.Errorf("monster position %v did not step toward target", pos)
	}
}

func TestChaseGivesUpAndReturnsWhenTargetLost(t *testing.T) {
	now := time.Now()
	m := entity.NewMonster(10000, 1, entity.Vec3{X: 50}, 50, 50, 1, 40)
	c := NewController(m, testBehavior(), now)
	m.SetState(entity.AIChase)
	m.SetTarget(1)

	c.Tick(now, nil)

	if m.Target() != 0 {
		t.Errorf("Target() = %d, want 0 after losing the target", m.Target())
	}
	if m.State() == entity.AIChase {
		t.Error("State() should not remain AIChase once target is gone")
	}
}

func TestAttackFallsBackToChaseWhenTargetMovesAway(t *testing.T) {
	now := time.Now()
	m := entity.NewMonster(10000, 1, entity.Vec3{}, 50, 50, 1, 40)
	c := NewController(m, testBehavior(), now)
	m.SetState(entity.AIAttack)
	m.SetTarget(1)

	target := entity.NewCharacter(1, "nora", entity.Vec3{X: 50}, 100, 100, 1)
	c.Tick(now, target)

	if m.State() != entity.AIChase {
		t.Errorf("State() = %v, want AIChase", m.State())
	}
}

func TestPatrolWaypointStaysWithinRadiusOfSpawn(t *testing.T) {
	spawn := entity.Vec3{X: 100, Y: 0, Z: 100}
	m := entity.NewMonster(10000, 1, spawn, 50, 50, 1, 40)
	behavior := testBehavior()
	behavior.PatrolRadius = 5
	c := NewController(m, behavior, time.Now())

	for i := 0; i < 20; i++ {
		wp := c.pickPatrolWaypoint()
		if wp.X < spawn.X-5 || wp.X > spawn.X+5 {
			t.Errorf("waypoint.X = %v, want within ±5 of %v", wp.X, spawn.X)
		}
		if wp.Z < spawn.Z-5 || wp.Z > spawn.Z+5 {
			t.Errorf("waypoint.Z = %v, want within ±5 of %v", wp.Z, spawn.Z)
		}
	}
}

func TestPatrolMovementIsThrottledByUpdateInterval(t *testing.T) {
	now := time.Now()
	m := entity.NewMonster(10000, 1, entity.Vec3{}, 50, 50, 1, 40)
	behavior := testBehavior()
	behavior.IdleDuration = 0
	behavior.PatrolUpdateInterval = 200 * time.Millisecond
	c := NewController(m, behavior, now)

	c.Tick(now, nil) // Idle -> Patrol, resetting the update timer
	if m.State() != entity.AIPatrol {
		t.Fatalf("State() = %v, want AIPatrol", m.State())
	}

	moved := c.Tick(now.Add(50*time.Millisecond), nil)
	if moved {
		t.Error("Tick() should not move before the patrol update interval elapses")
	}

	moved = c.Tick(now.Add(250*time.Millisecond), nil)
	if !moved {
		t.Error("Tick() should move once the patrol update interval elapses")
	}
}

func TestChaseExitsAt1point5xDetectRangeNotFixedLeash(t *testing.T) {
	now := time.Now()
	behavior := testBehavior()
	behavior.AggroRange = 40 // chase-exit = 60

	within := entity.NewMonster(10000, 1, entity.Vec3{}, 50, 50, 1, 40)
	cWithin := NewController(within, behavior, now)
	within.SetState(entity.AIChase)
	within.SetTarget(1)
	withinTarget := entity.NewCharacter(1, "nora", entity.Vec3{X: 59}, 100, 100, 1)
	cWithin.Tick(now, withinTarget)
	if within.State() != entity.AIChase {
		t.Errorf("State() = %v, want AIChase while target is within 1.5x detect range", within.State())
	}

	beyond := entity.NewMonster(10001, 1, entity.Vec3{}, 50, 50, 1, 40)
	cBeyond := NewController(beyond, behavior, now)
	beyond.SetState(entity.AIChase)
	beyond.SetTarget(1)
	beyondTarget := entity.NewCharacter(1, "nora", entity.Vec3{X: 61}, 100, 100, 1)
	cBeyond.Tick(now, beyondTarget)
	if beyond.State() == entity.AIChase {
		t.Error("State() should leave AIChase once target exceeds 1.5x detect range")
	}
}

func TestDeadMonsterNeverTicks(t *testing.T) {
	now := time.Now()
	m := entity.NewMonster(10000, 1, entity.Vec3{}, 50, 50, 1, 40)
	c := NewController(m, testBehavior(), now)
	m.SetHP(0) // transitions to AIDead

	moved := c.Tick(now, entity.NewCharacter(1, "x", entity.Vec3{X: 1}, 100, 100, 1))
	if moved {
		t.Error("a dead monster should never move")
	}
	if m.State() != entity.AIDead {
		t.Errorf("State() = %v, want AIDead", m.State())
	}
}
