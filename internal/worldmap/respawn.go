package worldmap

import (
	"time"

	"github.com/rivermoor/realmd/internal/entity"
)

// respawnTask remembers where and when to bring a dead monster back.
// Mirrors the shape of the teacher's RespawnTask/RespawnTaskManager —
// a spawnID-keyed map of scheduled times swept by the map's own tick
// loop — but the actual respawn action is intentionally left undone.
type respawnTask struct {
	objectID    uint32
	templateID  int32
	spawn       entity.Vec3
	hp, maxHP   int32
	level       int32
	aggroRange  float32
	respawnTime time.Time
}

// TODO: implement actual respawn — recreate the monster via the map's
// MonsterPool and re-insert it into the grid/interest index. Left as a
// stub (spec.md explicitly calls for this) since the respawn delay and
// variance policy hasn't been decided yet.
func (m *Map) processRespawns(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var remaining []respawnTask
	for _, task := range m.pendingRespawns {
		if now.Before(task.respawnTime) {
			remaining = append(remaining, task)
			continue
		}
		// Respawn due — no-op for now.
	}
	m.pendingRespawns = remaining
}
