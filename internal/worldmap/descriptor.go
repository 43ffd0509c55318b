// Package worldmap ties the spatial grid, interest manager, state
// tracker and AI controllers together into one simulated map, and runs
// its per-tick update loop (spec.md §4.5–§4.9). Grounded on the
// teacher's World (singleton region grid) and spawn.Manager (template
// loading + spawn bookkeeping), generalized away from a singleton so a
// process can host more than one map.
package worldmap

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rivermoor/realmd/internal/entity"
)

// MonsterSpawn describes one monster to place on map load.
type MonsterSpawn struct {
	TemplateID int32        `json:"templateId"`
	Position   entity.Vec3  `json:"position"`
	HP         int32        `json:"hp"`
	Level      int32        `json:"level"`
	AggroRange float32      `json:"aggroRange"`
}

// Descriptor is the on-disk definition of a map's static content
// (spec.md §6): for now just its monster population. Character spawn
// points are decided at login time, not here.
type Descriptor struct {
	Name     string         `json:"name"`
	CellSize float32        `json:"cellSize"`
	Monsters []MonsterSpawn `json:"monsters"`
}

// DefaultDescriptor returns the fallback used when no descriptor path
// is configured or the file can't be read: ten monsters arranged along
// a diagonal, spaced far enough apart that each starts in its own grid
// cell at the default cell size (spec.md §6).
func DefaultDescriptor(cellSize float32) Descriptor {
	const count = 10
	monsters := make([]MonsterSpawn, 0, count)
	for i := 0; i < count; i++ {
		offset := float32(i) * cellSize
		monsters = append(monsters, MonsterSpawn{
			TemplateID: 1,
			Position:   entity.Vec3{X: offset, Y: 0, Z: offset},
			HP:         50,
			Level:      1,
			AggroRange: 40,
		})
	}
	return Descriptor{
		Name:     "default",
		CellSize: cellSize,
		Monsters: monsters,
	}
}

// LoadDescriptor reads a map descriptor from path. If path is empty or
// the file does not exist, it returns DefaultDescriptor.
func LoadDescriptor(path string, fallbackCellSize float32) (Descriptor, error) {
	if path == "" {
		return DefaultDescriptor(fallbackCellSize), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultDescriptor(fallbackCellSize), nil
		}
		return Descriptor{}, fmt.Errorf("reading map descriptor %s: %w", path, err)
	}

	var d Descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return Descriptor{}, fmt.Errorf("parsing map descriptor %s: %w", path, err)
	}
	if d.CellSize <= 0 {
		d.CellSize = fallbackCellSize
	}
	return d, nil
}
