// Package spatial implements the uniform grid that partitions a map's
// entities by position for cheap range queries (spec.md §4.5). It
// generalizes the teacher's fixed-bounds region grid (internal/world's
// 160x241 array of 2048-unit regions keyed by a hardcoded shift) into a
// sparse, configurable-cell-size grid keyed by a signed (cx, cz) pair, so
// a map descriptor can choose its own cell size instead of inheriting a
// constant tuned for one game's coordinate space.
package spatial

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/rivermoor/realmd/internal/entity"
)

// CellKey identifies one grid cell by its integer coordinates.
type CellKey struct {
	CX, CZ int32
}

// Cell holds the entities whose position currently falls inside it.
type Cell struct {
	key CellKey

	mu      sync.RWMutex
	objects map[uint32]entity.Entity

	version atomic.Uint64
}

func newCell(key CellKey) *Cell {
	return &Cell{key: key, objects: make(map[uint32]entity.Entity)}
}

// Key returns the cell's coordinates.
func (c *Cell) Key() CellKey { return c.key }

// Version returns a counter bumped on every add/remove, usable as a cheap
// dirty check before rebuilding a cached snapshot of this cell.
func (c *Cell) Version() uint64 { return c.version.Load() }

func (c *Cell) add(e entity.Entity) {
	c.mu.Lock()
	c.objects[e.ObjectID()] = e
	c.mu.Unlock()
	c.version.Add(1)
}

func (c *Cell) remove(objectID uint32) {
	c.mu.Lock()
	_, existed := c.objects[objectID]
	delete(c.objects, objectID)
	c.mu.Unlock()
	if existed {
		c.version.Add(1)
	}
}

// forEach invokes fn for every entity currently in the cell, stopping
// early if fn returns false. A snapshot slice is taken under the lock so
// fn can run without holding it.
func (c *Cell) forEach(fn func(entity.Entity) bool) {
	c.mu.RLock()
	snapshot := make([]entity.Entity, 0, len(c.objects))
	for _, e := range c.objects {
		snapshot = append(snapshot, e)
	}
	c.mu.RUnlock()

	for _, e := range snapshot {
		if !fn(e) {
			return
		}
	}
}

// Grid is a sparse uniform grid over entity.Vec3 positions. Cells are
// created lazily and never removed, matching the teacher's regions: empty
// cells are cheap enough to keep rather than worth the bookkeeping to
// reclaim.
type Grid struct {
	cellSize float32
	cells    sync.Map // map[CellKey]*Cell
}

// NewGrid creates a grid with the given cell size in world units.
// cellSize must be positive.
func NewGrid(cellSize float32) *Grid {
	return &Grid{cellSize: cellSize}
}

// CellSize returns the grid's configured cell size.
func (g *Grid) CellSize() float32 {
	return g.cellSize
}

// CellOf returns the cell coordinates that contain pos.
func (g *Grid) CellOf(pos entity.Vec3) CellKey {
	return CellKey{
		CX: int32(math.Floor(float64(pos.X / g.cellSize))),
		CZ: int32(math.Floor(float64(pos.Z / g.cellSize))),
	}
}

func (g *Grid) cellAt(key CellKey) *Cell {
	if v, ok := g.cells.Load(key); ok {
		return v.(*Cell)
	}
	v, _ := g.cells.LoadOrStore(key, newCell(key))
	return v.(*Cell)
}

// Add places e into the cell matching its current position.
func (g *Grid) Add(e entity.Entity) {
	g.cellAt(g.CellOf(e.Position())).add(e)
}

// Remove takes e out of the cell matching pos (its last known position).
func (g *Grid) Remove(e entity.Entity, pos entity.Vec3) {
	g.cellAt(g.CellOf(pos)).remove(e.ObjectID())
}

// Move relocates e from oldPos's cell to newPos's cell. It is a no-op if
// both positions map to the same cell.
func (g *Grid) Move(e entity.Entity, oldPos, newPos entity.Vec3) {
	oldKey := g.CellOf(oldPos)
	newKey := g.CellOf(newPos)
	if oldKey == newKey {
		return
	}
	g.cellAt(oldKey).remove(e.ObjectID())
	g.cellAt(newKey).add(e)
}

// Range visits every entity within radius of center, scanning only the
// cells that could contain such an entity. Range only prunes by cell, not
// by precise radius, so fn may also see entities farther than radius;
// callers wanting an exact circle should re-check DistanceSquared.
func (g *Grid) Range(center entity.Vec3, radius float32, fn func(entity.Entity) bool) {
	centerKey := g.CellOf(center)
	cellRadius := int32(math.Ceil(float64(radius / g.cellSize)))

	for dx := -cellRadius; dx <= cellRadius; dx++ {
		for dz := -cellRadius; dz <= cellRadius; dz++ {
			key := CellKey{CX: centerKey.CX + dx, CZ: centerKey.CZ + dz}
			v, ok := g.cells.Load(key)
			if !ok {
				continue
			}
			cell := v.(*Cell)
			stop := false
			cell.forEach(func(e entity.Entity) bool {
				if !fn(e) {
					stop = true
					return false
				}
				return true
			})
			if stop {
				return
			}
		}
	}
}

// CellCount returns the number of allocated (ever-nonempty) cells. Used
// by tests and diagnostics, not the hot path.
func (g *Grid) CellCount() int {
	n := 0
	g.cells.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
