package spatial

import (
	"testing"

	"github.com/rivermoor/realmd/internal/entity"
)

func TestCellOf(t *testing.T) {
	g := NewGrid(10)

	tests := []struct {
		name   string
		pos    entity.Vec3
		wantCX int32
		wantCZ int32
	}{
		{"origin", entity.Vec3{X: 0, Y: 0, Z: 0}, 0, 0},
		{"just inside first cell", entity.Vec3{X: 9.9, Z: 9.9}, 0, 0},
		{"exactly on boundary", entity.Vec3{X: 10, Z: 10}, 1, 1},
		{"negative coordinate", entity.Vec3{X: -0.1, Z: -0.1}, -1, -1},
		{"negative cell interior", entity.Vec3{X: -15, Z: -25}, -2, -3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := g.CellOf(tt.pos)
			if got.CX != tt.wantCX || got.CZ != tt.wantCZ {
				t.Errorf("CellOf(%+v) = %+v, want {%d %d}", tt.pos, got, tt.wantCX, tt.wantCZ)
			}
		})
	}
}

func TestAddAndRangeFindsEntitiesInRadius(t *testing.T) {
	g := NewGrid(10)
	near := entity.NewCharacter(1, "near", entity.Vec3{X: 5, Z: 5}, 100, 100, 1)
	far := entity.NewCharacter(2, "far", entity.Vec3{X: 500, Z: 500}, 100, 100, 1)

	g.Add(near)
	g.Add(far)

	var found []uint32
	g.Range(entity.Vec3{X: 0, Z: 0}, 50, func(e entity.Entity) bool {
		found = append(found, e.ObjectID())
		return true
	})

	if len(found) != 1 || found[0] != 1 {
		t.Errorf("Range found %v, want only entity 1", found)
	}
}

func TestMoveRelocatesBetweenCells(t *testing.T) {
	g := NewGrid(10)
	c := entity.NewCharacter(1, "mover", entity.Vec3{X: 0, Z: 0}, 100, 100, 1)
	g.Add(c)

	oldPos := c.Position()
	newPos := entity.Vec3{X: 1000, Z: 1000}
	c.SetPosition(newPos)
	g.Move(c, oldPos, newPos)

	var foundNearOrigin bool
	g.Range(entity.Vec3{X: 0, Z: 0}, 20, func(e entity.Entity) bool {
		foundNearOrigin = true
		return true
	})
	if foundNearOrigin {
		t.Error("entity still visible near its old position after Move")
	}

	var foundNearNewPos bool
	g.Range(newPos, 20, func(e entity.Entity) bool {
		if e.ObjectID() == c.ObjectID() {
			foundNearNewPos = true
		}
		return true
	})
	if !foundNearNewPos {
		t.Error("entity not found near its new position after Move")
	}
}

func TestMoveWithinSameCellIsNoop(t *testing.T) {
	g := NewGrid(10)
	c := entity.NewCharacter(1, "jiggler", entity.Vec3{X: 1, Z: 1}, 100, 100, 1)
	g.Add(c)

	g.Move(c, entity.Vec3{X: 1, Z: 1}, entity.Vec3{X: 2, Z: 2})

	if g.CellCount() != 1 {
		t.Errorf("CellCount() = %d, want 1 (no new cell should be created)", g.CellCount())
	}
}

func TestRemove(t *testing.T) {
	g := NewGrid(10)
	c := entity.NewCharacter(1, "gone", entity.Vec3{X: 0, Z: 0}, 100, 100, 1)
	g.Add(c)
	g.Remove(c, c.Position())

	var found bool
	g.Range(entity.Vec3{X: 0, Z: 0}, 5, func(e entity.Entity) bool {
		found = true
		return true
	})
	if found {
		t.Error("entity still found after Remove")
	}
}

func TestRangeStopsEarlyWhenFnReturnsFalse(t *testing.T) {
	g := NewGrid(10)
	for i := uint32(1); i <= 5; i++ {
		g.Add(entity.NewCharacter(i, "c", entity.Vec3{X: float32(i), Z: float32(i)}, 100, 100, 1))
	}

	visited := 0
	g.Range(entity.Vec3{X: 0, Z: 0}, 100, func(e entity.Entity) bool {
		visited++
		return false
	})

	if visited != 1 {
		t.Errorf("Range visited %d entities after early stop, want 1", visited)
	}
}

func BenchmarkGridRange(b *testing.B) {
	g := NewGrid(10)
	for i := uint32(0); i < 1000; i++ {
		pos := entity.Vec3{X: float32(i % 100), Z: float32(i / 100)}
		g.Add(entity.NewCharacter(i, "bench", pos, 100, 100, 1))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		g.Range(entity.Vec3{X: 50, Z: 5}, 30, func(e entity.Entity) bool { return true })
	}
}

func BenchmarkCellOf(b *testing.B) {
	g := NewGrid(10)
	pos := entity.Vec3{X: 1700, Z: 1700}
	for i := 0; i < b.N; i++ {
		g.CellOf(pos)
	}
}
