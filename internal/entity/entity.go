// Package entity defines the server's world objects — Character and
// Monster — the id ranges each kind's object ids come from, and the
// object pools that rent and return them (spec.md §3, §4.8). The pools
// take object ids from the caller; they do not allocate them.
package entity

import "github.com/rivermoor/realmd/internal/wire"

// Kind tags an entity's dynamic type for broadcast and id-range inference.
type Kind = wire.EntityKind

const (
	KindCharacter = wire.EntityCharacter
	KindMonster   = wire.EntityMonster
)

// Vec3 is a world position. Y is vertical; the spatial grid indexes on X/Z.
type Vec3 struct {
	X, Y, Z float32
}

// DistanceSquared returns the squared 3D Euclidean distance to other,
// avoiding a sqrt on the hot path.
func (v Vec3) DistanceSquared(other Vec3) float64 {
	dx := float64(v.X - other.X)
	dy := float64(v.Y - other.Y)
	dz := float64(v.Z - other.Z)
	return dx*dx + dy*dy + dz*dz
}

// Entity is the narrow interface shared by every world object, used by the
// tick loop and broadcast pass to avoid reflection-style type switches
// (spec.md §9: "class hierarchy -> tagged variant").
type Entity interface {
	ObjectID() uint32
	Kind() Kind
	Position() Vec3
	IsActive() bool
}

// ID range partitions, spec.md §3: type is inferrable from id when the
// full record is absent.
const (
	CharacterIDStart uint32 = 1
	MonsterIDStart   uint32 = 10000
)

// IsCharacterID reports whether id falls in the character id range.
func IsCharacterID(id uint32) bool {
	return id >= CharacterIDStart && id < MonsterIDStart
}

// IsMonsterID reports whether id falls in the monster id range.
func IsMonsterID(id uint32) bool {
	return id >= MonsterIDStart
}
