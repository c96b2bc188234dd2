package world

import (
	"fmt"

	"planetgen/internal/cubemap"
)

const (
	// Chunk dimensions in voxels
	ChunkWidth = 32
	ChunkLayer = ChunkWidth * ChunkWidth
	ChunkSize  = ChunkLayer * ChunkWidth
)

// ChunkPosition3D addresses a chunk on one face of the cube-sphere grid.
type ChunkPosition3D struct {
	X, Y, Z int32
	Face    cubemap.Face
}

// ChunkPosition2D addresses a column of chunks; Y is dropped.
type ChunkPosition2D struct {
	X, Z int32
	Face cubemap.Face
}

// To2D returns the column containing p.
func (p ChunkPosition3D) To2D() ChunkPosition2D {
	return ChunkPosition2D{X: p.X, Z: p.Z, Face: p.Face}
}

// Offset returns the position one chunk away in direction d. Neighbours never
// cross cube faces.
func (p ChunkPosition3D) Offset(d Direction) ChunkPosition3D {
	o := directionOffsets[d]
	return ChunkPosition3D{X: p.X + o[0], Y: p.Y + o[1], Z: p.Z + o[2], Face: p.Face}
}

func (p ChunkPosition3D) String() string {
	return fmt.Sprintf("%v(%d,%d,%d)", p.Face, p.X, p.Y, p.Z)
}

func (p ChunkPosition2D) String() string {
	return fmt.Sprintf("%v(%d,%d)", p.Face, p.X, p.Z)
}

// Direction indexes the six neighbour links of a chunk.
type Direction uint8

const (
	DirLeft Direction = iota
	DirRight
	DirBottom
	DirTop
	DirBack
	DirFront

	NumDirections = 6
)

var directionOffsets = [NumDirections][3]int32{
	{-1, 0, 0},
	{1, 0, 0},
	{0, -1, 0},
	{0, 1, 0},
	{0, 0, -1},
	{0, 0, 1},
}

// Opposite returns the direction pointing back at the caller.
func (d Direction) Opposite() Direction { return d ^ 1 }

// Offset returns the unit step of d in chunk-local voxel axes.
func (d Direction) Offset() (dx, dy, dz int) {
	o := directionOffsets[d]
	return int(o[0]), int(o[1]), int(o[2])
}
