package world

import (
	"math/bits"
	"sync"
)

// ChunkID indexes a chunk slot in a ChunkAllocator.
type ChunkID int32

// NoChunk is the zero link.
const NoChunk ChunkID = -1

// GenState tracks how far a chunk has progressed through generation.
type GenState uint8

const (
	GenNone GenState = iota
	GenRequested
	GenTerrain
	GenDone
)

// Meta holds generation and lighting bookkeeping for a chunk.
type Meta struct {
	Gen         GenState
	LightDirty  bool
	SunlightTop bool
	Edits       uint32
}

const allNeighbors = 1<<NumDirections - 1

// Chunk is a ChunkWidth^3 voxel region. Chunks are owned by a ChunkAllocator
// and must not be retained after being freed.
type Chunk struct {
	GridData  *ChunkGridData // shared with the column; owned by the GridDataTable
	Meta      Meta
	Distance2 float32

	mu sync.Mutex

	id           ChunkID
	generation   uint64
	position     ChunkPosition3D
	neighbors    [NumDirections]ChunkID
	neighborMask uint8

	blocks   VoxelContainer[BlockType]
	sunlight VoxelContainer[uint8]
	lamp     VoxelContainer[uint16]
	tertiary VoxelContainer[uint16]

	dirty       bool
	activeIndex int
}

func (c *Chunk) init(pos ChunkPosition3D) {
	c.position = pos
	c.Meta = Meta{}
	c.Distance2 = 0
	c.neighborMask = 0
	for i := range c.neighbors {
		c.neighbors[i] = NoChunk
	}
	c.blocks.Fill(BlockTypeAir)
	c.sunlight.Fill(0)
	c.lamp.Fill(0)
	c.tertiary.Fill(0)
	c.dirty = true
}

func (c *Chunk) setRecyclers(shorts *Recycler[uint16], blocks *Recycler[BlockType], bytes *Recycler[uint8]) {
	c.blocks.setRecycler(blocks)
	c.sunlight.setRecycler(bytes)
	c.lamp.setRecycler(shorts)
	c.tertiary.setRecycler(shorts)
}

func (c *Chunk) releaseVoxels() {
	c.blocks.release()
	c.sunlight.release()
	c.lamp.release()
	c.tertiary.release()
}

// ID returns the allocator slot of the chunk.
func (c *Chunk) ID() ChunkID { return c.id }

// Generation changes every time the slot is recycled for another position.
func (c *Chunk) Generation() uint64 { return c.generation }

// Position returns the grid position of the chunk.
func (c *Chunk) Position() ChunkPosition3D { return c.position }

// Neighbor returns the linked chunk in direction d.
func (c *Chunk) Neighbor(d Direction) (ChunkID, bool) {
	if c.neighborMask&(1<<d) == 0 {
		return NoChunk, false
	}
	return c.neighbors[d], true
}

// HasNeighbor reports whether a chunk is attached in direction d.
func (c *Chunk) HasNeighbor(d Direction) bool { return c.neighborMask&(1<<d) != 0 }

// NumNeighbors returns how many of the six neighbours are attached.
func (c *Chunk) NumNeighbors() int { return bits.OnesCount8(c.neighborMask) }

// HasAllNeighbors reports whether the chunk is surrounded on all six sides.
func (c *Chunk) HasAllNeighbors() bool { return c.neighborMask == allNeighbors }

// Lock acquires the chunk mutex guarding voxel mutation.
func (c *Chunk) Lock() { c.mu.Lock() }

// TryLock acquires the chunk mutex if it is free and reports whether it did.
func (c *Chunk) TryLock() bool { return c.mu.TryLock() }

// Unlock releases the chunk mutex.
func (c *Chunk) Unlock() { c.mu.Unlock() }

// Index converts local (x, y, z) to a flat voxel index.
func Index(x, y, z int) int {
	return y*ChunkLayer + z*ChunkWidth + x
}

// InBounds reports whether local coordinates are inside a chunk.
func InBounds(x, y, z int) bool {
	return x >= 0 && x < ChunkWidth && y >= 0 && y < ChunkWidth && z >= 0 && z < ChunkWidth
}

// GetBlock returns the block at local coordinates; out of range reads air.
func (c *Chunk) GetBlock(x, y, z int) BlockType {
	if !InBounds(x, y, z) {
		return BlockTypeAir
	}
	return c.blocks.Get(Index(x, y, z))
}

// SetBlock writes the block at local coordinates and marks the chunk dirty
// when it changed.
func (c *Chunk) SetBlock(x, y, z int, b BlockType) bool {
	if !InBounds(x, y, z) {
		return false
	}
	if c.blocks.Set(Index(x, y, z), b) {
		c.dirty = true
		c.Meta.Edits++
		return true
	}
	return false
}

// Sunlight returns the sunlight level at local coordinates.
func (c *Chunk) Sunlight(x, y, z int) uint8 {
	if !InBounds(x, y, z) {
		return 0
	}
	return c.sunlight.Get(Index(x, y, z))
}

// SetSunlight writes the sunlight level at local coordinates.
func (c *Chunk) SetSunlight(x, y, z int, v uint8) {
	if InBounds(x, y, z) && c.sunlight.Set(Index(x, y, z), v) {
		c.Meta.LightDirty = true
	}
}

// Lamp returns the packed lamp light at local coordinates.
func (c *Chunk) Lamp(x, y, z int) uint16 {
	if !InBounds(x, y, z) {
		return 0
	}
	return c.lamp.Get(Index(x, y, z))
}

// SetLamp writes the packed lamp light at local coordinates.
func (c *Chunk) SetLamp(x, y, z int, v uint16) {
	if InBounds(x, y, z) && c.lamp.Set(Index(x, y, z), v) {
		c.Meta.LightDirty = true
	}
}

// Tertiary returns the auxiliary voxel channel at local coordinates.
func (c *Chunk) Tertiary(x, y, z int) uint16 {
	if !InBounds(x, y, z) {
		return 0
	}
	return c.tertiary.Get(Index(x, y, z))
}

// SetTertiary writes the auxiliary voxel channel at local coordinates.
func (c *Chunk) SetTertiary(x, y, z int, v uint16) {
	if InBounds(x, y, z) {
		c.tertiary.Set(Index(x, y, z), v)
	}
}

// IsDirty returns whether the chunk has been modified since last mesh.
func (c *Chunk) IsDirty() bool { return c.dirty }

// SetClean marks the chunk as meshed.
func (c *Chunk) SetClean() { c.dirty = false }

// IsBlockUniform reports whether the block channel has no backing array.
func (c *Chunk) IsBlockUniform() bool { return c.blocks.IsUniform() }
