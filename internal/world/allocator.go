package world

import (
	"errors"
	"sort"
	"sync"
)

// ErrNoChunk is returned when a chunk ID does not refer to a live chunk.
var ErrNoChunk = errors.New("world: no such chunk")

const maxSpareArrays = 256

// ChunkAllocator owns chunk storage. Chunks live in an arena indexed by
// ChunkID; neighbour links are IDs into the same arena.
//
// Lock order: chunk mutexes (ascending ID), then the allocator, then the
// grid data table.
type ChunkAllocator struct {
	mu     sync.RWMutex
	chunks []*Chunk
	free   []ChunkID
	active []ChunkID
	byPos  map[ChunkPosition3D]ChunkID

	grid   *GridDataTable
	shorts *Recycler[uint16]
	blocks *Recycler[BlockType]
	bytes  *Recycler[uint8]
}

// NewChunkAllocator creates an allocator whose chunks share grid data from grid.
func NewChunkAllocator(grid *GridDataTable) *ChunkAllocator {
	if grid == nil {
		grid = NewGridDataTable()
	}
	return &ChunkAllocator{
		byPos:  make(map[ChunkPosition3D]ChunkID),
		grid:   grid,
		shorts: NewRecycler[uint16](maxSpareArrays),
		blocks: NewRecycler[BlockType](maxSpareArrays),
		bytes:  NewRecycler[uint8](maxSpareArrays),
	}
}

// GridData returns the table backing chunk columns.
func (a *ChunkAllocator) GridData() *GridDataTable { return a.grid }

// Get returns the chunk at pos, initializing a slot when none exists yet.
// New chunks are linked to every loaded neighbour on the same face.
func (a *ChunkAllocator) Get(pos ChunkPosition3D) *Chunk {
	a.mu.Lock()
	defer a.mu.Unlock()
	if id, ok := a.byPos[pos]; ok {
		return a.chunks[id]
	}

	var c *Chunk
	if n := len(a.free); n > 0 {
		c = a.chunks[a.free[n-1]]
		a.free = a.free[:n-1]
	} else {
		c = &Chunk{id: ChunkID(len(a.chunks))}
		a.chunks = append(a.chunks, c)
	}
	c.setRecyclers(a.shorts, a.blocks, a.bytes)
	c.init(pos)
	c.GridData = a.grid.Acquire(pos)
	c.activeIndex = len(a.active)
	a.active = append(a.active, c.id)
	a.byPos[pos] = c.id

	for d := Direction(0); d < NumDirections; d++ {
		nid, ok := a.byPos[pos.Offset(d)]
		if !ok {
			continue
		}
		nb := a.chunks[nid]
		c.neighbors[d] = nid
		c.neighborMask |= 1 << d
		od := d.Opposite()
		nb.neighbors[od] = c.id
		nb.neighborMask |= 1 << od
	}
	return c
}

// Chunk returns the live chunk with the given ID.
func (a *ChunkAllocator) Chunk(id ChunkID) (*Chunk, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.liveLocked(id)
}

func (a *ChunkAllocator) liveLocked(id ChunkID) (*Chunk, bool) {
	if id < 0 || int(id) >= len(a.chunks) {
		return nil, false
	}
	c := a.chunks[id]
	if c.activeIndex < 0 {
		return nil, false
	}
	return c, true
}

// Generation returns the recycle generation of c as seen by the allocator.
func (a *ChunkAllocator) Generation(c *Chunk) uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return c.generation
}

// Free unloads the chunk. It blocks until no task holds the chunk mutex, so
// storage is never recycled underneath a running task.
func (a *ChunkAllocator) Free(id ChunkID) error {
	c, ok := a.Chunk(id)
	if !ok {
		return ErrNoChunk
	}
	c.Lock()
	defer c.Unlock()

	a.mu.Lock()
	defer a.mu.Unlock()
	if c.activeIndex < 0 {
		// freed while we waited for the chunk lock
		return ErrNoChunk
	}

	for d := Direction(0); d < NumDirections; d++ {
		if c.neighborMask&(1<<d) == 0 {
			continue
		}
		nb := a.chunks[c.neighbors[d]]
		od := d.Opposite()
		nb.neighbors[od] = NoChunk
		nb.neighborMask &^= 1 << od
		c.neighbors[d] = NoChunk
	}
	c.neighborMask = 0
	delete(a.byPos, c.position)

	last := len(a.active) - 1
	moved := a.active[last]
	a.active[c.activeIndex] = moved
	a.chunks[moved].activeIndex = c.activeIndex
	a.active = a.active[:last]
	c.activeIndex = -1

	c.releaseVoxels()
	c.generation++
	a.free = append(a.free, id)

	gd := c.GridData
	c.GridData = nil
	if gd != nil {
		a.grid.Release(gd)
	}
	return nil
}

// NumActive returns the number of live chunks.
func (a *ChunkAllocator) NumActive() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.active)
}

// Active returns a snapshot of the live chunks in active-list order.
func (a *ChunkAllocator) Active() []*Chunk {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]*Chunk, len(a.active))
	for i, id := range a.active {
		out[i] = a.chunks[id]
	}
	return out
}

// SortByDistance orders the active list by ascending Distance2, nearest first.
func (a *ChunkAllocator) SortByDistance() {
	a.mu.Lock()
	defer a.mu.Unlock()
	sort.SliceStable(a.active, func(i, j int) bool {
		return a.chunks[a.active[i]].Distance2 < a.chunks[a.active[j]].Distance2
	})
	for i, id := range a.active {
		a.chunks[id].activeIndex = i
	}
}

// RecyclerStats reports created/reused array counts summed across channels.
func (a *ChunkAllocator) RecyclerStats() (created, recycled int) {
	for _, s := range []func() (int, int, int){a.shorts.Stats, a.blocks.Stats, a.bytes.Stats} {
		c, r, _ := s()
		created += c
		recycled += r
	}
	return created, recycled
}
