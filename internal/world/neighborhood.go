package world

import "sort"

// Neighborhood is a chunk together with its attached neighbours, so that
// voxels may be read and written one step past the chunk boundary.
//
// A neighbourhood from LockNeighborhood holds every chunk for its lifetime.
// One from LockChunk holds only the centre; each access to a neighbour locks
// that neighbour for the access alone.
type Neighborhood struct {
	Center *Chunk
	Sides  [NumDirections]*Chunk

	alloc  *ChunkAllocator
	gens   [NumDirections]uint64
	held   bool
	locked []*Chunk
}

// LockNeighborhood locks c and every attached neighbour in ascending ID
// order. It returns false when c has been recycled since generation was
// observed. Call Unlock on the result.
func (a *ChunkAllocator) LockNeighborhood(c *Chunk, generation uint64) (*Neighborhood, bool) {
	for {
		n := &Neighborhood{Center: c, alloc: a, held: true}

		a.mu.RLock()
		if c.generation != generation || c.activeIndex < 0 {
			a.mu.RUnlock()
			return nil, false
		}
		links, mask := c.neighbors, c.neighborMask
		n.snapshotLocked()
		a.mu.RUnlock()

		n.locked = append(n.locked, c)
		for _, nb := range n.Sides {
			if nb != nil {
				n.locked = append(n.locked, nb)
			}
		}
		sort.Slice(n.locked, func(i, j int) bool { return n.locked[i].id < n.locked[j].id })
		for _, lc := range n.locked {
			lc.Lock()
		}

		a.mu.RLock()
		ok := c.generation == generation && c.activeIndex >= 0 && c.neighbors == links && c.neighborMask == mask
		for d, nb := range n.Sides {
			if ok && nb != nil && (nb.generation != n.gens[d] || nb.activeIndex < 0) {
				ok = false
			}
		}
		a.mu.RUnlock()
		if ok {
			return n, true
		}
		n.Unlock()
	}
}

// LockChunk locks c alone. Neighbours are locked only while a single voxel
// of theirs is read or updated: a higher ID is waited for, a lower ID is
// tried once and treated as unreachable when busy, so chunks are never waited
// on out of ascending order. It returns false when c has been recycled since
// generation was observed. Call Unlock on the result.
func (a *ChunkAllocator) LockChunk(c *Chunk, generation uint64) (*Neighborhood, bool) {
	c.Lock()
	a.mu.RLock()
	defer a.mu.RUnlock()
	if c.generation != generation || c.activeIndex < 0 {
		c.Unlock()
		return nil, false
	}
	n := &Neighborhood{Center: c, alloc: a, locked: []*Chunk{c}}
	n.snapshotLocked()
	return n, true
}

// snapshotLocked records the attached neighbours and their generations.
// The allocator lock must be held.
func (n *Neighborhood) snapshotLocked() {
	c := n.Center
	for d := Direction(0); d < NumDirections; d++ {
		if c.neighborMask&(1<<d) != 0 {
			nb := n.alloc.chunks[c.neighbors[d]]
			n.Sides[d] = nb
			n.gens[d] = nb.generation
		}
	}
}

// Unlock releases every chunk mutex held by the neighbourhood.
func (n *Neighborhood) Unlock() {
	for i := len(n.locked) - 1; i >= 0; i-- {
		n.locked[i].Unlock()
	}
	n.locked = nil
}

// resolve maps coordinates relative to the centre chunk onto the chunk that
// holds them and the direction of that chunk, NumDirections for the centre.
// Coordinates more than one chunk away, or outside along more than one axis,
// are not reachable.
func (n *Neighborhood) resolve(x, y, z int) (*Chunk, Direction, int, int, int) {
	if InBounds(x, y, z) {
		return n.Center, NumDirections, x, y, z
	}
	out := 0
	var d Direction
	switch {
	case x < 0:
		d, x = DirLeft, x+ChunkWidth
		out++
	case x >= ChunkWidth:
		d, x = DirRight, x-ChunkWidth
		out++
	}
	switch {
	case y < 0:
		d, y = DirBottom, y+ChunkWidth
		out++
	case y >= ChunkWidth:
		d, y = DirTop, y-ChunkWidth
		out++
	}
	switch {
	case z < 0:
		d, z = DirBack, z+ChunkWidth
		out++
	case z >= ChunkWidth:
		d, z = DirFront, z-ChunkWidth
		out++
	}
	if out != 1 || !InBounds(x, y, z) || n.Sides[d] == nil {
		return nil, 0, 0, 0, 0
	}
	return n.Sides[d], d, x, y, z
}

// access runs fn while c is safe to touch. It reports false when c is a
// neighbour that is busy or was unloaded after the snapshot.
func (n *Neighborhood) access(c *Chunk, d Direction, fn func()) bool {
	if d == NumDirections || n.held {
		fn()
		return true
	}
	if c.id > n.Center.id {
		c.Lock()
	} else if !c.TryLock() {
		return false
	}
	defer c.Unlock()

	n.alloc.mu.RLock()
	live := c.generation == n.gens[d] && c.activeIndex >= 0
	n.alloc.mu.RUnlock()
	if !live {
		return false
	}
	fn()
	return true
}

// Block returns the block at coordinates relative to the centre chunk and
// whether that voxel is reachable.
func (n *Neighborhood) Block(x, y, z int) (BlockType, bool) {
	c, d, lx, ly, lz := n.resolve(x, y, z)
	if c == nil {
		return BlockTypeAir, false
	}
	var b BlockType
	ok := n.access(c, d, func() { b = c.GetBlock(lx, ly, lz) })
	return b, ok
}

// SetBlock writes a block relative to the centre chunk. It returns the chunk
// that was modified, or nil when the voxel is unreachable or unchanged.
func (n *Neighborhood) SetBlock(x, y, z int, b BlockType) *Chunk {
	return n.Update(x, y, z, func(BlockType) (BlockType, bool) { return b, true })
}

// Update reads the block at coordinates relative to the centre chunk and
// stores fn's result when fn asks for it, as one step under the owning
// chunk's mutex. It returns the chunk that was modified, or nil when the
// voxel is unreachable, fn declined, or the block is unchanged.
func (n *Neighborhood) Update(x, y, z int, fn func(BlockType) (BlockType, bool)) *Chunk {
	c, d, lx, ly, lz := n.resolve(x, y, z)
	if c == nil {
		return nil
	}
	var modified *Chunk
	n.access(c, d, func() {
		if b, ok := fn(c.GetBlock(lx, ly, lz)); ok && c.SetBlock(lx, ly, lz, b) {
			modified = c
		}
	})
	return modified
}
