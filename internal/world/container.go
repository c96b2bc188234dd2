package world

import "sync"

// Voxel is the element type of a VoxelContainer.
type Voxel interface {
	~uint8 | ~uint16
}

// Recycler hands out fixed-size voxel arrays and keeps released ones for reuse.
// It is shared by every chunk of an allocator.
type Recycler[T Voxel] struct {
	mu       sync.Mutex
	free     [][]T
	maxFree  int
	created  int
	recycled int
}

// NewRecycler returns a recycler that keeps at most maxFree spare arrays.
func NewRecycler[T Voxel](maxFree int) *Recycler[T] {
	return &Recycler[T]{maxFree: maxFree}
}

// Create returns a ChunkSize array. Its contents are undefined.
func (r *Recycler[T]) Create() []T {
	r.mu.Lock()
	if n := len(r.free); n > 0 {
		arr := r.free[n-1]
		r.free = r.free[:n-1]
		r.recycled++
		r.mu.Unlock()
		return arr
	}
	r.created++
	r.mu.Unlock()
	return make([]T, ChunkSize)
}

// Recycle returns arr to the pool.
func (r *Recycler[T]) Recycle(arr []T) {
	if len(arr) != ChunkSize {
		return
	}
	r.mu.Lock()
	if len(r.free) < r.maxFree {
		r.free = append(r.free, arr)
	}
	r.mu.Unlock()
}

// Stats returns how many arrays were allocated and how many were reused.
func (r *Recycler[T]) Stats() (created, recycled, spare int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.created, r.recycled, len(r.free)
}

// VoxelContainer stores one channel of chunk voxels. A container holding a
// single value has no backing array; the first differing write copies the
// value into an array taken from the recycler.
type VoxelContainer[T Voxel] struct {
	recycler *Recycler[T]
	data     []T
	uniform  T
}

func (c *VoxelContainer[T]) setRecycler(r *Recycler[T]) { c.recycler = r }

// Fill resets the container to a single value, returning any array.
func (c *VoxelContainer[T]) Fill(v T) {
	c.release()
	c.uniform = v
}

// Get returns the voxel at flat index i.
func (c *VoxelContainer[T]) Get(i int) T {
	if c.data == nil {
		return c.uniform
	}
	return c.data[i]
}

// Set writes the voxel at flat index i and reports whether it changed.
func (c *VoxelContainer[T]) Set(i int, v T) bool {
	if c.data == nil {
		if v == c.uniform {
			return false
		}
		c.expand()
	}
	if c.data[i] == v {
		return false
	}
	c.data[i] = v
	return true
}

// IsUniform reports whether the container has no backing array.
func (c *VoxelContainer[T]) IsUniform() bool { return c.data == nil }

func (c *VoxelContainer[T]) expand() {
	if c.recycler != nil {
		c.data = c.recycler.Create()
	} else {
		c.data = make([]T, ChunkSize)
	}
	for i := range c.data {
		c.data[i] = c.uniform
	}
}

func (c *VoxelContainer[T]) release() {
	if c.data != nil && c.recycler != nil {
		c.recycler.Recycle(c.data)
	}
	c.data = nil
}
