package world

import (
	"sync"
	"sync/atomic"
)

// PlanetHeightData is the generated surface information of one voxel column.
type PlanetHeightData struct {
	Height       int32
	SurfaceBlock BlockType
	Temperature  uint8
	Humidity     uint8
	Depth        uint8
	Flags        uint8
}

// ChunkGridData caches the heightmap of a chunk column. It is shared by every
// chunk stacked in that column and is reference counted.
type ChunkGridData struct {
	Position   ChunkPosition2D
	HeightData [ChunkLayer]PlanetHeightData

	requestSent atomic.Bool
	loaded      atomic.Bool
	refCount    atomic.Int32
}

// NewChunkGridData returns grid data for pos holding one reference.
func NewChunkGridData(pos ChunkPosition2D) *ChunkGridData {
	gd := &ChunkGridData{Position: pos}
	gd.refCount.Store(1)
	return gd
}

// RefCount returns the current number of references.
func (gd *ChunkGridData) RefCount() int32 { return gd.refCount.Load() }

// Retain adds a reference.
func (gd *ChunkGridData) Retain() {
	if gd.refCount.Add(1) <= 1 {
		panic("world: retain of destroyed grid data")
	}
}

// Release drops a reference and reports whether it was the last one.
func (gd *ChunkGridData) Release() bool {
	n := gd.refCount.Add(-1)
	if n < 0 {
		panic("world: grid data released more times than retained")
	}
	return n == 0
}

// MarkRequestSent flags the column as having a heightmap request in flight.
// It returns false when a request was already sent.
func (gd *ChunkGridData) MarkRequestSent() bool {
	return gd.requestSent.CompareAndSwap(false, true)
}

// WasRequestSent reports whether a heightmap request has been issued.
func (gd *ChunkGridData) WasRequestSent() bool { return gd.requestSent.Load() }

// ClearRequest allows a failed request to be issued again.
func (gd *ChunkGridData) ClearRequest() { gd.requestSent.Store(false) }

// SetLoaded publishes HeightData to readers that check IsLoaded.
func (gd *ChunkGridData) SetLoaded() { gd.loaded.Store(true) }

// IsLoaded reports whether HeightData has been filled.
func (gd *ChunkGridData) IsLoaded() bool { return gd.loaded.Load() }

// GridDataTable owns every live ChunkGridData, one per column.
type GridDataTable struct {
	mu      sync.Mutex
	columns map[ChunkPosition2D]*ChunkGridData

	// OnDestroy, if set, is called after a column's last reference is dropped.
	OnDestroy func(*ChunkGridData)
}

func NewGridDataTable() *GridDataTable {
	return &GridDataTable{columns: make(map[ChunkPosition2D]*ChunkGridData)}
}

// Acquire returns the grid data for the column containing pos, creating it
// on first touch. The caller owns one reference.
func (t *GridDataTable) Acquire(pos ChunkPosition3D) *ChunkGridData {
	key := pos.To2D()
	t.mu.Lock()
	defer t.mu.Unlock()
	if gd, ok := t.columns[key]; ok {
		gd.Retain()
		return gd
	}
	gd := NewChunkGridData(key)
	t.columns[key] = gd
	return gd
}

// Release drops one reference to gd and removes it from the table when it
// reaches zero. It reports whether gd was destroyed.
func (t *GridDataTable) Release(gd *ChunkGridData) bool {
	t.mu.Lock()
	destroyed := gd.Release()
	if destroyed && t.columns[gd.Position] == gd {
		delete(t.columns, gd.Position)
	}
	t.mu.Unlock()
	if destroyed && t.OnDestroy != nil {
		t.OnDestroy(gd)
	}
	return destroyed
}

// Len returns the number of live columns.
func (t *GridDataTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.columns)
}
