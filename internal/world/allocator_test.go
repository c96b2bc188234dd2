package world

import (
	"testing"
	"time"

	"planetgen/internal/cubemap"
)

func TestAllocatorLinksNeighbors(t *testing.T) {
	a := NewChunkAllocator(nil)
	center := a.Get(ChunkPosition3D{X: 0, Y: 0, Z: 0})
	if center.NumNeighbors() != 0 {
		t.Fatalf("lone chunk has %d neighbours", center.NumNeighbors())
	}
	for d := Direction(0); d < NumDirections; d++ {
		nb := a.Get(center.Position().Offset(d))
		if id, ok := center.Neighbor(d); !ok || id != nb.ID() {
			t.Fatalf("direction %d: got link %d,%v want %d", d, id, ok, nb.ID())
		}
		if id, ok := nb.Neighbor(d.Opposite()); !ok || id != center.ID() {
			t.Fatalf("direction %d: back link missing", d)
		}
	}
	if !center.HasAllNeighbors() || center.NumNeighbors() != 6 {
		t.Fatalf("center has %d neighbours, want 6", center.NumNeighbors())
	}

	// A chunk with the same coordinates on another face is not a neighbour.
	other := a.Get(ChunkPosition3D{X: 1, Face: cubemap.Bottom})
	if other.NumNeighbors() != 0 {
		t.Fatalf("cross-face chunk linked to %d neighbours", other.NumNeighbors())
	}
}

func TestAllocatorFreeDetachesAndRecycles(t *testing.T) {
	a := NewChunkAllocator(nil)
	c := a.Get(ChunkPosition3D{})
	right := a.Get(ChunkPosition3D{X: 1})
	c.SetBlock(1, 2, 3, BlockTypeStone)
	if c.IsBlockUniform() {
		t.Fatal("write did not expand block storage")
	}
	gen := c.Generation()
	gd := c.GridData

	if err := a.Free(c.ID()); err != nil {
		t.Fatal(err)
	}
	if right.HasNeighbor(DirLeft) || right.NumNeighbors() != 0 {
		t.Fatal("neighbour still linked after free")
	}
	if gd.RefCount() != 0 {
		t.Fatalf("grid data refcount = %d after sole chunk freed", gd.RefCount())
	}
	if err := a.Free(c.ID()); err != ErrNoChunk {
		t.Fatalf("double free: got %v, want ErrNoChunk", err)
	}

	again := a.Get(ChunkPosition3D{Y: 5})
	if again != c {
		t.Fatal("freed slot was not reused")
	}
	if again.Generation() == gen {
		t.Fatal("generation unchanged after recycle")
	}
	if again.GetBlock(1, 2, 3) != BlockTypeAir || !again.IsBlockUniform() {
		t.Fatal("recycled chunk kept old voxels")
	}
	again.SetBlock(0, 0, 0, BlockTypeDirt)
	if _, recycled := a.RecyclerStats(); recycled == 0 {
		t.Fatal("released block array was not reused")
	}
	if a.NumActive() != 2 {
		t.Fatalf("active = %d, want 2", a.NumActive())
	}
}

func TestFreeWaitsForChunkLock(t *testing.T) {
	a := NewChunkAllocator(nil)
	c := a.Get(ChunkPosition3D{})
	c.Lock()

	done := make(chan error)
	go func() { done <- a.Free(c.ID()) }()

	select {
	case <-done:
		t.Fatal("Free returned while a task held the chunk")
	case <-time.After(20 * time.Millisecond):
	}
	c.Unlock()
	if err := <-done; err != nil {
		t.Fatal(err)
	}
}

func TestLockNeighborhoodRejectsRecycledChunk(t *testing.T) {
	a := NewChunkAllocator(nil)
	c := a.Get(ChunkPosition3D{})
	a.Get(ChunkPosition3D{X: 1})
	gen := c.Generation()

	n, ok := a.LockNeighborhood(c, gen)
	if !ok {
		t.Fatal("could not lock live chunk")
	}
	if n.Sides[DirRight] == nil || n.Sides[DirLeft] != nil {
		t.Fatal("neighbourhood sides do not match links")
	}
	if _, ok := n.Block(ChunkWidth, 0, 0); !ok {
		t.Fatal("voxel in right neighbour not reachable")
	}
	if _, ok := n.Block(-1, 0, 0); ok {
		t.Fatal("voxel in missing neighbour reported reachable")
	}
	if _, ok := n.Block(ChunkWidth, -1, 0); ok {
		t.Fatal("diagonal voxel reported reachable")
	}
	n.Unlock()

	if err := a.Free(c.ID()); err != nil {
		t.Fatal(err)
	}
	if _, ok := a.LockNeighborhood(c, gen); ok {
		t.Fatal("locked a recycled chunk")
	}
}

func TestLockChunkReachesNeighborBriefly(t *testing.T) {
	a := NewChunkAllocator(nil)
	c := a.Get(ChunkPosition3D{})
	nb := a.Get(ChunkPosition3D{X: 1})

	n, ok := a.LockChunk(c, c.Generation())
	if !ok {
		t.Fatal("could not lock live chunk")
	}
	if !nb.TryLock() {
		t.Fatal("neighbour held before any access")
	}
	nb.Unlock()

	if n.SetBlock(ChunkWidth, 0, 0, BlockTypeDirt) != nb || nb.GetBlock(0, 0, 0) != BlockTypeDirt {
		t.Fatal("write into the neighbour was not applied")
	}
	if !nb.TryLock() {
		t.Fatal("neighbour still held after the write")
	}
	nb.Unlock()
	if c.TryLock() {
		t.Fatal("centre not held")
	}

	// An unloaded neighbour is unreachable for the rest of the tick.
	if err := a.Free(nb.ID()); err != nil {
		t.Fatal(err)
	}
	if _, ok := n.Block(ChunkWidth, 0, 0); ok {
		t.Fatal("freed neighbour still reachable")
	}
	n.Unlock()
	if !c.TryLock() {
		t.Fatal("centre still held after Unlock")
	}
	c.Unlock()

	if err := a.Free(c.ID()); err != nil {
		t.Fatal(err)
	}
	if _, ok := a.LockChunk(c, 0); ok {
		t.Fatal("locked a recycled chunk")
	}
}

func TestSortByDistance(t *testing.T) {
	a := NewChunkAllocator(nil)
	for i := int32(0); i < 4; i++ {
		c := a.Get(ChunkPosition3D{X: i * 2})
		c.Distance2 = float32(10 - i)
	}
	a.SortByDistance()
	active := a.Active()
	for i := 1; i < len(active); i++ {
		if active[i-1].Distance2 > active[i].Distance2 {
			t.Fatalf("active list not sorted: %v > %v", active[i-1].Distance2, active[i].Distance2)
		}
	}
	// activeIndex must follow the sort so Free keeps the list consistent.
	if err := a.Free(active[0].ID()); err != nil {
		t.Fatal(err)
	}
	if a.NumActive() != 3 {
		t.Fatalf("active = %d, want 3", a.NumActive())
	}
}

func TestVoxelContainerCopyOnWrite(t *testing.T) {
	r := NewRecycler[uint8](1)
	var c VoxelContainer[uint8]
	c.setRecycler(r)
	c.Fill(7)
	if c.Set(5, 7) {
		t.Fatal("writing the uniform value reported a change")
	}
	if !c.IsUniform() {
		t.Fatal("uniform write expanded storage")
	}
	if !c.Set(5, 9) {
		t.Fatal("write not reported")
	}
	if c.Get(5) != 9 || c.Get(6) != 7 {
		t.Fatalf("got %d,%d want 9,7", c.Get(5), c.Get(6))
	}
	c.Fill(0)
	if created, _, spare := r.Stats(); created != 1 || spare != 1 {
		t.Fatalf("recycler created=%d spare=%d, want 1,1", created, spare)
	}
}

func TestLightChannelsCopyOnWrite(t *testing.T) {
	a := NewChunkAllocator(nil)
	c := a.Get(ChunkPosition3D{})

	c.SetSunlight(1, 2, 3, 0)
	c.SetLamp(1, 2, 3, 0)
	c.SetTertiary(1, 2, 3, 0)
	if created, _ := a.RecyclerStats(); created != 0 {
		t.Fatalf("writing the fill value allocated %d arrays", created)
	}
	if c.Meta.LightDirty {
		t.Fatal("unchanged light marked dirty")
	}

	c.SetSunlight(1, 2, 3, 15)
	c.SetLamp(4, 5, 6, 0x0f0f)
	c.SetTertiary(7, 8, 9, 3)
	if created, _ := a.RecyclerStats(); created != 3 {
		t.Fatalf("%d arrays created, want one per light channel", created)
	}
	if !c.Meta.LightDirty {
		t.Fatal("light change not flagged")
	}
	if c.Sunlight(1, 2, 3) != 15 || c.Sunlight(1, 2, 4) != 0 {
		t.Fatal("sunlight write leaked into other voxels")
	}
	if c.Lamp(4, 5, 6) != 0x0f0f || c.Lamp(0, 0, 0) != 0 {
		t.Fatal("lamp write leaked into other voxels")
	}
	if c.Tertiary(7, 8, 9) != 3 || c.Tertiary(-1, 0, 0) != 0 {
		t.Fatal("tertiary channel wrong")
	}
	if !c.IsBlockUniform() {
		t.Fatal("light writes expanded the block channel")
	}

	if err := a.Free(c.ID()); err != nil {
		t.Fatal(err)
	}
	again := a.Get(ChunkPosition3D{X: 4})
	again.SetLamp(0, 0, 0, 1)
	again.SetSunlight(0, 0, 0, 1)
	if _, recycled := a.RecyclerStats(); recycled != 2 {
		t.Fatalf("%d arrays reused, want lamp and sunlight", recycled)
	}
	if again.Lamp(4, 5, 6) != 0 || again.Sunlight(1, 2, 3) != 0 {
		t.Fatal("recycled light arrays kept old values")
	}
}
