package world

import (
	"sync"
	"testing"

	"planetgen/internal/cubemap"
)

func TestGridDataDestroyedOnLastRelease(t *testing.T) {
	gd := NewChunkGridData(ChunkPosition2D{X: 1, Z: 2, Face: cubemap.Front})
	if gd.RefCount() != 1 {
		t.Fatalf("new grid data refcount = %d, want 1", gd.RefCount())
	}
	gd.Retain()
	gd.Retain()
	if gd.Release() {
		t.Fatal("destroyed on first release")
	}
	if gd.Release() {
		t.Fatal("destroyed on second release")
	}
	if !gd.Release() {
		t.Fatal("not destroyed on third release")
	}
}

func TestGridDataOverReleasePanics(t *testing.T) {
	gd := NewChunkGridData(ChunkPosition2D{})
	gd.Release()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on release below zero")
		}
	}()
	gd.Release()
}

func TestGridDataTableSharesColumns(t *testing.T) {
	tbl := NewGridDataTable()
	var destroyed []*ChunkGridData
	tbl.OnDestroy = func(gd *ChunkGridData) { destroyed = append(destroyed, gd) }

	a := tbl.Acquire(ChunkPosition3D{X: 3, Y: 0, Z: 4})
	b := tbl.Acquire(ChunkPosition3D{X: 3, Y: 7, Z: 4})
	if a != b {
		t.Fatal("chunks in the same column got different grid data")
	}
	c := tbl.Acquire(ChunkPosition3D{X: 3, Y: 0, Z: 4, Face: cubemap.Back})
	if c == a {
		t.Fatal("same coordinates on another face shared grid data")
	}
	if tbl.Len() != 2 {
		t.Fatalf("table has %d columns, want 2", tbl.Len())
	}

	if tbl.Release(a) {
		t.Fatal("column destroyed while still referenced")
	}
	if !tbl.Release(b) {
		t.Fatal("column not destroyed on last release")
	}
	if tbl.Len() != 1 {
		t.Fatalf("table has %d columns after destroying one of two", tbl.Len())
	}
	if len(destroyed) != 1 || destroyed[0] != a {
		t.Fatalf("OnDestroy called with %v", destroyed)
	}

	// A fresh acquire after destruction must create new data.
	d := tbl.Acquire(ChunkPosition3D{X: 3, Z: 4})
	if d == a || d.RefCount() != 1 {
		t.Fatalf("reacquire returned stale data (refcount %d)", d.RefCount())
	}
}

func TestGridDataConcurrentRefCount(t *testing.T) {
	tbl := NewGridDataTable()
	pos := ChunkPosition3D{X: 9, Z: 9}
	first := tbl.Acquire(pos)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				gd := tbl.Acquire(pos)
				tbl.Release(gd)
			}
		}()
	}
	wg.Wait()
	if first.RefCount() != 1 {
		t.Fatalf("refcount = %d after balanced acquire/release, want 1", first.RefCount())
	}
}

func TestMarkRequestSentOnce(t *testing.T) {
	gd := NewChunkGridData(ChunkPosition2D{})
	if !gd.MarkRequestSent() {
		t.Fatal("first MarkRequestSent returned false")
	}
	if gd.MarkRequestSent() {
		t.Fatal("second MarkRequestSent returned true")
	}
	gd.ClearRequest()
	if !gd.MarkRequestSent() {
		t.Fatal("MarkRequestSent after ClearRequest returned false")
	}
}
