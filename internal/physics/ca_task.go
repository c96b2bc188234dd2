package physics

import (
	"sync"

	"planetgen/internal/config"
	"planetgen/internal/profiling"
	"planetgen/internal/threadpool"
	"planetgen/internal/world"
)

// Remesher rebuilds the render mesh of a chunk. The neighbourhood is locked
// for the duration of the call.
type Remesher interface {
	Remesh(n *world.Neighborhood)
}

// CellularAutomataTask simulates liquids and powders in one chunk for one tick.
type CellularAutomataTask struct {
	alloc      *world.ChunkAllocator
	chunk      *world.Chunk
	generation uint64
	makeMesh   bool
	flags      Flag
	mesher     Remesher
	done       *sync.WaitGroup

	// RenderTask is the nested re-mesh task, set after Execute when the
	// chunk changed and a mesh was requested.
	RenderTask *RenderTask
	Changed    bool
}

// NewCellularAutomataTask creates a task for chunk. flags is a combination of
// Flag values. When makeMesh is set and the tick changes voxels, a RenderTask
// using mesher follows.
func NewCellularAutomataTask(alloc *world.ChunkAllocator, chunk *world.Chunk, makeMesh bool, flags Flag, mesher Remesher) *CellularAutomataTask {
	return &CellularAutomataTask{
		alloc:      alloc,
		chunk:      chunk,
		generation: alloc.Generation(chunk),
		makeMesh:   makeMesh,
		flags:      flags,
		mesher:     mesher,
	}
}

// Execute runs the selected rules while holding the chunk. Neighbours are
// locked only for the moment material crosses into them. A task whose chunk
// was freed in the meantime does nothing.
func (t *CellularAutomataTask) Execute(wd *threadpool.WorkerData) {
	defer profiling.Track("physics.CellularAutomata")()
	defer func() {
		// a render task inherits the wait group
		if t.RenderTask == nil {
			release(t.done)
		}
	}()
	rules := rulesFor(t.flags)
	if len(rules) == 0 {
		return
	}
	n, ok := t.alloc.LockChunk(t.chunk, t.generation)
	if !ok {
		return
	}
	s := simulator{
		n:     n,
		moved: wd.Bits(world.ChunkSize),
		flow:  config.GetLiquidFlowLimit(),
	}
	for _, r := range rules {
		s.apply(r)
	}
	n.Unlock()

	t.Changed = s.changed
	if t.Changed && t.makeMesh && t.mesher != nil {
		t.RenderTask = &RenderTask{
			alloc:      t.alloc,
			chunk:      t.chunk,
			generation: t.generation,
			mesher:     t.mesher,
			done:       t.done,
		}
	}
}

// FollowUp returns the re-mesh task, if any.
func (t *CellularAutomataTask) FollowUp() threadpool.Task {
	if t.RenderTask == nil {
		return nil
	}
	return t.RenderTask
}

// RenderTask re-meshes a chunk after the automata changed it.
type RenderTask struct {
	alloc      *world.ChunkAllocator
	chunk      *world.Chunk
	generation uint64
	mesher     Remesher
	done       *sync.WaitGroup
}

func (t *RenderTask) Execute(wd *threadpool.WorkerData) {
	defer release(t.done)
	n, ok := t.alloc.LockNeighborhood(t.chunk, t.generation)
	if !ok {
		return
	}
	defer n.Unlock()
	t.mesher.Remesh(n)
	t.chunk.SetClean()
}

// Schedule submits one automata task per chunk to the pool and returns the
// tasks accepted. A chunk whose task finds the queue full is left for the
// next tick. When done is not nil it is released once every accepted task
// and its re-mesh follow-up have run.
func Schedule(pool *threadpool.Pool, alloc *world.ChunkAllocator, chunks []*world.Chunk, flags Flag, makeMesh bool, mesher Remesher, done *sync.WaitGroup) []*CellularAutomataTask {
	accepted := make([]*CellularAutomataTask, 0, len(chunks))
	for _, c := range chunks {
		t := NewCellularAutomataTask(alloc, c, makeMesh, flags, mesher)
		t.done = done
		if done != nil {
			done.Add(1)
		}
		if !pool.Submit(t) {
			release(done)
			continue
		}
		accepted = append(accepted, t)
	}
	return accepted
}

func release(wg *sync.WaitGroup) {
	if wg != nil {
		wg.Done()
	}
}
