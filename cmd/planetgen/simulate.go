package main

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"planetgen/internal/config"
	"planetgen/internal/physics"
	"planetgen/internal/terrain"
	"planetgen/internal/threadpool"
	"planetgen/internal/world"
)

// seaLevelY is the local voxel height of world height 0 in the single chunk
// layer built per column.
const seaLevelY = world.ChunkWidth / 2

// simulate voxelizes the loaded columns into one chunk layer and runs the
// liquid and powder automata over it.
func simulate(cfg config.PhysicsConfig, grid *world.GridDataTable, cols []*terrain.RawGenDelegate, ticks int, log *zap.Logger) error {
	alloc := world.NewChunkAllocator(grid)
	var chunks []*world.Chunk
	for _, d := range cols {
		if !d.GridData.IsLoaded() {
			continue
		}
		p := d.GridData.Position
		c := alloc.Get(world.ChunkPosition3D{X: p.X, Z: p.Z, Face: p.Face})
		voxelize(c)
		chunks = append(chunks, c)
	}
	defer func() {
		for _, c := range chunks {
			_ = alloc.Free(c.ID())
		}
	}()

	pool := threadpool.New(threadpool.Config{
		Workers:   cfg.Workers,
		QueueSize: cfg.QueueSize,
		Logger:    log,
	})
	defer pool.Shutdown()

	remesh := &remeshCounter{}
	flags := physics.FlagLiquid | physics.FlagPowder
	var changed, deferred int
	for tick := 0; tick < ticks && len(chunks) > 0; tick++ {
		// rotate so a short queue does not starve the same chunks every tick
		k := tick % len(chunks)
		order := append(append([]*world.Chunk(nil), chunks[k:]...), chunks[:k]...)
		var wg sync.WaitGroup
		cas := physics.Schedule(pool, alloc, order, flags, true, remesh, &wg)
		wg.Wait()
		changed = 0
		for _, t := range cas {
			if t.Changed {
				changed++
			}
		}
		deferred += len(chunks) - len(cas)
		if changed == 0 && len(cas) == len(chunks) {
			log.Debug("automata settled", zap.Int("tick", tick))
			break
		}
	}
	log.Info("automata finished",
		zap.Int("chunks", len(chunks)),
		zap.Int("still_changing", changed),
		zap.Int("deferred", deferred),
		zap.Int64("remeshes", remesh.n.Load()),
		zap.Uint64("tasks", pool.Executed()))
	return nil
}

// voxelize fills c from its column heightmap. Ground below sea level is
// covered with water, and every few columns a grain of powder is dropped
// above the surface so the automata have something to move.
func voxelize(c *world.Chunk) {
	gd := c.GridData
	for z := 0; z < world.ChunkWidth; z++ {
		for x := 0; x < world.ChunkWidth; x++ {
			h := gd.HeightData[z*world.ChunkWidth+x]
			top := min(max(int(h.Height)+seaLevelY, 0), world.ChunkWidth-1)
			for y := 0; y < top; y++ {
				c.SetBlock(x, y, z, world.BlockTypeStone)
			}
			c.SetBlock(x, top, z, h.SurfaceBlock)
			for y := top + 1; y < seaLevelY; y++ {
				c.SetBlock(x, y, z, world.Water(world.MaxLiquidLevel))
			}
			if (x*7+z*3)%11 == 0 && top+4 < world.ChunkWidth {
				c.SetBlock(x, top+4, z, world.BlockTypeSand)
			}
		}
	}
	c.Meta.Gen = world.GenDone
}

// remeshCounter counts re-mesh requests instead of building render meshes.
type remeshCounter struct {
	n atomic.Int64
}

func (r *remeshCounter) Remesh(*world.Neighborhood) { r.n.Add(1) }
