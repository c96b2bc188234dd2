// Package terrain generates spherical terrain patches on a GPU device.
//
// Requests flow through two double buffered channels, one for patch meshes
// and one for raw column heightmaps. Update is called once per frame on the
// goroutine owning the device: it reads back what the previous Update
// dispatched, flips the buffers, and dispatches what was queued since.
package terrain

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"planetgen/internal/gpu"
	"planetgen/internal/heightcache"
	"planetgen/internal/planet"
	"planetgen/internal/profiling"
	"planetgen/internal/world"
)

var (
	// ErrClosed is the error of requests still pending on Close.
	ErrClosed = errors.New("terrain: generator closed")
	// ErrAlreadyRequested is returned for a column with a request in flight.
	ErrAlreadyRequested = errors.New("terrain: column already requested")
)

// PlanetHeightData flag bits.
const (
	FlagUnderwater uint8 = 1 << iota
)

// Options configures a Generator.
type Options struct {
	Logger *zap.Logger
	// Cache is optional. Raw requests for cached columns complete without a
	// device call.
	Cache *heightcache.Cache
}

// Stats counts finished requests since the generator was created.
type Stats struct {
	Frames        uint64
	PatchesDone   int64
	PatchesFailed int64
	RawDone       int64
	RawFailed     int64
	RawCached     int64
	InFlight      int
}

// Generator drives terrain generation for one planet.
type Generator struct {
	gen     *planet.GenData
	device  gpu.Device
	meshes  MeshManager
	cache   *heightcache.Cache
	log     *zap.Logger
	builder *MeshBuilder

	patches *channel
	raws    *channel

	frame       uint64
	patchTexels []planet.Sample
	rawTexels   []planet.Sample

	patchesDone, patchesFailed atomic.Int64
	rawDone, rawFailed         atomic.Int64
	rawCached                  atomic.Int64
	frames                     atomic.Uint64
}

// NewGenerator returns a generator that builds meshes for gen on device and
// hands them to meshes.
func NewGenerator(gen *planet.GenData, device gpu.Device, meshes MeshManager, opts Options) *Generator {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("device", device.Name()))
	g := &Generator{
		gen:         gen,
		device:      device,
		meshes:      meshes,
		cache:       opts.Cache,
		log:         log,
		builder:     NewMeshBuilder(gen),
		patches:     newChannel("patch", PatchesPerFrame, PatchHeightmapWidth, device, log),
		raws:        newChannel("raw", RawPerFrame, world.ChunkWidth, device, log),
		patchTexels: make([]planet.Sample, PatchHeightmapWidth*PatchHeightmapWidth),
		rawTexels:   make([]planet.Sample, world.ChunkLayer),
	}
	log.Debug("terrain generator ready",
		zap.Float32("radius", gen.Radius),
		zap.String("readback", humanize.IBytes(uint64(len(g.patchTexels)+len(g.rawTexels))*16)))
	return g
}

// GenerateTerrain queues a patch request into the active buffer. It is safe
// to call from any goroutine and returns ErrCapacity when the buffer is full.
func (g *Generator) GenerateTerrain(d *TerrainGenDelegate) error {
	if !d.Face.Valid() {
		return fmt.Errorf("patch request on face %d: invalid face", d.Face)
	}
	return g.patches.enqueue(d)
}

// GenerateRawHeightmap queues a column heightmap request. Columns found in
// the cache complete immediately.
func (g *Generator) GenerateRawHeightmap(d *RawGenDelegate) error {
	if !d.GridData.MarkRequestSent() {
		return ErrAlreadyRequested
	}
	if g.fromCache(d) {
		return nil
	}
	if err := g.raws.enqueue(d); err != nil {
		d.GridData.ClearRequest()
		return err
	}
	return nil
}

// InvokePatch queues d without a capacity limit. It is placed into a slot by
// a later Update once one is free.
func (g *Generator) InvokePatch(d *TerrainGenDelegate) {
	g.patches.invoke(d)
}

// InvokeRaw is InvokePatch for column heightmaps. Duplicate requests for a
// column are dropped.
func (g *Generator) InvokeRaw(d *RawGenDelegate) bool {
	if !d.GridData.MarkRequestSent() {
		return false
	}
	if !g.fromCache(d) {
		g.raws.invoke(d)
	}
	return true
}

func (g *Generator) fromCache(d *RawGenDelegate) bool {
	if g.cache == nil {
		return false
	}
	ok, err := g.cache.Get(d.GridData.Position, &d.GridData.HeightData)
	if err != nil {
		g.log.Warn("height cache read failed", zap.Stringer("column", d.GridData.Position), zap.Error(err))
		return false
	}
	if ok {
		g.rawCached.Add(1)
		d.complete()
	}
	return ok
}

// Update advances both channels by one frame. It must only be called from
// the goroutine owning the device.
func (g *Generator) Update() {
	defer profiling.Track("terrain.Update")()
	g.frame++
	g.frames.Store(g.frame)

	g.patches.drainInvoked()
	g.raws.drainInvoked()

	pd, pf := g.patches.readback(g.frame, g.readPatch)
	rd, rf := g.raws.readback(g.frame, g.readRaw)

	g.patches.swap()
	g.raws.swap()

	pn, pdf := g.patches.dispatch(g.frame, g.gen.Radius)
	rn, rdf := g.raws.dispatch(g.frame, g.gen.Radius)

	g.patchesDone.Add(int64(pd))
	g.patchesFailed.Add(int64(pf + pdf))
	g.rawDone.Add(int64(rd))
	g.rawFailed.Add(int64(rf + rdf))
	profiling.Add("terrain.patches", int64(pd))
	profiling.Add("terrain.raw", int64(rd))

	if pd+pf+rd+rf+pn+rn+pdf+rdf > 0 {
		g.log.Debug("terrain frame",
			zap.Uint64("frame", g.frame),
			zap.Int("patches", pd),
			zap.Int("raw", rd),
			zap.Int("dispatched", pn+rn),
			zap.Int("failed", pf+rf+pdf+rdf))
	}
}

func (g *Generator) readPatch(r request, t gpu.Target) error {
	d := r.(*TerrainGenDelegate)
	if err := t.Read(g.patchTexels); err != nil {
		return err
	}
	m, err := g.builder.Build(d, g.patchTexels)
	if err != nil {
		return err
	}
	d.complete(m)
	if g.meshes != nil {
		g.meshes.AddMesh(m)
	}
	return nil
}

func (g *Generator) readRaw(r request, t gpu.Target) error {
	d := r.(*RawGenDelegate)
	if err := t.Read(g.rawTexels); err != nil {
		return err
	}
	g.fillGridData(d, g.rawTexels)
	if g.cache != nil {
		if err := g.cache.Put(d.GridData.Position, &d.GridData.HeightData); err != nil {
			g.log.Warn("height cache write failed", zap.Error(err))
		}
	}
	d.complete()
	return nil
}

func (g *Generator) fillGridData(d *RawGenDelegate, texels []planet.Sample) {
	req := d.gpuRequest(g.gen.Radius)
	for z := 0; z < world.ChunkWidth; z++ {
		for x := 0; x < world.ChunkWidth; x++ {
			s := texels[z*world.ChunkWidth+x]
			angle := ComputeAngleFromNormal(req.TexelPosition(x, z).Normalize())

			h := &d.GridData.HeightData[z*world.ChunkWidth+x]
			h.Height = int32(math.Floor(float64(s.Height)))
			h.SurfaceBlock = surfaceBlock(planet.Biome(s.Biome))
			h.Temperature = climateValue(g.gen.TempLatitudeFalloff, angle, s.Temperature, g.gen.TempFalloffExponent)
			h.Humidity = climateValue(g.gen.HumLatitudeFalloff, angle, s.Humidity, g.gen.HumFalloffExponent)
			h.Depth = 0
			h.Flags = 0
			if s.Height < 0 {
				h.Depth = uint8(min(-s.Height, 255))
				h.Flags |= FlagUnderwater
			}
		}
	}
}

func surfaceBlock(b planet.Biome) world.BlockType {
	switch b {
	case planet.BiomeOcean, planet.BiomeBeach, planet.BiomeDesert:
		return world.BlockTypeSand
	case planet.BiomeTundra:
		return world.BlockTypeGravel
	case planet.BiomeMountain:
		return world.BlockTypeStone
	}
	return world.BlockTypeGrass
}

// Stats returns counters. Safe from any goroutine.
func (g *Generator) Stats() Stats {
	return Stats{
		Frames:        g.frames.Load(),
		PatchesDone:   g.patchesDone.Load(),
		PatchesFailed: g.patchesFailed.Load(),
		RawDone:       g.rawDone.Load(),
		RawFailed:     g.rawFailed.Load(),
		RawCached:     g.rawCached.Load(),
		InFlight:      g.patches.inFlight() + g.raws.inFlight(),
	}
}

// Close deletes all device targets and fails unfinished requests with
// ErrClosed. Like Update it must run on the device goroutine.
func (g *Generator) Close() {
	g.patches.close(ErrClosed)
	g.raws.close(ErrClosed)
	s := g.Stats()
	g.log.Info("terrain generator closed",
		zap.Int64("patches", s.PatchesDone),
		zap.Int64("raw", s.RawDone),
		zap.Int64("cached", s.RawCached),
		zap.Int64("failed", s.PatchesFailed+s.RawFailed))
}
