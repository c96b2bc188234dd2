package main

import (
	"flag"
	"fmt"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/xlab/closer"
	"go.uber.org/zap"

	"planetgen/internal/config"
	"planetgen/internal/cubemap"
	"planetgen/internal/heightcache"
	"planetgen/internal/logging"
	"planetgen/internal/planet"
	"planetgen/internal/preview"
	"planetgen/internal/profiling"
	"planetgen/internal/terrain"
	"planetgen/internal/world"
)

var (
	configPath = flag.String("config", "", "TOML config file; defaults are used when empty")
	headless   = flag.Bool("headless", false, "generate on the CPU instead of an OpenGL context")
	lodFlag    = flag.Int("lod", -1, "patch subdivision level per face; -1 uses the config value")
	columns    = flag.Int("columns", 4, "side of the block of raw columns generated on the top face")
	ticks      = flag.Int("ticks", 16, "automata ticks run over the raw columns")
	previewOut = flag.String("preview", "", "write a PNG of the raw columns to this path")
)

func init() {
	runtime.LockOSThread()
}

func main() {
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			closer.Fatalln(err)
		}
	}
	cfg.Apply()

	log, logCloser, err := logging.New(cfg.Log)
	if err != nil {
		closer.Fatalln(err)
	}
	closer.Bind(func() { _ = logCloser.Close() })

	if err := run(cfg, log); err != nil {
		log.Error("generation failed", zap.Error(err))
		closer.Exit(1)
	}
	closer.Close()
}

func run(cfg config.Config, log *zap.Logger) error {
	start := time.Now()
	gen := planet.NewGenData(cfg.Planet)

	device, release, err := newDevice(*headless, gen)
	if err != nil {
		return err
	}
	defer release()

	cache := heightcache.New(cfg.Generator.CacheBytes)
	meshes := &meshStats{}
	g := terrain.NewGenerator(gen, device, meshes, terrain.Options{Logger: log, Cache: cache})
	defer g.Close()

	lod := cfg.Generator.SubdivisionLOD
	if *lodFlag >= 0 {
		lod = *lodFlag
	}
	patches := requestPatches(g, gen.Radius, lod)

	grid := world.NewGridDataTable()
	cols := requestColumns(g, grid, *columns)

	log.Info("generation requested",
		zap.String("device", device.Name()),
		zap.Int("lod", lod),
		zap.Int("patches", len(patches)),
		zap.Int("columns", len(cols)))

	prof := newRunProfile()
	if err := pump(g, patches, cols, cfg.Generator.TimeoutFrames, prof, log); err != nil {
		return err
	}

	s := g.Stats()
	log.Info("generation finished",
		zap.Uint64("frames", s.Frames),
		zap.Int64("patches", s.PatchesDone),
		zap.Int64("patches_failed", s.PatchesFailed),
		zap.Int64("columns", s.RawDone),
		zap.Int64("columns_failed", s.RawFailed),
		zap.Int("water_meshes", meshes.water),
		zap.String("vertices", humanize.Comma(int64(meshes.verts))),
		zap.Stringer("took", time.Since(start)))

	if *ticks > 0 {
		if err := simulate(cfg.Physics, grid, cols, *ticks, log); err != nil {
			return err
		}
	}

	if *previewOut != "" {
		img, err := preview.Render(gridData(cols), preview.Options{
			Scale: 4,
			Label: fmt.Sprintf("%v seed %d", cubemap.Top, cfg.Planet.Seed),
		})
		if err != nil {
			return err
		}
		if err := preview.WritePNG(*previewOut, img); err != nil {
			return err
		}
		log.Info("preview written", zap.String("path", *previewOut))
	}

	cs := cache.Stats()
	log.Info("height cache",
		zap.Int64("entries", cs.Entries),
		zap.Int64("hits", cs.Hits),
		zap.Int64("misses", cs.Misses))
	log.Info("profile",
		zap.Any("generation", prof.times),
		zap.Any("counters", prof.counts))
	return nil
}

// requestPatches queues every patch of every face at the given subdivision
// level. Each face is split into 2^lod by 2^lod patches.
func requestPatches(g *terrain.Generator, radius float32, lod int) []*terrain.TerrainGenDelegate {
	n := 1 << lod
	width := 2 * radius / float32(n)
	ds := make([]*terrain.TerrainGenDelegate, 0, cubemap.NumFaces*n*n)
	for f := cubemap.Face(0); f < cubemap.NumFaces; f++ {
		for j := 0; j < n; j++ {
			for i := 0; i < n; i++ {
				d := terrain.NewTerrainGenDelegate(f, -radius+float32(i)*width, -radius+float32(j)*width, width)
				g.InvokePatch(d)
				ds = append(ds, d)
			}
		}
	}
	return ds
}

// requestColumns queues a side by side block of columns centred on the top
// face.
func requestColumns(g *terrain.Generator, grid *world.GridDataTable, side int) []*terrain.RawGenDelegate {
	var ds []*terrain.RawGenDelegate
	half := int32(side / 2)
	for z := -half; z < int32(side)-half; z++ {
		for x := -half; x < int32(side)-half; x++ {
			gd := grid.Acquire(world.ChunkPosition3D{X: x, Z: z, Face: cubemap.Top})
			d := terrain.NewRawGenDelegate(gd)
			if g.InvokeRaw(d) {
				ds = append(ds, d)
			}
		}
	}
	return ds
}

// pump updates the generator until every request is done. Every batch may
// use the full timeout window before the run is given up. Each frame starts
// with a cleared profiler; prof, when not nil, collects the frames.
func pump(g *terrain.Generator, patches []*terrain.TerrainGenDelegate, cols []*terrain.RawGenDelegate, timeout int, prof *runProfile, log *zap.Logger) error {
	batches := len(patches)/terrain.PatchesPerFrame + len(cols)/terrain.RawPerFrame + 1
	limit := batches * (timeout + 2)
	for frame := 0; ; frame++ {
		if allDone(patches, cols) {
			return nil
		}
		if frame >= limit {
			return fmt.Errorf("generation did not finish in %d frames", limit)
		}
		profiling.ResetFrame()
		g.Update()
		prof.add()
		if frame%32 == 0 {
			log.Debug("frame", zap.Int("frame", frame), zap.String("top", profiling.TopN(3)))
		}
	}
}

// runProfile sums the per-frame profiler over a run.
type runProfile struct {
	times  map[string]time.Duration
	counts map[string]int64
}

func newRunProfile() *runProfile {
	return &runProfile{times: make(map[string]time.Duration), counts: make(map[string]int64)}
}

func (p *runProfile) add() {
	if p == nil {
		return
	}
	for k, v := range profiling.Snapshot() {
		p.times[k] += v
	}
	for k, v := range profiling.Counters() {
		p.counts[k] += v
	}
}

func allDone(patches []*terrain.TerrainGenDelegate, cols []*terrain.RawGenDelegate) bool {
	for _, d := range patches {
		if !d.Done() {
			return false
		}
	}
	for _, d := range cols {
		if !d.Done() {
			return false
		}
	}
	return true
}

func gridData(cols []*terrain.RawGenDelegate) []*world.ChunkGridData {
	out := make([]*world.ChunkGridData, len(cols))
	for i, d := range cols {
		out[i] = d.GridData
	}
	return out
}

// meshStats stands in for a renderer and only counts what it is given.
// Meshes arrive on the device goroutine.
type meshStats struct {
	meshes, water, verts int
}

func (m *meshStats) AddMesh(mesh *terrain.TerrainMesh) {
	m.meshes++
	m.verts += len(mesh.Verts) + len(mesh.WaterVerts)
	if mesh.HasWater() {
		m.water++
	}
}
