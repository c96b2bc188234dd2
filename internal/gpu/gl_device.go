package gpu

import (
	"fmt"
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"

	"planetgen/internal/cubemap"
	"planetgen/internal/planet"
)

const texelBytes = int(unsafe.Sizeof(planet.Sample{}))

// GLDevice renders heightmaps with the generation program into float
// textures and reads them back through pixel pack buffers guarded by fences.
// A current OpenGL 4.1 context is required on the calling goroutine for every
// method, including those of its targets.
type GLDevice struct {
	gen     *planet.GenData
	program *program
	vao     uint32
}

// NewGLDevice compiles the generation program. gl.Init must have been called.
func NewGLDevice(gen *planet.GenData) (*GLDevice, error) {
	p, err := newProgram(terrainGenVertexSrc, terrainGenFragmentSrc)
	if err != nil {
		return nil, err
	}
	d := &GLDevice{gen: gen, program: p}
	// Core profile needs a bound VAO even though the triangle is generated
	// from gl_VertexID.
	gl.GenVertexArrays(1, &d.vao)
	return d, nil
}

func (d *GLDevice) Name() string { return "opengl" }

// Delete releases the program. Targets must be deleted separately.
func (d *GLDevice) Delete() {
	d.program.delete()
	gl.DeleteVertexArrays(1, &d.vao)
}

func (d *GLDevice) NewTarget(width int) (Target, error) {
	if width <= 0 {
		return nil, fmt.Errorf("invalid target width %d", width)
	}
	t := &glTarget{dev: d, width: width}

	gl.GenTextures(1, &t.texture)
	gl.BindTexture(gl.TEXTURE_2D, t.texture)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.NEAREST)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.NEAREST)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA32F, int32(width), int32(width), 0, gl.RGBA, gl.FLOAT, nil)
	gl.BindTexture(gl.TEXTURE_2D, 0)

	gl.GenFramebuffers(1, &t.fbo)
	gl.BindFramebuffer(gl.FRAMEBUFFER, t.fbo)
	gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, t.texture, 0)
	status := gl.CheckFramebufferStatus(gl.FRAMEBUFFER)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	if status != gl.FRAMEBUFFER_COMPLETE {
		t.Delete()
		return nil, fmt.Errorf("generation framebuffer incomplete: 0x%x", status)
	}

	gl.GenBuffers(1, &t.pbo)
	gl.BindBuffer(gl.PIXEL_PACK_BUFFER, t.pbo)
	gl.BufferData(gl.PIXEL_PACK_BUFFER, width*width*texelBytes, nil, gl.STREAM_READ)
	gl.BindBuffer(gl.PIXEL_PACK_BUFFER, 0)

	if e := gl.GetError(); e != gl.NO_ERROR {
		t.Delete()
		return nil, fmt.Errorf("creating generation target: gl error 0x%x: %w", e, ErrContextLost)
	}
	return t, nil
}

type glTarget struct {
	dev     *GLDevice
	width   int
	texture uint32
	fbo     uint32
	pbo     uint32
	fence   uintptr
	ready   bool
}

func (t *glTarget) Width() int { return t.width }

func (t *glTarget) Dispatch(req Request) error {
	if t.fence != 0 {
		return ErrBusy
	}
	var viewport [4]int32
	gl.GetIntegerv(gl.VIEWPORT, &viewport[0])

	gl.BindFramebuffer(gl.FRAMEBUFFER, t.fbo)
	gl.Viewport(0, 0, int32(t.width), int32(t.width))

	p := t.dev.program
	g := t.dev.gen
	m := cubemap.Mapping(req.Face)
	mults := cubemap.Mults(req.Face)
	p.use()
	p.setVector3("unCornerPos", req.Corner[0], req.Corner[1], req.Corner[2])
	p.setIVector3("unCoordMapping", int32(m[0]), int32(m[1]), int32(m[2]))
	p.setVector3("unCoordMults", mults[0], mults[1], mults[2])
	p.setFloat("unStep", req.Step)
	p.setFloat("unBorder", float32(req.Border))
	p.setFloat("unRadius", req.Radius)
	p.setUint("unSeed", g.Seed)
	p.setInt("unOctaves", int32(g.Octaves))
	p.setFloat("unFrequency", float32(g.Frequency))
	p.setFloat("unPersistence", float32(g.Persistence))
	p.setFloat("unLacunarity", float32(g.Lacunarity))
	p.setFloat("unAmplitude", float32(g.Amplitude))
	p.setFloat("unOffset", float32(g.Offset))
	p.setFloat("unBaseTemperature", g.BaseTemperature)
	p.setFloat("unBaseHumidity", g.BaseHumidity)

	gl.Disable(gl.DEPTH_TEST)
	gl.Disable(gl.BLEND)
	gl.BindVertexArray(t.dev.vao)
	gl.DrawArrays(gl.TRIANGLES, 0, 3)
	gl.BindVertexArray(0)

	// Copy into the pack buffer; this returns immediately and the fence
	// tells us when the copy has landed.
	gl.BindBuffer(gl.PIXEL_PACK_BUFFER, t.pbo)
	gl.ReadPixels(0, 0, int32(t.width), int32(t.width), gl.RGBA, gl.FLOAT, gl.PtrOffset(0))
	gl.BindBuffer(gl.PIXEL_PACK_BUFFER, 0)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	gl.Viewport(viewport[0], viewport[1], viewport[2], viewport[3])

	t.fence = gl.FenceSync(gl.SYNC_GPU_COMMANDS_COMPLETE, 0)
	t.ready = false
	gl.Flush()

	if e := gl.GetError(); e != gl.NO_ERROR {
		t.clearFence()
		return fmt.Errorf("dispatch: gl error 0x%x: %w", e, ErrContextLost)
	}
	return nil
}

func (t *glTarget) Ready() (bool, error) {
	if t.fence == 0 {
		return false, nil
	}
	if t.ready {
		return true, nil
	}
	switch gl.ClientWaitSync(t.fence, 0, 0) {
	case gl.ALREADY_SIGNALED, gl.CONDITION_SATISFIED:
		t.ready = true
		return true, nil
	case gl.TIMEOUT_EXPIRED:
		return false, nil
	default:
		t.clearFence()
		return false, ErrContextLost
	}
}

func (t *glTarget) Read(dst []planet.Sample) error {
	if t.fence == 0 || !t.ready {
		return ErrIncomplete
	}
	n := t.width * t.width
	if len(dst) < n {
		return fmt.Errorf("readback buffer holds %d texels, need %d", len(dst), n)
	}
	defer t.clearFence()

	gl.BindBuffer(gl.PIXEL_PACK_BUFFER, t.pbo)
	defer gl.BindBuffer(gl.PIXEL_PACK_BUFFER, 0)
	ptr := gl.MapBufferRange(gl.PIXEL_PACK_BUFFER, 0, n*texelBytes, gl.MAP_READ_BIT)
	if ptr == nil {
		return fmt.Errorf("mapping readback buffer: %w", ErrContextLost)
	}
	copy(dst, unsafe.Slice((*planet.Sample)(ptr), n))
	if !gl.UnmapBuffer(gl.PIXEL_PACK_BUFFER) {
		// Contents were corrupted while mapped.
		return fmt.Errorf("unmapping readback buffer: %w", ErrIncomplete)
	}
	return nil
}

func (t *glTarget) clearFence() {
	if t.fence != 0 {
		gl.DeleteSync(t.fence)
		t.fence = 0
	}
	t.ready = false
}

func (t *glTarget) Delete() {
	t.clearFence()
	if t.pbo != 0 {
		gl.DeleteBuffers(1, &t.pbo)
		t.pbo = 0
	}
	if t.fbo != 0 {
		gl.DeleteFramebuffers(1, &t.fbo)
		t.fbo = 0
	}
	if t.texture != 0 {
		gl.DeleteTextures(1, &t.texture)
		t.texture = 0
	}
}
