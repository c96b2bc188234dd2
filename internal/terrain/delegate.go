package terrain

import (
	"fmt"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"

	"planetgen/internal/cubemap"
	"planetgen/internal/gpu"
	"planetgen/internal/world"
)

// State is the lifecycle of a generation request.
type State uint32

const (
	StateNew State = iota
	StateQueued
	StateDispatched
	StateAwaitingReadback
	StateComplete
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateQueued:
		return "queued"
	case StateDispatched:
		return "dispatched"
	case StateAwaitingReadback:
		return "awaiting-readback"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", uint32(s))
}

// request is what a channel slot holds.
type request interface {
	id() uuid.UUID
	setState(State)
	gpuRequest(radius float32) gpu.Request
	fail(err error)
}

// delegateState is embedded by both delegate kinds.
type delegateState struct {
	ID  uuid.UUID
	Err error

	state atomic.Uint32
}

func (d *delegateState) id() uuid.UUID { return d.ID }

func (d *delegateState) setState(s State) { d.state.Store(uint32(s)) }

// State returns the current lifecycle state. Safe from any goroutine.
func (d *delegateState) State() State { return State(d.state.Load()) }

// Done reports whether the request completed or failed. Outputs may be read
// once Done returns true.
func (d *delegateState) Done() bool {
	s := d.State()
	return s == StateComplete || s == StateFailed
}

// Failed reports whether the request ended with an error.
func (d *delegateState) Failed() bool { return d.State() == StateFailed }

// TerrainGenDelegate requests the mesh of one patch.
type TerrainGenDelegate struct {
	delegateState

	Face     cubemap.Face
	StartPos mgl32.Vec3 // face space corner, Y unused
	Width    float32    // face space side length

	Mesh *TerrainMesh
}

// NewTerrainGenDelegate returns a patch request for the square of side width
// starting at (u, v) on face.
func NewTerrainGenDelegate(face cubemap.Face, u, v, width float32) *TerrainGenDelegate {
	return &TerrainGenDelegate{
		delegateState: delegateState{ID: uuid.New()},
		Face:          face,
		StartPos:      mgl32.Vec3{u, 0, v},
		Width:         width,
	}
}

// VertWidth is the distance between neighbouring grid vertices.
func (d *TerrainGenDelegate) VertWidth() float32 {
	return d.Width / float32(PatchWidth-1)
}

func (d *TerrainGenDelegate) gpuRequest(radius float32) gpu.Request {
	return gpu.Request{
		Face:   d.Face,
		Corner: d.StartPos,
		Step:   d.VertWidth(),
		Border: 1,
		Radius: radius,
	}
}

func (d *TerrainGenDelegate) complete(m *TerrainMesh) {
	d.Mesh = m
	d.setState(StateComplete)
}

func (d *TerrainGenDelegate) fail(err error) {
	d.Err = err
	d.setState(StateFailed)
}

// RawGenDelegate requests the heightmap of one chunk column. The result is
// written into GridData.
type RawGenDelegate struct {
	delegateState

	Face     cubemap.Face
	StartPos mgl32.Vec3
	Step     float32 // face space distance between samples

	GridData *world.ChunkGridData
}

// NewRawGenDelegate returns a request that fills gd with one sample per
// voxel column, world.ChunkWidth samples per side.
func NewRawGenDelegate(gd *world.ChunkGridData) *RawGenDelegate {
	p := gd.Position
	return &RawGenDelegate{
		delegateState: delegateState{ID: uuid.New()},
		Face:          p.Face,
		StartPos:      mgl32.Vec3{float32(p.X * world.ChunkWidth), 0, float32(p.Z * world.ChunkWidth)},
		Step:          1,
		GridData:      gd,
	}
}

func (d *RawGenDelegate) gpuRequest(radius float32) gpu.Request {
	return gpu.Request{
		Face:   d.Face,
		Corner: d.StartPos,
		Step:   d.Step,
		Radius: radius,
	}
}

func (d *RawGenDelegate) complete() {
	d.GridData.SetLoaded()
	d.setState(StateComplete)
}

func (d *RawGenDelegate) fail(err error) {
	d.Err = err
	d.GridData.ClearRequest()
	d.setState(StateFailed)
}
