// Package gpu runs heightmap generation as asynchronous remote calls. A
// Target is one render target plus its readback buffer: Dispatch issues the
// call, Ready polls for completion without blocking and Read copies the
// finished texels into CPU memory.
package gpu

import (
	"errors"

	"github.com/go-gl/mathgl/mgl32"

	"planetgen/internal/cubemap"
	"planetgen/internal/planet"
)

var (
	// ErrContextLost is returned when the device can no longer serve calls.
	ErrContextLost = errors.New("gpu: context lost")
	// ErrIncomplete is returned by Read before the call has finished.
	ErrIncomplete = errors.New("gpu: readback incomplete")
	// ErrBusy is returned by Dispatch while an earlier call is in flight.
	ErrBusy = errors.New("gpu: target busy")
)

// Request describes one heightmap generation call.
//
// Texel (i, j) of a target of width w samples the cube face at
// u = Corner.X + (i-Border)*Step, v = Corner.Z + (j-Border)*Step.
type Request struct {
	Face   cubemap.Face
	Corner mgl32.Vec3 // face space, Y is ignored
	Step   float32
	Border int
	Radius float32
}

// TexelPosition returns the unprojected cube position of texel (i, j).
func (r Request) TexelPosition(i, j int) mgl32.Vec3 {
	u := r.Corner[0] + float32(i-r.Border)*r.Step
	v := r.Corner[2] + float32(j-r.Border)*r.Step
	return cubemap.ToCube(r.Face, u, v, r.Radius)
}

// Target is a reusable generation target. Targets are not safe for
// concurrent use and must only be touched from the device goroutine.
type Target interface {
	// Width is the number of texels along each side.
	Width() int
	// Dispatch starts generation. It never blocks on completion.
	Dispatch(req Request) error
	// Ready reports whether the last dispatched call has finished.
	Ready() (bool, error)
	// Read copies Width()*Width() texels, row by row, into dst.
	Read(dst []planet.Sample) error
	// Delete releases the target's resources.
	Delete()
}

// Device creates targets.
type Device interface {
	Name() string
	NewTarget(width int) (Target, error)
}
