package gpu

import (
	"fmt"
	"sync/atomic"

	"planetgen/internal/planet"
)

// SoftwareDevice evaluates the planet function on the CPU. It keeps the
// asynchronous contract of the GL device: a dispatched call becomes ready
// only after Latency polls, so callers exercise the same readback path.
type SoftwareDevice struct {
	Gen *planet.GenData

	// Latency is the number of Ready polls that report false before a call
	// completes. Negative values never complete.
	Latency int

	// Fail, when set, is consulted on every Dispatch.
	Fail func(req Request) error

	dispatches atomic.Int64
	targets    atomic.Int64
}

// NewSoftwareDevice returns a device that completes on the first poll after
// dispatch.
func NewSoftwareDevice(gen *planet.GenData) *SoftwareDevice {
	return &SoftwareDevice{Gen: gen}
}

func (d *SoftwareDevice) Name() string { return "software" }

// Dispatches returns how many calls were issued on all targets.
func (d *SoftwareDevice) Dispatches() int64 { return d.dispatches.Load() }

// Targets returns how many targets are alive.
func (d *SoftwareDevice) Targets() int64 { return d.targets.Load() }

func (d *SoftwareDevice) NewTarget(width int) (Target, error) {
	if width <= 0 {
		return nil, fmt.Errorf("invalid target width %d", width)
	}
	d.targets.Add(1)
	return &softwareTarget{dev: d, width: width, texels: make([]planet.Sample, width*width)}, nil
}

type softwareTarget struct {
	dev     *SoftwareDevice
	width   int
	texels  []planet.Sample
	pending bool
	done    bool // Ready has reported true for the pending call
	polls   int
	err     error
	deleted bool
}

func (t *softwareTarget) Width() int { return t.width }

func (t *softwareTarget) Dispatch(req Request) error {
	if t.deleted {
		return ErrContextLost
	}
	if t.pending {
		return ErrBusy
	}
	t.dev.dispatches.Add(1)
	t.pending = true
	t.done = false
	t.polls = 0
	t.err = nil
	if t.dev.Fail != nil {
		if err := t.dev.Fail(req); err != nil {
			t.err = err
			return nil
		}
	}
	for j := 0; j < t.width; j++ {
		for i := 0; i < t.width; i++ {
			t.texels[j*t.width+i] = t.dev.Gen.Sample(req.TexelPosition(i, j))
		}
	}
	return nil
}

func (t *softwareTarget) Ready() (bool, error) {
	if !t.pending {
		return false, nil
	}
	if t.err != nil {
		t.pending = false
		return false, t.err
	}
	if t.dev.Latency < 0 {
		return false, nil
	}
	if t.polls < t.dev.Latency {
		t.polls++
		return false, nil
	}
	t.done = true
	return true, nil
}

func (t *softwareTarget) Read(dst []planet.Sample) error {
	if !t.pending || !t.done {
		return ErrIncomplete
	}
	if len(dst) < len(t.texels) {
		return fmt.Errorf("readback buffer holds %d texels, need %d", len(dst), len(t.texels))
	}
	copy(dst, t.texels)
	t.pending = false
	t.done = false
	return nil
}

func (t *softwareTarget) Delete() {
	if t.deleted {
		return
	}
	t.deleted = true
	t.pending = false
	t.done = false
	t.dev.targets.Add(-1)
}
