package terrain

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"planetgen/internal/config"
	"planetgen/internal/gpu"
)

var (
	// ErrCapacity is returned when the active buffer has no free slot.
	ErrCapacity = errors.New("terrain: generation buffer full")
	// ErrGenerationTimeout fails requests the device never answered.
	ErrGenerationTimeout = errors.New("terrain: generation timed out")
)

type slot struct {
	req    request
	target gpu.Target
	state  State
	frame  uint64 // frame of dispatch
}

// channel is one double buffered request pipeline. Enqueue writes into the
// active buffer; Update reads back and dispatches the other one.
type channel struct {
	name   string
	width  int // target texels per side
	device gpu.Device
	log    *zap.Logger

	mu      sync.Mutex
	slots   [2][]slot
	counter [2]int
	active  int

	// invoked holds requests accepted by invoke that have no slot yet.
	invoked []request
}

func newChannel(name string, capacity, width int, device gpu.Device, log *zap.Logger) *channel {
	c := &channel{name: name, width: width, device: device, log: log}
	for i := range c.slots {
		c.slots[i] = make([]slot, capacity)
	}
	return c
}

func (c *channel) enqueue(r request) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enqueueLocked(r)
}

func (c *channel) enqueueLocked(r request) error {
	buf := c.active
	if c.counter[buf] >= len(c.slots[buf]) {
		return ErrCapacity
	}
	for i := range c.slots[buf] {
		s := &c.slots[buf][i]
		if s.req != nil {
			continue
		}
		s.req = r
		s.state = StateQueued
		r.setState(StateQueued)
		c.counter[buf]++
		return nil
	}
	return ErrCapacity
}

// invoke queues r without a capacity limit. It gets a slot during a later
// update once one is free.
func (c *channel) invoke(r request) {
	r.setState(StateNew)
	c.mu.Lock()
	c.invoked = append(c.invoked, r)
	c.mu.Unlock()
}

// drainInvoked moves invoked requests into free slots of the active buffer.
func (c *channel) drainInvoked() {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, r := range c.invoked {
		if c.enqueueLocked(r) != nil {
			break
		}
		n++
	}
	clear(c.invoked[:n])
	c.invoked = append(c.invoked[:0], c.invoked[n:]...)
}

// inFlight returns the number of occupied slots plus waiting invocations.
func (c *channel) inFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counter[0] + c.counter[1] + len(c.invoked)
}

func (c *channel) free(buf int, s *slot) {
	c.mu.Lock()
	s.req = nil
	s.state = StateNew
	c.counter[buf]--
	c.mu.Unlock()
}

func (c *channel) dropTarget(s *slot) {
	if s.target != nil {
		s.target.Delete()
		s.target = nil
	}
}

func (c *channel) failSlot(buf int, s *slot, err error) {
	c.log.Warn("generation request failed",
		zap.String("channel", c.name),
		zap.Stringer("id", s.req.id()),
		zap.Error(err))
	s.req.fail(err)
	// The target may still be owned by the device.
	c.dropTarget(s)
	c.free(buf, s)
}

// readback polls the inactive buffer. read is called for every finished
// request and must copy the result out of the target.
func (c *channel) readback(frame uint64, read func(r request, t gpu.Target) error) (done, failed int) {
	buf := c.active ^ 1
	timeout := uint64(config.GetTimeoutFrames())
	for i := range c.slots[buf] {
		s := &c.slots[buf][i]
		if s.req == nil || s.state != StateAwaitingReadback {
			continue
		}
		ready, err := s.target.Ready()
		switch {
		case err != nil:
			c.failSlot(buf, s, fmt.Errorf("%s readback: %w", c.name, err))
			failed++
		case ready:
			if err := read(s.req, s.target); err != nil {
				c.failSlot(buf, s, fmt.Errorf("%s readback: %w", c.name, err))
				failed++
				continue
			}
			c.free(buf, s)
			done++
		case frame-s.frame >= timeout:
			c.failSlot(buf, s, fmt.Errorf("%s request after %d frames: %w", c.name, frame-s.frame, ErrGenerationTimeout))
			failed++
		}
	}
	return done, failed
}

// swap flips the write buffer.
func (c *channel) swap() {
	c.mu.Lock()
	c.active ^= 1
	c.mu.Unlock()
}

// dispatch issues one call for every queued slot of the inactive buffer.
func (c *channel) dispatch(frame uint64, radius float32) (dispatched, failed int) {
	buf := c.active ^ 1
	for i := range c.slots[buf] {
		s := &c.slots[buf][i]
		if s.req == nil || s.state != StateQueued {
			continue
		}
		if s.target == nil {
			t, err := c.device.NewTarget(c.width)
			if err != nil {
				c.failSlot(buf, s, fmt.Errorf("%s target: %w", c.name, err))
				failed++
				continue
			}
			s.target = t
		}
		s.state = StateDispatched
		s.req.setState(StateDispatched)
		if err := s.target.Dispatch(s.req.gpuRequest(radius)); err != nil {
			c.failSlot(buf, s, fmt.Errorf("%s dispatch: %w", c.name, err))
			failed++
			continue
		}
		s.state = StateAwaitingReadback
		s.req.setState(StateAwaitingReadback)
		s.frame = frame
		dispatched++
	}
	return dispatched, failed
}

// close deletes every target and fails requests that never finished.
func (c *channel) close(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for buf := range c.slots {
		for i := range c.slots[buf] {
			s := &c.slots[buf][i]
			if s.req != nil {
				s.req.fail(err)
				s.req = nil
				s.state = StateNew
			}
			c.dropTarget(s)
		}
		c.counter[buf] = 0
	}
	for _, r := range c.invoked {
		r.fail(err)
	}
	c.invoked = nil
}
