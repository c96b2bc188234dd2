package config

import "sync"

// Settings holds values that may be tweaked while the generator runs.
type Settings struct {
	mu              sync.RWMutex
	timeoutFrames   int
	waterQuadSpan   int
	liquidFlowLimit int
}

var globalSettings = &Settings{
	timeoutFrames:   120, // two seconds at 60 fps
	waterQuadSpan:   8,
	liquidFlowLimit: 4,
}

// GetTimeoutFrames returns after how many frames an unanswered GPU request fails
func GetTimeoutFrames() int {
	globalSettings.mu.RLock()
	defer globalSettings.mu.RUnlock()
	return globalSettings.timeoutFrames
}

// SetTimeoutFrames sets the GPU request timeout in frames
func SetTimeoutFrames(frames int) {
	globalSettings.mu.Lock()
	defer globalSettings.mu.Unlock()

	// A request needs at least two frames to come back
	if frames < 2 {
		frames = 2
	}
	globalSettings.timeoutFrames = frames
}

// GetWaterQuadSpan returns the largest side, in cells, of a merged water quad
func GetWaterQuadSpan() int {
	globalSettings.mu.RLock()
	defer globalSettings.mu.RUnlock()
	return globalSettings.waterQuadSpan
}

// SetWaterQuadSpan sets the largest side of a merged water quad
func SetWaterQuadSpan(span int) {
	globalSettings.mu.Lock()
	defer globalSettings.mu.Unlock()

	if span < 1 {
		span = 1
	}
	if span > 32 {
		span = 32
	}
	globalSettings.waterQuadSpan = span
}

// GetLiquidFlowLimit returns how many liquid units may leave a voxel per tick
func GetLiquidFlowLimit() int {
	globalSettings.mu.RLock()
	defer globalSettings.mu.RUnlock()
	return globalSettings.liquidFlowLimit
}

// SetLiquidFlowLimit sets the per-tick liquid flow limit
func SetLiquidFlowLimit(limit int) {
	globalSettings.mu.Lock()
	defer globalSettings.mu.Unlock()

	if limit < 1 {
		limit = 1
	}
	if limit > 8 {
		limit = 8
	}
	globalSettings.liquidFlowLimit = limit
}
