package terrain

import "sync"

var (
	ccwOnce, cwOnce       sync.Once
	ccwIndices, cwIndices []uint16
)

// GenerateIndices returns the index buffer shared by every patch with the
// given winding. Patch topology never changes, so the buffer is built once
// and must not be modified by callers.
func GenerateIndices(ccw bool) []uint16 {
	if ccw {
		ccwOnce.Do(func() { ccwIndices = buildIndices(true) })
		return ccwIndices
	}
	cwOnce.Do(func() { cwIndices = buildIndices(false) })
	return cwIndices
}

func buildIndices(ccw bool) []uint16 {
	out := make([]uint16, 0, IndicesPerPatch)
	tri := func(a, b, c int) {
		if !ccw {
			b, c = c, b
		}
		out = append(out, uint16(a), uint16(b), uint16(c))
	}

	for z := 0; z < PatchWidth-1; z++ {
		for x := 0; x < PatchWidth-1; x++ {
			tl := z*PatchWidth + x
			tri(tl, tl+1, tl+PatchWidth+1)
			tri(tl+PatchWidth+1, tl+PatchWidth, tl)
		}
	}

	// Skirt vertices follow the grid: top, left, right, bottom edge.
	top := PatchSize
	left := top + PatchWidth
	right := left + PatchWidth
	bottom := right + PatchWidth
	for i := 0; i < PatchWidth-1; i++ {
		e, s := i, top+i
		tri(e, s, s+1)
		tri(s+1, e+1, e)
	}
	for j := 0; j < PatchWidth-1; j++ {
		e, s := j*PatchWidth, left+j
		tri(e, e+PatchWidth, s+1)
		tri(s+1, s, e)
	}
	for j := 0; j < PatchWidth-1; j++ {
		e, s := j*PatchWidth+PatchWidth-1, right+j
		tri(e, s, s+1)
		tri(s+1, e+PatchWidth, e)
	}
	for i := 0; i < PatchWidth-1; i++ {
		e, s := (PatchWidth-1)*PatchWidth+i, bottom+i
		tri(e, e+1, s+1)
		tri(s+1, s, e)
	}
	return out
}
