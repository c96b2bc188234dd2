package planet

import (
	"math"
)

// Deterministic 3D value noise. The lattice hash works on 32-bit words so the
// GLSL generation program (gpu/shaders/terrain_gen.frag) hashes identically.

// fade function is used for smoothing (Spline)
func fade(t float64) float64 {
	// Smoothstep-like fade function 6t^5 - 15t^4 + 10t^3
	return t * t * t * (t*(t*6-15) + 10)
}

func lerp(a, b, t float64) float64 {
	return a + t*(b-a)
}

// hash32 is the lowbias32 integer finalizer.
func hash32(v uint32) uint32 {
	v ^= v >> 16
	v *= 0x7feb352d
	v ^= v >> 15
	v *= 0x846ca68b
	v ^= v >> 16
	return v
}

func hash3(x, y, z int32, seed uint32) uint32 {
	h := hash32(uint32(x) + seed)
	h = hash32(h ^ uint32(y))
	return hash32(h ^ uint32(z))
}

func latticeValue3D(x, y, z int32, seed uint32) float64 {
	// Map to [0,1]
	return float64(hash3(x, y, z, seed)&0xFFFF) / float64(0xFFFF)
}

func valueNoise3D(x, y, z float64, seed uint32) float64 {
	// Lattice points (8 corners of the cube)
	x0 := math.Floor(x)
	y0 := math.Floor(y)
	z0 := math.Floor(z)
	ix, iy, iz := int32(x0), int32(y0), int32(z0)

	fx := fade(x - x0)
	fy := fade(y - y0)
	fz := fade(z - z0)

	v000 := latticeValue3D(ix, iy, iz, seed)
	v100 := latticeValue3D(ix+1, iy, iz, seed)
	v010 := latticeValue3D(ix, iy+1, iz, seed)
	v110 := latticeValue3D(ix+1, iy+1, iz, seed)
	v001 := latticeValue3D(ix, iy, iz+1, seed)
	v101 := latticeValue3D(ix+1, iy, iz+1, seed)
	v011 := latticeValue3D(ix, iy+1, iz+1, seed)
	v111 := latticeValue3D(ix+1, iy+1, iz+1, seed)

	i00 := lerp(v000, v100, fx)
	i10 := lerp(v010, v110, fx)
	i01 := lerp(v001, v101, fx)
	i11 := lerp(v011, v111, fx)

	i0 := lerp(i00, i10, fy)
	i1 := lerp(i01, i11, fy)
	return lerp(i0, i1, fz) // [0,1]
}

func octaveNoise3D(x, y, z float64, seed uint32, octaves int, persistence, lacunarity float64) float64 {
	amplitude := 1.0
	frequency := 1.0
	sum := 0.0
	norm := 0.0
	for i := range octaves {
		v := valueNoise3D(x*frequency, y*frequency, z*frequency, seed+uint32(i*131))
		sum += v * amplitude
		norm += amplitude
		amplitude *= persistence
		frequency *= lacunarity
	}
	if norm == 0 {
		return 0
	}
	return sum / norm // [0,1]
}
