package terrain

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Patch geometry.
const (
	PatchWidth          = 33 // vertices along one patch edge
	PatchSize           = PatchWidth * PatchWidth
	PatchHeightmapWidth = PatchWidth + 2 // one texel border on every side
	VertsSize           = PatchSize + PatchWidth*4 // grid plus four skirts
	IndicesPerPatch     = (PatchWidth - 1) * (PatchWidth + 3) * 6

	// Requests accepted per buffer and frame.
	PatchesPerFrame = 8
	RawPerFrame     = 3
)

const (
	skirtDepth       = 3.0 // in vertex widths
	waterUVScale     = 0.04
	waterOverlap     = 1.005
	normTexCoordsMax = 255.0
)

// TerrainVertex is the vertex layout of terrain patches. The renderer binds
// attributes by offset so field order and size must not change.
type TerrainVertex struct {
	Position      mgl32.Vec3 // 12
	Tangent       mgl32.Vec3 // 24
	TexCoords     mgl32.Vec2 // 32
	Color         [3]uint8   // 35
	Padding       uint8      // 36
	NormTexCoords [2]uint8   // 38
	Temperature   uint8      // 39
	Humidity      uint8      // 40
}

// WaterVertex is the vertex layout of the water mesh.
type WaterVertex struct {
	Position    mgl32.Vec3 // 12
	Tangent     mgl32.Vec3 // 24
	Color       [3]uint8   // 27
	Temperature uint8      // 28
	TexCoords   mgl32.Vec2 // 36
	Depth       float32    // 40
}
