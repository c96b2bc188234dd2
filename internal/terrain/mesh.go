package terrain

import (
	"github.com/google/uuid"

	"planetgen/internal/cubemap"
)

// TerrainMesh is the CPU side result of one patch request.
type TerrainMesh struct {
	ID    uuid.UUID
	Face  cubemap.Face
	Verts []TerrainVertex
	// Indices is shared between all patches of the same winding.
	Indices []uint16

	WaterVerts   []WaterVertex
	WaterIndices []uint16

	// NormalMap holds one RGB8 terrain normal per grid vertex, row by row,
	// each component stored as (n*0.5+0.5)*255.
	NormalMap []uint8

	MinHeight, MaxHeight float32
}

// HasWater reports whether the patch produced any water geometry.
func (m *TerrainMesh) HasWater() bool { return len(m.WaterIndices) > 0 }

// MeshManager receives finished meshes, typically to upload them to the GPU.
// AddMesh is called on the goroutine driving Generator.Update.
type MeshManager interface {
	AddMesh(m *TerrainMesh)
}

// MeshManagerFunc adapts a function to MeshManager.
type MeshManagerFunc func(m *TerrainMesh)

func (f MeshManagerFunc) AddMesh(m *TerrainMesh) { f(m) }
