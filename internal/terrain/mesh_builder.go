package terrain

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"planetgen/internal/config"
	"planetgen/internal/cubemap"
	"planetgen/internal/planet"
	"planetgen/internal/profiling"
)

var biomeColors = [planet.NumBiomes][3]uint8{
	planet.BiomeOcean:     {164, 150, 110},
	planet.BiomeBeach:     {220, 205, 150},
	planet.BiomeGrassland: {110, 160, 70},
	planet.BiomeForest:    {50, 110, 45},
	planet.BiomeDesert:    {210, 180, 110},
	planet.BiomeTundra:    {200, 205, 210},
	planet.BiomeMountain:  {125, 120, 115},
}

func biomeColor(b float32) [3]uint8 {
	i := int(b)
	if i < 0 || i >= int(planet.NumBiomes) {
		return biomeColors[planet.BiomeGrassland]
	}
	return biomeColors[i]
}

const noWaterVertex = 0xFFFF

// MeshBuilder turns patch heightmaps into meshes. Its scratch buffers are
// reused between patches so a builder must only be used by one goroutine.
type MeshBuilder struct {
	gen *planet.GenData

	verts          [VertsSize]TerrainVertex
	surface        [PatchHeightmapWidth][PatchHeightmapWidth]mgl32.Vec3
	normals        [PatchWidth][PatchWidth]mgl32.Vec3
	waterVerts     []WaterVertex
	waterIndices   []uint16
	waterIndexGrid [PatchWidth][PatchWidth]uint16
	waterQuads     [PatchWidth - 1][PatchWidth - 1]bool
	wet            [PatchWidth][PatchWidth]bool

	// Per patch state.
	heights   []planet.Sample
	face      cubemap.Face
	startPos  mgl32.Vec3
	vertWidth float32
	radius    float32
	ccw       bool
}

// NewMeshBuilder returns a builder for the given planet.
func NewMeshBuilder(gen *planet.GenData) *MeshBuilder {
	return &MeshBuilder{
		gen:          gen,
		waterVerts:   make([]WaterVertex, 0, VertsSize),
		waterIndices: make([]uint16, 0, IndicesPerPatch),
	}
}

// Build meshes one patch. heights holds PatchHeightmapWidth^2 samples row by
// row, including the one texel border.
func (b *MeshBuilder) Build(d *TerrainGenDelegate, heights []planet.Sample) (*TerrainMesh, error) {
	defer profiling.Track("terrain.BuildMesh")()

	if len(heights) < PatchHeightmapWidth*PatchHeightmapWidth {
		return nil, fmt.Errorf("heightmap has %d samples, need %d", len(heights), PatchHeightmapWidth*PatchHeightmapWidth)
	}
	if !d.Face.Valid() {
		return nil, fmt.Errorf("invalid cube face %d", d.Face)
	}
	b.heights = heights
	b.face = d.Face
	b.startPos = d.StartPos
	b.vertWidth = d.VertWidth()
	b.radius = b.gen.Radius
	b.ccw = cubemap.IsCCW(d.Face)

	m := &TerrainMesh{ID: d.ID, Face: d.Face}
	m.MinHeight, m.MaxHeight = b.buildGrid()
	b.buildSkirts()
	b.buildWater()

	m.Verts = make([]TerrainVertex, VertsSize)
	copy(m.Verts, b.verts[:])
	m.Indices = GenerateIndices(b.ccw)
	m.NormalMap = b.encodeNormals()
	if len(b.waterIndices) > 0 {
		m.WaterVerts = append([]WaterVertex(nil), b.waterVerts...)
		m.WaterIndices = append([]uint16(nil), b.waterIndices...)
	}
	return m, nil
}

// sample returns the heightmap value of grid point (x, z), skipping the border.
func (b *MeshBuilder) sample(x, z int) planet.Sample {
	return b.heights[(z+1)*PatchHeightmapWidth+x+1]
}

// cubePos returns the unprojected position of grid coordinates (x, z),
// which may be fractional.
func (b *MeshBuilder) cubePos(x, z float32) mgl32.Vec3 {
	return cubemap.ToCube(b.face, b.startPos[0]+x*b.vertWidth, b.startPos[2]+z*b.vertWidth, b.radius)
}

// tangentFor returns the face u axis made orthogonal to normal.
func (b *MeshBuilder) tangentFor(normal mgl32.Vec3) mgl32.Vec3 {
	t := cubemap.ToCube(b.face, 1, 0, 0)
	binormal := normal.Cross(t).Normalize()
	return binormal.Cross(normal).Normalize()
}

// buildSurface places every heightmap texel, border included, on the
// displaced sphere. Texel (i, j) is grid point (i-1, j-1).
func (b *MeshBuilder) buildSurface() {
	for j := 0; j < PatchHeightmapWidth; j++ {
		for i := 0; i < PatchHeightmapWidth; i++ {
			h := b.heights[j*PatchHeightmapWidth+i].Height
			cube := b.cubePos(float32(i-1), float32(j-1))
			b.surface[j][i] = cubemap.Spherify(cube, b.radius+h)
		}
	}
}

// terrainNormal returns the surface normal at grid point (x, z) from
// central differences over its four neighbours. The border texels supply
// the neighbours of edge points.
func (b *MeshBuilder) terrainNormal(x, z int) mgl32.Vec3 {
	i, j := x+1, z+1
	du := b.surface[j][i+1].Sub(b.surface[j][i-1])
	dv := b.surface[j+1][i].Sub(b.surface[j-1][i])
	n := du.Cross(dv).Normalize()
	if n.Dot(b.surface[j][i]) < 0 {
		n = n.Mul(-1)
	}
	return n
}

// encodeNormals packs the grid normals into an RGB8 normal map, row by row.
func (b *MeshBuilder) encodeNormals() []uint8 {
	out := make([]uint8, 0, PatchSize*3)
	for z := range b.normals {
		for _, n := range b.normals[z] {
			for _, c := range n {
				out = append(out, uint8(math.Round(float64(c*0.5+0.5)*255)))
			}
		}
	}
	return out
}

func (b *MeshBuilder) buildGrid() (minH, maxH float32) {
	g := b.gen
	b.buildSurface()
	minH, maxH = b.sample(0, 0).Height, b.sample(0, 0).Height
	for z := 0; z < PatchWidth; z++ {
		for x := 0; x < PatchWidth; x++ {
			s := b.sample(x, z)
			minH = min(minH, s.Height)
			maxH = max(maxH, s.Height)
			b.wet[z][x] = s.Height < 0

			pos := b.surface[z+1][x+1]
			angle := ComputeAngleFromNormal(pos.Normalize())
			normal := b.terrainNormal(x, z)
			b.normals[z][x] = normal

			v := &b.verts[z*PatchWidth+x]
			v.Position = pos
			v.Tangent = b.tangentFor(normal)
			v.TexCoords = mgl32.Vec2{
				b.startPos[0] + float32(x)*b.vertWidth,
				b.startPos[2] + float32(z)*b.vertWidth,
			}
			v.Color = biomeColor(s.Biome)
			v.Padding = 0
			v.NormTexCoords = [2]uint8{
				uint8(float32(x) / PatchWidth * normTexCoordsMax),
				uint8(float32(z) / PatchWidth * normTexCoordsMax),
			}
			v.Temperature = climateValue(g.TempLatitudeFalloff, angle, s.Temperature, g.TempFalloffExponent)
			v.Humidity = climateValue(g.HumLatitudeFalloff, angle, s.Humidity, g.HumFalloffExponent)
		}
	}
	return minH, maxH
}

// buildSkirts appends a lowered copy of each edge: top, left, right, bottom.
func (b *MeshBuilder) buildSkirts() {
	depth := skirtDepth * b.vertWidth
	i := PatchSize
	skirt := func(x, z int) {
		v := b.verts[z*PatchWidth+x]
		n := v.Position.Normalize()
		v.Position = v.Position.Sub(n.Mul(depth))
		b.verts[i] = v
		i++
	}
	for x := 0; x < PatchWidth; x++ {
		skirt(x, 0)
	}
	for z := 0; z < PatchWidth; z++ {
		skirt(0, z)
	}
	for z := 0; z < PatchWidth; z++ {
		skirt(PatchWidth-1, z)
	}
	for x := 0; x < PatchWidth; x++ {
		skirt(x, PatchWidth-1)
	}
}

// waterCell reports whether the cell with top left corner (x, z) touches a
// point below sea level.
func (b *MeshBuilder) waterCell(x, z int) bool {
	return b.wet[z][x] || b.wet[z][x+1] || b.wet[z+1][x] || b.wet[z+1][x+1]
}

func (b *MeshBuilder) freeWaterCell(x, z int) bool {
	return !b.waterQuads[z][x] && b.waterCell(x, z)
}

func (b *MeshBuilder) buildWater() {
	b.waterVerts = b.waterVerts[:0]
	b.waterIndices = b.waterIndices[:0]
	for z := range b.waterIndexGrid {
		for x := range b.waterIndexGrid[z] {
			b.waterIndexGrid[z][x] = noWaterVertex
		}
	}
	b.waterQuads = [PatchWidth - 1][PatchWidth - 1]bool{}

	span := config.GetWaterQuadSpan()
	for z := 0; z < PatchWidth-1; z++ {
		for x := 0; x < PatchWidth-1; x++ {
			if b.freeWaterCell(x, z) {
				b.addWater(z, x, span)
			}
		}
	}
}

// addWater grows a rectangle of free water cells from (x, z): first along the
// row, then down while every cell of the next row is free.
func (b *MeshBuilder) addWater(z, x, span int) {
	w := 1
	for x+w < PatchWidth-1 && w < span && b.freeWaterCell(x+w, z) {
		w++
	}
	h := 1
grow:
	for z+h < PatchWidth-1 && h < span {
		for i := 0; i < w; i++ {
			if !b.freeWaterCell(x+i, z+h) {
				break grow
			}
		}
		h++
	}
	for dz := 0; dz < h; dz++ {
		for dx := 0; dx < w; dx++ {
			b.waterQuads[z+dz][x+dx] = true
		}
	}

	b.tryAddWaterVertex(z, x)
	b.tryAddWaterVertex(z, x+w)
	b.tryAddWaterVertex(z+h, x)
	b.tryAddWaterVertex(z+h, x+w)
	b.tryAddWaterQuad(z, x, w, h)
}

// tryAddWaterVertex creates the water vertex of grid point (x, z) unless an
// earlier quad already did.
func (b *MeshBuilder) tryAddWaterVertex(z, x int) {
	if b.waterIndexGrid[z][x] != noWaterVertex {
		return
	}
	g := b.gen
	s := b.sample(x, z)

	// Scale around the patch center so water slightly overlaps neighbours.
	half := float32(PatchWidth-1) / 2
	gx := half + (float32(x)-half)*waterOverlap
	gz := half + (float32(z)-half)*waterOverlap
	cube := b.cubePos(gx, gz)
	normal := cube.Normalize()
	angle := ComputeAngleFromNormal(normal)

	var depth float32
	if s.Height < 0 {
		depth = -s.Height
	}
	u := b.startPos[0] + gx*b.vertWidth
	v := b.startPos[2] + gz*b.vertWidth

	b.waterIndexGrid[z][x] = uint16(len(b.waterVerts))
	b.waterVerts = append(b.waterVerts, WaterVertex{
		Position:    normal.Mul(b.radius),
		Tangent:     b.tangentFor(normal),
		Color:       g.LiquidColor,
		Temperature: climateValue(g.TempLatitudeFalloff, angle, s.Temperature, g.TempFalloffExponent),
		TexCoords:   mgl32.Vec2{u * waterUVScale, v * waterUVScale},
		Depth:       depth,
	})
}

// tryAddWaterQuad emits the two triangles of the w by h rectangle at (x, z).
func (b *MeshBuilder) tryAddWaterQuad(z, x, w, h int) {
	tl := b.waterIndexGrid[z][x]
	tr := b.waterIndexGrid[z][x+w]
	bl := b.waterIndexGrid[z+h][x]
	br := b.waterIndexGrid[z+h][x+w]
	if b.ccw {
		b.waterIndices = append(b.waterIndices, tl, tr, br, br, bl, tl)
	} else {
		b.waterIndices = append(b.waterIndices, tl, br, tr, br, tl, bl)
	}
}
