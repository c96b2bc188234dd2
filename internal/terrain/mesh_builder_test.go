package terrain

import (
	"math"
	"math/rand"
	"testing"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"

	"planetgen/internal/config"
	"planetgen/internal/cubemap"
	"planetgen/internal/planet"
)

func testGen() *planet.GenData {
	return planet.NewGenData(config.Default().Planet)
}

func flatHeights(h float32) []planet.Sample {
	s := make([]planet.Sample, PatchHeightmapWidth*PatchHeightmapWidth)
	for i := range s {
		s[i] = planet.Sample{Height: h, Temperature: 200, Humidity: 150, Biome: float32(planet.BiomeGrassland)}
	}
	return s
}

func setHeight(s []planet.Sample, x, z int, h float32) {
	s[(z+1)*PatchHeightmapWidth+x+1].Height = h
}

func TestVertexLayout(t *testing.T) {
	if got := unsafe.Sizeof(TerrainVertex{}); got != 40 {
		t.Fatalf("TerrainVertex is %d bytes", got)
	}
	if got := unsafe.Sizeof(WaterVertex{}); got != 40 {
		t.Fatalf("WaterVertex is %d bytes", got)
	}
	var tv TerrainVertex
	terrainOffsets := []struct {
		name string
		got  uintptr
		want uintptr
	}{
		{"Tangent", unsafe.Offsetof(tv.Tangent), 12},
		{"TexCoords", unsafe.Offsetof(tv.TexCoords), 24},
		{"Color", unsafe.Offsetof(tv.Color), 32},
		{"Padding", unsafe.Offsetof(tv.Padding), 35},
		{"NormTexCoords", unsafe.Offsetof(tv.NormTexCoords), 36},
		{"Temperature", unsafe.Offsetof(tv.Temperature), 38},
		{"Humidity", unsafe.Offsetof(tv.Humidity), 39},
	}
	for _, o := range terrainOffsets {
		if o.got != o.want {
			t.Errorf("TerrainVertex.%s at %d, want %d", o.name, o.got, o.want)
		}
	}
	var wv WaterVertex
	if unsafe.Offsetof(wv.Temperature) != 27 || unsafe.Offsetof(wv.TexCoords) != 28 || unsafe.Offsetof(wv.Depth) != 36 {
		t.Error("WaterVertex offsets changed")
	}
}

func TestIndicesShared(t *testing.T) {
	for _, ccw := range []bool{true, false} {
		a, b := GenerateIndices(ccw), GenerateIndices(ccw)
		if len(a) != IndicesPerPatch {
			t.Fatalf("ccw=%v: %d indices, want %d", ccw, len(a), IndicesPerPatch)
		}
		if &a[0] != &b[0] {
			t.Fatal("index buffer rebuilt")
		}
		for _, i := range a {
			if int(i) >= VertsSize {
				t.Fatalf("index %d out of range", i)
			}
		}
	}
	if &GenerateIndices(true)[0] == &GenerateIndices(false)[0] {
		t.Fatal("windings share a buffer")
	}
}

func buildFlat(t *testing.T, face cubemap.Face, h float32) (*TerrainMesh, *TerrainGenDelegate) {
	t.Helper()
	b := NewMeshBuilder(testGen())
	d := NewTerrainGenDelegate(face, -32, -32, 64)
	m, err := b.Build(d, flatHeights(h))
	if err != nil {
		t.Fatal(err)
	}
	return m, d
}

func TestTrianglesFaceOutward(t *testing.T) {
	const gridIndices = (PatchWidth - 1) * (PatchWidth - 1) * 6
	for f := cubemap.Face(0); f < cubemap.NumFaces; f++ {
		m, _ := buildFlat(t, f, 10)
		center := m.Verts[(PatchWidth/2)*PatchWidth+PatchWidth/2].Position
		for i := 0; i < len(m.Indices); i += 3 {
			a := m.Verts[m.Indices[i]].Position
			b := m.Verts[m.Indices[i+1]].Position
			c := m.Verts[m.Indices[i+2]].Position
			n := b.Sub(a).Cross(c.Sub(a))
			centroid := a.Add(b).Add(c).Mul(1.0 / 3)
			if i < gridIndices {
				if n.Dot(centroid) <= 0 {
					t.Fatalf("face %v: grid triangle %d points inward", f, i/3)
				}
				continue
			}
			// Skirts face away from the patch.
			if n.Dot(centroid.Sub(center)) <= 0 {
				t.Fatalf("face %v: skirt triangle %d points inward", f, (i-gridIndices)/3)
			}
		}
	}
}

func TestGridVertices(t *testing.T) {
	m, d := buildFlat(t, cubemap.Front, 7)
	g := testGen()
	for _, p := range [][2]int{{0, 0}, {5, 9}, {PatchWidth - 1, PatchWidth - 1}} {
		x, z := p[0], p[1]
		v := m.Verts[z*PatchWidth+x]
		cube := cubemap.ToCube(d.Face, d.StartPos[0]+float32(x)*d.VertWidth(), d.StartPos[2]+float32(z)*d.VertWidth(), g.Radius)
		want := cube.Normalize().Mul(g.Radius + 7)
		if !v.Position.ApproxEqualThreshold(want, 1e-2) {
			t.Fatalf("vertex (%d,%d) at %v, want %v", x, z, v.Position, want)
		}
		if math.Abs(float64(v.Tangent.Dot(v.Position.Normalize()))) > 1e-3 {
			t.Fatalf("tangent %v not orthogonal to the surface", v.Tangent)
		}
		if v.NormTexCoords[0] != uint8(float32(x)/PatchWidth*255) {
			t.Fatalf("norm tex coords %v", v.NormTexCoords)
		}
	}
	if m.MinHeight != 7 || m.MaxHeight != 7 {
		t.Fatalf("height range %v..%v", m.MinHeight, m.MaxHeight)
	}

	// Skirt vertices sit below their edge vertex.
	edge := m.Verts[3].Position
	skirt := m.Verts[PatchSize+3].Position
	if drop := edge.Len() - skirt.Len(); math.Abs(float64(drop-skirtDepth*d.VertWidth())) > 1e-2 {
		t.Fatalf("skirt dropped %v", drop)
	}
}

func decodeNormal(m *TerrainMesh, x, z int) mgl32.Vec3 {
	i := (z*PatchWidth + x) * 3
	var n mgl32.Vec3
	for c := range n {
		n[c] = float32(m.NormalMap[i+c])/255*2 - 1
	}
	return n
}

func TestFlatNormalsAreRadial(t *testing.T) {
	m, _ := buildFlat(t, cubemap.Left, 3)
	if len(m.NormalMap) != PatchSize*3 {
		t.Fatalf("normal map has %d bytes", len(m.NormalMap))
	}
	for _, p := range [][2]int{{0, 0}, {16, 16}, {PatchWidth - 1, 4}} {
		x, z := p[0], p[1]
		n := decodeNormal(m, x, z)
		up := m.Verts[z*PatchWidth+x].Position.Normalize()
		if n.Dot(up) < 0.99 {
			t.Fatalf("normal (%d,%d) %v, want about %v", x, z, n, up)
		}
	}
}

func TestSlopeTiltsNormal(t *testing.T) {
	// Height rises one unit per texel along u, border texels included.
	heights := flatHeights(0)
	for j := 0; j < PatchHeightmapWidth; j++ {
		for i := 0; i < PatchHeightmapWidth; i++ {
			heights[j*PatchHeightmapWidth+i].Height = float32(i - 1)
		}
	}
	b := NewMeshBuilder(testGen())
	d := NewTerrainGenDelegate(cubemap.Top, -32, -32, 64)
	m, err := b.Build(d, heights)
	if err != nil {
		t.Fatal(err)
	}
	u := cubemap.ToCube(cubemap.Top, 1, 0, 0).Normalize()
	for _, p := range [][2]int{{0, 0}, {16, 16}, {PatchWidth - 1, PatchWidth - 1}} {
		x, z := p[0], p[1]
		v := m.Verts[z*PatchWidth+x]
		up := v.Position.Normalize()
		n := decodeNormal(m, x, z).Normalize()
		// Rise of 1 over a run of 2 leans the normal about 27 degrees back.
		if lean := n.Dot(u); lean > -0.35 || lean < -0.55 {
			t.Fatalf("normal (%d,%d) %v leans %v along u", x, z, n, lean)
		}
		if n.Dot(up) < 0.8 {
			t.Fatalf("normal (%d,%d) %v far from up %v", x, z, n, up)
		}
		if math.Abs(float64(v.Tangent.Dot(n))) > 3e-2 {
			t.Fatalf("tangent %v not orthogonal to normal %v", v.Tangent, n)
		}
		if math.Abs(float64(v.Tangent.Dot(up))) < 0.2 {
			t.Fatalf("tangent %v ignores the slope", v.Tangent)
		}
	}
}

func TestDryPatchHasNoWater(t *testing.T) {
	m, _ := buildFlat(t, cubemap.Top, 1)
	if m.HasWater() || len(m.WaterVerts) != 0 {
		t.Fatal("water on a dry patch")
	}
}

func TestSubmergedPatchMergesQuads(t *testing.T) {
	defer config.SetWaterQuadSpan(config.GetWaterQuadSpan())
	config.SetWaterQuadSpan(8)

	m, _ := buildFlat(t, cubemap.Left, -20)
	// 32 cells per side in spans of 8: a 4x4 grid of quads.
	if quads := len(m.WaterIndices) / 6; quads != 16 {
		t.Fatalf("%d quads, want 16", quads)
	}
	if len(m.WaterVerts) != 25 {
		t.Fatalf("%d water vertices, want 25 shared corners", len(m.WaterVerts))
	}
	for _, v := range m.WaterVerts {
		if v.Depth != 20 {
			t.Fatalf("depth %v", v.Depth)
		}
		if v.Color != testGen().LiquidColor {
			t.Fatalf("water color %v", v.Color)
		}
	}
}

// waterCoverage rebuilds the rectangles from the water index buffer and
// counts how often each cell is covered.
func waterCoverage(t *testing.T, b *MeshBuilder) [PatchWidth - 1][PatchWidth - 1]int {
	t.Helper()
	pos := make(map[uint16][2]int)
	for z := 0; z < PatchWidth; z++ {
		for x := 0; x < PatchWidth; x++ {
			if i := b.waterIndexGrid[z][x]; i != noWaterVertex {
				pos[i] = [2]int{x, z}
			}
		}
	}
	var cover [PatchWidth - 1][PatchWidth - 1]int
	span := config.GetWaterQuadSpan()
	for i := 0; i < len(b.waterIndices); i += 6 {
		// tl is the first index for both windings, br the third or second.
		tl := pos[b.waterIndices[i]]
		br := pos[b.waterIndices[i+2]]
		if !b.ccw {
			br = pos[b.waterIndices[i+1]]
		}
		if br[0]-tl[0] > span || br[1]-tl[1] > span {
			t.Fatalf("quad %v-%v exceeds span %d", tl, br, span)
		}
		for z := tl[1]; z < br[1]; z++ {
			for x := tl[0]; x < br[0]; x++ {
				cover[z][x]++
			}
		}
	}
	return cover
}

func TestWaterQuadsNeverOverlap(t *testing.T) {
	defer config.SetWaterQuadSpan(config.GetWaterQuadSpan())
	rng := rand.New(rand.NewSource(5))
	for round := 0; round < 40; round++ {
		config.SetWaterQuadSpan(1 + rng.Intn(12))
		heights := flatHeights(3)
		// Blobs of water of random size.
		blobs := 1 + rng.Intn(6)
		for blob := 0; blob < blobs; blob++ {
			cx, cz, r := rng.Intn(PatchWidth), rng.Intn(PatchWidth), 1+rng.Intn(10)
			for z := 0; z < PatchWidth; z++ {
				for x := 0; x < PatchWidth; x++ {
					if (x-cx)*(x-cx)+(z-cz)*(z-cz) <= r*r {
						setHeight(heights, x, z, -float32(1+rng.Intn(30)))
					}
				}
			}
		}

		face := cubemap.Face(round % int(cubemap.NumFaces))
		b := NewMeshBuilder(testGen())
		m, err := b.Build(NewTerrainGenDelegate(face, 100, -300, 256), heights)
		if err != nil {
			t.Fatal(err)
		}

		cover := waterCoverage(t, b)
		eligible := 0
		corners := make(map[[2]int]bool)
		for z := 0; z < PatchWidth-1; z++ {
			for x := 0; x < PatchWidth-1; x++ {
				want := 0
				if b.waterCell(x, z) {
					want = 1
					eligible++
					corners[[2]int{x, z}] = true
					corners[[2]int{x + 1, z}] = true
					corners[[2]int{x, z + 1}] = true
					corners[[2]int{x + 1, z + 1}] = true
				}
				if cover[z][x] != want {
					t.Fatalf("round %d: cell (%d,%d) covered %d times, want %d", round, x, z, cover[z][x], want)
				}
			}
		}
		if quads := len(m.WaterIndices) / 6; quads > eligible {
			t.Fatalf("round %d: %d quads for %d cells", round, quads, eligible)
		}
		if len(m.WaterVerts) > len(corners) {
			t.Fatalf("round %d: %d water vertices, one quad per cell needs %d", round, len(m.WaterVerts), len(corners))
		}
	}
}

func TestWaterFacesOutward(t *testing.T) {
	for f := cubemap.Face(0); f < cubemap.NumFaces; f++ {
		m, _ := buildFlat(t, f, -5)
		for i := 0; i < len(m.WaterIndices); i += 3 {
			a := m.WaterVerts[m.WaterIndices[i]].Position
			b := m.WaterVerts[m.WaterIndices[i+1]].Position
			c := m.WaterVerts[m.WaterIndices[i+2]].Position
			if b.Sub(a).Cross(c.Sub(a)).Dot(a) <= 0 {
				t.Fatalf("face %v: water triangle %d points inward", f, i/3)
			}
		}
	}
}

func TestBuildRejectsShortHeightmap(t *testing.T) {
	b := NewMeshBuilder(testGen())
	if _, err := b.Build(NewTerrainGenDelegate(cubemap.Top, 0, 0, 32), make([]planet.Sample, 10)); err == nil {
		t.Fatal("short heightmap accepted")
	}
}

func BenchmarkBuild(b *testing.B) {
	mb := NewMeshBuilder(testGen())
	heights := flatHeights(2)
	for i := 0; i < len(heights); i += 7 {
		heights[i].Height = -4
	}
	d := NewTerrainGenDelegate(cubemap.Front, 0, 0, 128)
	for i := 0; i < b.N; i++ {
		if _, err := mb.Build(d, heights); err != nil {
			b.Fatal(err)
		}
	}
}
