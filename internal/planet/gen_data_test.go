package planet

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"planetgen/internal/config"
)

func testGenData() *GenData {
	return NewGenData(config.Default().Planet)
}

func TestNoiseRange(t *testing.T) {
	for i := 0; i < 2000; i++ {
		x := float64(i)*0.173 - 100
		v := octaveNoise3D(x, x*0.5, -x*0.25, 7, 6, 0.5, 2)
		if v < 0 || v > 1 {
			t.Fatalf("noise out of range at %d: %v", i, v)
		}
	}
}

func TestNoiseIsLatticeExact(t *testing.T) {
	// On integer coordinates value noise returns the lattice value.
	for i := int32(-5); i < 5; i++ {
		got := valueNoise3D(float64(i), 2, float64(-i), 99)
		want := latticeValue3D(i, 2, -i, 99)
		if math.Abs(got-want) > 1e-12 {
			t.Fatalf("noise(%d) = %v, want lattice %v", i, got, want)
		}
	}
}

func TestHeightDeterministicAndBounded(t *testing.T) {
	a, b := testGenData(), testGenData()
	lo := a.Offset - a.Amplitude
	hi := a.Offset + a.Amplitude
	for i := 0; i < 500; i++ {
		dir := mgl32.Vec3{float32(math.Sin(float64(i))), float32(math.Cos(float64(i) * 0.7)), 0.3}.Normalize()
		h := a.Height(dir)
		if h != b.Height(dir) {
			t.Fatal("height is not deterministic")
		}
		if float64(h) < lo-1e-3 || float64(h) > hi+1e-3 {
			t.Fatalf("height %v outside [%v, %v]", h, lo, hi)
		}
	}
}

func TestSeedChangesTerrain(t *testing.T) {
	cfg := config.Default().Planet
	a := NewGenData(cfg)
	cfg.Seed++
	b := NewGenData(cfg)
	differ := 0
	for i := 0; i < 50; i++ {
		dir := mgl32.Vec3{1, float32(i) * 0.02, -0.4}.Normalize()
		if a.Height(dir) != b.Height(dir) {
			differ++
		}
	}
	if differ == 0 {
		t.Fatal("different seeds produced identical terrain")
	}
}

func TestSampleNormalizesDirection(t *testing.T) {
	g := testGenData()
	near := func(a, b float32) bool { return math.Abs(float64(a-b)) < 1e-3 }
	for _, dir := range []mgl32.Vec3{{0.2, 0.9, -0.1}, {-0.7, 0.1, 0.3}, {0.01, -1, 0.02}} {
		a, b := g.Sample(dir), g.Sample(dir.Mul(g.Radius))
		if !near(a.Height, b.Height) || !near(a.Temperature, b.Temperature) || !near(a.Humidity, b.Humidity) {
			t.Fatalf("sample depends on vector length: %+v vs %+v", a, b)
		}
	}
}

func TestSampleBiomeFollowsHeight(t *testing.T) {
	g := testGenData()
	for i := 0; i < 300; i++ {
		dir := mgl32.Vec3{float32(i%17) - 8, 5, float32(i/17) - 8}
		s := g.Sample(dir)
		if s.Temperature < 0 || s.Temperature > 255 || s.Humidity < 0 || s.Humidity > 255 {
			t.Fatalf("climate out of range: %+v", s)
		}
		if (s.Height < 0) != (Biome(s.Biome) == BiomeOcean) {
			t.Fatalf("height %v classified as %v", s.Height, Biome(s.Biome))
		}
	}
}

func BenchmarkSample(b *testing.B) {
	g := testGenData()
	dir := mgl32.Vec3{0.3, 0.8, 0.2}
	for i := 0; i < b.N; i++ {
		dir[0] += 1e-4
		g.Sample(dir)
	}
}
