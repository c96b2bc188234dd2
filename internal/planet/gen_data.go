// Package planet holds the procedural description of a planet: the height
// function sampled by the generation devices and the climate parameters used
// when meshing.
package planet

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"planetgen/internal/config"
)

// Biome is the coarse classification written to the fourth heightmap channel.
type Biome uint8

const (
	BiomeOcean Biome = iota
	BiomeBeach
	BiomeGrassland
	BiomeForest
	BiomeDesert
	BiomeTundra
	BiomeMountain
	NumBiomes
)

func (b Biome) String() string {
	switch b {
	case BiomeOcean:
		return "ocean"
	case BiomeBeach:
		return "beach"
	case BiomeGrassland:
		return "grassland"
	case BiomeForest:
		return "forest"
	case BiomeDesert:
		return "desert"
	case BiomeTundra:
		return "tundra"
	case BiomeMountain:
		return "mountain"
	}
	return "unknown"
}

// Sample is one heightmap texel. Its layout matches an RGBA32F texel.
type Sample struct {
	Height      float32 // meters above the base radius
	Temperature float32 // 0..255 before latitude falloff
	Humidity    float32 // 0..255 before latitude falloff
	Biome       float32
}

// Climate noise is evaluated at a fixed frequency with its own seed offsets.
const (
	climateFrequency  = 1.5
	climateVariation  = 25.0
	temperatureSeedOf = 0x51ed
	humiditySeedOf    = 0x2f91
	beachHeight       = 4.0
	mountainHeight    = 0.6 // fraction of the amplitude
)

// GenData is the immutable generation description of one planet.
type GenData struct {
	Radius      float32
	Seed        uint32
	Octaves     int
	Frequency   float64
	Persistence float64
	Lacunarity  float64
	Amplitude   float64
	Offset      float64

	BaseTemperature     float32
	BaseHumidity        float32
	TempLatitudeFalloff float32
	HumLatitudeFalloff  float32
	TempFalloffExponent float32
	HumFalloffExponent  float32

	LiquidColor [3]uint8
}

// NewGenData builds generation data from the [planet] config section.
func NewGenData(c config.PlanetConfig) *GenData {
	return &GenData{
		Radius:              c.Radius,
		Seed:                uint32(c.Seed) ^ uint32(c.Seed>>32),
		Octaves:             c.Octaves,
		Frequency:           c.Frequency,
		Persistence:         c.Persistence,
		Lacunarity:          c.Lacunarity,
		Amplitude:           c.Amplitude,
		Offset:              c.Offset,
		BaseTemperature:     c.BaseTemperature,
		BaseHumidity:        c.BaseHumidity,
		TempLatitudeFalloff: c.TempLatitudeFalloff,
		HumLatitudeFalloff:  c.HumLatitudeFalloff,
		TempFalloffExponent: c.TempFalloffExponent,
		HumFalloffExponent:  c.HumFalloffExponent,
		LiquidColor:         c.LiquidTint,
	}
}

// Height returns the terrain height in meters in direction dir.
func (g *GenData) Height(dir mgl32.Vec3) float32 {
	x, y, z := unit(dir)
	return g.height(x, y, z)
}

func (g *GenData) height(x, y, z float64) float32 {
	f := g.Frequency
	n := octaveNoise3D(x*f, y*f, z*f, g.Seed, g.Octaves, g.Persistence, g.Lacunarity)
	return float32(g.Offset + g.Amplitude*(n*2-1))
}

// Sample evaluates every heightmap channel in direction dir. dir does not
// need to be normalized; scaling it changes the result only by float32
// rounding of the input.
func (g *GenData) Sample(dir mgl32.Vec3) Sample {
	x, y, z := unit(dir)
	h := g.height(x, y, z)

	x, y, z = x*climateFrequency, y*climateFrequency, z*climateFrequency
	tn := valueNoise3D(x, y, z, g.Seed+temperatureSeedOf)
	hn := valueNoise3D(x, y, z, g.Seed+humiditySeedOf)
	temp := clamp255(float64(g.BaseTemperature) + (tn*2-1)*climateVariation)
	hum := clamp255(float64(g.BaseHumidity) + (hn*2-1)*climateVariation)

	return Sample{
		Height:      h,
		Temperature: temp,
		Humidity:    hum,
		Biome:       float32(g.classify(h, temp, hum)),
	}
}

// unit normalizes dir in float64.
func unit(dir mgl32.Vec3) (x, y, z float64) {
	x, y, z = float64(dir[0]), float64(dir[1]), float64(dir[2])
	if l := math.Sqrt(x*x + y*y + z*z); l > 0 {
		x, y, z = x/l, y/l, z/l
	}
	return x, y, z
}

func (g *GenData) classify(h, temp, hum float32) Biome {
	switch {
	case h < 0:
		return BiomeOcean
	case h < beachHeight:
		return BiomeBeach
	case float64(h) > g.Amplitude*mountainHeight+g.Offset:
		return BiomeMountain
	case temp < 80:
		return BiomeTundra
	case hum < 90:
		return BiomeDesert
	case hum > 170:
		return BiomeForest
	}
	return BiomeGrassland
}

func clamp255(v float64) float32 {
	return float32(math.Max(0, math.Min(255, v)))
}
