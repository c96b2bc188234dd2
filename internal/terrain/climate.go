package terrain

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Default falloff exponents. Humidity drops off sooner than temperature.
const (
	TemperatureExponent = 2.0
	HumidityExponent    = 3.0
)

// ComputeAngleFromNormal returns the angle between a surface normal and the
// equatorial plane: 0 on the equator, pi/2 at the poles.
func ComputeAngleFromNormal(n mgl32.Vec3) float32 {
	y := math.Abs(float64(n[1]))
	switch {
	case y >= 1:
		return math.Pi / 2
	case y < 0.001:
		return 0
	}
	equator := mgl32.Vec3{n[0], 0, n[2]}.Normalize()
	d := float64(equator.Dot(n.Normalize()))
	return float32(math.Acos(math.Max(-1, math.Min(1, d))))
}

// CalculateTemperature lowers base by up to rng as the angle approaches the
// pole.
func CalculateTemperature(rng, angle, base float32) uint8 {
	return climateValue(rng, angle, base, TemperatureExponent)
}

// CalculateHumidity is CalculateTemperature with the humidity exponent.
func CalculateHumidity(rng, angle, base float32) uint8 {
	return climateValue(rng, angle, base, HumidityExponent)
}

// climateValue computes base - (1 - cos(a)^(exp*a)) * rng clamped to a byte.
// The falloff term grows monotonically on [0, pi/2] for any exp >= 0.
func climateValue(rng, angle, base, exp float32) uint8 {
	a := math.Max(0, math.Min(math.Pi/2, float64(angle)))
	c := math.Max(0, math.Cos(a))
	falloff := 1 - math.Pow(c, float64(exp)*a)
	v := float64(base) - falloff*float64(rng)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
