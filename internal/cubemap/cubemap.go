package cubemap

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Face identifies one of the six faces of the cube-sphere.
type Face uint8

const (
	Top Face = iota
	Left
	Right
	Front
	Back
	Bottom

	NumFaces = 6
)

var faceNames = [NumFaces]string{"top", "left", "right", "front", "back", "bottom"}

func (f Face) String() string {
	if f >= NumFaces {
		return "invalid"
	}
	return faceNames[f]
}

// Valid reports whether f is one of the six faces.
func (f Face) Valid() bool { return f < NumFaces }

// coordMappings rotates a 2D patch grid onto the cube. Index 0 receives the
// grid u axis, index 1 the face normal axis and index 2 the grid v axis.
var coordMappings = [NumFaces][3]int{
	{0, 1, 2}, // Top
	{1, 0, 2}, // Left
	{1, 0, 2}, // Right
	{0, 2, 1}, // Front
	{0, 2, 1}, // Back
	{0, 1, 2}, // Bottom
}

var coordMults = [NumFaces]mgl32.Vec3{
	{1, 1, -1},  // Top
	{1, -1, -1}, // Left
	{1, 1, -1},  // Right
	{1, 1, -1},  // Front
	{1, -1, -1}, // Back
	{1, -1, -1}, // Bottom
}

// True when the face is wound counter-clockwise.
var windings = [NumFaces]bool{
	true,  // Top
	true,  // Left
	false, // Right
	false, // Front
	true,  // Back
	false, // Bottom
}

// Mapping returns the axis permutation for the face.
func Mapping(f Face) [3]int { return coordMappings[f] }

// Mults returns the per-axis sign multipliers for the face.
func Mults(f Face) mgl32.Vec3 { return coordMults[f] }

// IsCCW reports whether triangles on the face must be emitted counter-clockwise.
func IsCCW(f Face) bool { return windings[f] }

// ToCube places the patch grid position (u, v) on face f of a cube with the
// given half-extent. The result is not normalized.
func ToCube(f Face, u, v, radius float32) mgl32.Vec3 {
	m := coordMappings[f]
	mult := coordMults[f]
	var p mgl32.Vec3
	p[m[0]] = u * mult[0]
	p[m[1]] = radius * mult[1]
	p[m[2]] = v * mult[2]
	return p
}

// FromCube is the inverse of ToCube for points lying on face f.
func FromCube(f Face, p mgl32.Vec3) (u, v float32) {
	m := coordMappings[f]
	mult := coordMults[f]
	return p[m[0]] * mult[0], p[m[2]] * mult[2]
}

// Normal returns the outward unit normal of the face.
func Normal(f Face) mgl32.Vec3 {
	var n mgl32.Vec3
	n[coordMappings[f][1]] = coordMults[f][1]
	return n
}

// FaceOf returns the face whose normal axis dominates p.
func FaceOf(p mgl32.Vec3) Face {
	ax, ay, az := abs32(p[0]), abs32(p[1]), abs32(p[2])
	switch {
	case ay >= ax && ay >= az:
		if p[1] >= 0 {
			return Top
		}
		return Bottom
	case ax >= az:
		if p[0] >= 0 {
			return Right
		}
		return Left
	default:
		if p[2] >= 0 {
			return Front
		}
		return Back
	}
}

// Spherify projects a cube position onto the sphere of the given radius.
func Spherify(p mgl32.Vec3, radius float32) mgl32.Vec3 {
	return p.Normalize().Mul(radius)
}

func abs32(f float32) float32 {
	return float32(math.Abs(float64(f)))
}
