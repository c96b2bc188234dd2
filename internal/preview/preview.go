// Package preview renders generated column heightmaps into an image, the
// planet overview used to eyeball raw generation output.
package preview

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"planetgen/internal/world"
)

// Options controls the rendered image.
type Options struct {
	Scale int    // output pixels per column, at least 1
	Label string // drawn in the top left corner when set
	// MaxHeight maps to the brightest land color. Defaults to 128.
	MaxHeight int32
}

var (
	deepWater    = color.RGBA{10, 30, 90, 255}
	shallowWater = color.RGBA{60, 120, 210, 255}
	lowland      = color.RGBA{70, 140, 60, 255}
	highland     = color.RGBA{235, 235, 230, 255}
)

// Render lays out the columns by chunk position and colors each voxel
// column by height. Columns that are not loaded are left transparent. All
// columns must be on the same face.
func Render(columns []*world.ChunkGridData, opts Options) (*image.RGBA, error) {
	if len(columns) == 0 {
		return nil, errors.New("no columns to render")
	}
	if opts.Scale < 1 {
		opts.Scale = 1
	}
	if opts.MaxHeight <= 0 {
		opts.MaxHeight = 128
	}

	face := columns[0].Position.Face
	minX, minZ := columns[0].Position.X, columns[0].Position.Z
	maxX, maxZ := minX, minZ
	for _, c := range columns {
		if c.Position.Face != face {
			return nil, fmt.Errorf("column %v is not on face %v", c.Position, face)
		}
		minX, maxX = min(minX, c.Position.X), max(maxX, c.Position.X)
		minZ, maxZ = min(minZ, c.Position.Z), max(maxZ, c.Position.Z)
	}

	w := int(maxX-minX+1) * world.ChunkWidth
	h := int(maxZ-minZ+1) * world.ChunkWidth
	src := image.NewRGBA(image.Rect(0, 0, w, h))
	for _, c := range columns {
		if !c.IsLoaded() {
			continue
		}
		ox := int(c.Position.X-minX) * world.ChunkWidth
		oz := int(c.Position.Z-minZ) * world.ChunkWidth
		for z := 0; z < world.ChunkWidth; z++ {
			for x := 0; x < world.ChunkWidth; x++ {
				src.SetRGBA(ox+x, oz+z, shade(c.HeightData[z*world.ChunkWidth+x], opts.MaxHeight))
			}
		}
	}

	dst := src
	if opts.Scale > 1 {
		dst = image.NewRGBA(image.Rect(0, 0, w*opts.Scale, h*opts.Scale))
		draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	}
	if opts.Label != "" {
		drawLabel(dst, opts.Label)
	}
	return dst, nil
}

func shade(d world.PlanetHeightData, maxHeight int32) color.RGBA {
	if d.Height < 0 {
		t := float64(min(-d.Height, maxHeight)) / float64(maxHeight)
		return mix(shallowWater, deepWater, t)
	}
	t := float64(min(d.Height, maxHeight)) / float64(maxHeight)
	return mix(lowland, highland, t)
}

func mix(a, b color.RGBA, t float64) color.RGBA {
	l := func(x, y uint8) uint8 { return uint8(float64(x) + (float64(y)-float64(x))*t) }
	return color.RGBA{l(a.R, b.R), l(a.G, b.G), l(a.B, b.B), 255}
}

func drawLabel(img *image.RGBA, label string) {
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.White),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(4, 4+basicfont.Face7x13.Ascent),
	}
	d.DrawString(label)
}

// WritePNG encodes img to path.
func WritePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("could not create preview: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("could not encode preview: %w", err)
	}
	return f.Close()
}
