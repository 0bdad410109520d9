package tools

import (
	"image"
	"image/color"
	"image/draw"
	"io"

	"github.com/disintegration/imaging"
	xe "github.com/pombredanne/facereclib/pkg/errors"
	"github.com/pombredanne/facereclib/pkg/feature"
)

// LoadGray reads an image file as gray scale.
func LoadGray(path string) (*image.Gray, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, xe.WrapWithNote(path, err)
	}
	return ToGray(img), nil
}

// ToGray converts img to gray scale, with its origin at (0, 0).
func ToGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Rect.Min == (image.Point{}) {
		return g
	}
	b := img.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(g, g.Rect, img, b.Min, draw.Src)
	return g
}

// SaveGray writes img as PNG, creating its directory.
func SaveGray(path string, img *image.Gray) error {
	return feature.WriteFile(path, func(w io.Writer) error {
		return xe.WrapWithNote(path, imaging.Encode(w, img, imaging.PNG))
	})
}

// Pixels returns intensities of img in 0..1, row by row.
func Pixels(img *image.Gray) []float64 {
	b := img.Bounds()
	v := make([]float64, 0, b.Dx()*b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			v = append(v, float64(img.GrayAt(x, y).Y)/255)
		}
	}
	return v
}

// FromPixels is the inverse of Pixels. Values are clamped into 0..1.
func FromPixels(v []float64, width, height int) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, width, height))
	for i, p := range v {
		if p < 0 {
			p = 0
		} else if 1 < p {
			p = 1
		}
		g.SetGray(i%width, i/width, color.Gray{Y: uint8(p*255 + 0.5)})
	}
	return g
}
