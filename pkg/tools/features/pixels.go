// Package features extracts feature vectors from preprocessed faces.
package features

import (
	"errors"
	"image"

	"github.com/disintegration/imaging"
	"github.com/pombredanne/facereclib/pkg/feature"
	"github.com/pombredanne/facereclib/pkg/tools"
)

type PixelsParams struct {
	// resize images before extraction. 0 keeps the size.
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// Pixels uses gray intensities as features.
type Pixels struct {
	width, height int
}

var _ tools.Extractor = &Pixels{}

func NewPixels(params PixelsParams) (*Pixels, error) {
	if params.Width < 0 || params.Height < 0 {
		return nil, errors.New("width and height should not be negative")
	}
	if (params.Width == 0) != (params.Height == 0) {
		return nil, errors.New("width and height should be given together")
	}
	return &Pixels{width: params.Width, height: params.Height}, nil
}

func (p *Pixels) Extract(img image.Image) (feature.Vector, error) {
	if p.width != 0 {
		b := img.Bounds()
		if b.Dx() != p.width || b.Dy() != p.height {
			img = imaging.Resize(img, p.width, p.height, imaging.Linear)
		}
	}
	return feature.Vector(tools.Pixels(tools.ToGray(img))), nil
}
