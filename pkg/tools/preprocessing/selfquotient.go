package preprocessing

import (
	"context"
	"errors"
	"image"
	"math"

	"github.com/disintegration/imaging"
	"github.com/pombredanne/facereclib/pkg/tools"
)

type SelfQuotientParams struct {
	FaceCropParams `yaml:",inline"`

	// standard deviation of the gaussian smoothing, in pixels.
	Sigma float64 `yaml:"sigma"`
}

func DefaultSelfQuotientParams() SelfQuotientParams {
	return SelfQuotientParams{FaceCropParams: DefaultFaceCropParams(), Sigma: 2}
}

// SelfQuotient crops a face, then divides it by its smoothed version to
// remove illumination.
type SelfQuotient struct {
	crop  *FaceCrop
	sigma float64
}

var _ tools.Preprocessor = &SelfQuotient{}

func NewSelfQuotient(params SelfQuotientParams) (*SelfQuotient, error) {
	if params.Sigma <= 0 {
		return nil, errors.New("sigma should be positive")
	}
	crop, err := NewFaceCrop(params.FaceCropParams)
	if err != nil {
		return nil, err
	}
	return &SelfQuotient{crop: crop, sigma: params.Sigma}, nil
}

func (sq *SelfQuotient) Preprocess(ctx context.Context, input string, annotations *tools.Annotations, output string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	src, err := tools.LoadGray(input)
	if err != nil {
		return err
	}
	face, err := sq.crop.Crop(src, annotations)
	if err != nil {
		return err
	}
	return tools.SaveGray(output, sq.Quotient(face))
}

// Quotient returns face / blur(face), stretched into 0..255.
func (sq *SelfQuotient) Quotient(face *image.Gray) *image.Gray {
	blurred := tools.ToGray(imaging.Blur(face, sq.sigma))
	w, h := face.Rect.Dx(), face.Rect.Dy()

	q := make([]float64, w*h)
	lo, hi := math.Inf(1), math.Inf(-1)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := (float64(face.GrayAt(x, y).Y) + 1) / (float64(blurred.GrayAt(x, y).Y) + 1)
			q[y*w+x] = v
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}

	span := hi - lo
	for i := range q {
		if span == 0 {
			q[i] = 0
			continue
		}
		q[i] = (q[i] - lo) / span
	}
	return tools.FromPixels(q, w, h)
}
