// Package preprocessing normalizes face images.
package preprocessing

import (
	"context"
	"errors"
	"image"
	"math"

	"github.com/disintegration/imaging"
	"github.com/pombredanne/facereclib/pkg/tools"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// FaceCropParams configures FaceCrop.
//
// Eye positions are in the cropped image.
type FaceCropParams struct {
	Width    int         `yaml:"width"`
	Height   int         `yaml:"height"`
	RightEye tools.Point `yaml:"rightEye"`
	LeftEye  tools.Point `yaml:"leftEye"`
}

// DefaultFaceCropParams crops 64x80 faces with eyes 33 pixels apart.
func DefaultFaceCropParams() FaceCropParams {
	return FaceCropParams{
		Width: 64, Height: 80,
		RightEye: tools.Point{X: 15.5, Y: 16},
		LeftEye:  tools.Point{X: 48.5, Y: 16},
	}
}

// FaceCrop aligns eyes to fixed positions and crops a gray face.
//
// Without annotations, it scales and center-crops the whole image instead.
type FaceCrop struct {
	params FaceCropParams
}

var _ tools.Preprocessor = &FaceCrop{}

func NewFaceCrop(params FaceCropParams) (*FaceCrop, error) {
	if params.Width <= 0 || params.Height <= 0 {
		return nil, errors.New("width and height should be positive")
	}
	if params.RightEye == params.LeftEye {
		return nil, errors.New("eyes should be apart")
	}
	return &FaceCrop{params: params}, nil
}

func (fc *FaceCrop) Preprocess(ctx context.Context, input string, annotations *tools.Annotations, output string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	src, err := tools.LoadGray(input)
	if err != nil {
		return err
	}
	cropped, err := fc.Crop(src, annotations)
	if err != nil {
		return err
	}
	return tools.SaveGray(output, cropped)
}

// Crop returns the normalized face of src.
func (fc *FaceCrop) Crop(src *image.Gray, annotations *tools.Annotations) (*image.Gray, error) {
	p := fc.params
	if annotations == nil {
		return tools.ToGray(imaging.Fill(src, p.Width, p.Height, imaging.Center, imaging.Linear)), nil
	}

	s2d, err := similarity(
		annotations.RightEye, annotations.LeftEye,
		p.RightEye, p.LeftEye,
	)
	if err != nil {
		return nil, err
	}
	dst := image.NewGray(image.Rect(0, 0, p.Width, p.Height))
	draw.BiLinear.Transform(dst, s2d, src, src.Bounds(), draw.Src, nil)
	return dst, nil
}

// similarity maps a pair of source points onto a pair of destination
// points by rotation, uniform scaling and translation.
func similarity(srcA, srcB, dstA, dstB tools.Point) (f64.Aff3, error) {
	sx, sy := srcB.X-srcA.X, srcB.Y-srcA.Y
	dx, dy := dstB.X-dstA.X, dstB.Y-dstA.Y

	sn := math.Hypot(sx, sy)
	if sn == 0 {
		return f64.Aff3{}, errors.New("annotated eyes are at the same position")
	}
	scale := math.Hypot(dx, dy) / sn
	angle := math.Atan2(dy, dx) - math.Atan2(sy, sx)
	a := scale * math.Cos(angle)
	b := scale * math.Sin(angle)

	return f64.Aff3{
		a, -b, dstA.X - (a*srcA.X - b*srcA.Y),
		b, a, dstA.Y - (b*srcA.X + a*srcA.Y),
	}, nil
}
