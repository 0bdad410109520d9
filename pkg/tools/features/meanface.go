package features

import (
	"context"
	"fmt"
	"image"

	"github.com/pombredanne/facereclib/pkg/database"
	xe "github.com/pombredanne/facereclib/pkg/errors"
	"github.com/pombredanne/facereclib/pkg/feature"
	"github.com/pombredanne/facereclib/pkg/tools"
	"gonum.org/v1/gonum/floats"
)

// MeanFace subtracts the mean world face from pixel features.
type MeanFace struct {
	pixels *Pixels
	mean   feature.Vector
}

var _ tools.ExtractorTrainer = &MeanFace{}

func NewMeanFace(params PixelsParams) (*MeanFace, error) {
	p, err := NewPixels(params)
	if err != nil {
		return nil, err
	}
	return &MeanFace{pixels: p}, nil
}

func (m *MeanFace) TrainExtractor(ctx context.Context, images []database.File, output string) error {
	if len(images) == 0 {
		return xe.New("no training images")
	}
	var sum feature.Vector
	for _, f := range images {
		if err := ctx.Err(); err != nil {
			return err
		}
		img, err := tools.LoadGray(f.Path)
		if err != nil {
			return err
		}
		v, err := m.pixels.Extract(img)
		if err != nil {
			return xe.WrapWithNote(f.ID, err)
		}
		if sum == nil {
			sum = make(feature.Vector, len(v))
		} else if len(sum) != len(v) {
			return xe.WrapWithNote(f.ID, fmt.Errorf("feature length %d differs from %d", len(v), len(sum)))
		}
		floats.Add(sum, v)
	}
	floats.Scale(1/float64(len(images)), sum)
	return feature.WriteVector(output, sum)
}

func (m *MeanFace) LoadExtractor(path string) error {
	mean, err := feature.ReadVector(path)
	if err != nil {
		return err
	}
	m.mean = mean
	return nil
}

func (m *MeanFace) Extract(img image.Image) (feature.Vector, error) {
	if m.mean == nil {
		return nil, xe.New("extractor is not loaded")
	}
	v, err := m.pixels.Extract(img)
	if err != nil {
		return nil, err
	}
	if len(v) != len(m.mean) {
		return nil, fmt.Errorf("feature length %d differs from the mean face %d", len(v), len(m.mean))
	}
	floats.Sub(v, m.mean)
	return v, nil
}
