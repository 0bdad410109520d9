// Package scoring enrols models and scores probes against them.
package scoring

import (
	"context"
	"errors"
	"fmt"

	"github.com/pombredanne/facereclib/pkg/database"
	xe "github.com/pombredanne/facereclib/pkg/errors"
	"github.com/pombredanne/facereclib/pkg/feature"
	"github.com/pombredanne/facereclib/pkg/tools"
	"gonum.org/v1/gonum/floats"
)

type Metric string

const (
	Euclidean Metric = "euclidean"
	Cosine    Metric = "cosine"
)

type DistanceParams struct {
	Metric Metric `yaml:"metric"`

	// subtract the mean of world features before enrolment and scoring.
	Center bool `yaml:"center"`
}

// Distance enrols the mean of features, and scores with negated
// euclidean distance or cosine similarity.
type Distance struct {
	metric Metric
}

var _ tools.Scorer = &Distance{}

func NewDistance(params DistanceParams) (*Distance, error) {
	switch params.Metric {
	case "":
		return &Distance{metric: Euclidean}, nil
	case Euclidean, Cosine:
		return &Distance{metric: params.Metric}, nil
	default:
		return nil, fmt.Errorf("unknown metric: %s", params.Metric)
	}
}

func (d *Distance) Enroll(features []feature.Vector) (feature.Vector, error) {
	return Mean(features)
}

func (d *Distance) Score(model, probe feature.Vector) (float64, error) {
	if len(model) != len(probe) {
		return 0, fmt.Errorf("model length %d differs from probe length %d", len(model), len(probe))
	}
	if d.metric == Cosine {
		return CosineSimilarity(model, probe), nil
	}
	return -floats.Distance(model, probe, 2), nil
}

// CenteredDistance is a Distance on features centered by the world mean.
type CenteredDistance struct {
	*Distance
	mean feature.Vector
}

var _ tools.ProjectorTrainer = &CenteredDistance{}

func (c *CenteredDistance) TrainProjector(ctx context.Context, files []database.File, output string) error {
	vs, err := readAll(ctx, files)
	if err != nil {
		return err
	}
	mean, err := Mean(vs)
	if err != nil {
		return err
	}
	return feature.WriteVector(output, mean)
}

func (c *CenteredDistance) LoadProjector(path string) error {
	mean, err := feature.ReadVector(path)
	if err != nil {
		return err
	}
	c.mean = mean
	return nil
}

func (c *CenteredDistance) Project(v feature.Vector) (feature.Vector, error) {
	if c.mean == nil {
		return nil, xe.New("projector is not loaded")
	}
	if len(v) != len(c.mean) {
		return nil, fmt.Errorf("feature length %d differs from the projector %d", len(v), len(c.mean))
	}
	return floats.SubTo(make(feature.Vector, len(v)), v, c.mean), nil
}

// NewScorer builds a Distance, or CenteredDistance if params.Center.
func NewScorer(params DistanceParams) (tools.Scorer, error) {
	d, err := NewDistance(params)
	if err != nil {
		return nil, err
	}
	if params.Center {
		return &CenteredDistance{Distance: d}, nil
	}
	return d, nil
}

// Mean of vectors of the same length.
func Mean(vs []feature.Vector) (feature.Vector, error) {
	if len(vs) == 0 {
		return nil, errors.New("no features")
	}
	mean := make(feature.Vector, len(vs[0]))
	for n, v := range vs {
		if len(v) != len(mean) {
			return nil, fmt.Errorf("feature #%d has length %d, but %d expected", n, len(v), len(mean))
		}
		floats.Add(mean, v)
	}
	floats.Scale(1/float64(len(vs)), mean)
	return mean, nil
}

// CosineSimilarity of a and b. It is 0 when either is zero.
func CosineSimilarity(a, b feature.Vector) float64 {
	na, nb := floats.Norm(a, 2), floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	return floats.Dot(a, b) / (na * nb)
}

func readAll(ctx context.Context, files []database.File) ([]feature.Vector, error) {
	vs := make([]feature.Vector, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v, err := feature.ReadVector(f.Path)
		if err != nil {
			return nil, err
		}
		vs = append(vs, v)
	}
	return vs, nil
}
