package scoring

import (
	"context"
	"fmt"
	"math"

	"github.com/pombredanne/facereclib/pkg/database"
	xe "github.com/pombredanne/facereclib/pkg/errors"
	"github.com/pombredanne/facereclib/pkg/feature"
	"github.com/pombredanne/facereclib/pkg/fileselector"
	"github.com/pombredanne/facereclib/pkg/tools"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

type WithinClassParams struct {
	// identities with fewer world samples are not used for training.
	MinSamples int `yaml:"minSamples"`
}

// WithinClass whitens features by their within-identity variance, then
// scores by cosine similarity after removing the cohort mean of models.
//
// The projector is stored as a 2-row matrix: world mean, then inverse
// within-class standard deviations.
type WithinClass struct {
	minSamples int

	mean   feature.Vector
	invstd feature.Vector
	cohort feature.Vector
}

var (
	_ tools.ProjectorTrainerByModels = &WithinClass{}
	_ tools.EnrolerTrainer           = &WithinClass{}
	_ tools.ByModelsListerProvider   = &WithinClass{}
	_ tools.Scorer                   = &WithinClass{}
)

// smallest standard deviation considered as non-zero.
const epsilon = 1e-8

func NewWithinClass(params WithinClassParams) (*WithinClass, error) {
	switch {
	case params.MinSamples == 0:
		params.MinSamples = 2
	case params.MinSamples < 0:
		return nil, fmt.Errorf("minSamples should be positive: %d", params.MinSamples)
	}
	return &WithinClass{minSamples: params.MinSamples}, nil
}

// ByModelsLister drops identities with fewer than minSamples files.
func (w *WithinClass) ByModelsLister() fileselector.ByModelsLister {
	return fileselector.ByModelsListerFunc(func(ctx context.Context, fs *fileselector.FileSelector, stage fileselector.Stage) (map[string][]database.File, error) {
		all, err := fileselector.DefaultByModels.ByModels(ctx, fs, stage)
		if err != nil {
			return nil, err
		}
		ret := map[string][]database.File{}
		for id, files := range all {
			if w.minSamples <= len(files) {
				ret[id] = files
			}
		}
		return ret, nil
	})
}

func (w *WithinClass) TrainProjectorByModels(ctx context.Context, byModels map[string][]database.File, output string) error {
	var all, centered []feature.Vector
	for _, id := range database.SortedIDs(keys(byModels)) {
		vs, err := readAll(ctx, byModels[id])
		if err != nil {
			return err
		}
		if len(vs) == 0 {
			continue
		}
		m, err := Mean(vs)
		if err != nil {
			return xe.WrapWithNote(id, err)
		}
		for _, v := range vs {
			centered = append(centered, floats.SubTo(make(feature.Vector, len(v)), v, m))
		}
		all = append(all, vs...)
	}
	if len(all) == 0 {
		return xe.New("no training features")
	}

	mean, err := Mean(all)
	if err != nil {
		return err
	}
	if len(mean) == 0 {
		return xe.New("training features are empty")
	}
	c, err := feature.MatrixOf(centered)
	if err != nil {
		return err
	}
	within := mat.NewDense(c.Rows, c.Cols, c.Data)
	scale := math.Sqrt(float64(c.Rows))
	invstd := make(feature.Vector, len(mean))
	column := make([]float64, c.Rows)
	for i := range invstd {
		std := floats.Norm(mat.Col(column, i, within), 2) / scale
		if std < epsilon {
			invstd[i] = 1
		} else {
			invstd[i] = 1 / std
		}
	}

	m, err := feature.MatrixOf([]feature.Vector{mean, invstd})
	if err != nil {
		return err
	}
	return feature.WriteMatrix(output, m)
}

func (w *WithinClass) LoadProjector(path string) error {
	m, err := feature.ReadMatrix(path)
	if err != nil {
		return err
	}
	if m.Rows != 2 {
		return fmt.Errorf("%s: projector should have 2 rows, but %d", path, m.Rows)
	}
	w.mean = append(feature.Vector{}, m.Row(0)...)
	w.invstd = append(feature.Vector{}, m.Row(1)...)
	return nil
}

func (w *WithinClass) Project(v feature.Vector) (feature.Vector, error) {
	if w.mean == nil {
		return nil, xe.New("projector is not loaded")
	}
	if len(v) != len(w.mean) {
		return nil, fmt.Errorf("feature length %d differs from the projector %d", len(v), len(w.mean))
	}
	p := floats.SubTo(make(feature.Vector, len(v)), v, w.mean)
	floats.Mul(p, w.invstd)
	return p, nil
}

// TrainEnroler stores the mean of models enrolled from each identity.
func (w *WithinClass) TrainEnroler(ctx context.Context, byModels map[string][]database.File, output string) error {
	models := []feature.Vector{}
	for _, id := range database.SortedIDs(keys(byModels)) {
		vs, err := readAll(ctx, byModels[id])
		if err != nil {
			return err
		}
		if len(vs) == 0 {
			continue
		}
		m, err := Mean(vs)
		if err != nil {
			return xe.WrapWithNote(id, err)
		}
		models = append(models, m)
	}
	cohort, err := Mean(models)
	if err != nil {
		return xe.WrapWithNote("cohort", err)
	}
	return feature.WriteVector(output, cohort)
}

func (w *WithinClass) LoadEnroler(path string) error {
	c, err := feature.ReadVector(path)
	if err != nil {
		return err
	}
	w.cohort = c
	return nil
}

func (w *WithinClass) Enroll(features []feature.Vector) (feature.Vector, error) {
	m, err := Mean(features)
	if err != nil {
		return nil, err
	}
	return w.centered(m)
}

func (w *WithinClass) Score(model, probe feature.Vector) (float64, error) {
	if len(model) != len(probe) {
		return 0, fmt.Errorf("model length %d differs from probe length %d", len(model), len(probe))
	}
	p, err := w.centered(probe)
	if err != nil {
		return 0, err
	}
	return CosineSimilarity(model, p), nil
}

func (w *WithinClass) centered(v feature.Vector) (feature.Vector, error) {
	if w.cohort == nil {
		return nil, xe.New("enroler is not loaded")
	}
	if len(v) != len(w.cohort) {
		return nil, fmt.Errorf("feature length %d differs from the enroler %d", len(v), len(w.cohort))
	}
	return floats.SubTo(make(feature.Vector, len(v)), v, w.cohort), nil
}

func keys[V any](m map[string]V) []string {
	ks := make([]string, 0, len(m))
	for k := range m {
		ks = append(ks, k)
	}
	return ks
}
