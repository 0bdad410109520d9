// Package tools declares what the toolchain asks of pluggable algorithms.
//
// Every tool implements one of Preprocessor, Extractor or Scorer. Other
// interfaces are optional capabilities: the toolchain runs a stage only when
// the tool implements the interface of the stage.
package tools

import (
	"context"
	"image"

	"github.com/pombredanne/facereclib/pkg/database"
	"github.com/pombredanne/facereclib/pkg/feature"
	"github.com/pombredanne/facereclib/pkg/fileselector"
)

// Preprocessor writes a normalized image of input to output.
//
// annotations is nil when the image has no eye positions.
type Preprocessor interface {
	Preprocess(ctx context.Context, input string, annotations *Annotations, output string) error
}

// Extractor makes a feature vector from a preprocessed image.
type Extractor interface {
	Extract(img image.Image) (feature.Vector, error)
}

// ExtractorTrainer is an Extractor which learns from world images.
type ExtractorTrainer interface {
	Extractor
	TrainExtractor(ctx context.Context, images []database.File, output string) error

	// LoadExtractor reads what TrainExtractor wrote, before Extract is called.
	LoadExtractor(path string) error
}

// Scorer enrols models and compares probes with them.
type Scorer interface {
	// Enroll folds features of an identity into a model.
	Enroll(features []feature.Vector) (feature.Vector, error)

	// Score tells how similar a probe is to a model. Higher is more similar.
	Score(model, probe feature.Vector) (float64, error)
}

// Projector maps features before enrolment and scoring.
type Projector interface {
	Project(v feature.Vector) (feature.Vector, error)

	// LoadProjector reads what the projector trainer wrote, before Project is called.
	LoadProjector(path string) error
}

// ProjectorTrainer learns a projection from world features.
type ProjectorTrainer interface {
	Projector
	TrainProjector(ctx context.Context, features []database.File, output string) error
}

// ProjectorTrainerByModels learns a projection from world features grouped by identity.
type ProjectorTrainerByModels interface {
	Projector
	TrainProjectorByModels(ctx context.Context, byModels map[string][]database.File, output string) error
}

// EnrolerTrainer learns how to enrol from world features grouped by identity.
type EnrolerTrainer interface {
	TrainEnroler(ctx context.Context, byModels map[string][]database.File, output string) error

	// LoadEnroler reads what TrainEnroler wrote, before Enroll or Score is called.
	LoadEnroler(path string) error
}

// ByModelsListerProvider is a tool which decides how world files are
// grouped by identity for its training.
type ByModelsListerProvider interface {
	ByModelsLister() fileselector.ByModelsLister
}

// Capabilities of a pair of extractor and scorer.
type Capabilities struct {
	TrainsExtractor         bool
	Projects                bool
	TrainsProjector         bool
	TrainsProjectorByModels bool
	TrainsEnroler           bool
	ListsByModels           bool
}

func CapabilitiesOf(extractor Extractor, scorer Scorer) Capabilities {
	c := Capabilities{}
	_, c.TrainsExtractor = extractor.(ExtractorTrainer)
	_, c.Projects = scorer.(Projector)
	_, c.TrainsProjector = scorer.(ProjectorTrainer)
	_, c.TrainsProjectorByModels = scorer.(ProjectorTrainerByModels)
	_, c.TrainsEnroler = scorer.(EnrolerTrainer)
	_, c.ListsByModels = scorer.(ByModelsListerProvider)
	return c
}

// FileSelectorOptions returns options the scorer asks for.
func FileSelectorOptions(scorer Scorer) []fileselector.Option {
	if p, ok := scorer.(ByModelsListerProvider); ok {
		return []fileselector.Option{fileselector.WithByModelsLister(p.ByModelsLister())}
	}
	return nil
}
