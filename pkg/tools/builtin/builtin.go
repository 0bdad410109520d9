// Package builtin registers tools shipped with this module.
package builtin

import (
	"github.com/pombredanne/facereclib/pkg/tools"
	"github.com/pombredanne/facereclib/pkg/tools/features"
	"github.com/pombredanne/facereclib/pkg/tools/preprocessing"
	"github.com/pombredanne/facereclib/pkg/tools/scoring"
)

const (
	FaceCrop     = "face-crop"
	SelfQuotient = "self-quotient"

	Pixels   = "pixels"
	MeanFace = "mean-face"

	Distance    = "distance"
	WithinClass = "within-class"
)

// Registry returns a new registry with every builtin tool.
func Registry() *tools.Registry {
	return tools.NewRegistry().
		RegisterPreprocessor(FaceCrop, func(p tools.Params) (tools.Preprocessor, error) {
			params := preprocessing.DefaultFaceCropParams()
			if err := p.Decode(&params); err != nil {
				return nil, err
			}
			return preprocessing.NewFaceCrop(params)
		}).
		RegisterPreprocessor(SelfQuotient, func(p tools.Params) (tools.Preprocessor, error) {
			params := preprocessing.DefaultSelfQuotientParams()
			if err := p.Decode(&params); err != nil {
				return nil, err
			}
			return preprocessing.NewSelfQuotient(params)
		}).
		RegisterExtractor(Pixels, func(p tools.Params) (tools.Extractor, error) {
			params := features.PixelsParams{}
			if err := p.Decode(&params); err != nil {
				return nil, err
			}
			return features.NewPixels(params)
		}).
		RegisterExtractor(MeanFace, func(p tools.Params) (tools.Extractor, error) {
			params := features.PixelsParams{}
			if err := p.Decode(&params); err != nil {
				return nil, err
			}
			return features.NewMeanFace(params)
		}).
		RegisterScorer(Distance, func(p tools.Params) (tools.Scorer, error) {
			params := scoring.DistanceParams{}
			if err := p.Decode(&params); err != nil {
				return nil, err
			}
			return scoring.NewScorer(params)
		}).
		RegisterScorer(WithinClass, func(p tools.Params) (tools.Scorer, error) {
			params := scoring.WithinClassParams{}
			if err := p.Decode(&params); err != nil {
				return nil, err
			}
			return scoring.NewWithinClass(params)
		})
}
