package toolchain

import (
	"context"

	"github.com/pombredanne/facereclib/pkg/database"
	"github.com/pombredanne/facereclib/pkg/domain"
	xe "github.com/pombredanne/facereclib/pkg/errors"
	"github.com/pombredanne/facereclib/pkg/feature"
	"github.com/pombredanne/facereclib/pkg/tools"
)

// enrolment tells where models of a type come from and go to.
type enrolment struct {
	ids   func(ctx context.Context, group string) ([]string, error)
	files func(ctx context.Context, modelID, group string, useProjected bool) ([]database.File, error)
	model func(modelID, group string) (string, error)
}

func (tc *ToolChain) enrolment(mt domain.ModelType) (enrolment, error) {
	switch mt {
	case domain.NormalModel:
		return enrolment{ids: tc.fs.ModelIDs, files: tc.fs.EnrolFiles, model: tc.fs.ModelFile}, nil
	case domain.TNormModel:
		return enrolment{ids: tc.fs.TModelIDs, files: tc.fs.TEnrolFiles, model: tc.fs.TModelFile}, nil
	default:
		return enrolment{}, xe.Configuration("unknown model type: %q", mt)
	}
}

// EnrolModels enrols models of each group and model type.
//
// The range applies to the sorted model ids of each group and type.
func (tc *ToolChain) EnrolModels(
	ctx context.Context, s tools.Scorer,
	groups []string, types []domain.ModelType,
	r *domain.Range, force bool,
) error {
	load := tc.enrolerLoader(s)
	projected := usesProjected(s)

	for _, group := range groups {
		for _, mt := range types {
			e, err := tc.enrolment(mt)
			if err != nil {
				return err
			}
			all, err := e.ids(ctx, group)
			if err != nil {
				return err
			}
			ids := domain.Slice(all, r)
			tc.logger.Infof("enrolling %d of %d models (type %s, group %s)", len(ids), len(all), mt, group)

			for _, id := range ids {
				out, err := e.model(id, group)
				if err != nil {
					return err
				}
				if skip(out, force) {
					continue
				}
				if err := load(); err != nil {
					return err
				}
				files, err := e.files(ctx, id, group, projected)
				if err != nil {
					return err
				}
				vs, err := readVectors(ctx, files)
				if err != nil {
					return err
				}
				model, err := s.Enroll(vs)
				if err != nil {
					return xe.WrapWithNote("enrol "+id, err)
				}
				if err := feature.WriteVector(out, model); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
