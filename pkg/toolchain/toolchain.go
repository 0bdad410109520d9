// Package toolchain runs the stages of a verification experiment for one
// FileSelector: preprocessing, feature extraction, projection, enrolment,
// scoring, ZT-norm and concatenation.
//
// Every stage writes one artifact per input, and skips inputs whose
// artifact exists unless it is forced. So a stage can be rerun, or split
// into ranges and run by many workers.
package toolchain

import (
	"context"
	"fmt"

	"github.com/labstack/gommon/log"
	"github.com/pombredanne/facereclib/pkg/database"
	"github.com/pombredanne/facereclib/pkg/domain"
	xe "github.com/pombredanne/facereclib/pkg/errors"
	"github.com/pombredanne/facereclib/pkg/feature"
	"github.com/pombredanne/facereclib/pkg/fileselector"
	"github.com/pombredanne/facereclib/pkg/tools"
)

type ToolChain struct {
	fs     *fileselector.FileSelector
	logger *log.Logger
}

func New(fs *fileselector.FileSelector, logger *log.Logger) *ToolChain {
	return &ToolChain{fs: fs, logger: logger}
}

// FileSelector of this toolchain.
func (tc *ToolChain) FileSelector() *fileselector.FileSelector {
	return tc.fs
}

// skip tells the artifact at path is already there and should be kept.
func skip(path string, force bool) bool {
	return !force && feature.Exists(path)
}

// aligned checks two lists of files have the same ids in the same order.
func aligned(name string, a, b []database.File) error {
	if len(a) != len(b) {
		return fmt.Errorf("%w: %s: %d files against %d", xe.ErrMisaligned, name, len(a), len(b))
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			return fmt.Errorf("%w: %s: #%d is %s, but %s", xe.ErrMisaligned, name, i, a[i].ID, b[i].ID)
		}
	}
	return nil
}

// lazy calls load at most once, when it is first needed.
func lazy(load func() error) func() error {
	loaded := false
	return func() error {
		if loaded {
			return nil
		}
		if err := load(); err != nil {
			return err
		}
		loaded = true
		return nil
	}
}

// PreprocessImages preprocesses original images in the range.
func (tc *ToolChain) PreprocessImages(ctx context.Context, p tools.Preprocessor, r *domain.Range, force bool) error {
	originals, err := tc.fs.OriginalImageList(ctx)
	if err != nil {
		return err
	}
	outputs, err := tc.fs.PreprocessedImageList(ctx)
	if err != nil {
		return err
	}
	if err := aligned("preprocessed images", originals, outputs); err != nil {
		return err
	}
	annotations, err := tc.fs.EyePositionList(ctx)
	if err != nil {
		return err
	}
	if len(annotations) != 0 {
		if err := aligned("eye positions", originals, annotations); err != nil {
			return err
		}
	}

	conf := tc.fs.Config()
	indices := domain.Slice(indexes(len(originals)), r)
	tc.logger.Infof("preprocessing %d of %d images", len(indices), len(originals))
	done := 0
	for _, i := range indices {
		if err := ctx.Err(); err != nil {
			return err
		}
		out := outputs[i].Path
		if skip(out, force) {
			continue
		}

		var annot *tools.Annotations
		if len(annotations) != 0 {
			a, err := tools.ReadAnnotations(annotations[i].Path, conf.FirstAnnotation)
			if err != nil {
				return xe.WrapWithNote(originals[i].ID, err)
			}
			annot = a
		}
		if err := p.Preprocess(ctx, originals[i].Path, annot, out); err != nil {
			return xe.WrapWithNote(originals[i].ID, err)
		}
		done += 1
	}
	tc.logger.Debugf("preprocessed %d images", done)
	return nil
}

func indexes(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

// TrainExtractor trains the extractor with world images, when it is trainable.
func (tc *ToolChain) TrainExtractor(ctx context.Context, e tools.Extractor, force bool) error {
	trainer, ok := e.(tools.ExtractorTrainer)
	if !ok {
		tc.logger.Debug("extractor is not trainable. skipped.")
		return nil
	}
	out, err := tc.fs.ExtractorFile()
	if err != nil {
		return err
	}
	if skip(out, force) {
		tc.logger.Infof("extractor exists: %s", out)
		return nil
	}
	images, err := tc.fs.TrainingImageList(ctx)
	if err != nil {
		return err
	}
	tc.logger.Infof("training extractor with %d images", len(images))
	return xe.WrapWithNote("train extractor", trainer.TrainExtractor(ctx, images, out))
}

// ExtractFeatures extracts features of preprocessed images in the range.
func (tc *ToolChain) ExtractFeatures(ctx context.Context, e tools.Extractor, r *domain.Range, force bool) error {
	load := lazy(func() error { return nil })
	if trainer, ok := e.(tools.ExtractorTrainer); ok {
		load = lazy(func() error {
			path, err := tc.fs.ExtractorFile()
			if err != nil {
				return err
			}
			return xe.WrapWithNote("load extractor", trainer.LoadExtractor(path))
		})
	}

	images, err := tc.fs.PreprocessedImageList(ctx)
	if err != nil {
		return err
	}
	outputs, err := tc.fs.FeatureList(ctx)
	if err != nil {
		return err
	}
	if err := aligned("features", images, outputs); err != nil {
		return err
	}

	indices := domain.Slice(indexes(len(images)), r)
	tc.logger.Infof("extracting %d of %d features", len(indices), len(images))
	for _, i := range indices {
		if err := ctx.Err(); err != nil {
			return err
		}
		out := outputs[i].Path
		if skip(out, force) {
			continue
		}
		if err := load(); err != nil {
			return err
		}
		img, err := tools.LoadGray(images[i].Path)
		if err != nil {
			return err
		}
		v, err := e.Extract(img)
		if err != nil {
			return xe.WrapWithNote(images[i].ID, err)
		}
		if err := feature.WriteVector(out, v); err != nil {
			return err
		}
	}
	return nil
}

// TrainProjector trains the projector of the tool, when it is trainable.
//
// A tool trained by models gets world features grouped by identity.
func (tc *ToolChain) TrainProjector(ctx context.Context, s tools.Scorer, force bool) error {
	byModels, isByModels := s.(tools.ProjectorTrainerByModels)
	plain, isPlain := s.(tools.ProjectorTrainer)
	if !isByModels && !isPlain {
		tc.logger.Debug("tool does not train projector. skipped.")
		return nil
	}

	out, err := tc.fs.ProjectorFile()
	if err != nil {
		return err
	}
	if skip(out, force) {
		tc.logger.Infof("projector exists: %s", out)
		return nil
	}

	if isByModels {
		files, err := tc.fs.TrainingFeatureListByModels(ctx, fileselector.Features)
		if err != nil {
			return err
		}
		tc.logger.Infof("training projector with %d identities", len(files))
		return xe.WrapWithNote("train projector", byModels.TrainProjectorByModels(ctx, files, out))
	}

	files, err := tc.fs.TrainingFeatureList(ctx)
	if err != nil {
		return err
	}
	tc.logger.Infof("training projector with %d features", len(files))
	return xe.WrapWithNote("train projector", plain.TrainProjector(ctx, files, out))
}

// ProjectFeatures projects features in the range, when the tool projects.
func (tc *ToolChain) ProjectFeatures(ctx context.Context, s tools.Scorer, r *domain.Range, force bool) error {
	projector, ok := s.(tools.Projector)
	if !ok {
		tc.logger.Debug("tool does not project. skipped.")
		return nil
	}
	load := lazy(func() error {
		path, err := tc.fs.ProjectorFile()
		if err != nil {
			return err
		}
		return xe.WrapWithNote("load projector", projector.LoadProjector(path))
	})

	features, err := tc.fs.FeatureList(ctx)
	if err != nil {
		return err
	}
	outputs, err := tc.fs.ProjectedList(ctx)
	if err != nil {
		return err
	}
	if err := aligned("projected features", features, outputs); err != nil {
		return err
	}

	indices := domain.Slice(indexes(len(features)), r)
	tc.logger.Infof("projecting %d of %d features", len(indices), len(features))
	for _, i := range indices {
		if err := ctx.Err(); err != nil {
			return err
		}
		out := outputs[i].Path
		if skip(out, force) {
			continue
		}
		if err := load(); err != nil {
			return err
		}
		v, err := feature.ReadVector(features[i].Path)
		if err != nil {
			return err
		}
		p, err := projector.Project(v)
		if err != nil {
			return xe.WrapWithNote(features[i].ID, err)
		}
		if err := feature.WriteVector(out, p); err != nil {
			return err
		}
	}
	return nil
}

// usesProjected tells enrolment and scoring read projected features.
func usesProjected(s tools.Scorer) bool {
	_, ok := s.(tools.Projector)
	return ok
}

// TrainEnroler trains the enroler of the tool, when it is trainable.
func (tc *ToolChain) TrainEnroler(ctx context.Context, s tools.Scorer, force bool) error {
	trainer, ok := s.(tools.EnrolerTrainer)
	if !ok {
		tc.logger.Debug("tool does not train enroler. skipped.")
		return nil
	}
	out, err := tc.fs.EnrolerFile()
	if err != nil {
		return err
	}
	if skip(out, force) {
		tc.logger.Infof("enroler exists: %s", out)
		return nil
	}

	stage := fileselector.Features
	if usesProjected(s) {
		stage = fileselector.Projected
	}
	files, err := tc.fs.TrainingFeatureListByModels(ctx, stage)
	if err != nil {
		return err
	}
	tc.logger.Infof("training enroler with %d identities", len(files))
	return xe.WrapWithNote("train enroler", trainer.TrainEnroler(ctx, files, out))
}

// enrolerLoader loads the enroler of the tool once, if it has one.
func (tc *ToolChain) enrolerLoader(s tools.Scorer) func() error {
	trainer, ok := s.(tools.EnrolerTrainer)
	if !ok {
		return lazy(func() error { return nil })
	}
	return lazy(func() error {
		path, err := tc.fs.EnrolerFile()
		if err != nil {
			return err
		}
		return xe.WrapWithNote("load enroler", trainer.LoadEnroler(path))
	})
}

func readVectors(ctx context.Context, files []database.File) ([]feature.Vector, error) {
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
