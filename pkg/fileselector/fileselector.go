// Package fileselector tells each stage which files it reads and where it
// writes.
//
// A FileSelector holds no state: every list is a database query and every
// path is derived from its Config. Accessors of output locations create
// their directories, except aggregate files which are only read later.
package fileselector

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pombredanne/facereclib/pkg/configs/experiment"
	"github.com/pombredanne/facereclib/pkg/database"
	xe "github.com/pombredanne/facereclib/pkg/errors"
)

// Config of a FileSelector for one type and one protocol.
type Config struct {
	// type whose trained artifacts are used.
	Type string

	// protocol whose models and probes are enrolled and scored.
	Protocol string

	// protocols of the files preprocessed, extracted, projected and trained with.
	Scope []string

	Options experiment.StageOptions

	OriginalDirectory string
	OriginalExtension string

	AnnotationDirectory string
	AnnotationExtension string

	// tokens to be skipped at the head of each annotation file.
	FirstAnnotation int

	Paths experiment.Paths
}

// Stage names a directory of per-file artifacts.
type Stage string

const (
	Preprocessed Stage = "preprocessed"
	Features     Stage = "features"
	Projected    Stage = "projected"
)

// ByModelsLister lists world files per training identity.
type ByModelsLister interface {
	ByModels(ctx context.Context, fs *FileSelector, stage Stage) (map[string][]database.File, error)
}

// ByModelsListerFunc is a function as ByModelsLister.
type ByModelsListerFunc func(ctx context.Context, fs *FileSelector, stage Stage) (map[string][]database.File, error)

func (f ByModelsListerFunc) ByModels(ctx context.Context, fs *FileSelector, stage Stage) (map[string][]database.File, error) {
	return f(ctx, fs, stage)
}

// DefaultByModels lists, for each world identity, its world files with
// the options of the stage which trains on them.
var DefaultByModels ByModelsLister = ByModelsListerFunc(
	func(ctx context.Context, fs *FileSelector, stage Stage) (map[string][]database.File, error) {
		ids, err := fs.TrainingModelIDs(ctx)
		if err != nil {
			return nil, err
		}
		byModels := make(map[string][]database.File, len(ids))
		for _, id := range ids {
			files, err := fs.TrainingFilesOf(ctx, stage, id)
			if err != nil {
				return nil, err
			}
			byModels[id] = files
		}
		return byModels, nil
	},
)

type FileSelector struct {
	conf   Config
	db     database.Database
	lister ByModelsLister
}

type Option func(*FileSelector)

// WithByModelsLister replaces DefaultByModels.
func WithByModelsLister(l ByModelsLister) Option {
	return func(fs *FileSelector) {
		if l != nil {
			fs.lister = l
		}
	}
}

func New(conf *Config, db database.Database, options ...Option) *FileSelector {
	c := *conf
	c.Scope = append([]string{}, conf.Scope...)
	c.Options = conf.Options.Clone()

	fs := &FileSelector{conf: c, db: db, lister: DefaultByModels}
	for _, opt := range options {
		opt(fs)
	}
	return fs
}

// Config returns a copy of the configuration.
func (fs *FileSelector) Config() Config {
	c := fs.conf
	c.Scope = append([]string{}, fs.conf.Scope...)
	c.Options = fs.conf.Options.Clone()
	return c
}

func (fs *FileSelector) Paths() experiment.Paths {
	return fs.conf.Paths
}

func ensureDir(dir string) error {
	return xe.Wrap(os.MkdirAll(dir, os.FileMode(0o755)))
}

// ensured returns path after creating its parent directory.
func ensured(path string) (string, error) {
	if err := ensureDir(filepath.Dir(path)); err != nil {
		return "", err
	}
	return path, nil
}

func (fs *FileSelector) allFiles(ctx context.Context, dir, ext string) ([]database.File, error) {
	files, err := fs.db.Files(ctx, database.Query{
		Directory: dir,
		Extension: ext,
		Protocols: fs.conf.Scope,
		Options:   fs.conf.Options.AllFiles,
	})
	return files, xe.Wrap(err)
}

// OriginalImageList lists images to be preprocessed.
func (fs *FileSelector) OriginalImageList(ctx context.Context) ([]database.File, error) {
	return fs.allFiles(ctx, fs.conf.OriginalDirectory, fs.conf.OriginalExtension)
}

// EyePositionList lists annotation files aligned with OriginalImageList.
//
// Without an annotation directory, it is empty.
func (fs *FileSelector) EyePositionList(ctx context.Context) ([]database.File, error) {
	if fs.conf.AnnotationDirectory == "" {
		return []database.File{}, nil
	}
	return fs.allFiles(ctx, fs.conf.AnnotationDirectory, fs.conf.AnnotationExtension)
}

func (fs *FileSelector) PreprocessedImageList(ctx context.Context) ([]database.File, error) {
	if err := ensureDir(fs.conf.Paths.Preprocessed); err != nil {
		return nil, err
	}
	return fs.allFiles(ctx, fs.conf.Paths.Preprocessed, experiment.ImageExtension)
}

func (fs *FileSelector) FeatureList(ctx context.Context) ([]database.File, error) {
	if err := ensureDir(fs.conf.Paths.Features); err != nil {
		return nil, err
	}
	return fs.allFiles(ctx, fs.conf.Paths.Features, experiment.FeatureExtension)
}

func (fs *FileSelector) ProjectedList(ctx context.Context) ([]database.File, error) {
	if err := ensureDir(fs.conf.Paths.Projected); err != nil {
		return nil, err
	}
	return fs.allFiles(ctx, fs.conf.Paths.Projected, experiment.FeatureExtension)
}

// stage returns the directory, extension and world options of a stage.
func (fs *FileSelector) stage(stage Stage) (string, string, database.Options, error) {
	switch stage {
	case Preprocessed:
		return fs.conf.Paths.Preprocessed, experiment.ImageExtension, fs.conf.Options.WorldExtractor, nil
	case Features:
		return fs.conf.Paths.Features, experiment.FeatureExtension, fs.conf.Options.WorldProjector, nil
	case Projected:
		return fs.conf.Paths.Projected, experiment.FeatureExtension, fs.conf.Options.WorldEnroler, nil
	default:
		return "", "", nil, xe.Configuration("unknown stage for training files: %s", stage)
	}
}

func (fs *FileSelector) training(ctx context.Context, stage Stage, modelIDs []string) ([]database.File, error) {
	dir, ext, opts, err := fs.stage(stage)
	if err != nil {
		return nil, err
	}
	files, err := fs.db.Files(ctx, database.Query{
		Directory: dir,
		Extension: ext,
		Protocols: fs.conf.Scope,
		Groups:    []string{database.World},
		ModelIDs:  modelIDs,
		Options:   opts,
	})
	return files, xe.Wrap(err)
}

// TrainingImageList lists preprocessed world images to train the extractor with.
func (fs *FileSelector) TrainingImageList(ctx context.Context) ([]database.File, error) {
	return fs.training(ctx, Preprocessed, nil)
}

// TrainingFeatureList lists world features to train the projector with.
func (fs *FileSelector) TrainingFeatureList(ctx context.Context) ([]database.File, error) {
	return fs.training(ctx, Features, nil)
}

// TrainingModelIDs returns world identities, sorted.
func (fs *FileSelector) TrainingModelIDs(ctx context.Context) ([]string, error) {
	ids, err := fs.db.Models(ctx, database.ModelQuery{
		Protocols: fs.conf.Scope,
		Groups:    []string{database.World},
	})
	if err != nil {
		return nil, xe.Wrap(err)
	}
	return database.SortedIDs(ids), nil
}

// TrainingFilesOf lists world files of one identity in the stage directory.
func (fs *FileSelector) TrainingFilesOf(ctx context.Context, stage Stage, modelID string) ([]database.File, error) {
	return fs.training(ctx, stage, []string{modelID})
}

// TrainingFeatureListByModels maps world identities to their files in the stage directory.
func (fs *FileSelector) TrainingFeatureListByModels(ctx context.Context, stage Stage) (map[string][]database.File, error) {
	return fs.lister.ByModels(ctx, fs, stage)
}

func (fs *FileSelector) ExtractorFile() (string, error) {
	return ensured(fs.conf.Paths.ExtractorFile)
}

func (fs *FileSelector) ProjectorFile() (string, error) {
	return ensured(fs.conf.Paths.ProjectorFile)
}

func (fs *FileSelector) EnrolerFile() (string, error) {
	return ensured(fs.conf.Paths.EnrolerFile)
}

func (fs *FileSelector) protocols() []string {
	return []string{fs.conf.Protocol}
}

// ModelIDs returns models of the group, sorted.
func (fs *FileSelector) ModelIDs(ctx context.Context, group string) ([]string, error) {
	ids, err := fs.db.Models(ctx, database.ModelQuery{Protocols: fs.protocols(), Groups: []string{group}})
	if err != nil {
		return nil, xe.Wrap(err)
	}
	return database.SortedIDs(ids), nil
}

// TModelIDs returns T-norm models of the group, sorted.
func (fs *FileSelector) TModelIDs(ctx context.Context, group string) ([]string, error) {
	ids, err := fs.db.TModels(ctx, database.ModelQuery{Protocols: fs.protocols(), Groups: []string{group}})
	if err != nil {
		return nil, xe.Wrap(err)
	}
	return database.SortedIDs(ids), nil
}

func (fs *FileSelector) featureDir(useProjected bool) string {
	if useProjected {
		return fs.conf.Paths.Projected
	}
	return fs.conf.Paths.Features
}

// EnrolFiles lists features to enrol a model with.
func (fs *FileSelector) EnrolFiles(ctx context.Context, modelID, group string, useProjected bool) ([]database.File, error) {
	files, err := fs.db.Files(ctx, database.Query{
		Directory: fs.featureDir(useProjected),
		Extension: experiment.FeatureExtension,
		Protocols: fs.protocols(),
		Groups:    []string{group},
		Purposes:  []string{database.PurposeEnrol},
		ModelIDs:  []string{modelID},
	})
	return files, xe.Wrap(err)
}

// TEnrolFiles lists features to enrol a T-norm model with.
func (fs *FileSelector) TEnrolFiles(ctx context.Context, modelID, group string, useProjected bool) ([]database.File, error) {
	files, err := fs.db.TFiles(ctx, database.Query{
		Directory: fs.featureDir(useProjected),
		Extension: experiment.FeatureExtension,
		Protocols: fs.protocols(),
		Groups:    []string{group},
		ModelIDs:  []string{modelID},
	})
	return files, xe.Wrap(err)
}

func (fs *FileSelector) ModelFile(modelID, group string) (string, error) {
	return ensured(filepath.Join(fs.conf.Paths.Models, group, modelID+experiment.FeatureExtension))
}

func (fs *FileSelector) TModelFile(modelID, group string) (string, error) {
	return ensured(filepath.Join(fs.conf.Paths.TModels, group, modelID+experiment.FeatureExtension))
}

func (fs *FileSelector) probes(ctx context.Context, group string, useProjected bool, modelIDs []string) ([]database.File, error) {
	files, err := fs.db.Objects(ctx, database.Query{
		Directory: fs.featureDir(useProjected),
		Extension: experiment.FeatureExtension,
		Protocols: fs.protocols(),
		Groups:    []string{group},
		Purposes:  []string{database.PurposeProbe},
		ModelIDs:  modelIDs,
	})
	return files, xe.Wrap(err)
}

func (fs *FileSelector) zprobes(ctx context.Context, group string, useProjected bool, modelIDs []string) ([]database.File, error) {
	files, err := fs.db.ZObjects(ctx, database.Query{
		Directory: fs.featureDir(useProjected),
		Extension: experiment.FeatureExtension,
		Protocols: fs.protocols(),
		Groups:    []string{group},
		ModelIDs:  modelIDs,
	})
	return files, xe.Wrap(err)
}

// ProbeFiles lists every probe of the group.
func (fs *FileSelector) ProbeFiles(ctx context.Context, group string, useProjected bool) ([]database.File, error) {
	return fs.probes(ctx, group, useProjected, nil)
}

// ZProbeFiles lists every Z-norm probe of the group.
func (fs *FileSelector) ZProbeFiles(ctx context.Context, group string, useProjected bool) ([]database.File, error) {
	return fs.zprobes(ctx, group, useProjected, nil)
}

// ProbeFilesForModel lists probes to be compared with the model.
func (fs *FileSelector) ProbeFilesForModel(ctx context.Context, modelID, group string, useProjected bool) ([]database.File, error) {
	return fs.probes(ctx, group, useProjected, []string{modelID})
}

// ZProbeFilesForModel lists Z-norm probes to be compared with the model.
func (fs *FileSelector) ZProbeFilesForModel(ctx context.Context, modelID, group string, useProjected bool) ([]database.File, error) {
	return fs.zprobes(ctx, group, useProjected, []string{modelID})
}
