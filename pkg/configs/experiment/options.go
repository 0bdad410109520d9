package experiment

import "github.com/pombredanne/facereclib/pkg/database"

// StageOptions are database filters for each kind of file query.
type StageOptions struct {
	// every file which is preprocessed, extracted or projected.
	AllFiles database.Options `yaml:"allFiles,omitempty" json:"allFiles,omitempty"`

	// world files to train the extractor with.
	WorldExtractor database.Options `yaml:"worldExtractor,omitempty" json:"worldExtractor,omitempty"`

	// world files to train the projector with.
	WorldProjector database.Options `yaml:"worldProjector,omitempty" json:"worldProjector,omitempty"`

	// world files to train the enroler with.
	WorldEnroler database.Options `yaml:"worldEnroler,omitempty" json:"worldEnroler,omitempty"`
}

// MergeStageOptions returns a new StageOptions: for each bag and key,
// the values of base followed by the values of overrides.
//
// It never modifies nor aliases its arguments.
func MergeStageOptions(base, overrides StageOptions) StageOptions {
	return StageOptions{
		AllFiles:       database.Merge(base.AllFiles, overrides.AllFiles),
		WorldExtractor: database.Merge(base.WorldExtractor, overrides.WorldExtractor),
		WorldProjector: database.Merge(base.WorldProjector, overrides.WorldProjector),
		WorldEnroler:   database.Merge(base.WorldEnroler, overrides.WorldEnroler),
	}
}

// Clone deeply copies so.
func (so StageOptions) Clone() StageOptions {
	return MergeStageOptions(so, StageOptions{})
}
