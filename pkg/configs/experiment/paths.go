package experiment

import "path/filepath"

const (
	// extension of preprocessed images.
	ImageExtension = ".png"

	// extension of features, models and trained tool files.
	FeatureExtension = ".fvec"

	// extension of per-model score files.
	ScoreExtension = ".txt"
)

// FileNames are names of files and sub directories in the output trees.
type FileNames struct {
	Preprocessed string `yaml:"preprocessed,omitempty"`
	Features     string `yaml:"features,omitempty"`
	Projected    string `yaml:"projected,omitempty"`

	Extractor string `yaml:"extractor,omitempty"`
	Projector string `yaml:"projector,omitempty"`
	Enroler   string `yaml:"enroler,omitempty"`

	Models  string `yaml:"models,omitempty"`
	TModels string `yaml:"tmodels,omitempty"`

	ZTNormA          string `yaml:"ztNormA,omitempty"`
	ZTNormB          string `yaml:"ztNormB,omitempty"`
	ZTNormC          string `yaml:"ztNormC,omitempty"`
	ZTNormD          string `yaml:"ztNormD,omitempty"`
	ZTNormDSameValue string `yaml:"ztNormDSameValue,omitempty"`

	NoNorm string `yaml:"nonorm,omitempty"`
	ZTNorm string `yaml:"ztnorm,omitempty"`
}

// DefaultFileNames returns names used when a config does not set them.
func DefaultFileNames() FileNames {
	return FileNames{
		Preprocessed:     "preprocessed",
		Features:         "features",
		Projected:        "projected",
		Extractor:        "Extractor" + FeatureExtension,
		Projector:        "Projector" + FeatureExtension,
		Enroler:          "Enroler" + FeatureExtension,
		Models:           "models",
		TModels:          "tmodels",
		ZTNormA:          "zt_norm_A",
		ZTNormB:          "zt_norm_B",
		ZTNormC:          "zt_norm_C",
		ZTNormD:          "zt_norm_D",
		ZTNormDSameValue: "zt_norm_D_sameValue",
		NoNorm:           "nonorm",
		ZTNorm:           "ztnorm",
	}
}

// fill empty names with defaults.
func (fn FileNames) withDefaults() FileNames {
	d := DefaultFileNames()
	pick := func(v, def string) string {
		if v == "" {
			return def
		}
		return v
	}
	return FileNames{
		Preprocessed:     pick(fn.Preprocessed, d.Preprocessed),
		Features:         pick(fn.Features, d.Features),
		Projected:        pick(fn.Projected, d.Projected),
		Extractor:        pick(fn.Extractor, d.Extractor),
		Projector:        pick(fn.Projector, d.Projector),
		Enroler:          pick(fn.Enroler, d.Enroler),
		Models:           pick(fn.Models, d.Models),
		TModels:          pick(fn.TModels, d.TModels),
		ZTNormA:          pick(fn.ZTNormA, d.ZTNormA),
		ZTNormB:          pick(fn.ZTNormB, d.ZTNormB),
		ZTNormC:          pick(fn.ZTNormC, d.ZTNormC),
		ZTNormD:          pick(fn.ZTNormD, d.ZTNormD),
		ZTNormDSameValue: pick(fn.ZTNormDSameValue, d.ZTNormDSameValue),
		NoNorm:           pick(fn.NoNorm, d.NoNorm),
		ZTNorm:           pick(fn.ZTNorm, d.ZTNorm),
	}
}

// Directories are roots of the output trees.
type Directories struct {
	// root of intermediate artifacts, sub directory included.
	Temp string

	// root of result files, sub directory included.
	User string

	// directory under Temp and User separating score variants.
	ScoreSubdir string

	Names FileNames
}

// Paths are locations of every stage output for one type and protocol.
type Paths struct {
	// shared by every type.
	Preprocessed string

	Features  string
	Projected string

	ExtractorFile string
	ProjectorFile string
	EnrolerFile   string

	Models  string
	TModels string

	ZTNormA          string
	ZTNormB          string
	ZTNormC          string
	ZTNormD          string
	ZTNormDSameValue string

	ScoresNoNorm string
	ScoresZTNorm string
}

// Derive computes Paths for artifacts trained as typ and scored for protocol.
//
// Training artifacts (features, projections, trained tools) are keyed by
// type; models and scores are keyed by protocol.
func Derive(dirs Directories, typ, protocol string) Paths {
	n := dirs.Names.withDefaults()
	temp := dirs.Temp
	user := dirs.User

	return Paths{
		Preprocessed: filepath.Join(temp, n.Preprocessed),

		Features:  filepath.Join(temp, typ, n.Features),
		Projected: filepath.Join(temp, typ, n.Projected),

		ExtractorFile: filepath.Join(temp, typ, n.Extractor),
		ProjectorFile: filepath.Join(temp, typ, n.Projector),
		EnrolerFile:   filepath.Join(temp, typ, n.Enroler),

		Models:  filepath.Join(temp, protocol, n.Models),
		TModels: filepath.Join(temp, protocol, n.TModels),

		ZTNormA:          filepath.Join(temp, dirs.ScoreSubdir, protocol, n.ZTNormA),
		ZTNormB:          filepath.Join(temp, dirs.ScoreSubdir, protocol, n.ZTNormB),
		ZTNormC:          filepath.Join(temp, dirs.ScoreSubdir, protocol, n.ZTNormC),
		ZTNormD:          filepath.Join(temp, dirs.ScoreSubdir, protocol, n.ZTNormD),
		ZTNormDSameValue: filepath.Join(temp, dirs.ScoreSubdir, protocol, n.ZTNormDSameValue),

		ScoresNoNorm: filepath.Join(user, dirs.ScoreSubdir, protocol, n.NoNorm),
		ScoresZTNorm: filepath.Join(user, dirs.ScoreSubdir, protocol, n.ZTNorm),
	}
}
