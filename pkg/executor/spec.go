package executor

import (
	"slices"

	"github.com/pombredanne/facereclib/pkg/database"
	"github.com/pombredanne/facereclib/pkg/domain"
)

// Skip tells stages not to be run.
type Skip struct {
	Preprocessing     bool
	ExtractorTraining bool
	Extraction        bool
	ProjectorTraining bool
	Projection        bool
	EnrolerTraining   bool
	Enrolment         bool
	Scores            bool
	Concatenation     bool
}

// Spec is what an experiment run does.
//
// New copies it, so an Executor is not affected by later changes.
type Spec struct {
	// protocols to be evaluated. Empty means the protocol of the database config.
	Protocols []string

	// groups to be enrolled and scored. Empty means dev and eval.
	Groups []string

	Mode Mode
	Skip Skip

	Force         bool
	NoZTNorm      bool
	PreloadProbes bool
}

func (s Spec) clone() Spec {
	c := s
	c.Protocols = slices.Clone(s.Protocols)
	c.Groups = slices.Clone(s.Groups)
	if len(c.Groups) == 0 {
		c.Groups = []string{database.Dev, database.Eval}
	}
	if c.Mode == "" {
		c.Mode = Separate
	}
	return c
}

// ForStage is the Spec of the experiment a submitted stage belongs to.
//
// Original images are only required by preprocessing.
func ForStage(sc domain.StageContext) Spec {
	mode := Separate
	if sc.Together {
		mode = Together
	}
	return Spec{
		Protocols:     slices.Clone(sc.Protocols),
		Mode:          mode,
		Skip:          Skip{Preprocessing: sc.Stage != domain.Preprocess},
		Force:         sc.Force,
		NoZTNorm:      !sc.ZTNorm,
		PreloadProbes: sc.PreloadProbes,
	}
}
