package domain

import "fmt"

// StageContext identifies one unit of work: a stage, for a type or protocol,
// maybe restricted to a group, a model/score type and a slice of its input.
//
// It is everything a worker needs besides the experiment configuration,
// and it is what travels in a grid job.
type StageContext struct {
	Stage StageID `json:"stage"`

	// training condition whose artifacts are produced or used.
	Type string `json:"type,omitempty"`

	// protocol for enrolment, scoring and concatenation.
	Protocol string `json:"protocol,omitempty"`

	Group     string    `json:"group,omitempty"`
	ModelType ModelType `json:"modelType,omitempty"`
	ScoreType ScoreType `json:"scoreType,omitempty"`

	// nil means the whole list.
	Range *Range `json:"range,omitempty"`

	Force         bool `json:"force,omitempty"`
	PreloadProbes bool `json:"preloadProbes,omitempty"`
	ZTNorm        bool `json:"ztNorm,omitempty"`

	// protocols of the whole experiment, and whether their types are trained
	// together. A worker rebuilds the experiment from them.
	Protocols []string `json:"protocols,omitempty"`
	Together  bool     `json:"together,omitempty"`
}

func (c StageContext) String() string {
	s := string(c.Stage)
	if c.Type != "" {
		s += " type=" + c.Type
	}
	if c.Protocol != "" {
		s += " protocol=" + c.Protocol
	}
	if c.Group != "" {
		s += " group=" + c.Group
	}
	if c.ModelType != "" {
		s += " model=" + string(c.ModelType)
	}
	if c.ScoreType != "" {
		s += " score=" + string(c.ScoreType)
	}
	if c.Range != nil {
		s += fmt.Sprintf(" range=%s", c.Range)
	}
	return s
}
