package executor

import (
	"fmt"
	"slices"

	"github.com/pombredanne/facereclib/pkg/configs/experiment"
)

// Mode tells how protocols are trained.
type Mode string

const (
	// The baseline type and one type per protocol are trained, each on its
	// own world files. Every protocol is enrolled and scored with the baseline.
	Separate Mode = "separate"

	// One baseline type is trained on world files of every protocol.
	Together Mode = "together"
)

// AsMode reads a mode. An empty string is Separate.
func AsMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case "":
		return Separate, nil
	case Separate, Together:
		return m, nil
	}
	return "", fmt.Errorf("unknown training mode: %q (together or separate)", s)
}

// Resolution is the set of types of an experiment and what they are made of.
type Resolution struct {
	// types to be trained, the baseline first.
	Types []string

	// protocol -> type whose artifacts enrol and score it.
	TypeOf map[string]string

	// type -> options of its file queries.
	Options map[string]experiment.StageOptions

	// type -> protocols of files it is trained and extracted with.
	Scope map[string][]string
}

// Enrols tells whether some protocol is enrolled and scored with typ.
func (r Resolution) Enrols(typ string) bool {
	for _, t := range r.TypeOf {
		if t == typ {
			return true
		}
	}
	return false
}

// without makes the protocol typ a part of the baseline type. The
// baseline itself is never dropped.
func (r Resolution) without(typ string) Resolution {
	i := slices.Index(r.Types, typ)
	if i <= 0 {
		return r
	}
	r.Types = slices.Delete(slices.Clone(r.Types), i, i+1)
	delete(r.Options, typ)
	delete(r.Scope, typ)
	return r
}

// ResolveTypes decides types of an experiment.
//
// base is applied to every type. keywords are options per type or protocol.
// In Together mode, the baseline merges keywords of the baseline and every
// protocol, in this order. Arguments are not modified.
func ResolveTypes(
	mode Mode, baseline string, protocols []string,
	base experiment.StageOptions, keywords map[string]experiment.StageOptions,
) Resolution {
	res := Resolution{
		Types:   []string{baseline},
		TypeOf:  map[string]string{},
		Options: map[string]experiment.StageOptions{},
		Scope:   map[string][]string{baseline: slices.Clone(protocols)},
	}

	baseOpts := experiment.MergeStageOptions(base, keywords[baseline])
	for _, p := range protocols {
		res.TypeOf[p] = baseline
		if mode == Together {
			baseOpts = experiment.MergeStageOptions(baseOpts, keywords[p])
			continue
		}
		if p == baseline || slices.Contains(res.Types, p) {
			continue
		}
		res.Types = append(res.Types, p)
		res.Options[p] = experiment.MergeStageOptions(base, keywords[p])
		res.Scope[p] = []string{p}
	}
	res.Options[baseline] = baseOpts
	return res
}
