// Package executor runs an experiment: locally stage by stage, or as
// jobs of a grid queue.
//
// Both ways end up in RunStage, so their results are identical.
package executor

import (
	"context"
	"errors"
	"os"

	"github.com/labstack/gommon/log"
	"github.com/pombredanne/facereclib/pkg/configs/experiment"
	"github.com/pombredanne/facereclib/pkg/database"
	"github.com/pombredanne/facereclib/pkg/domain"
	xe "github.com/pombredanne/facereclib/pkg/errors"
	"github.com/pombredanne/facereclib/pkg/fileselector"
	"github.com/pombredanne/facereclib/pkg/logger"
	"github.com/pombredanne/facereclib/pkg/toolchain"
	"github.com/pombredanne/facereclib/pkg/tools"
	"github.com/pombredanne/facereclib/pkg/tools/builtin"
)

// unit is a toolchain with the tools it runs.
type unit struct {
	fs        *fileselector.FileSelector
	tc        *toolchain.ToolChain
	extractor tools.Extractor
	scorer    tools.Scorer
}

type Executor struct {
	conf   *experiment.ExperimentConfig
	spec   Spec
	res    Resolution
	logger *log.Logger

	preprocessor tools.Preprocessor

	types     map[string]*unit
	protocols map[string]*unit
}

type Option func(*option)

type option struct {
	registry *tools.Registry
}

// WithRegistry replaces the builtin tool registry.
func WithRegistry(r *tools.Registry) Option {
	return func(o *option) { o.registry = r }
}

// New prepares file selectors, toolchains and tools of every type and protocol.
//
// It fails with xe.ErrConfiguration when tools are unknown or inputs are missing.
func New(
	conf *experiment.ExperimentConfig, spec Spec, db database.Database, l *log.Logger,
	options ...Option,
) (*Executor, error) {
	opt := &option{registry: builtin.Registry()}
	for _, o := range options {
		o(opt)
	}

	spec = spec.clone()
	dbconf := conf.Database()
	if len(spec.Protocols) == 0 {
		spec.Protocols = []string{dbconf.Protocol()}
	}
	if !spec.Skip.Preprocessing {
		if s, err := os.Stat(dbconf.OriginalDirectory()); err != nil || !s.IsDir() {
			return nil, xe.Configuration("original directory is not found: %s", dbconf.OriginalDirectory())
		}
	}

	preprocessor, err := opt.registry.Preprocessor(conf.Preprocessor())
	if err != nil {
		return nil, err
	}

	// the protocol of the database config is the condition of the baseline.
	res := ResolveTypes(spec.Mode, conf.Baseline(), spec.Protocols, dbconf.Options(), conf.Keywords()).
		without(dbconf.Protocol())
	e := &Executor{
		conf: conf, spec: spec, res: res, logger: l,
		preprocessor: preprocessor,
		types:        map[string]*unit{},
		protocols:    map[string]*unit{},
	}

	for _, typ := range res.Types {
		protocol := typ
		if typ == conf.Baseline() {
			protocol = spec.Protocols[0]
		}
		u, err := e.newUnit(db, opt.registry, typ, protocol, nil)
		if err != nil {
			return nil, err
		}
		e.types[typ] = u
	}
	for _, p := range spec.Protocols {
		u, err := e.newUnit(db, opt.registry, res.TypeOf[p], p, e.types[res.TypeOf[p]])
		if err != nil {
			return nil, err
		}
		e.protocols[p] = u
	}
	return e, nil
}

// newUnit builds a unit. With a trained unit, its tools are shared.
func (e *Executor) newUnit(db database.Database, reg *tools.Registry, typ, protocol string, trained *unit) (*unit, error) {
	var extractor tools.Extractor
	var scorer tools.Scorer
	if trained != nil {
		extractor, scorer = trained.extractor, trained.scorer
	} else {
		var err error
		if extractor, err = reg.Extractor(e.conf.Features()); err != nil {
			return nil, err
		}
		if scorer, err = reg.Scorer(e.conf.Tool()); err != nil {
			return nil, err
		}
	}

	dbconf := e.conf.Database()
	fs := fileselector.New(
		&fileselector.Config{
			Type:                typ,
			Protocol:            protocol,
			Scope:               e.res.Scope[typ],
			Options:             e.res.Options[typ],
			OriginalDirectory:   dbconf.OriginalDirectory(),
			OriginalExtension:   dbconf.OriginalExtension(),
			AnnotationDirectory: dbconf.AnnotationDirectory(),
			AnnotationExtension: dbconf.AnnotationExtension(),
			FirstAnnotation:     dbconf.FirstAnnotation(),
			Paths:               experiment.Derive(e.conf.Directories(), typ, protocol),
		},
		db,
		tools.FileSelectorOptions(scorer)...,
	)
	l := logger.WithPrefix(e.logger, typ+"/"+protocol)
	return &unit{fs: fs, tc: toolchain.New(fs, l), extractor: extractor, scorer: scorer}, nil
}

// Resolution returns types of this experiment.
func (e *Executor) Resolution() Resolution {
	return e.res
}

// TypePaths returns where artifacts of a type are.
func (e *Executor) TypePaths(typ string) (experiment.Paths, bool) {
	u, ok := e.types[typ]
	if !ok {
		return experiment.Paths{}, false
	}
	return u.fs.Paths(), true
}

// ProtocolPaths returns where models and scores of a protocol are.
func (e *Executor) ProtocolPaths(protocol string) (experiment.Paths, bool) {
	u, ok := e.protocols[protocol]
	if !ok {
		return experiment.Paths{}, false
	}
	return u.fs.Paths(), true
}

func (e *Executor) baseline() *unit {
	return e.types[e.conf.Baseline()]
}

func (e *Executor) typeUnit(sc domain.StageContext) (*unit, error) {
	if sc.Type == "" {
		return e.baseline(), nil
	}
	u, ok := e.types[sc.Type]
	if !ok {
		return nil, xe.Configuration("unknown type: %q", sc.Type)
	}
	return u, nil
}

func (e *Executor) protocolUnit(sc domain.StageContext) (*unit, error) {
	if sc.Protocol == "" {
		return e.protocols[e.spec.Protocols[0]], nil
	}
	u, ok := e.protocols[sc.Protocol]
	if !ok {
		return nil, xe.Configuration("unknown protocol: %q", sc.Protocol)
	}
	return u, nil
}

func (e *Executor) groupsOf(sc domain.StageContext) []string {
	if sc.Group != "" {
		return []string{sc.Group}
	}
	return e.spec.Groups
}

func modelTypesOf(sc domain.StageContext) []domain.ModelType {
	if sc.ModelType != "" {
		return []domain.ModelType{sc.ModelType}
	}
	if sc.ZTNorm {
		return []domain.ModelType{domain.NormalModel, domain.TNormModel}
	}
	return []domain.ModelType{domain.NormalModel}
}

func scoreTypesOf(sc domain.StageContext) []domain.ScoreType {
	if sc.ScoreType != "" {
		return []domain.ScoreType{sc.ScoreType}
	}
	if sc.ZTNorm {
		return []domain.ScoreType{domain.ScoreA, domain.ScoreB, domain.ScoreC, domain.ScoreD}
	}
	return []domain.ScoreType{domain.ScoreA}
}

// RunStage runs one stage, or its slice when sc has a range.
//
// Training and per-file stages take their type from sc.Type; enrolment,
// scoring, ZT-norm and concatenation take their protocol from sc.Protocol.
// Empty ones mean the baseline type and the first protocol.
func (e *Executor) RunStage(ctx context.Context, sc domain.StageContext) error {
	e.logger.Infof("stage: %s", sc)

	var err error
	switch sc.Stage {
	case domain.Preprocess:
		err = e.baseline().tc.PreprocessImages(ctx, e.preprocessor, sc.Range, sc.Force)
	case domain.TrainExtractor, domain.Extract, domain.TrainProjector, domain.Project, domain.TrainEnroler:
		err = e.runTypeStage(ctx, sc)
	case domain.Enrol, domain.Score, domain.ZTNorm, domain.Concatenate:
		err = e.runProtocolStage(ctx, sc)
	default:
		err = xe.Configuration("unknown stage: %q", sc.Stage)
	}
	return xe.WrapWithNote(sc.String(), err)
}

func (e *Executor) runTypeStage(ctx context.Context, sc domain.StageContext) error {
	u, err := e.typeUnit(sc)
	if err != nil {
		return err
	}
	switch sc.Stage {
	case domain.TrainExtractor:
		return u.tc.TrainExtractor(ctx, u.extractor, sc.Force)
	case domain.Extract:
		return u.tc.ExtractFeatures(ctx, u.extractor, sc.Range, sc.Force)
	case domain.TrainProjector:
		return u.tc.TrainProjector(ctx, u.scorer, sc.Force)
	case domain.Project:
		return u.tc.ProjectFeatures(ctx, u.scorer, sc.Range, sc.Force)
	case domain.TrainEnroler:
		return u.tc.TrainEnroler(ctx, u.scorer, sc.Force)
	}
	return errors.New("not a stage of types: " + string(sc.Stage))
}

func (e *Executor) runProtocolStage(ctx context.Context, sc domain.StageContext) error {
	u, err := e.protocolUnit(sc)
	if err != nil {
		return err
	}
	groups := e.groupsOf(sc)
	switch sc.Stage {
	case domain.Enrol:
		return u.tc.EnrolModels(ctx, u.scorer, groups, modelTypesOf(sc), sc.Range, sc.Force)
	case domain.Score:
		return u.tc.ComputeScores(ctx, u.scorer, groups, scoreTypesOf(sc), sc.Range, sc.Force, sc.PreloadProbes)
	case domain.ZTNorm:
		return u.tc.ZTNorm(ctx, groups, sc.Range, sc.Force)
	case domain.Concatenate:
		return u.tc.Concatenate(ctx, sc.ZTNorm, groups)
	}
	return errors.New("not a stage of protocols: " + string(sc.Stage))
}

// Steps lists stages of a local run in order.
func (e *Executor) Steps() []domain.StageContext {
	s := e.spec
	zt := !s.NoZTNorm
	base := domain.StageContext{Force: s.Force, PreloadProbes: s.PreloadProbes, ZTNorm: zt}
	with := func(stage domain.StageID, f func(*domain.StageContext)) domain.StageContext {
		sc := base
		sc.Stage = stage
		f(&sc)
		return sc
	}

	steps := []domain.StageContext{}
	if !s.Skip.Preprocessing {
		steps = append(steps, with(domain.Preprocess, func(*domain.StageContext) {}))
	}
	perType := []struct {
		skip  bool
		stage domain.StageID
	}{
		{s.Skip.ExtractorTraining, domain.TrainExtractor},
		{s.Skip.Extraction, domain.Extract},
		{s.Skip.ProjectorTraining, domain.TrainProjector},
		{s.Skip.Projection, domain.Project},
		{s.Skip.EnrolerTraining, domain.TrainEnroler},
	}
	for _, st := range perType {
		if st.skip {
			continue
		}
		for _, typ := range e.res.Types {
			// nothing reads enrolers of types no protocol enrols with.
			if st.stage == domain.TrainEnroler && !e.res.Enrols(typ) {
				continue
			}
			steps = append(steps, with(st.stage, func(sc *domain.StageContext) { sc.Type = typ }))
		}
	}

	for _, p := range s.Protocols {
		typ := e.res.TypeOf[p]
		proto := func(stage domain.StageID) domain.StageContext {
			return with(stage, func(sc *domain.StageContext) { sc.Type = typ; sc.Protocol = p })
		}
		if !s.Skip.Enrolment {
			steps = append(steps, proto(domain.Enrol))
		}
		if !s.Skip.Scores {
			steps = append(steps, proto(domain.Score))
			if zt {
				steps = append(steps, proto(domain.ZTNorm))
			}
		}
		if !s.Skip.Concatenation {
			steps = append(steps, proto(domain.Concatenate))
		}
	}
	return steps
}

// Execute runs every stage locally, one after another.
func (e *Executor) Execute(ctx context.Context) error {
	for _, sc := range e.Steps() {
		if err := e.RunStage(ctx, sc); err != nil {
			return err
		}
	}
	return nil
}
