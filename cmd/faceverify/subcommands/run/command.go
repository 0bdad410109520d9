package run

import (
	"context"
	"fmt"
	"os"

	"github.com/labstack/gommon/log"
	"github.com/pombredanne/facereclib/cmd/faceverify/subcommands/common"
	"github.com/pombredanne/facereclib/pkg/domain"
	"github.com/pombredanne/facereclib/pkg/executor"
	"github.com/pombredanne/facereclib/pkg/logger"
	"github.com/pombredanne/facereclib/pkg/utils/args"
	"github.com/youta-t/flarc"
)

type Flag struct {
	Config    string     `flag:"config" alias:"c" metavar:"FILE" help:"Experiment configuration (yaml)."`
	Protocols *args.List `flag:"protocols" alias:"p" metavar:"PROTOCOL,..." help:"Protocols to be evaluated. Repeatable. Default: the protocol of the database."`
	Groups    *args.List `flag:"groups" alias:"g" metavar:"dev|eval,..." help:"Groups to be enrolled and scored. Repeatable. Default: dev,eval"`

	SkipPreprocessing     bool `flag:"skip-preprocessing" help:"Skip preprocessing of original images."`
	SkipExtractorTraining bool `flag:"skip-feature-extraction-training" help:"Skip training of the feature extractor."`
	SkipExtraction        bool `flag:"skip-feature-extraction" help:"Skip feature extraction."`
	SkipProjectorTraining bool `flag:"skip-projection-training" help:"Skip training of the projector."`
	SkipProjection        bool `flag:"skip-projection" help:"Skip projection of features."`
	SkipEnrolerTraining   bool `flag:"skip-enroler-training" help:"Skip training of the enroler."`
	SkipEnrolment         bool `flag:"skip-model-enrolment" help:"Skip enrolment of models."`
	SkipScores            bool `flag:"skip-score-computation" help:"Skip computation of scores and ZT-norm."`
	SkipConcatenation     bool `flag:"skip-concatenation" help:"Skip concatenation of score files."`

	Force         bool   `flag:"force" alias:"f" help:"Recompute files which exist already."`
	NoZTNorm      bool   `flag:"no-zt-norm" help:"Compute raw scores only, without T-models and ZT-norm."`
	PreloadProbes bool   `flag:"preload-probes" help:"Read every probe before scoring, instead of one by one."`
	Mode          string `flag:"train-on-specific-protocols" metavar:"separate|together" help:"Train one type per protocol (separate), or one type with every protocol (together)."`

	ExecuteSubTask bool                        `flag:"execute-sub-task" help:"Run one stage given by --stage and the flags below, instead of every stage."`
	Stage          string                      `flag:"stage" metavar:"STAGE" help:"Stage of the sub task: preprocess|train-extractor|extract|train-projector|project|train-enroler|enrol|score|zt-norm|concatenate"`
	Type           string                      `flag:"type" metavar:"TYPE" help:"Type whose artifacts the sub task produces. Default: the baseline."`
	Protocol       string                      `flag:"protocol" metavar:"PROTOCOL" help:"Protocol of the sub task. Default: the first protocol."`
	Group          string                      `flag:"group" metavar:"dev|eval" help:"Group of the sub task. Default: every group."`
	ModelType      string                      `flag:"model-type" metavar:"N|T" help:"Model type of an enrolment sub task. Default: every type."`
	ScoreType      string                      `flag:"score-type" metavar:"A|B|C|D" help:"Score type of a scoring sub task. Default: every type."`
	Range          *args.Adapter[domain.Range] `flag:"range" metavar:"BEGIN:END" help:"Slice of the list the sub task processes. Default: the whole list."`

	LogLevel string `flag:"loglevel" metavar:"debug|info|warn|error|off" help:"Log level. Default: $FACEVERIFY_LOG_LEVEL or info."`
}

func (f Flag) experiment() common.Experiment {
	return common.Experiment{
		Protocols: f.Protocols.Values(),
		Groups:    f.Groups.Values(),
		Mode:      f.Mode,
		Skip: executor.Skip{
			Preprocessing:     f.SkipPreprocessing,
			ExtractorTraining: f.SkipExtractorTraining,
			Extraction:        f.SkipExtraction,
			ProjectorTraining: f.SkipProjectorTraining,
			Projection:        f.SkipProjection,
			EnrolerTraining:   f.SkipEnrolerTraining,
			Enrolment:         f.SkipEnrolment,
			Scores:            f.SkipScores,
			Concatenation:     f.SkipConcatenation,
		},
		Force:         f.Force,
		NoZTNorm:      f.NoZTNorm,
		PreloadProbes: f.PreloadProbes,
	}
}

func (f Flag) stage() common.StageFlags {
	sf := common.StageFlags{
		Stage:     f.Stage,
		Type:      f.Type,
		Protocol:  f.Protocol,
		Group:     f.Group,
		ModelType: f.ModelType,
		ScoreType: f.ScoreType,
	}
	if f.Range.IsSet() {
		r := f.Range.Value()
		sf.Range = &r
	}
	return sf
}

// DefaultFlag is the flags before the command line is parsed.
func DefaultFlag() Flag {
	return Flag{
		Config:    os.Getenv("FACEVERIFY_CONFIG"),
		Protocols: args.NewList(),
		Groups:    args.NewList(),
		Mode:      string(executor.Separate),
		Range:     args.Parser(domain.ParseRange),
	}
}

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Run a face verification experiment on this machine.",
		DefaultFlag(),
		flarc.Args{},
		func(ctx context.Context, cl flarc.Commandline[Flag], _ []any) error {
			flags := cl.Flags()
			l := common.Logger("faceverify", flags.LogLevel)
			return Task(ctx, l, flags)
		},
		flarc.WithDescription(`
Run a face verification experiment on this machine.

Every stage is run one after another: preprocessing, training and
extraction of features, projection, enrolment, scoring, ZT-norm and
concatenation of scores. Files which exist already are not recomputed
unless --force is given.

With --execute-sub-task, only one stage (or one slice of it) is run.
This is how a part of an experiment is redone by hand.

Example
-------

Run an experiment for protocols "left" and "right", dev group only:

	{{ .Command }} --config exp.yaml --protocols left,right --groups dev

Recompute the C scores of models 0 to 10 of protocol "left":

	{{ .Command }} --config exp.yaml --execute-sub-task --stage score \
		--protocol left --group dev --score-type C --range 0:10 --force
`),
	)
}

// Task runs the experiment, or a stage of it.
func Task(ctx context.Context, l *log.Logger, flags Flag) error {
	spec, err := flags.experiment().Spec()
	if err != nil {
		return err
	}

	var sc *domain.StageContext
	if flags.ExecuteSubTask {
		// a sub task needs no original images unless it preprocesses.
		s, err := flags.stage().StageContext(spec)
		if err != nil {
			return err
		}
		spec.Skip.Preprocessing = s.Stage != domain.Preprocess
		sc = &s
	}

	conf, err := common.LoadConfig(flags.Config)
	if err != nil {
		return err
	}
	db, closer, err := common.OpenDatabase(ctx, conf.Database())
	if err != nil {
		return err
	}
	defer closer()

	e, err := executor.New(conf, spec, db, logger.WithPrefix(l, conf.Name()))
	if err != nil {
		return err
	}
	res := e.Resolution()
	l.Infof("experiment %s: types %v", conf.Name(), res.Types)

	if sc != nil {
		if err := e.RunStage(ctx, *sc); err != nil {
			return fmt.Errorf("sub task failed: %w", err)
		}
		return nil
	}
	return e.Execute(ctx)
}
