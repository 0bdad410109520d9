package submit

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/labstack/gommon/log"
	"github.com/pombredanne/facereclib/cmd/faceverify/subcommands/common"
	"github.com/pombredanne/facereclib/pkg/configs/experiment"
	"github.com/pombredanne/facereclib/pkg/database"
	xe "github.com/pombredanne/facereclib/pkg/errors"
	"github.com/pombredanne/facereclib/pkg/executor"
	"github.com/pombredanne/facereclib/pkg/grid"
	"github.com/pombredanne/facereclib/pkg/grid/postgres"
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

	After *args.List `flag:"after" metavar:"JOB_ID,..." help:"Jobs which should be done before the first jobs start. Repeatable."`

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

func DefaultFlag() Flag {
	return Flag{
		Config:    os.Getenv("FACEVERIFY_CONFIG"),
		Protocols: args.NewList(),
		Groups:    args.NewList(),
		Mode:      string(executor.Separate),
		After:     args.NewList(),
	}
}

// QueueOpener opens the job queue of an experiment.
//
// Call the returned func when the queue is not used any more.
type QueueOpener func(ctx context.Context, conf *experiment.ExperimentConfig) (grid.Queue, func(), error)

// DatabaseOpener opens the biometric database of an experiment.
type DatabaseOpener func(ctx context.Context, dbconf *experiment.DatabaseConfig) (database.Database, func(), error)

type Option struct {
	openQueue    QueueOpener
	openDatabase DatabaseOpener
}

func WithQueue(open QueueOpener) func(*Option) *Option {
	return func(o *Option) *Option {
		o.openQueue = open
		return o
	}
}

func WithDatabase(open DatabaseOpener) func(*Option) *Option {
	return func(o *Option) *Option {
		o.openDatabase = open
		return o
	}
}

// OpenPostgresQueue opens the queue at grid.queueDatabase of the config.
func OpenPostgresQueue(ctx context.Context, conf *experiment.ExperimentConfig) (grid.Queue, func(), error) {
	url := conf.Grid().QueueDatabase()
	if url == "" {
		return nil, nil, xe.Configuration("grid.queueDatabase is required to submit jobs")
	}
	p, err := common.Connect(ctx, url)
	if err != nil {
		return nil, nil, err
	}
	return postgres.New(p), p.Close, nil
}

func New(options ...func(*Option) *Option) (flarc.Command, error) {
	option := &Option{
		openQueue:    OpenPostgresQueue,
		openDatabase: common.OpenDatabase,
	}
	for _, opt := range options {
		option = opt(option)
	}

	return flarc.NewCommand(
		"Submit a face verification experiment to the grid job queue.",
		DefaultFlag(),
		flarc.Args{},
		func(ctx context.Context, cl flarc.Commandline[Flag], _ []any) error {
			flags := cl.Flags()
			l := common.Logger("faceverify", flags.LogLevel)
			return Task(ctx, l, option, flags, cl.Stdout())
		},
		flarc.WithDescription(`
Submit a face verification experiment to the grid job queue.

Each stage becomes one or more jobs, split by chunk sizes of the grid
config. Jobs wait for jobs producing what they read. The dispatcher
starts them in workers.

Ids of submitted jobs are written to stdout as json, keyed by names like
"preprocessing", "<type>_feature_extraction" or "<protocol>_score_<group>_A".
`),
	)
}

// Task submits the experiment and writes ids of jobs to out.
func Task(ctx context.Context, l *log.Logger, option *Option, flags Flag, out io.Writer) error {
	spec, err := flags.experiment().Spec()
	if err != nil {
		return err
	}
	conf, err := common.LoadConfig(flags.Config)
	if err != nil {
		return err
	}

	db, closeDB, err := option.openDatabase(ctx, conf.Database())
	if err != nil {
		return err
	}
	defer closeDB()

	queue, closeQueue, err := option.openQueue(ctx, conf)
	if err != nil {
		return err
	}
	defer closeQueue()

	e, err := executor.New(conf, spec, db, logger.WithPrefix(l, conf.Name()))
	if err != nil {
		return err
	}

	after := []grid.JobID{}
	for _, id := range flags.After.Values() {
		after = append(after, grid.JobID(id))
	}
	ids, err := e.Submit(ctx, queue, after)
	if err != nil {
		return err
	}

	total := 0
	for _, v := range ids {
		total += len(v)
	}
	l.Infof("experiment %s: %d jobs are submitted", conf.Name(), total)

	enc := json.NewEncoder(out)
	enc.SetIndent("", "    ")
	return enc.Encode(ids)
}
