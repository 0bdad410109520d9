// Package common has what subcommands of faceverify share: configuration,
// databases and loggers.
package common

import (
	"context"
	"fmt"

	"github.com/labstack/gommon/log"
	"github.com/pombredanne/facereclib/pkg/configs/experiment"
	"github.com/pombredanne/facereclib/pkg/database"
	"github.com/pombredanne/facereclib/pkg/database/filelist"
	"github.com/pombredanne/facereclib/pkg/database/postgres"
	"github.com/pombredanne/facereclib/pkg/db/postgres/pool"
	"github.com/pombredanne/facereclib/pkg/domain"
	xe "github.com/pombredanne/facereclib/pkg/errors"
	"github.com/pombredanne/facereclib/pkg/executor"
	"github.com/pombredanne/facereclib/pkg/logger"
	"github.com/youta-t/flarc"
)

// Logger returns a logger of the command. An empty level keeps the one
// from the environment.
func Logger(prefix string, level string) *log.Logger {
	l := logger.New(prefix)
	if level == "" {
		return l
	}
	lvl, ok := logger.ParseLevel(level)
	l.SetLevel(lvl)
	if !ok {
		l.Warnf("unknown loglevel: %s. fall back to info", level)
	}
	return l
}

// LoadConfig reads the experiment configuration at path.
func LoadConfig(path string) (*experiment.ExperimentConfig, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: flag --config is required", flarc.ErrUsage)
	}
	return experiment.LoadExperimentConfig(path)
}

// OpenDatabase opens the database of the experiment.
//
// Call the returned func when the database is not used any more.
func OpenDatabase(ctx context.Context, dbconf *experiment.DatabaseConfig) (database.Database, func(), error) {
	switch dbconf.Kind() {
	case experiment.FileList:
		db, err := filelist.Load(dbconf.FileList())
		if err != nil {
			return nil, nil, err
		}
		return db, func() {}, nil
	case experiment.Postgres:
		p, err := Connect(ctx, dbconf.URL())
		if err != nil {
			return nil, nil, err
		}
		return postgres.New(p), p.Close, nil
	}
	return nil, nil, xe.Configuration("unknown database kind: %q", dbconf.Kind())
}

// Connect opens a postgres pool and checks it answers.
func Connect(ctx context.Context, url string) (pool.Pool, error) {
	if url == "" {
		return nil, xe.Configuration("postgres connection string is empty")
	}
	p, err := pool.Connect(ctx, url)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, xe.Wrap(err)
	}
	return p, nil
}

// Experiment is what run and submit share on their command lines.
type Experiment struct {
	Protocols []string
	Groups    []string
	Mode      string

	Skip executor.Skip

	Force         bool
	NoZTNorm      bool
	PreloadProbes bool
}

// Spec validates the experiment and makes an executor.Spec.
func (e Experiment) Spec() (executor.Spec, error) {
	mode, err := executor.AsMode(e.Mode)
	if err != nil {
		return executor.Spec{}, fmt.Errorf("%w: --train-on-specific-protocols: %w", flarc.ErrUsage, err)
	}
	return executor.Spec{
		Protocols:     e.Protocols,
		Groups:        e.Groups,
		Mode:          mode,
		Skip:          e.Skip,
		Force:         e.Force,
		NoZTNorm:      e.NoZTNorm,
		PreloadProbes: e.PreloadProbes,
	}, nil
}

// StageFlags are flags choosing a part of a stage.
type StageFlags struct {
	Stage     string
	Type      string
	Protocol  string
	Group     string
	ModelType string
	ScoreType string
	Range     *domain.Range
}

// StageContext validates flags and makes the context of one stage.
func (f StageFlags) StageContext(spec executor.Spec) (domain.StageContext, error) {
	sc := domain.StageContext{
		Type:          f.Type,
		Protocol:      f.Protocol,
		Group:         f.Group,
		Range:         f.Range,
		Force:         spec.Force,
		PreloadProbes: spec.PreloadProbes,
		ZTNorm:        !spec.NoZTNorm,
	}

	var err error
	if f.Stage == "" {
		return sc, fmt.Errorf("%w: --stage is required with --execute-sub-task", flarc.ErrUsage)
	}
	if sc.Stage, err = domain.AsStageID(f.Stage); err != nil {
		return sc, fmt.Errorf("%w: --stage: %w", flarc.ErrUsage, err)
	}
	if f.ModelType != "" {
		if sc.ModelType, err = domain.AsModelType(f.ModelType); err != nil {
			return sc, fmt.Errorf("%w: --model-type: %w", flarc.ErrUsage, err)
		}
	}
	if f.ScoreType != "" {
		if sc.ScoreType, err = domain.AsScoreType(f.ScoreType); err != nil {
			return sc, fmt.Errorf("%w: --score-type: %w", flarc.ErrUsage, err)
		}
	}
	return sc, nil
}
