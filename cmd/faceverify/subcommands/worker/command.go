package worker

import (
	"context"
	"os"

	"github.com/labstack/gommon/log"
	"github.com/pombredanne/facereclib/cmd/faceverify/subcommands/common"
	xe "github.com/pombredanne/facereclib/pkg/errors"
	"github.com/pombredanne/facereclib/pkg/executor"
	"github.com/pombredanne/facereclib/pkg/grid/token"
	"github.com/pombredanne/facereclib/pkg/grid/worker"
	"github.com/pombredanne/facereclib/pkg/logger"
	"github.com/youta-t/flarc"
)

type Flag struct {
	Config   string `flag:"config" alias:"c" metavar:"FILE" help:"Experiment configuration (yaml)."`
	TokenEnv string `flag:"token-env" metavar:"ENVVAR" help:"Environment variable holding the job token."`
	LogLevel string `flag:"loglevel" metavar:"debug|info|warn|error|off" help:"Log level. Default: $FACEVERIFY_LOG_LEVEL or info."`
}

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Run a grid job. This is started by the dispatcher.",
		Flag{
			Config:   os.Getenv("FACEVERIFY_CONFIG"),
			TokenEnv: worker.TokenEnv,
		},
		flarc.Args{},
		func(ctx context.Context, cl flarc.Commandline[Flag], _ []any) error {
			flags := cl.Flags()
			l := common.Logger("worker", flags.LogLevel)
			return Task(ctx, l, flags, os.Getenv)
		},
	)
}

// Task verifies the job token and runs the stage in it.
//
// The token should be signed with the key in the environment variable
// named by grid.signingKeyEnv of the config.
func Task(ctx context.Context, l *log.Logger, flags Flag, getenv func(string) string) error {
	conf, err := common.LoadConfig(flags.Config)
	if err != nil {
		return err
	}

	keyEnv := conf.Grid().SigningKeyEnv()
	if keyEnv == "" {
		return xe.Configuration("grid.signingKeyEnv is required to run jobs")
	}
	key, err := token.New([]byte(getenv(keyEnv)), 0)
	if err != nil {
		return err
	}
	tok := getenv(flags.TokenEnv)
	if tok == "" {
		return xe.Configuration("no job token in $%s", flags.TokenEnv)
	}
	id, sc, err := key.Verify(tok)
	if err != nil {
		return err
	}

	l = logger.WithPrefix(l, string(id))
	l.Infof("job %s: %s", id, sc)

	db, closer, err := common.OpenDatabase(ctx, conf.Database())
	if err != nil {
		return err
	}
	defer closer()

	e, err := executor.New(conf, executor.ForStage(sc), db, l)
	if err != nil {
		return err
	}
	if err := e.RunStage(ctx, sc); err != nil {
		l.Errorf("job %s failed: %s", id, err)
		return err
	}
	l.Infof("job %s is done", id)
	return nil
}
