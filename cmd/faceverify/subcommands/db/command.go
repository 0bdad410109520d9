// Package db manages postgres databases of experiments: the biometric
// database and the job queue.
package db

import (
	"context"
	"os"
	"slices"

	"github.com/labstack/gommon/log"
	"github.com/pombredanne/facereclib/cmd/faceverify/subcommands/common"
	"github.com/pombredanne/facereclib/pkg/configs/experiment"
	"github.com/pombredanne/facereclib/pkg/database/filelist"
	"github.com/pombredanne/facereclib/pkg/database/postgres"
	"github.com/pombredanne/facereclib/pkg/db/postgres/schema"
	xe "github.com/pombredanne/facereclib/pkg/errors"
	"github.com/pombredanne/facereclib/pkg/utils/try"
	"github.com/youta-t/flarc"
)

func New() (flarc.Command, error) {
	upgrade, err := NewUpgrade()
	if err != nil {
		return nil, err
	}
	imp, err := NewImport()
	if err != nil {
		return nil, err
	}
	return flarc.NewCommandGroup(
		"Manage postgres databases of experiments.",
		struct{}{},
		flarc.WithSubcommand("upgrade", upgrade),
		flarc.WithSubcommand("import", imp),
	)
}

type Flag struct {
	Config   string `flag:"config" alias:"c" metavar:"FILE" help:"Experiment configuration (yaml)."`
	URL      string `flag:"url" metavar:"postgres://..." help:"Database to be used instead of ones in the config."`
	LogLevel string `flag:"loglevel" metavar:"debug|info|warn|error|off" help:"Log level. Default: $FACEVERIFY_LOG_LEVEL or info."`
}

func defaultFlag() Flag {
	return Flag{Config: os.Getenv("FACEVERIFY_CONFIG")}
}

// Targets are databases of an experiment: the --url one if given,
// otherwise the postgres database and the queue database of the config.
func Targets(flags Flag) ([]string, error) {
	if flags.URL != "" {
		return []string{flags.URL}, nil
	}
	conf, err := common.LoadConfig(flags.Config)
	if err != nil {
		return nil, err
	}

	urls := []string{}
	if dbconf := conf.Database(); dbconf.Kind() == experiment.Postgres {
		urls = append(urls, dbconf.URL())
	}
	if q := conf.Grid().QueueDatabase(); q != "" && !slices.Contains(urls, q) {
		urls = append(urls, q)
	}
	if len(urls) == 0 {
		return nil, xe.Configuration("the experiment uses no postgres database")
	}
	return urls, nil
}

func NewUpgrade() (flarc.Command, error) {
	return flarc.NewCommand(
		"Upgrade schemas of postgres databases to the one of this binary.",
		defaultFlag(),
		flarc.Args{},
		func(ctx context.Context, cl flarc.Commandline[Flag], _ []any) error {
			flags := cl.Flags()
			l := common.Logger("db", flags.LogLevel)
			urls, err := Targets(flags)
			if err != nil {
				return err
			}
			for _, url := range urls {
				if err := Upgrade(ctx, l, url); err != nil {
					return err
				}
			}
			return nil
		},
	)
}

// Upgrade applies the schema built into this binary to the database at url.
func Upgrade(ctx context.Context, l *log.Logger, url string) error {
	p, err := common.Connect(ctx, url)
	if err != nil {
		return err
	}
	defer p.Close()

	s := schema.New(p, schema.Repository())
	before, err := s.Version(ctx)
	if err != nil {
		return err
	}
	if err := s.Upgrade(ctx); err != nil {
		return err
	}
	after := try.To(s.Latest()).OrDefault(before)
	l.Infof("schema version: %d -> %d", before, after)
	return nil
}

const ARG_FILELIST = "FILELIST"

func NewImport() (flarc.Command, error) {
	return flarc.NewCommand(
		"Import a file list into the postgres database of an experiment.",
		defaultFlag(),
		flarc.Args{
			{
				Name: ARG_FILELIST, Required: true,
				Help: "File list (yaml) to be imported.",
			},
		},
		func(ctx context.Context, cl flarc.Commandline[Flag], _ []any) error {
			flags := cl.Flags()
			l := common.Logger("db", flags.LogLevel)
			return Import(ctx, l, flags, cl.Args()[ARG_FILELIST][0])
		},
		flarc.WithDescription(`
Import a file list into the postgres database of an experiment.

Files with ids in the database are replaced. The database of the config
(database.url) is used unless --url is given. Run "db upgrade" first.
`),
	)
}

// Import loads the file list at path into the biometric database.
func Import(ctx context.Context, l *log.Logger, flags Flag, path string) error {
	list, err := filelist.Load(path)
	if err != nil {
		return err
	}

	url := flags.URL
	if url == "" {
		conf, err := common.LoadConfig(flags.Config)
		if err != nil {
			return err
		}
		if conf.Database().Kind() != experiment.Postgres {
			return xe.Configuration("database.kind should be %s to import file lists", experiment.Postgres)
		}
		url = conf.Database().URL()
	}

	p, err := common.Connect(ctx, url)
	if err != nil {
		return err
	}
	defer p.Close()

	entries := list.Entries()
	if err := postgres.Import(ctx, p, entries); err != nil {
		return err
	}
	l.Infof("%d files of %s are imported", len(entries), list.Name())
	return nil
}
