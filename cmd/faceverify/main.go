// Command faceverify runs face verification experiments, locally or as jobs
// of a compute grid.
package main

import (
	"context"
	"os"
	"os/signal"

	subdb "github.com/pombredanne/facereclib/cmd/faceverify/subcommands/db"
	subrun "github.com/pombredanne/facereclib/cmd/faceverify/subcommands/run"
	subsubmit "github.com/pombredanne/facereclib/cmd/faceverify/subcommands/submit"
	subver "github.com/pombredanne/facereclib/cmd/faceverify/subcommands/version"
	subworker "github.com/pombredanne/facereclib/cmd/faceverify/subcommands/worker"
	"github.com/pombredanne/facereclib/pkg/logger"
	"github.com/pombredanne/facereclib/pkg/utils/try"
	"github.com/youta-t/flarc"
)

func main() {
	l := logger.New("faceverify")

	ctx, cancel := signal.NotifyContext(
		context.Background(), os.Interrupt, os.Kill,
	)
	defer cancel()

	run := try.To(subrun.New()).OrFatal(l)
	submit := try.To(subsubmit.New()).OrFatal(l)
	worker := try.To(subworker.New()).OrFatal(l)
	db := try.To(subdb.New()).OrFatal(l)
	version := try.To(subver.New()).OrFatal(l)

	faceverify := try.To(
		flarc.NewCommandGroup(
			"Face verification experiments",
			struct{}{},
			flarc.WithSubcommand("run", run),
			flarc.WithSubcommand("submit", submit),
			flarc.WithSubcommand("worker", worker),
			flarc.WithSubcommand("db", db),
			flarc.WithSubcommand("version", version),
		),
	).OrFatal(l)

	os.Exit(flarc.Run(ctx, faceverify, flarc.WithHelp(true)))
}
