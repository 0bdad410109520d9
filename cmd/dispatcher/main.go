// Command dispatcher starts workers for ready jobs of the grid queue,
// records how they end, and serves states of jobs over http.
//
// It restarts itself with the new configuration when the experiment
// config file is modified.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/pombredanne/facereclib/pkg/configs/experiment"
	"github.com/pombredanne/facereclib/pkg/db/postgres/pool"
	xe "github.com/pombredanne/facereclib/pkg/errors"
	"github.com/pombredanne/facereclib/pkg/grid/api"
	"github.com/pombredanne/facereclib/pkg/grid/dispatcher"
	"github.com/pombredanne/facereclib/pkg/grid/k8s"
	"github.com/pombredanne/facereclib/pkg/grid/postgres"
	"github.com/pombredanne/facereclib/pkg/grid/token"
	"github.com/pombredanne/facereclib/pkg/grid/worker"
	"github.com/pombredanne/facereclib/pkg/images"
	"github.com/pombredanne/facereclib/pkg/logger"
	"github.com/pombredanne/facereclib/pkg/utils/filewatch"
	"github.com/pombredanne/facereclib/pkg/utils/kubeutil"
	"github.com/pombredanne/facereclib/pkg/utils/try"
	"github.com/youta-t/flarc"
	"golang.org/x/sync/errgroup"
)

type Flags struct {
	Config     string        `flag:"config" alias:"c" metavar:"FILE" help:"Experiment configuration (yaml). It is watched for changes."`
	Kubeconfig string        `flag:"kubeconfig" metavar:"FILE" help:"kubeconfig. Default: ~/.kube/config, $KUBECONFIG or in-cluster config."`
	Interval   time.Duration `flag:"interval" help:"Interval between dispatching passes."`
	Timeout    time.Duration `flag:"timeout" help:"Time limit of each dispatching pass."`
	Batch      int           `flag:"batch" help:"Jobs started at most in a pass."`
	TokenTTL   time.Duration `flag:"token-ttl" help:"Lifetime of job tokens. 0 means no expiration."`
	Insecure   bool          `flag:"insecure-registry" help:"Resolve the worker image over plain http."`
	LogLevel   string        `flag:"loglevel" metavar:"debug|info|warn|error|off" help:"Log level. Default: $FACEVERIFY_LOG_LEVEL or info."`
}

func main() {
	l := logger.New("dispatcher")
	ctx, cancel := signal.NotifyContext(
		context.Background(), os.Interrupt, os.Kill, syscall.SIGTERM,
	)
	defer cancel()

	cmd := try.To(
		flarc.NewCommand(
			"Dispatch jobs of the grid queue to kubernetes workers.",
			Flags{
				Config:   os.Getenv("FACEVERIFY_CONFIG"),
				Interval: 2 * time.Second,
				Timeout:  30 * time.Second,
				Batch:    10,
				TokenTTL: 24 * time.Hour,
				LogLevel: os.Getenv(logger.EnvLogLevel),
			},
			flarc.Args{},
			func(ctx context.Context, c flarc.Commandline[Flags], _ []any) error {
				flags := c.Flags()
				if flags.Config == "" {
					return fmt.Errorf("%w: flag --config (or envvar FACEVERIFY_CONFIG) is required", flarc.ErrUsage)
				}
				if lvl, ok := logger.ParseLevel(flags.LogLevel); ok {
					l.SetLevel(lvl)
				}
				return Supervise(ctx, l, flags.Config, func(ctx context.Context) error {
					return Serve(ctx, l, flags)
				})
			},
		),
	).OrFatal(l)

	os.Exit(flarc.Run(ctx, cmd))
}

// Supervise runs serve until ctx is done, and runs it again each time
// the file at path is modified.
//
// It returns the error of serve, if any, unless it is caused by a
// modification.
func Supervise(ctx context.Context, l *log.Logger, path string, serve func(context.Context) error) error {
	for {
		wctx, cancel, err := filewatch.UntilModifyContext(ctx, path)
		if err != nil {
			return err
		}

		err = serve(wctx)
		modified := wctx.Err() != nil
		cause := context.Cause(wctx)
		cancel()

		if ctx.Err() != nil {
			return nil
		}
		if !modified {
			return err
		}
		l.Infof("restarting: %s", cause)
	}
}

// Serve runs the dispatcher and the job status api until ctx is done.
func Serve(ctx context.Context, l *log.Logger, flags Flags) error {
	conf, err := experiment.LoadExperimentConfig(flags.Config)
	if err != nil {
		return err
	}
	gconf := conf.Grid()
	kc := gconf.Kubernetes()
	if kc == nil {
		return xe.Configuration("grid.kubernetes is required to dispatch jobs")
	}
	if gconf.QueueDatabase() == "" {
		return xe.Configuration("grid.queueDatabase is required to dispatch jobs")
	}

	key, err := token.New([]byte(os.Getenv(gconf.SigningKeyEnv())), flags.TokenTTL)
	if err != nil {
		return err
	}

	p, err := pool.Connect(ctx, gconf.QueueDatabase())
	if err != nil {
		return xe.Wrap(err)
	}
	defer p.Close()
	queue := postgres.New(p)

	kubeconfig := []string{}
	if flags.Kubeconfig != "" {
		kubeconfig = append(kubeconfig, flags.Kubeconfig)
	}
	clientset, err := kubeutil.ConnectToK8s(kubeconfig...)
	if err != nil {
		return err
	}
	cluster := k8s.AttachCluster(k8s.WrapK8sClient(clientset), kc.Namespace())

	pinopts := []images.Option{}
	if flags.Insecure {
		pinopts = append(pinopts, images.Insecure())
	}
	pinned, err := images.Pin(ctx, kc.Image(), pinopts...)
	if err != nil {
		return err
	}
	l.Infof("worker image: %s (%s)", pinned.Ref, pinned.Requested)
	workers := worker.NewKubernetes(cluster, kc).WithImage(pinned.Ref)

	d := dispatcher.New(queue, key, workers, logger.WithPrefix(l, "loop"), flags.Batch)
	server := api.New(queue, p, flags.LogLevel)
	server.HidePort = true

	eg, ectx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return d.Run(ectx, flags.Interval, flags.Timeout)
	})
	eg.Go(func() error {
		addr := fmt.Sprintf(":%d", gconf.Port())
		l.Infof("job status api: %s", addr)
		if err := server.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-ectx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(sctx)
	})
	return eg.Wait()
}
