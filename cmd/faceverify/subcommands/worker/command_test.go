package worker_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/pombredanne/facereclib/cmd/faceverify/subcommands/worker"
	testctx "github.com/pombredanne/facereclib/internal/testutils/context"
	"github.com/pombredanne/facereclib/internal/testutils/dataset"
	"github.com/pombredanne/facereclib/pkg/configs/experiment"
	"github.com/pombredanne/facereclib/pkg/domain"
	xe "github.com/pombredanne/facereclib/pkg/errors"
	"github.com/pombredanne/facereclib/pkg/grid/token"
	gridworker "github.com/pombredanne/facereclib/pkg/grid/worker"
	"github.com/pombredanne/facereclib/pkg/logger"
	"github.com/pombredanne/facereclib/pkg/utils/try"
)

const keyEnv = "FACEVERIFY_TEST_SIGNING_KEY"

func setup(t *testing.T, grid string) (*dataset.Dataset, worker.Flag) {
	t.Helper()
	data := dataset.New(t)
	content := data.Config("{name: face-crop, params: {width: 16, height: 16}}", "{name: pixels}", "{name: distance}") + grid
	path := filepath.Join(data.Root, "experiment.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return data, worker.Flag{Config: path, TokenEnv: gridworker.TokenEnv}
}

// env makes a getenv with the given variables.
func env(vars map[string]string) func(string) string {
	return func(name string) string { return vars[name] }
}

func TestTask(t *testing.T) {
	ctx, cancel := testctx.WithTest(context.Background(), t)
	defer cancel()

	// appended to the grid section of the dataset config.
	const signing = "  signingKeyEnv: " + keyEnv + "\n"
	secret := "s3cr3t"

	t.Run("it runs the stage in the token", func(t *testing.T) {
		_, flags := setup(t, signing)
		key := try.To(token.New([]byte(secret), 0)).OrFatal(t)
		tok := try.To(key.Sign("job-1", domain.StageContext{Stage: domain.Preprocess})).OrFatal(t)

		err := worker.Task(ctx, logger.Null(), flags, env(map[string]string{
			keyEnv: secret, gridworker.TokenEnv: tok,
		}))
		if err != nil {
			t.Fatal(err)
		}

		conf := try.To(experiment.LoadExperimentConfig(flags.Config)).OrFatal(t)
		preprocessed := experiment.Derive(conf.Directories(), conf.Baseline(), dataset.Protocol).Preprocessed
		entries := try.To(os.ReadDir(preprocessed)).OrFatal(t)
		if len(entries) == 0 {
			t.Errorf("nothing is preprocessed in %s", preprocessed)
		}
	})

	t.Run("it rejects a token signed by another key", func(t *testing.T) {
		_, flags := setup(t, signing)
		key := try.To(token.New([]byte("other"), 0)).OrFatal(t)
		tok := try.To(key.Sign("job-1", domain.StageContext{Stage: domain.Preprocess})).OrFatal(t)

		err := worker.Task(ctx, logger.Null(), flags, env(map[string]string{
			keyEnv: secret, gridworker.TokenEnv: tok,
		}))
		if !errors.Is(err, xe.ErrBadToken) {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("it fails with configuration error without a token", func(t *testing.T) {
		_, flags := setup(t, signing)
		err := worker.Task(ctx, logger.Null(), flags, env(map[string]string{keyEnv: secret}))
		if !errors.Is(err, xe.ErrConfiguration) {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("it fails with configuration error without a signing key", func(t *testing.T) {
		_, flags := setup(t, "")
		err := worker.Task(ctx, logger.Null(), flags, env(map[string]string{}))
		if !errors.Is(err, xe.ErrConfiguration) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}
