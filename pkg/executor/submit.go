package executor

import (
	"context"
	"fmt"
	"slices"

	"github.com/pombredanne/facereclib/pkg/configs/experiment"
	"github.com/pombredanne/facereclib/pkg/domain"
	xe "github.com/pombredanne/facereclib/pkg/errors"
	"github.com/pombredanne/facereclib/pkg/grid"
	"github.com/pombredanne/facereclib/pkg/tools"
)

// Queues of stages. A queue which is not configured falls back to "default".
const (
	PreprocessingQueue = "preprocessing"
	TrainingQueue      = experiment.TrainingQueue
	ExtractionQueue    = "extraction"
	ProjectionQueue    = "projection"
	EnrolmentQueue     = "enrolment"
	ScoringQueue       = "scoring"
)

type submitter struct {
	queue  grid.Queue
	gconf  *experiment.GridConfig
	jobIDs map[string][]grid.JobID
}

// submit splits a job into chunks of n items, or submits it as is when chunk is 0.
func (s *submitter) submit(
	ctx context.Context, key string, name string, sc domain.StageContext,
	n, chunk int, queue string, deps []grid.JobID,
) ([]grid.JobID, error) {
	qname, qconf := s.gconf.Queue(queue)
	spec := grid.JobSpec{
		Name:    name,
		Context: sc,
		Profile: grid.Profile{Queue: qname, CPU: qconf.CPU, Memory: qconf.Memory},

		Dependencies: slices.Clone(deps),
	}

	specs := []grid.JobSpec{spec}
	if chunk != 0 {
		specs = grid.Partition(spec, n, chunk)
	}

	ids := make([]grid.JobID, 0, len(specs))
	for _, js := range specs {
		id, err := s.queue.Submit(ctx, js)
		if err != nil {
			return nil, xe.WrapWithNote(js.Name, err)
		}
		ids = append(ids, id)
	}
	s.jobIDs[key] = append(s.jobIDs[key], ids...)
	return ids, nil
}

// Submit puts jobs of every stage into queue.
//
// Per-file and per-model stages are split into chunks of the configured
// sizes. A job depends on every job producing what it reads:
//
//	preprocess             <- external
//	training & extraction  <- every earlier job of the type
//	enrol N, T             <- jobs of the type of the protocol
//	score A, B             <- enrol N
//	score C, D             <- enrol T
//	zt-norm                <- score A, B, C, D
//	concatenate            <- score A, zt-norm
//
// It returns ids of submitted jobs by names like "preprocessing",
// "<type>_feature_extraction" or "<protocol>_score_<group>_A".
func (e *Executor) Submit(ctx context.Context, queue grid.Queue, external []grid.JobID) (map[string][]grid.JobID, error) {
	s := &submitter{queue: queue, gconf: e.conf.Grid(), jobIDs: map[string][]grid.JobID{}}
	chunks := s.gconf.Chunks()
	spec := e.spec
	zt := !spec.NoZTNorm
	base := domain.StageContext{
		Force: spec.Force, PreloadProbes: spec.PreloadProbes, ZTNorm: zt,
		Protocols: slices.Clone(spec.Protocols), Together: spec.Mode == Together,
	}

	deps := map[string][]grid.JobID{}
	for _, typ := range e.res.Types {
		deps[typ] = slices.Clone(external)
	}

	if !spec.Skip.Preprocessing {
		files, err := e.baseline().fs.OriginalImageList(ctx)
		if err != nil {
			return nil, err
		}
		sc := base
		sc.Stage = domain.Preprocess
		ids, err := s.submit(
			ctx, "preprocessing", "preprocess", sc,
			len(files), chunks.Images, PreprocessingQueue, external,
		)
		if err != nil {
			return nil, err
		}
		for _, typ := range e.res.Types {
			deps[typ] = append(deps[typ], ids...)
		}
	}

	for _, typ := range e.res.Types {
		u := e.types[typ]
		caps := tools.CapabilitiesOf(u.extractor, u.scorer)
		sc := base
		sc.Type = typ

		type step struct {
			run   bool
			stage domain.StageID
			key   string
			name  string
			queue string
			count func(context.Context) (int, error)
			chunk int
		}
		steps := []step{
			{
				run: !spec.Skip.ExtractorTraining && caps.TrainsExtractor, stage: domain.TrainExtractor,
				key: "extraction_training", name: "f-train", queue: TrainingQueue,
			},
			{
				run: !spec.Skip.Extraction, stage: domain.Extract,
				key: "feature_extraction", name: "f-extraction", queue: ExtractionQueue,
				count: counter(u.fs.PreprocessedImageList), chunk: chunks.Features,
			},
			{
				run:   !spec.Skip.ProjectorTraining && (caps.TrainsProjector || caps.TrainsProjectorByModels),
				stage: domain.TrainProjector, key: "projector_training", name: "p-train", queue: TrainingQueue,
			},
			{
				run: !spec.Skip.Projection && caps.Projects, stage: domain.Project,
				key: "feature_projection", name: "projection", queue: ProjectionQueue,
				count: counter(u.fs.FeatureList), chunk: chunks.Projections,
			},
			{
				run:   !spec.Skip.EnrolerTraining && caps.TrainsEnroler && e.res.Enrols(typ),
				stage: domain.TrainEnroler,
				key:   "enrolment_training", name: "e-train", queue: TrainingQueue,
			},
		}
		for _, st := range steps {
			if !st.run {
				continue
			}
			n := 0
			if st.count != nil {
				var err error
				if n, err = st.count(ctx); err != nil {
					return nil, err
				}
			}
			sc := sc
			sc.Stage = st.stage
			ids, err := s.submit(
				ctx, typ+"_"+st.key, typ+"-"+st.name, sc,
				n, st.chunk, st.queue, deps[typ],
			)
			if err != nil {
				return nil, err
			}
			deps[typ] = append(deps[typ], ids...)
		}
	}

	for _, group := range spec.Groups {
		for _, p := range spec.Protocols {
			if err := e.submitProtocol(ctx, s, base, p, group, deps[e.res.TypeOf[p]]); err != nil {
				return nil, err
			}
		}
	}
	return s.jobIDs, nil
}

func counter[T any](list func(context.Context) ([]T, error)) func(context.Context) (int, error) {
	return func(ctx context.Context) (int, error) {
		items, err := list(ctx)
		return len(items), err
	}
}

func (e *Executor) submitProtocol(
	ctx context.Context, s *submitter, base domain.StageContext,
	protocol, group string, chain []grid.JobID,
) error {
	spec := e.spec
	zt := !spec.NoZTNorm
	u := e.protocols[protocol]
	chunks := s.gconf.Chunks()

	models, err := u.fs.ModelIDs(ctx, group)
	if err != nil {
		return err
	}
	tmodels := []string{}
	if zt {
		if tmodels, err = u.fs.TModelIDs(ctx, group); err != nil {
			return err
		}
	}

	sc := base
	sc.Type = e.res.TypeOf[protocol]
	sc.Protocol = protocol
	sc.Group = group
	key := func(format string, args ...any) string {
		return protocol + "_" + fmt.Sprintf(format, args...)
	}
	name := func(format string, args ...any) string {
		return protocol + "-" + fmt.Sprintf(format, args...)
	}

	enrolN := slices.Clone(chain)
	enrolT := slices.Clone(chain)
	if !spec.Skip.Enrolment {
		enrol := sc
		enrol.Stage = domain.Enrol
		enrol.ModelType = domain.NormalModel
		ids, err := s.submit(
			ctx, key("enrol_%s_N", group), name("en-N-%s", group), enrol,
			len(models), chunks.ModelsPerEnrolJob, EnrolmentQueue, chain,
		)
		if err != nil {
			return err
		}
		enrolN = append(enrolN, ids...)

		if zt {
			enrol.ModelType = domain.TNormModel
			ids, err := s.submit(
				ctx, key("enrol_%s_T", group), name("en-T-%s", group), enrol,
				len(tmodels), chunks.ModelsPerEnrolJob, EnrolmentQueue, chain,
			)
			if err != nil {
				return err
			}
			enrolT = append(enrolT, ids...)
		}
	}

	concatDeps := slices.Clone(chain)
	if !spec.Skip.Scores {
		score := sc
		score.Stage = domain.Score
		types := []domain.ScoreType{domain.ScoreA}
		if zt {
			types = append(types, domain.ScoreB, domain.ScoreC, domain.ScoreD)
		}

		scoreDeps := []grid.JobID{}
		for _, st := range types {
			score.ScoreType = st
			n, deps := len(models), enrolN
			if st == domain.ScoreC || st == domain.ScoreD {
				n, deps = len(tmodels), enrolT
			}
			ids, err := s.submit(
				ctx, key("score_%s_%s", group, st), name("sc-%s-%s", st, group), score,
				n, chunks.ModelsPerScoreJob, ScoringQueue, deps,
			)
			if err != nil {
				return err
			}
			scoreDeps = append(scoreDeps, ids...)
			if st == domain.ScoreA && len(ids) != 0 {
				concatDeps = ids
			}
		}

		if zt {
			z := sc
			z.Stage = domain.ZTNorm
			ids, err := s.submit(
				ctx, key("score_%s_Z", group), name("sc-Z-%s", group), z,
				0, 0, ScoringQueue, scoreDeps,
			)
			if err != nil {
				return err
			}
			concatDeps = append(slices.Clone(concatDeps), ids...)
		}
	}

	if !spec.Skip.Concatenation {
		c := sc
		c.Stage = domain.Concatenate
		if _, err := s.submit(
			ctx, key("concat_%s", group), name("con-%s", group), c,
			0, 0, ScoringQueue, concatDeps,
		); err != nil {
			return err
		}
	}
	return nil
}
