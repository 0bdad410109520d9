package toolchain

import (
	"context"
	"io"
	"os"
	"slices"

	"github.com/pombredanne/facereclib/pkg/database"
	"github.com/pombredanne/facereclib/pkg/domain"
	xe "github.com/pombredanne/facereclib/pkg/errors"
	"github.com/pombredanne/facereclib/pkg/feature"
	"github.com/pombredanne/facereclib/pkg/tools"
	"github.com/pombredanne/facereclib/pkg/ztnorm"
	"gopkg.in/yaml.v3"
)

// probeReader reads probe features, keeping them when preloading.
type probeReader struct {
	preload bool
	cache   map[string]feature.Vector
}

func newProbeReader(preload bool) *probeReader {
	return &probeReader{preload: preload, cache: map[string]feature.Vector{}}
}

func (pr *probeReader) read(ctx context.Context, files []database.File) ([]feature.Vector, error) {
	vs := make([]feature.Vector, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if v, ok := pr.cache[f.Path]; ok {
			vs = append(vs, v)
			continue
		}
		v, err := feature.ReadVector(f.Path)
		if err != nil {
			return nil, err
		}
		if pr.preload {
			pr.cache[f.Path] = v
		}
		vs = append(vs, v)
	}
	return vs, nil
}

func score(s tools.Scorer, model feature.Vector, probes []database.File, vs []feature.Vector) ([]feature.Score, error) {
	scores := make([]feature.Score, len(probes))
	for i, p := range probes {
		v, err := s.Score(model, vs[i])
		if err != nil {
			return nil, xe.WrapWithNote(p.ID, err)
		}
		scores[i] = feature.Score{ProbeID: p.ID, Value: v}
	}
	return scores, nil
}

// ComputeScores computes score files of each group and score type.
//
// A and B cover models and C and D cover T-norm models. The range applies
// to the sorted ids of them. With preload, probe features are read once
// per call. Scores do not depend on it.
func (tc *ToolChain) ComputeScores(
	ctx context.Context, s tools.Scorer,
	groups []string, types []domain.ScoreType,
	r *domain.Range, force, preload bool,
) error {
	load := tc.enrolerLoader(s)
	probes := newProbeReader(preload)

	for _, group := range groups {
		if err := tc.fs.CreateDirectories(group); err != nil {
			return err
		}
		for _, st := range types {
			var err error
			switch st {
			case domain.ScoreA:
				err = tc.scoreA(ctx, s, group, r, force, load, probes)
			case domain.ScoreB:
				err = tc.scoreB(ctx, s, group, r, force, load, probes)
			case domain.ScoreC:
				err = tc.scoreC(ctx, s, group, r, force, load, probes)
			case domain.ScoreD:
				err = tc.scoreD(ctx, s, group, r, force, load, probes)
			default:
				err = xe.Configuration("unknown score type: %q", st)
			}
			if err != nil {
				return xe.WrapWithNote(string(st)+" "+group, err)
			}
		}
	}
	return nil
}

func (tc *ToolChain) models(ctx context.Context, group string, r *domain.Range, tmodels bool) ([]string, error) {
	list := tc.fs.ModelIDs
	if tmodels {
		list = tc.fs.TModelIDs
	}
	all, err := list(ctx, group)
	if err != nil {
		return nil, err
	}
	return domain.Slice(all, r), nil
}

// scoreModel scores probes against the model file, after the enroler is loaded.
func scoreModel(
	ctx context.Context, s tools.Scorer,
	modelFile string, probes []database.File,
	load func() error, pr *probeReader,
) ([]feature.Score, error) {
	if err := load(); err != nil {
		return nil, err
	}
	model, err := feature.ReadVector(modelFile)
	if err != nil {
		return nil, err
	}
	vs, err := pr.read(ctx, probes)
	if err != nil {
		return nil, err
	}
	return score(s, model, probes, vs)
}

func (tc *ToolChain) scoreA(ctx context.Context, s tools.Scorer, group string, r *domain.Range, force bool, load func() error, pr *probeReader) error {
	ids, err := tc.models(ctx, group, r, false)
	if err != nil {
		return err
	}
	tc.logger.Infof("computing A scores of %d models (group %s)", len(ids), group)
	for _, id := range ids {
		a, err := tc.fs.AFile(id, group)
		if err != nil {
			return err
		}
		nonorm, err := tc.fs.NoNormFile(id, group)
		if err != nil {
			return err
		}
		if skip(a, force) && skip(nonorm, force) {
			continue
		}
		probes, err := tc.fs.ProbeFilesForModel(ctx, id, group, usesProjected(s))
		if err != nil {
			return err
		}
		modelFile, err := tc.fs.ModelFile(id, group)
		if err != nil {
			return err
		}
		scores, err := scoreModel(ctx, s, modelFile, probes, load, pr)
		if err != nil {
			return xe.WrapWithNote(id, err)
		}
		if err := feature.WriteScores(a, scores); err != nil {
			return err
		}
		if err := feature.WriteScores(nonorm, scores); err != nil {
			return err
		}
	}
	return nil
}

func (tc *ToolChain) scoreB(ctx context.Context, s tools.Scorer, group string, r *domain.Range, force bool, load func() error, pr *probeReader) error {
	ids, err := tc.models(ctx, group, r, false)
	if err != nil {
		return err
	}
	tc.logger.Infof("computing B scores of %d models (group %s)", len(ids), group)
	for _, id := range ids {
		b, err := tc.fs.BFile(id, group)
		if err != nil {
			return err
		}
		if skip(b, force) {
			continue
		}
		zprobes, err := tc.fs.ZProbeFilesForModel(ctx, id, group, usesProjected(s))
		if err != nil {
			return err
		}
		modelFile, err := tc.fs.ModelFile(id, group)
		if err != nil {
			return err
		}
		scores, err := scoreModel(ctx, s, modelFile, zprobes, load, pr)
		if err != nil {
			return xe.WrapWithNote(id, err)
		}
		if err := feature.WriteScores(b, scores); err != nil {
			return err
		}
	}
	return nil
}

func (tc *ToolChain) scoreC(ctx context.Context, s tools.Scorer, group string, r *domain.Range, force bool, load func() error, pr *probeReader) error {
	ids, err := tc.models(ctx, group, r, true)
	if err != nil {
		return err
	}
	probes, err := tc.fs.ProbeFiles(ctx, group, usesProjected(s))
	if err != nil {
		return err
	}
	tc.logger.Infof("computing C scores of %d T-norm models (group %s)", len(ids), group)
	for _, id := range ids {
		c, err := tc.fs.CFile(id, group)
		if err != nil {
			return err
		}
		if skip(c, force) {
			continue
		}
		modelFile, err := tc.fs.TModelFile(id, group)
		if err != nil {
			return err
		}
		scores, err := scoreModel(ctx, s, modelFile, probes, load, pr)
		if err != nil {
			return xe.WrapWithNote(id, err)
		}
		if err := feature.WriteScores(c, scores); err != nil {
			return err
		}
	}
	return nil
}

func (tc *ToolChain) scoreD(ctx context.Context, s tools.Scorer, group string, r *domain.Range, force bool, load func() error, pr *probeReader) error {
	ids, err := tc.models(ctx, group, r, true)
	if err != nil {
		return err
	}
	zprobes, err := tc.fs.ZProbeFiles(ctx, group, usesProjected(s))
	if err != nil {
		return err
	}
	tc.logger.Infof("computing D scores of %d T-norm models (group %s)", len(ids), group)
	for _, id := range ids {
		d, err := tc.fs.DFile(id, group)
		if err != nil {
			return err
		}
		same, err := tc.fs.DSameValueFile(id, group)
		if err != nil {
			return err
		}
		if skip(d, force) && skip(same, force) {
			continue
		}
		modelFile, err := tc.fs.TModelFile(id, group)
		if err != nil {
			return err
		}
		scores, err := scoreModel(ctx, s, modelFile, zprobes, load, pr)
		if err != nil {
			return xe.WrapWithNote(id, err)
		}
		if err := feature.WriteScores(d, scores); err != nil {
			return err
		}

		mask := make([]feature.Score, len(zprobes))
		for i, z := range zprobes {
			v := 0.0
			if z.ClientID == id {
				v = 1
			}
			mask[i] = feature.Score{ProbeID: z.ID, Value: v}
		}
		if err := feature.WriteScores(same, mask); err != nil {
			return err
		}
	}
	return nil
}

// readRows stacks score files aligned to probeIDs, one row per file.
func readRows(paths []string, probeIDs []string) (feature.Matrix, error) {
	m := feature.NewMatrix(len(paths), len(probeIDs))
	for i, p := range paths {
		row, err := feature.ReadAligned(p, probeIDs)
		if err != nil {
			return feature.Matrix{}, err
		}
		copy(m.Row(i), row)
	}
	return m, nil
}

// cacheKey names rows and columns of a cached matrix.
type cacheKey struct {
	Rows []string `yaml:"rows"`
	Cols []string `yaml:"cols"`
}

// CacheKeyFile is the file naming rows and columns of the matrix cached at cache.
func CacheKeyFile(cache string) string {
	return cache + ".ids.yaml"
}

func readCacheKey(path string) (cacheKey, error) {
	key := cacheKey{}
	buf, err := os.ReadFile(path)
	if err != nil {
		return key, err
	}
	if err := yaml.Unmarshal(buf, &key); err != nil {
		return key, xe.WrapWithNote(path, err)
	}
	return key, nil
}

// cachedRows reads the matrix at cache, or builds it from score files and
// writes it at cache.
//
// The cache is used only when it is built for the same rowIDs and colIDs.
func (tc *ToolChain) cachedRows(cache string, force bool, rowIDs, paths, colIDs []string) (feature.Matrix, error) {
	if !force && feature.Exists(cache) {
		switch key, err := readCacheKey(CacheKeyFile(cache)); {
		case err != nil:
			tc.logger.Warnf("rebuilding %s: ids are unknown: %v", cache, err)
		case !slices.Equal(key.Rows, rowIDs) || !slices.Equal(key.Cols, colIDs):
			tc.logger.Warnf("rebuilding %s: it is built for other T-models or Z-probes", cache)
		default:
			m, err := feature.ReadMatrix(cache)
			if err != nil {
				return feature.Matrix{}, err
			}
			if m.Rows == len(paths) && m.Cols == len(colIDs) {
				return m, nil
			}
			tc.logger.Warnf("rebuilding %s: it is %dx%d", cache, m.Rows, m.Cols)
		}
	}
	m, err := readRows(paths, colIDs)
	if err != nil {
		return feature.Matrix{}, err
	}
	if err := feature.WriteMatrix(cache, m); err != nil {
		return feature.Matrix{}, err
	}
	buf, err := yaml.Marshal(cacheKey{Rows: rowIDs, Cols: colIDs})
	if err != nil {
		return feature.Matrix{}, xe.Wrap(err)
	}
	err = feature.WriteFile(CacheKeyFile(cache), func(w io.Writer) error {
		_, err := w.Write(buf)
		return err
	})
	if err != nil {
		return feature.Matrix{}, err
	}
	return m, nil
}

// ZTNorm normalizes A scores of each model in the range, group by group.
func (tc *ToolChain) ZTNorm(ctx context.Context, groups []string, r *domain.Range, force bool) error {
	for _, group := range groups {
		if err := tc.normalizeGroup(ctx, group, r, force); err != nil {
			return xe.WrapWithNote("zt-norm "+group, err)
		}
	}
	return nil
}

func (tc *ToolChain) normalizeGroup(ctx context.Context, group string, r *domain.Range, force bool) error {
	ids, err := tc.models(ctx, group, r, false)
	if err != nil {
		return err
	}
	tmodels, err := tc.models(ctx, group, nil, true)
	if err != nil {
		return err
	}
	probes, err := tc.fs.ProbeFiles(ctx, group, false)
	if err != nil {
		return err
	}
	zprobes, err := tc.fs.ZProbeFiles(ctx, group, false)
	if err != nil {
		return err
	}
	probeIDs, zprobeIDs := database.IDs(probes), database.IDs(zprobes)

	cFiles := make([]string, len(tmodels))
	dFiles := make([]string, len(tmodels))
	sameFiles := make([]string, len(tmodels))
	for i, t := range tmodels {
		if cFiles[i], err = tc.fs.CFile(t, group); err != nil {
			return err
		}
		if dFiles[i], err = tc.fs.DFile(t, group); err != nil {
			return err
		}
		if sameFiles[i], err = tc.fs.DSameValueFile(t, group); err != nil {
			return err
		}
	}

	var c feature.Matrix
	loadC := lazy(func() error {
		m, err := readRows(cFiles, probeIDs)
		c = m
		return err
	})
	var d feature.Matrix
	var same ztnorm.Mask
	loadD := lazy(func() error {
		m, err := tc.cachedRows(tc.fs.DMatrixFile(group), force, tmodels, dFiles, zprobeIDs)
		if err != nil {
			return err
		}
		s, err := tc.cachedRows(tc.fs.DSameValueMatrixFile(group), force, tmodels, sameFiles, zprobeIDs)
		if err != nil {
			return err
		}
		d, same = m, ztnorm.MaskOf(s)
		return nil
	})
	column := make(map[string]int, len(probeIDs))
	for j, id := range probeIDs {
		column[id] = j
	}

	tc.logger.Infof("zt-norm of %d models with %d T-norm models (group %s)", len(ids), len(tmodels), group)
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		out, err := tc.fs.ZTNormFile(id, group)
		if err != nil {
			return err
		}
		if skip(out, force) {
			continue
		}
		if err := loadC(); err != nil {
			return err
		}
		if err := loadD(); err != nil {
			return err
		}

		own, err := tc.fs.ProbeFilesForModel(ctx, id, group, false)
		if err != nil {
			return err
		}
		ownIDs := database.IDs(own)
		ownZ, err := tc.fs.ZProbeFilesForModel(ctx, id, group, false)
		if err != nil {
			return err
		}

		aFile, err := tc.fs.AFile(id, group)
		if err != nil {
			return err
		}
		a, err := readRows([]string{aFile}, ownIDs)
		if err != nil {
			return xe.WrapWithNote(id, err)
		}
		bFile, err := tc.fs.BFile(id, group)
		if err != nil {
			return err
		}
		b, err := readRows([]string{bFile}, database.IDs(ownZ))
		if err != nil {
			return xe.WrapWithNote(id, err)
		}

		cm := feature.NewMatrix(c.Rows, len(ownIDs))
		for j, pid := range ownIDs {
			col, ok := column[pid]
			if !ok {
				return xe.New("probe " + pid + " of model " + id + " is not a probe of the group")
			}
			for k := 0; k < c.Rows; k++ {
				cm.Set(k, j, c.At(k, col))
			}
		}
		if err := feature.WriteMatrix(tc.fs.CFileForModel(id, group), cm); err != nil {
			return err
		}

		normalized, err := ztnorm.Normalize(a, b, cm, d, same)
		if err != nil {
			return xe.WrapWithNote(id, err)
		}
		scores := make([]feature.Score, len(ownIDs))
		for j, pid := range ownIDs {
			scores[j] = feature.Score{ProbeID: pid, Value: normalized.At(0, j)}
		}
		if err := feature.WriteScores(out, scores); err != nil {
			return err
		}
	}
	return nil
}

// Concatenate writes the result file of each group, from no-norm scores and,
// with zt, from ZT-normalized scores. Result files are always rewritten.
func (tc *ToolChain) Concatenate(ctx context.Context, zt bool, groups []string) error {
	for _, group := range groups {
		if err := tc.concatenate(ctx, group, tc.fs.NoNormFile, tc.fs.NoNormResultFile(group)); err != nil {
			return xe.WrapWithNote("nonorm "+group, err)
		}
		if !zt {
			continue
		}
		out, err := tc.fs.ZTNormResultFile(group)
		if err != nil {
			return err
		}
		if err := tc.concatenate(ctx, group, tc.fs.ZTNormFile, out); err != nil {
			return xe.WrapWithNote("ztnorm "+group, err)
		}
	}
	return nil
}

func (tc *ToolChain) concatenate(
	ctx context.Context, group string,
	scoreFile func(modelID, group string) (string, error), out string,
) error {
	ids, err := tc.fs.ModelIDs(ctx, group)
	if err != nil {
		return err
	}
	lines := []feature.ResultLine{}
	for _, id := range ids {
		probes, err := tc.fs.ProbeFilesForModel(ctx, id, group, false)
		if err != nil {
			return err
		}
		path, err := scoreFile(id, group)
		if err != nil {
			return err
		}
		values, err := feature.ReadAligned(path, database.IDs(probes))
		if err != nil {
			return xe.WrapWithNote(id, err)
		}
		for i, p := range probes {
			lines = append(lines, feature.ResultLine{
				ModelID: id, ProbeClientID: p.ClientID, ProbeID: p.ID, Score: values[i],
			})
		}
	}
	tc.logger.Infof("writing %d scores to %s", len(lines), out)
	return feature.WriteResult(out, lines)
}
