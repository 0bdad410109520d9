// Package ztnorm normalizes raw scores with Z-norm followed by T-norm.
//
// Matrices follow the layout of score files:
//
//	A: models x probes           (raw scores to be normalized)
//	B: models x Z-probes         (Z-norm cohort of each model)
//	C: T-models x probes         (T-norm cohort of each probe)
//	D: T-models x Z-probes       (Z-norm cohort of each T-model)
//
// Statistics use the sample standard deviation. When a statistic is
// degenerate (fewer than two samples, zero or non-finite deviation), the
// entries depending on it fall back to the raw score of A.
package ztnorm

import (
	"fmt"
	"math"

	"github.com/pombredanne/facereclib/pkg/feature"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Stats of a row or a column.
type Stats struct {
	Mean float64
	Std  float64

	// N is the number of samples.
	N int
}

// Valid tells Std can divide.
func (s Stats) Valid() bool {
	return 2 <= s.N && s.Std != 0 && finite(s.Mean) && finite(s.Std)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func stats(values []float64) Stats {
	switch len(values) {
	case 0:
		return Stats{}
	case 1:
		return Stats{Mean: values[0], N: 1}
	}
	mean, std := stat.MeanStdDev(values, nil)
	return Stats{Mean: mean, Std: std, N: len(values)}
}

// Mask marks entries of a matrix. Same[i*Cols+j] is the entry (i, j).
type Mask struct {
	Rows int
	Cols int
	Same []bool
}

// MaskOf marks non-zero entries of m.
func MaskOf(m feature.Matrix) Mask {
	mask := Mask{Rows: m.Rows, Cols: m.Cols, Same: make([]bool, len(m.Data))}
	for i, v := range m.Data {
		mask.Same[i] = v != 0
	}
	return mask
}

func (m Mask) At(i, j int) bool {
	return m.Same[i*m.Cols+j]
}

// RowStats of each row of m.
func RowStats(m feature.Matrix) []Stats {
	return MaskedRowStats(m, Mask{})
}

// MaskedRowStats of each row of m, excluding entries marked in mask.
//
// An empty mask excludes nothing.
func MaskedRowStats(m feature.Matrix, mask Mask) []Stats {
	ret := make([]Stats, m.Rows)
	values := make([]float64, 0, m.Cols)
	for i := 0; i < m.Rows; i++ {
		if len(mask.Same) == 0 {
			ret[i] = stats(m.Row(i))
			continue
		}
		values = values[:0]
		for j, v := range m.Row(i) {
			if !mask.At(i, j) {
				values = append(values, v)
			}
		}
		ret[i] = stats(values)
	}
	return ret
}

// transpose copies m into a new matrix with rows and columns swapped.
func transpose(m feature.Matrix) feature.Matrix {
	if m.Rows == 0 || m.Cols == 0 {
		return feature.NewMatrix(m.Cols, m.Rows)
	}
	t := mat.DenseCopyOf(mat.NewDense(m.Rows, m.Cols, m.Data).T())
	return feature.Matrix{Rows: m.Cols, Cols: m.Rows, Data: t.RawMatrix().Data}
}

// columnStats of m, taking samples only from the listed rows.
func columnStats(m feature.Matrix, rows []int) []Stats {
	t := transpose(m)
	ret := make([]Stats, t.Rows)
	values := make([]float64, len(rows))
	for j := range ret {
		col := t.Row(j)
		for n, i := range rows {
			values[n] = col[i]
		}
		ret[j] = stats(values)
	}
	return ret
}

// znorm normalizes rows of x, and tells which rows are normalized.
func znorm(x feature.Matrix, rowStats []Stats) (feature.Matrix, []bool) {
	out := feature.Matrix{Rows: x.Rows, Cols: x.Cols, Data: append([]float64{}, x.Data...)}
	valid := make([]bool, x.Rows)
	for i := range valid {
		s := rowStats[i]
		if valid[i] = s.Valid(); !valid[i] {
			continue
		}
		row := out.Row(i)
		floats.AddConst(-s.Mean, row)
		floats.Scale(1/s.Std, row)
	}
	return out, valid
}

// tnorm normalizes columns of x, and tells which columns are normalized.
func tnorm(x feature.Matrix, colStats []Stats) (feature.Matrix, []bool) {
	t, valid := znorm(transpose(x), colStats)
	return transpose(t), valid
}

// ZNorm normalizes each row of x by the stats of the same row of cohort.
//
// Rows with degenerate stats are kept as they are.
func ZNorm(x, cohort feature.Matrix) (feature.Matrix, error) {
	if x.Rows != cohort.Rows {
		return feature.Matrix{}, fmt.Errorf("z-norm: %d rows against %d cohort rows", x.Rows, cohort.Rows)
	}
	out, _ := znorm(x, RowStats(cohort))
	return out, nil
}

// TNorm normalizes each column of x by the stats of the same column of cohort.
//
// Columns with degenerate stats are kept as they are.
func TNorm(x, cohort feature.Matrix) (feature.Matrix, error) {
	if x.Cols != cohort.Cols {
		return feature.Matrix{}, fmt.Errorf("t-norm: %d columns against %d cohort columns", x.Cols, cohort.Cols)
	}
	rows := make([]int, cohort.Rows)
	for i := range rows {
		rows[i] = i
	}
	out, _ := tnorm(x, columnStats(cohort, rows))
	return out, nil
}

func shape(name string, m feature.Matrix, rows, cols int) error {
	if m.Rows != rows || m.Cols != cols || len(m.Data) != rows*cols {
		return fmt.Errorf("%s should be %dx%d, but %dx%d", name, rows, cols, m.Rows, m.Cols)
	}
	return nil
}

// Normalize applies ZT-norm to a.
//
// same marks entries of d where the T-model and the Z-probe share identity.
// They are excluded from stats of d. An empty mask excludes nothing.
//
// Every entry of a should be finite; NaN or Inf in a is an error. The
// result has the shape of a, and never contains NaN or Inf.
func Normalize(a, b, c, d feature.Matrix, same Mask) (feature.Matrix, error) {
	m, p := a.Rows, a.Cols
	z, t := b.Cols, c.Rows
	if err := shape("A", a, m, p); err != nil {
		return feature.Matrix{}, err
	}
	if err := shape("B", b, m, z); err != nil {
		return feature.Matrix{}, err
	}
	if err := shape("C", c, t, p); err != nil {
		return feature.Matrix{}, err
	}
	if err := shape("D", d, t, z); err != nil {
		return feature.Matrix{}, err
	}
	if len(same.Same) != 0 && (same.Rows != t || same.Cols != z || len(same.Same) != t*z) {
		return feature.Matrix{}, fmt.Errorf("mask should be %dx%d, but %dx%d", t, z, same.Rows, same.Cols)
	}
	for n, v := range a.Data {
		if !finite(v) {
			return feature.Matrix{}, fmt.Errorf("A(%d, %d) is not a finite score: %v", n/p, n%p, v)
		}
	}

	za, validA := znorm(a, RowStats(b))
	zc, validC := znorm(c, MaskedRowStats(d, same))

	cohort := []int{}
	for k, ok := range validC {
		if ok {
			cohort = append(cohort, k)
		}
	}
	zta, validT := tnorm(za, columnStats(zc, cohort))

	out := feature.NewMatrix(m, p)
	for i := 0; i < m; i++ {
		for j := 0; j < p; j++ {
			v := zta.At(i, j)
			if !validA[i] || !validT[j] || !finite(v) {
				v = a.At(i, j)
			}
			out.Set(i, j, v)
		}
	}
	return out, nil
}
